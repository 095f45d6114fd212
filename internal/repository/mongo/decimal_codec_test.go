package mongo

import (
	"testing"

	"gamata/fitness-core/internal/domain"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestDecimalCodecRoundTrip(t *testing.T) {
	registry := newRegistry()
	weight := decimal.RequireFromString("82.5")
	reps := 8
	in := domain.ExerciseLog{ID: primitive.NewObjectID(), Reps: &reps, Weight: &weight}

	data, err := bson.MarshalWithRegistry(registry, in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var raw bson.M
	if err := bson.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal raw: %v", err)
	}
	if _, ok := raw["weight"].(primitive.Decimal128); !ok {
		t.Fatalf("expected weight stored as Decimal128, got %T", raw["weight"])
	}

	var out domain.ExerciseLog
	if err := bson.UnmarshalWithRegistry(registry, data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Weight == nil || !out.Weight.Equal(weight) {
		t.Errorf("expected weight %s, got %v", weight, out.Weight)
	}
	if out.Reps == nil || *out.Reps != 8 {
		t.Errorf("expected reps 8, got %v", out.Reps)
	}
}

func TestDecimalCodecOmitsNilWeight(t *testing.T) {
	registry := newRegistry()
	in := domain.ExerciseLog{ID: primitive.NewObjectID()}

	data, err := bson.MarshalWithRegistry(registry, in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out domain.ExerciseLog
	if err := bson.UnmarshalWithRegistry(registry, data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Weight != nil {
		t.Errorf("expected nil weight, got %s", out.Weight)
	}
}

func TestDecimalCodecReadsLegacyDouble(t *testing.T) {
	registry := newRegistry()
	data, err := bson.Marshal(bson.M{"_id": primitive.NewObjectID(), "weight": 100.25})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out domain.ExerciseLog
	if err := bson.UnmarshalWithRegistry(registry, data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Weight == nil || !out.Weight.Equal(decimal.RequireFromString("100.25")) {
		t.Errorf("expected weight 100.25, got %v", out.Weight)
	}
}

func TestDecimalCodecEncodesLargestLoggedWeight(t *testing.T) {
	registry := newRegistry()
	weight := decimal.RequireFromString("999999.99")
	in := domain.ExerciseLog{ID: primitive.NewObjectID(), Weight: &weight}

	data, err := bson.MarshalWithRegistry(registry, in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out domain.ExerciseLog
	if err := bson.UnmarshalWithRegistry(registry, data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Weight == nil || !out.Weight.Equal(weight) {
		t.Errorf("expected weight %s, got %v", weight, out.Weight)
	}
}
