// internal/domain/workout.go
package domain

import (
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// WorkoutType separates rep-based work from timed work.
type WorkoutType string

const (
	WorkoutTypeStrength WorkoutType = "strength"
	WorkoutTypeCardio   WorkoutType = "cardio"
)

// Workout is a catalog entry. The catalog is maintained outside this service;
// the core only reads it.
type Workout struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name            string             `bson:"name" json:"name"`
	Type            WorkoutType        `bson:"type" json:"type"`
	Description     string             `bson:"description,omitempty" json:"description,omitempty"`
	TargetSets      *int               `bson:"targetSets,omitempty" json:"targetSets,omitempty"`
	TargetReps      *int               `bson:"targetReps,omitempty" json:"targetReps,omitempty"`
	SuggestedWeight *decimal.Decimal   `bson:"suggestedWeight,omitempty" json:"suggestedWeight,omitempty"`
	TargetDuration  *int               `bson:"targetDuration,omitempty" json:"targetDuration,omitempty"` // seconds
	CardioType      string             `bson:"cardioType,omitempty" json:"cardioType,omitempty"`
	MuscleGroups    []string           `bson:"muscleGroups,omitempty" json:"muscleGroups,omitempty"`
	IsArchived      bool               `bson:"isArchived" json:"isArchived"`
	CreatedAt       time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time          `bson:"updatedAt" json:"updatedAt"`
}
