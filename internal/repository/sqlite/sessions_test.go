package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"gamata/fitness-core/internal/domain"
	"gamata/fitness-core/internal/repository"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func createSession(t *testing.T, db *DB, userID, workoutID primitive.ObjectID, at time.Time) *domain.Session {
	t.Helper()
	s := &domain.Session{
		UserID:      userID,
		WorkoutID:   workoutID,
		SessionType: domain.SessionAdhoc,
		CreatedAt:   at,
		UpdatedAt:   at,
	}
	if _, err := NewSessionRepository(db).Create(context.Background(), s); err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}
	return s
}

func TestSessionLogLifecycle(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	repo := NewSessionRepository(db)
	w := createWorkout(t, db, "Deadlift")
	user := primitive.NewObjectID()
	s := createSession(t, db, user, w.ID, baseTime)

	reps := 5
	weight := decimal.RequireFromString("140.50")
	log := domain.ExerciseLog{ID: primitive.NewObjectID(), Reps: &reps, Weight: &weight, LoggedAt: baseTime, UpdatedAt: baseTime}
	if err := repo.AddPrimaryLog(ctx, s.ID, log); err != nil {
		t.Fatalf("Failed to add log: %v", err)
	}

	second := domain.ExerciseLog{ID: primitive.NewObjectID(), Reps: &reps, LoggedAt: baseTime, UpdatedAt: baseTime}
	if err := repo.AddPrimaryLog(ctx, s.ID, second); !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("Expected ErrConflict for second log, got %v", err)
	}

	notes := "felt strong"
	sets := 3
	if err := repo.UpdateLog(ctx, s.ID, log.ID, domain.LogFields{Sets: &sets, Notes: &notes}, baseTime.Add(time.Minute)); err != nil {
		t.Fatalf("Failed to update log: %v", err)
	}

	got, err := repo.GetByID(ctx, s.ID)
	if err != nil {
		t.Fatalf("Failed to get session: %v", err)
	}
	if len(got.Logs) != 1 {
		t.Fatalf("Expected 1 log, got %d", len(got.Logs))
	}
	l := got.Logs[0]
	if l.Reps == nil || *l.Reps != 5 {
		t.Errorf("Expected reps to stay 5, got %v", l.Reps)
	}
	if l.Sets == nil || *l.Sets != 3 {
		t.Errorf("Expected sets 3, got %v", l.Sets)
	}
	if l.Weight == nil || !l.Weight.Equal(decimal.RequireFromString("140.5")) {
		t.Errorf("Expected weight 140.5, got %v", l.Weight)
	}
	if l.Notes == nil || *l.Notes != "felt strong" {
		t.Errorf("Expected notes, got %v", l.Notes)
	}

	if err := repo.UpdateLog(ctx, s.ID, primitive.NewObjectID(), domain.LogFields{Sets: &sets}, baseTime); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for unknown log, got %v", err)
	}
}

func TestCompleteSessionOnce(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	repo := NewSessionRepository(db)
	w := createWorkout(t, db, "Run")
	s := createSession(t, db, primitive.NewObjectID(), w.ID, baseTime)

	done := baseTime.Add(45 * time.Minute)
	if err := repo.Complete(ctx, s.ID, done); err != nil {
		t.Fatalf("Failed to complete: %v", err)
	}
	if err := repo.Complete(ctx, s.ID, done.Add(time.Minute)); !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("Expected ErrConflict on second complete, got %v", err)
	}

	got, _ := repo.GetByID(ctx, s.ID)
	if got.CompletedAt == nil || !got.CompletedAt.Equal(done) {
		t.Errorf("Expected completedAt %v, got %v", done, got.CompletedAt)
	}

	reps := 1
	log := domain.ExerciseLog{ID: primitive.NewObjectID(), Reps: &reps, LoggedAt: done, UpdatedAt: done}
	if err := repo.AddPrimaryLog(ctx, s.ID, log); !errors.Is(err, repository.ErrConflict) {
		t.Errorf("Expected ErrConflict logging to completed session, got %v", err)
	}
	if err := repo.Complete(ctx, primitive.NewObjectID(), done); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestListCompletedNewestFirst(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	repo := NewSessionRepository(db)
	w := createWorkout(t, db, "Swim")
	user := primitive.NewObjectID()

	var ids []primitive.ObjectID
	for i := 0; i < 3; i++ {
		s := createSession(t, db, user, w.ID, baseTime.AddDate(0, 0, i))
		if err := repo.Complete(ctx, s.ID, baseTime.AddDate(0, 0, i).Add(time.Hour)); err != nil {
			t.Fatalf("Failed to complete: %v", err)
		}
		ids = append(ids, s.ID)
	}
	createSession(t, db, user, w.ID, baseTime) // open, never listed
	other := createSession(t, db, primitive.NewObjectID(), w.ID, baseTime)
	_ = repo.Complete(ctx, other.ID, baseTime.Add(time.Hour))

	all, err := repo.ListCompleted(ctx, user, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("Failed to list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("Expected 3 sessions, got %d", len(all))
	}
	if all[0].ID != ids[2] || all[2].ID != ids[0] {
		t.Errorf("Expected newest first")
	}

	windowed, err := repo.ListCompleted(ctx, user, baseTime.AddDate(0, 0, 1), baseTime.AddDate(0, 0, 2))
	if err != nil {
		t.Fatalf("Failed to list window: %v", err)
	}
	if len(windowed) != 1 || windowed[0].ID != ids[1] {
		t.Errorf("Expected only the middle session, got %+v", windowed)
	}
}
