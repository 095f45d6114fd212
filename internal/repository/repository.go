package repository

import (
	"context"
	"time"

	"gamata/fitness-core/internal/domain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Error constants for repository layer
var (
	ErrNotFound     = RepositoryError("not found")
	ErrConflict     = RepositoryError("conflict")      // Unique constraint hit, or a conditional write matched nothing live
	ErrUpdateFailed = RepositoryError("update failed") // Write acknowledged but nothing changed
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// WorkoutRepository reads the workout catalog. Create exists for seeding and tests.
type WorkoutRepository interface {
	Create(ctx context.Context, workout *domain.Workout) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Workout, error)
	GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]domain.Workout, error) // Missing ids are skipped
}

// PlanRepository defines the interface for interacting with plan templates.
type PlanRepository interface {
	Create(ctx context.Context, plan *domain.Plan) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Plan, error)
	GetByCoachID(ctx context.Context, coachID primitive.ObjectID, includeArchived bool) ([]domain.Plan, error)
	UpdateDays(ctx context.Context, id primitive.ObjectID, days []domain.PlanDay, at time.Time) error
	SetArchived(ctx context.Context, id primitive.ObjectID, archived bool, at time.Time) error
}

// AssignmentRepository defines the interface for the assignment ledger.
type AssignmentRepository interface {
	// Create inserts a pending row. ErrConflict if a live row for the same plan and user exists.
	Create(ctx context.Context, assignment *domain.Assignment) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Assignment, error)
	GetLive(ctx context.Context, planID, userID primitive.ObjectID) (*domain.Assignment, error)
	GetByUserID(ctx context.Context, userID primitive.ObjectID) ([]domain.Assignment, error)
	GetByPlanID(ctx context.Context, planID primitive.ObjectID) ([]domain.Assignment, error)
	GetActiveByUserID(ctx context.Context, userID primitive.ObjectID) (*domain.Assignment, error)
	// Activate atomically deactivates the user's other active rows and promotes the pending row.
	// ErrConflict if the row is no longer pending; nothing is written in that case.
	Activate(ctx context.Context, id, userID primitive.ObjectID, at time.Time) (*domain.Assignment, []primitive.ObjectID, error)
	// Decline moves a pending row to inactive. ErrConflict if it is no longer pending.
	Decline(ctx context.Context, id primitive.ObjectID, at time.Time) (*domain.Assignment, error)
}

// SessionRepository defines the interface for workout sessions and their logs.
// Conditional writes return ErrConflict when the session exists but is not in the
// required state, and ErrNotFound when it does not exist.
type SessionRepository interface {
	Create(ctx context.Context, session *domain.Session) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Session, error)
	AddPrimaryLog(ctx context.Context, sessionID primitive.ObjectID, log domain.ExerciseLog) error // Open session without a log
	UpdateLog(ctx context.Context, sessionID, logID primitive.ObjectID, fields domain.LogFields, at time.Time) error
	Complete(ctx context.Context, sessionID primitive.ObjectID, at time.Time) error
	// ListCompleted returns completed sessions, newest first. Zero bounds are open.
	ListCompleted(ctx context.Context, userID primitive.ObjectID, from, to time.Time) ([]domain.Session, error)
}
