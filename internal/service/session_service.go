package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gamata/fitness-core/internal/domain"
	"gamata/fitness-core/internal/lock"
	"gamata/fitness-core/internal/metrics"
	"gamata/fitness-core/internal/repository"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CreateSessionInput describes a session to open.
type CreateSessionInput struct {
	WorkoutID   primitive.ObjectID
	SessionType domain.SessionType
	PlanID      *primitive.ObjectID // Required for assigned and swap, forbidden for adhoc
}

// --- Service Interface ---

// SessionService is the Session Engine. A session is open until completed; completed
// sessions are immutable.
type SessionService interface {
	Create(ctx context.Context, userID primitive.ObjectID, input CreateSessionInput) (*domain.Session, error)
	Get(ctx context.Context, userID, sessionID primitive.ObjectID) (*domain.Session, error)
	// AddLog writes the session's primary log. When the log already exists the fields
	// are applied to it instead, so a retried call converges on one log.
	AddLog(ctx context.Context, userID, sessionID primitive.ObjectID, fields domain.LogFields) (*domain.Session, error)
	UpdateLog(ctx context.Context, userID, sessionID, logID primitive.ObjectID, fields domain.LogFields) (*domain.Session, error)
	Complete(ctx context.Context, userID, sessionID primitive.ObjectID) (*domain.Session, error)
	ListCompleted(ctx context.Context, userID primitive.ObjectID, from, to time.Time) ([]domain.Session, error)
}

// --- Service Implementation ---

type sessionService struct {
	sessionRepo    repository.SessionRepository
	assignmentRepo repository.AssignmentRepository
	planRepo       repository.PlanRepository
	catalog        CatalogService
	locker         lock.Locker
	now            Clock
	logger         *slog.Logger
}

// NewSessionService creates a new instance of sessionService.
func NewSessionService(
	sessionRepo repository.SessionRepository,
	assignmentRepo repository.AssignmentRepository,
	planRepo repository.PlanRepository,
	catalog CatalogService,
	locker lock.Locker,
	now Clock,
	logger *slog.Logger,
) SessionService {
	return &sessionService{
		sessionRepo:    sessionRepo,
		assignmentRepo: assignmentRepo,
		planRepo:       planRepo,
		catalog:        catalog,
		locker:         locker,
		now:            now,
		logger:         logger,
	}
}

// Create opens a session after checking it is consistent with the athlete's active plan.
func (s *sessionService) Create(ctx context.Context, userID primitive.ObjectID, input CreateSessionInput) (*domain.Session, error) {
	// 1. Validate type and plan reference shape
	if !input.SessionType.Valid() {
		return nil, validationf("session type must be one of assigned, swap, adhoc")
	}
	if input.SessionType.RequiresPlan() && input.PlanID == nil {
		return nil, validationf("plan id is required for %s sessions", input.SessionType)
	}
	if !input.SessionType.RequiresPlan() && input.PlanID != nil {
		return nil, validationf("adhoc sessions must not reference a plan")
	}

	// 2. Check the workout
	workout, err := s.catalog.GetWorkout(ctx, input.WorkoutID)
	if err != nil {
		return nil, err
	}
	if workout.IsArchived {
		return nil, ErrWorkoutArchived
	}

	// 3. Check the plan is the athlete's active one
	var planID *primitive.ObjectID
	if input.SessionType.RequiresPlan() {
		_, plan, err := activePlan(ctx, s.assignmentRepo, s.planRepo, userID)
		if err != nil {
			return nil, err
		}
		if plan == nil || plan.ID != *input.PlanID {
			return nil, ErrPlanNotActive
		}
		if input.SessionType == domain.SessionAssigned && !plan.ContainsWorkout(input.WorkoutID) {
			return nil, ErrWorkoutNotInPlan
		}
		id := plan.ID
		planID = &id
	}

	// 4. Store
	now := s.now()
	session := &domain.Session{
		UserID:      userID,
		WorkoutID:   input.WorkoutID,
		PlanID:      planID,
		SessionType: input.SessionType,
		Logs:        []domain.ExerciseLog{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	metrics.SessionEventsTotal.WithLabelValues(metrics.SessionCreated, string(session.SessionType)).Inc()
	return session, nil
}

func (s *sessionService) Get(ctx context.Context, userID, sessionID primitive.ObjectID) (*domain.Session, error) {
	return s.ownedSession(ctx, userID, sessionID)
}

func (s *sessionService) AddLog(ctx context.Context, userID, sessionID primitive.ObjectID, fields domain.LogFields) (*domain.Session, error) {
	fields = fields.Normalized()
	if err := validateLogFields(fields); err != nil {
		return nil, err
	}

	unlock, err := acquire(ctx, s.locker, metrics.LockScopeSession, lock.SessionKey(sessionID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	session, err := s.ownedSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.IsCompleted() {
		return nil, ErrSessionCompleted
	}
	if primary := session.PrimaryLog(); primary != nil {
		return s.applyUpdate(ctx, session, primary.ID, fields)
	}

	now := s.now()
	entry := domain.ExerciseLog{ID: primitive.NewObjectID(), LoggedAt: now, UpdatedAt: now}
	entry.Apply(fields)
	if err := s.sessionRepo.AddPrimaryLog(ctx, sessionID, entry); err != nil {
		if !errors.Is(err, repository.ErrConflict) {
			return nil, s.sessionWriteError(err)
		}
		// Lost a race with another node: the session either got its log or was completed.
		current, getErr := s.ownedSession(ctx, userID, sessionID)
		if getErr != nil {
			return nil, getErr
		}
		if current.IsCompleted() {
			return nil, ErrSessionCompleted
		}
		if primary := current.PrimaryLog(); primary != nil {
			return s.applyUpdate(ctx, current, primary.ID, fields)
		}
		return nil, fmt.Errorf("add log: %w", err)
	}

	metrics.SessionEventsTotal.WithLabelValues(metrics.SessionLogAdded, string(session.SessionType)).Inc()
	return s.reload(ctx, sessionID)
}

func (s *sessionService) UpdateLog(ctx context.Context, userID, sessionID, logID primitive.ObjectID, fields domain.LogFields) (*domain.Session, error) {
	fields = fields.Normalized()
	if err := validateLogFields(fields); err != nil {
		return nil, err
	}

	unlock, err := acquire(ctx, s.locker, metrics.LockScopeSession, lock.SessionKey(sessionID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	session, err := s.ownedSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.IsCompleted() {
		return nil, ErrSessionCompleted
	}
	if session.FindLog(logID) == nil {
		return nil, ErrLogNotFound
	}
	return s.applyUpdate(ctx, session, logID, fields)
}

// Complete stamps completed_at. A second call fails with ErrSessionCompleted and
// leaves the first completion untouched.
func (s *sessionService) Complete(ctx context.Context, userID, sessionID primitive.ObjectID) (*domain.Session, error) {
	unlock, err := acquire(ctx, s.locker, metrics.LockScopeSession, lock.SessionKey(sessionID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	session, err := s.ownedSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.IsCompleted() {
		return nil, ErrSessionCompleted
	}

	if err := s.sessionRepo.Complete(ctx, sessionID, s.now()); err != nil {
		return nil, s.sessionWriteError(err)
	}

	metrics.SessionEventsTotal.WithLabelValues(metrics.SessionCompleted, string(session.SessionType)).Inc()
	s.logger.Info("session completed",
		"session_id", sessionID.Hex(),
		"user_id", userID.Hex(),
		"workout_id", session.WorkoutID.Hex(),
		"session_type", session.SessionType,
	)
	return s.reload(ctx, sessionID)
}

func (s *sessionService) ListCompleted(ctx context.Context, userID primitive.ObjectID, from, to time.Time) ([]domain.Session, error) {
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return nil, validationf("to must not be before from")
	}
	sessions, err := s.sessionRepo.ListCompleted(ctx, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list completed sessions: %w", err)
	}
	return sessions, nil
}

func (s *sessionService) applyUpdate(ctx context.Context, session *domain.Session, logID primitive.ObjectID, fields domain.LogFields) (*domain.Session, error) {
	if err := s.sessionRepo.UpdateLog(ctx, session.ID, logID, fields, s.now()); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrLogNotFound
		}
		return nil, s.sessionWriteError(err)
	}
	metrics.SessionEventsTotal.WithLabelValues(metrics.SessionLogEdited, string(session.SessionType)).Inc()
	return s.reload(ctx, session.ID)
}

// sessionWriteError maps a failed conditional session write.
func (s *sessionService) sessionWriteError(err error) error {
	switch {
	case errors.Is(err, repository.ErrConflict):
		return ErrSessionCompleted
	case errors.Is(err, repository.ErrNotFound):
		return ErrSessionNotFound
	}
	s.logger.Error("session write failed", "error", err)
	return fmt.Errorf("write session: %w", err)
}

func (s *sessionService) reload(ctx context.Context, sessionID primitive.ObjectID) (*domain.Session, error) {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("reload session: %w", err)
	}
	return session, nil
}

// ownedSession hides sessions of other athletes behind NotFound.
func (s *sessionService) ownedSession(ctx context.Context, userID, sessionID primitive.ObjectID) (*domain.Session, error) {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	if session.UserID != userID {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// maxWeight is the largest weight a log stores (8 digits, 2 after the point).
var maxWeight = decimal.RequireFromString("999999.99")

func validateLogFields(f domain.LogFields) error {
	if f.IsEmpty() {
		return ErrEmptyLog
	}
	if f.Sets != nil && *f.Sets < 0 {
		return validationf("sets must not be negative")
	}
	if f.Reps != nil && *f.Reps < 0 {
		return validationf("reps must not be negative")
	}
	if f.Duration != nil && *f.Duration < 0 {
		return validationf("duration must not be negative")
	}
	if f.Weight != nil {
		if f.Weight.IsNegative() {
			return validationf("weight must not be negative")
		}
		if !f.Weight.Equal(f.Weight.Round(2)) {
			return validationf("weight allows at most two decimal places")
		}
		if f.Weight.GreaterThan(maxWeight) {
			return validationf("weight must not exceed %s", maxWeight.StringFixed(2))
		}
	}
	return nil
}
