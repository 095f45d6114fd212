package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gamata/fitness-core/internal/domain"
	"gamata/fitness-core/internal/lock"
	"gamata/fitness-core/internal/metrics"
	"gamata/fitness-core/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ActivationResult is the outcome of a successful activation.
type ActivationResult struct {
	Assignment  *domain.Assignment
	Deactivated []primitive.ObjectID // Previously active rows of the athlete, now inactive
}

// PlanAssignmentView pairs an assignment with the plan it points at.
type PlanAssignmentView struct {
	Assignment domain.Assignment
	Plan       *domain.Plan // nil if the plan no longer exists
}

// PendingAndActive is the athlete's ledger overview.
type PendingAndActive struct {
	Active  *PlanAssignmentView
	Pending []PlanAssignmentView
}

// --- Service Interface ---

// AssignmentService is the Assignment Ledger.
type AssignmentService interface {
	// Assign offers a coach's plan to athletes. Athletes that already hold a live row for
	// the plan keep it; the result has one row per distinct requested athlete.
	Assign(ctx context.Context, coachID, planID primitive.ObjectID, userIDs []primitive.ObjectID) ([]domain.Assignment, error)
	Activate(ctx context.Context, userID, assignmentID primitive.ObjectID) (*ActivationResult, error)
	Decline(ctx context.Context, userID, assignmentID primitive.ObjectID) (*domain.Assignment, error)
	GetPendingAndActive(ctx context.Context, userID primitive.ObjectID) (*PendingAndActive, error)
}

// --- Service Implementation ---

type assignmentService struct {
	assignmentRepo repository.AssignmentRepository
	planRepo       repository.PlanRepository
	locker         lock.Locker
	now            Clock
	logger         *slog.Logger
}

// NewAssignmentService creates a new instance of assignmentService.
func NewAssignmentService(
	assignmentRepo repository.AssignmentRepository,
	planRepo repository.PlanRepository,
	locker lock.Locker,
	now Clock,
	logger *slog.Logger,
) AssignmentService {
	return &assignmentService{
		assignmentRepo: assignmentRepo,
		planRepo:       planRepo,
		locker:         locker,
		now:            now,
		logger:         logger,
	}
}

// Assign creates pending rows for every requested athlete without a live row for the plan.
func (s *assignmentService) Assign(ctx context.Context, coachID, planID primitive.ObjectID, userIDs []primitive.ObjectID) ([]domain.Assignment, error) {
	// 1. Validate input
	users := dedupeIDs(userIDs)
	if len(users) == 0 {
		return nil, ErrNoUsers
	}

	// 2. Check plan ownership and state
	plan, err := s.planRepo.GetByID(ctx, planID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, fmt.Errorf("load plan: %w", err)
	}
	if !plan.IsOwnedBy(coachID) {
		return nil, ErrPlanNotFound
	}
	if plan.IsArchived {
		return nil, ErrPlanArchived
	}

	// 3. One row per athlete, serialized with that athlete's activations
	result := make([]domain.Assignment, 0, len(users))
	for _, userID := range users {
		assignment, err := s.assignOne(ctx, planID, userID)
		if err != nil {
			s.logger.Error("assign plan failed", "plan_id", planID.Hex(), "user_id", userID.Hex(), "error", err)
			return nil, err
		}
		result = append(result, *assignment)
	}
	return result, nil
}

func (s *assignmentService) assignOne(ctx context.Context, planID, userID primitive.ObjectID) (*domain.Assignment, error) {
	unlock, err := acquire(ctx, s.locker, metrics.LockScopeUser, lock.UserKey(userID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	existing, err := s.assignmentRepo.GetLive(ctx, planID, userID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("load live assignment: %w", err)
	}

	assignment := &domain.Assignment{
		PlanID:     planID,
		UserID:     userID,
		Status:     domain.AssignmentPending,
		AssignedAt: s.now(),
	}
	if _, err := s.assignmentRepo.Create(ctx, assignment); err != nil {
		// Another node won the insert; its row is the live one.
		if errors.Is(err, repository.ErrConflict) {
			existing, getErr := s.assignmentRepo.GetLive(ctx, planID, userID)
			if getErr != nil {
				return nil, fmt.Errorf("load live assignment after conflict: %w", getErr)
			}
			return existing, nil
		}
		return nil, fmt.Errorf("create assignment: %w", err)
	}

	metrics.AssignmentTransitionsTotal.WithLabelValues(metrics.TransitionAssigned).Inc()
	s.logger.Info("plan assigned", "assignment_id", assignment.ID.Hex(), "plan_id", planID.Hex(), "user_id", userID.Hex())
	return assignment, nil
}

// Activate makes a pending row the athlete's active plan, retiring the previous one.
func (s *assignmentService) Activate(ctx context.Context, userID, assignmentID primitive.ObjectID) (*ActivationResult, error) {
	unlock, err := acquire(ctx, s.locker, metrics.LockScopeUser, lock.UserKey(userID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	// 1. Check the row under the lock
	assignment, err := s.ownedAssignment(ctx, userID, assignmentID)
	if err != nil {
		return nil, err
	}
	if assignment.Status != domain.AssignmentPending {
		return nil, ErrAssignmentNotPending
	}
	plan, err := s.planRepo.GetByID(ctx, assignment.PlanID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, fmt.Errorf("load plan: %w", err)
	}
	if plan.IsArchived {
		return nil, ErrPlanArchived
	}

	// 2. Swap atomically
	activated, deactivated, err := s.assignmentRepo.Activate(ctx, assignmentID, userID, s.now())
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrAssignmentNotFound
		case errors.Is(err, repository.ErrConflict):
			return nil, ErrAssignmentNotPending
		}
		s.logger.Error("activate assignment failed", "assignment_id", assignmentID.Hex(), "user_id", userID.Hex(), "error", err)
		return nil, fmt.Errorf("activate assignment: %w", err)
	}

	metrics.AssignmentTransitionsTotal.WithLabelValues(metrics.TransitionActivated).Inc()
	if len(deactivated) > 0 {
		metrics.AssignmentTransitionsTotal.WithLabelValues(metrics.TransitionReplaced).Add(float64(len(deactivated)))
	}
	s.logger.Info("plan activated",
		"assignment_id", assignmentID.Hex(),
		"plan_id", activated.PlanID.Hex(),
		"user_id", userID.Hex(),
		"deactivated", len(deactivated),
	)
	return &ActivationResult{Assignment: activated, Deactivated: deactivated}, nil
}

// Decline retires a pending row without touching any other row.
func (s *assignmentService) Decline(ctx context.Context, userID, assignmentID primitive.ObjectID) (*domain.Assignment, error) {
	assignment, err := s.ownedAssignment(ctx, userID, assignmentID)
	if err != nil {
		return nil, err
	}
	if assignment.Status != domain.AssignmentPending {
		return nil, ErrAssignmentNotPending
	}

	declined, err := s.assignmentRepo.Decline(ctx, assignmentID, s.now())
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrAssignmentNotFound
		case errors.Is(err, repository.ErrConflict):
			return nil, ErrAssignmentNotPending
		}
		return nil, fmt.Errorf("decline assignment: %w", err)
	}

	metrics.AssignmentTransitionsTotal.WithLabelValues(metrics.TransitionDeclined).Inc()
	s.logger.Info("plan declined", "assignment_id", assignmentID.Hex(), "user_id", userID.Hex())
	return declined, nil
}

func (s *assignmentService) GetPendingAndActive(ctx context.Context, userID primitive.ObjectID) (*PendingAndActive, error) {
	assignments, err := s.assignmentRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}

	result := &PendingAndActive{Pending: []PlanAssignmentView{}}
	for _, a := range assignments {
		if !a.IsLive() {
			continue
		}
		plan, err := s.planRepo.GetByID(ctx, a.PlanID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("load plan: %w", err)
		}
		view := PlanAssignmentView{Assignment: a, Plan: plan}

		switch a.Status {
		case domain.AssignmentActive:
			if plan == nil || plan.IsArchived {
				continue
			}
			result.Active = &view
		case domain.AssignmentPending:
			result.Pending = append(result.Pending, view)
		}
	}
	return result, nil
}

// ownedAssignment hides rows of other athletes behind NotFound.
func (s *assignmentService) ownedAssignment(ctx context.Context, userID, assignmentID primitive.ObjectID) (*domain.Assignment, error) {
	assignment, err := s.assignmentRepo.GetByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAssignmentNotFound
		}
		return nil, fmt.Errorf("load assignment: %w", err)
	}
	if !assignment.BelongsTo(userID) {
		return nil, ErrAssignmentNotFound
	}
	return assignment, nil
}
