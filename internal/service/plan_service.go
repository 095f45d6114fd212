package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"gamata/fitness-core/internal/domain"
	"gamata/fitness-core/internal/repository"
	"gamata/fitness-core/internal/schedule"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PlanInput carries the coach-editable fields of a plan.
type PlanInput struct {
	Name      string
	StartDate time.Time
	EndDate   time.Time
	Days      []domain.PlanDay
}

// --- Service Interface ---

// PlanService is the coach-facing Plan Store.
type PlanService interface {
	CreatePlan(ctx context.Context, coachID primitive.ObjectID, input PlanInput) (*domain.Plan, error)
	GetPlan(ctx context.Context, coachID, planID primitive.ObjectID) (*domain.Plan, error)
	ListPlans(ctx context.Context, coachID primitive.ObjectID, includeArchived bool) ([]domain.Plan, error)
	UpdatePlanDays(ctx context.Context, coachID, planID primitive.ObjectID, days []domain.PlanDay) (*domain.Plan, error)
	ArchivePlan(ctx context.Context, coachID, planID primitive.ObjectID) (*domain.Plan, error)
	UnarchivePlan(ctx context.Context, coachID, planID primitive.ObjectID) (*domain.Plan, error)
	PlanAssignments(ctx context.Context, coachID, planID primitive.ObjectID) ([]domain.Assignment, error)
}

// --- Service Implementation ---

type planService struct {
	planRepo       repository.PlanRepository
	assignmentRepo repository.AssignmentRepository
	catalog        CatalogService
	now            Clock
	logger         *slog.Logger
}

// NewPlanService creates a new instance of planService.
func NewPlanService(
	planRepo repository.PlanRepository,
	assignmentRepo repository.AssignmentRepository,
	catalog CatalogService,
	now Clock,
	logger *slog.Logger,
) PlanService {
	return &planService{
		planRepo:       planRepo,
		assignmentRepo: assignmentRepo,
		catalog:        catalog,
		now:            now,
		logger:         logger,
	}
}

// CreatePlan validates and stores a new weekly template.
func (s *planService) CreatePlan(ctx context.Context, coachID primitive.ObjectID, input PlanInput) (*domain.Plan, error) {
	// 1. Validate scalar fields
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, validationf("plan name is required")
	}
	if input.StartDate.IsZero() || input.EndDate.IsZero() {
		return nil, validationf("start date and end date are required")
	}
	start, end := schedule.Day(input.StartDate), schedule.Day(input.EndDate)
	if end.Before(start) {
		return nil, validationf("end date must not be before start date")
	}

	// 2. Validate the template against the catalog
	days, err := s.normalizeDays(ctx, input.Days)
	if err != nil {
		return nil, err
	}

	// 3. Store
	now := s.now()
	plan := &domain.Plan{
		CoachID:   coachID,
		Name:      name,
		StartDate: start,
		EndDate:   end,
		Days:      days,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := s.planRepo.Create(ctx, plan); err != nil {
		return nil, fmt.Errorf("create plan: %w", err)
	}

	s.logger.Info("plan created", "plan_id", plan.ID.Hex(), "coach_id", coachID.Hex(), "workouts", plan.WorkoutCount())
	return plan, nil
}

func (s *planService) GetPlan(ctx context.Context, coachID, planID primitive.ObjectID) (*domain.Plan, error) {
	return s.ownedPlan(ctx, coachID, planID)
}

func (s *planService) ListPlans(ctx context.Context, coachID primitive.ObjectID, includeArchived bool) ([]domain.Plan, error) {
	plans, err := s.planRepo.GetByCoachID(ctx, coachID, includeArchived)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	return plans, nil
}

// UpdatePlanDays replaces the template of a non-archived plan.
func (s *planService) UpdatePlanDays(ctx context.Context, coachID, planID primitive.ObjectID, days []domain.PlanDay) (*domain.Plan, error) {
	plan, err := s.ownedPlan(ctx, coachID, planID)
	if err != nil {
		return nil, err
	}
	if plan.IsArchived {
		return nil, ErrPlanArchived
	}

	normalized, err := s.normalizeDays(ctx, days)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if err := s.planRepo.UpdateDays(ctx, planID, normalized, now); err != nil {
		return nil, fmt.Errorf("update plan days: %w", err)
	}
	plan.Days = normalized
	plan.UpdatedAt = now
	return plan, nil
}

func (s *planService) ArchivePlan(ctx context.Context, coachID, planID primitive.ObjectID) (*domain.Plan, error) {
	return s.setArchived(ctx, coachID, planID, true)
}

func (s *planService) UnarchivePlan(ctx context.Context, coachID, planID primitive.ObjectID) (*domain.Plan, error) {
	return s.setArchived(ctx, coachID, planID, false)
}

// PlanAssignments lists every assignment of a plan, newest first.
func (s *planService) PlanAssignments(ctx context.Context, coachID, planID primitive.ObjectID) ([]domain.Assignment, error) {
	if _, err := s.ownedPlan(ctx, coachID, planID); err != nil {
		return nil, err
	}
	assignments, err := s.assignmentRepo.GetByPlanID(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("list plan assignments: %w", err)
	}
	return assignments, nil
}

func (s *planService) setArchived(ctx context.Context, coachID, planID primitive.ObjectID, archived bool) (*domain.Plan, error) {
	plan, err := s.ownedPlan(ctx, coachID, planID)
	if err != nil {
		return nil, err
	}
	if plan.IsArchived == archived {
		return plan, nil
	}

	now := s.now()
	if err := s.planRepo.SetArchived(ctx, planID, archived, now); err != nil {
		return nil, fmt.Errorf("archive plan: %w", err)
	}
	plan.IsArchived = archived
	plan.UpdatedAt = now
	if archived {
		plan.ArchivedAt = &now
	} else {
		plan.ArchivedAt = nil
	}
	s.logger.Info("plan archive state changed", "plan_id", planID.Hex(), "archived", archived)
	return plan, nil
}

// ownedPlan loads a plan and hides plans of other coaches behind NotFound.
func (s *planService) ownedPlan(ctx context.Context, coachID, planID primitive.ObjectID) (*domain.Plan, error) {
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
	return plan, nil
}

// normalizeDays validates day numbers, drops duplicate workout ids and checks every
// referenced workout exists and is not archived. Days come back sorted Monday first.
func (s *planService) normalizeDays(ctx context.Context, days []domain.PlanDay) ([]domain.PlanDay, error) {
	seenDays := make(map[int]struct{}, len(days))
	normalized := make([]domain.PlanDay, 0, len(days))
	var allIDs []primitive.ObjectID

	for _, day := range days {
		if day.DayOfWeek < 0 || day.DayOfWeek >= schedule.DaysPerWeek {
			return nil, validationf("day_of_week must be between 0 and 6, got %d", day.DayOfWeek)
		}
		if _, dup := seenDays[day.DayOfWeek]; dup {
			return nil, validationf("day_of_week %d appears more than once", day.DayOfWeek)
		}
		seenDays[day.DayOfWeek] = struct{}{}

		ids := dedupeIDs(day.WorkoutIDs)
		normalized = append(normalized, domain.PlanDay{DayOfWeek: day.DayOfWeek, WorkoutIDs: ids})
		allIDs = append(allIDs, ids...)
	}
	sort.Slice(normalized, func(i, j int) bool { return normalized[i].DayOfWeek < normalized[j].DayOfWeek })

	allIDs = dedupeIDs(allIDs)
	if len(allIDs) == 0 {
		return normalized, nil
	}
	workouts, err := s.catalog.GetWorkouts(ctx, allIDs)
	if err != nil {
		return nil, err
	}
	index := workoutIndex(workouts)
	for _, id := range allIDs {
		w, ok := index[id]
		if !ok {
			return nil, fmt.Errorf("workout %s: %w", id.Hex(), ErrWorkoutNotFound)
		}
		if w.IsArchived {
			return nil, fmt.Errorf("workout %s: %w", id.Hex(), ErrWorkoutArchived)
		}
	}
	return normalized, nil
}
