package service

import (
	"context"
	"time"

	"gamata/fitness-core/internal/domain"
	"gamata/fitness-core/internal/repository"
	"gamata/fitness-core/internal/schedule"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TodayView is the athlete's scheduled work for one day. No workouts means rest.
type TodayView struct {
	Date      time.Time
	DayOfWeek int
	PlanID    *primitive.ObjectID
	PlanName  string
	Workouts  []domain.Workout
}

// IsRest reports whether nothing is scheduled.
func (v *TodayView) IsRest() bool {
	return len(v.Workouts) == 0
}

// WeekDay is one column of a WeekView.
type WeekDay struct {
	Date      time.Time
	DayOfWeek int
	Workouts  []domain.Workout
}

// WeekView is the athlete's Monday-to-Sunday schedule.
type WeekView struct {
	WeekStart time.Time
	PlanID    *primitive.ObjectID
	PlanName  string
	Days      []WeekDay
}

// --- Service Interface ---

// ScheduleService projects the athlete's active plan onto the calendar.
type ScheduleService interface {
	Today(ctx context.Context, userID primitive.ObjectID, date time.Time) (*TodayView, error)
	Week(ctx context.Context, userID primitive.ObjectID, weekStart time.Time) (*WeekView, error)
}

// --- Service Implementation ---

type scheduleService struct {
	assignmentRepo repository.AssignmentRepository
	planRepo       repository.PlanRepository
	catalog        CatalogService
}

// NewScheduleService creates a new instance of scheduleService.
func NewScheduleService(assignmentRepo repository.AssignmentRepository, planRepo repository.PlanRepository, catalog CatalogService) ScheduleService {
	return &scheduleService{
		assignmentRepo: assignmentRepo,
		planRepo:       planRepo,
		catalog:        catalog,
	}
}

func (s *scheduleService) Today(ctx context.Context, userID primitive.ObjectID, date time.Time) (*TodayView, error) {
	_, plan, err := activePlan(ctx, s.assignmentRepo, s.planRepo, userID)
	if err != nil {
		return nil, err
	}

	slot, err := schedule.Today(plan, date)
	if err != nil {
		return nil, err
	}
	view := &TodayView{Date: slot.Date, DayOfWeek: slot.DayOfWeek, Workouts: []domain.Workout{}}
	if plan == nil {
		return view, nil
	}
	view.PlanID = &plan.ID
	view.PlanName = plan.Name

	if !slot.IsRest() {
		workouts, err := s.catalog.GetWorkouts(ctx, slot.WorkoutIDs)
		if err != nil {
			return nil, err
		}
		view.Workouts = workouts
	}
	return view, nil
}

func (s *scheduleService) Week(ctx context.Context, userID primitive.ObjectID, weekStart time.Time) (*WeekView, error) {
	_, plan, err := activePlan(ctx, s.assignmentRepo, s.planRepo, userID)
	if err != nil {
		return nil, err
	}

	slots, err := schedule.Week(plan, weekStart)
	if err != nil {
		return nil, err
	}

	// Hydrate every distinct workout once.
	var ids []primitive.ObjectID
	for _, slot := range slots {
		ids = append(ids, slot.WorkoutIDs...)
	}
	index := map[primitive.ObjectID]domain.Workout{}
	if len(ids) > 0 {
		workouts, err := s.catalog.GetWorkouts(ctx, ids)
		if err != nil {
			return nil, err
		}
		index = workoutIndex(workouts)
	}

	view := &WeekView{WeekStart: schedule.WeekStart(weekStart), Days: make([]WeekDay, len(slots))}
	if plan != nil {
		view.PlanID = &plan.ID
		view.PlanName = plan.Name
	}
	for i, slot := range slots {
		day := WeekDay{Date: slot.Date, DayOfWeek: slot.DayOfWeek, Workouts: []domain.Workout{}}
		for _, id := range slot.WorkoutIDs {
			if w, ok := index[id]; ok {
				day.Workouts = append(day.Workouts, w)
			}
		}
		view.Days[i] = day
	}
	return view, nil
}
