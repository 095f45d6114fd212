package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"gamata/fitness-core/internal/domain"
	"gamata/fitness-core/internal/repository"
	"gamata/fitness-core/internal/schedule"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// WeeklyCompletion compares completed plan sessions with scheduled slots for one week.
type WeeklyCompletion struct {
	WeekStart time.Time
	Scheduled int
	Completed int
	Percent   int // 0..100
}

// PersonalRecord is the heaviest logged weight for one workout name.
type PersonalRecord struct {
	WorkoutID   primitive.ObjectID
	WorkoutName string
	Weight      decimal.Decimal
	Reps        *int
	SessionID   primitive.ObjectID
	AchievedAt  time.Time
}

// QuickStats is the athlete dashboard summary.
type QuickStats struct {
	SessionsThisWeek int
	CompletedToday   int
	TotalCompleted   int
	CurrentStreak    int
}

// --- Service Interface ---

// StatsService derives progress numbers from completed sessions.
type StatsService interface {
	// Streak counts consecutive calendar days, ending today, with a completed session.
	Streak(ctx context.Context, userID primitive.ObjectID) (int, error)
	WeeklyCompletion(ctx context.Context, userID primitive.ObjectID, weekStart time.Time) (*WeeklyCompletion, error)
	// PersonalRecord matches the workout name case-insensitively. Ties on weight go to the most recent session.
	PersonalRecord(ctx context.Context, userID primitive.ObjectID, workoutName string) (*PersonalRecord, error)
	PersonalRecords(ctx context.Context, userID primitive.ObjectID) ([]PersonalRecord, error)
	QuickStats(ctx context.Context, userID primitive.ObjectID) (*QuickStats, error)
	MuscleGroupProgress(ctx context.Context, userID primitive.ObjectID, from, to time.Time) (*MuscleGroupProgress, error)
	Frequency(ctx context.Context, userID primitive.ObjectID, period FrequencyPeriod, from, to time.Time) (*FrequencyProgress, error)
}

// --- Service Implementation ---

type statsService struct {
	sessionRepo    repository.SessionRepository
	assignmentRepo repository.AssignmentRepository
	planRepo       repository.PlanRepository
	catalog        CatalogService
	now            Clock
}

// NewStatsService creates a new instance of statsService.
func NewStatsService(
	sessionRepo repository.SessionRepository,
	assignmentRepo repository.AssignmentRepository,
	planRepo repository.PlanRepository,
	catalog CatalogService,
	now Clock,
) StatsService {
	return &statsService{
		sessionRepo:    sessionRepo,
		assignmentRepo: assignmentRepo,
		planRepo:       planRepo,
		catalog:        catalog,
		now:            now,
	}
}

func (s *statsService) Streak(ctx context.Context, userID primitive.ObjectID) (int, error) {
	today := schedule.Day(s.now())
	sessions, err := s.completed(ctx, userID, time.Time{}, today.AddDate(0, 0, 1))
	if err != nil {
		return 0, err
	}
	return streakEndingOn(today, sessions), nil
}

func (s *statsService) WeeklyCompletion(ctx context.Context, userID primitive.ObjectID, weekStart time.Time) (*WeeklyCompletion, error) {
	monday := schedule.WeekStart(weekStart)
	result := &WeeklyCompletion{WeekStart: monday}

	// 1. Scheduled slots of the active plan
	_, plan, err := activePlan(ctx, s.assignmentRepo, s.planRepo, userID)
	if err != nil {
		return nil, err
	}
	slots, err := schedule.Week(plan, monday)
	if err != nil {
		return nil, err
	}
	result.Scheduled = schedule.ScheduledCount(slots)
	if result.Scheduled == 0 {
		return result, nil
	}

	// 2. Completed sessions of this plan in the week
	sessions, err := s.completed(ctx, userID, monday, monday.AddDate(0, 0, schedule.DaysPerWeek))
	if err != nil {
		return nil, err
	}
	for _, session := range sessions {
		if session.SessionType.RequiresPlan() && session.PlanID != nil && *session.PlanID == plan.ID {
			result.Completed++
		}
	}

	result.Percent = result.Completed * 100 / result.Scheduled
	if result.Percent > 100 {
		result.Percent = 100
	}
	return result, nil
}

func (s *statsService) PersonalRecord(ctx context.Context, userID primitive.ObjectID, workoutName string) (*PersonalRecord, error) {
	name := strings.TrimSpace(workoutName)
	if name == "" {
		return nil, validationf("workout name is required")
	}

	records, err := s.personalRecords(ctx, userID)
	if err != nil {
		return nil, err
	}
	record, ok := records[strings.ToLower(name)]
	if !ok {
		return nil, ErrNoPersonalRecord
	}
	return record, nil
}

// PersonalRecords lists the best weight per workout name, sorted by name.
func (s *statsService) PersonalRecords(ctx context.Context, userID primitive.ObjectID) ([]PersonalRecord, error) {
	records, err := s.personalRecords(ctx, userID)
	if err != nil {
		return nil, err
	}
	list := make([]PersonalRecord, 0, len(records))
	for _, r := range records {
		list = append(list, *r)
	}
	sort.Slice(list, func(i, j int) bool {
		return strings.ToLower(list[i].WorkoutName) < strings.ToLower(list[j].WorkoutName)
	})
	return list, nil
}

func (s *statsService) QuickStats(ctx context.Context, userID primitive.ObjectID) (*QuickStats, error) {
	today := schedule.Day(s.now())
	monday := schedule.WeekStart(today)

	sessions, err := s.completed(ctx, userID, time.Time{}, today.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}

	stats := &QuickStats{
		TotalCompleted: len(sessions),
		CurrentStreak:  streakEndingOn(today, sessions),
	}
	for _, session := range sessions {
		day := schedule.Day(*session.CompletedAt)
		if !day.Before(monday) {
			stats.SessionsThisWeek++
		}
		if day.Equal(today) {
			stats.CompletedToday++
		}
	}
	return stats, nil
}

// personalRecords keys the best record per lower-cased workout name. Sessions arrive
// newest first, so only a strictly heavier weight replaces a record.
func (s *statsService) personalRecords(ctx context.Context, userID primitive.ObjectID) (map[string]*PersonalRecord, error) {
	sessions, err := s.completed(ctx, userID, time.Time{}, time.Time{})
	if err != nil {
		return nil, err
	}

	var workoutIDs []primitive.ObjectID
	for _, session := range sessions {
		workoutIDs = append(workoutIDs, session.WorkoutID)
	}
	workouts, err := s.catalog.GetWorkouts(ctx, workoutIDs)
	if err != nil {
		return nil, err
	}
	index := workoutIndex(workouts)

	records := make(map[string]*PersonalRecord)
	for _, session := range sessions {
		primary := session.PrimaryLog()
		if primary == nil || primary.Weight == nil {
			continue
		}
		workout, ok := index[session.WorkoutID]
		if !ok {
			continue
		}

		key := strings.ToLower(strings.TrimSpace(workout.Name))
		if best, seen := records[key]; seen && !primary.Weight.GreaterThan(best.Weight) {
			continue
		}
		records[key] = &PersonalRecord{
			WorkoutID:   workout.ID,
			WorkoutName: workout.Name,
			Weight:      *primary.Weight,
			Reps:        primary.Reps,
			SessionID:   session.ID,
			AchievedAt:  *session.CompletedAt,
		}
	}
	return records, nil
}

func (s *statsService) completed(ctx context.Context, userID primitive.ObjectID, from, to time.Time) ([]domain.Session, error) {
	sessions, err := s.sessionRepo.ListCompleted(ctx, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list completed sessions: %w", err)
	}
	return sessions, nil
}

// streakEndingOn counts consecutive days back from today that hold a completed session.
func streakEndingOn(today time.Time, sessions []domain.Session) int {
	days := make(map[time.Time]struct{}, len(sessions))
	for _, session := range sessions {
		if session.CompletedAt != nil {
			days[schedule.Day(*session.CompletedAt)] = struct{}{}
		}
	}

	streak := 0
	for day := today; ; day = day.AddDate(0, 0, -1) {
		if _, ok := days[day]; !ok {
			return streak
		}
		streak++
	}
}
