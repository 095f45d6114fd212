package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"gamata/fitness-core/internal/domain"
	"gamata/fitness-core/internal/lock"
	"gamata/fitness-core/internal/repository/sqlite"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var baseTime = time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC) // Monday

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type testEnv struct {
	db    *sqlite.DB
	clock *testClock

	catalog     CatalogService
	plans       PlanService
	assignments AssignmentService
	schedule    ScheduleService
	sessions    SessionService
	stats       StatsService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := sqlite.Open(t.TempDir() + "/test.db")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	if err := db.Init(); err != nil {
		t.Fatalf("Failed to init db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	clock := &testClock{now: baseTime}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	locker := lock.NewLocalLocker()

	workoutRepo := sqlite.NewWorkoutRepository(db)
	planRepo := sqlite.NewPlanRepository(db)
	assignmentRepo := sqlite.NewAssignmentRepository(db)
	sessionRepo := sqlite.NewSessionRepository(db)

	catalog := NewCatalogService(workoutRepo, nil, 0)
	return &testEnv{
		db:          db,
		clock:       clock,
		catalog:     catalog,
		plans:       NewPlanService(planRepo, assignmentRepo, catalog, clock.Now, logger),
		assignments: NewAssignmentService(assignmentRepo, planRepo, locker, clock.Now, logger),
		schedule:    NewScheduleService(assignmentRepo, planRepo, catalog),
		sessions:    NewSessionService(sessionRepo, assignmentRepo, planRepo, catalog, locker, clock.Now, logger),
		stats:       NewStatsService(sessionRepo, assignmentRepo, planRepo, catalog, clock.Now),
	}
}

func (e *testEnv) workout(t *testing.T, name string, archived bool) *domain.Workout {
	t.Helper()
	w := &domain.Workout{Name: name, Type: domain.WorkoutTypeStrength, IsArchived: archived}
	if _, err := sqlite.NewWorkoutRepository(e.db).Create(context.Background(), w); err != nil {
		t.Fatalf("Failed to create workout: %v", err)
	}
	return w
}

// workoutIn creates a catalog workout that trains the given muscle groups.
func (e *testEnv) workoutIn(t *testing.T, name string, workoutType domain.WorkoutType, groups ...string) *domain.Workout {
	t.Helper()
	w := &domain.Workout{Name: name, Type: workoutType, MuscleGroups: groups}
	if _, err := sqlite.NewWorkoutRepository(e.db).Create(context.Background(), w); err != nil {
		t.Fatalf("Failed to create workout: %v", err)
	}
	return w
}

func (e *testEnv) plan(t *testing.T, coachID primitive.ObjectID, days ...domain.PlanDay) *domain.Plan {
	t.Helper()
	plan, err := e.plans.CreatePlan(context.Background(), coachID, PlanInput{
		Name:      "Base block",
		StartDate: baseTime,
		EndDate:   baseTime.AddDate(0, 0, 27),
		Days:      days,
	})
	if err != nil {
		t.Fatalf("Failed to create plan: %v", err)
	}
	return plan
}

// activePlanFor assigns and activates a new plan for the athlete.
func (e *testEnv) activePlanFor(t *testing.T, coachID, userID primitive.ObjectID, days ...domain.PlanDay) (*domain.Plan, *domain.Assignment) {
	t.Helper()
	ctx := context.Background()
	plan := e.plan(t, coachID, days...)
	rows, err := e.assignments.Assign(ctx, coachID, plan.ID, []primitive.ObjectID{userID})
	if err != nil {
		t.Fatalf("Failed to assign plan: %v", err)
	}
	result, err := e.assignments.Activate(ctx, userID, rows[0].ID)
	if err != nil {
		t.Fatalf("Failed to activate plan: %v", err)
	}
	return plan, result.Assignment
}

// completedSession opens, logs and completes one session at the given time.
func (e *testEnv) completedSession(t *testing.T, userID primitive.ObjectID, input CreateSessionInput, at time.Time, fields domain.LogFields) *domain.Session {
	t.Helper()
	ctx := context.Background()
	e.clock.Set(at)

	session, err := e.sessions.Create(ctx, userID, input)
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}
	if !fields.IsEmpty() {
		if _, err := e.sessions.AddLog(ctx, userID, session.ID, fields); err != nil {
			t.Fatalf("Failed to add log: %v", err)
		}
	}
	completed, err := e.sessions.Complete(ctx, userID, session.ID)
	if err != nil {
		t.Fatalf("Failed to complete session: %v", err)
	}
	return completed
}

func day(dow int, workouts ...*domain.Workout) domain.PlanDay {
	d := domain.PlanDay{DayOfWeek: dow, WorkoutIDs: []primitive.ObjectID{}}
	for _, w := range workouts {
		d.WorkoutIDs = append(d.WorkoutIDs, w.ID)
	}
	return d
}

func intRef(v int) *int { return &v }

func stringRef(v string) *string { return &v }
