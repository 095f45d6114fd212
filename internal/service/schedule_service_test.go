package service

import (
	"context"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestTodayWithoutActivePlanIsRest(t *testing.T) {
	env := newTestEnv(t)

	view, err := env.schedule.Today(context.Background(), primitive.NewObjectID(), baseTime)
	if err != nil {
		t.Fatalf("Today failed: %v", err)
	}
	if !view.IsRest() || view.PlanID != nil {
		t.Errorf("Expected a plan-less rest day, got %+v", view)
	}
	if view.DayOfWeek != 0 {
		t.Errorf("Expected Monday = 0, got %d", view.DayOfWeek)
	}
}

func TestTodayFollowsActivePlan(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	squat := env.workout(t, "Squat", false)
	bench := env.workout(t, "Bench Press", false)
	userID := primitive.NewObjectID()
	plan, _ := env.activePlanFor(t, primitive.NewObjectID(), userID, day(0, squat, bench), day(3))

	monday, err := env.schedule.Today(ctx, userID, baseTime)
	if err != nil {
		t.Fatalf("Today failed: %v", err)
	}
	if monday.PlanID == nil || *monday.PlanID != plan.ID || monday.PlanName != plan.Name {
		t.Errorf("Expected plan attached, got %+v", monday)
	}
	if len(monday.Workouts) != 2 || monday.Workouts[0].ID != squat.ID || monday.Workouts[1].ID != bench.ID {
		t.Errorf("Expected [squat bench] in plan order, got %+v", monday.Workouts)
	}

	// Tuesday has no entry, Thursday has an empty one. Both are rest.
	for _, offset := range []int{1, 3} {
		view, err := env.schedule.Today(ctx, userID, baseTime.AddDate(0, 0, offset))
		if err != nil {
			t.Fatalf("Today failed: %v", err)
		}
		if !view.IsRest() || view.PlanID == nil {
			t.Errorf("Expected a rest day within the plan at offset %d, got %+v", offset, view)
		}
	}

	// Far outside the plan's date range the template still applies.
	later, err := env.schedule.Today(ctx, userID, baseTime.AddDate(0, 0, 7*20))
	if err != nil {
		t.Fatalf("Today failed: %v", err)
	}
	if len(later.Workouts) != 2 {
		t.Errorf("Expected projection without clipping, got %d workouts", len(later.Workouts))
	}
}

func TestWeekNormalizesToMonday(t *testing.T) {
	env := newTestEnv(t)
	squat := env.workout(t, "Squat", false)
	userID := primitive.NewObjectID()
	env.activePlanFor(t, primitive.NewObjectID(), userID, day(0, squat), day(6, squat))

	wednesday := baseTime.AddDate(0, 0, 2)
	view, err := env.schedule.Week(context.Background(), userID, wednesday)
	if err != nil {
		t.Fatalf("Week failed: %v", err)
	}
	if !view.WeekStart.Equal(time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Expected week to start on Monday, got %v", view.WeekStart)
	}
	if len(view.Days) != 7 {
		t.Fatalf("Expected 7 days, got %d", len(view.Days))
	}
	for i, d := range view.Days {
		if d.DayOfWeek != i || !d.Date.Equal(view.WeekStart.AddDate(0, 0, i)) {
			t.Errorf("Day %d misplaced: %+v", i, d)
		}
		wantWorkouts := 0
		if i == 0 || i == 6 {
			wantWorkouts = 1
		}
		if len(d.Workouts) != wantWorkouts {
			t.Errorf("Day %d: expected %d workouts, got %d", i, wantWorkouts, len(d.Workouts))
		}
	}
}

func TestWeekWithoutActivePlan(t *testing.T) {
	env := newTestEnv(t)

	view, err := env.schedule.Week(context.Background(), primitive.NewObjectID(), baseTime)
	if err != nil {
		t.Fatalf("Week failed: %v", err)
	}
	if view.PlanID != nil || len(view.Days) != 7 {
		t.Fatalf("Expected seven plan-less days, got %+v", view)
	}
	for _, d := range view.Days {
		if len(d.Workouts) != 0 {
			t.Errorf("Expected rest on %v", d.Date)
		}
	}
}
