package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"gamata/fitness-core/internal/domain"
	"gamata/fitness-core/internal/schedule"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Default reporting windows when the caller leaves a bound open.
const (
	defaultProgressDays   = 30
	defaultWeeklyDays     = 56
	defaultMonthlyBuckets = 6
)

// FrequencyPeriod is the bucket size of a frequency report.
type FrequencyPeriod string

const (
	FrequencyWeekly  FrequencyPeriod = "weekly"
	FrequencyMonthly FrequencyPeriod = "monthly"
)

// ParseFrequencyPeriod accepts "weekly" or "monthly" in any case. Empty means weekly.
func ParseFrequencyPeriod(raw string) (FrequencyPeriod, error) {
	switch p := FrequencyPeriod(strings.ToLower(strings.TrimSpace(raw))); p {
	case "":
		return FrequencyWeekly, nil
	case FrequencyWeekly, FrequencyMonthly:
		return p, nil
	}
	return "", validationf("period must be either weekly or monthly")
}

// MuscleGroupTotal aggregates completed work for one muscle group.
type MuscleGroupTotal struct {
	MuscleGroup   string
	TotalVolume   decimal.Decimal // weight x sets x reps, or seconds when no weight is logged
	TotalDuration int             // seconds
	TotalSessions int
}

// MuscleGroupProgress covers the inclusive day range From..To.
type MuscleGroupProgress struct {
	From   time.Time
	To     time.Time
	Groups []MuscleGroupTotal
}

// FrequencyBucket counts completed sessions between Start and End, both inclusive days.
type FrequencyBucket struct {
	Label    string
	Start    time.Time
	End      time.Time
	Sessions int
}

type FrequencyProgress struct {
	Period        FrequencyPeriod
	From          time.Time
	To            time.Time
	TotalSessions int
	Buckets       []FrequencyBucket
}

// MuscleGroupProgress sums volume, duration and session count per muscle group over
// completed sessions. A zero bound defaults to today (to) or 30 days back (from).
func (s *statsService) MuscleGroupProgress(ctx context.Context, userID primitive.ObjectID, from, to time.Time) (*MuscleGroupProgress, error) {
	// 1. Resolve the window
	if to.IsZero() {
		to = s.now()
	}
	to = schedule.Day(to)
	if from.IsZero() {
		from = to.AddDate(0, 0, -(defaultProgressDays - 1))
	}
	from = schedule.Day(from)
	if to.Before(from) {
		return nil, validationf("from must be on or before to")
	}

	// 2. Load sessions and their workouts
	sessions, err := s.completed(ctx, userID, from, to.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	workoutIDs := make([]primitive.ObjectID, 0, len(sessions))
	for _, session := range sessions {
		workoutIDs = append(workoutIDs, session.WorkoutID)
	}
	workouts, err := s.catalog.GetWorkouts(ctx, workoutIDs)
	if err != nil {
		return nil, err
	}
	index := workoutIndex(workouts)

	// 3. Aggregate per group, keyed case-insensitively
	totals := make(map[string]*MuscleGroupTotal)
	for _, session := range sessions {
		workout, ok := index[session.WorkoutID]
		if !ok || len(workout.MuscleGroups) == 0 {
			continue
		}
		volume, duration := sessionVolume(session)
		seen := make(map[string]bool, len(workout.MuscleGroups))
		for _, group := range workout.MuscleGroups {
			name := strings.TrimSpace(group)
			key := strings.ToLower(name)
			if name == "" || seen[key] {
				continue
			}
			seen[key] = true

			total, ok := totals[key]
			if !ok {
				total = &MuscleGroupTotal{MuscleGroup: name, TotalVolume: decimal.Zero}
				totals[key] = total
			}
			total.TotalVolume = total.TotalVolume.Add(volume)
			total.TotalDuration += duration
			total.TotalSessions++
		}
	}

	result := &MuscleGroupProgress{From: from, To: to, Groups: make([]MuscleGroupTotal, 0, len(totals))}
	for _, total := range totals {
		total.TotalVolume = total.TotalVolume.Round(2)
		result.Groups = append(result.Groups, *total)
	}
	sort.Slice(result.Groups, func(i, j int) bool {
		a, b := result.Groups[i], result.Groups[j]
		if cmp := a.TotalVolume.Cmp(b.TotalVolume); cmp != 0 {
			return cmp > 0
		}
		return strings.ToLower(a.MuscleGroup) < strings.ToLower(b.MuscleGroup)
	})
	return result, nil
}

// Frequency counts completed sessions per week (Monday buckets) or calendar month.
// The first bucket starts on the Monday or first of the month at or before from; the
// last bucket is cut at to.
func (s *statsService) Frequency(ctx context.Context, userID primitive.ObjectID, period FrequencyPeriod, from, to time.Time) (*FrequencyProgress, error) {
	if period != FrequencyWeekly && period != FrequencyMonthly {
		return nil, validationf("period must be either weekly or monthly")
	}

	// 1. Resolve the window
	if to.IsZero() {
		to = s.now()
	}
	to = schedule.Day(to)
	if from.IsZero() {
		if period == FrequencyMonthly {
			from = monthStart(to).AddDate(0, -(defaultMonthlyBuckets - 1), 0)
		} else {
			from = to.AddDate(0, 0, -(defaultWeeklyDays - 1))
		}
	}
	from = schedule.Day(from)
	if to.Before(from) {
		return nil, validationf("from must be on or before to")
	}

	// 2. Lay out buckets
	var buckets []FrequencyBucket
	if period == FrequencyMonthly {
		buckets = monthlyBuckets(from, to)
	} else {
		buckets = weeklyBuckets(from, to)
	}

	// 3. Count sessions into them
	sessions, err := s.completed(ctx, userID, from, to.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	result := &FrequencyProgress{Period: period, From: from, To: to, Buckets: buckets}
	for _, session := range sessions {
		day := schedule.Day(*session.CompletedAt)
		for i := range result.Buckets {
			if !day.Before(result.Buckets[i].Start) && !day.After(result.Buckets[i].End) {
				result.Buckets[i].Sessions++
				result.TotalSessions++
				break
			}
		}
	}
	return result, nil
}

// sessionVolume returns the session's volume and the duration of its weightless logs.
// Missing sets or reps count as one.
func sessionVolume(session domain.Session) (decimal.Decimal, int) {
	volume := decimal.Zero
	duration := 0
	for _, log := range session.Logs {
		switch {
		case log.Weight != nil:
			sets, reps := 1, 1
			if log.Sets != nil {
				sets = *log.Sets
			}
			if log.Reps != nil {
				reps = *log.Reps
			}
			volume = volume.Add(log.Weight.Mul(decimal.NewFromInt(int64(sets * reps))))
		case log.Duration != nil:
			volume = volume.Add(decimal.NewFromInt(int64(*log.Duration)))
			duration += *log.Duration
		}
	}
	return volume, duration
}

func weeklyBuckets(from, to time.Time) []FrequencyBucket {
	var buckets []FrequencyBucket
	for start := schedule.WeekStart(from); !start.After(to); start = start.AddDate(0, 0, schedule.DaysPerWeek) {
		end := start.AddDate(0, 0, schedule.DaysPerWeek-1)
		if end.After(to) {
			end = to
		}
		buckets = append(buckets, FrequencyBucket{Label: "Week of " + start.Format("Jan 02"), Start: start, End: end})
	}
	return buckets
}

func monthlyBuckets(from, to time.Time) []FrequencyBucket {
	var buckets []FrequencyBucket
	for start := monthStart(from); !start.After(to); start = start.AddDate(0, 1, 0) {
		end := start.AddDate(0, 1, -1)
		if end.After(to) {
			end = to
		}
		buckets = append(buckets, FrequencyBucket{Label: start.Format("Jan 2006"), Start: start, End: end})
	}
	return buckets
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
