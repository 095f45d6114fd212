// Package schedule projects a weekly plan template onto calendar days.
// Calendar days are UTC; weeks start on Monday.
package schedule

import (
	"fmt"
	"time"

	"gamata/fitness-core/internal/domain"

	"github.com/teambition/rrule-go"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DaysPerWeek is the length of a plan template.
const DaysPerWeek = 7

var rruleWeekdays = [DaysPerWeek]rrule.Weekday{rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA, rrule.SU}

// Slot is one calendar day of a projected plan. No workouts means a rest day.
type Slot struct {
	Date       time.Time
	DayOfWeek  int
	WorkoutIDs []primitive.ObjectID
}

// IsRest reports whether nothing is scheduled on the slot's day.
func (s Slot) IsRest() bool {
	return len(s.WorkoutIDs) == 0
}

// Day truncates t to midnight UTC of its calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Weekday maps t onto the plan's numbering, Monday = 0 through Sunday = 6.
func Weekday(t time.Time) int {
	return (int(t.UTC().Weekday()) + 6) % DaysPerWeek
}

// WeekStart returns the Monday on or before t.
func WeekStart(t time.Time) time.Time {
	day := Day(t)
	return day.AddDate(0, 0, -Weekday(day))
}

// Occurrences lists the plan's workout days in [from, to], both inclusive.
// The plan's own start and end dates do not clip the result.
func Occurrences(plan *domain.Plan, from, to time.Time) ([]Slot, error) {
	from, to = Day(from), Day(to)
	if plan == nil || to.Before(from) {
		return nil, nil
	}

	var weekdays []rrule.Weekday
	for dow := 0; dow < DaysPerWeek; dow++ {
		if len(plan.WorkoutsOn(dow)) > 0 {
			weekdays = append(weekdays, rruleWeekdays[dow])
		}
	}
	if len(weekdays) == 0 {
		return nil, nil
	}

	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.WEEKLY,
		Wkst:      rrule.MO,
		Byweekday: weekdays,
		Dtstart:   from,
		Until:     to,
	})
	if err != nil {
		return nil, fmt.Errorf("build weekly rule: %w", err)
	}

	dates := rule.All()
	slots := make([]Slot, 0, len(dates))
	for _, date := range dates {
		date = Day(date)
		dow := Weekday(date)
		slots = append(slots, Slot{Date: date, DayOfWeek: dow, WorkoutIDs: plan.WorkoutsOn(dow)})
	}
	return slots, nil
}

// Today returns the slot for the calendar day containing date.
func Today(plan *domain.Plan, date time.Time) (Slot, error) {
	day := Day(date)
	slot := Slot{Date: day, DayOfWeek: Weekday(day)}
	occurrences, err := Occurrences(plan, day, day)
	if err != nil {
		return slot, err
	}
	if len(occurrences) > 0 {
		slot.WorkoutIDs = occurrences[0].WorkoutIDs
	}
	return slot, nil
}

// Week returns seven slots starting on the Monday on or before weekStart.
func Week(plan *domain.Plan, weekStart time.Time) ([]Slot, error) {
	monday := WeekStart(weekStart)
	slots := make([]Slot, DaysPerWeek)
	for i := range slots {
		slots[i] = Slot{Date: monday.AddDate(0, 0, i), DayOfWeek: i}
	}

	occurrences, err := Occurrences(plan, monday, monday.AddDate(0, 0, DaysPerWeek-1))
	if err != nil {
		return nil, err
	}
	for _, occ := range occurrences {
		slots[occ.DayOfWeek].WorkoutIDs = occ.WorkoutIDs
	}
	return slots, nil
}

// ScheduledCount is the number of workout slots across the given slots.
func ScheduledCount(slots []Slot) int {
	n := 0
	for _, s := range slots {
		n += len(s.WorkoutIDs)
	}
	return n
}
