// internal/domain/plan.go
package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PlanDay is one weekday of a plan template. DayOfWeek runs Monday = 0 to Sunday = 6.
// An empty WorkoutIDs list is a rest day.
type PlanDay struct {
	DayOfWeek  int                  `bson:"dayOfWeek" json:"dayOfWeek"`
	WorkoutIDs []primitive.ObjectID `bson:"workoutIds" json:"workoutIds"`
}

// Plan is a coach-authored weekly template.
type Plan struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CoachID    primitive.ObjectID `bson:"coachId" json:"coachId"` // Owner
	Name       string             `bson:"name" json:"name"`
	StartDate  time.Time          `bson:"startDate" json:"startDate"`
	EndDate    time.Time          `bson:"endDate" json:"endDate"`
	IsArchived bool               `bson:"isArchived" json:"isArchived"`
	ArchivedAt *time.Time         `bson:"archivedAt,omitempty" json:"archivedAt,omitempty"`
	Days       []PlanDay          `bson:"days" json:"days"`
	CreatedAt  time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// WorkoutsOn returns the workout ids scheduled on the given weekday (Monday = 0).
// Days without an entry are rest days.
func (p *Plan) WorkoutsOn(dayOfWeek int) []primitive.ObjectID {
	for _, d := range p.Days {
		if d.DayOfWeek == dayOfWeek {
			return d.WorkoutIDs
		}
	}
	return nil
}

// ContainsWorkout reports whether the workout appears on any day of the plan.
func (p *Plan) ContainsWorkout(id primitive.ObjectID) bool {
	for _, d := range p.Days {
		for _, w := range d.WorkoutIDs {
			if w == id {
				return true
			}
		}
	}
	return false
}

// WorkoutCount is the number of workout slots in one week of the template.
func (p *Plan) WorkoutCount() int {
	n := 0
	for _, d := range p.Days {
		n += len(d.WorkoutIDs)
	}
	return n
}

// IsOwnedBy reports whether the coach authored the plan.
func (p *Plan) IsOwnedBy(coachID primitive.ObjectID) bool {
	return p.CoachID == coachID
}
