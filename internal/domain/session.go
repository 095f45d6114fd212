package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SessionType records why a workout was performed.
type SessionType string

const (
	SessionAssigned SessionType = "assigned" // Scheduled by the active plan
	SessionSwap     SessionType = "swap"     // Replaces a scheduled workout of the active plan
	SessionAdhoc    SessionType = "adhoc"    // Outside any plan
)

// Valid reports whether t is a known session type.
func (t SessionType) Valid() bool {
	switch t {
	case SessionAssigned, SessionSwap, SessionAdhoc:
		return true
	}
	return false
}

// RequiresPlan reports whether sessions of this type must reference the active plan.
func (t SessionType) RequiresPlan() bool {
	return t == SessionAssigned || t == SessionSwap
}

// ExerciseLog is the recorded result of a session's exercise.
type ExerciseLog struct {
	ID        primitive.ObjectID `bson:"_id" json:"id"`
	Sets      *int               `bson:"sets,omitempty" json:"sets,omitempty"`
	Reps      *int               `bson:"reps,omitempty" json:"reps,omitempty"`
	Weight    *decimal.Decimal   `bson:"weight,omitempty" json:"weight,omitempty"`
	Duration  *int               `bson:"duration,omitempty" json:"duration,omitempty"` // seconds
	Notes     *string            `bson:"notes,omitempty" json:"notes,omitempty"`
	LoggedAt  time.Time          `bson:"loggedAt" json:"loggedAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// LogFields is a partial log write. Nil fields are left unchanged.
type LogFields struct {
	Sets     *int
	Reps     *int
	Weight   *decimal.Decimal
	Duration *int
	Notes    *string
}

// IsEmpty reports whether no field is set.
func (f LogFields) IsEmpty() bool {
	return f.Sets == nil && f.Reps == nil && f.Weight == nil && f.Duration == nil && f.Notes == nil
}

// Normalized trims notes; blank notes count as unset.
func (f LogFields) Normalized() LogFields {
	if f.Notes != nil {
		trimmed := strings.TrimSpace(*f.Notes)
		if trimmed == "" {
			f.Notes = nil
		} else {
			f.Notes = &trimmed
		}
	}
	return f
}

// Apply copies every set field onto the log. Repeating the same Apply is a no-op.
func (l *ExerciseLog) Apply(f LogFields) {
	if f.Sets != nil {
		v := *f.Sets
		l.Sets = &v
	}
	if f.Reps != nil {
		v := *f.Reps
		l.Reps = &v
	}
	if f.Weight != nil {
		v := *f.Weight
		l.Weight = &v
	}
	if f.Duration != nil {
		v := *f.Duration
		l.Duration = &v
	}
	if f.Notes != nil {
		v := *f.Notes
		l.Notes = &v
	}
}

// Session is one athlete's execution record of a single workout.
type Session struct {
	ID          primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	UserID      primitive.ObjectID  `bson:"userId" json:"userId"`
	WorkoutID   primitive.ObjectID  `bson:"workoutId" json:"workoutId"`
	PlanID      *primitive.ObjectID `bson:"planId,omitempty" json:"planId,omitempty"`
	SessionType SessionType         `bson:"sessionType" json:"sessionType"`
	CompletedAt *time.Time          `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
	Logs        []ExerciseLog       `bson:"logs" json:"logs"`
	CreatedAt   time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time           `bson:"updatedAt" json:"updatedAt"`
}

// IsCompleted reports whether the session reached its terminal state.
func (s *Session) IsCompleted() bool {
	return s.CompletedAt != nil
}

// PrimaryLog returns the session's single log, or nil before the first add.
func (s *Session) PrimaryLog() *ExerciseLog {
	if len(s.Logs) == 0 {
		return nil
	}
	return &s.Logs[0]
}

// FindLog returns the log with the given id, or nil.
func (s *Session) FindLog(id primitive.ObjectID) *ExerciseLog {
	for i := range s.Logs {
		if s.Logs[i].ID == id {
			return &s.Logs[i]
		}
	}
	return nil
}
