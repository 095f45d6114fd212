package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AssignmentStatus type for assignment lifecycle
type AssignmentStatus string

const (
	AssignmentPending  AssignmentStatus = "pending"  // Offered by the coach, not yet accepted
	AssignmentActive   AssignmentStatus = "active"   // The athlete's current plan; at most one per athlete
	AssignmentInactive AssignmentStatus = "inactive" // Declined or replaced; terminal
)

// Assignment binds one Plan to one athlete.
type Assignment struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	PlanID        primitive.ObjectID `bson:"planId" json:"planId"`
	UserID        primitive.ObjectID `bson:"userId" json:"userId"`
	Status        AssignmentStatus   `bson:"status" json:"status"`
	AssignedAt    time.Time          `bson:"assignedAt" json:"assignedAt"`
	ActivatedAt   *time.Time         `bson:"activatedAt,omitempty" json:"activatedAt,omitempty"`
	DeactivatedAt *time.Time         `bson:"deactivatedAt,omitempty" json:"deactivatedAt,omitempty"`
}

// IsLive reports whether the row still blocks a new assignment of the same plan.
func (a *Assignment) IsLive() bool {
	return a.Status == AssignmentPending || a.Status == AssignmentActive
}

// BelongsTo reports whether the assignment is for the given athlete.
func (a *Assignment) BelongsTo(userID primitive.ObjectID) bool {
	return a.UserID == userID
}
