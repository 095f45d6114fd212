package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gamata/fitness-core/internal/domain"
	"gamata/fitness-core/internal/lock"
	"gamata/fitness-core/internal/metrics"
	"gamata/fitness-core/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Clock returns the current instant. Services take one so tests can pin "now".
type Clock func() time.Time

// SystemClock is the wall clock in UTC.
func SystemClock() time.Time {
	return time.Now().UTC()
}

func acquire(ctx context.Context, locker lock.Locker, scope, key string) (lock.Unlock, error) {
	start := time.Now()
	unlock, err := locker.Lock(ctx, key)
	metrics.LockWaitDuration.WithLabelValues(scope).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("acquire %s lock: %w", scope, err)
	}
	return unlock, nil
}

// activePlan resolves the athlete's active assignment and its plan. Both are nil when the
// athlete has none or the plan has been archived since activation.
func activePlan(ctx context.Context, assignments repository.AssignmentRepository, plans repository.PlanRepository, userID primitive.ObjectID) (*domain.Assignment, *domain.Plan, error) {
	active, err := assignments.GetActiveByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("load active assignment: %w", err)
	}

	plan, err := plans.GetByID(ctx, active.PlanID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("load active plan: %w", err)
	}
	if plan.IsArchived {
		return nil, nil, nil
	}
	return active, plan, nil
}

// dedupeIDs drops repeats and the nil id, keeping first-seen order.
func dedupeIDs(ids []primitive.ObjectID) []primitive.ObjectID {
	seen := make(map[primitive.ObjectID]struct{}, len(ids))
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if id == primitive.NilObjectID {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
