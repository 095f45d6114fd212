package sqlite

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"gamata/fitness-core/internal/domain"
	"gamata/fitness-core/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func createAssignment(t *testing.T, repo repository.AssignmentRepository, planID, userID primitive.ObjectID) *domain.Assignment {
	t.Helper()
	a := &domain.Assignment{PlanID: planID, UserID: userID, AssignedAt: baseTime}
	if _, err := repo.Create(context.Background(), a); err != nil {
		t.Fatalf("Failed to create assignment: %v", err)
	}
	return a
}

func TestCreateAssignmentRejectsSecondLiveRow(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAssignmentRepository(db)
	plan := createPlan(t, db, primitive.NewObjectID(), nil)
	user := primitive.NewObjectID()

	first := createAssignment(t, repo, plan.ID, user)
	if first.Status != domain.AssignmentPending {
		t.Errorf("Expected pending status, got %s", first.Status)
	}

	_, err := repo.Create(context.Background(), &domain.Assignment{PlanID: plan.ID, UserID: user, AssignedAt: baseTime})
	if !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("Expected ErrConflict, got %v", err)
	}

	// Once the live row is declined the plan can be offered again.
	if _, err := repo.Decline(context.Background(), first.ID, baseTime.Add(time.Minute)); err != nil {
		t.Fatalf("Failed to decline: %v", err)
	}
	createAssignment(t, repo, plan.ID, user)
}

func TestActivateSwapsActivePlan(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	repo := NewAssignmentRepository(db)
	coach := primitive.NewObjectID()
	user := primitive.NewObjectID()
	planA := createPlan(t, db, coach, nil)
	planB := createPlan(t, db, coach, nil)

	a := createAssignment(t, repo, planA.ID, user)
	b := createAssignment(t, repo, planB.ID, user)

	activated, deactivated, err := repo.Activate(ctx, a.ID, user, baseTime.Add(time.Hour))
	if err != nil {
		t.Fatalf("Failed to activate A: %v", err)
	}
	if activated.Status != domain.AssignmentActive || activated.ActivatedAt == nil {
		t.Errorf("Expected active A with timestamp, got %+v", activated)
	}
	if len(deactivated) != 0 {
		t.Errorf("Expected nothing deactivated, got %v", deactivated)
	}

	_, deactivated, err = repo.Activate(ctx, b.ID, user, baseTime.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("Failed to activate B: %v", err)
	}
	if len(deactivated) != 1 || deactivated[0] != a.ID {
		t.Errorf("Expected A deactivated, got %v", deactivated)
	}

	gotA, _ := repo.GetByID(ctx, a.ID)
	if gotA.Status != domain.AssignmentInactive || gotA.DeactivatedAt == nil {
		t.Errorf("Expected A inactive, got %+v", gotA)
	}
	active, err := repo.GetActiveByUserID(ctx, user)
	if err != nil {
		t.Fatalf("Failed to get active: %v", err)
	}
	if active.ID != b.ID {
		t.Errorf("Expected B active, got %s", active.ID.Hex())
	}

	// Activating a non-pending row conflicts and changes nothing.
	if _, _, err := repo.Activate(ctx, a.ID, user, baseTime.Add(3*time.Hour)); !errors.Is(err, repository.ErrConflict) {
		t.Errorf("Expected ErrConflict, got %v", err)
	}
	active, _ = repo.GetActiveByUserID(ctx, user)
	if active.ID != b.ID {
		t.Errorf("Expected B still active, got %s", active.ID.Hex())
	}
}

func TestActivateForeignAssignmentIsNotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAssignmentRepository(db)
	plan := createPlan(t, db, primitive.NewObjectID(), nil)
	a := createAssignment(t, repo, plan.ID, primitive.NewObjectID())

	_, _, err := repo.Activate(context.Background(), a.ID, primitive.NewObjectID(), baseTime)
	if !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestConcurrentActivationsLeaveOneActive(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	repo := NewAssignmentRepository(db)
	coach := primitive.NewObjectID()
	user := primitive.NewObjectID()

	var ids []primitive.ObjectID
	for i := 0; i < 5; i++ {
		plan := createPlan(t, db, coach, nil)
		ids = append(ids, createAssignment(t, repo, plan.ID, user).ID)
	}

	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id primitive.ObjectID) {
			defer wg.Done()
			_, _, _ = repo.Activate(ctx, id, user, baseTime.Add(time.Duration(i)*time.Minute))
		}(i, id)
	}
	wg.Wait()

	all, err := repo.GetByUserID(ctx, user)
	if err != nil {
		t.Fatalf("Failed to list: %v", err)
	}
	activeCount := 0
	for _, a := range all {
		if a.Status == domain.AssignmentActive {
			activeCount++
		}
	}
	if activeCount != 1 {
		t.Errorf("Expected exactly one active assignment, got %d", activeCount)
	}
}

func TestDeclineOnlyFromPending(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	repo := NewAssignmentRepository(db)
	plan := createPlan(t, db, primitive.NewObjectID(), nil)
	user := primitive.NewObjectID()
	a := createAssignment(t, repo, plan.ID, user)

	declined, err := repo.Decline(ctx, a.ID, baseTime.Add(time.Minute))
	if err != nil {
		t.Fatalf("Failed to decline: %v", err)
	}
	if declined.Status != domain.AssignmentInactive {
		t.Errorf("Expected inactive, got %s", declined.Status)
	}

	if _, err := repo.Decline(ctx, a.ID, baseTime.Add(2*time.Minute)); !errors.Is(err, repository.ErrConflict) {
		t.Errorf("Expected ErrConflict on second decline, got %v", err)
	}
	if _, err := repo.Decline(ctx, primitive.NewObjectID(), baseTime); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if _, err := repo.GetLive(ctx, plan.ID, user); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("Expected no live row, got %v", err)
	}
}
