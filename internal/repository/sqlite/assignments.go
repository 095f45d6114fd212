package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gamata/fitness-core/internal/domain"
	"gamata/fitness-core/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const assignmentColumns = `id, plan_id, user_id, status, assigned_at, activated_at, deactivated_at`

type assignmentRepository struct {
	db *DB
}

// NewAssignmentRepository returns the assignment ledger on SQLite.
func NewAssignmentRepository(db *DB) repository.AssignmentRepository {
	return &assignmentRepository{db: db}
}

func (r *assignmentRepository) Create(ctx context.Context, a *domain.Assignment) (primitive.ObjectID, error) {
	if a.PlanID == primitive.NilObjectID || a.UserID == primitive.NilObjectID {
		return primitive.NilObjectID, errors.New("assignment requires planId and userId")
	}
	a.ID = primitive.NewObjectID()
	if a.Status == "" {
		a.Status = domain.AssignmentPending
	}

	_, err := r.db.conn.ExecContext(ctx, `
		INSERT INTO plan_assignments (`+assignmentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, a.ID.Hex(), a.PlanID.Hex(), a.UserID.Hex(), string(a.Status), formatTime(a.AssignedAt),
		formatNullTime(a.ActivatedAt), formatNullTime(a.DeactivatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return primitive.NilObjectID, repository.ErrConflict
		}
		return primitive.NilObjectID, fmt.Errorf("failed to create assignment: %w", err)
	}
	return a.ID, nil
}

func (r *assignmentRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Assignment, error) {
	return r.queryOne(ctx, r.db.conn, `WHERE id = ?`, id.Hex())
}

func (r *assignmentRepository) GetLive(ctx context.Context, planID, userID primitive.ObjectID) (*domain.Assignment, error) {
	return r.queryOne(ctx, r.db.conn, `WHERE plan_id = ? AND user_id = ? AND status IN ('pending', 'active')`, planID.Hex(), userID.Hex())
}

func (r *assignmentRepository) GetActiveByUserID(ctx context.Context, userID primitive.ObjectID) (*domain.Assignment, error) {
	return r.queryOne(ctx, r.db.conn, `WHERE user_id = ? AND status = 'active'`, userID.Hex())
}

func (r *assignmentRepository) GetByUserID(ctx context.Context, userID primitive.ObjectID) ([]domain.Assignment, error) {
	return r.queryMany(ctx, r.db.conn, `WHERE user_id = ?`, userID.Hex())
}

func (r *assignmentRepository) GetByPlanID(ctx context.Context, planID primitive.ObjectID) ([]domain.Assignment, error) {
	return r.queryMany(ctx, r.db.conn, `WHERE plan_id = ?`, planID.Hex())
}

// Activate swaps the user's active assignment in one transaction. Other active rows are
// deactivated before the target is promoted so the partial unique index never trips.
func (r *assignmentRepository) Activate(ctx context.Context, id, userID primitive.ObjectID, at time.Time) (*domain.Assignment, []primitive.ObjectID, error) {
	var (
		activated   *domain.Assignment
		deactivated []primitive.ObjectID
	)

	err := r.db.withTx(ctx, func(tx *sql.Tx) error {
		target, err := r.queryOne(ctx, tx, `WHERE id = ? AND user_id = ?`, id.Hex(), userID.Hex())
		if err != nil {
			return err
		}
		if target.Status != domain.AssignmentPending {
			return repository.ErrConflict
		}

		others, err := r.queryMany(ctx, tx, `WHERE user_id = ? AND status = 'active' AND id <> ?`, userID.Hex(), id.Hex())
		if err != nil {
			return err
		}
		deactivated = make([]primitive.ObjectID, 0, len(others))
		for _, other := range others {
			if _, err := tx.ExecContext(ctx,
				`UPDATE plan_assignments SET status = 'inactive', deactivated_at = ? WHERE id = ? AND status = 'active'`,
				formatTime(at), other.ID.Hex()); err != nil {
				return fmt.Errorf("failed to deactivate assignment: %w", err)
			}
			deactivated = append(deactivated, other.ID)
		}

		res, err := tx.ExecContext(ctx,
			`UPDATE plan_assignments SET status = 'active', activated_at = ? WHERE id = ? AND status = 'pending'`,
			formatTime(at), id.Hex())
		if err != nil {
			if isUniqueViolation(err) {
				return repository.ErrConflict
			}
			return fmt.Errorf("failed to activate assignment: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return repository.ErrConflict
		}

		target.Status = domain.AssignmentActive
		activatedAt := at.UTC()
		target.ActivatedAt = &activatedAt
		activated = target
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return activated, deactivated, nil
}

func (r *assignmentRepository) Decline(ctx context.Context, id primitive.ObjectID, at time.Time) (*domain.Assignment, error) {
	var declined *domain.Assignment
	err := r.db.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE plan_assignments SET status = 'inactive', deactivated_at = ? WHERE id = ? AND status = 'pending'`,
			formatTime(at), id.Hex())
		if err != nil {
			return fmt.Errorf("failed to decline assignment: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}

		a, err := r.queryOne(ctx, tx, `WHERE id = ?`, id.Hex())
		if err != nil {
			return err
		}
		if n == 0 {
			return repository.ErrConflict
		}
		declined = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return declined, nil
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *assignmentRepository) queryOne(ctx context.Context, q querier, where string, args ...any) (*domain.Assignment, error) {
	row := q.QueryRowContext(ctx, `SELECT `+assignmentColumns+` FROM plan_assignments `+where, args...)
	a, err := scanAssignment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get assignment: %w", err)
	}
	return a, nil
}

func (r *assignmentRepository) queryMany(ctx context.Context, q querier, where string, args ...any) ([]domain.Assignment, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+assignmentColumns+` FROM plan_assignments `+where+` ORDER BY assigned_at DESC, id DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	defer rows.Close()

	assignments := []domain.Assignment{}
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		assignments = append(assignments, *a)
	}
	return assignments, rows.Err()
}

func scanAssignment(s rowScanner) (*domain.Assignment, error) {
	var (
		a                          domain.Assignment
		id, planID, userID         string
		status, assignedAt         string
		activatedAt, deactivatedAt sql.NullString
	)
	if err := s.Scan(&id, &planID, &userID, &status, &assignedAt, &activatedAt, &deactivatedAt); err != nil {
		return nil, err
	}

	var err error
	if a.ID, err = parseID(id); err != nil {
		return nil, err
	}
	if a.PlanID, err = parseID(planID); err != nil {
		return nil, err
	}
	if a.UserID, err = parseID(userID); err != nil {
		return nil, err
	}
	a.Status = domain.AssignmentStatus(status)
	if a.AssignedAt, err = parseTime(assignedAt); err != nil {
		return nil, err
	}
	if a.ActivatedAt, err = parseNullTime(activatedAt); err != nil {
		return nil, err
	}
	if a.DeactivatedAt, err = parseNullTime(deactivatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}
