package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gamata/fitness-core/internal/domain"
	"gamata/fitness-core/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const planColumns = `id, coach_id, name, start_date, end_date, is_archived, archived_at, days, created_at, updated_at`

type planRepository struct {
	db *DB
}

// NewPlanRepository returns the plan repository on SQLite.
func NewPlanRepository(db *DB) repository.PlanRepository {
	return &planRepository{db: db}
}

func (r *planRepository) Create(ctx context.Context, p *domain.Plan) (primitive.ObjectID, error) {
	if p.CoachID == primitive.NilObjectID || p.Name == "" {
		return primitive.NilObjectID, errors.New("plan requires coachId and name")
	}
	p.ID = primitive.NewObjectID()
	if p.Days == nil {
		p.Days = []domain.PlanDay{}
	}
	days, err := encodeDays(p.Days)
	if err != nil {
		return primitive.NilObjectID, err
	}

	_, err = r.db.conn.ExecContext(ctx, `
		INSERT INTO plans (`+planColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID.Hex(), p.CoachID.Hex(), p.Name, formatTime(p.StartDate), formatTime(p.EndDate),
		p.IsArchived, formatNullTime(p.ArchivedAt), days, formatTime(p.CreatedAt), formatTime(p.UpdatedAt))
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("failed to create plan: %w", err)
	}
	return p.ID, nil
}

func (r *planRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Plan, error) {
	row := r.db.conn.QueryRowContext(ctx, `SELECT `+planColumns+` FROM plans WHERE id = ?`, id.Hex())
	p, err := scanPlan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}
	return p, nil
}

func (r *planRepository) GetByCoachID(ctx context.Context, coachID primitive.ObjectID, includeArchived bool) ([]domain.Plan, error) {
	query := `SELECT ` + planColumns + ` FROM plans WHERE coach_id = ?`
	if !includeArchived {
		query += ` AND is_archived = 0`
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := r.db.conn.QueryContext(ctx, query, coachID.Hex())
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	defer rows.Close()

	plans := []domain.Plan{}
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan plan: %w", err)
		}
		plans = append(plans, *p)
	}
	return plans, rows.Err()
}

func (r *planRepository) UpdateDays(ctx context.Context, id primitive.ObjectID, days []domain.PlanDay, at time.Time) error {
	encoded, err := encodeDays(days)
	if err != nil {
		return err
	}
	res, err := r.db.conn.ExecContext(ctx,
		`UPDATE plans SET days = ?, updated_at = ? WHERE id = ?`,
		encoded, formatTime(at), id.Hex())
	if err != nil {
		return fmt.Errorf("failed to update plan days: %w", err)
	}
	return requireRow(res)
}

func (r *planRepository) SetArchived(ctx context.Context, id primitive.ObjectID, archived bool, at time.Time) error {
	var archivedAt sql.NullString
	if archived {
		archivedAt = formatNullTime(&at)
	}
	res, err := r.db.conn.ExecContext(ctx,
		`UPDATE plans SET is_archived = ?, archived_at = ?, updated_at = ? WHERE id = ?`,
		archived, archivedAt, formatTime(at), id.Hex())
	if err != nil {
		return fmt.Errorf("failed to archive plan: %w", err)
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func encodeDays(days []domain.PlanDay) (string, error) {
	if days == nil {
		days = []domain.PlanDay{}
	}
	b, err := json.Marshal(days)
	if err != nil {
		return "", fmt.Errorf("failed to encode plan days: %w", err)
	}
	return string(b), nil
}

func scanPlan(s rowScanner) (*domain.Plan, error) {
	var (
		p                                      domain.Plan
		id, coachID, days                      string
		startDate, endDate, createdAt, updated string
		archivedAt                             sql.NullString
	)
	err := s.Scan(&id, &coachID, &p.Name, &startDate, &endDate, &p.IsArchived, &archivedAt, &days, &createdAt, &updated)
	if err != nil {
		return nil, err
	}

	if p.ID, err = parseID(id); err != nil {
		return nil, err
	}
	if p.CoachID, err = parseID(coachID); err != nil {
		return nil, err
	}
	if p.StartDate, err = parseTime(startDate); err != nil {
		return nil, err
	}
	if p.EndDate, err = parseTime(endDate); err != nil {
		return nil, err
	}
	if p.ArchivedAt, err = parseNullTime(archivedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(days), &p.Days); err != nil {
		return nil, err
	}
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &p, nil
}
