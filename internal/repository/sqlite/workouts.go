package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gamata/fitness-core/internal/domain"
	"gamata/fitness-core/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const workoutColumns = `id, name, type, description, target_sets, target_reps, suggested_weight,
	target_duration, cardio_type, muscle_groups, is_archived, created_at, updated_at`

type workoutRepository struct {
	db *DB
}

// NewWorkoutRepository returns the catalog repository on SQLite.
func NewWorkoutRepository(db *DB) repository.WorkoutRepository {
	return &workoutRepository{db: db}
}

func (r *workoutRepository) Create(ctx context.Context, w *domain.Workout) (primitive.ObjectID, error) {
	if w.Name == "" || w.Type == "" {
		return primitive.NilObjectID, errors.New("workout requires name and type")
	}
	w.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	if w.CreatedAt.IsZero() {
		w.CreatedAt = now
	}
	w.UpdatedAt = now

	groups := w.MuscleGroups
	if groups == nil {
		groups = []string{}
	}
	groupsJSON, err := json.Marshal(groups)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("failed to encode muscle groups: %w", err)
	}

	_, err = r.db.conn.ExecContext(ctx, `
		INSERT INTO workouts (`+workoutColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, w.ID.Hex(), w.Name, string(w.Type), w.Description, nullInt(w.TargetSets), nullInt(w.TargetReps),
		nullDecimal(w.SuggestedWeight), nullInt(w.TargetDuration), w.CardioType, string(groupsJSON),
		w.IsArchived, formatTime(w.CreatedAt), formatTime(w.UpdatedAt))
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("failed to create workout: %w", err)
	}
	return w.ID, nil
}

func (r *workoutRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Workout, error) {
	row := r.db.conn.QueryRowContext(ctx, `SELECT `+workoutColumns+` FROM workouts WHERE id = ?`, id.Hex())
	w, err := scanWorkout(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get workout: %w", err)
	}
	return w, nil
}

func (r *workoutRepository) GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]domain.Workout, error) {
	workouts := []domain.Workout{}
	if len(ids) == 0 {
		return workouts, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id.Hex()
	}

	rows, err := r.db.conn.QueryContext(ctx, `
		SELECT `+workoutColumns+` FROM workouts
		WHERE id IN (`+strings.Join(placeholders, ", ")+`)
		ORDER BY name ASC
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list workouts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		w, err := scanWorkout(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workout: %w", err)
		}
		workouts = append(workouts, *w)
	}
	return workouts, rows.Err()
}

func scanWorkout(s rowScanner) (*domain.Workout, error) {
	var (
		w                           domain.Workout
		id, workoutType, groupsJSON string
		createdAt, updatedAt        string
		targetSets, targetReps      sql.NullInt64
		targetDuration              sql.NullInt64
		suggestedWeight             sql.NullString
	)
	err := s.Scan(&id, &w.Name, &workoutType, &w.Description, &targetSets, &targetReps, &suggestedWeight,
		&targetDuration, &w.CardioType, &groupsJSON, &w.IsArchived, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if w.ID, err = parseID(id); err != nil {
		return nil, err
	}
	w.Type = domain.WorkoutType(workoutType)
	w.TargetSets = intPtr(targetSets)
	w.TargetReps = intPtr(targetReps)
	w.TargetDuration = intPtr(targetDuration)
	if w.SuggestedWeight, err = decimalPtr(suggestedWeight); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(groupsJSON), &w.MuscleGroups); err != nil {
		return nil, err
	}
	if w.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if w.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &w, nil
}
