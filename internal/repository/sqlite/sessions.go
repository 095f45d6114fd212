package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"gamata/fitness-core/internal/domain"
	"gamata/fitness-core/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const sessionColumns = `id, user_id, workout_id, plan_id, session_type, completed_at, created_at, updated_at`

const logColumns = `id, session_id, sets, reps, weight, duration, notes, logged_at, updated_at`

type sessionRepository struct {
	db *DB
}

// NewSessionRepository returns the session repository on SQLite.
func NewSessionRepository(db *DB) repository.SessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) Create(ctx context.Context, s *domain.Session) (primitive.ObjectID, error) {
	if s.UserID == primitive.NilObjectID || s.WorkoutID == primitive.NilObjectID {
		return primitive.NilObjectID, errors.New("session requires userId and workoutId")
	}
	s.ID = primitive.NewObjectID()
	if s.Logs == nil {
		s.Logs = []domain.ExerciseLog{}
	}

	var planID sql.NullString
	if s.PlanID != nil {
		planID = sql.NullString{String: s.PlanID.Hex(), Valid: true}
	}

	_, err := r.db.conn.ExecContext(ctx, `
		INSERT INTO workout_sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, s.ID.Hex(), s.UserID.Hex(), s.WorkoutID.Hex(), planID, string(s.SessionType),
		formatNullTime(s.CompletedAt), formatTime(s.CreatedAt), formatTime(s.UpdatedAt))
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("failed to create session: %w", err)
	}
	return s.ID, nil
}

func (r *sessionRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Session, error) {
	row := r.db.conn.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM workout_sessions WHERE id = ?`, id.Hex())
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	logs, err := r.logsFor(ctx, []string{id.Hex()})
	if err != nil {
		return nil, err
	}
	s.Logs = logs[id.Hex()]
	if s.Logs == nil {
		s.Logs = []domain.ExerciseLog{}
	}
	return s, nil
}

// AddPrimaryLog inserts the session's first log. The UNIQUE session_id column turns a
// concurrent second insert into a conflict.
func (r *sessionRepository) AddPrimaryLog(ctx context.Context, sessionID primitive.ObjectID, log domain.ExerciseLog) error {
	return r.db.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO exercise_logs (`+logColumns+`)
			SELECT ?, ?, ?, ?, ?, ?, ?, ?, ?
			WHERE EXISTS (SELECT 1 FROM workout_sessions WHERE id = ? AND completed_at IS NULL)
		`, log.ID.Hex(), sessionID.Hex(), nullInt(log.Sets), nullInt(log.Reps), nullDecimal(log.Weight),
			nullInt(log.Duration), nullString(log.Notes), formatTime(log.LoggedAt), formatTime(log.UpdatedAt),
			sessionID.Hex())
		if err != nil {
			if isUniqueViolation(err) {
				return repository.ErrConflict
			}
			return fmt.Errorf("failed to add log: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return classifySessionMiss(ctx, tx, sessionID)
		}
		return touchSession(ctx, tx, sessionID, log.LoggedAt)
	})
}

// UpdateLog applies the set fields to a log of an open session.
func (r *sessionRepository) UpdateLog(ctx context.Context, sessionID, logID primitive.ObjectID, f domain.LogFields, at time.Time) error {
	return r.db.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE exercise_logs SET
				sets = COALESCE(?, sets),
				reps = COALESCE(?, reps),
				weight = COALESCE(?, weight),
				duration = COALESCE(?, duration),
				notes = COALESCE(?, notes),
				updated_at = ?
			WHERE id = ? AND session_id = ?
			  AND EXISTS (SELECT 1 FROM workout_sessions WHERE id = ? AND completed_at IS NULL)
		`, nullInt(f.Sets), nullInt(f.Reps), nullDecimal(f.Weight), nullInt(f.Duration), nullString(f.Notes),
			formatTime(at), logID.Hex(), sessionID.Hex(), sessionID.Hex())
		if err != nil {
			return fmt.Errorf("failed to update log: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			var exists int
			err := tx.QueryRowContext(ctx,
				`SELECT COUNT(*) FROM exercise_logs WHERE id = ? AND session_id = ?`,
				logID.Hex(), sessionID.Hex()).Scan(&exists)
			if err != nil {
				return err
			}
			if exists == 0 {
				return repository.ErrNotFound
			}
			return classifySessionMiss(ctx, tx, sessionID)
		}
		return touchSession(ctx, tx, sessionID, at)
	})
}

// Complete stamps completed_at exactly once.
func (r *sessionRepository) Complete(ctx context.Context, sessionID primitive.ObjectID, at time.Time) error {
	return r.db.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE workout_sessions SET completed_at = ?, updated_at = ? WHERE id = ? AND completed_at IS NULL`,
			formatTime(at), formatTime(at), sessionID.Hex())
		if err != nil {
			return fmt.Errorf("failed to complete session: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return classifySessionMiss(ctx, tx, sessionID)
		}
		return nil
	})
}

func (r *sessionRepository) ListCompleted(ctx context.Context, userID primitive.ObjectID, from, to time.Time) ([]domain.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM workout_sessions WHERE user_id = ? AND completed_at IS NOT NULL`
	args := []any{userID.Hex()}
	if !from.IsZero() {
		query += ` AND completed_at >= ?`
		args = append(args, formatTime(from))
	}
	if !to.IsZero() {
		query += ` AND completed_at < ?`
		args = append(args, formatTime(to))
	}
	query += ` ORDER BY completed_at DESC, id DESC`

	rows, err := r.db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	sessions := []domain.Session{}
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, *s)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	// Release the single connection before the log query.
	rows.Close()

	if len(sessions) == 0 {
		return sessions, nil
	}
	ids := make([]string, len(sessions))
	for i, s := range sessions {
		ids[i] = s.ID.Hex()
	}
	logs, err := r.logsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range sessions {
		sessions[i].Logs = logs[ids[i]]
		if sessions[i].Logs == nil {
			sessions[i].Logs = []domain.ExerciseLog{}
		}
	}
	return sessions, nil
}

func (r *sessionRepository) logsFor(ctx context.Context, sessionIDs []string) (map[string][]domain.ExerciseLog, error) {
	placeholders := make([]string, len(sessionIDs))
	args := make([]any, len(sessionIDs))
	for i, id := range sessionIDs {
		placeholders[i] = "?"
		args[i] = id
	}

	rows, err := r.db.conn.QueryContext(ctx, `
		SELECT `+logColumns+` FROM exercise_logs
		WHERE session_id IN (`+strings.Join(placeholders, ", ")+`)
		ORDER BY logged_at ASC
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list logs: %w", err)
	}
	defer rows.Close()

	bySession := make(map[string][]domain.ExerciseLog, len(sessionIDs))
	for rows.Next() {
		var (
			l                    domain.ExerciseLog
			id, sessionID        string
			sets, reps, duration sql.NullInt64
			weight, notes        sql.NullString
			loggedAt, updatedAt  string
		)
		if err := rows.Scan(&id, &sessionID, &sets, &reps, &weight, &duration, &notes, &loggedAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan log: %w", err)
		}
		if l.ID, err = parseID(id); err != nil {
			return nil, err
		}
		l.Sets = intPtr(sets)
		l.Reps = intPtr(reps)
		l.Duration = intPtr(duration)
		l.Notes = stringPtr(notes)
		if l.Weight, err = decimalPtr(weight); err != nil {
			return nil, err
		}
		if l.LoggedAt, err = parseTime(loggedAt); err != nil {
			return nil, err
		}
		if l.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, err
		}
		bySession[sessionID] = append(bySession[sessionID], l)
	}
	return bySession, rows.Err()
}

func touchSession(ctx context.Context, tx *sql.Tx, sessionID primitive.ObjectID, at time.Time) error {
	_, err := tx.ExecContext(ctx, `UPDATE workout_sessions SET updated_at = ? WHERE id = ?`, formatTime(at), sessionID.Hex())
	return err
}

func classifySessionMiss(ctx context.Context, tx *sql.Tx, sessionID primitive.ObjectID) error {
	var exists int
	err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM workout_sessions WHERE id = ?`, sessionID.Hex()).Scan(&exists)
	if err != nil {
		return err
	}
	if exists == 0 {
		return repository.ErrNotFound
	}
	return repository.ErrConflict
}

func scanSession(s rowScanner) (*domain.Session, error) {
	var (
		sess                            domain.Session
		id, userID, workoutID           string
		sessionType, createdAt, updated string
		planID, completedAt             sql.NullString
	)
	if err := s.Scan(&id, &userID, &workoutID, &planID, &sessionType, &completedAt, &createdAt, &updated); err != nil {
		return nil, err
	}

	var err error
	if sess.ID, err = parseID(id); err != nil {
		return nil, err
	}
	if sess.UserID, err = parseID(userID); err != nil {
		return nil, err
	}
	if sess.WorkoutID, err = parseID(workoutID); err != nil {
		return nil, err
	}
	if planID.Valid {
		pid, err := parseID(planID.String)
		if err != nil {
			return nil, err
		}
		sess.PlanID = &pid
	}
	sess.SessionType = domain.SessionType(sessionType)
	if sess.CompletedAt, err = parseNullTime(completedAt); err != nil {
		return nil, err
	}
	if sess.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if sess.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &sess, nil
}
