package sqlite

// Schema contains all SQL statements for creating tables and indexes.
// Ids are ObjectID hex strings so both backends hand out the same id format.
const Schema = `
-- Workout catalog: read-only for the core, seeded externally
CREATE TABLE IF NOT EXISTS workouts (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    type TEXT NOT NULL CHECK (type IN ('strength', 'cardio')),
    description TEXT NOT NULL DEFAULT '',
    target_sets INTEGER,
    target_reps INTEGER,
    suggested_weight TEXT,
    target_duration INTEGER,
    cardio_type TEXT NOT NULL DEFAULT '',
    muscle_groups TEXT NOT NULL DEFAULT '[]', -- JSON array
    is_archived BOOLEAN NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

-- Plans: weekly templates authored by a coach
CREATE TABLE IF NOT EXISTS plans (
    id TEXT PRIMARY KEY,
    coach_id TEXT NOT NULL,
    name TEXT NOT NULL,
    start_date TEXT NOT NULL,
    end_date TEXT NOT NULL,
    is_archived BOOLEAN NOT NULL DEFAULT 0,
    archived_at TEXT,
    days TEXT NOT NULL DEFAULT '[]', -- JSON array of {dayOfWeek, workoutIds}
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_plans_coach ON plans(coach_id, created_at DESC);

-- Plan assignments: the ledger binding plans to athletes
CREATE TABLE IF NOT EXISTS plan_assignments (
    id TEXT PRIMARY KEY,
    plan_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    status TEXT NOT NULL CHECK (status IN ('pending', 'active', 'inactive')),
    assigned_at TEXT NOT NULL,
    activated_at TEXT,
    deactivated_at TEXT,

    FOREIGN KEY (plan_id) REFERENCES plans(id)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_assignments_one_active
    ON plan_assignments(user_id) WHERE status = 'active';
CREATE UNIQUE INDEX IF NOT EXISTS idx_assignments_one_live
    ON plan_assignments(plan_id, user_id) WHERE status IN ('pending', 'active');
CREATE INDEX IF NOT EXISTS idx_assignments_user ON plan_assignments(user_id, assigned_at DESC);
CREATE INDEX IF NOT EXISTS idx_assignments_plan ON plan_assignments(plan_id);

-- Workout sessions
CREATE TABLE IF NOT EXISTS workout_sessions (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    workout_id TEXT NOT NULL,
    plan_id TEXT,
    session_type TEXT NOT NULL CHECK (session_type IN ('assigned', 'swap', 'adhoc')),
    completed_at TEXT,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,

    FOREIGN KEY (workout_id) REFERENCES workouts(id)
);

CREATE INDEX IF NOT EXISTS idx_sessions_user_completed ON workout_sessions(user_id, completed_at DESC);

-- Exercise logs: one per session
CREATE TABLE IF NOT EXISTS exercise_logs (
    id TEXT PRIMARY KEY,
    session_id TEXT NOT NULL UNIQUE,
    sets INTEGER,
    reps INTEGER,
    weight TEXT, -- decimal string, exact
    duration INTEGER,
    notes TEXT,
    logged_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,

    FOREIGN KEY (session_id) REFERENCES workout_sessions(id) ON DELETE CASCADE
);
`
