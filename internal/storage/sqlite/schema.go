// ABOUTME: SQLite database schema for the learning engine
// ABOUTME: Creates all tables and per-user time indexes
package sqlite

// Schema contains all SQL statements for database initialization
const Schema = `
CREATE TABLE IF NOT EXISTS profiles (
    user_id TEXT PRIMARY KEY,
    display_name TEXT,
    preferred_language TEXT,
    timezone TEXT,
    synthetic INTEGER DEFAULT 0,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

-- Append-only interaction log
CREATE TABLE IF NOT EXISTS events (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL REFERENCES profiles(user_id),
    ts INTEGER NOT NULL,
    kind TEXT NOT NULL,
    payload TEXT,
    language TEXT,
    channel TEXT
);

CREATE TABLE IF NOT EXISTS habits (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL REFERENCES profiles(user_id),
    habit_type TEXT NOT NULL,
    pattern_key TEXT NOT NULL,
    pattern_data TEXT,
    confidence REAL NOT NULL,
    base_confidence REAL NOT NULL,
    feedback_adjust REAL NOT NULL DEFAULT 0,
    occurrence_count INTEGER NOT NULL,
    low_confidence INTEGER NOT NULL DEFAULT 0,
    first_seen INTEGER,
    last_seen INTEGER,
    last_confirmed INTEGER,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL,
    UNIQUE (user_id, habit_type, pattern_key)
);

CREATE TABLE IF NOT EXISTS learn_state (
    user_id TEXT PRIMARY KEY REFERENCES profiles(user_id),
    cursor_ts INTEGER,
    cursor_id TEXT,
    events_scanned INTEGER,
    habits_updated INTEGER,
    started_at INTEGER,
    last_learn_run INTEGER,
    complete INTEGER
);

CREATE TABLE IF NOT EXISTS predictions (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL REFERENCES profiles(user_id),
    habit_id TEXT REFERENCES habits(id),
    predicted_action TEXT NOT NULL,
    reason TEXT,
    confidence REAL NOT NULL,
    time_of_day TEXT,
    status TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    resolved_at INTEGER
);

CREATE TABLE IF NOT EXISTS context_entries (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL REFERENCES profiles(user_id),
    session_window_id TEXT,
    user_message TEXT NOT NULL,
    assistant_response TEXT,
    intent TEXT,
    entities TEXT,
    language TEXT,
    channel TEXT,
    ts INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS mood_samples (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL REFERENCES profiles(user_id),
    ts INTEGER NOT NULL,
    source TEXT NOT NULL,
    mood_label TEXT NOT NULL,
    mood_scores TEXT,
    confidence REAL NOT NULL,
    text TEXT
);

CREATE TABLE IF NOT EXISTS voiceprints (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL REFERENCES profiles(user_id),
    profile_name TEXT NOT NULL,
    description TEXT,
    centroid BLOB,
    sample_count INTEGER NOT NULL DEFAULT 0,
    is_primary INTEGER NOT NULL DEFAULT 0,
    recognition_count INTEGER NOT NULL DEFAULT 0,
    recognition_accuracy REAL NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL,
    trained_at INTEGER,
    last_used INTEGER
);

-- Every read path filters by user and recency
CREATE INDEX IF NOT EXISTS idx_events_user_ts ON events(user_id, ts, id);
CREATE INDEX IF NOT EXISTS idx_habits_user ON habits(user_id);
CREATE INDEX IF NOT EXISTS idx_predictions_user ON predictions(user_id, created_at);
CREATE INDEX IF NOT EXISTS idx_context_user_ts ON context_entries(user_id, ts);
CREATE INDEX IF NOT EXISTS idx_mood_user_ts ON mood_samples(user_id, ts);
CREATE INDEX IF NOT EXISTS idx_voiceprints_user ON voiceprints(user_id);
`

// SchemaVersion is the current schema version for migrations
const SchemaVersion = 1
