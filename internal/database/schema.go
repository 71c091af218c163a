package database

// Schema is the full current schema as a single script, for tests that
// want a ready database without running the migration machinery. It must
// stay equivalent to applying every migration in
// migrations/files in order.
const Schema = `
CREATE TABLE offline_verses (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    version_key TEXT NOT NULL,
    book_id INTEGER NOT NULL,
    chapter_number INTEGER NOT NULL,
    verse_number INTEGER NOT NULL,
    text TEXT NOT NULL,
    UNIQUE(version_key, book_id, chapter_number, verse_number)
);
CREATE INDEX idx_verses_lookup
    ON offline_verses(version_key, book_id, chapter_number);

CREATE TABLE offline_explanations (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    language_code TEXT NOT NULL,
    explanation_id INTEGER NOT NULL,
    book_id INTEGER NOT NULL,
    chapter_number INTEGER NOT NULL,
    verse_start INTEGER,
    verse_end INTEGER,
    type TEXT NOT NULL,
    explanation TEXT NOT NULL,
    UNIQUE(language_code, explanation_id)
);
CREATE INDEX idx_explanations_lookup
    ON offline_explanations(language_code, book_id, chapter_number);

CREATE TABLE offline_topics (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    language_code TEXT NOT NULL,
    topic_id TEXT NOT NULL,
    name TEXT NOT NULL,
    content TEXT NOT NULL,
    category TEXT NOT NULL DEFAULT '',
    sort_order INTEGER,
    UNIQUE(language_code, topic_id)
);

CREATE TABLE offline_topic_references (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    topic_id TEXT NOT NULL,
    reference_content TEXT NOT NULL,
    UNIQUE(topic_id)
);

CREATE TABLE offline_topic_explanations (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    language_code TEXT NOT NULL,
    topic_id TEXT NOT NULL,
    type TEXT NOT NULL,
    explanation TEXT NOT NULL,
    UNIQUE(language_code, topic_id, type)
);
CREATE INDEX idx_topic_explanations_lookup
    ON offline_topic_explanations(language_code, topic_id);

CREATE TABLE offline_content (
    content_type TEXT NOT NULL,
    key TEXT NOT NULL,
    language_code TEXT NOT NULL DEFAULT '',
    installed_version TEXT,
    installed_at TIMESTAMP,
    size_bytes INTEGER NOT NULL DEFAULT 0,
    status TEXT NOT NULL,
    PRIMARY KEY (content_type, key)
);

CREATE TABLE offline_settings (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

INSERT INTO offline_settings (key, value) VALUES
    ('offline_mode_enabled', 'false'),
    ('auto_sync_enabled', 'true'),
    ('last_sync_at', '');
`
