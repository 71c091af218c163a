package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	gosync "sync"
	"time"

	"versemate-sync/internal/database/migrations"
	"versemate-sync/internal/sync"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// insertBatchSize is the number of content rows committed per progress
// checkpoint, matching the backend's publishing batch size.
const insertBatchSize = 1000

// SQLiteStore implements the sync.Store interface using SQLite.
//
// Write transactions are serialized through a mutex so at most one runs at
// a time; reads go straight to the connection pool and observe every
// committed write.
type SQLiteStore struct {
	db      *sql.DB
	path    string
	writeMu gosync.Mutex
}

// OpenConnection opens and configures a SQLite connection with the
// appropriate PRAGMAs. path can be a file path or ":memory:".
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Foreign keys default to OFF in SQLite for backward compatibility.
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	// Every in-memory connection is its own database, so the pool must
	// stay on a single connection.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	return db, nil
}

// NewSQLiteStore opens the database at path, applies pending migrations,
// and sweeps any interrupted installs left by a crash.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	s := NewSQLiteStoreFromDB(db, path)
	if err := s.RecoverInstalling(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLiteStoreFromDB wraps an existing connection. The caller is
// responsible for the schema being current.
func NewSQLiteStoreFromDB(db *sql.DB, path string) *SQLiteStore {
	return &SQLiteStore{db: db, path: path}
}

// Path returns the database file path (or ":memory:").
func (s *SQLiteStore) Path() string { return s.path }

// CheckMigrations verifies the database schema is up to date.
func (s *SQLiteStore) CheckMigrations() error {
	return migrations.CheckStatus(s.db)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Content records

const recordColumns = "content_type, key, language_code, installed_version, installed_at, size_bytes, status"

func scanRecord(row interface{ Scan(...any) error }) (*sync.ContentRecord, error) {
	var (
		rec       sync.ContentRecord
		version   sql.NullString
		installed sql.NullTime
	)
	err := row.Scan(&rec.ContentType, &rec.Key, &rec.LanguageCode, &version, &installed, &rec.SizeBytes, &rec.Status)
	if err != nil {
		return nil, err
	}
	rec.InstalledVersion = version.String
	if installed.Valid {
		rec.InstalledAt = installed.Time
	}
	return &rec, nil
}

func (s *SQLiteStore) GetContentRecord(ctx context.Context, t sync.ContentType, key string) (*sync.ContentRecord, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+recordColumns+" FROM offline_content WHERE content_type = ? AND key = ?",
		string(t), key)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // not installed
	}
	if err != nil {
		return nil, fmt.Errorf("finding content record: %w", err)
	}
	return rec, nil
}

func (s *SQLiteStore) ListContentRecords(ctx context.Context) ([]*sync.ContentRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+recordColumns+" FROM offline_content ORDER BY content_type, key")
	if err != nil {
		return nil, fmt.Errorf("listing content records: %w", err)
	}
	defer rows.Close()

	var records []*sync.ContentRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning content record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing content records: %w", err)
	}
	return records, nil
}

func (s *SQLiteStore) MarkInstalling(ctx context.Context, t sync.ContentType, key, languageCode string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO offline_content (content_type, key, language_code, installed_version, installed_at, size_bytes, status)
		VALUES (?, ?, ?, NULL, NULL, 0, ?)
		ON CONFLICT(content_type, key) DO UPDATE SET
			language_code = excluded.language_code,
			installed_version = NULL,
			installed_at = NULL,
			size_bytes = 0,
			status = excluded.status`,
		string(t), key, languageCode, string(sync.StatusInstalling))
	if err != nil {
		return fmt.Errorf("marking installing: %w: %w", sync.ErrStorageWrite, err)
	}
	return nil
}

func (s *SQLiteStore) RevertInstalling(ctx context.Context, t sync.ContentType, key string, prev *sync.ContentRecord) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("reverting installing record: %w: %w", sync.ErrStorageWrite, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM offline_content WHERE content_type = ? AND key = ?",
		string(t), key); err != nil {
		return fmt.Errorf("reverting installing record: %w: %w", sync.ErrStorageWrite, err)
	}

	if prev != nil {
		if err := insertRecord(ctx, tx, prev); err != nil {
			return fmt.Errorf("restoring previous record: %w: %w", sync.ErrStorageWrite, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("reverting installing record: %w: %w", sync.ErrStorageWrite, err)
	}
	return nil
}

func insertRecord(ctx context.Context, tx *sql.Tx, rec *sync.ContentRecord) error {
	var version any
	if rec.InstalledVersion != "" {
		version = rec.InstalledVersion
	}
	var installedAt any
	if !rec.InstalledAt.IsZero() {
		installedAt = rec.InstalledAt
	}
	_, err := tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO offline_content (content_type, key, language_code, installed_version, installed_at, size_bytes, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(rec.ContentType), rec.Key, rec.LanguageCode, version, installedAt, rec.SizeBytes, string(rec.Status))
	return err
}

// CommitPackage atomically replaces a content unit: delete any pre-existing
// rows for the key (covers update-in-place), bulk-insert the new rows, and
// mark the record installed — all in one transaction. The store is never
// observed with content rows but no installed record, or vice versa.
func (s *SQLiteStore) CommitPackage(ctx context.Context, pkg *sync.Package, version string, installedAt time.Time, onProgress sync.ProgressFunc) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	fail := func(op string, err error) error {
		return fmt.Errorf("%s for %s: %w: %w", op, sync.RecordKey(pkg.ContentType, pkg.Key), sync.ErrStorageWrite, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fail("starting transaction", err)
	}
	defer tx.Rollback()

	if err := deleteContentRows(ctx, tx, pkg.ContentType, pkg.Key); err != nil {
		return fail("deleting previous rows", err)
	}

	pc := &progressCounter{fn: onProgress, total: batches(len(pkg.Verses)) +
		batches(len(pkg.Explanations)) + batches(len(pkg.Topics)) +
		batches(len(pkg.TopicReferences)) + batches(len(pkg.TopicExplanations)) + 1}

	if err := insertVerses(ctx, tx, pkg, pc); err != nil {
		return fail("writing verses", err)
	}
	if err := insertExplanations(ctx, tx, pkg, pc); err != nil {
		return fail("writing commentary entries", err)
	}
	if err := insertTopics(ctx, tx, pkg, pc); err != nil {
		return fail("writing topics", err)
	}

	rec := &sync.ContentRecord{
		ContentType:      pkg.ContentType,
		Key:              pkg.Key,
		LanguageCode:     pkg.LanguageCode,
		InstalledVersion: version,
		InstalledAt:      installedAt,
		SizeBytes:        pkg.SizeBytes,
		Status:           sync.StatusInstalled,
	}
	if err := insertRecord(ctx, tx, rec); err != nil {
		return fail("updating content record", err)
	}
	pc.step("content record")

	if err := tx.Commit(); err != nil {
		return fail("committing transaction", err)
	}
	return nil
}

// progressCounter emits monotonic checkpoints toward a fixed total.
type progressCounter struct {
	fn      sync.ProgressFunc
	current int
	total   int
}

func (p *progressCounter) step(message string) {
	p.current++
	if p.fn != nil {
		p.fn(sync.Progress{Current: p.current, Total: p.total, Message: message})
	}
}

func batches(n int) int {
	if n == 0 {
		return 0
	}
	return (n + insertBatchSize - 1) / insertBatchSize
}

// checkpoint reports whether a batch boundary (or the final row) was just
// written.
func checkpoint(i, n int) bool {
	return (i+1)%insertBatchSize == 0 || i+1 == n
}

func insertVerses(ctx context.Context, tx *sql.Tx, pkg *sync.Package, pc *progressCounter) error {
	if len(pkg.Verses) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO offline_verses (version_key, book_id, chapter_number, verse_number, text)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, v := range pkg.Verses {
		if _, err := stmt.ExecContext(ctx, pkg.Key, v.BookID, v.ChapterNumber, v.VerseNumber, v.Text); err != nil {
			return err
		}
		if checkpoint(i, len(pkg.Verses)) {
			pc.step("verses")
		}
	}
	return nil
}

func insertExplanations(ctx context.Context, tx *sql.Tx, pkg *sync.Package, pc *progressCounter) error {
	if len(pkg.Explanations) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO offline_explanations (language_code, explanation_id, book_id, chapter_number, verse_start, verse_end, type, explanation)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, e := range pkg.Explanations {
		if _, err := stmt.ExecContext(ctx, pkg.LanguageCode, e.ExplanationID, e.BookID, e.ChapterNumber, e.VerseStart, e.VerseEnd, e.Type, e.Explanation); err != nil {
			return err
		}
		if checkpoint(i, len(pkg.Explanations)) {
			pc.step("commentary entries")
		}
	}
	return nil
}

func insertTopics(ctx context.Context, tx *sql.Tx, pkg *sync.Package, pc *progressCounter) error {
	if len(pkg.Topics) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO offline_topics (language_code, topic_id, name, content, category, sort_order)
			VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		for i, t := range pkg.Topics {
			if _, err := stmt.ExecContext(ctx, pkg.LanguageCode, t.TopicID, t.Name, t.Content, t.Category, t.SortOrder); err != nil {
				stmt.Close()
				return err
			}
			if checkpoint(i, len(pkg.Topics)) {
				pc.step("topics")
			}
		}
		stmt.Close()
	}

	if len(pkg.TopicReferences) > 0 {
		// Reference rows are shared across topic languages: a topic_id
		// already installed by another language keeps its existing row.
		stmt, err := tx.PrepareContext(ctx, `
			INSERT OR IGNORE INTO offline_topic_references (topic_id, reference_content)
			VALUES (?, ?)`)
		if err != nil {
			return err
		}
		for i, r := range pkg.TopicReferences {
			if _, err := stmt.ExecContext(ctx, r.TopicID, r.ReferenceContent); err != nil {
				stmt.Close()
				return err
			}
			if checkpoint(i, len(pkg.TopicReferences)) {
				pc.step("topic references")
			}
		}
		stmt.Close()
	}

	if len(pkg.TopicExplanations) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO offline_topic_explanations (language_code, topic_id, type, explanation)
			VALUES (?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		for i, e := range pkg.TopicExplanations {
			if _, err := stmt.ExecContext(ctx, pkg.LanguageCode, e.TopicID, e.Type, e.Explanation); err != nil {
				stmt.Close()
				return err
			}
			if checkpoint(i, len(pkg.TopicExplanations)) {
				pc.step("topic explanations")
			}
		}
		stmt.Close()
	}

	return nil
}

// deleteContentRows removes every content row belonging to one unit.
// Topic references carry no language column and are shared across topic
// languages, so a reference is deleted only when no other language's
// topics still carry its topic_id.
func deleteContentRows(ctx context.Context, tx *sql.Tx, t sync.ContentType, key string) error {
	switch t {
	case sync.BibleVersion:
		_, err := tx.ExecContext(ctx, "DELETE FROM offline_verses WHERE version_key = ?", key)
		return err
	case sync.Commentary:
		_, err := tx.ExecContext(ctx, "DELETE FROM offline_explanations WHERE language_code = ?", key)
		return err
	default:
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM offline_topic_references
			WHERE topic_id IN (SELECT topic_id FROM offline_topics WHERE language_code = ?)
			  AND topic_id NOT IN (SELECT topic_id FROM offline_topics WHERE language_code <> ?)`,
			key, key); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM offline_topic_explanations WHERE language_code = ?", key); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, "DELETE FROM offline_topics WHERE language_code = ?", key)
		return err
	}
}

func (s *SQLiteStore) DeleteContent(ctx context.Context, t sync.ContentType, key string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("deleting content: %w: %w", sync.ErrStorageWrite, err)
	}
	defer tx.Rollback()

	if err := deleteContentRows(ctx, tx, t, key); err != nil {
		return fmt.Errorf("deleting content rows: %w: %w", sync.ErrStorageWrite, err)
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM offline_content WHERE content_type = ? AND key = ?",
		string(t), key); err != nil {
		return fmt.Errorf("deleting content record: %w: %w", sync.ErrStorageWrite, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("deleting content: %w: %w", sync.ErrStorageWrite, err)
	}
	return nil
}

func (s *SQLiteStore) DeleteAll(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("deleting all content: %w: %w", sync.ErrStorageWrite, err)
	}
	defer tx.Rollback()

	for _, table := range []string{
		"offline_verses",
		"offline_explanations",
		"offline_topic_references",
		"offline_topic_explanations",
		"offline_topics",
		"offline_content",
	} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clearing %s: %w: %w", table, sync.ErrStorageWrite, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("deleting all content: %w: %w", sync.ErrStorageWrite, err)
	}
	return nil
}

func (s *SQLiteStore) TotalStorageUsed(ctx context.Context) (int64, error) {
	var total int64
	err := s.db.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(size_bytes), 0) FROM offline_content WHERE status = ?",
		string(sync.StatusInstalled)).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("computing storage used: %w", err)
	}
	return total, nil
}

// Settings

func (s *SQLiteStore) Setting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM offline_settings WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading setting %s: %w", key, err)
	}
	return value, nil
}

func (s *SQLiteStore) SetSetting(ctx context.Context, key, value string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO offline_settings (key, value) VALUES (?, ?)", key, value)
	if err != nil {
		return fmt.Errorf("writing setting %s: %w: %w", key, sync.ErrStorageWrite, err)
	}
	return nil
}

// Reads

// Verses returns the installed verses of one chapter, in verse order.
func (s *SQLiteStore) Verses(ctx context.Context, versionKey string, bookID, chapter int) ([]sync.Verse, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT book_id, chapter_number, verse_number, text
		FROM offline_verses
		WHERE version_key = ? AND book_id = ? AND chapter_number = ?
		ORDER BY verse_number`,
		versionKey, bookID, chapter)
	if err != nil {
		return nil, fmt.Errorf("reading verses: %w", err)
	}
	defer rows.Close()

	var verses []sync.Verse
	for rows.Next() {
		var v sync.Verse
		if err := rows.Scan(&v.BookID, &v.ChapterNumber, &v.VerseNumber, &v.Text); err != nil {
			return nil, fmt.Errorf("scanning verse: %w", err)
		}
		verses = append(verses, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading verses: %w", err)
	}
	return verses, nil
}

// Crash recovery

// RecoverInstalling sweeps records left in the installing state by a crash
// or kill. A unit with no content rows never finished a fresh install and
// its record is deleted. A unit that still has rows was mid-update: the
// rows are the complete previous version (replacement is transactional),
// so the record is marked installed with an unknown version, which
// classifies as update_available on the next reconciliation.
func (s *SQLiteStore) RecoverInstalling(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("recovering interrupted installs: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		"SELECT content_type, key FROM offline_content WHERE status = ?",
		string(sync.StatusInstalling))
	if err != nil {
		return fmt.Errorf("finding interrupted installs: %w", err)
	}

	type unit struct {
		t   sync.ContentType
		key string
	}
	var stale []unit
	for rows.Next() {
		var u unit
		if err := rows.Scan(&u.t, &u.key); err != nil {
			rows.Close()
			return fmt.Errorf("scanning interrupted install: %w", err)
		}
		stale = append(stale, u)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("finding interrupted installs: %w", err)
	}
	rows.Close()

	for _, u := range stale {
		n, err := countContentRows(ctx, tx, u.t, u.key)
		if err != nil {
			return fmt.Errorf("counting rows for %s: %w", sync.RecordKey(u.t, u.key), err)
		}
		if n == 0 {
			if _, err := tx.ExecContext(ctx,
				"DELETE FROM offline_content WHERE content_type = ? AND key = ?",
				string(u.t), u.key); err != nil {
				return fmt.Errorf("deleting interrupted install: %w", err)
			}
			continue
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE offline_content SET status = ?, installed_version = NULL WHERE content_type = ? AND key = ?",
			string(sync.StatusInstalled), string(u.t), u.key); err != nil {
			return fmt.Errorf("demoting interrupted update: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("recovering interrupted installs: %w", err)
	}
	return nil
}

func countContentRows(ctx context.Context, tx *sql.Tx, t sync.ContentType, key string) (int, error) {
	var query string
	switch t {
	case sync.BibleVersion:
		query = "SELECT COUNT(*) FROM offline_verses WHERE version_key = ?"
	case sync.Commentary:
		query = "SELECT COUNT(*) FROM offline_explanations WHERE language_code = ?"
	default:
		query = "SELECT COUNT(*) FROM offline_topics WHERE language_code = ?"
	}
	var n int
	if err := tx.QueryRowContext(ctx, query, key).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Compile-time check that SQLiteStore implements the Store interface.
var _ sync.Store = (*SQLiteStore)(nil)
