package sync

import (
	"context"
	"time"
)

// Persisted setting keys. Created with defaults on first run, read at
// startup, written on every user toggle and after every sync pass.
const (
	SettingOfflineMode = "offline_mode_enabled"
	SettingAutoSync    = "auto_sync_enabled"
	SettingLastSyncAt  = "last_sync_at" // RFC3339
)

// Store is the local, transactional persistence layer. It exclusively owns
// all persisted rows; every mutation below is a single committed unit of
// work, and write transactions are serialized by the implementation.
type Store interface {
	// GetContentRecord returns the record for one content unit, or nil if
	// the unit has never been installed.
	GetContentRecord(ctx context.Context, t ContentType, key string) (*ContentRecord, error)

	// ListContentRecords returns every content record.
	ListContentRecords(ctx context.Context) ([]*ContentRecord, error)

	// MarkInstalling upserts the unit's record with StatusInstalling and a
	// cleared version. The row is transient bookkeeping: it is never
	// classified as installed, and a crash leaves it to be swept on the
	// next open.
	MarkInstalling(ctx context.Context, t ContentType, key, languageCode string) error

	// RevertInstalling undoes MarkInstalling after a failed install: when
	// prev is nil the installing record is deleted, otherwise prev is
	// written back verbatim.
	RevertInstalling(ctx context.Context, t ContentType, key string, prev *ContentRecord) error

	// CommitPackage atomically replaces the unit's content rows with the
	// package's rows and marks its record installed at the given version.
	// On any failure the whole transaction rolls back and the error wraps
	// ErrStorageWrite. onProgress (may be nil) receives monotonic
	// checkpoints while rows are written, never after CommitPackage
	// returns.
	CommitPackage(ctx context.Context, pkg *Package, version string, installedAt time.Time, onProgress ProgressFunc) error

	// DeleteContent removes the unit's content rows and record in one
	// transaction. Deleting a unit that is not installed is a no-op.
	DeleteContent(ctx context.Context, t ContentType, key string) error

	// DeleteAll removes all content rows and records. Settings survive.
	DeleteAll(ctx context.Context) error

	// TotalStorageUsed returns the live sum of SizeBytes over installed
	// records. It is always derived, never cached.
	TotalStorageUsed(ctx context.Context) (int64, error)

	// Verses returns the installed verses of one chapter, in verse order.
	// An uninstalled version yields an empty result, not an error.
	Verses(ctx context.Context, versionKey string, bookID, chapter int) ([]Verse, error)

	// Setting returns a persisted setting value, or "" when unset.
	Setting(ctx context.Context, key string) (string, error)

	// SetSetting writes a persisted setting value.
	SetSetting(ctx context.Context, key, value string) error

	// Close closes the underlying database handle.
	Close() error
}
