package sync

import "time"

// ContentType identifies one of the installable content families.
type ContentType string

const (
	BibleVersion ContentType = "bible_version"
	Commentary   ContentType = "commentary"
	Topics       ContentType = "topics"
)

// ContentTypes lists every content family, in display order.
var ContentTypes = []ContentType{BibleVersion, Commentary, Topics}

// keyPrefix returns the short prefix used in record keys, matching the
// resource_key format the backend publishes ("bible:NASB1995").
func (t ContentType) keyPrefix() string {
	switch t {
	case BibleVersion:
		return "bible"
	case Commentary:
		return "commentary"
	default:
		return "topics"
	}
}

// RecordKey returns the canonical identity of a content unit, e.g.
// "bible:NASB1995" or "commentary:en-US". It is used both as the
// single-flight key and for progress messages.
func RecordKey(t ContentType, key string) string {
	return t.keyPrefix() + ":" + key
}

// ManifestEntry describes one installable content unit as published by the
// remote manifest. Version is an opaque token (the backend publishes the
// content's updated_at timestamp); see CompareVersions for ordering rules.
type ManifestEntry struct {
	Key          string
	DisplayName  string
	ContentType  ContentType
	LanguageCode string // empty for Bible versions
	Version      string
	SizeEstimate int64
}

// Manifest is a point-in-time snapshot of everything the backend publishes.
// It is a value object: a new fetch replaces the whole snapshot, it is never
// mutated in place.
type Manifest struct {
	BibleVersions       []ManifestEntry
	CommentaryLanguages []ManifestEntry
	TopicLanguages      []ManifestEntry
	FetchedAt           time.Time
}

// Entries returns the manifest entries for one content family, in
// manifest order.
func (m *Manifest) Entries(t ContentType) []ManifestEntry {
	switch t {
	case BibleVersion:
		return m.BibleVersions
	case Commentary:
		return m.CommentaryLanguages
	default:
		return m.TopicLanguages
	}
}

// Find returns the entry for the given content unit, or nil if the
// manifest no longer lists it.
func (m *Manifest) Find(t ContentType, key string) *ManifestEntry {
	entries := m.Entries(t)
	for i := range entries {
		if entries[i].Key == key {
			return &entries[i]
		}
	}
	return nil
}

// RecordStatus is the persisted lifecycle state of a content unit.
type RecordStatus string

const (
	StatusInstalling RecordStatus = "installing"
	StatusInstalled  RecordStatus = "installed"
)

// ContentRecord is the persisted row tracking one installed (or currently
// installing) content unit. A record with StatusInstalled implies every
// content row belonging to the unit is fully present.
type ContentRecord struct {
	ContentType      ContentType
	Key              string
	LanguageCode     string
	InstalledVersion string // empty while installing or when the version is unknown
	InstalledAt      time.Time
	SizeBytes        int64
	Status           RecordStatus
}

// DownloadStatus is the consumer-facing classification of a content unit,
// derived by joining manifest entries against content records.
type DownloadStatus string

const (
	NotDownloaded   DownloadStatus = "not_downloaded"
	Downloading     DownloadStatus = "downloading"
	Downloaded      DownloadStatus = "downloaded"
	UpdateAvailable DownloadStatus = "update_available"
)

// DownloadInfo is the derived, display-ready view of a content unit. It is
// computed on demand and never stored.
type DownloadInfo struct {
	Key          string
	DisplayName  string
	ContentType  ContentType
	LanguageCode string
	Status       DownloadStatus
	SizeBytes    int64 // installed size when present, manifest estimate otherwise
	DownloadedAt time.Time
}

// Progress is a transient checkpoint reported while a download is being
// committed. Current and Total count logical chunks written (row batches
// plus the final record update), not bytes, so progress is monotonic and
// bounded even when network byte counts are unknown.
type Progress struct {
	Current int
	Total   int
	Message string
}

// ProgressFunc receives download progress checkpoints. It is called
// synchronously from the install operation and never after the operation
// reaches its terminal result.
type ProgressFunc func(Progress)
