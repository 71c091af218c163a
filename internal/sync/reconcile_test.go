package sync_test

import (
	"testing"
	"time"

	"versemate-sync/internal/sync"
)

func bibleEntry(key, version string) sync.ManifestEntry {
	return sync.ManifestEntry{
		Key:          key,
		DisplayName:  key,
		ContentType:  sync.BibleVersion,
		Version:      version,
		SizeEstimate: 2048,
	}
}

func installedRecord(t sync.ContentType, key, version string) *sync.ContentRecord {
	return &sync.ContentRecord{
		ContentType:      t,
		Key:              key,
		InstalledVersion: version,
		InstalledAt:      time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		SizeBytes:        4096,
		Status:           sync.StatusInstalled,
	}
}

func recordsByKey(records ...*sync.ContentRecord) map[string]*sync.ContentRecord {
	m := make(map[string]*sync.ContentRecord, len(records))
	for _, r := range records {
		m[sync.RecordKey(r.ContentType, r.Key)] = r
	}
	return m
}

func TestClassify(t *testing.T) {
	t.Run("no record is not downloaded", func(t *testing.T) {
		infos := sync.Classify(
			[]sync.ManifestEntry{bibleEntry("NASB1995", "2024-06-01T00:00:00Z")},
			nil)
		if len(infos) != 1 {
			t.Fatalf("expected 1 info, got %d", len(infos))
		}
		if infos[0].Status != sync.NotDownloaded {
			t.Errorf("status = %s, expected %s", infos[0].Status, sync.NotDownloaded)
		}
		if infos[0].SizeBytes != 2048 {
			t.Errorf("size = %d, expected the manifest estimate 2048", infos[0].SizeBytes)
		}
	})

	t.Run("installing record is downloading", func(t *testing.T) {
		rec := &sync.ContentRecord{
			ContentType: sync.BibleVersion,
			Key:         "NASB1995",
			Status:      sync.StatusInstalling,
		}
		infos := sync.Classify(
			[]sync.ManifestEntry{bibleEntry("NASB1995", "2024-06-01T00:00:00Z")},
			recordsByKey(rec))
		if infos[0].Status != sync.Downloading {
			t.Errorf("status = %s, expected %s", infos[0].Status, sync.Downloading)
		}
	})

	t.Run("matching version is downloaded", func(t *testing.T) {
		rec := installedRecord(sync.BibleVersion, "NASB1995", "2024-06-01T00:00:00Z")
		infos := sync.Classify(
			[]sync.ManifestEntry{bibleEntry("NASB1995", "2024-06-01T00:00:00Z")},
			recordsByKey(rec))
		if infos[0].Status != sync.Downloaded {
			t.Errorf("status = %s, expected %s", infos[0].Status, sync.Downloaded)
		}
		if infos[0].SizeBytes != rec.SizeBytes {
			t.Errorf("size = %d, expected the installed size %d", infos[0].SizeBytes, rec.SizeBytes)
		}
		if !infos[0].DownloadedAt.Equal(rec.InstalledAt) {
			t.Errorf("downloaded at = %v, expected %v", infos[0].DownloadedAt, rec.InstalledAt)
		}
	})

	t.Run("older installed version is update available", func(t *testing.T) {
		rec := installedRecord(sync.BibleVersion, "NASB1995", "2024-01-01T00:00:00Z")
		infos := sync.Classify(
			[]sync.ManifestEntry{bibleEntry("NASB1995", "2024-06-01T00:00:00Z")},
			recordsByKey(rec))
		if infos[0].Status != sync.UpdateAvailable {
			t.Errorf("status = %s, expected %s", infos[0].Status, sync.UpdateAvailable)
		}
	})

	t.Run("numeric versions compare numerically", func(t *testing.T) {
		rec := installedRecord(sync.BibleVersion, "NASB1995", "2")
		infos := sync.Classify(
			[]sync.ManifestEntry{bibleEntry("NASB1995", "3")},
			recordsByKey(rec))
		if infos[0].Status != sync.UpdateAvailable {
			t.Errorf("status = %s, expected %s", infos[0].Status, sync.UpdateAvailable)
		}
	})

	t.Run("unknown installed version is update available", func(t *testing.T) {
		rec := installedRecord(sync.BibleVersion, "NASB1995", "")
		infos := sync.Classify(
			[]sync.ManifestEntry{bibleEntry("NASB1995", "2024-06-01T00:00:00Z")},
			recordsByKey(rec))
		if infos[0].Status != sync.UpdateAvailable {
			t.Errorf("status = %s, expected %s", infos[0].Status, sync.UpdateAvailable)
		}
	})

	t.Run("newer installed version stays downloaded", func(t *testing.T) {
		rec := installedRecord(sync.BibleVersion, "NASB1995", "2025-01-01T00:00:00Z")
		infos := sync.Classify(
			[]sync.ManifestEntry{bibleEntry("NASB1995", "2024-06-01T00:00:00Z")},
			recordsByKey(rec))
		if infos[0].Status != sync.Downloaded {
			t.Errorf("status = %s, expected %s", infos[0].Status, sync.Downloaded)
		}
	})

	t.Run("deprecated records are excluded", func(t *testing.T) {
		rec := installedRecord(sync.BibleVersion, "OLDVERSION", "2024-01-01T00:00:00Z")
		infos := sync.Classify(
			[]sync.ManifestEntry{bibleEntry("NASB1995", "2024-06-01T00:00:00Z")},
			recordsByKey(rec))
		if len(infos) != 1 {
			t.Fatalf("expected 1 info, got %d", len(infos))
		}
		if infos[0].Key != "NASB1995" {
			t.Errorf("key = %s, expected NASB1995", infos[0].Key)
		}
	})

	t.Run("preserves manifest order", func(t *testing.T) {
		entries := []sync.ManifestEntry{
			bibleEntry("NASB1995", "2024-06-01T00:00:00Z"),
			bibleEntry("KJV", "2024-06-01T00:00:00Z"),
			bibleEntry("ESV", "2024-06-01T00:00:00Z"),
		}
		infos := sync.Classify(entries, recordsByKey(
			installedRecord(sync.BibleVersion, "ESV", "2024-06-01T00:00:00Z")))
		if len(infos) != 3 {
			t.Fatalf("expected 3 infos, got %d", len(infos))
		}
		for i, want := range []string{"NASB1995", "KJV", "ESV"} {
			if infos[i].Key != want {
				t.Errorf("infos[%d].Key = %s, expected %s", i, infos[i].Key, want)
			}
		}
	})
}
