package database_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"versemate-sync/internal/database"
	"versemate-sync/internal/sync"
	"versemate-sync/internal/testutil"
)

var installedAt = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func versePackage(key string, n int) *sync.Package {
	verses := make([]sync.Verse, n)
	for i := range verses {
		verses[i] = sync.Verse{
			BookID:        1,
			ChapterNumber: 1,
			VerseNumber:   i + 1,
			Text:          fmt.Sprintf("verse %d", i+1),
		}
	}
	return &sync.Package{
		ContentType: sync.BibleVersion,
		Key:         key,
		SizeBytes:   int64(n * 50),
		Verses:      verses,
	}
}

func commentaryPackage(lang string, n int) *sync.Package {
	entries := make([]sync.Explanation, n)
	for i := range entries {
		entries[i] = sync.Explanation{
			ExplanationID: i + 1,
			BookID:        1,
			ChapterNumber: 1,
			Type:          "verse",
			Explanation:   fmt.Sprintf("note %d", i+1),
		}
	}
	return &sync.Package{
		ContentType:  sync.Commentary,
		Key:          lang,
		LanguageCode: lang,
		SizeBytes:    int64(n * 80),
		Explanations: entries,
	}
}

func topicsPackage(lang string) *sync.Package {
	order := 1
	return &sync.Package{
		ContentType:  sync.Topics,
		Key:          lang,
		LanguageCode: lang,
		SizeBytes:    300,
		Topics: []sync.Topic{
			{TopicID: "faith", Name: "Faith", Content: "...", Category: "doctrine", SortOrder: &order},
			{TopicID: "hope", Name: "Hope", Content: "..."},
		},
		TopicReferences: []sync.TopicReference{
			{TopicID: "faith", ReferenceContent: "Heb 11:1"},
			{TopicID: "hope", ReferenceContent: "Rom 15:13"},
		},
		TopicExplanations: []sync.TopicExplanation{
			{TopicID: "faith", Type: "summary", Explanation: "..."},
		},
	}
}

func TestCommitPackage(t *testing.T) {
	store := testutil.NewTestStore(t)
	ctx := context.Background()

	pkg := versePackage("NASB1995", 3)
	if err := store.CommitPackage(ctx, pkg, "2024-06-01T00:00:00Z", installedAt, nil); err != nil {
		t.Fatalf("failed to commit package: %v", err)
	}

	rec, err := store.GetContentRecord(ctx, sync.BibleVersion, "NASB1995")
	if err != nil {
		t.Fatalf("failed to load record: %v", err)
	}
	if rec == nil {
		t.Fatal("expected an installed record")
	}
	if rec.Status != sync.StatusInstalled {
		t.Errorf("status = %s, expected %s", rec.Status, sync.StatusInstalled)
	}
	if rec.InstalledVersion != "2024-06-01T00:00:00Z" {
		t.Errorf("version = %s, expected 2024-06-01T00:00:00Z", rec.InstalledVersion)
	}
	if rec.SizeBytes != pkg.SizeBytes {
		t.Errorf("size = %d, expected %d", rec.SizeBytes, pkg.SizeBytes)
	}
	if !rec.InstalledAt.Equal(installedAt) {
		t.Errorf("installed at = %v, expected %v", rec.InstalledAt, installedAt)
	}

	verses, err := store.Verses(ctx, "NASB1995", 1, 1)
	if err != nil {
		t.Fatalf("failed to read verses: %v", err)
	}
	if len(verses) != 3 {
		t.Fatalf("expected 3 verses, got %d", len(verses))
	}
	for i, v := range verses {
		if v.VerseNumber != i+1 {
			t.Errorf("verses out of order: verses[%d].VerseNumber = %d", i, v.VerseNumber)
		}
	}
}

func TestCommitPackageReplacesExistingRows(t *testing.T) {
	store := testutil.NewTestStore(t)
	ctx := context.Background()

	if err := store.CommitPackage(ctx, versePackage("NASB1995", 5), "2", installedAt, nil); err != nil {
		t.Fatalf("failed to commit first package: %v", err)
	}
	if err := store.CommitPackage(ctx, versePackage("NASB1995", 2), "3", installedAt, nil); err != nil {
		t.Fatalf("failed to commit replacement package: %v", err)
	}

	verses, err := store.Verses(ctx, "NASB1995", 1, 1)
	if err != nil {
		t.Fatalf("failed to read verses: %v", err)
	}
	if len(verses) != 2 {
		t.Errorf("expected 2 verses after replacement, got %d", len(verses))
	}
	rec, err := store.GetContentRecord(ctx, sync.BibleVersion, "NASB1995")
	if err != nil {
		t.Fatalf("failed to load record: %v", err)
	}
	if rec.InstalledVersion != "3" {
		t.Errorf("version = %s, expected 3", rec.InstalledVersion)
	}
}

func TestCommitPackageProgress(t *testing.T) {
	store := testutil.NewTestStore(t)
	ctx := context.Background()

	var checkpoints []sync.Progress
	err := store.CommitPackage(ctx, versePackage("NASB1995", 2500), "2024-06-01T00:00:00Z", installedAt,
		func(p sync.Progress) { checkpoints = append(checkpoints, p) })
	if err != nil {
		t.Fatalf("failed to commit package: %v", err)
	}

	// Three verse batches plus the record update.
	if len(checkpoints) != 4 {
		t.Fatalf("expected 4 checkpoints, got %d", len(checkpoints))
	}
	for i, p := range checkpoints {
		if p.Current != i+1 || p.Total != 4 {
			t.Errorf("checkpoint %d = %d/%d, expected %d/4", i, p.Current, p.Total, i+1)
		}
	}
	if got := checkpoints[len(checkpoints)-1].Message; got != "content record" {
		t.Errorf("final checkpoint message = %q, expected the record update", got)
	}
}

func TestCommitPackageRollsBackOnFailure(t *testing.T) {
	store := testutil.NewTestStore(t)
	ctx := context.Background()

	if err := store.CommitPackage(ctx, versePackage("NASB1995", 3), "2", installedAt, nil); err != nil {
		t.Fatalf("failed to commit first package: %v", err)
	}

	bad := versePackage("NASB1995", 1)
	bad.Verses = append(bad.Verses, bad.Verses[0]) // duplicate row violates uniqueness

	err := store.CommitPackage(ctx, bad, "3", installedAt, nil)
	if !errors.Is(err, sync.ErrStorageWrite) {
		t.Fatalf("expected ErrStorageWrite, got %v", err)
	}

	rec, err := store.GetContentRecord(ctx, sync.BibleVersion, "NASB1995")
	if err != nil {
		t.Fatalf("failed to load record: %v", err)
	}
	if rec == nil || rec.InstalledVersion != "2" {
		t.Fatalf("expected the version 2 record to survive, got %+v", rec)
	}
	verses, err := store.Verses(ctx, "NASB1995", 1, 1)
	if err != nil {
		t.Fatalf("failed to read verses: %v", err)
	}
	if len(verses) != 3 {
		t.Errorf("expected the previous 3 verses to survive, got %d", len(verses))
	}
}

func TestCommitTopicsPackage(t *testing.T) {
	store := testutil.NewTestStore(t)
	ctx := context.Background()

	pkg := topicsPackage("en")
	if err := store.CommitPackage(ctx, pkg, "2024-06-01T00:00:00Z", installedAt, nil); err != nil {
		t.Fatalf("failed to commit topics package: %v", err)
	}

	// Recommitting must clear references and explanations through the
	// topics they belong to, or the unique constraints fire.
	if err := store.CommitPackage(ctx, pkg, "2024-07-01T00:00:00Z", installedAt, nil); err != nil {
		t.Fatalf("failed to recommit topics package: %v", err)
	}

	rec, err := store.GetContentRecord(ctx, sync.Topics, "en")
	if err != nil {
		t.Fatalf("failed to load record: %v", err)
	}
	if rec == nil || rec.InstalledVersion != "2024-07-01T00:00:00Z" {
		t.Fatalf("expected the recommitted record, got %+v", rec)
	}
	if rec.LanguageCode != "en" {
		t.Errorf("language = %s, expected en", rec.LanguageCode)
	}

	if err := store.DeleteContent(ctx, sync.Topics, "en"); err != nil {
		t.Fatalf("failed to delete topics: %v", err)
	}
	used, err := store.TotalStorageUsed(ctx)
	if err != nil {
		t.Fatalf("failed to compute storage: %v", err)
	}
	if used != 0 {
		t.Errorf("storage used = %d, expected 0", used)
	}
}

// newStoreWithDB creates an in-memory store and keeps the raw connection
// so tests can inspect rows the Store does not expose.
func newStoreWithDB(t *testing.T) (*database.SQLiteStore, *sql.DB) {
	t.Helper()

	db, err := database.OpenConnection(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if _, err := db.Exec(database.Schema); err != nil {
		db.Close()
		t.Fatalf("failed to apply schema: %v", err)
	}

	store := database.NewSQLiteStoreFromDB(db, ":memory:")
	t.Cleanup(func() { store.Close() })
	return store, db
}

func countRows(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
		t.Fatalf("failed to count %s: %v", table, err)
	}
	return n
}

func TestTopicsReferencesSharedAcrossLanguages(t *testing.T) {
	store, db := newStoreWithDB(t)
	ctx := context.Background()

	en := &sync.Package{
		ContentType:  sync.Topics,
		Key:          "en",
		LanguageCode: "en",
		SizeBytes:    300,
		Topics: []sync.Topic{
			{TopicID: "faith", Name: "Faith", Content: "..."},
			{TopicID: "hope", Name: "Hope", Content: "..."},
			{TopicID: "grace", Name: "Grace", Content: "..."},
		},
		TopicReferences: []sync.TopicReference{
			{TopicID: "faith", ReferenceContent: "Heb 11:1"},
			{TopicID: "hope", ReferenceContent: "Rom 15:13"},
			{TopicID: "grace", ReferenceContent: "Eph 2:8"},
		},
		TopicExplanations: []sync.TopicExplanation{
			{TopicID: "faith", Type: "summary", Explanation: "..."},
		},
	}
	// Same topic ids in another language. Reference rows carry no language
	// and are shared with the rows "en" already installed.
	es := &sync.Package{
		ContentType:  sync.Topics,
		Key:          "es",
		LanguageCode: "es",
		SizeBytes:    200,
		Topics: []sync.Topic{
			{TopicID: "faith", Name: "Fe", Content: "..."},
			{TopicID: "hope", Name: "Esperanza", Content: "..."},
		},
		TopicReferences: []sync.TopicReference{
			{TopicID: "faith", ReferenceContent: "Heb 11:1"},
			{TopicID: "hope", ReferenceContent: "Rom 15:13"},
		},
		TopicExplanations: []sync.TopicExplanation{
			{TopicID: "faith", Type: "summary", Explanation: "..."},
		},
	}

	if err := store.CommitPackage(ctx, en, "2024-06-01T00:00:00Z", installedAt, nil); err != nil {
		t.Fatalf("failed to commit en topics: %v", err)
	}
	if err := store.CommitPackage(ctx, es, "2024-06-01T00:00:00Z", installedAt, nil); err != nil {
		t.Fatalf("failed to commit es topics alongside en: %v", err)
	}

	// Shared references are stored once, not duplicated per language.
	if got := countRows(t, db, "offline_topic_references"); got != 3 {
		t.Errorf("expected 3 reference rows, got %d", got)
	}

	// Deleting one language keeps the references its remaining sibling
	// still points at, and drops the ones only it used.
	if err := store.DeleteContent(ctx, sync.Topics, "en"); err != nil {
		t.Fatalf("failed to delete en topics: %v", err)
	}
	if got := countRows(t, db, "offline_topic_references"); got != 2 {
		t.Errorf("expected 2 reference rows after deleting en, got %d", got)
	}

	rec, err := store.GetContentRecord(ctx, sync.Topics, "es")
	if err != nil {
		t.Fatalf("failed to load es record: %v", err)
	}
	if rec == nil || rec.Status != sync.StatusInstalled {
		t.Fatalf("expected es to stay installed, got %+v", rec)
	}

	if err := store.DeleteContent(ctx, sync.Topics, "es"); err != nil {
		t.Fatalf("failed to delete es topics: %v", err)
	}
	if got := countRows(t, db, "offline_topic_references"); got != 0 {
		t.Errorf("expected no reference rows after deleting both languages, got %d", got)
	}
}

func TestDeleteContent(t *testing.T) {
	store := testutil.NewTestStore(t)
	ctx := context.Background()

	if err := store.CommitPackage(ctx, versePackage("NASB1995", 2), "2", installedAt, nil); err != nil {
		t.Fatalf("failed to commit bible package: %v", err)
	}
	if err := store.CommitPackage(ctx, commentaryPackage("en-US", 3), "2", installedAt, nil); err != nil {
		t.Fatalf("failed to commit commentary package: %v", err)
	}

	if err := store.DeleteContent(ctx, sync.BibleVersion, "NASB1995"); err != nil {
		t.Fatalf("failed to delete content: %v", err)
	}

	// Storage drops by exactly the deleted unit's size.
	used, err := store.TotalStorageUsed(ctx)
	if err != nil {
		t.Fatalf("failed to compute storage: %v", err)
	}
	if used != 240 {
		t.Errorf("storage used = %d, expected 240", used)
	}
	rec, err := store.GetContentRecord(ctx, sync.BibleVersion, "NASB1995")
	if err != nil {
		t.Fatalf("failed to load record: %v", err)
	}
	if rec != nil {
		t.Errorf("expected no record after delete, got %+v", rec)
	}
	verses, err := store.Verses(ctx, "NASB1995", 1, 1)
	if err != nil {
		t.Fatalf("failed to read verses: %v", err)
	}
	if len(verses) != 0 {
		t.Errorf("expected no verses after delete, got %d", len(verses))
	}

	// Deleting again is a no-op.
	if err := store.DeleteContent(ctx, sync.BibleVersion, "NASB1995"); err != nil {
		t.Errorf("deleting absent content failed: %v", err)
	}
}

func TestDeleteAllKeepsSettings(t *testing.T) {
	store := testutil.NewTestStore(t)
	ctx := context.Background()

	if err := store.CommitPackage(ctx, versePackage("NASB1995", 2), "2", installedAt, nil); err != nil {
		t.Fatalf("failed to commit bible package: %v", err)
	}
	if err := store.CommitPackage(ctx, topicsPackage("en"), "2", installedAt, nil); err != nil {
		t.Fatalf("failed to commit topics package: %v", err)
	}
	if err := store.SetSetting(ctx, sync.SettingOfflineMode, "true"); err != nil {
		t.Fatalf("failed to write setting: %v", err)
	}

	if err := store.DeleteAll(ctx); err != nil {
		t.Fatalf("failed to delete all: %v", err)
	}

	records, err := store.ListContentRecords(ctx)
	if err != nil {
		t.Fatalf("failed to list records: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected no records, got %d", len(records))
	}
	used, err := store.TotalStorageUsed(ctx)
	if err != nil {
		t.Fatalf("failed to compute storage: %v", err)
	}
	if used != 0 {
		t.Errorf("storage used = %d, expected 0", used)
	}
	value, err := store.Setting(ctx, sync.SettingOfflineMode)
	if err != nil {
		t.Fatalf("failed to read setting: %v", err)
	}
	if value != "true" {
		t.Errorf("offline mode = %q, expected settings to survive", value)
	}
}

func TestMarkInstallingAndRevert(t *testing.T) {
	store := testutil.NewTestStore(t)
	ctx := context.Background()

	t.Run("revert without previous record deletes it", func(t *testing.T) {
		if err := store.MarkInstalling(ctx, sync.BibleVersion, "NASB1995", ""); err != nil {
			t.Fatalf("failed to mark installing: %v", err)
		}
		rec, err := store.GetContentRecord(ctx, sync.BibleVersion, "NASB1995")
		if err != nil {
			t.Fatalf("failed to load record: %v", err)
		}
		if rec == nil || rec.Status != sync.StatusInstalling {
			t.Fatalf("expected an installing record, got %+v", rec)
		}
		if rec.InstalledVersion != "" {
			t.Errorf("version = %q, expected it cleared", rec.InstalledVersion)
		}

		if err := store.RevertInstalling(ctx, sync.BibleVersion, "NASB1995", nil); err != nil {
			t.Fatalf("failed to revert: %v", err)
		}
		rec, err = store.GetContentRecord(ctx, sync.BibleVersion, "NASB1995")
		if err != nil {
			t.Fatalf("failed to load record: %v", err)
		}
		if rec != nil {
			t.Errorf("expected no record after revert, got %+v", rec)
		}
	})

	t.Run("revert restores the previous record", func(t *testing.T) {
		if err := store.CommitPackage(ctx, versePackage("NASB1995", 2), "2", installedAt, nil); err != nil {
			t.Fatalf("failed to commit package: %v", err)
		}
		prev, err := store.GetContentRecord(ctx, sync.BibleVersion, "NASB1995")
		if err != nil {
			t.Fatalf("failed to load record: %v", err)
		}

		if err := store.MarkInstalling(ctx, sync.BibleVersion, "NASB1995", ""); err != nil {
			t.Fatalf("failed to mark installing: %v", err)
		}
		if err := store.RevertInstalling(ctx, sync.BibleVersion, "NASB1995", prev); err != nil {
			t.Fatalf("failed to revert: %v", err)
		}

		rec, err := store.GetContentRecord(ctx, sync.BibleVersion, "NASB1995")
		if err != nil {
			t.Fatalf("failed to load record: %v", err)
		}
		if rec == nil || rec.Status != sync.StatusInstalled {
			t.Fatalf("expected the installed record restored, got %+v", rec)
		}
		if rec.InstalledVersion != "2" || rec.SizeBytes != prev.SizeBytes {
			t.Errorf("restored record = %+v, expected %+v", rec, prev)
		}
	})
}

func TestRecoverInstalling(t *testing.T) {
	t.Run("interrupted fresh install is deleted", func(t *testing.T) {
		store := testutil.NewTestStore(t)
		ctx := context.Background()

		if err := store.MarkInstalling(ctx, sync.BibleVersion, "NASB1995", ""); err != nil {
			t.Fatalf("failed to mark installing: %v", err)
		}
		if err := store.RecoverInstalling(ctx); err != nil {
			t.Fatalf("failed to recover: %v", err)
		}

		rec, err := store.GetContentRecord(ctx, sync.BibleVersion, "NASB1995")
		if err != nil {
			t.Fatalf("failed to load record: %v", err)
		}
		if rec != nil {
			t.Errorf("expected the orphan record deleted, got %+v", rec)
		}
	})

	t.Run("interrupted update keeps rows and demotes the version", func(t *testing.T) {
		store := testutil.NewTestStore(t)
		ctx := context.Background()

		if err := store.CommitPackage(ctx, versePackage("NASB1995", 3), "2", installedAt, nil); err != nil {
			t.Fatalf("failed to commit package: %v", err)
		}
		// An update that died between marking and committing leaves the
		// previous rows behind with an installing record.
		if err := store.MarkInstalling(ctx, sync.BibleVersion, "NASB1995", ""); err != nil {
			t.Fatalf("failed to mark installing: %v", err)
		}

		if err := store.RecoverInstalling(ctx); err != nil {
			t.Fatalf("failed to recover: %v", err)
		}

		rec, err := store.GetContentRecord(ctx, sync.BibleVersion, "NASB1995")
		if err != nil {
			t.Fatalf("failed to load record: %v", err)
		}
		if rec == nil || rec.Status != sync.StatusInstalled {
			t.Fatalf("expected an installed record, got %+v", rec)
		}
		if rec.InstalledVersion != "" {
			t.Errorf("version = %q, expected it unknown after recovery", rec.InstalledVersion)
		}
		verses, err := store.Verses(ctx, "NASB1995", 1, 1)
		if err != nil {
			t.Fatalf("failed to read verses: %v", err)
		}
		if len(verses) != 3 {
			t.Errorf("expected the previous verses to survive, got %d", len(verses))
		}
	})
}

func TestTotalStorageExcludesInstalling(t *testing.T) {
	store := testutil.NewTestStore(t)
	ctx := context.Background()

	if err := store.CommitPackage(ctx, versePackage("NASB1995", 2), "2", installedAt, nil); err != nil {
		t.Fatalf("failed to commit package: %v", err)
	}
	if err := store.MarkInstalling(ctx, sync.BibleVersion, "ESV", ""); err != nil {
		t.Fatalf("failed to mark installing: %v", err)
	}

	used, err := store.TotalStorageUsed(ctx)
	if err != nil {
		t.Fatalf("failed to compute storage: %v", err)
	}
	if used != 100 {
		t.Errorf("storage used = %d, expected only installed content counted", used)
	}
}

func TestSettings(t *testing.T) {
	store := testutil.NewTestStore(t)
	ctx := context.Background()

	t.Run("defaults are seeded", func(t *testing.T) {
		tests := []struct {
			key  string
			want string
		}{
			{sync.SettingOfflineMode, "false"},
			{sync.SettingAutoSync, "true"},
			{sync.SettingLastSyncAt, ""},
		}
		for _, tt := range tests {
			value, err := store.Setting(ctx, tt.key)
			if err != nil {
				t.Fatalf("failed to read %s: %v", tt.key, err)
			}
			if value != tt.want {
				t.Errorf("%s = %q, expected %q", tt.key, value, tt.want)
			}
		}
	})

	t.Run("round trip", func(t *testing.T) {
		if err := store.SetSetting(ctx, sync.SettingAutoSync, "false"); err != nil {
			t.Fatalf("failed to write setting: %v", err)
		}
		value, err := store.Setting(ctx, sync.SettingAutoSync)
		if err != nil {
			t.Fatalf("failed to read setting: %v", err)
		}
		if value != "false" {
			t.Errorf("auto sync = %q, expected false", value)
		}
	})

	t.Run("unknown key reads empty", func(t *testing.T) {
		value, err := store.Setting(ctx, "no_such_setting")
		if err != nil {
			t.Fatalf("failed to read setting: %v", err)
		}
		if value != "" {
			t.Errorf("value = %q, expected empty", value)
		}
	})
}

func TestVerses(t *testing.T) {
	store := testutil.NewTestStore(t)
	ctx := context.Background()

	pkg := &sync.Package{
		ContentType: sync.BibleVersion,
		Key:         "NASB1995",
		SizeBytes:   200,
		Verses: []sync.Verse{
			{BookID: 1, ChapterNumber: 1, VerseNumber: 2, Text: "second"},
			{BookID: 1, ChapterNumber: 1, VerseNumber: 1, Text: "first"},
			{BookID: 1, ChapterNumber: 2, VerseNumber: 1, Text: "other chapter"},
			{BookID: 2, ChapterNumber: 1, VerseNumber: 1, Text: "other book"},
		},
	}
	if err := store.CommitPackage(ctx, pkg, "2", installedAt, nil); err != nil {
		t.Fatalf("failed to commit package: %v", err)
	}

	verses, err := store.Verses(ctx, "NASB1995", 1, 1)
	if err != nil {
		t.Fatalf("failed to read verses: %v", err)
	}
	if len(verses) != 2 {
		t.Fatalf("expected 2 verses, got %d", len(verses))
	}
	if verses[0].Text != "first" || verses[1].Text != "second" {
		t.Errorf("verses out of order: %+v", verses)
	}

	empty, err := store.Verses(ctx, "KJV", 1, 1)
	if err != nil {
		t.Fatalf("failed to read absent version: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("expected no verses for an absent version, got %d", len(empty))
	}
}
