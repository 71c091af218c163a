package sync

import (
	"context"
	"fmt"

	"golang.org/x/sync/singleflight"
)

// SyncService is the orchestration layer coordinating the store and the
// remote clients: reconciliation, per-unit installs, deletion and storage
// accounting. It holds the process-wide in-flight download map; construct
// one per store and share it.
type SyncService struct {
	store     Store
	manifests ManifestClient
	packages  PackageClient
	logger    Logger
	clock     Clock

	flights singleflight.Group
}

// NewSyncService creates a SyncService with the provided dependencies.
func NewSyncService(store Store, manifests ManifestClient, packages PackageClient, logger Logger, clock Clock) *SyncService {
	return &SyncService{
		store:     store,
		manifests: manifests,
		packages:  packages,
		logger:    logger,
		clock:     clock,
	}
}

// FetchManifest retrieves a fresh manifest snapshot. Callers that need the
// manifest across multiple operations keep the returned snapshot for the
// duration of their own operation.
func (s *SyncService) FetchManifest(ctx context.Context) (*Manifest, error) {
	m, err := s.manifests.FetchManifest(ctx)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("manifest fetched",
		"bible_versions", len(m.BibleVersions),
		"commentary_languages", len(m.CommentaryLanguages),
		"topic_languages", len(m.TopicLanguages))
	return m, nil
}

// Downloads classifies every manifest entry of the given content family
// against the store.
func (s *SyncService) Downloads(ctx context.Context, m *Manifest, t ContentType) ([]DownloadInfo, error) {
	records, err := s.store.ListContentRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing content records: %w", err)
	}
	return Classify(m.Entries(t), recordMap(records)), nil
}

// Install downloads and installs one content unit against the given
// manifest snapshot.
//
// Concurrent installs of the same unit are merged: the second caller
// attaches to the in-flight operation and receives the same terminal
// result, and exactly one package fetch is issued. Progress checkpoints go
// to the callback of the call that started the operation. A caller whose
// context ends before the operation finishes gets its context error while
// the operation itself runs to completion in the background, so a
// cancelled download never leaves a transaction half-applied.
func (s *SyncService) Install(ctx context.Context, t ContentType, key string, m *Manifest, onProgress ProgressFunc) error {
	ch := s.flights.DoChan(RecordKey(t, key), func() (any, error) {
		return nil, s.install(context.WithoutCancel(ctx), t, key, m, onProgress)
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// install runs one non-deduplicated install: mark installing, fetch,
// parse, commit atomically. On failure the record is reverted to its
// pre-operation state so the unit stays retryable and the previous
// installed content (if any) remains intact.
func (s *SyncService) install(ctx context.Context, t ContentType, key string, m *Manifest, onProgress ProgressFunc) error {
	entry := m.Find(t, key)
	if entry == nil {
		return fmt.Errorf("%s not in manifest snapshot: %w", RecordKey(t, key), ErrManifestStale)
	}

	prev, err := s.store.GetContentRecord(ctx, t, key)
	if err != nil {
		return fmt.Errorf("loading content record: %w", err)
	}

	if err := s.store.MarkInstalling(ctx, t, key, entry.LanguageCode); err != nil {
		return fmt.Errorf("marking installing: %w", err)
	}

	pkg, err := s.packages.FetchPackage(ctx, t, key)
	if err != nil {
		s.revert(ctx, t, key, prev)
		return err
	}

	if err := s.store.CommitPackage(ctx, pkg, entry.Version, s.clock.Now(), onProgress); err != nil {
		s.revert(ctx, t, key, prev)
		return err
	}

	s.logger.Info("content installed",
		"key", RecordKey(t, key),
		"version", entry.Version,
		"rows", pkg.RowCount(),
		"size_bytes", pkg.SizeBytes)
	return nil
}

// revert restores the pre-install record state after a failure.
func (s *SyncService) revert(ctx context.Context, t ContentType, key string, prev *ContentRecord) {
	if err := s.store.RevertInstalling(ctx, t, key, prev); err != nil {
		s.logger.Error("reverting installing record", "key", RecordKey(t, key), "error", err)
	}
}

// Remove deletes one content unit's rows and record. Removing a unit that
// was never installed succeeds.
func (s *SyncService) Remove(ctx context.Context, t ContentType, key string) error {
	if err := s.store.DeleteContent(ctx, t, key); err != nil {
		return err
	}
	s.logger.Info("content removed", "key", RecordKey(t, key))
	return nil
}

// RemoveAll deletes every content unit.
func (s *SyncService) RemoveAll(ctx context.Context) error {
	if err := s.store.DeleteAll(ctx); err != nil {
		return err
	}
	s.logger.Info("all content removed")
	return nil
}

// TotalStorageUsed returns the bytes used by installed content, derived
// live from the store.
func (s *SyncService) TotalStorageUsed(ctx context.Context) (int64, error) {
	return s.store.TotalStorageUsed(ctx)
}

// Setting and SetSetting expose the persisted settings through the
// engine's serialized-write discipline.
func (s *SyncService) Setting(ctx context.Context, key string) (string, error) {
	return s.store.Setting(ctx, key)
}

func (s *SyncService) SetSetting(ctx context.Context, key, value string) error {
	return s.store.SetSetting(ctx, key, value)
}
