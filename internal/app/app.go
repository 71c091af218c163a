// Package app is the application layer between the CLI (or any other
// presentation layer) and the sync engine. It constructs all dependencies
// from config, exposes the consumer-facing operations, and manages the
// store lifecycle on Close.
package app

import (
	"context"
	"fmt"
	"os"
	gosync "sync"
	"time"

	"github.com/google/uuid"

	"versemate-sync/internal/config"
	"versemate-sync/internal/database"
	"versemate-sync/internal/remote"
	"versemate-sync/internal/sync"
)

// App wires the engine together. The store handle and the service's
// in-flight download map live here for the process lifetime; they are
// created once at startup and never re-initialized.
type App struct {
	cfg       *config.Config
	store     sync.Store
	service   *sync.SyncService
	scheduler *sync.Scheduler
	logFile   *os.File

	mu       gosync.Mutex
	manifest *sync.Manifest // last fetched snapshot, for read accessors
}

// NewApp creates a fully wired App from the given config. operation
// identifies the command being run and tags every log line of this run.
// The caller must call Close when done.
func NewApp(cfg *config.Config, operation string) (*App, error) {
	if cfg.Database.Type == "sqlite" {
		if err := os.MkdirAll(cfg.Database.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	store, err := database.NewStoreFromConfig(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("creating store: %w", err)
	}

	runID := uuid.New().String()[:8] + "/" + operation
	logger, logFile, err := newLogger(cfg.LogDir, runID)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	client := remote.NewClient(cfg.API.BaseURL,
		time.Duration(cfg.API.TimeoutSeconds)*time.Second,
		cfg.API.RequestsPerSecond)

	svc := sync.NewSyncService(store, client, client, &slogAdapter{l: logger}, sync.RealClock{})
	scheduler := sync.NewScheduler(svc, &slogAdapter{l: logger}, sync.RealClock{},
		time.Duration(cfg.Sync.StalenessHours)*time.Hour)

	return &App{
		cfg:       cfg,
		store:     store,
		service:   svc,
		scheduler: scheduler,
		logFile:   logFile,
	}, nil
}

// Close releases the store and the log file.
func (a *App) Close() error {
	err := a.store.Close()
	if a.logFile != nil {
		a.logFile.Close()
	}
	return err
}

// RefreshManifest fetches a fresh manifest snapshot and makes it the one
// the read accessors classify against.
func (a *App) RefreshManifest(ctx context.Context) (*sync.Manifest, error) {
	m, err := a.service.FetchManifest(ctx)
	if err != nil {
		return nil, err
	}
	a.mu.Lock()
	a.manifest = m
	a.mu.Unlock()
	return m, nil
}

// snapshot returns the held manifest, fetching one first if needed. Each
// mutating operation uses a single snapshot for its whole duration.
func (a *App) snapshot(ctx context.Context) (*sync.Manifest, error) {
	a.mu.Lock()
	m := a.manifest
	a.mu.Unlock()
	if m != nil {
		return m, nil
	}
	return a.RefreshManifest(ctx)
}

// Downloads

func (a *App) DownloadBibleVersion(ctx context.Context, key string, onProgress sync.ProgressFunc) error {
	return a.install(ctx, sync.BibleVersion, key, onProgress)
}

func (a *App) DownloadCommentaries(ctx context.Context, languageCode string, onProgress sync.ProgressFunc) error {
	return a.install(ctx, sync.Commentary, languageCode, onProgress)
}

func (a *App) DownloadTopics(ctx context.Context, languageCode string, onProgress sync.ProgressFunc) error {
	return a.install(ctx, sync.Topics, languageCode, onProgress)
}

func (a *App) install(ctx context.Context, t sync.ContentType, key string, onProgress sync.ProgressFunc) error {
	m, err := a.snapshot(ctx)
	if err != nil {
		return err
	}
	return a.service.Install(ctx, t, key, m, onProgress)
}

// Deletion

func (a *App) DeleteBibleVersion(ctx context.Context, key string) error {
	return a.service.Remove(ctx, sync.BibleVersion, key)
}

func (a *App) DeleteCommentaries(ctx context.Context, languageCode string) error {
	return a.service.Remove(ctx, sync.Commentary, languageCode)
}

func (a *App) DeleteTopics(ctx context.Context, languageCode string) error {
	return a.service.Remove(ctx, sync.Topics, languageCode)
}

func (a *App) DeleteAllData(ctx context.Context) error {
	return a.service.RemoveAll(ctx)
}

// Read accessors. These re-query the engine every call so presentation
// state is rebuilt from store truth instead of hand-patched.

func (a *App) BibleVersions(ctx context.Context) ([]sync.DownloadInfo, error) {
	return a.downloads(ctx, sync.BibleVersion)
}

func (a *App) Commentaries(ctx context.Context) ([]sync.DownloadInfo, error) {
	return a.downloads(ctx, sync.Commentary)
}

func (a *App) Topics(ctx context.Context) ([]sync.DownloadInfo, error) {
	return a.downloads(ctx, sync.Topics)
}

func (a *App) downloads(ctx context.Context, t sync.ContentType) ([]sync.DownloadInfo, error) {
	m, err := a.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return a.service.Downloads(ctx, m, t)
}

func (a *App) TotalStorageUsed(ctx context.Context) (int64, error) {
	return a.service.TotalStorageUsed(ctx)
}

// Verses reads installed verses for one chapter, straight from the store.
func (a *App) Verses(ctx context.Context, versionKey string, bookID, chapter int) ([]sync.Verse, error) {
	return a.store.Verses(ctx, versionKey, bookID, chapter)
}

// Sync

// CheckForUpdates runs a manual reconcile-and-update pass, bypassing the
// staleness check. The held manifest snapshot is dropped afterwards so
// subsequent reads classify against fresh state.
func (a *App) CheckForUpdates(ctx context.Context) (*sync.SyncReport, error) {
	report, err := a.scheduler.CheckForUpdates(ctx)
	a.mu.Lock()
	a.manifest = nil
	a.mu.Unlock()
	return report, err
}

// AutoSyncTick runs one unattended sync pass if it is due, returning
// whether it ran.
func (a *App) AutoSyncTick(ctx context.Context) (bool, error) {
	ran, err := a.scheduler.Tick(ctx)
	if ran {
		a.mu.Lock()
		a.manifest = nil
		a.mu.Unlock()
	}
	return ran, err
}

// RunAutoSync ticks on the given cadence until the context ends.
func (a *App) RunAutoSync(ctx context.Context, interval time.Duration) {
	a.scheduler.Run(ctx, interval)
}

// Settings

func (a *App) OfflineModeEnabled(ctx context.Context) (bool, error) {
	return a.boolSetting(ctx, sync.SettingOfflineMode)
}

func (a *App) SetOfflineMode(ctx context.Context, enabled bool) error {
	return a.service.SetSetting(ctx, sync.SettingOfflineMode, formatBool(enabled))
}

func (a *App) AutoSyncEnabled(ctx context.Context) (bool, error) {
	return a.boolSetting(ctx, sync.SettingAutoSync)
}

func (a *App) SetAutoSync(ctx context.Context, enabled bool) error {
	return a.service.SetSetting(ctx, sync.SettingAutoSync, formatBool(enabled))
}

// LastSyncAt returns the time of the last completed sync pass, or the zero
// time when no pass has run yet.
func (a *App) LastSyncAt(ctx context.Context) (time.Time, error) {
	v, err := a.service.Setting(ctx, sync.SettingLastSyncAt)
	if err != nil || v == "" {
		return time.Time{}, err
	}
	at, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, nil // unreadable timestamp reads as never synced
	}
	return at, nil
}

func (a *App) boolSetting(ctx context.Context, key string) (bool, error) {
	v, err := a.service.Setting(ctx, key)
	if err != nil {
		return false, err
	}
	return v == "true", nil
}

func formatBool(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
