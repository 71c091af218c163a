package sync

import (
	"context"
	"fmt"
	gosync "sync"
	"time"
)

// DefaultStalenessThreshold is the minimum elapsed time since the last
// sync before an unattended pass may run again.
const DefaultStalenessThreshold = 24 * time.Hour

// SyncReport aggregates the outcome of one sync pass.
type SyncReport struct {
	StartedAt time.Time
	Checked   int              // manifest entries examined
	Updated   []string         // record keys successfully refreshed
	Failed    map[string]error // record key -> terminal error
}

// Scheduler decides when an unattended reconcile-and-update pass runs. It
// is a two-state machine (idle, syncing): Tick moves idle→syncing only when
// auto-sync is enabled and the last sync is older than the staleness
// threshold, and a tick arriving while syncing is a no-op.
type Scheduler struct {
	svc       *SyncService
	logger    Logger
	clock     Clock
	threshold time.Duration

	mu      gosync.Mutex
	syncing bool
}

// NewScheduler creates a Scheduler. threshold <= 0 selects
// DefaultStalenessThreshold.
func NewScheduler(svc *SyncService, logger Logger, clock Clock, threshold time.Duration) *Scheduler {
	if threshold <= 0 {
		threshold = DefaultStalenessThreshold
	}
	return &Scheduler{svc: svc, logger: logger, clock: clock, threshold: threshold}
}

// Tick runs one unattended sync pass if it is due. It returns whether a
// pass ran. A pass that is skipped performs no network activity.
func (sc *Scheduler) Tick(ctx context.Context) (bool, error) {
	due, err := sc.due(ctx)
	if err != nil || !due {
		return false, err
	}
	if !sc.begin() {
		return false, nil
	}
	defer sc.end()

	report, err := sc.runPass(ctx)
	if err != nil {
		return false, err
	}
	sc.logger.Info("auto-sync pass complete",
		"checked", report.Checked,
		"updated", len(report.Updated),
		"failed", len(report.Failed))
	return true, nil
}

// Run ticks on the given cadence until the context ends. Intended for
// long-lived hosts; one-shot consumers call Tick directly.
func (sc *Scheduler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := sc.Tick(ctx); err != nil {
				sc.logger.Error("auto-sync tick", "error", err)
			}
		}
	}
}

// CheckForUpdates runs the same reconcile-and-update sequence on demand,
// bypassing the staleness check, and returns the per-item outcome. Installs
// racing an in-flight auto-sync pass are merged by the service's
// single-flight map, so running both never duplicates network work.
func (sc *Scheduler) CheckForUpdates(ctx context.Context) (*SyncReport, error) {
	return sc.runPass(ctx)
}

// due reports whether an unattended pass should run now.
func (sc *Scheduler) due(ctx context.Context) (bool, error) {
	enabled, err := sc.svc.Setting(ctx, SettingAutoSync)
	if err != nil {
		return false, fmt.Errorf("reading auto-sync setting: %w", err)
	}
	if enabled != "true" {
		return false, nil
	}

	last, err := sc.svc.Setting(ctx, SettingLastSyncAt)
	if err != nil {
		return false, fmt.Errorf("reading last-sync setting: %w", err)
	}
	if last == "" {
		return true, nil
	}
	lastAt, err := time.Parse(time.RFC3339, last)
	if err != nil {
		// Unparseable timestamp: treat as never synced.
		return true, nil
	}
	return sc.clock.Now().Sub(lastAt) > sc.threshold, nil
}

func (sc *Scheduler) begin() bool {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.syncing {
		return false
	}
	sc.syncing = true
	return true
}

func (sc *Scheduler) end() {
	sc.mu.Lock()
	sc.syncing = false
	sc.mu.Unlock()
}

// runPass fetches the manifest, reconciles every content family, and
// refreshes every unit classified update_available. It never installs new
// content unattended. Per-item failures are recorded and do not block the
// rest of the batch, and last_sync_at is written on batch completion
// regardless, so a persistently failing item cannot cause a retry storm.
func (sc *Scheduler) runPass(ctx context.Context) (*SyncReport, error) {
	report := &SyncReport{
		StartedAt: sc.clock.Now(),
		Failed:    map[string]error{},
	}

	manifest, err := sc.svc.FetchManifest(ctx)
	if err != nil {
		return nil, err
	}

	for _, t := range ContentTypes {
		infos, err := sc.svc.Downloads(ctx, manifest, t)
		if err != nil {
			return nil, err
		}
		report.Checked += len(infos)

		for _, info := range infos {
			if info.Status != UpdateAvailable {
				continue
			}
			rk := RecordKey(t, info.Key)
			if err := sc.svc.Install(ctx, t, info.Key, manifest, nil); err != nil {
				sc.logger.Warn("sync item failed", "key", rk, "error", err)
				report.Failed[rk] = err
				continue
			}
			report.Updated = append(report.Updated, rk)
		}
	}

	now := sc.clock.Now().UTC().Format(time.RFC3339)
	if err := sc.svc.SetSetting(ctx, SettingLastSyncAt, now); err != nil {
		return report, fmt.Errorf("recording last sync time: %w", err)
	}
	return report, nil
}
