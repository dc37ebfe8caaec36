// Package storage implements StorageManager (§4.8): priority-based file
// eviction under Normal and Critical pressure, plus the pre-download gate
// that runs a synchronous Critical pass before a new submission.
package storage

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/streamgate/streamgate/internal/health"
	"github.com/streamgate/streamgate/internal/usenet/fileserver"
)

// Mode selects the cleanup target and whether incomplete files are
// eligible for deletion (§4.8 "Modes").
type Mode int

const (
	// ModeNormal targets freeing 10 GiB and never deletes incomplete files.
	ModeNormal Mode = iota
	// ModeCritical targets freeing 20 GiB and admits deleting incomplete files.
	ModeCritical
)

// String returns the metric-label form of m.
func (m Mode) String() string {
	if m == ModeCritical {
		return "critical"
	}
	return "normal"
}

// Options configures a Manager.
type Options struct {
	NormalTargetBytes      int64         // default 10 GiB
	CriticalTargetBytes    int64         // default 20 GiB
	PreDownloadGateBytes   int64         // default 2 GiB
	PreDownloadMinFreed    int64         // default 1 GiB
	DeleteYieldInterval    time.Duration // default 100ms
	WatchedThresholdPct    float64       // default 0.90
	CompletedAgeThreshold  time.Duration // default 7 days
	IncompleteAgeThreshold time.Duration // default 3 days
}

// ActivePathsFunc reports the video paths currently protected by a recent
// ActiveStream touch (testable property 5); Run excludes these from
// eviction regardless of priority. Optional — a nil func protects nothing.
type ActivePathsFunc func() map[string]struct{}

// Manager runs the priority-based cleanup policy against one file server.
type Manager struct {
	files       *fileserver.Client
	opts        Options
	logger      *slog.Logger
	activePaths ActivePathsFunc
}

// New creates a Manager. Call SetActivePathsFunc to wire in the usenet
// controller's active-stream protection (done in cmd/streamgate/cmd/serve.go
// to avoid an import cycle between internal/storage and internal/usenet).
func New(files *fileserver.Client, opts Options, logger *slog.Logger) *Manager {
	if opts.NormalTargetBytes <= 0 {
		opts.NormalTargetBytes = 10 << 30
	}
	if opts.CriticalTargetBytes <= 0 {
		opts.CriticalTargetBytes = 20 << 30
	}
	if opts.PreDownloadGateBytes <= 0 {
		opts.PreDownloadGateBytes = 2 << 30
	}
	if opts.PreDownloadMinFreed <= 0 {
		opts.PreDownloadMinFreed = 1 << 30
	}
	if opts.DeleteYieldInterval <= 0 {
		opts.DeleteYieldInterval = 100 * time.Millisecond
	}
	if opts.WatchedThresholdPct <= 0 {
		opts.WatchedThresholdPct = 0.90
	}
	if opts.CompletedAgeThreshold <= 0 {
		opts.CompletedAgeThreshold = 7 * 24 * time.Hour
	}
	if opts.IncompleteAgeThreshold <= 0 {
		opts.IncompleteAgeThreshold = 3 * 24 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{files: files, opts: opts, logger: logger.With("component", "storage_manager")}
}

// SetActivePathsFunc wires in the callback Run consults to protect
// currently-playing files from eviction.
func (m *Manager) SetActivePathsFunc(f ActivePathsFunc) {
	m.activePaths = f
}

// priority computes a file's cleanup priority per §4.8's scoring rules;
// higher deletes first.
func priority(e fileserver.FileEntry, now time.Time) float64 {
	ageDays := now.Sub(e.ModifiedAt).Hours() / 24

	if e.WatchedPct >= 90 {
		hoursSinceWatch := 0.0
		if e.LastWatchedAt != nil {
			hoursSinceWatch = now.Sub(*e.LastWatchedAt).Hours()
		}
		return 1000 + hoursSinceWatch
	}

	if e.Completed && ageDays > 7 {
		return 100 + 10*ageDays
	}

	if !e.Completed && ageDays > 3 {
		return 50 + 5*ageDays
	}

	return 0
}

// eligible reports whether e is a deletion candidate under mode.
func eligible(e fileserver.FileEntry, mode Mode, now time.Time) bool {
	ageDays := now.Sub(e.ModifiedAt).Hours() / 24

	if e.WatchedPct >= 90 {
		return true
	}
	if e.Completed && ageDays > 7 {
		return true
	}
	if !e.Completed && ageDays > 3 {
		// Normal mode never deletes still-incomplete files (§4.8).
		return mode == ModeCritical
	}
	return false
}

// Run executes one cleanup pass under mode, deleting highest-priority files
// first until targetBytes have been freed, yielding between deletes.
func (m *Manager) Run(ctx context.Context, mode Mode) (freedBytes int64, err error) {
	entries, err := m.files.List(ctx, "")
	if err != nil {
		return 0, err
	}

	target := m.opts.NormalTargetBytes
	if mode == ModeCritical {
		target = m.opts.CriticalTargetBytes
	}

	var protected map[string]struct{}
	if m.activePaths != nil {
		protected = m.activePaths()
	}

	now := time.Now()
	var candidates []fileserver.FileEntry
	for _, e := range entries {
		if _, active := protected[e.Path]; active {
			continue
		}
		if eligible(e, mode, now) {
			candidates = append(candidates, e)
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		return priority(candidates[i], now) > priority(candidates[j], now)
	})

	for _, e := range candidates {
		if freedBytes >= target {
			break
		}
		if err := m.files.Delete(ctx, e.Path); err != nil {
			m.logger.WarnContext(ctx, "storage cleanup delete failed", "path", e.Path, "error", err)
			continue
		}
		freedBytes += e.SizeBytes
		health.StorageEvictionsTotal.WithLabelValues(mode.String()).Inc()

		select {
		case <-ctx.Done():
			return freedBytes, ctx.Err()
		case <-time.After(m.opts.DeleteYieldInterval):
		}
	}

	return freedBytes, nil
}

// PreDownloadGate implements §4.8's pre-download gate: if available space is
// below the gate threshold, run a synchronous Critical pass and proceed only
// if it freed at least PreDownloadMinFreed.
func (m *Manager) PreDownloadGate(ctx context.Context, availableBytes int64) (bool, error) {
	if availableBytes >= m.opts.PreDownloadGateBytes {
		return true, nil
	}

	freed, err := m.Run(ctx, ModeCritical)
	if err != nil {
		return false, err
	}
	return freed >= m.opts.PreDownloadMinFreed, nil
}
