// Package usenet implements UsenetController (§4.6): the DownloadHandle
// lifecycle from "client asks to play an NZB" to "bytes flow to the
// client", plus the four background loops that keep storage and playback
// in sync with the downloader.
package usenet

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/streamgate/streamgate/internal/apperrors"
	"github.com/streamgate/streamgate/internal/health"
	"github.com/streamgate/streamgate/internal/providers"
	"github.com/streamgate/streamgate/internal/usenet/fileserver"
	"github.com/streamgate/streamgate/internal/usenet/sabnzbd"
)

// VideoResource is the result of a successful OpenStream: a playable URL
// plus the estimated total size of the underlying file (§4.6 step 7).
type VideoResource struct {
	DownloadID    string
	URL           string
	EstimatedSize int64
}

// Options configures a Controller.
type Options struct {
	MinStorageBytes       int64         // disk-space gate, default 2 GiB
	MinPercentGate        float64       // default 5
	MinPercentGateTimeout time.Duration // default 60s
	VideoDiscoveryTimeout time.Duration // default 2min
	VideoPollInterval     time.Duration // default 500ms
	InactivityTimeout     time.Duration // default 10min
	InactivityInterval    time.Duration // default 2min
	ExtractionInterval    time.Duration // default 30s
	ExtractionGuardPct    float64       // default 0.15 (15%)
	AutocleanInterval     time.Duration // default 1h
	AutocleanAgeDays      int           // default 7
	Category              string
}

// rejectedArchiveSuffixes are the archive formats §4.6 step 5 disallows for
// in-progress streaming (.rar and direct video files remain supported).
var rejectedArchiveSuffixes = []string{".7z", ".7z.001", ".zip", ".zip.001"}
var excludedFilePattern = regexp.MustCompile(`(?i)sample|extra|featurette|deleted|trailer|bonus`)

// Controller owns the DownloadHandle index and the background loops that
// keep it consistent with the downloader and file server.
type Controller struct {
	downloader *sabnzbd.Client
	files      *fileserver.Client
	opts       Options
	logger     *slog.Logger

	mu      sync.RWMutex
	handles map[string]*DownloadHandle // keyed by downloadId
	streams map[string]*ActiveStream   // keyed by downloadId

	stopOnce sync.Once
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// New creates a Controller.
func New(downloader *sabnzbd.Client, files *fileserver.Client, opts Options, logger *slog.Logger) *Controller {
	if opts.MinStorageBytes <= 0 {
		opts.MinStorageBytes = 2 << 30
	}
	if opts.MinPercentGate <= 0 {
		opts.MinPercentGate = 5
	}
	if opts.MinPercentGateTimeout <= 0 {
		opts.MinPercentGateTimeout = 60 * time.Second
	}
	if opts.VideoDiscoveryTimeout <= 0 {
		opts.VideoDiscoveryTimeout = 2 * time.Minute
	}
	if opts.VideoPollInterval <= 0 {
		opts.VideoPollInterval = 500 * time.Millisecond
	}
	if opts.InactivityTimeout <= 0 {
		opts.InactivityTimeout = 10 * time.Minute
	}
	if opts.InactivityInterval <= 0 {
		opts.InactivityInterval = 2 * time.Minute
	}
	if opts.ExtractionInterval <= 0 {
		opts.ExtractionInterval = 30 * time.Second
	}
	if opts.ExtractionGuardPct <= 0 {
		opts.ExtractionGuardPct = 0.15
	}
	if opts.AutocleanInterval <= 0 {
		opts.AutocleanInterval = time.Hour
	}
	if opts.AutocleanAgeDays <= 0 {
		opts.AutocleanAgeDays = 7
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Controller{
		downloader: downloader,
		files:      files,
		opts:       opts,
		logger:     logger.With("component", "usenet_controller"),
		handles:    make(map[string]*DownloadHandle),
		streams:    make(map[string]*ActiveStream),
		stopChan:   make(chan struct{}),
	}
}

// Start launches the four background loops (§4.6 "Background loops").
func (c *Controller) Start(ctx context.Context) {
	c.wg.Add(4)
	go func() { defer c.wg.Done(); c.inactivityLoop(ctx) }()
	go func() { defer c.wg.Done(); c.extractionLoop(ctx) }()
	go func() { defer c.wg.Done(); c.autocleanLoop(ctx) }()
	go func() { defer c.wg.Done(); c.orphanSweep(ctx) }()
}

// Stop signals every background loop to exit and waits for them.
func (c *Controller) Stop() {
	c.stopOnce.Do(func() { close(c.stopChan) })
	c.wg.Wait()
}

// OpenStream implements §4.6's openStream operation end-to-end.
func (c *Controller) OpenStream(ctx context.Context, nzbURL, title string, mediaType providers.MediaType, catalogID string, userConfig map[string]string) (*VideoResource, error) {
	if existing := c.findByTitle(title); existing != nil {
		return c.attachExisting(ctx, existing)
	}

	if err := c.checkStorageGate(ctx); err != nil {
		return nil, err
	}

	handle, err := c.adopt(ctx, nzbURL, title, mediaType, userConfig)
	if err != nil {
		return nil, err
	}

	if err := c.waitMinimumPercent(ctx, handle); err != nil {
		_ = c.downloader.QueueDelete(ctx, handle.DownloadID)
		c.removeHandle(handle.DownloadID)
		return nil, err
	}

	if err := c.checkArchivePolicy(ctx, handle); err != nil {
		return nil, err
	}

	videoPath, err := c.discoverVideoFile(ctx, handle)
	if err != nil {
		return nil, err
	}
	handle.SetVideoPath(videoPath)

	c.registerStream(handle, false)

	return &VideoResource{
		DownloadID:    handle.DownloadID,
		URL:           c.files.StreamURL(videoPath),
		EstimatedSize: handle.TotalEstimated(),
	}, nil
}

func (c *Controller) findByTitle(title string) *DownloadHandle {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, h := range c.handles {
		if strings.EqualFold(h.Title, title) {
			return h
		}
	}
	return nil
}

func (c *Controller) attachExisting(ctx context.Context, handle *DownloadHandle) (*VideoResource, error) {
	c.registerStream(handle, handle.State() == StateCompleted)
	videoPath := handle.VideoPath()
	if videoPath == "" {
		var err error
		videoPath, err = c.discoverVideoFile(ctx, handle)
		if err != nil {
			return nil, err
		}
		handle.SetVideoPath(videoPath)
	}
	return &VideoResource{
		DownloadID:    handle.DownloadID,
		URL:           c.files.StreamURL(videoPath),
		EstimatedSize: handle.TotalEstimated(),
	}, nil
}

// checkStorageGate implements §4.6 step 1.
func (c *Controller) checkStorageGate(ctx context.Context) error {
	cfg, err := c.downloader.GetConfig(ctx)
	if err != nil {
		return fmt.Errorf("query downloader config: %w", err)
	}
	free := parseDiskSpaceMB(cfg.Misc.DiskSpace1)
	if free > 0 && free*1024*1024 < c.opts.MinStorageBytes {
		return apperrors.ErrInsufficientStorage
	}
	return nil
}

func parseDiskSpaceMB(raw string) int64 {
	var mb int64
	_, _ = fmt.Sscanf(raw, "%d", &mb)
	return mb
}

// adopt implements §4.6 step 2 (search queue/history for a matching title)
// and step 3 (submit, record, evict peers).
func (c *Controller) adopt(ctx context.Context, nzbURL, title string, mediaType providers.MediaType, userConfig map[string]string) (*DownloadHandle, error) {
	queue, err := c.downloader.GetQueue(ctx)
	if err == nil {
		for _, slot := range queue.Slots {
			if strings.EqualFold(slot.Name, title) {
				handle := NewDownloadHandle(slot.NzoID, title, nzbURL, mediaType, userConfig)
				handle.SetState(mapQueueStatus(slot.Status))
				c.addHandle(handle)
				return handle, nil
			}
		}
	}

	history, err := c.downloader.GetHistory(ctx, 50)
	if err == nil {
		for _, slot := range history.Slots {
			if !strings.EqualFold(slot.Name, title) {
				continue
			}
			if slot.Storage == "" {
				// File-system path no longer exists: purge and re-submit.
				_ = c.downloader.QueueDelete(ctx, slot.NzoID)
				break
			}
			handle := NewDownloadHandle(slot.NzoID, title, nzbURL, mediaType, userConfig)
			handle.SetState(StateCompleted)
			handle.SetPercentComplete(100)
			c.addHandle(handle)
			return handle, nil
		}
	}

	nzoID, err := c.downloader.AddURL(ctx, nzbURL, c.opts.Category, sabnzbd.PriorityNormal)
	if err != nil {
		return nil, fmt.Errorf("submit nzb: %w", err)
	}
	health.DownloadsSubmittedTotal.Inc()

	handle := NewDownloadHandle(nzoID, title, nzbURL, mediaType, userConfig)
	c.addHandle(handle)

	c.evictOtherInProgress(ctx, nzoID)

	return handle, nil
}

func mapQueueStatus(status string) DownloadState {
	switch strings.ToLower(status) {
	case "paused":
		return StatePaused
	case "completed":
		return StateCompleted
	case "failed":
		return StateFailed
	default:
		return StateDownloading
	}
}

// evictOtherInProgress deletes every other in-progress download, freeing
// bandwidth for the newly submitted one (§4.6 step 3). Completed handles
// never trigger eviction.
func (c *Controller) evictOtherInProgress(ctx context.Context, keepID string) {
	c.mu.RLock()
	var toEvict []string
	for id, h := range c.handles {
		if id == keepID {
			continue
		}
		switch h.State() {
		case StateDownloading, StateQueued:
			toEvict = append(toEvict, id)
		}
	}
	c.mu.RUnlock()

	for _, id := range toEvict {
		if err := c.downloader.QueueDelete(ctx, id); err != nil {
			c.logger.WarnContext(ctx, "failed to evict peer download", "nzo_id", id, "error", err)
			continue
		}
		c.removeHandle(id)
	}
}

// waitMinimumPercent implements §4.6 step 4.
func (c *Controller) waitMinimumPercent(ctx context.Context, handle *DownloadHandle) error {
	deadline := time.Now().Add(c.opts.MinPercentGateTimeout)
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		if err := c.refreshHandleFromQueue(ctx, handle); err != nil {
			c.logger.DebugContext(ctx, "queue refresh failed during gate wait", "error", err)
		}

		if handle.State() == StateCompleted || handle.PercentComplete() >= c.opts.MinPercentGate {
			return nil
		}
		if handle.State() == StateFailed {
			return apperrors.ErrDownloadFailedOrAborted
		}
		if time.Now().After(deadline) {
			return apperrors.ErrDownloadFailedOrAborted
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Controller) refreshHandleFromQueue(ctx context.Context, handle *DownloadHandle) error {
	queue, err := c.downloader.GetQueue(ctx)
	if err != nil {
		return err
	}
	for _, slot := range queue.Slots {
		if slot.NzoID != handle.DownloadID {
			continue
		}
		handle.SetState(mapQueueStatus(slot.Status))
		var pct float64
		_, _ = fmt.Sscanf(slot.Percentage, "%f", &pct)
		handle.SetPercentComplete(pct)
		return nil
	}
	// Not in queue: check history for completion.
	history, histErr := c.downloader.GetHistory(ctx, 20)
	if histErr != nil {
		return histErr
	}
	for _, slot := range history.Slots {
		if slot.NzoID != handle.DownloadID {
			continue
		}
		if strings.EqualFold(slot.Status, "completed") {
			handle.SetState(StateCompleted)
			handle.SetPercentComplete(100)
		} else {
			handle.SetState(StateFailed)
		}
		return nil
	}
	handle.SetState(StateNotFound)
	return nil
}

// checkArchivePolicy implements §4.6 step 5: .7z and .zip archives are
// rejected for in-progress streaming.
func (c *Controller) checkArchivePolicy(ctx context.Context, handle *DownloadHandle) error {
	files, err := c.downloader.GetFiles(ctx, handle.DownloadID)
	if err != nil {
		return nil // no file listing yet; the archive check is skipped for this download
	}
	for _, f := range files {
		lower := strings.ToLower(f.Filename)
		for _, ext := range rejectedArchiveSuffixes {
			if strings.HasSuffix(lower, ext) {
				return apperrors.ErrUnsupportedArchive
			}
		}
	}
	return nil
}

// discoverVideoFile implements §4.6 step 6.
func (c *Controller) discoverVideoFile(ctx context.Context, handle *DownloadHandle) (string, error) {
	deadline := time.Now().Add(c.opts.VideoDiscoveryTimeout)
	ticker := time.NewTicker(c.opts.VideoPollInterval)
	defer ticker.Stop()

	for {
		entries, err := c.files.List(ctx, handle.Title)
		if err == nil {
			if path := selectVideoFile(entries, handle); path != "" {
				return path, nil
			}
		}

		if time.Now().After(deadline) {
			return "", fmt.Errorf("video file discovery timed out for %q", handle.Title)
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
}

func selectVideoFile(entries []fileserver.FileEntry, handle *DownloadHandle) string {
	titleLower := strings.ToLower(handle.Title)
	var candidates []fileserver.FileEntry

	for _, e := range entries {
		if excludedFilePattern.MatchString(e.Name) || excludedFilePattern.MatchString(e.Path) {
			continue
		}
		if !strings.Contains(strings.ToLower(e.Path), titleLower) && !strings.Contains(strings.ToLower(e.Name), titleLower) {
			continue
		}
		candidates = append(candidates, e)
	}

	if len(candidates) == 0 {
		return ""
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].SizeBytes > candidates[j].SizeBytes })
	largest := candidates[0]
	handle.SetFileSizeOnDisk(largest.SizeBytes)
	handle.SetTotalEstimated(largest.SizeBytes)
	return largest.Path
}

// AttachStream binds a playback to an existing handle's ActiveStream,
// invoked per HTTP range read (§4.6's attachStream).
func (c *Controller) AttachStream(downloadID string, byteOffset int64) *ActiveStream {
	c.mu.RLock()
	stream := c.streams[downloadID]
	c.mu.RUnlock()
	if stream == nil {
		return nil
	}
	stream.Touch(byteOffset)
	return stream
}

func (c *Controller) registerStream(handle *DownloadHandle, personal bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.streams[handle.DownloadID]; !ok {
		c.streams[handle.DownloadID] = NewActiveStream(handle, personal)
		health.ActiveStreams.Set(float64(len(c.streams)))
	}
}

func (c *Controller) addHandle(h *DownloadHandle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handles[h.DownloadID] = h
}

func (c *Controller) removeHandle(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.handles, id)
	delete(c.streams, id)
	health.ActiveStreams.Set(float64(len(c.streams)))
}

// PauseDownload pauses a download (§4.6 primitive control).
func (c *Controller) PauseDownload(ctx context.Context, id string) error {
	if err := c.downloader.QueuePause(ctx, id); err != nil {
		return err
	}
	if h := c.handle(id); h != nil {
		h.SetState(StatePaused)
	}
	return nil
}

// ResumeDownload resumes a download.
func (c *Controller) ResumeDownload(ctx context.Context, id string) error {
	if err := c.downloader.QueueResume(ctx, id); err != nil {
		return err
	}
	if h := c.handle(id); h != nil {
		h.SetState(StateDownloading)
	}
	return nil
}

// MoveToTop raises id to the top of the download queue via the force priority.
func (c *Controller) MoveToTop(ctx context.Context, id string) error {
	return c.downloader.QueuePriority(ctx, id, sabnzbd.PriorityForce)
}

// Prioritize implements §4.6's composite operation: resume → moveToTop →
// pauseAllExcept, returning the count of paused peers.
func (c *Controller) Prioritize(ctx context.Context, id string) (int, error) {
	if err := c.ResumeDownload(ctx, id); err != nil {
		return 0, err
	}
	if err := c.MoveToTop(ctx, id); err != nil {
		return 0, err
	}

	c.mu.RLock()
	var peers []string
	for peerID, h := range c.handles {
		if peerID == id {
			continue
		}
		if h.State() == StateDownloading || h.State() == StateQueued {
			peers = append(peers, peerID)
		}
	}
	c.mu.RUnlock()

	paused := 0
	for _, peerID := range peers {
		if err := c.PauseDownload(ctx, peerID); err != nil {
			continue
		}
		paused++
	}
	return paused, nil
}

// ActiveVideoPaths returns the set of video paths whose ActiveStream was
// touched within the controller's InactivityTimeout, i.e. files that §4.8's
// StorageManager must never evict per testable property 5 ("priority-ranked
// eviction never deletes a file whose corresponding ActiveStream.lastAccessTs
// is within InactiveTimeout").
func (c *Controller) ActiveVideoPaths() map[string]struct{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := time.Now()
	paths := make(map[string]struct{}, len(c.streams))
	for _, s := range c.streams {
		if now.Sub(s.LastAccessTs()) > c.opts.InactivityTimeout {
			continue
		}
		if p := s.Handle.VideoPath(); p != "" {
			paths[p] = struct{}{}
		}
	}
	return paths
}

func (c *Controller) handle(id string) *DownloadHandle {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.handles[id]
}

// Handle returns the DownloadHandle tracked under id, or nil if unknown.
// Exported for RangeStreamer's per-request lookups.
func (c *Controller) Handle(id string) *DownloadHandle {
	return c.handle(id)
}

// ListHandles returns a snapshot of every tracked download, for admin
// visibility. Order is unspecified.
func (c *Controller) ListHandles() []DownloadHandleSnapshot {
	c.mu.RLock()
	handles := make([]*DownloadHandle, 0, len(c.handles))
	for _, h := range c.handles {
		handles = append(handles, h)
	}
	c.mu.RUnlock()

	snaps := make([]DownloadHandleSnapshot, 0, len(handles))
	for _, h := range handles {
		snaps = append(snaps, h.Snapshot())
	}
	return snaps
}
