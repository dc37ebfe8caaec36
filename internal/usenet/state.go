package usenet

import (
	"sync"
	"time"

	"github.com/jinzhu/copier"

	"github.com/streamgate/streamgate/internal/providers"
)

// DownloadState is one state of a DownloadHandle's lifecycle (§4.6).
type DownloadState string

const (
	StateQueued      DownloadState = "queued"
	StateDownloading DownloadState = "downloading"
	StatePaused      DownloadState = "paused"
	StateExtracting  DownloadState = "extracting"
	StateCompleted   DownloadState = "completed"
	StateFailed      DownloadState = "failed"
	// StateNotFound is synthetic: the downloader reports neither a queue nor
	// a history entry, interpreted as "likely completed and purged".
	StateNotFound DownloadState = "not_found"
)

// DownloadHandle tracks one NZB submission end-to-end. All fields after
// creation are guarded by mu; PercentComplete/State/FileSizeOnDisk are
// updated by background loops and read by RangeStreamer.
type DownloadHandle struct {
	mu sync.RWMutex

	DownloadID string
	Title      string
	MediaType  providers.MediaType
	NZBUrl     string
	UserConfig map[string]string

	state              DownloadState
	percentComplete    float64
	fileSizeOnDisk     int64
	totalEstimated     int64
	videoPath          string
	deleteOnStreamStop bool

	createdAt time.Time
}

// NewDownloadHandle creates a handle in the Queued state.
func NewDownloadHandle(downloadID, title, nzbURL string, mediaType providers.MediaType, userConfig map[string]string) *DownloadHandle {
	return &DownloadHandle{
		DownloadID: downloadID,
		Title:      title,
		NZBUrl:     nzbURL,
		MediaType:  mediaType,
		UserConfig: userConfig,
		state:      StateQueued,
		createdAt:  time.Now(),
	}
}

func (h *DownloadHandle) State() DownloadState {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state
}

func (h *DownloadHandle) SetState(s DownloadState) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state = s
}

func (h *DownloadHandle) PercentComplete() float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.percentComplete
}

func (h *DownloadHandle) SetPercentComplete(p float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.percentComplete = p
}

func (h *DownloadHandle) FileSizeOnDisk() int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.fileSizeOnDisk
}

func (h *DownloadHandle) SetFileSizeOnDisk(n int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fileSizeOnDisk = n
}

func (h *DownloadHandle) TotalEstimated() int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.totalEstimated
}

func (h *DownloadHandle) SetTotalEstimated(n int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.totalEstimated = n
}

func (h *DownloadHandle) VideoPath() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.videoPath
}

func (h *DownloadHandle) SetVideoPath(p string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.videoPath = p
}

func (h *DownloadHandle) DeleteOnStreamStop() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.deleteOnStreamStop
}

func (h *DownloadHandle) SetDeleteOnStreamStop(v bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.deleteOnStreamStop = v
}

// DownloadHandleSnapshot is a point-in-time, caller-owned copy of a
// DownloadHandle. Admin listing endpoints return these instead of *DownloadHandle
// so a client holding the response can't reach back into UserConfig or any
// other mutable field guarded by mu.
type DownloadHandleSnapshot struct {
	DownloadID string
	Title      string
	MediaType  providers.MediaType
	NZBUrl     string
	UserConfig map[string]string

	State              DownloadState
	PercentComplete    float64
	FileSizeOnDisk     int64
	TotalEstimated     int64
	VideoPath          string
	DeleteOnStreamStop bool

	CreatedAt time.Time
}

// Snapshot copies h's current state into a DownloadHandleSnapshot, deep-copying
// UserConfig via copier the way config.DeepCopy clones Config.
func (h *DownloadHandle) Snapshot() DownloadHandleSnapshot {
	h.mu.RLock()
	raw := DownloadHandleSnapshot{
		DownloadID:         h.DownloadID,
		Title:              h.Title,
		MediaType:          h.MediaType,
		NZBUrl:             h.NZBUrl,
		UserConfig:         h.UserConfig,
		State:              h.state,
		PercentComplete:    h.percentComplete,
		FileSizeOnDisk:     h.fileSizeOnDisk,
		TotalEstimated:     h.totalEstimated,
		VideoPath:          h.videoPath,
		DeleteOnStreamStop: h.deleteOnStreamStop,
		CreatedAt:          h.createdAt,
	}
	h.mu.RUnlock()

	var snap DownloadHandleSnapshot
	if err := copier.CopyWithOption(&snap, &raw, copier.Option{DeepCopy: true}); err != nil {
		return raw
	}
	return snap
}

// ActiveStream tracks one client's playback against a DownloadHandle, used by
// the inactivity-cleanup and extraction-monitor background loops.
type ActiveStream struct {
	mu sync.RWMutex

	Handle   *DownloadHandle
	Personal bool // already-completed file, untouched by inactivity cleanup

	lastAccessTs     time.Time
	lastPlaybackByte int64
}

// NewActiveStream creates an ActiveStream bound to handle.
func NewActiveStream(handle *DownloadHandle, personal bool) *ActiveStream {
	return &ActiveStream{
		Handle:       handle,
		Personal:     personal,
		lastAccessTs: time.Now(),
	}
}

// Touch records a range read at byte offset, advancing LastAccessTs
// monotonically — only RangeStreamer calls this, so no ordering race exists
// across the single serialized stream handle (§5).
func (s *ActiveStream) Touch(byteOffset int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastAccessTs = time.Now()
	if byteOffset > s.lastPlaybackByte {
		s.lastPlaybackByte = byteOffset
	}
}

func (s *ActiveStream) LastAccessTs() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastAccessTs
}

func (s *ActiveStream) LastPlaybackByte() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastPlaybackByte
}

// PlaybackPercent returns lastPlaybackByte / fileSize, or 0 if fileSize is
// not yet known.
func (s *ActiveStream) PlaybackPercent() float64 {
	size := s.Handle.FileSizeOnDisk()
	if size <= 0 {
		return 0
	}
	return float64(s.LastPlaybackByte()) / float64(size)
}
