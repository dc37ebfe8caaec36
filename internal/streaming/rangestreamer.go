// Package streaming implements RangeStreamer (§4.7): HTTP range serving
// against a file that may still be growing on disk, plus the error-video
// channel (§4.9) used once a video response has already been committed.
package streaming

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/streamgate/streamgate/internal/apperrors"
	"github.com/streamgate/streamgate/internal/usenet"
	"github.com/streamgate/streamgate/internal/usenet/fileserver"
)

// Options configures a RangeStreamer.
type Options struct {
	GrowthPollInterval time.Duration // default 2s, used while waiting for a growing file
	GrowthPollTimeout  time.Duration // default 60s
	SeekAheadGuardPct  float64       // default 0.15 (15%)
	SeekAheadTimeout   time.Duration // default 5min
	SeekAheadPoll      time.Duration // default 2s
	MKVExtractionGate  float64       // default 0.8 (80%)
	ForwardSeekPct     float64       // default 0.05 (5%), telemetry threshold
	BackwardSeekPct    float64       // default 0.01 (1%), telemetry threshold
}

// SeekKind classifies a range request relative to the stream's prior
// playback position, for telemetry (§4.7 "Seek detection").
type SeekKind string

const (
	SeekSequential SeekKind = "sequential"
	SeekForward    SeekKind = "forward"
	SeekBackward   SeekKind = "backward"
)

// RangeStreamer proxies byte-range requests to the file server, applying the
// growing-file, seek-ahead, and MKV-index gating rules.
type RangeStreamer struct {
	controller *usenet.Controller
	files      *fileserver.Client
	httpClient *http.Client
	opts       Options
	logger     *slog.Logger
}

// New creates a RangeStreamer.
func New(controller *usenet.Controller, files *fileserver.Client, httpClient *http.Client, opts Options, logger *slog.Logger) *RangeStreamer {
	if opts.GrowthPollInterval <= 0 {
		opts.GrowthPollInterval = 2 * time.Second
	}
	if opts.GrowthPollTimeout <= 0 {
		opts.GrowthPollTimeout = 60 * time.Second
	}
	if opts.SeekAheadGuardPct <= 0 {
		opts.SeekAheadGuardPct = 0.15
	}
	if opts.SeekAheadTimeout <= 0 {
		opts.SeekAheadTimeout = 5 * time.Minute
	}
	if opts.SeekAheadPoll <= 0 {
		opts.SeekAheadPoll = 2 * time.Second
	}
	if opts.MKVExtractionGate <= 0 {
		opts.MKVExtractionGate = 0.8
	}
	if opts.ForwardSeekPct <= 0 {
		opts.ForwardSeekPct = 0.05
	}
	if opts.BackwardSeekPct <= 0 {
		opts.BackwardSeekPct = 0.01
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &RangeStreamer{
		controller: controller,
		files:      files,
		httpClient: httpClient,
		opts:       opts,
		logger:     logger.With("component", "range_streamer"),
	}
}

var rangeHeaderRe = regexp.MustCompile(`^bytes=(\d*)-(\d*)$`)

// parsedRange is an inclusive [Start, End] request, End == -1 meaning "to EOF".
type parsedRange struct {
	Start int64
	End   int64
}

func parseRangeHeader(header string) (*parsedRange, bool) {
	if header == "" {
		return nil, false
	}
	m := rangeHeaderRe.FindStringSubmatch(strings.TrimSpace(header))
	if m == nil {
		return nil, false
	}
	var r parsedRange
	if m[1] == "" {
		return nil, false // suffix-range ("bytes=-500") unsupported, fall back to full-file serving
	}
	start, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return nil, false
	}
	r.Start = start
	if m[2] == "" {
		r.End = -1
	} else {
		end, err := strconv.ParseInt(m[2], 10, 64)
		if err != nil {
			return nil, false
		}
		r.End = end
	}
	return &r, true
}

// Serve handles one HTTP range request against downloadID's video file
// (§4.7's "Request handling").
func (rs *RangeStreamer) Serve(ctx context.Context, w http.ResponseWriter, r *http.Request, downloadID, videoPath string) error {
	handle := rs.controller.Handle(downloadID)
	if handle == nil {
		http.NotFound(w, r)
		return fmt.Errorf("unknown download id %s", downloadID)
	}

	reqRange, hasRange := parseRangeHeader(r.Header.Get("Range"))

	if !hasRange {
		return rs.serveFull(ctx, w, r, handle, videoPath)
	}

	seekKind := SeekSequential
	if stream := rs.controller.AttachStream(downloadID, reqRange.Start); stream != nil {
		seekKind = rs.classifySeek(ctx, stream, reqRange.Start, handle)
	}

	// The MKV index gate (§4.7) guards seeks, not the initial sequential
	// read: a fresh playback session always starts at bytes=0- and must not
	// be rejected just because extraction hasn't reached the gate yet.
	if seekKind != SeekSequential && strings.HasSuffix(strings.ToLower(videoPath), ".mkv") {
		if err := rs.checkMKVGate(handle); err != nil {
			w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
			return err
		}
	}

	if err := rs.applySeekAheadRule(ctx, handle, reqRange.Start); err != nil {
		return err
	}

	fileSize := handle.FileSizeOnDisk()

	if reqRange.Start >= fileSize {
		switch {
		case handle.State() == usenet.StateDownloading:
			newSize, ok := rs.waitForGrowth(ctx, handle, reqRange.Start)
			if !ok {
				w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
				return apperrors.ErrSeekAheadTimeout
			}
			fileSize = newSize
		case fileSize == 0 && reqRange.Start == 0 && handle.State() == usenet.StateQueued:
			// §8 boundary case: bytes=0- against a still-Queued, 0-byte file
			// is not yet an error — nothing has been written, but nothing
			// has failed either. Answer with an empty 200 instead of 416.
			w.Header().Set("Content-Type", "video/mp4")
			w.Header().Set("Accept-Ranges", "bytes")
			w.WriteHeader(http.StatusOK)
			return nil
		default:
			w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
			return fmt.Errorf("range start %d beyond file size %d", reqRange.Start, fileSize)
		}
	}

	end := reqRange.End
	if end < 0 || end >= fileSize {
		end = fileSize - 1
	}

	return rs.proxyRange(ctx, w, videoPath, reqRange.Start, end, fileSize)
}

func (rs *RangeStreamer) serveFull(ctx context.Context, w http.ResponseWriter, r *http.Request, handle *usenet.DownloadHandle, videoPath string) error {
	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Accept-Ranges", "bytes")
	return rs.copyUpstream(ctx, w, videoPath, "")
}

// checkMKVGate implements §4.7's MKV special case.
func (rs *RangeStreamer) checkMKVGate(handle *usenet.DownloadHandle) error {
	total := handle.TotalEstimated()
	if total <= 0 {
		return nil
	}
	extractionPct := float64(handle.FileSizeOnDisk()) / float64(total)
	if extractionPct < rs.opts.MKVExtractionGate {
		return apperrors.ErrMKVSeekTooEarly
	}
	return nil
}

// applySeekAheadRule implements §4.7's seek-ahead rule: resume a paused
// download and wait for it to catch up to the requested offset.
func (rs *RangeStreamer) applySeekAheadRule(ctx context.Context, handle *usenet.DownloadHandle, start int64) error {
	total := handle.TotalEstimated()
	if total <= 0 {
		return nil
	}
	frontier := (handle.PercentComplete() / 100) * float64(total)
	guard := rs.opts.SeekAheadGuardPct * float64(total)

	if float64(start) < frontier-guard {
		return nil // well within the already-downloaded region
	}

	if handle.State() == usenet.StatePaused {
		if err := rs.controller.ResumeDownload(ctx, handle.DownloadID); err != nil {
			rs.logger.WarnContext(ctx, "seek-ahead resume failed", "download_id", handle.DownloadID, "error", err)
		}
	}

	deadline := time.Now().Add(rs.opts.SeekAheadTimeout)
	ticker := time.NewTicker(rs.opts.SeekAheadPoll)
	defer ticker.Stop()

	for {
		if handle.State() == usenet.StateCompleted {
			return nil
		}
		if handle.State() == usenet.StateFailed {
			return apperrors.ErrDownloadFailedOrAborted
		}
		if float64(handle.FileSizeOnDisk()) > float64(start) {
			return nil
		}
		if time.Now().After(deadline) {
			return apperrors.ErrSeekAheadTimeout
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// waitForGrowth polls the on-disk size every GrowthPollInterval until start
// becomes servable or GrowthPollTimeout elapses.
func (rs *RangeStreamer) waitForGrowth(ctx context.Context, handle *usenet.DownloadHandle, start int64) (int64, bool) {
	deadline := time.Now().Add(rs.opts.GrowthPollTimeout)
	ticker := time.NewTicker(rs.opts.GrowthPollInterval)
	defer ticker.Stop()

	for {
		size := handle.FileSizeOnDisk()
		if start < size {
			return size, true
		}
		if time.Now().After(deadline) {
			return 0, false
		}
		select {
		case <-ctx.Done():
			return 0, false
		case <-ticker.C:
		}
	}
}

// classifySeek implements §4.7's seek detection telemetry, triggering an
// aggressive resume-and-prioritize on a forward seek.
func (rs *RangeStreamer) classifySeek(ctx context.Context, stream *usenet.ActiveStream, requestedStart int64, handle *usenet.DownloadHandle) SeekKind {
	size := handle.FileSizeOnDisk()
	if size <= 0 {
		return SeekSequential
	}

	last := stream.LastPlaybackByte()
	delta := requestedStart - last
	forwardThreshold := int64(rs.opts.ForwardSeekPct * float64(size))
	backwardThreshold := int64(rs.opts.BackwardSeekPct * float64(size))

	switch {
	case delta > forwardThreshold:
		if rs.controller != nil {
			if _, err := rs.controller.Prioritize(ctx, handle.DownloadID); err != nil {
				rs.logger.WarnContext(ctx, "forward-seek prioritize failed", "download_id", handle.DownloadID, "error", err)
			}
		}
		return SeekForward
	case delta < -backwardThreshold:
		return SeekBackward
	default:
		return SeekSequential
	}
}

// proxyRange fetches [start,end] of videoPath from the file server and
// writes it through as a 206 response.
func (rs *RangeStreamer) proxyRange(ctx context.Context, w http.ResponseWriter, videoPath string, start, end, totalSize int64) error {
	upstreamRange := fmt.Sprintf("bytes=%d-%d", start, end)

	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, totalSize))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", end-start+1))
	w.WriteHeader(http.StatusPartialContent)

	return rs.copyUpstream(ctx, w, videoPath, upstreamRange)
}

func (rs *RangeStreamer) copyUpstream(ctx context.Context, w io.Writer, videoPath, rangeHeader string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rs.files.StreamURL(videoPath), nil)
	if err != nil {
		return err
	}
	if rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}

	resp, err := rs.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetch upstream range: %w", err)
	}
	defer resp.Body.Close()

	_, err = io.Copy(w, resp.Body)
	return err
}
