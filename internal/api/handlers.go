package api

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/streamgate/streamgate/internal/apperrors"
	"github.com/streamgate/streamgate/internal/providers"
	"github.com/streamgate/streamgate/internal/storage"
	"github.com/streamgate/streamgate/internal/streaming"
	"github.com/streamgate/streamgate/pkg/nzbutil"
)

// openUsenetStream implements §6's stream endpoint
// (`/usenet/stream/{nzbUrl}/{title}/{type}/{id}?config=…`): it opens or
// attaches to a DownloadHandle (§4.6 openStream, idempotent on title), then
// redirects the client to the per-downloadId play route for the actual byte
// stream.
func (h *handlers) openUsenetStream(w http.ResponseWriter, r *http.Request) {
	nzbURL, err := url.PathUnescape(r.PathValue("nzbUrl"))
	if err != nil {
		WriteBadRequest(w, ErrMsgBadRequest, "invalid nzbUrl segment")
		return
	}
	if !nzbutil.IsNZBURL(nzbURL) {
		WriteBadRequest(w, ErrMsgBadRequest, "nzbUrl must be an absolute http(s) URL")
		return
	}
	title, err := url.PathUnescape(r.PathValue("title"))
	if err != nil {
		WriteBadRequest(w, ErrMsgBadRequest, "invalid title segment")
		return
	}
	mediaType := providers.MediaType(r.PathValue("type"))
	catalogID := r.PathValue("id")

	userConfig := make(map[string]string)
	for k, v := range r.URL.Query() {
		if len(v) > 0 {
			userConfig[k] = v[0]
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	fetch := func(ctx context.Context) (string, error) {
		resource, err := h.deps.UsenetCtrl.OpenStream(ctx, nzbURL, title, mediaType, catalogID, userConfig)
		if err != nil {
			return "", err
		}
		return resource.DownloadID, nil
	}

	var downloadID string
	if h.deps.Resolver != nil {
		downloadID, err = h.deps.Resolver.ResolveOnce(ctx, nzbutil.CacheKey(nzbURL), title, h.deps.CacheTTL, fetch)
		// A database-persisted downloadId can outlive the in-memory handle it
		// named (e.g. across a gateway restart); fall back to a fresh
		// OpenStream rather than redirecting to a handle that no longer exists.
		if err == nil && h.deps.UsenetCtrl.Handle(downloadID) == nil {
			downloadID, err = fetch(ctx)
		}
	} else {
		downloadID, err = fetch(ctx)
	}
	if err != nil {
		h.handleOpenStreamError(ctx, w, err)
		return
	}

	http.Redirect(w, r, "/usenet/play/"+downloadID, http.StatusFound)
}

// handleOpenStreamError implements §7's propagation policy for
// request-level failures: InsufficientStorage gets a 507 before any bytes
// are sent; everything else that already has a typed kind is surfaced as an
// error video once a client expects a video response.
func (h *handlers) handleOpenStreamError(ctx context.Context, w http.ResponseWriter, err error) {
	h.deps.Logger.WarnContext(ctx, "open usenet stream failed", "error", err)

	if apperrors.Is(err, apperrors.KindInsufficientStorage) {
		w.WriteHeader(http.StatusInsufficientStorage)
		return
	}

	if kind, ok := apperrors.KindOf(err); ok {
		if serveErr := streaming.ServeErrorVideo(ctx, h.deps.Files, h.deps.HTTPClient, w, string(kind)); serveErr == nil {
			return
		}
	}

	WriteInternalError(w, ErrMsgInternalServer, err.Error())
}

// playUsenetStream implements §4.6's attachStream, invoked once per HTTP
// range read against an already-open download.
func (h *handlers) playUsenetStream(w http.ResponseWriter, r *http.Request) {
	downloadID := r.PathValue("downloadId")

	handle := h.deps.UsenetCtrl.Handle(downloadID)
	if handle == nil {
		http.NotFound(w, r)
		return
	}

	ctx := r.Context()
	if err := h.deps.RangeStreamer.Serve(ctx, w, r, downloadID, handle.VideoPath()); err != nil {
		h.handleStreamServeError(ctx, w, err)
	}
}

// handleStreamServeError maps §4.7/§7's in-flight failure kinds to their
// specified status codes. RangeStreamer has already written the status line
// in most of these cases; this only covers the ones it defers to the caller.
func (h *handlers) handleStreamServeError(ctx context.Context, w http.ResponseWriter, err error) {
	h.deps.Logger.DebugContext(ctx, "range stream serve ended with error", "error", err)

	switch {
	case apperrors.Is(err, apperrors.KindDownloadFailedOrAborted):
		http.Error(w, "download failed or was aborted", http.StatusInternalServerError)
	case apperrors.Is(err, apperrors.KindSeekAheadTimeout):
		http.Error(w, "timed out waiting for download to reach requested offset", http.StatusRequestTimeout)
	case apperrors.Is(err, apperrors.KindMKVSeekTooEarly):
		// Status already written as 416 by RangeStreamer; nothing further to do.
	case errors.Is(err, context.Canceled):
		// Client disconnected mid-stream; nothing to write.
	}
}

// errorVideo proxies the pre-rendered error-as-video clip (§4.9), used when
// a stream URL itself pointed straight at the error channel.
func (h *handlers) errorVideo(w http.ResponseWriter, r *http.Request) {
	message := r.URL.Query().Get("message")
	if message == "" {
		message = "stream unavailable"
	}
	_ = streaming.ServeErrorVideo(r.Context(), h.deps.Files, h.deps.HTTPClient, w, message)
}

func (h *handlers) healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (h *handlers) pauseDownload(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("downloadId")
	if err := h.deps.UsenetCtrl.PauseDownload(r.Context(), id); err != nil {
		WriteInternalError(w, ErrMsgInternalServer, err.Error())
		return
	}
	WriteSuccess(w, map[string]string{"download_id": id, "state": "paused"}, nil)
}

func (h *handlers) resumeDownload(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("downloadId")
	if err := h.deps.UsenetCtrl.ResumeDownload(r.Context(), id); err != nil {
		WriteInternalError(w, ErrMsgInternalServer, err.Error())
		return
	}
	WriteSuccess(w, map[string]string{"download_id": id, "state": "downloading"}, nil)
}

func (h *handlers) prioritizeDownload(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("downloadId")
	paused, err := h.deps.UsenetCtrl.Prioritize(r.Context(), id)
	if err != nil {
		WriteInternalError(w, ErrMsgInternalServer, err.Error())
		return
	}
	WriteSuccess(w, map[string]int{"paused_peers": paused}, nil)
}

func (h *handlers) runStorageCleanup(w http.ResponseWriter, r *http.Request) {
	mode := storage.ModeNormal
	if r.URL.Query().Get("mode") == "critical" {
		mode = storage.ModeCritical
	}

	freed, err := h.deps.StorageManager.Run(r.Context(), mode)
	if err != nil {
		WriteInternalError(w, ErrMsgInternalServer, err.Error())
		return
	}
	WriteSuccess(w, map[string]int64{"freed_bytes": freed}, nil)
}
