package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/streamgate/streamgate/internal/cache"
	"github.com/streamgate/streamgate/internal/providers"
	"github.com/streamgate/streamgate/internal/search"
	"github.com/streamgate/streamgate/internal/storage"
	"github.com/streamgate/streamgate/internal/streaming"
	"github.com/streamgate/streamgate/internal/usenet"
	"github.com/streamgate/streamgate/internal/usenet/fileserver"
)

// Dependencies bundles every component the HTTP surface calls into, wired up
// in cmd/streamgate/cmd/serve.go. §1 scopes route wiring itself as an
// external/ambient concern; this is the minimal net/http surface the spec's
// §6 "CLI/HTTP surface" and §4.9 error-video channel require to exercise the
// core components end to end.
type Dependencies struct {
	Orchestrator   *search.Orchestrator
	Resolver       *cache.PersistentResolver
	CacheTTL       time.Duration
	UsenetCtrl     *usenet.Controller
	RangeStreamer  *streaming.RangeStreamer
	StorageManager *storage.Manager
	Files          *fileserver.Client
	HTTPClient     *http.Client
	AdminPassword  string
	Logger         *slog.Logger
}

// NewServer builds the routed http.Handler for the gateway: catalog lookup,
// Usenet stream open/attach, admin controls, and observability endpoints.
func NewServer(deps Dependencies) http.Handler {
	mux := http.NewServeMux()

	h := &handlers{deps: deps}

	mux.HandleFunc("GET /catalog/{type}/{id}", h.catalog)
	mux.HandleFunc("GET /usenet/stream/{nzbUrl}/{title}/{type}/{id}", h.openUsenetStream)
	mux.HandleFunc("GET /usenet/play/{downloadId}", h.playUsenetStream)
	mux.HandleFunc("GET /error", h.errorVideo)
	mux.HandleFunc("GET /healthz", h.healthz)
	mux.Handle("GET /metrics", promhttp.Handler())

	admin := http.NewServeMux()
	admin.HandleFunc("POST /usenet/{downloadId}/pause", h.pauseDownload)
	admin.HandleFunc("POST /usenet/{downloadId}/resume", h.resumeDownload)
	admin.HandleFunc("POST /usenet/{downloadId}/prioritize", h.prioritizeDownload)
	admin.HandleFunc("POST /storage/cleanup", h.runStorageCleanup)
	mux.Handle("/admin/", http.StripPrefix("/admin", BasicAuthMiddleware("admin", deps.AdminPassword)(admin)))

	var handler http.Handler = mux
	handler = RecoveryMiddleware(handler)
	handler = LoggingMiddleware(handler)
	handler = ContentTypeMiddleware(handler)
	handler = RequestIDMiddleware(handler)
	handler = CORSMiddleware(handler)
	return handler
}

type handlers struct {
	deps Dependencies
}

// catalog implements the §6 "catalog endpoint returning a JSON list of
// stream descriptors". mediaType/id are path segments; season/episode are
// optional query parameters for series lookups.
func (h *handlers) catalog(w http.ResponseWriter, r *http.Request) {
	mediaType := providers.MediaType(r.PathValue("type"))
	catalogID := r.PathValue("id")

	req := providers.SearchRequest{
		CatalogID: catalogID,
		Type:      mediaType,
		Options:   map[string]string{},
	}
	if s := r.URL.Query().Get("season"); s != "" {
		req.Season = atoiOrZero(s)
	}
	if e := r.URL.Query().Get("episode"); e != "" {
		req.Episode = atoiOrZero(e)
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	streams, err := h.deps.Orchestrator.Search(ctx, req)
	if err != nil {
		h.deps.Logger.ErrorContext(ctx, "catalog search failed", "catalog_id", catalogID, "error", err)
		WriteInternalError(w, ErrMsgInternalServer, err.Error())
		return
	}

	WriteSuccess(w, streams, APIMeta{Total: len(streams)})
}

func atoiOrZero(s string) int {
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + int(c-'0')
	}
	return n
}
