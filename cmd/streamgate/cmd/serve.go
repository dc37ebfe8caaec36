package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/streamgate/streamgate/internal/api"
	"github.com/streamgate/streamgate/internal/cache"
	"github.com/streamgate/streamgate/internal/catalog"
	"github.com/streamgate/streamgate/internal/config"
	"github.com/streamgate/streamgate/internal/database"
	"github.com/streamgate/streamgate/internal/health"
	"github.com/streamgate/streamgate/internal/httpclient"
	"github.com/streamgate/streamgate/internal/providers"
	"github.com/streamgate/streamgate/internal/providers/hdhub"
	"github.com/streamgate/streamgate/internal/providers/offcloud"
	"github.com/streamgate/streamgate/internal/search"
	"github.com/streamgate/streamgate/internal/slogutil"
	"github.com/streamgate/streamgate/internal/storage"
	"github.com/streamgate/streamgate/internal/streaming"
	"github.com/streamgate/streamgate/internal/titlematch"
	"github.com/streamgate/streamgate/internal/usenet"
	"github.com/streamgate/streamgate/internal/usenet/fileserver"
	"github.com/streamgate/streamgate/internal/usenet/sabnzbd"
	"github.com/streamgate/streamgate/internal/validation"
)

func init() {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the streaming gateway server",
		Long:  `Start the HTTP server that exposes the catalog, Usenet stream, and admin endpoints.`,
		RunE:  runServe,
	}

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := slogutil.SetupLogRotationWithFallback(cfg.Log, cfg.Log.Level)
	slog.SetDefault(logger)

	configManager := config.NewManager(cfg, configFile)
	configManager.OnConfigChange(func(oldConfig, newConfig *config.Config) {
		logger.Info("configuration reloaded", "config_file", configFile)
	})

	db, err := database.New(database.Config{DatabasePath: cfg.Database.Path})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	health.Register(prometheus.DefaultRegisterer)

	cacheTTL := cfg.GetCacheTTL()
	var resolver *cache.PersistentResolver
	if !cfg.Cache.Disabled {
		urlCache := cache.New(cacheTTL, cache.Options{
			MaxResolved: cfg.Cache.MaxResolved,
			MaxPending:  cfg.Cache.MaxPending,
		})
		var repo *database.Repository
		if cfg.Cache.PersistToDB {
			repo = db.Repository
		}
		resolver = cache.NewPersistentResolver(urlCache, repo)
	}

	validator := validation.New(validation.Options{
		Disabled:        cfg.Validation.DisableURLValidation,
		Timeout:         cfg.GetValidationTimeout(),
		BatchSize:       cfg.GetValidationBatchSize(),
		TrustedHosts:    cfg.Validation.TrustedHosts,
		CapriciousHosts: cfg.Validation.CapriciousHosts,
		MemoSize:        2048,
	})

	matcher := titlematch.New(2048)

	catalogClient := catalog.New(cfg.Catalog.BaseURL, cfg.GetCatalogTimeout())

	provs := buildProviders(cfg, logger)

	orchestrator := search.New(catalogClient, provs, matcher, validator, search.Options{
		ScraperTimeout:     cfg.GetScraperTimeout(),
		HostBlocklist:      cfg.Search.HostBlocklist,
		SuspiciousPatterns: cfg.Search.SuspiciousPatterns,
		MaxTopK:            5,
	}, logger)

	downloader := sabnzbd.New(cfg.SABnzbd.BaseURL, cfg.SABnzbd.APIKey)
	files := fileserver.New(cfg.FileServer.UpstreamURL, cfg.FileServer.APIKey)

	usenetCtrl := usenet.New(downloader, files, usenet.Options{
		Category: cfg.SABnzbd.Category,
	}, logger)

	streamHTTPClient := httpclient.NewLong()

	rangeStreamer := streaming.New(usenetCtrl, files, streamHTTPClient, streaming.Options{
		MKVExtractionGate: cfg.Streaming.MKVExtractionGate,
		SeekAheadTimeout:  cfg.GetSeekAheadTimeout(),
		SeekAheadPoll:     cfg.GetPollInterval(),
	}, logger)

	storageManager := storage.New(files, storage.Options{
		NormalTargetBytes:   int64(cfg.Storage.NormalThresholdGB * (1 << 30)),
		CriticalTargetBytes: int64(cfg.Storage.CriticalThresholdGB * (1 << 30)),
		DeleteYieldInterval: cfg.GetCleanupYield(),
	}, logger)
	storageManager.SetActivePathsFunc(usenetCtrl.ActiveVideoPaths)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	usenetCtrl.Start(ctx)

	handler := api.NewServer(api.Dependencies{
		Orchestrator:   orchestrator,
		Resolver:       resolver,
		CacheTTL:       cacheTTL,
		UsenetCtrl:     usenetCtrl,
		RangeStreamer:  rangeStreamer,
		StorageManager: storageManager,
		Files:          files,
		HTTPClient:     streamHTTPClient,
		AdminPassword:  cfg.Admin.Password,
		Logger:         logger,
	})

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.FileServer.Port),
		Handler: handler,
	}

	serverErrCh := make(chan error, 1)
	go func() {
		logger.Info("starting streamgate server", "port", cfg.FileServer.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- err
		}
	}()

	select {
	case <-signalHandler(ctx):
		logger.Info("shutdown signal received")
	case err := <-serverErrCh:
		logger.Error("http server failed", "error", err)
	}

	usenetCtrl.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("error during server shutdown", "error", err)
	}

	return nil
}

// buildProviders constructs one ProviderSearch adapter per configured
// provider, branching on kind the way the teacher's pool config branches on
// provider-specific fields.
func buildProviders(cfg *config.Config, logger *slog.Logger) []providers.ProviderSearch {
	provs := make([]providers.ProviderSearch, 0, len(cfg.Providers))

	for _, pc := range cfg.Providers {
		if !pc.IsProviderEnabled() {
			continue
		}

		switch pc.Kind {
		case "hdhub":
			provs = append(provs, hdhub.New(pc.BaseURL, cfg.GetScraperTimeout(), cfg.GetMax4KHDHubLinks()))
		case "offcloud":
			provs = append(provs, offcloud.New(pc.BaseURL, pc.APIKey, cfg.GetRequestTimeout()))
		default:
			logger.Warn("unknown provider kind, skipping", "name", pc.Name, "kind", pc.Kind)
		}
	}

	return provs
}

// signalHandler returns a channel that closes on SIGINT/SIGTERM or on ctx
// cancellation, mirroring the teacher's graceful-shutdown wait point.
func signalHandler(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer close(done)
		select {
		case <-ctx.Done():
		case <-c:
		}
	}()

	return done
}
