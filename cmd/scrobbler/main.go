package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sourcegraph/conc"
	"github.com/spf13/afero"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/gioxx/trakt-multi-scrobbler/config"
	"github.com/gioxx/trakt-multi-scrobbler/handlers"
	"github.com/gioxx/trakt-multi-scrobbler/internal/database"
	"github.com/gioxx/trakt-multi-scrobbler/services/jellyfin"
	"github.com/gioxx/trakt-multi-scrobbler/services/library"
	"github.com/gioxx/trakt-multi-scrobbler/services/posters"
	"github.com/gioxx/trakt-multi-scrobbler/services/trakt"
	"github.com/gioxx/trakt-multi-scrobbler/utils"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("config.load_failed", "error", err)
		os.Exit(1)
	}
	setupLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewDB(database.Config{DatabasePath: cfg.DBPath})
	if err != nil {
		slog.Error("db.open_failed", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	var traktSvc *trakt.Service
	if cfg.TraktConfigured() {
		client := trakt.NewClient(cfg.TraktClientID, cfg.TraktClientSecret, cfg.HTTPTimeout)
		traktSvc, err = trakt.NewService(trakt.Config{
			Client:    client,
			Store:     db.Store,
			StatePath: cfg.StatePath,
		})
		if err != nil {
			slog.Error("trakt.init_failed", "error", err)
			os.Exit(1)
		}
	} else {
		slog.Info("trakt.disabled", "reason", "missing_credentials")
	}

	gateway := jellyfin.NewClient(cfg.JellyfinURL, cfg.JellyfinAPIKey, cfg.HTTPTimeout)
	libCfg := library.Config{
		WatchThreshold: cfg.WatchThreshold,
		RefreshEvery:   cfg.RefreshEvery,
		StatePath:      cfg.JellyfinStatePath,
	}
	if traktSvc != nil {
		libCfg.Pruner = traktSvc
	}
	libSvc := library.NewService(gateway, libCfg)
	posterCache := posters.NewCache(nil, cfg.PosterCacheDir, gateway.FetchImage)

	router := utils.NewRouter()
	router.Use(handlers.APIKeyMiddleware(resolveAdminKey(cfg)))
	handlers.NewLibraryHandler(libSvc, posterCache, traktSvc).RegisterRoutes(router)
	handlers.NewTraktHandler(traktSvc, libSvc).RegisterRoutes(router)

	if err := libSvc.Refresh(ctx, true); err != nil {
		slog.Warn("library.initial_refresh_failed", "error", err)
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	var wg conc.WaitGroup
	wg.Go(func() {
		slog.Info("http.listening", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http.serve_failed", "error", err)
			stop()
		}
	})
	wg.Go(func() {
		runSyncLoop(ctx, libSvc, traktSvc, cfg.RefreshEvery)
	})

	<-ctx.Done()
	slog.Info("shutdown.started")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("shutdown.http_failed", "error", err)
	}
	wg.Wait()
	slog.Info("shutdown.done")
}

func setupLogging(cfg config.Config) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}

	var w io.Writer = os.Stdout
	if cfg.LogFile != "" {
		w = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    20, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		})
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

// resolveAdminKey returns the key guarding mutating endpoints: the configured
// value when set, otherwise one generated on first start and persisted next to
// the state files. An empty return leaves the API open.
func resolveAdminKey(cfg config.Config) string {
	if cfg.AdminAPIKey != "" {
		return cfg.AdminAPIKey
	}

	path := filepath.Join(filepath.Dir(cfg.StatePath), "admin_api_key")
	key, created, err := utils.LoadOrCreateAPIKey(afero.NewOsFs(), path)
	if err != nil {
		slog.Warn("admin.key_unavailable", "path", path, "error", err)
		return ""
	}
	if created {
		slog.Info("admin.key_generated", "path", path, "key", key)
	}
	return key
}

// runSyncLoop periodically rebuilds the library snapshot and forwards newly
// completed watches to every enabled Trakt account.
func runSyncLoop(ctx context.Context, lib *library.Service, traktSvc *trakt.Service, every time.Duration) {
	if every <= 0 {
		every = 30 * time.Minute
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runSyncCycle(ctx, lib, traktSvc)
		}
	}
}

func runSyncCycle(ctx context.Context, lib *library.Service, traktSvc *trakt.Service) {
	if err := lib.Refresh(ctx, true); err != nil {
		slog.Warn("sync.refresh_failed", "error", err)
		return
	}
	if traktSvc == nil || !traktSvc.Ready() {
		return
	}

	report := traktSvc.SyncEvents(ctx, lib.CompletedEvents())
	ok := 0
	for _, res := range report.Results {
		if res.OK {
			ok++
		}
	}
	slog.Info("sync.cycle_done", "accounts", len(report.Results), "succeeded", ok)
}
