package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/okian/surgitrack/internal/adapters/auth"
	"github.com/okian/surgitrack/internal/adapters/http/api"
	"github.com/okian/surgitrack/internal/adapters/http/swagger"
	"github.com/okian/surgitrack/internal/adapters/repository/sqlite"
	"github.com/okian/surgitrack/internal/adapters/storage"
	service "github.com/okian/surgitrack/internal/app"
	"github.com/okian/surgitrack/internal/config"
	"github.com/okian/surgitrack/internal/domain/catalog"
	"github.com/okian/surgitrack/pkg/logger"
)

// HTTP server timeout constants. Writes get a long timeout since video
// uploads stream through the handler.
const (
	readHeaderTimeout = 5 * time.Second
	writeTimeout      = 10 * time.Minute
	idleTimeout       = 60 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
				cfg.Addr = addr
			}
			return serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().String("addr", "", "listen address (overrides addr from config)")
	return cmd
}

// serve runs the API until ctx is cancelled, then drains HTTP, stops the
// service and closes the store, in that order.
func serve(ctx context.Context, cfg *config.Config) error {
	// We collect our own system metrics on a custom registry instead.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	log := logger.Get()
	warnInsecureDefaults(ctx, cfg)

	store, svc, err := prepare(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error(context.Background(), "failed to close store", logger.Error(err))
		}
	}()

	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("failed to start service: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := svc.Stop(stopCtx); err != nil {
			log.Error(stopCtx, "service stop failed", logger.Error(err))
		}
	}()

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	srv := newHTTPServer(ctx, cfg, svc)
	errc := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "server shutdown failed", logger.Error(err))
	}
	log.Info(shutdownCtx, "server stopped")
	return nil
}

// warnInsecureDefaults logs settings that are unsafe outside development and
// reports whether any were found.
func warnInsecureDefaults(ctx context.Context, cfg *config.Config) bool {
	if !cfg.InsecureSecret() {
		return false
	}
	logger.Get().Warn(ctx, "jwt_secret is the built-in default; set SURGITRACK_JWT_SECRET before exposing the server")
	return true
}

// prepare opens the database, builds the service and seeds the built-in
// catalog when configured to.
func prepare(ctx context.Context, cfg *config.Config) (*sqlite.Store, *service.Service, error) {
	store, err := sqlite.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	svc := newService(store, cfg)
	if !cfg.SeedOnStart {
		return store, svc, nil
	}

	cat, err := catalog.Default()
	if err == nil {
		var res catalog.Result
		if res, err = svc.Seed(ctx, cat); err == nil {
			logger.Get().Info(ctx, "catalog seeded",
				logger.Int("tasks", res.Tasks),
				logger.Int("errorTypes", res.ErrorTypes))
		}
	}
	if err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("failed to seed catalog: %w", err)
	}
	return store, svc, nil
}

func newService(store *sqlite.Store, cfg *config.Config) *service.Service {
	return service.New(store,
		service.WithLogger(logger.Get().Named("service")),
		service.WithWorkerCount(cfg.WorkerCount),
		service.WithQueueSize(cfg.EventQueueSize),
		service.WithDedupeSize(cfg.DedupeSize),
		service.WithLeaderboardLimits(cfg.LeaderboardLimit, cfg.MaxLeaderboardLimit),
		service.WithTokens(auth.NewTokens(cfg.JWTSecret,
			auth.WithTTL(time.Duration(cfg.TokenTTLMinutes)*time.Minute))),
		service.WithVideoStorage(storage.NewLocal(cfg.VideoDir,
			storage.WithMaxBytes(cfg.MaxUploadBytes))),
	)
}

func newHTTPServer(ctx context.Context, cfg *config.Config, svc *service.Service) *http.Server {
	mux := http.NewServeMux()

	// API reference under /api-docs
	swagger.Register(ctx, mux)

	api.NewServer(svc, svc, api.WithMaxUploadBytes(cfg.MaxUploadBytes)).Register(ctx, mux)

	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Chain(mux),
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}
