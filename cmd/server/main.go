package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/registro/internal/config"
	"github.com/JonMunkholm/registro/internal/core"
	"github.com/JonMunkholm/registro/internal/gqlupload"
	"github.com/JonMunkholm/registro/internal/locations"
	"github.com/JonMunkholm/registro/internal/logging"
	"github.com/JonMunkholm/registro/internal/web"
	"github.com/JonMunkholm/registro/internal/wizard"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"graphql_endpoint", cfg.GraphQL.Endpoint,
		"upload_max_concurrent", cfg.Upload.MaxConcurrent,
		"session_max", cfg.Session.MaxSessions,
		"rate_limit_enabled", cfg.Rate.Enabled,
		"database", cfg.Database.Enabled(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry, err := loadRegistry(cfg)
	if err != nil {
		slog.Error("failed to load document registry", "error", err)
		os.Exit(1)
	}
	slog.Info("document types registered", "count", registry.Count())

	catalog, err := loadCatalog(ctx, cfg)
	if err != nil {
		slog.Error("failed to load locations", "error", err)
		os.Exit(1)
	}
	slog.Info("locations loaded", "departments", catalog.Len())

	limiter := gqlupload.NewLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWaitTime)
	client := gqlupload.NewClient(cfg.GraphQL.Endpoint,
		gqlupload.WithLimiter(limiter),
		gqlupload.WithTimeout(cfg.GraphQL.Timeout),
		gqlupload.WithBearerToken(cfg.GraphQL.AuthToken),
	)

	store := wizard.NewStore(wizard.NewRules(registry, catalog), client, wizard.StoreConfig{
		IdleTimeout:   cfg.Session.IdleTimeout,
		SweepInterval: cfg.Session.SweepInterval,
		MaxSessions:   cfg.Session.MaxSessions,
	})
	server := web.NewServer(cfg, store, limiter)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := server.Start(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return store.Run(gctx)
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Let in-flight submissions reach the backend before closing.
		if st := limiter.Status(); st.Active > 0 {
			slog.Info("waiting for submissions to complete", "active", st.Active)
			if err := limiter.WaitForDrain(shutdownCtx); err != nil {
				slog.Warn("submissions did not complete in time", "error", err)
			} else {
				slog.Info("all submissions completed")
			}
		}

		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

func loadRegistry(cfg *config.Config) (*core.Registry, error) {
	if cfg.Documents.File != "" {
		slog.Info("loading document registry", "file", cfg.Documents.File)
		return core.LoadRegistryFile(cfg.Documents.File)
	}
	return core.DefaultRegistry()
}

// loadCatalog reads locations from the database when one is configured,
// otherwise from LOCATIONS_FILE or the embedded catalog.
func loadCatalog(ctx context.Context, cfg *config.Config) (*locations.Catalog, error) {
	if !cfg.Database.Enabled() {
		if cfg.Locations.File != "" {
			slog.Info("loading locations", "file", cfg.Locations.File)
			return locations.LoadFile(cfg.Locations.File)
		}
		return locations.Default()
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, err
	}
	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}
	// The catalog is read once at startup.
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}
	if u, err := url.Parse(cfg.Database.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	}

	return locations.LoadPostgres(ctx, pool)
}
