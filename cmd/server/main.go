// Command server runs the Vesty HTTP API: image intake, the outfit-swap
// generation pipeline, swap history, and the identity-provider webhook.
//
// Configuration comes from the environment (optionally a .env file in dev);
// see internal/config for every knob and its default.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/vestyhq/go-vesty-backend/internal/config"
	httpapi "github.com/vestyhq/go-vesty-backend/internal/http"
	"github.com/vestyhq/go-vesty-backend/internal/observability"
	"github.com/vestyhq/go-vesty-backend/internal/repo"
	"github.com/vestyhq/go-vesty-backend/internal/storage"
	"github.com/vestyhq/go-vesty-backend/internal/sysutil"
	"github.com/vestyhq/go-vesty-backend/internal/tryon"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

// @title        Vesty API
// @version      1.0
// @description  Virtual outfit try-on backend.
// @BasePath     /api
func main() {
	// .env is a dev convenience; a missing file is fine.
	if !sysutil.IsTruthy(os.Getenv("SKIP_DOTENV")) {
		_ = godotenv.Load()
	}

	cfg := config.MustLoad()

	// Logging
	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty && !cfg.IsProduction() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	log.Info().
		Str("version", version).
		Str("environment", cfg.Environment).
		Str("port", cfg.Port).
		Msg("starting vesty")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Tracing
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownOTel(sctx)
	}()

	// Persistence: a postgres DSN wins over the SQLite file path.
	db, err := repo.Open(sysutil.FirstNonEmpty(cfg.DatabaseURL, cfg.DBPath))
	if err != nil {
		log.Fatal().Err(err).Msg("open database failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate failed")
	}
	if n, err := repo.PurgeExpiredIdempotency(ctx, db, time.Now().UTC()); err != nil {
		log.Warn().Err(err).Msg("idempotency purge failed")
	} else if n > 0 {
		log.Info().Int64("rows", n).Msg("purged expired idempotency records")
	}
	if cfg.OTEL.Enabled {
		if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
			log.Fatal().Err(err).Msg("gorm tracing plugin failed")
		}
	}

	// Object storage
	store, err := storage.NewGCSStore(ctx, cfg.Storage)
	if err != nil {
		log.Fatal().Err(err).Msg("object storage init failed")
	}
	defer func() { _ = store.Close() }()

	// Generation client
	ai, err := tryon.New(ctx, cfg.AI)
	if err != nil {
		log.Fatal().Err(err).Msg("generation client init failed")
	}

	// HTTP
	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, db, store, ai, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		// Swap requests hold the connection through two generation calls.
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxHeaderBytes: cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		log.Fatal().Err(err).Msg("server failed")
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	}

	sctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	log.Info().Msg("stopped")
}
