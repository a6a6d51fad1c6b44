// Command bot runs the Telegram phrase bot: an HTTP server receiving webhook
// updates, a SQLite/Postgres store behind GORM, and a bounded worker pool for
// the enrichment and clear tasks.
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

	"github.com/asamoylenko/wb-phrase-bot/internal/config"
	httpapi "github.com/asamoylenko/wb-phrase-bot/internal/http"
	"github.com/asamoylenko/wb-phrase-bot/internal/observability"
	"github.com/asamoylenko/wb-phrase-bot/internal/repo"
	"github.com/asamoylenko/wb-phrase-bot/internal/sysutil"
	"github.com/asamoylenko/wb-phrase-bot/internal/tasks"
	"github.com/asamoylenko/wb-phrase-bot/internal/telegram"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

const telegramTimeout = 30 * time.Second

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	log.Info().Str("version", version).Msg("starting wb-phrase-bot")

	if cfg.TelegramToken == "" {
		log.Warn().Msg("TELEGRAM_TOKEN is empty; outbound messages disabled, webhook accepts no token")
	} else {
		log.Info().Str("token", sysutil.MaskToken(cfg.TelegramToken)).Msg("telegram client configured")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Tracing
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}

	// Store
	db, err := repo.Open(cfg.DatabaseURL, cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("database open failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("database migration failed")
	}
	if cfg.DatabaseURL != "" {
		log.Info().Msg("using postgres store")
	} else {
		log.Info().Str("path", cfg.DBPath).Msg("using sqlite store")
	}

	// Outbound Telegram and background workers
	tg := telegram.New(cfg.TelegramToken, telegramTimeout, log.With().Str("component", "telegram").Logger())
	pool := tasks.NewPool(cfg.WorkerCount, cfg.WorkerQueue, log.With().Str("component", "tasks").Logger())

	// HTTP transport
	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, db, tg, pool, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	// Stop accepting requests first, then drain background tasks, then flush
	// traces. Each stage gets its own deadline.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown incomplete")
	}
	if err := pool.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("task pool shutdown incomplete")
	}
	if err := shutdownOTel(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("otel shutdown incomplete")
	}

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info().Msg("bye")
}
