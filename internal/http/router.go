// Package httpapi wires the HTTP transport (Gin) to the bot's services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging, panic recovery, metrics, and rate
// limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - The webhook route never answers anything but 200 to its caller
package httpapi

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/asamoylenko/wb-phrase-bot/internal/adsearch"
	"github.com/asamoylenko/wb-phrase-bot/internal/config"
	"github.com/asamoylenko/wb-phrase-bot/internal/http/handlers"
	"github.com/asamoylenko/wb-phrase-bot/internal/http/middleware"
	"github.com/asamoylenko/wb-phrase-bot/internal/services"
	"github.com/asamoylenko/wb-phrase-bot/internal/tasks"
	"github.com/asamoylenko/wb-phrase-bot/internal/telegram"
)

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine and builds the service graph on top of db, tg, and pool.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Logger: structured access logs
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//
// The rate limiter is applied per route, because the webhook route must drop
// over-limit traffic with a 200 while everything else can answer 429.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, tg *telegram.Client, pool *tasks.Pool, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured access logging
	r.Use(middleware.Logger())

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (20 MiB; uploaded reports arrive as update
	//    payload references, not bodies, so this is generous)
	r.Use(limitBody(20 << 20))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"code": "not_found", "message": "route not found"})
	})
	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"code": "method_not_allowed", "message": "method not allowed"})
	})

	// Dependency injection: services ← repo/db/clients
	accounts := services.NewAccountService(db)
	imports := &services.ImportService{
		DB:             db,
		Notifier:       tg,
		Log:            log.With().Str("component", "import").Logger(),
		FileMarker:     cfg.Import.FileMarker,
		SheetMarker:    cfg.Import.SheetMarker,
		CommitStrategy: cfg.Import.CommitStrategy,
	}
	enrich := &services.EnrichService{
		DB:            db,
		Notifier:      tg,
		Searcher:      meteredSearcher{inner: adsearch.New(cfg.Search.BaseURL, cfg.Search.Timeout)},
		Log:           log.With().Str("component", "enrich").Logger(),
		DelayMin:      cfg.Search.DelayMin,
		DelayMax:      cfg.Search.DelayMax,
		TotalRetries:  cfg.Search.TotalRetries,
		PresetRetries: cfg.Search.PresetRetries,
	}
	phrases := &services.PhraseService{
		DB:       db,
		Notifier: tg,
		Log:      log.With().Str("component", "phrases").Logger(),
	}

	h := handlers.New(cfg.TelegramToken, accounts, imports, enrich, phrases, tg, pool)
	status := handlers.NewStatusHandlers(db)

	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByIP())

	// Status surface
	r.GET("/", rl.Handler(), status.Index)
	r.GET("/health", status.Health)

	// Telegram webhook; the token in the path is the shared secret
	r.POST("/webhook/:token", rl.WebhookHandler(), h.Webhook)
}

// meteredSearcher counts outbound search calls by outcome.
type meteredSearcher struct {
	inner services.Searcher
}

func (m meteredSearcher) Search(ctx context.Context, phrase string) (*adsearch.Result, error) {
	res, err := m.inner.Search(ctx, phrase)
	if err != nil {
		middleware.SearchCalls.WithLabelValues("error").Inc()
	} else {
		middleware.SearchCalls.WithLabelValues("ok").Inc()
	}
	return res, err
}

// limitBody returns a Gin middleware that caps the request body size for all
// routes. Oversized bodies fail with 413 when read.
func limitBody(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		}
		c.Next()
	}
}
