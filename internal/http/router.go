// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, idempotency, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	_ "github.com/vestyhq/go-vesty-backend/docs"
	"github.com/vestyhq/go-vesty-backend/internal/config"
	"github.com/vestyhq/go-vesty-backend/internal/http/handlers"
	"github.com/vestyhq/go-vesty-backend/internal/http/middleware"
	"github.com/vestyhq/go-vesty-backend/internal/repo"
	"github.com/vestyhq/go-vesty-backend/internal/services"
	"github.com/vestyhq/go-vesty-backend/internal/upload"
)

// multipartOverhead is headroom for multipart boundaries, part headers, and
// small form fields on top of the raw file payloads.
const multipartOverhead = 1 << 20

// idemRecorder persists (user, key) → swap associations via the repo layer.
// It satisfies handlers.IdempotencyRecorder.
type idemRecorder struct {
	db  *gorm.DB
	ttl time.Duration
}

// Record proxies repo.CreateIdempotency. A concurrent duplicate insert is not
// an error; the stored row wins.
func (ir idemRecorder) Record(ctx context.Context, userID, key, swapID string) error {
	_, err := repo.CreateIdempotency(ctx, ir.db, userID, key, swapID, http.StatusOK, ir.ttl)
	if errors.Is(err, repo.ErrDuplicate) {
		return nil
	}
	return err
}

// storagePinger is the optional probe surface of the object store, satisfied
// by storage.GCSStore. Fakes without it simply skip the health check.
type storagePinger interface {
	Exists(ctx context.Context, key string) (bool, error)
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), idempotency and rate
// limiting, CORS and security headers, health and metrics endpoints, and then
// mounts the public API under cfg.APIBasePath.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Access logger (redacting by default, plain when LOG_REDACT_PII=false)
//  4. Recovery: capture panics after logger
//  5. Body size limiter (sized for two image files per request)
//  6. Metrics
//  7. Session auth (claims must precede idempotency and rate keying)
//  8. Idempotency validator (before rate limiter to allow bypass on replay)
//  9. Rate limiter (per user/IP, bypass on replay)
//  10. CORS and Security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, store services.ObjectStore, ai services.TryOnClient, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured access logging. The redacting variant scrubs PII from
	//    queries and headers; the plain one keeps richer request fields for
	//    local debugging.
	if cfg.LogRedactPII {
		r.Use(middleware.RedactingLogger(middleware.RedactOptions{
			MaskHeaders: []string{
				"X-User-ID", // subject ids stay out of access logs
			},
		}))
	} else {
		r.Use(middleware.Logger())
	}

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit: two image files plus multipart framing
	r.Use(limitBody(2*cfg.Upload.MaxFileSize + multipartOverhead))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7-9) Session auth, idempotency, and rate limiting are group-level (see
	//     the API group below): replay lookups and rate buckets key on the
	//     authenticated user, so claims must be populated first. /health,
	//     /metrics, and the webhook stay reachable without a token.
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())

	// 10) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID", middleware.HeaderIdempotencyKey},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length", "ETag"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID", middleware.HeaderIdempotencyKey},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length", "ETag"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Dependency injection: services ← repo/db/store/ai
	userSvc := services.NewUserService(db)
	imgSvc := services.NewImageService(
		db,
		store,
		upload.NewValidator(cfg.Upload.MinFileSize, cfg.Upload.MaxFileSize),
		upload.NewNormalizer(cfg.Upload.MinDimension, cfg.Upload.MaxDimension),
	)
	swapSvc := services.NewSwapService(db, imgSvc, ai)
	h := handlers.New(imgSvc, swapSvc, userSvc, idemRecorder{db: db, ttl: cfg.IdempotencyTTL})

	// Liveness/health with per-dependency probes
	checks := map[string]handlers.HealthCheck{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if sp, ok := store.(storagePinger); ok {
		checks["storage"] = func(ctx context.Context) error {
			_, err := sp.Exists(ctx, "healthz")
			return err
		}
	}
	checks["ai"] = func(context.Context) error {
		if ai == nil {
			return errors.New("generation client not configured")
		}
		return nil
	}
	hh := handlers.NewHealthHandler(cfg.Environment, checks)
	r.GET("/health", hh.Health)
	r.HEAD("/health", hh.Health)

	// Identity-provider webhook (signature-verified, no session)
	wh := handlers.NewWebhookHandler(cfg.Auth.WebhookSecret, userSvc)
	r.POST("/webhooks/identity-provider", rl.Handler(), wh.HandleEvent)

	// Swagger UI (off by default)
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Public API
	apiBase := cfg.APIBasePath // e.g. "/api"
	api := groupWithPrefix(r, apiBase)

	// Session auth first so downstream keying sees the subject id. An empty
	// secret (dev, tests) skips verification; handlers then accept the
	// X-User-ID header.
	if cfg.Auth.SessionSecret != "" {
		api.Use(middleware.Auth(cfg.Auth.SessionSecret))
	}

	// Idempotency validation (before rate limiting, for bypass on replay)
	api.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{
			MaxLen: 200,
		},
		func(ctx context.Context, userID, key string, now time.Time) (string, bool, error) {
			rec, err := repo.GetIdempotency(ctx, db, userID, key, now)
			if err != nil || rec == nil {
				return "", false, nil
			}
			return rec.SwapID, true, nil
		},
	))

	// Token-bucket rate limiter per user/IP
	api.Use(rl.Handler())

	{
		// Images
		api.POST("/upload", h.UploadImage)
		api.GET("/upload", h.ListImages)
		api.DELETE("/upload", h.DeleteImage)
		api.GET("/images", h.ListImages) // alias
		api.GET("/images/presigned", h.PresignImage)

		// Swaps; the pipeline route draws extra tokens from the shared bucket
		api.POST("/swap", rl.HandlerN(4), h.CreateSwap)
		api.GET("/swap", h.ListSwaps)
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
