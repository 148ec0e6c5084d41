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
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggofiles "github.com/swaggo/files"
	ginswagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	_ "github.com/acctwo/charges-backend/docs" // swagger spec registration
	"github.com/acctwo/charges-backend/internal/chem"
	"github.com/acctwo/charges-backend/internal/config"
	"github.com/acctwo/charges-backend/internal/domain"
	"github.com/acctwo/charges-backend/internal/http/handlers"
	"github.com/acctwo/charges-backend/internal/http/middleware"
	"github.com/acctwo/charges-backend/internal/repo"
	"github.com/acctwo/charges-backend/internal/services"
	"github.com/acctwo/charges-backend/internal/storage"
)

// calcSetRepoShim adapts the repository free functions to the
// services.CalculationSetRepo interface expected by the ComputationService.
// This keeps services decoupled from the concrete repo package while reusing
// existing functions.
type calcSetRepoShim struct{}

// GetSet proxies repo.GetSet.
func (calcSetRepoShim) GetSet(ctx context.Context, db *gorm.DB, id string) (*domain.CalculationSet, error) {
	return repo.GetSet(ctx, db, id)
}

// CountSets proxies repo.CountSets (pagination support).
func (calcSetRepoShim) CountSets(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	return repo.CountSets(ctx, db, userID)
}

// ListSetsPage proxies repo.ListSetsPage (pagination support).
func (calcSetRepoShim) ListSetsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.CalculationSet, error) {
	return repo.ListSetsPage(ctx, db, userID, offset, limit)
}

// SetsStats proxies repo.SetsStats (ETag support).
func (calcSetRepoShim) SetsStats(ctx context.Context, db *gorm.DB, userID string) (int64, *time.Time, error) {
	return repo.SetsStats(ctx, db, userID)
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), idempotency and rate
// limiting, CORS and security headers, health and metrics endpoints, and then
// mounts the versioned public API under /api/v*.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Idempotency validator (before rate limiter to allow bypass on replay)
//  8. Rate limiter (per user/IP, bypass on replay)
//  9. CORS and Security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, engine chem.Engine, store *storage.Store, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{
			"X-API-Key", // project-specific sensitive header example
		},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (structure uploads can be multi-megabyte)
	r.Use(limitBody(int64(cfg.MaxUploadSizeMB) << 20))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Idempotency validation (before rate limiting)
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{
			MaxLen: 200,
		},
		func(ctx context.Context, userID, key string, now time.Time) (bool, error) {
			rec, err := repo.GetIdempotency(ctx, db, userID, key, now)
			if err != nil || rec == nil {
				return false, nil
			}
			return true, nil
		},
	))

	// 8) Token-bucket rate limiter per user/IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	r.Use(rl.Handler())

	// 9) CORS posture (safe defaults: allow all if none configured)
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
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length", "Content-Disposition"},
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
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length", "Content-Disposition"},
			AllowCredentials: false,
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

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// Swagger UI (opt-in)
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginswagger.WrapHandler(swaggofiles.Handler))
	}

	// Dependency injection: services ← engine/store/repo/db
	chargeSvc := services.NewChargeService(db, engine, store, cfg.MaxConcurrentCalculations, cfg.SuitabilityTTL)
	compSvc := services.NewComputationService(db, calcSetRepoShim{})
	fileSvc := &services.FileService{
		DB:              db,
		Store:           store,
		Engine:          engine,
		MaxFileBytes:    int64(cfg.MaxFileSizeMB) << 20,
		UserQuotaBytes:  int64(cfg.UserQuotaMB) << 20,
		GuestQuotaBytes: int64(cfg.GuestQuotaMB) << 20,
	}
	h := handlers.New(db, chargeSvc, compSvc, fileSvc)

	// Public API
	apiBase := cfg.APIBasePath // e.g. "/api/v1"
	api := groupWithPrefix(r, apiBase)
	{
		// Charges
		charges := api.Group("/charges")
		{
			charges.POST("/calculate", h.Calculate)
			charges.GET("/methods", h.Methods)
			charges.POST("/methods/suitable", h.SuitableMethods)
			charges.GET("/methods/suitable/:id", h.SuitableMethodsForComputation)
			charges.GET("/parameters/:method", h.Parameters)

			charges.GET("/calculations", h.ListComputations)
			charges.GET("/calculations/:id", h.GetComputation)
			charges.DELETE("/calculations/:id", h.DeleteComputation)
			charges.GET("/calculations/:id/mmcif", gzip.Gzip(gzip.DefaultCompression), h.ComputationMmCIF)
			charges.GET("/calculations/:id/json", gzip.Gzip(gzip.DefaultCompression), h.ComputationJSON)
			charges.GET("/calculations/:id/download", h.ComputationDownload)
		}

		// Files
		files := api.Group("/files")
		{
			files.POST("", h.UploadFiles)
			files.GET("", h.ListFiles)
			files.GET("/quota", h.FileQuota)
			files.GET("/:hash/info", h.FileInfo)
			files.GET("/:hash/download", h.DownloadFile)
			files.DELETE("/:hash", h.DeleteFile)
		}
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
