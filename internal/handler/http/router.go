package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/catalog-sync/internal/media"
	"github.com/utafrali/catalog-sync/pkg/health"
	"github.com/utafrali/catalog-sync/pkg/middleware"
)

// ServiceName labels metrics and traces emitted by the HTTP layer.
const ServiceName = "catalog-sync"

// RouterDeps collects everything the router wires into handlers.
type RouterDeps struct {
	Sessions   SessionStore
	SessionTTL time.Duration
	Catalogs   CatalogFactory
	Uploader   media.Uploader
	Health     *health.Handler
	Logger     *slog.Logger
	CORS       middleware.CORSConfig
	RateLimit  middleware.RateLimitConfig
	// RequestTimeout bounds each API request. Zero disables the bound.
	RequestTimeout time.Duration
}

// NewRouter creates a chi router with all routes registered. ctx bounds
// background work owned by the middleware stack.
func NewRouter(ctx context.Context, deps RouterDeps) http.Handler {
	logger := deps.Logger
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics(ServiceName))
	r.Use(middleware.Tracing(ServiceName))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.CORS(deps.CORS))

	// Health check endpoints
	r.Get("/health/live", deps.Health.LivenessHandler())
	r.Get("/health/ready", deps.Health.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	sessionHandler := NewSessionHandler(deps.Sessions, deps.SessionTTL, logger)
	productHandler := NewProductHandler(logger)
	setHandler := NewSetHandler(logger)
	mediaHandler := NewMediaHandler(deps.Uploader, logger)
	requireSession := SessionFromHeader(deps.Sessions, deps.Catalogs, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimit(ctx, deps.RateLimit, logger))
		if deps.RequestTimeout > 0 {
			r.Use(chimw.Timeout(deps.RequestTimeout))
		}

		r.Route("/sessions", func(r chi.Router) {
			r.With(ContentTypeJSON).Post("/", sessionHandler.Create)
			r.Delete("/", sessionHandler.Delete)
			r.With(requireSession).Get("/current", sessionHandler.Current)
		})

		r.Group(func(r chi.Router) {
			r.Use(requireSession)

			r.Route("/products", func(r chi.Router) {
				r.Use(ContentTypeJSON)

				r.Get("/", productHandler.List)
				r.Post("/", productHandler.Add)
				r.Patch("/{id}", productHandler.Update)
				r.Post("/delete", productHandler.Delete)
				r.Post("/status", productHandler.Status)
			})

			r.Route("/sets", func(r chi.Router) {
				r.Use(ContentTypeJSON)

				r.Get("/", setHandler.List)
				r.Post("/", setHandler.Create)
				r.Put("/{id}", setHandler.Update)
				r.Post("/delete", setHandler.Delete)
			})

			r.Post("/media", mediaHandler.Upload)
		})
	})

	return r
}
