package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"

	"github.com/utafrali/catalog-sync/internal/catalog"
	"github.com/utafrali/catalog-sync/internal/config"
	"github.com/utafrali/catalog-sync/internal/domain"
	"github.com/utafrali/catalog-sync/internal/event"
	"github.com/utafrali/catalog-sync/internal/graph"
	handler "github.com/utafrali/catalog-sync/internal/handler/http"
	"github.com/utafrali/catalog-sync/internal/media"
	redisrepo "github.com/utafrali/catalog-sync/internal/repository/redis"
	"github.com/utafrali/catalog-sync/internal/service"
	"github.com/utafrali/catalog-sync/pkg/database"
	"github.com/utafrali/catalog-sync/pkg/health"
	"github.com/utafrali/catalog-sync/pkg/httpclient"
	pkgkafka "github.com/utafrali/catalog-sync/pkg/kafka"
	"github.com/utafrali/catalog-sync/pkg/middleware"
	"github.com/utafrali/catalog-sync/pkg/tracing"
)

// App wires together all dependencies and runs the catalog sync service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	rdb            *redis.Client
	producer       *pkgkafka.Producer
	httpServer     *http.Server
	shutdownTracer func(context.Context) error
	stopBackground context.CancelFunc
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	modes, err := cfg.Modes()
	if err != nil {
		return nil, err
	}

	// Tracing.
	tracingCfg := tracing.DefaultConfig(handler.ServiceName)
	tracingCfg.Environment = cfg.Environment
	tracingCfg.Enabled = cfg.OTELEnabled
	tracingCfg.OTLPEndpoint = cfg.OTELEndpoint
	tracingCfg.Insecure = cfg.OTELInsecure
	tracingCfg.SampleRate = cfg.OTELSampleRate
	shutdownTracer, err := tracing.InitTracer(ctx, tracingCfg)
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	// Redis session store.
	redisCfg := database.DefaultRedisConfig()
	redisCfg.URL = cfg.RedisURL
	redisCfg.Addr = cfg.RedisAddr
	redisCfg.Password = cfg.RedisPass
	redisCfg.DB = cfg.RedisDB
	rdb, err := database.NewRedisClient(ctx, redisCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	logger.Info("connected to Redis",
		slog.String("addr", rdb.Options().Addr),
		slog.Int("db", rdb.Options().DB),
	)

	// Notification sinks.
	notifiers := event.MultiNotifier{event.NewLogNotifier(logger)}
	var producer *pkgkafka.Producer
	if cfg.KafkaEnabled {
		producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		notifiers = append(notifiers, event.NewProducer(producer, logger))
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}

	// Graph transport. Provider calls are never retried.
	graphHTTP := httpclient.New(httpclient.Config{
		Timeout:         time.Duration(cfg.GraphTimeoutSeconds) * time.Second,
		MaxRetries:      0,
		MaxConnsPerHost: 64,
	})
	breakerCfg := httpclient.DefaultCircuitBreakerConfig("graph")
	breakerCfg.Timeout = time.Duration(cfg.BreakerTimeoutSeconds) * time.Second
	breakerCfg.FailureRatio = cfg.BreakerFailureRatio
	breakerCfg.MinRequests = cfg.BreakerMinRequests
	graphBreaker := httpclient.NewCircuitBreakerClient(graphHTTP, breakerCfg, logger)

	graphClient, err := graph.New(graphBreaker, cfg.Graph(), logger)
	if err != nil {
		closeQuietly(rdb, producer)
		return nil, fmt.Errorf("create graph client: %w", err)
	}

	catalogOpts := []catalog.Option{
		catalog.WithNotifier(notifiers),
		catalog.WithStatusConcurrency(cfg.StatusConcurrency),
	}
	catalogs := func(s *domain.Session) (handler.Catalog, error) {
		c, err := catalog.New(graphClient.WithToken(s.AccessToken), s.CatalogID, modes, logger, catalogOpts...)
		if err != nil {
			return nil, err
		}
		return c, nil
	}

	// Media host.
	mediaHTTP := httpclient.NewCircuitBreakerClient(
		httpclient.New(httpclient.DefaultConfig()),
		httpclient.DefaultCircuitBreakerConfig("media-host"),
		logger,
	)
	uploader := media.NewHTTPUploader(mediaHTTP, cfg.MediaUploadURL, cfg.MediaAPIKey, logger)

	// Sessions.
	sessionRepo := redisrepo.NewSessionRepository(rdb, cfg.SessionTTL())
	sessionService := service.NewSessionService(sessionRepo, logger, cfg.SessionTTL())

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("redis", func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	})
	healthHandler.RegisterNonCritical("graph", func(context.Context) error {
		if graphBreaker.State() == gobreaker.StateOpen {
			return errors.New("circuit breaker open")
		}
		return nil
	})
	if producer != nil {
		healthHandler.RegisterNonCritical("kafka", producer.Ping)
	}

	// HTTP router.
	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = cfg.CORSAllowedOrigins
	cors.Environment = cfg.Environment

	bgCtx, stopBackground := context.WithCancel(context.Background())
	router := handler.NewRouter(bgCtx, handler.RouterDeps{
		Sessions:       sessionService,
		SessionTTL:     sessionService.TTL(),
		Catalogs:       catalogs,
		Uploader:       uploader,
		Health:         healthHandler,
		Logger:         logger,
		CORS:           cors,
		RateLimit:      middleware.RateLimitConfig{RPS: cfg.RateLimitRPS, Burst: cfg.RateLimitBurst},
		RequestTimeout: cfg.RequestTimeout(),
	})

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.RequestTimeout() + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		rdb:            rdb,
		producer:       producer,
		httpServer:     httpServer,
		shutdownTracer: shutdownTracer,
		stopBackground: stopBackground,
	}, nil
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		_ = a.Shutdown()
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components: HTTP drain, tracer flush,
// Kafka close, Redis close.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	// Graceful HTTP server shutdown with a 10-second deadline.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
	}
	a.stopBackground()

	if err := a.shutdownTracer(shutdownCtx); err != nil {
		a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
	}

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		}
	}

	if err := a.rdb.Close(); err != nil {
		a.logger.Error("redis close error", slog.String("error", err.Error()))
	}

	a.logger.Info("application shutdown complete")
	return nil
}

// closeQuietly releases connections on a failed start.
func closeQuietly(rdb *redis.Client, producer *pkgkafka.Producer) {
	if producer != nil {
		_ = producer.Close()
	}
	if rdb != nil {
		_ = rdb.Close()
	}
}
