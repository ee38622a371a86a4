package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/utafrali/catalog-sync/internal/catalog"
	"github.com/utafrali/catalog-sync/internal/graph"
	pkgconfig "github.com/utafrali/catalog-sync/pkg/config"
)

// Config holds all configuration for the catalog sync service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort              int `env:"CATALOG_HTTP_PORT" envDefault:"8080"`
	RequestTimeoutSeconds int `env:"REQUEST_TIMEOUT_SECONDS" envDefault:"120"`

	// Graph API
	GraphBaseURL          string  `env:"GRAPH_BASE_URL" envDefault:"https://graph.facebook.com"`
	GraphVersion          string  `env:"GRAPH_API_VERSION" envDefault:"v19.0"`
	GraphAuthPlacement    string  `env:"GRAPH_AUTH_PLACEMENT" envDefault:"header"`
	GraphMaxBatchSize     int     `env:"GRAPH_MAX_BATCH_SIZE" envDefault:"50"`
	GraphBatchConcurrency int     `env:"GRAPH_BATCH_CONCURRENCY" envDefault:"4"`
	GraphPageSize         int     `env:"GRAPH_PAGE_SIZE" envDefault:"100"`
	GraphRateLimit        float64 `env:"GRAPH_RATE_LIMIT" envDefault:"0"`
	GraphRateBurst        int     `env:"GRAPH_RATE_BURST" envDefault:"10"`
	GraphTimeoutSeconds   int     `env:"GRAPH_HTTP_TIMEOUT_SECONDS" envDefault:"30"`
	StatusConcurrency     int     `env:"GRAPH_STATUS_CONCURRENCY" envDefault:"8"`

	// Provider protocol variant
	MembershipMode string `env:"CATALOG_MEMBERSHIP_MODE" envDefault:"declarative"`
	SetMembersMode string `env:"CATALOG_SET_MEMBERS_MODE" envDefault:"fetched"`
	StatusMode     string `env:"CATALOG_STATUS_MODE" envDefault:"batched"`

	// Circuit breaker around the Graph transport
	BreakerTimeoutSeconds int     `env:"BREAKER_TIMEOUT_SECONDS" envDefault:"30"`
	BreakerFailureRatio   float64 `env:"BREAKER_FAILURE_RATIO" envDefault:"0.5"`
	BreakerMinRequests    uint32  `env:"BREAKER_MIN_REQUESTS" envDefault:"5"`

	// Inbound rate limiting
	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS" envDefault:"20"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" envDefault:"40"`

	// Redis session store
	RedisURL        string `env:"REDIS_URL" envDefault:""`
	RedisAddr       string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPass       string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB         int    `env:"REDIS_DB" envDefault:"0"`
	SessionTTLHours int    `env:"SESSION_TTL_HOURS" envDefault:"24"`

	// Kafka change events
	KafkaEnabled bool     `env:"KAFKA_ENABLED" envDefault:"false"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// Media host
	MediaUploadURL string `env:"MEDIA_UPLOAD_URL" envDefault:"http://localhost:8011/api/v1/media/upload"`
	MediaAPIKey    string `env:"MEDIA_API_KEY" envDefault:""`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELInsecure   bool    `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"true"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load catalog-sync config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if u, err := url.Parse(c.GraphBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("GRAPH_BASE_URL must be an absolute URL, got %q", c.GraphBaseURL)
	}
	switch graph.AuthPlacement(c.GraphAuthPlacement) {
	case graph.AuthHeader, graph.AuthQuery:
	default:
		return fmt.Errorf("GRAPH_AUTH_PLACEMENT must be header or query, got %q", c.GraphAuthPlacement)
	}
	if c.GraphMaxBatchSize < 1 || c.GraphMaxBatchSize > 50 {
		return fmt.Errorf("GRAPH_MAX_BATCH_SIZE must be between 1 and 50, got %d", c.GraphMaxBatchSize)
	}
	if c.GraphBatchConcurrency < 1 {
		return fmt.Errorf("GRAPH_BATCH_CONCURRENCY must be positive, got %d", c.GraphBatchConcurrency)
	}
	if c.GraphPageSize < 1 {
		return fmt.Errorf("GRAPH_PAGE_SIZE must be positive, got %d", c.GraphPageSize)
	}
	if c.GraphRateLimit < 0 {
		return fmt.Errorf("GRAPH_RATE_LIMIT must not be negative, got %f", c.GraphRateLimit)
	}
	if _, err := c.Modes(); err != nil {
		return err
	}
	if c.BreakerFailureRatio <= 0 || c.BreakerFailureRatio > 1.0 {
		return fmt.Errorf("BREAKER_FAILURE_RATIO must be in (0.0, 1.0], got %f", c.BreakerFailureRatio)
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst < 1 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	if c.SessionTTLHours < 1 {
		return fmt.Errorf("SESSION_TTL_HOURS must be positive, got %d", c.SessionTTLHours)
	}
	if c.KafkaEnabled && len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when KAFKA_ENABLED is set")
	}
	if c.MediaUploadURL == "" {
		return fmt.Errorf("MEDIA_UPLOAD_URL is required")
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	return nil
}

// Modes parses the configured provider protocol variant.
func (c *Config) Modes() (catalog.Modes, error) {
	m, err := catalog.ParseModes(c.MembershipMode, c.SetMembersMode, c.StatusMode)
	if err != nil {
		return catalog.Modes{}, fmt.Errorf("catalog modes: %w", err)
	}
	return m, nil
}

// Graph returns the Graph client settings.
func (c *Config) Graph() graph.Config {
	return graph.Config{
		BaseURL:          c.GraphBaseURL,
		Version:          c.GraphVersion,
		AuthPlacement:    graph.AuthPlacement(c.GraphAuthPlacement),
		MaxBatchSize:     c.GraphMaxBatchSize,
		BatchConcurrency: c.GraphBatchConcurrency,
		PageSize:         c.GraphPageSize,
		RateLimit:        c.GraphRateLimit,
		RateBurst:        c.GraphRateBurst,
	}
}

// SessionTTL returns the session lifetime.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLHours) * time.Hour
}

// RequestTimeout returns the per-request bound for API routes.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}
