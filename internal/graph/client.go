package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	apperrors "github.com/utafrali/catalog-sync/pkg/errors"
	"github.com/utafrali/catalog-sync/pkg/httpclient"
)

const tracerName = "github.com/utafrali/catalog-sync/internal/graph"

// maxResponseBody caps how much of a provider response is buffered.
const maxResponseBody = 32 << 20

// AuthPlacement selects where the bearer credential travels.
type AuthPlacement string

const (
	AuthHeader AuthPlacement = "header"
	AuthQuery  AuthPlacement = "query"
)

// Config holds Graph client settings.
type Config struct {
	BaseURL          string
	Version          string
	AccessToken      string
	AuthPlacement    AuthPlacement
	MaxBatchSize     int
	BatchConcurrency int
	PageSize         int
	RateLimit        float64
	RateBurst        int
}

// DefaultConfig returns the provider's documented limits.
func DefaultConfig() Config {
	return Config{
		BaseURL:          "https://graph.facebook.com",
		Version:          "v19.0",
		AuthPlacement:    AuthHeader,
		MaxBatchSize:     50,
		BatchConcurrency: 4,
		PageSize:         100,
	}
}

func (c Config) validate() error {
	if c.BaseURL == "" {
		return errors.New("graph: base url is required")
	}
	if _, err := url.Parse(c.BaseURL); err != nil {
		return fmt.Errorf("graph: invalid base url: %w", err)
	}
	if c.AuthPlacement != AuthHeader && c.AuthPlacement != AuthQuery {
		return fmt.Errorf("graph: unknown auth placement %q", c.AuthPlacement)
	}
	if c.MaxBatchSize < 1 {
		return fmt.Errorf("graph: max batch size must be positive, got %d", c.MaxBatchSize)
	}
	if c.BatchConcurrency < 1 {
		return fmt.Errorf("graph: batch concurrency must be positive, got %d", c.BatchConcurrency)
	}
	return nil
}

// Request describes a single Graph call. Path is either relative to the
// versioned base URL or an absolute URL used verbatim (pagination cursors).
// At most one of JSON and Form is set.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	JSON   any
	Form   url.Values
}

// Client performs authenticated calls against the Graph API.
type Client struct {
	doer    httpclient.Doer
	cfg     Config
	limiter *rate.Limiter
	logger  *slog.Logger
	tracer  trace.Tracer
}

// New creates a Graph client on top of doer.
func New(doer httpclient.Doer, cfg Config, logger *slog.Logger) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	return &Client{
		doer:    doer,
		cfg:     cfg,
		limiter: limiter,
		logger:  logger,
		tracer:  otel.Tracer(tracerName),
	}, nil
}

// WithToken returns a client that shares transport and rate limiter but
// authenticates with token.
func (c *Client) WithToken(token string) *Client {
	cpy := *c
	cpy.cfg.AccessToken = token
	return &cpy
}

// Config returns the client's settings.
func (c *Client) Config() Config {
	return c.cfg
}

// Do performs one authenticated call and returns the decoded JSON body.
// An empty success body is returned as {}.
func (c *Client) Do(ctx context.Context, r Request) (json.RawMessage, error) {
	start := time.Now()
	method := r.Method
	if method == "" {
		method = http.MethodGet
	}

	body, status, err := c.do(ctx, method, r)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	requestsTotal.WithLabelValues(method, outcome).Inc()
	requestDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())

	if err != nil {
		c.logger.WarnContext(ctx, "graph request failed",
			slog.String("method", method),
			slog.String("path", redactPath(r.Path)),
			slog.Int("status", status),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	return body, nil
}

func (c *Client) do(ctx context.Context, method string, r Request) (json.RawMessage, int, error) {
	req, err := c.newHTTPRequest(ctx, method, r)
	if err != nil {
		return nil, 0, err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, 0, fmt.Errorf("graph rate limit wait: %w", err)
	}

	resp, err := c.doer.Do(ctx, req)
	if err != nil {
		var statusErr *httpclient.StatusError
		switch {
		case errors.As(err, &statusErr):
			return nil, statusErr.StatusCode, parseAPIError(statusErr.StatusCode, statusErr.Body)
		case httpclient.IsBreakerRejection(err):
			return nil, 0, apperrors.ServiceUnavailable("catalog provider temporarily unavailable")
		default:
			return nil, 0, fmt.Errorf("graph %s request: %w", method, err)
		}
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read graph response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, resp.StatusCode, parseAPIError(resp.StatusCode, raw)
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return json.RawMessage(`{}`), resp.StatusCode, nil
	}
	if !json.Valid(trimmed) {
		return nil, resp.StatusCode, &APIError{
			Status: resp.StatusCode,
			Raw:    truncate(string(trimmed)),
			Detail: ErrorDetail{Message: "malformed response body"},
		}
	}
	return json.RawMessage(trimmed), resp.StatusCode, nil
}

func (c *Client) newHTTPRequest(ctx context.Context, method string, r Request) (*http.Request, error) {
	u, err := c.resolve(r.Path)
	if err != nil {
		return nil, err
	}

	q := u.Query()
	for k, vs := range r.Query {
		q.Del(k)
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	if c.cfg.AuthPlacement == AuthQuery && c.cfg.AccessToken != "" {
		q.Set("access_token", c.cfg.AccessToken)
	}
	u.RawQuery = q.Encode()

	var body io.Reader = http.NoBody
	contentType := ""
	switch {
	case r.JSON != nil:
		data, err := json.Marshal(r.JSON)
		if err != nil {
			return nil, fmt.Errorf("encode graph request body: %w", err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	case r.Form != nil:
		body = strings.NewReader(r.Form.Encode())
		contentType = "application/x-www-form-urlencoded"
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create graph request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.AuthPlacement == AuthHeader && c.cfg.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)
	}
	return req, nil
}

// resolve turns a request path into an absolute URL.
func (c *Client) resolve(path string) (*url.URL, error) {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		u, err := url.Parse(path)
		if err != nil {
			return nil, fmt.Errorf("parse graph url: %w", err)
		}
		return u, nil
	}

	base := strings.TrimRight(c.cfg.BaseURL, "/")
	if c.cfg.Version != "" {
		base += "/" + strings.Trim(c.cfg.Version, "/")
	}
	u, err := url.Parse(base + "/" + strings.TrimLeft(path, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse graph url: %w", err)
	}
	return u, nil
}

// startSpan opens a span for a client-level operation.
func (c *Client) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return c.tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindClient), trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// redactPath strips the query string, which may carry a credential.
func redactPath(p string) string {
	if i := strings.IndexByte(p, '?'); i >= 0 {
		return p[:i]
	}
	return p
}

func truncate(s string) string {
	const limit = 512
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
