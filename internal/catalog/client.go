package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/utafrali/catalog-sync/internal/graph"
)

const (
	tracerName = "github.com/utafrali/catalog-sync/internal/catalog"

	defaultStatusConcurrency = 8
)

// Client is the catalog facade: products and product sets of one remote
// catalog, reached through a Graph client.
type Client struct {
	graph             *graph.Client
	catalogID         string
	modes             Modes
	skus              *SKUGenerator
	notifier          Notifier
	logger            *slog.Logger
	statusConcurrency int
	tracer            trace.Tracer
}

// Option configures a Client.
type Option func(*Client)

// WithNotifier sets the sink for change notifications.
func WithNotifier(n Notifier) Option {
	return func(c *Client) {
		if n != nil {
			c.notifier = n
		}
	}
}

// WithSKUGenerator replaces the default SKU generator.
func WithSKUGenerator(g *SKUGenerator) Option {
	return func(c *Client) {
		if g != nil {
			c.skus = g
		}
	}
}

// WithStatusConcurrency bounds parallel status reads in StatusConcurrent mode.
func WithStatusConcurrency(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.statusConcurrency = n
		}
	}
}

// New creates a catalog client for catalogID.
func New(g *graph.Client, catalogID string, modes Modes, logger *slog.Logger, opts ...Option) (*Client, error) {
	if g == nil {
		return nil, errors.New("catalog: graph client is required")
	}
	if catalogID == "" {
		return nil, errors.New("catalog: catalog id is required")
	}
	if err := modes.validate(); err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}

	c := &Client{
		graph:             g,
		catalogID:         catalogID,
		modes:             modes,
		skus:              NewSKUGenerator(),
		notifier:          nopNotifier{},
		logger:            logger,
		statusConcurrency: defaultStatusConcurrency,
		tracer:            otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Scoped returns a client for another credential and catalog that shares
// everything else with c.
func (c *Client) Scoped(token, catalogID string) *Client {
	cpy := *c
	cpy.graph = c.graph.WithToken(token)
	if catalogID != "" {
		cpy.catalogID = catalogID
	}
	return &cpy
}

// CatalogID returns the remote catalog this client operates on.
func (c *Client) CatalogID() string {
	return c.catalogID
}

// Modes returns the protocol variant the client was built with.
func (c *Client) Modes() Modes {
	return c.modes
}

func (c *Client) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("catalog.id", c.catalogID))
	return c.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (c *Client) notify(ctx context.Context, level Level, kind Kind, msg string, ids []string) {
	c.notifier.Notify(ctx, Notification{
		Level:     level,
		Kind:      kind,
		Message:   msg,
		CatalogID: c.catalogID,
		IDs:       ids,
	})
}

// notifyFailure reports a failed write. Partial batch failures name the
// failed keys.
func (c *Client) notifyFailure(ctx context.Context, kind Kind, op string, err error) {
	var batchErr *graph.BatchError
	if errors.As(err, &batchErr) {
		level := LevelWarn
		if batchErr.AuthFailure || len(batchErr.Failures) == batchErr.Total {
			level = LevelError
		}
		c.notify(ctx, level, kind,
			fmt.Sprintf("%s: %d of %d failed", op, len(batchErr.Failures), batchErr.Total),
			batchErr.FailedKeys())
		return
	}
	c.notify(ctx, LevelError, kind, fmt.Sprintf("%s failed: %s", op, err.Error()), nil)
}
