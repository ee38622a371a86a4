package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/utafrali/catalog-sync/internal/domain"
	"github.com/utafrali/catalog-sync/internal/graph"
)

// RefreshStatus reads the moderation status of each product. Products whose
// read failed are absent from the snapshot. An error is returned only when
// no read could be made at all or the provider rejected the credential.
func (c *Client) RefreshStatus(ctx context.Context, ids []string) (domain.StatusSnapshot, error) {
	ids = NormalizeIDs(ids)
	if len(ids) == 0 {
		return domain.StatusSnapshot{}, nil
	}

	ctx, span := c.startSpan(ctx, "catalog.RefreshStatus",
		attribute.String("catalog.status_mode", string(c.modes.Status)),
		attribute.Int("catalog.items", len(ids)),
	)

	var (
		snapshot domain.StatusSnapshot
		err      error
	)
	if c.modes.Status == StatusConcurrent {
		snapshot, err = c.refreshConcurrent(ctx, ids)
	} else {
		snapshot, err = c.refreshBatched(ctx, ids)
	}
	endSpan(span, err)
	if err != nil {
		return nil, fmt.Errorf("refresh status: %w", err)
	}

	if missing := len(ids) - len(snapshot); missing > 0 {
		c.logger.WarnContext(ctx, "status refresh incomplete",
			slog.String("catalog_id", c.catalogID),
			slog.Int("requested", len(ids)),
			slog.Int("missing", missing),
		)
	}
	return snapshot, nil
}

func (c *Client) refreshBatched(ctx context.Context, ids []string) (domain.StatusSnapshot, error) {
	query := url.Values{"fields": {statusFields}}.Encode()
	ops := make([]graph.BatchOperation, len(ids))
	for i, id := range ids {
		ops[i] = graph.BatchOperation{Method: http.MethodGet, RelativeURL: id + "?" + query}
	}

	results, err := c.graph.Batch(ctx, ops)
	if err != nil {
		return nil, err
	}

	bodies, err := graph.Reconcile(results, ids)
	var batchErr *graph.BatchError
	if errors.As(err, &batchErr) {
		if batchErr.AuthFailure {
			return nil, batchErr
		}
		c.logger.DebugContext(ctx, "status reads failed",
			slog.Any("product_ids", batchErr.FailedKeys()),
			slog.String("error", batchErr.Error()),
		)
	}

	snapshot := make(domain.StatusSnapshot, len(ids))
	for i, body := range bodies {
		if body == nil {
			continue
		}
		var r remoteProduct
		if err := json.Unmarshal(body, &r); err != nil {
			c.logger.DebugContext(ctx, "undecodable status",
				slog.String("product_id", ids[i]),
				slog.String("error", err.Error()),
			)
			continue
		}
		snapshot[ids[i]] = r.moderation()
	}
	return snapshot, nil
}

func (c *Client) refreshConcurrent(ctx context.Context, ids []string) (domain.StatusSnapshot, error) {
	var mu sync.Mutex
	snapshot := make(domain.StatusSnapshot, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.statusConcurrency)
	for _, id := range ids {
		g.Go(func() error {
			raw, err := c.graph.Do(gctx, graph.Request{
				Method: http.MethodGet,
				Path:   id,
				Query:  url.Values{"fields": {statusFields}},
			})
			if err != nil {
				if errors.Is(err, graph.ErrAuth) {
					return err
				}
				c.logger.DebugContext(gctx, "status read failed",
					slog.String("product_id", id),
					slog.String("error", err.Error()),
				)
				return nil
			}

			var r remoteProduct
			if err := json.Unmarshal(raw, &r); err != nil {
				return nil
			}
			mu.Lock()
			snapshot[id] = r.moderation()
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return snapshot, nil
}
