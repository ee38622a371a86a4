package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
)

// ErrCursorLoop is returned when the provider hands back the cursor that was
// just fetched.
var ErrCursorLoop = errors.New("graph: pagination cursor did not advance")

type page struct {
	Data   []json.RawMessage `json:"data"`
	Paging struct {
		Next string `json:"next"`
	} `json:"paging"`
}

// FetchAll reads path and follows paging.next until a page has no cursor,
// concatenating every page's data in order. Empty pages with a cursor are
// followed. If any page fails, nothing accumulated so far is returned.
func (c *Client) FetchAll(ctx context.Context, path string, query url.Values) ([]json.RawMessage, error) {
	ctx, span := c.startSpan(ctx, "graph.FetchAll", attribute.String("graph.path", redactPath(path)))

	items, pages, err := c.fetchAll(ctx, path, query)
	span.SetAttributes(attribute.Int("graph.pages", pages), attribute.Int("graph.items", len(items)))
	endSpan(span, err)
	if err != nil {
		return nil, err
	}

	c.logger.DebugContext(ctx, "graph pagination completed",
		slog.String("path", redactPath(path)),
		slog.Int("pages", pages),
		slog.Int("items", len(items)),
	)
	return items, nil
}

func (c *Client) fetchAll(ctx context.Context, path string, query url.Values) ([]json.RawMessage, int, error) {
	q := url.Values{}
	for k, vs := range query {
		q[k] = append([]string(nil), vs...)
	}
	if c.cfg.PageSize > 0 && q.Get("limit") == "" {
		q.Set("limit", strconv.Itoa(c.cfg.PageSize))
	}

	items := make([]json.RawMessage, 0)
	next := path
	for n := 1; ; n++ {
		raw, err := c.Do(ctx, Request{Method: http.MethodGet, Path: next, Query: q})
		if err != nil {
			return nil, n, fmt.Errorf("fetch page %d: %w", n, err)
		}
		pagesFetchedTotal.Inc()

		var p page
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, n, fmt.Errorf("decode page %d: %w", n, err)
		}
		items = append(items, p.Data...)

		if p.Paging.Next == "" {
			return items, n, nil
		}
		if p.Paging.Next == next {
			return nil, n, fmt.Errorf("page %d: %w", n, ErrCursorLoop)
		}

		// The cursor URL already carries every query parameter.
		next = p.Paging.Next
		q = nil
	}
}

// FetchAllInto is FetchAll with each item decoded into T.
func FetchAllInto[T any](ctx context.Context, c *Client, path string, query url.Values) ([]T, error) {
	raw, err := c.FetchAll(ctx, path, query)
	if err != nil {
		return nil, err
	}

	out := make([]T, 0, len(raw))
	for i, item := range raw {
		var v T
		if err := json.Unmarshal(item, &v); err != nil {
			return nil, fmt.Errorf("decode item %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}
