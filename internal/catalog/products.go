package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"go.opentelemetry.io/otel/attribute"

	"github.com/utafrali/catalog-sync/internal/domain"
	"github.com/utafrali/catalog-sync/internal/graph"
	apperrors "github.com/utafrali/catalog-sync/pkg/errors"
)

// ListProducts returns every product in the catalog, following pagination
// to the end.
func (c *Client) ListProducts(ctx context.Context) ([]domain.Product, error) {
	ctx, span := c.startSpan(ctx, "catalog.ListProducts")

	remote, err := graph.FetchAllInto[remoteProduct](ctx, c.graph, c.catalogID+"/products",
		url.Values{"fields": {productFields}})
	endSpan(span, err)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	products := make([]domain.Product, len(remote))
	for i, r := range remote {
		products[i] = r.toDomain()
	}
	return products, nil
}

// AddProducts creates items in one batched write. Each item gets a SKU that
// is unused in the catalog. Inputs are expected to be validated. On partial
// failure the error is a *graph.BatchError keyed by SKU, and the products
// that were created are returned alongside it; they are not rolled back.
func (c *Client) AddProducts(ctx context.Context, items []domain.NewProduct) ([]domain.Product, error) {
	if len(items) == 0 {
		return []domain.Product{}, nil
	}

	ctx, span := c.startSpan(ctx, "catalog.AddProducts", attribute.Int("catalog.items", len(items)))
	created, err := c.addProducts(ctx, items)
	endSpan(span, err)
	if err != nil {
		c.notifyFailure(ctx, KindProductsAdded, "add products", err)
		return created, fmt.Errorf("add products: %w", err)
	}

	ids := make([]string, len(created))
	for i, p := range created {
		ids[i] = p.ID
	}
	c.logger.InfoContext(ctx, "products added",
		slog.String("catalog_id", c.catalogID),
		slog.Int("count", len(created)),
	)
	c.notify(ctx, LevelInfo, KindProductsAdded, fmt.Sprintf("%d products added", len(created)), ids)
	return created, nil
}

func (c *Client) addProducts(ctx context.Context, items []domain.NewProduct) ([]domain.Product, error) {
	existing, err := c.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	known := make(map[string]struct{}, len(existing))
	for _, p := range existing {
		if p.RetailerID != "" {
			known[p.RetailerID] = struct{}{}
		}
	}

	names := make([]string, len(items))
	for i, item := range items {
		names[i] = item.Name
	}
	skus, err := c.skus.Assign(names, known)
	if err != nil {
		return nil, err
	}

	ops := make([]graph.BatchOperation, len(items))
	for i, item := range items {
		op, err := graph.NewOperation(http.MethodPost, c.catalogID+"/products", createPayload(skus[i], item))
		if err != nil {
			return nil, err
		}
		ops[i] = op
	}

	results, err := c.graph.Batch(ctx, ops)
	if err != nil {
		return nil, err
	}
	bodies, batchErr := graph.Reconcile(results, skus)

	created := make([]domain.Product, 0, len(items))
	for i, body := range bodies {
		if body == nil {
			continue
		}
		var ref idBody
		if err := json.Unmarshal(body, &ref); err != nil || ref.ID == "" {
			return created, apperrors.Upstream(fmt.Sprintf("create response for %s carries no product id", skus[i]))
		}
		created = append(created, productFromInput(ref.ID, skus[i], items[i]))
	}
	if batchErr != nil {
		return created, batchErr
	}
	return created, nil
}

// DeleteProducts removes the given products in one batched write.
func (c *Client) DeleteProducts(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	ctx, span := c.startSpan(ctx, "catalog.DeleteProducts", attribute.Int("catalog.items", len(ids)))
	err := c.deleteObjects(ctx, ids)
	endSpan(span, err)
	if err != nil {
		c.notifyFailure(ctx, KindProductsDeleted, "delete products", err)
		return fmt.Errorf("delete products: %w", err)
	}

	c.logger.InfoContext(ctx, "products deleted",
		slog.String("catalog_id", c.catalogID),
		slog.Int("count", len(ids)),
	)
	c.notify(ctx, LevelInfo, KindProductsDeleted, fmt.Sprintf("%d products deleted", len(ids)), ids)
	return nil
}

// deleteObjects issues one DELETE /{id} per id, batched.
func (c *Client) deleteObjects(ctx context.Context, ids []string) error {
	ops := make([]graph.BatchOperation, len(ids))
	for i, id := range ids {
		if id == "" {
			return apperrors.InvalidInput(fmt.Sprintf("id at position %d is empty", i))
		}
		ops[i] = graph.BatchOperation{Method: http.MethodDelete, RelativeURL: id}
	}

	results, err := c.graph.Batch(ctx, ops)
	if err != nil {
		return err
	}
	_, err = graph.Reconcile(results, ids)
	return err
}

// UpdateProduct applies a sparse update. An update with no fields makes no
// call.
func (c *Client) UpdateProduct(ctx context.Context, id string, u domain.ProductUpdate) error {
	if id == "" {
		return apperrors.InvalidInput("product id is required")
	}
	if u.IsEmpty() {
		return nil
	}

	ctx, span := c.startSpan(ctx, "catalog.UpdateProduct", attribute.String("catalog.product_id", id))
	err := c.postObject(ctx, id, updatePayload(u))
	endSpan(span, err)
	if err != nil {
		c.notifyFailure(ctx, KindProductUpdated, "update product "+id, err)
		return fmt.Errorf("update product %s: %w", id, err)
	}

	c.notify(ctx, LevelInfo, KindProductUpdated, "product updated", []string{id})
	return nil
}

// postObject writes params to /{id} and checks the provider's success flag.
func (c *Client) postObject(ctx context.Context, id string, params map[string]any) error {
	form, err := graph.EncodeParams(params)
	if err != nil {
		return err
	}

	raw, err := c.graph.Do(ctx, graph.Request{Method: http.MethodPost, Path: id, Form: form})
	if err != nil {
		return err
	}

	if graph.WriteRejected(raw) {
		return apperrors.Upstream(fmt.Sprintf("provider did not accept the write to %s", id))
	}
	return nil
}
