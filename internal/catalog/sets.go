package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/utafrali/catalog-sync/internal/domain"
	"github.com/utafrali/catalog-sync/internal/graph"
	apperrors "github.com/utafrali/catalog-sync/pkg/errors"
)

type memberPage struct {
	Data   []idBody `json:"data"`
	Paging struct {
		Next string `json:"next"`
	} `json:"paging"`
}

// ListSets returns every product set with its complete membership.
// ProductIDs is never nil.
func (c *Client) ListSets(ctx context.Context) ([]domain.ProductSet, error) {
	ctx, span := c.startSpan(ctx, "catalog.ListSets",
		attribute.String("catalog.set_members_mode", string(c.modes.SetMembers)))
	sets, err := c.listSets(ctx)
	endSpan(span, err)
	if err != nil {
		return nil, fmt.Errorf("list sets: %w", err)
	}
	return sets, nil
}

func (c *Client) listSets(ctx context.Context) ([]domain.ProductSet, error) {
	remote, err := graph.FetchAllInto[remoteSet](ctx, c.graph, c.catalogID+"/product_sets",
		url.Values{"fields": {setFields}})
	if err != nil {
		return nil, err
	}

	sets := make([]domain.ProductSet, len(remote))
	var unresolved []int
	for i, r := range remote {
		sets[i] = domain.ProductSet{ID: r.ID, Name: r.Name, ProductIDs: []string{}}
		if c.modes.SetMembers == SetMembersEmbedded {
			if ids, ok := membersFromFilter(r.Filter); ok {
				sets[i].ProductIDs = ids
				continue
			}
		}
		unresolved = append(unresolved, i)
	}
	if len(unresolved) == 0 {
		return sets, nil
	}

	// Sets without an id enumeration (rule-based or unfiltered) are read
	// through their member edge.
	ids := make([]string, len(unresolved))
	for j, i := range unresolved {
		ids[j] = sets[i].ID
	}
	members, err := c.fetchMembers(ctx, ids)
	if err != nil {
		return nil, err
	}
	for j, i := range unresolved {
		sets[i].ProductIDs = members[j]
	}
	return sets, nil
}

// fetchMembers reads the members of every set with one batched request for
// the first page of each, then follows any remaining cursors.
func (c *Client) fetchMembers(ctx context.Context, setIDs []string) ([][]string, error) {
	query := url.Values{
		"fields": {memberFields},
		"limit":  {strconv.Itoa(c.graph.Config().PageSize)},
	}.Encode()

	ops := make([]graph.BatchOperation, len(setIDs))
	for i, id := range setIDs {
		ops[i] = graph.BatchOperation{Method: http.MethodGet, RelativeURL: id + "/products?" + query}
	}

	results, err := c.graph.Batch(ctx, ops)
	if err != nil {
		return nil, err
	}
	bodies, err := graph.Reconcile(results, setIDs)
	if err != nil {
		return nil, err
	}

	firsts := make([]memberPage, len(bodies))
	for i, body := range bodies {
		if err := json.Unmarshal(body, &firsts[i]); err != nil {
			return nil, fmt.Errorf("decode members of set %s: %w", setIDs[i], err)
		}
	}

	members := make([][]string, len(setIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.graph.Config().BatchConcurrency)
	for i, first := range firsts {
		ids := make([]string, 0, len(first.Data))
		for _, m := range first.Data {
			ids = append(ids, m.ID)
		}
		if first.Paging.Next == "" {
			members[i] = NormalizeIDs(ids)
			continue
		}

		g.Go(func() error {
			rest, err := graph.FetchAllInto[idBody](gctx, c.graph, first.Paging.Next, nil)
			if err != nil {
				return fmt.Errorf("members of set %s: %w", setIDs[i], err)
			}
			for _, m := range rest {
				ids = append(ids, m.ID)
			}
			members[i] = NormalizeIDs(ids)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return members, nil
}

// CreateSet creates a set named name containing exactly ids.
func (c *Client) CreateSet(ctx context.Context, name string, ids []string) (domain.ProductSet, error) {
	if name == "" {
		return domain.ProductSet{}, apperrors.InvalidInput("set name is required")
	}
	desired := NormalizeIDs(ids)

	ctx, span := c.startSpan(ctx, "catalog.CreateSet",
		attribute.String("catalog.membership_mode", string(c.modes.Membership)),
		attribute.Int("catalog.members", len(desired)),
	)
	id, err := c.createSet(ctx, name, desired)
	endSpan(span, err)
	if err != nil {
		c.notifyFailure(ctx, KindSetsChanged, "create set "+name, err)
		return domain.ProductSet{}, fmt.Errorf("create set %q: %w", name, err)
	}

	c.logger.InfoContext(ctx, "product set created",
		slog.String("catalog_id", c.catalogID),
		slog.String("set_id", id),
		slog.Int("members", len(desired)),
	)
	c.notify(ctx, LevelInfo, KindSetsChanged, fmt.Sprintf("set %q created", name), []string{id})
	return domain.ProductSet{ID: id, Name: name, ProductIDs: desired}, nil
}

func (c *Client) createSet(ctx context.Context, name string, desired []string) (string, error) {
	params := map[string]any{"name": name}
	if c.modes.Membership == MembershipDeclarative {
		params["filter"] = MembershipFilter(desired)
	}

	form, err := graph.EncodeParams(params)
	if err != nil {
		return "", err
	}
	raw, err := c.graph.Do(ctx, graph.Request{
		Method: http.MethodPost,
		Path:   c.catalogID + "/product_sets",
		Form:   form,
	})
	if err != nil {
		return "", err
	}

	var ref idBody
	if err := json.Unmarshal(raw, &ref); err != nil || ref.ID == "" {
		return "", apperrors.Upstream("create set response carries no set id")
	}

	if c.modes.Membership == MembershipImperative {
		if err := c.applyDiff(ctx, ref.ID, DiffMembership(nil, desired)); err != nil {
			return "", fmt.Errorf("set %s created but membership failed: %w", ref.ID, err)
		}
	}
	return ref.ID, nil
}

// UpdateSet makes set id contain exactly ids, renaming it when name is not
// empty. Repeating the call with the same arguments changes nothing. The
// returned set echoes name as given: an empty Name means the provider kept
// the existing one.
func (c *Client) UpdateSet(ctx context.Context, id, name string, ids []string) (domain.ProductSet, error) {
	if id == "" {
		return domain.ProductSet{}, apperrors.InvalidInput("set id is required")
	}
	desired := NormalizeIDs(ids)

	ctx, span := c.startSpan(ctx, "catalog.UpdateSet",
		attribute.String("catalog.set_id", id),
		attribute.String("catalog.membership_mode", string(c.modes.Membership)),
	)
	err := c.updateSet(ctx, id, name, desired)
	endSpan(span, err)
	if err != nil {
		c.notifyFailure(ctx, KindSetsChanged, "update set "+id, err)
		return domain.ProductSet{}, fmt.Errorf("update set %s: %w", id, err)
	}

	c.notify(ctx, LevelInfo, KindSetsChanged, "set updated", []string{id})
	return domain.ProductSet{ID: id, Name: name, ProductIDs: desired}, nil
}

func (c *Client) updateSet(ctx context.Context, id, name string, desired []string) error {
	if c.modes.Membership == MembershipDeclarative {
		params := map[string]any{"filter": MembershipFilter(desired)}
		if name != "" {
			params["name"] = name
		}
		return c.postObject(ctx, id, params)
	}

	current, err := graph.FetchAllInto[idBody](ctx, c.graph, id+"/products",
		url.Values{"fields": {memberFields}})
	if err != nil {
		return fmt.Errorf("read members: %w", err)
	}
	currentIDs := make([]string, len(current))
	for i, m := range current {
		currentIDs[i] = m.ID
	}

	if name != "" {
		if err := c.postObject(ctx, id, map[string]any{"name": name}); err != nil {
			return err
		}
	}

	diff := DiffMembership(currentIDs, desired)
	c.logger.DebugContext(ctx, "set membership diff",
		slog.String("set_id", id),
		slog.Int("to_add", len(diff.ToAdd)),
		slog.Int("to_remove", len(diff.ToRemove)),
	)
	return c.applyDiff(ctx, id, diff)
}

// applyDiff issues the add and remove calls for diff, skipping either when
// its list is empty.
func (c *Client) applyDiff(ctx context.Context, setID string, diff MembershipDiff) error {
	if diff.IsEmpty() {
		return nil
	}

	var ops []graph.BatchOperation
	var keys []string
	if len(diff.ToAdd) > 0 {
		op, err := graph.NewOperation(http.MethodPost, setID+"/products", map[string]any{"product_ids": diff.ToAdd})
		if err != nil {
			return err
		}
		ops = append(ops, op)
		keys = append(keys, setID+" add")
	}
	if len(diff.ToRemove) > 0 {
		op, err := graph.NewOperation(http.MethodDelete, setID+"/products", map[string]any{"product_ids": diff.ToRemove})
		if err != nil {
			return err
		}
		ops = append(ops, op)
		keys = append(keys, setID+" remove")
	}

	results, err := c.graph.Batch(ctx, ops)
	if err != nil {
		return err
	}
	_, err = graph.Reconcile(results, keys)
	return err
}

// DeleteSets removes the given sets in one batched write. Member products
// are not affected.
func (c *Client) DeleteSets(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	ctx, span := c.startSpan(ctx, "catalog.DeleteSets", attribute.Int("catalog.items", len(ids)))
	err := c.deleteObjects(ctx, ids)
	endSpan(span, err)
	if err != nil {
		c.notifyFailure(ctx, KindSetsChanged, "delete sets", err)
		return fmt.Errorf("delete sets: %w", err)
	}

	c.notify(ctx, LevelInfo, KindSetsChanged, fmt.Sprintf("%d sets deleted", len(ids)), ids)
	return nil
}
