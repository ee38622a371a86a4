package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/catalog-sync/internal/graph"
	apperrors "github.com/utafrali/catalog-sync/pkg/errors"
)

func modesWith(membership MembershipMode, members SetMembersMode) Modes {
	m := DefaultModes()
	m.Membership = membership
	m.SetMembers = members
	return m
}

func (f *fakeGraph) setByID(id string) fakeSet {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s := f.set(id); s != nil {
		return *s
	}
	return fakeSet{}
}

func TestListSets_FetchedModeReadsEveryMember(t *testing.T) {
	f := newFakeGraph()
	f.addSet("s1", "Summer", "p5", "p3", "p1", "p4", "p2")
	f.addSet("s2", "Empty")
	f.addSet("s3", "Pair", "p9", "p8")
	c := newTestCatalog(t, f, modesWith(MembershipDeclarative, SetMembersFetched))

	sets, err := c.ListSets(context.Background())
	require.NoError(t, err)
	require.Len(t, sets, 3)

	assert.Equal(t, "Summer", sets[0].Name)
	assert.Equal(t, []string{"p1", "p2", "p3", "p4", "p5"}, sets[0].ProductIDs)
	assert.NotNil(t, sets[1].ProductIDs)
	assert.Empty(t, sets[1].ProductIDs)
	assert.Equal(t, []string{"p8", "p9"}, sets[2].ProductIDs)

	f.mu.Lock()
	batches := f.batches
	f.mu.Unlock()
	assert.Equal(t, 1, batches)
}

func TestListSets_EmbeddedModeUsesFilter(t *testing.T) {
	f := newFakeGraph()
	f.addSet("s1", "Summer", "b", "a")
	c := newTestCatalog(t, f, modesWith(MembershipDeclarative, SetMembersEmbedded))

	sets, err := c.ListSets(context.Background())
	require.NoError(t, err)
	require.Len(t, sets, 1)
	assert.Equal(t, []string{"a", "b"}, sets[0].ProductIDs)
	assert.Equal(t, []string{"GET " + testCatalogID + "/product_sets"}, f.recordedCalls())
}

func TestListSets_EmbeddedModeReadsRuleBasedSets(t *testing.T) {
	f := newFakeGraph()
	f.addSet("s1", "Summer", "b", "a")
	f.mu.Lock()
	f.sets = append(f.sets, &fakeSet{id: "s2", name: "Acme", filter: `{"brand":{"eq":"Acme"}}`, members: []string{"p9", "p8"}})
	f.mu.Unlock()
	c := newTestCatalog(t, f, modesWith(MembershipDeclarative, SetMembersEmbedded))

	sets, err := c.ListSets(context.Background())
	require.NoError(t, err)
	require.Len(t, sets, 2)
	assert.Equal(t, []string{"a", "b"}, sets[0].ProductIDs)
	assert.Equal(t, []string{"p8", "p9"}, sets[1].ProductIDs)

	calls := f.recordedCalls()
	assert.Contains(t, calls, "GET s2/products")
	assert.NotContains(t, calls, "GET s1/products")
}

func TestListSets_MemberReadFailure(t *testing.T) {
	f := newFakeGraph()
	f.addSet("s1", "Summer", "a")
	f.addSet("s2", "Winter", "b")
	f.failing["s2"] = 100
	c := newTestCatalog(t, f, DefaultModes())

	_, err := c.ListSets(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrUpstream))
	assert.Contains(t, err.Error(), "s2")
}

func TestCreateSet_DeclarativeSendsFilter(t *testing.T) {
	f := newFakeGraph()
	c := newTestCatalog(t, f, modesWith(MembershipDeclarative, SetMembersFetched))

	set, err := c.CreateSet(context.Background(), "Summer", []string{"b", "a", "a"})
	require.NoError(t, err)
	assert.NotEmpty(t, set.ID)
	assert.Equal(t, []string{"a", "b"}, set.ProductIDs)
	assert.Equal(t, []string{"POST " + testCatalogID + "/product_sets"}, f.recordedCalls())

	stored := f.setByID(set.ID)
	assert.JSONEq(t, `{"product_item_id":{"is_any":["a","b"]}}`, stored.filter)
}

func TestCreateSet_DeclarativeEmptySendsEmptyFilter(t *testing.T) {
	f := newFakeGraph()
	c := newTestCatalog(t, f, modesWith(MembershipDeclarative, SetMembersFetched))

	set, err := c.CreateSet(context.Background(), "Nothing", nil)
	require.NoError(t, err)
	assert.NotNil(t, set.ProductIDs)
	assert.JSONEq(t, `{"product_item_id":{"is_any":[]}}`, f.setByID(set.ID).filter)
}

func TestCreateSet_ImperativeAddsMembers(t *testing.T) {
	f := newFakeGraph()
	c := newTestCatalog(t, f, modesWith(MembershipImperative, SetMembersFetched))

	set, err := c.CreateSet(context.Background(), "Summer", []string{"p2", "p1"})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"POST " + testCatalogID + "/product_sets",
		"POST " + set.ID + "/products",
	}, f.recordedCalls())
	assert.Empty(t, f.setByID(set.ID).filter)
	assert.ElementsMatch(t, []string{"p1", "p2"}, f.setByID(set.ID).members)
}

func TestCreateSet_ImperativeEmptySkipsMembershipCall(t *testing.T) {
	f := newFakeGraph()
	c := newTestCatalog(t, f, modesWith(MembershipImperative, SetMembersFetched))

	_, err := c.CreateSet(context.Background(), "Empty", nil)
	require.NoError(t, err)
	assert.Len(t, f.recordedCalls(), 1)
}

func TestCreateSet_RequiresName(t *testing.T) {
	c := newTestCatalog(t, newFakeGraph(), DefaultModes())

	_, err := c.CreateSet(context.Background(), "", []string{"a"})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
}

func TestUpdateSet_ImperativeAppliesMinimalDiff(t *testing.T) {
	f := newFakeGraph()
	f.addSet("s1", "Summer", "a", "d")
	c := newTestCatalog(t, f, modesWith(MembershipImperative, SetMembersFetched))
	ctx := context.Background()

	set, err := c.UpdateSet(ctx, "s1", "", []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, set.ProductIDs)
	assert.Equal(t, []string{"GET s1/products", "POST s1/products", "DELETE s1/products"}, f.recordedCalls())
	assert.ElementsMatch(t, []string{"a", "b", "c"}, f.setByID("s1").members)

	f.resetCalls()
	_, err = c.UpdateSet(ctx, "s1", "", []string{"c", "b", "a"})
	require.NoError(t, err)
	// Three members over PageSize 2, and no writes.
	assert.Equal(t, []string{"GET s1/products", "GET s1/products"}, f.recordedCalls())
}

func TestUpdateSet_ImperativeRename(t *testing.T) {
	f := newFakeGraph()
	f.addSet("s1", "Summer", "a")
	c := newTestCatalog(t, f, modesWith(MembershipImperative, SetMembersFetched))

	_, err := c.UpdateSet(context.Background(), "s1", "Autumn", []string{"a"})
	require.NoError(t, err)
	assert.Equal(t, "Autumn", f.setByID("s1").name)
	assert.Equal(t, []string{"GET s1/products", "POST s1"}, f.recordedCalls())
}

func TestUpdateSet_DeclarativeIsIdempotent(t *testing.T) {
	f := newFakeGraph()
	f.addSet("s1", "Summer", "a", "d")
	c := newTestCatalog(t, f, modesWith(MembershipDeclarative, SetMembersFetched))
	ctx := context.Background()

	_, err := c.UpdateSet(ctx, "s1", "Summer", []string{"c", "a", "b"})
	require.NoError(t, err)
	first := f.setByID("s1").filter

	_, err = c.UpdateSet(ctx, "s1", "Summer", []string{"a", "b", "c"})
	require.NoError(t, err)
	second := f.setByID("s1").filter

	assert.Equal(t, first, second)
	assert.Equal(t, []string{"POST s1", "POST s1"}, f.recordedCalls())

	var filter map[string]FilterClause
	require.NoError(t, json.Unmarshal([]byte(second), &filter))
	assert.Equal(t, []string{"a", "b", "c"}, filter[filterField].IsAny)
}

func TestUpdateSet_RequiresID(t *testing.T) {
	c := newTestCatalog(t, newFakeGraph(), DefaultModes())

	_, err := c.UpdateSet(context.Background(), "", "x", nil)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
}

func TestDeleteSets(t *testing.T) {
	f := newFakeGraph()
	f.addSet("s1", "A")
	f.addSet("s2", "B")
	notifier := &recordingNotifier{}
	c := newTestCatalog(t, f, DefaultModes(), WithNotifier(notifier))

	require.NoError(t, c.DeleteSets(context.Background(), []string{"s1"}))

	sets, err := c.ListSets(context.Background())
	require.NoError(t, err)
	require.Len(t, sets, 1)
	assert.Equal(t, "s2", sets[0].ID)
	assert.Equal(t, KindSetsChanged, notifier.sent[0].Kind)
}

func TestUpdateSet_EmptyNameKeepsProviderName(t *testing.T) {
	f := newFakeGraph()
	f.addSet("s1", "Summer", "a")
	c := newTestCatalog(t, f, modesWith(MembershipDeclarative, SetMembersFetched))

	set, err := c.UpdateSet(context.Background(), "s1", "", []string{"a", "b"})
	require.NoError(t, err)
	assert.Empty(t, set.Name)
	assert.Equal(t, []string{"a", "b"}, set.ProductIDs)
	assert.Equal(t, "Summer", f.setByID("s1").name)
}

func TestUpdateSet_ImperativeRejectedMembershipWrite(t *testing.T) {
	f := newFakeGraph()
	f.addSet("s1", "Summer", "a")
	f.rejecting["s1"] = true
	c := newTestCatalog(t, f, modesWith(MembershipImperative, SetMembersFetched))

	_, err := c.UpdateSet(context.Background(), "s1", "", []string{"a", "b"})

	var batchErr *graph.BatchError
	require.ErrorAs(t, err, &batchErr)
	assert.Equal(t, []string{"s1 add"}, batchErr.FailedKeys())
}
