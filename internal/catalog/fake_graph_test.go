package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/utafrali/catalog-sync/internal/graph"
	"github.com/utafrali/catalog-sync/pkg/httpclient"
)

const (
	testCatalogID = "cat1"
	testVersion   = "v19.0"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

type fakeSet struct {
	id      string
	name    string
	filter  string
	members []string
}

// fakeGraph is an in-memory catalog behind the Graph wire protocol. It
// serves direct calls and batch envelopes alike.
type fakeGraph struct {
	mu sync.Mutex

	baseURL  string
	nextID   int
	products []map[string]any
	sets     []*fakeSet

	// failing maps an object id or product name to an error code returned
	// for any sub-operation touching it.
	failing map[string]int
	// failEnvelope maps a substring to an HTTP status returned for a whole
	// batch envelope containing it. No operation of that envelope applies.
	failEnvelope map[string]int
	// rejecting lists object ids whose writes answer {"success": false}.
	rejecting map[string]bool
	// calls records "METHOD path" for every direct call and sub-operation.
	calls []string
	// batches counts envelopes received.
	batches int
}

func newFakeGraph() *fakeGraph {
	return &fakeGraph{failing: map[string]int{}, failEnvelope: map[string]int{}, rejecting: map[string]bool{}}
}

func (f *fakeGraph) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/"+testVersion+"/")
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if path == "" && r.Method == http.MethodPost {
		f.serveBatch(w, r.PostForm.Get("batch"))
		return
	}

	form := r.PostForm
	if r.Method == http.MethodDelete {
		form = url.Values{}
	}
	code, body := f.handle(r.Method, path, r.URL.Query(), form)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

func (f *fakeGraph) serveBatch(w http.ResponseWriter, envelope string) {
	var ops []struct {
		Method      string `json:"method"`
		RelativeURL string `json:"relative_url"`
		Body        string `json:"body"`
	}
	if err := json.Unmarshal([]byte(envelope), &ops); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	f.batches++
	for marker, status := range f.failEnvelope {
		if strings.Contains(envelope, marker) {
			f.mu.Unlock()
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_ = json.NewEncoder(w).Encode(graphError(2, "An unexpected error has occurred"))
			return
		}
	}
	f.mu.Unlock()

	out := make([]map[string]any, len(ops))
	for i, op := range ops {
		path, rawQuery, _ := strings.Cut(op.RelativeURL, "?")
		query, _ := url.ParseQuery(rawQuery)
		form, _ := url.ParseQuery(op.Body)
		code, body := f.handle(op.Method, path, query, form)
		data, _ := json.Marshal(body)
		out[i] = map[string]any{"code": code, "body": string(data)}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

func graphError(code int, msg string) map[string]any {
	return map[string]any{"error": map[string]any{
		"message": msg, "type": "GraphMethodException", "code": code, "fbtrace_id": "trace",
	}}
}

func (f *fakeGraph) handle(method, path string, query, form url.Values) (int, any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, method+" "+path)

	parts := strings.Split(path, "/")
	if code, ok := f.failing[parts[0]]; ok {
		if code == 190 {
			return http.StatusUnauthorized, map[string]any{"error": map[string]any{
				"message": "Error validating access token", "type": "OAuthException", "code": 190,
			}}
		}
		return http.StatusBadRequest, graphError(code, "object "+parts[0]+" cannot be used")
	}
	if f.rejecting[parts[0]] && method != http.MethodGet {
		return http.StatusOK, map[string]any{"success": false}
	}

	switch {
	case path == testCatalogID+"/products" && method == http.MethodGet:
		items := make([]any, len(f.products))
		for i, p := range f.products {
			items[i] = maps.Clone(p)
		}
		return http.StatusOK, f.page(path, items, query)
	case path == testCatalogID+"/products" && method == http.MethodPost:
		return f.createProduct(form)
	case path == testCatalogID+"/product_sets" && method == http.MethodGet:
		items := make([]any, len(f.sets))
		for i, s := range f.sets {
			item := map[string]any{"id": s.id, "name": s.name}
			if s.filter != "" {
				item["filter"] = s.filter
			}
			items[i] = item
		}
		return http.StatusOK, f.page(path, items, query)
	case path == testCatalogID+"/product_sets" && method == http.MethodPost:
		f.nextID++
		s := &fakeSet{id: fmt.Sprintf("s%d", f.nextID), name: form.Get("name"), filter: form.Get("filter")}
		s.members = filterMembers(s.filter)
		f.sets = append(f.sets, s)
		return http.StatusOK, map[string]any{"id": s.id}
	case len(parts) == 2 && parts[1] == "products":
		s := f.set(parts[0])
		if s == nil {
			return http.StatusBadRequest, graphError(100, "unknown set "+parts[0])
		}
		return f.setMembers(s, method, path, query, form)
	case len(parts) == 1:
		return f.object(method, parts[0], form)
	}
	return http.StatusBadRequest, graphError(100, "unsupported "+method+" "+path)
}

func (f *fakeGraph) createProduct(form url.Values) (int, any) {
	if code, ok := f.failing[form.Get("name")]; ok {
		return http.StatusBadRequest, graphError(code, "invalid product "+form.Get("name"))
	}
	for _, p := range f.products {
		if p["retailer_id"] == form.Get("retailer_id") {
			return http.StatusBadRequest, graphError(100, "duplicate retailer_id")
		}
	}

	f.nextID++
	p := map[string]any{"id": fmt.Sprintf("p%d", f.nextID), "review_status": ""}
	for k := range form {
		v := form.Get(k)
		switch k {
		case "price", "sale_price", "inventory":
			n, _ := strconv.Atoi(v)
			p[k] = n
		case "additional_image_urls", "video":
			var raw any
			_ = json.Unmarshal([]byte(v), &raw)
			p[k] = raw
		default:
			p[k] = v
		}
	}
	f.products = append(f.products, p)
	return http.StatusOK, map[string]any{"id": p["id"]}
}

func (f *fakeGraph) setMembers(s *fakeSet, method, path string, query, form url.Values) (int, any) {
	var ids []string
	if raw := form.Get("product_ids"); raw != "" {
		_ = json.Unmarshal([]byte(raw), &ids)
	}

	switch method {
	case http.MethodGet:
		items := make([]any, len(s.members))
		for i, id := range s.members {
			items[i] = map[string]any{"id": id}
		}
		return http.StatusOK, f.page(path, items, query)
	case http.MethodPost:
		for _, id := range ids {
			if !slices.Contains(s.members, id) {
				s.members = append(s.members, id)
			}
		}
		return http.StatusOK, map[string]any{"success": true}
	case http.MethodDelete:
		s.members = slices.DeleteFunc(s.members, func(id string) bool { return slices.Contains(ids, id) })
		return http.StatusOK, map[string]any{"success": true}
	}
	return http.StatusBadRequest, graphError(100, "unsupported")
}

func (f *fakeGraph) object(method, id string, form url.Values) (int, any) {
	if s := f.set(id); s != nil {
		switch method {
		case http.MethodPost:
			if name := form.Get("name"); name != "" {
				s.name = name
			}
			if filter := form.Get("filter"); filter != "" {
				s.filter = filter
				s.members = filterMembers(filter)
			}
			return http.StatusOK, map[string]any{"success": true}
		case http.MethodDelete:
			f.sets = slices.DeleteFunc(f.sets, func(x *fakeSet) bool { return x.id == id })
			return http.StatusOK, map[string]any{"success": true}
		}
	}

	idx := slices.IndexFunc(f.products, func(p map[string]any) bool { return p["id"] == id })
	if idx < 0 {
		return http.StatusBadRequest, graphError(100, "Unsupported get request. Object with ID '"+id+"' does not exist")
	}
	p := f.products[idx]
	switch method {
	case http.MethodGet:
		return http.StatusOK, maps.Clone(p)
	case http.MethodPost:
		for k := range form {
			v := form.Get(k)
			if k == "price" || k == "sale_price" || k == "inventory" {
				n, _ := strconv.Atoi(v)
				p[k] = n
				continue
			}
			p[k] = v
		}
		return http.StatusOK, map[string]any{"success": true}
	case http.MethodDelete:
		f.products = slices.Delete(f.products, idx, idx+1)
		return http.StatusOK, map[string]any{"success": true}
	}
	return http.StatusBadRequest, graphError(100, "unsupported")
}

func (f *fakeGraph) set(id string) *fakeSet {
	for _, s := range f.sets {
		if s.id == id {
			return s
		}
	}
	return nil
}

// page slices items by the limit and after query parameters.
func (f *fakeGraph) page(path string, items []any, query url.Values) map[string]any {
	limit, _ := strconv.Atoi(query.Get("limit"))
	if limit <= 0 {
		limit = 25
	}
	start, _ := strconv.Atoi(query.Get("after"))
	start = min(start, len(items))
	end := min(start+limit, len(items))

	out := map[string]any{"data": items[start:end]}
	if end < len(items) {
		q := url.Values{}
		for k, vs := range query {
			q[k] = vs
		}
		q.Set("after", strconv.Itoa(end))
		out["paging"] = map[string]any{"next": f.baseURL + "/" + testVersion + "/" + path + "?" + q.Encode()}
	}
	return out
}

func filterMembers(filter string) []string {
	if filter == "" {
		return nil
	}
	var f map[string]FilterClause
	if err := json.Unmarshal([]byte(filter), &f); err != nil {
		return nil
	}
	return f[filterField].IsAny
}

func (f *fakeGraph) addProduct(id, sku, name string, reviewStatus string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.products = append(f.products, map[string]any{
		"id": id, "retailer_id": sku, "name": name, "price": 1999, "currency": "USD",
		"inventory": 3, "review_status": reviewStatus,
	})
}

func (f *fakeGraph) addSet(id, name string, members ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	filter, _ := json.Marshal(MembershipFilter(members))
	f.sets = append(f.sets, &fakeSet{id: id, name: name, filter: string(filter), members: members})
}

func (f *fakeGraph) recordedCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

func (f *fakeGraph) resetCalls() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
	f.batches = 0
}

// recordingNotifier keeps every notification it receives.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []Notification
}

func (r *recordingNotifier) Notify(_ context.Context, n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
}

func (r *recordingNotifier) last() Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sent) == 0 {
		return Notification{}
	}
	return r.sent[len(r.sent)-1]
}

// newTestCatalog wires a Client to f with small page and batch sizes so
// tests cross page and chunk boundaries.
func newTestCatalog(t *testing.T, f *fakeGraph, modes Modes, opts ...Option) *Client {
	t.Helper()
	server := httptest.NewServer(f)
	t.Cleanup(server.Close)
	f.baseURL = server.URL

	cfg := graph.DefaultConfig()
	cfg.BaseURL = server.URL
	cfg.Version = testVersion
	cfg.AccessToken = "test-token"
	cfg.PageSize = 2
	cfg.MaxBatchSize = 3

	doer := httpclient.New(httpclient.Config{Timeout: 5 * time.Second, MaxConnsPerHost: 10})
	g, err := graph.New(doer, cfg, testLogger())
	require.NoError(t, err)

	c, err := New(g, testCatalogID, modes, testLogger(), opts...)
	require.NoError(t, err)
	return c
}
