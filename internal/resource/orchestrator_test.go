package resource

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.accesshub.tech/internal/api"
	"go.accesshub.tech/internal/auth"
	"go.accesshub.tech/internal/odata"
)

// recordingNotifier captures notifications for assertions.
type recordingNotifier struct {
	mu        sync.Mutex
	successes []string
	failures  []string
}

func (n *recordingNotifier) Success(_, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.successes = append(n.successes, message)
}

func (n *recordingNotifier) Failure(_, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failures = append(n.failures, message)
}

func (n *recordingNotifier) counts() (int, int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.successes), len(n.failures)
}

func newTestTransport(t *testing.T, baseURL string) *api.Client {
	t.Helper()
	session, err := auth.NewSession(context.Background(), auth.NewMemoryStore(), nil)
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	err = session.SetTokens(context.Background(), auth.TokenPair{
		AccessToken:  "tok-1",
		RefreshToken: "refresh-1",
	})
	if err != nil {
		t.Fatalf("SetTokens failed: %v", err)
	}
	cfg := api.DefaultClientConfig()
	cfg.BaseURL = baseURL
	cfg.CircuitBreakerEnabled = false
	return api.NewClient(cfg, session)
}

func testConfig(notifier Notifier) Config[testEntity] {
	return Config[testEntity]{
		Name:     "clients",
		ListPath: "/api/admin/clients",
		Encoder: odata.Encoder{
			IDField:      "id",
			SearchFields: []string{"name"},
			DefaultOrder: "name asc",
		},
		DebounceDelay:   40 * time.Millisecond,
		DedupClearDelay: 40 * time.Millisecond,
		Notifier:        notifier,
	}
}

func writeEnvelope(w http.ResponseWriter, items []testEntity, total int) {
	json.NewEncoder(w).Encode(map[string]any{
		"value":        items,
		"@odata.count": total,
	})
}

func TestFetchPagePopulatesState(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, entities("1", "2"), 17)
	}))
	defer srv.Close()

	o := NewOrchestrator(testConfig(NoopNotifier{}), newTestTransport(t, srv.URL))
	qs := odata.QueryState{Pagination: odata.Pagination{PageIndex: 0, PageSize: 10}}
	if err := o.FetchPage(context.Background(), qs); err != nil {
		t.Fatalf("FetchPage failed: %v", err)
	}

	state := o.State()
	if len(state.Items) != 2 {
		t.Errorf("Items = %d, want 2", len(state.Items))
	}
	if state.TotalCount != 17 {
		t.Errorf("TotalCount = %d, want 17", state.TotalCount)
	}
	if state.IsLoading {
		t.Error("IsLoading still set after fetch settled")
	}
}

func TestFetchPageSuppressesIdenticalFetch(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		writeEnvelope(w, entities("1"), 1)
	}))
	defer srv.Close()

	o := NewOrchestrator(testConfig(NoopNotifier{}), newTestTransport(t, srv.URL))
	qs := odata.QueryState{Pagination: odata.Pagination{PageSize: 10}}

	if err := o.FetchPage(context.Background(), qs); err != nil {
		t.Fatalf("FetchPage failed: %v", err)
	}
	// Identical parameters straight after: suppressed, no error.
	if err := o.FetchPage(context.Background(), qs); err != nil {
		t.Fatalf("suppressed FetchPage returned error: %v", err)
	}
	if n := atomic.LoadInt32(&hits); n != 1 {
		t.Errorf("server hits = %d, want 1", n)
	}

	// After the guard clears, the same fetch is legitimate again.
	time.Sleep(100 * time.Millisecond)
	if err := o.FetchPage(context.Background(), qs); err != nil {
		t.Fatalf("FetchPage failed: %v", err)
	}
	if n := atomic.LoadInt32(&hits); n != 2 {
		t.Errorf("server hits = %d, want 2", n)
	}
}

func TestFetchPageWithDifferentParamsNotSuppressed(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		writeEnvelope(w, entities("1"), 1)
	}))
	defer srv.Close()

	o := NewOrchestrator(testConfig(NoopNotifier{}), newTestTransport(t, srv.URL))

	o.FetchPage(context.Background(), odata.QueryState{Pagination: odata.Pagination{PageIndex: 0, PageSize: 10}})
	o.FetchPage(context.Background(), odata.QueryState{Pagination: odata.Pagination{PageIndex: 1, PageSize: 10}})
	if n := atomic.LoadInt32(&hits); n != 2 {
		t.Errorf("server hits = %d, want 2", n)
	}
}

func TestSearchDebouncesToOneFetch(t *testing.T) {
	var mu sync.Mutex
	var queries []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		queries = append(queries, r.URL.RawQuery)
		mu.Unlock()
		writeEnvelope(w, entities("1"), 1)
	}))
	defer srv.Close()

	o := NewOrchestrator(testConfig(NoopNotifier{}), newTestTransport(t, srv.URL))

	o.SetSearchTerm("a")
	time.Sleep(10 * time.Millisecond)
	o.SetSearchTerm("ac")
	time.Sleep(10 * time.Millisecond)
	o.SetSearchTerm("acme")

	time.Sleep(200 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(queries) != 1 {
		t.Fatalf("server saw %d fetches, want 1: %v", len(queries), queries)
	}
	if !strings.Contains(queries[0], "acme") {
		t.Errorf("fetch query %q does not carry the final term", queries[0])
	}
	if o.Container().SearchTerm() != "acme" {
		t.Errorf("SearchTerm = %q, want acme", o.Container().SearchTerm())
	}
}

func TestFetchPageCancelsPendingDebounce(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		writeEnvelope(w, entities("1"), 1)
	}))
	defer srv.Close()

	o := NewOrchestrator(testConfig(NoopNotifier{}), newTestTransport(t, srv.URL))

	o.SetSearchTerm("acme")
	// An explicit page fetch before the window fires supersedes it.
	qs := odata.QueryState{Pagination: odata.Pagination{PageSize: 10}}
	if err := o.FetchPage(context.Background(), qs); err != nil {
		t.Fatalf("FetchPage failed: %v", err)
	}

	time.Sleep(150 * time.Millisecond)
	if n := atomic.LoadInt32(&hits); n != 1 {
		t.Errorf("server hits = %d, want 1 (debounced fetch must be canceled)", n)
	}
}

func TestSlowEarlyResponseNeverOverwritesLaterOne(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.RawQuery, "skip=0") {
			time.Sleep(150 * time.Millisecond)
			writeEnvelope(w, entities("old-1", "old-2"), 2)
			return
		}
		writeEnvelope(w, entities("new-1"), 1)
	}))
	defer srv.Close()

	o := NewOrchestrator(testConfig(NoopNotifier{}), newTestTransport(t, srv.URL))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		o.FetchPage(context.Background(), odata.QueryState{Pagination: odata.Pagination{PageIndex: 0, PageSize: 10}})
	}()
	time.Sleep(30 * time.Millisecond)
	if err := o.FetchPage(context.Background(), odata.QueryState{Pagination: odata.Pagination{PageIndex: 1, PageSize: 10}}); err != nil {
		t.Fatalf("FetchPage failed: %v", err)
	}
	wg.Wait()

	state := o.State()
	if len(state.Items) != 1 || state.Items[0].ID != "new-1" {
		t.Errorf("final items = %v, want the later fetch's page", state.Items)
	}
}

func TestAddConfirmsWithServerID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			var in testEntity
			json.NewDecoder(r.Body).Decode(&in)
			in.ID = "srv-42"
			json.NewEncoder(w).Encode(in)
			return
		}
		writeEnvelope(w, entities("1"), 1)
	}))
	defer srv.Close()

	notifier := &recordingNotifier{}
	o := NewOrchestrator(testConfig(notifier), newTestTransport(t, srv.URL))
	o.FetchPage(context.Background(), odata.QueryState{Pagination: odata.Pagination{PageSize: 10}})

	err := o.Add(context.Background(), testEntity{ID: "tmp-1", Name: "Acme"})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	state := o.State()
	if state.Items[0].ID != "srv-42" {
		t.Errorf("front item id = %q, want the server-assigned srv-42", state.Items[0].ID)
	}
	if state.TotalCount != 2 {
		t.Errorf("TotalCount = %d, want 2", state.TotalCount)
	}
	if s, f := notifier.counts(); s != 1 || f != 0 {
		t.Errorf("notifications = (%d success, %d failure), want (1, 0)", s, f)
	}
}

func TestAddRollsBackOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusUnprocessableEntity)
			w.Write([]byte(`{"errors":{"name":["Name already taken"]}}`))
			return
		}
		writeEnvelope(w, entities("1"), 1)
	}))
	defer srv.Close()

	notifier := &recordingNotifier{}
	o := NewOrchestrator(testConfig(notifier), newTestTransport(t, srv.URL))
	o.FetchPage(context.Background(), odata.QueryState{Pagination: odata.Pagination{PageSize: 10}})

	err := o.Add(context.Background(), testEntity{ID: "tmp-1", Name: "Acme"})
	if err == nil {
		t.Fatal("expected Add to fail")
	}

	state := o.State()
	if len(state.Items) != 1 || state.Items[0].ID != "1" {
		t.Errorf("rollback left items = %v, want the original page", state.Items)
	}
	if state.TotalCount != 1 {
		t.Errorf("TotalCount = %d, want 1 after rollback", state.TotalCount)
	}
	if state.Error != "Name already taken" {
		t.Errorf("Error = %q, want the field message", state.Error)
	}
	if s, f := notifier.counts(); s != 0 || f != 1 {
		t.Errorf("notifications = (%d success, %d failure), want (0, 1)", s, f)
	}
}

func TestUpdateRollsBackToOriginal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			w.WriteHeader(http.StatusConflict)
			return
		}
		writeEnvelope(w, []testEntity{{ID: "1", Name: "X"}}, 1)
	}))
	defer srv.Close()

	notifier := &recordingNotifier{}
	o := NewOrchestrator(testConfig(notifier), newTestTransport(t, srv.URL))
	o.FetchPage(context.Background(), odata.QueryState{Pagination: odata.Pagination{PageSize: 10}})

	err := o.Update(context.Background(), "1", func(e testEntity) testEntity {
		e.Name = "Y"
		return e
	})
	if err == nil {
		t.Fatal("expected Update to fail")
	}

	state := o.State()
	if state.Items[0].Name != "X" {
		t.Errorf("rollback left name = %q, want the original X", state.Items[0].Name)
	}
	if state.Error == "" {
		t.Error("expected failure message in state")
	}
	if s, f := notifier.counts(); s != 0 || f != 1 {
		t.Errorf("notifications = (%d success, %d failure), want (0, 1)", s, f)
	}
}

func TestRemoveRestoresOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		writeEnvelope(w, entities("1", "2"), 2)
	}))
	defer srv.Close()

	o := NewOrchestrator(testConfig(NoopNotifier{}), newTestTransport(t, srv.URL))
	o.FetchPage(context.Background(), odata.QueryState{Pagination: odata.Pagination{PageSize: 10}})

	if err := o.Remove(context.Background(), "2"); err == nil {
		t.Fatal("expected Remove to fail")
	}

	state := o.State()
	if len(state.Items) != 2 {
		t.Errorf("Items = %d, want 2 after restore", len(state.Items))
	}
	if state.TotalCount != 2 {
		t.Errorf("TotalCount = %d, want 2 after restore", state.TotalCount)
	}
	if _, ok := o.Container().Find("2"); !ok {
		t.Error("removed item not restored")
	}
}

func TestRemoveManyRestoresAllOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/bulk-delete") {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		writeEnvelope(w, entities("1", "2", "3"), 3)
	}))
	defer srv.Close()

	o := NewOrchestrator(testConfig(NoopNotifier{}), newTestTransport(t, srv.URL))
	o.FetchPage(context.Background(), odata.QueryState{Pagination: odata.Pagination{PageSize: 10}})

	if err := o.RemoveMany(context.Background(), []string{"1", "3"}); err == nil {
		t.Fatal("expected RemoveMany to fail")
	}

	state := o.State()
	if len(state.Items) != 3 {
		t.Errorf("Items = %d, want all 3 restored", len(state.Items))
	}
	if state.TotalCount != 3 {
		t.Errorf("TotalCount = %d, want 3 after restore", state.TotalCount)
	}
}

func TestRemoveManySendsBatchBody(t *testing.T) {
	var gotIDs []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/bulk-delete") {
			var body struct {
				IDs []string `json:"ids"`
			}
			json.NewDecoder(r.Body).Decode(&body)
			gotIDs = body.IDs
			return
		}
		writeEnvelope(w, entities("1", "2", "3", "4"), 10)
	}))
	defer srv.Close()

	o := NewOrchestrator(testConfig(NoopNotifier{}), newTestTransport(t, srv.URL))
	o.FetchPage(context.Background(), odata.QueryState{Pagination: odata.Pagination{PageSize: 10}})

	if err := o.RemoveMany(context.Background(), []string{"2", "4"}); err != nil {
		t.Fatalf("RemoveMany failed: %v", err)
	}
	if len(gotIDs) != 2 || gotIDs[0] != "2" || gotIDs[1] != "4" {
		t.Errorf("bulk body ids = %v, want [2 4]", gotIDs)
	}
	if got := o.State().TotalCount; got != 8 {
		t.Errorf("TotalCount = %d, want 8 (10 - 2 removed)", got)
	}
}

func TestMutationOnUnknownEntitySkipsNetwork(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		writeEnvelope(w, nil, 0)
	}))
	defer srv.Close()

	notifier := &recordingNotifier{}
	o := NewOrchestrator(testConfig(notifier), newTestTransport(t, srv.URL))

	if err := o.Update(context.Background(), "ghost", func(e testEntity) testEntity { return e }); err == nil {
		t.Fatal("expected entity-not-found error")
	} else if !strings.Contains(err.Error(), "entity not found") {
		t.Errorf("err = %v, want entity not found", err)
	}
	if err := o.Remove(context.Background(), "ghost"); err == nil {
		t.Fatal("expected entity-not-found error")
	}

	if n := atomic.LoadInt32(&hits); n != 0 {
		t.Errorf("server hits = %d, want 0", n)
	}
	if s, f := notifier.counts(); s != 0 || f != 2 {
		t.Errorf("notifications = (%d success, %d failure), want (0, 2)", s, f)
	}
}

func TestFetchAllMergeHeuristics(t *testing.T) {
	var mu sync.Mutex
	var serve []testEntity
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		items := serve
		mu.Unlock()
		writeEnvelope(w, items, len(items))
	}))
	defer srv.Close()

	cfg := testConfig(NoopNotifier{})
	cfg.AllCacheReplaceThreshold = 2
	o := NewOrchestrator(cfg, newTestTransport(t, srv.URL))

	setServe := func(items []testEntity) {
		mu.Lock()
		serve = items
		mu.Unlock()
	}

	// Empty cache: take the response wholesale.
	setServe(entities("1", "2", "3"))
	if err := o.FetchAll(context.Background()); err != nil {
		t.Fatalf("FetchAll failed: %v", err)
	}
	if got := len(o.State().AllCache); got != 3 {
		t.Fatalf("AllCache = %d, want 3", got)
	}

	// Small growth: existing entries stay in place, new ones append.
	setServe(entities("2", "3", "1", "4"))
	if err := o.FetchAll(context.Background()); err != nil {
		t.Fatalf("FetchAll failed: %v", err)
	}
	cache := o.State().AllCache
	if len(cache) != 4 {
		t.Fatalf("AllCache = %d, want 4", len(cache))
	}
	if cache[0].ID != "1" || cache[3].ID != "4" {
		t.Errorf("merge reordered the cache: %v", cache)
	}

	// Shrink: replace wholesale.
	setServe(entities("1", "2"))
	if err := o.FetchAll(context.Background()); err != nil {
		t.Fatalf("FetchAll failed: %v", err)
	}
	if got := len(o.State().AllCache); got != 2 {
		t.Errorf("AllCache = %d after shrink, want 2", got)
	}

	// Growth past the threshold: replace wholesale in server order.
	setServe(entities("9", "8", "1", "2", "7", "6"))
	if err := o.FetchAll(context.Background()); err != nil {
		t.Fatalf("FetchAll failed: %v", err)
	}
	cache = o.State().AllCache
	if len(cache) != 6 || cache[0].ID != "9" {
		t.Errorf("large growth must replace wholesale, got %v", cache)
	}
}
