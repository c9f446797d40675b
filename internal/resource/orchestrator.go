package resource

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.accesshub.tech/internal/api"
	"go.accesshub.tech/internal/common/metrics"
	"go.accesshub.tech/internal/odata"
)

// debouncedFetchTimeout bounds fetches fired from the debounce timer,
// which have no caller context to inherit.
const debouncedFetchTimeout = 30 * time.Second

// ErrEntityNotFound is returned when an optimistic action cannot locate
// its target in local state. No network call is made.
var ErrEntityNotFound = errors.New("entity not found")

// Config describes one resource kind to the orchestrator.
type Config[T Entity] struct {
	// Name is the resource kind, used in endpoint defaults, metrics,
	// and notifications (e.g. "clients").
	Name string

	// ListPath is the collection endpoint (e.g. "/api/admin/clients").
	ListPath string

	// ItemPath builds the endpoint for one item. Defaults to
	// ListPath + "/" + id.
	ItemPath func(id string) string

	// BulkDeletePath receives batched deletions. Defaults to
	// ListPath + "/bulk-delete".
	BulkDeletePath string

	// Encoder translates table state into the wire query string.
	Encoder odata.Encoder

	// DebounceDelay is how long search-term edits quiesce before a
	// refetch fires (default 300ms).
	DebounceDelay time.Duration

	// DedupClearDelay is how long after a fetch settles before an
	// identical fetch is allowed again (default 100ms).
	DedupClearDelay time.Duration

	// AllCacheReplaceThreshold is the cache growth beyond which
	// FetchAll replaces the cache wholesale instead of appending
	// (default 25).
	AllCacheReplaceThreshold int

	// Notifier receives the one success/failure notification per
	// mutating action. Defaults to LogNotifier.
	Notifier Notifier
}

// Timing bundles the orchestrator delays shared by every resource
// kind, typically sourced from configuration once at startup.
type Timing struct {
	DebounceDelay            time.Duration
	DedupClearDelay          time.Duration
	AllCacheReplaceThreshold int
}

// WithTiming returns a copy of the config with the shared delays
// applied. Zero fields keep the config's own value.
func (c Config[T]) WithTiming(t Timing) Config[T] {
	if t.DebounceDelay > 0 {
		c.DebounceDelay = t.DebounceDelay
	}
	if t.DedupClearDelay > 0 {
		c.DedupClearDelay = t.DedupClearDelay
	}
	if t.AllCacheReplaceThreshold > 0 {
		c.AllCacheReplaceThreshold = t.AllCacheReplaceThreshold
	}
	return c
}

// Orchestrator binds one Container to the transport and adds the
// timing disciplines: a dedup guard suppressing back-to-back identical
// fetches, a debounce window on search-term edits, and a monotonic
// sequence guard so a slow early response can never overwrite a faster
// later one.
type Orchestrator[T Entity] struct {
	cfg       Config[T]
	client    *api.Client
	container *Container[T]

	mu            sync.Mutex
	dedupKey      string
	debounceTimer *time.Timer

	// tableState is a side channel deliberately outside the observable
	// State: updating it never triggers a fetch on its own, so table
	// edits and search edits cannot race into two calls for one intent.
	tableState odata.QueryState

	issuedSeq  uint64
	appliedSeq uint64
}

// NewOrchestrator creates the action layer for one resource kind.
func NewOrchestrator[T Entity](cfg Config[T], client *api.Client) *Orchestrator[T] {
	if cfg.ItemPath == nil {
		listPath := cfg.ListPath
		cfg.ItemPath = func(id string) string { return listPath + "/" + id }
	}
	if cfg.BulkDeletePath == "" {
		cfg.BulkDeletePath = cfg.ListPath + "/bulk-delete"
	}
	if cfg.DebounceDelay == 0 {
		cfg.DebounceDelay = 300 * time.Millisecond
	}
	if cfg.DedupClearDelay == 0 {
		cfg.DedupClearDelay = 100 * time.Millisecond
	}
	if cfg.AllCacheReplaceThreshold == 0 {
		cfg.AllCacheReplaceThreshold = 25
	}
	if cfg.Notifier == nil {
		cfg.Notifier = LogNotifier{}
	}

	return &Orchestrator[T]{
		cfg:       cfg,
		client:    client,
		container: NewContainer[T](cfg.Name),
	}
}

// Container exposes the bound state container.
func (o *Orchestrator[T]) Container() *Container[T] { return o.container }

// State returns a snapshot of the observable state.
func (o *Orchestrator[T]) State() State[T] { return o.container.Snapshot() }

// FetchPage fetches the page described by qs immediately, canceling
// any pending debounced search fetch. qs becomes the query state used
// by subsequent debounced fetches.
func (o *Orchestrator[T]) FetchPage(ctx context.Context, qs odata.QueryState) error {
	o.mu.Lock()
	o.stopDebounceLocked()
	o.tableState = qs
	o.mu.Unlock()

	return o.fetch(ctx, qs, o.container.SearchTerm())
}

// SetSearchTerm records the term immediately and schedules a refetch
// after the debounce window. Each keystroke restarts the window, so a
// burst of edits yields exactly one fetch for the final term.
func (o *Orchestrator[T]) SetSearchTerm(term string) {
	o.container.SetSearchTerm(term)

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.debounceTimer != nil {
		o.debounceTimer.Stop()
		metrics.FetchSuppressedTotal.WithLabelValues(o.cfg.Name, "debounce").Inc()
	}
	o.debounceTimer = time.AfterFunc(o.cfg.DebounceDelay, func() {
		o.mu.Lock()
		qs := o.tableState
		o.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), debouncedFetchTimeout)
		defer cancel()
		o.fetch(ctx, qs, term)
	})
}

// ClearSearch resets the search term and refetches immediately.
func (o *Orchestrator[T]) ClearSearch(ctx context.Context) error {
	o.container.SetSearchTerm("")

	o.mu.Lock()
	o.stopDebounceLocked()
	qs := o.tableState
	o.mu.Unlock()

	return o.fetch(ctx, qs, "")
}

// stopDebounceLocked cancels a pending debounced fetch. Caller holds the lock.
func (o *Orchestrator[T]) stopDebounceLocked() {
	if o.debounceTimer != nil {
		o.debounceTimer.Stop()
		o.debounceTimer = nil
	}
}

// fetch performs one page fetch under the dedup and sequence guards.
func (o *Orchestrator[T]) fetch(ctx context.Context, qs odata.QueryState, term string) error {
	query := o.cfg.Encoder.Encode(qs, term)

	o.mu.Lock()
	if query == o.dedupKey {
		o.mu.Unlock()
		metrics.FetchSuppressedTotal.WithLabelValues(o.cfg.Name, "dedup").Inc()
		return nil
	}
	o.dedupKey = query
	o.issuedSeq++
	seq := o.issuedSeq
	o.mu.Unlock()

	o.container.FetchInit()

	start := time.Now()
	var env odata.Envelope[T]
	err := o.client.Get(ctx, o.cfg.ListPath+"?"+query, &env)
	metrics.FetchDuration.WithLabelValues(o.cfg.Name).Observe(time.Since(start).Seconds())

	// Allow a legitimately identical fetch again shortly after this
	// one settles.
	time.AfterFunc(o.cfg.DedupClearDelay, func() {
		o.mu.Lock()
		if o.dedupKey == query {
			o.dedupKey = ""
		}
		o.mu.Unlock()
	})

	o.mu.Lock()
	if seq <= o.appliedSeq {
		// A later-issued fetch already resolved; drop this result so
		// last-issued always wins.
		o.mu.Unlock()
		metrics.FetchSuppressedTotal.WithLabelValues(o.cfg.Name, "stale").Inc()
		return nil
	}
	o.appliedSeq = seq
	o.mu.Unlock()

	if err != nil {
		o.container.FetchFailure(errorMessage(err))
		return err
	}

	o.container.FetchSuccess(env.Value, env.TotalCount(), env.HasMore())
	return nil
}

// FetchAll refreshes the all-items cache. To avoid visible list
// flicker under frequent background refreshes, small additive growth
// appends only the genuinely new items; an empty cache, a shrink, or
// growth past the threshold replaces the cache wholesale.
func (o *Orchestrator[T]) FetchAll(ctx context.Context) error {
	var env odata.Envelope[T]
	if err := o.client.Get(ctx, o.cfg.ListPath+"?$count=true", &env); err != nil {
		o.container.SetError(errorMessage(err))
		return err
	}

	cache := o.container.Snapshot().AllCache
	o.container.FetchAllSuccess(o.mergeAllCache(cache, env.Value))
	return nil
}

func (o *Orchestrator[T]) mergeAllCache(cache, fresh []T) []T {
	if len(cache) == 0 || len(fresh) < len(cache) || len(fresh)-len(cache) > o.cfg.AllCacheReplaceThreshold {
		return fresh
	}

	seen := make(map[string]bool, len(cache))
	for _, item := range cache {
		seen[item.GetID()] = true
	}
	merged := cache
	for _, item := range fresh {
		if !seen[item.GetID()] {
			merged = append(merged, item)
		}
	}
	return merged
}

// Add optimistically prepends item, then creates it on the server.
// The server's authoritative object replaces the optimistic one on
// success; on failure the prepend is rolled back.
func (o *Orchestrator[T]) Add(ctx context.Context, item T) error {
	o.container.AddSuccess(item)
	o.container.SetActionLoading(true)

	var created T
	err := o.client.Post(ctx, o.cfg.ListPath, item, &created)
	o.container.SetActionLoading(false)

	if err != nil {
		o.container.RemoveSuccess(item.GetID())
		return o.actionFailed(ctx, "add", err)
	}

	if created.GetID() != "" && created.GetID() != item.GetID() {
		o.container.ReplaceItem(item.GetID(), created)
	} else if created.GetID() != "" {
		o.container.UpdateSuccess(created)
	}
	return o.actionSucceeded("add", fmt.Sprintf("%s created", o.cfg.Name))
}

// Update applies change to the entity's current value optimistically,
// then confirms with the server. On failure the pre-mutation snapshot
// is dispatched again, rolling the visible state back.
func (o *Orchestrator[T]) Update(ctx context.Context, id string, change func(T) T) error {
	original, ok := o.container.Find(id)
	if !ok {
		return o.entityNotFound("update", id)
	}

	updated := change(original)
	o.container.UpdateSuccess(updated)
	o.container.SetActionLoading(true)

	var confirmed T
	err := o.client.Put(ctx, o.cfg.ItemPath(id), updated, &confirmed)
	o.container.SetActionLoading(false)

	if err != nil {
		o.container.UpdateSuccess(original)
		return o.actionFailed(ctx, "update", err)
	}

	if confirmed.GetID() != "" {
		o.container.UpdateSuccess(confirmed)
	}
	return o.actionSucceeded("update", fmt.Sprintf("%s updated", o.cfg.Name))
}

// Remove optimistically deletes one item; on failure it is restored.
func (o *Orchestrator[T]) Remove(ctx context.Context, id string) error {
	original, ok := o.container.Find(id)
	if !ok {
		return o.entityNotFound("remove", id)
	}

	o.container.RemoveSuccess(id)
	o.container.SetActionLoading(true)

	err := o.client.Delete(ctx, o.cfg.ItemPath(id), nil, nil)
	o.container.SetActionLoading(false)

	if err != nil {
		o.container.AddSuccess(original)
		return o.actionFailed(ctx, "remove", err)
	}
	return o.actionSucceeded("remove", fmt.Sprintf("%s deleted", o.cfg.Name))
}

// bulkDeleteRequest is the batched deletion body.
type bulkDeleteRequest struct {
	IDs []string `json:"ids"`
}

// RemoveMany optimistically deletes a batch of items; on failure every
// captured original is restored.
func (o *Orchestrator[T]) RemoveMany(ctx context.Context, ids []string) error {
	originals := make([]T, 0, len(ids))
	for _, id := range ids {
		original, ok := o.container.Find(id)
		if !ok {
			return o.entityNotFound("remove_many", id)
		}
		originals = append(originals, original)
	}

	o.container.RemoveManySuccess(ids)
	o.container.SetActionLoading(true)

	err := o.client.Post(ctx, o.cfg.BulkDeletePath, bulkDeleteRequest{IDs: ids}, nil)
	o.container.SetActionLoading(false)

	if err != nil {
		for _, original := range originals {
			o.container.AddSuccess(original)
		}
		return o.actionFailed(ctx, "remove_many", err)
	}
	return o.actionSucceeded("remove_many", fmt.Sprintf("%d %s deleted", len(ids), o.cfg.Name))
}

func (o *Orchestrator[T]) actionSucceeded(actionName, message string) error {
	metrics.ResourceActionsTotal.WithLabelValues(o.cfg.Name, actionName, "success").Inc()
	o.cfg.Notifier.Success(o.cfg.Name, message)
	return nil
}

func (o *Orchestrator[T]) actionFailed(_ context.Context, actionName string, err error) error {
	message := errorMessage(err)
	o.container.SetError(message)
	metrics.ResourceActionsTotal.WithLabelValues(o.cfg.Name, actionName, "rolled_back").Inc()
	o.cfg.Notifier.Failure(o.cfg.Name, message)
	return err
}

func (o *Orchestrator[T]) entityNotFound(actionName, id string) error {
	err := fmt.Errorf("%w: %s %q", ErrEntityNotFound, o.cfg.Name, id)
	o.container.SetError(ErrEntityNotFound.Error())
	metrics.ResourceActionsTotal.WithLabelValues(o.cfg.Name, actionName, "failure").Inc()
	o.cfg.Notifier.Failure(o.cfg.Name, ErrEntityNotFound.Error())
	return err
}

// errorMessage extracts the user-facing message from a transport error.
func errorMessage(err error) string {
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}
