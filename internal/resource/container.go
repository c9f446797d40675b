package resource

import "sync"

// Container is the reducer-style state machine for one resource kind.
// Dispatches are serialized under a single lock, so every reducer case
// sees a consistent state and applies atomically; the reducer itself
// never performs I/O.
type Container[T Entity] struct {
	mu    sync.Mutex
	name  string
	state State[T]
}

// NewContainer creates an empty container for the named resource kind.
func NewContainer[T Entity](name string) *Container[T] {
	return &Container[T]{name: name}
}

// Name returns the resource kind this container owns.
func (c *Container[T]) Name() string { return c.name }

// Snapshot returns a copy of the current state. Slices are copied so
// the caller can never observe a concurrent reducer mutation.
func (c *Container[T]) Snapshot() State[T] {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := c.state
	snap.Items = append([]T(nil), c.state.Items...)
	snap.AllCache = append([]T(nil), c.state.AllCache...)
	if c.state.Selected != nil {
		selected := *c.state.Selected
		snap.Selected = &selected
	}
	return snap
}

// SearchTerm returns the active search term.
func (c *Container[T]) SearchTerm() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.SearchTerm
}

// Find returns the item with the given id from the page or the current
// selection, in that order. The bool reports whether it was found.
func (c *Container[T]) Find(id string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, item := range c.state.Items {
		if item.GetID() == id {
			return item, true
		}
	}
	if c.state.Selected != nil && (*c.state.Selected).GetID() == id {
		return *c.state.Selected, true
	}
	var zero T
	return zero, false
}

// dispatch applies one action. This is the single reducer; all state
// transitions in the package funnel through it.
func (c *Container[T]) dispatch(a action[T]) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch a.typ {
	case actionFetchInit:
		c.state.IsLoading = true
		c.state.Error = ""

	case actionFetchSuccess:
		c.state.Items = a.items
		c.state.TotalCount = a.totalCount
		c.state.HasMore = a.hasMore
		c.state.IsLoading = false

	case actionFetchFailure:
		c.state.IsLoading = false
		c.state.Error = a.message

	case actionFetchAllSuccess:
		c.state.AllCache = a.items

	case actionAddSuccess:
		c.state.Items = append([]T{*a.item}, c.state.Items...)
		c.state.TotalCount++

	case actionRemoveSuccess:
		c.removeLocked([]string{a.ids[0]})

	case actionRemoveManySuccess:
		c.removeLocked(a.ids)

	case actionUpdateSuccess:
		for i, item := range c.state.Items {
			if item.GetID() == (*a.item).GetID() {
				c.state.Items[i] = *a.item
				break
			}
		}
		if c.state.Selected != nil && (*c.state.Selected).GetID() == (*a.item).GetID() {
			updated := *a.item
			c.state.Selected = &updated
		}

	case actionReplaceItem:
		for i, item := range c.state.Items {
			if item.GetID() == a.replaceID {
				c.state.Items[i] = *a.item
				break
			}
		}
		if c.state.Selected != nil && (*c.state.Selected).GetID() == a.replaceID {
			replaced := *a.item
			c.state.Selected = &replaced
		}

	case actionSetActionLoading:
		c.state.IsActionLoading = a.loading

	case actionSetError:
		c.state.Error = a.message

	case actionSetSearchTerm:
		c.state.SearchTerm = a.searchTerm

	case actionSelect:
		c.state.Selected = a.item
	}
}

// removeLocked filters out the given ids, decrements the total by the
// number of ids removed, and clears the selection if it was removed.
// Caller holds the lock.
func (c *Container[T]) removeLocked(ids []string) {
	removed := make(map[string]bool, len(ids))
	for _, id := range ids {
		removed[id] = true
	}

	kept := c.state.Items[:0:0]
	for _, item := range c.state.Items {
		if !removed[item.GetID()] {
			kept = append(kept, item)
		}
	}
	c.state.Items = kept

	c.state.TotalCount -= len(ids)
	if c.state.TotalCount < 0 {
		c.state.TotalCount = 0
	}

	if c.state.Selected != nil && removed[(*c.state.Selected).GetID()] {
		c.state.Selected = nil
	}
	c.state.IsActionLoading = false
}

// FetchInit marks a page fetch as in flight and clears the error.
func (c *Container[T]) FetchInit() {
	c.dispatch(action[T]{typ: actionFetchInit})
}

// FetchSuccess replaces the page verbatim with the server's response.
func (c *Container[T]) FetchSuccess(items []T, totalCount int, hasMore bool) {
	c.dispatch(action[T]{typ: actionFetchSuccess, items: items, totalCount: totalCount, hasMore: hasMore})
}

// FetchFailure records a failed page fetch.
func (c *Container[T]) FetchFailure(message string) {
	c.dispatch(action[T]{typ: actionFetchFailure, message: message})
}

// FetchAllSuccess replaces the all-items cache wholesale. Incremental
// merge is the orchestrator's job (see Orchestrator.FetchAll).
func (c *Container[T]) FetchAllSuccess(fullList []T) {
	c.dispatch(action[T]{typ: actionFetchAllSuccess, items: fullList})
}

// AddSuccess prepends an item and bumps the total. Used both for the
// optimistic application and the server-confirmed replay.
func (c *Container[T]) AddSuccess(item T) {
	c.dispatch(action[T]{typ: actionAddSuccess, item: &item})
}

// RemoveSuccess removes one item by id.
func (c *Container[T]) RemoveSuccess(id string) {
	c.dispatch(action[T]{typ: actionRemoveSuccess, ids: []string{id}})
}

// RemoveManySuccess removes a batch of items by id.
func (c *Container[T]) RemoveManySuccess(ids []string) {
	c.dispatch(action[T]{typ: actionRemoveManySuccess, ids: ids})
}

// UpdateSuccess replaces the matching entry in the page and in the
// selection. Used for optimistic application, server confirmation, and
// rollback (the rollback dispatch carries the pre-mutation snapshot).
func (c *Container[T]) UpdateSuccess(item T) {
	c.dispatch(action[T]{typ: actionUpdateSuccess, item: &item})
}

// ReplaceItem swaps the entry with oldID for the server's
// authoritative item, keeping its position. Used when the server
// assigns the definitive id after an optimistic add.
func (c *Container[T]) ReplaceItem(oldID string, item T) {
	c.dispatch(action[T]{typ: actionReplaceItem, replaceID: oldID, item: &item})
}

// SetActionLoading toggles the mutating-action loading flag.
func (c *Container[T]) SetActionLoading(loading bool) {
	c.dispatch(action[T]{typ: actionSetActionLoading, loading: loading})
}

// SetError records an action failure message.
func (c *Container[T]) SetError(message string) {
	c.dispatch(action[T]{typ: actionSetError, message: message})
}

// SetSearchTerm stores the active search term.
func (c *Container[T]) SetSearchTerm(term string) {
	c.dispatch(action[T]{typ: actionSetSearchTerm, searchTerm: term})
}

// Select sets the current selection; nil clears it.
func (c *Container[T]) Select(item *T) {
	c.dispatch(action[T]{typ: actionSelect, item: item})
}
