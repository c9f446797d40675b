// Package resource provides the generic per-resource state container
// and fetch orchestrator shared by every admin console screen. One
// Container instance owns the state for one resource kind (clients,
// roles, permissions, ...); the Orchestrator bound to it adds the
// timing disciplines: dedup guard, debounced search, sequence guard.
package resource

// Entity is implemented by every resource item the container manages.
type Entity interface {
	GetID() string
}

// State is the observable state of one resource kind. UI collaborators
// read it through Container.Snapshot and must treat it as immutable.
type State[T Entity] struct {
	// Items is the current page, verbatim from the last successful fetch.
	Items []T

	// Selected is the currently selected item, if any.
	Selected *T

	// AllCache is the unbounded all-items cache maintained by FetchAll.
	AllCache []T

	// IsLoading is true while a page fetch is in flight.
	IsLoading bool

	// IsActionLoading is true while a mutating action is in flight.
	IsActionLoading bool

	// Error is the last failure message, "" when healthy.
	Error string

	// TotalCount is the server-reported total for the active filter.
	TotalCount int

	// HasMore reports whether the server advertised another page.
	HasMore bool

	// SearchTerm is the active free-text search term.
	SearchTerm string
}

// actionType enumerates the reducer actions.
type actionType int

const (
	actionFetchInit actionType = iota
	actionFetchSuccess
	actionFetchFailure
	actionFetchAllSuccess
	actionAddSuccess
	actionRemoveSuccess
	actionRemoveManySuccess
	actionUpdateSuccess
	actionReplaceItem
	actionSetActionLoading
	actionSetError
	actionSetSearchTerm
	actionSelect
)

// action carries one reducer dispatch. Only the fields relevant to its
// type are set.
type action[T Entity] struct {
	typ        actionType
	items      []T
	totalCount int
	hasMore    bool
	message    string
	item       *T
	replaceID  string
	ids        []string
	loading    bool
	searchTerm string
}
