// Package odata translates declarative table state into OData-style
// query strings ($filter, $orderby, $skip, $top, $count).
package odata

// Pagination describes the requested page window.
type Pagination struct {
	PageIndex int
	PageSize  int
}

// SortEntry describes a single sort criterion. Only the first entry
// of QueryState.Sorting is honored by the encoder.
type SortEntry struct {
	FieldID    string
	Descending bool
}

// ColumnFilter filters a single column. Values takes precedence over
// Value when non-empty and is encoded as an OR-equals group.
type ColumnFilter struct {
	FieldID string
	Value   string
	Values  []string
}

// QueryState is the abstract table state supplied by the caller.
// The encoder never mutates it; callers pass it by value.
type QueryState struct {
	Pagination    Pagination
	Sorting       []SortEntry
	ColumnFilters []ColumnFilter
	GlobalFilter  string
}

// HasFilters reports whether any column filter would produce a filter term.
func (q QueryState) HasFilters() bool {
	for _, f := range q.ColumnFilters {
		if len(f.Values) > 0 || f.Value != "" {
			return true
		}
	}
	return false
}
