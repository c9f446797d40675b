package odata

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// FieldKind classifies how a column filter value is matched.
type FieldKind int

const (
	// FieldText matches with contains(field,'value')
	FieldText FieldKind = iota
	// FieldExact matches with field eq 'value'
	FieldExact
	// FieldNumeric matches with field eq value (no quotes, numeric coercion)
	FieldNumeric
)

// Encoder builds query strings for one resource kind. It is a pure
// value type: identical inputs always produce byte-identical output.
type Encoder struct {
	// IDField is the identifier field used for the exact-match arm of
	// free-text search (default "id").
	IDField string

	// SearchFields are the fields matched with contains() when a
	// global search term is present.
	SearchFields []string

	// FieldKinds overrides matching behavior per field. Fields absent
	// from the map are treated as FieldText.
	FieldKinds map[string]FieldKind

	// DefaultOrder is applied when the caller supplies no sorting,
	// e.g. "createdAt desc". Empty means no $orderby.
	DefaultOrder string
}

// Encode translates state and search term into an OData query string
// (without the leading "?"). An inline total count is always requested.
// An empty searchTerm falls back to qs.GlobalFilter, so callers that
// carry the term inside the table state need not pass it twice.
//
// When any filter term is produced, $skip is forced to 0 so a new
// filtering criterion always lands on the first page.
func (e Encoder) Encode(qs QueryState, searchTerm string) string {
	if searchTerm == "" {
		searchTerm = qs.GlobalFilter
	}
	terms := e.filterTerms(qs, searchTerm)

	var parts []string
	if len(terms) > 0 {
		parts = append(parts, "$filter="+url.QueryEscape(strings.Join(terms, " and ")))
	}
	if order := e.orderBy(qs); order != "" {
		parts = append(parts, "$orderby="+url.QueryEscape(order))
	}

	skip := 0
	if len(terms) == 0 {
		skip = qs.Pagination.PageIndex * qs.Pagination.PageSize
	}
	parts = append(parts,
		"$skip="+strconv.Itoa(skip),
		"$top="+strconv.Itoa(qs.Pagination.PageSize),
		"$count=true",
	)

	return strings.Join(parts, "&")
}

// filterTerms builds the individual AND-joined filter terms.
func (e Encoder) filterTerms(qs QueryState, searchTerm string) []string {
	var terms []string

	if searchTerm != "" {
		terms = append(terms, e.searchTerm(searchTerm))
	}

	for _, cf := range qs.ColumnFilters {
		if len(cf.Values) > 0 {
			terms = append(terms, e.orEqualsGroup(cf.FieldID, cf.Values))
			continue
		}
		if cf.Value == "" {
			continue
		}
		terms = append(terms, e.scalarTerm(cf.FieldID, cf.Value))
	}

	return terms
}

// searchTerm ORs an exact match on the identifier field with contains
// tests on each configured search field, wrapped as one parenthesized term.
func (e Encoder) searchTerm(term string) string {
	idField := e.IDField
	if idField == "" {
		idField = "id"
	}

	clauses := []string{fmt.Sprintf("%s eq %s", idField, quote(term))}
	for _, f := range e.SearchFields {
		clauses = append(clauses, fmt.Sprintf("contains(%s,%s)", f, quote(term)))
	}
	return "(" + strings.Join(clauses, " or ") + ")"
}

// orEqualsGroup encodes a multi-value filter as an OR of equality tests.
func (e Encoder) orEqualsGroup(field string, values []string) string {
	kind := e.kindOf(field)
	clauses := make([]string, 0, len(values))
	for _, v := range values {
		clauses = append(clauses, fmt.Sprintf("%s eq %s", field, e.literal(kind, v)))
	}
	return "(" + strings.Join(clauses, " or ") + ")"
}

func (e Encoder) scalarTerm(field, value string) string {
	switch kind := e.kindOf(field); kind {
	case FieldExact, FieldNumeric:
		return fmt.Sprintf("%s eq %s", field, e.literal(kind, value))
	default:
		return fmt.Sprintf("contains(%s,%s)", field, quote(value))
	}
}

func (e Encoder) kindOf(field string) FieldKind {
	if kind, ok := e.FieldKinds[field]; ok {
		return kind
	}
	return FieldText
}

// literal renders a filter literal, coercing numeric fields when the
// value parses as an integer. Non-numeric values on numeric fields fall
// back to a quoted string rather than emitting an invalid expression.
func (e Encoder) literal(kind FieldKind, value string) string {
	if kind == FieldNumeric {
		if n, err := strconv.Atoi(value); err == nil {
			return strconv.Itoa(n)
		}
	}
	return quote(value)
}

// orderBy returns the $orderby expression or "" when none applies.
func (e Encoder) orderBy(qs QueryState) string {
	if len(qs.Sorting) > 0 {
		s := qs.Sorting[0]
		dir := "asc"
		if s.Descending {
			dir = "desc"
		}
		return s.FieldID + " " + dir
	}
	return e.DefaultOrder
}

// quote renders an OData string literal, doubling embedded single quotes.
func quote(v string) string {
	return "'" + strings.ReplaceAll(v, "'", "''") + "'"
}
