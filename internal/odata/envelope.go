package odata

// Envelope is the list-response body shape returned by the admin API.
type Envelope[T any] struct {
	Value    []T    `json:"value"`
	Count    *int   `json:"@odata.count,omitempty"`
	NextLink string `json:"@odata.nextLink,omitempty"`
}

// TotalCount returns the inline count, falling back to the page length
// when the server omitted it.
func (e Envelope[T]) TotalCount() int {
	if e.Count != nil {
		return *e.Count
	}
	return len(e.Value)
}

// HasMore reports whether the server advertised a next page.
func (e Envelope[T]) HasMore() bool {
	return e.NextLink != ""
}
