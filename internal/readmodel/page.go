package readmodel

import "fmt"

// Limits are the page sizes a list view accepts
var Limits = []int{10, 20, 50}

const DefaultLimit = 10

// PageState is the pagination cursor owned by a single view
type PageState struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// NewPageState returns page 1 with the default limit
func NewPageState() PageState {
	return PageState{Page: 1, Limit: DefaultLimit}
}

// ValidLimit reports whether l is one of Limits
func ValidLimit(l int) bool {
	for _, v := range Limits {
		if v == l {
			return true
		}
	}
	return false
}

// WithLimit changes the page size and always rewinds to page 1
func (p PageState) WithLimit(limit int) (PageState, error) {
	if !ValidLimit(limit) {
		return p, fmt.Errorf("limit must be one of %v, got %d", Limits, limit)
	}
	return PageState{Page: 1, Limit: limit}, nil
}

// WithPage moves to page n, clamped to [1, pages] when pages > 0
func (p PageState) WithPage(n, pages int) PageState {
	if n < 1 {
		n = 1
	}
	if pages > 0 && n > pages {
		n = pages
	}
	return PageState{Page: n, Limit: p.Limit}
}

// Offset is the zero-based index of the first row of the page
func (p PageState) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Range returns the "Showing A to B of N results" footer, or "" when total is 0
func (p PageState) Range(total int) string {
	if total <= 0 {
		return ""
	}
	from := p.Offset() + 1
	to := p.Page * p.Limit
	if to > total {
		to = total
	}
	return fmt.Sprintf("Showing %d to %d of %d results", from, to, total)
}
