package domain

import "strings"

// PageSize is the number of rows on one table page.
const PageSize = 20

// TotalPages returns the number of pages needed for total rows. Zero rows
// need zero pages.
func TotalPages(total int) int {
	if total <= 0 {
		return 0
	}
	return (total + PageSize - 1) / PageSize
}

// The commands below are what a front end issues in response to user input.
// Each returns the new state and leaves the receiver untouched. Every
// command that changes what is listed resets Page to 1.

// WithSearch sets the search term.
func (s ViewState) WithSearch(term string) ViewState {
	s.SearchTerm = strings.TrimSpace(term)
	s.Page = 1
	return s
}

// WithViewMode switches between all records and the watchlist.
func (s ViewState) WithViewMode(m ViewMode) ViewState {
	if m != ViewWatchlist {
		m = ViewAll
	}
	s.ViewMode = m
	s.Page = 1
	return s
}

// ToggleViewMode flips between ViewAll and ViewWatchlist.
func (s ViewState) ToggleViewMode() ViewState {
	if s.ViewMode == ViewWatchlist {
		return s.WithViewMode(ViewAll)
	}
	return s.WithViewMode(ViewWatchlist)
}

// WithSort behaves like clicking a column header: the current key flips
// direction, any other key becomes the sort key in descending order.
func (s ViewState) WithSort(key SortKey) ViewState {
	if !key.Valid() {
		return s
	}
	if key == s.SortKey {
		s.SortOrder = s.SortOrder.Flip()
	} else {
		s.SortKey = key
		s.SortOrder = Desc
	}
	s.Page = 1
	return s
}

// NextSortKey advances to the next column, wrapping around.
func (s ViewState) NextSortKey() ViewState {
	next := SortKeys[0]
	for i, k := range SortKeys {
		if k == s.SortKey {
			next = SortKeys[(i+1)%len(SortKeys)]
			break
		}
	}
	return s.WithSort(next)
}

// WithOrder sets the direction explicitly.
func (s ViewState) WithOrder(o SortOrder) ViewState {
	if o != Asc {
		o = Desc
	}
	s.SortOrder = o
	s.Page = 1
	return s
}

// WithPage jumps to page p. Values below 1 become 1; the upper bound is
// left to the view, which knows the row count.
func (s ViewState) WithPage(p int) ViewState {
	if p < 1 {
		p = 1
	}
	s.Page = p
	return s
}

// NextPage moves forward one page unless already on the last page for
// total rows.
func (s ViewState) NextPage(total int) ViewState {
	if s.Page < TotalPages(total) {
		s.Page++
	}
	return s
}

// PrevPage moves back one page, stopping at 1.
func (s ViewState) PrevPage() ViewState {
	if s.Page > 1 {
		s.Page--
	}
	return s
}

// Normalize fills unset or unknown fields with defaults so a state decoded
// from a query string is always usable.
func (s ViewState) Normalize() ViewState {
	d := DefaultViewState()
	if s.ViewMode != ViewWatchlist {
		s.ViewMode = ViewAll
	}
	if !s.SortKey.Valid() {
		s.SortKey = d.SortKey
	}
	if s.SortOrder != Asc && s.SortOrder != Desc {
		s.SortOrder = d.SortOrder
	}
	if s.Page < 1 {
		s.Page = 1
	}
	return s
}
