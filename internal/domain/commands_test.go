package domain

import "testing"

func TestTotalPages(t *testing.T) {
	tests := []struct{ total, want int }{
		{0, 0}, {1, 1}, {20, 1}, {21, 2}, {45, 3}, {60, 3},
	}
	for _, tt := range tests {
		if got := TotalPages(tt.total); got != tt.want {
			t.Errorf("TotalPages(%d) = %d, want %d", tt.total, got, tt.want)
		}
	}
}

func TestCommandsResetPage(t *testing.T) {
	s := DefaultViewState().WithPage(3)

	cases := map[string]ViewState{
		"WithSearch":     s.WithSearch("ms"),
		"WithViewMode":   s.WithViewMode(ViewWatchlist),
		"ToggleViewMode": s.ToggleViewMode(),
		"WithSort":       s.WithSort(SortPrice),
		"NextSortKey":    s.NextSortKey(),
		"WithOrder":      s.WithOrder(Asc),
	}
	for name, got := range cases {
		if got.Page != 1 {
			t.Errorf("%s: Page = %d, want 1", name, got.Page)
		}
	}
	if s.Page != 3 {
		t.Errorf("receiver was modified: Page = %d", s.Page)
	}
}

func TestWithSortHeaderSemantics(t *testing.T) {
	s := DefaultViewState() // marketCap desc

	s = s.WithSort(SortMarketCap)
	if s.SortKey != SortMarketCap || s.SortOrder != Asc {
		t.Errorf("same key: %s %s, want marketCap asc", s.SortKey, s.SortOrder)
	}
	s = s.WithSort(SortSymbol)
	if s.SortKey != SortSymbol || s.SortOrder != Desc {
		t.Errorf("new key: %s %s, want symbol desc", s.SortKey, s.SortOrder)
	}
	if got := s.WithSort("bogus"); got != s {
		t.Errorf("unknown key changed state: %+v", got)
	}
}

func TestNextSortKeyWraps(t *testing.T) {
	s := DefaultViewState()
	s.SortKey = SortLatestDay
	if got := s.NextSortKey().SortKey; got != SortSymbol {
		t.Errorf("NextSortKey from latestDay = %s, want symbol", got)
	}
}

func TestPaging(t *testing.T) {
	s := DefaultViewState()
	s = s.NextPage(45).NextPage(45).NextPage(45)
	if s.Page != 3 {
		t.Errorf("Page after three NextPage(45) = %d, want 3", s.Page)
	}
	s = s.PrevPage().PrevPage().PrevPage()
	if s.Page != 1 {
		t.Errorf("Page after PrevPage = %d, want 1", s.Page)
	}
	if got := s.WithPage(-2).Page; got != 1 {
		t.Errorf("WithPage(-2).Page = %d, want 1", got)
	}
	// Paging leaves everything else alone.
	s2 := s.WithSearch("a").WithPage(2)
	if s2.SearchTerm != "a" {
		t.Errorf("WithPage cleared the search term")
	}
}

func TestNormalize(t *testing.T) {
	got := ViewState{ViewMode: "x", SortKey: "y", SortOrder: "z", Page: 0}.Normalize()
	if got != DefaultViewState() {
		t.Errorf("Normalize() = %+v, want defaults", got)
	}
	in := ViewState{SearchTerm: "aa", ViewMode: ViewWatchlist, SortKey: SortPrice, SortOrder: Asc, Page: 4}
	if got := in.Normalize(); got != in {
		t.Errorf("Normalize() changed a valid state: %+v", got)
	}
}
