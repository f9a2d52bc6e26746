package dashboard

import (
	"context"
	"fmt"
	"reflect"
	"testing"

	"qqqdash/internal/domain"
	"qqqdash/internal/store"
	"qqqdash/internal/util"
	"qqqdash/internal/watchlist"
)

func rec(sym string, chg, mcap float64) domain.StockRecord {
	return domain.StockRecord{Symbol: sym, ChangePercent: chg, MarketCap: mcap, Price: mcap / 10, Status: domain.StatusActive}
}

func symbols(rows []domain.StockRecord) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Symbol
	}
	return out
}

// makeRecords builds n active records S00..S(n-1) with distinct values.
func makeRecords(n int) []domain.StockRecord {
	out := make([]domain.StockRecord, n)
	for i := range out {
		out[i] = rec(fmt.Sprintf("S%02d", i), float64(i)-float64(n)/2, float64(1000+i))
	}
	return out
}

func TestComputeVisibleRowsPagination(t *testing.T) {
	records := makeRecords(45)
	state := domain.DefaultViewState()

	wantLens := map[int]int{1: 20, 2: 20, 3: 5, 4: 0}
	for page, want := range wantLens {
		state.Page = page
		rows, total := ComputeVisibleRows(records, nil, state)
		if total != 45 {
			t.Errorf("page %d: total = %d, want 45", page, total)
		}
		if len(rows) != want {
			t.Errorf("page %d: %d rows, want %d", page, len(rows), want)
		}
	}
}

func TestComputeVisibleRowsIdempotent(t *testing.T) {
	records := makeRecords(30)
	wl := domain.NewSymbolSet("S01", "S05")
	state := domain.ViewState{SearchTerm: "s", ViewMode: domain.ViewAll, SortKey: domain.SortChangePercent, SortOrder: domain.Asc, Page: 2}

	rows1, total1 := ComputeVisibleRows(records, wl, state)
	rows2, total2 := ComputeVisibleRows(records, wl, state)
	if total1 != total2 || !reflect.DeepEqual(rows1, rows2) {
		t.Error("ComputeVisibleRows is not idempotent")
	}
	// Input order is untouched.
	if records[0].Symbol != "S00" || records[29].Symbol != "S29" {
		t.Error("ComputeVisibleRows reordered its input")
	}
}

func TestSortDescThenAscReversed(t *testing.T) {
	records := makeRecords(15)
	state := domain.ViewState{ViewMode: domain.ViewAll, SortKey: domain.SortChangePercent, SortOrder: domain.Desc, Page: 1}

	desc, _ := ComputeVisibleRows(records, nil, state)
	state.SortOrder = domain.Asc
	asc, _ := ComputeVisibleRows(records, nil, state)

	if len(desc) != len(asc) {
		t.Fatalf("len desc %d != len asc %d", len(desc), len(asc))
	}
	for i := range desc {
		if desc[i].Symbol != asc[len(asc)-1-i].Symbol {
			t.Fatalf("desc[%d] = %s, asc[%d] = %s; want reversed", i, desc[i].Symbol, len(asc)-1-i, asc[len(asc)-1-i].Symbol)
		}
	}
}

func TestSortTiesKeepInputOrder(t *testing.T) {
	records := []domain.StockRecord{rec("B", 1, 10), rec("A", 1, 10), rec("C", 2, 10)}
	for _, order := range []domain.SortOrder{domain.Asc, domain.Desc} {
		state := domain.ViewState{ViewMode: domain.ViewAll, SortKey: domain.SortMarketCap, SortOrder: order, Page: 1}
		rows, _ := ComputeVisibleRows(records, nil, state)
		if got := symbols(rows); !reflect.DeepEqual(got, []string{"B", "A", "C"}) {
			t.Errorf("%s: order = %v, want input order for equal keys", order, got)
		}
	}
}

func TestSortLexicalAndNumeric(t *testing.T) {
	records := []domain.StockRecord{rec("MSFT", 1, 300), rec("AAPL", -2, 250), rec("NVDA", 3, 280)}
	records[0].LatestDay = "2025-06-03"
	records[1].LatestDay = "2025-06-01"
	records[2].LatestDay = "2025-06-02"

	tests := []struct {
		key   domain.SortKey
		order domain.SortOrder
		want  []string
	}{
		{domain.SortSymbol, domain.Asc, []string{"AAPL", "MSFT", "NVDA"}},
		{domain.SortSymbol, domain.Desc, []string{"NVDA", "MSFT", "AAPL"}},
		{domain.SortLatestDay, domain.Asc, []string{"AAPL", "NVDA", "MSFT"}},
		{domain.SortChangePercent, domain.Desc, []string{"NVDA", "MSFT", "AAPL"}},
		{domain.SortMarketCap, domain.Asc, []string{"AAPL", "NVDA", "MSFT"}},
		{domain.SortPrice, domain.Desc, []string{"MSFT", "NVDA", "AAPL"}},
	}
	for _, tt := range tests {
		state := domain.ViewState{ViewMode: domain.ViewAll, SortKey: tt.key, SortOrder: tt.order, Page: 1}
		rows, _ := ComputeVisibleRows(records, nil, state)
		if got := symbols(rows); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("%s %s = %v, want %v", tt.key, tt.order, got, tt.want)
		}
	}
}

func TestWatchlistViewScenario(t *testing.T) {
	records := []domain.StockRecord{rec("AAA", 1, 10), rec("BBB", 2, 20)}
	state := domain.DefaultViewState().WithViewMode(domain.ViewWatchlist)

	rows, total := ComputeVisibleRows(records, domain.NewSymbolSet("AAA"), state)
	if total != 1 || !reflect.DeepEqual(symbols(rows), []string{"AAA"}) {
		t.Errorf("watchlist view = %v (total %d), want [AAA]", symbols(rows), total)
	}
}

func TestWatchlistViewMixedCaseSymbol(t *testing.T) {
	ctx := context.Background()
	records := []domain.StockRecord{rec("brk.b", 1, 10), rec(" Msft ", 2, 20), rec("AAPL", 3, 30)}

	wl := watchlist.Open(ctx, store.NewMemoryKV(), util.Discard())
	for _, sym := range []string{"brk.b", "msft"} {
		if _, err := wl.Toggle(ctx, sym); err != nil {
			t.Fatalf("Toggle(%q): %v", sym, err)
		}
	}

	state := domain.DefaultViewState().WithViewMode(domain.ViewWatchlist).WithSort(domain.SortSymbol).WithOrder(domain.Asc)
	rows, total := ComputeVisibleRows(records, wl.Set(), state)
	if want := []string{" Msft ", "brk.b"}; total != 2 || !reflect.DeepEqual(symbols(rows), want) {
		t.Errorf("watchlist view = %v (total %d), want %v", symbols(rows), total, want)
	}
}

func TestFilterActiveAndSearch(t *testing.T) {
	records := []domain.StockRecord{rec("MSFT", 1, 10), rec("MSTR", 1, 5), rec("AAPL", 1, 20)}
	records = append(records, domain.StockRecord{Symbol: "MSOLD", Status: "Delisted"})

	state := domain.DefaultViewState().WithSearch("ms")
	rows, total := ComputeVisibleRows(records, nil, state)
	if total != 2 || !reflect.DeepEqual(symbols(rows), []string{"MSFT", "MSTR"}) {
		t.Errorf("search ms = %v (total %d), want [MSFT MSTR]", symbols(rows), total)
	}

	state = domain.DefaultViewState().WithSearch("zzz")
	rows, total = ComputeVisibleRows(records, nil, state)
	if total != 0 || len(rows) != 0 {
		t.Errorf("search zzz = %v, want none", rows)
	}
}

func TestResolveClampsPage(t *testing.T) {
	records := makeRecords(45)
	state := domain.DefaultViewState().WithPage(9)

	p := Resolve(records, nil, state)
	if p.Page != 3 || p.State.Page != 3 || len(p.Rows) != 5 || p.TotalPages != 3 {
		t.Errorf("Resolve page 9 of 45 = page %d (%d rows, %d pages), want page 3 (5 rows, 3 pages)", p.Page, len(p.Rows), p.TotalPages)
	}

	// Search shrinks the set below the current page.
	state = domain.ViewState{SearchTerm: "S0", ViewMode: domain.ViewAll, SortKey: domain.SortSymbol, SortOrder: domain.Asc, Page: 2}
	p = Resolve(records, nil, state)
	if p.Page != 1 || p.Total != 10 || len(p.Rows) != 10 {
		t.Errorf("Resolve after shrink = page %d total %d rows %d, want 1/10/10", p.Page, p.Total, len(p.Rows))
	}

	p = Resolve(nil, nil, state)
	if p.Page != 1 || p.TotalPages != 0 || len(p.Rows) != 0 {
		t.Errorf("Resolve(empty) = %+v, want page 1, no pages", p)
	}
}

func TestBuildBoard(t *testing.T) {
	snap := domain.Snapshot{Records: makeRecords(12)}
	snap.Records = append(snap.Records, domain.StockRecord{Symbol: "GONE", MarketCap: 1e9, Status: "Delisted"})

	b := BuildBoard(snap, nil, domain.DefaultViewState().WithSearch("S01"))
	if b.Page.Total != 1 {
		t.Errorf("Page.Total = %d, want 1", b.Page.Total)
	}
	if b.Metrics == nil || b.Metrics.UpCount+b.Metrics.DownCount != 11 {
		t.Errorf("Metrics = %+v, want computed over all 12 active", b.Metrics)
	}
	if len(b.Chart) != ChartTopN+1 {
		t.Errorf("len(Chart) = %d, want %d", len(b.Chart), ChartTopN+1)
	}

	empty := BuildBoard(domain.Snapshot{}, nil, domain.DefaultViewState())
	if empty.Metrics != nil || empty.Chart != nil {
		t.Errorf("empty board = %+v, want no metrics and no chart", empty)
	}
}
