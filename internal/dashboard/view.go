// Package dashboard derives everything a front end shows from a snapshot:
// the filtered, sorted, paginated table, the market metrics, and the
// market-cap breakdown. All functions are pure.
package dashboard

import (
	"sort"
	"strings"

	"qqqdash/internal/domain"
)

// PageSize is the number of rows on one table page.
const PageSize = domain.PageSize

// ComputeVisibleRows runs the table pipeline over records: Active only,
// watchlist members only in watchlist view, case-insensitive symbol
// search, stable sort, then one page. total is the row count before
// pagination. A page past the end yields no rows; see Resolve for the
// clamping variant.
func ComputeVisibleRows(records []domain.StockRecord, watchlist domain.SymbolSet, state domain.ViewState) (rows []domain.StockRecord, total int) {
	filtered := filterRows(records, watchlist, state)
	sortRows(filtered, state.SortKey, state.SortOrder)

	total = len(filtered)
	page := state.Page
	if page < 1 {
		page = 1
	}
	start := (page - 1) * PageSize
	if start >= total {
		return []domain.StockRecord{}, total
	}
	end := start + PageSize
	if end > total {
		end = total
	}
	return filtered[start:end], total
}

// Page is one resolved table page.
type Page struct {
	Rows       []domain.StockRecord
	Total      int
	Page       int
	TotalPages int
	State      domain.ViewState // the state actually used, after clamping
}

// Resolve normalizes state, clamps its page to the last page (page 1 when
// nothing matches) and computes the rows. The returned Page.State is what
// the caller should keep.
func Resolve(records []domain.StockRecord, watchlist domain.SymbolSet, state domain.ViewState) Page {
	state = state.Normalize()

	rows, total := ComputeVisibleRows(records, watchlist, state)
	pages := domain.TotalPages(total)
	last := pages
	if last < 1 {
		last = 1
	}
	if state.Page > last {
		state.Page = last
		rows, total = ComputeVisibleRows(records, watchlist, state)
	}

	return Page{
		Rows:       rows,
		Total:      total,
		Page:       state.Page,
		TotalPages: pages,
		State:      state,
	}
}

// filterRows returns a new slice; records is never reordered.
func filterRows(records []domain.StockRecord, watchlist domain.SymbolSet, state domain.ViewState) []domain.StockRecord {
	term := strings.ToLower(strings.TrimSpace(state.SearchTerm))
	out := make([]domain.StockRecord, 0, len(records))
	for _, r := range records {
		if !r.IsActive() {
			continue
		}
		if state.ViewMode == domain.ViewWatchlist && !watchlist.Contains(r.Symbol) {
			continue
		}
		if term != "" && !strings.Contains(strings.ToLower(r.Symbol), term) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// sortRows sorts in place. Equal keys keep their input order in both
// directions.
func sortRows(rows []domain.StockRecord, key domain.SortKey, order domain.SortOrder) {
	desc := order == domain.Desc
	if key.Lexical() {
		sort.SliceStable(rows, func(i, j int) bool {
			a, b := lexicalField(rows[i], key), lexicalField(rows[j], key)
			if desc {
				return a > b
			}
			return a < b
		})
		return
	}
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := numericField(rows[i], key), numericField(rows[j], key)
		if desc {
			return a > b
		}
		return a < b
	})
}

func lexicalField(r domain.StockRecord, key domain.SortKey) string {
	if key == domain.SortLatestDay {
		return r.LatestDay
	}
	return r.Symbol
}

func numericField(r domain.StockRecord, key domain.SortKey) float64 {
	switch key {
	case domain.SortPrice:
		return r.Price
	case domain.SortChangePercent:
		return r.ChangePercent
	default:
		return r.MarketCap
	}
}
