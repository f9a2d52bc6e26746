// Package domain defines the core types shared by every qqqdash component:
// stock records, snapshots, watchlist membership, and table view state.
package domain

import (
	"strings"
	"time"
)

// StatusActive is the only status whose records are shown or aggregated.
const StatusActive = "Active"

// StockRecord is one row of the constituent sheet.
type StockRecord struct {
	Symbol        string            `json:"symbol"`
	Price         float64           `json:"price"`
	ChangePercent float64           `json:"changePercent"` // percentage points, signed
	MarketCap     float64           `json:"marketCap"`     // millions USD
	LatestDay     string            `json:"latestDay"`
	Status        string            `json:"status"`
	Extra         map[string]string `json:"extra,omitempty"` // columns with no dedicated field
}

// IsActive reports whether the record participates in views and aggregates.
func (r StockRecord) IsActive() bool {
	return r.Status == StatusActive
}

// Snapshot is one fetched-and-parsed copy of the dataset. It is never
// mutated after construction; a refresh replaces it wholesale.
type Snapshot struct {
	Records   []StockRecord
	FetchedAt time.Time
}

// Active returns the Active records in their original order.
func (s Snapshot) Active() []StockRecord {
	return FilterActive(s.Records)
}

// FilterActive returns the Active subset of records, preserving order.
func FilterActive(records []StockRecord) []StockRecord {
	out := make([]StockRecord, 0, len(records))
	for _, r := range records {
		if r.IsActive() {
			out = append(out, r)
		}
	}
	return out
}

// NormalizeSymbol upper-cases and trims a symbol for watchlist keys.
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// SymbolSet is an immutable-by-convention set of symbols. Views receive a
// copy so that computing a page never observes a concurrent toggle. Keys
// are normalized with NormalizeSymbol.
type SymbolSet map[string]bool

// NewSymbolSet builds a set from a list of symbols.
func NewSymbolSet(symbols ...string) SymbolSet {
	s := make(SymbolSet, len(symbols))
	for _, sym := range symbols {
		if sym = NormalizeSymbol(sym); sym != "" {
			s[sym] = true
		}
	}
	return s
}

// Contains reports membership of symbol after normalizing it, so a sheet
// symbol matches regardless of case or padding. A nil set contains nothing.
func (s SymbolSet) Contains(symbol string) bool {
	return s[NormalizeSymbol(symbol)]
}

// ---------------------------------------------------------------------------
// View state
// ---------------------------------------------------------------------------

// ViewMode selects between all active records and the watchlist subset.
type ViewMode string

const (
	ViewAll       ViewMode = "all"
	ViewWatchlist ViewMode = "watchlist"
)

// SortKey names the column a table is sorted by.
type SortKey string

const (
	SortSymbol        SortKey = "symbol"
	SortPrice         SortKey = "price"
	SortChangePercent SortKey = "changePercent"
	SortMarketCap     SortKey = "marketCap"
	SortLatestDay     SortKey = "latestDay"
)

// SortKeys lists every sort key in column order.
var SortKeys = []SortKey{SortSymbol, SortPrice, SortChangePercent, SortMarketCap, SortLatestDay}

// Lexical reports whether the key compares as a string.
func (k SortKey) Lexical() bool {
	return k == SortSymbol || k == SortLatestDay
}

// Valid reports whether k is a known sort key.
func (k SortKey) Valid() bool {
	for _, known := range SortKeys {
		if k == known {
			return true
		}
	}
	return false
}

// SortOrder is the sort direction.
type SortOrder string

const (
	Asc  SortOrder = "asc"
	Desc SortOrder = "desc"
)

// Flip returns the opposite direction.
func (o SortOrder) Flip() SortOrder {
	if o == Asc {
		return Desc
	}
	return Asc
}

// ViewState is the transient table state. It is never persisted.
type ViewState struct {
	SearchTerm string    `json:"search"`
	ViewMode   ViewMode  `json:"view"`
	SortKey    SortKey   `json:"sort"`
	SortOrder  SortOrder `json:"order"`
	Page       int       `json:"page"`
}

// DefaultViewState is the state a fresh dashboard starts with.
func DefaultViewState() ViewState {
	return ViewState{
		ViewMode:  ViewAll,
		SortKey:   SortMarketCap,
		SortOrder: Desc,
		Page:      1,
	}
}
