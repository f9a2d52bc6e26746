package dashboard

import (
	"sort"

	"github.com/shopspring/decimal"

	"qqqdash/internal/domain"
)

// Metrics summarizes the active records.
type Metrics struct {
	TopGainer      domain.StockRecord `json:"topGainer"`
	TopLoser       domain.StockRecord `json:"topLoser"`
	TotalMarketCap float64            `json:"totalMarketCap"` // millions USD
	UpCount        int                `json:"upCount"`
	DownCount      int                `json:"downCount"`
}

// ComputeMetrics aggregates active. It reports false for empty input, in
// which case there are no metrics to show. Ties for top gainer or loser go
// to the record seen first.
func ComputeMetrics(active []domain.StockRecord) (Metrics, bool) {
	if len(active) == 0 {
		return Metrics{}, false
	}

	m := Metrics{TopGainer: active[0], TopLoser: active[0]}
	total := decimal.Zero
	for _, r := range active {
		if r.ChangePercent > m.TopGainer.ChangePercent {
			m.TopGainer = r
		}
		if r.ChangePercent < m.TopLoser.ChangePercent {
			m.TopLoser = r
		}
		switch {
		case r.ChangePercent > 0:
			m.UpCount++
		case r.ChangePercent < 0:
			m.DownCount++
		}
		total = total.Add(decimal.NewFromFloat(r.MarketCap))
	}
	m.TotalMarketCap, _ = total.Float64()
	return m, true
}

// OthersLabel names the slice that sums everything outside the top N.
const OthersLabel = "Others"

// Slice is one wedge of the market-cap breakdown.
type Slice struct {
	Label     string  `json:"label"`
	MarketCap float64 `json:"marketCap"` // millions USD
	Share     float64 `json:"share"`     // fraction of the total, 0..1
}

// MarketCapBreakdown returns the top n records by market cap followed by
// one OthersLabel slice holding the rest. The Others slice is always
// present, zero when there is nothing left over.
func MarketCapBreakdown(active []domain.StockRecord, n int) []Slice {
	if len(active) == 0 {
		return nil
	}
	sorted := make([]domain.StockRecord, len(active))
	copy(sorted, active)
	sortRows(sorted, domain.SortMarketCap, domain.Desc)

	if n > len(sorted) {
		n = len(sorted)
	}

	total := decimal.Zero
	for _, r := range sorted {
		total = total.Add(decimal.NewFromFloat(r.MarketCap))
	}
	others := decimal.Zero
	for _, r := range sorted[n:] {
		others = others.Add(decimal.NewFromFloat(r.MarketCap))
	}

	share := func(v decimal.Decimal) float64 {
		if total.IsZero() {
			return 0
		}
		f, _ := v.Div(total).Float64()
		return f
	}

	out := make([]Slice, 0, n+1)
	for _, r := range sorted[:n] {
		v := decimal.NewFromFloat(r.MarketCap)
		out = append(out, Slice{Label: r.Symbol, MarketCap: r.MarketCap, Share: share(v)})
	}
	othersF, _ := others.Float64()
	out = append(out, Slice{Label: OthersLabel, MarketCap: othersF, Share: share(others)})
	return out
}

// TopMovers returns up to n best performers (best first) and up to n worst
// (worst first) by ChangePercent.
func TopMovers(active []domain.StockRecord, n int) (gainers, losers []domain.StockRecord) {
	if len(active) == 0 || n <= 0 {
		return nil, nil
	}
	asc := make([]domain.StockRecord, len(active))
	copy(asc, active)
	sort.SliceStable(asc, func(i, j int) bool {
		return asc[i].ChangePercent < asc[j].ChangePercent
	})

	k := n
	if k > len(asc) {
		k = len(asc)
	}
	losers = append([]domain.StockRecord(nil), asc[:k]...)
	for i := len(asc) - 1; i >= len(asc)-k; i-- {
		gainers = append(gainers, asc[i])
	}
	return gainers, losers
}
