package dashboard

import (
	"time"

	"qqqdash/internal/domain"
)

// ChartTopN is how many symbols get their own market-cap slice.
const ChartTopN = 10

// Board is everything a front end renders for one state: the table page,
// the metrics (nil when nothing is active) and the market-cap breakdown.
// Metrics and chart always cover every active record, independent of
// search, view mode and page.
type Board struct {
	Page      Page
	Metrics   *Metrics
	Chart     []Slice
	FetchedAt time.Time
}

// BuildBoard computes a Board from a snapshot.
func BuildBoard(snap domain.Snapshot, watchlist domain.SymbolSet, state domain.ViewState) Board {
	active := snap.Active()
	b := Board{
		Page:      Resolve(snap.Records, watchlist, state),
		Chart:     MarketCapBreakdown(active, ChartTopN),
		FetchedAt: snap.FetchedAt,
	}
	if m, ok := ComputeMetrics(active); ok {
		b.Metrics = &m
	}
	return b
}
