// Package httpapi serves the dashboard over HTTP: table pages, metrics,
// watchlist, reports and settings as JSON, plus a WebSocket event feed.
package httpapi

import (
	"time"

	"qqqdash/internal/dashboard"
	"qqqdash/internal/domain"
	"qqqdash/internal/report"
)

// RowJSON is one table row with its watchlist flag.
type RowJSON struct {
	domain.StockRecord
	Watched bool `json:"watched"`
}

// MetricsJSON adds display strings to the metrics.
type MetricsJSON struct {
	dashboard.Metrics
	TotalMarketCapText string `json:"totalMarketCapText"`
}

// DashboardResponse is the body of GET /api/dashboard and
// GET /api/history/{date}.
type DashboardResponse struct {
	Rows       []RowJSON         `json:"rows"`
	Total      int               `json:"total"`
	Page       int               `json:"page"`
	TotalPages int               `json:"totalPages"`
	State      domain.ViewState  `json:"state"`
	Metrics    *MetricsJSON      `json:"metrics,omitempty"`
	Chart      []dashboard.Slice `json:"chart"`
	FetchedAt  time.Time         `json:"fetchedAt"`
	Source     string            `json:"source,omitempty"`
}

// ChartResponse is the body of GET /api/chart.
type ChartResponse struct {
	Slices []dashboard.Slice `json:"slices"`
}

// ReloadResponse is the body of POST /api/reload.
type ReloadResponse struct {
	Records   int       `json:"records"`
	FetchedAt time.Time `json:"fetchedAt"`
	Source    string    `json:"source"`
}

// WatchlistResponse lists watched symbols.
type WatchlistResponse struct {
	Symbols []string `json:"symbols"`
}

// ToggleResponse is the result of a watchlist toggle.
type ToggleResponse struct {
	Symbol  string `json:"symbol"`
	Watched bool   `json:"watched"`
}

// ReportResponse is a generated report with its rendered HTML.
type ReportResponse struct {
	report.Report
	HTML string `json:"html"`
}

// APIKeyStatus reports whether a key is configured. The key itself is
// never returned.
type APIKeyStatus struct {
	Configured bool `json:"configured"`
}

// APIKeyRequest is the body of PUT /api/settings/apikey.
type APIKeyRequest struct {
	APIKey string `json:"apiKey"`
}

// ThemeBody is used for theme requests and responses.
type ThemeBody struct {
	Theme string `json:"theme"`
}

// DatesResponse lists archived snapshot dates.
type DatesResponse struct {
	Dates []string `json:"dates"`
}

// SnapshotEvent is published on the WebSocket after a network fetch.
type SnapshotEvent struct {
	Records   int       `json:"records"`
	FetchedAt time.Time `json:"fetchedAt"`
}

func convertBoard(b dashboard.Board, watchlist domain.SymbolSet) DashboardResponse {
	rows := make([]RowJSON, len(b.Page.Rows))
	for i, r := range b.Page.Rows {
		rows[i] = RowJSON{StockRecord: r, Watched: watchlist.Contains(r.Symbol)}
	}
	resp := DashboardResponse{
		Rows:       rows,
		Total:      b.Page.Total,
		Page:       b.Page.Page,
		TotalPages: b.Page.TotalPages,
		State:      b.Page.State,
		Chart:      b.Chart,
		FetchedAt:  b.FetchedAt,
	}
	if b.Metrics != nil {
		resp.Metrics = convertMetrics(*b.Metrics)
	}
	if resp.Chart == nil {
		resp.Chart = []dashboard.Slice{}
	}
	return resp
}

func convertMetrics(m dashboard.Metrics) *MetricsJSON {
	return &MetricsJSON{Metrics: m, TotalMarketCapText: dashboard.FormatMarketCap(m.TotalMarketCap)}
}
