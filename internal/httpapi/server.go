package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"qqqdash/internal/cache"
	"qqqdash/internal/dashboard"
	"qqqdash/internal/domain"
	"qqqdash/internal/gemini"
	"qqqdash/internal/prefs"
	"qqqdash/internal/report"
	"qqqdash/internal/store"
	"qqqdash/internal/watchlist"
)

// Messages for errors the user can act on.
const (
	msgAuth           = "the AI API key is invalid or missing; update it in settings"
	msgEmptyWatchlist = "the watchlist is empty; add symbols before asking for a summary"
	msgInFlight       = "a report of this kind is already being generated"
)

// Server serves the dashboard HTTP API.
type Server struct {
	loader    *cache.Loader
	archive   store.SnapshotArchive // nil disables history routes
	watchlist *watchlist.Store
	prefs     *prefs.Prefs
	reports   *report.Service
	hub       *Hub
	now       func() time.Time
	log       *slog.Logger
}

// NewServer creates the HTTP API server. archive may be nil.
func NewServer(
	loader *cache.Loader,
	archive store.SnapshotArchive,
	wl *watchlist.Store,
	p *prefs.Prefs,
	reports *report.Service,
	log *slog.Logger,
) *Server {
	return &Server{
		loader:    loader,
		archive:   archive,
		watchlist: wl,
		prefs:     p,
		reports:   reports,
		hub:       NewHub(log),
		now:       time.Now,
		log:       log,
	}
}

// Run drives the WebSocket hub and forwards watchlist changes to it until
// ctx is cancelled.
func (s *Server) Run(ctx context.Context) {
	id, events := s.watchlist.Subscribe(16)
	defer s.watchlist.Unsubscribe(id)

	go s.hub.Run(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			s.hub.Publish(EventWatchlist, e)
		}
	}
}

// RegisterRoutes registers all API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/dashboard", s.handleDashboard)
	mux.HandleFunc("GET /api/metrics", s.handleMetrics)
	mux.HandleFunc("GET /api/chart", s.handleChart)
	mux.HandleFunc("POST /api/reload", s.handleReload)

	mux.HandleFunc("GET /api/watchlist", s.handleGetWatchlist)
	mux.HandleFunc("PUT /api/watchlist/{symbol}", s.handleAddWatchlist)
	mux.HandleFunc("DELETE /api/watchlist/{symbol}", s.handleRemoveWatchlist)
	mux.HandleFunc("POST /api/watchlist/{symbol}/toggle", s.handleToggleWatchlist)

	mux.HandleFunc("POST /api/reports/symbol/{symbol}", s.handleSymbolReport)
	mux.HandleFunc("POST /api/reports/market", s.handleMarketSummary)
	mux.HandleFunc("POST /api/reports/watchlist", s.handleWatchlistSummary)
	mux.HandleFunc("GET /api/reports/latest/download", s.handleDownloadReport)

	mux.HandleFunc("GET /api/settings/apikey", s.handleGetAPIKey)
	mux.HandleFunc("PUT /api/settings/apikey", s.handleSetAPIKey)
	mux.HandleFunc("GET /api/settings/theme", s.handleGetTheme)
	mux.HandleFunc("PUT /api/settings/theme", s.handleSetTheme)
	mux.HandleFunc("POST /api/settings/theme/toggle", s.handleToggleTheme)

	mux.HandleFunc("GET /api/history", s.handleDates)
	mux.HandleFunc("GET /api/history/{date}", s.handleHistory)

	mux.HandleFunc("GET /ws", s.hub.ServeWS)
}

// Handler returns an http.Handler with CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// parseViewState reads search/view/sort/order/page from the query string.
// Missing or unknown values fall back to the defaults.
func parseViewState(r *http.Request) domain.ViewState {
	q := r.URL.Query()
	st := domain.DefaultViewState()
	st.SearchTerm = q.Get("search")
	if v := q.Get("view"); v != "" {
		st.ViewMode = domain.ViewMode(v)
	}
	if v := q.Get("sort"); v != "" {
		st.SortKey = domain.SortKey(v)
	}
	if v := q.Get("order"); v != "" {
		st.SortOrder = domain.SortOrder(v)
	}
	if v := q.Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			st.Page = n
		}
	}
	return st.Normalize()
}

// loadSnapshot runs the cache policy and announces fresh data. On failure
// it writes a 502 and returns false.
func (s *Server) loadSnapshot(w http.ResponseWriter, r *http.Request) (domain.Snapshot, cache.Source, bool) {
	snap, src, err := s.loader.Load(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return domain.Snapshot{}, "", false
	}
	if src == cache.SourceNetwork {
		s.hub.Publish(EventSnapshot, SnapshotEvent{Records: len(snap.Records), FetchedAt: snap.FetchedAt})
	}
	return snap, src, true
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	snap, src, ok := s.loadSnapshot(w, r)
	if !ok {
		return
	}
	wl := s.watchlist.Set()
	resp := convertBoard(dashboard.BuildBoard(snap, wl, parseViewState(r)), wl)
	resp.Source = string(src)
	writeJSON(w, resp)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	snap, _, ok := s.loadSnapshot(w, r)
	if !ok {
		return
	}
	m, ok := dashboard.ComputeMetrics(snap.Active())
	if !ok {
		writeJSON(w, struct{}{})
		return
	}
	writeJSON(w, convertMetrics(m))
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	snap, _, ok := s.loadSnapshot(w, r)
	if !ok {
		return
	}
	writeJSON(w, ChartResponse{Slices: dashboard.MarketCapBreakdown(snap.Active(), dashboard.ChartTopN)})
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	snap, src, ok := s.loadSnapshot(w, r)
	if !ok {
		return
	}
	writeJSON(w, ReloadResponse{Records: len(snap.Records), FetchedAt: snap.FetchedAt, Source: string(src)})
}

// ---------------------------------------------------------------------------
// Watchlist
// ---------------------------------------------------------------------------

func (s *Server) handleGetWatchlist(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, WatchlistResponse{Symbols: s.watchlist.Symbols()})
}

func (s *Server) handleAddWatchlist(w http.ResponseWriter, r *http.Request) {
	if _, err := s.watchlist.Add(r.Context(), r.PathValue("symbol")); err != nil {
		s.watchlistError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRemoveWatchlist(w http.ResponseWriter, r *http.Request) {
	if _, err := s.watchlist.Remove(r.Context(), r.PathValue("symbol")); err != nil {
		s.watchlistError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleToggleWatchlist(w http.ResponseWriter, r *http.Request) {
	symbol := domain.NormalizeSymbol(r.PathValue("symbol"))
	watched, err := s.watchlist.Toggle(r.Context(), symbol)
	if err != nil {
		s.watchlistError(w, err)
		return
	}
	writeJSON(w, ToggleResponse{Symbol: symbol, Watched: watched})
}

func (s *Server) watchlistError(w http.ResponseWriter, err error) {
	if errors.Is(err, watchlist.ErrEmptySymbol) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.log.Error("watchlist update failed", "error", err)
	writeError(w, http.StatusInternalServerError, "failed to update watchlist")
}

// ---------------------------------------------------------------------------
// Reports
// ---------------------------------------------------------------------------

func (s *Server) handleSymbolReport(w http.ResponseWriter, r *http.Request) {
	rep, err := s.reports.SymbolReport(r.Context(), r.PathValue("symbol"))
	if err != nil {
		writeReportError(w, err)
		return
	}
	writeJSON(w, ReportResponse{Report: rep, HTML: rep.HTML()})
}

func (s *Server) handleMarketSummary(w http.ResponseWriter, r *http.Request) {
	snap, _, ok := s.loadSnapshot(w, r)
	if !ok {
		return
	}
	rep, err := s.reports.MarketSummary(r.Context(), snap.Active())
	if err != nil {
		writeReportError(w, err)
		return
	}
	writeJSON(w, ReportResponse{Report: rep, HTML: rep.HTML()})
}

func (s *Server) handleWatchlistSummary(w http.ResponseWriter, r *http.Request) {
	snap, _, ok := s.loadSnapshot(w, r)
	if !ok {
		return
	}
	rep, err := s.reports.WatchlistSummary(r.Context(), snap.Records, s.watchlist.Set())
	if err != nil {
		writeReportError(w, err)
		return
	}
	writeJSON(w, ReportResponse{Report: rep, HTML: rep.HTML()})
}

func (s *Server) handleDownloadReport(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.reports.LastSymbolReport()
	if !ok {
		writeError(w, http.StatusNotFound, "no report has been generated yet")
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+rep.Filename(s.now())+`"`)
	w.Write([]byte(rep.Markdown))
}

func writeReportError(w http.ResponseWriter, err error) {
	var te *gemini.TransportError
	switch {
	case errors.Is(err, gemini.ErrAuth):
		writeError(w, http.StatusUnauthorized, msgAuth)
	case errors.Is(err, report.ErrInFlight):
		writeError(w, http.StatusConflict, msgInFlight)
	case errors.Is(err, report.ErrEmptyWatchlist):
		writeError(w, http.StatusBadRequest, msgEmptyWatchlist)
	case errors.Is(err, report.ErrEmptySymbol):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &te):
		writeError(w, http.StatusBadGateway, te.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// ---------------------------------------------------------------------------
// Settings
// ---------------------------------------------------------------------------

func (s *Server) handleGetAPIKey(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, APIKeyStatus{Configured: s.prefs.HasAPIKey(r.Context())})
}

func (s *Server) handleSetAPIKey(w http.ResponseWriter, r *http.Request) {
	var req APIKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.prefs.SetAPIKey(r.Context(), req.APIKey); err != nil {
		if errors.Is(err, prefs.ErrEmptyKey) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.log.Error("saving api key", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save api key")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetTheme(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, ThemeBody{Theme: string(s.prefs.Theme(r.Context()))})
}

func (s *Server) handleSetTheme(w http.ResponseWriter, r *http.Request) {
	var req ThemeBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	t, err := prefs.ParseTheme(req.Theme)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.prefs.SetTheme(r.Context(), t); err != nil {
		s.log.Error("saving theme", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save theme")
		return
	}
	s.hub.Publish(EventTheme, ThemeBody{Theme: string(t)})
	writeJSON(w, ThemeBody{Theme: string(t)})
}

func (s *Server) handleToggleTheme(w http.ResponseWriter, r *http.Request) {
	t, err := s.prefs.ToggleTheme(r.Context())
	if err != nil {
		s.log.Error("saving theme", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save theme")
		return
	}
	s.hub.Publish(EventTheme, ThemeBody{Theme: string(t)})
	writeJSON(w, ThemeBody{Theme: string(t)})
}

// ---------------------------------------------------------------------------
// History
// ---------------------------------------------------------------------------

func (s *Server) handleDates(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		writeJSON(w, DatesResponse{Dates: []string{}})
		return
	}
	dates, err := s.archive.ListDates(r.Context())
	if err != nil {
		s.log.Error("listing snapshot dates", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list dates")
		return
	}
	if dates == nil {
		dates = []string{}
	}
	writeJSON(w, DatesResponse{Dates: dates})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	date := r.PathValue("date")
	if s.archive == nil {
		writeError(w, http.StatusNotFound, "snapshot archive is disabled")
		return
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	snap, err := s.archive.ReadSnapshot(r.Context(), date)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no snapshot for "+date)
			return
		}
		s.log.Error("reading archived snapshot", "date", date, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read snapshot")
		return
	}
	wl := s.watchlist.Set()
	writeJSON(w, convertBoard(dashboard.BuildBoard(snap, wl, parseViewState(r)), wl))
}
