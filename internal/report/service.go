package report

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"qqqdash/internal/dashboard"
	"qqqdash/internal/domain"
	"qqqdash/internal/gemini"
)

var (
	// ErrInFlight is returned when a report of the same kind is still
	// being generated.
	ErrInFlight = errors.New("report: a report of this kind is already being generated")

	// ErrEmptyWatchlist is returned by WatchlistSummary when no watched
	// symbol is in the data.
	ErrEmptyWatchlist = errors.New("report: watchlist is empty")

	// ErrEmptySymbol is returned by SymbolReport for a blank symbol.
	ErrEmptySymbol = errors.New("report: empty symbol")
)

// CredentialSource supplies the API key at call time.
type CredentialSource interface {
	APIKey(ctx context.Context) string
}

// Service runs report flows against a Generator. At most one report per
// kind is generated at a time.
type Service struct {
	gen   gemini.Generator
	creds CredentialSource
	now   func() time.Time
	log   *slog.Logger

	mu         sync.Mutex
	inFlight   map[Kind]bool
	lastSymbol *Report
}

// NewService creates a Service.
func NewService(gen gemini.Generator, creds CredentialSource, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		gen:      gen,
		creds:    creds,
		now:      time.Now,
		log:      log,
		inFlight: make(map[Kind]bool),
	}
}

// SymbolReport generates a research report for symbol and remembers it as
// the last symbol report.
func (s *Service) SymbolReport(ctx context.Context, symbol string) (Report, error) {
	symbol = domain.NormalizeSymbol(symbol)
	if symbol == "" {
		return Report{}, ErrEmptySymbol
	}
	r, err := s.run(ctx, SingleSymbolReport, Context{Symbol: symbol, Date: s.now()})
	if err != nil {
		return Report{}, err
	}
	r.Symbol = symbol

	s.mu.Lock()
	s.lastSymbol = &r
	s.mu.Unlock()
	return r, nil
}

// MarketSummary summarizes the day from the top and bottom movers among
// active records.
func (s *Service) MarketSummary(ctx context.Context, active []domain.StockRecord) (Report, error) {
	gainers, losers := dashboard.TopMovers(active, MoversPerSide)
	return s.run(ctx, MarketSummary, Context{Date: s.now(), Gainers: gainers, Losers: losers})
}

// WatchlistSummary summarizes the watched Active symbols present in
// records, in record order. It fails with ErrEmptyWatchlist before any
// request when none are present.
func (s *Service) WatchlistSummary(ctx context.Context, records []domain.StockRecord, watchlist domain.SymbolSet) (Report, error) {
	var watched []domain.StockRecord
	for _, r := range domain.FilterActive(records) {
		if watchlist.Contains(r.Symbol) {
			watched = append(watched, r)
		}
	}
	if len(watched) == 0 {
		return Report{}, ErrEmptyWatchlist
	}
	return s.run(ctx, WatchlistSummary, Context{Date: s.now(), Watchlist: watched})
}

// LastSymbolReport returns the most recent successful symbol report.
func (s *Service) LastSymbolReport() (Report, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastSymbol == nil {
		return Report{}, false
	}
	return *s.lastSymbol, true
}

// Busy reports whether a report of kind is being generated.
func (s *Service) Busy(kind Kind) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight[kind]
}

func (s *Service) run(ctx context.Context, kind Kind, c Context) (Report, error) {
	s.mu.Lock()
	if s.inFlight[kind] {
		s.mu.Unlock()
		return Report{}, ErrInFlight
	}
	s.inFlight[kind] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.inFlight, kind)
		s.mu.Unlock()
	}()

	start := time.Now()
	text, err := s.gen.GenerateText(ctx, BuildPrompt(kind, c), s.creds.APIKey(ctx))
	if err != nil {
		s.log.Error("report generation failed", "kind", kind.String(), "symbol", c.Symbol, "error", err)
		return Report{}, err
	}

	r := Report{
		ID:        uuid.NewString(),
		Kind:      kind,
		KindName:  kind.String(),
		Title:     kind.Title(),
		Markdown:  text,
		CreatedAt: s.now(),
	}
	s.log.Info("report generated", "kind", kind.String(), "symbol", c.Symbol, "id", r.ID, "elapsed", time.Since(start))
	return r, nil
}
