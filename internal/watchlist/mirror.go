package watchlist

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	alpacaapi "github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"

	"qqqdash/internal/util"
)

const (
	mirrorAttempts = 3
	mirrorBackoff  = 250 * time.Millisecond
)

// Mirror receives watchlist changes after they are persisted locally.
type Mirror interface {
	Add(symbol string) error
	Remove(symbol string) error
}

// AlpacaMirror keeps a named Alpaca watchlist in step with the local one.
// The remote list is looked up (or created) on first use.
type AlpacaMirror struct {
	client *alpacaapi.Client
	name   string
	log    *slog.Logger

	mu sync.Mutex
	id string
}

// Compile-time interface check.
var _ Mirror = (*AlpacaMirror)(nil)

// NewAlpacaMirror creates a mirror for the watchlist called name.
func NewAlpacaMirror(client *alpacaapi.Client, name string, log *slog.Logger) *AlpacaMirror {
	if log == nil {
		log = slog.Default()
	}
	return &AlpacaMirror{client: client, name: name, log: log}
}

// Add adds symbol to the remote watchlist. Failed calls are retried a few
// times with backoff.
func (m *AlpacaMirror) Add(symbol string) error {
	return util.Retry(context.Background(), mirrorAttempts, mirrorBackoff, func() error {
		id, err := m.watchlistID()
		if err != nil {
			return err
		}
		_, err = m.client.AddSymbolToWatchlist(id, alpacaapi.AddSymbolToWatchlistRequest{Symbol: symbol})
		return err
	})
}

// Remove removes symbol from the remote watchlist, with the same retries
// as Add.
func (m *AlpacaMirror) Remove(symbol string) error {
	return util.Retry(context.Background(), mirrorAttempts, mirrorBackoff, func() error {
		id, err := m.watchlistID()
		if err != nil {
			return err
		}
		return m.client.RemoveSymbolFromWatchlist(id, alpacaapi.RemoveSymbolFromWatchlistRequest{Symbol: symbol})
	})
}

// Symbols lists the symbols currently on the remote watchlist.
func (m *AlpacaMirror) Symbols() ([]string, error) {
	id, err := m.watchlistID()
	if err != nil {
		return nil, err
	}
	wl, err := m.client.GetWatchlist(id)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(wl.Assets))
	for _, a := range wl.Assets {
		out = append(out, a.Symbol)
	}
	return out, nil
}

func (m *AlpacaMirror) watchlistID() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.id != "" {
		return m.id, nil
	}

	lists, err := m.client.GetWatchlists()
	if err != nil {
		return "", err
	}
	for _, w := range lists {
		if w.Name == m.name {
			m.id = w.ID
			m.log.Info("watchlist found", "id", w.ID)
			return m.id, nil
		}
	}

	w, err := m.client.CreateWatchlist(alpacaapi.CreateWatchlistRequest{Name: m.name})
	if err != nil {
		return "", err
	}
	if w == nil || w.ID == "" {
		return "", util.Permanent(errors.New("alpaca returned an empty watchlist"))
	}
	m.id = w.ID
	m.log.Info("watchlist created", "id", w.ID)
	return m.id, nil
}
