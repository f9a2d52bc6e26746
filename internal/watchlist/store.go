// Package watchlist keeps the persisted set of symbols the user follows,
// with pub/sub for live push and an optional mirror to a broker watchlist.
package watchlist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"qqqdash/internal/domain"
	"qqqdash/internal/store"
)

// ErrEmptySymbol is returned for a blank symbol.
var ErrEmptySymbol = errors.New("watchlist: empty symbol")

// Event is the wire format for watchlist push messages.
type Event struct {
	Type    string   `json:"type"`              // "add", "remove"
	Symbol  string   `json:"symbol,omitempty"`  // add/remove
	Symbols []string `json:"symbols,omitempty"` // full set after the change
}

// Store holds the watchlist in memory, persisted to a KVStore on every
// change.
type Store struct {
	mu      sync.RWMutex
	symbols map[string]bool
	kv      store.KVStore
	mirror  Mirror
	log     *slog.Logger

	subsMu    sync.Mutex
	nextSubID int
	subs      map[int]chan Event
}

// Option configures a Store.
type Option func(*Store)

// WithMirror forwards every change to m after it has been persisted.
func WithMirror(m Mirror) Option {
	return func(s *Store) { s.mirror = m }
}

// Open creates a Store, loading the persisted set from kv. A missing or
// unreadable value starts an empty watchlist.
func Open(ctx context.Context, kv store.KVStore, log *slog.Logger, opts ...Option) *Store {
	if log == nil {
		log = slog.Default()
	}
	s := &Store{
		symbols: make(map[string]bool),
		kv:      kv,
		log:     log,
		subs:    make(map[int]chan Event),
	}
	for _, o := range opts {
		o(s)
	}
	s.load(ctx)
	return s
}

// Toggle flips membership of symbol and persists the full set. It returns
// true when the symbol is now watched. If persisting fails the set is left
// as it was.
func (s *Store) Toggle(ctx context.Context, symbol string) (bool, error) {
	sym := domain.NormalizeSymbol(symbol)
	if sym == "" {
		return false, ErrEmptySymbol
	}

	s.mu.Lock()
	added := !s.symbols[sym]
	s.apply(sym, added)
	if err := s.flush(ctx); err != nil {
		s.apply(sym, !added)
		s.mu.Unlock()
		return !added, err
	}
	list := s.sortedLocked()
	s.mu.Unlock()

	s.afterChange(sym, added, list)
	return added, nil
}

// Add ensures symbol is watched. It reports whether the set changed.
func (s *Store) Add(ctx context.Context, symbol string) (bool, error) {
	return s.ensure(ctx, symbol, true)
}

// Remove ensures symbol is not watched. It reports whether the set changed.
func (s *Store) Remove(ctx context.Context, symbol string) (bool, error) {
	return s.ensure(ctx, symbol, false)
}

func (s *Store) ensure(ctx context.Context, symbol string, want bool) (bool, error) {
	sym := domain.NormalizeSymbol(symbol)
	if sym == "" {
		return false, ErrEmptySymbol
	}

	s.mu.Lock()
	if s.symbols[sym] == want {
		s.mu.Unlock()
		return false, nil
	}
	s.apply(sym, want)
	if err := s.flush(ctx); err != nil {
		s.apply(sym, !want)
		s.mu.Unlock()
		return false, err
	}
	list := s.sortedLocked()
	s.mu.Unlock()

	s.afterChange(sym, want, list)
	return true, nil
}

// Contains reports whether symbol is watched.
func (s *Store) Contains(symbol string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.symbols[domain.NormalizeSymbol(symbol)]
}

// Symbols returns the watched symbols in ascending order.
func (s *Store) Symbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedLocked()
}

// Set returns a copy of the watchlist for view computation.
func (s *Store) Set() domain.SymbolSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(domain.SymbolSet, len(s.symbols))
	for sym := range s.symbols {
		out[sym] = true
	}
	return out
}

// Len returns the number of watched symbols.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.symbols)
}

// Subscribe returns a channel that receives events. bufSize controls the
// channel buffer; slow consumers will have events dropped.
func (s *Store) Subscribe(bufSize int) (int, <-chan Event) {
	ch := make(chan Event, bufSize)
	s.subsMu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subs[id] = ch
	s.subsMu.Unlock()
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (s *Store) Unsubscribe(id int) {
	s.subsMu.Lock()
	if ch, ok := s.subs[id]; ok {
		delete(s.subs, id)
		close(ch)
	}
	s.subsMu.Unlock()
}

func (s *Store) afterChange(sym string, added bool, list []string) {
	if s.mirror != nil {
		var err error
		if added {
			err = s.mirror.Add(sym)
		} else {
			err = s.mirror.Remove(sym)
		}
		if err != nil {
			s.log.Warn("mirroring watchlist change", "symbol", sym, "added", added, "error", err)
		}
	}

	typ := "remove"
	if added {
		typ = "add"
	}
	s.broadcast(Event{Type: typ, Symbol: sym, Symbols: list})
}

// broadcast sends an event to all subscribers non-blocking (drop on full).
func (s *Store) broadcast(e Event) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// apply must be called with mu held.
func (s *Store) apply(sym string, present bool) {
	if present {
		s.symbols[sym] = true
	} else {
		delete(s.symbols, sym)
	}
}

// load reads the persisted JSON array.
func (s *Store) load(ctx context.Context) {
	var loaded []string
	if err := store.GetJSON(ctx, s.kv, store.KeyWatchlist, &loaded); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.log.Warn("loading watchlist", "error", err)
		}
		return
	}
	for _, sym := range loaded {
		if sym = domain.NormalizeSymbol(sym); sym != "" {
			s.symbols[sym] = true
		}
	}
	s.log.Info("loaded watchlist", "symbols", len(s.symbols))
}

// flush persists the full set. Must be called with mu held.
func (s *Store) flush(ctx context.Context) error {
	if err := store.PutJSON(ctx, s.kv, store.KeyWatchlist, s.sortedLocked()); err != nil {
		s.log.Error("writing watchlist", "error", err)
		return fmt.Errorf("persisting watchlist: %w", err)
	}
	return nil
}

// sortedLocked must be called with mu held (read or write).
func (s *Store) sortedLocked() []string {
	out := make([]string, 0, len(s.symbols))
	for sym := range s.symbols {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}
