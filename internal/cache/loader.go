// Package cache wraps sheet ingestion with a time-boxed local cache so a
// fresh copy is fetched at most once per TTL.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"qqqdash/internal/domain"
	"qqqdash/internal/sheet"
	"qqqdash/internal/store"
)

// DefaultTTL is how long a cached snapshot stays valid.
const DefaultTTL = 4 * time.Hour

// Entry is the persisted cache value.
type Entry struct {
	Timestamp int64                `json:"timestamp"` // Unix ms of the fetch
	Data      []domain.StockRecord `json:"data"`
}

// FetchedAt returns the entry timestamp as a time.
func (e Entry) FetchedAt() time.Time {
	return time.UnixMilli(e.Timestamp)
}

// Source tells where a loaded snapshot came from.
type Source string

const (
	SourceCache   Source = "cache"
	SourceNetwork Source = "network"
)

// Loader implements the load policy: serve the cached entry while it is
// younger than the TTL, otherwise fetch, parse, persist and return.
type Loader struct {
	fetcher sheet.Fetcher
	kv      store.KVStore
	archive store.SnapshotArchive
	ttl     time.Duration
	now     func() time.Time
	log     *slog.Logger

	group singleflight.Group
}

// Option configures a Loader.
type Option func(*Loader)

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(l *Loader) {
		if ttl > 0 {
			l.ttl = ttl
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Loader) { l.now = now }
}

// WithArchive archives every network-fetched snapshot.
func WithArchive(a store.SnapshotArchive) Option {
	return func(l *Loader) { l.archive = a }
}

// NewLoader creates a Loader reading through fetcher and caching in kv.
func NewLoader(fetcher sheet.Fetcher, kv store.KVStore, log *slog.Logger, opts ...Option) *Loader {
	if log == nil {
		log = slog.Default()
	}
	l := &Loader{
		fetcher: fetcher,
		kv:      kv,
		ttl:     DefaultTTL,
		now:     time.Now,
		log:     log,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

type loadResult struct {
	snap   domain.Snapshot
	source Source
}

// Load returns the current snapshot. Concurrent callers share one fetch.
// A fetch failure is returned as is and leaves the stored entry untouched.
func (l *Loader) Load(ctx context.Context) (domain.Snapshot, Source, error) {
	v, err, _ := l.group.Do("load", func() (any, error) {
		snap, src, err := l.load(ctx)
		return loadResult{snap: snap, source: src}, err
	})
	if err != nil {
		return domain.Snapshot{}, "", err
	}
	res := v.(loadResult)
	return res.snap, res.source, nil
}

func (l *Loader) load(ctx context.Context) (domain.Snapshot, Source, error) {
	now := l.now()

	if entry, ok := l.Cached(ctx); ok && now.Sub(entry.FetchedAt()) < l.ttl {
		l.log.Debug("snapshot served from cache", "records", len(entry.Data), "age", now.Sub(entry.FetchedAt()))
		return domain.Snapshot{Records: entry.Data, FetchedAt: entry.FetchedAt()}, SourceCache, nil
	}

	text, err := l.fetcher.Fetch(ctx)
	if err != nil {
		l.log.Error("sheet fetch failed", "error", err)
		return domain.Snapshot{}, "", fmt.Errorf("loading snapshot: %w", err)
	}

	records, stats := sheet.Parse(text)
	if records == nil {
		records = []domain.StockRecord{}
	}
	if stats.Degraded() {
		l.log.Warn("sheet parsed with degradation",
			"rows", stats.Rows,
			"zeroed_cells", stats.ZeroedCells,
			"short_rows", stats.ShortRows,
			"long_rows", stats.LongRows,
			"duplicate_symbols", stats.DuplicateSymbols,
		)
	}

	entry := Entry{Timestamp: now.UnixMilli(), Data: records}
	snap := domain.Snapshot{Records: records, FetchedAt: entry.FetchedAt()}

	// The data is good even if it cannot be stored; the next load refetches.
	if err := store.PutJSON(ctx, l.kv, store.KeyDashboardCache, entry); err != nil {
		l.log.Error("persisting cache entry", "error", err)
	}
	if l.archive != nil {
		if err := l.archive.WriteSnapshot(ctx, snap); err != nil {
			l.log.Warn("archiving snapshot", "error", err)
		}
	}

	l.log.Info("snapshot fetched", "records", len(records))
	return snap, SourceNetwork, nil
}

// Cached returns the stored entry regardless of age. A missing, corrupt or
// incomplete entry (no timestamp or no data array) reports false.
func (l *Loader) Cached(ctx context.Context) (Entry, bool) {
	var entry Entry
	err := store.GetJSON(ctx, l.kv, store.KeyDashboardCache, &entry)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			l.log.Warn("ignoring unreadable cache entry", "error", err)
		}
		return Entry{}, false
	}
	if entry.Timestamp == 0 || entry.Data == nil {
		l.log.Warn("ignoring incomplete cache entry", "timestamp", entry.Timestamp, "has_data", entry.Data != nil)
		return Entry{}, false
	}
	return entry, true
}

// TTL returns the configured validity window.
func (l *Loader) TTL() time.Duration { return l.ttl }
