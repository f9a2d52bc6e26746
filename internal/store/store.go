// Package store defines storage interfaces for persisting dashboard state
// (a small key/value namespace) and for archiving fetched snapshots.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"qqqdash/internal/domain"
)

// Well-known keys in the key/value namespace.
const (
	KeyDashboardCache = "qqqDashboardCache"
	KeyWatchlist      = "qqqWatchlist"
	KeyGeminiAPIKey   = "geminiApiKey"
	KeyTheme          = "theme"
)

// ErrNotFound is returned when a key has no stored value.
var ErrNotFound = errors.New("store: key not found")

// KVStore persists small string values under string keys.
type KVStore interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Put stores value under key, replacing any prior value.
	Put(ctx context.Context, key, value string) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}

// SnapshotArchive keeps one snapshot per calendar day.
type SnapshotArchive interface {
	// WriteSnapshot stores snap under the day of its FetchedAt, replacing
	// any snapshot already archived for that day.
	WriteSnapshot(ctx context.Context, snap domain.Snapshot) error

	// ReadSnapshot returns the snapshot archived for date (YYYY-MM-DD).
	ReadSnapshot(ctx context.Context, date string) (domain.Snapshot, error)

	// ListDates returns archived dates in ascending order.
	ListDates(ctx context.Context) ([]string, error)
}

// GetJSON decodes the value under key into v. It returns ErrNotFound for a
// missing key and a wrapped decode error for a corrupt value; callers that
// degrade to defaults treat both alike.
func GetJSON(ctx context.Context, kv KVStore, key string, v any) error {
	raw, err := kv.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("decoding %s: %w", key, err)
	}
	return nil
}

// PutJSON encodes v and stores it under key.
func PutJSON(ctx context.Context, kv KVStore, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	return kv.Put(ctx, key, string(data))
}

// ---------------------------------------------------------------------------
// In-memory implementation
// ---------------------------------------------------------------------------

// Compile-time interface check.
var _ KVStore = (*MemoryKV)(nil)

// MemoryKV is a KVStore held in process memory. Nothing survives a restart.
type MemoryKV struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemoryKV returns an empty MemoryKV.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string]string)}
}

func (m *MemoryKV) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *MemoryKV) Put(_ context.Context, key, value string) error {
	m.mu.Lock()
	m.data[key] = value
	m.mu.Unlock()
	return nil
}

func (m *MemoryKV) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()
	return nil
}
