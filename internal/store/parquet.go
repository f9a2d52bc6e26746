package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"qqqdash/internal/domain"
)

// Compile-time interface check.
var _ SnapshotArchive = (*ParquetStore)(nil)

// ParquetStore implements SnapshotArchive using one Parquet file per day.
type ParquetStore struct {
	DataDir string
}

// NewParquetStore creates a new ParquetStore rooted at the given data directory.
func NewParquetStore(dataDir string) *ParquetStore {
	return &ParquetStore{DataDir: dataDir}
}

// SnapshotRecord is the Parquet schema for one archived sheet row.
type SnapshotRecord struct {
	Symbol        string  `parquet:"symbol"`
	Price         float64 `parquet:"price"`
	ChangePercent float64 `parquet:"change_percent"`
	MarketCap     float64 `parquet:"market_cap"`
	LatestDay     string  `parquet:"latest_day"`
	Status        string  `parquet:"status"`
	Extra         string  `parquet:"extra"` // JSON object, empty when none
	FetchedAt     int64   `parquet:"fetched_at,timestamp(millisecond)"` // Unix ms
}

const dateLayout = "2006-01-02"

// WriteSnapshot writes snap to <DataDir>/snapshots/<YYYY-MM-DD>.parquet.
// An empty snapshot is not archived.
func (s *ParquetStore) WriteSnapshot(_ context.Context, snap domain.Snapshot) error {
	if len(snap.Records) == 0 {
		return nil
	}

	ts := snap.FetchedAt.UnixMilli()
	rows := make([]SnapshotRecord, 0, len(snap.Records))
	for _, r := range snap.Records {
		var extra string
		if len(r.Extra) > 0 {
			b, err := json.Marshal(r.Extra)
			if err != nil {
				return fmt.Errorf("encoding extra for %s: %w", r.Symbol, err)
			}
			extra = string(b)
		}
		rows = append(rows, SnapshotRecord{
			Symbol:        r.Symbol,
			Price:         r.Price,
			ChangePercent: r.ChangePercent,
			MarketCap:     r.MarketCap,
			LatestDay:     r.LatestDay,
			Status:        r.Status,
			Extra:         extra,
			FetchedAt:     ts,
		})
	}

	date := snap.FetchedAt.Format(dateLayout)
	if err := writeParquetFile(s.snapshotPath(date), rows); err != nil {
		return fmt.Errorf("writing snapshot for %s: %w", date, err)
	}
	return nil
}

// ReadSnapshot reads the snapshot archived for date. Row order is the
// order the sheet had when it was fetched.
func (s *ParquetStore) ReadSnapshot(_ context.Context, date string) (domain.Snapshot, error) {
	if _, err := time.Parse(dateLayout, date); err != nil {
		return domain.Snapshot{}, fmt.Errorf("invalid date %q: %w", date, err)
	}

	rows, err := readParquetFile[SnapshotRecord](s.snapshotPath(date))
	if err != nil {
		if os.IsNotExist(err) {
			return domain.Snapshot{}, fmt.Errorf("snapshot %s: %w", date, ErrNotFound)
		}
		return domain.Snapshot{}, fmt.Errorf("reading snapshot %s: %w", date, err)
	}

	snap := domain.Snapshot{Records: make([]domain.StockRecord, 0, len(rows))}
	for i, r := range rows {
		if i == 0 {
			snap.FetchedAt = time.UnixMilli(r.FetchedAt)
		}
		rec := domain.StockRecord{
			Symbol:        r.Symbol,
			Price:         r.Price,
			ChangePercent: r.ChangePercent,
			MarketCap:     r.MarketCap,
			LatestDay:     r.LatestDay,
			Status:        r.Status,
		}
		if r.Extra != "" {
			// A damaged extra column loses only the extras.
			_ = json.Unmarshal([]byte(r.Extra), &rec.Extra)
		}
		snap.Records = append(snap.Records, rec)
	}
	return snap, nil
}

// ListDates lists every archived day in ascending order.
func (s *ParquetStore) ListDates(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.DataDir, "snapshots"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var dates []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".parquet") {
			continue
		}
		date := strings.TrimSuffix(name, ".parquet")
		if _, err := time.Parse(dateLayout, date); err != nil {
			continue
		}
		dates = append(dates, date)
	}
	sort.Strings(dates)
	return dates, nil
}

// snapshotPath returns the filesystem path for a day's snapshot.
// Layout: <dataDir>/snapshots/<YYYY-MM-DD>.parquet
func (s *ParquetStore) snapshotPath(date string) string {
	return filepath.Join(s.DataDir, "snapshots", date+".parquet")
}

// ---------------------------------------------------------------------------
// Parquet file helpers
// ---------------------------------------------------------------------------

// writeParquetFile writes to a temp file first so a reader never sees a
// half-written day.
func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := parquet.WriteFile(tmp, records); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func readParquetFile[T any](path string) ([]T, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	rows, err := parquet.ReadFile[T](path)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
