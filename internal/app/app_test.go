package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"qqqdash/internal/cache"
	"qqqdash/internal/config"
	"qqqdash/internal/util"
)

func testConfig(t *testing.T, sheetURL string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg, err := config.Load(filepath.Join(dir, "missing.yaml"))
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	cfg.Storage.DataDir = dir
	cfg.Storage.SQLitePath = filepath.Join(dir, "state.db")
	cfg.Sheet.URL = sheetURL
	cfg.Alpaca.APIKey = ""
	cfg.Alpaca.APISecret = ""
	return cfg
}

func TestNewLoadsAndPersists(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("StockName,StockPrice,ChangePercent,MarketCap,LatestDay,Status\nAAA,1,2,3,2025-06-02,Active\n"))
	}))
	defer srv.Close()

	ctx := context.Background()
	cfg := testConfig(t, srv.URL)

	a, err := New(ctx, cfg, util.Discard())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, src, err := a.Loader.Load(ctx); err != nil || src != cache.SourceNetwork {
		t.Fatalf("Load = %v, %v; want network", src, err)
	}
	if _, err := a.Watchlist.Toggle(ctx, "AAA"); err != nil {
		t.Fatalf("Toggle: %v", err)
	}
	dates, err := a.Archive.ListDates(ctx)
	if err != nil || len(dates) != 1 {
		t.Errorf("archived dates = %v, %v", dates, err)
	}
	a.Close()

	// A second process sees the cache and the watchlist.
	b, err := New(ctx, cfg, util.Discard())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer b.Close()
	if _, src, err := b.Loader.Load(ctx); err != nil || src != cache.SourceCache {
		t.Errorf("Load after reopen = %v, %v; want cache", src, err)
	}
	if !b.Watchlist.Contains("AAA") {
		t.Error("watchlist lost across reopen")
	}
}
