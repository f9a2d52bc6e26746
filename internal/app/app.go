// Package app wires the stores, loader, watchlist, preferences and report
// service from a Config. Every binary that runs the dashboard builds one.
package app

import (
	"context"
	"fmt"
	"log/slog"

	alpacaapi "github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"

	"qqqdash/internal/cache"
	"qqqdash/internal/config"
	"qqqdash/internal/gemini"
	"qqqdash/internal/prefs"
	"qqqdash/internal/report"
	"qqqdash/internal/sheet"
	"qqqdash/internal/store"
	"qqqdash/internal/watchlist"
)

// App holds the shared components.
type App struct {
	Config    *config.Config
	KV        *store.SQLiteStore
	Archive   *store.ParquetStore
	Loader    *cache.Loader
	Watchlist *watchlist.Store
	Prefs     *prefs.Prefs
	Reports   *report.Service
	Log       *slog.Logger
}

// New opens local storage and builds every component. Close releases the
// database.
func New(ctx context.Context, cfg *config.Config, log *slog.Logger) (*App, error) {
	kv, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("opening state database: %w", err)
	}
	archive := store.NewParquetStore(cfg.Storage.DataDir)

	fetcher := sheet.NewClient(cfg.Sheet.CSVURL(), cfg.Sheet.Timeout, log)
	loader := cache.NewLoader(fetcher, kv, log,
		cache.WithTTL(cfg.Cache.TTL),
		cache.WithArchive(archive),
	)

	var wlOpts []watchlist.Option
	if cfg.AlpacaEnabled() {
		client := alpacaapi.NewClient(alpacaapi.ClientOpts{
			APIKey:    cfg.Alpaca.APIKey,
			APISecret: cfg.Alpaca.APISecret,
			BaseURL:   cfg.Alpaca.BaseURL,
		})
		wlOpts = append(wlOpts, watchlist.WithMirror(watchlist.NewAlpacaMirror(client, cfg.Alpaca.WatchlistName, log)))
		log.Info("alpaca watchlist mirror enabled", "name", cfg.Alpaca.WatchlistName)
	}
	wl := watchlist.Open(ctx, kv, log, wlOpts...)

	var genOpts []gemini.Option
	if cfg.Gemini.RateLimitPerMin > 0 {
		genOpts = append(genOpts, gemini.WithRateLimit(cfg.Gemini.RateLimitPerMin))
	}
	gen := gemini.NewClient(cfg.Gemini.BaseURL, cfg.Gemini.Model, cfg.Gemini.Timeout, log, genOpts...)

	p := prefs.New(kv, cfg.Gemini.APIKey, log)

	log.Info("components ready",
		"sheet", cfg.Sheet.CSVURL(),
		"cache_ttl", cfg.Cache.TTL,
		"model", gen.Model(),
		"watchlist", wl.Len(),
	)

	return &App{
		Config:    cfg,
		KV:        kv,
		Archive:   archive,
		Loader:    loader,
		Watchlist: wl,
		Prefs:     p,
		Reports:   report.NewService(gen, p, log),
		Log:       log,
	}, nil
}

// Close releases the state database.
func (a *App) Close() error {
	return a.KV.Close()
}
