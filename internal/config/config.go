package config

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for qqqdash.
type Config struct {
	Storage Storage `yaml:"storage"`
	Server  Server  `yaml:"server"`
	Sheet   Sheet   `yaml:"sheet"`
	Cache   Cache   `yaml:"cache"`
	Gemini  Gemini  `yaml:"gemini"`
	Alpaca  Alpaca  `yaml:"alpaca"`
	Logging Logging `yaml:"logging"`
}

// Storage holds paths for local persistence.
type Storage struct {
	DataDir    string `yaml:"data_dir"`    // parquet snapshot archive root
	SQLitePath string `yaml:"sqlite_path"` // key/value state (cache, watchlist, prefs)
}

// Server holds network listener configuration.
type Server struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	GRPCPort int    `yaml:"grpc_port"`
}

// Sheet locates the Google Sheet CSV export.
type Sheet struct {
	ID      string        `yaml:"id"`
	GID     string        `yaml:"gid"`
	URL     string        `yaml:"url"` // overrides ID/GID when set
	Timeout time.Duration `yaml:"timeout"`
}

// Cache configures the snapshot cache policy.
type Cache struct {
	TTL time.Duration `yaml:"ttl"`
}

// Gemini configures the generative text API.
type Gemini struct {
	APIKey          string        `yaml:"api_key"`
	BaseURL         string        `yaml:"base_url"`
	Model           string        `yaml:"model"`
	Timeout         time.Duration `yaml:"timeout"`
	RateLimitPerMin int           `yaml:"rate_limit_per_min"`
}

// Alpaca holds credentials for mirroring the watchlist to an Alpaca
// account. Mirroring is off unless both key and secret are set.
type Alpaca struct {
	APIKey        string `yaml:"api_key"`
	APISecret     string `yaml:"api_secret"`
	BaseURL       string `yaml:"base_url"`
	WatchlistName string `yaml:"watchlist_name"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// Defaults for fields left unset.
const (
	DefaultSheetID      = "1dSCzQ0ZEHFdu58l2kSrKkz2xo6aVVM2lBoWLzZuwVmY"
	DefaultSheetGID     = "0"
	DefaultGeminiURL    = "https://generativelanguage.googleapis.com/v1beta"
	DefaultGeminiModel  = "gemini-2.5-flash"
	DefaultCacheTTL     = 4 * time.Hour
	DefaultWatchlistTag = "qqqdash"
)

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at the given path, fills in
// defaults, and then applies environment variable overrides. A missing
// file is not an error: defaults and environment still apply.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	applyDefaults(cfg)
	applyEnvOverrides(cfg)

	return cfg, nil
}

// CSVURL returns the export URL for the configured sheet.
func (s Sheet) CSVURL() string {
	if s.URL != "" {
		return s.URL
	}
	return "https://docs.google.com/spreadsheets/d/" + s.ID + "/export?format=csv&gid=" + s.GID
}

// AlpacaEnabled reports whether watchlist mirroring is configured.
func (c *Config) AlpacaEnabled() bool {
	return c.Alpaca.APIKey != "" && c.Alpaca.APISecret != ""
}

func applyDefaults(cfg *Config) {
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = "data"
	}
	if cfg.Storage.SQLitePath == "" {
		cfg.Storage.SQLitePath = "data/qqqdash.db"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.GRPCPort == 0 {
		cfg.Server.GRPCPort = 9090
	}
	if cfg.Sheet.ID == "" {
		cfg.Sheet.ID = DefaultSheetID
	}
	if cfg.Sheet.GID == "" {
		cfg.Sheet.GID = DefaultSheetGID
	}
	if cfg.Sheet.Timeout == 0 {
		cfg.Sheet.Timeout = 30 * time.Second
	}
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = DefaultCacheTTL
	}
	if cfg.Gemini.BaseURL == "" {
		cfg.Gemini.BaseURL = DefaultGeminiURL
	}
	if cfg.Gemini.Model == "" {
		cfg.Gemini.Model = DefaultGeminiModel
	}
	if cfg.Gemini.Timeout == 0 {
		cfg.Gemini.Timeout = 60 * time.Second
	}
	if cfg.Alpaca.WatchlistName == "" {
		cfg.Alpaca.WatchlistName = DefaultWatchlistTag
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}

	if v := os.Getenv("SHEET_ID"); v != "" {
		cfg.Sheet.ID = v
	}
	if v := os.Getenv("SHEET_GID"); v != "" {
		cfg.Sheet.GID = v
	}
	if v := os.Getenv("SHEET_URL"); v != "" {
		cfg.Sheet.URL = v
	}

	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.Gemini.APIKey = v
	}
	if v := os.Getenv("GEMINI_MODEL"); v != "" {
		cfg.Gemini.Model = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Standard Alpaca env vars, same names the SDK reads.
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}
