// Package prefs stores the user-held generative API credential and the UI
// theme preference.
package prefs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"qqqdash/internal/store"
)

// ErrEmptyKey is returned when saving a blank credential.
var ErrEmptyKey = errors.New("prefs: API key must not be empty")

// Theme is the UI colour scheme.
type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
)

// ParseTheme accepts "dark" or "light" in any case.
func ParseTheme(s string) (Theme, error) {
	switch Theme(strings.ToLower(strings.TrimSpace(s))) {
	case ThemeDark:
		return ThemeDark, nil
	case ThemeLight:
		return ThemeLight, nil
	}
	return "", fmt.Errorf("unknown theme %q", s)
}

// Toggle returns the other theme.
func (t Theme) Toggle() Theme {
	if t == ThemeDark {
		return ThemeLight
	}
	return ThemeDark
}

// Prefs reads and writes preferences through a KVStore. Reads degrade to
// defaults on missing or corrupt values.
type Prefs struct {
	kv         store.KVStore
	log        *slog.Logger
	defaultKey string

	mu sync.Mutex
}

// New creates Prefs. defaultKey is used when no credential has been saved,
// typically one supplied through configuration.
func New(kv store.KVStore, defaultKey string, log *slog.Logger) *Prefs {
	if log == nil {
		log = slog.Default()
	}
	return &Prefs{kv: kv, log: log, defaultKey: strings.TrimSpace(defaultKey)}
}

// APIKey returns the saved credential, falling back to the configured one.
// The empty string means none is available.
func (p *Prefs) APIKey(ctx context.Context) string {
	var key string
	if err := store.GetJSON(ctx, p.kv, store.KeyGeminiAPIKey, &key); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			p.log.Warn("reading api key", "error", err)
		}
		return p.defaultKey
	}
	if key = strings.TrimSpace(key); key == "" {
		return p.defaultKey
	}
	return key
}

// HasAPIKey reports whether a credential is available.
func (p *Prefs) HasAPIKey(ctx context.Context) bool {
	return p.APIKey(ctx) != ""
}

// SetAPIKey trims and saves key. A blank key is rejected and nothing is
// written.
func (p *Prefs) SetAPIKey(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrEmptyKey
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return store.PutJSON(ctx, p.kv, store.KeyGeminiAPIKey, key)
}

// Theme returns the saved theme. Anything but a saved "dark" is light.
func (p *Prefs) Theme(ctx context.Context) Theme {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.themeLocked(ctx)
}

// SetTheme saves t.
func (p *Prefs) SetTheme(ctx context.Context, t Theme) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return store.PutJSON(ctx, p.kv, store.KeyTheme, string(t))
}

// ToggleTheme flips and saves the theme, returning the new one.
func (p *Prefs) ToggleTheme(ctx context.Context) (Theme, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	next := p.themeLocked(ctx).Toggle()
	if err := store.PutJSON(ctx, p.kv, store.KeyTheme, string(next)); err != nil {
		return "", err
	}
	return next, nil
}

func (p *Prefs) themeLocked(ctx context.Context) Theme {
	var s string
	if err := store.GetJSON(ctx, p.kv, store.KeyTheme, &s); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			p.log.Warn("reading theme", "error", err)
		}
		return ThemeLight
	}
	if Theme(s) == ThemeDark {
		return ThemeDark
	}
	return ThemeLight
}
