package watchlist

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync"
	"testing"

	alpacaapi "github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"

	"qqqdash/internal/store"
	"qqqdash/internal/util"
)

func TestToggleTwiceRestores(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryKV()
	store.PutJSON(ctx, kv, store.KeyWatchlist, []string{"AAPL", "MSFT"})

	s := Open(ctx, kv, util.Discard())
	before := s.Symbols()

	for _, sym := range []string{"NVDA", "AAPL"} {
		if _, err := s.Toggle(ctx, sym); err != nil {
			t.Fatalf("Toggle(%s): %v", sym, err)
		}
		if _, err := s.Toggle(ctx, sym); err != nil {
			t.Fatalf("Toggle(%s) again: %v", sym, err)
		}
		if got := s.Symbols(); !reflect.DeepEqual(got, before) {
			t.Errorf("after double toggle of %s: %v, want %v", sym, got, before)
		}
	}
}

func TestTogglePersists(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryKV()
	s := Open(ctx, kv, util.Discard())

	added, err := s.Toggle(ctx, " nvda ")
	if err != nil || !added {
		t.Fatalf("Toggle = %v, %v; want true, nil", added, err)
	}
	if !s.Contains("NVDA") {
		t.Error("Contains(NVDA) = false after toggle")
	}

	var persisted []string
	if err := store.GetJSON(ctx, kv, store.KeyWatchlist, &persisted); err != nil {
		t.Fatalf("GetJSON: %v", err)
	}
	if !reflect.DeepEqual(persisted, []string{"NVDA"}) {
		t.Errorf("persisted = %v, want [NVDA]", persisted)
	}

	// A second store over the same KV sees the change.
	if !Open(ctx, kv, util.Discard()).Contains("NVDA") {
		t.Error("reopened store lost NVDA")
	}

	added, _ = s.Toggle(ctx, "NVDA")
	if added {
		t.Error("second Toggle should remove")
	}
	if s.Len() != 0 {
		t.Errorf("Len() = %d, want 0", s.Len())
	}
}

func TestOpenCorruptStartsEmpty(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryKV()
	kv.Put(ctx, store.KeyWatchlist, "[not json")

	s := Open(ctx, kv, util.Discard())
	if s.Len() != 0 {
		t.Errorf("Len() = %d, want 0 for corrupt value", s.Len())
	}
}

func TestToggleEmptySymbol(t *testing.T) {
	s := Open(context.Background(), store.NewMemoryKV(), util.Discard())
	if _, err := s.Toggle(context.Background(), "  "); !errors.Is(err, ErrEmptySymbol) {
		t.Errorf("Toggle(blank) error = %v, want ErrEmptySymbol", err)
	}
}

func TestAddRemoveIdempotent(t *testing.T) {
	ctx := context.Background()
	s := Open(ctx, store.NewMemoryKV(), util.Discard())

	if changed, _ := s.Add(ctx, "AAPL"); !changed {
		t.Error("first Add should change the set")
	}
	if changed, _ := s.Add(ctx, "aapl"); changed {
		t.Error("second Add should be a no-op")
	}
	if changed, _ := s.Remove(ctx, "AAPL"); !changed {
		t.Error("Remove should change the set")
	}
	if changed, _ := s.Remove(ctx, "AAPL"); changed {
		t.Error("second Remove should be a no-op")
	}
}

func TestSetIsACopy(t *testing.T) {
	ctx := context.Background()
	s := Open(ctx, store.NewMemoryKV(), util.Discard())
	s.Toggle(ctx, "AAPL")

	set := s.Set()
	s.Toggle(ctx, "MSFT")
	if set.Contains("MSFT") {
		t.Error("Set() copy observed a later toggle")
	}
	if !set.Contains("AAPL") {
		t.Error("Set() copy missing AAPL")
	}
}

// failingKV fails every write.
type failingKV struct{ *store.MemoryKV }

func (failingKV) Put(context.Context, string, string) error { return errors.New("disk full") }

func TestTogglePersistFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	s := Open(ctx, failingKV{store.NewMemoryKV()}, util.Discard())

	if _, err := s.Toggle(ctx, "AAPL"); err == nil {
		t.Fatal("Toggle should fail when the store cannot persist")
	}
	if s.Contains("AAPL") {
		t.Error("failed Toggle left AAPL in the set")
	}
}

type fakeMirror struct {
	mu      sync.Mutex
	calls   []string
	failing bool
}

func (m *fakeMirror) Add(sym string) error    { return m.record("+" + sym) }
func (m *fakeMirror) Remove(sym string) error { return m.record("-" + sym) }

func (m *fakeMirror) record(c string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, c)
	if m.failing {
		return errors.New("remote down")
	}
	return nil
}

func TestMirrorReceivesChanges(t *testing.T) {
	ctx := context.Background()
	m := &fakeMirror{failing: true}
	s := Open(ctx, store.NewMemoryKV(), util.Discard(), WithMirror(m))

	s.Toggle(ctx, "AAPL")
	s.Toggle(ctx, "AAPL")
	s.Add(ctx, "MSFT")
	s.Add(ctx, "MSFT") // no change, no mirror call

	want := []string{"+AAPL", "-AAPL", "+MSFT"}
	if !reflect.DeepEqual(m.calls, want) {
		t.Errorf("mirror calls = %v, want %v", m.calls, want)
	}
	// Mirror failures never roll back the local set.
	if !s.Contains("MSFT") {
		t.Error("local set lost MSFT after mirror failure")
	}
}

func TestSubscribe(t *testing.T) {
	ctx := context.Background()
	s := Open(ctx, store.NewMemoryKV(), util.Discard())
	id, ch := s.Subscribe(4)

	s.Toggle(ctx, "AAPL")
	ev := <-ch
	if ev.Type != "add" || ev.Symbol != "AAPL" || !reflect.DeepEqual(ev.Symbols, []string{"AAPL"}) {
		t.Errorf("event = %+v, want add AAPL", ev)
	}

	s.Toggle(ctx, "AAPL")
	if ev := <-ch; ev.Type != "remove" || len(ev.Symbols) != 0 {
		t.Errorf("event = %+v, want remove with empty set", ev)
	}

	s.Unsubscribe(id)
	if _, ok := <-ch; ok {
		t.Error("channel should be closed after Unsubscribe")
	}
}

func TestAlpacaMirror(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.Method+" "+r.URL.Path)
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/watchlists"):
			json.NewEncoder(w).Encode([]map[string]any{{"id": "other", "name": "swing"}})
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/watchlists"):
			json.NewEncoder(w).Encode(map[string]any{"id": "wl-1", "name": "qqqdash"})
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/watchlists/wl-1"):
			json.NewEncoder(w).Encode(map[string]any{"id": "wl-1", "name": "qqqdash",
				"assets": []map[string]any{{"symbol": "AAPL"}}})
		case r.Method == http.MethodDelete && strings.HasSuffix(r.URL.Path, "/watchlists/wl-1/AAPL"):
			w.WriteHeader(http.StatusNoContent)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	client := alpacaapi.NewClient(alpacaapi.ClientOpts{
		APIKey:    "key",
		APISecret: "secret",
		BaseURL:   srv.URL,
	})
	m := NewAlpacaMirror(client, "qqqdash", util.Discard())

	if err := m.Add("AAPL"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := m.Remove("AAPL"); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	// Lookup and creation happen once; the id is reused afterwards.
	want := []string{
		"GET /v2/watchlists",
		"POST /v2/watchlists",
		"POST /v2/watchlists/wl-1",
		"DELETE /v2/watchlists/wl-1/AAPL",
	}
	if !reflect.DeepEqual(seen, want) {
		t.Errorf("requests = %v, want %v", seen, want)
	}
}
