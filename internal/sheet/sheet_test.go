package sheet

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"qqqdash/internal/util"
)

const sampleCSV = `StockName,StockPrice,ChangePercent,MarketCap,LatestDay,Status
MSFT,420.50,1.25,3120000,2025-06-02,Active
AAPL,195.10,-0.50,2950000,2025-06-02,Active
OLD,1.00,0,10,2025-01-01,Delisted
`

func TestParseBasic(t *testing.T) {
	recs, stats := Parse(sampleCSV)
	if len(recs) != 3 {
		t.Fatalf("Parse returned %d records, want 3", len(recs))
	}
	if stats.Degraded() {
		t.Errorf("stats = %+v, want clean parse", stats)
	}

	msft := recs[0]
	if msft.Symbol != "MSFT" || msft.Price != 420.5 || msft.ChangePercent != 1.25 || msft.MarketCap != 3120000 {
		t.Errorf("recs[0] = %+v", msft)
	}
	if msft.LatestDay != "2025-06-02" || msft.Status != "Active" {
		t.Errorf("recs[0] strings = %q/%q", msft.LatestDay, msft.Status)
	}
	if recs[1].Symbol != "AAPL" || recs[2].Symbol != "OLD" {
		t.Errorf("order = %s,%s,%s, want MSFT,AAPL,OLD", recs[0].Symbol, recs[1].Symbol, recs[2].Symbol)
	}
}

func TestParseMalformedNumericIsZero(t *testing.T) {
	csv := "StockName,StockPrice,ChangePercent,MarketCap,Status\n" +
		"AAA,abc,N/A,,Active\n" +
		"BBB,NaN,-,#REF!,Active\n"

	recs, stats := Parse(csv)
	if len(recs) != 2 {
		t.Fatalf("Parse returned %d records, want 2", len(recs))
	}
	for _, r := range recs {
		if r.Price != 0 || r.ChangePercent != 0 || r.MarketCap != 0 {
			t.Errorf("%s numeric fields = %v/%v/%v, want all 0", r.Symbol, r.Price, r.ChangePercent, r.MarketCap)
		}
	}
	if stats.ZeroedCells != 6 {
		t.Errorf("ZeroedCells = %d, want 6", stats.ZeroedCells)
	}
}

func TestParseLenientNumbers(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"12.5", 12.5, true},
		{" -3.75 ", -3.75, true},
		{"1.5%", 1.5, true},
		{"+2", 2, true},
		{".5", 0.5, true},
		{"1e3", 1000, true},
		{"1e999", 0, false},
		{"abc", 0, false},
		{"", 0, false},
		{"Infinity", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseNumber(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("parseNumber(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestParseShortAndLongRows(t *testing.T) {
	csv := "StockName,StockPrice,LatestDay,Status\n" +
		"AAA,10\n" +
		"BBB,1,234,2025-06-02,Active\n"

	recs, stats := Parse(csv)
	if stats.ShortRows != 1 || stats.LongRows != 1 {
		t.Errorf("stats = %+v, want 1 short and 1 long", stats)
	}
	if recs[0].LatestDay != "" || recs[0].Status != "" {
		t.Errorf("short row missing fields = %q/%q, want empty", recs[0].LatestDay, recs[0].Status)
	}
	// The embedded comma shifts every column after it.
	if recs[1].Price != 1 || recs[1].LatestDay != "234" || recs[1].Status != "2025-06-02" {
		t.Errorf("long row = %+v, want shifted columns", recs[1])
	}
}

func TestParseExtrasAndHeaders(t *testing.T) {
	csv := " Symbol , Sector ,StockPrice,Status\r\nNVDA, Semis ,100,Active\r\n"
	recs, _ := Parse(csv)
	if len(recs) != 1 {
		t.Fatalf("Parse returned %d records, want 1", len(recs))
	}
	r := recs[0]
	if r.Symbol != "NVDA" {
		t.Errorf("Symbol = %q, want NVDA (Symbol alias)", r.Symbol)
	}
	if r.Extra["Sector"] != "Semis" {
		t.Errorf("Extra = %v, want Sector=Semis", r.Extra)
	}
	if r.Status != "Active" {
		t.Errorf("Status = %q, want Active (CR trimmed)", r.Status)
	}
}

func TestParseDuplicatesAndEmpty(t *testing.T) {
	recs, stats := Parse("StockName,Status\nAAA,Active\nAAA,Active\n")
	if len(recs) != 2 {
		t.Errorf("duplicates should be kept, got %d records", len(recs))
	}
	if stats.DuplicateSymbols != 1 {
		t.Errorf("DuplicateSymbols = %d, want 1", stats.DuplicateSymbols)
	}

	if recs, _ := Parse("  \n "); len(recs) != 0 {
		t.Errorf("Parse(blank) = %v, want no records", recs)
	}
	if recs, _ := Parse("StockName,Status"); len(recs) != 0 {
		t.Errorf("Parse(header only) = %v, want no records", recs)
	}
}

func TestClientFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("format") != "csv" {
			t.Errorf("format = %q, want csv", r.URL.Query().Get("format"))
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Write([]byte(sampleCSV))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/export?format=csv&gid=0", 5*time.Second, util.Discard())
	text, err := c.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if text != sampleCSV {
		t.Errorf("Fetch body mismatch: %q", text)
	}
}

func TestClientFetchHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second, util.Discard()).Fetch(context.Background())
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("error = %v, want ErrTransport", err)
	}
	var fe *FetchError
	if !errors.As(err, &fe) || fe.StatusCode != http.StatusForbidden {
		t.Errorf("FetchError = %+v, want status 403", fe)
	}
}

func TestClientFetchTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, time.Second, util.Discard()).Fetch(context.Background())
	if !errors.Is(err, ErrTransport) {
		t.Errorf("error = %v, want ErrTransport", err)
	}
}
