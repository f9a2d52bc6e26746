package dashboard

import (
	"math"
	"testing"

	"qqqdash/internal/domain"
)

func TestFormatInt(t *testing.T) {
	tests := []struct {
		in   int
		want string
	}{
		{0, "0"}, {999, "999"}, {1000, "1,000"}, {1234567, "1,234,567"}, {-45000, "-45,000"},
	}
	for _, tt := range tests {
		if got := FormatInt(tt.in); got != tt.want {
			t.Errorf("FormatInt(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatPriceAndPercent(t *testing.T) {
	if got := FormatPrice(195.1); got != "195.10" {
		t.Errorf("FormatPrice = %q, want 195.10", got)
	}
	if got := FormatPrice(math.NaN()); got != "N/A" {
		t.Errorf("FormatPrice(NaN) = %q, want N/A", got)
	}
	if got := FormatPercent(-0.5); got != "-0.50" {
		t.Errorf("FormatPercent = %q, want -0.50", got)
	}
	tests := []struct {
		in   float64
		want string
	}{
		{1.25, "+1.25%"}, {-3, "-3.00%"}, {0, "0.00%"},
	}
	for _, tt := range tests {
		if got := FormatSignedPercent(tt.in); got != tt.want {
			t.Errorf("FormatSignedPercent(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatMarketCap(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{3120000, "3.12T USD"},
		{25500000, "25.50T USD"},
		{0, "0.00T USD"},
		{math.NaN(), "N/A"},
	}
	for _, tt := range tests {
		if got := FormatMarketCap(tt.in); got != tt.want {
			t.Errorf("FormatMarketCap(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSortKeyLabel(t *testing.T) {
	for _, k := range domain.SortKeys {
		if SortKeyLabel(k) == "?" {
			t.Errorf("SortKeyLabel(%s) has no label", k)
		}
	}
	if OrderArrow(domain.Asc) == OrderArrow(domain.Desc) {
		t.Error("arrows should differ by direction")
	}
}
