package dashboard

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"qqqdash/internal/domain"
)

// FormatInt formats an integer with comma separators.
func FormatInt(n int) string {
	if n < 0 {
		return "-" + FormatInt(-n)
	}
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	start := len(s) % 3
	if start > 0 {
		b.WriteString(s[:start])
	}
	for i := start; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// FormatPrice formats a price with two decimals, or "N/A" when not a number.
func FormatPrice(p float64) string {
	if math.IsNaN(p) {
		return "N/A"
	}
	return fmt.Sprintf("%.2f", p)
}

// FormatPercent formats a percentage value with two decimals and no sign
// prefix beyond the minus of a negative value.
func FormatPercent(p float64) string {
	if math.IsNaN(p) {
		return "N/A"
	}
	return fmt.Sprintf("%.2f", p)
}

// FormatSignedPercent is FormatPercent with a "+" for positive values and a
// trailing "%".
func FormatSignedPercent(p float64) string {
	if math.IsNaN(p) {
		return "N/A"
	}
	sign := ""
	if p > 0 {
		sign = "+"
	}
	return sign + FormatPercent(p) + "%"
}

// FormatMarketCap converts millions of USD to trillions, e.g. 3120000 ->
// "3.12T USD".
func FormatMarketCap(millions float64) string {
	if math.IsNaN(millions) || math.IsInf(millions, 0) {
		return "N/A"
	}
	t := decimal.NewFromFloat(millions).Div(decimal.NewFromInt(1_000_000))
	return t.StringFixed(2) + "T USD"
}

// SortKeyLabel returns a short column label for a sort key.
func SortKeyLabel(k domain.SortKey) string {
	switch k {
	case domain.SortSymbol:
		return "SYMBOL"
	case domain.SortPrice:
		return "PRICE"
	case domain.SortChangePercent:
		return "CHG%"
	case domain.SortMarketCap:
		return "MKTCAP"
	case domain.SortLatestDay:
		return "DAY"
	default:
		return "?"
	}
}

// OrderArrow returns an arrow for the sort direction.
func OrderArrow(o domain.SortOrder) string {
	if o == domain.Asc {
		return "▲"
	}
	return "▼"
}
