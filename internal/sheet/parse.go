package sheet

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"qqqdash/internal/domain"
)

// Header names in the sheet.
const (
	ColSymbol        = "StockName"
	ColSymbolAlt     = "Symbol"
	ColPrice         = "StockPrice"
	ColChangePercent = "ChangePercent"
	ColMarketCap     = "MarketCap"
	ColLatestDay     = "LatestDay"
	ColStatus        = "Status"
)

// ParseStats flags rows and cells that did not fit the expected shape.
// None of these make Parse fail.
type ParseStats struct {
	Rows             int // records produced
	ZeroedCells      int // numeric cells with no parsable number, set to 0
	ShortRows        int // rows with fewer values than headers
	LongRows         int // rows with more values than headers; usually an embedded comma
	DuplicateSymbols int // symbols seen more than once
}

// Degraded reports whether anything was coerced or flagged.
func (s ParseStats) Degraded() bool {
	return s.ZeroedCells > 0 || s.ShortRows > 0 || s.LongRows > 0 || s.DuplicateSymbols > 0
}

// leadingNumber matches the numeric prefix a lenient float parse accepts,
// so "1.5%" reads as 1.5.
var leadingNumber = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)

// Parse converts CSV text into records, one per non-header line, in input
// order. Lines are split on "," with no quoting support: a value holding a
// comma shifts the columns after it, and the row is counted in LongRows.
func Parse(text string) ([]domain.StockRecord, ParseStats) {
	var stats ParseStats

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, stats
	}

	lines := strings.Split(text, "\n")
	headers := strings.Split(lines[0], ",")
	for i := range headers {
		headers[i] = strings.TrimSpace(headers[i])
	}

	records := make([]domain.StockRecord, 0, len(lines)-1)
	seen := make(map[string]bool, len(lines)-1)

	for _, line := range lines[1:] {
		values := strings.Split(line, ",")
		switch {
		case len(values) < len(headers):
			stats.ShortRows++
		case len(values) > len(headers):
			stats.LongRows++
		}

		var rec domain.StockRecord
		for i, key := range headers {
			var value string
			if i < len(values) {
				value = strings.TrimSpace(values[i])
			}

			switch key {
			case ColPrice, ColChangePercent, ColMarketCap:
				n, ok := parseNumber(value)
				if !ok {
					stats.ZeroedCells++
				}
				switch key {
				case ColPrice:
					rec.Price = n
				case ColChangePercent:
					rec.ChangePercent = n
				default:
					rec.MarketCap = n
				}
			case ColSymbol, ColSymbolAlt:
				if rec.Symbol == "" {
					rec.Symbol = value
				}
			case ColLatestDay:
				rec.LatestDay = value
			case ColStatus:
				rec.Status = value
			default:
				if key == "" {
					continue
				}
				if rec.Extra == nil {
					rec.Extra = make(map[string]string)
				}
				rec.Extra[key] = value
			}
		}

		if rec.Symbol != "" {
			if seen[rec.Symbol] {
				stats.DuplicateSymbols++
			}
			seen[rec.Symbol] = true
		}
		records = append(records, rec)
	}

	stats.Rows = len(records)
	return records, stats
}

// parseNumber reads the leading number of s, ignoring surrounding space.
// Anything without one, and any non-finite result, is 0 with ok false.
func parseNumber(s string) (float64, bool) {
	m := leadingNumber.FindString(strings.TrimSpace(s))
	if m == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
