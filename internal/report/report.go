package report

import (
	"html"
	"regexp"
	"strings"
	"time"
)

// Report is one generated text.
type Report struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"-"`
	KindName  string    `json:"kind"`
	Title     string    `json:"title"`
	Symbol    string    `json:"symbol,omitempty"`
	Markdown  string    `json:"markdown"`
	CreatedAt time.Time `json:"createdAt"`
}

// Filename is the download name for the report on day t:
// SYMBOL_AI_Report_YYYYMMDD.md, with "report" when there is no symbol.
func (r Report) Filename(t time.Time) string {
	name := r.Symbol
	if name == "" {
		name = "report"
	}
	return name + "_AI_Report_" + t.Format("20060102") + ".md"
}

// HTML renders the report for display. Symbol reports get headings and
// links; summaries only get line breaks.
func (r Report) HTML() string {
	if r.Kind == SingleSymbolReport {
		return RenderHTML(r.Markdown)
	}
	return strings.ReplaceAll(html.EscapeString(r.Markdown), "\n", "<br>")
}

var (
	headingRe = regexp.MustCompile(`### (.*?)\n`)
	urlRe     = regexp.MustCompile(`(https?://[^\s<]+)`)
)

// RenderHTML turns "### x" lines into <h3>, bare URLs into links and the
// remaining newlines into <br>. The text is HTML-escaped first.
func RenderHTML(markdown string) string {
	s := html.EscapeString(markdown)
	s = headingRe.ReplaceAllString(s, "<h3>$1</h3>")
	s = urlRe.ReplaceAllString(s, `<a href="$1" target="_blank" rel="noopener noreferrer">$1</a>`)
	return strings.ReplaceAll(s, "\n", "<br>")
}
