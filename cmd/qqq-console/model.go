package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"qqqdash/internal/cache"
	"qqqdash/internal/dashboard"
	"qqqdash/internal/domain"
	"qqqdash/internal/gemini"
	"qqqdash/internal/prefs"
	"qqqdash/internal/report"
	"qqqdash/internal/watchlist"
)

// styles is one colour scheme.
type styles struct {
	header    lipgloss.Style
	footer    lipgloss.Style
	colHeader lipgloss.Style
	symbol    lipgloss.Style
	watched   lipgloss.Style
	gain      lipgloss.Style
	loss      lipgloss.Style
	dim       lipgloss.Style
	errText   lipgloss.Style
	title     lipgloss.Style
	highlight lipgloss.Color
}

func newStyles(t prefs.Theme) styles {
	if t == prefs.ThemeDark {
		return styles{
			header:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("4")),
			footer:    lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Background(lipgloss.Color("8")),
			colHeader: lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
			symbol:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("75")),
			watched:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214")),
			gain:      lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
			loss:      lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
			dim:       lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
			errText:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
			title:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14")),
			highlight: lipgloss.Color("236"),
		}
	}
	return styles{
		header:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("6")),
		footer:    lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("7")),
		colHeader: lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		symbol:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("4")),
		watched:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("208")),
		gain:      lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		loss:      lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
		dim:       lipgloss.NewStyle().Foreground(lipgloss.Color("242")),
		errText:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("1")),
		title:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("5")),
		highlight: lipgloss.Color("254"),
	}
}

// Messages.
type (
	snapshotMsg struct {
		snap   domain.Snapshot
		source cache.Source
		err    error
	}
	reportMsg struct {
		kind report.Kind
		rep  report.Report
		err  error
	}
	toggleMsg struct {
		symbol  string
		watched bool
		err     error
	}
	themeMsg struct {
		theme prefs.Theme
		err   error
	}
	savedMsg struct {
		path string
		err  error
	}
)

// deps are the components the console drives.
type deps struct {
	loader    *cache.Loader
	watchlist *watchlist.Store
	prefs     *prefs.Prefs
	reports   *report.Service
	log       *slog.Logger
	outDir    string // where "d" writes reports
	now       func() time.Time
}

type model struct {
	ctx context.Context
	d   deps

	snap    domain.Snapshot
	source  cache.Source
	loaded  bool
	loading bool
	loadErr error

	state    domain.ViewState
	board    dashboard.Board
	selected int

	searching bool
	search    textinput.Model

	theme  prefs.Theme
	styles styles

	pending map[report.Kind]bool
	report  *report.Report
	rview   viewport.Model
	status  string

	width, height int
}

func newModel(ctx context.Context, d deps) model {
	ti := textinput.New()
	ti.Placeholder = "symbol"
	ti.Prompt = "/ "
	ti.CharLimit = 16

	if d.now == nil {
		d.now = time.Now
	}
	theme := d.prefs.Theme(ctx)
	return model{
		ctx:     ctx,
		d:       d,
		state:   domain.DefaultViewState(),
		search:  ti,
		theme:   theme,
		styles:  newStyles(theme),
		pending: make(map[report.Kind]bool),
		loading: true,
		rview:   viewport.New(80, 20),
	}
}

func (m model) Init() tea.Cmd {
	return m.loadCmd()
}

func (m model) loadCmd() tea.Cmd {
	ctx, loader := m.ctx, m.d.loader
	return func() tea.Msg {
		snap, src, err := loader.Load(ctx)
		return snapshotMsg{snap: snap, source: src, err: err}
	}
}

// refresh recomputes the board from the current snapshot and state and
// keeps the selection on the page.
func (m *model) refresh() {
	m.board = dashboard.BuildBoard(m.snap, m.d.watchlist.Set(), m.state)
	m.state = m.board.Page.State
	if m.selected >= len(m.board.Page.Rows) {
		m.selected = len(m.board.Page.Rows) - 1
	}
	if m.selected < 0 {
		m.selected = 0
	}
}

func (m *model) setState(st domain.ViewState) {
	if st.Page != m.state.Page || st.SortKey != m.state.SortKey || st.SortOrder != m.state.SortOrder {
		m.selected = 0
	}
	m.state = st
	m.refresh()
}

func (m model) selectedSymbol() string {
	rows := m.board.Page.Rows
	if m.selected < 0 || m.selected >= len(rows) {
		return ""
	}
	return rows[m.selected].Symbol
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.rview.Width = msg.Width
		m.rview.Height = max(msg.Height-4, 1)
		return m, nil

	case snapshotMsg:
		m.loading = false
		if msg.err != nil {
			// Keep showing the previous snapshot, if any.
			m.loadErr = msg.err
			m.d.log.Error("loading snapshot", "error", msg.err)
			return m, nil
		}
		m.loadErr = nil
		m.loaded = true
		m.snap, m.source = msg.snap, msg.source
		m.refresh()
		return m, nil

	case toggleMsg:
		if msg.err != nil {
			m.status = "watchlist update failed: " + msg.err.Error()
		}
		m.refresh()
		return m, nil

	case reportMsg:
		delete(m.pending, msg.kind)
		if msg.err != nil {
			m.status = reportErrorText(msg.err)
			return m, nil
		}
		rep := msg.rep
		m.report = &rep
		m.status = ""
		m.rview.SetContent(m.styles.title.Render(rep.Title) + "\n\n" + rep.Markdown)
		m.rview.GotoTop()
		return m, nil

	case themeMsg:
		if msg.err != nil {
			m.status = "saving theme failed: " + msg.err.Error()
			return m, nil
		}
		m.theme = msg.theme
		m.styles = newStyles(msg.theme)
		return m, nil

	case savedMsg:
		if msg.err != nil {
			m.status = "saving report failed: " + msg.err.Error()
		} else {
			m.status = "saved " + msg.path
		}
		return m, nil

	case tea.KeyMsg:
		if m.searching {
			return m.updateSearch(msg)
		}
		if m.report != nil {
			return m.updateReport(msg)
		}
		return m.updateTable(msg)
	}
	return m, nil
}

func (m model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.searching = false
		m.search.Blur()
		return m, nil
	case "esc":
		m.searching = false
		m.search.Blur()
		m.search.SetValue("")
		m.setState(m.state.WithSearch(""))
		return m, nil
	}
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	m.setState(m.state.WithSearch(m.search.Value()))
	return m, cmd
}

func (m model) updateReport(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.report = nil
		return m, nil
	case "q", "ctrl+c":
		return m, tea.Quit
	case "d":
		return m, m.saveCmd()
	}
	var cmd tea.Cmd
	m.rview, cmd = m.rview.Update(msg)
	return m, cmd
}

func (m model) updateTable(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "/":
		m.searching = true
		m.search.SetValue(m.state.SearchTerm)
		m.search.CursorEnd()
		cmd := m.search.Focus()
		return m, cmd
	case "s":
		m.setState(m.state.NextSortKey())
	case "o":
		m.setState(m.state.WithOrder(m.state.SortOrder.Flip()))
	case "w":
		m.setState(m.state.ToggleViewMode())
	case "up", "k":
		if m.selected > 0 {
			m.selected--
		}
	case "down", "j":
		if m.selected < len(m.board.Page.Rows)-1 {
			m.selected++
		}
	case "left":
		m.setState(m.state.PrevPage())
	case "right":
		m.setState(m.state.NextPage(m.board.Page.Total))
	case "ctrl+r":
		m.loading = true
		return m, m.loadCmd()
	case " ":
		if sym := m.selectedSymbol(); sym != "" {
			return m, m.toggleCmd(sym)
		}
	case "r":
		if sym := m.selectedSymbol(); sym != "" {
			return m.startReport(report.SingleSymbolReport, sym)
		}
	case "m":
		return m.startReport(report.MarketSummary, "")
	case "l":
		return m.startReport(report.WatchlistSummary, "")
	case "d":
		return m, m.saveCmd()
	case "t":
		return m, m.themeCmd()
	}
	return m, nil
}

func (m model) toggleCmd(sym string) tea.Cmd {
	ctx, wl := m.ctx, m.d.watchlist
	return func() tea.Msg {
		watched, err := wl.Toggle(ctx, sym)
		return toggleMsg{symbol: sym, watched: watched, err: err}
	}
}

// startReport launches a report unless one of the same kind is running.
func (m model) startReport(kind report.Kind, symbol string) (tea.Model, tea.Cmd) {
	if m.pending[kind] {
		m.status = "already generating " + kind.Title()
		return m, nil
	}
	if !m.loaded && kind != report.SingleSymbolReport {
		m.status = "no data loaded"
		return m, nil
	}
	m.pending[kind] = true
	m.status = "generating " + kind.Title() + "..."

	ctx, svc := m.ctx, m.d.reports
	snap, wl := m.snap, m.d.watchlist.Set()
	return m, func() tea.Msg {
		var (
			rep report.Report
			err error
		)
		switch kind {
		case report.SingleSymbolReport:
			rep, err = svc.SymbolReport(ctx, symbol)
		case report.MarketSummary:
			rep, err = svc.MarketSummary(ctx, snap.Active())
		case report.WatchlistSummary:
			rep, err = svc.WatchlistSummary(ctx, snap.Records, wl)
		}
		return reportMsg{kind: kind, rep: rep, err: err}
	}
}

func (m model) saveCmd() tea.Cmd {
	svc, dir, now := m.d.reports, m.d.outDir, m.d.now
	return func() tea.Msg {
		rep, ok := svc.LastSymbolReport()
		if !ok {
			return savedMsg{err: errors.New("no symbol report yet")}
		}
		path := filepath.Join(dir, rep.Filename(now()))
		if err := os.WriteFile(path, []byte(rep.Markdown), 0o644); err != nil {
			return savedMsg{err: err}
		}
		return savedMsg{path: path}
	}
}

func (m model) themeCmd() tea.Cmd {
	ctx, p := m.ctx, m.d.prefs
	return func() tea.Msg {
		t, err := p.ToggleTheme(ctx)
		return themeMsg{theme: t, err: err}
	}
}

func reportErrorText(err error) string {
	switch {
	case errors.Is(err, gemini.ErrAuth):
		return "AI API key is invalid or missing (set GEMINI_API_KEY or save one from the web settings)"
	case errors.Is(err, report.ErrEmptyWatchlist):
		return "watchlist is empty"
	case errors.Is(err, report.ErrInFlight):
		return "a report of this kind is already running"
	default:
		return "report failed: " + err.Error()
	}
}

// ---------------------------------------------------------------------------
// View
// ---------------------------------------------------------------------------

func (m model) View() string {
	if m.report != nil {
		header := m.styles.header.Render(padOrTrunc(" "+m.report.Title+"  "+m.report.Symbol, m.width))
		footer := m.styles.footer.Render(padOrTrunc(" esc close  d save .md  up/dn scroll", m.width))
		return header + "\n" + m.rview.View() + "\n" + m.statusLine() + "\n" + footer
	}

	var b strings.Builder
	b.WriteString(m.headerBar())
	b.WriteString("\n")
	if m.searching {
		b.WriteString(m.search.View())
		b.WriteString("\n")
	}
	m.renderMetrics(&b)
	m.renderTable(&b)
	b.WriteString(m.statusLine())
	b.WriteString("\n")
	footer := " q quit  / search  s sort  o order  w view  space watch  r report  m market  l watchlist  d save  t theme"
	b.WriteString(m.styles.footer.Render(padOrTrunc(footer, m.width)))
	return b.String()
}

func (m model) headerBar() string {
	updated := "never"
	if !m.snap.FetchedAt.IsZero() {
		updated = m.snap.FetchedAt.Local().Format("2006-01-02 15:04")
	}
	text := fmt.Sprintf(" NASDAQ-100  updated %s (%s)    view: %s    sort: %s %s    page %d/%d ",
		updated, m.source, m.state.ViewMode,
		dashboard.SortKeyLabel(m.state.SortKey), dashboard.OrderArrow(m.state.SortOrder),
		m.board.Page.Page, max(m.board.Page.TotalPages, 1),
	)
	if m.loading {
		text += "  loading..."
	}
	return m.styles.header.Render(padOrTrunc(text, m.width))
}

func (m model) renderMetrics(b *strings.Builder) {
	if m.loadErr != nil {
		b.WriteString(m.styles.errText.Render("load failed: " + m.loadErr.Error()))
		b.WriteString("\n")
	}
	mt := m.board.Metrics
	if mt == nil {
		b.WriteString(m.styles.dim.Render(" no active records"))
		b.WriteString("\n\n")
		return
	}
	fmt.Fprintf(b, " top %s %s   bottom %s %s   total %s   up %d  down %d\n",
		m.styles.symbol.Render(mt.TopGainer.Symbol), m.styles.gain.Render(dashboard.FormatSignedPercent(mt.TopGainer.ChangePercent)),
		m.styles.symbol.Render(mt.TopLoser.Symbol), m.styles.loss.Render(dashboard.FormatSignedPercent(mt.TopLoser.ChangePercent)),
		dashboard.FormatMarketCap(mt.TotalMarketCap), mt.UpCount, mt.DownCount,
	)

	parts := make([]string, 0, len(m.board.Chart))
	for _, s := range m.board.Chart {
		parts = append(parts, fmt.Sprintf("%s %.1f%%", s.Label, s.Share*100))
	}
	b.WriteString(m.styles.dim.Render(" cap: " + strings.Join(parts, "  ")))
	b.WriteString("\n\n")
}

func (m model) renderTable(b *strings.Builder) {
	b.WriteString(m.styles.colHeader.Render(fmt.Sprintf("   %-8s %10s %9s %16s %-12s", "SYMBOL", "PRICE", "CHG%", "MKTCAP(M)", "DAY")))
	b.WriteString("\n")

	rows := m.board.Page.Rows
	if len(rows) == 0 {
		msg := " no matching symbols"
		if m.state.ViewMode == domain.ViewWatchlist {
			msg = " watchlist is empty"
		}
		b.WriteString(m.styles.dim.Render(msg))
		b.WriteString("\n")
	}

	wl := m.d.watchlist.Set()
	for i, r := range rows {
		hl := i == m.selected
		bg := func(s lipgloss.Style) lipgloss.Style {
			if hl {
				return s.Background(m.styles.highlight)
			}
			return s
		}

		star := "  "
		symStyle := m.styles.symbol
		if wl.Contains(r.Symbol) {
			star = "★ "
			symStyle = m.styles.watched
		}
		chgStyle := lipgloss.NewStyle()
		switch {
		case r.ChangePercent > 0:
			chgStyle = m.styles.gain
		case r.ChangePercent < 0:
			chgStyle = m.styles.loss
		}

		b.WriteString(bg(lipgloss.NewStyle()).Render(" " + star))
		b.WriteString(bg(symStyle).Render(fmt.Sprintf("%-8s", r.Symbol)))
		b.WriteString(bg(lipgloss.NewStyle()).Render(fmt.Sprintf(" %10s", dashboard.FormatPrice(r.Price))))
		b.WriteString(bg(chgStyle).Render(fmt.Sprintf(" %9s", dashboard.FormatSignedPercent(r.ChangePercent))))
		b.WriteString(bg(lipgloss.NewStyle()).Render(fmt.Sprintf(" %16s", dashboard.FormatInt(int(r.MarketCap)))))
		b.WriteString(bg(m.styles.dim).Render(fmt.Sprintf(" %-12s", r.LatestDay)))
		b.WriteString("\n")
	}
}

func (m model) statusLine() string {
	if m.status == "" {
		return ""
	}
	return m.styles.dim.Render(" " + m.status)
}

// padOrTrunc pads s with spaces or truncates it to exactly width runes.
func padOrTrunc(s string, width int) string {
	if width <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) >= width {
		return string(r[:width])
	}
	return s + strings.Repeat(" ", width-len(r))
}
