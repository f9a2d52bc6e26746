// Package report builds prompts for the generative API and runs the three
// report flows: single-symbol research, market summary and watchlist
// summary.
package report

import (
	"fmt"
	"strings"
	"time"

	"qqqdash/internal/dashboard"
	"qqqdash/internal/domain"
)

// Kind selects a prompt template.
type Kind int

const (
	SingleSymbolReport Kind = iota
	MarketSummary
	WatchlistSummary
)

func (k Kind) String() string {
	switch k {
	case SingleSymbolReport:
		return "symbol"
	case MarketSummary:
		return "market"
	case WatchlistSummary:
		return "watchlist"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Title is the heading shown above a report of this kind.
func (k Kind) Title() string {
	switch k {
	case SingleSymbolReport:
		return "AI 研究助理報告"
	case MarketSummary:
		return "AI 市場總結"
	case WatchlistSummary:
		return "AI 收藏總結"
	default:
		return ""
	}
}

// MoversPerSide is how many gainers and losers the market summary names.
const MoversPerSide = 5

// Context is the data a prompt is built from. Only the fields the kind
// needs are read.
type Context struct {
	Symbol    string               // SingleSymbolReport
	Date      time.Time            // all kinds that mention today
	Gainers   []domain.StockRecord // MarketSummary, best first
	Losers    []domain.StockRecord // MarketSummary, worst first
	Watchlist []domain.StockRecord // WatchlistSummary
}

// FormatDate renders t as 2025年6月2日.
func FormatDate(t time.Time) string {
	return fmt.Sprintf("%d年%d月%d日", t.Year(), int(t.Month()), t.Day())
}

// BuildPrompt returns the instruction text for kind.
func BuildPrompt(kind Kind, c Context) string {
	switch kind {
	case SingleSymbolReport:
		return symbolPrompt(c)
	case MarketSummary:
		return marketPrompt(c)
	case WatchlistSummary:
		return watchlistPrompt(c)
	default:
		return ""
	}
}

func symbolPrompt(c Context) string {
	var b strings.Builder
	fmt.Fprintf(&b, "你是一位專業的金融分析師，以嚴謹和事實為基礎。今天是 %s。", FormatDate(c.Date))
	fmt.Fprintf(&b, "請基於**截至今天為止**的、可公開驗證的最新新聞與財報資料，用繁體中文為股票 %s 生成一份不超過 300 字的摘要報告。", c.Symbol)
	b.WriteString("報告需要包含以下幾個部分，並使用 Markdown 格式化：\n")
	b.WriteString("1. ### 近期亮點 (Key Highlights)\n")
	b.WriteString("2. ### 正面因素 (Bullish Points)\n")
	b.WriteString("3. ### 潛在風險 (Bearish Points)\n")
	b.WriteString("4. ### 整體情緒 (Overall Sentiment)\n")
	b.WriteString("5. ### 資料來源 (Sources) - 請列出 2-3 個你參考的**真實、可點擊的**主要新聞 URL 連結。**請勿杜撰連結**。")
	return b.String()
}

func marketPrompt(c Context) string {
	gainers := make([]string, len(c.Gainers))
	for i, r := range c.Gainers {
		gainers[i] = fmt.Sprintf("%s (+%s%%)", r.Symbol, dashboard.FormatPercent(r.ChangePercent))
	}
	losers := make([]string, len(c.Losers))
	for i, r := range c.Losers {
		losers[i] = fmt.Sprintf("%s (%s%%)", r.Symbol, dashboard.FormatPercent(r.ChangePercent))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "你是一位專業的金融市場評論員。今天是 %s。", FormatDate(c.Date))
	b.WriteString("根據以下 Nasdaq 100 指數的當日關鍵表現數據，請用繁體中文撰寫一段約 150 字的市場總結，分析當日的市場趨勢、情緒以及可能的驅動因素。\n")
	fmt.Fprintf(&b, "- **領漲股:** %s\n", strings.Join(gainers, ", "))
	fmt.Fprintf(&b, "- **領跌股:** %s", strings.Join(losers, ", "))
	return b.String()
}

func watchlistPrompt(c Context) string {
	perf := make([]string, len(c.Watchlist))
	for i, r := range c.Watchlist {
		perf[i] = fmt.Sprintf("%s (%s)", r.Symbol, dashboard.FormatSignedPercent(r.ChangePercent))
	}
	return "你是一位專業的投資組合分析師。這是我個人收藏清單中的股票今日表現：" +
		strings.Join(perf, ", ") +
		"。請用繁體中文為我提供一段簡短的總結，點評我收藏的股票整體表現如何，並特別指出其中表現最好和最差的股票，以及是否有任何值得注意的共同趨勢。"
}
