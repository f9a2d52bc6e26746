package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"qqqdash/internal/dashboard"
	"qqqdash/internal/domain"
	"qqqdash/internal/rpc"
)

const version = "0.1.0"

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: qqq-cli <command> [options]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  version    Print the CLI version\n")
	fmt.Fprintf(os.Stderr, "  view       Print one page of the constituent table\n")
	fmt.Fprintf(os.Stderr, "  toggle     Toggle a symbol on the watchlist\n")
	fmt.Fprintf(os.Stderr, "\nThe server address is read from QQQDASH_GRPC (default localhost:9090).\n")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	addr := "localhost:9090"
	if a := os.Getenv("QQQDASH_GRPC"); a != "" {
		addr = a
	}

	var err error
	switch os.Args[1] {
	case "version":
		fmt.Printf("qqq-cli %s\n", version)
		return
	case "view":
		err = runView(addr, os.Args[2:], os.Stdout)
	case "toggle":
		err = runToggle(addr, os.Args[2:], os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// parseViewArgs turns the view flags into a ViewState. Unknown view modes,
// sort keys and orders are errors.
func parseViewArgs(args []string) (domain.ViewState, error) {
	fs := flag.NewFlagSet("view", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	search := fs.String("search", "", "symbol substring filter")
	view := fs.String("view", string(domain.ViewAll), "all or watchlist")
	sort := fs.String("sort", string(domain.SortMarketCap), "symbol, price, changePercent, marketCap or latestDay")
	order := fs.String("order", string(domain.Desc), "asc or desc")
	page := fs.Int("page", 1, "page number")
	if err := fs.Parse(args); err != nil {
		return domain.ViewState{}, err
	}
	if fs.NArg() > 0 {
		return domain.ViewState{}, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	st := domain.ViewState{
		SearchTerm: strings.TrimSpace(*search),
		ViewMode:   domain.ViewMode(*view),
		SortKey:    domain.SortKey(*sort),
		SortOrder:  domain.SortOrder(*order),
		Page:       *page,
	}
	if st.ViewMode != domain.ViewAll && st.ViewMode != domain.ViewWatchlist {
		return domain.ViewState{}, fmt.Errorf("invalid -view %q: want all or watchlist", *view)
	}
	if !st.SortKey.Valid() {
		return domain.ViewState{}, fmt.Errorf("invalid -sort %q", *sort)
	}
	if st.SortOrder != domain.Asc && st.SortOrder != domain.Desc {
		return domain.ViewState{}, fmt.Errorf("invalid -order %q: want asc or desc", *order)
	}
	if st.Page < 1 {
		return domain.ViewState{}, fmt.Errorf("invalid -page %d: must be at least 1", *page)
	}
	return st, nil
}

// parseToggleArgs returns the normalized symbol of a toggle command.
func parseToggleArgs(args []string) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("toggle takes exactly one symbol")
	}
	sym := domain.NormalizeSymbol(args[0])
	if sym == "" {
		return "", fmt.Errorf("toggle takes exactly one symbol")
	}
	return sym, nil
}

func runView(addr string, args []string, out io.Writer) error {
	st, err := parseViewArgs(args)
	if err != nil {
		return err
	}

	c, err := rpc.Dial(addr)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	v, err := c.GetView(ctx, st)
	if err != nil {
		return err
	}
	printView(out, v)
	return nil
}

func printView(out io.Writer, v rpc.View) {
	fmt.Fprintf(out, "updated %s (%s)  sort %s %s  page %d/%d  %d rows\n",
		v.FetchedAt.Local().Format("2006-01-02 15:04"), v.Source,
		dashboard.SortKeyLabel(v.State.SortKey), dashboard.OrderArrow(v.State.SortOrder),
		v.Page, max(v.TotalPages, 1), v.Total,
	)
	if m := v.Metrics; m != nil {
		fmt.Fprintf(out, "top %s %s  bottom %s %s  total %s  up %d down %d\n",
			m.TopGainer.Symbol, dashboard.FormatSignedPercent(m.TopGainer.ChangePercent),
			m.TopLoser.Symbol, dashboard.FormatSignedPercent(m.TopLoser.ChangePercent),
			dashboard.FormatMarketCap(m.TotalMarketCap), m.UpCount, m.DownCount,
		)
	}
	fmt.Fprintf(out, "\n  %-8s %10s %9s %16s %-12s\n", "SYMBOL", "PRICE", "CHG%", "MKTCAP(M)", "DAY")
	for _, r := range v.Rows {
		star := " "
		if r.Watched {
			star = "*"
		}
		fmt.Fprintf(out, "%s %-8s %10s %9s %16s %-12s\n",
			star, r.Symbol,
			dashboard.FormatPrice(r.Price),
			dashboard.FormatSignedPercent(r.ChangePercent),
			dashboard.FormatInt(int(r.MarketCap)),
			r.LatestDay,
		)
	}
}

func runToggle(addr string, args []string, out io.Writer) error {
	sym, err := parseToggleArgs(args)
	if err != nil {
		return err
	}
	c, err := rpc.Dial(addr)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	watched, err := c.ToggleWatchlist(ctx, sym)
	if err != nil {
		return err
	}
	if watched {
		fmt.Fprintf(out, "%s added to watchlist\n", sym)
	} else {
		fmt.Fprintf(out, "%s removed from watchlist\n", sym)
	}
	return nil
}
