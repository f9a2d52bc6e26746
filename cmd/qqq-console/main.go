package main

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"qqqdash/internal/app"
	"qqqdash/internal/config"
	"qqqdash/internal/util"
)

func main() {
	_ = godotenv.Load()

	cfgPath := "config/qqqdash.yaml"
	if p := os.Getenv("QQQDASH_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}

	// The TUI owns the terminal, so logs go to a file only.
	logPath := fmt.Sprintf("/tmp/qqq-console-%s.log", time.Now().Format("2006-01-02"))
	w, logFile, err := util.OpenLogFile(logPath, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "opening log file: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()
	logger := util.NewLogger(cfg.Logging.Level, "text", w)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "initializing: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	outDir, err := os.Getwd()
	if err != nil {
		outDir = "."
	}

	m := newModel(ctx, deps{
		loader:    a.Loader,
		watchlist: a.Watchlist,
		prefs:     a.Prefs,
		reports:   a.Reports,
		log:       logger,
		outDir:    outDir,
	})

	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
