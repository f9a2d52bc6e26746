package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"qqqdash/internal/app"
	"qqqdash/internal/config"
	"qqqdash/internal/httpapi"
	"qqqdash/internal/rpc"
	"qqqdash/internal/util"
)

func main() {
	// A missing .env is normal.
	_ = godotenv.Load()

	cfgPath := "config/qqqdash.yaml"
	if p := os.Getenv("QQQDASH_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	w, logFile, err := util.OpenLogFile(cfg.Logging.File, true)
	if err != nil {
		log.Fatalf("opening log file: %v", err)
	}
	if logFile != nil {
		defer logFile.Close()
	}
	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format, w)
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("initializing: %v", err)
	}
	defer a.Close()

	api := httpapi.NewServer(a.Loader, a.Archive, a.Watchlist, a.Prefs, a.Reports, logger)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	gs := grpc.NewServer()
	rpc.NewService(a.Loader, a.Watchlist, logger).RegisterGRPC(gs)
	grpcAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.GRPCPort)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		api.Run(gctx)
		return nil
	})

	g.Go(func() error {
		logger.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		lis, err := net.Listen("tcp", grpcAddr)
		if err != nil {
			return fmt.Errorf("grpc listen: %w", err)
		}
		logger.Info("gRPC server listening", "addr", grpcAddr)
		return gs.Serve(lis)
	})

	// Warm the cache so the first page view does not wait on the sheet.
	g.Go(func() error {
		if _, src, err := a.Loader.Load(gctx); err != nil {
			logger.Warn("initial load failed", "error", err)
		} else {
			logger.Info("initial load done", "source", src)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", "error", err)
		}
		gs.GracefulStop()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
