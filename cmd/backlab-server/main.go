// Command backlab-server exposes backtesting over an HTTP API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"backlab/internal/backtest"
	"backlab/internal/config"
	"backlab/internal/fetch"
	"backlab/internal/httpapi"
	"backlab/internal/optimize"
	"backlab/internal/store"
	"backlab/internal/strategy/builtins"
	"backlab/internal/util"
)

func main() {
	addr := flag.String("addr", "", "listen address (overrides config host:port)")
	flag.Parse()

	cfg, err := config.Load(configPath())
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	util.SetDefault(util.NewLogger(cfg.Logging.Level, cfg.Logging.Format))

	results, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		log.Fatalf("opening results db: %v", err)
	}
	defer results.Close()

	bars := store.NewParquetStore(cfg.Storage.DataDir)
	var fetcher fetch.BarFetcher
	if cfg.Alpaca.APIKey != "" {
		fetcher = fetch.NewAlpacaFetcher(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.DataURL, cfg.Fetch.RateLimitPerMin)
	}

	registry := builtins.Registry()
	engine := backtest.NewEngine(registry)
	api := httpapi.NewServer(
		registry,
		engine,
		optimize.NewOptimizer(engine, cfg.Optimize.MaxWorkers),
		fetch.NewLoader(bars, fetcher),
		results,
		cfg.RunConfig(),
	)

	listenAddr := *addr
	if listenAddr == "" {
		listenAddr = fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	}
	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown", "err", err)
		}
	}()

	slog.Info("backlab-server listening", "addr", listenAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
}

func configPath() string {
	if p := os.Getenv("BACKLAB_CONFIG"); p != "" {
		return p
	}
	if _, err := os.Stat("config/backlab.yaml"); err == nil {
		return "config/backlab.yaml"
	}
	return ""
}
