// Command backlab-fetch downloads historical crypto bars into the local
// Parquet cache.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"backlab/internal/config"
	"backlab/internal/fetch"
	"backlab/internal/store"
	"backlab/internal/util"
)

func main() {
	var (
		symbolsStr = flag.String("symbols", "BTC/USD", "comma-separated symbols to fetch")
		startStr   = flag.String("start", "", "start date (YYYY-MM-DD, required)")
		endStr     = flag.String("end", "", "end date (YYYY-MM-DD, default today)")
	)
	flag.Parse()

	cfg, err := config.Load(configPath())
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	util.SetDefault(util.NewLogger(cfg.Logging.Level, cfg.Logging.Format))

	if cfg.Alpaca.APIKey == "" || cfg.Alpaca.APISecret == "" {
		log.Fatal("Alpaca API credentials are required (alpaca.api_key/api_secret or APCA_API_KEY_ID/APCA_API_SECRET_KEY)")
	}
	if *startStr == "" {
		log.Fatal("-start is required")
	}
	start, err := time.Parse("2006-01-02", *startStr)
	if err != nil {
		log.Fatalf("invalid -start %q", *startStr)
	}
	end := time.Now().UTC().Truncate(24 * time.Hour)
	if *endStr != "" {
		if end, err = time.Parse("2006-01-02", *endStr); err != nil {
			log.Fatalf("invalid -end %q", *endStr)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	bars := store.NewParquetStore(cfg.Storage.DataDir)
	fetcher := fetch.NewAlpacaFetcher(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.DataURL, cfg.Fetch.RateLimitPerMin)

	for _, symbol := range strings.Split(*symbolsStr, ",") {
		symbol = strings.TrimSpace(symbol)
		if symbol == "" {
			continue
		}
		fetched, err := fetcher.FetchBars(ctx, symbol, start, end)
		if err != nil {
			log.Fatalf("fetching %s: %v", symbol, err)
		}
		if err := bars.WriteBars(ctx, symbol, fetched); err != nil {
			log.Fatalf("writing %s: %v", symbol, err)
		}
		fmt.Printf("%s: %d bars cached\n", symbol, len(fetched))
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
