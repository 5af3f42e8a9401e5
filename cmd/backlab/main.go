// Command backlab runs a single backtest from the command line and prints a
// performance report.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"backlab/internal/backtest"
	"backlab/internal/config"
	"backlab/internal/fetch"
	"backlab/internal/store"
	"backlab/internal/strategy"
	"backlab/internal/strategy/builtins"
	"backlab/internal/util"
)

func main() {
	var (
		strategyName = flag.String("strategy", "sma-cross", "strategy to run (see -list)")
		symbol       = flag.String("symbol", "BTC/USD", "symbol to backtest")
		startStr     = flag.String("start", "", "start date (YYYY-MM-DD, required)")
		endStr       = flag.String("end", "", "end date (YYYY-MM-DD, default today)")
		paramsStr    = flag.String("params", "", "strategy parameters, e.g. fast_period=10,slow_period=50")
		tradesOut    = flag.String("trades-csv", "", "write the trade log to this CSV file")
		equityOut    = flag.String("equity-csv", "", "write the equity curve to this CSV file")
		save         = flag.Bool("save", true, "persist the run to the results database")
		list         = flag.Bool("list", false, "list available strategies and exit")
	)
	flag.Parse()

	cfg, err := config.Load(configPath())
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	util.SetDefault(util.NewLogger(cfg.Logging.Level, cfg.Logging.Format))

	registry := builtins.Registry()
	if *list {
		for _, name := range registry.List() {
			fmt.Println(name)
		}
		return
	}

	start, end, err := parseDates(*startStr, *endStr)
	if err != nil {
		log.Fatalf("%v", err)
	}
	params, err := parseParams(*paramsStr)
	if err != nil {
		log.Fatalf("invalid -params: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	bars := store.NewParquetStore(cfg.Storage.DataDir)
	var fetcher fetch.BarFetcher
	if cfg.Alpaca.APIKey != "" {
		fetcher = fetch.NewAlpacaFetcher(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.DataURL, cfg.Fetch.RateLimitPerMin)
	}
	loader := fetch.NewLoader(bars, fetcher)

	series, err := loader.Load(ctx, *symbol, start, end)
	if err != nil {
		log.Fatalf("loading bars: %v", err)
	}

	engine := backtest.NewEngine(registry)
	res, err := engine.Run(*strategyName, *symbol, series, params, cfg.RunConfig())
	if err != nil {
		log.Fatalf("backtest failed: %v", err)
	}

	if *save {
		results, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
		if err != nil {
			log.Fatalf("opening results db: %v", err)
		}
		defer results.Close()
		if err := results.SaveResult(ctx, res); err != nil {
			log.Fatalf("saving result: %v", err)
		}
	}

	if *tradesOut != "" {
		if err := writeCSV(*tradesOut, res, backtest.WriteTradesCSV); err != nil {
			log.Fatalf("writing trades CSV: %v", err)
		}
	}
	if *equityOut != "" {
		if err := writeCSV(*equityOut, res, backtest.WriteEquityCSV); err != nil {
			log.Fatalf("writing equity CSV: %v", err)
		}
	}

	fmt.Print(backtest.FormatSummary(res))
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

func parseDates(startStr, endStr string) (start, end time.Time, err error) {
	if startStr == "" {
		return start, end, fmt.Errorf("-start is required")
	}
	if start, err = time.Parse("2006-01-02", startStr); err != nil {
		return start, end, fmt.Errorf("invalid -start %q", startStr)
	}
	if endStr == "" {
		end = time.Now().UTC().Truncate(24 * time.Hour)
	} else if end, err = time.Parse("2006-01-02", endStr); err != nil {
		return start, end, fmt.Errorf("invalid -end %q", endStr)
	}
	if end.Before(start) {
		return start, end, fmt.Errorf("-end %s before -start %s", endStr, startStr)
	}
	return start, end, nil
}

// parseParams parses "key=value,key=value" into strategy parameters.
func parseParams(s string) (strategy.Params, error) {
	if s == "" {
		return nil, nil
	}
	params := strategy.Params{}
	for _, pair := range strings.Split(s, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			return nil, fmt.Errorf("malformed pair %q", pair)
		}
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("value for %q: %w", key, err)
		}
		params[key] = v
	}
	return params, nil
}

func writeCSV(path string, res *backtest.Result, write func(w io.Writer, res *backtest.Result) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return write(f, res)
}
