// Command backlab-optimize grid-searches strategy parameters and prints the
// top-ranked combinations.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"backlab/internal/backtest"
	"backlab/internal/config"
	"backlab/internal/fetch"
	"backlab/internal/optimize"
	"backlab/internal/store"
	"backlab/internal/strategy/builtins"
	"backlab/internal/util"
)

func main() {
	var (
		strategyName = flag.String("strategy", "sma-cross", "strategy to optimize")
		symbol       = flag.String("symbol", "BTC/USD", "symbol to backtest")
		startStr     = flag.String("start", "", "start date (YYYY-MM-DD, required)")
		endStr       = flag.String("end", "", "end date (YYYY-MM-DD, default today)")
		gridStr      = flag.String("grid", "", "parameter grid, e.g. fast_period=5:10:20,slow_period=50:100")
		metric       = flag.String("metric", "", "ranking metric (default from config)")
		top          = flag.Int("top", 10, "number of top results to print")
		workers      = flag.Int("workers", 0, "concurrent backtests (0 = one per CPU)")
	)
	flag.Parse()

	cfg, err := config.Load(configPath())
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	util.SetDefault(util.NewLogger(cfg.Logging.Level, cfg.Logging.Format))

	start, end, err := parseDates(*startStr, *endStr)
	if err != nil {
		log.Fatalf("%v", err)
	}
	grid, err := parseGrid(*gridStr)
	if err != nil {
		log.Fatalf("invalid -grid: %v", err)
	}
	rankBy := *metric
	if rankBy == "" {
		rankBy = cfg.Optimize.Metric
	}
	if *workers == 0 {
		*workers = cfg.Optimize.MaxWorkers
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	bars := store.NewParquetStore(cfg.Storage.DataDir)
	var fetcher fetch.BarFetcher
	if cfg.Alpaca.APIKey != "" {
		fetcher = fetch.NewAlpacaFetcher(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.DataURL, cfg.Fetch.RateLimitPerMin)
	}

	series, err := fetch.NewLoader(bars, fetcher).Load(ctx, *symbol, start, end)
	if err != nil {
		log.Fatalf("loading bars: %v", err)
	}

	engine := backtest.NewEngine(builtins.Registry())
	opt := optimize.NewOptimizer(engine, *workers)

	ranked, err := opt.Search(ctx, *strategyName, *symbol, series, grid, rankBy, cfg.RunConfig())
	if err != nil {
		log.Fatalf("grid search failed: %v", err)
	}

	if *top > len(ranked) {
		*top = len(ranked)
	}
	fmt.Printf("Top %d of %d combinations by %s\n\n", *top, len(ranked), rankBy)
	for _, rr := range ranked[:*top] {
		fmt.Printf("#%-3d score=%-12.4f return=%7.2f%%  drawdown=%7.2f%%  trades=%-4d %s\n",
			rr.Rank, rr.Score,
			rr.Result.Metrics.TotalReturn,
			rr.Result.Metrics.MaxDrawdown,
			rr.Result.Metrics.TotalTrades,
			formatParams(rr.Params),
		)
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

// parseGrid parses "key=v1:v2:v3,key=v1:v2" into a parameter grid.
func parseGrid(s string) (optimize.Grid, error) {
	grid := optimize.Grid{}
	if s == "" {
		return grid, nil
	}
	for _, pair := range strings.Split(s, ",") {
		key, list, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			return nil, fmt.Errorf("malformed pair %q", pair)
		}
		var values []float64
		for _, raw := range strings.Split(list, ":") {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("value %q for %q: %w", raw, key, err)
			}
			values = append(values, v)
		}
		grid[key] = values
	}
	return grid, nil
}

func formatParams(p map[string]float64) string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%g", k, p[k]))
	}
	return strings.Join(parts, " ")
}
