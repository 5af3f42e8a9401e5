package optimize

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"backlab/internal/backtest"
	"backlab/internal/domain"
	"backlab/internal/strategy"
)

func TestCombinationsCartesianProduct(t *testing.T) {
	grid := Grid{
		"fast_period": {5, 10},
		"slow_period": {20, 50, 100},
	}
	combos := grid.Combinations()
	if len(combos) != 6 {
		t.Fatalf("got %d combinations, want 6", len(combos))
	}
	if grid.Size() != 6 {
		t.Errorf("Size() = %d, want 6", grid.Size())
	}

	// Keys iterate in sorted order, so the first combination holds the first
	// value of each list and fast_period varies slowest.
	first := combos[0]
	if first["fast_period"] != 5 || first["slow_period"] != 20 {
		t.Errorf("combos[0] = %v, want fast=5 slow=20", first)
	}
	last := combos[5]
	if last["fast_period"] != 10 || last["slow_period"] != 100 {
		t.Errorf("combos[5] = %v, want fast=10 slow=100", last)
	}

	seen := make(map[[2]float64]bool)
	for _, c := range combos {
		key := [2]float64{c["fast_period"], c["slow_period"]}
		if seen[key] {
			t.Errorf("duplicate combination %v", c)
		}
		seen[key] = true
	}
}

func TestCombinationsEmptyGridRunsDefaults(t *testing.T) {
	combos := Grid{}.Combinations()
	if len(combos) != 1 || len(combos[0]) != 0 {
		t.Errorf("empty grid combos = %v, want one empty parameter set", combos)
	}
}

func TestMetricValueUnknownName(t *testing.T) {
	_, err := MetricValue(backtest.Metrics{}, "alpha")
	var unknownErr *UnknownMetricError
	if !errors.As(err, &unknownErr) {
		t.Fatalf("err = %v, want UnknownMetricError", err)
	}
}

func TestMetricValueNames(t *testing.T) {
	m := backtest.Metrics{
		TotalReturn: 12,
		SharpeRatio: 1.5,
		MaxDrawdown: -20,
		WinRate:     55,
	}
	cases := map[string]float64{
		"total_return": 12,
		"sharpe_ratio": 1.5,
		"max_drawdown": -20,
		"win_rate":     55,
	}
	for name, want := range cases {
		got, err := MetricValue(m, name)
		if err != nil {
			t.Errorf("MetricValue(%q): %v", name, err)
			continue
		}
		if got != want {
			t.Errorf("MetricValue(%q) = %v, want %v", name, got, want)
		}
	}
}

// gainStrategy enters on the first tradable bar and holds; its profit is
// controlled by the "gain" parameter through the bars it chooses to exit on.
type gainStrategy struct{}

func (s *gainStrategy) Name() string { return "gain" }

func (s *gainStrategy) Lookback(_ strategy.Params) int { return 1 }

func (s *gainStrategy) GenerateSignals(history []domain.PriceBar, params strategy.Params) domain.Signal {
	i := len(history) - 1
	entryAt := params.Int("entry_at", 1)
	exitAt := params.Int("exit_at", 3)
	if i == entryAt {
		return domain.Signal{Entry: true, Direction: domain.DirectionLong}
	}
	if i == exitAt {
		return domain.Signal{Exit: true}
	}
	return domain.Signal{}
}

// failingStrategy requires more data than any test series provides for
// certain parameter values.
type failingStrategy struct{}

func (s *failingStrategy) Name() string { return "fragile" }

func (s *failingStrategy) Lookback(params strategy.Params) int { return params.Int("lookback", 1) }

func (s *failingStrategy) GenerateSignals(_ []domain.PriceBar, _ strategy.Params) domain.Signal {
	return domain.Signal{}
}

func optimizeBars(closes ...float64) []domain.PriceBar {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]domain.PriceBar, len(closes))
	for i, c := range closes {
		bars[i] = domain.PriceBar{
			Timestamp: t0.AddDate(0, 0, i),
			Open:      c, High: c + 1, Low: c - 1, Close: c,
			Volume: 100,
		}
	}
	return bars
}

func TestSearchRanksBestFirst(t *testing.T) {
	eng := backtest.NewEngine(strategy.NewRegistry(&gainStrategy{}))
	opt := NewOptimizer(eng, 2)

	// Prices rise monotonically, so a later exit always yields more profit.
	bars := optimizeBars(100, 100, 105, 110, 115, 120)
	grid := Grid{"exit_at": {2, 3, 4}}

	ranked, err := opt.Search(context.Background(), "gain", "BTC/USD", bars, grid, "total_return", backtest.DefaultConfig())
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(ranked) != 3 {
		t.Fatalf("got %d results, want 3", len(ranked))
	}

	if ranked[0].Params["exit_at"] != 4 {
		t.Errorf("best params = %v, want exit_at=4", ranked[0].Params)
	}
	for i := 1; i < len(ranked); i++ {
		if ranked[i].Score > ranked[i-1].Score {
			t.Errorf("results not sorted descending at %d: %v > %v", i, ranked[i].Score, ranked[i-1].Score)
		}
		if ranked[i].Rank != i+1 {
			t.Errorf("Rank[%d] = %d, want %d", i, ranked[i].Rank, i+1)
		}
	}
}

func TestSearchSkipsFailedCombinations(t *testing.T) {
	eng := backtest.NewEngine(strategy.NewRegistry(&failingStrategy{}))
	opt := NewOptimizer(eng, 1)

	// lookback 100 exceeds the series length and must be skipped, not fail
	// the whole search.
	bars := optimizeBars(100, 101, 102, 103, 104)
	grid := Grid{"lookback": {1, 100}}

	ranked, err := opt.Search(context.Background(), "fragile", "BTC/USD", bars, grid, "total_return", backtest.DefaultConfig())
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(ranked) != 1 {
		t.Fatalf("got %d results, want 1 (the failing combination skipped)", len(ranked))
	}
	if ranked[0].Params["lookback"] != 1 {
		t.Errorf("surviving params = %v, want lookback=1", ranked[0].Params)
	}
}

func TestSearchAllCombinationsFailed(t *testing.T) {
	eng := backtest.NewEngine(strategy.NewRegistry(&failingStrategy{}))
	opt := NewOptimizer(eng, 1)

	bars := optimizeBars(100, 101, 102)
	grid := Grid{"lookback": {50, 100}}

	_, err := opt.Search(context.Background(), "fragile", "BTC/USD", bars, grid, "total_return", backtest.DefaultConfig())
	if err == nil {
		t.Fatal("expected error when every combination fails")
	}
}

func TestSearchUnknownMetricFailsFast(t *testing.T) {
	eng := backtest.NewEngine(strategy.NewRegistry(&gainStrategy{}))
	opt := NewOptimizer(eng, 1)

	_, err := opt.Search(context.Background(), "gain", "BTC/USD", optimizeBars(100, 101, 102), Grid{}, "alpha", backtest.DefaultConfig())
	var unknownErr *UnknownMetricError
	if !errors.As(err, &unknownErr) {
		t.Fatalf("err = %v, want UnknownMetricError", err)
	}
}

func TestSearchCancelledContext(t *testing.T) {
	eng := backtest.NewEngine(strategy.NewRegistry(&gainStrategy{}))
	opt := NewOptimizer(eng, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := opt.Search(ctx, "gain", "BTC/USD", optimizeBars(100, 101, 102, 103), Grid{"exit_at": {2, 3}}, "total_return", backtest.DefaultConfig())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestSearchEmptyGridRunsDefaults(t *testing.T) {
	eng := backtest.NewEngine(strategy.NewRegistry(&gainStrategy{}))
	opt := NewOptimizer(eng, 1)

	ranked, err := opt.Search(context.Background(), "gain", "BTC/USD", optimizeBars(100, 101, 102, 103, 104), Grid{}, "sharpe_ratio", backtest.DefaultConfig())
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(ranked) != 1 {
		t.Fatalf("got %d results, want 1 defaults-only run", len(ranked))
	}
	if math.IsNaN(ranked[0].Score) {
		t.Errorf("score = NaN, want a finite or -Inf ranking value")
	}
}
