// Package optimize implements grid search over strategy parameters, running
// one backtest per parameter combination and ranking the outcomes by a chosen
// metric.
package optimize

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"sort"
	"sync"

	"backlab/internal/backtest"
	"backlab/internal/domain"
	"backlab/internal/strategy"
)

// Grid maps a parameter name to the candidate values to sweep. The search
// space is the cartesian product of all value lists.
type Grid map[string][]float64

// Combinations expands the grid into the full list of parameter sets. Keys
// are iterated in sorted order so the expansion is deterministic; an empty
// grid yields a single empty parameter set (strategy defaults).
func (g Grid) Combinations() []strategy.Params {
	keys := make([]string, 0, len(g))
	for k := range g {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	combos := []strategy.Params{{}}
	for _, key := range keys {
		values := g[key]
		if len(values) == 0 {
			continue
		}
		next := make([]strategy.Params, 0, len(combos)*len(values))
		for _, base := range combos {
			for _, v := range values {
				p := make(strategy.Params, len(base)+1)
				for bk, bv := range base {
					p[bk] = bv
				}
				p[key] = v
				next = append(next, p)
			}
		}
		combos = next
	}
	return combos
}

// Size returns the number of combinations the grid expands to.
func (g Grid) Size() int {
	n := 1
	for _, values := range g {
		if len(values) > 0 {
			n *= len(values)
		}
	}
	return n
}

// UnknownMetricError is returned when the ranking metric name is not one the
// optimizer can score by.
type UnknownMetricError struct {
	Name string
}

func (e *UnknownMetricError) Error() string {
	return fmt.Sprintf("unknown ranking metric %q", e.Name)
}

// MetricValue extracts the named metric from a computed metric set for
// ranking. Higher is better for every supported metric, including
// max_drawdown (less negative ranks higher).
func MetricValue(m backtest.Metrics, name string) (float64, error) {
	switch name {
	case "total_return":
		return m.TotalReturn, nil
	case "cagr":
		return m.CAGR, nil
	case "sharpe_ratio":
		return m.SharpeRatio, nil
	case "sortino_ratio":
		return m.SortinoRatio, nil
	case "calmar_ratio":
		return m.CalmarRatio, nil
	case "max_drawdown":
		return m.MaxDrawdown, nil
	case "profit_factor":
		return m.ProfitFactor, nil
	case "win_rate":
		return m.WinRate, nil
	case "expectancy":
		return m.Expectancy, nil
	}
	return 0, &UnknownMetricError{Name: name}
}

// RankedResult pairs one backtest run with its ranking score.
type RankedResult struct {
	Rank   int              `json:"rank"`
	Params strategy.Params  `json:"params"`
	Score  float64          `json:"score"`
	Result *backtest.Result `json:"result"`
}

// Optimizer fans parameter combinations out over a worker pool of backtest
// runs.
type Optimizer struct {
	engine  *backtest.Engine
	workers int
	log     *slog.Logger
}

// NewOptimizer creates an Optimizer running at most workers concurrent
// backtests; workers <= 0 means one per CPU.
func NewOptimizer(engine *backtest.Engine, workers int) *Optimizer {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Optimizer{
		engine:  engine,
		workers: workers,
		log:     slog.Default().With("component", "optimize"),
	}
}

// Search runs one backtest per grid combination and returns the results
// ranked by the named metric, best first. Individual run failures are logged
// and skipped; Search only fails when the metric name is unknown, the context
// is cancelled, or every combination fails.
func (o *Optimizer) Search(ctx context.Context, strategyName, symbol string, bars []domain.PriceBar, grid Grid, metric string, cfg backtest.Config) ([]RankedResult, error) {
	// Validate the metric before spending any work on runs.
	if _, err := MetricValue(backtest.Metrics{}, metric); err != nil {
		return nil, err
	}

	combos := grid.Combinations()
	o.log.Info("starting grid search",
		"strategy", strategyName,
		"symbol", symbol,
		"combinations", len(combos),
		"metric", metric,
		"workers", o.workers,
	)

	comboCh := make(chan int, len(combos))
	for i := range combos {
		comboCh <- i
	}
	close(comboCh)

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		ranked []RankedResult
		failed int
	)

	workers := o.workers
	if workers > len(combos) {
		workers = len(combos)
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range comboCh {
				if ctx.Err() != nil {
					return
				}
				params := combos[idx]

				res, err := o.engine.Run(strategyName, symbol, bars, params, cfg)
				if err != nil {
					o.log.Warn("combination failed", "params", params, "err", err)
					mu.Lock()
					failed++
					mu.Unlock()
					continue
				}

				score, _ := MetricValue(res.Metrics, metric)
				if math.IsNaN(score) {
					score = math.Inf(-1)
				}
				mu.Lock()
				ranked = append(ranked, RankedResult{Params: params, Score: score, Result: res})
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(ranked) == 0 {
		return nil, fmt.Errorf("all %d combinations failed", len(combos))
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	for i := range ranked {
		ranked[i].Rank = i + 1
	}

	o.log.Info("grid search complete",
		"succeeded", len(ranked),
		"failed", failed,
		"best", ranked[0].Score,
	)
	return ranked, nil
}
