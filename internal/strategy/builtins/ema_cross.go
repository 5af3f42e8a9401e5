package builtins

import (
	"backlab/internal/domain"
	"backlab/internal/indicator"
	"backlab/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Strategy = (*EMACross)(nil)

// EMACross is an exponential moving average crossover.
//
// Options: fast_period (default 12), slow_period (default 26).
type EMACross struct{}

// Name returns "ema-cross".
func (s *EMACross) Name() string { return "ema-cross" }

// Lookback requires one bar beyond the slow span.
func (s *EMACross) Lookback(params strategy.Params) int {
	return params.Int("slow_period", 26) + 1
}

// GenerateSignals detects a fast/slow EMA crossing between the prior and
// current bar.
func (s *EMACross) GenerateSignals(history []domain.PriceBar, params strategy.Params) domain.Signal {
	fast := params.Int("fast_period", 12)
	slow := params.Int("slow_period", 26)

	series := closes(history)
	prev := series[:len(series)-1]

	currFast, ok1 := indicator.EMA(series, fast)
	currSlow, ok2 := indicator.EMA(series, slow)
	prevFast, ok3 := indicator.EMA(prev, fast)
	prevSlow, ok4 := indicator.EMA(prev, slow)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return domain.Signal{}
	}

	if prevFast <= prevSlow && currFast > currSlow {
		return domain.Signal{Entry: true, Direction: domain.DirectionLong, Strength: 1}
	}
	if prevFast >= prevSlow && currFast < currSlow {
		return domain.Signal{Exit: true}
	}
	return domain.Signal{}
}
