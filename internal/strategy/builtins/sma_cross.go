package builtins

import (
	"backlab/internal/domain"
	"backlab/internal/indicator"
	"backlab/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Strategy = (*SMACross)(nil)

// SMACross is the classic simple moving average crossover: enter long when
// the fast SMA crosses above the slow SMA (golden cross), exit when it
// crosses back below (death cross).
//
// Options: fast_period (default 20), slow_period (default 50).
type SMACross struct{}

// Name returns "sma-cross".
func (s *SMACross) Name() string { return "sma-cross" }

// Lookback requires one bar beyond the slow window so the prior bar also has
// a full window.
func (s *SMACross) Lookback(params strategy.Params) int {
	return params.Int("slow_period", 50) + 1
}

// GenerateSignals detects a fast/slow SMA crossing between the prior and
// current bar.
func (s *SMACross) GenerateSignals(history []domain.PriceBar, params strategy.Params) domain.Signal {
	fast := params.Int("fast_period", 20)
	slow := params.Int("slow_period", 50)

	series := closes(history)
	prev := series[:len(series)-1]

	currFast, ok1 := indicator.SMA(series, fast)
	currSlow, ok2 := indicator.SMA(series, slow)
	prevFast, ok3 := indicator.SMA(prev, fast)
	prevSlow, ok4 := indicator.SMA(prev, slow)
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
