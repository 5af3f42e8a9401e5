package builtins

import (
	"backlab/internal/domain"
	"backlab/internal/indicator"
	"backlab/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Strategy = (*RSIReversal)(nil)

// RSIReversal trades oversold/overbought reversals: enter long when the RSI
// crosses back up through the oversold level, exit when it crosses back down
// through the overbought level.
//
// Options: period (default 14), oversold (default 30), overbought (default 70).
type RSIReversal struct{}

// Name returns "rsi-reversal".
func (s *RSIReversal) Name() string { return "rsi-reversal" }

// Lookback requires period+1 deltas so both the current and prior RSI have a
// full window.
func (s *RSIReversal) Lookback(params strategy.Params) int {
	return params.Int("period", 14) + 2
}

// GenerateSignals detects the RSI crossing its oversold or overbought level
// between the prior and current bar. The entry strength scales with how deep
// the oversold excursion was.
func (s *RSIReversal) GenerateSignals(history []domain.PriceBar, params strategy.Params) domain.Signal {
	period := params.Int("period", 14)
	oversold := params.Float("oversold", 30)
	overbought := params.Float("overbought", 70)

	series := closes(history)
	curr, ok1 := indicator.RSI(series, period)
	prev, ok2 := indicator.RSI(series[:len(series)-1], period)
	if !ok1 || !ok2 {
		return domain.Signal{}
	}

	if prev <= oversold && curr > oversold {
		return domain.Signal{
			Entry:     true,
			Direction: domain.DirectionLong,
			Strength:  clamp01((oversold - prev) / 10),
		}
	}
	if prev >= overbought && curr < overbought {
		return domain.Signal{Exit: true}
	}
	return domain.Signal{}
}
