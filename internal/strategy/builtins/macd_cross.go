package builtins

import (
	"backlab/internal/domain"
	"backlab/internal/indicator"
	"backlab/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Strategy = (*MACDCross)(nil)

// MACDCross trades MACD/signal-line crossovers: enter long when the MACD
// line crosses above its signal line, exit when it crosses below.
//
// Options: fast_period (default 12), slow_period (default 26),
// signal_period (default 9).
type MACDCross struct{}

// Name returns "macd-cross".
func (s *MACDCross) Name() string { return "macd-cross" }

// Lookback requires the slow and signal spans to fill plus one prior bar.
func (s *MACDCross) Lookback(params strategy.Params) int {
	return params.Int("slow_period", 26) + params.Int("signal_period", 9) + 1
}

// GenerateSignals detects the MACD line crossing its signal line between the
// prior and current bar.
func (s *MACDCross) GenerateSignals(history []domain.PriceBar, params strategy.Params) domain.Signal {
	fast := params.Int("fast_period", 12)
	slow := params.Int("slow_period", 26)
	signalSpan := params.Int("signal_period", 9)

	series := closes(history)
	currMACD, currSig, ok1 := indicator.MACD(series, fast, slow, signalSpan)
	prevMACD, prevSig, ok2 := indicator.MACD(series[:len(series)-1], fast, slow, signalSpan)
	if !ok1 || !ok2 {
		return domain.Signal{}
	}

	if prevMACD <= prevSig && currMACD > currSig {
		return domain.Signal{Entry: true, Direction: domain.DirectionLong, Strength: 1}
	}
	if prevMACD >= prevSig && currMACD < currSig {
		return domain.Signal{Exit: true}
	}
	return domain.Signal{}
}
