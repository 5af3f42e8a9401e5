// Package builtins provides the built-in signal-generating strategies that
// ship with the backlab platform. All of them are crossing-based: a signal
// fires only on the bar where a relationship between two series changes,
// never while a condition merely persists.
package builtins

import (
	"backlab/internal/domain"
	"backlab/internal/strategy"
)

// Registry returns a strategy registry populated with every built-in
// strategy. The registry is constructed explicitly and passed to the engine;
// there is no process-wide mutable registry.
func Registry() *strategy.Registry {
	return strategy.NewRegistry(
		&SMACross{},
		&EMACross{},
		&RSIReversal{},
		&MACDCross{},
		&Bollinger{},
		&Breakout{},
		&ZScore{},
		&ROCMomentum{},
	)
}

// closes extracts the close series from a bar history.
func closes(history []domain.PriceBar) []float64 {
	out := make([]float64, len(history))
	for i, b := range history {
		out[i] = b.Close
	}
	return out
}

// highs extracts the high series from a bar history.
func highs(history []domain.PriceBar) []float64 {
	out := make([]float64, len(history))
	for i, b := range history {
		out[i] = b.High
	}
	return out
}

// lows extracts the low series from a bar history.
func lows(history []domain.PriceBar) []float64 {
	out := make([]float64, len(history))
	for i, b := range history {
		out[i] = b.Low
	}
	return out
}

// clamp01 limits an advisory strength value to [0, 1].
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
