package builtins

import (
	"backlab/internal/domain"
	"backlab/internal/indicator"
	"backlab/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Strategy = (*ROCMomentum)(nil)

// ROCMomentum is a rate-of-change momentum strategy: enter long on the bar
// where the ROC first exceeds the threshold, exit on the bar where momentum
// first turns negative.
//
// Options: period (default 14), threshold (percent, default 5.0).
type ROCMomentum struct{}

// Name returns "roc-momentum".
func (s *ROCMomentum) Name() string { return "roc-momentum" }

// Lookback requires period+1 bars for both the current and prior ROC.
func (s *ROCMomentum) Lookback(params strategy.Params) int {
	return params.Int("period", 14) + 2
}

// GenerateSignals detects the ROC crossing the entry threshold or zero
// between the prior and current bar.
func (s *ROCMomentum) GenerateSignals(history []domain.PriceBar, params strategy.Params) domain.Signal {
	period := params.Int("period", 14)
	threshold := params.Float("threshold", 5.0)

	series := closes(history)
	curr, ok1 := indicator.ROC(series, period)
	prev, ok2 := indicator.ROC(series[:len(series)-1], period)
	if !ok1 || !ok2 {
		return domain.Signal{}
	}

	if prev <= threshold && curr > threshold {
		return domain.Signal{Entry: true, Direction: domain.DirectionLong, Strength: 1}
	}
	if prev >= 0 && curr < 0 {
		return domain.Signal{Exit: true}
	}
	return domain.Signal{}
}
