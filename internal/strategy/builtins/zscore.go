package builtins

import (
	"backlab/internal/domain"
	"backlab/internal/indicator"
	"backlab/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Strategy = (*ZScore)(nil)

// ZScore is a z-score mean-reversion strategy: enter long on the bar where
// the close's z-score against its rolling mean first drops below the
// negative threshold, exit on the bar where the z-score crosses back up
// through zero. A zero rolling deviation yields no signal rather than a
// division blow-up.
//
// Options: period (default 20), z_threshold (default 2.0).
type ZScore struct{}

// Name returns "zscore".
func (s *ZScore) Name() string { return "zscore" }

// Lookback requires one bar beyond the rolling window.
func (s *ZScore) Lookback(params strategy.Params) int {
	return params.Int("period", 20) + 1
}

// GenerateSignals detects the z-score crossing the entry threshold or zero
// between the prior and current bar.
func (s *ZScore) GenerateSignals(history []domain.PriceBar, params strategy.Params) domain.Signal {
	period := params.Int("period", 20)
	threshold := params.Float("z_threshold", 2.0)

	series := closes(history)
	prev := series[:len(series)-1]

	currZ, ok1 := zscore(series, period)
	prevZ, ok2 := zscore(prev, period)
	if !ok1 || !ok2 {
		return domain.Signal{}
	}

	if currZ < -threshold && prevZ >= -threshold {
		return domain.Signal{
			Entry:     true,
			Direction: domain.DirectionLong,
			Strength:  clamp01(abs(currZ) / 3),
		}
	}
	if currZ >= 0 && prevZ < 0 {
		return domain.Signal{Exit: true}
	}
	return domain.Signal{}
}

// zscore computes (close - mean) / stdev over the trailing window.
func zscore(series []float64, period int) (float64, bool) {
	mean, ok1 := indicator.SMA(series, period)
	sd, ok2 := indicator.StdDev(series, period)
	if !ok1 || !ok2 || sd == 0 {
		return 0, false
	}
	z := (series[len(series)-1] - mean) / sd
	return z, indicator.Finite(z)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
