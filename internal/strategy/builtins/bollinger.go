package builtins

import (
	"backlab/internal/domain"
	"backlab/internal/indicator"
	"backlab/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Strategy = (*Bollinger)(nil)

// Bollinger is a mean-reversion strategy on Bollinger bands: enter long when
// the close crosses below the lower band, exit when it crosses above the
// upper band.
//
// Options: period (default 20), std_dev (default 2.0).
type Bollinger struct{}

// Name returns "bollinger".
func (s *Bollinger) Name() string { return "bollinger" }

// Lookback requires one bar beyond the band window.
func (s *Bollinger) Lookback(params strategy.Params) int {
	return params.Int("period", 20) + 1
}

// GenerateSignals detects the close crossing a band between the prior and
// current bar.
func (s *Bollinger) GenerateSignals(history []domain.PriceBar, params strategy.Params) domain.Signal {
	period := params.Int("period", 20)
	width := params.Float("std_dev", 2.0)

	series := closes(history)
	prev := series[:len(series)-1]

	currMid, ok1 := indicator.SMA(series, period)
	currSD, ok2 := indicator.StdDev(series, period)
	prevMid, ok3 := indicator.SMA(prev, period)
	prevSD, ok4 := indicator.StdDev(prev, period)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return domain.Signal{}
	}

	currClose := series[len(series)-1]
	prevClose := prev[len(prev)-1]

	currLower := currMid - width*currSD
	currUpper := currMid + width*currSD
	prevLower := prevMid - width*prevSD
	prevUpper := prevMid + width*prevSD

	if prevClose >= prevLower && currClose < currLower {
		return domain.Signal{Entry: true, Direction: domain.DirectionLong, Strength: 1}
	}
	if prevClose <= prevUpper && currClose > currUpper {
		return domain.Signal{Exit: true}
	}
	return domain.Signal{}
}
