package builtins

import (
	"backlab/internal/domain"
	"backlab/internal/indicator"
	"backlab/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Strategy = (*Breakout)(nil)

// Breakout trades range breakouts: enter long on the bar where the close
// first crosses above the recent highest high (resistance), exit on the bar
// where it first crosses below the recent lowest low (support). The window
// excludes the bar being evaluated, and the signal fires only on the
// crossing bar, not while the close stays outside the range.
//
// Options: window (default 20), threshold (percent beyond the level,
// default 0).
type Breakout struct{}

// Name returns "breakout".
func (s *Breakout) Name() string { return "breakout" }

// Lookback requires the window to fill before both the prior and current bar.
func (s *Breakout) Lookback(params strategy.Params) int {
	return params.Int("window", 20) + 2
}

// GenerateSignals detects the close crossing the breakout levels between the
// prior and current bar.
func (s *Breakout) GenerateSignals(history []domain.PriceBar, params strategy.Params) domain.Signal {
	window := params.Int("window", 20)
	threshold := params.Float("threshold", 0)

	hs := highs(history)
	ls := lows(history)
	cs := closes(history)
	n := len(history)

	// Levels for the current bar come from the window ending just before it;
	// the prior bar uses the window shifted back by one.
	currHi, currLo, ok1 := indicator.HighLow(hs[:n-1], ls[:n-1], window)
	prevHi, prevLo, ok2 := indicator.HighLow(hs[:n-2], ls[:n-2], window)
	if !ok1 || !ok2 {
		return domain.Signal{}
	}

	currRes := currHi * (1 + threshold/100)
	currSup := currLo * (1 - threshold/100)
	prevRes := prevHi * (1 + threshold/100)
	prevSup := prevLo * (1 - threshold/100)
	if !indicator.Finite(currRes) || !indicator.Finite(currSup) ||
		!indicator.Finite(prevRes) || !indicator.Finite(prevSup) {
		return domain.Signal{}
	}

	currClose := cs[n-1]
	prevClose := cs[n-2]

	if prevClose <= prevRes && currClose > currRes {
		return domain.Signal{Entry: true, Direction: domain.DirectionLong, Strength: 1}
	}
	if prevClose >= prevSup && currClose < currSup {
		return domain.Signal{Exit: true}
	}
	return domain.Signal{}
}
