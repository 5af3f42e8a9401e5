// Package domain defines the core value types shared across the backtesting
// platform: price bars, trading signals, positions, and completed trades.
package domain

import (
	"fmt"
	"time"
)

// Direction indicates which side of the market a signal or position is on.
type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
)

// PriceBar is a single OHLCV sample for a fixed time interval. Bars are
// immutable once constructed and are supplied by an external data source.
type PriceBar struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// ValidateBars checks that a bar series is usable as backtest input:
// strictly increasing unique timestamps, coherent OHLC ordering, positive
// closes, and non-negative volume. The simulation engine assumes its input
// has already passed this check.
func ValidateBars(bars []PriceBar) error {
	for i, b := range bars {
		if b.Close <= 0 {
			return fmt.Errorf("bar %d (%s): close %v is not positive", i, b.Timestamp.Format(time.RFC3339), b.Close)
		}
		if b.High < b.Low {
			return fmt.Errorf("bar %d (%s): high %v below low %v", i, b.Timestamp.Format(time.RFC3339), b.High, b.Low)
		}
		if b.Open > b.High || b.Open < b.Low || b.Close > b.High || b.Close < b.Low {
			return fmt.Errorf("bar %d (%s): open/close outside high-low range", i, b.Timestamp.Format(time.RFC3339))
		}
		if b.Volume < 0 {
			return fmt.Errorf("bar %d (%s): negative volume %v", i, b.Timestamp.Format(time.RFC3339), b.Volume)
		}
		if i > 0 && !bars[i-1].Timestamp.Before(b.Timestamp) {
			return fmt.Errorf("bar %d (%s): timestamp not after previous bar", i, b.Timestamp.Format(time.RFC3339))
		}
	}
	return nil
}

// Signal is emitted per bar by a strategy. Entry and Exit are mutually
// exclusive: Entry only fires when no position is open, Exit always refers
// to a currently open position. The zero value is the empty "no action"
// signal. Strength is advisory and never affects position sizing.
type Signal struct {
	Entry     bool
	Exit      bool
	Direction Direction
	Strength  float64
}

// IsEmpty reports whether the signal requests no action.
func (s Signal) IsEmpty() bool {
	return !s.Entry && !s.Exit
}

// Position is an open holding during a simulation run. It is owned
// exclusively by the engine; "no position" is represented by a nil
// *Position, never by a zeroed value.
type Position struct {
	EntryTime  time.Time
	EntryPrice float64
	Direction  Direction
	Size       float64
}

// Trade is a completed round trip. PnL, PnLPct, and Duration are derived
// once by NewTrade and never mutated afterwards.
type Trade struct {
	EntryTime  time.Time     `json:"entry_time"`
	ExitTime   time.Time     `json:"exit_time"`
	EntryPrice float64       `json:"entry_price"`
	ExitPrice  float64       `json:"exit_price"`
	Direction  Direction     `json:"direction"`
	Size       float64       `json:"size"`
	PnL        float64       `json:"pnl"`
	PnLPct     float64       `json:"pnl_pct"`
	Duration   time.Duration `json:"duration"`
}

// NewTrade builds a Trade from an entry/exit pair, computing the derived
// profit-and-loss fields. For long trades pnl = (exit-entry)*size; for
// shorts the sign convention is reversed.
func NewTrade(entryTime, exitTime time.Time, entryPrice, exitPrice float64, dir Direction, size float64) Trade {
	t := Trade{
		EntryTime:  entryTime,
		ExitTime:   exitTime,
		EntryPrice: entryPrice,
		ExitPrice:  exitPrice,
		Direction:  dir,
		Size:       size,
		Duration:   exitTime.Sub(entryTime),
	}
	if dir == DirectionShort {
		t.PnL = (entryPrice - exitPrice) * size
		t.PnLPct = (entryPrice - exitPrice) / entryPrice * 100
	} else {
		t.PnL = (exitPrice - entryPrice) * size
		t.PnLPct = (exitPrice - entryPrice) / entryPrice * 100
	}
	return t
}

// EquityPoint is one sample of the equity curve: total account value (cash
// plus mark-to-market position value) at a bar's timestamp.
type EquityPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Equity    float64   `json:"equity"`
}
