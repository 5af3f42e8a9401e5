package backtest

import (
	"encoding/json"
	"math"
	"sort"

	"backlab/internal/domain"
)

// periodsPerYear is the annualization convention: 252 trading periods.
const periodsPerYear = 252

// Metrics is the full suite of performance, risk, and trade-quality
// statistics for one backtest run. All percentage fields are expressed in
// percent, not fractions.
type Metrics struct {
	// Performance.
	TotalReturn float64 `json:"total_return"`
	CAGR        float64 `json:"cagr"`

	// Risk.
	Volatility          float64 `json:"volatility"`
	MaxDrawdown         float64 `json:"max_drawdown"`
	MaxDrawdownDuration int     `json:"max_drawdown_duration"` // bars
	VaR95               float64 `json:"var_95"`
	CVaR95              float64 `json:"cvar_95"`
	UlcerIndex          float64 `json:"ulcer_index"`

	// Risk-adjusted performance.
	SharpeRatio  float64 `json:"sharpe_ratio"`
	SortinoRatio float64 `json:"sortino_ratio"`
	CalmarRatio  float64 `json:"calmar_ratio"`

	// Trade statistics.
	TotalTrades          int     `json:"total_trades"`
	WinRate              float64 `json:"win_rate"`
	ProfitFactor         float64 `json:"profit_factor"`
	AvgWin               float64 `json:"avg_win"`
	AvgLoss              float64 `json:"avg_loss"`
	Expectancy           float64 `json:"expectancy"`
	MaxConsecutiveWins   int     `json:"max_consecutive_wins"`
	MaxConsecutiveLosses int     `json:"max_consecutive_losses"`
	AvgTradeDuration     float64 `json:"avg_trade_duration"` // days
}

// MarshalJSON renders non-finite metric values (the Sortino and profit
// factor +Inf cases) as null so results stay serializable.
func (m Metrics) MarshalJSON() ([]byte, error) {
	finite := func(v float64) any {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil
		}
		return v
	}
	return json.Marshal(map[string]any{
		"total_return":           finite(m.TotalReturn),
		"cagr":                   finite(m.CAGR),
		"volatility":             finite(m.Volatility),
		"max_drawdown":           finite(m.MaxDrawdown),
		"max_drawdown_duration":  m.MaxDrawdownDuration,
		"var_95":                 finite(m.VaR95),
		"cvar_95":                finite(m.CVaR95),
		"ulcer_index":            finite(m.UlcerIndex),
		"sharpe_ratio":           finite(m.SharpeRatio),
		"sortino_ratio":          finite(m.SortinoRatio),
		"calmar_ratio":           finite(m.CalmarRatio),
		"total_trades":           m.TotalTrades,
		"win_rate":               finite(m.WinRate),
		"profit_factor":          finite(m.ProfitFactor),
		"avg_win":                finite(m.AvgWin),
		"avg_loss":               finite(m.AvgLoss),
		"expectancy":             finite(m.Expectancy),
		"max_consecutive_wins":   m.MaxConsecutiveWins,
		"max_consecutive_losses": m.MaxConsecutiveLosses,
		"avg_trade_duration":     finite(m.AvgTradeDuration),
	})
}

// Compute derives every metric from the equity curve and trade log. It is a
// pure function: calling it twice with the same inputs yields identical
// results, and it never mutates its arguments.
func Compute(equity []domain.EquityPoint, trades []domain.Trade, initial, final, riskFree float64) Metrics {
	returns := equityReturns(equity)

	m := Metrics{
		TotalReturn:  totalReturn(initial, final),
		CAGR:         cagr(equity, initial, final),
		Volatility:   sampleStdDev(returns) * math.Sqrt(periodsPerYear) * 100,
		SharpeRatio:  sharpeRatio(returns, riskFree),
		SortinoRatio: sortinoRatio(returns, riskFree),
		VaR95:        valueAtRisk(returns) * 100,
		UlcerIndex:   ulcerIndex(equity),
	}
	m.CVaR95 = conditionalVaR(returns) * 100
	m.MaxDrawdown, m.MaxDrawdownDuration = maxDrawdown(equity)
	m.CalmarRatio = calmarRatio(m.CAGR, m.MaxDrawdown)

	applyTradeStats(&m, trades)
	return m
}

// equityReturns computes the per-bar percentage change of the equity curve.
// The first point has no defined return and is dropped.
func equityReturns(equity []domain.EquityPoint) []float64 {
	if len(equity) < 2 {
		return nil
	}
	returns := make([]float64, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		if prev := equity[i-1].Equity; prev > 0 {
			returns[i-1] = (equity[i].Equity - prev) / prev
		}
	}
	return returns
}

func totalReturn(initial, final float64) float64 {
	if initial <= 0 {
		return 0
	}
	return (final - initial) / initial * 100
}

// cagr computes the compound annual growth rate over the curve's calendar
// span, using 365.25-day years.
func cagr(equity []domain.EquityPoint, initial, final float64) float64 {
	if len(equity) < 2 || initial <= 0 || final <= 0 {
		return 0
	}
	days := equity[len(equity)-1].Timestamp.Sub(equity[0].Timestamp).Hours() / 24
	years := days / 365.25
	if years <= 0 {
		return 0
	}
	return (math.Pow(final/initial, 1/years) - 1) * 100
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// sampleStdDev returns the sample standard deviation (n-1 denominator), or 0
// for fewer than two values.
func sampleStdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mu := mean(values)
	variance := 0.0
	for _, v := range values {
		d := v - mu
		variance += d * d
	}
	variance /= float64(len(values) - 1)
	return math.Sqrt(variance)
}

func sharpeRatio(returns []float64, riskFree float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	sd := sampleStdDev(returns)
	if sd == 0 {
		return 0
	}
	annualReturn := mean(returns) * periodsPerYear
	annualVol := sd * math.Sqrt(periodsPerYear)
	return (annualReturn - riskFree) / annualVol
}

// sortinoRatio penalizes only downside volatility. When the curve has no
// usable downside deviation the ratio is +Inf for a positive mean return and
// 0 otherwise.
func sortinoRatio(returns []float64, riskFree float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	var downside []float64
	for _, r := range returns {
		if r < 0 {
			downside = append(downside, r)
		}
	}
	sd := sampleStdDev(downside)
	if len(downside) < 2 || sd == 0 {
		if mean(returns) > 0 {
			return math.Inf(1)
		}
		return 0
	}
	annualReturn := mean(returns) * periodsPerYear
	downsideVol := sd * math.Sqrt(periodsPerYear)
	return (annualReturn - riskFree) / downsideVol
}

// maxDrawdown returns the deepest peak-to-trough decline in percent (a
// non-positive number) and the length in bars of the longest contiguous
// stretch spent below a running peak.
func maxDrawdown(equity []domain.EquityPoint) (maxDD float64, duration int) {
	if len(equity) < 2 {
		return 0, 0
	}
	peak := equity[0].Equity
	run := 0
	for _, p := range equity {
		if p.Equity > peak {
			peak = p.Equity
		}
		dd := 0.0
		if peak > 0 {
			dd = (p.Equity - peak) / peak * 100
		}
		if dd < maxDD {
			maxDD = dd
		}
		if dd < 0 {
			run++
			if run > duration {
				duration = run
			}
		} else {
			run = 0
		}
	}
	return maxDD, duration
}

func calmarRatio(cagr, maxDD float64) float64 {
	if maxDD == 0 {
		return 0
	}
	return cagr / math.Abs(maxDD)
}

// valueAtRisk returns the 5th percentile of the return distribution using
// linear interpolation, or 0 when fewer than 10 returns are available.
func valueAtRisk(returns []float64) float64 {
	if len(returns) < 10 {
		return 0
	}
	sorted := append([]float64(nil), returns...)
	sort.Float64s(sorted)

	rank := 0.05 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// conditionalVaR is the expected shortfall: the mean of all returns at or
// below the VaR threshold, falling back to the VaR itself when none qualify.
func conditionalVaR(returns []float64) float64 {
	threshold := valueAtRisk(returns)
	var tail []float64
	for _, r := range returns {
		if r <= threshold {
			tail = append(tail, r)
		}
	}
	if len(tail) == 0 {
		return threshold
	}
	return mean(tail)
}

// ulcerIndex is the root-mean-square of the drawdown percentages over the
// curve, a duration-weighted drawdown measure.
func ulcerIndex(equity []domain.EquityPoint) float64 {
	if len(equity) < 2 {
		return 0
	}
	peak := equity[0].Equity
	sumSq := 0.0
	for _, p := range equity {
		if p.Equity > peak {
			peak = p.Equity
		}
		if peak > 0 {
			dd := (p.Equity - peak) / peak * 100
			sumSq += dd * dd
		}
	}
	return math.Sqrt(sumSq / float64(len(equity)))
}

// applyTradeStats fills the trade-quality fields. All fields are zero-safe
// for an empty trade log.
func applyTradeStats(m *Metrics, trades []domain.Trade) {
	m.TotalTrades = len(trades)
	if len(trades) == 0 {
		return
	}

	var (
		wins, losses           int
		grossProfit, grossLoss float64
		winSum, lossSum        float64
		durationDays           float64
		winStreak, lossStreak  int
	)
	for _, t := range trades {
		durationDays += t.Duration.Hours() / 24
		if t.PnL > 0 {
			wins++
			grossProfit += t.PnL
			winSum += t.PnL
			winStreak++
			lossStreak = 0
			if winStreak > m.MaxConsecutiveWins {
				m.MaxConsecutiveWins = winStreak
			}
		} else {
			// Zero-PnL trades count as losses for streak purposes.
			if t.PnL < 0 {
				losses++
				grossLoss += -t.PnL
				lossSum += t.PnL
			}
			lossStreak++
			winStreak = 0
			if lossStreak > m.MaxConsecutiveLosses {
				m.MaxConsecutiveLosses = lossStreak
			}
		}
	}

	m.WinRate = float64(wins) / float64(len(trades)) * 100
	m.AvgTradeDuration = durationDays / float64(len(trades))

	switch {
	case grossLoss > 0:
		m.ProfitFactor = grossProfit / grossLoss
	case grossProfit > 0:
		m.ProfitFactor = math.Inf(1)
	}

	if wins > 0 {
		m.AvgWin = winSum / float64(wins)
	}
	if losses > 0 {
		m.AvgLoss = lossSum / float64(losses)
	}

	winFrac := m.WinRate / 100
	m.Expectancy = winFrac*m.AvgWin - (1-winFrac)*math.Abs(m.AvgLoss)
}
