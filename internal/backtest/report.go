package backtest

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"
)

// WriteTradesCSV writes the run's trade log as CSV, one row per round trip.
func WriteTradesCSV(w io.Writer, res *Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{
		"entry_time", "exit_time", "direction", "entry_price", "exit_price",
		"size", "pnl", "pnl_pct", "duration_hours",
	}); err != nil {
		return fmt.Errorf("write trades header: %w", err)
	}
	for _, t := range res.Trades {
		row := []string{
			t.EntryTime.Format(time.RFC3339),
			t.ExitTime.Format(time.RFC3339),
			string(t.Direction),
			formatFloat(t.EntryPrice),
			formatFloat(t.ExitPrice),
			formatFloat(t.Size),
			formatFloat(t.PnL),
			formatFloat(t.PnLPct),
			formatFloat(t.Duration.Hours()),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write trade row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteEquityCSV writes the run's equity curve as CSV, one row per bar.
func WriteEquityCSV(w io.Writer, res *Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"timestamp", "equity"}); err != nil {
		return fmt.Errorf("write equity header: %w", err)
	}
	for _, p := range res.Equity {
		row := []string{p.Timestamp.Format(time.RFC3339), formatFloat(p.Equity)}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write equity row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// FormatSummary renders a human-readable report of the run for CLI output.
func FormatSummary(res *Result) string {
	m := res.Metrics
	var b strings.Builder

	fmt.Fprintf(&b, "Backtest %s\n", res.ID)
	fmt.Fprintf(&b, "  strategy:        %s\n", res.Strategy)
	fmt.Fprintf(&b, "  symbol:          %s\n", res.Symbol)
	fmt.Fprintf(&b, "  period:          %s .. %s\n",
		res.Start.Format("2006-01-02"), res.End.Format("2006-01-02"))
	fmt.Fprintf(&b, "  capital:         %.2f -> %.2f\n", res.InitialCapital, res.FinalCapital)
	b.WriteString("\nPerformance\n")
	fmt.Fprintf(&b, "  total return:    %.2f%%\n", m.TotalReturn)
	fmt.Fprintf(&b, "  CAGR:            %.2f%%\n", m.CAGR)
	fmt.Fprintf(&b, "  sharpe:          %s\n", formatRatio(m.SharpeRatio))
	fmt.Fprintf(&b, "  sortino:         %s\n", formatRatio(m.SortinoRatio))
	fmt.Fprintf(&b, "  calmar:          %s\n", formatRatio(m.CalmarRatio))
	b.WriteString("\nRisk\n")
	fmt.Fprintf(&b, "  volatility:      %.2f%%\n", m.Volatility)
	fmt.Fprintf(&b, "  max drawdown:    %.2f%% (%d bars)\n", m.MaxDrawdown, m.MaxDrawdownDuration)
	fmt.Fprintf(&b, "  VaR 95%%:         %.2f%%\n", m.VaR95)
	fmt.Fprintf(&b, "  CVaR 95%%:        %.2f%%\n", m.CVaR95)
	fmt.Fprintf(&b, "  ulcer index:     %.2f\n", m.UlcerIndex)
	b.WriteString("\nTrades\n")
	fmt.Fprintf(&b, "  total:           %d\n", m.TotalTrades)
	fmt.Fprintf(&b, "  win rate:        %.1f%%\n", m.WinRate)
	fmt.Fprintf(&b, "  profit factor:   %s\n", formatRatio(m.ProfitFactor))
	fmt.Fprintf(&b, "  avg win/loss:    %.2f / %.2f\n", m.AvgWin, m.AvgLoss)
	fmt.Fprintf(&b, "  expectancy:      %.2f\n", m.Expectancy)
	fmt.Fprintf(&b, "  streaks (w/l):   %d / %d\n", m.MaxConsecutiveWins, m.MaxConsecutiveLosses)
	fmt.Fprintf(&b, "  avg duration:    %.1f days\n", m.AvgTradeDuration)

	return b.String()
}

func formatRatio(v float64) string {
	if math.IsInf(v, 1) {
		return "inf"
	}
	if math.IsNaN(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", v)
}
