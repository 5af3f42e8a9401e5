// Package backtest implements the bar-replay simulation engine and the
// performance metrics computed over its output.
package backtest

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"backlab/internal/domain"
	"backlab/internal/strategy"
)

// Config holds the execution parameters for a single backtest run.
type Config struct {
	InitialCapital float64 `json:"initial_capital"`
	Commission     float64 `json:"commission"` // fraction of notional per side
	Slippage       float64 `json:"slippage"`   // fraction of price per side
	RiskFreeRate   float64 `json:"risk_free_rate"`
}

// DefaultConfig returns the standard run configuration: $10k capital, 0.1%
// commission, 0.05% slippage, 2% annual risk-free rate.
func DefaultConfig() Config {
	return Config{
		InitialCapital: 10000,
		Commission:     0.001,
		Slippage:       0.0005,
		RiskFreeRate:   0.02,
	}
}

// cashReserve is the fraction of cash withheld on entry so commissions never
// drive the cash balance negative.
const cashReserve = 0.05

// ConfigError reports an invalid run configuration. It is returned before
// any simulation state is created.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "invalid backtest config: " + e.Reason
}

// InsufficientDataError reports a bar series shorter than the strategy's
// lookback requirement.
type InsufficientDataError struct {
	Strategy string
	Have     int
	Need     int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data for strategy %q: have %d bars, need more than %d", e.Strategy, e.Have, e.Need)
}

// Result is the complete outcome of one backtest run. It is built once by
// Engine.Run and never mutated after its metrics are attached.
type Result struct {
	ID             string               `json:"id"`
	Strategy       string               `json:"strategy"`
	Symbol         string               `json:"symbol"`
	Start          time.Time            `json:"start"`
	End            time.Time            `json:"end"`
	InitialCapital float64              `json:"initial_capital"`
	FinalCapital   float64              `json:"final_capital"`
	Params         strategy.Params      `json:"params,omitempty"`
	Trades         []domain.Trade       `json:"trades"`
	Equity         []domain.EquityPoint `json:"equity"`
	Metrics        Metrics              `json:"metrics"`
}

// Engine replays historical bars through a strategy, simulating execution
// with transaction costs. Each Run uses fresh, unshared state, so a single
// Engine may serve many runs, including concurrent ones.
type Engine struct {
	registry *strategy.Registry
	log      *slog.Logger
}

// NewEngine creates an Engine that resolves strategies from the given
// registry.
func NewEngine(registry *strategy.Registry) *Engine {
	return &Engine{
		registry: registry,
		log:      slog.Default().With("component", "backtest"),
	}
}

// Run executes a backtest of the named strategy over the bar series.
//
// Bars must be sorted strictly ascending by timestamp (see
// domain.ValidateBars); the loop starts at the strategy's lookback index, so
// earlier bars serve as warm-up history only. The returned result always has
// a closed final state: any position still open on the last bar is force
// closed with the normal cost model.
func (e *Engine) Run(strategyName, symbol string, bars []domain.PriceBar, params strategy.Params, cfg Config) (*Result, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	strat, err := e.registry.Get(strategyName)
	if err != nil {
		return nil, err
	}

	lookback := strat.Lookback(params)
	if len(bars) <= lookback {
		return nil, &InsufficientDataError{Strategy: strategyName, Have: len(bars), Need: lookback}
	}

	var (
		cash     = cfg.InitialCapital
		position *domain.Position
		trades   []domain.Trade
		equity   = make([]domain.EquityPoint, 0, len(bars)-lookback)
		anomal   = 0
	)

	for i := lookback; i < len(bars); i++ {
		bar := bars[i]
		sig := strat.GenerateSignals(bars[:i+1], params)

		if !finiteSignal(sig) {
			// Numeric anomaly inside the strategy: treat as no signal.
			anomal++
			sig = domain.Signal{}
		}

		switch {
		case sig.Entry && position == nil:
			execPrice := bar.Close * (1 + cfg.Slippage)
			positionValue := cash * (1 - cashReserve)
			size := positionValue / execPrice
			commission := positionValue * cfg.Commission
			cash -= positionValue + commission

			dir := sig.Direction
			if dir == "" {
				dir = domain.DirectionLong
			}
			position = &domain.Position{
				EntryTime:  bar.Timestamp,
				EntryPrice: execPrice,
				Direction:  dir,
				Size:       size,
			}

		case sig.Exit && position != nil:
			cash += e.closePosition(position, bar, cfg, &trades)
			position = nil
		}

		// Mark to market after any action on this bar.
		value := cash
		if position != nil {
			value += position.Size * bar.Close
		}
		equity = append(equity, domain.EquityPoint{Timestamp: bar.Timestamp, Equity: value})
	}

	// Force close a dangling position on the final bar so the trade log and
	// cash are always consistent.
	if position != nil {
		last := bars[len(bars)-1]
		cash += e.closePosition(position, last, cfg, &trades)
		position = nil
		equity[len(equity)-1].Equity = cash
	}

	if anomal > 0 {
		e.log.Debug("absorbed numeric anomalies", "strategy", strategyName, "bars", anomal)
	}

	res := &Result{
		ID:             uuid.NewString(),
		Strategy:       strategyName,
		Symbol:         symbol,
		Start:          bars[0].Timestamp,
		End:            bars[len(bars)-1].Timestamp,
		InitialCapital: cfg.InitialCapital,
		FinalCapital:   equity[len(equity)-1].Equity,
		Params:         params,
		Trades:         trades,
		Equity:         equity,
	}
	res.Metrics = Compute(res.Equity, res.Trades, res.InitialCapital, res.FinalCapital, cfg.RiskFreeRate)
	return res, nil
}

// closePosition sells the open position at the bar's close with slippage and
// commission applied, appends the completed trade, and returns the cash
// proceeds.
func (e *Engine) closePosition(pos *domain.Position, bar domain.PriceBar, cfg Config, trades *[]domain.Trade) float64 {
	execPrice := bar.Close * (1 - cfg.Slippage)
	exitValue := pos.Size * execPrice
	commission := exitValue * cfg.Commission

	*trades = append(*trades, domain.NewTrade(
		pos.EntryTime, bar.Timestamp,
		pos.EntryPrice, execPrice,
		pos.Direction, pos.Size,
	))
	return exitValue - commission
}

func validateConfig(cfg Config) error {
	if cfg.InitialCapital <= 0 {
		return &ConfigError{Reason: fmt.Sprintf("initial capital must be positive, got %v", cfg.InitialCapital)}
	}
	if cfg.Commission < 0 {
		return &ConfigError{Reason: fmt.Sprintf("commission must not be negative, got %v", cfg.Commission)}
	}
	if cfg.Slippage < 0 {
		return &ConfigError{Reason: fmt.Sprintf("slippage must not be negative, got %v", cfg.Slippage)}
	}
	return nil
}

// finiteSignal reports whether every numeric field of the signal is finite.
func finiteSignal(sig domain.Signal) bool {
	return !math.IsNaN(sig.Strength) && !math.IsInf(sig.Strength, 0)
}
