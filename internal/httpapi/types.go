package httpapi

import (
	"backlab/internal/backtest"
	"backlab/internal/optimize"
	"backlab/internal/strategy"
)

// BacktestRequest is the POST /api/v1/backtests body.
type BacktestRequest struct {
	Strategy string          `json:"strategy"`
	Symbol   string          `json:"symbol"`
	Start    string          `json:"start"` // YYYY-MM-DD
	End      string          `json:"end"`   // YYYY-MM-DD
	Params   strategy.Params `json:"params,omitempty"`
	Config   *ConfigOverride `json:"config,omitempty"`
}

// ConfigOverride carries optional simulation parameter overrides; nil fields
// keep the server defaults.
type ConfigOverride struct {
	InitialCapital *float64 `json:"initial_capital,omitempty"`
	Commission     *float64 `json:"commission,omitempty"`
	Slippage       *float64 `json:"slippage,omitempty"`
	RiskFreeRate   *float64 `json:"risk_free_rate,omitempty"`
}

// OptimizeRequest is the POST /api/v1/optimize body.
type OptimizeRequest struct {
	Strategy string          `json:"strategy"`
	Symbol   string          `json:"symbol"`
	Start    string          `json:"start"`
	End      string          `json:"end"`
	Grid     optimize.Grid   `json:"grid"`
	Metric   string          `json:"metric,omitempty"`
	Top      int             `json:"top,omitempty"`
	Config   *ConfigOverride `json:"config,omitempty"`
}

// OptimizeResponse returns the top-ranked grid-search outcomes. Full equity
// curves are stripped to keep the payload small.
type OptimizeResponse struct {
	Strategy     string              `json:"strategy"`
	Symbol       string              `json:"symbol"`
	Metric       string              `json:"metric"`
	Combinations int                 `json:"combinations"`
	Results      []OptimizeRunResult `json:"results"`
}

// OptimizeRunResult is one ranked combination in an OptimizeResponse.
type OptimizeRunResult struct {
	Rank    int              `json:"rank"`
	Params  strategy.Params  `json:"params"`
	Score   float64          `json:"score"`
	Metrics backtest.Metrics `json:"metrics"`
}

// StrategiesResponse lists the registered strategy names.
type StrategiesResponse struct {
	Strategies []string `json:"strategies"`
}
