// Package httpapi exposes backtesting over a JSON HTTP API.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"backlab/internal/backtest"
	"backlab/internal/domain"
	"backlab/internal/optimize"
	"backlab/internal/store"
	"backlab/internal/strategy"
)

// BarLoader supplies validated bar series for a symbol and date range.
type BarLoader interface {
	Load(ctx context.Context, symbol string, start, end time.Time) ([]domain.PriceBar, error)
}

// Server serves the backtesting HTTP API.
type Server struct {
	registry  *strategy.Registry
	engine    *backtest.Engine
	optimizer *optimize.Optimizer
	loader    BarLoader
	results   store.ResultStore
	runCfg    backtest.Config
	log       *slog.Logger
}

// NewServer wires the API over the given components. runCfg supplies the
// simulation defaults that per-request overrides are applied on top of.
func NewServer(registry *strategy.Registry, engine *backtest.Engine, optimizer *optimize.Optimizer, loader BarLoader, results store.ResultStore, runCfg backtest.Config) *Server {
	return &Server{
		registry:  registry,
		engine:    engine,
		optimizer: optimizer,
		loader:    loader,
		results:   results,
		runCfg:    runCfg,
		log:       slog.Default().With("component", "httpapi"),
	}
}

// RegisterRoutes registers all API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/strategies", s.handleStrategies)
	mux.HandleFunc("POST /api/v1/backtests", s.handleRunBacktest)
	mux.HandleFunc("GET /api/v1/backtests", s.handleListBacktests)
	mux.HandleFunc("GET /api/v1/backtests/{id}", s.handleGetBacktest)
	mux.HandleFunc("POST /api/v1/optimize", s.handleOptimize)
	mux.HandleFunc("GET /healthz", s.handleHealth)
}

// Handler returns the complete http.Handler with CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return corsMiddleware(mux)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleStrategies(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, StrategiesResponse{Strategies: s.registry.List()})
}

func (s *Server) handleRunBacktest(w http.ResponseWriter, r *http.Request) {
	var req BacktestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	start, end, err := parseRange(req.Start, req.End)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	bars, err := s.loader.Load(r.Context(), req.Symbol, start, end)
	if err != nil {
		writeError(w, http.StatusBadGateway, "loading bars: "+err.Error())
		return
	}

	res, err := s.engine.Run(req.Strategy, req.Symbol, bars, req.Params, s.applyOverrides(req.Config))
	if err != nil {
		writeError(w, statusForRunError(err), err.Error())
		return
	}

	if err := s.results.SaveResult(r.Context(), res); err != nil {
		// The run itself succeeded; log and return it anyway.
		s.log.Error("saving result", "id", res.ID, "err", err)
	}
	writeJSON(w, res)
}

func (s *Server) handleListBacktests(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	summaries, err := s.results.ListResults(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if summaries == nil {
		summaries = []store.RunSummary{}
	}
	writeJSON(w, summaries)
}

func (s *Server) handleGetBacktest(w http.ResponseWriter, r *http.Request) {
	res, err := s.results.GetResult(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrRunNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, res)
}

func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	var req OptimizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	start, end, err := parseRange(req.Start, req.End)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	metric := req.Metric
	if metric == "" {
		metric = "sharpe_ratio"
	}

	bars, err := s.loader.Load(r.Context(), req.Symbol, start, end)
	if err != nil {
		writeError(w, http.StatusBadGateway, "loading bars: "+err.Error())
		return
	}

	ranked, err := s.optimizer.Search(r.Context(), req.Strategy, req.Symbol, bars, req.Grid, metric, s.applyOverrides(req.Config))
	if err != nil {
		writeError(w, statusForRunError(err), err.Error())
		return
	}

	top := req.Top
	if top <= 0 || top > len(ranked) {
		top = len(ranked)
	}
	resp := OptimizeResponse{
		Strategy:     req.Strategy,
		Symbol:       req.Symbol,
		Metric:       metric,
		Combinations: req.Grid.Size(),
		Results:      make([]OptimizeRunResult, 0, top),
	}
	for _, rr := range ranked[:top] {
		resp.Results = append(resp.Results, OptimizeRunResult{
			Rank:    rr.Rank,
			Params:  rr.Params,
			Score:   rr.Score,
			Metrics: rr.Result.Metrics,
		})
	}
	writeJSON(w, resp)
}

// applyOverrides layers per-request overrides over the server defaults.
func (s *Server) applyOverrides(o *ConfigOverride) backtest.Config {
	cfg := s.runCfg
	if o == nil {
		return cfg
	}
	if o.InitialCapital != nil {
		cfg.InitialCapital = *o.InitialCapital
	}
	if o.Commission != nil {
		cfg.Commission = *o.Commission
	}
	if o.Slippage != nil {
		cfg.Slippage = *o.Slippage
	}
	if o.RiskFreeRate != nil {
		cfg.RiskFreeRate = *o.RiskFreeRate
	}
	return cfg
}

func parseRange(startStr, endStr string) (start, end time.Time, err error) {
	if start, err = time.Parse("2006-01-02", startStr); err != nil {
		return start, end, fmt.Errorf("invalid start date %q", startStr)
	}
	if end, err = time.Parse("2006-01-02", endStr); err != nil {
		return start, end, fmt.Errorf("invalid end date %q", endStr)
	}
	if end.Before(start) {
		return start, end, fmt.Errorf("end date %q before start date %q", endStr, startStr)
	}
	return start, end, nil
}

// statusForRunError maps engine and optimizer failures onto HTTP statuses:
// caller mistakes are 400s, everything else is a 500.
func statusForRunError(err error) int {
	var unknownStrategy *strategy.UnknownStrategyError
	var insufficientData *backtest.InsufficientDataError
	var badConfig *backtest.ConfigError
	var unknownMetric *optimize.UnknownMetricError
	switch {
	case errors.As(err, &unknownStrategy),
		errors.As(err, &insufficientData),
		errors.As(err, &badConfig),
		errors.As(err, &unknownMetric):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
