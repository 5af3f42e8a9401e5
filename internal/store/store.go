// Package store persists bar data and backtest results: Parquet files on
// disk for bars, SQLite for run results.
package store

import (
	"context"
	"errors"
	"time"

	"backlab/internal/backtest"
	"backlab/internal/domain"
)

// ErrRunNotFound is returned by ResultStore lookups for unknown run IDs.
var ErrRunNotFound = errors.New("run not found")

// BarStore persists and retrieves OHLCV bar data.
type BarStore interface {
	// WriteBars persists a batch of bars for a symbol, merging with any bars
	// already stored for the same timestamps.
	WriteBars(ctx context.Context, symbol string, bars []domain.PriceBar) error

	// ReadBars returns the stored bars for symbol within [start, end],
	// sorted by timestamp.
	ReadBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.PriceBar, error)

	// ListSymbols returns all symbols with stored bar data.
	ListSymbols(ctx context.Context) ([]string, error)
}

// RunSummary is the lightweight listing view of a stored backtest run.
type RunSummary struct {
	ID           string    `json:"id"`
	Strategy     string    `json:"strategy"`
	Symbol       string    `json:"symbol"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	FinalCapital float64   `json:"final_capital"`
	TotalReturn  float64   `json:"total_return"`
	TotalTrades  int       `json:"total_trades"`
	CreatedAt    time.Time `json:"created_at"`
}

// ResultStore persists and retrieves completed backtest runs.
type ResultStore interface {
	// SaveResult persists a run and its trade log.
	SaveResult(ctx context.Context, res *backtest.Result) error

	// GetResult retrieves a run by ID, or ErrRunNotFound.
	GetResult(ctx context.Context, id string) (*backtest.Result, error)

	// ListResults returns summaries of stored runs, newest first, up to
	// limit (0 means no limit).
	ListResults(ctx context.Context, limit int) ([]RunSummary, error)

	// Close releases the underlying storage handle.
	Close() error
}
