package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.

	"backlab/internal/backtest"
	"backlab/internal/domain"
)

// Compile-time interface check.
var _ ResultStore = (*SQLiteStore)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id              TEXT PRIMARY KEY,
	strategy        TEXT NOT NULL,
	symbol          TEXT NOT NULL,
	start_time      TEXT NOT NULL,
	end_time        TEXT NOT NULL,
	initial_capital REAL NOT NULL,
	final_capital   REAL NOT NULL,
	params          TEXT NOT NULL,
	metrics         TEXT NOT NULL,
	equity          TEXT NOT NULL,
	total_trades    INTEGER NOT NULL,
	created_at      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS run_trades (
	run_id      TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	seq         INTEGER NOT NULL,
	entry_time  TEXT NOT NULL,
	exit_time   TEXT NOT NULL,
	direction   TEXT NOT NULL,
	entry_price REAL NOT NULL,
	exit_price  REAL NOT NULL,
	size        REAL NOT NULL,
	pnl         REAL NOT NULL,
	pnl_pct     REAL NOT NULL,
	PRIMARY KEY (run_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at DESC);
`

// SQLiteStore implements ResultStore backed by a SQLite database. Trades get
// their own table; the equity curve, params, and metrics are stored as JSON
// columns since they are only ever read back whole.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at dbPath and applies the
// schema.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveResult persists the run and its trades in one transaction.
func (s *SQLiteStore) SaveResult(ctx context.Context, res *backtest.Result) error {
	params, err := json.Marshal(res.Params)
	if err != nil {
		return fmt.Errorf("encoding params: %w", err)
	}
	metrics, err := json.Marshal(res.Metrics)
	if err != nil {
		return fmt.Errorf("encoding metrics: %w", err)
	}
	equity, err := json.Marshal(res.Equity)
	if err != nil {
		return fmt.Errorf("encoding equity: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, strategy, symbol, start_time, end_time,
			initial_capital, final_capital, params, metrics, equity,
			total_trades, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.ID, res.Strategy, res.Symbol,
		res.Start.UTC().Format(time.RFC3339Nano),
		res.End.UTC().Format(time.RFC3339Nano),
		res.InitialCapital, res.FinalCapital,
		string(params), string(metrics), string(equity),
		len(res.Trades),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting run %s: %w", res.ID, err)
	}

	for i, t := range res.Trades {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO run_trades (run_id, seq, entry_time, exit_time,
				direction, entry_price, exit_price, size, pnl, pnl_pct)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			res.ID, i,
			t.EntryTime.UTC().Format(time.RFC3339Nano),
			t.ExitTime.UTC().Format(time.RFC3339Nano),
			string(t.Direction),
			t.EntryPrice, t.ExitPrice, t.Size, t.PnL, t.PnLPct,
		)
		if err != nil {
			return fmt.Errorf("inserting trade %d of run %s: %w", i, res.ID, err)
		}
	}
	return tx.Commit()
}

// GetResult loads a stored run with its full trade log and equity curve.
func (s *SQLiteStore) GetResult(ctx context.Context, id string) (*backtest.Result, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, strategy, symbol, start_time, end_time,
			initial_capital, final_capital, params, metrics, equity
		FROM runs WHERE id = ?`, id)

	var res backtest.Result
	var startStr, endStr, paramsStr, metricsStr, eqStr string
	err := row.Scan(&res.ID, &res.Strategy, &res.Symbol, &startStr, &endStr,
		&res.InitialCapital, &res.FinalCapital, &paramsStr, &metricsStr, &eqStr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return nil, err
	}

	if res.Start, err = time.Parse(time.RFC3339Nano, startStr); err != nil {
		return nil, fmt.Errorf("parsing start time: %w", err)
	}
	if res.End, err = time.Parse(time.RFC3339Nano, endStr); err != nil {
		return nil, fmt.Errorf("parsing end time: %w", err)
	}
	if err := json.Unmarshal([]byte(paramsStr), &res.Params); err != nil {
		return nil, fmt.Errorf("decoding params: %w", err)
	}
	if err := json.Unmarshal([]byte(metricsStr), &res.Metrics); err != nil {
		return nil, fmt.Errorf("decoding metrics: %w", err)
	}
	if err := json.Unmarshal([]byte(eqStr), &res.Equity); err != nil {
		return nil, fmt.Errorf("decoding equity: %w", err)
	}

	res.Trades, err = s.loadTrades(ctx, id)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (s *SQLiteStore) loadTrades(ctx context.Context, runID string) ([]domain.Trade, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT entry_time, exit_time, direction, entry_price, exit_price,
			size, pnl, pnl_pct
		FROM run_trades WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []domain.Trade
	for rows.Next() {
		var t domain.Trade
		var entryStr, exitStr, dir string
		if err := rows.Scan(&entryStr, &exitStr, &dir,
			&t.EntryPrice, &t.ExitPrice, &t.Size, &t.PnL, &t.PnLPct); err != nil {
			return nil, err
		}
		if t.EntryTime, err = time.Parse(time.RFC3339Nano, entryStr); err != nil {
			return nil, fmt.Errorf("parsing trade entry time: %w", err)
		}
		if t.ExitTime, err = time.Parse(time.RFC3339Nano, exitStr); err != nil {
			return nil, fmt.Errorf("parsing trade exit time: %w", err)
		}
		t.Direction = domain.Direction(dir)
		t.Duration = t.ExitTime.Sub(t.EntryTime)
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// ListResults returns summaries of stored runs, newest first.
func (s *SQLiteStore) ListResults(ctx context.Context, limit int) ([]RunSummary, error) {
	q := `
		SELECT id, strategy, symbol, start_time, end_time,
			final_capital, metrics, total_trades, created_at
		FROM runs ORDER BY created_at DESC`
	args := []any{}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []RunSummary
	for rows.Next() {
		var rs RunSummary
		var startStr, endStr, createdStr, metricsStr string
		if err := rows.Scan(&rs.ID, &rs.Strategy, &rs.Symbol, &startStr, &endStr,
			&rs.FinalCapital, &metricsStr, &rs.TotalTrades, &createdStr); err != nil {
			return nil, err
		}
		if rs.Start, err = time.Parse(time.RFC3339Nano, startStr); err != nil {
			return nil, fmt.Errorf("parsing start time: %w", err)
		}
		if rs.End, err = time.Parse(time.RFC3339Nano, endStr); err != nil {
			return nil, fmt.Errorf("parsing end time: %w", err)
		}
		if rs.CreatedAt, err = time.Parse(time.RFC3339Nano, createdStr); err != nil {
			return nil, fmt.Errorf("parsing created time: %w", err)
		}

		var m backtest.Metrics
		if err := json.Unmarshal([]byte(metricsStr), &m); err != nil {
			return nil, fmt.Errorf("decoding metrics: %w", err)
		}
		rs.TotalReturn = m.TotalReturn
		summaries = append(summaries, rs)
	}
	return summaries, rows.Err()
}
