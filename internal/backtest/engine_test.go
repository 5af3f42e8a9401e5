package backtest

import (
	"errors"
	"math"
	"testing"
	"time"

	"backlab/internal/domain"
	"backlab/internal/strategy"
)

// scripted is a deterministic test strategy that fires entries and exits at
// fixed bar indexes.
type scripted struct {
	lookback int
	entries  map[int]bool
	exits    map[int]bool
	strength float64
}

func (s *scripted) Name() string { return "scripted" }

func (s *scripted) Lookback(_ strategy.Params) int { return s.lookback }

func (s *scripted) GenerateSignals(history []domain.PriceBar, _ strategy.Params) domain.Signal {
	i := len(history) - 1
	if s.entries[i] {
		return domain.Signal{Entry: true, Direction: domain.DirectionLong, Strength: s.strength}
	}
	if s.exits[i] {
		return domain.Signal{Exit: true}
	}
	return domain.Signal{}
}

func testBars(closes ...float64) []domain.PriceBar {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]domain.PriceBar, len(closes))
	for i, c := range closes {
		bars[i] = domain.PriceBar{
			Timestamp: t0.AddDate(0, 0, i),
			Open:      c,
			High:      c + 1,
			Low:       c - 1,
			Close:     c,
			Volume:    100,
		}
	}
	return bars
}

func newTestEngine(s strategy.Strategy) *Engine {
	return NewEngine(strategy.NewRegistry(s))
}

func TestRunEntryExitCostModel(t *testing.T) {
	// Entry at close 100 with 0.05% slippage executes at 100.05; 95% of the
	// $10k capital is deployed, so size = 9500/100.05 and entry commission is
	// $9.50. Exit at close 110 executes at 109.945.
	eng := newTestEngine(&scripted{
		lookback: 1,
		entries:  map[int]bool{1: true},
		exits:    map[int]bool{3: true},
	})
	bars := testBars(100, 100, 105, 110, 110)

	res, err := eng.Run("scripted", "BTC/USD", bars, nil, DefaultConfig())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Trades) != 1 {
		t.Fatalf("got %d trades, want 1", len(res.Trades))
	}

	tr := res.Trades[0]
	wantSize := 9500.0 / 100.05
	if math.Abs(tr.EntryPrice-100.05) > 1e-9 {
		t.Errorf("EntryPrice = %v, want 100.05", tr.EntryPrice)
	}
	if math.Abs(tr.ExitPrice-109.945) > 1e-9 {
		t.Errorf("ExitPrice = %v, want 109.945", tr.ExitPrice)
	}
	if math.Abs(tr.Size-wantSize) > 1e-9 {
		t.Errorf("Size = %v, want %v", tr.Size, wantSize)
	}
	if math.Abs(tr.PnL-939.5) > 1 {
		t.Errorf("PnL = %v, want ~939.5", tr.PnL)
	}

	// Cash after entry is 10000 - 9500 - 9.50 = 490.50; exit proceeds are
	// size*109.945 less 0.1% commission.
	exitValue := wantSize * 109.945
	wantFinal := 490.50 + exitValue - exitValue*0.001
	if math.Abs(res.FinalCapital-wantFinal) > 1e-6 {
		t.Errorf("FinalCapital = %v, want %v", res.FinalCapital, wantFinal)
	}
	if res.FinalCapital != res.Equity[len(res.Equity)-1].Equity {
		t.Error("FinalCapital does not match the last equity point")
	}
}

func TestRunForcedCloseAtEnd(t *testing.T) {
	// The strategy never exits: the engine must close the position on the
	// final bar and settle the last equity point to pure cash.
	eng := newTestEngine(&scripted{
		lookback: 1,
		entries:  map[int]bool{1: true},
	})
	bars := testBars(100, 100, 102, 104, 106)

	res, err := eng.Run("scripted", "BTC/USD", bars, nil, DefaultConfig())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Trades) != 1 {
		t.Fatalf("got %d trades, want 1 forced close", len(res.Trades))
	}

	tr := res.Trades[0]
	if !tr.ExitTime.Equal(bars[len(bars)-1].Timestamp) {
		t.Errorf("ExitTime = %v, want last bar %v", tr.ExitTime, bars[len(bars)-1].Timestamp)
	}
	last := res.Equity[len(res.Equity)-1].Equity
	if res.FinalCapital != last {
		t.Errorf("FinalCapital = %v, last equity = %v, want equal", res.FinalCapital, last)
	}
}

func TestRunEquityCurveLength(t *testing.T) {
	eng := newTestEngine(&scripted{lookback: 3})
	bars := testBars(100, 101, 102, 103, 104, 105, 106)

	res, err := eng.Run("scripted", "ETH/USD", bars, nil, DefaultConfig())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if want := len(bars) - 3; len(res.Equity) != want {
		t.Errorf("len(Equity) = %d, want %d", len(res.Equity), want)
	}
}

func TestRunNoSignalsHoldsCash(t *testing.T) {
	eng := newTestEngine(&scripted{lookback: 1})
	bars := testBars(100, 90, 110, 95, 105)

	res, err := eng.Run("scripted", "BTC/USD", bars, nil, DefaultConfig())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Trades) != 0 {
		t.Errorf("got %d trades, want 0", len(res.Trades))
	}
	for i, p := range res.Equity {
		if p.Equity != 10000 {
			t.Errorf("Equity[%d] = %v, want 10000", i, p.Equity)
		}
	}
	if res.FinalCapital != 10000 {
		t.Errorf("FinalCapital = %v, want 10000", res.FinalCapital)
	}
}

func TestRunIsDeterministic(t *testing.T) {
	eng := newTestEngine(&scripted{
		lookback: 1,
		entries:  map[int]bool{1: true, 5: true},
		exits:    map[int]bool{3: true, 7: true},
	})
	bars := testBars(100, 101, 99, 103, 102, 104, 108, 107, 109, 110)

	a, err := eng.Run("scripted", "BTC/USD", bars, nil, DefaultConfig())
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	b, err := eng.Run("scripted", "BTC/USD", bars, nil, DefaultConfig())
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}

	if a.FinalCapital != b.FinalCapital {
		t.Errorf("FinalCapital differs: %v vs %v", a.FinalCapital, b.FinalCapital)
	}
	if len(a.Trades) != len(b.Trades) {
		t.Fatalf("trade counts differ: %d vs %d", len(a.Trades), len(b.Trades))
	}
	for i := range a.Equity {
		if a.Equity[i] != b.Equity[i] {
			t.Errorf("Equity[%d] differs: %+v vs %+v", i, a.Equity[i], b.Equity[i])
		}
	}
	if a.ID == b.ID {
		t.Error("run IDs should be unique per run")
	}
}

func TestRunNonFiniteStrengthIsAbsorbed(t *testing.T) {
	eng := newTestEngine(&scripted{
		lookback: 1,
		entries:  map[int]bool{1: true},
		strength: math.NaN(),
	})
	bars := testBars(100, 101, 102, 103)

	res, err := eng.Run("scripted", "BTC/USD", bars, nil, DefaultConfig())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Trades) != 0 {
		t.Errorf("got %d trades, want 0: non-finite signal must be dropped", len(res.Trades))
	}
	if res.FinalCapital != 10000 {
		t.Errorf("FinalCapital = %v, want untouched 10000", res.FinalCapital)
	}
}

func TestRunInsufficientData(t *testing.T) {
	eng := newTestEngine(&scripted{lookback: 10})
	bars := testBars(100, 101, 102)

	_, err := eng.Run("scripted", "BTC/USD", bars, nil, DefaultConfig())
	var insufficientErr *InsufficientDataError
	if !errors.As(err, &insufficientErr) {
		t.Fatalf("err = %v, want InsufficientDataError", err)
	}
	if insufficientErr.Have != 3 || insufficientErr.Need != 10 {
		t.Errorf("error = %+v, want Have=3 Need=10", insufficientErr)
	}
}

func TestRunUnknownStrategy(t *testing.T) {
	eng := newTestEngine(&scripted{lookback: 1})
	_, err := eng.Run("missing", "BTC/USD", testBars(100, 101), nil, DefaultConfig())

	var unknownErr *strategy.UnknownStrategyError
	if !errors.As(err, &unknownErr) {
		t.Fatalf("err = %v, want UnknownStrategyError", err)
	}
}

func TestRunInvalidConfig(t *testing.T) {
	eng := newTestEngine(&scripted{lookback: 1})
	bars := testBars(100, 101)

	cases := []Config{
		{InitialCapital: 0},
		{InitialCapital: 10000, Commission: -0.01},
		{InitialCapital: 10000, Slippage: -0.01},
	}
	for _, cfg := range cases {
		_, err := eng.Run("scripted", "BTC/USD", bars, nil, cfg)
		var cfgErr *ConfigError
		if !errors.As(err, &cfgErr) {
			t.Errorf("config %+v: err = %v, want ConfigError", cfg, err)
		}
	}
}

func TestRunEntryIgnoredWhileInPosition(t *testing.T) {
	// A second entry signal while a position is open must be a no-op.
	eng := newTestEngine(&scripted{
		lookback: 1,
		entries:  map[int]bool{1: true, 2: true},
		exits:    map[int]bool{4: true},
	})
	bars := testBars(100, 100, 101, 102, 103)

	res, err := eng.Run("scripted", "BTC/USD", bars, nil, DefaultConfig())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Trades) != 1 {
		t.Errorf("got %d trades, want 1", len(res.Trades))
	}
}
