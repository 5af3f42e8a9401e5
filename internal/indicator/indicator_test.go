package indicator

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestSMA(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}

	got, ok := SMA(values, 3)
	if !ok {
		t.Fatal("SMA returned ok=false for sufficient data")
	}
	if !almostEqual(got, 4) {
		t.Errorf("SMA = %v, want 4", got)
	}

	if _, ok := SMA(values, 6); ok {
		t.Error("SMA should report ok=false when window exceeds data")
	}
	if _, ok := SMA(values, 0); ok {
		t.Error("SMA should report ok=false for zero period")
	}
}

func TestEMAConstantSeries(t *testing.T) {
	values := []float64{5, 5, 5, 5, 5}
	got, ok := EMA(values, 3)
	if !ok {
		t.Fatal("EMA returned ok=false")
	}
	if !almostEqual(got, 5) {
		t.Errorf("EMA of constant series = %v, want 5", got)
	}
}

func TestEMATracksRecentValues(t *testing.T) {
	rising := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	ema, ok := EMA(rising, 3)
	if !ok {
		t.Fatal("EMA returned ok=false")
	}
	sma, _ := SMA(rising, 10)
	if ema <= sma {
		t.Errorf("short-span EMA (%v) should exceed full-series mean (%v) on a rising series", ema, sma)
	}
}

func TestStdDev(t *testing.T) {
	values := []float64{2, 4, 4, 4, 5, 5, 7, 9}

	got, ok := StdDev(values, 8)
	if !ok {
		t.Fatal("StdDev returned ok=false")
	}
	// Sample stdev of this series is sqrt(32/7).
	if want := math.Sqrt(32.0 / 7.0); !almostEqual(got, want) {
		t.Errorf("StdDev = %v, want %v", got, want)
	}

	flat := []float64{3, 3, 3, 3}
	got, ok = StdDev(flat, 4)
	if !ok || got != 0 {
		t.Errorf("StdDev(flat) = (%v, %v), want (0, true)", got, ok)
	}
}

func TestRSI(t *testing.T) {
	// Monotonically rising series: no losses, RSI saturates at 100.
	rising := []float64{1, 2, 3, 4, 5, 6}
	got, ok := RSI(rising, 5)
	if !ok {
		t.Fatal("RSI returned ok=false for rising series")
	}
	if !almostEqual(got, 100) {
		t.Errorf("RSI(rising) = %v, want 100", got)
	}

	// Flat series: zero gains and zero losses, no defined value.
	flat := []float64{5, 5, 5, 5, 5, 5}
	if _, ok := RSI(flat, 5); ok {
		t.Error("RSI(flat) should report ok=false")
	}

	// Equal gains and losses give RSI 50.
	seesaw := []float64{10, 11, 10, 11, 10, 11, 10, 11, 10}
	got, ok = RSI(seesaw, 8)
	if !ok {
		t.Fatal("RSI returned ok=false for seesaw series")
	}
	if !almostEqual(got, 50) {
		t.Errorf("RSI(seesaw) = %v, want 50", got)
	}
}

func TestMACDInsufficientData(t *testing.T) {
	values := []float64{1, 2, 3}
	if _, _, ok := MACD(values, 12, 26, 9); ok {
		t.Error("MACD should report ok=false for short series")
	}
}

func TestMACDConstantSeries(t *testing.T) {
	values := make([]float64, 50)
	for i := range values {
		values[i] = 100
	}
	macd, signal, ok := MACD(values, 12, 26, 9)
	if !ok {
		t.Fatal("MACD returned ok=false")
	}
	if !almostEqual(macd, 0) || !almostEqual(signal, 0) {
		t.Errorf("MACD(constant) = (%v, %v), want (0, 0)", macd, signal)
	}
}

func TestROC(t *testing.T) {
	values := []float64{100, 101, 102, 103, 110}

	got, ok := ROC(values, 4)
	if !ok {
		t.Fatal("ROC returned ok=false")
	}
	if !almostEqual(got, 10) {
		t.Errorf("ROC = %v, want 10", got)
	}

	// Zero base value must not produce an infinity.
	zeros := []float64{0, 0, 5}
	if _, ok := ROC(zeros, 2); ok {
		t.Error("ROC with zero base should report ok=false")
	}
}

func TestHighLow(t *testing.T) {
	highs := []float64{10, 12, 11, 15, 13}
	lows := []float64{8, 9, 7, 11, 10}

	hi, lo, ok := HighLow(highs, lows, 4)
	if !ok {
		t.Fatal("HighLow returned ok=false")
	}
	if hi != 15 {
		t.Errorf("highest high = %v, want 15", hi)
	}
	if lo != 7 {
		t.Errorf("lowest low = %v, want 7", lo)
	}

	if _, _, ok := HighLow(highs, lows, 6); ok {
		t.Error("HighLow should report ok=false when window exceeds data")
	}
}
