// Package indicator provides the rolling-window price transforms used by the
// built-in strategies. Every function returns an explicit ok flag instead of
// NaN: ok is false when the window has not filled yet or when the
// computation produced a non-finite intermediate value. Callers treat a
// false ok as "no signal".
package indicator

import "math"

// Finite reports whether v is neither NaN nor infinite.
func Finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// SMA returns the simple moving average of the last period values.
func SMA(values []float64, period int) (float64, bool) {
	if period <= 0 || len(values) < period {
		return 0, false
	}
	sum := 0.0
	for _, v := range values[len(values)-period:] {
		sum += v
	}
	avg := sum / float64(period)
	return avg, Finite(avg)
}

// EMA returns the exponential moving average over the whole series with
// smoothing factor 2/(span+1), seeded with the first value.
func EMA(values []float64, span int) (float64, bool) {
	if span <= 0 || len(values) == 0 {
		return 0, false
	}
	alpha := 2.0 / float64(span+1)
	ema := values[0]
	for _, v := range values[1:] {
		ema = alpha*v + (1-alpha)*ema
	}
	return ema, Finite(ema)
}

// StdDev returns the sample standard deviation (n-1 denominator) of the last
// period values. A window shorter than two values has no defined deviation.
func StdDev(values []float64, period int) (float64, bool) {
	if period < 2 || len(values) < period {
		return 0, false
	}
	window := values[len(values)-period:]
	mean := 0.0
	for _, v := range window {
		mean += v
	}
	mean /= float64(period)

	variance := 0.0
	for _, v := range window {
		d := v - mean
		variance += d * d
	}
	variance /= float64(period - 1)
	sd := math.Sqrt(variance)
	return sd, Finite(sd)
}

// RSI returns the relative strength index over the last period price deltas,
// using plain rolling means of gains and losses. When the window has no
// losses the RSI saturates at 100; a window with neither gains nor losses
// has no defined value.
func RSI(values []float64, period int) (float64, bool) {
	if period <= 0 || len(values) < period+1 {
		return 0, false
	}
	gains, losses := 0.0, 0.0
	for i := len(values) - period; i < len(values); i++ {
		delta := values[i] - values[i-1]
		if delta > 0 {
			gains += delta
		} else {
			losses -= delta
		}
	}
	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)

	if avgLoss == 0 {
		if avgGain == 0 {
			return 0, false
		}
		return 100, true
	}
	rsi := 100 - 100/(1+avgGain/avgLoss)
	return rsi, Finite(rsi)
}

// MACD returns the MACD line (fast EMA minus slow EMA) and its signal line
// (EMA of the MACD line over signalSpan).
func MACD(values []float64, fastSpan, slowSpan, signalSpan int) (macd, signal float64, ok bool) {
	if len(values) < slowSpan+signalSpan {
		return 0, 0, false
	}

	fastAlpha := 2.0 / float64(fastSpan+1)
	slowAlpha := 2.0 / float64(slowSpan+1)
	sigAlpha := 2.0 / float64(signalSpan+1)

	fast, slow := values[0], values[0]
	macd = 0
	signal = 0
	for i, v := range values {
		if i > 0 {
			fast = fastAlpha*v + (1-fastAlpha)*fast
			slow = slowAlpha*v + (1-slowAlpha)*slow
		}
		macd = fast - slow
		if i == 0 {
			signal = macd
		} else {
			signal = sigAlpha*macd + (1-sigAlpha)*signal
		}
	}
	return macd, signal, Finite(macd) && Finite(signal)
}

// ROC returns the rate of change in percent between the latest value and the
// value period samples earlier.
func ROC(values []float64, period int) (float64, bool) {
	if period <= 0 || len(values) < period+1 {
		return 0, false
	}
	base := values[len(values)-1-period]
	if base == 0 {
		return 0, false
	}
	roc := (values[len(values)-1] - base) / base * 100
	return roc, Finite(roc)
}

// HighLow returns the highest high and lowest low over the last period
// entries of the two series.
func HighLow(highs, lows []float64, period int) (hi, lo float64, ok bool) {
	if period <= 0 || len(highs) < period || len(lows) < period {
		return 0, 0, false
	}
	hi = highs[len(highs)-period]
	for _, v := range highs[len(highs)-period:] {
		if v > hi {
			hi = v
		}
	}
	lo = lows[len(lows)-period]
	for _, v := range lows[len(lows)-period:] {
		if v < lo {
			lo = v
		}
	}
	return hi, lo, Finite(hi) && Finite(lo)
}
