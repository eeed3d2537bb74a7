package indicators

import (
	"math"

	"perpScalper/internal/domain"
)

// TrueRanges returns the true range of every kline. The first kline has no
// previous close, so its true range is simply high - low.
func TrueRanges(klines []*domain.Kline) []float64 {
	trueRanges := make([]float64, len(klines))
	for i, k := range klines {
		if i == 0 {
			trueRanges[i] = k.High - k.Low
			continue
		}
		prevClose := klines[i-1].Close

		// True Range is the greatest of:
		// 1. Current High - Current Low
		// 2. |Current High - Previous Close|
		// 3. |Current Low - Previous Close|
		tr1 := k.High - k.Low
		tr2 := math.Abs(k.High - prevClose)
		tr3 := math.Abs(k.Low - prevClose)
		trueRanges[i] = math.Max(tr1, math.Max(tr2, tr3))
	}
	return trueRanges
}

// ATR computes the Average True Range series with Wilder's smoothing.
// The first defined value, at index period-1, is the simple average of the
// first period true ranges; earlier indices are NaN.
func ATR(klines []*domain.Kline, period int) []float64 {
	out := nanSeries(len(klines))
	if period <= 0 || len(klines) < period {
		return out
	}

	trueRanges := TrueRanges(klines)
	atr := 0.0
	for i := 0; i < period; i++ {
		atr += trueRanges[i]
	}
	atr /= float64(period)
	out[period-1] = atr

	for i := period; i < len(klines); i++ {
		atr = (atr*float64(period-1) + trueRanges[i]) / float64(period)
		out[i] = atr
	}
	return out
}
