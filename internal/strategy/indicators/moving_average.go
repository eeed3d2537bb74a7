package indicators

import "math"

// EMA computes the exponential moving average of values over the given period.
// The recursion is seeded with the first value; indices before period-1 are NaN
// because the average has not seen a full window yet.
func EMA(values []float64, period int) []float64 {
	out := nanSeries(len(values))
	if period <= 0 || len(values) == 0 {
		return out
	}

	alpha := 2.0 / float64(period+1)
	ema := values[0]
	for i, v := range values {
		if i > 0 {
			ema = alpha*v + (1-alpha)*ema
		}
		if i >= period-1 {
			out[i] = ema
		}
	}
	return out
}

// AdjustedEWMA computes a bias-adjusted exponentially weighted mean with the
// given span. Every observation is weighted by (1-alpha)^age and the sum is
// normalised by the total weight, so the series is defined from the first value.
func AdjustedEWMA(values []float64, span int) []float64 {
	out := nanSeries(len(values))
	if span <= 0 {
		return out
	}

	decay := 1 - 2.0/float64(span+1)
	var num, den float64
	for i, v := range values {
		num = v + decay*num
		den = 1 + decay*den
		out[i] = num / den
	}
	return out
}

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
