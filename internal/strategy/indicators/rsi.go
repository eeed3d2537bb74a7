package indicators

import "math"

// RSI computes the Relative Strength Index using Wilder's smoothing
// (exponential average with alpha = 1/period over gains and losses).
// The first bar has no change and counts as a zero gain and zero loss, so the
// series is defined from index period-1. When the average loss is zero the RSI is 100.
func RSI(closes []float64, period int) []float64 {
	out := nanSeries(len(closes))
	if period <= 0 {
		return out
	}

	alpha := 1.0 / float64(period)
	var avgGain, avgLoss float64
	for i := range closes {
		if i > 0 {
			change := closes[i] - closes[i-1]
			gain, loss := 0.0, 0.0
			if change > 0 {
				gain = change
			} else {
				loss = -change
			}
			avgGain = alpha*gain + (1-alpha)*avgGain
			avgLoss = alpha*loss + (1-alpha)*avgLoss
		}

		if i < period-1 {
			continue
		}
		if avgLoss == 0 {
			out[i] = 100
			continue
		}
		rs := avgGain / avgLoss
		out[i] = math.Max(0, math.Min(100, 100-(100/(1+rs))))
	}
	return out
}
