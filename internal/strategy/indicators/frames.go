package indicators

import "perpScalper/internal/domain"

// BuildFrames annotates every kline with the indicators of the profile.
// The result is index-aligned with the input.
func BuildFrames(klines []*domain.Kline, p Profile) []domain.IndicatorFrame {
	closes := make([]float64, len(klines))
	volumes := make([]float64, len(klines))
	for i, k := range klines {
		closes[i] = k.Close
		volumes[i] = k.Volume
	}

	emaShort := EMA(closes, p.EMAShort)
	emaMid := EMA(closes, p.EMAMid)
	emaLong := EMA(closes, p.EMALong)
	rsi := RSI(closes, p.RSIPeriod)
	atr := ATR(klines, p.ATRPeriod)
	volumeEMA := AdjustedEWMA(volumes, p.VolumeSpan)

	frames := make([]domain.IndicatorFrame, len(klines))
	for i, k := range klines {
		frames[i] = domain.IndicatorFrame{
			Kline:     *k,
			EMAShort:  emaShort[i],
			EMAMid:    emaMid[i],
			EMALong:   emaLong[i],
			RSI:       rsi[i],
			ATR:       atr[i],
			VolumeEMA: volumeEMA[i],
		}
	}
	return frames
}
