package domain

import "time"

// Kline represents a single candlestick data point.
type Kline struct {
	OpenTime  time.Time // Start time of the interval
	CloseTime time.Time // End time of the interval
	Symbol    string    // Trading symbol
	Interval  string    // Kline interval (e.g., "1m", "5m")
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// IndicatorFrame is a Kline annotated with the derived indicator values at the same index.
// Fields are NaN until the corresponding indicator has warmed up.
type IndicatorFrame struct {
	Kline
	EMAShort  float64
	EMAMid    float64
	EMALong   float64
	RSI       float64
	ATR       float64
	VolumeEMA float64
}
