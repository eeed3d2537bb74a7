package domain

import "time"

// Trade represents a completed close, as reported to the P&L accumulator and notifications.
type Trade struct {
	Symbol      string
	Side        Side
	EntryPrice  float64 // 0 when the entry price was not known at close time
	ExitPrice   float64
	Quantity    float64
	Leverage    int
	PNL         float64
	PNLKnown    bool
	ExitTime    time.Time
	CloseReason CloseReason
}
