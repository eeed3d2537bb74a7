package domain

// OrderSide represents the side of an order (BUY or SELL).
type OrderSide string

const (
	Buy  OrderSide = "BUY"
	Sell OrderSide = "SELL"
)

// Side is the direction of a held position.
type Side string

const (
	Long  Side = "LONG"
	Short Side = "SHORT"
)

// EntryOrderSide returns the order side that opens a position in this direction.
func (s Side) EntryOrderSide() OrderSide {
	if s == Short {
		return Sell
	}
	return Buy
}

// CloseOrderSide returns the order side that reduces a position in this direction.
func (s Side) CloseOrderSide() OrderSide {
	if s == Short {
		return Buy
	}
	return Sell
}

// Valid reports whether s is one of the two position directions.
func (s Side) Valid() bool {
	return s == Long || s == Short
}

// Signal is the entry decision produced by the signal evaluator.
type Signal string

const (
	SignalNone  Signal = ""
	SignalLong  Signal = "LONG"
	SignalShort Signal = "SHORT"
)

// Side converts an actionable signal to its position direction.
// The second return value is false for SignalNone.
func (s Signal) Side() (Side, bool) {
	switch s {
	case SignalLong:
		return Long, true
	case SignalShort:
		return Short, true
	default:
		return "", false
	}
}

// CloseReason indicates why a position was closed.
type CloseReason string

const (
	CloseReasonExitSignal       CloseReason = "EXIT_SIGNAL"
	CloseReasonEMACross         CloseReason = "EMA_CROSS"
	CloseReasonRSIReversal      CloseReason = "RSI_REVERSAL"
	CloseReasonProtectionFailed CloseReason = "TP_SL_FAILED"
	CloseReasonUnwind           CloseReason = "UNWIND"
	CloseReasonManual           CloseReason = "MANUAL"
)
