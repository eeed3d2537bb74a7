package domain

import "time"

// Position is a live position snapshot reconstructed from the exchange on every query.
// The exchange account is the only authoritative owner; the bot never caches it across cycles.
type Position struct {
	Symbol     string
	Side       Side
	EntryPrice float64
	Quantity   float64 // Absolute contract quantity
	Leverage   int
	MarkPrice  float64
	OpenedAt   time.Time // Zero when the exchange does not report it
}

// IsOpen reports whether the snapshot carries a non-zero quantity.
func (p *Position) IsOpen() bool {
	return p != nil && p.Quantity > 0
}
