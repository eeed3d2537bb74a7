package risk

import "sync"

// StatsSnapshot is a copy of the running P&L counters.
type StatsSnapshot struct {
	TotalTrades   int
	WinningTrades int
	LosingTrades  int
	TotalPnL      float64
	BiggestWin    float64
	BiggestLoss   float64
}

// WinRate returns the winning share of trades in percent.
func (s StatsSnapshot) WinRate() float64 {
	if s.TotalTrades == 0 {
		return 0
	}
	return float64(s.WinningTrades) / float64(s.TotalTrades) * 100
}

// Stats accumulates realised P&L for the lifetime of the process.
type Stats struct {
	mu    sync.Mutex
	state StatsSnapshot
}

// NewStats returns an empty accumulator.
func NewStats() *Stats {
	return &Stats{}
}

// Record adds one closed trade. A zero P&L counts as a losing trade.
func (s *Stats) Record(pnl float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.TotalTrades++
	s.state.TotalPnL += pnl
	if pnl > 0 {
		s.state.WinningTrades++
		if pnl > s.state.BiggestWin {
			s.state.BiggestWin = pnl
		}
		return
	}
	s.state.LosingTrades++
	if pnl < s.state.BiggestLoss {
		s.state.BiggestLoss = pnl
	}
}

// Snapshot returns the current counters.
func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}
