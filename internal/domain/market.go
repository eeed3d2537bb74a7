package domain

// MarketInfo is the subset of exchange metadata the bot needs for a tradable contract.
type MarketInfo struct {
	Symbol       string
	BaseAsset    string
	QuoteAsset   string
	ContractType string  // e.g. PERPETUAL
	Status       string  // e.g. TRADING
	TickSize     float64 // Minimum price increment, 0 when unknown
	StepSize     float64 // Minimum quantity increment, 0 when unknown
}

// IsPerpetual reports whether the market is an actively traded perpetual swap.
func (m MarketInfo) IsPerpetual() bool {
	return m.ContractType == "PERPETUAL" && m.Status == "TRADING"
}
