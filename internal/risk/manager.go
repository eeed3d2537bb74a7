package risk

import (
	"fmt"

	"perpScalper/internal/domain"
)

// RiskConfig holds the per-trade sizing configuration
type RiskConfig struct {
	OrderSizeUSDT    float64 // Notional committed per trade before leverage
	Leverage         int
	MinProfitPercent float64 // Take-profit distance floor
}

// RiskManager turns a price and ATR reading into an order plan.
type RiskManager struct {
	config RiskConfig
}

// NewRiskManager creates a new risk manager instance
func NewRiskManager(config RiskConfig) (*RiskManager, error) {
	if config.OrderSizeUSDT <= 0 {
		return nil, fmt.Errorf("order size must be positive, got %f", config.OrderSizeUSDT)
	}
	if config.Leverage <= 0 {
		return nil, fmt.Errorf("leverage must be positive, got %d", config.Leverage)
	}
	if config.MinProfitPercent <= 0 {
		return nil, fmt.Errorf("minimum profit percent must be positive, got %f", config.MinProfitPercent)
	}
	return &RiskManager{config: config}, nil
}

// Plan is everything needed to place and protect one entry.
type Plan struct {
	Side       domain.Side
	EntryPrice float64
	Quantity   float64
	TakeProfit float64
	StopLoss   float64
	Params     Parameters
	// PotentialProfit and MaxLoss are quote amounts at the protective distances.
	PotentialProfit float64
	MaxLoss         float64
}

// Plan sizes an entry at price and places its protective prices on the market's grids.
func (r *RiskManager) Plan(side domain.Side, price, atr float64, market domain.MarketInfo) Plan {
	params := ProtectiveDistances(atr, price, r.config.MinProfitPercent)
	qty := SnapQuantity(ContractQuantity(r.config.OrderSizeUSDT, r.config.Leverage, price), market.StepSize)
	tp, sl := ProtectivePrices(side, price, params, market.TickSize)
	return Plan{
		Side:            side,
		EntryPrice:      price,
		Quantity:        qty,
		TakeProfit:      tp,
		StopLoss:        sl,
		Params:          params,
		PotentialProfit: PotentialMove(params.TakeProfitPercent, r.config.OrderSizeUSDT, r.config.Leverage),
		MaxLoss:         PotentialMove(params.StopLossPercent, r.config.OrderSizeUSDT, r.config.Leverage),
	}
}

// RealizedPnL computes the P&L of a close using the configured notional and leverage.
func (r *RiskManager) RealizedPnL(side domain.Side, entry, exit float64) float64 {
	return PnL(side, entry, exit, r.config.OrderSizeUSDT, r.config.Leverage)
}

// Leverage returns the configured leverage.
func (r *RiskManager) Leverage() int { return r.config.Leverage }

// Notional returns the configured per-trade notional.
func (r *RiskManager) Notional() float64 { return r.config.OrderSizeUSDT }
