package ports

import (
	"context"
	"time"

	"perpScalper/internal/domain"
)

// OrderResponse represents the essential details returned after placing an order.
type OrderResponse struct {
	OrderID       int64     // Exchange's order ID
	Symbol        string    // Symbol for the order
	ClientOrderID string    // Client-generated order ID
	AvgPrice      float64   // Average filled price, 0 if not reported
	OrigQuantity  float64   // Original quantity requested
	ExecutedQty   float64   // Quantity filled
	Status        string    // Order status (e.g., NEW, FILLED)
	Type          string    // Order type (e.g., MARKET, STOP_MARKET)
	Side          string    // Order side (BUY, SELL)
	ReduceOnly    bool      // Whether the order may only reduce a position
	Timestamp     time.Time // Time the order response was generated
}

// ExchangeClient defines the interface for interacting with a perpetual futures exchange.
// Implementations decode the exchange's wire format into typed results so the core
// never inspects loosely typed payloads.
type ExchangeClient interface {
	// FetchBalance returns the available balance of the configured quote asset.
	FetchBalance(ctx context.Context) (float64, error)

	// FetchOHLCV returns up to limit closed-or-forming candles, oldest first.
	FetchOHLCV(ctx context.Context, symbol, timeframe string, limit int) ([]*domain.Kline, error)

	// FetchMarkets returns metadata for every listed contract.
	FetchMarkets(ctx context.Context) ([]domain.MarketInfo, error)

	// FetchPositions returns the non-zero positions of the account.
	// With no symbols given every position is returned.
	FetchPositions(ctx context.Context, symbols ...string) ([]domain.Position, error)

	// FetchTicker returns the last traded price for a symbol.
	FetchTicker(ctx context.Context, symbol string) (float64, error)

	// SetLeverage sets the leverage for a specific symbol.
	SetLeverage(ctx context.Context, symbol string, leverage int) error

	// CreateMarketOrder places a market order. reduceOnly orders can never open or flip a position.
	CreateMarketOrder(ctx context.Context, symbol string, side domain.OrderSide, quantity float64, reduceOnly bool) (*OrderResponse, error)

	// SetProtection attaches take-profit and stop-loss triggers (by last price) to the
	// position held in the given direction. Either both are attached or neither is.
	SetProtection(ctx context.Context, symbol string, side domain.Side, takeProfit, stopLoss float64) error

	// CancelOpenOrders cancels every open order for the symbol.
	CancelOpenOrders(ctx context.Context, symbol string) error
}
