package app

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"perpScalper/internal/domain"
	"perpScalper/internal/ports"
	"perpScalper/internal/risk"
)

var (
	ErrCooldownActive   = errors.New("symbol is in entry cooldown")
	ErrProtectionFailed = errors.New("take-profit/stop-loss could not be attached")
	ErrInvalidQuantity  = errors.New("computed order quantity is not positive")
	ErrUnknownMarket    = errors.New("no market metadata for symbol")
)

const (
	protectionTimeout = 30 * time.Second
	unwindTimeout     = 15 * time.Second
)

// LifecycleState is the per-symbol position lifecycle as seen by the bot.
type LifecycleState int

const (
	StateIdle LifecycleState = iota
	StateOpeningOrder
	StateAttachingProtection
	StateProtected
	StateUnwinding
	StateClosing
)

func (s LifecycleState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateOpeningOrder:
		return "OPENING_ORDER"
	case StateAttachingProtection:
		return "ATTACHING_PROTECTION"
	case StateProtected:
		return "PROTECTED"
	case StateUnwinding:
		return "UNWINDING"
	case StateClosing:
		return "CLOSING"
	default:
		return "UNKNOWN"
	}
}

// PositionManagerConfig holds the lifecycle settings.
type PositionManagerConfig struct {
	Cooldown           time.Duration
	ProtectionAttempts int           // Default 3
	ProtectionDelay    time.Duration // Default 1s
	QuoteAsset         string
}

// OpenResult describes a position that was opened and protected.
type OpenResult struct {
	Symbol          string
	Side            domain.Side
	EntryPrice      float64
	Quantity        float64
	TakeProfit      float64
	StopLoss        float64
	Params          risk.Parameters
	PotentialProfit float64
	MaxLoss         float64
	OrderID         int64
	OpenedAt        time.Time
	// ProtectionAttempts is how many attach calls were needed.
	ProtectionAttempts int
}

// protectionReceipt can only be obtained from a successful attach.
type protectionReceipt struct {
	attempts int
}

// PositionManager drives the open/protect/close lifecycle for every symbol.
// It owns the cooldown map and P&L statistics and is not safe for concurrent use.
type PositionManager struct {
	exchange ports.ExchangeClient
	notifier ports.Notifier
	logger   ports.Logger
	risk     *risk.RiskManager
	stats    *risk.Stats
	cfg      PositionManagerConfig

	now   func() time.Time
	sleep Sleeper

	lastEntry map[string]time.Time
	markets   map[string]domain.MarketInfo
	states    map[string]LifecycleState
}

// NewPositionManager creates a lifecycle manager.
func NewPositionManager(
	cfg PositionManagerConfig,
	logger ports.Logger,
	exchange ports.ExchangeClient,
	notifier ports.Notifier,
	riskManager *risk.RiskManager,
) (*PositionManager, error) {
	if logger == nil || exchange == nil || notifier == nil || riskManager == nil {
		return nil, fmt.Errorf("missing required dependencies for PositionManager")
	}
	if cfg.Cooldown < 0 {
		return nil, fmt.Errorf("cooldown cannot be negative")
	}
	if cfg.ProtectionAttempts <= 0 {
		cfg.ProtectionAttempts = 3
	}
	if cfg.ProtectionDelay <= 0 {
		cfg.ProtectionDelay = time.Second
	}
	if cfg.QuoteAsset == "" {
		cfg.QuoteAsset = "USDT"
	}
	return &PositionManager{
		exchange:  exchange,
		notifier:  notifier,
		logger:    logger,
		risk:      riskManager,
		stats:     risk.NewStats(),
		cfg:       cfg,
		now:       time.Now,
		sleep:     sleepContext,
		lastEntry: make(map[string]time.Time),
		markets:   make(map[string]domain.MarketInfo),
		states:    make(map[string]LifecycleState),
	}, nil
}

// Stats returns the running P&L counters.
func (m *PositionManager) Stats() risk.StatsSnapshot {
	return m.stats.Snapshot()
}

// State returns the lifecycle state of symbol.
func (m *PositionManager) State(symbol string) LifecycleState {
	return m.states[symbol]
}

// SetMarkets replaces the market metadata cache.
func (m *PositionManager) SetMarkets(markets []domain.MarketInfo) {
	m.markets = make(map[string]domain.MarketInfo, len(markets))
	for _, mk := range markets {
		m.markets[mk.Symbol] = mk
	}
}

// Reconcile marks every symbol without a live position as idle and cancels its remaining
// orders. Positions closed on the exchange by their TP/SL only become visible here.
func (m *PositionManager) Reconcile(ctx context.Context, positions []domain.Position) {
	live := make(map[string]bool, len(positions))
	for _, p := range positions {
		live[p.Symbol] = true
	}
	for symbol, state := range m.states {
		if state == StateProtected && !live[symbol] {
			// The leg that did not fire is still resting on the exchange.
			if err := m.exchange.CancelOpenOrders(ctx, symbol); err != nil {
				m.logger.Warn(ctx, "Could not cancel leftover protection", map[string]interface{}{"symbol": symbol, "error": err.Error()})
			}
			m.transition(ctx, symbol, StateIdle)
		}
	}
}

// CooldownRemaining returns how long symbol must still wait before a new entry.
func (m *PositionManager) CooldownRemaining(symbol string) time.Duration {
	last, ok := m.lastEntry[symbol]
	if !ok {
		return 0
	}
	remaining := m.cfg.Cooldown - m.now().Sub(last)
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (m *PositionManager) transition(ctx context.Context, symbol string, to LifecycleState) {
	from := m.states[symbol]
	if to == StateIdle {
		delete(m.states, symbol)
	} else {
		m.states[symbol] = to
	}
	m.logger.Debug(ctx, "Lifecycle transition", map[string]interface{}{"symbol": symbol, "from": from.String(), "to": to.String()})
}

func (m *PositionManager) market(symbol string) (domain.MarketInfo, error) {
	mk, ok := m.markets[symbol]
	if !ok {
		return domain.MarketInfo{Symbol: symbol}, fmt.Errorf("%w: %s", ErrUnknownMarket, symbol)
	}
	return mk, nil
}

// TryOpen opens a position in the given direction and attaches its take-profit and
// stop-loss. It returns a result only when protection is in place; if anything fails
// after the entry fill, the position is closed again before returning the error.
// The caller must ensure the global position ceiling has room.
func (m *PositionManager) TryOpen(ctx context.Context, symbol string, side domain.Side, atr float64) (*OpenResult, error) {
	op := "TryOpen"
	if !side.Valid() {
		return nil, fmt.Errorf("%s: invalid side %q", op, side)
	}
	if remaining := m.CooldownRemaining(symbol); remaining > 0 {
		m.logger.Info(ctx, "Symbol in cooldown", map[string]interface{}{"symbol": symbol, "remaining": remaining.Round(time.Second).String()})
		return nil, fmt.Errorf("%w: %s, %s remaining", ErrCooldownActive, symbol, remaining.Round(time.Second))
	}

	m.transition(ctx, symbol, StateOpeningOrder)

	price, err := m.exchange.FetchTicker(ctx, symbol)
	if err != nil {
		m.transition(ctx, symbol, StateIdle)
		return nil, fmt.Errorf("%s: fetch ticker: %w", op, err)
	}

	mk, err := m.market(symbol)
	if err != nil {
		m.logger.Warn(ctx, "Market metadata missing, using default tick size", map[string]interface{}{"symbol": symbol, "tickSize": risk.DefaultTickSize})
	}
	if math.IsNaN(atr) || atr <= 0 {
		m.logger.Warn(ctx, "ATR not usable, using minimum distances", map[string]interface{}{"symbol": symbol, "atr": atr})
	}

	plan := m.risk.Plan(side, price, atr, mk)
	if plan.Quantity <= 0 {
		m.transition(ctx, symbol, StateIdle)
		return nil, fmt.Errorf("%w: %s at price %v", ErrInvalidQuantity, symbol, price)
	}

	if err := m.exchange.SetLeverage(ctx, symbol, m.risk.Leverage()); err != nil {
		m.transition(ctx, symbol, StateIdle)
		return nil, fmt.Errorf("%s: set leverage: %w", op, err)
	}
	// Triggers left from an earlier position would close the new one.
	if err := m.exchange.CancelOpenOrders(ctx, symbol); err != nil {
		m.logger.Warn(ctx, "Could not clear leftover orders before entry", map[string]interface{}{"symbol": symbol, "error": err.Error()})
	}

	order, err := m.exchange.CreateMarketOrder(ctx, symbol, side.EntryOrderSide(), plan.Quantity, false)
	if err != nil {
		m.transition(ctx, symbol, StateIdle)
		return nil, fmt.Errorf("%s: entry order: %w", op, err)
	}

	// From here on a position exists on the exchange.
	filled := plan.Quantity
	if order != nil && order.ExecutedQty > 0 {
		filled = order.ExecutedQty
	}
	m.logger.Info(ctx, "Entry order placed", map[string]interface{}{
		"symbol":     symbol,
		"side":       side,
		"price":      price,
		"quantity":   filled,
		"takeProfit": plan.TakeProfit,
		"stopLoss":   plan.StopLoss,
		"tpPercent":  plan.Params.TakeProfitPercent,
		"slPercent":  plan.Params.StopLossPercent,
	})

	// A shutdown must not cut the attach retries or the compensating close short.
	protectCtx, cancelProtect := context.WithTimeout(context.WithoutCancel(ctx), protectionTimeout)
	defer cancelProtect()

	m.transition(ctx, symbol, StateAttachingProtection)
	receipt, err := m.attachProtection(protectCtx, symbol, side, plan)
	if err != nil {
		m.logger.Error(ctx, err, "Protection not attached, closing position", map[string]interface{}{"symbol": symbol})
		unwindCtx, cancelUnwind := context.WithTimeout(context.WithoutCancel(ctx), unwindTimeout)
		defer cancelUnwind()
		unwound := m.unwind(unwindCtx, symbol, side, filled)
		m.notifier.Notify(ctx, protectionFailedMessage(symbol, unwound))
		return nil, fmt.Errorf("%w: %s: %w", ErrProtectionFailed, symbol, err)
	}

	result := newOpenResult(symbol, plan, order, filled, receipt, m.now())
	m.transition(ctx, symbol, StateProtected)
	m.lastEntry[symbol] = result.OpenedAt

	m.logger.Info(ctx, "Position opened and protected", map[string]interface{}{
		"symbol":     symbol,
		"side":       side,
		"entryPrice": result.EntryPrice,
		"attempts":   receipt.attempts,
	})
	m.notifier.Notify(ctx, openedMessage(result, m.risk.Notional(), m.risk.Leverage(), m.cfg.QuoteAsset))
	return result, nil
}

func newOpenResult(symbol string, plan risk.Plan, order *ports.OrderResponse, filled float64, receipt protectionReceipt, at time.Time) *OpenResult {
	r := &OpenResult{
		Symbol:             symbol,
		Side:               plan.Side,
		EntryPrice:         plan.EntryPrice,
		Quantity:           filled,
		TakeProfit:         plan.TakeProfit,
		StopLoss:           plan.StopLoss,
		Params:             plan.Params,
		PotentialProfit:    plan.PotentialProfit,
		MaxLoss:            plan.MaxLoss,
		OpenedAt:           at,
		ProtectionAttempts: receipt.attempts,
	}
	if order != nil {
		r.OrderID = order.OrderID
		if order.AvgPrice > 0 {
			r.EntryPrice = order.AvgPrice
		}
	}
	return r
}

// retryableProtectionError reports whether another attach attempt can succeed.
// Rejections of the request itself or of the credentials repeat identically.
func retryableProtectionError(err error) bool {
	if ports.IsTransient(err) {
		return true
	}
	return !errors.Is(err, ports.ErrInvalidRequest) &&
		!errors.Is(err, ports.ErrInvalidAPIKeys) &&
		!errors.Is(err, ports.ErrAuthenticationFailed)
}

func (m *PositionManager) attachProtection(ctx context.Context, symbol string, side domain.Side, plan risk.Plan) (protectionReceipt, error) {
	var used int
	err := retryFixed(ctx, m.cfg.ProtectionAttempts, m.cfg.ProtectionDelay, m.sleep, retryableProtectionError, func(attempt int) error {
		used = attempt
		err := m.exchange.SetProtection(ctx, symbol, side, plan.TakeProfit, plan.StopLoss)
		if err != nil {
			m.logger.Warn(ctx, "TP/SL attempt failed", map[string]interface{}{
				"symbol":   symbol,
				"attempt":  attempt,
				"attempts": m.cfg.ProtectionAttempts,
				"error":    err.Error(),
			})
		}
		return err
	})
	if err != nil {
		return protectionReceipt{}, err
	}
	m.logger.Info(ctx, "TP/SL attached", map[string]interface{}{"symbol": symbol, "attempt": used})
	return protectionReceipt{attempts: used}, nil
}

// unwind closes a just-opened position that could not be protected. It reports
// whether the closing order was accepted.
func (m *PositionManager) unwind(ctx context.Context, symbol string, side domain.Side, quantity float64) bool {
	m.transition(ctx, symbol, StateUnwinding)
	defer m.transition(ctx, symbol, StateIdle)

	_, err := m.exchange.CreateMarketOrder(ctx, symbol, side.CloseOrderSide(), quantity, true)
	if err != nil {
		m.logger.Error(ctx, err, "UNWIND FAILED: position left without protection, manual intervention required", map[string]interface{}{
			"symbol":   symbol,
			"side":     side,
			"quantity": quantity,
		})
		return false
	}
	if err := m.exchange.CancelOpenOrders(ctx, symbol); err != nil {
		m.logger.Warn(ctx, "Could not cancel leftover orders after unwind", map[string]interface{}{"symbol": symbol, "error": err.Error()})
	}
	m.logger.Warn(ctx, "Unprotected position closed", map[string]interface{}{"symbol": symbol, "quantity": quantity})
	return true
}

// TryClose closes the live position on symbol with a reduce-only market order.
// entryPrice <= 0 means the entry is unknown and no P&L is recorded.
// It returns false without error when there is no position to close.
func (m *PositionManager) TryClose(ctx context.Context, symbol string, side domain.Side, reason domain.CloseReason, entryPrice float64) (bool, error) {
	op := "TryClose"
	positions, err := m.exchange.FetchPositions(ctx, symbol)
	if err != nil {
		return false, fmt.Errorf("%s: fetch positions: %w", op, err)
	}

	var pos *domain.Position
	for i := range positions {
		if positions[i].Symbol == symbol && positions[i].IsOpen() {
			pos = &positions[i]
			break
		}
	}
	if pos == nil {
		m.logger.Debug(ctx, "No live position to close", map[string]interface{}{"symbol": symbol})
		m.transition(ctx, symbol, StateIdle)
		return false, nil
	}
	if pos.Side != side {
		m.logger.Warn(ctx, "Live position side differs from requested side, closing live side", map[string]interface{}{
			"symbol":    symbol,
			"requested": side,
			"live":      pos.Side,
		})
		side = pos.Side
	}

	prev := m.states[symbol]
	m.transition(ctx, symbol, StateClosing)

	exitPrice, tickerErr := m.exchange.FetchTicker(ctx, symbol)
	if tickerErr != nil {
		m.logger.Warn(ctx, "Ticker unavailable before close", map[string]interface{}{"symbol": symbol, "error": tickerErr.Error()})
	}

	order, err := m.exchange.CreateMarketOrder(ctx, symbol, side.CloseOrderSide(), pos.Quantity, true)
	if err != nil {
		m.transition(ctx, symbol, prev)
		return false, fmt.Errorf("%s: close order: %w", op, err)
	}
	if order != nil && order.AvgPrice > 0 {
		exitPrice = order.AvgPrice
	}
	if err := m.exchange.CancelOpenOrders(ctx, symbol); err != nil {
		m.logger.Warn(ctx, "Could not cancel leftover orders after close", map[string]interface{}{"symbol": symbol, "error": err.Error()})
	}

	trade := domain.Trade{
		Symbol:      symbol,
		Side:        side,
		EntryPrice:  entryPrice,
		ExitPrice:   exitPrice,
		Quantity:    pos.Quantity,
		Leverage:    m.risk.Leverage(),
		ExitTime:    m.now(),
		CloseReason: reason,
	}
	if entryPrice > 0 && exitPrice > 0 {
		trade.PNL = m.risk.RealizedPnL(side, entryPrice, exitPrice)
		trade.PNLKnown = true
		m.stats.Record(trade.PNL)
		snap := m.stats.Snapshot()
		m.logger.Info(ctx, "PnL recorded", map[string]interface{}{
			"symbol":   symbol,
			"pnl":      trade.PNL,
			"totalPnl": snap.TotalPnL,
			"winrate":  snap.WinRate(),
			"wins":     snap.WinningTrades,
			"trades":   snap.TotalTrades,
		})
	}

	m.transition(ctx, symbol, StateIdle)
	m.logger.Info(ctx, "Position closed", map[string]interface{}{"symbol": symbol, "side": side, "reason": reason, "exitPrice": exitPrice})
	m.notifier.Notify(ctx, closedMessage(trade, m.cfg.QuoteAsset))
	return true, nil
}
