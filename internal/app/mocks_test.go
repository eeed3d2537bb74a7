package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"perpScalper/internal/domain"
	"perpScalper/internal/ports"
)

// Mock implementations
type mockLogger struct {
	mu        sync.Mutex
	infoMsgs  []string
	warnMsgs  []string
	errorMsgs []string
}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}

func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infoMsgs = append(m.infoMsgs, msg)
}

func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warnMsgs = append(m.warnMsgs, msg)
}

func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorMsgs = append(m.errorMsgs, msg)
}

// eventLog records the order of calls across mocks.
type eventLog struct {
	events []string
}

func (l *eventLog) add(format string, args ...interface{}) {
	l.events = append(l.events, fmt.Sprintf(format, args...))
}

// index returns the position of the first event with the given prefix, or -1.
func (l *eventLog) index(prefix string) int {
	for i, e := range l.events {
		if strings.HasPrefix(e, prefix) {
			return i
		}
	}
	return -1
}

type orderCall struct {
	symbol     string
	side       domain.OrderSide
	quantity   float64
	reduceOnly bool
}

type protectionCall struct {
	symbol     string
	side       domain.Side
	takeProfit float64
	stopLoss   float64
}

// mockExchange keeps a live position book that market orders update.
type mockExchange struct {
	log *eventLog

	balance      float64
	balanceErr   error
	positions    []domain.Position
	positionsErr error
	markets      []domain.MarketInfo
	marketsErr   error
	tickers      map[string]float64
	tickerErr    error
	klineCount   int
	leverageErr  error

	entryOrderErr  error
	closeOrderErr  error
	// protectionErrs is consumed one per SetProtection call; missing entries succeed.
	protectionErrs []error

	orders          []orderCall
	protectionCalls []protectionCall
	leverageCalls   []string
	cancelCalls     []string
	tickerCalls     int
	positionsCalls  int
}

func newMockExchange(log *eventLog) *mockExchange {
	return &mockExchange{
		log:        log,
		balance:    100,
		tickers:    map[string]float64{},
		klineCount: 250,
	}
}

func (m *mockExchange) FetchBalance(ctx context.Context) (float64, error) {
	return m.balance, m.balanceErr
}

func (m *mockExchange) FetchOHLCV(ctx context.Context, symbol, timeframe string, limit int) ([]*domain.Kline, error) {
	m.log.add("ohlcv:%s:%d", symbol, limit)
	n := m.klineCount
	if limit < n {
		n = limit
	}
	return syntheticKlines(symbol, timeframe, n), nil
}

func (m *mockExchange) FetchMarkets(ctx context.Context) ([]domain.MarketInfo, error) {
	return m.markets, m.marketsErr
}

func (m *mockExchange) FetchPositions(ctx context.Context, symbols ...string) ([]domain.Position, error) {
	m.positionsCalls++
	if m.positionsErr != nil {
		return nil, m.positionsErr
	}
	var out []domain.Position
	for _, p := range m.positions {
		if len(symbols) > 0 && !contains(symbols, p.Symbol) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (m *mockExchange) FetchTicker(ctx context.Context, symbol string) (float64, error) {
	m.tickerCalls++
	if m.tickerErr != nil {
		return 0, m.tickerErr
	}
	price, ok := m.tickers[symbol]
	if !ok {
		return 100, nil
	}
	return price, nil
}

func (m *mockExchange) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	m.leverageCalls = append(m.leverageCalls, fmt.Sprintf("%s:%d", symbol, leverage))
	return m.leverageErr
}

func (m *mockExchange) CreateMarketOrder(ctx context.Context, symbol string, side domain.OrderSide, quantity float64, reduceOnly bool) (*ports.OrderResponse, error) {
	m.log.add("order:%s:%s:reduce=%v", symbol, side, reduceOnly)
	call := orderCall{symbol: symbol, side: side, quantity: quantity, reduceOnly: reduceOnly}
	m.orders = append(m.orders, call)

	if reduceOnly && m.closeOrderErr != nil {
		return nil, m.closeOrderErr
	}
	if !reduceOnly && m.entryOrderErr != nil {
		return nil, m.entryOrderErr
	}

	price, _ := m.FetchTicker(ctx, symbol)
	m.tickerCalls--
	if reduceOnly {
		m.removePosition(symbol)
	} else {
		posSide := domain.Long
		if side == domain.Sell {
			posSide = domain.Short
		}
		m.positions = append(m.positions, domain.Position{Symbol: symbol, Side: posSide, EntryPrice: price, Quantity: quantity})
	}
	return &ports.OrderResponse{
		OrderID:     int64(len(m.orders)),
		Symbol:      symbol,
		AvgPrice:    price,
		ExecutedQty: quantity,
		Status:      "FILLED",
		Side:        string(side),
		ReduceOnly:  reduceOnly,
	}, nil
}

func (m *mockExchange) SetProtection(ctx context.Context, symbol string, side domain.Side, takeProfit, stopLoss float64) error {
	m.log.add("protect:%s", symbol)
	m.protectionCalls = append(m.protectionCalls, protectionCall{symbol: symbol, side: side, takeProfit: takeProfit, stopLoss: stopLoss})
	i := len(m.protectionCalls) - 1
	if i < len(m.protectionErrs) {
		return m.protectionErrs[i]
	}
	return nil
}

func (m *mockExchange) CancelOpenOrders(ctx context.Context, symbol string) error {
	m.log.add("cancel:%s", symbol)
	m.cancelCalls = append(m.cancelCalls, symbol)
	return nil
}

func (m *mockExchange) removePosition(symbol string) {
	kept := m.positions[:0]
	for _, p := range m.positions {
		if p.Symbol != symbol {
			kept = append(kept, p)
		}
	}
	m.positions = kept
}

func (m *mockExchange) entryOrders() []orderCall {
	var out []orderCall
	for _, o := range m.orders {
		if !o.reduceOnly {
			out = append(out, o)
		}
	}
	return out
}

type mockNotifier struct {
	messages []string
}

func (n *mockNotifier) Notify(ctx context.Context, text string) {
	n.messages = append(n.messages, text)
}

func (n *mockNotifier) containing(substr string) int {
	count := 0
	for _, m := range n.messages {
		if strings.Contains(m, substr) {
			count++
		}
	}
	return count
}

// stubEvaluator returns canned decisions per symbol.
type stubEvaluator struct {
	log     *eventLog
	entries map[string]domain.Signal
	exits   map[string]domain.CloseReason
	panicOn string
}

func (e *stubEvaluator) Entry(ctx context.Context, symbol string, frames []domain.IndicatorFrame) domain.Signal {
	e.log.add("entry:%s", symbol)
	if symbol == e.panicOn {
		panic("indicator failure")
	}
	return e.entries[symbol]
}

func (e *stubEvaluator) Exit(ctx context.Context, symbol string, frames []domain.IndicatorFrame, side domain.Side) (bool, domain.CloseReason) {
	e.log.add("exit:%s", symbol)
	reason, ok := e.exits[symbol]
	return ok, reason
}

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

// sleepRecorder never waits.
type sleepRecorder struct {
	slept []time.Duration
}

func (r *sleepRecorder) Sleep(ctx context.Context, d time.Duration) error {
	r.slept = append(r.slept, d)
	return ctx.Err()
}

func syntheticKlines(symbol, interval string, n int) []*domain.Kline {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]*domain.Kline, n)
	for i := 0; i < n; i++ {
		base := 100 + float64(i%10)*0.1
		out[i] = &domain.Kline{
			OpenTime:  start.Add(time.Duration(i) * 5 * time.Minute),
			CloseTime: start.Add(time.Duration(i+1)*5*time.Minute - time.Millisecond),
			Symbol:    symbol,
			Interval:  interval,
			Open:      base,
			High:      base + 0.5,
			Low:       base - 0.5,
			Close:     base + 0.05,
			Volume:    1000,
		}
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
