package binanceclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"perpScalper/internal/domain"
	"perpScalper/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFutures records requests and answers by path suffix.
type fakeFutures struct {
	mu       sync.Mutex
	requests []recordedRequest
	routes   map[string]func(r *http.Request) (int, string)
}

type recordedRequest struct {
	method string
	path   string
	form   map[string]string
}

func (f *fakeFutures) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	form := make(map[string]string, len(r.Form))
	for k := range r.Form {
		form[k] = r.Form.Get(k)
	}
	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{method: r.Method, path: r.URL.Path, form: form})
	f.mu.Unlock()

	for suffix, h := range f.routes {
		if strings.HasSuffix(r.URL.Path, suffix) {
			status, body := h(r)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_, _ = w.Write([]byte(body))
			return
		}
	}
	w.WriteHeader(http.StatusNotFound)
	_, _ = w.Write([]byte(`{"code":-1000,"msg":"no route"}`))
}

func (f *fakeFutures) find(suffix string) []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []recordedRequest
	for _, r := range f.requests {
		if strings.HasSuffix(r.path, suffix) {
			out = append(out, r)
		}
	}
	return out
}

func ok(body string) func(*http.Request) (int, string) {
	return func(*http.Request) (int, string) { return http.StatusOK, body }
}

func newTestClient(t *testing.T, routes map[string]func(*http.Request) (int, string)) (*Client, *fakeFutures) {
	t.Helper()
	fake := &fakeFutures{routes: routes}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	c, err := New(Config{
		APIKey:            "key",
		SecretKey:         "secret",
		Logger:            ports.NopLogger{},
		BaseURL:           srv.URL,
		RequestsPerSecond: 1000,
	})
	require.NoError(t, err)
	return c, fake
}

func TestNewRequiresLogger(t *testing.T) {
	_, err := New(Config{APIKey: "k", SecretKey: "s"})
	assert.Error(t, err)
}

func TestFetchMarkets(t *testing.T) {
	c, _ := newTestClient(t, map[string]func(*http.Request) (int, string){
		"/exchangeInfo": ok(`{"symbols":[
			{"symbol":"BTCUSDT","pair":"BTCUSDT","contractType":"PERPETUAL","status":"TRADING","baseAsset":"BTC","quoteAsset":"USDT",
			 "filters":[
				{"filterType":"PRICE_FILTER","minPrice":"556.80","maxPrice":"4529764","tickSize":"0.10"},
				{"filterType":"LOT_SIZE","minQty":"0.001","maxQty":"1000","stepSize":"0.001"}]},
			{"symbol":"ETHUSDT_250627","pair":"ETHUSDT","contractType":"CURRENT_QUARTER","status":"TRADING","baseAsset":"ETH","quoteAsset":"USDT","filters":[]}
		]}`),
	})

	markets, err := c.FetchMarkets(context.Background())
	require.NoError(t, err)
	require.Len(t, markets, 2)

	assert.Equal(t, domain.MarketInfo{
		Symbol:       "BTCUSDT",
		BaseAsset:    "BTC",
		QuoteAsset:   "USDT",
		ContractType: "PERPETUAL",
		Status:       "TRADING",
		TickSize:     0.1,
		StepSize:     0.001,
	}, markets[0])
	assert.True(t, markets[0].IsPerpetual())
	assert.False(t, markets[1].IsPerpetual())
	assert.Zero(t, markets[1].TickSize)
}

func TestFetchPositionsSkipsFlat(t *testing.T) {
	c, _ := newTestClient(t, map[string]func(*http.Request) (int, string){
		"/positionRisk": ok(`[
			{"symbol":"BTCUSDT","positionAmt":"-0.010","entryPrice":"60000.0","markPrice":"59900.0","leverage":"15"},
			{"symbol":"ETHUSDT","positionAmt":"0.000","entryPrice":"0.0","markPrice":"3000.0","leverage":"15"},
			{"symbol":"SOLUSDT","positionAmt":"2.5","entryPrice":"150.0","markPrice":"151.0","leverage":"10"}
		]`),
	})

	positions, err := c.FetchPositions(context.Background())
	require.NoError(t, err)
	require.Len(t, positions, 2)

	assert.Equal(t, "BTCUSDT", positions[0].Symbol)
	assert.Equal(t, domain.Short, positions[0].Side)
	assert.InDelta(t, 0.01, positions[0].Quantity, 1e-12)
	assert.Equal(t, 60000.0, positions[0].EntryPrice)
	assert.Equal(t, 15, positions[0].Leverage)

	assert.Equal(t, domain.Long, positions[1].Side)
	assert.Equal(t, 2.5, positions[1].Quantity)

	filtered, err := c.FetchPositions(context.Background(), "SOLUSDT", "XRPUSDT")
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "SOLUSDT", filtered[0].Symbol)
}

func TestFetchBalanceUsesAvailableQuote(t *testing.T) {
	c, _ := newTestClient(t, map[string]func(*http.Request) (int, string){
		"/account": ok(`{"assets":[
			{"asset":"BNB","walletBalance":"1.0","availableBalance":"1.0"},
			{"asset":"USDT","walletBalance":"100.0","availableBalance":"87.5"}
		],"positions":[]}`),
	})

	balance, err := c.FetchBalance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 87.5, balance)
}

func TestFetchTickerAndOHLCV(t *testing.T) {
	c, fake := newTestClient(t, map[string]func(*http.Request) (int, string){
		"/ticker/24hr": ok(`[{"symbol":"BTCUSDT","lastPrice":"60123.4"}]`),
		"/klines": ok(`[
			[1700000000000,"100.0","101.0","99.0","100.5","12.5",1700000299999,"1250.0",10,"6.0","600.0","0"],
			[1700000300000,"100.5","102.0","100.0","101.5","20.0",1700000599999,"2020.0",12,"9.0","910.0","0"]
		]`),
	})
	ctx := context.Background()

	price, err := c.FetchTicker(ctx, "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, 60123.4, price)

	klines, err := c.FetchOHLCV(ctx, "BTCUSDT", "5m", 2)
	require.NoError(t, err)
	require.Len(t, klines, 2)
	assert.Equal(t, "BTCUSDT", klines[1].Symbol)
	assert.Equal(t, "5m", klines[1].Interval)
	assert.Equal(t, 101.5, klines[1].Close)
	assert.Equal(t, 20.0, klines[1].Volume)
	assert.Equal(t, int64(1700000300000), klines[1].OpenTime.UnixMilli())

	req := fake.find("/klines")
	require.Len(t, req, 1)
	assert.Equal(t, "5m", req[0].form["interval"])
	assert.Equal(t, "2", req[0].form["limit"])
}

func TestCreateMarketOrder(t *testing.T) {
	c, fake := newTestClient(t, map[string]func(*http.Request) (int, string){
		"/order": ok(`{"orderId":42,"symbol":"BTCUSDT","clientOrderId":"scalp-x","avgPrice":"60010.5","origQty":"0.002",
			"executedQty":"0.002","status":"FILLED","type":"MARKET","side":"SELL","reduceOnly":true,"updateTime":1700000000000}`),
	})
	c.newOrderID = func() string { return "scalp-fixed" }

	resp, err := c.CreateMarketOrder(context.Background(), "BTCUSDT", domain.Sell, 0.002, true)
	require.NoError(t, err)
	assert.Equal(t, int64(42), resp.OrderID)
	assert.Equal(t, 60010.5, resp.AvgPrice)
	assert.Equal(t, 0.002, resp.ExecutedQty)
	assert.True(t, resp.ReduceOnly)

	req := fake.find("/order")
	require.Len(t, req, 1)
	assert.Equal(t, http.MethodPost, req[0].method)
	assert.Equal(t, "SELL", req[0].form["side"])
	assert.Equal(t, "MARKET", req[0].form["type"])
	assert.Equal(t, "0.002", req[0].form["quantity"])
	assert.Equal(t, "true", req[0].form["reduceOnly"])
	assert.Equal(t, "scalp-fixed", req[0].form["newClientOrderId"])
}

func TestCreateMarketOrderRejectsZeroQuantity(t *testing.T) {
	c, fake := newTestClient(t, nil)
	_, err := c.CreateMarketOrder(context.Background(), "BTCUSDT", domain.Buy, 0, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, ports.ErrInvalidRequest)
	assert.Empty(t, fake.find("/order"))
}

func TestCreateMarketOrderMapsAPIError(t *testing.T) {
	c, _ := newTestClient(t, map[string]func(*http.Request) (int, string){
		"/order": func(*http.Request) (int, string) {
			return http.StatusBadRequest, `{"code":-2019,"msg":"Margin is insufficient."}`
		},
	})

	_, err := c.CreateMarketOrder(context.Background(), "BTCUSDT", domain.Buy, 0.002, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, ports.ErrInsufficientFunds)
	assert.ErrorIs(t, err, ports.ErrOrderPlacementFailed)
}

func TestSetProtectionPlacesBothLegs(t *testing.T) {
	c, fake := newTestClient(t, map[string]func(*http.Request) (int, string){
		"/order": ok(`{"orderId":7,"symbol":"BTCUSDT","status":"NEW"}`),
	})

	err := c.SetProtection(context.Background(), "BTCUSDT", domain.Long, 60300.1, 59700.5)
	require.NoError(t, err)

	req := fake.find("/order")
	require.Len(t, req, 2)
	assert.Equal(t, "TAKE_PROFIT_MARKET", req[0].form["type"])
	assert.Equal(t, "60300.1", req[0].form["stopPrice"])
	assert.Equal(t, "STOP_MARKET", req[1].form["type"])
	assert.Equal(t, "59700.5", req[1].form["stopPrice"])
	for _, r := range req {
		assert.Equal(t, "SELL", r.form["side"])
		assert.Equal(t, "true", r.form["closePosition"])
		assert.Equal(t, "CONTRACT_PRICE", r.form["workingType"])
		assert.Empty(t, r.form["quantity"])
	}
}

func TestSetProtectionCancelsTakeProfitWhenStopFails(t *testing.T) {
	var calls int32
	c, fake := newTestClient(t, map[string]func(*http.Request) (int, string){
		"/order": func(*http.Request) (int, string) {
			if atomic.AddInt32(&calls, 1) == 2 {
				return http.StatusBadRequest, `{"code":-2021,"msg":"Order would immediately trigger."}`
			}
			return http.StatusOK, `{"orderId":7,"symbol":"ETHUSDT","status":"NEW"}`
		},
		"/allOpenOrders": ok(`{"code":200,"msg":"The operation of cancel all open order is done."}`),
	})

	err := c.SetProtection(context.Background(), "ETHUSDT", domain.Short, 2990, 3010)
	require.Error(t, err)
	assert.ErrorIs(t, err, ports.ErrProtectionRejected)

	orders := fake.find("/order")
	require.Len(t, orders, 2)
	assert.Equal(t, "BUY", orders[0].form["side"])

	cancels := fake.find("/allOpenOrders")
	require.Len(t, cancels, 1)
	assert.Equal(t, http.MethodDelete, cancels[0].method)
	assert.Equal(t, "ETHUSDT", cancels[0].form["symbol"])
}

func TestSetLeverage(t *testing.T) {
	c, fake := newTestClient(t, map[string]func(*http.Request) (int, string){
		"/leverage": ok(`{"leverage":15,"maxNotionalValue":"1000000","symbol":"BTCUSDT"}`),
	})

	require.NoError(t, c.SetLeverage(context.Background(), "BTCUSDT", 15))
	req := fake.find("/leverage")
	require.Len(t, req, 1)
	assert.Equal(t, "15", req[0].form["leverage"])
}

func TestHandleErrorClassifiesRateLimit(t *testing.T) {
	c, _ := newTestClient(t, map[string]func(*http.Request) (int, string){
		"/ticker/24hr": func(*http.Request) (int, string) {
			return http.StatusTooManyRequests, `{"code":-1003,"msg":"Too many requests."}`
		},
	})

	_, err := c.FetchTicker(context.Background(), "BTCUSDT")
	require.Error(t, err)
	assert.ErrorIs(t, err, ports.ErrRateLimited)
	assert.True(t, ports.IsTransient(err))
}
