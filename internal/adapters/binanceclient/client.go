package binanceclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"perpScalper/internal/domain"
	"perpScalper/internal/ports"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

const (
	// Base URLs
	baseURLProduction = "https://fapi.binance.com"
	baseURLTestnet    = "https://testnet.binancefuture.com"

	clientOrderPrefix = "scalp-"
)

// Client implements the ports.ExchangeClient interface using the go-binance library.
type Client struct {
	futuresClient *futures.Client
	logger        ports.Logger
	limiter       *rate.Limiter
	quoteAsset    string
	newOrderID    func() string
}

// Config holds configuration specific to the Binance client adapter.
type Config struct {
	APIKey            string
	SecretKey         string
	UseTestnet        bool
	Logger            ports.Logger
	QuoteAsset        string  // Asset whose available balance FetchBalance reports, e.g. USDT
	RequestsPerSecond float64 // Client-side throttle; 0 uses the default
	BaseURL           string  // Overrides the testnet/production URL when set
	HTTPClient        *http.Client
}

// New creates a new Binance client adapter.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Binance client")
	}
	if cfg.APIKey == "" || cfg.SecretKey == "" {
		cfg.Logger.Warn(context.Background(), "APIKey or SecretKey is empty. Client will only work for public endpoints.")
	}

	client := futures.NewClient(cfg.APIKey, cfg.SecretKey)

	// Set BaseURL directly instead of using global futures.UseTestnet
	switch {
	case cfg.BaseURL != "":
		client.BaseURL = cfg.BaseURL
	case cfg.UseTestnet:
		client.BaseURL = baseURLTestnet
		cfg.Logger.Info(context.Background(), "Binance client configured for Testnet", map[string]interface{}{"baseURL": client.BaseURL})
	default:
		client.BaseURL = baseURLProduction
		cfg.Logger.Info(context.Background(), "Binance client configured for Production", map[string]interface{}{"baseURL": client.BaseURL})
	}
	if cfg.HTTPClient != nil {
		client.HTTPClient = cfg.HTTPClient
	}

	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 10
	}
	quote := cfg.QuoteAsset
	if quote == "" {
		quote = "USDT"
	}

	return &Client{
		futuresClient: client,
		logger:        cfg.Logger,
		limiter:       rate.NewLimiter(rate.Limit(rps), int(rps)+1),
		quoteAsset:    quote,
		newOrderID:    func() string { return clientOrderPrefix + uuid.NewString()[:24] },
	}, nil
}

// wait blocks until the throttle admits one more REST call.
func (c *Client) wait(ctx context.Context, op string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return c.handleError(ctx, err, op)
	}
	return nil
}

// handleError translates common Binance API errors into standardized ports errors.
func (c *Client) handleError(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}

	fields := map[string]interface{}{"operation": operation, "originalError": err.Error()}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		fields["apiErrorCode"] = apiErr.Code
		fields["apiErrorMessage"] = apiErr.Message

		// Map specific Binance error codes to custom errors
		var mappedErr error
		switch apiErr.Code {
		case -1003: // Too many requests
			mappedErr = ports.ErrRateLimited
		case -1021: // Timestamp for this request is outside of the recvWindow
			mappedErr = ports.ErrTimeout // Or a specific timing error
		case -1022: // Signature for this request is not valid
			mappedErr = ports.ErrAuthenticationFailed
		case -1101, -1102, -1103, -1104, -1105, -1106, -1111, -1115, -1116, -1117, -1120, -1121, -1125, -1127, -1128, -1130: // Parameter/Request format errors
			mappedErr = ports.ErrInvalidRequest
		case -2010: // New order rejected
			mappedErr = ports.ErrOrderPlacementFailed
		case -2011: // Cancel order rejected
			mappedErr = ports.ErrOrderCancelFailed
		case -2013: // Order does not exist
			mappedErr = ports.ErrOrderNotFound
		case -2014: // API-key format invalid
			mappedErr = ports.ErrInvalidAPIKeys
		case -2015: // Invalid API-key, IP, or permissions for action
			mappedErr = ports.ErrInvalidAPIKeys // Could also be PermissionDenied
		case -2019: // Margin is insufficient
			mappedErr = ports.ErrInsufficientFunds
		case -2022: // ReduceOnly Order is rejected
			mappedErr = ports.ErrOrderPlacementFailed // Or a more specific error
		case -3005: // Insufficient balance
			mappedErr = ports.ErrInsufficientFunds
		case -3041: // Position is not sufficient
			mappedErr = ports.ErrInsufficientFunds
		case -4003: // Qty not within permissible range
			mappedErr = ports.ErrInvalidRequest
		case -4014: // Price not within permissible range
			mappedErr = ports.ErrInvalidRequest
		case -4015: // Leverage is not valid
			mappedErr = ports.ErrInvalidRequest
		case -4044: // Position not found
			mappedErr = ports.ErrPositionNotFound
		case -4047: // Exceeded the maximum allowable position at current leverage.
			mappedErr = ports.ErrInsufficientFunds // Or a specific position limit error
		default:
			// General classification for unmapped API errors
			mappedErr = ports.ErrUnknown
		}
		finalErr := fmt.Errorf("%s failed: %w: %w", operation, mappedErr, err)
		c.logger.Error(ctx, err, fmt.Sprintf("%s failed with API error", operation), fields)
		return finalErr
	}

	// Handle non-API errors (network, context cancellation, etc.)
	var finalErr error
	if errors.Is(err, context.DeadlineExceeded) {
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrTimeout, err)
	} else if errors.Is(err, context.Canceled) {
		finalErr = fmt.Errorf("%s operation canceled: %w: %w", operation, ports.ErrContextCanceled, err)
	} else if strings.Contains(err.Error(), "use of closed network connection") ||
		strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "connection reset by peer") {
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrConnectionFailed, err)
	} else {
		// Default for other errors (e.g., parsing errors within the adapter)
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrUnknown, err)
	}

	c.logger.Error(ctx, err, fmt.Sprintf("%s failed", operation), fields)
	return finalErr
}

// SetServerTime synchronizes the client's time with the server's time.
func (c *Client) SetServerTime(ctx context.Context) error {
	op := "SetServerTime"
	if err := c.wait(ctx, op); err != nil {
		return err
	}
	offset, err := c.futuresClient.NewSetServerTimeService().Do(ctx)
	if err != nil {
		return c.handleError(ctx, err, op)
	}
	c.logger.Debug(ctx, op+" successful", map[string]interface{}{"offsetMs": offset})
	return nil
}

// Ping checks the connectivity to the exchange API.
func (c *Client) Ping(ctx context.Context) error {
	op := "Ping"
	if err := c.wait(ctx, op); err != nil {
		return err
	}
	if err := c.futuresClient.NewPingService().Do(ctx); err != nil {
		return c.handleError(ctx, fmt.Errorf("ping failed: %w", err), op)
	}
	c.logger.Debug(ctx, op+" successful")
	return nil
}

// FetchBalance retrieves the available balance of the configured quote asset.
func (c *Client) FetchBalance(ctx context.Context) (float64, error) {
	op := "FetchBalance"
	if err := c.wait(ctx, op); err != nil {
		return 0, err
	}
	account, err := c.futuresClient.NewGetAccountService().Do(ctx)
	if err != nil {
		return 0, c.handleError(ctx, err, op)
	}

	for _, bal := range account.Assets {
		if bal.Asset != c.quoteAsset {
			continue
		}
		balance, err := strconv.ParseFloat(bal.AvailableBalance, 64)
		if err != nil {
			parseErr := fmt.Errorf("could not parse balance '%s' for asset %s: %w", bal.AvailableBalance, c.quoteAsset, err)
			return 0, c.handleError(ctx, parseErr, op)
		}
		return balance, nil
	}

	// An account that never held the asset is reported with zero balance.
	c.logger.Warn(ctx, op+": asset not present in account", map[string]interface{}{"asset": c.quoteAsset})
	return 0, nil
}

// FetchTicker retrieves the last traded price for a given symbol.
func (c *Client) FetchTicker(ctx context.Context, symbol string) (float64, error) {
	op := "FetchTicker"
	if err := c.wait(ctx, op); err != nil {
		return 0, err
	}
	tickers, err := c.futuresClient.NewListPriceChangeStatsService().Symbol(symbol).Do(ctx)
	if err != nil {
		return 0, c.handleError(ctx, err, op)
	}
	if len(tickers) == 0 {
		return 0, c.handleError(ctx, fmt.Errorf("%w: no ticker data returned for symbol %s", ports.ErrNotFound, symbol), op)
	}

	price, err := strconv.ParseFloat(tickers[0].LastPrice, 64)
	if err != nil {
		parseErr := fmt.Errorf("could not parse price '%s': %w", tickers[0].LastPrice, err)
		return 0, c.handleError(ctx, parseErr, op)
	}
	return price, nil
}

// FetchOHLCV retrieves the most recent klines for the given symbol, oldest first.
func (c *Client) FetchOHLCV(ctx context.Context, symbol, timeframe string, limit int) ([]*domain.Kline, error) {
	op := "FetchOHLCV"
	if err := c.wait(ctx, op); err != nil {
		return nil, err
	}
	binanceKlines, err := c.futuresClient.NewKlinesService().Symbol(symbol).Interval(timeframe).Limit(limit).Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}

	domainKlines := make([]*domain.Kline, 0, len(binanceKlines))
	for _, bk := range binanceKlines {
		dk, err := translateBinanceKline(bk, symbol, timeframe)
		if err != nil {
			return nil, c.handleError(ctx, fmt.Errorf("failed to translate historical kline: %w", err), op)
		}
		domainKlines = append(domainKlines, dk)
	}
	return domainKlines, nil
}

// FetchMarkets retrieves exchange metadata for every listed futures contract.
func (c *Client) FetchMarkets(ctx context.Context) ([]domain.MarketInfo, error) {
	op := "FetchMarkets"
	if err := c.wait(ctx, op); err != nil {
		return nil, err
	}
	info, err := c.futuresClient.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}

	markets := make([]domain.MarketInfo, 0, len(info.Symbols))
	for i := range info.Symbols {
		markets = append(markets, translateSymbol(&info.Symbols[i]))
	}
	c.logger.Debug(ctx, op+" successful", map[string]interface{}{"markets": len(markets)})
	return markets, nil
}

// FetchPositions retrieves the open (non-zero) positions, optionally restricted to symbols.
func (c *Client) FetchPositions(ctx context.Context, symbols ...string) ([]domain.Position, error) {
	op := "FetchPositions"
	if err := c.wait(ctx, op); err != nil {
		return nil, err
	}
	svc := c.futuresClient.NewGetPositionRiskService()
	if len(symbols) == 1 {
		svc = svc.Symbol(symbols[0])
	}
	risks, err := svc.Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}

	wanted := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		wanted[s] = true
	}

	positions := make([]domain.Position, 0, len(risks))
	for _, r := range risks {
		if len(wanted) > 0 && !wanted[r.Symbol] {
			continue
		}
		pos, ok := translatePositionRisk(r)
		if !ok {
			continue
		}
		positions = append(positions, pos)
	}
	return positions, nil
}

// SetLeverage sets the leverage for a specific symbol.
func (c *Client) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	op := "SetLeverage"
	if err := c.wait(ctx, op); err != nil {
		return err
	}
	_, err := c.futuresClient.NewChangeLeverageService().
		Symbol(symbol).
		Leverage(leverage).
		Do(ctx)
	if err != nil {
		return c.handleError(ctx, err, op)
	}
	c.logger.Info(ctx, op+" successful", map[string]interface{}{"symbol": symbol, "leverage": leverage})
	return nil
}

// CreateMarketOrder places a market order tagged with a generated client order id.
func (c *Client) CreateMarketOrder(ctx context.Context, symbol string, side domain.OrderSide, quantity float64, reduceOnly bool) (*ports.OrderResponse, error) {
	op := "CreateMarketOrder"
	if quantity <= 0 {
		return nil, c.handleError(ctx, fmt.Errorf("%w: quantity must be positive, got %v", ports.ErrInvalidRequest, quantity), op)
	}
	if err := c.wait(ctx, op); err != nil {
		return nil, err
	}
	qty := formatNumber(quantity)

	svc := c.futuresClient.NewCreateOrderService().
		Symbol(symbol).
		Side(futures.SideType(side)).
		Type(futures.OrderTypeMarket).
		Quantity(qty).
		NewClientOrderID(c.newOrderID())
	if reduceOnly {
		svc = svc.ReduceOnly(true)
	}
	order, err := svc.Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, fmt.Errorf("%w: %w", ports.ErrOrderPlacementFailed, err), op)
	}

	resp := translateOrderResponse(order)
	c.logger.Info(ctx, op+" successful", map[string]interface{}{
		"symbol":     symbol,
		"side":       side,
		"quantity":   qty,
		"reduceOnly": reduceOnly,
		"orderID":    resp.OrderID,
		"avgPrice":   resp.AvgPrice,
	})
	return resp, nil
}

// SetProtection places close-position TAKE_PROFIT_MARKET and STOP_MARKET orders triggered
// by last price. If the stop-loss leg fails, the take-profit leg is cancelled again.
func (c *Client) SetProtection(ctx context.Context, symbol string, side domain.Side, takeProfit, stopLoss float64) error {
	op := "SetProtection"
	if !side.Valid() {
		return c.handleError(ctx, fmt.Errorf("%w: unknown position side %q", ports.ErrInvalidRequest, side), op)
	}
	closeSide := futures.SideType(side.CloseOrderSide())

	if err := c.placeTrigger(ctx, symbol, closeSide, futures.OrderTypeTakeProfitMarket, takeProfit); err != nil {
		return c.handleError(ctx, fmt.Errorf("%w: take profit: %w", ports.ErrProtectionRejected, err), op)
	}
	if err := c.placeTrigger(ctx, symbol, closeSide, futures.OrderTypeStopMarket, stopLoss); err != nil {
		if cancelErr := c.CancelOpenOrders(ctx, symbol); cancelErr != nil {
			c.logger.Warn(ctx, op+": could not remove take profit after stop loss failure", map[string]interface{}{"symbol": symbol, "error": cancelErr.Error()})
		}
		return c.handleError(ctx, fmt.Errorf("%w: stop loss: %w", ports.ErrProtectionRejected, err), op)
	}

	c.logger.Info(ctx, op+" successful", map[string]interface{}{
		"symbol":     symbol,
		"side":       side,
		"takeProfit": takeProfit,
		"stopLoss":   stopLoss,
	})
	return nil
}

func (c *Client) placeTrigger(ctx context.Context, symbol string, side futures.SideType, orderType futures.OrderType, stopPrice float64) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := c.futuresClient.NewCreateOrderService().
		Symbol(symbol).
		Side(side).
		Type(orderType).
		StopPrice(formatNumber(stopPrice)).
		ClosePosition(true).
		WorkingType(futures.WorkingTypeContractPrice).
		NewClientOrderID(c.newOrderID()).
		Do(ctx)
	return err
}

// CancelOpenOrders cancels every open order for the symbol.
func (c *Client) CancelOpenOrders(ctx context.Context, symbol string) error {
	op := "CancelOpenOrders"
	if err := c.wait(ctx, op); err != nil {
		return err
	}
	if err := c.futuresClient.NewCancelAllOpenOrdersService().Symbol(symbol).Do(ctx); err != nil {
		return c.handleError(ctx, err, op)
	}
	c.logger.Debug(ctx, op+" successful", map[string]interface{}{"symbol": symbol})
	return nil
}

// --- Translation Helpers ---

func formatNumber(v float64) string {
	return decimal.NewFromFloat(v).String()
}

func parseOrZero(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

func translateOrderResponse(order *futures.CreateOrderResponse) *ports.OrderResponse {
	if order == nil {
		return nil
	}
	return &ports.OrderResponse{
		OrderID:       order.OrderID,
		Symbol:        order.Symbol,
		ClientOrderID: order.ClientOrderID,
		AvgPrice:      parseOrZero(order.AvgPrice),
		OrigQuantity:  parseOrZero(order.OrigQuantity),
		ExecutedQty:   parseOrZero(order.ExecutedQuantity),
		Status:        string(order.Status),
		Type:          string(order.Type),
		Side:          string(order.Side),
		ReduceOnly:    order.ReduceOnly,
		Timestamp:     time.UnixMilli(order.UpdateTime),
	}
}

func translatePositionRisk(pos *futures.PositionRisk) (domain.Position, bool) {
	if pos == nil {
		return domain.Position{}, false
	}
	amt := parseOrZero(pos.PositionAmt)
	if amt == 0 {
		return domain.Position{}, false
	}
	side := domain.Long
	if amt < 0 {
		side = domain.Short
		amt = -amt
	}
	leverage, _ := strconv.Atoi(pos.Leverage) // Leverage is string in go-binance
	return domain.Position{
		Symbol:     pos.Symbol,
		Side:       side,
		EntryPrice: parseOrZero(pos.EntryPrice),
		Quantity:   amt,
		Leverage:   leverage,
		MarkPrice:  parseOrZero(pos.MarkPrice),
	}, true
}

func translateSymbol(s *futures.Symbol) domain.MarketInfo {
	m := domain.MarketInfo{
		Symbol:       s.Symbol,
		BaseAsset:    s.BaseAsset,
		QuoteAsset:   s.QuoteAsset,
		ContractType: string(s.ContractType),
		Status:       string(s.Status),
	}
	if pf := s.PriceFilter(); pf != nil {
		m.TickSize = parseOrZero(pf.TickSize)
	}
	if lf := s.LotSizeFilter(); lf != nil {
		m.StepSize = parseOrZero(lf.StepSize)
	}
	return m
}

func translateBinanceKline(bk *futures.Kline, symbol, interval string) (*domain.Kline, error) {
	if bk == nil {
		return nil, errors.New("received nil historical kline")
	}
	open, err := strconv.ParseFloat(bk.Open, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing open price '%s': %w", bk.Open, err)
	}
	high, err := strconv.ParseFloat(bk.High, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing high price '%s': %w", bk.High, err)
	}
	low, err := strconv.ParseFloat(bk.Low, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing low price '%s': %w", bk.Low, err)
	}
	cls, err := strconv.ParseFloat(bk.Close, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing close price '%s': %w", bk.Close, err)
	}
	vol, err := strconv.ParseFloat(bk.Volume, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing volume '%s': %w", bk.Volume, err)
	}

	return &domain.Kline{
		OpenTime:  time.UnixMilli(bk.OpenTime),
		CloseTime: time.UnixMilli(bk.CloseTime),
		Symbol:    symbol,   // Use passed symbol as it's not in futures.Kline
		Interval:  interval, // Use passed interval
		Open:      open,
		High:      high,
		Low:       low,
		Close:     cls,
		Volume:    vol,
	}, nil
}
