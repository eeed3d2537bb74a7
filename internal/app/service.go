package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"perpScalper/config"
	"perpScalper/internal/domain"
	"perpScalper/internal/ports"
	"perpScalper/internal/strategy/indicators"
)

const (
	exitPause  = 1 * time.Second
	entryPause = 2 * time.Second
)

// CycleReport summarises one scan cycle.
type CycleReport struct {
	Closed     int
	Opened     int
	Open       int  // Positions held after the exit pass
	AtCapacity bool // Entry pass skipped because the ceiling was reached
	LowBalance bool // Entry pass skipped because the balance is below the minimum
}

// TradingService orchestrates the trading bot's operations.
type TradingService struct {
	cfg       *config.Config
	logger    ports.Logger
	exchange  ports.ExchangeClient
	evaluator ports.SignalEvaluator
	positions *PositionManager
	notifier  ports.Notifier
	profile   indicators.Profile

	universe   []string
	lastHealth time.Time
	lastReport time.Time
	now        func() time.Time
	sleep      Sleeper
	pauseExit  time.Duration
	pauseEntry time.Duration
}

// NewTradingService creates a new application service instance.
func NewTradingService(
	cfg *config.Config,
	logger ports.Logger,
	exchange ports.ExchangeClient,
	evaluator ports.SignalEvaluator,
	positions *PositionManager,
	notifier ports.Notifier,
) (*TradingService, error) {

	// Validate dependencies
	if cfg == nil || logger == nil || exchange == nil || evaluator == nil || positions == nil || notifier == nil {
		return nil, fmt.Errorf("missing required dependencies for TradingService")
	}
	if cfg.MaxPositions <= 0 {
		return nil, fmt.Errorf("configuration MaxPositions must be positive")
	}

	return &TradingService{
		cfg:        cfg,
		logger:     logger,
		exchange:   exchange,
		evaluator:  evaluator,
		positions:  positions,
		notifier:   notifier,
		profile:    indicators.ProfileFor(cfg.Timeframe),
		now:        time.Now,
		sleep:      sleepContext,
		pauseExit:  exitPause,
		pauseEntry: entryPause,
	}, nil
}

// Universe returns the symbols scanned for entries.
func (s *TradingService) Universe() []string {
	return append([]string(nil), s.universe...)
}

// Start runs the startup checks and then scans until ctx is cancelled or a
// shutdown signal arrives. It only returns an error for startup failures.
func (s *TradingService) Start(ctx context.Context) error {
	s.logger.Info(ctx, "Starting Trading Service...", map[string]interface{}{
		"timeframe":    s.profile.Timeframe,
		"rsiPeriod":    s.profile.RSIPeriod,
		"atrPeriod":    s.profile.ATRPeriod,
		"historyLimit": s.profile.FetchLimit(),
	})

	// Create a context that can be canceled by signals
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			s.logger.Info(ctx, "Received shutdown signal", map[string]interface{}{"signal": sig.String()})
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := s.Initialize(ctx); err != nil {
		return err
	}

	for ctx.Err() == nil {
		wait := s.cfg.ScanInterval
		report, err := s.safeCycle(ctx)
		switch {
		case err != nil && ctx.Err() != nil:
			// Shutdown interrupted the cycle.
		case err != nil:
			s.logger.Error(ctx, err, "Scan cycle failed", map[string]interface{}{"retryIn": s.cfg.ErrorCooldown.String()})
			wait = s.cfg.ErrorCooldown
		case report.AtCapacity:
			wait = s.cfg.CapacityWait
		}
		if err := s.sleep(ctx, wait); err != nil {
			break
		}
	}

	snap := s.positions.Stats()
	s.logger.Info(context.Background(), "Trading Service stopped.", map[string]interface{}{
		"trades":   snap.TotalTrades,
		"totalPnl": snap.TotalPnL,
		"winrate":  snap.WinRate(),
	})
	return nil
}

// Initialize checks balance and loads the symbol universe.
func (s *TradingService) Initialize(ctx context.Context) error {
	quote := s.cfg.QuoteAsset

	balance, err := s.exchange.FetchBalance(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch balance: %w", err)
	}
	s.logger.Info(ctx, "Balance", map[string]interface{}{"available": balance, "asset": quote})
	if balance < s.cfg.MinBalanceUSDT {
		s.notifier.Notify(ctx, lowBalanceMessage(balance, s.cfg.MinBalanceUSDT, quote))
		return fmt.Errorf("insufficient balance %.2f %s, minimum %.2f", balance, quote, s.cfg.MinBalanceUSDT)
	}

	markets, err := s.exchange.FetchMarkets(ctx)
	if err != nil {
		return fmt.Errorf("failed to load markets: %w", err)
	}
	s.positions.SetMarkets(markets)
	s.universe = selectUniverse(markets, quote, s.cfg.Symbols)
	if len(s.universe) == 0 {
		return fmt.Errorf("no tradable %s perpetual symbols found", quote)
	}
	s.logger.Info(ctx, "Symbol universe loaded", map[string]interface{}{"symbols": len(s.universe), "markets": len(markets)})

	now := s.now()
	s.lastHealth = now
	s.lastReport = now
	s.notifier.Notify(ctx, startupMessage(len(s.universe), s.cfg.Leverage, s.cfg.MaxPositions, s.cfg.OrderSizeUSDT, s.profile.Timeframe, balance, quote, now))
	return nil
}

func selectUniverse(markets []domain.MarketInfo, quote string, whitelist []string) []string {
	allowed := make(map[string]bool, len(whitelist))
	for _, sym := range whitelist {
		allowed[sym] = true
	}
	var out []string
	for _, m := range markets {
		if !m.IsPerpetual() || m.QuoteAsset != quote {
			continue
		}
		if len(allowed) > 0 && !allowed[m.Symbol] {
			continue
		}
		out = append(out, m.Symbol)
	}
	return out
}

func (s *TradingService) safeCycle(ctx context.Context) (report CycleReport, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in scan cycle: %v", r)
		}
	}()
	return s.RunCycle(ctx)
}

// RunCycle performs one scan: periodic checks, the exit pass, then the entry pass.
func (s *TradingService) RunCycle(ctx context.Context) (CycleReport, error) {
	var report CycleReport
	s.periodicChecks(ctx)

	positions, err := s.exchange.FetchPositions(ctx)
	if err != nil {
		return report, fmt.Errorf("fetch positions: %w", err)
	}

	for _, pos := range positions {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		if s.checkExit(ctx, pos) {
			report.Closed++
			if err := s.sleep(ctx, s.pauseExit); err != nil {
				return report, err
			}
		}
	}

	// Re-query so the entry pass sees slots freed above and closes done by TP/SL.
	positions, err = s.exchange.FetchPositions(ctx)
	if err != nil {
		return report, fmt.Errorf("re-fetch positions: %w", err)
	}
	s.positions.Reconcile(ctx, positions)
	report.Open = len(positions)

	if report.Open >= s.cfg.MaxPositions {
		s.logger.Info(ctx, "Position limit reached", map[string]interface{}{"open": report.Open, "max": s.cfg.MaxPositions})
		report.AtCapacity = true
		return report, nil
	}

	balance, err := s.exchange.FetchBalance(ctx)
	if err != nil {
		s.logger.Warn(ctx, "Balance unavailable, skipping entries this cycle", map[string]interface{}{"error": err.Error()})
		return report, nil
	}
	if balance < s.cfg.MinBalanceUSDT {
		s.logger.Warn(ctx, "Balance below minimum, skipping entries", map[string]interface{}{"balance": balance, "minimum": s.cfg.MinBalanceUSDT})
		report.LowBalance = true
		return report, nil
	}

	held := make(map[string]bool, len(positions))
	for _, p := range positions {
		held[p.Symbol] = true
	}

	s.logger.Debug(ctx, "Scanning for entries", map[string]interface{}{"symbols": len(s.universe), "open": report.Open})
	for _, symbol := range s.universe {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		if report.Open+report.Opened >= s.cfg.MaxPositions {
			s.logger.Info(ctx, "Position limit reached during entry pass", map[string]interface{}{"opened": report.Opened})
			break
		}
		if held[symbol] {
			continue
		}
		if remaining := s.positions.CooldownRemaining(symbol); remaining > 0 {
			s.logger.Debug(ctx, "Symbol in cooldown", map[string]interface{}{"symbol": symbol, "remaining": remaining.Round(time.Second).String()})
			continue
		}
		if s.checkEntry(ctx, symbol) {
			report.Opened++
			held[symbol] = true
			if err := s.sleep(ctx, s.pauseEntry); err != nil {
				return report, err
			}
		}
	}

	s.logger.Debug(ctx, "Scan cycle complete", map[string]interface{}{"closed": report.Closed, "opened": report.Opened})
	return report, nil
}

// checkExit evaluates one open position and closes it on an exit signal.
// Per-symbol failures are logged and skipped.
func (s *TradingService) checkExit(ctx context.Context, pos domain.Position) bool {
	klines, err := s.exchange.FetchOHLCV(ctx, pos.Symbol, s.profile.Timeframe, indicators.ExitFetchLimit)
	if err != nil {
		s.logger.Warn(ctx, "Failed to fetch candles for exit check", map[string]interface{}{"symbol": pos.Symbol, "error": err.Error()})
		return false
	}
	if len(klines) < indicators.MinExitBars {
		s.logger.Debug(ctx, "Not enough candles for exit check", map[string]interface{}{"symbol": pos.Symbol, "count": len(klines)})
		return false
	}

	frames := indicators.BuildFrames(klines, s.profile)
	exit, reason := s.evaluator.Exit(ctx, pos.Symbol, frames, pos.Side)
	if !exit {
		return false
	}

	closed, err := s.positions.TryClose(ctx, pos.Symbol, pos.Side, reason, pos.EntryPrice)
	if err != nil {
		s.logger.Error(ctx, err, "Failed to close position", map[string]interface{}{"symbol": pos.Symbol, "reason": reason})
		return false
	}
	return closed
}

// checkEntry evaluates one symbol and opens a position on a signal.
// Per-symbol failures are logged and skipped.
func (s *TradingService) checkEntry(ctx context.Context, symbol string) bool {
	klines, err := s.exchange.FetchOHLCV(ctx, symbol, s.profile.Timeframe, s.profile.FetchLimit())
	if err != nil {
		s.logger.Warn(ctx, "Failed to fetch candles for entry check", map[string]interface{}{"symbol": symbol, "error": err.Error()})
		return false
	}
	if len(klines) < indicators.MinEntryBars {
		s.logger.Debug(ctx, "Not enough candles for entry check", map[string]interface{}{"symbol": symbol, "count": len(klines)})
		return false
	}

	frames := indicators.BuildFrames(klines, s.profile)
	side, ok := s.evaluator.Entry(ctx, symbol, frames).Side()
	if !ok {
		return false
	}

	atr := frames[len(frames)-1].ATR
	if _, err := s.positions.TryOpen(ctx, symbol, side, atr); err != nil {
		if errors.Is(err, ErrCooldownActive) {
			s.logger.Debug(ctx, "Entry skipped", map[string]interface{}{"symbol": symbol, "reason": err.Error()})
			return false
		}
		s.logger.Error(ctx, err, "Failed to open position", map[string]interface{}{"symbol": symbol, "side": side})
		return false
	}
	return true
}

// periodicChecks runs the balance health check and the P&L report on their cadence.
func (s *TradingService) periodicChecks(ctx context.Context) {
	now := s.now()
	interval := s.cfg.HealthCheckInterval

	if now.Sub(s.lastHealth) >= interval {
		s.lastHealth = now
		balance, err := s.exchange.FetchBalance(ctx)
		if err != nil {
			s.logger.Warn(ctx, "Balance health check failed", map[string]interface{}{"error": err.Error()})
		} else {
			s.logger.Info(ctx, "Balance health check", map[string]interface{}{"balance": balance, "asset": s.cfg.QuoteAsset})
			if balance < s.cfg.MinBalanceUSDT {
				s.notifier.Notify(ctx, lowBalanceMessage(balance, s.cfg.MinBalanceUSDT, s.cfg.QuoteAsset))
			}
		}
	}

	if now.Sub(s.lastReport) >= interval {
		s.lastReport = now
		snap := s.positions.Stats()
		if snap.TotalTrades > 0 {
			s.notifier.Notify(ctx, statsMessage(snap, s.cfg.QuoteAsset))
		}
	}
}
