package main

import (
	"context"
	"log" // Use standard log only for initial fatal errors before logger is set up

	"perpScalper/config"
	"perpScalper/internal/adapters/binanceclient"
	"perpScalper/internal/adapters/logger"
	"perpScalper/internal/adapters/telegram"
	"perpScalper/internal/app"
	"perpScalper/internal/ports"
	"perpScalper/internal/risk"
	"perpScalper/internal/strategy"
)

func newLogger(cfg *config.Config) (ports.Logger, func()) {
	if cfg.LogBackend == "std" {
		return logger.NewStdLogger(cfg.LogLevel), func() {}
	}
	zl := logger.NewZapLogger(logger.ZapOptions{Level: cfg.LogLevel, File: cfg.LogFile})
	return zl, func() { _ = zl.Sync() }
}

func main() {
	ctx := context.Background()

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	appLogger, syncLogger := newLogger(cfg)
	defer syncLogger()
	appLogger.Info(ctx, "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String(), "backend": cfg.LogBackend})

	// 3. Initialize Exchange Client (Binance Adapter)
	binanceClient, err := binanceclient.New(binanceclient.Config{
		APIKey:            cfg.APIKey,
		SecretKey:         cfg.SecretKey,
		UseTestnet:        cfg.IsTestnet,
		Logger:            appLogger,
		QuoteAsset:        cfg.QuoteAsset,
		RequestsPerSecond: cfg.RequestsPerSecond,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize Binance client")
		log.Fatalf("FATAL: Failed to initialize Binance client: %v", err)
	}
	if err := binanceClient.Ping(ctx); err != nil {
		appLogger.Error(ctx, err, "FATAL: Binance futures API unreachable")
		log.Fatalf("FATAL: Binance futures API unreachable: %v", err)
	}
	if err := binanceClient.SetServerTime(ctx); err != nil {
		appLogger.Warn(ctx, "Could not sync server time, using local clock", map[string]interface{}{"error": err.Error()})
	}
	appLogger.Info(ctx, "Binance client initialized", map[string]interface{}{"testnet": cfg.IsTestnet})

	// 4. Initialize Notifier
	notifier, err := telegram.New(telegram.Config{
		Token:  cfg.TelegramToken,
		ChatID: cfg.TelegramChatID,
		Logger: appLogger,
	})
	if err != nil {
		appLogger.Warn(ctx, "Telegram unavailable, notifications will only be logged", map[string]interface{}{"error": err.Error()})
		notifier, _ = telegram.New(telegram.Config{Logger: appLogger})
	}
	notifier.Start(ctx)
	defer notifier.Close()
	appLogger.Info(ctx, "Notifier initialized", map[string]interface{}{"telegram": notifier.Enabled()})

	// 5. Initialize Risk Manager and Strategy
	riskManager, err := risk.NewRiskManager(risk.RiskConfig{
		OrderSizeUSDT:    cfg.OrderSizeUSDT,
		Leverage:         cfg.Leverage,
		MinProfitPercent: cfg.MinProfitPercent,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize risk manager")
		log.Fatalf("FATAL: Failed to initialize risk manager: %v", err)
	}

	strat, err := strategy.New(strategy.DefaultConfig(), appLogger)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize trading strategy")
		log.Fatalf("FATAL: Failed to initialize trading strategy: %v", err)
	}
	appLogger.Info(ctx, "Trading strategy initialized")

	// 6. Initialize Application Service
	positions, err := app.NewPositionManager(app.PositionManagerConfig{
		Cooldown:   cfg.Cooldown,
		QuoteAsset: cfg.QuoteAsset,
	}, appLogger, binanceClient, notifier, riskManager)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize position manager")
		log.Fatalf("FATAL: Failed to initialize position manager: %v", err)
	}

	tradingService, err := app.NewTradingService(cfg, appLogger, binanceClient, strat, positions, notifier)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize trading service")
		log.Fatalf("FATAL: Failed to initialize trading service: %v", err)
	}
	appLogger.Info(ctx, "Trading service initialized")

	// 7. Start the Service
	if err := tradingService.Start(ctx); err != nil {
		appLogger.Error(ctx, err, "Trading service exited with error")
		notifier.Close()
		syncLogger()
		log.Fatalf("FATAL: Trading service exited with error: %v", err)
	}

	appLogger.Info(ctx, "Application finished gracefully.")
}
