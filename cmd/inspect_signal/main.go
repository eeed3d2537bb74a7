package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"perpScalper/config"
	"perpScalper/internal/adapters/binanceclient"
	"perpScalper/internal/adapters/logger"
	"perpScalper/internal/domain"
	"perpScalper/internal/strategy"
	"perpScalper/internal/strategy/indicators"
	"perpScalper/internal/utils"
)

// inspect_signal fetches recent candles for one symbol, prints the entry and exit
// decisions the live loop would make and optionally dumps the indicator frames to CSV.
func main() {
	symbol := flag.String("symbol", "BTCUSDT", "futures symbol to inspect")
	out := flag.String("out", "", "write indicator frames to this CSV file")
	flag.Parse()

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}
	ctx := context.Background()

	// 2. Initialize Logger
	appLogger := logger.NewStdLogger(cfg.LogLevel)

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
		log.Fatalf("FATAL: Failed to initialize Binance client: %v", err)
	}

	profile := indicators.ProfileFor(cfg.Timeframe)
	klines, err := binanceClient.FetchOHLCV(ctx, *symbol, profile.Timeframe, profile.FetchLimit())
	if err != nil {
		log.Fatalf("Error fetching klines: %v", err)
	}
	if len(klines) < indicators.MinEntryBars {
		log.Fatalf("Only %d candles available for %s, need %d", len(klines), *symbol, indicators.MinEntryBars)
	}
	appLogger.Info(ctx, "Fetched klines", map[string]interface{}{"symbol": *symbol, "timeframe": profile.Timeframe, "count": len(klines)})

	frames := indicators.BuildFrames(klines, profile)
	strat, err := strategy.New(strategy.DefaultConfig(), appLogger)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize trading strategy: %v", err)
	}

	last := frames[len(frames)-1]
	signal := strat.Entry(ctx, *symbol, frames)
	if signal == "" {
		signal = "NONE"
	}
	fmt.Printf("%s %s close=%v ema9=%.4f ema21=%.4f ema200=%.4f rsi=%.2f atr=%.4f volume=%v volumeEMA=%.2f\n",
		*symbol, profile.Timeframe, last.Close, last.EMAShort, last.EMAMid, last.EMALong, last.RSI, last.ATR, last.Volume, last.VolumeEMA)
	fmt.Printf("entry signal: %s\n", signal)
	for _, side := range []domain.Side{domain.Long, domain.Short} {
		exit, reason := strat.Exit(ctx, *symbol, frames, side)
		fmt.Printf("exit %s: %v %s\n", side, exit, reason)
	}

	if *out != "" {
		if err := utils.WriteFramesToCSV(frames, *out); err != nil {
			log.Fatalf("Error writing CSV: %v", err)
		}
		appLogger.Info(ctx, "Saved to", map[string]interface{}{"filename": *out})
	}
}
