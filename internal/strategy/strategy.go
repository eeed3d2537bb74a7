package strategy

import (
	"context"
	"fmt"
	"math"

	"perpScalper/internal/domain"
	"perpScalper/internal/ports"
)

// Config holds the thresholds of the scalping signal.
type Config struct {
	VolumeMultiplier float64 // Current volume must be at least this multiple of the volume average
	LongRSIMin       float64 // LONG entries need RSI strictly above this...
	LongRSIMax       float64 // ...and strictly below this
	ShortRSIMin      float64 // SHORT entries need RSI strictly above this...
	ShortRSIMax      float64 // ...and strictly below this
	ExitRSILow       float64 // A LONG is closed when RSI drops below this
	ExitRSIHigh      float64 // A SHORT is closed when RSI rises above this
}

// DefaultConfig returns the thresholds the bot trades with.
func DefaultConfig() Config {
	return Config{
		VolumeMultiplier: 1.1,
		LongRSIMin:       45,
		LongRSIMax:       80,
		ShortRSIMin:      20,
		ShortRSIMax:      55,
		ExitRSILow:       30,
		ExitRSIHigh:      70,
	}
}

// Strategy implements ports.SignalEvaluator with an EMA trend/cross filter,
// a volume filter, RSI bands and a one-bar momentum confirmation.
type Strategy struct {
	cfg    Config
	logger ports.Logger
}

// New creates a new Strategy instance.
func New(cfg Config, logger ports.Logger) (*Strategy, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for strategy")
	}
	if cfg.VolumeMultiplier <= 0 {
		return nil, fmt.Errorf("volume multiplier must be positive")
	}
	if cfg.LongRSIMin >= cfg.LongRSIMax || cfg.ShortRSIMin >= cfg.ShortRSIMax {
		return nil, fmt.Errorf("RSI entry bands must have min below max")
	}
	if cfg.ExitRSILow >= cfg.ExitRSIHigh {
		return nil, fmt.Errorf("exit RSI low must be below exit RSI high")
	}
	return &Strategy{cfg: cfg, logger: logger}, nil
}

func anyNaN(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}

// Entry evaluates the last two frames. LONG is checked before SHORT; the
// filters make them mutually exclusive.
func (s *Strategy) Entry(ctx context.Context, symbol string, frames []domain.IndicatorFrame) domain.Signal {
	if len(frames) < 2 {
		s.logger.Debug(ctx, "Not enough frames for entry evaluation", map[string]interface{}{"symbol": symbol, "available": len(frames)})
		return domain.SignalNone
	}
	last := frames[len(frames)-1]
	prev := frames[len(frames)-2]

	if anyNaN(last.EMAShort, last.EMAMid, last.EMALong, last.RSI, last.VolumeEMA, prev.Close) {
		return domain.SignalNone
	}

	s.logger.Debug(ctx, "Evaluating entry", map[string]interface{}{
		"symbol":    symbol,
		"price":     last.Close,
		"emaShort":  last.EMAShort,
		"emaMid":    last.EMAMid,
		"emaLong":   last.EMALong,
		"rsi":       last.RSI,
		"volume":    last.Volume,
		"volumeAvg": last.VolumeEMA,
	})

	if last.Volume < last.VolumeEMA*s.cfg.VolumeMultiplier {
		s.logger.Debug(ctx, "Low volume, skipping", map[string]interface{}{"symbol": symbol, "volume": last.Volume, "volumeAvg": last.VolumeEMA})
		return domain.SignalNone
	}

	if s.longConditions(last, prev) {
		s.logger.Info(ctx, "LONG signal", map[string]interface{}{"symbol": symbol, "price": last.Close, "rsi": last.RSI})
		return domain.SignalLong
	}
	if s.shortConditions(last, prev) {
		s.logger.Info(ctx, "SHORT signal", map[string]interface{}{"symbol": symbol, "price": last.Close, "rsi": last.RSI})
		return domain.SignalShort
	}
	return domain.SignalNone
}

func (s *Strategy) longConditions(last, prev domain.IndicatorFrame) bool {
	return last.EMAShort > last.EMAMid &&
		last.Close > last.EMALong &&
		last.Close > last.Open &&
		last.RSI > s.cfg.LongRSIMin && last.RSI < s.cfg.LongRSIMax &&
		prev.Close < last.Close
}

func (s *Strategy) shortConditions(last, prev domain.IndicatorFrame) bool {
	return last.EMAShort < last.EMAMid &&
		last.Close < last.EMALong &&
		last.Close < last.Open &&
		last.RSI < s.cfg.ShortRSIMax && last.RSI > s.cfg.ShortRSIMin &&
		prev.Close > last.Close
}

// Exit checks the EMA cross first, then the RSI reversal. It deliberately
// ignores the volume and trend filters used for entries.
func (s *Strategy) Exit(ctx context.Context, symbol string, frames []domain.IndicatorFrame, side domain.Side) (bool, domain.CloseReason) {
	if len(frames) == 0 {
		return false, ""
	}
	last := frames[len(frames)-1]
	if anyNaN(last.EMAShort, last.EMAMid, last.RSI) {
		return false, ""
	}

	fields := map[string]interface{}{"symbol": symbol, "side": side, "emaShort": last.EMAShort, "emaMid": last.EMAMid, "rsi": last.RSI}
	switch side {
	case domain.Long:
		if last.EMAShort < last.EMAMid {
			s.logger.Info(ctx, "EXIT: short EMA crossed below mid EMA", fields)
			return true, domain.CloseReasonEMACross
		}
		if last.RSI < s.cfg.ExitRSILow {
			s.logger.Info(ctx, "EXIT: RSI oversold", fields)
			return true, domain.CloseReasonRSIReversal
		}
	case domain.Short:
		if last.EMAShort > last.EMAMid {
			s.logger.Info(ctx, "EXIT: short EMA crossed above mid EMA", fields)
			return true, domain.CloseReasonEMACross
		}
		if last.RSI > s.cfg.ExitRSIHigh {
			s.logger.Info(ctx, "EXIT: RSI overbought", fields)
			return true, domain.CloseReasonRSIReversal
		}
	}
	return false, ""
}
