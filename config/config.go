package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"perpScalper/internal/adapters/logger"
)

// Config holds all application configuration.
type Config struct {
	// Binance API
	APIKey    string
	SecretKey string
	IsTestnet bool

	// Trading Parameters
	OrderSizeUSDT    float64 // Notional per trade before leverage
	Leverage         int
	MaxPositions     int // Ceiling on simultaneously open positions
	Timeframe        string
	MinProfitPercent float64 // Take-profit floor, in percent (0.3 = 0.3%)
	MinBalanceUSDT   float64 // No entries below this available balance
	Cooldown         time.Duration
	QuoteAsset       string
	Symbols          []string // Optional whitelist; empty means every tradable perpetual

	// Telegram
	TelegramToken  string
	TelegramChatID int64

	// Logging
	LogLevel   logger.LogLevel
	LogBackend string // "zap" or "std"
	LogFile    string

	// Loop cadence
	ScanInterval        time.Duration
	CapacityWait        time.Duration
	ErrorCooldown       time.Duration
	HealthCheckInterval time.Duration

	// Gateway throttle
	RequestsPerSecond float64
}

var supportedTimeframes = map[string]bool{
	"1m": true, "3m": true, "5m": true, "15m": true, "30m": true, "1h": true,
}

// NotificationsEnabled reports whether both Telegram settings are present.
func (c *Config) NotificationsEnabled() bool {
	return c.TelegramToken != "" && c.TelegramChatID != 0
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string // Collect validation errors

	// Binance API
	cfg.APIKey = getEnv("BINANCE_API_KEY", "")
	cfg.SecretKey = getEnv("BINANCE_API_SECRET", "")
	cfg.IsTestnet = getEnvAsBool("IS_TESTNET", true) // Default to testnet for safety

	if cfg.APIKey == "" {
		errs = append(errs, "BINANCE_API_KEY must be set")
	}
	if cfg.SecretKey == "" {
		errs = append(errs, "BINANCE_API_SECRET must be set")
	}

	// Trading Parameters
	cfg.OrderSizeUSDT, err = getEnvAsFloatRequired("ORDER_SIZE_USDT", 10)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid ORDER_SIZE_USDT: %v", err))
	} else if cfg.OrderSizeUSDT <= 0 {
		errs = append(errs, "ORDER_SIZE_USDT must be positive")
	}

	cfg.Leverage, err = getEnvAsIntRequired("LEVERAGE", 15)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid LEVERAGE: %v", err))
	} else if cfg.Leverage <= 0 || cfg.Leverage > 125 {
		errs = append(errs, "LEVERAGE must be between 1 and 125")
	}

	cfg.MaxPositions, err = getEnvAsIntRequired("MAX_POSITIONS", 5)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MAX_POSITIONS: %v", err))
	} else if cfg.MaxPositions <= 0 {
		errs = append(errs, "MAX_POSITIONS must be positive")
	}

	cfg.Timeframe = getEnv("TIMEFRAME", "5m")
	if !supportedTimeframes[cfg.Timeframe] {
		errs = append(errs, fmt.Sprintf("unsupported TIMEFRAME %q", cfg.Timeframe))
	}

	cfg.MinProfitPercent, err = getEnvAsFloatRequired("MIN_PROFIT_PERCENT", 0.3)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MIN_PROFIT_PERCENT: %v", err))
	} else if cfg.MinProfitPercent <= 0 {
		errs = append(errs, "MIN_PROFIT_PERCENT must be positive")
	}

	cfg.MinBalanceUSDT, err = getEnvAsFloatRequired("MIN_BALANCE_USDT", 10)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MIN_BALANCE_USDT: %v", err))
	} else if cfg.MinBalanceUSDT < 0 {
		errs = append(errs, "MIN_BALANCE_USDT cannot be negative")
	}

	cfg.Cooldown, err = getEnvAsDuration("COOLDOWN_SECONDS", 120, time.Second)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid COOLDOWN_SECONDS: %v", err))
	}

	cfg.QuoteAsset = strings.ToUpper(getEnv("QUOTE_ASSET", "USDT"))
	cfg.Symbols = parseSymbols(getEnv("SYMBOLS", ""))

	// Telegram
	cfg.TelegramToken = getEnv("TELEGRAM_BOT_TOKEN", "")
	if chatID := getEnv("TELEGRAM_CHAT_ID", ""); chatID != "" {
		cfg.TelegramChatID, err = strconv.ParseInt(chatID, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Sprintf("invalid TELEGRAM_CHAT_ID: %v", err))
		}
	}

	// Logging
	cfg.LogLevel = logger.ParseLevel(getEnv("LOG_LEVEL", "INFO"))
	cfg.LogBackend = strings.ToLower(getEnv("LOG_BACKEND", "zap"))
	if cfg.LogBackend != "zap" && cfg.LogBackend != "std" {
		errs = append(errs, "LOG_BACKEND must be one of zap, std")
	}
	cfg.LogFile = getEnv("LOG_FILE", "")

	// Loop cadence
	cadences := []struct {
		key    string
		def    int
		unit   time.Duration
		target *time.Duration
	}{
		{"SCAN_INTERVAL_SECONDS", 30, time.Second, &cfg.ScanInterval},
		{"CAPACITY_WAIT_SECONDS", 60, time.Second, &cfg.CapacityWait},
		{"ERROR_COOLDOWN_SECONDS", 60, time.Second, &cfg.ErrorCooldown},
		{"HEALTH_CHECK_INTERVAL_MINUTES", 60, time.Minute, &cfg.HealthCheckInterval},
	}
	for _, c := range cadences {
		d, err := getEnvAsDuration(c.key, c.def, c.unit)
		if err != nil {
			errs = append(errs, fmt.Sprintf("invalid %s: %v", c.key, err))
			continue
		}
		if d <= 0 {
			errs = append(errs, fmt.Sprintf("%s must be positive", c.key))
			continue
		}
		*c.target = d
	}

	cfg.RequestsPerSecond, err = getEnvAsFloatRequired("REQUESTS_PER_SECOND", 10)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid REQUESTS_PER_SECOND: %v", err))
	} else if cfg.RequestsPerSecond <= 0 {
		errs = append(errs, "REQUESTS_PER_SECOND must be positive")
	}

	// Combine validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

func parseSymbols(raw string) []string {
	var symbols []string
	for _, s := range strings.Split(raw, ",") {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s != "" {
			symbols = append(symbols, s)
		}
	}
	return symbols
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsIntRequired(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		// Use default if env var is not set at all
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		// Return error if env var is set but invalid
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsFloatRequired(key string, defaultValue float64) (float64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

// getEnvAsDuration reads an integer count of unit.
func getEnvAsDuration(key string, defaultValue int, unit time.Duration) (time.Duration, error) {
	n, err := getEnvAsIntRequired(key, defaultValue)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("%s cannot be negative", key)
	}
	return time.Duration(n) * unit, nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
