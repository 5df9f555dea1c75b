// Package config loads service configuration from the environment.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Config is the runtime configuration of the pricing service.
type Config struct {
	Port              string
	DatabaseURL       string
	RedisURL          string
	CacheTTL          time.Duration
	ReferenceDataFile string

	InternationalFeeRate   decimal.Decimal
	PaymentFeeRate         decimal.Decimal
	DefaultInsertionFeeUSD decimal.Decimal
	DefaultFVFRate         decimal.Decimal
	DefaultPolicyName      string

	SolverMaxIterations int
	SolverToleranceUSD  decimal.Decimal
	BatchConcurrency    int
}

// Load reads the configuration. Unset variables take their defaults; values
// that fail to parse are logged and replaced by the default.
func Load() Config {
	return Config{
		Port:              str("PORT", "8080"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		RedisURL:          os.Getenv("REDIS_URL"),
		CacheTTL:          duration("CACHE_TTL", 30*time.Second),
		ReferenceDataFile: os.Getenv("REFERENCE_DATA_FILE"),

		InternationalFeeRate:   rate("INTERNATIONAL_FEE_RATE", "0.015"),
		PaymentFeeRate:         rate("PAYMENT_FEE_RATE", "0.02"),
		DefaultInsertionFeeUSD: amount("DEFAULT_INSERTION_FEE_USD", "0.35"),
		DefaultFVFRate:         rate("DEFAULT_FVF_RATE", "0.1315"),
		DefaultPolicyName:      str("DEFAULT_POLICY_NAME", "USA_DDP_STANDARD"),

		SolverMaxIterations: positiveInt("SOLVER_MAX_ITERATIONS", 20),
		SolverToleranceUSD:  amount("SOLVER_TOLERANCE_USD", "0.01"),
		BatchConcurrency:    positiveInt("BATCH_CONCURRENCY", 8),
	}
}

func str(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func duration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		slog.Warn("invalid config value, using default", "key", key, "value", v, "default", def.String())
		return def
	}
	return d
}

func positiveInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		slog.Warn("invalid config value, using default", "key", key, "value", v, "default", def)
		return def
	}
	return n
}

// amount parses a non-negative decimal.
func amount(key, def string) decimal.Decimal {
	fallback := decimal.RequireFromString(def)
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := decimal.NewFromString(v)
	if err != nil || d.IsNegative() {
		slog.Warn("invalid config value, using default", "key", key, "value", v, "default", def)
		return fallback
	}
	return d
}

// rate parses a fraction in [0, 1).
func rate(key, def string) decimal.Decimal {
	d := amount(key, def)
	if d.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		slog.Warn("invalid config value, using default", "key", key, "value", d.String(), "default", def)
		return decimal.RequireFromString(def)
	}
	return d
}
