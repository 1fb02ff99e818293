package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	DatabaseURL      string
	DatabaseMaxConns int32

	HorizonURL            string
	HorizonRetryMax       int
	HorizonRetryBaseDelay time.Duration

	CoinGeckoURL        string
	CoinGeckoDelay      time.Duration
	CoinGeckoRetryMax   int
	RatePollInterval    time.Duration
	QuoteWorkerInterval time.Duration

	AssetsFile           string
	FiatCurrency         string
	ActivityCacheTTL     time.Duration
	ActivityFetchTimeout time.Duration
	BalancePollInterval  time.Duration

	RefreshWorkerInterval time.Duration
	ExportPath            string

	TrendingPairs string
	TrendingLimit int
	CustodialMode bool
	KycTier       string

	HTTPPort    string
	AdminAPIKey string

	PrimeAccessKey   string
	PrimePassphrase  string
	PrimeSigningKey  string
	PrimePortfolioID string

	SheetsSpreadsheetID   string
	GoogleCredentialsJSON string

	LogLevel  string
	LogFormat string
}

// PrimeEnabled reports whether the full Prime credential set is present.
func (c Config) PrimeEnabled() bool {
	return c.PrimeAccessKey != "" && c.PrimePassphrase != "" && c.PrimeSigningKey != "" && c.PrimePortfolioID != ""
}

// SheetsEnabled reports whether Google Sheets export is configured.
func (c Config) SheetsEnabled() bool {
	return c.SheetsSpreadsheetID != "" && c.GoogleCredentialsJSON != ""
}

// Load reads configuration from environment variables with sensible defaults.
// Variables from a .env file in the working directory are applied first;
// variables already set in the environment win.
func Load() Config {
	if err := godotenv.Load(); err == nil {
		slog.Info("loaded environment from .env")
	}

	return Config{
		DatabaseURL:      envOrDefaultWarn("DATABASE_URL", ""),
		DatabaseMaxConns: int32(envOrDefaultInt("DATABASE_MAX_CONNS", 10)),

		HorizonURL:            envOrDefault("HORIZON_URL", "https://horizon.stellar.org"),
		HorizonRetryMax:       envOrDefaultInt("HORIZON_RETRY_MAX", 5),
		HorizonRetryBaseDelay: envOrDefaultDuration("HORIZON_RETRY_BASE_DELAY", 2*time.Second),

		CoinGeckoURL:        envOrDefault("COINGECKO_URL", "https://api.coingecko.com/api/v3"),
		CoinGeckoDelay:      envOrDefaultDuration("COINGECKO_DELAY", 6*time.Second),
		CoinGeckoRetryMax:   envOrDefaultInt("COINGECKO_RETRY_MAX", 5),
		RatePollInterval:    envOrDefaultDuration("RATE_POLL_INTERVAL", 30*time.Second),
		QuoteWorkerInterval: envOrDefaultDuration("QUOTE_WORKER_INTERVAL", 5*time.Minute),

		AssetsFile:           envOrDefault("ASSETS_FILE", "assets.yaml"),
		FiatCurrency:         strings.ToUpper(envOrDefault("FIAT_CURRENCY", "USD")),
		ActivityCacheTTL:     envOrDefaultDuration("ACTIVITY_CACHE_TTL", 5*time.Minute),
		ActivityFetchTimeout: envOrDefaultDuration("ACTIVITY_FETCH_TIMEOUT", 30*time.Second),
		BalancePollInterval:  envOrDefaultDuration("BALANCE_POLL_INTERVAL", 15*time.Second),

		RefreshWorkerInterval: envOrDefaultDuration("REFRESH_WORKER_INTERVAL", 10*time.Minute),
		ExportPath:            envOrDefault("EXPORT_PATH", ""),

		TrendingPairs: envOrDefault("TRENDING_PAIRS", "BTC-ETH,ETH-BTC,BTC-USDC,ETH-USDC,XLM-BTC,BCH-BTC"),
		TrendingLimit: envOrDefaultInt("TRENDING_LIMIT", 6),
		CustodialMode: envOrDefaultBool("CUSTODIAL_MODE", false),
		KycTier:       envOrDefault("KYC_TIER", "NONE"),

		HTTPPort:    envOrDefault("HTTP_PORT", "8080"),
		AdminAPIKey: envOrDefault("ADMIN_API_KEY", ""),

		PrimeAccessKey:   envOrDefault("PRIME_ACCESS_KEY", ""),
		PrimePassphrase:  envOrDefault("PRIME_PASSPHRASE", ""),
		PrimeSigningKey:  envOrDefault("PRIME_SIGNING_KEY", ""),
		PrimePortfolioID: envOrDefault("PRIME_PORTFOLIO_ID", ""),

		SheetsSpreadsheetID:   envOrDefault("SHEETS_SPREADSHEET_ID", ""),
		GoogleCredentialsJSON: envOrDefault("GOOGLE_CREDENTIALS_JSON", ""),

		LogLevel:  envOrDefault("LOG_LEVEL", "info"),
		LogFormat: envOrDefault("LOG_FORMAT", "text"),
	}
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envOrDefaultWarn(key, defaultVal string) string {
	v := envOrDefault(key, defaultVal)
	if v == "" {
		slog.Warn("required env var not set", "key", key)
	}
	return v
}

func envOrDefaultInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			slog.Warn("invalid integer env var, using default", "key", key, "value", v, "default", defaultVal)
			return defaultVal
		}
		return n
	}
	return defaultVal
}

func envOrDefaultBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			slog.Warn("invalid boolean env var, using default", "key", key, "value", v, "default", defaultVal)
			return defaultVal
		}
		return b
	}
	return defaultVal
}

func envOrDefaultDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			slog.Warn("invalid duration env var, using default", "key", key, "value", v, "default", defaultVal)
			return defaultVal
		}
		return d
	}
	return defaultVal
}
