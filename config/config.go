// Package config loads coin-analyze settings from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/aquibsayyed9/coin-analyze/provider"
)

// Error codes
const (
	ErrConfigLoad   = "CONFIG_LOAD_ERROR"
	ErrCacheConnect = "CACHE_CONNECT_ERROR"
	ErrDBConnect    = "DB_CONNECT_ERROR"
)

// Error is a startup failure with a stable code
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new Error
func NewError(code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// Config holds every setting of the service
type Config struct {
	Port     string `mapstructure:"PORT"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	Providers         []string      `mapstructure:"PROVIDERS"`
	CatalogProvider   string        `mapstructure:"CATALOG_PROVIDER"`
	TopAssetsLimit    int           `mapstructure:"TOP_ASSETS_LIMIT"`
	DefaultAssetCount int           `mapstructure:"DEFAULT_ASSET_COUNT"`
	DefaultExchanges  []string      `mapstructure:"DEFAULT_EXCHANGES"`
	CallTimeout       time.Duration `mapstructure:"CALL_TIMEOUT"`
	Workers           int           `mapstructure:"WORKERS"`

	CMCAPIKey  string `mapstructure:"CMC_API_KEY"`
	CMCBaseURL string `mapstructure:"CMC_BASE_URL"`

	CoinGeckoAPIKey    string `mapstructure:"COINGECKO_API_KEY"`
	CoinGeckoDemo      bool   `mapstructure:"COINGECKO_DEMO"`
	CoinGeckoBaseURL   string `mapstructure:"COINGECKO_BASE_URL"`
	CoinGeckoUSDVolume bool   `mapstructure:"COINGECKO_USD_VOLUME"`

	BinanceBaseURL       string `mapstructure:"BINANCE_BASE_URL"`
	BinanceViaRelay      bool   `mapstructure:"BINANCE_VIA_RELAY"`
	BinanceDeriveSymbols bool   `mapstructure:"BINANCE_DERIVE_SYMBOLS"`
	ScraperAPIKey        string `mapstructure:"SCRAPER_API_KEY"`
	ScraperAPIURL        string `mapstructure:"SCRAPER_API_URL"`

	AlpacaAPIKey    string `mapstructure:"ALPACA_API_KEY"`
	AlpacaAPISecret string `mapstructure:"ALPACA_API_SECRET"`
	AlpacaDataURL   string `mapstructure:"ALPACA_DATA_URL"`

	CacheEnabled  bool          `mapstructure:"CACHE_ENABLED"`
	CacheTTL      time.Duration `mapstructure:"CACHE_TTL"`
	RedisAddr     string        `mapstructure:"REDIS_ADDR"`
	RedisPassword string        `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int           `mapstructure:"REDIS_DB"`

	DatabaseURL      string `mapstructure:"DATABASE_URL"`
	RefreshSchedule  string `mapstructure:"REFRESH_SCHEDULE"`
	MaxNotifications int    `mapstructure:"MAX_NOTIFICATIONS"`
}

var defaults = map[string]any{
	"PORT":                   "8080",
	"LOG_LEVEL":              "info",
	"PROVIDERS":              "coinmarketcap,coingecko,binance",
	"CATALOG_PROVIDER":       provider.CoinMarketCapName,
	"TOP_ASSETS_LIMIT":       10,
	"DEFAULT_ASSET_COUNT":    5,
	"DEFAULT_EXCHANGES":      "",
	"CALL_TIMEOUT":           "10s",
	"WORKERS":                4,
	"CMC_API_KEY":            "",
	"CMC_BASE_URL":           "",
	"COINGECKO_API_KEY":      "",
	"COINGECKO_DEMO":         false,
	"COINGECKO_BASE_URL":     "",
	"COINGECKO_USD_VOLUME":   false,
	"BINANCE_BASE_URL":       "",
	"BINANCE_VIA_RELAY":      false,
	"BINANCE_DERIVE_SYMBOLS": false,
	"SCRAPER_API_KEY":        "",
	"SCRAPER_API_URL":        provider.DefaultRelayURL,
	"ALPACA_API_KEY":         "",
	"ALPACA_API_SECRET":      "",
	"ALPACA_DATA_URL":        "",
	"CACHE_ENABLED":          true,
	"CACHE_TTL":              "15m",
	"REDIS_ADDR":             "",
	"REDIS_PASSWORD":         "",
	"REDIS_DB":               0,
	"DATABASE_URL":           "",
	"REFRESH_SCHEDULE":       "@every 15m",
	"MAX_NOTIFICATIONS":      100,
}

// Load reads the configuration from environment variables. Call godotenv.Load
// beforehand to pick up a .env file.
func Load() (Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, NewError(ErrConfigLoad, "Failed to unmarshal config", err)
	}

	cfg.Providers = cleanList(cfg.Providers, strings.ToLower)
	cfg.DefaultExchanges = cleanList(cfg.DefaultExchanges, nil)
	cfg.CatalogProvider = strings.ToLower(strings.TrimSpace(cfg.CatalogProvider))

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the settings that do not depend on a provider
func (c Config) Validate() error {
	if len(c.Providers) == 0 {
		return NewError(ErrConfigLoad, "PROVIDERS is empty", nil)
	}
	for _, name := range c.Providers {
		if !knownProvider(name) {
			return NewError(ErrConfigLoad, fmt.Sprintf("unknown provider %q in PROVIDERS", name), nil)
		}
	}
	if c.CatalogProvider != provider.CoinMarketCapName && c.CatalogProvider != provider.CoinGeckoName {
		return NewError(ErrConfigLoad, fmt.Sprintf("CATALOG_PROVIDER %q cannot list assets", c.CatalogProvider), nil)
	}

	positive := map[string]int{
		"TOP_ASSETS_LIMIT":    c.TopAssetsLimit,
		"DEFAULT_ASSET_COUNT": c.DefaultAssetCount,
		"WORKERS":             c.Workers,
	}
	for key, value := range positive {
		if value <= 0 {
			return NewError(ErrConfigLoad, fmt.Sprintf("%s must be positive, got %d", key, value), nil)
		}
	}
	if c.CallTimeout <= 0 {
		return NewError(ErrConfigLoad, "CALL_TIMEOUT must be positive", nil)
	}
	if c.CacheEnabled && c.CacheTTL <= 0 {
		return NewError(ErrConfigLoad, "CACHE_TTL must be positive when the cache is enabled", nil)
	}
	return nil
}

func knownProvider(name string) bool {
	switch name {
	case provider.CoinMarketCapName, provider.CoinGeckoName, provider.BinanceName, provider.AlpacaName:
		return true
	}
	return false
}

// cleanList trims items, drops empty ones and applies fn when given
func cleanList(items []string, fn func(string) string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if fn != nil {
			item = fn(item)
		}
		out = append(out, item)
	}
	return out
}
