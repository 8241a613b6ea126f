package provider

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/aquibsayyed9/coin-analyze/types"
)

const (
	// BinanceName identifies the Binance provider
	BinanceName = "binance"

	// BinanceExchange is the exchange name given to Binance ticker volumes
	BinanceExchange = "Binance"

	binanceBaseURL = "https://api.binance.com"
	binanceTicker  = "/api/v3/ticker/24hr"
)

// DefaultBinanceSymbols maps asset names to the Binance pair used for their volume
var DefaultBinanceSymbols = map[string]string{
	"Bitcoin":      "BTCUSDT",
	"Ethereum":     "ETHUSDT",
	"Tether USDt":  "BTCUSDT",
	"Binance Coin": "BNBUSDT",
	"Solana":       "SOLUSDT",
}

// BinanceConfig holds the settings of the Binance ticker client
type BinanceConfig struct {
	BaseURL       string
	Symbols       map[string]string // asset name -> trading pair
	DeriveSymbols bool              // fall back to SYMBOL+Quote for unmapped assets
	Quote         string
	Exchange      string
	ViaRelay      bool
	RelayURL      string
	RelayAPIKey   string
	Timeout       time.Duration
}

// Binance reads the 24h volume of a single trading pair. It exposes no per-exchange
// markets, so every volume becomes one synthetic pair under the Binance exchange.
type Binance struct {
	baseURL       string
	symbols       map[string]string
	deriveSymbols bool
	quote         string
	exchange      string
	viaRelay      bool
	relayAPIKey   string
	client        *http.Client
}

var _ PairLister = (*Binance)(nil)

// NewBinance creates a Binance ticker client
func NewBinance(cfg BinanceConfig) *Binance {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = binanceBaseURL
	}
	symbols := cfg.Symbols
	if symbols == nil {
		symbols = DefaultBinanceSymbols
	}
	quote := strings.ToUpper(cfg.Quote)
	if quote == "" {
		quote = "USDT"
	}
	exchange := cfg.Exchange
	if exchange == "" {
		exchange = BinanceExchange
	}

	var relay *Relay
	if cfg.ViaRelay {
		relay = NewRelay(cfg.RelayURL, cfg.RelayAPIKey)
	}

	return &Binance{
		baseURL:       strings.TrimRight(baseURL, "/"),
		symbols:       symbols,
		deriveSymbols: cfg.DeriveSymbols,
		quote:         quote,
		exchange:      exchange,
		viaRelay:      cfg.ViaRelay,
		relayAPIKey:   cfg.RelayAPIKey,
		client:        newHTTPClient(cfg.Timeout, relay),
	}
}

// Name implements Provider
func (b *Binance) Name() string {
	return BinanceName
}

// Schema implements Provider
func (b *Binance) Schema() types.Schema {
	return VenueSchema(BinanceName)
}

// Validate implements Provider
func (b *Binance) Validate() error {
	if b.viaRelay && b.relayAPIKey == "" {
		return missing("SCRAPER_API_KEY")
	}
	return nil
}

type binanceTickerResponse struct {
	Symbol string `json:"symbol"`
	Volume any    `json:"volume" validate:"required"`
}

// ListMarketPairs implements PairLister
func (b *Binance) ListMarketPairs(ctx context.Context, asset types.Asset) ([]types.MarketPair, error) {
	symbol, ok := b.symbol(asset)
	if !ok {
		return nil, wrap(BinanceName, KindMarketPairs, ErrUnsupportedAsset)
	}

	res, err := getJSON[binanceTickerResponse](ctx, b.client, b.baseURL+binanceTicker, map[string]string{
		"symbol": symbol,
	}, nil, validate)
	if err != nil {
		return nil, wrap(BinanceName, KindMarketPairs, err)
	}

	return []types.MarketPair{VenuePair(b.exchange, b.quote, res.Volume)}, nil
}

func (b *Binance) symbol(asset types.Asset) (string, bool) {
	if symbol, ok := b.symbols[asset.Name]; ok && symbol != "" {
		return symbol, true
	}
	if b.deriveSymbols && asset.Symbol != "" {
		return strings.ToUpper(asset.Symbol) + b.quote, true
	}
	return "", false
}
