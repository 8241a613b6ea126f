package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aquibsayyed9/coin-analyze/types"
)

const (
	// CoinMarketCapName identifies the CoinMarketCap provider
	CoinMarketCapName = "coinmarketcap"

	coinMarketCapBaseURL  = "https://pro-api.coinmarketcap.com"
	coinMarketCapListings = "/v1/cryptocurrency/listings/latest"
	coinMarketCapPairs    = "/v1/cryptocurrency/market-pairs/latest"
	coinMarketCapMaxLimit = 5000
	coinMarketCapPageSize = 100 // max market pairs per query
)

// CoinMarketCapConfig holds the settings of the CoinMarketCap client
type CoinMarketCapConfig struct {
	APIKey   string
	BaseURL  string
	Currency string
	Timeout  time.Duration
	Relay    *Relay
}

// CoinMarketCap lists assets by market cap and their market pairs
type CoinMarketCap struct {
	apiKey   string
	baseURL  string
	currency string
	client   *http.Client
}

var (
	_ AssetLister = (*CoinMarketCap)(nil)
	_ PairLister  = (*CoinMarketCap)(nil)
)

// NewCoinMarketCap creates a CoinMarketCap client
func NewCoinMarketCap(cfg CoinMarketCapConfig) *CoinMarketCap {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = coinMarketCapBaseURL
	}
	currency := strings.ToUpper(cfg.Currency)
	if currency == "" {
		currency = "USD"
	}

	return &CoinMarketCap{
		apiKey:   cfg.APIKey,
		baseURL:  strings.TrimRight(baseURL, "/"),
		currency: currency,
		client:   newHTTPClient(cfg.Timeout, cfg.Relay),
	}
}

// Name implements Provider
func (c *CoinMarketCap) Name() string {
	return CoinMarketCapName
}

// Schema implements Provider
func (c *CoinMarketCap) Schema() types.Schema {
	return types.Schema{
		Provider: CoinMarketCapName,
		Exchange: []string{"exchange", "name"},
		Volume:   []string{"quote", c.currency, "volume_24h"},
	}
}

// Validate implements Provider
func (c *CoinMarketCap) Validate() error {
	if c.apiKey == "" {
		return missing("CMC_API_KEY")
	}
	return nil
}

type cmcListing struct {
	ID      json.Number `json:"id" validate:"required"`
	Name    string      `json:"name" validate:"required"`
	Symbol  string      `json:"symbol"`
	CMCRank int         `json:"cmc_rank"`
}

type cmcListingsResponse struct {
	Data []cmcListing `json:"data" validate:"required,dive"`
}

type cmcPairsData struct {
	ID          json.Number        `json:"id"`
	Name        string             `json:"name"`
	MarketPairs []types.MarketPair `json:"market_pairs" validate:"required"`
}

type cmcPairsResponse struct {
	Data *cmcPairsData `json:"data" validate:"required"`
}

// ListTopAssets implements AssetLister
func (c *CoinMarketCap) ListTopAssets(ctx context.Context, limit int) ([]types.Asset, error) {
	limit, err := clampLimit(limit, coinMarketCapMaxLimit)
	if err != nil {
		return nil, wrap(CoinMarketCapName, KindTopAssets, err)
	}

	res, err := getJSON[cmcListingsResponse](ctx, c.client, c.baseURL+coinMarketCapListings, map[string]string{
		"start":   "1",
		"limit":   strconv.Itoa(limit),
		"convert": c.currency,
	}, c.header(), validate)
	if err != nil {
		return nil, wrap(CoinMarketCapName, KindTopAssets, err)
	}

	assets := make([]types.Asset, 0, len(res.Data))
	for _, l := range res.Data {
		assets = append(assets, types.Asset{
			ID:     l.ID.String(),
			Name:   l.Name,
			Symbol: l.Symbol,
			Rank:   l.CMCRank,
			Source: CoinMarketCapName,
		})
	}
	return assets, nil
}

// ListMarketPairs implements PairLister.
// Assets listed by another provider are addressed by symbol.
func (c *CoinMarketCap) ListMarketPairs(ctx context.Context, asset types.Asset) ([]types.MarketPair, error) {
	params := map[string]string{
		"limit": strconv.Itoa(coinMarketCapPageSize),
	}
	if c.currency != "USD" {
		params["convert"] = c.currency
	}
	switch {
	case asset.Source == CoinMarketCapName && asset.ID != "":
		params["id"] = asset.ID
	case asset.Symbol != "":
		params["symbol"] = strings.ToUpper(asset.Symbol)
	default:
		return nil, wrap(CoinMarketCapName, KindMarketPairs, ErrUnsupportedAsset)
	}

	res, err := getJSON[cmcPairsResponse](ctx, c.client, c.baseURL+coinMarketCapPairs, params, c.header(), validate)
	if err != nil {
		return nil, wrap(CoinMarketCapName, KindMarketPairs, err)
	}

	if res.Data.MarketPairs == nil {
		return []types.MarketPair{}, nil
	}
	return res.Data.MarketPairs, nil
}

func (c *CoinMarketCap) header() map[string]string {
	return map[string]string{
		"Accepts":           "application/json",
		"X-CMC_PRO_API_KEY": c.apiKey,
	}
}
