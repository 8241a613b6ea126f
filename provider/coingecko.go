package provider

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/aquibsayyed9/coin-analyze/types"
)

const (
	// CoinGeckoName identifies the CoinGecko provider
	CoinGeckoName = "coingecko"

	coinGeckoBaseURL    = "https://api.coingecko.com/api/v3"
	coinGeckoProBaseURL = "https://pro-api.coingecko.com/api/v3"
	coinGeckoMaxPerPage = 250
)

// DefaultCoinGeckoIDs maps upper-case symbols to CoinGecko coin ids for assets listed elsewhere
var DefaultCoinGeckoIDs = map[string]string{
	"BTC":  "bitcoin",
	"ETH":  "ethereum",
	"USDT": "tether",
	"BNB":  "binancecoin",
	"SOL":  "solana",
	"USDC": "usd-coin",
	"XRP":  "ripple",
	"DOGE": "dogecoin",
	"ADA":  "cardano",
	"TRX":  "tron",
}

// CoinGeckoConfig holds the settings of the CoinGecko client.
// The API key is optional; Demo selects the demo key header and the public base URL.
type CoinGeckoConfig struct {
	APIKey    string
	Demo      bool
	BaseURL   string
	Currency  string
	USDVolume bool // read converted_volume.usd instead of the base-currency volume
	CoinIDs   map[string]string
	Timeout   time.Duration
	Relay     *Relay
}

// CoinGecko lists assets by market cap and their exchange tickers
type CoinGecko struct {
	apiKey    string
	demoMode  bool
	baseURL   string
	currency  string
	usdVolume bool
	coinIDs   map[string]string
	client    *http.Client
}

var (
	_ AssetLister = (*CoinGecko)(nil)
	_ PairLister  = (*CoinGecko)(nil)
)

// NewCoinGecko creates a CoinGecko client
func NewCoinGecko(cfg CoinGeckoConfig) *CoinGecko {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		// Keyless and demo keys use the public host, pro keys have their own
		if cfg.APIKey != "" && !cfg.Demo {
			baseURL = coinGeckoProBaseURL
		} else {
			baseURL = coinGeckoBaseURL
		}
	}
	currency := strings.ToLower(cfg.Currency)
	if currency == "" {
		currency = "usd"
	}
	coinIDs := cfg.CoinIDs
	if coinIDs == nil {
		coinIDs = DefaultCoinGeckoIDs
	}

	return &CoinGecko{
		apiKey:    cfg.APIKey,
		demoMode:  cfg.Demo,
		baseURL:   strings.TrimRight(baseURL, "/"),
		currency:  currency,
		usdVolume: cfg.USDVolume,
		coinIDs:   coinIDs,
		client:    newHTTPClient(cfg.Timeout, cfg.Relay),
	}
}

// Name implements Provider
func (c *CoinGecko) Name() string {
	return CoinGeckoName
}

// Schema implements Provider
func (c *CoinGecko) Schema() types.Schema {
	volume := []string{"volume"}
	if c.usdVolume {
		volume = []string{"converted_volume", "usd"}
	}
	return types.Schema{
		Provider: CoinGeckoName,
		Exchange: []string{"market", "name"},
		Volume:   volume,
	}
}

// Validate implements Provider. CoinGecko works without a key.
func (c *CoinGecko) Validate() error {
	if c.demoMode && c.apiKey == "" {
		return missing("COINGECKO_API_KEY")
	}
	return nil
}

type geckoMarket struct {
	ID            string `json:"id" validate:"required"`
	Symbol        string `json:"symbol"`
	Name          string `json:"name" validate:"required"`
	MarketCapRank *int   `json:"market_cap_rank"`
}

type geckoTickersResponse struct {
	Name    string             `json:"name"`
	Tickers []types.MarketPair `json:"tickers" validate:"required"`
}

// ListTopAssets implements AssetLister
func (c *CoinGecko) ListTopAssets(ctx context.Context, limit int) ([]types.Asset, error) {
	limit, err := clampLimit(limit, coinGeckoMaxPerPage)
	if err != nil {
		return nil, wrap(CoinGeckoName, KindTopAssets, err)
	}

	res, err := getJSON[[]geckoMarket](ctx, c.client, c.baseURL+"/coins/markets", map[string]string{
		"vs_currency": c.currency,
		"order":       "market_cap_desc",
		"per_page":    strconv.Itoa(limit),
		"page":        "1",
	}, c.header())
	if err != nil {
		return nil, wrap(CoinGeckoName, KindTopAssets, err)
	}
	if err := validateEach(*res); err != nil {
		return nil, wrap(CoinGeckoName, KindTopAssets, err)
	}

	assets := make([]types.Asset, 0, len(*res))
	for i, m := range *res {
		rank := i + 1
		if m.MarketCapRank != nil {
			rank = *m.MarketCapRank
		}
		assets = append(assets, types.Asset{
			ID:     m.ID,
			Name:   m.Name,
			Symbol: strings.ToUpper(m.Symbol),
			Rank:   rank,
			Source: CoinGeckoName,
		})
	}
	return assets, nil
}

// ListMarketPairs implements PairLister
func (c *CoinGecko) ListMarketPairs(ctx context.Context, asset types.Asset) ([]types.MarketPair, error) {
	coinID, ok := c.coinID(asset)
	if !ok {
		return nil, wrap(CoinGeckoName, KindMarketPairs, ErrUnsupportedAsset)
	}

	res, err := getJSON[geckoTickersResponse](ctx, c.client, c.baseURL+"/coins/"+url.PathEscape(coinID)+"/tickers", nil, c.header(), validate)
	if err != nil {
		return nil, wrap(CoinGeckoName, KindMarketPairs, err)
	}
	return res.Tickers, nil
}

func (c *CoinGecko) coinID(asset types.Asset) (string, bool) {
	if asset.Source == CoinGeckoName && asset.ID != "" {
		return asset.ID, true
	}
	id, ok := c.coinIDs[strings.ToUpper(asset.Symbol)]
	return id, ok && id != ""
}

func (c *CoinGecko) header() map[string]string {
	header := map[string]string{"Accept": "application/json"}
	if c.apiKey == "" {
		return header
	}
	if c.demoMode {
		header["x-cg-api-key"] = c.apiKey
	} else {
		header["x-cg-pro-api-key"] = c.apiKey
	}
	return header
}
