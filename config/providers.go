package config

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/aquibsayyed9/coin-analyze/cache"
	"github.com/aquibsayyed9/coin-analyze/provider"
)

// BuildProviders builds the catalog and the ordered pair providers. When store is not
// nil every provider is wrapped with the response cache.
func (c Config) BuildProviders(store cache.Store, log *logrus.Logger) (provider.AssetLister, []provider.PairLister, error) {
	built := make(map[string]provider.Provider)
	get := func(name string) provider.Provider {
		if p, ok := built[name]; ok {
			return p
		}
		p := c.newProvider(name)
		if p != nil {
			built[name] = p
		}
		return p
	}

	pairs := make([]provider.PairLister, 0, len(c.Providers))
	for _, name := range c.Providers {
		p, ok := get(name).(provider.PairLister)
		if !ok {
			return nil, nil, NewError(ErrConfigLoad, fmt.Sprintf("provider %q cannot list market pairs", name), nil)
		}
		if store != nil {
			p = cache.WrapPairs(p, store, c.CacheTTL, log)
		}
		pairs = append(pairs, p)
	}

	catalog, ok := get(c.CatalogProvider).(provider.AssetLister)
	if !ok {
		return nil, nil, NewError(ErrConfigLoad, fmt.Sprintf("CATALOG_PROVIDER %q cannot list assets", c.CatalogProvider), nil)
	}
	if store != nil {
		catalog = cache.WrapAssets(catalog, store, c.CacheTTL, log)
	}

	return catalog, pairs, nil
}

func (c Config) newProvider(name string) provider.Provider {
	switch name {
	case provider.CoinMarketCapName:
		return provider.NewCoinMarketCap(provider.CoinMarketCapConfig{
			APIKey:  c.CMCAPIKey,
			BaseURL: c.CMCBaseURL,
			Timeout: c.CallTimeout,
		})
	case provider.CoinGeckoName:
		return provider.NewCoinGecko(provider.CoinGeckoConfig{
			APIKey:    c.CoinGeckoAPIKey,
			Demo:      c.CoinGeckoDemo,
			BaseURL:   c.CoinGeckoBaseURL,
			USDVolume: c.CoinGeckoUSDVolume,
			Timeout:   c.CallTimeout,
		})
	case provider.BinanceName:
		return provider.NewBinance(provider.BinanceConfig{
			BaseURL:       c.BinanceBaseURL,
			DeriveSymbols: c.BinanceDeriveSymbols,
			ViaRelay:      c.BinanceViaRelay,
			RelayURL:      c.ScraperAPIURL,
			RelayAPIKey:   c.ScraperAPIKey,
			Timeout:       c.CallTimeout,
		})
	case provider.AlpacaName:
		return provider.NewAlpaca(provider.AlpacaConfig{
			APIKey:    c.AlpacaAPIKey,
			APISecret: c.AlpacaAPISecret,
			BaseURL:   c.AlpacaDataURL,
		})
	}
	return nil
}

// OpenCache returns the response cache store, or nil when caching is disabled.
// A configured Redis that cannot be reached is a CACHE_CONNECT_ERROR.
func (c Config) OpenCache(ctx context.Context, log *logrus.Logger) (cache.Store, error) {
	if !c.CacheEnabled {
		return nil, nil
	}
	if c.RedisAddr == "" {
		return cache.NewMemoryStore(c.CacheTTL), nil
	}
	store, err := cache.NewRedisStore(ctx, c.RedisAddr, c.RedisPassword, c.RedisDB, log)
	if err != nil {
		return nil, NewError(ErrCacheConnect, "Failed to connect to Redis", err)
	}
	return store, nil
}
