package provider

import (
	"context"
	"fmt"

	"github.com/aquibsayyed9/coin-analyze/types"
)

// Kind names a provider query
type Kind string

const (
	KindTopAssets   Kind = "top_assets"
	KindMarketPairs Kind = "market_pairs"
)

// Provider is the identity every upstream market-data source shares
type Provider interface {
	// Name is the stable identifier used in config, cache keys and Asset.Source
	Name() string
	// Schema tells the normalizer where the provider keeps exchange and volume fields
	Schema() types.Schema
	// Validate checks the provider configuration without any network call
	Validate() error
}

// AssetLister ranks assets, e.g. by market cap
type AssetLister interface {
	Provider
	ListTopAssets(ctx context.Context, limit int) ([]types.Asset, error)
}

// PairLister returns the raw per-exchange markets of one asset
type PairLister interface {
	Provider
	ListMarketPairs(ctx context.Context, asset types.Asset) ([]types.MarketPair, error)
}

// VenueSchema is the schema of synthetic single-venue pairs built by VenuePair
func VenueSchema(provider string) types.Schema {
	return types.Schema{
		Provider: provider,
		Exchange: []string{"exchange"},
		Volume:   []string{"volume"},
	}
}

// VenuePair maps a scalar ticker volume to a one-exchange market pair
func VenuePair(exchange, quote string, volume any) types.MarketPair {
	return types.MarketPair{
		"exchange": exchange,
		"quote":    quote,
		"volume":   volume,
	}
}

// clampLimit checks that limit is positive and caps it at max
func clampLimit(limit, max int) (int, error) {
	if limit <= 0 {
		return 0, fmt.Errorf("limit must be positive, got %d", limit)
	}
	if limit > max {
		return max, nil
	}
	return limit, nil
}
