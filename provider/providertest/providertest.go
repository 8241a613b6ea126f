// Package providertest provides scripted providers for tests.
package providertest

import (
	"context"
	"fmt"
	"sync"

	"github.com/aquibsayyed9/coin-analyze/provider"
	"github.com/aquibsayyed9/coin-analyze/types"
)

// Func answers a market pair query
type Func func(ctx context.Context, asset types.Asset) ([]types.MarketPair, error)

// Static answers from a table keyed by asset ID; unknown assets get an empty result
func Static(table map[string][]types.MarketPair) Func {
	return func(_ context.Context, asset types.Asset) ([]types.MarketPair, error) {
		pairs, ok := table[asset.ID]
		if !ok {
			return []types.MarketPair{}, nil
		}
		return pairs, nil
	}
}

// Failing always returns err
func Failing(err error) Func {
	return func(context.Context, types.Asset) ([]types.MarketPair, error) {
		return nil, err
	}
}

// Blocking waits until ctx is done and reports the provider unavailable
func Blocking() Func {
	return func(ctx context.Context, _ types.Asset) ([]types.MarketPair, error) {
		<-ctx.Done()
		return nil, fmt.Errorf("%w: %v", provider.ErrProviderUnavailable, ctx.Err())
	}
}

// Venue builds a single-venue pair readable with provider.VenueSchema
func Venue(exchange string, volume any) types.MarketPair {
	return provider.VenuePair(exchange, "USD", volume)
}

// PairLister is a scripted provider.PairLister that records the asset IDs it was asked for
type PairLister struct {
	ProviderName string
	ValidateErr  error
	Fn           Func

	mu    sync.Mutex
	calls []string
}

var _ provider.PairLister = (*PairLister)(nil)

// NewPairLister creates a scripted pair lister
func NewPairLister(name string, fn Func) *PairLister {
	return &PairLister{ProviderName: name, Fn: fn}
}

func (p *PairLister) Name() string { return p.ProviderName }

func (p *PairLister) Schema() types.Schema { return provider.VenueSchema(p.ProviderName) }

func (p *PairLister) Validate() error { return p.ValidateErr }

func (p *PairLister) ListMarketPairs(ctx context.Context, asset types.Asset) ([]types.MarketPair, error) {
	p.mu.Lock()
	p.calls = append(p.calls, asset.ID)
	p.mu.Unlock()

	if p.Fn == nil {
		return []types.MarketPair{}, nil
	}
	return p.Fn(ctx, asset)
}

// Calls returns the asset IDs queried so far
func (p *PairLister) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

// AssetLister is a scripted provider.AssetLister
type AssetLister struct {
	ProviderName string
	Assets       []types.Asset
	Err          error
	ValidateErr  error

	mu    sync.Mutex
	calls int
}

var _ provider.AssetLister = (*AssetLister)(nil)

func (a *AssetLister) Name() string { return a.ProviderName }

func (a *AssetLister) Schema() types.Schema { return provider.VenueSchema(a.ProviderName) }

func (a *AssetLister) Validate() error { return a.ValidateErr }

func (a *AssetLister) ListTopAssets(_ context.Context, limit int) ([]types.Asset, error) {
	a.mu.Lock()
	a.calls++
	a.mu.Unlock()

	if a.Err != nil {
		return nil, a.Err
	}
	if limit < len(a.Assets) {
		return append([]types.Asset(nil), a.Assets[:limit]...), nil
	}
	return append([]types.Asset(nil), a.Assets...), nil
}

// Calls returns the number of listing queries so far
func (a *AssetLister) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}
