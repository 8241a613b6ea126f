package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/aquibsayyed9/coin-analyze/metrics"
	"github.com/aquibsayyed9/coin-analyze/provider"
	"github.com/aquibsayyed9/coin-analyze/types"
)

const keyPrefix = "coin-analyze"

// Lookup results for metrics.CacheLookups
const (
	resultHit   = "hit"
	resultMiss  = "miss"
	resultError = "error"
)

// Key builds the cache key of one provider query
func Key(providerName string, kind provider.Kind, subject string) string {
	return fmt.Sprintf("%s:%s:%s:%s", keyPrefix, providerName, kind, subject)
}

// AssetSubject identifies an asset inside a cache key
func AssetSubject(asset types.Asset) string {
	return asset.Source + "/" + asset.ID
}

// base holds what both decorators share
type base struct {
	store  Store
	ttl    time.Duration
	logger *logrus.Logger
}

func (b base) load(ctx context.Context, key string, out any) bool {
	raw, ok, err := b.store.Get(ctx, key)
	if err != nil {
		metrics.CacheLookups.WithLabelValues(resultError).Inc()
		b.logger.WithError(err).WithField("key", key).Warn("Cache lookup failed")
		return false
	}
	if !ok {
		metrics.CacheLookups.WithLabelValues(resultMiss).Inc()
		return false
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		metrics.CacheLookups.WithLabelValues(resultError).Inc()
		b.logger.WithError(err).WithField("key", key).Warn("Discarding unreadable cache entry")
		return false
	}
	metrics.CacheLookups.WithLabelValues(resultHit).Inc()
	return true
}

func (b base) save(ctx context.Context, key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		b.logger.WithError(err).WithField("key", key).Warn("Failed to encode cache entry")
		return
	}
	if err := b.store.Set(ctx, key, raw, b.ttl); err != nil {
		b.logger.WithError(err).WithField("key", key).Warn("Failed to store cache entry")
	}
}

// PairLister caches the market pairs of a wrapped provider. Only non-empty
// successful responses are stored; errors and empty answers always reach the
// upstream again on the next call.
type PairLister struct {
	base
	next provider.PairLister
}

var _ provider.PairLister = (*PairLister)(nil)

// WrapPairs decorates next with store
func WrapPairs(next provider.PairLister, store Store, ttl time.Duration, log *logrus.Logger) *PairLister {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &PairLister{base: base{store: store, ttl: ttl, logger: log}, next: next}
}

func (p *PairLister) Name() string         { return p.next.Name() }
func (p *PairLister) Schema() types.Schema { return p.next.Schema() }
func (p *PairLister) Validate() error      { return p.next.Validate() }

func (p *PairLister) ListMarketPairs(ctx context.Context, asset types.Asset) ([]types.MarketPair, error) {
	key := Key(p.next.Name(), provider.KindMarketPairs, AssetSubject(asset))

	var cached []types.MarketPair
	if p.load(ctx, key, &cached) {
		return cached, nil
	}

	pairs, err := p.next.ListMarketPairs(ctx, asset)
	if err != nil {
		return nil, err
	}
	if len(pairs) > 0 {
		p.save(ctx, key, pairs)
	}
	return pairs, nil
}

// AssetLister caches the top asset listing of a wrapped provider
type AssetLister struct {
	base
	next provider.AssetLister
}

var _ provider.AssetLister = (*AssetLister)(nil)

// WrapAssets decorates next with store
func WrapAssets(next provider.AssetLister, store Store, ttl time.Duration, log *logrus.Logger) *AssetLister {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &AssetLister{base: base{store: store, ttl: ttl, logger: log}, next: next}
}

func (a *AssetLister) Name() string         { return a.next.Name() }
func (a *AssetLister) Schema() types.Schema { return a.next.Schema() }
func (a *AssetLister) Validate() error      { return a.next.Validate() }

func (a *AssetLister) ListTopAssets(ctx context.Context, limit int) ([]types.Asset, error) {
	key := Key(a.next.Name(), provider.KindTopAssets, fmt.Sprintf("top/%d", limit))

	var cached []types.Asset
	if a.load(ctx, key, &cached) {
		return cached, nil
	}

	assets, err := a.next.ListTopAssets(ctx, limit)
	if err != nil {
		return nil, err
	}
	if len(assets) > 0 {
		a.save(ctx, key, assets)
	}
	return assets, nil
}
