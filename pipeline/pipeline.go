// Package pipeline runs one volume aggregation: it resolves the selected assets
// against the catalog, collects their market pairs through the fallback resolver,
// normalizes them and hands the records to the aggregator.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/aquibsayyed9/coin-analyze/aggregate"
	"github.com/aquibsayyed9/coin-analyze/fallback"
	"github.com/aquibsayyed9/coin-analyze/logger"
	"github.com/aquibsayyed9/coin-analyze/metrics"
	"github.com/aquibsayyed9/coin-analyze/normalize"
	"github.com/aquibsayyed9/coin-analyze/provider"
	"github.com/aquibsayyed9/coin-analyze/types"
)

const (
	DefaultTopLimit    = 10
	DefaultSearchLimit = 5000
	DefaultAssetCount  = 5
	DefaultWorkers     = 4
	DefaultCallTimeout = fallback.DefaultCallTimeout
)

// ConfigError aborts a run before any provider call is made
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error: %v", e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithTopLimit sets how many assets the catalog listing returns
func WithTopLimit(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.topLimit = n
		}
	}
}

// WithSearchLimit sets how deep the catalog is listed when requested assets are
// missing from the top listing. Providers cap it at their own maximum.
func WithSearchLimit(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.searchLimit = n
		}
	}
}

// WithDefaultAssetCount sets how many catalog assets an empty selection picks
func WithDefaultAssetCount(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.defaultCount = n
		}
	}
}

// WithWorkers bounds the number of assets resolved concurrently
func WithWorkers(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithCallTimeout bounds the catalog listing call
func WithCallTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *logrus.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithEventHandler sets the receiver of run-level events
func WithEventHandler(h types.RunEventHandler) Option {
	return func(p *Pipeline) {
		p.onEvent = h
	}
}

// Pipeline is safe for concurrent runs; it keeps no state between them
type Pipeline struct {
	catalog  provider.AssetLister
	resolver *fallback.Resolver

	topLimit     int
	searchLimit  int
	defaultCount int
	workers      int
	timeout      time.Duration
	logger       *logrus.Logger
	onEvent      types.RunEventHandler
}

// New creates a pipeline listing assets from catalog and resolving pairs with resolver
func New(catalog provider.AssetLister, resolver *fallback.Resolver, opts ...Option) *Pipeline {
	p := &Pipeline{
		catalog:      catalog,
		resolver:     resolver,
		topLimit:     DefaultTopLimit,
		searchLimit:  DefaultSearchLimit,
		defaultCount: DefaultAssetCount,
		workers:      DefaultWorkers,
		timeout:      DefaultCallTimeout,
		logger:       logger.GetLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Validate checks the catalog and every pair provider without network calls
func (p *Pipeline) Validate() error {
	if p.catalog == nil {
		return &ConfigError{Err: errors.New("no catalog provider configured")}
	}
	if err := p.catalog.Validate(); err != nil {
		return &ConfigError{Err: fmt.Errorf("catalog %s: %w", p.catalog.Name(), err)}
	}
	if p.resolver == nil || len(p.resolver.Providers()) == 0 {
		return &ConfigError{Err: errors.New("no market pair providers configured")}
	}
	if err := p.resolver.Validate(); err != nil {
		return &ConfigError{Err: err}
	}
	return nil
}

// Assets returns the catalog listing
func (p *Pipeline) Assets(ctx context.Context) ([]types.Asset, error) {
	if p.catalog == nil {
		return nil, &ConfigError{Err: errors.New("no catalog provider configured")}
	}
	if err := p.catalog.Validate(); err != nil {
		return nil, &ConfigError{Err: fmt.Errorf("catalog %s: %w", p.catalog.Name(), err)}
	}
	assets, err := p.listCatalog(ctx, p.topLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}
	return assets, nil
}

// Run aggregates the 24h volumes of the selected assets.
// A configuration problem is reported before any provider is called. Provider
// failures never fail the run; assets nobody can serve are left out. When ctx is
// done before the run finishes, the context error is returned and nothing else.
func (p *Pipeline) Run(ctx context.Context, sel types.Selection) (*types.AggregationResult, error) {
	start := time.Now()

	if err := p.Validate(); err != nil {
		p.logger.WithError(err).Error("Refusing to start run")
		return nil, err
	}

	catalog, err := p.listCatalog(ctx, p.topLimit)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, p.abort(ctxErr)
		}
		p.catalogFailed(err)
	}

	assets, missing := p.selectAssets(catalog, sel.AssetIDs)
	if len(missing) > 0 && err == nil && len(catalog) >= p.topLimit && p.searchLimit > p.topLimit {
		p.logger.WithFields(logrus.Fields{
			"missing": len(missing),
			"limit":   p.searchLimit,
		}).Debug("Requested assets outside the top listing, searching deeper")

		deeper, err := p.listCatalog(ctx, p.searchLimit)
		switch {
		case err != nil && ctx.Err() != nil:
			return nil, p.abort(ctx.Err())
		case err != nil:
			p.catalogFailed(err)
		default:
			assets, missing = p.selectAssets(deeper, sel.AssetIDs)
		}
	}
	for _, id := range missing {
		p.logger.WithField("asset_id", id).Warn("Requested asset is not in the catalog listing, skipping")
	}

	records, err := p.collect(ctx, assets)
	if err != nil {
		return nil, p.abort(err)
	}

	result := aggregate.Aggregate(records, sel.Exchanges)

	elapsed := time.Since(start)
	metrics.RunDuration.Observe(elapsed.Seconds())
	p.logger.WithFields(logrus.Fields{
		"assets":    len(assets),
		"records":   len(result.Records),
		"exchanges": len(result.Exchanges),
		"filtered":  result.Filtered,
		"duration":  elapsed.String(),
	}).Info("Run completed")
	p.emit(types.RunEvent{
		Type:    types.EventRunCompleted,
		Message: fmt.Sprintf("aggregated %d records for %d assets across %d exchanges", len(result.Records), len(result.Assets), len(result.Exchanges)),
	})

	return result, nil
}

func (p *Pipeline) catalogFailed(err error) {
	p.logger.WithError(err).WithField("provider", p.catalog.Name()).Warn("Catalog listing failed")
	p.emit(types.RunEvent{
		Type:     types.EventProviderFailed,
		Provider: p.catalog.Name(),
		Message:  fmt.Sprintf("catalog listing failed: %v", err),
		Err:      err,
	})
}

func (p *Pipeline) listCatalog(ctx context.Context, limit int) ([]types.Asset, error) {
	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	assets, err := p.catalog.ListTopAssets(callCtx, limit)
	metrics.ProviderLatency.WithLabelValues(p.catalog.Name(), string(provider.KindTopAssets)).Observe(time.Since(start).Seconds())

	outcome := metrics.OutcomeOK
	switch {
	case errors.Is(err, provider.ErrSchemaMismatch):
		outcome = metrics.OutcomeSchema
	case err != nil:
		outcome = metrics.OutcomeUnavailable
	case len(assets) == 0:
		outcome = metrics.OutcomeEmpty
	}
	metrics.ProviderRequests.WithLabelValues(p.catalog.Name(), string(provider.KindTopAssets), outcome).Inc()

	return assets, err
}

// selectAssets picks the requested assets in catalog order and reports the
// requested IDs it could not find. IDs match the asset ID or, case-insensitively,
// its symbol. An empty request selects the first defaultCount catalog assets.
func (p *Pipeline) selectAssets(catalog []types.Asset, ids []string) ([]types.Asset, []string) {
	wanted := make(map[string]bool)
	order := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			if _, seen := wanted[id]; !seen {
				order = append(order, id)
			}
			wanted[id] = false
		}
	}

	if len(wanted) == 0 {
		if len(catalog) > p.defaultCount {
			return append([]types.Asset(nil), catalog[:p.defaultCount]...), nil
		}
		return append([]types.Asset(nil), catalog...), nil
	}

	selected := make([]types.Asset, 0, len(wanted))
	for _, asset := range catalog {
		matched := false
		for id := range wanted {
			if id == asset.ID || (asset.Symbol != "" && strings.EqualFold(id, asset.Symbol)) {
				wanted[id] = true
				matched = true
			}
		}
		if matched {
			selected = append(selected, asset)
		}
	}

	var missing []string
	for _, id := range order {
		if !wanted[id] {
			missing = append(missing, id)
		}
	}
	return selected, missing
}

// collect resolves every asset with bounded parallelism. Each task owns one
// slot, so records come back in asset order whatever the scheduling.
func (p *Pipeline) collect(ctx context.Context, assets []types.Asset) ([]types.VolumeRecord, error) {
	slots := make([][]types.VolumeRecord, len(assets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	for i, asset := range assets {
		i, asset := i, asset
		g.Go(func() error {
			res, err := p.resolver.Resolve(gctx, asset)
			if err != nil {
				return err
			}
			if !res.Found() {
				p.noData(asset, fmt.Sprintf("all %d providers exhausted", res.Attempts))
				return nil
			}

			records := normalize.Records(asset.Name, res.Pairs, res.Schema)
			if len(records) == 0 {
				p.noData(asset, res.Provider+" returned no usable volumes")
				return nil
			}
			slots[i] = records
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var total int
	for _, s := range slots {
		total += len(s)
	}
	records := make([]types.VolumeRecord, 0, total)
	for _, s := range slots {
		records = append(records, s...)
	}
	return records, nil
}

func (p *Pipeline) noData(asset types.Asset, reason string) {
	metrics.AssetsWithoutData.Inc()
	p.logger.WithFields(logrus.Fields{
		"asset":    asset.Name,
		"asset_id": asset.ID,
		"reason":   reason,
	}).Warn("No volume data for asset")
	p.emit(types.RunEvent{
		Type:    types.EventAssetNoData,
		Asset:   asset.Name,
		Message: fmt.Sprintf("no volume data for %s (%s)", asset.Name, reason),
	})
}

func (p *Pipeline) abort(err error) error {
	p.logger.WithError(err).Warn("Run aborted, discarding partial results")
	p.emit(types.RunEvent{
		Type:    types.EventRunAborted,
		Message: fmt.Sprintf("run aborted: %v", err),
		Err:     err,
	})
	return fmt.Errorf("run aborted: %w", err)
}

func (p *Pipeline) emit(event types.RunEvent) {
	if p.onEvent == nil {
		return
	}
	if event.At.IsZero() {
		event.At = time.Now()
	}
	p.onEvent(event)
}
