// Package fallback picks the provider that serves the market pairs of an asset.
package fallback

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/aquibsayyed9/coin-analyze/logger"
	"github.com/aquibsayyed9/coin-analyze/metrics"
	"github.com/aquibsayyed9/coin-analyze/provider"
	"github.com/aquibsayyed9/coin-analyze/types"
)

// DefaultCallTimeout bounds a single provider call when no timeout is configured
const DefaultCallTimeout = 10 * time.Second

// Resolution is the accepted provider result for one asset
type Resolution struct {
	Provider string
	Schema   types.Schema
	Pairs    []types.MarketPair
	Attempts int // providers queried, including the accepted one
}

// Found reports whether any provider returned data
func (r Resolution) Found() bool {
	return len(r.Pairs) > 0
}

// Option configures a Resolver
type Option func(*Resolver)

// WithTimeout sets the per-call timeout
func WithTimeout(timeout time.Duration) Option {
	return func(r *Resolver) {
		if timeout > 0 {
			r.timeout = timeout
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *logrus.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithEventHandler sets the receiver of provider_failed and provider_fallback events
func WithEventHandler(h types.RunEventHandler) Option {
	return func(r *Resolver) {
		r.onEvent = h
	}
}

// Resolver queries an ordered list of providers and accepts the first non-empty result.
// The order is fixed at construction.
type Resolver struct {
	providers []provider.PairLister
	timeout   time.Duration
	logger    *logrus.Logger
	onEvent   types.RunEventHandler
}

// NewResolver creates a resolver over providers, primary first
func NewResolver(providers []provider.PairLister, opts ...Option) *Resolver {
	r := &Resolver{
		providers: append([]provider.PairLister(nil), providers...),
		timeout:   DefaultCallTimeout,
		logger:    logger.GetLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Providers returns the provider names in query order
func (r *Resolver) Providers() []string {
	names := make([]string, len(r.providers))
	for i, p := range r.providers {
		names[i] = p.Name()
	}
	return names
}

// Validate checks the configuration of every provider
func (r *Resolver) Validate() error {
	for _, p := range r.providers {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("%s: %w", p.Name(), err)
		}
	}
	return nil
}

// Resolve returns the first non-empty provider result for asset.
// Provider failures are logged and skipped; when every provider is exhausted the
// zero Resolution is returned with a nil error. The error is non-nil only when ctx is done.
func (r *Resolver) Resolve(ctx context.Context, asset types.Asset) (Resolution, error) {
	for i, p := range r.providers {
		if err := ctx.Err(); err != nil {
			return Resolution{}, err
		}

		pairs, err := r.query(ctx, p, asset)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Resolution{}, ctxErr
			}
			r.skip(p, asset, err)
			continue
		}

		if len(pairs) == 0 {
			metrics.ProviderRequests.WithLabelValues(p.Name(), string(provider.KindMarketPairs), metrics.OutcomeEmpty).Inc()
			r.logger.WithFields(logrus.Fields{
				"provider": p.Name(),
				"asset":    asset.Name,
			}).Debug("provider returned no market pairs")
			continue
		}

		metrics.ProviderRequests.WithLabelValues(p.Name(), string(provider.KindMarketPairs), metrics.OutcomeOK).Inc()
		if i > 0 {
			metrics.Fallbacks.WithLabelValues(p.Name()).Inc()
			r.emit(types.RunEvent{
				Type:     types.EventProviderFallback,
				Asset:    asset.Name,
				Provider: p.Name(),
				Message:  fmt.Sprintf("%s served by fallback provider %s", asset.Name, p.Name()),
			})
		}

		return Resolution{
			Provider: p.Name(),
			Schema:   p.Schema(),
			Pairs:    pairs,
			Attempts: i + 1,
		}, nil
	}

	return Resolution{Attempts: len(r.providers)}, nil
}

// query runs one provider call under the per-call timeout
func (r *Resolver) query(ctx context.Context, p provider.PairLister, asset types.Asset) ([]types.MarketPair, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	pairs, err := p.ListMarketPairs(callCtx, asset)
	metrics.ProviderLatency.WithLabelValues(p.Name(), string(provider.KindMarketPairs)).Observe(time.Since(start).Seconds())

	if err != nil && !provider.Recoverable(err) {
		err = fmt.Errorf("%w: %v", provider.ErrProviderUnavailable, err)
	}
	return pairs, err
}

func (r *Resolver) skip(p provider.PairLister, asset types.Asset, err error) {
	fields := logrus.Fields{
		"provider": p.Name(),
		"asset":    asset.Name,
		"asset_id": asset.ID,
	}

	if errors.Is(err, provider.ErrUnsupportedAsset) {
		metrics.ProviderRequests.WithLabelValues(p.Name(), string(provider.KindMarketPairs), metrics.OutcomeUnsupported).Inc()
		r.logger.WithFields(fields).Debug("provider cannot address asset")
		return
	}

	outcome := metrics.OutcomeUnavailable
	if errors.Is(err, provider.ErrSchemaMismatch) {
		outcome = metrics.OutcomeSchema
	}
	metrics.ProviderRequests.WithLabelValues(p.Name(), string(provider.KindMarketPairs), outcome).Inc()

	r.logger.WithFields(fields).WithError(err).Warn("provider query failed")
	r.emit(types.RunEvent{
		Type:     types.EventProviderFailed,
		Asset:    asset.Name,
		Provider: p.Name(),
		Message:  fmt.Sprintf("%s failed for %s: %v", p.Name(), asset.Name, err),
		Err:      err,
	})
}

func (r *Resolver) emit(event types.RunEvent) {
	if r.onEvent == nil {
		return
	}
	if event.At.IsZero() {
		event.At = time.Now()
	}
	r.onEvent(event)
}
