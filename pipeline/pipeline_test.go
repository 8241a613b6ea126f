package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aquibsayyed9/coin-analyze/fallback"
	"github.com/aquibsayyed9/coin-analyze/logger"
	"github.com/aquibsayyed9/coin-analyze/provider"
	"github.com/aquibsayyed9/coin-analyze/provider/providertest"
	"github.com/aquibsayyed9/coin-analyze/types"
)

type eventLog struct {
	mu     sync.Mutex
	events []types.RunEvent
}

func (l *eventLog) handle(e types.RunEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) count(kind types.RunEventType) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.events {
		if e.Type == kind {
			n++
		}
	}
	return n
}

func catalogOf(assets ...types.Asset) *providertest.AssetLister {
	return &providertest.AssetLister{ProviderName: "catalog", Assets: assets}
}

func build(catalog provider.AssetLister, events *eventLog, workers int, providers ...provider.PairLister) *Pipeline {
	resolver := fallback.NewResolver(providers,
		fallback.WithLogger(logger.Discard()),
		fallback.WithTimeout(200*time.Millisecond),
		fallback.WithEventHandler(events.handle),
	)
	return New(catalog, resolver,
		WithLogger(logger.Discard()),
		WithWorkers(workers),
		WithEventHandler(events.handle),
	)
}

func TestRun_FilteredSingleProvider(t *testing.T) {
	alpha := types.Asset{ID: "a", Name: "Alpha", Symbol: "ALP"}
	a := providertest.NewPairLister("A", providertest.Static(map[string][]types.MarketPair{
		"a": {providertest.Venue("X", "100"), providertest.Venue("Y", "50")},
	}))
	events := &eventLog{}

	res, err := build(catalogOf(alpha), events, 2, a).Run(context.Background(), types.Selection{
		AssetIDs:  []string{"a"},
		Exchanges: []string{"X"},
	})
	require.NoError(t, err)

	assert.True(t, res.Filtered)
	assert.Equal(t, []types.PivotCell{{Exchange: "X", Asset: "Alpha", Volume24h: 100}}, res.Cells)
	assert.Equal(t, []types.VolumeRecord{{Asset: "Alpha", Exchange: "X", Volume24h: 100}}, res.Records)
	assert.Equal(t, []string{"X", "Y"}, res.AvailableExchanges)
	assert.Equal(t, 1, events.count(types.EventRunCompleted))
}

func TestRun_FallbackToScalarProvider(t *testing.T) {
	beta := types.Asset{ID: "b", Name: "Beta", Symbol: "BET"}
	a := providertest.NewPairLister("A", providertest.Failing(fmt.Errorf("%w: status 503", provider.ErrProviderUnavailable)))
	b := providertest.NewPairLister("B", providertest.Static(map[string][]types.MarketPair{
		"b": {provider.VenuePair("B-Exchange", "USDT", "75")},
	}))
	events := &eventLog{}

	res, err := build(catalogOf(beta), events, 1, a, b).Run(context.Background(), types.Selection{
		AssetIDs: []string{"b"},
	})
	require.NoError(t, err)

	assert.False(t, res.Filtered)
	assert.Equal(t, []types.PivotCell{{Exchange: "B-Exchange", Asset: "Beta", Volume24h: 75}}, res.Cells)
	assert.Equal(t, 1, events.count(types.EventProviderFailed))
	assert.Equal(t, 1, events.count(types.EventProviderFallback))
}

func TestRun_ConfigErrorBeforeAnyCall(t *testing.T) {
	alpha := types.Asset{ID: "a", Name: "Alpha"}

	t.Run("pair provider", func(t *testing.T) {
		catalog := catalogOf(alpha)
		a := providertest.NewPairLister("A", nil)
		a.ValidateErr = fmt.Errorf("%w: CMC_API_KEY is not set", provider.ErrMissingCredentials)

		_, err := build(catalog, &eventLog{}, 1, a).Run(context.Background(), types.Selection{})

		var cfgErr *ConfigError
		require.ErrorAs(t, err, &cfgErr)
		assert.ErrorIs(t, err, provider.ErrMissingCredentials)
		assert.Equal(t, 0, catalog.Calls())
		assert.Empty(t, a.Calls())
	})

	t.Run("catalog", func(t *testing.T) {
		catalog := catalogOf(alpha)
		catalog.ValidateErr = provider.ErrMissingCredentials
		a := providertest.NewPairLister("A", nil)

		_, err := build(catalog, &eventLog{}, 1, a).Run(context.Background(), types.Selection{})
		var cfgErr *ConfigError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, 0, catalog.Calls())
		assert.Empty(t, a.Calls())
	})

	t.Run("no providers", func(t *testing.T) {
		_, err := build(catalogOf(alpha), &eventLog{}, 1).Run(context.Background(), types.Selection{})
		var cfgErr *ConfigError
		assert.ErrorAs(t, err, &cfgErr)
	})

	t.Run("no catalog", func(t *testing.T) {
		p := New(nil, fallback.NewResolver(nil), WithLogger(logger.Discard()))
		_, err := p.Run(context.Background(), types.Selection{})
		var cfgErr *ConfigError
		assert.ErrorAs(t, err, &cfgErr)
	})
}

func TestRun_AbortDiscardsPartialResults(t *testing.T) {
	assets := []types.Asset{
		{ID: "1", Name: "One"},
		{ID: "2", Name: "Two"},
		{ID: "3", Name: "Three"},
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := providertest.NewPairLister("A", func(_ context.Context, asset types.Asset) ([]types.MarketPair, error) {
		if asset.ID == "2" {
			cancel()
		}
		return []types.MarketPair{providertest.Venue("X", "1")}, nil
	})
	events := &eventLog{}

	res, err := build(catalogOf(assets...), events, 1, a).Run(ctx, types.Selection{})
	assert.Nil(t, res)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotContains(t, a.Calls(), "3", "no provider call after the caller aborts")
	assert.Equal(t, 1, events.count(types.EventRunAborted))
	assert.Equal(t, 0, events.count(types.EventRunCompleted))
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a := providertest.NewPairLister("A", nil)
	res, err := build(catalogOf(types.Asset{ID: "1", Name: "One"}), &eventLog{}, 1, a).Run(ctx, types.Selection{})
	assert.Nil(t, res)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, a.Calls())
}

func TestRun_ParallelMatchesSequential(t *testing.T) {
	var assets []types.Asset
	table := map[string][]types.MarketPair{}
	for i := 0; i < 12; i++ {
		id := fmt.Sprint(i)
		assets = append(assets, types.Asset{ID: id, Name: "Asset" + id})
		table[id] = []types.MarketPair{
			providertest.Venue("X", float64(i)),
			providertest.Venue(fmt.Sprintf("E%d", i%3), float64(10*i)),
		}
	}
	static := providertest.Static(table)

	var mu sync.Mutex
	rng := rand.New(rand.NewSource(7))
	jitter := func(ctx context.Context, asset types.Asset) ([]types.MarketPair, error) {
		mu.Lock()
		d := time.Duration(rng.Intn(5)) * time.Millisecond
		mu.Unlock()
		time.Sleep(d)
		return static(ctx, asset)
	}

	sel := types.Selection{AssetIDs: make([]string, 0, len(assets))}
	for _, a := range assets {
		sel.AssetIDs = append(sel.AssetIDs, a.ID)
	}

	sequential, err := build(catalogOf(assets...), &eventLog{}, 1, providertest.NewPairLister("A", jitter)).Run(context.Background(), sel)
	require.NoError(t, err)
	parallel, err := build(catalogOf(assets...), &eventLog{}, 6, providertest.NewPairLister("A", jitter)).Run(context.Background(), sel)
	require.NoError(t, err)

	assert.Equal(t, sequential.Records, parallel.Records)
	assert.Equal(t, sequential.Cells, parallel.Cells)
	assert.Equal(t, sequential.Exchanges, parallel.Exchanges)
	assert.Len(t, parallel.Records, 24)
}

func TestRun_SelectsAssets(t *testing.T) {
	var assets []types.Asset
	table := map[string][]types.MarketPair{}
	for i, sym := range []string{"BTC", "ETH", "USDT", "BNB", "SOL", "XRP", "ADA"} {
		id := fmt.Sprint(i + 1)
		assets = append(assets, types.Asset{ID: id, Name: sym + "-coin", Symbol: sym, Rank: i + 1})
		table[id] = []types.MarketPair{providertest.Venue("X", "1")}
	}

	tests := []struct {
		name string
		ids  []string
		want []string
	}{
		{"default picks the first five", nil, []string{"BTC-coin", "ETH-coin", "USDT-coin", "BNB-coin", "SOL-coin"}},
		{"catalog order wins", []string{"6", "1"}, []string{"BTC-coin", "XRP-coin"}},
		{"symbols match case-insensitively", []string{"ada", "ETH"}, []string{"ETH-coin", "ADA-coin"}},
		{"unknown ids are skipped", []string{"999", "2"}, []string{"ETH-coin"}},
		{"duplicates collapse", []string{"2", "2", "ETH"}, []string{"ETH-coin"}},
		{"nothing known", []string{"999"}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := providertest.NewPairLister("A", providertest.Static(table))
			res, err := build(catalogOf(assets...), &eventLog{}, 3, a).Run(context.Background(), types.Selection{AssetIDs: tt.ids})
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Assets)
		})
	}
}

func TestRun_SearchesBeyondTopListing(t *testing.T) {
	var assets []types.Asset
	table := map[string][]types.MarketPair{}
	for i := 1; i <= 15; i++ {
		id := fmt.Sprint(i)
		assets = append(assets, types.Asset{ID: id, Name: "Coin" + id, Rank: i})
		table[id] = []types.MarketPair{providertest.Venue("X", "1")}
	}

	tests := []struct {
		name      string
		ids       []string
		want      []string
		wantCalls int
	}{
		{"top listing is enough", []string{"2", "10"}, []string{"Coin2", "Coin10"}, 1},
		{"ranked below the top listing", []string{"12", "3"}, []string{"Coin3", "Coin12"}, 2},
		{"unknown after the deeper listing", []string{"14", "999"}, []string{"Coin14"}, 2},
		{"default selection never searches", nil, []string{"Coin1", "Coin2", "Coin3", "Coin4", "Coin5"}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			catalog := catalogOf(assets...)
			a := providertest.NewPairLister("A", providertest.Static(table))
			res, err := build(catalog, &eventLog{}, 2, a).Run(context.Background(), types.Selection{AssetIDs: tt.ids})
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Assets)
			assert.Equal(t, tt.wantCalls, catalog.Calls())
		})
	}
}

func TestRun_AssetWithoutData(t *testing.T) {
	assets := []types.Asset{{ID: "1", Name: "One"}, {ID: "2", Name: "Two"}, {ID: "3", Name: "Three"}}
	a := providertest.NewPairLister("A", providertest.Static(map[string][]types.MarketPair{
		"1": {providertest.Venue("X", "5")},
		"3": {providertest.Venue("X", "not a number"), providertest.Venue("Y", "-3")},
	}))
	b := providertest.NewPairLister("B", providertest.Failing(provider.ErrSchemaMismatch))
	events := &eventLog{}

	res, err := build(catalogOf(assets...), events, 2, a, b).Run(context.Background(), types.Selection{})
	require.NoError(t, err)
	assert.Equal(t, []string{"One"}, res.Assets)
	assert.Equal(t, 2, events.count(types.EventAssetNoData))
}

func TestRun_CatalogFailureYieldsEmptyResult(t *testing.T) {
	catalog := catalogOf()
	catalog.Err = fmt.Errorf("%w: status 500", provider.ErrProviderUnavailable)
	a := providertest.NewPairLister("A", nil)
	events := &eventLog{}

	res, err := build(catalog, events, 1, a).Run(context.Background(), types.Selection{Exchanges: []string{"X"}})
	require.NoError(t, err)
	assert.Empty(t, res.Cells)
	assert.Empty(t, res.Records)
	assert.True(t, res.Filtered)
	assert.Empty(t, a.Calls())
	assert.Equal(t, 1, events.count(types.EventProviderFailed))
}

func TestAssets(t *testing.T) {
	catalog := catalogOf(types.Asset{ID: "1", Name: "One"})
	p := build(catalog, &eventLog{}, 1, providertest.NewPairLister("A", nil))

	assets, err := p.Assets(context.Background())
	require.NoError(t, err)
	assert.Len(t, assets, 1)

	catalog.Err = provider.ErrProviderUnavailable
	_, err = p.Assets(context.Background())
	assert.ErrorIs(t, err, provider.ErrProviderUnavailable)
}
