package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aquibsayyed9/coin-analyze/types"
)

type fakeSnapshots struct {
	snapshot *marketdata.CryptoSnapshot
	err      error
	delay    time.Duration
	symbols  []string
}

func (f *fakeSnapshots) GetCryptoSnapshot(symbol string, _ marketdata.GetCryptoSnapshotRequest) (*marketdata.CryptoSnapshot, error) {
	f.symbols = append(f.symbols, symbol)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.snapshot, f.err
}

func TestAlpaca_ListMarketPairs(t *testing.T) {
	client := &fakeSnapshots{snapshot: &marketdata.CryptoSnapshot{
		DailyBar: &marketdata.CryptoBar{Volume: 812.25},
	}}
	a := newAlpaca(AlpacaConfig{APIKey: "k", APISecret: "s"}, client)

	pairs, err := a.ListMarketPairs(context.Background(), types.Asset{Name: "Bitcoin", Symbol: "btc"})
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, AlpacaExchange, pairs[0]["exchange"])
	assert.Equal(t, 812.25, pairs[0]["volume"])
	assert.Equal(t, []string{"BTC/USD"}, client.symbols)
}

func TestAlpaca_NoDailyBar(t *testing.T) {
	a := newAlpaca(AlpacaConfig{}, &fakeSnapshots{snapshot: &marketdata.CryptoSnapshot{}})

	pairs, err := a.ListMarketPairs(context.Background(), types.Asset{Symbol: "ETH"})
	require.NoError(t, err)
	assert.Empty(t, pairs)
}

func TestAlpaca_Errors(t *testing.T) {
	a := newAlpaca(AlpacaConfig{}, &fakeSnapshots{err: errors.New("403 forbidden")})
	_, err := a.ListMarketPairs(context.Background(), types.Asset{Symbol: "ETH"})
	assert.ErrorIs(t, err, ErrProviderUnavailable)

	_, err = a.ListMarketPairs(context.Background(), types.Asset{Name: "No symbol"})
	assert.ErrorIs(t, err, ErrUnsupportedAsset)
}

func TestAlpaca_ContextDeadline(t *testing.T) {
	a := newAlpaca(AlpacaConfig{}, &fakeSnapshots{delay: 500 * time.Millisecond, snapshot: &marketdata.CryptoSnapshot{}})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := a.ListMarketPairs(ctx, types.Asset{Symbol: "SOL"})
	assert.ErrorIs(t, err, ErrProviderUnavailable)
	assert.Less(t, time.Since(start), 400*time.Millisecond)
}

func TestAlpaca_Validate(t *testing.T) {
	assert.ErrorIs(t, newAlpaca(AlpacaConfig{}, nil).Validate(), ErrMissingCredentials)
	assert.ErrorIs(t, newAlpaca(AlpacaConfig{APIKey: "k"}, nil).Validate(), ErrMissingCredentials)
	assert.NoError(t, newAlpaca(AlpacaConfig{APIKey: "k", APISecret: "s"}, nil).Validate())
}
