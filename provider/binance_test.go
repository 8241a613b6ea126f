package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aquibsayyed9/coin-analyze/types"
)

func TestBinance_ListMarketPairs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, binanceTicker, r.URL.Path)
		assert.Equal(t, "ETHUSDT", r.URL.Query().Get("symbol"))
		w.Write([]byte(`{"symbol":"ETHUSDT","lastPrice":"3000.1","volume":"42345.678"}`))
	}))
	defer srv.Close()

	b := NewBinance(BinanceConfig{BaseURL: srv.URL})
	pairs, err := b.ListMarketPairs(context.Background(), types.Asset{ID: "1027", Name: "Ethereum", Source: CoinMarketCapName})
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, BinanceExchange, pairs[0]["exchange"])
	assert.Equal(t, "USDT", pairs[0]["quote"])
	assert.Equal(t, "42345.678", pairs[0]["volume"])
	assert.Equal(t, VenueSchema(BinanceName), b.Schema())
}

func TestBinance_SymbolResolution(t *testing.T) {
	tests := []struct {
		name   string
		cfg    BinanceConfig
		asset  types.Asset
		want   string
		wantOK bool
	}{
		{"mapped name", BinanceConfig{}, types.Asset{Name: "Solana"}, "SOLUSDT", true},
		{"tether maps to btc pair", BinanceConfig{}, types.Asset{Name: "Tether USDt"}, "BTCUSDT", true},
		{"unmapped", BinanceConfig{}, types.Asset{Name: "Dogecoin", Symbol: "DOGE"}, "", false},
		{"derived", BinanceConfig{DeriveSymbols: true}, types.Asset{Name: "Dogecoin", Symbol: "doge"}, "DOGEUSDT", true},
		{"custom table", BinanceConfig{Symbols: map[string]string{"Alpha": "ALPHAUSDT"}}, types.Asset{Name: "Alpha"}, "ALPHAUSDT", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NewBinance(tt.cfg).symbol(tt.asset)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBinance_UnsupportedAsset(t *testing.T) {
	b := NewBinance(BinanceConfig{BaseURL: "http://127.0.0.1:1"})
	_, err := b.ListMarketPairs(context.Background(), types.Asset{Name: "Unknown"})
	assert.ErrorIs(t, err, ErrUnsupportedAsset)
}

func TestBinance_MissingVolume(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":-1121,"msg":"Invalid symbol."}`))
	}))
	defer srv.Close()

	_, err := NewBinance(BinanceConfig{BaseURL: srv.URL}).ListMarketPairs(context.Background(), types.Asset{Name: "Bitcoin"})
	assert.ErrorIs(t, err, ErrSchemaMismatch)
}

func TestBinance_ViaRelay(t *testing.T) {
	var target *url.URL
	relay := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "relay-key", r.URL.Query().Get("api_key"))
		var err error
		target, err = url.Parse(r.URL.Query().Get("url"))
		require.NoError(t, err)
		json.NewEncoder(w).Encode(map[string]string{"symbol": "BTCUSDT", "volume": "10.5"})
	}))
	defer relay.Close()

	b := NewBinance(BinanceConfig{ViaRelay: true, RelayURL: relay.URL, RelayAPIKey: "relay-key"})
	require.NoError(t, b.Validate())

	pairs, err := b.ListMarketPairs(context.Background(), types.Asset{Name: "Bitcoin"})
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, "10.5", pairs[0]["volume"])

	require.NotNil(t, target)
	assert.Equal(t, "api.binance.com", target.Host)
	assert.Equal(t, binanceTicker, target.Path)
	assert.Equal(t, "BTCUSDT", target.Query().Get("symbol"))
}

func TestBinance_Validate(t *testing.T) {
	assert.NoError(t, NewBinance(BinanceConfig{}).Validate())
	assert.ErrorIs(t, NewBinance(BinanceConfig{ViaRelay: true}).Validate(), ErrMissingCredentials)
}
