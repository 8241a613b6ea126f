// Package normalize maps raw provider market pairs to canonical volume records.
package normalize

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/aquibsayyed9/coin-analyze/types"
)

// Records converts the pairs of one asset using the provider schema.
// Pairs without an exchange name or a readable, non-negative volume are dropped.
func Records(assetName string, pairs []types.MarketPair, schema types.Schema) []types.VolumeRecord {
	if strings.TrimSpace(assetName) == "" {
		return nil
	}

	records := make([]types.VolumeRecord, 0, len(pairs))
	for _, pair := range pairs {
		exchange, ok := Lookup(pair, schema.Exchange)
		if !ok {
			continue
		}
		name, ok := exchange.(string)
		if !ok || strings.TrimSpace(name) == "" {
			continue
		}

		raw, ok := Lookup(pair, schema.Volume)
		if !ok {
			continue
		}
		volume, ok := Volume(raw)
		if !ok {
			continue
		}

		records = append(records, types.VolumeRecord{
			Asset:     assetName,
			Exchange:  name,
			Volume24h: volume,
		})
	}
	return records
}

// Lookup follows path through nested JSON objects
func Lookup(pair types.MarketPair, path []string) (any, bool) {
	if len(path) == 0 {
		return nil, false
	}

	var current any = map[string]any(pair)
	for _, key := range path {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = obj[key]
		if !ok {
			return nil, false
		}
	}
	return current, current != nil
}

// Volume reads a 24h volume from a decoded JSON value.
// Numbers, numeric strings and floats are accepted; negative, NaN and infinite values are not.
func Volume(raw any) (float64, bool) {
	var (
		d   decimal.Decimal
		err error
	)

	switch v := raw.(type) {
	case json.Number:
		d, err = decimal.NewFromString(v.String())
	case string:
		d, err = decimal.NewFromString(strings.TrimSpace(v))
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false
		}
		d = decimal.NewFromFloat(v)
	case float32:
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return 0, false
		}
		d = decimal.NewFromFloat32(v)
	case int:
		d = decimal.NewFromInt(int64(v))
	case int64:
		d = decimal.NewFromInt(v)
	default:
		return 0, false
	}
	if err != nil || d.IsNegative() {
		return 0, false
	}

	f := d.InexactFloat64()
	if math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
