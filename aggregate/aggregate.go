// Package aggregate filters volume records by exchange and pivots them into an
// exchange x asset table.
package aggregate

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aquibsayyed9/coin-analyze/types"
)

type cellKey struct {
	exchange string
	asset    string
}

// orderedSet keeps strings in first-seen order
type orderedSet struct {
	seen  map[string]struct{}
	items []string
}

func newOrderedSet() *orderedSet {
	return &orderedSet{seen: make(map[string]struct{}), items: []string{}}
}

func (s *orderedSet) add(item string) {
	if _, ok := s.seen[item]; ok {
		return
	}
	s.seen[item] = struct{}{}
	s.items = append(s.items, item)
}

// Aggregate filters records by the exchange set and pivots the survivors.
// An empty exchange set means no filter; the result reports it with Filtered == false.
// Cells are sparse and, like the exchange and asset dimensions, in first-seen order.
func Aggregate(records []types.VolumeRecord, exchanges []string) *types.AggregationResult {
	filter := make(map[string]struct{}, len(exchanges))
	for _, e := range exchanges {
		if e != "" {
			filter[e] = struct{}{}
		}
	}
	filtered := len(filter) > 0

	available := newOrderedSet()
	exchangeDim := newOrderedSet()
	assetDim := newOrderedSet()

	kept := make([]types.VolumeRecord, 0, len(records))
	sums := make(map[cellKey]decimal.Decimal)
	order := make([]cellKey, 0)

	for _, r := range records {
		if !valid(r) {
			continue
		}
		available.add(r.Exchange)

		if filtered {
			if _, ok := filter[r.Exchange]; !ok {
				continue
			}
		}

		kept = append(kept, r)
		exchangeDim.add(r.Exchange)
		assetDim.add(r.Asset)

		k := cellKey{exchange: r.Exchange, asset: r.Asset}
		sum, ok := sums[k]
		if !ok {
			order = append(order, k)
		}
		sums[k] = sum.Add(decimal.NewFromFloat(r.Volume24h))
	}

	cells := make([]types.PivotCell, 0, len(order))
	for _, k := range order {
		cells = append(cells, types.PivotCell{
			Exchange:  k.exchange,
			Asset:     k.asset,
			Volume24h: sums[k].InexactFloat64(),
		})
	}

	return &types.AggregationResult{
		Filtered:           filtered,
		Exchanges:          exchangeDim.items,
		Assets:             assetDim.items,
		Cells:              cells,
		Records:            kept,
		AvailableExchanges: available.items,
		Summary:            Summarize(cells, exchangeDim.items, assetDim.items),
		GeneratedAt:        time.Now().UTC(),
	}
}

// valid reports whether r satisfies the VolumeRecord invariants
func valid(r types.VolumeRecord) bool {
	if r.Asset == "" || r.Exchange == "" {
		return false
	}
	v := r.Volume24h
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}
