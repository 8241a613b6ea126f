package types

import "time"

// Asset represents a cryptocurrency as listed by a ranking provider
type Asset struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
	Rank   int    `json:"rank"`
	Source string `json:"source"` // Name of the provider whose listing produced the asset
}

// MarketPair is one raw market row as returned by a provider.
// Numbers are kept as json.Number so the normalizer decides how to read them.
type MarketPair map[string]any

// Schema describes where a provider keeps the fields the normalizer needs.
// Each field is a path of JSON object keys.
type Schema struct {
	Provider string   `json:"provider"`
	Exchange []string `json:"exchange"`
	Volume   []string `json:"volume"`
}

// VolumeRecord is the canonical 24h volume of one asset on one exchange
type VolumeRecord struct {
	Asset     string  `json:"asset"`
	Exchange  string  `json:"exchange"`
	Volume24h float64 `json:"volume_24h"`
}

// Selection is the set of assets and exchanges a caller wants aggregated.
// An empty Exchanges set means no exchange filter.
type Selection struct {
	AssetIDs  []string `json:"asset_ids"`
	Exchanges []string `json:"exchanges"`
}

// PivotCell is the summed volume of one (exchange, asset) group
type PivotCell struct {
	Exchange  string  `json:"exchange"`
	Asset     string  `json:"asset"`
	Volume24h float64 `json:"volume_24h"`
}

// Total is a volume total with its share of the grand total
type Total struct {
	Name      string  `json:"name"`
	Volume24h float64 `json:"volume_24h"`
	Share     float64 `json:"share"`
}

// ExchangeBreakdown holds the per-asset distribution of one exchange's volume
type ExchangeBreakdown struct {
	Exchange string  `json:"exchange"`
	Assets   []Total `json:"assets"`
}

// Summary holds derived totals over the pivot
type Summary struct {
	GrandTotal float64             `json:"grand_total"`
	Exchanges  []Total             `json:"exchanges"`
	Assets     []Total             `json:"assets"`
	Breakdown  []ExchangeBreakdown `json:"breakdown"`
}

// AggregationResult is the filtered, pivoted view of a pipeline run
type AggregationResult struct {
	Filtered           bool           `json:"filtered"`
	Exchanges          []string       `json:"exchanges"`
	Assets             []string       `json:"assets"`
	Cells              []PivotCell    `json:"cells"`
	Records            []VolumeRecord `json:"records"`
	AvailableExchanges []string       `json:"available_exchanges"`
	Summary            Summary        `json:"summary"`
	GeneratedAt        time.Time      `json:"generated_at"`
}

// Volume returns the pivot cell for an exchange and asset.
// The second return value is false when the cell is absent from the sparse pivot.
func (r *AggregationResult) Volume(exchange, asset string) (float64, bool) {
	for _, cell := range r.Cells {
		if cell.Exchange == exchange && cell.Asset == asset {
			return cell.Volume24h, true
		}
	}
	return 0, false
}

// AssetTotal sums the pivot cells of one asset
func (r *AggregationResult) AssetTotal(asset string) float64 {
	total := 0.0
	for _, cell := range r.Cells {
		if cell.Asset == asset {
			total += cell.Volume24h
		}
	}
	return total
}
