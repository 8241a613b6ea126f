package aggregate

import (
	"gonum.org/v1/gonum/floats"

	"github.com/aquibsayyed9/coin-analyze/types"
)

// Summarize computes per-exchange and per-asset totals with their share of the grand
// total, and the asset distribution within each exchange.
func Summarize(cells []types.PivotCell, exchanges, assets []string) types.Summary {
	exchangeIdx := indexOf(exchanges)
	assetIdx := indexOf(assets)

	exchangeTotals := make([]float64, len(exchanges))
	assetTotals := make([]float64, len(assets))
	byExchange := make([][]types.PivotCell, len(exchanges))

	for _, cell := range cells {
		e, ok := exchangeIdx[cell.Exchange]
		if !ok {
			continue
		}
		a, ok := assetIdx[cell.Asset]
		if !ok {
			continue
		}
		exchangeTotals[e] += cell.Volume24h
		assetTotals[a] += cell.Volume24h
		byExchange[e] = append(byExchange[e], cell)
	}

	grand := floats.Sum(exchangeTotals)

	breakdown := make([]types.ExchangeBreakdown, len(exchanges))
	for i, exchange := range exchanges {
		names := make([]string, len(byExchange[i]))
		volumes := make([]float64, len(byExchange[i]))
		for j, cell := range byExchange[i] {
			names[j] = cell.Asset
			volumes[j] = cell.Volume24h
		}
		breakdown[i] = types.ExchangeBreakdown{
			Exchange: exchange,
			Assets:   totals(names, volumes, floats.Sum(volumes)),
		}
	}

	return types.Summary{
		GrandTotal: grand,
		Exchanges:  totals(exchanges, exchangeTotals, grand),
		Assets:     totals(assets, assetTotals, grand),
		Breakdown:  breakdown,
	}
}

// totals pairs names with volumes and their share of total (0 when total is 0)
func totals(names []string, volumes []float64, total float64) []types.Total {
	shares := make([]float64, len(volumes))
	if total > 0 {
		copy(shares, volumes)
		floats.Scale(1/total, shares)
	}

	out := make([]types.Total, len(names))
	for i, name := range names {
		out[i] = types.Total{Name: name, Volume24h: volumes[i], Share: shares[i]}
	}
	return out
}

func indexOf(items []string) map[string]int {
	idx := make(map[string]int, len(items))
	for i, item := range items {
		idx[item] = i
	}
	return idx
}
