package elasticity

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/wonny/rgm/internal/contracts"
)

// VariationTier grades how much price variation a SKU's history carries
type VariationTier string

const (
	TierStrict       VariationTier = "strict"
	TierRelaxed      VariationTier = "relaxed"
	TierMinimal      VariationTier = "minimal"
	TierInsufficient VariationTier = "insufficient"
)

// variationRule is one candidate-screening tier
type variationRule struct {
	tier      VariationTier
	minCV     float64
	minUnique int
	minRange  float64
}

// 단계적 완화: strict → relaxed → minimal
var variationRules = []variationRule{
	{tier: TierStrict, minCV: 0.15, minUnique: 4, minRange: 0.30},
	{tier: TierRelaxed, minCV: 0.10, minUnique: 3, minRange: 0.20},
	{tier: TierMinimal, minCV: 0.05, minUnique: 2, minRange: 0},
}

// PriceVariation summarizes the price history of one SKU
type PriceVariation struct {
	Mean         float64       `json:"mean"`
	StdDev       float64       `json:"std_dev"`
	CV           float64       `json:"cv"`
	Min          float64       `json:"min"`
	Max          float64       `json:"max"`
	UniquePrices int           `json:"unique_prices"`
	RangePct     float64       `json:"range_pct"`
	Tier         VariationTier `json:"tier"`
}

// MeasurePriceVariation computes price dispersion statistics and the screening tier
func MeasurePriceVariation(obs []contracts.Observation) PriceVariation {
	if len(obs) == 0 {
		return PriceVariation{Tier: TierInsufficient}
	}

	prices := make([]float64, len(obs))
	unique := make(map[float64]struct{}, len(obs))
	for i, o := range obs {
		prices[i] = o.Price
		unique[o.Price] = struct{}{}
	}

	pv := PriceVariation{
		Min:          floats.Min(prices),
		Max:          floats.Max(prices),
		UniquePrices: len(unique),
	}
	if len(prices) > 1 {
		pv.Mean, pv.StdDev = stat.MeanStdDev(prices, nil)
	} else {
		pv.Mean = prices[0]
	}
	if pv.Mean > 0 {
		pv.CV = pv.StdDev / pv.Mean
		pv.RangePct = (pv.Max - pv.Min) / pv.Mean
	}
	pv.Tier = classify(pv)
	return pv
}

func classify(pv PriceVariation) VariationTier {
	for _, r := range variationRules {
		if pv.CV >= r.minCV && pv.UniquePrices >= r.minUnique && pv.RangePct >= r.minRange {
			return r.tier
		}
	}
	return TierInsufficient
}

// Screen reports whether the price history has enough variation to attempt estimation
func Screen(obs []contracts.Observation) (PriceVariation, bool) {
	pv := MeasurePriceVariation(obs)
	return pv, pv.Tier != TierInsufficient
}
