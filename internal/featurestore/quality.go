package featurestore

import (
	"math"
	"sort"

	"github.com/wonny/rgm/internal/contracts"
)

// required maps a NULL required column to NaN so Validate drops the row
// instead of the scan failing the whole batch
func required(v float64, valid bool) float64 {
	if !valid {
		return math.NaN()
	}
	return v
}

// QualityReport summarizes an observation batch before estimation
type QualityReport struct {
	Total     int                `json:"total"`
	Valid     int                `json:"valid"`
	Malformed int                `json:"malformed"`
	SKUs      int                `json:"skus"`
	Coverage  map[string]float64 `json:"coverage"` // optional field → share of valid rows carrying it
	// MalformedBySKU counts dropped rows per SKU ("" for rows without a SKU)
	MalformedBySKU map[string]int `json:"malformed_by_sku,omitempty"`
}

// Validate splits a batch into rows that satisfy the input contract and a quality report.
// ⭐ SSOT: Feature Store → Estimators 품질 게이트
//
// Rows missing required fields are dropped. Only a batch where every row is malformed
// is rejected, with *contracts.MalformedInputError, before any estimation begins.
func Validate(obs []contracts.Observation) ([]contracts.Observation, *QualityReport, error) {
	report := &QualityReport{
		Total:          len(obs),
		Coverage:       make(map[string]float64),
		MalformedBySKU: make(map[string]int),
	}

	valid := make([]contracts.Observation, 0, len(obs))
	skus := make(map[string]bool)
	var competitor, seasonality, cost int
	for _, o := range obs {
		if !o.HasRequiredFields() {
			report.Malformed++
			report.MalformedBySKU[o.SKU]++
			continue
		}
		valid = append(valid, o)
		skus[o.SKU] = true
		if o.CompetitorPrice != nil {
			competitor++
		}
		if o.SeasonalityIndex != nil {
			seasonality++
		}
		if o.UnitCost != nil {
			cost++
		}
	}
	report.Valid = len(valid)
	report.SKUs = len(skus)

	if len(obs) > 0 && len(valid) == 0 {
		return nil, report, &contracts.MalformedInputError{Total: report.Total, Malformed: report.Malformed}
	}

	if n := float64(len(valid)); n > 0 {
		report.Coverage["competitor_price"] = float64(competitor) / n
		report.Coverage["seasonality_index"] = float64(seasonality) / n
		report.Coverage["unit_cost"] = float64(cost) / n
	}
	return valid, report, nil
}

// WorstSKUs returns SKUs with the most malformed rows, most first
func (r *QualityReport) WorstSKUs(n int) []string {
	skus := make([]string, 0, len(r.MalformedBySKU))
	for sku := range r.MalformedBySKU {
		skus = append(skus, sku)
	}
	sort.Slice(skus, func(i, j int) bool {
		if r.MalformedBySKU[skus[i]] != r.MalformedBySKU[skus[j]] {
			return r.MalformedBySKU[skus[i]] > r.MalformedBySKU[skus[j]]
		}
		return skus[i] < skus[j]
	})
	if n > 0 && len(skus) > n {
		skus = skus[:n]
	}
	return skus
}

func sortStrings(s []string) {
	sort.Strings(s)
}
