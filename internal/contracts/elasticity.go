package contracts

import "time"

// FitQuality is the closed set of elasticity fit outcomes
type FitQuality string

const (
	FitReliable       FitQuality = "reliable"
	FitLowSample      FitQuality = "low_sample"
	FitUnidentifiable FitQuality = "unidentifiable"
)

// Actionable reports whether the optimizer may move the SKU's price on this fit
func (q FitQuality) Actionable() bool {
	switch q {
	case FitReliable:
		return true
	case FitLowSample, FitUnidentifiable:
		return false
	default:
		return false
	}
}

// Confounder names the controls the estimator can partial out
type Confounder string

const (
	ConfounderSeasonality     Confounder = "seasonality"
	ConfounderPromotion       Confounder = "promotion"
	ConfounderDiscountDepth   Confounder = "discount_depth"
	ConfounderCompetitorPrice Confounder = "competitor_price"
)

// DefaultConfounders returns every supported confounder
func DefaultConfounders() []Confounder {
	return []Confounder{
		ConfounderSeasonality,
		ConfounderPromotion,
		ConfounderDiscountDepth,
		ConfounderCompetitorPrice,
	}
}

// ElasticityCategory buckets the point elasticity for reporting
type ElasticityCategory string

const (
	CategoryVeryInelastic ElasticityCategory = "very_inelastic"
	CategoryInelastic     ElasticityCategory = "inelastic"
	CategoryElastic       ElasticityCategory = "elastic"
	CategoryVeryElastic   ElasticityCategory = "very_elastic"
	CategoryAtypical      ElasticityCategory = "atypical" // 양수 탄력성
)

// CategorizeElasticity maps a point elasticity to its reporting category
func CategorizeElasticity(e float64) ElasticityCategory {
	switch {
	case e > 0:
		return CategoryAtypical
	case e > -0.5:
		return CategoryVeryInelastic
	case e > -1.0:
		return CategoryInelastic
	case e > -2.0:
		return CategoryElastic
	default:
		return CategoryVeryElastic
	}
}

// ElasticityModel is one fitted price-elasticity estimate
// ⭐ 재추정 시 덮어쓰지 않고 새 FitID로 대체됨
type ElasticityModel struct {
	Key         string       `json:"key"` // SKU or cluster key
	SKUs        []string     `json:"skus"`
	FitID       string       `json:"fit_id"`
	FittedAt    time.Time    `json:"fitted_at"`
	ValidUntil  time.Time    `json:"valid_until"`
	Elasticity  float64      `json:"elasticity"`
	CILower     float64      `json:"ci_lower"`
	CIUpper     float64      `json:"ci_upper"`
	CILevel     float64      `json:"ci_level"`
	StdError    float64      `json:"std_error"`
	SampleSize  int          `json:"sample_size"`
	Quality     FitQuality   `json:"fit_quality"`
	RSquared    float64      `json:"r_squared"`
	Confounders []Confounder `json:"confounders"`
	Bootstrap   bool         `json:"bootstrap"`
	WeakFit     bool         `json:"weak_fit,omitempty"` // R² below min_r_squared

	// Price variation diagnostics
	PriceCV          float64            `json:"price_cv"`
	UniquePrices     int                `json:"unique_prices"`
	PriceRangePct    float64            `json:"price_range_pct"`
	ResidualPriceVar float64            `json:"residual_price_var"`
	Category         ElasticityCategory `json:"category"`
	QualityReason    string             `json:"quality_reason,omitempty"`
}

// Covers reports whether the fit was estimated on the SKU's observations
func (m *ElasticityModel) Covers(sku string) bool {
	for _, s := range m.SKUs {
		if s == sku {
			return true
		}
	}
	return false
}

// ValidAt reports whether the fit is usable (non-stale) at t
func (m *ElasticityModel) ValidAt(t time.Time) bool {
	if m == nil || m.FitID == "" {
		return false
	}
	if m.ValidUntil.IsZero() {
		return true
	}
	return !t.After(m.ValidUntil)
}

// Contains reports whether the CI contains v
func (m *ElasticityModel) Contains(v float64) bool {
	return v >= m.CILower && v <= m.CIUpper
}
