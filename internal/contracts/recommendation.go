package contracts

import "time"

// DiagnosticFlag is the closed set of per-SKU diagnostics
type DiagnosticFlag string

const (
	FlagLowSample            DiagnosticFlag = "low_sample"
	FlagUnidentifiable       DiagnosticFlag = "unidentifiable"
	FlagInsufficientHistory  DiagnosticFlag = "insufficient_history"
	FlagAmbiguousAttribution DiagnosticFlag = "ambiguous_attribution"
	FlagNoRecommendation     DiagnosticFlag = "no_recommendation"
	FlagLowPriceVariation    DiagnosticFlag = "low_price_variation"
	FlagStaleModel           DiagnosticFlag = "stale_model"
	FlagWeakFit              DiagnosticFlag = "weak_fit"
)

// Diagnostic is one flag raised for one SKU
type Diagnostic struct {
	SKU    string         `json:"sku_id"`
	Flag   DiagnosticFlag `json:"flag"`
	Detail string         `json:"detail,omitempty"`
}

// ConfidenceTier grades how much a recommendation can be trusted
type ConfidenceTier string

const (
	TierHigh   ConfidenceTier = "high"
	TierMedium ConfidenceTier = "medium"
	TierLow    ConfidenceTier = "low"
)

// Recommendation is the outward-facing record, emitted once per SKU per scenario
// ⭐ SSOT: Assembler → API/Dashboard 출력 계약. 발행 후 변경 불가
type Recommendation struct {
	ScenarioID           string           `json:"scenario_id"`
	SKU                  string           `json:"sku_id"`
	CurrentPrice         float64          `json:"current_price"`
	RecommendedPrice     *float64         `json:"recommended_price,omitempty"`
	PromotionPlan        *PromotionPlan   `json:"recommended_promotion_plan,omitempty"`
	ExpectedVolumeDelta  float64          `json:"expected_volume_delta"`
	ExpectedMarginDelta  float64          `json:"expected_margin_delta"`
	ExpectedRevenueDelta float64          `json:"expected_revenue_delta"`
	ConfidenceTier       ConfidenceTier   `json:"confidence_tier"`
	Elasticity           float64          `json:"elasticity"`
	ElasticityFitID      string           `json:"elasticity_fit_id"`
	ForecastFitID        string           `json:"forecast_fit_id"`
	Actionable           bool             `json:"actionable"`
	Flags                []DiagnosticFlag `json:"flags,omitempty"`
	GeneratedAt          time.Time        `json:"generated_at"`
}

// PriceChangePct returns the recommended relative price change
func (r *Recommendation) PriceChangePct() float64 {
	if r.RecommendedPrice == nil || r.CurrentPrice == 0 {
		return 0
	}
	return *r.RecommendedPrice/r.CurrentPrice - 1
}

// ScenarioResult is the complete output of one scenario
type ScenarioResult struct {
	ScenarioID      string                `json:"scenario_id"`
	Status          ScenarioStatus        `json:"status"`
	SubmittedAt     time.Time             `json:"submitted_at"`
	CompletedAt     time.Time             `json:"completed_at"`
	ConfigHash      string                `json:"config_hash,omitempty"`
	Recommendations []Recommendation      `json:"recommendations"`
	Diagnostics     []Diagnostic          `json:"diagnostics"`
	Violations      []ConstraintViolation `json:"violations,omitempty"`
	Iterations      int                   `json:"iterations"`
	Objective       float64               `json:"objective"`
}

// Recommendation returns the record for a SKU
func (r *ScenarioResult) Recommendation(sku string) (*Recommendation, bool) {
	for i := range r.Recommendations {
		if r.Recommendations[i].SKU == sku {
			return &r.Recommendations[i], true
		}
	}
	return nil, false
}

// FlagsFor returns all diagnostic flags raised for a SKU
func (r *ScenarioResult) FlagsFor(sku string) []DiagnosticFlag {
	var flags []DiagnosticFlag
	for _, d := range r.Diagnostics {
		if d.SKU == sku {
			flags = append(flags, d.Flag)
		}
	}
	return flags
}

// HasFlag reports whether a SKU carries the flag
func (r *ScenarioResult) HasFlag(sku string, flag DiagnosticFlag) bool {
	for _, f := range r.FlagsFor(sku) {
		if f == flag {
			return true
		}
	}
	return false
}
