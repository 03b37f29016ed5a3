package contracts

import "time"

// PeriodAttribution is the incremental effect attributed to one mechanic in one period
type PeriodAttribution struct {
	Period            time.Time `json:"period"`
	Mechanic          string    `json:"mechanic"`
	PromotionID       string    `json:"promotion_id,omitempty"`
	DiscountDepth     float64   `json:"discount_depth"`
	BaselineUnits     float64   `json:"baseline_units"`
	RealizedUnits     float64   `json:"realized_units"`
	IncrementalVolume float64   `json:"incremental_volume"`
	IncrementalMargin float64   `json:"incremental_margin"`
	PromotionCost     float64   `json:"promotion_cost"`
	Share             float64   `json:"share"` // 1.0 unless overlapping
	Overlapping       bool      `json:"overlapping"`
}

// MechanicROI summarizes one discount-depth bucket
type MechanicROI struct {
	Mechanic          string  `json:"mechanic"`
	Periods           int     `json:"periods"`
	AvgDiscountDepth  float64 `json:"avg_discount_depth"`
	BaselineUnits     float64 `json:"baseline_units"`
	IncrementalVolume float64 `json:"incremental_volume"`
	IncrementalMargin float64 `json:"incremental_margin"`
	PromotionCost     float64 `json:"promotion_cost"`
	Lift              float64 `json:"lift"` // incremental / baseline
	ROI               float64 `json:"roi"`  // incremental margin / cost, 0 when cost is 0
}

// ROIReport is the promotion analysis for one SKU
type ROIReport struct {
	SKU              string              `json:"sku_id"`
	ForecastFitID    string              `json:"forecast_fit_id"`
	Mechanics        []MechanicROI       `json:"mechanics"`
	Attributions     []PeriodAttribution `json:"attributions"`
	AmbiguousPeriods []time.Time         `json:"ambiguous_periods,omitempty"`
	MissingBaseline  int                 `json:"missing_baseline"`
}

// Mechanic returns the summary for a mechanic bucket
func (r *ROIReport) Mechanic(name string) (MechanicROI, bool) {
	if r == nil {
		return MechanicROI{}, false
	}
	for _, m := range r.Mechanics {
		if m.Mechanic == name {
			return m, true
		}
	}
	return MechanicROI{}, false
}

// PromotionPlan is a recommended promotional mechanic for a SKU
type PromotionPlan struct {
	Mechanic                  string  `json:"mechanic"`
	DiscountDepth             float64 `json:"discount_depth"`
	ExpectedLift              float64 `json:"expected_lift"`
	ExpectedIncrementalVolume float64 `json:"expected_incremental_volume"`
	ExpectedIncrementalMargin float64 `json:"expected_incremental_margin"`
	HistoricalROI             float64 `json:"historical_roi"`
}
