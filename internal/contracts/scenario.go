package contracts

import (
	"fmt"
	"sort"
	"time"
)

// ScenarioStatus is the closed set of scenario outcomes
type ScenarioStatus string

const (
	StatusCompleted  ScenarioStatus = "completed"
	StatusPartial    ScenarioStatus = "partial"
	StatusInfeasible ScenarioStatus = "infeasible"
)

// SKUInput bundles the fitted models of one SKU for a scenario
type SKUInput struct {
	Product    Product          `json:"product"`
	Elasticity *ElasticityModel `json:"elasticity,omitempty"`
	Forecast   *ForecastModel   `json:"forecast,omitempty"`
	ROI        *ROIReport       `json:"roi,omitempty"`
	Flags      []DiagnosticFlag `json:"flags,omitempty"`
}

// OptimizationScenario is the immutable input bundle of one optimization run
// ⭐ SSOT: 제출 시점의 모델 스냅샷 (값 복사). 재추정이 진행 중인 시나리오를 바꿀 수 없음
type OptimizationScenario struct {
	ID          string         `json:"id"`
	SubmittedAt time.Time      `json:"submitted_at"`
	ConfigHash  string         `json:"config_hash,omitempty"`
	Config      ScenarioConfig `json:"config"`
	Items       []SKUInput     `json:"items"` // sorted by SKU
}

// NewScenario validates the configuration and snapshots the inputs by value
func NewScenario(id string, submittedAt time.Time, cfg ScenarioConfig, items []SKUInput) (*OptimizationScenario, error) {
	if id == "" {
		return nil, fmt.Errorf("scenario id is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario config: %w", err)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("scenario %s has no SKUs", id)
	}

	seen := make(map[string]bool, len(items))
	snapshot := make([]SKUInput, 0, len(items))
	for _, it := range items {
		if it.Product.SKU == "" {
			return nil, fmt.Errorf("scenario %s: item without sku", id)
		}
		if seen[it.Product.SKU] {
			return nil, fmt.Errorf("scenario %s: duplicate sku %s", id, it.Product.SKU)
		}
		seen[it.Product.SKU] = true
		snapshot = append(snapshot, copySKUInput(it))
	}
	sort.Slice(snapshot, func(i, j int) bool {
		return snapshot[i].Product.SKU < snapshot[j].Product.SKU
	})

	cfgCopy := cfg
	cfgCopy.Constraints = copyConstraints(cfg.Constraints)
	cfgCopy.Estimation.Confounders = append([]Confounder(nil), cfg.Estimation.Confounders...)
	cfgCopy.Promotion.DepthBuckets = append([]float64(nil), cfg.Promotion.DepthBuckets...)

	return &OptimizationScenario{
		ID:          id,
		SubmittedAt: submittedAt,
		Config:      cfgCopy,
		Items:       snapshot,
	}, nil
}

// SKUs returns the scenario SKU set in sorted order
func (s *OptimizationScenario) SKUs() []string {
	skus := make([]string, len(s.Items))
	for i, it := range s.Items {
		skus[i] = it.Product.SKU
	}
	return skus
}

// Item returns the input bundle for a SKU
func (s *OptimizationScenario) Item(sku string) (SKUInput, bool) {
	idx := sort.Search(len(s.Items), func(i int) bool {
		return s.Items[i].Product.SKU >= sku
	})
	if idx < len(s.Items) && s.Items[idx].Product.SKU == sku {
		return s.Items[idx], true
	}
	return SKUInput{}, false
}

// Constraints returns the scenario's declarative constraints
func (s *OptimizationScenario) Constraints() []Constraint {
	return s.Config.Constraints
}

func copySKUInput(in SKUInput) SKUInput {
	out := SKUInput{
		Product: in.Product,
		Flags:   append([]DiagnosticFlag(nil), in.Flags...),
	}
	if in.Elasticity != nil {
		e := *in.Elasticity
		e.SKUs = append([]string(nil), in.Elasticity.SKUs...)
		e.Confounders = append([]Confounder(nil), in.Elasticity.Confounders...)
		out.Elasticity = &e
	}
	if in.Forecast != nil {
		f := *in.Forecast
		f.Points = append([]ForecastPoint(nil), in.Forecast.Points...)
		f.Fitted = append([]ForecastPoint(nil), in.Forecast.Fitted...)
		f.SeasonalIndices = append([]float64(nil), in.Forecast.SeasonalIndices...)
		out.Forecast = &f
	}
	if in.ROI != nil {
		r := *in.ROI
		r.Mechanics = append([]MechanicROI(nil), in.ROI.Mechanics...)
		r.Attributions = append([]PeriodAttribution(nil), in.ROI.Attributions...)
		r.AmbiguousPeriods = append([]time.Time(nil), in.ROI.AmbiguousPeriods...)
		out.ROI = &r
	}
	return out
}

func copyConstraints(in []Constraint) []Constraint {
	out := make([]Constraint, len(in))
	for i, c := range in {
		out[i] = c
		out[i].Ladder = append([]string(nil), c.Ladder...)
	}
	return out
}

// SKUDecision is the optimizer outcome for one SKU
type SKUDecision struct {
	SKU              string         `json:"sku_id"`
	Excluded         bool           `json:"excluded"` // no price optimization
	Held             bool           `json:"held"`     // kept at current price (non-actionable fit)
	CurrentPrice     float64        `json:"current_price"`
	RecommendedPrice float64        `json:"recommended_price"`
	LowerBound       float64        `json:"lower_bound"`
	UpperBound       float64        `json:"upper_bound"`
	BaselineUnits    float64        `json:"baseline_units"`
	ProjectedUnits   float64        `json:"projected_units"`
	BaselineRevenue  float64        `json:"baseline_revenue"`
	ProjectedRevenue float64        `json:"projected_revenue"`
	BaselineMargin   float64        `json:"baseline_margin"`
	ProjectedMargin  float64        `json:"projected_margin"`
	PromotionPlan    *PromotionPlan `json:"promotion_plan,omitempty"`
	Reason           string         `json:"reason,omitempty"`
}

// Solution is the optimizer output for a scenario
type Solution struct {
	ScenarioID string                `json:"scenario_id"`
	Status     ScenarioStatus        `json:"status"` // completed or infeasible
	Decisions  []SKUDecision         `json:"decisions"`
	Iterations int                   `json:"iterations"`
	Objective  float64               `json:"objective"`
	Violations []ConstraintViolation `json:"violations,omitempty"`
}

// Prices returns recommended prices keyed by SKU
func (s *Solution) Prices() map[string]float64 {
	prices := make(map[string]float64, len(s.Decisions))
	for _, d := range s.Decisions {
		prices[d.SKU] = d.RecommendedPrice
	}
	return prices
}

// Decision returns the decision for a SKU
func (s *Solution) Decision(sku string) (SKUDecision, bool) {
	for _, d := range s.Decisions {
		if d.SKU == sku {
			return d, true
		}
	}
	return SKUDecision{}, false
}
