package contracts

import (
	"math"
	"sort"
	"time"
)

// Observation is one historical (sku, period) fact from the feature store
// ⭐ SSOT: Feature Store → Estimators 입력 계약
// Observations are never mutated after ingestion.
type Observation struct {
	SKU              string    `json:"sku_id"`
	Period           time.Time `json:"period"`
	Price            float64   `json:"price"`
	UnitsSold        float64   `json:"units_sold"`
	PromotionFlag    bool      `json:"promotion_flag"`
	DiscountDepth    float64   `json:"discount_depth"`             // 0.0 ~ 1.0
	CompetitorPrice  *float64  `json:"competitor_price,omitempty"` // optional
	SeasonalityIndex *float64  `json:"seasonality_index,omitempty"`
	UnitCost         *float64  `json:"unit_cost,omitempty"`

	// Promotions lists the mechanics active in the period. Empty with PromotionFlag set
	// means a single unnamed promotion at DiscountDepth.
	Promotions []PromotionEvent `json:"promotions,omitempty"`
}

// PromotionEvent is one promotional mechanic active during a period
type PromotionEvent struct {
	PromotionID   string  `json:"promotion_id"`
	Mechanic      string  `json:"mechanic,omitempty"` // e.g. 2X1, 3X2, DESC_20
	DiscountDepth float64 `json:"discount_depth"`
	Cost          float64 `json:"cost"` // fixed cost attributed to the period
}

// Product is the catalog row the optimizer needs next to the observations
type Product struct {
	SKU          string  `json:"sku_id"`
	Name         string  `json:"name"`
	Group        string  `json:"group"`
	PackSize     float64 `json:"pack_size"`
	UnitCost     float64 `json:"unit_cost"`
	CurrentPrice float64 `json:"current_price"`
}

// UnitPrice returns the per-unit price at the given pack price
func (p Product) UnitPrice(price float64) float64 {
	if p.PackSize <= 0 {
		return price
	}
	return price / p.PackSize
}

// HasRequiredFields reports whether the observation satisfies the input contract
func (o Observation) HasRequiredFields() bool {
	if o.SKU == "" || o.Period.IsZero() {
		return false
	}
	if math.IsNaN(o.Price) || math.IsInf(o.Price, 0) || o.Price <= 0 {
		return false
	}
	if math.IsNaN(o.UnitsSold) || math.IsInf(o.UnitsSold, 0) || o.UnitsSold < 0 {
		return false
	}
	return true
}

// ActivePromotions returns the promotions active in the period
func (o Observation) ActivePromotions() []PromotionEvent {
	if len(o.Promotions) > 0 {
		return o.Promotions
	}
	if o.PromotionFlag {
		return []PromotionEvent{{DiscountDepth: o.DiscountDepth}}
	}
	return nil
}

// IsPromoted reports whether any promotion is active in the period
func (o Observation) IsPromoted() bool {
	return o.PromotionFlag || len(o.Promotions) > 0
}

// SortByPeriod sorts observations in place by period ascending
func SortByPeriod(obs []Observation) {
	sort.SliceStable(obs, func(i, j int) bool {
		return obs[i].Period.Before(obs[j].Period)
	})
}

// GroupBySKU splits observations per SKU, each group sorted by period
func GroupBySKU(obs []Observation) map[string][]Observation {
	groups := make(map[string][]Observation)
	for _, o := range obs {
		groups[o.SKU] = append(groups[o.SKU], o)
	}
	for _, g := range groups {
		SortByPeriod(g)
	}
	return groups
}

// Float64 returns a pointer to v, for optional observation fields
func Float64(v float64) *float64 {
	return &v
}
