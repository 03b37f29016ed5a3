// Package sample generates deterministic synthetic RGM datasets with known elasticities.
package sample

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/wonny/rgm/internal/contracts"
)

// Mechanics are the promotional mechanics of the trade calendar and their effective depth
var Mechanics = map[string]float64{
	"2X1":     0.50,
	"3X2":     1.0 / 3.0,
	"DESC_20": 0.20,
	"DESC_30": 0.30,
	"DESC_50": 0.50,
}

// SKUSpec is the ground truth of one synthetic SKU
type SKUSpec struct {
	Product    contracts.Product
	Elasticity float64
	BaseUnits  float64 // weekly units at list price, season 1
	PromoLift  float64 // display/feature uplift on top of the price effect
	PromoCost  float64 // fixed cost per promoted week
}

// Options control the generated history
type Options struct {
	Start      time.Time
	Weeks      int
	Seed       int64
	PromoRate  float64 // share of promoted weeks
	PriceNoise float64 // log-price std of regular pricing
	Trend      float64 // weekly relative demand growth
}

// DefaultOptions returns 24 months of weekly history
func DefaultOptions() Options {
	return Options{
		Start:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Weeks:      104,
		Seed:       42,
		PromoRate:  0.12,
		PriceNoise: 0.08,
		Trend:      0.001,
	}
}

// LadderSKUs is a 2/4/8-pack cola ladder. The 8-pack is the least elastic, so its
// stand-alone optimum prices it above the 4-pack per unit.
func LadderSKUs() []SKUSpec {
	return []SKUSpec{
		{
			Product:    contracts.Product{SKU: "COLA-2", Name: "Cola 2-pack", Group: "cola", PackSize: 2, UnitCost: 1.90, CurrentPrice: 3.20},
			Elasticity: -2.4, BaseUnits: 900, PromoLift: 1.10, PromoCost: 150,
		},
		{
			Product:    contracts.Product{SKU: "COLA-4", Name: "Cola 4-pack", Group: "cola", PackSize: 4, UnitCost: 3.40, CurrentPrice: 5.80},
			Elasticity: -3.5, BaseUnits: 600, PromoLift: 1.15, PromoCost: 200,
		},
		{
			Product:    contracts.Product{SKU: "COLA-8", Name: "Cola 8-pack", Group: "cola", PackSize: 8, UnitCost: 6.40, CurrentPrice: 10.40},
			Elasticity: -1.6, BaseUnits: 400, PromoLift: 1.20, PromoCost: 250,
		},
	}
}

// LadderConstraints are the business rules of the cola ladder
func LadderConstraints() []contracts.Constraint {
	return []contracts.Constraint{
		{
			ID:         "cola-pack-ladder",
			Kind:       contracts.ConstraintPriceLadder,
			Scope:      contracts.ScopeGroup,
			Group:      "cola",
			Ladder:     []string{"COLA-2", "COLA-4", "COLA-8"},
			MinStepPct: 0.03,
		},
		{ID: "max-move", Kind: contracts.ConstraintMaxPriceChange, Scope: contracts.ScopePortfolio, Value: 0.15},
		{ID: "min-margin", Kind: contracts.ConstraintMinMargin, Scope: contracts.ScopeGroup, Group: "cola", Value: 0.10},
	}
}

// Dataset is a generated catalog plus its weekly observations
type Dataset struct {
	Products     []contracts.Product
	Observations []contracts.Observation
	Elasticities map[string]float64 // ground truth
}

// Generate builds the history. Identical specs and options yield identical data.
func Generate(specs []SKUSpec, opts Options) *Dataset {
	if opts.Weeks <= 0 {
		opts.Weeks = DefaultOptions().Weeks
	}
	if opts.Start.IsZero() {
		opts.Start = DefaultOptions().Start
	}

	mechanics := make([]string, 0, len(Mechanics))
	for m := range Mechanics {
		mechanics = append(mechanics, m)
	}
	sort.Strings(mechanics)

	ds := &Dataset{
		Products:     make([]contracts.Product, 0, len(specs)),
		Observations: make([]contracts.Observation, 0, len(specs)*opts.Weeks),
		Elasticities: make(map[string]float64, len(specs)),
	}

	for i, spec := range specs {
		rng := rand.New(rand.NewSource(opts.Seed + int64(i)*7919))
		p := spec.Product
		ds.Products = append(ds.Products, p)
		ds.Elasticities[p.SKU] = spec.Elasticity

		for w := 0; w < opts.Weeks; w++ {
			season := 1 + 0.25*math.Sin(2*math.Pi*float64(w)/52)
			price := p.CurrentPrice * math.Exp(opts.PriceNoise*rng.NormFloat64())

			o := contracts.Observation{
				SKU:              p.SKU,
				Period:           opts.Start.AddDate(0, 0, 7*w),
				SeasonalityIndex: contracts.Float64(season),
				CompetitorPrice:  contracts.Float64(p.CurrentPrice * (1.05 + 0.05*rng.NormFloat64())),
				UnitCost:         contracts.Float64(p.UnitCost),
			}

			lift := 1.0
			if rng.Float64() < opts.PromoRate {
				mechanic := mechanics[rng.Intn(len(mechanics))]
				depth := Mechanics[mechanic]
				price *= 1 - depth
				lift = spec.PromoLift
				o.PromotionFlag = true
				o.DiscountDepth = depth
				o.Promotions = []contracts.PromotionEvent{{
					PromotionID:   fmt.Sprintf("PROMO-%s-%s", mechanic, o.Period.Format("200601")),
					Mechanic:      mechanic,
					DiscountDepth: depth,
					Cost:          spec.PromoCost,
				}}
			}

			noise := math.Exp(0.04 * rng.NormFloat64())
			trend := 1 + opts.Trend*float64(w)
			o.Price = price
			o.UnitsSold = spec.BaseUnits * trend * season * math.Pow(price/p.CurrentPrice, spec.Elasticity) * lift * noise
			ds.Observations = append(ds.Observations, o)
		}
	}
	return ds
}

// SKUs returns the dataset SKUs in catalog order
func (d *Dataset) SKUs() []string {
	skus := make([]string, len(d.Products))
	for i, p := range d.Products {
		skus[i] = p.SKU
	}
	return skus
}

// Period returns the first and last generated period
func (d *Dataset) Period() (time.Time, time.Time) {
	var from, to time.Time
	for _, o := range d.Observations {
		if from.IsZero() || o.Period.Before(from) {
			from = o.Period
		}
		if o.Period.After(to) {
			to = o.Period
		}
	}
	return from, to
}
