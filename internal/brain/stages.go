package brain

import (
	"errors"

	"github.com/wonny/rgm/internal/contracts"
	"github.com/wonny/rgm/internal/elasticity"
	"github.com/wonny/rgm/internal/forecast"
	"github.com/wonny/rgm/internal/promotion"
)

// skuStages are the per-SKU components. They hold configuration only, so one set is
// shared by every worker.
type skuStages struct {
	config     contracts.ScenarioConfig
	estimator  *elasticity.Estimator
	forecaster *forecast.Forecaster
	analyzer   *promotion.Analyzer
}

// fit runs screening, elasticity, baseline and ROI for one SKU
func (s skuStages) fit(product contracts.Product, obs []contracts.Observation) SKUFit {
	sku := product.SKU
	out := SKUFit{SKU: sku}

	pv, ok := elasticity.Screen(obs)
	out.Variation = pv
	if !ok {
		out.Flags = append(out.Flags, contracts.FlagLowPriceVariation)
	}

	em, err := s.estimator.Estimate(sku, obs)
	if err != nil {
		out.Err = err
		return out
	}
	out.Elasticity = em

	fm, err := s.forecaster.Fit(sku, contracts.SeriesFromObservations(obs), s.config.Forecast.Horizon)
	var dq *contracts.DataQualityError
	switch {
	case errors.As(err, &dq):
		out.Flags = append(out.Flags, dq.Flag)
		return out
	case err != nil:
		out.Err = err
		return out
	}
	out.Forecast = fm

	roi, err := s.analyzer.Analyze(sku, obs, fm, product.UnitCost)
	if err != nil {
		out.Err = err
		return out
	}
	out.ROI = roi
	return out
}
