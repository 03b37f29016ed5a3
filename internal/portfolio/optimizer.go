package portfolio

import (
	"context"
	"fmt"

	"github.com/wonny/rgm/internal/contracts"
	"github.com/wonny/rgm/internal/promotion"
	"github.com/wonny/rgm/pkg/logger"
)

// floorRaiseStep is the share of remaining headroom a margin-floor repair moves prices up
const floorRaiseStep = 0.25

// Optimizer solves a scenario jointly across SKUs
// ⭐ SSOT: 가격 최적화 로직은 여기서만
//
// Each SKU is optimized on its own band first, then cross-SKU rules (price ladders,
// portfolio margin floor) are repaired by projection until every hard constraint holds
// or the iteration budget runs out. Inputs are never mutated.
type Optimizer struct {
	logger *logger.Logger
}

// NewOptimizer creates a new portfolio optimizer
func NewOptimizer(log *logger.Logger) *Optimizer {
	return &Optimizer{logger: log.WithComponent("portfolio.optimizer")}
}

// skuState is the optimizer's working view of one SKU
type skuState struct {
	sku        string
	product    contracts.Product
	current    float64
	cost       float64
	elasticity float64
	baseline   float64
	lo, hi     float64
	fixed      bool
	excluded   bool
	held       bool
	reason     string
}

// Optimize returns the solution for the scenario.
// An infeasible scenario returns both the solution (status infeasible, with the
// remaining violations) and an *contracts.InfeasibleScenarioError.
func (o *Optimizer) Optimize(ctx context.Context, scenario *contracts.OptimizationScenario) (*contracts.Solution, error) {
	if scenario == nil || len(scenario.Items) == 0 {
		return nil, fmt.Errorf("empty scenario")
	}
	cfg := scenario.Config.Optimizer

	states := make([]*skuState, len(scenario.Items))
	index := make(map[string]int, len(scenario.Items))
	for i, it := range scenario.Items {
		states[i] = o.prepare(it, scenario, cfg)
		index[it.Product.SKU] = i
	}

	ck := &checker{
		states:      states,
		index:       index,
		constraints: scenario.Constraints(),
		tol:         cfg.Tolerance,
	}

	// 1. per-SKU bands; an empty band can never be repaired
	var bandViolations []contracts.ConstraintViolation
	for _, s := range states {
		if s.fixed {
			s.lo, s.hi = s.current, s.current
			continue
		}
		s.lo, s.hi = skuBand(s, ck.constraints)
		if s.lo > s.hi*(1+cfg.Tolerance) {
			bandViolations = append(bandViolations, contracts.ConstraintViolation{
				ConstraintID: "band:" + s.sku,
				SKUs:         []string{s.sku},
				Amount:       s.lo - s.hi,
				Detail:       fmt.Sprintf("empty price band [%.4f, %.4f]", s.lo, s.hi),
			})
		}
	}

	objectives := make([]objective, len(states))
	prices := make([]float64, len(states))
	for i, s := range states {
		objectives[i] = newObjective(s, cfg.Weights)
		if s.fixed {
			prices[i] = s.current
			continue
		}
		// 2. 단일 SKU 최적해 (closed form 또는 1차원 탐색)
		prices[i] = objectives[i].maximize(s.lo, s.hi, cfg.GridPoints)
	}

	if len(bandViolations) > 0 {
		return o.infeasible(scenario, states, objectives, prices, 0, bandViolations)
	}

	// 3. cross-SKU repair
	iterations := 0
	violations := ck.violations(prices)
	for len(violations) > 0 && iterations < cfg.MaxIterations {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		iterations++

		for _, c := range ck.constraints {
			if c.Kind == contracts.ConstraintPriceLadder {
				projectLadder(c, ck.ladderMembers(c), states, prices)
			}
		}
		for i, s := range states {
			prices[i] = clamp(prices[i], s.lo, s.hi)
		}
		for _, v := range violations {
			if v.Kind == contracts.ConstraintPortfolioMarginFloor {
				for i, s := range states {
					if !s.fixed {
						prices[i] += floorRaiseStep * (s.hi - prices[i])
					}
				}
				break
			}
		}

		violations = ck.violations(prices)
	}

	if len(violations) > 0 {
		return o.infeasible(scenario, states, objectives, prices, iterations, violations)
	}

	sol := o.solution(scenario, states, objectives, prices, iterations)
	sol.Status = contracts.StatusCompleted

	o.logger.WithFields(map[string]interface{}{
		"scenario_id": scenario.ID,
		"skus":        len(states),
		"iterations":  iterations,
		"objective":   sol.Objective,
	}).Info("Scenario optimized")

	return sol, nil
}

// prepare decides whether a SKU is optimized, held or excluded
func (o *Optimizer) prepare(it contracts.SKUInput, scenario *contracts.OptimizationScenario, cfg contracts.OptimizerConfig) *skuState {
	s := &skuState{
		sku:     it.Product.SKU,
		product: it.Product,
		current: it.Product.CurrentPrice,
		cost:    it.Product.UnitCost,
	}
	if it.Forecast != nil {
		s.baseline = it.Forecast.BaselineUnits()
	}
	if it.Elasticity != nil {
		s.elasticity = it.Elasticity.Elasticity
	}

	switch {
	case s.current <= 0:
		s.excluded, s.reason = true, "no current price"
	case it.Elasticity == nil || it.Forecast == nil:
		s.excluded, s.reason = true, "missing model fit"
	case !it.Elasticity.ValidAt(scenario.SubmittedAt) || !it.Forecast.ValidAt(scenario.SubmittedAt):
		s.excluded, s.reason = true, "stale model fit"
	default:
		switch it.Elasticity.Quality {
		case contracts.FitUnidentifiable:
			s.excluded, s.reason = true, "insufficient signal"
		case contracts.FitLowSample:
			if !cfg.OptimizeLowSample {
				s.held, s.reason = true, "low sample, held at current price"
			}
		case contracts.FitReliable:
		default:
			s.excluded, s.reason = true, fmt.Sprintf("unknown fit quality %q", it.Elasticity.Quality)
		}
	}
	s.fixed = s.excluded || s.held
	if s.excluded {
		// 제외된 SKU는 수요 반응 없이 현재 가격으로 유지
		s.elasticity = 0
	}
	return s
}

func (o *Optimizer) solution(scenario *contracts.OptimizationScenario, states []*skuState, objectives []objective, prices []float64, iterations int) *contracts.Solution {
	cfg := scenario.Config.Optimizer
	sol := &contracts.Solution{
		ScenarioID: scenario.ID,
		Decisions:  make([]contracts.SKUDecision, len(states)),
		Iterations: iterations,
	}
	for i, s := range states {
		obj := objectives[i]
		p := prices[i]
		d := contracts.SKUDecision{
			SKU:              s.sku,
			Excluded:         s.excluded,
			Held:             s.held,
			CurrentPrice:     s.current,
			RecommendedPrice: p,
			LowerBound:       s.lo,
			UpperBound:       s.hi,
			BaselineUnits:    s.baseline,
			ProjectedUnits:   obj.units(p),
			BaselineRevenue:  obj.revenue(s.current),
			ProjectedRevenue: obj.revenue(p),
			BaselineMargin:   obj.margin(s.current),
			ProjectedMargin:  obj.margin(p),
			Reason:           s.reason,
		}
		if !s.excluded && s.baseline > 0 {
			sol.Objective += obj.value(p)
		}
		if cfg.RecommendPromotions && !s.excluded {
			if it, ok := scenario.Item(s.sku); ok {
				d.PromotionPlan = promotion.BestPlan(it.ROI, d.ProjectedUnits)
			}
		}
		sol.Decisions[i] = d
	}
	return sol
}

func (o *Optimizer) infeasible(scenario *contracts.OptimizationScenario, states []*skuState, objectives []objective, prices []float64, iterations int, violations []contracts.ConstraintViolation) (*contracts.Solution, error) {
	sol := o.solution(scenario, states, objectives, prices, iterations)
	sol.Status = contracts.StatusInfeasible
	sol.Violations = violations

	err := &contracts.InfeasibleScenarioError{
		ScenarioID: scenario.ID,
		Iterations: iterations,
		Violations: violations,
	}
	o.logger.WithError(err).WithField("scenario_id", scenario.ID).Warn("Scenario infeasible")
	return sol, err
}
