package portfolio

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/rgm/internal/contracts"
	"github.com/wonny/rgm/pkg/logger"
)

var submittedAt = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type itemSpec struct {
	sku      string
	price    float64
	cost     float64
	pack     float64
	e        float64
	quality  contracts.FitQuality
	baseline float64 // units per period
}

func item(s itemSpec) contracts.SKUInput {
	if s.quality == "" {
		s.quality = contracts.FitReliable
	}
	if s.baseline == 0 {
		s.baseline = 100
	}
	points := make([]contracts.ForecastPoint, 13)
	for i := range points {
		points[i] = contracts.ForecastPoint{
			Period:   submittedAt.AddDate(0, 0, 7*(i+1)),
			Expected: s.baseline,
			Lower:    s.baseline * 0.8,
			Upper:    s.baseline * 1.2,
		}
	}
	return contracts.SKUInput{
		Product: contracts.Product{
			SKU:          s.sku,
			Group:        "cola",
			PackSize:     s.pack,
			UnitCost:     s.cost,
			CurrentPrice: s.price,
		},
		Elasticity: &contracts.ElasticityModel{
			Key:        s.sku,
			SKUs:       []string{s.sku},
			FitID:      "el-" + s.sku,
			Elasticity: s.e,
			Quality:    s.quality,
		},
		Forecast: &contracts.ForecastModel{
			SKU:    s.sku,
			FitID:  "fc-" + s.sku,
			Points: points,
		},
	}
}

func scenario(t *testing.T, cfg contracts.ScenarioConfig, items ...contracts.SKUInput) *contracts.OptimizationScenario {
	t.Helper()
	sc, err := contracts.NewScenario("sc-test", submittedAt, cfg, items)
	require.NoError(t, err)
	return sc
}

func newTestOptimizer() *Optimizer {
	return NewOptimizer(logger.NewNop())
}

func TestProjectedUnits(t *testing.T) {
	assert.InDelta(t, 100.0, ProjectedUnits(100, 10, 10, -2), 1e-12)
	assert.InDelta(t, 100/1.21, ProjectedUnits(100, 10, 11, -2), 1e-9)
	assert.Zero(t, ProjectedUnits(0, 10, 11, -2))
	assert.Zero(t, ProjectedUnits(100, 10, 0, -2))

	// negative elasticity: units fall as price rises
	prev := ProjectedUnits(100, 10, 5, -1.3)
	for p := 5.5; p <= 20; p += 0.5 {
		q := ProjectedUnits(100, 10, p, -1.3)
		assert.Less(t, q, prev, "price %.2f", p)
		prev = q
	}
}

func TestOptimize_ClosedFormMargin(t *testing.T) {
	sc := scenario(t, contracts.DefaultScenarioConfig(),
		item(itemSpec{sku: "SKU-A", price: 10, cost: 6, e: -2}))

	sol, err := newTestOptimizer().Optimize(context.Background(), sc)
	require.NoError(t, err)

	assert.Equal(t, contracts.StatusCompleted, sol.Status)
	d, ok := sol.Decision("SKU-A")
	require.True(t, ok)
	// p* = c·e/(1+e) = 6·(-2)/(-1)
	assert.InDelta(t, 12.0, d.RecommendedPrice, 1e-9)
	assert.InDelta(t, 6.0, d.LowerBound, 1e-9)
	assert.InDelta(t, 20.0, d.UpperBound, 1e-9)
	assert.Greater(t, d.ProjectedMargin, d.BaselineMargin)
	assert.Empty(t, sol.Violations)
}

func TestOptimize_InelasticHitsBandEdge(t *testing.T) {
	cfg := contracts.DefaultScenarioConfig()
	cfg.Constraints = []contracts.Constraint{
		{ID: "move", Kind: contracts.ConstraintMaxPriceChange, Scope: contracts.ScopePortfolio, Value: 0.10},
	}
	sc := scenario(t, cfg, item(itemSpec{sku: "SKU-A", price: 10, cost: 6, e: -0.5}))

	sol, err := newTestOptimizer().Optimize(context.Background(), sc)
	require.NoError(t, err)

	d, _ := sol.Decision("SKU-A")
	assert.InDelta(t, 11.0, d.RecommendedPrice, 1e-9)
	assert.InDelta(t, 9.0, d.LowerBound, 1e-9)
}

func TestOptimize_RevenueOnlyPicksLowEdge(t *testing.T) {
	cfg := contracts.DefaultScenarioConfig()
	cfg.Optimizer.Weights = contracts.ObjectiveWeights{Revenue: 1}
	sc := scenario(t, cfg, item(itemSpec{sku: "SKU-A", price: 10, cost: 6, e: -2}))

	sol, err := newTestOptimizer().Optimize(context.Background(), sc)
	require.NoError(t, err)

	d, _ := sol.Decision("SKU-A")
	// revenue ∝ p^(1+e) falls with price; band floor is the unit cost
	assert.InDelta(t, 6.0, d.RecommendedPrice, 1e-6)
}

func TestOptimize_Idempotent(t *testing.T) {
	cfg := contracts.DefaultScenarioConfig()
	cfg.Optimizer.Weights = contracts.ObjectiveWeights{Margin: 0.6, Revenue: 0.3, Volume: 0.1}
	sc := scenario(t, cfg,
		item(itemSpec{sku: "SKU-A", price: 10, cost: 6, e: -1.8}),
		item(itemSpec{sku: "SKU-B", price: 4, cost: 1.5, e: -0.7}),
	)

	opt := newTestOptimizer()
	first, err := opt.Optimize(context.Background(), sc)
	require.NoError(t, err)
	second, err := opt.Optimize(context.Background(), sc)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 10.0, sc.Items[0].Product.CurrentPrice)
}

func TestOptimize_FitQualityGates(t *testing.T) {
	stale := item(itemSpec{sku: "SKU-C", price: 8, cost: 4, e: -2})
	stale.Elasticity.ValidUntil = submittedAt.Add(-time.Hour)

	missing := item(itemSpec{sku: "SKU-D", price: 5, cost: 2, e: -2})
	missing.Forecast = nil

	build := func(cfg contracts.ScenarioConfig) *contracts.OptimizationScenario {
		return scenario(t, cfg,
			item(itemSpec{sku: "SKU-A", price: 10, cost: 6, e: 0.3, quality: contracts.FitUnidentifiable}),
			item(itemSpec{sku: "SKU-B", price: 10, cost: 6, e: -2, quality: contracts.FitLowSample}),
			stale,
			missing,
		)
	}

	sol, err := newTestOptimizer().Optimize(context.Background(), build(contracts.DefaultScenarioConfig()))
	require.NoError(t, err)

	tests := []struct {
		sku      string
		excluded bool
		held     bool
		reason   string
	}{
		{"SKU-A", true, false, "insufficient signal"},
		{"SKU-B", false, true, "low sample, held at current price"},
		{"SKU-C", true, false, "stale model fit"},
		{"SKU-D", true, false, "missing model fit"},
	}
	for _, tt := range tests {
		t.Run(tt.sku, func(t *testing.T) {
			d, ok := sol.Decision(tt.sku)
			require.True(t, ok)
			assert.Equal(t, tt.excluded, d.Excluded)
			assert.Equal(t, tt.held, d.Held)
			assert.Equal(t, tt.reason, d.Reason)
			assert.Equal(t, d.CurrentPrice, d.RecommendedPrice)
		})
	}

	cfg := contracts.DefaultScenarioConfig()
	cfg.Optimizer.OptimizeLowSample = true
	sol, err = newTestOptimizer().Optimize(context.Background(), build(cfg))
	require.NoError(t, err)
	d, _ := sol.Decision("SKU-B")
	assert.False(t, d.Held)
	assert.InDelta(t, 12.0, d.RecommendedPrice, 1e-9)
}

func TestOptimize_EmptyBandInfeasible(t *testing.T) {
	cfg := contracts.DefaultScenarioConfig()
	cfg.Constraints = []contracts.Constraint{
		{ID: "move", Kind: contracts.ConstraintMaxPriceChange, Scope: contracts.ScopeSKU, SKU: "SKU-A", Value: 0.10},
		{ID: "margin", Kind: contracts.ConstraintMinMargin, Scope: contracts.ScopeSKU, SKU: "SKU-A", Value: 0.50},
	}
	sc := scenario(t, cfg, item(itemSpec{sku: "SKU-A", price: 10, cost: 6, e: -2}))

	sol, err := newTestOptimizer().Optimize(context.Background(), sc)
	require.Error(t, err)
	assert.True(t, errors.Is(err, contracts.ErrInfeasibleScenario))

	var infeasible *contracts.InfeasibleScenarioError
	require.True(t, errors.As(err, &infeasible))
	require.Len(t, infeasible.Violations, 1)
	assert.Equal(t, "band:SKU-A", infeasible.Violations[0].ConstraintID)

	require.NotNil(t, sol)
	assert.Equal(t, contracts.StatusInfeasible, sol.Status)
	assert.Equal(t, infeasible.Violations, sol.Violations)
}

func TestOptimize_UnreachableMarginFloor(t *testing.T) {
	cfg := contracts.DefaultScenarioConfig()
	cfg.Optimizer.MaxIterations = 5
	cfg.Constraints = []contracts.Constraint{
		{ID: "move", Kind: contracts.ConstraintMaxPriceChange, Scope: contracts.ScopePortfolio, Value: 0.10},
		{ID: "floor", Kind: contracts.ConstraintPortfolioMarginFloor, Scope: contracts.ScopePortfolio, Value: 0.50},
	}
	sc := scenario(t, cfg, item(itemSpec{sku: "SKU-A", price: 10, cost: 9, e: -2}))

	sol, err := newTestOptimizer().Optimize(context.Background(), sc)
	var infeasible *contracts.InfeasibleScenarioError
	require.True(t, errors.As(err, &infeasible))
	assert.Equal(t, 5, infeasible.Iterations)
	assert.Equal(t, "floor", infeasible.Violations[0].ConstraintID)
	assert.Equal(t, contracts.StatusInfeasible, sol.Status)

	// prices stay inside the band even when the floor cannot be met
	d, _ := sol.Decision("SKU-A")
	assert.LessOrEqual(t, d.RecommendedPrice, 11.0+1e-9)
}

func TestOptimize_MarginFloorRepair(t *testing.T) {
	cfg := contracts.DefaultScenarioConfig()
	cfg.Optimizer.Weights = contracts.ObjectiveWeights{Revenue: 1}
	cfg.Constraints = []contracts.Constraint{
		{ID: "floor", Kind: contracts.ConstraintPortfolioMarginFloor, Scope: contracts.ScopePortfolio, Value: 0.20},
	}
	sc := scenario(t, cfg, item(itemSpec{sku: "SKU-A", price: 10, cost: 5, e: -2}))

	sol, err := newTestOptimizer().Optimize(context.Background(), sc)
	require.NoError(t, err)
	assert.Equal(t, contracts.StatusCompleted, sol.Status)
	assert.GreaterOrEqual(t, sol.Iterations, 1)

	d, _ := sol.Decision("SKU-A")
	assert.GreaterOrEqual(t, d.ProjectedMargin/d.ProjectedRevenue, 0.20-1e-9)
}

func TestOptimize_PackLadderRepair(t *testing.T) {
	ladder := contracts.Constraint{
		ID:         "cola-ladder",
		Kind:       contracts.ConstraintPriceLadder,
		Scope:      contracts.ScopeGroup,
		Group:      "cola",
		Ladder:     []string{"COLA-2", "COLA-4", "COLA-8"},
		MinStepPct: 0.05,
	}

	tests := []struct {
		name     string
		items    []itemSpec
		breaking string // pack whose independent optimum is not cheaper per unit than the next smaller one
	}{
		{
			// independent optima: unit prices 1.5, 2.0, 1.5
			name: "4-pack breaks the ladder",
			items: []itemSpec{
				{sku: "COLA-2", price: 4, cost: 2, pack: 2, e: -3},
				{sku: "COLA-4", price: 8, cost: 4, pack: 4, e: -2},
				{sku: "COLA-8", price: 12, cost: 6, pack: 8, e: -2},
			},
			breaking: "COLA-4",
		},
		{
			// independent optima: unit prices 2.0, 1.5, 1.5
			name: "8-pack breaks the ladder",
			items: []itemSpec{
				{sku: "COLA-2", price: 4, cost: 2, pack: 2, e: -2},
				{sku: "COLA-4", price: 6, cost: 4, pack: 4, e: -3},
				{sku: "COLA-8", price: 12, cost: 8, pack: 8, e: -3},
			},
			breaking: "COLA-8",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items := make([]contracts.SKUInput, len(tt.items))
			for i, s := range tt.items {
				items[i] = item(s)
			}

			solve := func(constraints ...contracts.Constraint) (*contracts.OptimizationScenario, *contracts.Solution) {
				cfg := contracts.DefaultScenarioConfig()
				cfg.Constraints = constraints
				sc := scenario(t, cfg, items...)
				sol, err := newTestOptimizer().Optimize(context.Background(), sc)
				require.NoError(t, err)
				assert.Equal(t, contracts.StatusCompleted, sol.Status)
				return sc, sol
			}
			unitPrices := func(sc *contracts.OptimizationScenario, sol *contracts.Solution) map[string]float64 {
				out := make(map[string]float64, len(sol.Decisions))
				for _, d := range sol.Decisions {
					it, ok := sc.Item(d.SKU)
					require.True(t, ok)
					out[d.SKU] = it.Product.UnitPrice(d.RecommendedPrice)
				}
				return out
			}

			// without the ladder the independent optimum violates it at the expected step
			free := unitPrices(solve())
			violated := map[string]bool{
				"COLA-4": free["COLA-4"] > free["COLA-2"]*0.95*(1+1e-6),
				"COLA-8": free["COLA-8"] > free["COLA-4"]*0.95*(1+1e-6),
			}
			assert.True(t, violated[tt.breaking], "unconstrained unit prices %v", free)

			sc, sol := solve(ladder)
			assert.GreaterOrEqual(t, sol.Iterations, 1)

			u := unitPrices(sc, sol)
			assert.LessOrEqual(t, u["COLA-4"], u["COLA-2"]*0.95*(1+1e-6))
			assert.LessOrEqual(t, u["COLA-8"], u["COLA-4"]*0.95*(1+1e-6))

			for _, d := range sol.Decisions {
				assert.GreaterOrEqual(t, d.RecommendedPrice, d.LowerBound-1e-9, d.SKU)
				assert.LessOrEqual(t, d.RecommendedPrice, d.UpperBound+1e-9, d.SKU)
			}
		})
	}
}

func TestOptimize_PromotionPlan(t *testing.T) {
	it := item(itemSpec{sku: "SKU-A", price: 10, cost: 6, e: -2})
	it.ROI = &contracts.ROIReport{
		SKU: "SKU-A",
		Mechanics: []contracts.MechanicROI{
			{Mechanic: "depth_10_20", AvgDiscountDepth: 0.15, BaselineUnits: 200, IncrementalVolume: 40, IncrementalMargin: 100, PromotionCost: 50, Lift: 0.2, ROI: 2},
			{Mechanic: "depth_30_50", AvgDiscountDepth: 0.40, BaselineUnits: 200, IncrementalVolume: 90, IncrementalMargin: -30, PromotionCost: 50, Lift: 0.45, ROI: -0.6},
		},
	}
	sc := scenario(t, contracts.DefaultScenarioConfig(), it)

	sol, err := newTestOptimizer().Optimize(context.Background(), sc)
	require.NoError(t, err)

	d, _ := sol.Decision("SKU-A")
	require.NotNil(t, d.PromotionPlan)
	assert.Equal(t, "depth_10_20", d.PromotionPlan.Mechanic)
	assert.InDelta(t, 0.2*d.ProjectedUnits, d.PromotionPlan.ExpectedIncrementalVolume, 1e-9)
}

func TestOptimize_Errors(t *testing.T) {
	_, err := newTestOptimizer().Optimize(context.Background(), nil)
	assert.Error(t, err)

	cfg := contracts.DefaultScenarioConfig()
	cfg.Constraints = []contracts.Constraint{
		{ID: "move", Kind: contracts.ConstraintMaxPriceChange, Scope: contracts.ScopePortfolio, Value: 0.10},
		{ID: "floor", Kind: contracts.ConstraintPortfolioMarginFloor, Scope: contracts.ScopePortfolio, Value: 0.50},
	}
	sc := scenario(t, cfg, item(itemSpec{sku: "SKU-A", price: 10, cost: 9, e: -2}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = newTestOptimizer().Optimize(ctx, sc)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsotonicDecreasing(t *testing.T) {
	assert.Equal(t, []float64{3, 1.5, 1.5}, isotonicDecreasing([]float64{3, 1, 2}, []float64{1, 1, 1}))
	assert.Equal(t, []float64{3, 2, 1}, isotonicDecreasing([]float64{3, 2, 1}, []float64{1, 1, 1}))

	// a heavy (fixed) point barely moves when pooled
	fit := isotonicDecreasing([]float64{1, 2}, []float64{fixedWeight, 1})
	assert.InDelta(t, 1.0, fit[0], 1e-5)
	assert.Equal(t, fit[0], fit[1])
}

func TestSkuBand(t *testing.T) {
	s := &skuState{sku: "SKU-A", product: contracts.Product{SKU: "SKU-A", Group: "cola"}, current: 10, cost: 4}

	lo, hi := skuBand(s, nil)
	assert.InDelta(t, 5.0, lo, 1e-12)
	assert.InDelta(t, 20.0, hi, 1e-12)

	lo, hi = skuBand(s, []contracts.Constraint{
		{ID: "b", Kind: contracts.ConstraintPriceBounds, Scope: contracts.ScopeGroup, Group: "cola", MinPrice: 9, MaxPrice: 12},
		{ID: "m", Kind: contracts.ConstraintMinMargin, Scope: contracts.ScopeSKU, SKU: "SKU-A", Value: 0.6},
		{ID: "other", Kind: contracts.ConstraintMaxPriceChange, Scope: contracts.ScopeSKU, SKU: "SKU-B", Value: 0.01},
	})
	assert.InDelta(t, 10.0, lo, 1e-12) // 4 / (1 - 0.6)
	assert.InDelta(t, 12.0, hi, 1e-12)
}
