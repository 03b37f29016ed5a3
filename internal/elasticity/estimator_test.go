package elasticity

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/rgm/internal/contracts"
)

var testStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// synthetic weekly history with a known constant elasticity.
// Seasonal demand peaks are met with lower prices, so a naive regression is biased.
func syntheticObservations(sku string, n int, elasticity float64, seed int64) []contracts.Observation {
	rng := rand.New(rand.NewSource(seed))
	obs := make([]contracts.Observation, n)
	for t := 0; t < n; t++ {
		season := 1 + 0.3*math.Sin(2*math.Pi*float64(t)/52)
		price := 10 * (1 - 0.2*(season-1)) * math.Exp(0.15*rng.NormFloat64())
		noise := math.Exp(0.03 * rng.NormFloat64())
		units := 500 * math.Pow(price/10, elasticity) * season * noise
		obs[t] = contracts.Observation{
			SKU:              sku,
			Period:           testStart.AddDate(0, 0, 7*t),
			Price:            price,
			UnitsSold:        units,
			SeasonalityIndex: contracts.Float64(season),
			CompetitorPrice:  contracts.Float64(11 + 0.5*rng.Float64()),
		}
	}
	return obs
}

func testConfig() contracts.EstimationConfig {
	cfg := contracts.DefaultScenarioConfig().Estimation
	cfg.MinSampleSize = 52
	return cfg
}

func newTestEstimator(cfg contracts.EstimationConfig) *Estimator {
	fixed := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	return NewEstimator(cfg, 7*24*time.Hour, zerolog.Nop()).WithClock(func() time.Time { return fixed })
}

func TestEstimate_RecoversKnownElasticity(t *testing.T) {
	cfg := testConfig()
	cfg.ConfidenceLevel = 0.99
	est := newTestEstimator(cfg)

	obs := syntheticObservations("SKU-A", 104, -1.5, 7)
	model, err := est.Estimate("SKU-A", obs)
	require.NoError(t, err)

	assert.Equal(t, contracts.FitReliable, model.Quality)
	assert.Equal(t, 104, model.SampleSize)
	assert.InDelta(t, -1.5, model.Elasticity, 0.1)
	assert.True(t, model.Contains(-1.5), "CI [%.3f, %.3f] should contain -1.5", model.CILower, model.CIUpper)
	assert.Less(t, model.CILower, model.Elasticity)
	assert.Greater(t, model.CIUpper, model.Elasticity)
	assert.Equal(t, contracts.CategoryElastic, model.Category)
	assert.Contains(t, model.Confounders, contracts.ConfounderSeasonality)
	assert.NotEmpty(t, model.FitID)
	assert.Equal(t, model.FittedAt.Add(7*24*time.Hour), model.ValidUntil)
	assert.Greater(t, model.RSquared, 0.5)

	t.Logf("elasticity=%.4f ci=[%.4f, %.4f] r2=%.3f", model.Elasticity, model.CILower, model.CIUpper, model.RSquared)
}

func TestEstimate_ControlsSeasonalConfounding(t *testing.T) {
	obs := syntheticObservations("SKU-A", 104, -1.5, 11)

	withControls := newTestEstimator(testConfig())
	controlled, err := withControls.Estimate("SKU-A", obs)
	require.NoError(t, err)

	naiveCfg := testConfig()
	naiveCfg.Confounders = nil
	naive, err := newTestEstimator(naiveCfg).Estimate("SKU-A", obs)
	require.NoError(t, err)

	// 계절성 통제 시 편향 감소
	assert.Less(t, math.Abs(controlled.Elasticity+1.5), math.Abs(naive.Elasticity+1.5))
	assert.Empty(t, naive.Confounders)
}

func TestEstimate_SampleSizeBoundary(t *testing.T) {
	cfg := testConfig()
	cfg.MinSampleSize = 40
	est := newTestEstimator(cfg)

	obs := syntheticObservations("SKU-B", 40, -2.0, 3)

	atThreshold, err := est.Estimate("SKU-B", obs)
	require.NoError(t, err)
	assert.Equal(t, contracts.FitReliable, atThreshold.Quality)

	below, err := est.Estimate("SKU-B", obs[:39])
	require.NoError(t, err)
	assert.Equal(t, contracts.FitLowSample, below.Quality)
	assert.NotZero(t, below.Elasticity, "low_sample still carries a point estimate")
	assert.False(t, below.Quality.Actionable())
}

func TestEstimate_Unidentifiable(t *testing.T) {
	est := newTestEstimator(testConfig())

	t.Run("constant price", func(t *testing.T) {
		obs := syntheticObservations("SKU-C", 60, -1.0, 5)
		for i := range obs {
			obs[i].Price = 9.99
		}
		model, err := est.Estimate("SKU-C", obs)
		require.NoError(t, err)
		assert.Equal(t, contracts.FitUnidentifiable, model.Quality)
		assert.Zero(t, model.Elasticity)
		assert.NotEmpty(t, model.QualityReason)
	})

	t.Run("price fully explained by promotions", func(t *testing.T) {
		obs := syntheticObservations("SKU-C", 60, -1.0, 5)
		for i := range obs {
			obs[i].Price = 12
			obs[i].PromotionFlag = i%4 == 0
			if obs[i].PromotionFlag {
				obs[i].Price = 9
				obs[i].DiscountDepth = 0.25
			}
		}
		model, err := est.Estimate("SKU-C", obs)
		require.NoError(t, err)
		assert.Equal(t, contracts.FitUnidentifiable, model.Quality)
	})

	t.Run("too few observations", func(t *testing.T) {
		obs := syntheticObservations("SKU-C", 2, -1.0, 5)
		model, err := est.Estimate("SKU-C", obs)
		require.NoError(t, err)
		assert.Equal(t, contracts.FitUnidentifiable, model.Quality)
		assert.Equal(t, 2, model.SampleSize)
	})
}

func TestEstimate_MissingCompetitorPriceDropsConfounder(t *testing.T) {
	est := newTestEstimator(testConfig())

	obs := syntheticObservations("SKU-D", 80, -1.2, 9)
	obs[10].CompetitorPrice = nil

	model, err := est.Estimate("SKU-D", obs)
	require.NoError(t, err)

	assert.Equal(t, contracts.FitReliable, model.Quality)
	assert.NotContains(t, model.Confounders, contracts.ConfounderCompetitorPrice)
	assert.Contains(t, model.Confounders, contracts.ConfounderSeasonality)
	assert.InDelta(t, -1.2, model.Elasticity, 0.15)
}

func TestEstimate_SkipsInvalidRows(t *testing.T) {
	est := newTestEstimator(testConfig())

	obs := syntheticObservations("SKU-E", 60, -1.0, 13)
	obs[0].UnitsSold = 0
	obs[1].Price = math.NaN()

	model, err := est.Estimate("SKU-E", obs)
	require.NoError(t, err)
	assert.Equal(t, 58, model.SampleSize)
}

func TestEstimateCluster_FixedEffects(t *testing.T) {
	est := newTestEstimator(testConfig())

	small := syntheticObservations("SKU-2PK", 60, -1.8, 21)
	large := syntheticObservations("SKU-8PK", 60, -1.8, 22)
	for i := range large {
		// 대용량 팩은 판매량 수준이 다름
		large[i].UnitsSold *= 0.3
		large[i].Price *= 3.5
	}

	model, err := est.EstimateCluster("cluster:cola", append(small, large...))
	require.NoError(t, err)

	assert.Equal(t, []string{"SKU-2PK", "SKU-8PK"}, model.SKUs)
	assert.Equal(t, 120, model.SampleSize)
	assert.Equal(t, contracts.FitReliable, model.Quality)
	assert.InDelta(t, -1.8, model.Elasticity, 0.1)
}

func TestEstimate_Deterministic(t *testing.T) {
	cfg := testConfig()
	cfg.BootstrapSamples = 300
	cfg.Seed = 99

	obs := syntheticObservations("SKU-F", 70, -1.3, 17)

	first, err := newTestEstimator(cfg).Estimate("SKU-F", obs)
	require.NoError(t, err)
	second, err := newTestEstimator(cfg).Estimate("SKU-F", obs)
	require.NoError(t, err)

	assert.True(t, first.Bootstrap)
	assert.Equal(t, first.Elasticity, second.Elasticity)
	assert.Equal(t, first.CILower, second.CILower)
	assert.Equal(t, first.CIUpper, second.CIUpper)
	assert.NotEqual(t, first.FitID, second.FitID, "each fit is a new version")

	cfg.Seed = 100
	third, err := newTestEstimator(cfg).Estimate("SKU-F", obs)
	require.NoError(t, err)
	assert.Equal(t, first.Elasticity, third.Elasticity)
}

func TestEstimate_RequiresKey(t *testing.T) {
	_, err := newTestEstimator(testConfig()).Estimate("", nil)
	assert.Error(t, err)
}

func TestMeasurePriceVariation(t *testing.T) {
	tests := []struct {
		name   string
		prices []float64
		want   VariationTier
	}{
		{"wide spread", []float64{8, 10, 12, 14, 9, 13}, TierStrict},
		{"relaxed", []float64{9, 10, 11, 10, 9, 11, 9, 12}, TierRelaxed},
		{"two prices", []float64{10, 11, 10, 11, 10, 11}, TierMinimal},
		{"constant", []float64{10, 10, 10}, TierInsufficient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs := make([]contracts.Observation, len(tt.prices))
			for i, p := range tt.prices {
				obs[i] = contracts.Observation{SKU: "X", Period: testStart.AddDate(0, 0, 7*i), Price: p, UnitsSold: 1}
			}
			pv := MeasurePriceVariation(obs)
			assert.Equal(t, tt.want, pv.Tier, "cv=%.3f unique=%d range=%.3f", pv.CV, pv.UniquePrices, pv.RangePct)
		})
	}

	assert.Equal(t, TierInsufficient, MeasurePriceVariation(nil).Tier)
}

func TestEstimate_WeakFitBelowMinRSquared(t *testing.T) {
	// demand noise dominates the price signal: the slope is identifiable but explains little
	rng := rand.New(rand.NewSource(11))
	obs := make([]contracts.Observation, 104)
	for i := range obs {
		price := 10 * math.Exp(0.15*rng.NormFloat64())
		obs[i] = contracts.Observation{
			SKU:       "SKU-N",
			Period:    testStart.AddDate(0, 0, 7*i),
			Price:     price,
			UnitsSold: 500 * math.Pow(price/10, -1.5) * math.Exp(0.6*rng.NormFloat64()),
		}
	}

	cfg := testConfig()
	cfg.MaxAbsElasticity = 0
	model, err := newTestEstimator(cfg).Estimate("SKU-N", obs)
	require.NoError(t, err)
	assert.Equal(t, contracts.FitReliable, model.Quality)
	assert.Less(t, model.RSquared, cfg.MinRSquared)
	assert.True(t, model.WeakFit)

	cfg.MinRSquared = 0
	model, err = newTestEstimator(cfg).Estimate("SKU-N", obs)
	require.NoError(t, err)
	assert.False(t, model.WeakFit)

	strong, err := newTestEstimator(testConfig()).Estimate("SKU-A", syntheticObservations("SKU-A", 104, -1.5, 7))
	require.NoError(t, err)
	assert.False(t, strong.WeakFit)
}

func TestNewBasis_DropsConstantAndCollinearControls(t *testing.T) {
	n := 40
	trend := make([]float64, n)
	double := make([]float64, n)
	constant := make([]float64, n)
	zero := make([]float64, n)
	wave := make([]float64, n)
	for i := 0; i < n; i++ {
		trend[i] = float64(i)
		double[i] = 2 * float64(i)
		constant[i] = 3
		wave[i] = math.Sin(float64(i) / 3)
	}

	b, kept := newBasis(n, [][]float64{trend, double, constant, zero, wave})
	assert.Equal(t, []int{0, 4}, kept)
	assert.Equal(t, 3, b.rank())

	// anything in the span projects to zero
	r, err := b.residual(double)
	require.NoError(t, err)
	for _, v := range r {
		assert.InDelta(t, 0, v, 1e-9)
	}

	rng := rand.New(rand.NewSource(3))
	y := make([]float64, n)
	for i := range y {
		y[i] = 5 + 0.4*trend[i] + rng.NormFloat64()
	}
	r, err = b.residual(y)
	require.NoError(t, err)

	// remainder is orthogonal to every design column
	var sum, dotTrend, dotWave float64
	for i, v := range r {
		sum += v
		dotTrend += v * trend[i]
		dotWave += v * wave[i]
	}
	assert.InDelta(t, 0, sum, 1e-8)
	assert.InDelta(t, 0, dotTrend, 1e-7)
	assert.InDelta(t, 0, dotWave, 1e-8)
}
