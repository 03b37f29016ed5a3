package elasticity

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/wonny/rgm/internal/contracts"
)

// minRelativeResidualVar: residual price variance below this share of the raw
// log-price variance means confounders explain the price path
const minRelativeResidualVar = 1e-4

// Estimator fits causal price elasticities by partialling out confounders
// ⭐ SSOT: 탄력성 추정 로직은 여기서만
//
// log(units) and log(price) are both residualized on the confounder space, then the
// elasticity is the slope of demand residuals on price residuals (Frisch-Waugh-Lovell).
type Estimator struct {
	config contracts.EstimationConfig
	ttl    time.Duration
	now    func() time.Time
	log    zerolog.Logger
}

// NewEstimator creates an estimator for one scenario configuration
func NewEstimator(config contracts.EstimationConfig, ttl time.Duration, log zerolog.Logger) *Estimator {
	return &Estimator{
		config: config,
		ttl:    ttl,
		now:    time.Now,
		log:    log.With().Str("component", "elasticity.estimator").Logger(),
	}
}

// WithClock overrides the fit timestamp source
func (e *Estimator) WithClock(now func() time.Time) *Estimator {
	e.now = now
	return e
}

// Estimate fits the elasticity of a single SKU
func (e *Estimator) Estimate(key string, obs []contracts.Observation) (*contracts.ElasticityModel, error) {
	return e.fit(key, obs, false)
}

// EstimateCluster pools several SKUs under one key with per-SKU fixed effects
func (e *Estimator) EstimateCluster(key string, obs []contracts.Observation) (*contracts.ElasticityModel, error) {
	return e.fit(key, obs, true)
}

func (e *Estimator) fit(key string, obs []contracts.Observation, fixedEffects bool) (*contracts.ElasticityModel, error) {
	if key == "" {
		return nil, fmt.Errorf("elasticity key is required")
	}

	sample := usableSample(obs)
	fittedAt := e.now()
	model := &contracts.ElasticityModel{
		Key:        key,
		SKUs:       skuSet(sample),
		FitID:      uuid.NewString(),
		FittedAt:   fittedAt,
		SampleSize: len(sample),
		CILevel:    e.config.ConfidenceLevel,
	}
	if e.ttl > 0 {
		model.ValidUntil = fittedAt.Add(e.ttl)
	}

	pv := MeasurePriceVariation(sample)
	model.PriceCV = pv.CV
	model.UniquePrices = pv.UniquePrices
	model.PriceRangePct = pv.RangePct

	n := len(sample)
	if n < 3 {
		return e.unidentifiable(model, fmt.Sprintf("only %d usable observations", n)), nil
	}

	x := make([]float64, n)
	y := make([]float64, n)
	for i, o := range sample {
		x[i] = math.Log(o.Price)
		y[i] = math.Log(o.UnitsSold)
	}

	controls, names := e.confounderColumns(sample)
	if fixedEffects {
		fe, feNames := fixedEffectColumns(sample)
		controls = append(controls, fe...)
		names = append(names, feNames...)
	}

	b, kept := newBasis(n, controls)
	for _, idx := range kept {
		if c := contracts.Confounder(names[idx]); isConfounder(c) {
			model.Confounders = append(model.Confounders, c)
		}
	}

	rx, err := b.residual(x)
	if err != nil {
		return e.unidentifiable(model, err.Error()), nil
	}
	ry, err := b.residual(y)
	if err != nil {
		return e.unidentifiable(model, err.Error()), nil
	}

	sxx := floats.Dot(rx, rx)
	rawVar := centeredSS(x)
	model.ResidualPriceVar = sxx / float64(n)

	if model.ResidualPriceVar < e.config.MinResidualPriceVar || rawVar == 0 || sxx/rawVar < minRelativeResidualVar {
		return e.unidentifiable(model, "no price variation left after confounder residualization"), nil
	}

	df := n - b.rank() - 1
	if df < 1 {
		return e.unidentifiable(model, fmt.Sprintf("%d observations for %d controls", n, b.rank())), nil
	}

	slope := floats.Dot(rx, ry) / sxx
	resid := make([]float64, n)
	floats.AddScaledTo(resid, ry, -slope, rx)
	sse := floats.Dot(resid, resid)
	syy := floats.Dot(ry, ry)

	model.Elasticity = slope
	model.StdError = math.Sqrt(sse / float64(df) / sxx)
	if syy > 0 {
		model.RSquared = 1 - sse/syy
	}

	if e.config.BootstrapSamples > 0 {
		lo, hi, ok := bootstrapCI(rx, ry, e.config.BootstrapSamples, e.config.Seed, e.config.ConfidenceLevel)
		if ok {
			model.CILower, model.CIUpper = lo, hi
			model.Bootstrap = true
		}
	}
	if !model.Bootstrap {
		t := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(df)}
		q := t.Quantile(1 - (1-e.config.ConfidenceLevel)/2)
		model.CILower = slope - q*model.StdError
		model.CIUpper = slope + q*model.StdError
	}

	if e.config.MaxAbsElasticity > 0 && math.Abs(slope) > e.config.MaxAbsElasticity {
		return e.unidentifiable(model, fmt.Sprintf("implausible elasticity %.2f", slope)), nil
	}

	model.Category = contracts.CategorizeElasticity(slope)
	if n < e.config.MinSampleSize {
		model.Quality = contracts.FitLowSample
		model.QualityReason = fmt.Sprintf("%d observations below minimum %d", n, e.config.MinSampleSize)
	} else {
		model.Quality = contracts.FitReliable
	}
	if e.config.MinRSquared > 0 && model.RSquared < e.config.MinRSquared {
		model.WeakFit = true
		e.log.Debug().
			Str("key", key).
			Float64("r_squared", model.RSquared).
			Float64("min_r_squared", e.config.MinRSquared).
			Msg("weak fit")
	}

	e.log.Debug().
		Str("key", key).
		Int("sample_size", n).
		Float64("elasticity", slope).
		Float64("ci_lower", model.CILower).
		Float64("ci_upper", model.CIUpper).
		Float64("r_squared", model.RSquared).
		Str("quality", string(model.Quality)).
		Msg("elasticity fitted")

	return model, nil
}

// unidentifiable marks the fit without fabricating a coefficient
func (e *Estimator) unidentifiable(model *contracts.ElasticityModel, reason string) *contracts.ElasticityModel {
	model.Quality = contracts.FitUnidentifiable
	model.QualityReason = reason
	model.Elasticity = 0
	model.CILower = 0
	model.CIUpper = 0
	model.StdError = 0
	model.RSquared = 0
	model.Category = ""

	e.log.Warn().
		Str("key", model.Key).
		Int("sample_size", model.SampleSize).
		Str("reason", reason).
		Msg("elasticity unidentifiable")
	return model
}

// confounderColumns builds control columns for the configured confounders.
// An optional field missing on any observation drops that confounder.
func (e *Estimator) confounderColumns(sample []contracts.Observation) ([][]float64, []string) {
	n := len(sample)
	var cols [][]float64
	var names []string

	for _, c := range e.config.Confounders {
		col := make([]float64, n)
		ok := true
		switch c {
		case contracts.ConfounderSeasonality:
			for i, o := range sample {
				if o.SeasonalityIndex == nil || *o.SeasonalityIndex <= 0 {
					ok = false
					break
				}
				col[i] = math.Log(*o.SeasonalityIndex)
			}
		case contracts.ConfounderPromotion:
			for i, o := range sample {
				if o.IsPromoted() {
					col[i] = 1
				}
			}
		case contracts.ConfounderDiscountDepth:
			for i, o := range sample {
				col[i] = o.DiscountDepth
			}
		case contracts.ConfounderCompetitorPrice:
			for i, o := range sample {
				if o.CompetitorPrice == nil || *o.CompetitorPrice <= 0 {
					ok = false
					break
				}
				col[i] = math.Log(*o.CompetitorPrice)
			}
		default:
			ok = false
		}
		if !ok {
			e.log.Debug().Str("confounder", string(c)).Msg("confounder unavailable, dropped")
			continue
		}
		cols = append(cols, col)
		names = append(names, string(c))
	}
	return cols, names
}

// fixedEffectColumns returns one indicator per SKU except the first
func fixedEffectColumns(sample []contracts.Observation) ([][]float64, []string) {
	skus := skuSet(sample)
	if len(skus) < 2 {
		return nil, nil
	}
	cols := make([][]float64, 0, len(skus)-1)
	names := make([]string, 0, len(skus)-1)
	for _, sku := range skus[1:] {
		col := make([]float64, len(sample))
		for i, o := range sample {
			if o.SKU == sku {
				col[i] = 1
			}
		}
		cols = append(cols, col)
		names = append(names, "sku:"+sku)
	}
	return cols, names
}

func isConfounder(c contracts.Confounder) bool {
	switch c {
	case contracts.ConfounderSeasonality, contracts.ConfounderPromotion,
		contracts.ConfounderDiscountDepth, contracts.ConfounderCompetitorPrice:
		return true
	default:
		return false
	}
}

// usableSample keeps observations that satisfy the contract and can be logged
func usableSample(obs []contracts.Observation) []contracts.Observation {
	sample := make([]contracts.Observation, 0, len(obs))
	for _, o := range obs {
		if !o.HasRequiredFields() || o.UnitsSold <= 0 {
			continue
		}
		sample = append(sample, o)
	}
	sort.SliceStable(sample, func(i, j int) bool {
		if sample[i].SKU != sample[j].SKU {
			return sample[i].SKU < sample[j].SKU
		}
		return sample[i].Period.Before(sample[j].Period)
	})
	return sample
}

func skuSet(sample []contracts.Observation) []string {
	seen := make(map[string]bool)
	var skus []string
	for _, o := range sample {
		if !seen[o.SKU] {
			seen[o.SKU] = true
			skus = append(skus, o.SKU)
		}
	}
	sort.Strings(skus)
	return skus
}

func centeredSS(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	mean := floats.Sum(v) / float64(len(v))
	ss := 0.0
	for _, x := range v {
		d := x - mean
		ss += d * d
	}
	return ss
}
