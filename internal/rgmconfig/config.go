package rgmconfig

import (
	"time"

	"github.com/wonny/rgm/internal/contracts"
)

// Config is one scenario definition as written by revenue managers
type Config struct {
	Meta        Meta                   `yaml:"meta" json:"meta"`
	Scope       Scope                  `yaml:"scope" json:"scope"`
	Estimation  Estimation             `yaml:"estimation" json:"estimation"`
	Forecast    Forecast               `yaml:"forecast" json:"forecast"`
	Promotion   Promotion              `yaml:"promotion" json:"promotion"`
	Optimizer   Optimizer              `yaml:"optimizer" json:"optimizer"`
	Constraints []contracts.Constraint `yaml:"constraints" json:"constraints"`
	Runtime     Runtime                `yaml:"runtime" json:"runtime"`
}

// Meta 메타 정보
type Meta struct {
	Name        string `yaml:"name" json:"name"`
	Version     string `yaml:"version" json:"version"`
	Description string `yaml:"description" json:"description"`
}

// Scope selects the SKUs and history window of the run
type Scope struct {
	SKUs         []string `yaml:"skus" json:"skus"` // empty = whole catalog
	HistoryWeeks int      `yaml:"history_weeks" json:"history_weeks"`
}

// Estimation maps to contracts.EstimationConfig
type Estimation struct {
	MinSampleSize       int      `yaml:"min_sample_size" json:"min_sample_size"`
	Confounders         []string `yaml:"confounders" json:"confounders"`
	ConfidenceLevel     float64  `yaml:"confidence_level" json:"confidence_level"`
	BootstrapSamples    int      `yaml:"bootstrap_samples" json:"bootstrap_samples"`
	Seed                int64    `yaml:"seed" json:"seed"`
	MinResidualPriceVar float64  `yaml:"min_residual_price_var" json:"min_residual_price_var"`
	MaxAbsElasticity    float64  `yaml:"max_abs_elasticity" json:"max_abs_elasticity"`
	MinRSquared         float64  `yaml:"min_r_squared" json:"min_r_squared"`
	ClusterBy           string   `yaml:"cluster_by" json:"cluster_by"` // sku | group
}

// Forecast maps to contracts.ForecastConfig
type Forecast struct {
	Horizon                   int     `yaml:"horizon" json:"horizon"`
	SeasonLength              int     `yaml:"season_length" json:"season_length"`
	MAWindow                  int     `yaml:"ma_window" json:"ma_window"`
	MultiplicativeCVThreshold float64 `yaml:"multiplicative_cv_threshold" json:"multiplicative_cv_threshold"`
	FallbackWidening          float64 `yaml:"fallback_widening" json:"fallback_widening"`
	ConfidenceLevel           float64 `yaml:"confidence_level" json:"confidence_level"`
}

// Promotion maps to contracts.PromotionConfig
type Promotion struct {
	DepthBuckets []float64 `yaml:"depth_buckets" json:"depth_buckets"`
}

// Optimizer maps to contracts.OptimizerConfig
type Optimizer struct {
	Weights             contracts.ObjectiveWeights `yaml:"weights" json:"weights"`
	MaxIterations       int                        `yaml:"max_iterations" json:"max_iterations"`
	Tolerance           float64                    `yaml:"tolerance" json:"tolerance"`
	GridPoints          int                        `yaml:"grid_points" json:"grid_points"`
	OptimizeLowSample   bool                       `yaml:"optimize_low_sample" json:"optimize_low_sample"`
	RecommendPromotions bool                       `yaml:"recommend_promotions" json:"recommend_promotions"`
}

// Runtime holds execution settings that do not change results
type Runtime struct {
	ModelTTL string `yaml:"model_ttl" json:"model_ttl"` // Go duration, e.g. 168h
	Workers  int    `yaml:"workers" json:"workers"`
}

// Default returns the configuration equivalent to contracts.DefaultScenarioConfig
func Default() *Config {
	d := contracts.DefaultScenarioConfig()
	confounders := make([]string, len(d.Estimation.Confounders))
	for i, c := range d.Estimation.Confounders {
		confounders[i] = string(c)
	}
	return &Config{
		Meta:  Meta{Name: "default", Version: "1"},
		Scope: Scope{HistoryWeeks: 104},
		Estimation: Estimation{
			MinSampleSize:       d.Estimation.MinSampleSize,
			Confounders:         confounders,
			ConfidenceLevel:     d.Estimation.ConfidenceLevel,
			BootstrapSamples:    d.Estimation.BootstrapSamples,
			Seed:                d.Estimation.Seed,
			MinResidualPriceVar: d.Estimation.MinResidualPriceVar,
			MaxAbsElasticity:    d.Estimation.MaxAbsElasticity,
			MinRSquared:         d.Estimation.MinRSquared,
			ClusterBy:           string(d.Estimation.ClusterBy),
		},
		Forecast: Forecast{
			Horizon:                   d.Forecast.Horizon,
			SeasonLength:              d.Forecast.SeasonLength,
			MAWindow:                  d.Forecast.MAWindow,
			MultiplicativeCVThreshold: d.Forecast.MultiplicativeCVThreshold,
			FallbackWidening:          d.Forecast.FallbackWidening,
			ConfidenceLevel:           d.Forecast.ConfidenceLevel,
		},
		Promotion: Promotion{DepthBuckets: append([]float64(nil), d.Promotion.DepthBuckets...)},
		Optimizer: Optimizer{
			Weights:             d.Optimizer.Weights,
			MaxIterations:       d.Optimizer.MaxIterations,
			Tolerance:           d.Optimizer.Tolerance,
			GridPoints:          d.Optimizer.GridPoints,
			OptimizeLowSample:   d.Optimizer.OptimizeLowSample,
			RecommendPromotions: d.Optimizer.RecommendPromotions,
		},
		Runtime: Runtime{
			ModelTTL: d.ModelTTL.String(),
			Workers:  d.Workers,
		},
	}
}

// ToScenarioConfig converts to the explicit value consumed by the core
func (c *Config) ToScenarioConfig() (contracts.ScenarioConfig, error) {
	ttl, err := c.modelTTL()
	if err != nil {
		return contracts.ScenarioConfig{}, err
	}

	confounders := make([]contracts.Confounder, len(c.Estimation.Confounders))
	for i, name := range c.Estimation.Confounders {
		confounders[i] = contracts.Confounder(name)
	}

	sc := contracts.ScenarioConfig{
		Estimation: contracts.EstimationConfig{
			MinSampleSize:       c.Estimation.MinSampleSize,
			Confounders:         confounders,
			ConfidenceLevel:     c.Estimation.ConfidenceLevel,
			BootstrapSamples:    c.Estimation.BootstrapSamples,
			Seed:                c.Estimation.Seed,
			MinResidualPriceVar: c.Estimation.MinResidualPriceVar,
			MaxAbsElasticity:    c.Estimation.MaxAbsElasticity,
			MinRSquared:         c.Estimation.MinRSquared,
			ClusterBy:           contracts.ClusterMode(c.Estimation.ClusterBy),
		},
		Forecast: contracts.ForecastConfig{
			Horizon:                   c.Forecast.Horizon,
			SeasonLength:              c.Forecast.SeasonLength,
			MAWindow:                  c.Forecast.MAWindow,
			MultiplicativeCVThreshold: c.Forecast.MultiplicativeCVThreshold,
			FallbackWidening:          c.Forecast.FallbackWidening,
			ConfidenceLevel:           c.Forecast.ConfidenceLevel,
		},
		Promotion: contracts.PromotionConfig{
			DepthBuckets: append([]float64(nil), c.Promotion.DepthBuckets...),
		},
		Optimizer: contracts.OptimizerConfig{
			Weights:             c.Optimizer.Weights,
			MaxIterations:       c.Optimizer.MaxIterations,
			Tolerance:           c.Optimizer.Tolerance,
			GridPoints:          c.Optimizer.GridPoints,
			OptimizeLowSample:   c.Optimizer.OptimizeLowSample,
			RecommendPromotions: c.Optimizer.RecommendPromotions,
		},
		Constraints: append([]contracts.Constraint(nil), c.Constraints...),
		ModelTTL:    ttl,
		Workers:     c.Runtime.Workers,
	}
	return sc, nil
}

// HistoryWindow returns the [from, to] observation window ending at asOf
func (c *Config) HistoryWindow(asOf time.Time) (time.Time, time.Time) {
	if c.Scope.HistoryWeeks <= 0 {
		return time.Time{}, asOf
	}
	return asOf.AddDate(0, 0, -7*c.Scope.HistoryWeeks), asOf
}

func (c *Config) modelTTL() (time.Duration, error) {
	if c.Runtime.ModelTTL == "" {
		return 0, nil
	}
	ttl, err := time.ParseDuration(c.Runtime.ModelTTL)
	if err != nil {
		return 0, ValidationError{"runtime.model_ttl", err.Error()}
	}
	return ttl, nil
}
