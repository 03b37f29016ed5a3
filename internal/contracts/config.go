package contracts

import (
	"fmt"
	"time"
)

// EstimationConfig configures the elasticity estimator
type EstimationConfig struct {
	MinSampleSize       int          `json:"min_sample_size"`
	Confounders         []Confounder `json:"confounders"`
	ConfidenceLevel     float64      `json:"confidence_level"`  // 0.95
	BootstrapSamples    int          `json:"bootstrap_samples"` // 0 = analytic CI
	Seed                int64        `json:"seed"`
	MinResidualPriceVar float64      `json:"min_residual_price_var"`
	MaxAbsElasticity    float64      `json:"max_abs_elasticity"`
	// MinRSquared marks fits explaining less residual demand as weak (0 disables)
	MinRSquared float64     `json:"min_r_squared"`
	ClusterBy   ClusterMode `json:"cluster_by"`
}

// ClusterMode selects the key elasticities are estimated under
type ClusterMode string

const (
	ClusterBySKU   ClusterMode = "sku"   // one fit per SKU (default)
	ClusterByGroup ClusterMode = "group" // one pooled fit per Product.Group with SKU fixed effects
)

// ClusterKey is the model key of a pooled group fit
func ClusterKey(group string) string {
	return "group:" + group
}

// ForecastConfig configures the demand forecaster
type ForecastConfig struct {
	Horizon      int `json:"horizon"`
	SeasonLength int `json:"season_length"` // periods per seasonal cycle (52 = weekly/yearly)
	MAWindow     int `json:"ma_window"`
	// MultiplicativeCVThreshold: series CV above it selects multiplicative decomposition
	MultiplicativeCVThreshold float64 `json:"multiplicative_cv_threshold"`
	FallbackWidening          float64 `json:"fallback_widening"`
	ConfidenceLevel           float64 `json:"confidence_level"`
}

// PromotionConfig configures the ROI analyzer
type PromotionConfig struct {
	// DepthBuckets are the upper edges of discount-depth buckets, ascending
	DepthBuckets []float64 `json:"depth_buckets"`
}

// ObjectiveWeights weight the normalized margin, revenue and volume terms
type ObjectiveWeights struct {
	Margin  float64 `json:"margin" yaml:"margin"`
	Revenue float64 `json:"revenue" yaml:"revenue"`
	Volume  float64 `json:"volume" yaml:"volume"`
}

// Sum returns the total weight
func (w ObjectiveWeights) Sum() float64 {
	return w.Margin + w.Revenue + w.Volume
}

// OptimizerConfig configures the portfolio optimizer
type OptimizerConfig struct {
	Weights             ObjectiveWeights `json:"weights"`
	MaxIterations       int              `json:"max_iterations"`
	Tolerance           float64          `json:"tolerance"`
	GridPoints          int              `json:"grid_points"`
	OptimizeLowSample   bool             `json:"optimize_low_sample"`
	RecommendPromotions bool             `json:"recommend_promotions"`
}

// ScenarioConfig is the explicit configuration of one scenario run
// ⭐ SSOT: 코어는 전역 설정을 읽지 않음. 모든 설정은 이 값으로 전달됨
type ScenarioConfig struct {
	Estimation  EstimationConfig `json:"estimation"`
	Forecast    ForecastConfig   `json:"forecast"`
	Promotion   PromotionConfig  `json:"promotion"`
	Optimizer   OptimizerConfig  `json:"optimizer"`
	Constraints []Constraint     `json:"constraints"`
	ModelTTL    time.Duration    `json:"model_ttl"`
	Workers     int              `json:"workers"`
}

// DefaultScenarioConfig returns defaults for weekly data
func DefaultScenarioConfig() ScenarioConfig {
	return ScenarioConfig{
		Estimation: EstimationConfig{
			MinSampleSize:       52,
			Confounders:         DefaultConfounders(),
			ConfidenceLevel:     0.95,
			BootstrapSamples:    0,
			Seed:                42,
			MinResidualPriceVar: 1e-6,
			MaxAbsElasticity:    20,
			MinRSquared:         0.3,
			ClusterBy:           ClusterBySKU,
		},
		Forecast: ForecastConfig{
			Horizon:                   13, // 1 quarter
			SeasonLength:              52,
			MAWindow:                  8,
			MultiplicativeCVThreshold: 0.25,
			FallbackWidening:          2.0,
			ConfidenceLevel:           0.95,
		},
		Promotion: PromotionConfig{
			DepthBuckets: []float64{0.10, 0.20, 0.30, 0.50},
		},
		Optimizer: OptimizerConfig{
			Weights:             ObjectiveWeights{Margin: 1.0},
			MaxIterations:       200,
			Tolerance:           1e-6,
			GridPoints:          64,
			OptimizeLowSample:   false,
			RecommendPromotions: true,
		},
		ModelTTL: 7 * 24 * time.Hour,
		Workers:  4,
	}
}

// Validate checks the configuration before scenario construction
func (c ScenarioConfig) Validate() error {
	if c.Estimation.MinSampleSize < 1 {
		return fmt.Errorf("estimation.min_sample_size must be >= 1")
	}
	if c.Estimation.ConfidenceLevel <= 0 || c.Estimation.ConfidenceLevel >= 1 {
		return fmt.Errorf("estimation.confidence_level must be in (0, 1)")
	}
	if c.Estimation.BootstrapSamples < 0 {
		return fmt.Errorf("estimation.bootstrap_samples must be >= 0")
	}
	if c.Estimation.MinRSquared < 0 || c.Estimation.MinRSquared >= 1 {
		return fmt.Errorf("estimation.min_r_squared must be in [0, 1)")
	}
	switch c.Estimation.ClusterBy {
	case "", ClusterBySKU, ClusterByGroup:
	default:
		return fmt.Errorf("estimation.cluster_by must be sku or group")
	}
	if c.Forecast.Horizon < 1 {
		return fmt.Errorf("forecast.horizon must be >= 1")
	}
	if c.Forecast.SeasonLength < 2 {
		return fmt.Errorf("forecast.season_length must be >= 2")
	}
	if c.Forecast.MAWindow < 1 {
		return fmt.Errorf("forecast.ma_window must be >= 1")
	}
	if c.Forecast.ConfidenceLevel <= 0 || c.Forecast.ConfidenceLevel >= 1 {
		return fmt.Errorf("forecast.confidence_level must be in (0, 1)")
	}
	for i := 1; i < len(c.Promotion.DepthBuckets); i++ {
		if c.Promotion.DepthBuckets[i] <= c.Promotion.DepthBuckets[i-1] {
			return fmt.Errorf("promotion.depth_buckets must be ascending")
		}
	}
	w := c.Optimizer.Weights
	if w.Margin < 0 || w.Revenue < 0 || w.Volume < 0 {
		return fmt.Errorf("optimizer.weights must be non-negative")
	}
	if w.Sum() == 0 {
		return fmt.Errorf("optimizer.weights must not all be zero")
	}
	if c.Optimizer.MaxIterations < 1 {
		return fmt.Errorf("optimizer.max_iterations must be >= 1")
	}
	if c.Optimizer.GridPoints < 2 {
		return fmt.Errorf("optimizer.grid_points must be >= 2")
	}
	ids := make(map[string]bool, len(c.Constraints))
	for _, ct := range c.Constraints {
		if err := ct.Validate(); err != nil {
			return err
		}
		if ids[ct.ID] {
			return fmt.Errorf("duplicate constraint id %s", ct.ID)
		}
		ids[ct.ID] = true
	}
	return nil
}
