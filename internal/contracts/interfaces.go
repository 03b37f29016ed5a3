package contracts

import (
	"context"
	"time"
)

// FeatureReader is the read-only feature store boundary
// ⭐ SSOT: 코어는 수집/저장을 소유하지 않음. 읽기 전용 접근만
type FeatureReader interface {
	Products(ctx context.Context, skus []string) ([]Product, error)
	Observations(ctx context.Context, skus []string, from, to time.Time) ([]Observation, error)
}

// ElasticityEstimator fits a causal price elasticity per SKU or cluster
type ElasticityEstimator interface {
	Estimate(key string, obs []Observation) (*ElasticityModel, error)
}

// DemandForecaster fits a baseline demand curve per SKU
type DemandForecaster interface {
	Fit(sku string, series []SeriesPoint, horizon int) (*ForecastModel, error)
}

// PromotionAnalyzer evaluates promotional mechanics against the baseline
type PromotionAnalyzer interface {
	Analyze(sku string, obs []Observation, baseline *ForecastModel, unitCost float64) (*ROIReport, error)
}

// PortfolioOptimizer solves a scenario jointly across SKUs
type PortfolioOptimizer interface {
	Optimize(ctx context.Context, scenario *OptimizationScenario) (*Solution, error)
}

// RecommendationAssembler turns a solution into outward-facing records
type RecommendationAssembler interface {
	Assemble(scenario *OptimizationScenario, solution *Solution) (*ScenarioResult, error)
}

// RecommendationPublisher hands completed scenarios to downstream collaborators
type RecommendationPublisher interface {
	Publish(ctx context.Context, result *ScenarioResult) error
}
