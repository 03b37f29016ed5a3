package brain

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/rgm/internal/contracts"
	"github.com/wonny/rgm/internal/elasticity"
	"github.com/wonny/rgm/internal/featurestore"
	"github.com/wonny/rgm/internal/forecast"
	"github.com/wonny/rgm/internal/modelstore"
	"github.com/wonny/rgm/internal/portfolio"
	"github.com/wonny/rgm/internal/promotion"
	"github.com/wonny/rgm/internal/recommend"
	"github.com/wonny/rgm/pkg/logger"
	"github.com/wonny/rgm/pkg/metrics"
)

// Stage names used in logs and metrics
const (
	StageLoad     = "load"
	StageEstimate = "estimate"
	StageOptimize = "optimize"
	StageAssemble = "assemble"
	StagePublish  = "publish"
)

// Orchestrator coordinates the pipeline
// ⭐ SSOT: 파이프라인 조율은 여기서만
//
// Feature Store → per-SKU {Elasticity, Forecast, ROI} on a worker pool → barrier →
// model store (single writer) → scenario snapshot → Optimizer → Assembler → store/publish.
type Orchestrator struct {
	reader    contracts.FeatureReader
	models    *modelstore.Store
	results   recommend.Store
	publisher contracts.RecommendationPublisher
	metrics   *metrics.Recorder
	logger    *logger.Logger
	now       func() time.Time
}

// NewOrchestrator creates a new orchestrator
func NewOrchestrator(reader contracts.FeatureReader, models *modelstore.Store, results recommend.Store, log *logger.Logger) *Orchestrator {
	return &Orchestrator{
		reader:  reader,
		models:  models,
		results: results,
		logger:  log.WithComponent("brain.orchestrator"),
		now:     time.Now,
	}
}

// WithPublisher sets the downstream publisher (optional)
func (o *Orchestrator) WithPublisher(p contracts.RecommendationPublisher) *Orchestrator {
	o.publisher = p
	return o
}

// WithMetrics sets the metrics recorder (optional)
func (o *Orchestrator) WithMetrics(m *metrics.Recorder) *Orchestrator {
	o.metrics = m
	return o
}

// WithClock overrides the clock used for fit and scenario timestamps
func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	o.now = now
	return o
}

// Models returns the model store
func (o *Orchestrator) Models() *modelstore.Store {
	return o.models
}

// Results returns the scenario result store
func (o *Orchestrator) Results() recommend.Store {
	return o.results
}

// RunConfig holds configuration for one run
type RunConfig struct {
	ScenarioID string // generated when empty
	SKUs       []string
	From       time.Time
	To         time.Time
	Config     contracts.ScenarioConfig
	ConfigHash string
}

// SKUFit is the per-SKU stage outcome
type SKUFit struct {
	SKU        string                     `json:"sku_id"`
	Variation  elasticity.PriceVariation  `json:"price_variation"`
	Elasticity *contracts.ElasticityModel `json:"elasticity,omitempty"`
	Forecast   *contracts.ForecastModel   `json:"forecast,omitempty"`
	ROI        *contracts.ROIReport       `json:"roi,omitempty"`
	Flags      []contracts.DiagnosticFlag `json:"flags,omitempty"`
	Err        error                      `json:"-"`
}

// EstimationResult holds every SKU fit of one estimation pass
type EstimationResult struct {
	Dataset  *featurestore.Dataset
	Fits     []SKUFit                     // sorted by SKU
	Clusters []*contracts.ElasticityModel // pooled group fits, cluster_by: group only
	Stored   int
	Duration time.Duration
}

// Fit returns the fit of a SKU
func (r *EstimationResult) Fit(sku string) (SKUFit, bool) {
	for _, f := range r.Fits {
		if f.SKU == sku {
			return f, true
		}
	}
	return SKUFit{}, false
}

// flags returns the estimation-time diagnostics per SKU
func (r *EstimationResult) flags() map[string][]contracts.DiagnosticFlag {
	out := make(map[string][]contracts.DiagnosticFlag, len(r.Fits))
	for _, f := range r.Fits {
		if len(f.Flags) > 0 {
			out[f.SKU] = f.Flags
		}
	}
	return out
}

// RunResult holds the results of a complete pipeline run
type RunResult struct {
	Estimation *EstimationResult
	Scenario   *contracts.OptimizationScenario
	Solution   *contracts.Solution
	Result     *contracts.ScenarioResult
	Duration   time.Duration
}

// Run executes estimation and optimization for one scenario
func (o *Orchestrator) Run(ctx context.Context, cfg RunConfig) (*RunResult, error) {
	start := o.now()

	est, err := o.Estimate(ctx, cfg)
	if err != nil {
		return nil, err
	}

	products := make([]contracts.Product, 0, len(est.Dataset.Products))
	for _, sku := range est.Dataset.SKUs() {
		products = append(products, est.Dataset.Products[sku])
	}

	run, err := o.optimize(ctx, cfg, products, est.flags())
	if run != nil {
		run.Estimation = est
		run.Duration = o.now().Sub(start)
	}
	return run, err
}

// Optimize runs a scenario on the fits already in the model store.
// SKUs without a valid fit are assembled as no_recommendation.
func (o *Orchestrator) Optimize(ctx context.Context, cfg RunConfig) (*RunResult, error) {
	start := o.now()
	products, err := o.reader.Products(ctx, cfg.SKUs)
	if err != nil {
		return nil, fmt.Errorf("read products: %w", err)
	}
	if len(products) == 0 {
		return nil, fmt.Errorf("no products found for %d skus", len(cfg.SKUs))
	}

	run, err := o.optimize(ctx, cfg, products, nil)
	if run != nil {
		run.Duration = o.now().Sub(start)
	}
	return run, err
}

// Estimate fits every SKU on a bounded worker pool and stores the fits.
// Only a fully malformed batch aborts; per-SKU problems degrade to diagnostics.
func (o *Orchestrator) Estimate(ctx context.Context, cfg RunConfig) (*EstimationResult, error) {
	start := o.now()

	loadStart := time.Now()
	ds, err := featurestore.Load(ctx, o.reader, cfg.SKUs, cfg.From, cfg.To)
	if err != nil {
		return nil, fmt.Errorf("load features: %w", err)
	}
	o.metrics.ObserveStage(StageLoad, time.Since(loadStart))
	if ds.Report.Malformed > 0 {
		o.logger.WithFields(map[string]interface{}{
			"malformed": ds.Report.Malformed,
			"total":     ds.Report.Total,
			"skus":      len(ds.Report.MalformedBySKU),
		}).Warn("Dropped malformed observations")
	}

	workers := cfg.Config.Workers
	if workers < 1 {
		workers = 1
	}
	skus := ds.SKUs()

	o.logger.WithFields(map[string]interface{}{
		"skus":         len(skus),
		"observations": ds.Report.Valid,
		"workers":      workers,
	}).Info("Starting estimation")

	stageStart := time.Now()
	fits, err := o.fitAll(ctx, cfg.Config, ds, skus, workers)
	if err != nil {
		return nil, err
	}
	var clusters []*contracts.ElasticityModel
	if cfg.Config.Estimation.ClusterBy == contracts.ClusterByGroup {
		clusters, err = o.fitClusters(ctx, cfg.Config, ds)
		if err != nil {
			return nil, err
		}
	}
	o.metrics.ObserveStage(StageEstimate, time.Since(stageStart))

	// barrier 이후 단일 writer 경로에서만 모델 저장
	stored := o.store(ctx, fits)
	for _, m := range clusters {
		if o.put(m.Key, modelstore.TypeElasticity, o.models.PutElasticity(ctx, m)) {
			stored++
		}
		o.metrics.RecordFit(string(modelstore.TypeElasticity), string(m.Quality))
	}

	result := &EstimationResult{
		Dataset:  ds,
		Fits:     fits,
		Clusters: clusters,
		Stored:   stored,
		Duration: o.now().Sub(start),
	}

	o.logger.WithFields(map[string]interface{}{
		"skus":   len(fits),
		"stored": stored,
	}).Info("Estimation completed")

	return result, nil
}

// fitAll runs one task per SKU and waits for all of them
func (o *Orchestrator) fitAll(ctx context.Context, sc contracts.ScenarioConfig, ds *featurestore.Dataset, skus []string, workers int) ([]SKUFit, error) {
	zl := o.logger.Zerolog()
	stages := skuStages{
		config:     sc,
		estimator:  elasticity.NewEstimator(sc.Estimation, sc.ModelTTL, zl).WithClock(o.now),
		forecaster: forecast.NewForecaster(sc.Forecast, sc.ModelTTL, zl).WithClock(o.now),
		analyzer:   promotion.NewAnalyzer(sc.Promotion, zl),
	}

	skuCh := make(chan string, len(skus))
	resultCh := make(chan SKUFit, len(skus))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sku := range skuCh {
				if err := ctx.Err(); err != nil {
					resultCh <- SKUFit{SKU: sku, Err: err}
					continue
				}
				resultCh <- stages.fit(ds.Products[sku], ds.Observations[sku])
			}
		}()
	}

	for _, sku := range skus {
		skuCh <- sku
	}
	close(skuCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	fits := make([]SKUFit, 0, len(skus))
	for f := range resultCh {
		fits = append(fits, f)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Slice(fits, func(i, j int) bool { return fits[i].SKU < fits[j].SKU })
	return fits, nil
}

// fitClusters pools the observations of each product group into one fixed-effects
// fit. Groups with a single SKU keep their per-SKU fit.
func (o *Orchestrator) fitClusters(ctx context.Context, sc contracts.ScenarioConfig, ds *featurestore.Dataset) ([]*contracts.ElasticityModel, error) {
	members := make(map[string][]string)
	for _, sku := range ds.SKUs() {
		if g := ds.Products[sku].Group; g != "" {
			members[g] = append(members[g], sku)
		}
	}
	groups := make([]string, 0, len(members))
	for g, skus := range members {
		if len(skus) > 1 {
			groups = append(groups, g)
		}
	}
	sort.Strings(groups)

	estimator := elasticity.NewEstimator(sc.Estimation, sc.ModelTTL, o.logger.Zerolog()).WithClock(o.now)
	clusters := make([]*contracts.ElasticityModel, 0, len(groups))
	for _, g := range groups {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var obs []contracts.Observation
		for _, sku := range members[g] {
			obs = append(obs, ds.Observations[sku]...)
		}
		m, err := estimator.EstimateCluster(contracts.ClusterKey(g), obs)
		if err != nil {
			o.logger.WithError(err).WithField("group", g).Warn("Cluster fit failed")
			continue
		}
		o.logger.WithFields(map[string]interface{}{
			"group":      g,
			"skus":       len(m.SKUs),
			"elasticity": m.Elasticity,
			"quality":    m.Quality,
		}).Info("Cluster fitted")
		clusters = append(clusters, m)
	}
	return clusters, nil
}

// elasticityFor picks the pooled group fit when clustering is on and the fit was
// estimated on the SKU, otherwise the SKU's own fit
func (o *Orchestrator) elasticityFor(mode contracts.ClusterMode, p contracts.Product) (*contracts.ElasticityModel, bool) {
	if mode == contracts.ClusterByGroup && p.Group != "" {
		if m, ok := o.models.LatestElasticity(contracts.ClusterKey(p.Group)); ok && m.Covers(p.SKU) {
			return m, true
		}
	}
	return o.models.LatestElasticity(p.SKU)
}

// store writes the fits to the model store and records metrics
func (o *Orchestrator) store(ctx context.Context, fits []SKUFit) int {
	stored := 0
	for _, f := range fits {
		if f.Err != nil {
			o.logger.WithError(f.Err).WithField("sku", f.SKU).Warn("SKU fit failed")
			continue
		}
		if f.Elasticity != nil {
			if o.put(f.SKU, modelstore.TypeElasticity, o.models.PutElasticity(ctx, f.Elasticity)) {
				stored++
			}
			o.metrics.RecordFit(string(modelstore.TypeElasticity), string(f.Elasticity.Quality))
			if f.Elasticity.Quality.Actionable() {
				o.metrics.SetElasticity(f.SKU, f.Elasticity.Elasticity)
			}
		}
		if f.Forecast != nil {
			if o.put(f.SKU, modelstore.TypeForecast, o.models.PutForecast(ctx, f.Forecast)) {
				stored++
			}
			o.metrics.RecordFit(string(modelstore.TypeForecast), string(f.Forecast.Mode))
			if f.ROI != nil && o.put(f.SKU, modelstore.TypeROI, o.models.PutROI(ctx, f.ROI, f.Forecast.FittedAt)) {
				stored++
			}
		}
	}
	return stored
}

func (o *Orchestrator) put(sku string, typ modelstore.ModelType, err error) bool {
	switch {
	case err == nil:
		return true
	case errors.Is(err, modelstore.ErrVersionExists):
		o.logger.WithFields(map[string]interface{}{"sku": sku, "model": typ}).Debug("Model version already stored")
	default:
		o.logger.WithError(err).WithFields(map[string]interface{}{"sku": sku, "model": typ}).Error("Failed to store model")
	}
	return false
}

// optimize snapshots the latest fits into a scenario and runs the joint stages
func (o *Orchestrator) optimize(ctx context.Context, cfg RunConfig, products []contracts.Product, flags map[string][]contracts.DiagnosticFlag) (*RunResult, error) {
	id := cfg.ScenarioID
	if id == "" {
		id = NewScenarioID()
	}

	items := make([]contracts.SKUInput, 0, len(products))
	for _, p := range products {
		it := contracts.SKUInput{Product: p, Flags: flags[p.SKU]}
		if m, ok := o.elasticityFor(cfg.Config.Estimation.ClusterBy, p); ok {
			it.Elasticity = m
		}
		if m, ok := o.models.LatestForecast(p.SKU); ok {
			it.Forecast = m
		}
		if r, ok := o.models.LatestROI(p.SKU); ok && it.Forecast != nil && r.ForecastFitID == it.Forecast.FitID {
			it.ROI = r
		}
		items = append(items, it)
	}

	// ⭐ 제출 시점 스냅샷: 이후 재추정은 이 시나리오에 영향 없음
	scenario, err := contracts.NewScenario(id, o.now(), cfg.Config, items)
	if err != nil {
		return nil, err
	}
	scenario.ConfigHash = cfg.ConfigHash

	o.logger.WithFields(map[string]interface{}{
		"scenario_id": id,
		"skus":        len(scenario.Items),
		"constraints": len(scenario.Constraints()),
	}).Info("Scenario submitted")

	stageStart := time.Now()
	solution, err := portfolio.NewOptimizer(o.logger).Optimize(ctx, scenario)
	var infeasible *contracts.InfeasibleScenarioError
	if err != nil && !errors.As(err, &infeasible) {
		return nil, fmt.Errorf("optimize scenario %s: %w", id, err)
	}
	o.metrics.ObserveStage(StageOptimize, time.Since(stageStart))

	stageStart = time.Now()
	assembler := recommend.NewAssembler(cfg.Config.Estimation.MinSampleSize, o.logger.Zerolog()).WithClock(o.now)
	result, err := assembler.Assemble(scenario, solution)
	if err != nil {
		return nil, fmt.Errorf("assemble scenario %s: %w", id, err)
	}
	o.metrics.ObserveStage(StageAssemble, time.Since(stageStart))

	// 저장에 성공한 결과만 발행: 같은 id로 두 번째 결과가 나가지 않음
	if err := o.results.SaveResult(ctx, result); err != nil {
		return nil, fmt.Errorf("save scenario %s: %w", id, err)
	}

	o.metrics.RecordScenario(string(result.Status), result.Iterations)
	for _, d := range result.Diagnostics {
		o.metrics.RecordDiagnostic(string(d.Flag))
	}

	if o.publisher != nil {
		stageStart = time.Now()
		if err := o.publisher.Publish(ctx, result); err != nil {
			// 발행 실패는 시나리오 결과를 바꾸지 않음 (저장 완료 상태)
			o.logger.WithError(err).WithField("scenario_id", id).Warn("Publish failed")
		}
		o.metrics.ObserveStage(StagePublish, time.Since(stageStart))
	}

	o.logger.WithFields(map[string]interface{}{
		"scenario_id": id,
		"status":      result.Status,
		"iterations":  result.Iterations,
		"diagnostics": len(result.Diagnostics),
	}).Info("Scenario completed")

	return &RunResult{
		Scenario: scenario,
		Solution: solution,
		Result:   result,
	}, nil
}

// NewScenarioID generates a unique scenario ID
func NewScenarioID() string {
	return "scn_" + uuid.NewString()
}
