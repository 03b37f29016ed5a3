package recommend

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/wonny/rgm/internal/contracts"
)

// Assembler merges optimizer output with fit metadata into Recommendation records
// ⭐ SSOT: 추적성 검사 (ElasticityModel + ForecastModel fit 각 1개, 제출 시점 유효)
type Assembler struct {
	minSampleSize int
	now           func() time.Time
	log           zerolog.Logger
}

// NewAssembler creates a new recommendation assembler.
// minSampleSize is the estimator threshold; a reliable fit with twice that sample is tiered high.
func NewAssembler(minSampleSize int, log zerolog.Logger) *Assembler {
	return &Assembler{
		minSampleSize: minSampleSize,
		now:           time.Now,
		log:           log.With().Str("component", "recommend.assembler").Logger(),
	}
}

// WithClock overrides the timestamp source
func (a *Assembler) WithClock(now func() time.Time) *Assembler {
	a.now = now
	return a
}

// Assemble emits exactly one Recommendation per scenario SKU
func (a *Assembler) Assemble(scenario *contracts.OptimizationScenario, solution *contracts.Solution) (*contracts.ScenarioResult, error) {
	if scenario == nil || solution == nil {
		return nil, fmt.Errorf("scenario and solution are required")
	}
	if solution.ScenarioID != scenario.ID {
		return nil, fmt.Errorf("solution %s does not belong to scenario %s", solution.ScenarioID, scenario.ID)
	}

	generatedAt := a.now().UTC()
	result := &contracts.ScenarioResult{
		ScenarioID:      scenario.ID,
		Status:          contracts.StatusCompleted,
		SubmittedAt:     scenario.SubmittedAt,
		CompletedAt:     generatedAt,
		ConfigHash:      scenario.ConfigHash,
		Recommendations: make([]contracts.Recommendation, 0, len(scenario.Items)),
		Iterations:      solution.Iterations,
		Objective:       solution.Objective,
	}
	infeasible := solution.Status == contracts.StatusInfeasible
	if infeasible {
		result.Status = contracts.StatusInfeasible
		result.Violations = append([]contracts.ConstraintViolation(nil), solution.Violations...)
	}

	for _, it := range scenario.Items {
		decision, ok := solution.Decision(it.Product.SKU)
		rec, diags := a.assembleSKU(scenario, it, decision, ok, infeasible)
		rec.GeneratedAt = generatedAt
		result.Recommendations = append(result.Recommendations, rec)
		result.Diagnostics = append(result.Diagnostics, diags...)

		if !rec.Actionable && result.Status == contracts.StatusCompleted {
			result.Status = contracts.StatusPartial
		}
	}

	a.log.Info().
		Str("scenario_id", scenario.ID).
		Str("status", string(result.Status)).
		Int("recommendations", len(result.Recommendations)).
		Int("diagnostics", len(result.Diagnostics)).
		Msg("Scenario assembled")

	return result, nil
}

func (a *Assembler) assembleSKU(scenario *contracts.OptimizationScenario, it contracts.SKUInput, d contracts.SKUDecision, decided, infeasible bool) (contracts.Recommendation, []contracts.Diagnostic) {
	sku := it.Product.SKU
	rec := contracts.Recommendation{
		ScenarioID:     scenario.ID,
		SKU:            sku,
		CurrentPrice:   it.Product.CurrentPrice,
		ConfidenceTier: contracts.TierLow,
	}
	ds := newDiagnosticSet(sku)
	for _, f := range it.Flags {
		ds.add(f, "")
	}

	// 1. traceability: 두 fit 모두 존재하고 제출 시점에 유효해야 함
	switch {
	case it.Elasticity == nil || it.Forecast == nil:
		ds.add(contracts.FlagNoRecommendation, "missing model fit")
		return ds.finish(rec)
	case !it.Elasticity.ValidAt(scenario.SubmittedAt) || !it.Forecast.ValidAt(scenario.SubmittedAt):
		ds.add(contracts.FlagStaleModel, "model fit expired before submission")
		ds.add(contracts.FlagNoRecommendation, "stale model fit")
		return ds.finish(rec)
	}

	rec.Elasticity = it.Elasticity.Elasticity
	rec.ElasticityFitID = it.Elasticity.FitID
	rec.ForecastFitID = it.Forecast.FitID

	switch it.Elasticity.Quality {
	case contracts.FitUnidentifiable:
		ds.add(contracts.FlagUnidentifiable, it.Elasticity.QualityReason)
	case contracts.FitLowSample:
		ds.add(contracts.FlagLowSample, fmt.Sprintf("sample %d below %d", it.Elasticity.SampleSize, a.minSampleSize))
	}
	if it.Elasticity.WeakFit && it.Elasticity.Quality != contracts.FitUnidentifiable {
		ds.add(contracts.FlagWeakFit, fmt.Sprintf("r² %.2f", it.Elasticity.RSquared))
	}
	if it.Forecast.InsufficientHistory {
		ds.add(contracts.FlagInsufficientHistory, "moving-average baseline")
	}
	if it.ROI != nil && len(it.ROI.AmbiguousPeriods) > 0 {
		ds.add(contracts.FlagAmbiguousAttribution, fmt.Sprintf("%d periods excluded", len(it.ROI.AmbiguousPeriods)))
	}

	if !decided {
		ds.add(contracts.FlagNoRecommendation, "sku missing from solution")
		return ds.finish(rec)
	}
	if d.Excluded {
		ds.add(contracts.FlagNoRecommendation, d.Reason)
		return ds.finish(rec)
	}
	if infeasible {
		// infeasible 시나리오는 가격을 내보내지 않음 (위반된 가격 세트 노출 금지)
		return ds.finish(rec)
	}

	price := d.RecommendedPrice
	rec.RecommendedPrice = &price
	rec.PromotionPlan = d.PromotionPlan
	rec.ExpectedVolumeDelta = d.ProjectedUnits - d.BaselineUnits
	rec.ExpectedRevenueDelta = d.ProjectedRevenue - d.BaselineRevenue
	rec.ExpectedMarginDelta = d.ProjectedMargin - d.BaselineMargin
	rec.ConfidenceTier = a.tier(it)
	rec.Actionable = !d.Held && it.Elasticity.Quality.Actionable()
	return ds.finish(rec)
}

// tier maps fit quality and sample size to a confidence tier:
//
//	high   reliable, sample >= 2 × min_sample_size, full-history forecast, r² above the minimum
//	medium reliable otherwise
//	low    low_sample or insufficient_history
func (a *Assembler) tier(it contracts.SKUInput) contracts.ConfidenceTier {
	if it.Elasticity.Quality != contracts.FitReliable || it.Forecast.InsufficientHistory {
		return contracts.TierLow
	}
	if it.Elasticity.SampleSize >= 2*a.minSampleSize && !it.Elasticity.WeakFit {
		return contracts.TierHigh
	}
	return contracts.TierMedium
}

// diagnosticSet collects the distinct flags raised for one SKU, in raise order
type diagnosticSet struct {
	sku   string
	seen  map[contracts.DiagnosticFlag]bool
	diags []contracts.Diagnostic
}

func newDiagnosticSet(sku string) *diagnosticSet {
	return &diagnosticSet{sku: sku, seen: make(map[contracts.DiagnosticFlag]bool)}
}

func (s *diagnosticSet) add(flag contracts.DiagnosticFlag, detail string) {
	if s.seen[flag] {
		return
	}
	s.seen[flag] = true
	s.diags = append(s.diags, contracts.Diagnostic{SKU: s.sku, Flag: flag, Detail: detail})
}

func (s *diagnosticSet) finish(rec contracts.Recommendation) (contracts.Recommendation, []contracts.Diagnostic) {
	for _, d := range s.diags {
		rec.Flags = append(rec.Flags, d.Flag)
	}
	return rec, s.diags
}
