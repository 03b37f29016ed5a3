package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/rgm/internal/brain"
	"github.com/wonny/rgm/internal/contracts"
	"github.com/wonny/rgm/internal/rgmconfig"
	"github.com/wonny/rgm/pkg/logger"
)

// Estimator fits and stores models for a run configuration
type Estimator interface {
	Estimate(ctx context.Context, cfg brain.RunConfig) (*brain.EstimationResult, error)
}

// ReestimateJob refits elasticity, baseline and ROI models on a schedule
// Schedule: 3 AM daily, after the nightly feature store load
type ReestimateJob struct {
	estimator Estimator
	config    *rgmconfig.Config
	schedule  string
	now       func() time.Time
	logger    *logger.Logger
}

// NewReestimateJob creates a new re-estimation job
func NewReestimateJob(estimator Estimator, cfg *rgmconfig.Config, schedule string, log *logger.Logger) *ReestimateJob {
	if schedule == "" {
		schedule = "0 0 3 * * *"
	}
	return &ReestimateJob{
		estimator: estimator,
		config:    cfg,
		schedule:  schedule,
		now:       time.Now,
		logger:    log,
	}
}

// WithClock overrides the clock used for the history window
func (j *ReestimateJob) WithClock(now func() time.Time) *ReestimateJob {
	j.now = now
	return j
}

// Name returns the job name
func (j *ReestimateJob) Name() string {
	return "reestimate_models"
}

// Schedule returns the cron schedule
func (j *ReestimateJob) Schedule() string {
	return j.schedule
}

// Run executes the re-estimation
func (j *ReestimateJob) Run(ctx context.Context) error {
	j.logger.Info("Starting scheduled re-estimation")

	sc, err := j.config.ToScenarioConfig()
	if err != nil {
		return fmt.Errorf("scenario config: %w", err)
	}
	from, to := j.config.HistoryWindow(j.now())

	result, err := j.estimator.Estimate(ctx, brain.RunConfig{
		SKUs:   j.config.Scope.SKUs,
		From:   from,
		To:     to,
		Config: sc,
	})
	if err != nil {
		return fmt.Errorf("estimate: %w", err)
	}

	counts := map[contracts.FitQuality]int{}
	failed := 0
	for _, f := range result.Fits {
		if f.Err != nil {
			failed++
			continue
		}
		if f.Elasticity != nil {
			counts[f.Elasticity.Quality]++
		}
	}

	j.logger.WithFields(map[string]interface{}{
		"skus":           len(result.Fits),
		"stored":         result.Stored,
		"reliable":       counts[contracts.FitReliable],
		"low_sample":     counts[contracts.FitLowSample],
		"unidentifiable": counts[contracts.FitUnidentifiable],
		"failed":         failed,
		"duration":       result.Duration,
	}).Info("Re-estimation completed")

	if failed > 0 && failed == len(result.Fits) {
		return fmt.Errorf("all %d sku fits failed", failed)
	}
	return nil
}
