package jobs

import (
	"context"
	"fmt"

	"github.com/wonny/rgm/internal/contracts"
	"github.com/wonny/rgm/internal/modelstore"
	"github.com/wonny/rgm/pkg/logger"
)

// ModelWarmJob pulls fits written by other instances from the shared mirror
type ModelWarmJob struct {
	models *modelstore.Store
	reader contracts.FeatureReader
	skus   []string
	logger *logger.Logger
}

// NewModelWarmJob creates a new warm-up job. Empty skus means the whole catalog.
func NewModelWarmJob(models *modelstore.Store, reader contracts.FeatureReader, skus []string, log *logger.Logger) *ModelWarmJob {
	return &ModelWarmJob{
		models: models,
		reader: reader,
		skus:   skus,
		logger: log,
	}
}

// Name returns the job name
func (j *ModelWarmJob) Name() string {
	return "model_warm"
}

// Schedule returns the cron schedule (every 15 minutes)
func (j *ModelWarmJob) Schedule() string {
	return "0 */15 * * * *"
}

// Run loads the newest mirrored fits into the local store
func (j *ModelWarmJob) Run(ctx context.Context) error {
	skus := j.skus
	if len(skus) == 0 {
		products, err := j.reader.Products(ctx, nil)
		if err != nil {
			return fmt.Errorf("read products: %w", err)
		}
		for _, p := range products {
			skus = append(skus, p.SKU)
		}
	}

	n, err := j.models.Warm(ctx, skus)
	if err != nil {
		return fmt.Errorf("warm models: %w", err)
	}

	if n > 0 {
		j.logger.WithField("loaded", n).Info("Model warm-up completed")
	}
	return nil
}
