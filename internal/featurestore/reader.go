package featurestore

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/wonny/rgm/internal/contracts"
	"github.com/wonny/rgm/pkg/config"
)

// Open builds the configured reader. The memory backend has no external source,
// so callers construct NewMemoryReader themselves.
func Open(cfg *config.Config, pool *pgxpool.Pool, log zerolog.Logger) (contracts.FeatureReader, func() error, error) {
	noop := func() error { return nil }
	switch cfg.FeatureStore {
	case config.FeatureStorePostgres:
		if pool == nil {
			return nil, noop, fmt.Errorf("postgres feature store requires a database pool")
		}
		return NewPostgresReader(pool, log), noop, nil
	case config.FeatureStoreClickHouse:
		r, err := NewClickHouseReader(cfg.ClickHouse, log)
		if err != nil {
			return nil, noop, err
		}
		return r, r.Close, nil
	default:
		return nil, noop, fmt.Errorf("feature store %q has no external reader", cfg.FeatureStore)
	}
}

// Dataset is one validated read of the feature store
type Dataset struct {
	Products     map[string]contracts.Product
	Observations map[string][]contracts.Observation // per SKU, sorted by period
	Report       *QualityReport
}

// SKUs returns the products' SKUs in sorted order
func (d *Dataset) SKUs() []string {
	skus := make([]string, 0, len(d.Products))
	for sku := range d.Products {
		skus = append(skus, sku)
	}
	sortStrings(skus)
	return skus
}

// Load reads products and observations and runs the quality gate.
// A SKU without a catalog row is dropped from the dataset.
func Load(ctx context.Context, reader contracts.FeatureReader, skus []string, from, to time.Time) (*Dataset, error) {
	products, err := reader.Products(ctx, skus)
	if err != nil {
		return nil, fmt.Errorf("read products: %w", err)
	}
	if len(products) == 0 {
		return nil, fmt.Errorf("no products found for %d skus", len(skus))
	}
	if len(skus) == 0 {
		for _, p := range products {
			skus = append(skus, p.SKU)
		}
	}

	raw, err := reader.Observations(ctx, skus, from, to)
	if err != nil {
		return nil, fmt.Errorf("read observations: %w", err)
	}
	valid, report, err := Validate(raw)
	if err != nil {
		return nil, err
	}

	ds := &Dataset{
		Products:     make(map[string]contracts.Product, len(products)),
		Observations: contracts.GroupBySKU(valid),
		Report:       report,
	}
	for _, p := range products {
		ds.Products[p.SKU] = p
	}
	for sku := range ds.Observations {
		if _, ok := ds.Products[sku]; !ok {
			delete(ds.Observations, sku)
		}
	}
	return ds, nil
}
