package featurestore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	sq "github.com/Masterminds/squirrel"
	"github.com/rs/zerolog"

	"github.com/wonny/rgm/internal/contracts"
	"github.com/wonny/rgm/pkg/config"
)

// ClickHouseReader reads a columnar observations table.
// Promotions are carried as flag + depth only; per-event rows live in PostgreSQL.
type ClickHouseReader struct {
	db    *sql.DB
	table string
	log   zerolog.Logger
}

// NewClickHouseReader opens a ClickHouse connection pool and pings it
func NewClickHouseReader(cfg config.ClickHouseConfig, log zerolog.Logger) (*ClickHouseReader, error) {
	if len(cfg.Addr) == 0 {
		return nil, fmt.Errorf("clickhouse addr is required")
	}
	db := clickhouse.OpenDB(&clickhouse.Options{
		Addr: cfg.Addr,
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		DialTimeout: 5 * time.Second,
	})
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}

	return NewClickHouseReaderFromDB(db, cfg.Table, log), nil
}

// NewClickHouseReaderFromDB wraps an existing pool
func NewClickHouseReaderFromDB(db *sql.DB, table string, log zerolog.Logger) *ClickHouseReader {
	if table == "" {
		table = "observations"
	}
	return &ClickHouseReader{
		db:    db,
		table: table,
		log:   log.With().Str("component", "featurestore.clickhouse").Logger(),
	}
}

// Close closes the connection pool
func (r *ClickHouseReader) Close() error {
	return r.db.Close()
}

func (r *ClickHouseReader) productsQuery(skus []string) (string, []interface{}, error) {
	q := sq.Select("sku_id", "name", "product_group", "pack_size", "unit_cost", "current_price").
		From(r.table + "_products FINAL").
		OrderBy("sku_id")
	if len(skus) > 0 {
		q = q.Where(sq.Eq{"sku_id": skus})
	}
	return q.ToSql()
}

func (r *ClickHouseReader) observationsQuery(skus []string, from, to time.Time) (string, []interface{}, error) {
	q := sq.Select("sku_id", "period", "price", "units_sold", "promotion_flag", "discount_depth",
		"competitor_price", "seasonality_index", "unit_cost").
		From(r.table).
		OrderBy("sku_id", "period")
	return periodFilter(q, "period", skus, from, to).ToSql()
}

// Products returns catalog rows for the SKUs (all when skus is empty)
func (r *ClickHouseReader) Products(ctx context.Context, skus []string) ([]contracts.Product, error) {
	query, args, err := r.productsQuery(skus)
	if err != nil {
		return nil, fmt.Errorf("build products query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.log.Error().Err(err).Msg("clickhouse products query error")
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	products := make([]contracts.Product, 0, len(skus))
	for rows.Next() {
		var p contracts.Product
		if err := rows.Scan(&p.SKU, &p.Name, &p.Group, &p.PackSize, &p.UnitCost, &p.CurrentPrice); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// Observations returns rows of the SKUs within [from, to]
func (r *ClickHouseReader) Observations(ctx context.Context, skus []string, from, to time.Time) ([]contracts.Observation, error) {
	start := time.Now()

	query, args, err := r.observationsQuery(skus, from, to)
	if err != nil {
		return nil, fmt.Errorf("build observations query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.log.Error().Err(err).Str("table", r.table).Msg("clickhouse observations query error")
		return nil, fmt.Errorf("query observations: %w", err)
	}
	defer rows.Close()

	obs := make([]contracts.Observation, 0, 1024)
	for rows.Next() {
		var o contracts.Observation
		var promoted uint8
		var price, units sql.NullFloat64
		err := rows.Scan(
			&o.SKU, &o.Period, &price, &units, &promoted, &o.DiscountDepth,
			&o.CompetitorPrice, &o.SeasonalityIndex, &o.UnitCost,
		)
		if err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		o.Price = required(price.Float64, price.Valid)
		o.UnitsSold = required(units.Float64, units.Valid)
		o.PromotionFlag = promoted != 0
		obs = append(obs, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	r.log.Debug().
		Str("table", r.table).
		Int("rows", len(obs)).
		Dur("duration", time.Since(start)).
		Msg("clickhouse observations ok")
	return obs, nil
}
