package featurestore

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/wonny/rgm/internal/contracts"
)

// PostgresReader reads rgm.products / rgm.observations / rgm.promotion_events
// ⭐ SSOT: 코어는 읽기 전용. 수집/정제는 feature store 소유
type PostgresReader struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

// NewPostgresReader creates a new PostgreSQL feature reader
func NewPostgresReader(pool *pgxpool.Pool, log zerolog.Logger) *PostgresReader {
	return &PostgresReader{
		pool: pool,
		log:  log.With().Str("component", "featurestore.postgres").Logger(),
	}
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

func productsQuery(skus []string) (string, []interface{}, error) {
	q := psql.
		Select("sku_id", "name", "product_group", "pack_size", "unit_cost", "current_price").
		From("rgm.products").
		OrderBy("sku_id")
	if len(skus) > 0 {
		q = q.Where(sq.Eq{"sku_id": skus})
	}
	return q.ToSql()
}

func observationsQuery(skus []string, from, to time.Time) (string, []interface{}, error) {
	q := psql.
		Select("sku_id", "period", "price", "units_sold", "promotion_flag", "discount_depth",
			"competitor_price", "seasonality_index", "unit_cost").
		From("rgm.observations").
		OrderBy("sku_id", "period")
	return periodFilter(q, "period", skus, from, to).ToSql()
}

func promotionsQuery(skus []string, from, to time.Time) (string, []interface{}, error) {
	q := psql.
		Select("sku_id", "period", "promotion_id", "COALESCE(mechanic, '') AS mechanic", "discount_depth", "cost").
		From("rgm.promotion_events").
		OrderBy("sku_id", "period", "promotion_id")
	return periodFilter(q, "period", skus, from, to).ToSql()
}

func periodFilter(q sq.SelectBuilder, col string, skus []string, from, to time.Time) sq.SelectBuilder {
	if len(skus) > 0 {
		q = q.Where(sq.Eq{"sku_id": skus})
	}
	if !from.IsZero() {
		q = q.Where(sq.GtOrEq{col: from})
	}
	if !to.IsZero() {
		q = q.Where(sq.LtOrEq{col: to})
	}
	return q
}

// Products returns catalog rows for the SKUs (all when skus is empty)
func (r *PostgresReader) Products(ctx context.Context, skus []string) ([]contracts.Product, error) {
	query, args, err := productsQuery(skus)
	if err != nil {
		return nil, fmt.Errorf("build products query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
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

// Observations returns the rows of the SKUs within [from, to] with their promotion events
func (r *PostgresReader) Observations(ctx context.Context, skus []string, from, to time.Time) ([]contracts.Observation, error) {
	start := time.Now()

	query, args, err := observationsQuery(skus, from, to)
	if err != nil {
		return nil, fmt.Errorf("build observations query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query observations: %w", err)
	}
	defer rows.Close()

	obs := make([]contracts.Observation, 0, 1024)
	index := make(map[obsKey]int)
	for rows.Next() {
		var o contracts.Observation
		var price, units pgtype.Float8
		err := rows.Scan(
			&o.SKU, &o.Period, &price, &units, &o.PromotionFlag, &o.DiscountDepth,
			&o.CompetitorPrice, &o.SeasonalityIndex, &o.UnitCost,
		)
		if err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		o.Price = required(price.Float64, price.Valid)
		o.UnitsSold = required(units.Float64, units.Valid)
		index[obsKey{o.SKU, o.Period.UnixNano()}] = len(obs)
		obs = append(obs, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	attached, err := r.attachPromotions(ctx, obs, index, skus, from, to)
	if err != nil {
		return nil, err
	}

	r.log.Debug().
		Int("skus", len(skus)).
		Int("rows", len(obs)).
		Int("promotion_events", attached).
		Dur("duration", time.Since(start)).
		Msg("Observations loaded")

	return obs, nil
}

type obsKey struct {
	sku   string
	nanos int64
}

func (r *PostgresReader) attachPromotions(ctx context.Context, obs []contracts.Observation, index map[obsKey]int, skus []string, from, to time.Time) (int, error) {
	query, args, err := promotionsQuery(skus, from, to)
	if err != nil {
		return 0, fmt.Errorf("build promotions query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("query promotion events: %w", err)
	}
	defer rows.Close()

	attached := 0
	for rows.Next() {
		var sku string
		var period time.Time
		var ev contracts.PromotionEvent
		if err := rows.Scan(&sku, &period, &ev.PromotionID, &ev.Mechanic, &ev.DiscountDepth, &ev.Cost); err != nil {
			return attached, fmt.Errorf("scan promotion event: %w", err)
		}
		i, ok := index[obsKey{sku, period.UnixNano()}]
		if !ok {
			continue
		}
		obs[i].Promotions = append(obs[i].Promotions, ev)
		attached++
	}
	return attached, rows.Err()
}
