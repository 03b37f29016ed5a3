package database

import (
	"context"
	"fmt"
	"strings"
)

// schema is the rgm namespace: observation tables are read by the feature store,
// scenario tables are written once per scenario by the recommendation repository.
var schema = []string{
	`CREATE SCHEMA IF NOT EXISTS rgm`,
	`CREATE TABLE IF NOT EXISTS rgm.products (
		sku_id        TEXT PRIMARY KEY,
		name          TEXT NOT NULL DEFAULT '',
		product_group TEXT NOT NULL DEFAULT '',
		pack_size     DOUBLE PRECISION NOT NULL DEFAULT 1,
		unit_cost     DOUBLE PRECISION NOT NULL DEFAULT 0,
		current_price DOUBLE PRECISION NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS rgm.observations (
		sku_id            TEXT NOT NULL,
		period            DATE NOT NULL,
		price             DOUBLE PRECISION,
		units_sold        DOUBLE PRECISION,
		promotion_flag    BOOLEAN NOT NULL DEFAULT FALSE,
		discount_depth    DOUBLE PRECISION NOT NULL DEFAULT 0,
		competitor_price  DOUBLE PRECISION,
		seasonality_index DOUBLE PRECISION,
		unit_cost         DOUBLE PRECISION,
		PRIMARY KEY (sku_id, period)
	)`,
	`CREATE TABLE IF NOT EXISTS rgm.promotion_events (
		sku_id         TEXT NOT NULL,
		period         DATE NOT NULL,
		promotion_id   TEXT NOT NULL,
		mechanic       TEXT,
		discount_depth DOUBLE PRECISION NOT NULL,
		cost           DOUBLE PRECISION NOT NULL DEFAULT 0,
		PRIMARY KEY (sku_id, period, promotion_id)
	)`,
	`CREATE TABLE IF NOT EXISTS rgm.scenarios (
		scenario_id  TEXT PRIMARY KEY,
		status       TEXT NOT NULL,
		submitted_at TIMESTAMPTZ NOT NULL,
		completed_at TIMESTAMPTZ NOT NULL,
		config_hash  TEXT NOT NULL DEFAULT '',
		iterations   INTEGER NOT NULL DEFAULT 0,
		objective    DOUBLE PRECISION NOT NULL DEFAULT 0,
		violations   JSONB,
		diagnostics  JSONB
	)`,
	`CREATE TABLE IF NOT EXISTS rgm.recommendations (
		scenario_id            TEXT NOT NULL REFERENCES rgm.scenarios (scenario_id),
		sku_id                 TEXT NOT NULL,
		current_price          DOUBLE PRECISION NOT NULL,
		recommended_price      DOUBLE PRECISION,
		promotion_plan         JSONB,
		expected_volume_delta  DOUBLE PRECISION NOT NULL DEFAULT 0,
		expected_margin_delta  DOUBLE PRECISION NOT NULL DEFAULT 0,
		expected_revenue_delta DOUBLE PRECISION NOT NULL DEFAULT 0,
		confidence_tier        TEXT NOT NULL,
		elasticity             DOUBLE PRECISION NOT NULL DEFAULT 0,
		elasticity_fit_id      TEXT NOT NULL DEFAULT '',
		forecast_fit_id        TEXT NOT NULL DEFAULT '',
		actionable             BOOLEAN NOT NULL DEFAULT FALSE,
		flags                  TEXT[],
		generated_at           TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (scenario_id, sku_id)
	)`,
}

// Schema returns the DDL statements in execution order
func Schema() []string {
	return append([]string(nil), schema...)
}

// EnsureSchema creates the rgm tables when missing. Existing tables are left untouched.
func (db *DB) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := db.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema (%s): %w", firstLine(stmt), err)
		}
	}
	return nil
}

func firstLine(stmt string) string {
	if i := strings.IndexByte(stmt, '('); i > 0 {
		return strings.TrimSpace(stmt[:i])
	}
	return stmt
}
