package recommend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/rgm/internal/contracts"
)

// Repository handles scenario result persistence
// ⭐ SSOT: rgm.scenarios / rgm.recommendations 저장/조회는 여기서만
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new recommendation repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SaveResult writes the scenario and its recommendations in one transaction.
// Recommendations are immutable: an already stored scenario is left untouched.
func (r *Repository) SaveResult(ctx context.Context, result *contracts.ScenarioResult) error {
	violations, err := json.Marshal(result.Violations)
	if err != nil {
		return fmt.Errorf("failed to encode violations: %w", err)
	}
	diagnostics, err := json.Marshal(result.Diagnostics)
	if err != nil {
		return fmt.Errorf("failed to encode diagnostics: %w", err)
	}

	// Begin transaction
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		INSERT INTO rgm.scenarios (
			scenario_id, status, submitted_at, completed_at, config_hash,
			iterations, objective, violations, diagnostics
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (scenario_id) DO NOTHING
	`,
		result.ScenarioID, result.Status, result.SubmittedAt, result.CompletedAt, result.ConfigHash,
		result.Iterations, result.Objective, violations, diagnostics,
	)
	if err != nil {
		return fmt.Errorf("failed to insert scenario: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return contracts.ErrScenarioExists
	}

	query := `
		INSERT INTO rgm.recommendations (
			scenario_id, sku_id, current_price, recommended_price, promotion_plan,
			expected_volume_delta, expected_margin_delta, expected_revenue_delta,
			confidence_tier, elasticity, elasticity_fit_id, forecast_fit_id,
			actionable, flags, generated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	for _, rec := range result.Recommendations {
		var plan []byte
		if rec.PromotionPlan != nil {
			if plan, err = json.Marshal(rec.PromotionPlan); err != nil {
				return fmt.Errorf("failed to encode promotion plan: %w", err)
			}
		}
		_, err := tx.Exec(ctx, query,
			rec.ScenarioID, rec.SKU, rec.CurrentPrice, rec.RecommendedPrice, plan,
			rec.ExpectedVolumeDelta, rec.ExpectedMarginDelta, rec.ExpectedRevenueDelta,
			rec.ConfidenceTier, rec.Elasticity, rec.ElasticityFitID, rec.ForecastFitID,
			rec.Actionable, flagStrings(rec.Flags), rec.GeneratedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert recommendation %s: %w", rec.SKU, err)
		}
	}

	// Commit transaction
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetResult loads a scenario with its recommendations
func (r *Repository) GetResult(ctx context.Context, scenarioID string) (*contracts.ScenarioResult, error) {
	result, err := r.scanScenario(r.pool.QueryRow(ctx, `
		SELECT scenario_id, status, submitted_at, completed_at, config_hash,
		       iterations, objective, violations, diagnostics
		FROM rgm.scenarios
		WHERE scenario_id = $1
	`, scenarioID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, contracts.ErrScenarioNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scenario: %w", err)
	}

	recs, err := r.recommendations(ctx, scenarioID)
	if err != nil {
		return nil, err
	}
	result.Recommendations = recs
	return result, nil
}

// ListResults returns scenario summaries (without recommendations), newest first
func (r *Repository) ListResults(ctx context.Context, limit int) ([]contracts.ScenarioResult, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT scenario_id, status, submitted_at, completed_at, config_hash,
		       iterations, objective, violations, diagnostics
		FROM rgm.scenarios
		ORDER BY completed_at DESC, scenario_id
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query scenarios: %w", err)
	}
	defer rows.Close()

	results := make([]contracts.ScenarioResult, 0)
	for rows.Next() {
		res, err := r.scanScenario(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan scenario: %w", err)
		}
		results = append(results, *res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return results, nil
}

func (r *Repository) scanScenario(row pgx.Row) (*contracts.ScenarioResult, error) {
	var res contracts.ScenarioResult
	var violations, diagnostics []byte
	err := row.Scan(
		&res.ScenarioID, &res.Status, &res.SubmittedAt, &res.CompletedAt, &res.ConfigHash,
		&res.Iterations, &res.Objective, &violations, &diagnostics,
	)
	if err != nil {
		return nil, err
	}
	if len(violations) > 0 {
		if err := json.Unmarshal(violations, &res.Violations); err != nil {
			return nil, fmt.Errorf("failed to decode violations: %w", err)
		}
	}
	if len(diagnostics) > 0 {
		if err := json.Unmarshal(diagnostics, &res.Diagnostics); err != nil {
			return nil, fmt.Errorf("failed to decode diagnostics: %w", err)
		}
	}
	return &res, nil
}

func (r *Repository) recommendations(ctx context.Context, scenarioID string) ([]contracts.Recommendation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT scenario_id, sku_id, current_price, recommended_price, promotion_plan,
		       expected_volume_delta, expected_margin_delta, expected_revenue_delta,
		       confidence_tier, elasticity, elasticity_fit_id, forecast_fit_id,
		       actionable, flags, generated_at
		FROM rgm.recommendations
		WHERE scenario_id = $1
		ORDER BY sku_id
	`, scenarioID)
	if err != nil {
		return nil, fmt.Errorf("failed to query recommendations: %w", err)
	}
	defer rows.Close()

	recs := make([]contracts.Recommendation, 0)
	for rows.Next() {
		var rec contracts.Recommendation
		var plan []byte
		var flags []string
		err := rows.Scan(
			&rec.ScenarioID, &rec.SKU, &rec.CurrentPrice, &rec.RecommendedPrice, &plan,
			&rec.ExpectedVolumeDelta, &rec.ExpectedMarginDelta, &rec.ExpectedRevenueDelta,
			&rec.ConfidenceTier, &rec.Elasticity, &rec.ElasticityFitID, &rec.ForecastFitID,
			&rec.Actionable, &flags, &rec.GeneratedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recommendation: %w", err)
		}
		if len(plan) > 0 {
			rec.PromotionPlan = &contracts.PromotionPlan{}
			if err := json.Unmarshal(plan, rec.PromotionPlan); err != nil {
				return nil, fmt.Errorf("failed to decode promotion plan: %w", err)
			}
		}
		for _, f := range flags {
			rec.Flags = append(rec.Flags, contracts.DiagnosticFlag(f))
		}
		recs = append(recs, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return recs, nil
}

func flagStrings(flags []contracts.DiagnosticFlag) []string {
	out := make([]string, len(flags))
	for i, f := range flags {
		out[i] = string(f)
	}
	return out
}
