package rgmconfig

import (
	"fmt"

	"github.com/wonny/rgm/internal/contracts"
)

// ValidationError 검증 실패 (실행 중단)
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Warning 권장 위반 (경고만)
type Warning struct {
	Code    string
	Message string
}

// Validate checks the file-level fields, then the core configuration
func Validate(cfg *Config) error {
	if cfg.Meta.Name == "" {
		return ValidationError{"meta.name", "required"}
	}
	if cfg.Scope.HistoryWeeks < 0 {
		return ValidationError{"scope.history_weeks", "must be >= 0"}
	}
	seen := make(map[string]bool, len(cfg.Scope.SKUs))
	for _, sku := range cfg.Scope.SKUs {
		if sku == "" {
			return ValidationError{"scope.skus", "empty sku"}
		}
		if seen[sku] {
			return ValidationError{"scope.skus", "duplicate sku " + sku}
		}
		seen[sku] = true
	}
	for i, name := range cfg.Estimation.Confounders {
		if !knownConfounder(contracts.Confounder(name)) {
			return ValidationError{fmt.Sprintf("estimation.confounders[%d]", i), "unknown confounder " + name}
		}
	}
	if cfg.Runtime.Workers < 1 {
		return ValidationError{"runtime.workers", "must be >= 1"}
	}

	sc, err := cfg.ToScenarioConfig()
	if err != nil {
		return err
	}
	if sc.ModelTTL < 0 {
		return ValidationError{"runtime.model_ttl", "must be >= 0"}
	}
	if err := sc.Validate(); err != nil {
		return ValidationError{"scenario", err.Error()}
	}
	return nil
}

// Warn checks recommended settings (non-fatal)
func Warn(cfg *Config) []Warning {
	var warnings []Warning

	// 주간 데이터 1년 미만이면 탄력성 신뢰도 낮음
	if cfg.Estimation.MinSampleSize < 26 {
		warnings = append(warnings, Warning{
			Code:    "LOW_MIN_SAMPLE",
			Message: "min_sample_size < 26: low_sample fits may be treated as reliable",
		})
	}

	if cfg.Scope.HistoryWeeks > 0 && cfg.Scope.HistoryWeeks < 2*cfg.Forecast.SeasonLength {
		warnings = append(warnings, Warning{
			Code:    "SHORT_HISTORY",
			Message: "history_weeks < 2 seasons: every baseline falls back to a moving average",
		})
	}

	hasMove := false
	for _, c := range cfg.Constraints {
		if c.Kind == contracts.ConstraintMaxPriceChange {
			hasMove = true
			if c.Value > 0.30 {
				warnings = append(warnings, Warning{
					Code:    "WIDE_PRICE_MOVE",
					Message: fmt.Sprintf("constraint %s allows moves above 30%%: far outside observed prices", c.ID),
				})
			}
		}
	}
	if !hasMove {
		warnings = append(warnings, Warning{
			Code:    "UNBOUNDED_PRICE_MOVE",
			Message: "no max_price_change_pct constraint: prices may move 0.5x-2x",
		})
	}

	return warnings
}

func knownConfounder(c contracts.Confounder) bool {
	for _, k := range contracts.DefaultConfounders() {
		if k == c {
			return true
		}
	}
	return false
}
