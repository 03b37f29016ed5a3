package contracts

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel errors, matched with errors.Is
var (
	ErrDataQuality          = errors.New("data quality")
	ErrInfeasibleScenario   = errors.New("infeasible scenario")
	ErrAmbiguousAttribution = errors.New("ambiguous attribution")
	ErrMalformedInput       = errors.New("malformed input")
	ErrModelNotFound        = errors.New("model not found")
	ErrScenarioNotFound     = errors.New("scenario not found")
	ErrScenarioExists       = errors.New("scenario already exists")
)

// DataQualityError signals an insufficient or degenerate sample for one SKU.
// Never fatal to the batch: the SKU degrades to a flagged fallback.
type DataQualityError struct {
	SKU    string
	Flag   DiagnosticFlag
	Reason string
}

func (e *DataQualityError) Error() string {
	return fmt.Sprintf("data quality (%s) for %s: %s", e.Flag, e.SKU, e.Reason)
}

func (e *DataQualityError) Unwrap() error { return ErrDataQuality }

// InfeasibleScenarioError signals that no price set satisfies every hard constraint
// within the iteration budget. Surfaced as status infeasible, never retried.
type InfeasibleScenarioError struct {
	ScenarioID string
	Iterations int
	Violations []ConstraintViolation
}

func (e *InfeasibleScenarioError) Error() string {
	ids := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		ids = append(ids, v.ConstraintID)
	}
	return fmt.Sprintf("scenario %s infeasible after %d iterations (violated: %s)",
		e.ScenarioID, e.Iterations, strings.Join(ids, ","))
}

func (e *InfeasibleScenarioError) Unwrap() error { return ErrInfeasibleScenario }

// AttributionAmbiguityError signals overlapping promotions that cannot be split.
// The period is excluded from the ROI sample.
type AttributionAmbiguityError struct {
	SKU       string
	Period    time.Time
	Mechanics []string
}

func (e *AttributionAmbiguityError) Error() string {
	return fmt.Sprintf("ambiguous attribution for %s at %s: %s",
		e.SKU, e.Period.Format("2006-01-02"), strings.Join(e.Mechanics, "+"))
}

func (e *AttributionAmbiguityError) Unwrap() error { return ErrAmbiguousAttribution }

// MalformedInputError rejects a run whose records all miss required fields
type MalformedInputError struct {
	Total     int
	Malformed int
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("malformed input: %d of %d records miss required fields", e.Malformed, e.Total)
}

func (e *MalformedInputError) Unwrap() error { return ErrMalformedInput }
