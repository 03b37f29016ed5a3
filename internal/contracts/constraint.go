package contracts

import "fmt"

// ConstraintKind is the closed set of hard business rules
type ConstraintKind string

const (
	ConstraintMaxPriceChange       ConstraintKind = "max_price_change_pct"
	ConstraintMinMargin            ConstraintKind = "min_margin_pct"
	ConstraintPriceBounds          ConstraintKind = "price_bounds"
	ConstraintPriceLadder          ConstraintKind = "price_ladder"
	ConstraintPortfolioMarginFloor ConstraintKind = "portfolio_margin_floor"
)

// ConstraintScope says what a constraint is attached to
type ConstraintScope string

const (
	ScopeSKU       ConstraintScope = "sku"
	ScopeGroup     ConstraintScope = "group"
	ScopePortfolio ConstraintScope = "portfolio"
)

// Constraint is a declarative rule, read-only to the optimizer
// ⭐ SSOT: 모든 제약조건은 hard constraint (완화하지 않음)
type Constraint struct {
	ID    string          `json:"id" yaml:"id"`
	Kind  ConstraintKind  `json:"kind" yaml:"kind"`
	Scope ConstraintScope `json:"scope" yaml:"scope"`
	SKU   string          `json:"sku_id,omitempty" yaml:"sku_id,omitempty"`
	Group string          `json:"group,omitempty" yaml:"group,omitempty"`

	// max_price_change_pct, min_margin_pct, portfolio_margin_floor
	Value float64 `json:"value,omitempty" yaml:"value,omitempty"`

	// price_bounds
	MinPrice float64 `json:"min_price,omitempty" yaml:"min_price,omitempty"`
	MaxPrice float64 `json:"max_price,omitempty" yaml:"max_price,omitempty"`

	// price_ladder: SKUs ordered smallest pack first; unit price must not increase along it
	Ladder     []string `json:"ladder,omitempty" yaml:"ladder,omitempty"`
	MinStepPct float64  `json:"min_step_pct,omitempty" yaml:"min_step_pct,omitempty"`
}

// AppliesTo reports whether a per-SKU constraint covers the product
func (c Constraint) AppliesTo(p Product) bool {
	switch c.Scope {
	case ScopeSKU:
		return c.SKU == p.SKU
	case ScopeGroup:
		return c.Group != "" && c.Group == p.Group
	case ScopePortfolio:
		return true
	default:
		return false
	}
}

// CrossSKU reports whether the constraint couples prices of several SKUs
func (c Constraint) CrossSKU() bool {
	switch c.Kind {
	case ConstraintPriceLadder, ConstraintPortfolioMarginFloor:
		return true
	default:
		return false
	}
}

// Validate checks the constraint definition
func (c Constraint) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("constraint id is required")
	}
	switch c.Kind {
	case ConstraintMaxPriceChange:
		if c.Value <= 0 {
			return fmt.Errorf("constraint %s: max price change must be > 0", c.ID)
		}
	case ConstraintMinMargin:
		if c.Value < 0 || c.Value >= 1 {
			return fmt.Errorf("constraint %s: min margin must be in [0, 1)", c.ID)
		}
	case ConstraintPriceBounds:
		if c.MinPrice < 0 || (c.MaxPrice > 0 && c.MaxPrice < c.MinPrice) {
			return fmt.Errorf("constraint %s: invalid price bounds [%v, %v]", c.ID, c.MinPrice, c.MaxPrice)
		}
	case ConstraintPriceLadder:
		if len(c.Ladder) < 2 {
			return fmt.Errorf("constraint %s: price ladder needs at least 2 SKUs", c.ID)
		}
		if c.MinStepPct < 0 || c.MinStepPct >= 1 {
			return fmt.Errorf("constraint %s: min step must be in [0, 1)", c.ID)
		}
		return nil
	case ConstraintPortfolioMarginFloor:
		if c.Value < 0 || c.Value >= 1 {
			return fmt.Errorf("constraint %s: margin floor must be in [0, 1)", c.ID)
		}
		return nil
	default:
		return fmt.Errorf("constraint %s: unknown kind %q", c.ID, c.Kind)
	}

	switch c.Scope {
	case ScopeSKU:
		if c.SKU == "" {
			return fmt.Errorf("constraint %s: sku scope requires sku_id", c.ID)
		}
	case ScopeGroup:
		if c.Group == "" {
			return fmt.Errorf("constraint %s: group scope requires group", c.ID)
		}
	case ScopePortfolio:
	default:
		return fmt.Errorf("constraint %s: unknown scope %q", c.ID, c.Scope)
	}
	return nil
}

// ConstraintViolation describes an unsatisfied hard constraint
type ConstraintViolation struct {
	ConstraintID string         `json:"constraint_id"`
	Kind         ConstraintKind `json:"kind"`
	SKUs         []string       `json:"skus"`
	Amount       float64        `json:"amount"`
	Detail       string         `json:"detail"`
}
