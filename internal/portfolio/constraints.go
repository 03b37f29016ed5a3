package portfolio

import (
	"fmt"
	"math"

	"github.com/wonny/rgm/internal/contracts"
)

// Search window used on a side of the band that no constraint bounds
const (
	defaultSearchLow  = 0.5
	defaultSearchHigh = 2.0
)

// skuBand intersects the per-SKU constraints into a price interval
// ⭐ SSOT: 제약조건은 hard. 밴드가 비면 시나리오는 infeasible
func skuBand(s *skuState, constraints []contracts.Constraint) (float64, float64) {
	lo, hi := 0.0, math.Inf(1)
	for _, c := range constraints {
		if c.CrossSKU() || !c.AppliesTo(s.product) {
			continue
		}
		switch c.Kind {
		case contracts.ConstraintMaxPriceChange:
			lo = math.Max(lo, s.current*(1-c.Value))
			hi = math.Min(hi, s.current*(1+c.Value))
		case contracts.ConstraintMinMargin:
			lo = math.Max(lo, s.cost/(1-c.Value))
		case contracts.ConstraintPriceBounds:
			lo = math.Max(lo, c.MinPrice)
			if c.MaxPrice > 0 {
				hi = math.Min(hi, c.MaxPrice)
			}
		}
	}

	if lo == 0 {
		lo = s.current * defaultSearchLow
		if s.cost > 0 {
			lo = math.Max(lo, s.cost)
		}
		if !math.IsInf(hi, 1) {
			lo = math.Min(lo, hi)
		}
	}
	if math.IsInf(hi, 1) {
		hi = math.Max(s.current*defaultSearchHigh, lo)
	}
	return lo, hi
}

// checker evaluates every hard constraint against a candidate price set
type checker struct {
	states      []*skuState
	index       map[string]int
	constraints []contracts.Constraint
	tol         float64
}

func (ck *checker) exceeds(amount, scale float64) bool {
	return amount > ck.tol*math.Max(1, math.Abs(scale))
}

// violations lists unsatisfied constraints. Held and excluded SKUs keep their current
// price: they anchor cross-SKU rules but are not checked against their own bands.
func (ck *checker) violations(prices []float64) []contracts.ConstraintViolation {
	var out []contracts.ConstraintViolation
	for _, c := range ck.constraints {
		switch c.Kind {
		case contracts.ConstraintPriceLadder:
			out = append(out, ck.ladderViolations(c, prices)...)
		case contracts.ConstraintPortfolioMarginFloor:
			if pct, ok := ck.portfolioMarginPct(prices); ok && ck.exceeds(c.Value-pct, 1) {
				out = append(out, contracts.ConstraintViolation{
					ConstraintID: c.ID,
					Kind:         c.Kind,
					Amount:       c.Value - pct,
					Detail:       fmt.Sprintf("portfolio margin %.4f below floor %.4f", pct, c.Value),
				})
			}
		default:
			out = append(out, ck.skuViolations(c, prices)...)
		}
	}
	return out
}

func (ck *checker) skuViolations(c contracts.Constraint, prices []float64) []contracts.ConstraintViolation {
	var out []contracts.ConstraintViolation
	for i, s := range ck.states {
		if s.fixed || !c.AppliesTo(s.product) {
			continue
		}
		p := prices[i]
		var amount float64
		var detail string
		switch c.Kind {
		case contracts.ConstraintMaxPriceChange:
			amount = math.Abs(p/s.current-1) - c.Value
			detail = fmt.Sprintf("price change %.4f exceeds %.4f", p/s.current-1, c.Value)
			if !ck.exceeds(amount, 1) {
				continue
			}
		case contracts.ConstraintMinMargin:
			amount = c.Value - (p-s.cost)/p
			detail = fmt.Sprintf("margin %.4f below %.4f", (p-s.cost)/p, c.Value)
			if !ck.exceeds(amount, 1) {
				continue
			}
		case contracts.ConstraintPriceBounds:
			switch {
			case ck.exceeds(c.MinPrice-p, p):
				amount = c.MinPrice - p
				detail = fmt.Sprintf("price %.4f below %.4f", p, c.MinPrice)
			case c.MaxPrice > 0 && ck.exceeds(p-c.MaxPrice, p):
				amount = p - c.MaxPrice
				detail = fmt.Sprintf("price %.4f above %.4f", p, c.MaxPrice)
			default:
				continue
			}
		default:
			continue
		}
		out = append(out, contracts.ConstraintViolation{
			ConstraintID: c.ID,
			Kind:         c.Kind,
			SKUs:         []string{s.sku},
			Amount:       amount,
			Detail:       detail,
		})
	}
	return out
}

func (ck *checker) ladderViolations(c contracts.Constraint, prices []float64) []contracts.ConstraintViolation {
	members := ck.ladderMembers(c)
	var out []contracts.ConstraintViolation
	for k := 1; k < len(members); k++ {
		prev, cur := ck.states[members[k-1]], ck.states[members[k]]
		limit := prev.product.UnitPrice(prices[members[k-1]]) * (1 - c.MinStepPct)
		unit := cur.product.UnitPrice(prices[members[k]])
		if ck.exceeds(unit-limit, limit) {
			out = append(out, contracts.ConstraintViolation{
				ConstraintID: c.ID,
				Kind:         c.Kind,
				SKUs:         []string{prev.sku, cur.sku},
				Amount:       unit - limit,
				Detail:       fmt.Sprintf("unit price %s %.4f above %s limit %.4f", cur.sku, unit, prev.sku, limit),
			})
		}
	}
	return out
}

// ladderMembers returns state indexes of the ladder SKUs present in the scenario
func (ck *checker) ladderMembers(c contracts.Constraint) []int {
	members := make([]int, 0, len(c.Ladder))
	for _, sku := range c.Ladder {
		if i, ok := ck.index[sku]; ok {
			members = append(members, i)
		}
	}
	return members
}

// portfolioMarginPct is total projected margin over total projected revenue
func (ck *checker) portfolioMarginPct(prices []float64) (float64, bool) {
	var margin, revenue float64
	for i, s := range ck.states {
		if s.baseline <= 0 {
			continue
		}
		q := ProjectedUnits(s.baseline, s.current, prices[i], s.elasticity)
		margin += (prices[i] - s.cost) * q
		revenue += prices[i] * q
	}
	if revenue <= 0 {
		return 0, false
	}
	return margin / revenue, true
}
