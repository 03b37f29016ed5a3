package portfolio

import (
	"math"

	"github.com/wonny/rgm/internal/contracts"
)

// goldenIterations refines the best grid cell to well below a cent on typical price ranges
const goldenIterations = 60

var invPhi = (math.Sqrt(5) - 1) / 2

// ProjectedUnits applies constant-elasticity demand to the baseline:
// baseline × (price / current) ^ elasticity
func ProjectedUnits(baseline, current, price, elasticity float64) float64 {
	if baseline <= 0 || current <= 0 || price <= 0 {
		return 0
	}
	return baseline * math.Pow(price/current, elasticity)
}

// objective is the weighted, normalized margin/revenue/volume score of one SKU
type objective struct {
	w        contracts.ObjectiveWeights
	baseline float64
	current  float64
	cost     float64
	e        float64

	// normalizers at the current price
	m0, r0, q0 float64
}

func newObjective(s *skuState, w contracts.ObjectiveWeights) objective {
	o := objective{
		w:        w,
		baseline: s.baseline,
		current:  s.current,
		cost:     s.cost,
		e:        s.elasticity,
	}
	o.q0 = math.Max(s.baseline, 1)
	o.r0 = math.Max(s.current*s.baseline, 1)
	o.m0 = math.Abs((s.current - s.cost) * s.baseline)
	if o.m0 < 1 {
		o.m0 = o.r0
	}
	return o
}

func (o objective) units(p float64) float64 {
	return ProjectedUnits(o.baseline, o.current, p, o.e)
}

func (o objective) revenue(p float64) float64 {
	return p * o.units(p)
}

func (o objective) margin(p float64) float64 {
	return (p - o.cost) * o.units(p)
}

func (o objective) value(p float64) float64 {
	q := o.units(p)
	return o.w.Margin*(p-o.cost)*q/o.m0 + o.w.Revenue*p*q/o.r0 + o.w.Volume*q/o.q0
}

// maximize finds the best price in [lo, hi].
// Pure margin with elastic demand has the closed form p* = c·e/(1+e); everything else
// uses a grid scan followed by golden-section refinement around the best cell.
func (o objective) maximize(lo, hi float64, grid int) float64 {
	if hi <= lo {
		return lo
	}
	if o.w.Revenue == 0 && o.w.Volume == 0 && o.e < -1 && o.cost > 0 {
		return clamp(o.cost*o.e/(1+o.e), lo, hi)
	}

	if grid < 2 {
		grid = 2
	}
	step := (hi - lo) / float64(grid-1)
	best, bestVal := lo, o.value(lo)
	bestIdx := 0
	for i := 1; i < grid; i++ {
		p := lo + float64(i)*step
		if v := o.value(p); v > bestVal {
			best, bestVal, bestIdx = p, v, i
		}
	}

	a := math.Max(lo, lo+float64(bestIdx-1)*step)
	b := math.Min(hi, lo+float64(bestIdx+1)*step)
	refined := goldenSection(o.value, a, b)
	if o.value(refined) > bestVal {
		return refined
	}
	return best
}

// goldenSection maximizes a unimodal f on [a, b]
func goldenSection(f func(float64) float64, a, b float64) float64 {
	c := b - invPhi*(b-a)
	d := a + invPhi*(b-a)
	fc, fd := f(c), f(d)
	for i := 0; i < goldenIterations; i++ {
		if fc > fd {
			b, d, fd = d, c, fc
			c = b - invPhi*(b-a)
			fc = f(c)
		} else {
			a, c, fc = c, d, fd
			d = a + invPhi*(b-a)
			fd = f(d)
		}
	}
	return (a + b) / 2
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
