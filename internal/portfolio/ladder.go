package portfolio

import (
	"math"

	"github.com/wonny/rgm/internal/contracts"
)

// fixedWeight pins held SKUs during isotonic pooling
const fixedWeight = 1e6

// isotonicDecreasing returns the weighted least-squares non-increasing fit of y
// (pool adjacent violators). Only blocks that violate the order move.
func isotonicDecreasing(y, w []float64) []float64 {
	type block struct {
		sum, weight float64
		n           int
	}
	blocks := make([]block, 0, len(y))
	for i := range y {
		blocks = append(blocks, block{sum: y[i] * w[i], weight: w[i], n: 1})
		for len(blocks) > 1 {
			last := blocks[len(blocks)-1]
			prev := blocks[len(blocks)-2]
			if prev.sum/prev.weight >= last.sum/last.weight {
				break
			}
			blocks = blocks[:len(blocks)-2]
			blocks = append(blocks, block{sum: prev.sum + last.sum, weight: prev.weight + last.weight, n: prev.n + last.n})
		}
	}

	out := make([]float64, 0, len(y))
	for _, b := range blocks {
		v := b.sum / b.weight
		for k := 0; k < b.n; k++ {
			out = append(out, v)
		}
	}
	return out
}

// projectLadder repairs one price ladder in place.
// Unit prices are scaled by (1-step)^k so the minimum step becomes plain monotonicity.
func projectLadder(c contracts.Constraint, members []int, states []*skuState, prices []float64) {
	if len(members) < 2 {
		return
	}
	y := make([]float64, len(members))
	w := make([]float64, len(members))
	for k, idx := range members {
		s := states[idx]
		y[k] = s.product.UnitPrice(prices[idx]) / math.Pow(1-c.MinStepPct, float64(k))
		w[k] = 1
		if s.fixed {
			w[k] = fixedWeight
		}
	}

	fit := isotonicDecreasing(y, w)
	for k, idx := range members {
		s := states[idx]
		if s.fixed {
			continue
		}
		unit := fit[k] * math.Pow(1-c.MinStepPct, float64(k))
		if s.product.PackSize > 0 {
			prices[idx] = unit * s.product.PackSize
		} else {
			prices[idx] = unit
		}
	}
}
