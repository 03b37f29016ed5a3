package elasticity

import (
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// bootstrapCI resamples residualized (price, demand) pairs with a seeded RNG and
// returns the percentile interval of the slope. Same seed and sample, same interval.
func bootstrapCI(rx, ry []float64, samples int, seed int64, level float64) (float64, float64, bool) {
	n := len(rx)
	if n < 3 || samples < 1 {
		return 0, 0, false
	}

	rng := rand.New(rand.NewSource(seed))
	slopes := make([]float64, 0, samples)
	for s := 0; s < samples; s++ {
		var sxx, sxy float64
		for i := 0; i < n; i++ {
			idx := rng.Intn(n)
			sxx += rx[idx] * rx[idx]
			sxy += rx[idx] * ry[idx]
		}
		// 가격 변동이 없는 재표본은 버림
		if sxx == 0 {
			continue
		}
		slopes = append(slopes, sxy/sxx)
	}
	if len(slopes) < 2 {
		return 0, 0, false
	}

	sort.Float64s(slopes)
	alpha := (1 - level) / 2
	lower := stat.Quantile(alpha, stat.Empirical, slopes, nil)
	upper := stat.Quantile(1-alpha, stat.Empirical, slopes, nil)
	return lower, upper, true
}
