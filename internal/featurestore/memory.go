package featurestore

import (
	"context"
	"sort"
	"time"

	"github.com/wonny/rgm/internal/contracts"
)

// MemoryReader serves an in-process dataset (sample runs, tests)
type MemoryReader struct {
	products map[string]contracts.Product
	obs      []contracts.Observation
}

// NewMemoryReader copies the dataset; later changes to the inputs are not visible
func NewMemoryReader(products []contracts.Product, obs []contracts.Observation) *MemoryReader {
	r := &MemoryReader{
		products: make(map[string]contracts.Product, len(products)),
		obs:      append([]contracts.Observation(nil), obs...),
	}
	for _, p := range products {
		r.products[p.SKU] = p
	}
	return r
}

// Products returns catalog rows for the SKUs (all when skus is empty), sorted by SKU
func (r *MemoryReader) Products(_ context.Context, skus []string) ([]contracts.Product, error) {
	out := make([]contracts.Product, 0, len(r.products))
	if len(skus) == 0 {
		for _, p := range r.products {
			out = append(out, p)
		}
	} else {
		for _, sku := range skus {
			if p, ok := r.products[sku]; ok {
				out = append(out, p)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SKU < out[j].SKU })
	return out, nil
}

// Observations returns rows of the SKUs within [from, to]; a zero bound is open
func (r *MemoryReader) Observations(_ context.Context, skus []string, from, to time.Time) ([]contracts.Observation, error) {
	want := make(map[string]bool, len(skus))
	for _, s := range skus {
		want[s] = true
	}
	out := make([]contracts.Observation, 0, len(r.obs))
	for _, o := range r.obs {
		if len(want) > 0 && !want[o.SKU] {
			continue
		}
		if !from.IsZero() && o.Period.Before(from) {
			continue
		}
		if !to.IsZero() && o.Period.After(to) {
			continue
		}
		out = append(out, o)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SKU != out[j].SKU {
			return out[i].SKU < out[j].SKU
		}
		return out[i].Period.Before(out[j].Period)
	})
	return out, nil
}
