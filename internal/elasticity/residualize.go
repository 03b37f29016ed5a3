package elasticity

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// collinearityTol: a control is dropped when the smallest singular value of the
// unit-normalized design falls below tol × the largest one after adding it
const collinearityTol = 1e-8

// basis spans the confounder space (intercept included). Residuals are the
// least-squares remainder after projecting on the design through its QR factors.
type basis struct {
	x  *mat.Dense
	qr mat.QR
}

// newBasis selects the controls that add rank, in order. Constant or collinear
// controls are skipped, so the projection never sees a singular system.
func newBasis(n int, controls [][]float64) (*basis, []int) {
	intercept := make([]float64, n)
	for i := range intercept {
		intercept[i] = 1
	}
	cols := [][]float64{intercept}

	kept := make([]int, 0, len(controls))
	for idx, col := range controls {
		if floats.Norm(col, 2) == 0 {
			continue
		}
		candidate := append(append([][]float64(nil), cols...), col)
		if !fullRank(n, candidate) {
			continue
		}
		cols = candidate
		kept = append(kept, idx)
	}

	b := &basis{x: design(n, cols, false)}
	b.qr.Factorize(b.x)
	return b, kept
}

// residual returns v minus its projection on the basis
func (b *basis) residual(v []float64) ([]float64, error) {
	var beta mat.VecDense
	if err := b.qr.SolveVecTo(&beta, false, mat.NewVecDense(len(v), v)); err != nil {
		return nil, fmt.Errorf("project on confounders: %w", err)
	}
	var fitted mat.VecDense
	fitted.MulVec(b.x, &beta)

	r := make([]float64, len(v))
	for i := range r {
		r[i] = v[i] - fitted.AtVec(i)
	}
	return r, nil
}

// rank is the number of design columns (intercept + independent controls)
func (b *basis) rank() int {
	_, c := b.x.Dims()
	return c
}

// fullRank reports whether the columns are linearly independent
func fullRank(n int, cols [][]float64) bool {
	if len(cols) > n {
		return false
	}
	var svd mat.SVD
	if !svd.Factorize(design(n, cols, true), mat.SVDNone) {
		return false
	}
	vals := svd.Values(nil)
	return vals[len(vals)-1] > collinearityTol*math.Max(vals[0], 1e-300)
}

// design lays the columns out as an n × k matrix, optionally scaled to unit norm
func design(n int, cols [][]float64, normalize bool) *mat.Dense {
	x := mat.NewDense(n, len(cols), nil)
	for j, col := range cols {
		scale := 1.0
		if normalize {
			if norm := floats.Norm(col, 2); norm > 0 {
				scale = 1 / norm
			}
		}
		for i, v := range col {
			x.Set(i, j, v*scale)
		}
	}
	return x
}
