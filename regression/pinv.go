package regression

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/statclim/downgo/pkg/errors"
)

// PseudoInverse computes the Moore-Penrose pseudo-inverse through the thin
// singular value decomposition, zeroing singular values below the standard
// numerical-rank cutoff max(rows, cols) * eps * s_max.
func PseudoInverse(a mat.Matrix) (p *mat.Dense, err error) {
	defer errors.Recover(&err, "regression.PseudoInverse")

	rows, cols := a.Dims()
	if rows == 0 || cols == 0 {
		return nil, errors.NewModelError("regression.PseudoInverse", "empty matrix", errors.ErrEmptyData)
	}

	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDThin); !ok {
		return nil, errors.NewConvergenceError("SVD", 0, "factorization did not converge")
	}

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	s := svd.Values(nil)

	cutoff := float64(max(rows, cols)) * epsFloat64 * s[0]
	inv := make([]float64, len(s))
	for i, sv := range s {
		if sv > cutoff {
			inv[i] = 1 / sv
		}
	}

	// pinv = V * diag(1/s) * U^T
	k := len(s)
	scaled := mat.NewDense(cols, k, nil)
	for i := 0; i < cols; i++ {
		for j := 0; j < k; j++ {
			scaled.Set(i, j, v.At(i, j)*inv[j])
		}
	}
	p = mat.NewDense(cols, rows, nil)
	p.Mul(scaled, u.T())
	return p, nil
}

// epsFloat64 is the float64 machine epsilon.
var epsFloat64 = math.Nextafter(1, 2) - 1
