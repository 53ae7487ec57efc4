// Package model provides small model functions for scans that need no
// physics: smoke tests, benchmarks of the pipeline itself and the CLI.
package model

import (
	"math/cmplx"

	"clusterkit/domain/core"
	"clusterkit/ports"
)

// Names accepted by Lookup.
const (
	NameZero       = "zero"
	NameNorm       = "norm"
	NamePolynomial = "polynomial"
)

// Zero returns a single bin holding 0 for every point.
func Zero() ports.ModelFunc {
	return func([]complex128) ([]float64, error) {
		return []float64{0}, nil
	}
}

// Norm returns a single bin holding the squared norm of the point.
func Norm() ports.ModelFunc {
	return func(coeffs []complex128) ([]float64, error) {
		sum := 0.0
		for _, c := range coeffs {
			a := cmplx.Abs(c)
			sum += a * a
		}
		return []float64{sum}, nil
	}
}

// Polynomial returns bins evaluations of a polynomial in q over [0, 1]:
// bin k holds |sum_j c_j q^j|^2 at the centre of bin k. The coefficients of
// the point are the polynomial coefficients in increasing order.
func Polynomial(bins int) (ports.ModelFunc, error) {
	if bins < 1 {
		return nil, core.NewConfigurationError("polynomial model needs at least 1 bin, got %d", bins)
	}
	return func(coeffs []complex128) ([]float64, error) {
		out := make([]float64, bins)
		for k := range out {
			q := (float64(k) + 0.5) / float64(bins)
			var v complex128
			pow := 1.0
			for _, c := range coeffs {
				v += c * complex(pow, 0)
				pow *= q
			}
			a := cmplx.Abs(v)
			out[k] = a * a
		}
		return out, nil
	}, nil
}

// Lookup returns the model registered under name.
func Lookup(name string, bins int) (ports.ModelFunc, error) {
	switch name {
	case NameZero:
		return Zero(), nil
	case NameNorm:
		return Norm(), nil
	case NamePolynomial:
		return Polynomial(bins)
	}
	return nil, core.NewConfigurationError("unknown model %q", name)
}
