package ports

// ModelFunc computes the output distribution for one sample point. The
// coordinates are ordered like the scanner's coefficient names. It must be
// deterministic for grids to be reproducible.
type ModelFunc func(coeffs []complex128) ([]float64, error)
