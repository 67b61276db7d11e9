// Package smoothing provides a Savitzky–Golay style local polynomial filter
// used as an optional pre-pass before swing detection.
package smoothing

import "math"

// DefaultWindow is the default number of bars in the fitting window.
const DefaultWindow = 7

// SavitzkyGolay smooths values by fitting a polynomial of the given order to
// a window of bars centred on each point and evaluating it at that point.
// The window is clipped at the series edges. NaN inputs are ignored in the
// fit and passed through at their own position.
func SavitzkyGolay(values []float64, window, order int) []float64 {
	out := make([]float64, len(values))
	copy(out, values)
	if window < 3 || len(values) < 3 {
		return out
	}
	if window%2 == 0 {
		window++
	}
	if order < 1 {
		order = 1
	}
	if order >= window {
		order = window - 1
	}
	half := window / 2

	for i := range values {
		if math.IsNaN(values[i]) {
			continue
		}
		lo := max(0, i-half)
		hi := min(len(values)-1, i+half)
		if v, ok := fitAt(values, lo, hi, i, order); ok {
			out[i] = v
		}
	}
	return out
}

// fitAt solves the normal equations of a least-squares polynomial over
// values[lo..hi] with x centred on i, so the fitted value is the constant
// coefficient.
func fitAt(values []float64, lo, hi, i, order int) (float64, bool) {
	n := order + 1
	// power sums of x^k, k in [0, 2*order]
	sums := make([]float64, 2*order+1)
	rhs := make([]float64, n)
	points := 0
	for j := lo; j <= hi; j++ {
		y := values[j]
		if math.IsNaN(y) {
			continue
		}
		points++
		x := float64(j - i)
		p := 1.0
		for k := 0; k <= 2*order; k++ {
			sums[k] += p
			if k < n {
				rhs[k] += p * y
			}
			p *= x
		}
	}
	if points < n {
		return 0, false
	}

	m := make([][]float64, n)
	for r := 0; r < n; r++ {
		m[r] = make([]float64, n+1)
		for c := 0; c < n; c++ {
			m[r][c] = sums[r+c]
		}
		m[r][n] = rhs[r]
	}
	coef, ok := solve(m)
	if !ok {
		return 0, false
	}
	return coef[0], true
}

// solve performs Gaussian elimination with partial pivoting on an augmented
// matrix.
func solve(m [][]float64) ([]float64, bool) {
	n := len(m)
	for col := 0; col < n; col++ {
		pivot := col
		for r := col + 1; r < n; r++ {
			if math.Abs(m[r][col]) > math.Abs(m[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(m[pivot][col]) < 1e-12 {
			return nil, false
		}
		m[col], m[pivot] = m[pivot], m[col]
		for r := col + 1; r < n; r++ {
			f := m[r][col] / m[col][col]
			for c := col; c <= n; c++ {
				m[r][c] -= f * m[col][c]
			}
		}
	}
	x := make([]float64, n)
	for r := n - 1; r >= 0; r-- {
		s := m[r][n]
		for c := r + 1; c < n; c++ {
			s -= m[r][c] * x[c]
		}
		x[r] = s / m[r][r]
	}
	return x, true
}
