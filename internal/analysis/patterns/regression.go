package patterns

import (
	"math"

	"pattern-scanner/internal/analysis"
)

// LineFit is a line in (bar index, price) space, either a least squares fit
// or a line drawn through two anchor points.
type LineFit struct {
	Slope     float64
	Intercept float64
	R2        float64
	N         int
	Anchors   []analysis.Point
}

// ValueAt evaluates the fitted line at bar index i.
func (f LineFit) ValueAt(i int) float64 {
	return f.Intercept + f.Slope*float64(i)
}

// TrendLine converts the fit to the serialisable line type.
func (f LineFit) TrendLine() analysis.TrendLine {
	return analysis.TrendLine{Slope: f.Slope, Intercept: f.Intercept, R2: f.R2, Anchors: f.Anchors}
}

// FitLine fits a least-squares line through points. When every X is equal
// the slope is 0, the intercept is the mean price and R² is 0. When every Y
// is equal (and X varies) the flat line is a perfect fit and R² is 1.
func FitLine(points []analysis.Point) LineFit {
	n := len(points)
	if n == 0 {
		return LineFit{}
	}
	var sx, sy float64
	for _, p := range points {
		sx += float64(p.Index)
		sy += p.Price
	}
	mx, my := sx/float64(n), sy/float64(n)

	var sxx, sxy, syy float64
	for _, p := range points {
		dx := float64(p.Index) - mx
		dy := p.Price - my
		sxx += dx * dx
		sxy += dx * dy
		syy += dy * dy
	}
	if sxx == 0 {
		return LineFit{Slope: 0, Intercept: my, R2: 0, N: n}
	}

	slope := sxy / sxx
	fit := LineFit{Slope: slope, Intercept: my - slope*mx, N: n}
	if syy == 0 {
		fit.R2 = 1
		return fit
	}
	var ssRes float64
	for _, p := range points {
		r := p.Price - fit.ValueAt(p.Index)
		ssRes += r * r
	}
	fit.R2 = math.Max(0, 1-ssRes/syy)
	return fit
}

// FitSeries fits values[lo..hi] against their bar index.
func FitSeries(values []float64, lo, hi int) LineFit {
	points := make([]analysis.Point, 0, hi-lo+1)
	for i := lo; i <= hi && i < len(values); i++ {
		if math.IsNaN(values[i]) {
			continue
		}
		points = append(points, analysis.Point{Index: i, Price: values[i]})
	}
	return FitLine(points)
}

// LineThrough returns the line through two points.
func LineThrough(a, b analysis.Point) LineFit {
	if a.Index == b.Index {
		return LineFit{Intercept: (a.Price + b.Price) / 2, N: 2}
	}
	slope := (b.Price - a.Price) / float64(b.Index-a.Index)
	return LineFit{Slope: slope, Intercept: a.Price - slope*float64(a.Index), R2: 1, N: 2}
}

// BestPairLine returns the line through the pair of points that touches the
// most points within tol while no point lies beyond it by more than tol on
// the wrong side (above an upper line, below a lower one). Ties go to the
// lower absolute residual sum, then to the earliest anchors. ok is false when
// every pair is breached or no two points have distinct indices.
func BestPairLine(points []analysis.Point, tol float64, upper bool) (fit LineFit, touches int, ok bool) {
	bestResid := math.Inf(1)
	for i := 0; i < len(points); i++ {
		for j := i + 1; j < len(points); j++ {
			if points[i].Index == points[j].Index {
				continue
			}
			line := LineThrough(points[i], points[j])
			n, resid, breached := pairScore(line, points, tol, upper)
			if breached {
				continue
			}
			if !ok || n > touches || (n == touches && resid < bestResid) {
				line.Anchors = []analysis.Point{points[i], points[j]}
				fit, touches, bestResid, ok = line, n, resid, true
			}
		}
	}
	if ok {
		fit.N = len(points)
		fit.R2 = rSquared(fit, points)
	}
	return fit, touches, ok
}

func pairScore(line LineFit, points []analysis.Point, tol float64, upper bool) (touches int, resid float64, breached bool) {
	for _, p := range points {
		v := line.ValueAt(p.Index)
		if v <= 0 {
			return 0, 0, true
		}
		d := (p.Price - v) / v
		if !upper {
			d = -d
		}
		if d > tol {
			return 0, 0, true
		}
		if math.Abs(d) <= tol {
			touches++
		}
		resid += math.Abs(p.Price - v)
	}
	return touches, resid, false
}

// rSquared is the coefficient of determination of an arbitrary line.
func rSquared(fit LineFit, points []analysis.Point) float64 {
	if len(points) == 0 {
		return 0
	}
	var mean float64
	for _, p := range points {
		mean += p.Price
	}
	mean /= float64(len(points))
	var ssRes, ssTot float64
	for _, p := range points {
		r := p.Price - fit.ValueAt(p.Index)
		d := p.Price - mean
		ssRes += r * r
		ssTot += d * d
	}
	if ssTot == 0 {
		if ssRes == 0 {
			return 1
		}
		return 0
	}
	return math.Max(0, 1-ssRes/ssTot)
}

// FitQuality is R² with a flatness credit: on a line whose total change
// across the points is below tol, R² says nothing, so the quality becomes
// 1 - relative residual spread / tol when that is higher.
func FitQuality(fit LineFit, points []analysis.Point, tol float64) float64 {
	if len(points) < 2 {
		return 0
	}
	q := fit.R2
	var mean float64
	for _, p := range points {
		mean += p.Price
	}
	mean /= float64(len(points))
	if mean <= 0 || tol <= 0 {
		return clamp01(q)
	}

	span := float64(points[len(points)-1].Index - points[0].Index)
	if math.Abs(fit.Slope*span)/mean < tol {
		var ss float64
		for _, p := range points {
			r := p.Price - fit.ValueAt(p.Index)
			ss += r * r
		}
		relStd := math.Sqrt(ss/float64(len(points))) / mean
		q = math.Max(q, 1-relStd/tol)
	}
	return clamp01(q)
}

// countTouches counts points within relative tolerance tol of the line.
func countTouches(fit LineFit, points []analysis.Point, tol float64) int {
	n := 0
	for _, p := range points {
		v := fit.ValueAt(p.Index)
		if v == 0 {
			continue
		}
		if math.Abs(p.Price-v)/math.Abs(v) <= tol {
			n++
		}
	}
	return n
}

// normalizedSlope expresses a slope as the fractional price change across
// width bars relative to price.
func normalizedSlope(slope float64, width int, price float64) float64 {
	if price == 0 {
		return 0
	}
	return slope * float64(width) / price
}

func swingPoints(swings []analysis.SwingPoint) []analysis.Point {
	out := make([]analysis.Point, len(swings))
	for i, s := range swings {
		out[i] = analysis.PointOf(s)
	}
	return out
}
