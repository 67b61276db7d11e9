package patterns

import (
	"math"

	"pattern-scanner/internal/analysis"
)

// channel is the trend-line geometry of one window over relaxed pivots.
type channel struct {
	start, end     int
	peaks, valleys []analysis.SwingPoint
	upper, lower   LineFit
	upperQuality   float64
	lowerQuality   float64
	upperTouches   int
	lowerTouches   int
	gapStart       float64
	gapEnd         float64
	apex           float64
	upperSlope     float64 // normalised
	lowerSlope     float64 // normalised
	containment    float64
}

// windows returns the multi-scale sliding windows, each as [lo, hi]. Every
// size also contributes the window that ends on the last bar.
func (c *DetectionContext) windows() [][2]int {
	last := c.Last()
	seen := make(map[[2]int]bool)
	var out [][2]int
	add := func(w [2]int) {
		if w[0] < 0 || seen[w] {
			return
		}
		seen[w] = true
		out = append(out, w)
	}
	for _, size := range c.Tuning.WindowSizes {
		if size > last+1 {
			continue
		}
		step := max(1, size/4)
		for lo := 0; lo+size-1 <= last; lo += step {
			add([2]int{lo, lo + size - 1})
		}
		add([2]int{last - size + 1, last})
	}
	if len(out) == 0 && last >= 0 {
		add([2]int{0, last})
	}
	return out
}

// compress keeps the most extreme of consecutive same-kind swings.
func compress(swings []analysis.SwingPoint) []analysis.SwingPoint {
	var out []analysis.SwingPoint
	for _, s := range swings {
		if n := len(out); n > 0 && out[n-1].Kind == s.Kind {
			prev := out[n-1]
			if (s.Kind == analysis.SwingPeak && s.Price > prev.Price) ||
				(s.Kind == analysis.SwingValley && s.Price < prev.Price) {
				out[n-1] = s
			}
			continue
		}
		out = append(out, s)
	}
	return out
}

// fitChannel measures the converging channel of window [lo, hi]. It returns
// a rejection reason when the window does not hold one.
func (c *DetectionContext) fitChannel(lo, hi int, tol float64) (channel, string) {
	var ch channel
	ch.peaks, ch.valleys = splitSwings(compress(swingsBetween(c.Relaxed, lo, hi)))
	if len(ch.peaks) < 2 || len(ch.valleys) < 2 {
		return ch, "insufficient_pivots"
	}
	ch.start = min(ch.peaks[0].Index, ch.valleys[0].Index)
	ch.end = max(ch.peaks[len(ch.peaks)-1].Index, ch.valleys[len(ch.valleys)-1].Index)

	pp, vp := swingPoints(ch.peaks), swingPoints(ch.valleys)
	ch.upper, ch.upperQuality = c.boundary(pp, tol, true)
	ch.lower, ch.lowerQuality = c.boundary(vp, tol, false)
	if math.Min(ch.upperQuality, ch.lowerQuality) < c.Tuning.MinFitQuality {
		return ch, "poor_trendline_fit"
	}
	ch.upperTouches = countTouches(ch.upper, pp, tol)
	ch.lowerTouches = countTouches(ch.lower, vp, tol)
	if ch.upperTouches < 2 || ch.lowerTouches < 2 {
		return ch, "insufficient_touches"
	}

	ch.gapStart = ch.upper.ValueAt(ch.start) - ch.lower.ValueAt(ch.start)
	ch.gapEnd = ch.upper.ValueAt(ch.end) - ch.lower.ValueAt(ch.end)
	slopeGap := ch.upper.Slope - ch.lower.Slope
	if ch.gapStart <= 0 || ch.gapEnd <= 0 || slopeGap >= 0 ||
		ch.gapEnd > c.Tuning.MaxConvergence*ch.gapStart {
		return ch, "not_converging"
	}
	ch.apex = (ch.lower.Intercept - ch.upper.Intercept) / slopeGap
	if ch.apex <= float64(ch.end) || ch.gapEnd < c.Tuning.MinConvergence*ch.gapStart {
		return ch, "apex_in_past"
	}

	width := ch.end - ch.start
	midIdx := (ch.start + ch.end) / 2
	mid := (ch.upper.ValueAt(midIdx) + ch.lower.ValueAt(midIdx)) / 2
	ch.upperSlope = normalizedSlope(ch.upper.Slope, width, mid)
	ch.lowerSlope = normalizedSlope(ch.lower.Slope, width, mid)
	ch.containment = c.containment(ch.start, ch.end, ch.upper, ch.lower, tol)
	return ch, ""
}

// boundary fits one side of a channel by least squares. A poor fit falls
// back to the best anchor pair when that pair touches all but one pivot.
func (c *DetectionContext) boundary(points []analysis.Point, tol float64, upper bool) (LineFit, float64) {
	fit := FitLine(points)
	q := FitQuality(fit, points, tol)
	if q >= c.Tuning.MinFitQuality || len(points) < 3 {
		return fit, q
	}
	pair, touches, ok := BestPairLine(points, tol, upper)
	if !ok || touches < 3 || touches < len(points)-1 {
		return fit, q
	}
	return pair, float64(touches) / float64(len(points))
}

// containment is the share of closes in [lo, hi] inside the lines widened
// by tol.
func (c *DetectionContext) containment(lo, hi int, upper, lower LineFit, tol float64) float64 {
	inside, total := 0, 0
	for i := lo; i <= hi; i++ {
		cl := c.Closes[i]
		if math.IsNaN(cl) {
			continue
		}
		total++
		if cl <= upper.ValueAt(i)*(1+tol) && cl >= lower.ValueAt(i)*(1-tol) {
			inside++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(inside) / float64(total)
}

// progress is how far the shape has run toward its apex.
func (ch channel) progress() float64 {
	span := ch.apex - float64(ch.start)
	if span <= 0 {
		return 1
	}
	return clamp01(float64(ch.end-ch.start) / span)
}

func (ch channel) geometry() *analysis.ConvergingGeometry {
	return &analysis.ConvergingGeometry{
		Upper:        ch.upper.TrendLine(),
		Lower:        ch.lower.TrendLine(),
		UpperTouches: ch.upperTouches,
		LowerTouches: ch.lowerTouches,
		Apex:         ch.apex,
		Containment:  ch.containment,
		Progress:     ch.progress(),
	}
}

func (ch channel) pivots() []analysis.SwingPoint {
	out := make([]analysis.SwingPoint, 0, len(ch.peaks)+len(ch.valleys))
	i, j := 0, 0
	for i < len(ch.peaks) || j < len(ch.valleys) {
		if j >= len(ch.valleys) || (i < len(ch.peaks) && ch.peaks[i].Index <= ch.valleys[j].Index) {
			out = append(out, ch.peaks[i])
			i++
		} else {
			out = append(out, ch.valleys[j])
			j++
		}
	}
	return out
}

// settleChannel scans for a breakout after the shape and assigns status.
func (c *DetectionContext) settleChannel(e *analysis.PatternEntry, f analysis.Family, ch channel, expected analysis.PatternDirection) string {
	br := c.scanBreakout(f, ch.end+1, ch.end+c.Tuning.BreakoutLookahead, lineBoundary(ch.upper), lineBoundary(ch.lower))
	last := c.Last()
	edge := ch.upper.ValueAt(last)
	switch expected {
	case analysis.PatternBearish:
		edge = ch.lower.ValueAt(last)
	case analysis.PatternNeutral:
		if cl := c.Closes[last]; math.Abs(cl-ch.lower.ValueAt(last)) < math.Abs(cl-edge) {
			edge = ch.lower.ValueAt(last)
		}
	}
	return c.settle(e, settleInput{
		family:   f,
		expected: expected,
		br:       br,
		shapeEnd: ch.end,
		progress: ch.progress(),
		edge:     edge,
	})
}
