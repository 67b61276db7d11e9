package patterns

import (
	"math"

	"pattern-scanner/internal/analysis"
)

// Triangle pattern detection

func detectTriangles(c *DetectionContext, tol float64) []analysis.PatternEntry {
	var out []analysis.PatternEntry
	for _, w := range c.windows() {
		ch, reason := c.fitChannel(w[0], w[1], tol)
		if reason != "" {
			c.reject(analysis.TriangleSymmetrical, reason, w[0], w[1])
			continue
		}
		t, expected, flatness, ok := classifyTriangle(ch, tol)
		if !ok {
			c.reject(analysis.TriangleSymmetrical, "classification_failed", ch.start, ch.end)
			continue
		}
		if !c.Wants(t) {
			continue
		}
		if ch.containment < c.Tuning.MinContainment {
			c.reject(t, "poor_containment", ch.start, ch.end)
			continue
		}

		e := c.newEntry(t, ch.start, ch.end, ch.pivots())
		e.Height = ch.gapStart
		e.Converging = ch.geometry()
		if reason := c.settleChannel(&e, analysis.FamilyTriangle, ch, expected); reason != "" {
			c.reject(t, reason, ch.start, ch.end)
			continue
		}
		e.Confidence = Score(c.adjustment(analysis.FamilyTriangle),
			toleranceComponent(flatness),
			fitComponent((ch.upperQuality+ch.lowerQuality)/2),
			touchesComponent(touchScore(ch.upperTouches+ch.lowerTouches)),
			containmentComponent(ch.containment),
			durationComponent(durationScore(c.days(ch.end-ch.start), c.Tuning.Durations[analysis.FamilyTriangle])),
		)
		out = append(out, e)
	}
	return out
}

// classifyTriangle applies the slope table. flatness scores how well the
// defining lines match their class (flat side flat, balanced sides for the
// symmetrical case).
func classifyTriangle(ch channel, tol float64) (analysis.PatternType, analysis.PatternDirection, float64, bool) {
	su, sl := ch.upperSlope, ch.lowerSlope
	flat := func(s float64) bool { return math.Abs(s) < tol }
	switch {
	case flat(su) && sl > tol:
		return analysis.TriangleAscending, analysis.PatternBullish, marginScore(su, tol), true
	case flat(sl) && su < -tol:
		return analysis.TriangleDescending, analysis.PatternBearish, marginScore(sl, tol), true
	case su < -tol && sl > tol:
		return analysis.TriangleSymmetrical, analysis.PatternNeutral, ratioScore(su, sl), true
	default:
		return "", "", 0, false
	}
}
