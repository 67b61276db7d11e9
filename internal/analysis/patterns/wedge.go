package patterns

import (
	"math"

	"pattern-scanner/internal/analysis"
)

// Wedge pattern detection

func detectWedges(c *DetectionContext, tol float64) []analysis.PatternEntry {
	var out []analysis.PatternEntry
	for _, w := range c.windows() {
		ch, reason := c.fitChannel(w[0], w[1], tol)
		if reason != "" {
			c.reject(analysis.RisingWedge, reason, w[0], w[1])
			continue
		}
		t, expected, steepness, ok := classifyWedge(ch, tol, c.Tuning.WedgeSlopeRatio)
		if !ok {
			c.reject(analysis.RisingWedge, "classification_failed", ch.start, ch.end)
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
		if reason := c.settleChannel(&e, analysis.FamilyWedge, ch, expected); reason != "" {
			c.reject(t, reason, ch.start, ch.end)
			continue
		}
		e.Confidence = Score(c.adjustment(analysis.FamilyWedge),
			toleranceComponent(steepness),
			fitComponent((ch.upperQuality+ch.lowerQuality)/2),
			touchesComponent(touchScore(ch.upperTouches+ch.lowerTouches)),
			containmentComponent(ch.containment),
			durationComponent(durationScore(c.days(ch.end-ch.start), c.Tuning.Durations[analysis.FamilyWedge])),
		)
		out = append(out, e)
	}
	return out
}

// classifyWedge requires both lines to slope the same way with the trailing
// line steeper by at least ratio. steepness grows with the slope contrast.
func classifyWedge(ch channel, tol, ratio float64) (analysis.PatternType, analysis.PatternDirection, float64, bool) {
	su, sl := ch.upperSlope, ch.lowerSlope
	switch {
	case su > tol && sl > tol && sl >= su*ratio:
		return analysis.RisingWedge, analysis.PatternBearish, contrast(sl, su, ratio), true
	case su < -tol && sl < -tol && math.Abs(su) >= math.Abs(sl)*ratio:
		return analysis.FallingWedge, analysis.PatternBullish, contrast(su, sl, ratio), true
	default:
		return "", "", 0, false
	}
}

// contrast maps steep/shallow from ratio (score 0.5) to twice the ratio
// (score 1).
func contrast(steep, shallow, ratio float64) float64 {
	if shallow == 0 {
		return 1
	}
	r := math.Abs(steep / shallow)
	return clamp01(0.5 + 0.5*(r-ratio)/ratio)
}
