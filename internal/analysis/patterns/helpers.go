package patterns

import (
	"math"

	"pattern-scanner/internal/analysis"
)

// lowestBetween returns the bar with the lowest low strictly between lo and hi.
func (c *DetectionContext) lowestBetween(lo, hi int) (analysis.SwingPoint, bool) {
	best := -1
	for i := lo + 1; i < hi && i < len(c.Lows); i++ {
		if math.IsNaN(c.Lows[i]) {
			continue
		}
		if best < 0 || c.Lows[i] < c.Lows[best] {
			best = i
		}
	}
	if best < 0 {
		return analysis.SwingPoint{}, false
	}
	return c.swingAt(best, analysis.SwingValley), true
}

// highestBetween returns the bar with the highest high strictly between lo and hi.
func (c *DetectionContext) highestBetween(lo, hi int) (analysis.SwingPoint, bool) {
	best := -1
	for i := lo + 1; i < hi && i < len(c.Highs); i++ {
		if math.IsNaN(c.Highs[i]) {
			continue
		}
		if best < 0 || c.Highs[i] > c.Highs[best] {
			best = i
		}
	}
	if best < 0 {
		return analysis.SwingPoint{}, false
	}
	return c.swingAt(best, analysis.SwingPeak), true
}

// oppositeBetween returns the deepest counter-move between two same-kind
// pivots: the lowest low between peaks, the highest high between valleys.
func (c *DetectionContext) oppositeBetween(a, b analysis.SwingPoint) (analysis.SwingPoint, bool) {
	if a.Kind == analysis.SwingPeak {
		return c.lowestBetween(a.Index, b.Index)
	}
	return c.highestBetween(a.Index, b.Index)
}

// exceedsBetween reports whether any bar strictly between lo and hi goes
// beyond level on the side of kind.
func (c *DetectionContext) exceedsBetween(lo, hi int, level float64, kind analysis.SwingKind) bool {
	if kind == analysis.SwingPeak {
		p, ok := c.highestBetween(lo, hi)
		return ok && p.Price > level
	}
	p, ok := c.lowestBetween(lo, hi)
	return ok && p.Price < level
}

func (c *DetectionContext) swingAt(i int, kind analysis.SwingKind) analysis.SwingPoint {
	price := c.Highs[i]
	if kind == analysis.SwingValley {
		price = c.Lows[i]
	}
	return analysis.SwingPoint{Index: i, Price: price, Kind: kind, Timestamp: c.Candles[i].Timestamp}
}

// provisional is the last bar treated as a not-yet-confirmed pivot.
func (c *DetectionContext) provisional(kind analysis.SwingKind) analysis.SwingPoint {
	return c.swingAt(c.Last(), kind)
}

// days converts a bar count to trading days.
func (c *DetectionContext) days(bars int) float64 {
	if c.BarsPerDay <= 0 {
		return float64(bars)
	}
	return float64(bars) / c.BarsPerDay
}

func (c *DetectionContext) adjustment(f analysis.Family) float64 {
	if v, ok := c.Tuning.FamilyAdjustment[f]; ok {
		return v
	}
	return 1
}

// reversalKind returns the pivot kind and expected direction of a top or
// bottom formation.
func reversalKind(top bool) (analysis.SwingKind, analysis.PatternDirection) {
	if top {
		return analysis.SwingPeak, analysis.PatternBearish
	}
	return analysis.SwingValley, analysis.PatternBullish
}

// reversalBounds returns the (upper, lower) breakout boundaries of a top or
// bottom: the neckline on the expected side, the extreme level opposite.
func reversalBounds(top bool, neckline, extreme boundaryFunc) (boundaryFunc, boundaryFunc) {
	if top {
		return extreme, neckline
	}
	return neckline, extreme
}

// legProgress measures how far the move from start toward goal has come
// when price stands at current.
func legProgress(start, goal, current float64) float64 {
	span := goal - start
	if span == 0 {
		return 0
	}
	return clamp01((current - start) / span)
}
