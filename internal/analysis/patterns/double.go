package patterns

import (
	"math"

	"pattern-scanner/internal/analysis"
)

// Double top / bottom detection

func detectDoubles(c *DetectionContext, tol float64) []analysis.PatternEntry {
	var out []analysis.PatternEntry
	if c.Wants(analysis.DoubleTop) {
		out = append(out, c.doubles(tol, true)...)
	}
	if c.Wants(analysis.DoubleBottom) {
		out = append(out, c.doubles(tol, false)...)
	}
	return out
}

func (c *DetectionContext) doubles(tol float64, top bool) []analysis.PatternEntry {
	t, pivots := analysis.DoubleBottom, c.Valleys
	if top {
		t, pivots = analysis.DoubleTop, c.Peaks
	}
	_, expected := reversalKind(top)

	var out []analysis.PatternEntry
	for i := 1; i < len(pivots); i++ {
		a, b := pivots[i-1], pivots[i]
		if anyNaN(a.Price, b.Price) {
			c.reject(t, "nan_input", a.Index, b.Index)
			continue
		}
		if b.Index-a.Index < c.MinSpacing {
			c.reject(t, "spacing_too_short", a.Index, b.Index)
			continue
		}
		mid, ok := c.oppositeBetween(a, b)
		if !ok {
			c.reject(t, "nan_input", a.Index, b.Index)
			continue
		}

		level := (a.Price + b.Price) / 2
		diff := math.Abs(a.Price-b.Price) / level
		if diff > tol {
			c.reject(t, "peaks_not_equal", a.Index, mid.Index, b.Index)
			continue
		}
		height := math.Abs(level - mid.Price)
		if height/level < c.Tuning.MinHeightPct {
			c.reject(t, "pattern_too_small", a.Index, mid.Index, b.Index)
			continue
		}
		extreme := math.Max(a.Price, b.Price)
		if !top {
			extreme = math.Min(a.Price, b.Price)
		}
		if c.exceedsBetween(a.Index, b.Index, extreme, a.Kind) {
			c.reject(t, "intervening_extreme", a.Index, mid.Index, b.Index)
			continue
		}

		neckline := analysis.Neckline{
			{Index: mid.Index, Price: mid.Price},
			{Index: b.Index, Price: mid.Price},
		}
		sym := ratioScore(float64(mid.Index-a.Index), float64(b.Index-mid.Index))

		e := c.newEntry(t, a.Index, b.Index, []analysis.SwingPoint{a, mid, b})
		e.Neckline = &neckline
		e.Height = height
		e.Reversal = &analysis.ReversalGeometry{
			Extremes: []analysis.Point{analysis.PointOf(a), analysis.PointOf(b)},
			Level:    level,
			Symmetry: sym,
		}

		upper, lower := reversalBounds(top, flatBoundary(mid.Price), flatBoundary(extreme))
		br := c.scanBreakout(analysis.FamilyDouble, b.Index+1, b.Index+c.Tuning.BreakoutLookahead, upper, lower)
		progress := legProgress(b.Price, mid.Price, c.Closes[c.Last()])
		if reason := c.settle(&e, settleInput{
			family:   analysis.FamilyDouble,
			expected: expected,
			br:       br,
			shapeEnd: b.Index,
			progress: progress,
			edge:     mid.Price,
		}); reason != "" {
			c.reject(t, reason, a.Index, mid.Index, b.Index)
			continue
		}

		e.Confidence = Score(c.adjustment(analysis.FamilyDouble),
			toleranceComponent(marginScore(diff, tol)),
			symmetryComponent(sym),
			durationComponent(durationScore(c.days(b.Index-a.Index), c.Tuning.Durations[analysis.FamilyDouble])),
		)
		out = append(out, e)
	}
	return out
}

// detectFormingDoubles treats the last bar as a provisional second extreme
// after the most recent confirmed pivot.
func detectFormingDoubles(c *DetectionContext, tol float64) []analysis.PatternEntry {
	var out []analysis.PatternEntry
	for _, top := range []bool{true, false} {
		t, pivots := analysis.DoubleBottom, c.Valleys
		if top {
			t, pivots = analysis.DoubleTop, c.Peaks
		}
		if !c.Wants(t) || len(pivots) == 0 {
			continue
		}
		kind, expected := reversalKind(top)
		first := pivots[len(pivots)-1]
		last := c.provisional(kind)
		if e, ok := c.formingDouble(t, first, last, expected, tol); ok {
			out = append(out, e)
		}
	}
	return out
}

func (c *DetectionContext) formingDouble(t analysis.PatternType, first, last analysis.SwingPoint, expected analysis.PatternDirection, tol float64) (analysis.PatternEntry, bool) {
	if anyNaN(first.Price, last.Price) {
		c.reject(t, "nan_input", first.Index, last.Index)
		return analysis.PatternEntry{}, false
	}
	if last.Index-first.Index < c.MinSpacing {
		c.reject(t, "spacing_too_short", first.Index, last.Index)
		return analysis.PatternEntry{}, false
	}
	mid, ok := c.oppositeBetween(first, last)
	if !ok || mid.Index >= last.Index-1 {
		c.reject(t, "insufficient_pivots", first.Index, last.Index)
		return analysis.PatternEntry{}, false
	}
	height := math.Abs(first.Price - mid.Price)
	if height/first.Price < c.Tuning.MinHeightPct {
		c.reject(t, "pattern_too_small", first.Index, mid.Index, last.Index)
		return analysis.PatternEntry{}, false
	}
	// The provisional extreme may not overshoot the first one.
	overshoot := (last.Price - first.Price) / first.Price
	if expected == analysis.PatternBullish {
		overshoot = -overshoot
	}
	if overshoot > tol {
		c.reject(t, "peaks_not_equal", first.Index, mid.Index, last.Index)
		return analysis.PatternEntry{}, false
	}

	completion := legProgress(mid.Price, first.Price, last.Price)
	if completion < c.Tuning.MinFormingCompletion {
		c.reject(t, "insufficient_completion", first.Index, mid.Index, last.Index)
		return analysis.PatternEntry{}, false
	}

	neckline := analysis.Neckline{
		{Index: mid.Index, Price: mid.Price},
		{Index: last.Index, Price: mid.Price},
	}
	sym := ratioScore(float64(mid.Index-first.Index), float64(last.Index-mid.Index))
	e := c.newEntry(t, first.Index, last.Index, []analysis.SwingPoint{first, mid, last})
	e.Neckline = &neckline
	e.Height = height
	e.ExpectedDirection = expected
	e.CompletionPct = round2(completion)
	e.Status = analysis.StatusForming
	if completion >= c.Tuning.NearCompletion {
		e.Status = analysis.StatusNearCompletion
	}
	target := mid.Price + expected.Sign()*height
	e.BreakoutTarget = &target
	e.Reversal = &analysis.ReversalGeometry{
		Extremes: []analysis.Point{analysis.PointOf(first), analysis.PointOf(last)},
		Level:    first.Price,
		Symmetry: sym,
	}
	e.Confidence = Score(c.adjustment(analysis.FamilyDouble),
		toleranceComponent(marginScore(math.Abs(last.Price-first.Price)/first.Price, tol)),
		symmetryComponent(sym),
		durationComponent(durationScore(c.days(last.Index-first.Index), c.Tuning.Durations[analysis.FamilyDouble])),
	) * completion
	e.Confidence = round2(e.Confidence)
	return e, true
}
