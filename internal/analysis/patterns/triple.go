package patterns

import (
	"math"

	"pattern-scanner/internal/analysis"
)

// Triple top / bottom detection

func detectTriples(c *DetectionContext, tol float64) []analysis.PatternEntry {
	var out []analysis.PatternEntry
	if c.Wants(analysis.TripleTop) {
		out = append(out, c.triples(tol, true)...)
	}
	if c.Wants(analysis.TripleBottom) {
		out = append(out, c.triples(tol, false)...)
	}
	return out
}

// tripleShape holds the measurements shared by both triple variants.
type tripleShape struct {
	p1, t1, p2, t2, p3 analysis.SwingPoint
	level              float64
	support            float64
	deviation          float64
	height             float64
	symmetry           float64
}

func (c *DetectionContext) measureTriple(p1, p2, p3 analysis.SwingPoint, top bool, tol float64) (tripleShape, string) {
	s := tripleShape{p1: p1, p2: p2, p3: p3}
	if anyNaN(p1.Price, p2.Price, p3.Price) {
		return s, "nan_input"
	}
	if p2.Index-p1.Index < c.MinSpacing || p3.Index-p2.Index < c.MinSpacing {
		return s, "spacing_too_short"
	}
	var ok1, ok2 bool
	s.t1, ok1 = c.oppositeBetween(p1, p2)
	s.t2, ok2 = c.oppositeBetween(p2, p3)
	if !ok1 || !ok2 {
		return s, "insufficient_pivots"
	}

	s.level = (p1.Price + p2.Price + p3.Price) / 3
	for _, p := range []float64{p1.Price, p2.Price, p3.Price} {
		s.deviation = math.Max(s.deviation, math.Abs(p-s.level)/s.level)
	}
	if s.deviation > tol {
		return s, "peaks_not_equal"
	}

	extreme := math.Max(p1.Price, math.Max(p2.Price, p3.Price))
	s.support = math.Min(s.t1.Price, s.t2.Price)
	if !top {
		extreme = math.Min(p1.Price, math.Min(p2.Price, p3.Price))
		s.support = math.Max(s.t1.Price, s.t2.Price)
	}
	if c.exceedsBetween(p1.Index, p3.Index, extreme, p1.Kind) {
		return s, "intervening_extreme"
	}

	s.height = math.Abs(s.level - s.support)
	if s.height/s.level < c.Tuning.MinHeightPct {
		return s, "pattern_too_small"
	}
	s.symmetry = ratioScore(float64(p2.Index-p1.Index), float64(p3.Index-p2.Index))
	return s, ""
}

func (c *DetectionContext) tripleEntry(t analysis.PatternType, s tripleShape, tol float64) analysis.PatternEntry {
	e := c.newEntry(t, s.p1.Index, s.p3.Index, []analysis.SwingPoint{s.p1, s.t1, s.p2, s.t2, s.p3})
	neckline := analysis.Neckline{
		{Index: s.t1.Index, Price: s.support},
		{Index: s.p3.Index, Price: s.support},
	}
	e.Neckline = &neckline
	e.Height = s.height
	e.Reversal = &analysis.ReversalGeometry{
		Extremes: []analysis.Point{analysis.PointOf(s.p1), analysis.PointOf(s.p2), analysis.PointOf(s.p3)},
		Level:    s.level,
		Symmetry: s.symmetry,
	}
	e.Confidence = Score(c.adjustment(analysis.FamilyTriple),
		toleranceComponent(marginScore(s.deviation, tol)),
		symmetryComponent(s.symmetry),
		durationComponent(durationScore(c.days(s.p3.Index-s.p1.Index), c.Tuning.Durations[analysis.FamilyTriple])),
		touchesComponent(touchScore(3+s.necklineTouches(tol))),
	)
	return e
}

// necklineTouches counts the troughs that sit on the support level.
func (s tripleShape) necklineTouches(tol float64) int {
	n := 0
	for _, t := range []analysis.SwingPoint{s.t1, s.t2} {
		if math.Abs(t.Price-s.support)/s.support <= tol {
			n++
		}
	}
	return n
}

func (c *DetectionContext) triples(tol float64, top bool) []analysis.PatternEntry {
	t, pivots := analysis.TripleBottom, c.Valleys
	if top {
		t, pivots = analysis.TripleTop, c.Peaks
	}
	_, expected := reversalKind(top)

	var out []analysis.PatternEntry
	for i := 2; i < len(pivots); i++ {
		p1, p2, p3 := pivots[i-2], pivots[i-1], pivots[i]
		s, reason := c.measureTriple(p1, p2, p3, top, tol)
		if reason != "" {
			c.reject(t, reason, p1.Index, p2.Index, p3.Index)
			continue
		}

		e := c.tripleEntry(t, s, tol)
		extreme := p1.Price
		for _, p := range []float64{p2.Price, p3.Price} {
			if (top && p > extreme) || (!top && p < extreme) {
				extreme = p
			}
		}
		upper, lower := reversalBounds(top, flatBoundary(s.support), flatBoundary(extreme))
		br := c.scanBreakout(analysis.FamilyTriple, p3.Index+1, p3.Index+c.Tuning.BreakoutLookahead, upper, lower)
		if reason := c.settle(&e, settleInput{
			family:   analysis.FamilyTriple,
			expected: expected,
			br:       br,
			shapeEnd: p3.Index,
			progress: legProgress(p3.Price, s.support, c.Closes[c.Last()]),
			edge:     s.support,
		}); reason != "" {
			c.reject(t, reason, p1.Index, p2.Index, p3.Index)
			continue
		}
		out = append(out, e)
	}
	return out
}

// detectFormingTriples uses the last two confirmed pivots and the last bar
// as a provisional third extreme.
func detectFormingTriples(c *DetectionContext, tol float64) []analysis.PatternEntry {
	var out []analysis.PatternEntry
	for _, top := range []bool{true, false} {
		t, pivots := analysis.TripleBottom, c.Valleys
		if top {
			t, pivots = analysis.TripleTop, c.Peaks
		}
		if !c.Wants(t) || len(pivots) < 2 {
			continue
		}
		kind, expected := reversalKind(top)
		p1, p2 := pivots[len(pivots)-2], pivots[len(pivots)-1]
		p3 := c.provisional(kind)

		t2, ok := c.oppositeBetween(p2, p3)
		if !ok || t2.Index >= p3.Index-1 {
			c.reject(t, "insufficient_pivots", p1.Index, p2.Index, p3.Index)
			continue
		}
		level := (p1.Price + p2.Price) / 2
		completion := legProgress(t2.Price, level, p3.Price)
		if completion < c.Tuning.MinFormingCompletion {
			c.reject(t, "insufficient_completion", p1.Index, p2.Index, p3.Index)
			continue
		}
		trial := p3
		if completion < 1 {
			trial.Price = level
		}
		s, reason := c.measureTriple(p1, p2, trial, top, tol)
		if reason != "" {
			c.reject(t, reason, p1.Index, p2.Index, p3.Index)
			continue
		}
		s.p3 = p3

		e := c.tripleEntry(t, s, tol)
		e.ExpectedDirection = expected
		e.CompletionPct = round2(completion)
		e.Status = analysis.StatusForming
		if completion >= c.Tuning.NearCompletion {
			e.Status = analysis.StatusNearCompletion
		}
		target := s.support + expected.Sign()*s.height
		e.BreakoutTarget = &target
		e.Confidence = round2(e.Confidence * completion)
		out = append(out, e)
	}
	return out
}
