package patterns

import (
	"math"

	"pattern-scanner/internal/analysis"
)

// Head and Shoulders pattern detection

// minShoulderBalance is the smallest accepted ratio between the bar spans of
// the two shoulders.
const minShoulderBalance = 0.4

func detectHeadAndShoulders(c *DetectionContext, tol float64) []analysis.PatternEntry {
	var out []analysis.PatternEntry
	if c.Wants(analysis.HeadAndShoulders) {
		out = append(out, c.headAndShoulders(tol, true)...)
	}
	if c.Wants(analysis.InverseHeadAndShoulders) {
		out = append(out, c.headAndShoulders(tol, false)...)
	}
	return out
}

// hsShape is the geometry shared by the confirmed and forming variants.
type hsShape struct {
	ls, t1, head, t2, rs analysis.SwingPoint
	neckline             analysis.Neckline
	shoulderDiff         float64
	height               float64
	symmetry             float64
	tilt                 float64
}

// maxNecklineTilt is the largest relative difference between the two
// neckline anchors.
func maxNecklineTilt(tol float64) float64 {
	return math.Max(2*tol, 0.03)
}

// measureHS runs the acceptance tests common to both variants. It returns a
// rejection reason when the shape fails.
func (c *DetectionContext) measureHS(ls, head, rs analysis.SwingPoint, top bool, tol float64) (hsShape, string) {
	s := hsShape{ls: ls, head: head, rs: rs}
	if anyNaN(ls.Price, head.Price, rs.Price) {
		return s, "nan_input"
	}
	if head.Index-ls.Index < c.MinSpacing || rs.Index-head.Index < c.MinSpacing {
		return s, "spacing_too_short"
	}
	var ok1, ok2 bool
	s.t1, ok1 = c.oppositeBetween(ls, head)
	s.t2, ok2 = c.oppositeBetween(head, rs)
	if !ok1 || !ok2 {
		return s, "insufficient_pivots"
	}

	if top && head.Price <= math.Max(ls.Price, rs.Price)*(1+tol/2) {
		return s, "head_not_highest"
	}
	if !top && head.Price >= math.Min(ls.Price, rs.Price)*(1-tol/2) {
		return s, "head_not_highest"
	}

	shoulderLevel := (ls.Price + rs.Price) / 2
	s.shoulderDiff = math.Abs(ls.Price-rs.Price) / shoulderLevel
	if s.shoulderDiff > tol {
		return s, "shoulders_not_equal"
	}

	s.neckline = analysis.Neckline{analysis.PointOf(s.t1), analysis.PointOf(s.t2)}
	s.tilt = math.Abs(s.t2.Price-s.t1.Price) / math.Min(s.t1.Price, s.t2.Price)
	if s.tilt > maxNecklineTilt(tol) {
		return s, "neckline_too_steep"
	}

	s.symmetry = ratioScore(float64(head.Index-ls.Index), float64(rs.Index-head.Index))
	if s.symmetry < minShoulderBalance {
		return s, "asymmetric_shoulders"
	}
	if c.exceedsBetween(ls.Index, rs.Index, head.Price, head.Kind) {
		return s, "intervening_extreme"
	}

	s.height = math.Abs(head.Price - s.neckline.ValueAt(head.Index))
	if s.height/head.Price < c.Tuning.MinHeightPct {
		return s, "pattern_too_small"
	}
	return s, ""
}

func (c *DetectionContext) hsEntry(t analysis.PatternType, s hsShape, tol float64) analysis.PatternEntry {
	e := c.newEntry(t, s.ls.Index, s.rs.Index, []analysis.SwingPoint{s.ls, s.t1, s.head, s.t2, s.rs})
	neck := s.neckline
	e.Neckline = &neck
	e.Height = s.height
	e.Reversal = &analysis.ReversalGeometry{
		Extremes:      []analysis.Point{analysis.PointOf(s.ls), analysis.PointOf(s.head), analysis.PointOf(s.rs)},
		Level:         (s.ls.Price + s.rs.Price) / 2,
		NecklineSlope: LineThrough(neck[0], neck[1]).Slope,
		Symmetry:      s.symmetry,
	}
	e.Confidence = Score(c.adjustment(analysis.FamilyHeadAndShoulders),
		toleranceComponent(marginScore(s.shoulderDiff, tol)),
		symmetryComponent(s.symmetry),
		durationComponent(durationScore(c.days(s.rs.Index-s.ls.Index), c.Tuning.Durations[analysis.FamilyHeadAndShoulders])),
		fitComponent(marginScore(s.tilt, maxNecklineTilt(tol))),
	)
	return e
}

func (c *DetectionContext) headAndShoulders(tol float64, top bool) []analysis.PatternEntry {
	t, pivots := analysis.InverseHeadAndShoulders, c.Valleys
	if top {
		t, pivots = analysis.HeadAndShoulders, c.Peaks
	}
	_, expected := reversalKind(top)

	var out []analysis.PatternEntry
	for i := 2; i < len(pivots); i++ {
		ls, head, rs := pivots[i-2], pivots[i-1], pivots[i]
		s, reason := c.measureHS(ls, head, rs, top, tol)
		if reason != "" {
			c.reject(t, reason, ls.Index, head.Index, rs.Index)
			continue
		}

		e := c.hsEntry(t, s, tol)
		neck := necklineBoundary(s.neckline)
		upper, lower := reversalBounds(top, neck, flatBoundary(head.Price))
		br := c.scanBreakout(analysis.FamilyHeadAndShoulders, rs.Index+1, rs.Index+c.Tuning.BreakoutLookahead, upper, lower)
		edge := s.neckline.ValueAt(c.Last())
		if reason := c.settle(&e, settleInput{
			family:   analysis.FamilyHeadAndShoulders,
			expected: expected,
			br:       br,
			shapeEnd: rs.Index,
			progress: legProgress(rs.Price, edge, c.Closes[c.Last()]),
			edge:     edge,
		}); reason != "" {
			c.reject(t, reason, ls.Index, head.Index, rs.Index)
			continue
		}
		out = append(out, e)
	}
	return out
}

// detectFormingHeadAndShoulders uses the last two confirmed pivots as left
// shoulder and head and the last bar as a provisional right shoulder.
func detectFormingHeadAndShoulders(c *DetectionContext, tol float64) []analysis.PatternEntry {
	var out []analysis.PatternEntry
	for _, top := range []bool{true, false} {
		t, pivots := analysis.InverseHeadAndShoulders, c.Valleys
		if top {
			t, pivots = analysis.HeadAndShoulders, c.Peaks
		}
		if !c.Wants(t) || len(pivots) < 2 {
			continue
		}
		kind, expected := reversalKind(top)
		ls, head := pivots[len(pivots)-2], pivots[len(pivots)-1]
		rs := c.provisional(kind)

		// Completion is the progress of the current leg from the second
		// trough back toward the left shoulder level.
		t2, ok := c.oppositeBetween(head, rs)
		if !ok || t2.Index >= rs.Index-1 {
			c.reject(t, "insufficient_pivots", ls.Index, head.Index, rs.Index)
			continue
		}
		completion := legProgress(t2.Price, ls.Price, rs.Price)
		if completion < c.Tuning.MinFormingCompletion {
			c.reject(t, "insufficient_completion", ls.Index, head.Index, rs.Index)
			continue
		}
		// Until the shoulder is reached, measure the shape as if it had been.
		trial := rs
		if completion < 1 {
			trial.Price = ls.Price
		}
		s, reason := c.measureHS(ls, head, trial, top, tol)
		if reason != "" {
			c.reject(t, reason, ls.Index, head.Index, rs.Index)
			continue
		}
		s.rs = rs

		e := c.hsEntry(t, s, tol)
		e.ExpectedDirection = expected
		e.CompletionPct = round2(completion)
		e.Status = analysis.StatusForming
		if completion >= c.Tuning.NearCompletion {
			e.Status = analysis.StatusNearCompletion
		}
		edge := s.neckline.ValueAt(c.Last())
		target := edge + expected.Sign()*s.height
		e.BreakoutTarget = &target
		e.Confidence = round2(e.Confidence * completion)
		out = append(out, e)
	}
	return out
}
