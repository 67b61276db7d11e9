package patterns

import (
	"math"

	"pattern-scanner/internal/analysis"
)

// boundaryFunc evaluates a pattern boundary at a bar index.
type boundaryFunc func(i int) float64

func flatBoundary(level float64) boundaryFunc {
	return func(int) float64 { return level }
}

func lineBoundary(fit LineFit) boundaryFunc {
	return fit.ValueAt
}

func necklineBoundary(n analysis.Neckline) boundaryFunc {
	return n.ValueAt
}

// breakout is the first close beyond a boundary plus buffer.
type breakout struct {
	found     bool
	index     int
	direction analysis.Direction
	level     float64
}

// buffer is max(price*pct, ATR*mult); without an ATR it falls back to the
// percentage alone.
func (c *DetectionContext) buffer(f analysis.Family, i int, price float64) float64 {
	spec := c.Tuning.Buffers[f]
	b := math.Abs(price) * spec.Pct
	if atr := c.atrAt(i); !math.IsNaN(atr) {
		b = math.Max(b, atr*spec.ATRMult)
	}
	return b
}

// scanBreakout walks closes in [from, to] and returns the first breach of
// upper or lower. Either boundary may be nil.
func (c *DetectionContext) scanBreakout(f analysis.Family, from, to int, upper, lower boundaryFunc) breakout {
	from = max(from, 0)
	to = min(to, c.Last())
	for i := from; i <= to; i++ {
		cl := c.Closes[i]
		if math.IsNaN(cl) {
			continue
		}
		if upper != nil {
			u := upper(i)
			if cl > u+c.buffer(f, i, u) {
				return breakout{found: true, index: i, direction: analysis.DirectionUp, level: u}
			}
		}
		if lower != nil {
			l := lower(i)
			if cl < l-c.buffer(f, i, l) {
				return breakout{found: true, index: i, direction: analysis.DirectionDown, level: l}
			}
		}
	}
	return breakout{}
}

// settleInput describes what a classifier knows about a shape before
// deciding its status.
type settleInput struct {
	family   analysis.Family
	expected analysis.PatternDirection // neutral accepts either side
	br       breakout
	shapeEnd int
	// progress is how far the shape has developed, in [0,1].
	progress float64
	// edge is the boundary that would complete the shape at the last bar.
	edge float64
}

// settle assigns status, outcome, breakout fields and target. It returns a
// rejection reason when the shape must be discarded.
func (c *DetectionContext) settle(e *analysis.PatternEntry, in settleInput) string {
	if in.br.found {
		dir := in.br.direction
		e.BreakoutDirection = &dir
		e.BreakoutIndex = in.br.index
		if in.expected == analysis.PatternNeutral {
			e.ExpectedDirection = analysis.DirectionFor(dir)
		} else {
			e.ExpectedDirection = in.expected
		}
		var outcome analysis.Outcome
		if e.ExpectedDirection.Breakout() == dir {
			e.Status = analysis.StatusCompleted
			outcome = analysis.OutcomeSuccess
		} else {
			e.Status = analysis.StatusInvalid
			outcome = analysis.OutcomeFailure
		}
		e.Outcome = &outcome
		target := in.br.level + e.ExpectedDirection.Sign()*e.Height
		e.BreakoutTarget = &target
		return ""
	}

	if c.Last()-in.shapeEnd > c.Tuning.StaleBars {
		return "stale_no_breakout"
	}
	if !c.IncludeForming {
		return "no_breakout"
	}

	e.ExpectedDirection = in.expected
	e.CompletionPct = round2(clamp01(in.progress))
	e.Status = analysis.StatusForming
	last := c.Closes[c.Last()]
	nearEdge := in.edge > 0 && math.Abs(last-in.edge) <= c.buffer(in.family, c.Last(), in.edge)
	if in.progress >= c.Tuning.ApexNearCompletion || nearEdge {
		e.Status = analysis.StatusNearCompletion
	}
	if in.expected != analysis.PatternNeutral && in.edge > 0 {
		target := in.edge + in.expected.Sign()*e.Height
		e.BreakoutTarget = &target
	}
	return ""
}
