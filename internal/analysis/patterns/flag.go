package patterns

import (
	"math"

	"pattern-scanner/internal/analysis"
)

// Flag and pennant detection

const (
	minPoleBars          = 3
	maxPoleBars          = 12
	minConsolidationBars = 5
	maxConsolidationBars = 20
)

// pole is an impulsive move that may precede a flag or pennant.
type pole struct {
	start, end int
	height     float64
	dir        analysis.Direction
}

func (p pole) sign() float64 {
	if p.dir == analysis.DirectionDown {
		return -1
	}
	return 1
}

// consolidation is the channel fitted on bar highs and lows after a pole.
type consolidation struct {
	start, end   int
	upper, lower LineFit
	quality      float64
	upperQuality float64
	lowerQuality float64
	retracement  float64
	upperSlope   float64
	lowerSlope   float64
	gapStart     float64
	gapEnd       float64
	containment  float64
}

func detectFlags(c *DetectionContext, tol float64) []analysis.PatternEntry {
	return c.poleShapes(analysis.Flag, tol)
}

func detectPennants(c *DetectionContext, tol float64) []analysis.PatternEntry {
	return c.poleShapes(analysis.Pennant, tol)
}

// findPole returns the strongest qualifying impulse ending at bar end.
func (c *DetectionContext) findPole(end int) (pole, bool) {
	var best pole
	found := false
	for n := minPoleBars; n <= maxPoleBars; n++ {
		start := end - n
		if start < 0 {
			break
		}
		from, to := c.Closes[start], c.Closes[end]
		if anyNaN(from, to) || from <= 0 {
			continue
		}
		move := to - from
		if math.Abs(move)/from < c.Tuning.MinPolePct {
			continue
		}
		if atr := c.atrAt(end); !math.IsNaN(atr) && math.Abs(move) < c.Tuning.PoleATRMultiple*atr {
			continue
		}
		if !found || math.Abs(move) > best.height {
			dir := analysis.DirectionUp
			if move < 0 {
				dir = analysis.DirectionDown
			}
			best = pole{start: start, end: end, height: math.Abs(move), dir: dir}
			found = true
		}
	}
	return best, found
}

// consolidate grows the consolidation after a pole until price escapes the
// pole extreme or retraces more than the allowed share of the pole.
func (c *DetectionContext) consolidate(p pole, tol float64) (consolidation, string) {
	top := c.Closes[p.end]
	limit := c.Tuning.MaxFlagRetrace * p.height
	end := p.end
	deep := false
	for i := p.end + 1; i <= min(c.Last(), p.end+maxConsolidationBars); i++ {
		if anyNaN(c.Highs[i], c.Lows[i]) {
			break
		}
		if p.dir == analysis.DirectionUp {
			if c.Highs[i] > top*(1+tol) && c.Closes[i] > top {
				break
			}
			if top-c.Lows[i] > limit {
				deep = true
				break
			}
		} else {
			if c.Lows[i] < top*(1-tol) && c.Closes[i] < top {
				break
			}
			if c.Highs[i]-top > limit {
				deep = true
				break
			}
		}
		end = i
	}
	k := end - p.end
	if k < minConsolidationBars {
		if deep {
			return consolidation{}, "flag_too_deep"
		}
		return consolidation{}, "consolidation_too_short"
	}

	cs := consolidation{start: p.end + 1, end: end}
	peaks, valleys := splitSwings(compress(swingsBetween(c.Relaxed, cs.start, cs.end)))
	cs.upper, cs.upperQuality = c.consolidationSide(peaks, c.Highs, cs.start, cs.end, tol, true)
	cs.lower, cs.lowerQuality = c.consolidationSide(valleys, c.Lows, cs.start, cs.end, tol, false)
	cs.quality = (cs.upperQuality + cs.lowerQuality) / 2

	extreme := math.Inf(1)
	if p.dir == analysis.DirectionDown {
		extreme = math.Inf(-1)
	}
	for i := cs.start; i <= cs.end; i++ {
		if p.dir == analysis.DirectionUp {
			extreme = math.Min(extreme, c.Lows[i])
		} else {
			extreme = math.Max(extreme, c.Highs[i])
		}
	}
	cs.retracement = math.Abs(top-extreme) / p.height

	width := cs.end - cs.start
	midIdx := (cs.start + cs.end) / 2
	mid := (cs.upper.ValueAt(midIdx) + cs.lower.ValueAt(midIdx)) / 2
	cs.upperSlope = normalizedSlope(cs.upper.Slope, width, mid)
	cs.lowerSlope = normalizedSlope(cs.lower.Slope, width, mid)
	cs.gapStart = cs.upper.ValueAt(cs.start) - cs.lower.ValueAt(cs.start)
	cs.gapEnd = cs.upper.ValueAt(cs.end) - cs.lower.ValueAt(cs.end)
	cs.containment = c.containment(cs.start, cs.end, cs.upper, cs.lower, tol)
	return cs, ""
}

// consolidationSide fits one boundary on the swing pivots of the
// consolidation. With fewer than two pivots on that side it falls back to a
// fit over every bar's high (upper) or low.
func (c *DetectionContext) consolidationSide(pivots []analysis.SwingPoint, series []float64, lo, hi int, tol float64, upper bool) (LineFit, float64) {
	if len(pivots) >= 2 {
		return c.boundary(swingPoints(pivots), tol, upper)
	}
	fit := FitSeries(series, lo, hi)
	points := make([]analysis.Point, 0, hi-lo+1)
	for i := lo; i <= hi; i++ {
		points = append(points, analysis.Point{Index: i, Price: series[i]})
	}
	return fit, FitQuality(fit, points, tol)
}

// poleShapes scans for poles followed by a flag (parallel counter-trend
// channel) or a pennant (converging channel).
func (c *DetectionContext) poleShapes(t analysis.PatternType, tol float64) []analysis.PatternEntry {
	f := t.Family()
	var out []analysis.PatternEntry
	for end := minPoleBars; end <= c.Last()-minConsolidationBars; end++ {
		p, ok := c.findPole(end)
		if !ok {
			continue
		}
		// The pole must end on its extreme close.
		if next := c.Closes[end+1]; p.sign()*(next-c.Closes[end]) > 0 {
			continue
		}

		cs, reason := c.consolidate(p, tol)
		if reason != "" {
			c.reject(t, reason, p.start, p.end)
			continue
		}
		if cs.quality < c.Tuning.MinFitQuality {
			c.reject(t, "poor_trendline_fit", p.start, cs.end)
			continue
		}
		if cs.gapStart <= 0 || cs.gapEnd <= 0 {
			c.reject(t, "not_converging", p.start, cs.end)
			continue
		}

		converging := cs.gapEnd <= c.Tuning.PennantConvergence*cs.gapStart
		var shape float64
		if t == analysis.Flag {
			if converging {
				c.reject(t, "not_parallel", p.start, cs.end)
				continue
			}
			diff := cs.upperSlope - cs.lowerSlope
			if math.Abs(diff) > tol {
				c.reject(t, "not_parallel", p.start, cs.end)
				continue
			}
			drift := p.sign() * (cs.upperSlope + cs.lowerSlope) / 2
			if drift > tol/2 {
				c.reject(t, "not_counter_trend", p.start, cs.end)
				continue
			}
			shape = marginScore(diff, tol)
		} else {
			if !converging {
				c.reject(t, "not_converging", p.start, cs.end)
				continue
			}
			shape = ratioScore(cs.upperSlope, cs.lowerSlope)
		}
		if cs.containment < c.Tuning.MinContainment {
			c.reject(t, "poor_containment", p.start, cs.end)
			continue
		}

		e := c.newEntry(t, p.start, cs.end, []analysis.SwingPoint{
			c.swingAt(p.start, poleKind(p, true)),
			c.swingAt(p.end, poleKind(p, false)),
		})
		e.Height = p.height
		e.Pole = &analysis.PoleGeometry{
			StartIndex:  p.start,
			EndIndex:    p.end,
			Height:      p.height,
			Direction:   p.dir,
			Retracement: cs.retracement,
			Upper:       cs.upper.TrendLine(),
			Lower:       cs.lower.TrendLine(),
			Containment: cs.containment,
		}

		expected := analysis.DirectionFor(p.dir)
		br := c.scanBreakout(f, cs.end+1, cs.end+c.Tuning.BreakoutLookahead, lineBoundary(cs.upper), lineBoundary(cs.lower))
		edge := cs.upper.ValueAt(c.Last())
		if expected == analysis.PatternBearish {
			edge = cs.lower.ValueAt(c.Last())
		}
		progress := float64(cs.end-cs.start+1) / maxConsolidationBars
		if reason := c.settle(&e, settleInput{
			family:   f,
			expected: expected,
			br:       br,
			shapeEnd: cs.end,
			progress: progress,
			edge:     edge,
		}); reason != "" {
			c.reject(t, reason, p.start, cs.end)
			continue
		}

		e.Confidence = Score(c.adjustment(f),
			toleranceComponent(shape),
			symmetryComponent(clamp01(1-cs.retracement/c.Tuning.MaxFlagRetrace)),
			fitComponent(cs.quality),
			containmentComponent(cs.containment),
			durationComponent(durationScore(c.days(cs.end-p.start), c.Tuning.Durations[f])),
		)
		out = append(out, e)
		end = cs.end
	}
	return out
}

// poleKind is the swing kind at the pole's base (base=true) or tip.
func poleKind(p pole, base bool) analysis.SwingKind {
	up := p.dir == analysis.DirectionUp
	if up == base {
		return analysis.SwingValley
	}
	return analysis.SwingPeak
}
