package patterns

import (
	"math"
	"sort"

	"golang.org/x/exp/slices"

	"pattern-scanner/internal/analysis"
	"pattern-scanner/internal/models"
)

// partialThresholdPct separates partial success and failure from a neutral
// outcome at the final horizon.
const partialThresholdPct = 0.5

// expectedDirections is the default bias of every pattern type. Flags and
// pennants follow their pole and are resolved per entry.
var expectedDirections = map[analysis.PatternType]analysis.PatternDirection{
	analysis.DoubleBottom:            analysis.PatternBullish,
	analysis.InverseHeadAndShoulders: analysis.PatternBullish,
	analysis.TriangleAscending:       analysis.PatternBullish,
	analysis.TriangleSymmetrical:     analysis.PatternBullish,
	analysis.FallingWedge:            analysis.PatternBullish,
	analysis.TripleBottom:            analysis.PatternBullish,
	analysis.DoubleTop:               analysis.PatternBearish,
	analysis.HeadAndShoulders:        analysis.PatternBearish,
	analysis.TriangleDescending:      analysis.PatternBearish,
	analysis.RisingWedge:             analysis.PatternBearish,
	analysis.TripleTop:               analysis.PatternBearish,
}

// aftermathDirection resolves the direction the forward walk measures.
func aftermathDirection(e analysis.PatternEntry) analysis.PatternDirection {
	switch {
	case e.Pole != nil:
		return analysis.DirectionFor(e.Pole.Direction)
	case e.Type == analysis.TriangleSymmetrical && e.BreakoutDirection != nil:
		return analysis.DirectionFor(*e.BreakoutDirection)
	}
	if d, ok := expectedDirections[e.Type]; ok {
		return d
	}
	return analysis.PatternBullish
}

// ComputeAftermath walks forward from a completed entry. Horizon returns
// and the measured-move target are taken from the close of the pattern's
// last bar; the first close beyond the boundary by the aftermath buffer is
// recorded separately as the breakout. Entries that are not completed get
// nil.
func ComputeAftermath(candles []models.Candle, e analysis.PatternEntry, tuning Tuning) *analysis.Aftermath {
	if e.Status != analysis.StatusCompleted || e.EndIndex >= len(candles) {
		return nil
	}
	tuning = tuning.withDefaults()
	dir := aftermathDirection(e)
	sign := dir.Sign()
	boundary := e.BoundaryAt(e.EndIndex, dir)
	a := &analysis.Aftermath{
		Direction:     dir,
		Boundary:      boundary,
		BreakoutIndex: -1,
		Target:        boundary + sign*e.Height,
		Outcome:       analysis.OutcomePending,
	}

	last := len(candles) - 1
	end := e.EndIndex
	base := candles[end].Close
	if end == last || math.IsNaN(base) || base == 0 {
		return a
	}

	trigger := boundary * (1 + sign*tuning.AftermathBufferPct)
	for i := end + 1; i <= min(last, end+tuning.AftermathBars); i++ {
		cl := candles[i].Close
		if math.IsNaN(cl) {
			continue
		}
		if sign*(cl-trigger) > 0 {
			a.BreakoutIndex = i
			a.BreakoutPrice = cl
			break
		}
	}

	for _, h := range tuning.Horizons {
		if end+h > last || math.IsNaN(candles[end+h].Close) {
			continue
		}
		hz := analysis.Horizon{Bars: h, High: math.Inf(-1), Low: math.Inf(1)}
		for j := end + 1; j <= end+h; j++ {
			hz.High = math.Max(hz.High, candles[j].High)
			hz.Low = math.Min(hz.Low, candles[j].Low)
		}
		hz.ReturnPct = round2(sign * (candles[end+h].Close - base) / base * 100)
		a.Horizons = append(a.Horizons, hz)
	}

	finalHorizon := tuning.Horizons[len(tuning.Horizons)-1]
	for j := end + 1; j <= min(last, end+finalHorizon); j++ {
		if (sign > 0 && candles[j].High >= a.Target) || (sign < 0 && candles[j].Low <= a.Target) {
			a.TargetReached = true
			break
		}
	}

	switch ret, ok := a.HorizonReturn(finalHorizon); {
	case a.TargetReached:
		a.Outcome = analysis.OutcomeSuccess
	case !ok:
		a.Outcome = analysis.OutcomePending
	case ret > partialThresholdPct:
		a.Outcome = analysis.OutcomePartialSuccess
	case ret < -partialThresholdPct:
		a.Outcome = analysis.OutcomeFailure
	default:
		a.Outcome = analysis.OutcomeNeutral
	}
	return a
}

// applyAftermath attaches the forward walk and lets a decisive aftermath
// override the entry outcome.
func applyAftermath(candles []models.Candle, entries []analysis.PatternEntry, tuning Tuning) {
	for i := range entries {
		a := ComputeAftermath(candles, entries[i], tuning)
		if a == nil {
			continue
		}
		entries[i].Aftermath = a
		var o analysis.Outcome
		switch a.Outcome {
		case analysis.OutcomeSuccess, analysis.OutcomePartialSuccess:
			o = analysis.OutcomeSuccess
		case analysis.OutcomeFailure:
			o = analysis.OutcomeFailure
		default:
			continue
		}
		entries[i].Outcome = &o
	}
}

// Statistics aggregates per-type aftermath outcomes.
func Statistics(entries []analysis.PatternEntry) map[analysis.PatternType]analysis.TypeStats {
	type acc struct {
		stats    analysis.TypeStats
		resolved int
		wins     int
		r7, r14  []float64
	}
	groups := make(map[analysis.PatternType]*acc)
	for _, e := range entries {
		g, ok := groups[e.Type]
		if !ok {
			g = &acc{}
			groups[e.Type] = g
		}
		g.stats.Detected++
		if e.Aftermath == nil {
			continue
		}
		g.stats.WithAftermath++
		switch e.Aftermath.Outcome {
		case analysis.OutcomeSuccess, analysis.OutcomePartialSuccess:
			g.resolved++
			g.wins++
		case analysis.OutcomeFailure, analysis.OutcomeNeutral:
			g.resolved++
		}
		if r, ok := e.Aftermath.HorizonReturn(7); ok {
			g.r7 = append(g.r7, r)
		}
		if r, ok := e.Aftermath.HorizonReturn(14); ok {
			g.r14 = append(g.r14, r)
		}
	}

	out := make(map[analysis.PatternType]analysis.TypeStats, len(groups))
	for t, g := range groups {
		if g.resolved > 0 {
			g.stats.SuccessRate = round2(float64(g.wins) / float64(g.resolved))
		}
		g.stats.AvgReturn7d = round2(mean(g.r7))
		g.stats.AvgReturn14d = round2(mean(g.r14))
		g.stats.MedianReturn7d = round2(median(g.r7))
		out[t] = g.stats
	}
	return out
}

// StatisticsTypes returns the keys of stats in sorted order.
func StatisticsTypes(stats map[analysis.PatternType]analysis.TypeStats) []analysis.PatternType {
	keys := make([]analysis.PatternType, 0, len(stats))
	for t := range stats {
		keys = append(keys, t)
	}
	slices.Sort(keys)
	return keys
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var s float64
	for _, v := range values {
		s += v
	}
	return s / float64(len(values))
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
