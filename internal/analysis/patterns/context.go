package patterns

import (
	"math"

	"pattern-scanner/internal/analysis"
	"pattern-scanner/internal/analysis/indicators"
	"pattern-scanner/internal/analysis/smoothing"
	"pattern-scanner/internal/models"
)

// DetectionContext is the per-call bundle every classifier reads. It is
// built once per Detect call and never shared between calls; classifiers
// running in parallel each get a fork with a private debug collector.
type DetectionContext struct {
	Candles []models.Candle
	Highs   []float64
	Lows    []float64
	Closes  []float64
	ATR     []float64

	// Swings are the shared pivots (strict unless StrictPivots is off).
	Swings  []analysis.SwingPoint
	Peaks   []analysis.SwingPoint
	Valleys []analysis.SwingPoint

	// Relaxed pivots drive the trend-line families.
	Relaxed        []analysis.SwingPoint
	RelaxedPeaks   []analysis.SwingPoint
	RelaxedValleys []analysis.SwingPoint

	Tolerance      float64
	MinSpacing     int
	SwingDepth     int
	BarsPerDay     float64
	IncludeForming bool
	Requested      map[analysis.PatternType]bool
	Tuning         Tuning

	// IncludeCompleted and IncludeInvalid gate entries before deduplication
	// so a hidden entry never displaces a returned one.
	IncludeCompleted bool
	IncludeInvalid   bool

	debug    *debugCollector
	passMult float64
}

// debugCollector is the append-only candidate log of one classifier.
type debugCollector struct {
	candidates []analysis.DebugCandidate
}

func newDetectionContext(candles []models.Candle, opts resolved) *DetectionContext {
	c := &DetectionContext{
		Candles:          candles,
		Highs:            models.Highs(candles),
		Lows:             models.Lows(candles),
		Closes:           models.Closes(candles),
		Tolerance:        opts.tolerance,
		MinSpacing:       opts.MinBarsBetweenSwings,
		SwingDepth:       opts.SwingDepth,
		BarsPerDay:       opts.barsPerDay,
		IncludeForming:   opts.IncludeForming,
		IncludeCompleted: opts.IncludeCompleted,
		IncludeInvalid:   opts.IncludeInvalid,
		Requested:        opts.requested,
		Tuning:           opts.Tuning,
		debug:            &debugCollector{},
		passMult:         1,
	}
	c.ATR = indicators.ATRSeries(candles, c.Tuning.ATRPeriod)

	highs, lows := c.Highs, c.Lows
	if opts.Smooth {
		highs = smoothing.SavitzkyGolay(c.Highs, opts.SmoothWindow, 2)
		lows = smoothing.SavitzkyGolay(c.Lows, opts.SmoothWindow, 2)
	}

	strict := snapToRaw(FindSwings(highs, lows, c.SwingDepth, true), candles, c.SwingDepth, opts.Smooth)
	relaxed := snapToRaw(FindSwings(highs, lows, 1, false), candles, 1, opts.Smooth)

	c.Relaxed = relaxed
	c.RelaxedPeaks, c.RelaxedValleys = splitSwings(relaxed)
	if opts.StrictPivots {
		c.Swings = strict
	} else {
		c.Swings = relaxed
	}
	c.Peaks, c.Valleys = splitSwings(c.Swings)
	return c
}

// fork returns a shallow copy with its own debug collector.
func (c *DetectionContext) fork() *DetectionContext {
	f := *c
	f.debug = &debugCollector{}
	f.passMult = 1
	return &f
}

// Candidates returns the debug log collected so far.
func (c *DetectionContext) Candidates() []analysis.DebugCandidate {
	return c.debug.candidates
}

// Wants reports whether t was requested.
func (c *DetectionContext) Wants(t analysis.PatternType) bool {
	return c.Requested[t]
}

// Last is the index of the final bar.
func (c *DetectionContext) Last() int {
	return len(c.Candles) - 1
}

// statusWanted reports whether entries with status s may be returned.
func (c *DetectionContext) statusWanted(s analysis.Status) bool {
	switch s {
	case analysis.StatusCompleted:
		return c.IncludeCompleted
	case analysis.StatusInvalid:
		return c.IncludeInvalid
	case analysis.StatusForming, analysis.StatusNearCompletion:
		return c.IncludeForming
	}
	return true
}

// atrAt returns the ATR at bar i, NaN when undefined.
func (c *DetectionContext) atrAt(i int) float64 {
	if i < 0 || i >= len(c.ATR) {
		return math.NaN()
	}
	return c.ATR[i]
}

// reject logs a candidate that failed a test.
func (c *DetectionContext) reject(t analysis.PatternType, reason string, indices ...int) {
	c.debug.candidates = append(c.debug.candidates, analysis.DebugCandidate{
		Type:                t,
		Reason:              reason,
		StartIndex:          firstOr(indices, -1),
		EndIndex:            lastOr(indices, -1),
		Indices:             indices,
		Points:              c.pointsAt(indices),
		ToleranceMultiplier: c.passMult,
	})
}

// accept logs a surviving entry.
func (c *DetectionContext) accept(e analysis.PatternEntry) {
	mult := e.ToleranceMultiplier
	if mult == 0 {
		mult = 1
	}
	c.debug.candidates = append(c.debug.candidates, analysis.DebugCandidate{
		Type:                e.Type,
		Accepted:            true,
		StartIndex:          e.StartIndex,
		EndIndex:            e.EndIndex,
		Indices:             pivotIndices(e.Pivots),
		Points:              swingPoints(e.Pivots),
		ToleranceMultiplier: mult,
	})
}

// pointsAt prices each index from the pivot found there, falling back to
// the bar close. Indices without a usable price get 0.
func (c *DetectionContext) pointsAt(indices []int) []analysis.Point {
	if len(indices) == 0 {
		return nil
	}
	out := make([]analysis.Point, len(indices))
	for k, i := range indices {
		out[k] = analysis.Point{Index: i}
		if s := swingsBetween(c.Swings, i, i); len(s) > 0 {
			out[k].Price = s[0].Price
		} else if s := swingsBetween(c.Relaxed, i, i); len(s) > 0 {
			out[k].Price = s[0].Price
		} else if i >= 0 && i < len(c.Closes) && !math.IsNaN(c.Closes[i]) {
			out[k].Price = c.Closes[i]
		}
	}
	return out
}

func pivotIndices(pivots []analysis.SwingPoint) []int {
	out := make([]int, len(pivots))
	for i, p := range pivots {
		out[i] = p.Index
	}
	return out
}

func firstOr(xs []int, def int) int {
	if len(xs) == 0 {
		return def
	}
	return xs[0]
}

func lastOr(xs []int, def int) int {
	if len(xs) == 0 {
		return def
	}
	return xs[len(xs)-1]
}

func anyNaN(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}

// newEntry fills the envelope fields shared by every family.
func (c *DetectionContext) newEntry(t analysis.PatternType, start, end int, pivots []analysis.SwingPoint) analysis.PatternEntry {
	return analysis.PatternEntry{
		Type:          t,
		StartIndex:    start,
		EndIndex:      end,
		Range:         analysis.Range{Start: c.Candles[start].Timestamp, End: c.Candles[end].Timestamp},
		Pivots:        pivots,
		BreakoutIndex: -1,
	}
}
