package patterns

import (
	"fmt"
	"time"

	"pattern-scanner/internal/analysis"
	"pattern-scanner/internal/errors"
	"pattern-scanner/internal/models"
)

// MinBars is the smallest series the engine will analyse.
const MinBars = 20

// Options controls one detection call.
type Options struct {
	Timeframe models.Timeframe

	// SwingDepth is the half-window of strict pivots. Zero picks a value
	// from the timeframe.
	SwingDepth int
	// TolerancePct is the price tolerance in percent. Zero picks a value
	// from the timeframe.
	TolerancePct float64
	// MinBarsBetweenSwings is the minimum pivot spacing. Zero uses SwingDepth.
	MinBarsBetweenSwings int
	StrictPivots         bool

	// Patterns restricts the output. Empty means all types.
	Patterns []analysis.PatternType

	IncludeForming   bool
	IncludeCompleted bool
	IncludeInvalid   bool

	RequireCurrentInPattern bool
	CurrentRelevanceDays    float64
	// Now is the reference time for recency filters. Zero means the last bar.
	Now time.Time

	Smooth       bool
	SmoothWindow int

	Parallel           bool
	MaxDebugCandidates int

	Tuning Tuning
}

// DefaultOptions returns options for daily bars with completed patterns only.
func DefaultOptions() Options {
	return Options{
		Timeframe:            models.Timeframe1Day,
		StrictPivots:         true,
		IncludeCompleted:     true,
		CurrentRelevanceDays: 5,
		SmoothWindow:         7,
		Parallel:             true,
		MaxDebugCandidates:   200,
	}
}

var defaultSwingDepth = map[models.Timeframe]int{
	models.Timeframe1Min:  5,
	models.Timeframe5Min:  5,
	models.Timeframe15Min: 4,
	models.Timeframe30Min: 4,
	models.Timeframe1Hour: 3,
	models.Timeframe1Day:  3,
	models.Timeframe1Week: 2,
}

var defaultTolerancePct = map[models.Timeframe]float64{
	models.Timeframe1Min:  0.5,
	models.Timeframe5Min:  0.8,
	models.Timeframe15Min: 1.0,
	models.Timeframe30Min: 1.2,
	models.Timeframe1Hour: 1.5,
	models.Timeframe1Day:  2.0,
	models.Timeframe1Week: 3.0,
}

// Validate checks option ranges.
func (o Options) Validate() error {
	if o.Timeframe != "" && !o.Timeframe.Valid() {
		return errors.NewValidationError("timeframe", o.Timeframe, "unknown timeframe")
	}
	if o.SwingDepth < 0 || o.SwingDepth > 50 {
		return errors.NewValidationError("swing_depth", o.SwingDepth, "must be between 0 and 50")
	}
	if o.TolerancePct < 0 || o.TolerancePct > 20 {
		return errors.NewValidationError("tolerance_pct", o.TolerancePct, "must be between 0 and 20")
	}
	if o.MinBarsBetweenSwings < 0 {
		return errors.NewValidationError("min_bars_between_swings", o.MinBarsBetweenSwings, "must not be negative")
	}
	for _, p := range o.Patterns {
		if _, ok := analysis.ParsePatternType(string(p)); !ok {
			return errors.NewValidationError("patterns", p, "unknown pattern type")
		}
	}
	if o.MaxDebugCandidates < 0 {
		return errors.NewValidationError("max_debug_candidates", o.MaxDebugCandidates, "must not be negative")
	}
	return nil
}

// resolved is Options with every automatic value filled in.
type resolved struct {
	Options
	tolerance  float64 // fraction
	barsPerDay float64
	now        time.Time
	requested  map[analysis.PatternType]bool
}

func (o Options) resolve(candles []models.Candle) resolved {
	r := resolved{Options: o}
	if r.Timeframe == "" {
		r.Timeframe = models.Timeframe1Day
	}
	if r.SwingDepth == 0 {
		r.SwingDepth = defaultSwingDepth[r.Timeframe]
	}
	pct := r.TolerancePct
	if pct == 0 {
		pct = defaultTolerancePct[r.Timeframe]
	}
	r.TolerancePct = pct
	r.tolerance = pct / 100
	if r.MinBarsBetweenSwings == 0 {
		r.MinBarsBetweenSwings = r.SwingDepth
	}
	if r.SmoothWindow == 0 {
		r.SmoothWindow = 7
	}
	r.barsPerDay = r.Timeframe.BarsPerDay()
	r.now = o.Now
	if r.now.IsZero() && len(candles) > 0 {
		r.now = candles[len(candles)-1].Timestamp
	}
	r.requested = make(map[analysis.PatternType]bool)
	if len(o.Patterns) == 0 {
		for _, t := range analysis.AllPatternTypes() {
			r.requested[t] = true
		}
	} else {
		for _, t := range o.Patterns {
			r.requested[t] = true
		}
	}
	r.Tuning = o.Tuning.withDefaults()
	return r
}

func (r resolved) String() string {
	return fmt.Sprintf("tf=%s depth=%d tol=%.2f%% strict=%t", r.Timeframe, r.SwingDepth, r.TolerancePct, r.StrictPivots)
}
