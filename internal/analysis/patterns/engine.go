// Package patterns detects classical chart formations over OHLC bars.
package patterns

import (
	"context"
	"fmt"
	"math"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"

	"pattern-scanner/internal/analysis"
	"pattern-scanner/internal/errors"
	"pattern-scanner/internal/logging"
	"pattern-scanner/internal/models"
)

// Warning codes.
const (
	WarnLowDetectionCount = "low_detection_count"
	WarnInsufficientBars  = "insufficient_bars"
)

// Engine runs every family classifier over a bar series and post-processes
// the results.
type Engine struct {
	opts   Options
	logger zerolog.Logger
}

// NewEngine creates an engine with the given options.
func NewEngine(opts Options, logger zerolog.Logger) *Engine {
	return &Engine{opts: opts, logger: logger}
}

// Name identifies the engine in logs.
func (e *Engine) Name() string {
	return "ChartPatternEngine"
}

// Options returns the engine options.
func (e *Engine) Options() Options {
	return e.opts
}

// Detect runs detection over candles. It is the failure boundary of the
// engine: an internal fault comes back as a *errors.DetectionError, never as
// an empty result, and bad input as a *errors.ValidationError.
func (e *Engine) Detect(ctx context.Context, candles []models.Candle) (res *analysis.Result, err error) {
	runID := uuid.NewString()
	logger := logging.WithRunID(logging.WithOperation(e.logger, "detect"), runID)
	stage := "validate"

	defer func() {
		if r := recover(); r != nil {
			logger.Error().
				Str("stage", stage).
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("Detection failed")
			res = nil
			err = errors.NewDetectionError(runID, stage, fmt.Sprint(r))
		}
	}()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := e.opts.Validate(); err != nil {
		return nil, err
	}

	started := time.Now()
	res = &analysis.Result{
		RunID:      runID,
		Patterns:   []analysis.PatternEntry{},
		Statistics: map[analysis.PatternType]analysis.TypeStats{},
	}
	if len(candles) < MinBars {
		res.Warnings = append(res.Warnings, analysis.Warning{
			Code:    WarnInsufficientBars,
			Message: fmt.Sprintf("%d bars supplied, at least %d are needed", len(candles), MinBars),
		})
		return res, nil
	}
	if err := models.CheckOrdering(candles); err != nil {
		return nil, errors.NewValidationError("candles", len(candles), err.Error())
	}

	stage = "context"
	opts := e.opts.resolve(candles)
	dc := newDetectionContext(candles, opts)

	stage = "classify"
	fams := families()
	results := make([][]analysis.PatternEntry, len(fams))
	logs := make([][]analysis.DebugCandidate, len(fams))
	run := func(i int) {
		fc := dc.fork()
		results[i] = fams[i].run(fc)
		logs[i] = fc.Candidates()
	}
	if opts.Parallel {
		p := pool.New().WithMaxGoroutines(len(fams))
		for i := range fams {
			i := i
			p.Go(func() { run(i) })
		}
		p.Wait()
	} else {
		for i := range fams {
			run(i)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var entries []analysis.PatternEntry
	var candidates []analysis.DebugCandidate
	for i := range fams {
		entries = append(entries, results[i]...)
		candidates = append(candidates, logs[i]...)
	}

	stage = "dedup"
	entries, dropped := DedupGlobal(entries)

	stage = "aftermath"
	applyAftermath(candles, entries, opts.Tuning)

	stage = "filter"
	entries = e.filter(entries, opts)
	sortChronological(entries)

	res.Patterns = entries
	res.Overlays = overlays(entries)
	res.Statistics = Statistics(entries)
	if len(entries) <= 1 {
		res.Warnings = append(res.Warnings, lowDetectionWarning(opts, len(entries)))
	}
	res.Debug = &analysis.Debug{
		Swings:     dc.Swings,
		Candidates: trimCandidates(reconcile(candidates, entries, dropped), opts.MaxDebugCandidates),
	}

	logging.LogDetection(logger, len(candles), len(entries), len(candidates), time.Since(started))
	return res, nil
}

// filter applies the recency filter. Statuses the caller excluded were
// already dropped by the family driver, ahead of deduplication.
func (e *Engine) filter(entries []analysis.PatternEntry, opts resolved) []analysis.PatternEntry {
	if !opts.RequireCurrentInPattern {
		return entries
	}
	cutoff := opts.now.Add(-time.Duration(opts.CurrentRelevanceDays * float64(24*time.Hour)))
	out := entries[:0]
	for _, p := range entries {
		if !p.Status.Active() && p.Range.End.Before(cutoff) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func overlays(entries []analysis.PatternEntry) analysis.Overlays {
	o := analysis.Overlays{Ranges: make([]analysis.OverlayRange, 0, len(entries))}
	for _, p := range entries {
		o.Ranges = append(o.Ranges, analysis.OverlayRange{
			Start:  p.Range.Start,
			End:    p.Range.End,
			Label:  fmt.Sprintf("%s (%s)", p.Type, p.Status),
			Type:   p.Type,
			Status: p.Status,
		})
		if p.Neckline != nil {
			o.Necklines = append(o.Necklines, *p.Neckline)
		}
	}
	return o
}

func lowDetectionWarning(opts resolved, found int) analysis.Warning {
	return analysis.Warning{
		Code:    WarnLowDetectionCount,
		Message: fmt.Sprintf("only %d pattern(s) found with %s; consider looser parameters", found, opts),
		Suggested: &analysis.SuggestedParams{
			TolerancePct: math.Round(opts.TolerancePct*1.5*100) / 100,
			SwingDepth:   max(2, opts.SwingDepth-1),
			StrictPivots: false,
		},
	}
}

type candidateKey struct {
	t          analysis.PatternType
	start, end int
}

// reconcile marks accepted candidates that did not make it into the final
// list with the stage that removed them.
func reconcile(candidates []analysis.DebugCandidate, final, dropped []analysis.PatternEntry) []analysis.DebugCandidate {
	keyOf := func(p analysis.PatternEntry) candidateKey {
		return candidateKey{p.Type, p.StartIndex, p.EndIndex}
	}
	survivors := make(map[candidateKey]bool, len(final))
	for _, p := range final {
		survivors[keyOf(p)] = true
	}
	duplicates := make(map[candidateKey]bool, len(dropped))
	for _, p := range dropped {
		duplicates[keyOf(p)] = true
	}
	for i, cand := range candidates {
		if !cand.Accepted {
			continue
		}
		key := candidateKey{cand.Type, cand.StartIndex, cand.EndIndex}
		switch {
		case survivors[key]:
		case duplicates[key]:
			candidates[i].Accepted = false
			candidates[i].Reason = "duplicate_across_family"
		default:
			candidates[i].Accepted = false
			candidates[i].Reason = "filtered_out"
		}
	}
	return candidates
}

// trimCandidates caps the log at limit entries, accepted ones first.
func trimCandidates(candidates []analysis.DebugCandidate, limit int) []analysis.DebugCandidate {
	if limit <= 0 {
		limit = 200
	}
	out := make([]analysis.DebugCandidate, 0, min(limit, len(candidates)))
	for _, c := range candidates {
		if c.Accepted && len(out) < limit {
			out = append(out, c)
		}
	}
	for _, c := range candidates {
		if !c.Accepted && len(out) < limit {
			out = append(out, c)
		}
	}
	return out
}
