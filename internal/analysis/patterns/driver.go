package patterns

import (
	"pattern-scanner/internal/analysis"
)

// classifyFunc runs one pass of a family over the context with the given
// tolerance.
type classifyFunc func(c *DetectionContext, tol float64) []analysis.PatternEntry

// family wires a classifier into the shared driver.
type family struct {
	name    analysis.Family
	types   []analysis.PatternType
	detect  classifyFunc
	forming classifyFunc
}

// families lists every classifier in a fixed order.
func families() []family {
	return []family{
		{
			name:    analysis.FamilyDouble,
			types:   []analysis.PatternType{analysis.DoubleTop, analysis.DoubleBottom},
			detect:  detectDoubles,
			forming: detectFormingDoubles,
		},
		{
			name:    analysis.FamilyHeadAndShoulders,
			types:   []analysis.PatternType{analysis.HeadAndShoulders, analysis.InverseHeadAndShoulders},
			detect:  detectHeadAndShoulders,
			forming: detectFormingHeadAndShoulders,
		},
		{
			name:   analysis.FamilyTriangle,
			types:  []analysis.PatternType{analysis.TriangleAscending, analysis.TriangleDescending, analysis.TriangleSymmetrical},
			detect: detectTriangles,
		},
		{
			name:   analysis.FamilyWedge,
			types:  []analysis.PatternType{analysis.RisingWedge, analysis.FallingWedge},
			detect: detectWedges,
		},
		{
			name:   analysis.FamilyFlag,
			types:  []analysis.PatternType{analysis.Flag},
			detect: detectFlags,
		},
		{
			name:   analysis.FamilyPennant,
			types:  []analysis.PatternType{analysis.Pennant},
			detect: detectPennants,
		},
		{
			name:    analysis.FamilyTriple,
			types:   []analysis.PatternType{analysis.TripleTop, analysis.TripleBottom},
			detect:  detectTriples,
			forming: detectFormingTriples,
		},
	}
}

// wanted reports whether any of the family's types was requested.
func (f family) wanted(c *DetectionContext) bool {
	for _, t := range f.types {
		if c.Wants(t) {
			return true
		}
	}
	return false
}

// run is the template every family goes through: strict pass, relaxed
// fallback passes when the strict pass yields nothing returnable, the
// forming variant, then within-family deduplication.
func (f family) run(c *DetectionContext) []analysis.PatternEntry {
	if !f.wanted(c) {
		return nil
	}

	c.passMult = 1
	entries := f.pass(c, f.detect, c.Tolerance)
	if len(entries) == 0 {
		for _, step := range c.Tuning.RelaxSteps[f.name] {
			c.passMult = step.ToleranceMult
			relaxed := f.detect(c, c.Tolerance*step.ToleranceMult)
			for i := range relaxed {
				relaxed[i].Relaxed = true
				relaxed[i].ToleranceMultiplier = step.ToleranceMult
				relaxed[i].Confidence = round2(clamp01(relaxed[i].Confidence * step.Penalty))
			}
			entries = f.filter(c, relaxed)
			if len(entries) > 0 {
				break
			}
		}
		c.passMult = 1
	}

	if c.IncludeForming && f.forming != nil {
		entries = append(entries, f.pass(c, f.forming, c.Tolerance)...)
	}

	kept, dropped := DedupWithinFamily(entries)
	for _, e := range dropped {
		c.reject(e.Type, "duplicate_within_family", e.StartIndex, e.EndIndex)
	}
	for _, e := range kept {
		c.accept(e)
	}
	return kept
}

func (f family) pass(c *DetectionContext, fn classifyFunc, tol float64) []analysis.PatternEntry {
	return f.filter(c, fn(c, tol))
}

// filter drops unrequested types, excluded statuses and entries below their
// minimum confidence.
func (f family) filter(c *DetectionContext, entries []analysis.PatternEntry) []analysis.PatternEntry {
	out := entries[:0]
	for _, e := range entries {
		if !c.Wants(e.Type) {
			continue
		}
		if !c.statusWanted(e.Status) {
			c.reject(e.Type, "status_excluded", e.StartIndex, e.EndIndex)
			continue
		}
		if e.Confidence < c.Tuning.MinConfidence[e.Type] {
			c.reject(e.Type, "confidence_below_minimum", e.StartIndex, e.EndIndex)
			continue
		}
		out = append(out, e)
	}
	return out
}
