package patterns

import (
	"golang.org/x/exp/slices"

	"pattern-scanner/internal/analysis"
)

// Overlap thresholds.
const (
	withinFamilyOverlap = 0.5
	globalOverlap       = 0.7
)

// Overlap is the shared bar span of a and b divided by the shorter span.
func Overlap(a, b analysis.PatternEntry) float64 {
	lo := max(a.StartIndex, b.StartIndex)
	hi := min(a.EndIndex, b.EndIndex)
	shared := hi - lo
	if shared <= 0 {
		return 0
	}
	shorter := min(a.Bars(), b.Bars())
	if shorter <= 0 {
		return 0
	}
	return float64(shared) / float64(shorter)
}

// DedupWithinFamily removes same-type entries that overlap by more than half
// of the shorter one. The survivor is the one ending latest, then the most
// confident, then (doubles only) the tallest, then the earliest start.
func DedupWithinFamily(entries []analysis.PatternEntry) (kept, dropped []analysis.PatternEntry) {
	sorted := slices.Clone(entries)
	slices.SortStableFunc(sorted, func(a, b analysis.PatternEntry) int {
		if a.EndIndex != b.EndIndex {
			return b.EndIndex - a.EndIndex
		}
		if a.Confidence != b.Confidence {
			return cmpDesc(a.Confidence, b.Confidence)
		}
		if a.Type.Family() == analysis.FamilyDouble && a.Height != b.Height {
			return cmpDesc(a.Height, b.Height)
		}
		return a.StartIndex - b.StartIndex
	})
	return greedy(sorted, func(a, b analysis.PatternEntry) bool {
		return a.Type == b.Type && Overlap(a, b) > withinFamilyOverlap
	})
}

// DedupGlobal removes entries of the same category (all triangles, all
// wedges, otherwise the type itself) overlapping by 70% or more, keeping the
// most confident and then the one ending later.
func DedupGlobal(entries []analysis.PatternEntry) (kept, dropped []analysis.PatternEntry) {
	sorted := slices.Clone(entries)
	slices.SortStableFunc(sorted, func(a, b analysis.PatternEntry) int {
		if a.Confidence != b.Confidence {
			return cmpDesc(a.Confidence, b.Confidence)
		}
		if a.EndIndex != b.EndIndex {
			return b.EndIndex - a.EndIndex
		}
		if a.StartIndex != b.StartIndex {
			return a.StartIndex - b.StartIndex
		}
		return compareStrings(string(a.Type), string(b.Type))
	})
	return greedy(sorted, func(a, b analysis.PatternEntry) bool {
		return a.Type.Category() == b.Type.Category() && Overlap(a, b) >= globalOverlap
	})
}

// greedy keeps entries in preference order unless they duplicate one
// already kept, then restores chronological order.
func greedy(sorted []analysis.PatternEntry, dup func(a, b analysis.PatternEntry) bool) (kept, dropped []analysis.PatternEntry) {
	for _, e := range sorted {
		duplicate := false
		for _, k := range kept {
			if dup(e, k) {
				duplicate = true
				break
			}
		}
		if duplicate {
			dropped = append(dropped, e)
			continue
		}
		kept = append(kept, e)
	}
	sortChronological(kept)
	return kept, dropped
}

// sortChronological orders entries by start, end and type.
func sortChronological(entries []analysis.PatternEntry) {
	slices.SortStableFunc(entries, func(a, b analysis.PatternEntry) int {
		if a.StartIndex != b.StartIndex {
			return a.StartIndex - b.StartIndex
		}
		if a.EndIndex != b.EndIndex {
			return a.EndIndex - b.EndIndex
		}
		return compareStrings(string(a.Type), string(b.Type))
	})
}

func cmpDesc(a, b float64) int {
	switch {
	case a > b:
		return -1
	case a < b:
		return 1
	default:
		return 0
	}
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
