package screener

import (
	"sort"

	"pattern-scanner/internal/analysis"
	"pattern-scanner/internal/analysis/patterns"
)

// Preset is a named combination of pattern types and a match filter.
type Preset struct {
	Name        string
	Description string
	Patterns    []analysis.PatternType
	Filter      Filter
	Forming     bool
}

// Apply returns opts narrowed to the preset's pattern types.
func (p Preset) Apply(opts patterns.Options) patterns.Options {
	if len(p.Patterns) > 0 {
		opts.Patterns = append([]analysis.PatternType(nil), p.Patterns...)
	}
	if p.Forming {
		opts.IncludeForming = true
	}
	return opts
}

// Presets returns the built-in presets keyed by name.
func Presets() map[string]Preset {
	presets := []Preset{
		BullishReversalPreset(),
		BearishReversalPreset(),
		ContinuationPreset(),
		FormingBreakoutPreset(),
	}
	out := make(map[string]Preset, len(presets))
	for _, p := range presets {
		out[p.Name] = p
	}
	return out
}

// PresetNames returns the preset names in order.
func PresetNames() []string {
	presets := Presets()
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BullishReversalPreset finds completed bottoming patterns.
func BullishReversalPreset() Preset {
	return Preset{
		Name:        "bullish_reversal",
		Description: "Completed bottoms: double, triple and inverse head and shoulders",
		Patterns: []analysis.PatternType{
			analysis.DoubleBottom,
			analysis.TripleBottom,
			analysis.InverseHeadAndShoulders,
		},
		Filter: Filter{
			MinConfidence: 0.6,
			Statuses:      []analysis.Status{analysis.StatusCompleted},
			Direction:     analysis.PatternBullish,
		},
	}
}

// BearishReversalPreset finds completed topping patterns.
func BearishReversalPreset() Preset {
	return Preset{
		Name:        "bearish_reversal",
		Description: "Completed tops: double, triple and head and shoulders",
		Patterns: []analysis.PatternType{
			analysis.DoubleTop,
			analysis.TripleTop,
			analysis.HeadAndShoulders,
		},
		Filter: Filter{
			MinConfidence: 0.6,
			Statuses:      []analysis.Status{analysis.StatusCompleted},
			Direction:     analysis.PatternBearish,
		},
	}
}

// ContinuationPreset finds flags and pennants.
func ContinuationPreset() Preset {
	return Preset{
		Name:        "continuation",
		Description: "Flags and pennants after a strong pole",
		Patterns: []analysis.PatternType{
			analysis.Flag,
			analysis.Pennant,
		},
		Filter: Filter{MinConfidence: 0.55},
	}
}

// FormingBreakoutPreset finds converging shapes that have not broken out.
func FormingBreakoutPreset() Preset {
	return Preset{
		Name:        "forming_breakout",
		Description: "Triangles and wedges still forming near their apex",
		Patterns: []analysis.PatternType{
			analysis.TriangleAscending,
			analysis.TriangleDescending,
			analysis.TriangleSymmetrical,
			analysis.RisingWedge,
			analysis.FallingWedge,
		},
		Filter: Filter{
			MinConfidence: 0.5,
			Statuses:      []analysis.Status{analysis.StatusForming, analysis.StatusNearCompletion},
		},
		Forming: true,
	}
}
