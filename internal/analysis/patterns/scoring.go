package patterns

import (
	"math"

	"github.com/shopspring/decimal"
)

// Component is one weighted input of the confidence score.
type Component struct {
	Name   string
	Weight float64
	Value  float64
}

// Component weights.
const (
	weightTolerance   = 0.25
	weightSymmetry    = 0.15
	weightDuration    = 0.15
	weightFit         = 0.20
	weightTouches     = 0.15
	weightContainment = 0.10
)

func toleranceComponent(v float64) Component {
	return Component{Name: "tolerance", Weight: weightTolerance, Value: v}
}

func symmetryComponent(v float64) Component {
	return Component{Name: "symmetry", Weight: weightSymmetry, Value: v}
}

func durationComponent(v float64) Component {
	return Component{Name: "duration", Weight: weightDuration, Value: v}
}

func fitComponent(v float64) Component {
	return Component{Name: "fit", Weight: weightFit, Value: v}
}

func touchesComponent(v float64) Component {
	return Component{Name: "touches", Weight: weightTouches, Value: v}
}

func containmentComponent(v float64) Component {
	return Component{Name: "containment", Weight: weightContainment, Value: v}
}

// Score combines the supplied components into a confidence in [0,1]:
// each value is clamped, the weighted average over the supplied components
// is multiplied by the family adjustment, clamped again and rounded to two
// decimals.
func Score(adjustment float64, components ...Component) float64 {
	var sum, weights float64
	for _, c := range components {
		if c.Weight <= 0 {
			continue
		}
		sum += c.Weight * clamp01(c.Value)
		weights += c.Weight
	}
	if weights == 0 {
		return 0
	}
	return round2(clamp01(sum / weights * adjustment))
}

// marginScore is 1 when diff is 0 and falls to 0 at tol.
func marginScore(diff, tol float64) float64 {
	if tol <= 0 {
		return 0
	}
	return clamp01(1 - math.Abs(diff)/tol)
}

// ratioScore is min/max of two non-negative magnitudes.
func ratioScore(a, b float64) float64 {
	a, b = math.Abs(a), math.Abs(b)
	hi := math.Max(a, b)
	if hi == 0 {
		return 1
	}
	return math.Min(a, b) / hi
}

// touchScore maps a total touch count to [0,1]; two touches score 0, six or
// more score 1.
func touchScore(touches int) float64 {
	return clamp01(float64(touches-2) / 4)
}

// durationScore evaluates the day-count curve of a family.
func durationScore(days float64, spec DurationSpec) float64 {
	switch {
	case days <= 0 || math.IsNaN(days):
		return 0
	case days < spec.MinDays:
		return 0.3 * days / spec.MinDays
	case days < spec.IdealLoDays:
		return 0.3 + 0.7*(days-spec.MinDays)/(spec.IdealLoDays-spec.MinDays)
	case days <= spec.IdealHiDays:
		return 1
	case days < spec.MaxDays:
		return 1 - 0.6*(days-spec.IdealHiDays)/(spec.MaxDays-spec.IdealHiDays)
	default:
		return 0.3
	}
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
