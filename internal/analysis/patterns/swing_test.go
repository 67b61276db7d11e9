package patterns

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"pattern-scanner/internal/analysis"
)

func TestFindSwings_Strict(t *testing.T) {
	highs := []float64{1, 2, 3, 9, 3, 2, 1, 2, 3, 4, 5}
	lows := []float64{0, 1, 2, 8, 2, 1, 0, 1, 2, 3, 4}

	swings := FindSwings(highs, lows, 2, true)
	if len(swings) != 2 {
		t.Fatalf("expected 2 swings, got %+v", swings)
	}
	if swings[0].Index != 3 || swings[0].Kind != analysis.SwingPeak || swings[0].Price != 9 {
		t.Errorf("unexpected peak %+v", swings[0])
	}
	if swings[1].Index != 6 || swings[1].Kind != analysis.SwingValley || swings[1].Price != 0 {
		t.Errorf("unexpected valley %+v", swings[1])
	}
}

func TestFindSwings_StrictRequiresUniqueExtreme(t *testing.T) {
	highs := []float64{1, 2, 5, 5, 2, 1, 0}
	lows := []float64{0, 1, 4, 4, 1, 0, -1}
	for _, s := range FindSwings(highs, lows, 2, true) {
		if s.Kind == analysis.SwingPeak {
			t.Fatalf("tied highs must not form a strict peak, got %+v", s)
		}
	}
}

func TestFindSwings_RelaxedPlateau(t *testing.T) {
	highs := []float64{1, 2, 2, 1, 3}
	lows := []float64{0, 1, 1, 0, 2}
	swings := FindSwings(highs, lows, 5, false)

	var peaks []analysis.SwingPoint
	for _, s := range swings {
		if s.Kind == analysis.SwingPeak {
			peaks = append(peaks, s)
		}
	}
	if len(peaks) != 1 || peaks[0].Index != 1 {
		t.Fatalf("expected one peak at the start of the plateau, got %+v", peaks)
	}
}

func TestFindSwings_SkipsNaN(t *testing.T) {
	highs := []float64{1, 2, math.NaN(), 2, 1, 5, 1}
	lows := []float64{0, 1, 1, 1, 0, 4, 0}
	for _, s := range FindSwings(highs, lows, 1, true) {
		if s.Kind == analysis.SwingPeak && s.Index >= 1 && s.Index <= 3 {
			t.Fatalf("peak next to NaN should be skipped, got %+v", s)
		}
	}
}

func TestFindSwings_ShortInput(t *testing.T) {
	if got := FindSwings([]float64{1, 2}, []float64{0, 1}, 3, true); len(got) != 0 {
		t.Fatalf("expected no swings, got %+v", got)
	}
	if got := FindSwings(nil, nil, 1, false); len(got) != 0 {
		t.Fatalf("expected no swings, got %+v", got)
	}
}

func TestProperty_MonotonicSeriesHasNoSwings(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(7)
	parameters.MaxShrinkCount = 0

	properties := gopter.NewProperties(parameters)

	properties.Property("strictly increasing series has no peaks or valleys", prop.ForAll(
		func(steps []float64, depth int, strict bool) bool {
			highs := make([]float64, len(steps))
			lows := make([]float64, len(steps))
			level := 100.0
			for i, s := range steps {
				level += s
				highs[i] = level + 1
				lows[i] = level - 1
			}
			return len(FindSwings(highs, lows, depth, strict)) == 0
		},
		gen.SliceOfN(60, gen.Float64Range(0.01, 5)),
		gen.IntRange(1, 6),
		gen.Bool(),
	))

	properties.Property("strict swings alternate index order within a kind", prop.ForAll(
		func(steps []float64) bool {
			highs := make([]float64, len(steps))
			lows := make([]float64, len(steps))
			level := 100.0
			for i, s := range steps {
				level += s
				highs[i] = level + 1
				lows[i] = level - 1
			}
			peaks, valleys := splitSwings(FindSwings(highs, lows, 2, true))
			for _, list := range [][]analysis.SwingPoint{peaks, valleys} {
				for i := 1; i < len(list); i++ {
					if list[i].Index <= list[i-1].Index {
						return false
					}
				}
			}
			return true
		},
		gen.SliceOfN(80, gen.Float64Range(-3, 3)),
	))

	properties.TestingRun(t)
}
