package patterns

import (
	"math"
	"sort"

	"pattern-scanner/internal/analysis"
	"pattern-scanner/internal/models"
)

// FindSwings locates local extremes of the high and low series.
//
// In strict mode bar i is a peak when its high is the unique maximum over
// [i-depth, i+depth] (valleys use the lows); the first and last depth bars
// can never qualify. In relaxed mode depth is 1 and the test is
// high[i] > high[i-1] && high[i] >= high[i+1], so plateaus yield one pivot.
// Windows containing NaN are skipped. The result is sorted by index with a
// peak ahead of a valley on the same bar.
func FindSwings(highs, lows []float64, depth int, strict bool) []analysis.SwingPoint {
	n := min(len(highs), len(lows))
	if !strict {
		depth = 1
	}
	if depth < 1 {
		depth = 1
	}
	if n < 2*depth+1 {
		return nil
	}

	var swings []analysis.SwingPoint
	for i := depth; i < n-depth; i++ {
		if isPeak(highs, i, depth, strict) {
			swings = append(swings, analysis.SwingPoint{Index: i, Price: highs[i], Kind: analysis.SwingPeak})
		}
		if isValley(lows, i, depth, strict) {
			swings = append(swings, analysis.SwingPoint{Index: i, Price: lows[i], Kind: analysis.SwingValley})
		}
	}
	return swings
}

func isPeak(highs []float64, i, depth int, strict bool) bool {
	h := highs[i]
	if math.IsNaN(h) {
		return false
	}
	if !strict {
		prev, next := highs[i-1], highs[i+1]
		if math.IsNaN(prev) || math.IsNaN(next) {
			return false
		}
		return h > prev && h >= next
	}
	for j := i - depth; j <= i+depth; j++ {
		if j == i {
			continue
		}
		if math.IsNaN(highs[j]) || highs[j] >= h {
			return false
		}
	}
	return true
}

func isValley(lows []float64, i, depth int, strict bool) bool {
	l := lows[i]
	if math.IsNaN(l) {
		return false
	}
	if !strict {
		prev, next := lows[i-1], lows[i+1]
		if math.IsNaN(prev) || math.IsNaN(next) {
			return false
		}
		return l < prev && l <= next
	}
	for j := i - depth; j <= i+depth; j++ {
		if j == i {
			continue
		}
		if math.IsNaN(lows[j]) || lows[j] <= l {
			return false
		}
	}
	return true
}

// snapToRaw moves swings found on a smoothed series to the raw extreme
// within radius bars, takes the raw price and stamps timestamps. Swings that
// collapse onto the same bar are merged.
func snapToRaw(swings []analysis.SwingPoint, candles []models.Candle, radius int, snap bool) []analysis.SwingPoint {
	out := make([]analysis.SwingPoint, 0, len(swings))
	seen := make(map[[2]int]bool, len(swings))
	for _, s := range swings {
		idx := s.Index
		if snap {
			idx = rawExtreme(candles, s.Index, radius, s.Kind)
		}
		if idx < 0 {
			continue
		}
		kind := 0
		if s.Kind == analysis.SwingValley {
			kind = 1
		}
		key := [2]int{idx, kind}
		if seen[key] {
			continue
		}
		seen[key] = true

		price := candles[idx].High
		if s.Kind == analysis.SwingValley {
			price = candles[idx].Low
		}
		out = append(out, analysis.SwingPoint{
			Index:     idx,
			Price:     price,
			Kind:      s.Kind,
			Timestamp: candles[idx].Timestamp,
		})
	}
	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Index != out[b].Index {
			return out[a].Index < out[b].Index
		}
		return out[a].Kind == analysis.SwingPeak && out[b].Kind == analysis.SwingValley
	})
	return out
}

func rawExtreme(candles []models.Candle, center, radius int, kind analysis.SwingKind) int {
	best := -1
	for j := max(0, center-radius); j <= min(len(candles)-1, center+radius); j++ {
		var v float64
		if kind == analysis.SwingPeak {
			v = candles[j].High
		} else {
			v = candles[j].Low
		}
		if math.IsNaN(v) {
			continue
		}
		if best < 0 {
			best = j
			continue
		}
		if kind == analysis.SwingPeak && v > candles[best].High {
			best = j
		}
		if kind == analysis.SwingValley && v < candles[best].Low {
			best = j
		}
	}
	return best
}

// splitSwings separates peaks from valleys, keeping index order.
func splitSwings(swings []analysis.SwingPoint) (peaks, valleys []analysis.SwingPoint) {
	for _, s := range swings {
		if s.Kind == analysis.SwingPeak {
			peaks = append(peaks, s)
		} else {
			valleys = append(valleys, s)
		}
	}
	return peaks, valleys
}

// swingsBetween returns the swings with lo <= Index <= hi.
func swingsBetween(swings []analysis.SwingPoint, lo, hi int) []analysis.SwingPoint {
	start := sort.Search(len(swings), func(i int) bool { return swings[i].Index >= lo })
	end := start
	for end < len(swings) && swings[end].Index <= hi {
		end++
	}
	return swings[start:end]
}
