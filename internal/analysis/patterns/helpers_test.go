package patterns

import (
	"time"

	"github.com/rs/zerolog"

	"pattern-scanner/internal/analysis"
	"pattern-scanner/internal/models"
)

// waypoint is a close price pinned at a bar index.
type waypoint struct {
	index int
	price float64
}

// pathCandles interpolates closes linearly between waypoints and wraps each
// close in a bar spanning spread on either side.
func pathCandles(spread float64, points ...waypoint) []models.Candle {
	last := points[len(points)-1].index
	candles := make([]models.Candle, last+1)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for seg := 1; seg < len(points); seg++ {
		a, b := points[seg-1], points[seg]
		for i := a.index; i <= b.index; i++ {
			t := float64(i-a.index) / float64(b.index-a.index)
			close := a.price + t*(b.price-a.price)
			candles[i] = models.Candle{
				Timestamp: base.AddDate(0, 0, i),
				Open:      close,
				High:      close + spread,
				Low:       close - spread,
				Close:     close,
				Volume:    1000,
			}
		}
	}
	return candles
}

func testEngine(mutate func(*Options)) *Engine {
	opts := DefaultOptions()
	if mutate != nil {
		mutate(&opts)
	}
	return NewEngine(opts, zerolog.Nop())
}

func ofType(entries []analysis.PatternEntry, t analysis.PatternType) []analysis.PatternEntry {
	var out []analysis.PatternEntry
	for _, e := range entries {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// wShape is a double bottom at bars 10 and 26 with a neckline near 112.5
// and an upside breakout.
func wShape() []models.Candle {
	return pathCandles(0.5,
		waypoint{0, 120},
		waypoint{10, 100},
		waypoint{18, 112},
		waypoint{26, 100.5},
		waypoint{34, 116},
		waypoint{45, 125},
	)
}

// ascendingTriangle has flat highs at 110.3 and rising lows, still inside
// the triangle on the last bar.
func ascendingTriangle() []models.Candle {
	return pathCandles(0.3,
		waypoint{0, 100},
		waypoint{5, 110},
		waypoint{10, 102},
		waypoint{15, 110},
		waypoint{20, 104},
		waypoint{25, 110},
		waypoint{30, 106},
		waypoint{35, 110},
		waypoint{40, 107.5},
		waypoint{42, 108.5},
	)
}
