package indicators

import (
	"fmt"
	"math"

	talib "github.com/markcheno/go-talib"

	"pattern-scanner/internal/models"
)

// ATR calculates the Average True Range (Wilder smoothing).
type ATR struct {
	period int
}

// NewATR creates a new ATR indicator.
func NewATR(period int) *ATR {
	return &ATR{period: period}
}

func (a *ATR) Name() string {
	return fmt.Sprintf("ATR_%d", a.period)
}

func (a *ATR) Period() int {
	return a.period
}

// Calculate returns one value per candle. The warm-up prefix, which has no
// defined ATR, is NaN.
func (a *ATR) Calculate(candles []models.Candle) ([]float64, error) {
	if a.period <= 0 {
		return nil, ErrInvalidPeriod
	}
	if len(candles) < a.period+1 {
		return nil, ErrInsufficientData
	}

	highs := models.Highs(candles)
	lows := models.Lows(candles)
	closes := models.Closes(candles)
	if hasNaN(highs) || hasNaN(lows) || hasNaN(closes) {
		return a.calculateSkippingNaN(candles), nil
	}

	out := talib.Atr(highs, lows, closes, a.period)
	for i := 0; i < a.period && i < len(out); i++ {
		out[i] = math.NaN()
	}
	return out, nil
}

// calculateSkippingNaN is the Wilder recurrence restarted after every bar
// with a missing price.
func (a *ATR) calculateSkippingNaN(candles []models.Candle) []float64 {
	out := make([]float64, len(candles))
	var acc float64
	var count int
	for i := range candles {
		out[i] = math.NaN()
		if i == 0 {
			continue
		}
		tr := trueRange(candles[i], candles[i-1])
		if math.IsNaN(tr) {
			acc, count = 0, 0
			continue
		}
		switch {
		case count < a.period:
			acc += tr
			count++
			if count == a.period {
				acc /= float64(a.period)
				out[i] = acc
			}
		default:
			acc = (acc*float64(a.period-1) + tr) / float64(a.period)
			out[i] = acc
		}
	}
	return out
}

// ATRSeries is a convenience wrapper that never fails: when there is not
// enough data every value is NaN.
func ATRSeries(candles []models.Candle, period int) []float64 {
	values, err := NewATR(period).Calculate(candles)
	if err != nil {
		values = make([]float64, len(candles))
		for i := range values {
			values[i] = math.NaN()
		}
	}
	return values
}
