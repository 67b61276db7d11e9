package indicators

import (
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"pattern-scanner/internal/models"
)

// candleGen generates valid candle data with realistic OHLCV values
func candleGen() gopter.Gen {
	return gen.Struct(reflect.TypeOf(models.Candle{}), map[string]gopter.Gen{
		"Timestamp": gen.Const(time.Time{}),
		"Open":      gen.Float64Range(100.0, 1000.0),
		"High":      gen.Float64Range(100.0, 1000.0),
		"Low":       gen.Float64Range(100.0, 1000.0),
		"Close":     gen.Float64Range(100.0, 1000.0),
		"Volume":    gen.Int64Range(1000, 10000000),
	}).Map(func(c models.Candle) models.Candle {
		c.High = math.Max(c.High, math.Max(c.Open, c.Close))
		c.Low = math.Min(c.Low, math.Min(c.Open, c.Close))
		return c
	})
}

// candleSliceGen generates a slice of valid candles with increasing timestamps
func candleSliceGen(minLen, maxLen int) gopter.Gen {
	return gen.SliceOfN(maxLen, candleGen()).
		SuchThat(func(candles []models.Candle) bool { return len(candles) >= minLen }).
		Map(func(candles []models.Candle) []models.Candle {
			base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
			for i := range candles {
				candles[i].Timestamp = base.Add(time.Duration(i) * 24 * time.Hour)
			}
			return candles
		})
}

func TestProperty_ATRNonNegativeAfterWarmup(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(42)
	parameters.MaxShrinkCount = 0

	properties := gopter.NewProperties(parameters)

	properties.Property("ATR is NaN during warm-up and non-negative after", prop.ForAll(
		func(candles []models.Candle) bool {
			const period = 14
			values, err := NewATR(period).Calculate(candles)
			if err != nil {
				return false
			}
			if len(values) != len(candles) {
				return false
			}
			for i, v := range values {
				if i < period {
					if !math.IsNaN(v) {
						return false
					}
					continue
				}
				if math.IsNaN(v) || v < 0 {
					return false
				}
			}
			return true
		},
		candleSliceGen(30, 60),
	))

	properties.TestingRun(t)
}

func TestATR_InsufficientData(t *testing.T) {
	candles := make([]models.Candle, 5)
	if _, err := NewATR(14).Calculate(candles); err != ErrInsufficientData {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
	if _, err := NewATR(0).Calculate(candles); err != ErrInvalidPeriod {
		t.Fatalf("expected ErrInvalidPeriod, got %v", err)
	}

	series := ATRSeries(candles, 14)
	if len(series) != 5 {
		t.Fatalf("expected 5 values, got %d", len(series))
	}
	for _, v := range series {
		if !math.IsNaN(v) {
			t.Fatalf("expected NaN series, got %v", series)
		}
	}
}

func TestATR_ConstantRange(t *testing.T) {
	// Every bar spans exactly 2 points and closes mid-range, so TR is always 2.
	candles := make([]models.Candle, 30)
	for i := range candles {
		candles[i] = models.Candle{Open: 100, High: 101, Low: 99, Close: 100}
	}
	values, err := NewATR(5).Calculate(candles)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 5; i < len(values); i++ {
		if math.Abs(values[i]-2) > 1e-9 {
			t.Fatalf("ATR[%d] = %v, want 2", i, values[i])
		}
	}
}

func TestATR_SkipsMissingBars(t *testing.T) {
	candles := make([]models.Candle, 20)
	for i := range candles {
		candles[i] = models.Candle{Open: 100, High: 101, Low: 99, Close: 100}
	}
	candles[10].High = math.NaN()

	values, err := NewATR(3).Calculate(candles)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !math.IsNaN(values[10]) {
		t.Fatalf("expected NaN at the missing bar, got %v", values[10])
	}
	if math.IsNaN(values[19]) || math.Abs(values[19]-2) > 1e-9 {
		t.Fatalf("expected ATR to recover to 2, got %v", values[19])
	}
}
