package store

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"pattern-scanner/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "candles.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// Property: saving candles and reading the same range back returns the same
// bars in timestamp order.
func TestProperty_CandleRoundTripConsistency(t *testing.T) {
	store := newTestStore(t)

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(42)

	properties := gopter.NewProperties(parameters)

	symbols := []string{"RELIANCE", "TCS", "INFY", "HDFCBANK", "ICICIBANK", "SBIN", "ITC", "LT"}
	timeframeGen := gen.OneConstOf(models.Timeframe5Min, models.Timeframe15Min, models.Timeframe1Hour, models.Timeframe1Day)

	run := 0
	properties.Property("Candle round-trip: save then retrieve produces equivalent data", prop.ForAll(
		func(symbolIdx int, timeframe models.Timeframe, count int, basePrice float64, baseVolume int64) bool {
			ctx := context.Background()
			run++
			symbol := fmt.Sprintf("%s_%d", symbols[symbolIdx%len(symbols)], run)

			candles := generateTestCandles(count, basePrice, baseVolume, timeframe)

			if err := store.SaveCandles(ctx, symbol, timeframe, candles); err != nil {
				t.Logf("Failed to save candles: %v", err)
				return false
			}

			from := candles[0].Timestamp.Add(-time.Second)
			to := candles[len(candles)-1].Timestamp.Add(time.Second)
			retrieved, err := store.GetCandles(ctx, symbol, timeframe, from, to)
			if err != nil {
				t.Logf("Failed to get candles: %v", err)
				return false
			}
			if len(retrieved) != len(candles) {
				t.Logf("Count mismatch: expected %d, got %d", len(candles), len(retrieved))
				return false
			}
			for i, orig := range candles {
				if !candlesEqual(orig, retrieved[i]) {
					t.Logf("Candle mismatch at index %d: original=%+v, retrieved=%+v", i, orig, retrieved[i])
					return false
				}
			}
			return models.CheckOrdering(retrieved) == nil
		},
		gen.IntRange(0, len(symbols)-1),
		timeframeGen,
		gen.IntRange(1, 40),
		gen.Float64Range(100.0, 5000.0),
		gen.Int64Range(1000, 1000000),
	))

	properties.Property("Saving twice does not duplicate bars", prop.ForAll(
		func(count int) bool {
			ctx := context.Background()
			run++
			symbol := fmt.Sprintf("DUP_%d", run)
			candles := generateTestCandles(count, 250, 5000, models.Timeframe1Day)

			for i := 0; i < 2; i++ {
				if err := store.SaveCandles(ctx, symbol, models.Timeframe1Day, candles); err != nil {
					return false
				}
			}
			got, err := store.GetCandles(ctx, symbol, models.Timeframe1Day, candles[0].Timestamp, candles[len(candles)-1].Timestamp)
			return err == nil && len(got) == count
		},
		gen.IntRange(1, 30),
	))

	properties.Property("Empty candles: saving empty slice should succeed", prop.ForAll(
		func(symbolIdx int) bool {
			err := store.SaveCandles(context.Background(), symbols[symbolIdx%len(symbols)], models.Timeframe1Day, []models.Candle{})
			return err == nil
		},
		gen.IntRange(0, len(symbols)-1),
	))

	properties.TestingRun(t)
}

func TestSQLiteStore_FreshnessAndSeries(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	fresh, err := store.GetCandlesFreshness(ctx, "INFY", models.Timeframe1Day)
	if err != nil || !fresh.IsZero() {
		t.Fatalf("empty series freshness = %v, %v", fresh, err)
	}

	daily := generateTestCandles(10, 1500, 10000, models.Timeframe1Day)
	hourly := generateTestCandles(4, 1500, 10000, models.Timeframe1Hour)
	if err := store.SaveCandles(ctx, "INFY", models.Timeframe1Day, daily); err != nil {
		t.Fatal(err)
	}
	if err := store.SaveCandles(ctx, "INFY", models.Timeframe1Hour, hourly); err != nil {
		t.Fatal(err)
	}

	fresh, err = store.GetCandlesFreshness(ctx, "INFY", models.Timeframe1Day)
	if err != nil {
		t.Fatal(err)
	}
	if !fresh.Equal(daily[len(daily)-1].Timestamp) {
		t.Errorf("freshness = %v, want %v", fresh, daily[len(daily)-1].Timestamp)
	}

	series, err := store.ListSeries(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(series) != 2 {
		t.Fatalf("series = %+v", series)
	}
	if series[0].Timeframe != models.Timeframe1Day || series[0].Bars != 10 {
		t.Errorf("first series = %+v", series[0])
	}
	if !series[0].First.Equal(daily[0].Timestamp) || !series[0].Last.Equal(daily[9].Timestamp) {
		t.Errorf("first series span = %v..%v", series[0].First, series[0].Last)
	}
	if series[1].Timeframe != models.Timeframe1Hour || series[1].Bars != 4 {
		t.Errorf("second series = %+v", series[1])
	}
}

func TestSQLiteStore_LastSync(t *testing.T) {
	store := newTestStore(t)
	key := SyncKey("TCS", models.Timeframe1Day)

	if got := store.GetLastSync(key); !got.IsZero() {
		t.Fatalf("unset sync = %v", got)
	}
	at := time.Date(2024, 3, 1, 15, 30, 0, 0, time.UTC)
	if err := store.SetLastSync(key, at); err != nil {
		t.Fatal(err)
	}
	if got := store.GetLastSync(key); !got.Equal(at) {
		t.Errorf("sync = %v, want %v", got, at)
	}
}

// generateTestCandles creates valid candles spaced one timeframe apart.
func generateTestCandles(count int, basePrice float64, baseVolume int64, tf models.Timeframe) []models.Candle {
	candles := make([]models.Candle, count)
	baseTime := time.Date(2024, 1, 1, 9, 15, 0, 0, time.UTC)

	for i := 0; i < count; i++ {
		variation := float64(i%10) * 0.01 * basePrice
		open := basePrice + variation
		close := basePrice + variation*0.5

		high := math.Max(open, close) * 1.01
		low := math.Min(open, close) * 0.99

		candles[i] = models.Candle{
			Timestamp: baseTime.Add(time.Duration(i) * tf.Duration()),
			Open:      roundToDecimal(open, 2),
			High:      roundToDecimal(high, 2),
			Low:       roundToDecimal(low, 2),
			Close:     roundToDecimal(close, 2),
			Volume:    baseVolume + int64(i*1000),
		}
	}

	return candles
}

// roundToDecimal rounds a float to specified decimal places
func roundToDecimal(val float64, places int) float64 {
	multiplier := math.Pow(10, float64(places))
	return math.Round(val*multiplier) / multiplier
}

// candlesEqual compares two candles for equality with floating point tolerance.
func candlesEqual(a, b models.Candle) bool {
	const tolerance = 0.01

	if !a.Timestamp.Equal(b.Timestamp) {
		return false
	}
	if !floatEqual(a.Open, b.Open, tolerance) ||
		!floatEqual(a.High, b.High, tolerance) ||
		!floatEqual(a.Low, b.Low, tolerance) ||
		!floatEqual(a.Close, b.Close, tolerance) {
		return false
	}
	return a.Volume == b.Volume
}

func floatEqual(a, b, tolerance float64) bool {
	return math.Abs(a-b) <= tolerance
}
