package feed

import (
	"math"
	"testing"
	"time"

	"pattern-scanner/internal/errors"
	"pattern-scanner/internal/models"
)

func day(d int) time.Time {
	return time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC)
}

func bar(t time.Time, o, h, l, c float64, v int64) models.Candle {
	return models.Candle{Timestamp: t, Open: o, High: h, Low: l, Close: c, Volume: v}
}

func TestRequestValidate(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		ok   bool
	}{
		{"valid", Request{Symbol: "INFY", Timeframe: models.Timeframe1Day}, true},
		{"missing symbol", Request{Symbol: " ", Timeframe: models.Timeframe1Day}, false},
		{"bad timeframe", Request{Symbol: "INFY", Timeframe: "3day"}, false},
		{"inverted range", Request{Symbol: "INFY", Timeframe: models.Timeframe1Day, From: day(10), To: day(5)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if (err == nil) != tt.ok {
				t.Fatalf("Validate() = %v", err)
			}
			if err != nil && !errors.Is(err, errors.ErrInputValidation) {
				t.Errorf("expected a validation error, got %v", err)
			}
		})
	}
}

func TestRequestNormalize(t *testing.T) {
	req := Request{Symbol: " infy ", Timeframe: models.Timeframe1Day}.Normalize()
	if req.Symbol != "INFY" || req.Exchange != DefaultExchange {
		t.Errorf("Normalize() = %+v", req)
	}
}

func TestClean(t *testing.T) {
	in := []models.Candle{
		bar(day(6), 10, 11, 9, 10.5, 100),
		bar(day(4), 10, 11, 9, 10.2, 100),
		bar(day(5), 10, 9, 11, 10, 100), // high below low
		bar(day(6), 10, 12, 9, 11.5, 200),
		bar(day(7), math.NaN(), math.NaN(), math.NaN(), math.NaN(), 0),
	}

	out := Clean(in)

	if len(out) != 3 {
		t.Fatalf("Clean() kept %d bars, want 3: %+v", len(out), out)
	}
	if err := models.CheckOrdering(out); err != nil {
		t.Error(err)
	}
	if out[1].Close != 11.5 {
		t.Errorf("duplicate timestamp should keep the last bar, got close %v", out[1].Close)
	}
	if !math.IsNaN(out[2].Close) {
		t.Error("NaN bars are passed through")
	}
	if in[0].Timestamp != day(6) {
		t.Error("input slice must not be reordered")
	}
}

func TestResample(t *testing.T) {
	// 2024-03-04 is a Monday.
	daily := []models.Candle{
		bar(day(4), 100, 105, 99, 104, 10),
		bar(day(5), 104, 108, 103, 107, 10),
		bar(day(6), 107, 107, 95, 96, 10),
		bar(day(8), 96, 100, 94, 99, 10),
		bar(day(11), 99, 101, 98, 100, 5),
	}

	weekly := Resample(daily, time.UTC)

	if len(weekly) != 2 {
		t.Fatalf("Resample() = %d bars, want 2", len(weekly))
	}
	w := weekly[0]
	if !w.Timestamp.Equal(day(4)) || w.Open != 100 || w.High != 108 || w.Low != 94 || w.Close != 99 || w.Volume != 40 {
		t.Errorf("first week = %+v", w)
	}
	if !weekly[1].Timestamp.Equal(day(11)) || weekly[1].Volume != 5 {
		t.Errorf("second week = %+v", weekly[1])
	}
}
