// Package feed supplies OHLCV bars to the scanner from files, the Kite
// Connect historical API or the local SQLite cache.
package feed

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"pattern-scanner/internal/errors"
	"pattern-scanner/internal/models"
)

// BarProvider returns bars for one symbol and timeframe, oldest first.
type BarProvider interface {
	Name() string
	Bars(ctx context.Context, req Request) ([]models.Candle, error)
}

// Request selects a bar range. A zero From or To leaves that side open.
type Request struct {
	Symbol    string
	Exchange  string
	Timeframe models.Timeframe
	From      time.Time
	To        time.Time
}

// DefaultExchange is used when a request names none.
const DefaultExchange = "NSE"

// Validate checks the request fields.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Symbol) == "" {
		return errors.NewValidationError("symbol", r.Symbol, "symbol is required")
	}
	if !r.Timeframe.Valid() {
		return errors.NewValidationError("timeframe", r.Timeframe, "unknown timeframe")
	}
	if !r.From.IsZero() && !r.To.IsZero() && r.To.Before(r.From) {
		return errors.NewValidationError("to", r.To, "range ends before it starts")
	}
	return nil
}

// Normalize returns the request with an upper-cased symbol and a default
// exchange.
func (r Request) Normalize() Request {
	r.Symbol = strings.ToUpper(strings.TrimSpace(r.Symbol))
	if r.Exchange == "" {
		r.Exchange = DefaultExchange
	}
	return r
}

// inRange reports whether t lies within the request bounds.
func (r Request) inRange(t time.Time) bool {
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && t.After(r.To) {
		return false
	}
	return true
}

// Clean sorts bars by timestamp, keeps the last of duplicate timestamps and
// drops bars whose high is below their low. NaN prices are kept.
func Clean(candles []models.Candle) []models.Candle {
	sorted := make([]models.Candle, len(candles))
	copy(sorted, candles)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	out := sorted[:0]
	for _, c := range sorted {
		if !math.IsNaN(c.High) && !math.IsNaN(c.Low) && c.High < c.Low {
			continue
		}
		if n := len(out); n > 0 && out[n-1].Timestamp.Equal(c.Timestamp) {
			out[n-1] = c
			continue
		}
		out = append(out, c)
	}
	return out
}

// Resample aggregates bars into weekly bars starting on Monday.
func Resample(candles []models.Candle, loc *time.Location) []models.Candle {
	if loc == nil {
		loc = time.UTC
	}
	var out []models.Candle
	var bucket time.Time
	for _, c := range candles {
		t := c.Timestamp.In(loc)
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
		offset := (int(day.Weekday()) + 6) % 7
		week := day.AddDate(0, 0, -offset)

		if n := len(out); n > 0 && week.Equal(bucket) {
			w := &out[n-1]
			w.High = math.Max(w.High, c.High)
			w.Low = math.Min(w.Low, c.Low)
			w.Close = c.Close
			w.Volume += c.Volume
			continue
		}
		bucket = week
		out = append(out, models.Candle{
			Timestamp: week,
			Open:      c.Open,
			High:      c.High,
			Low:       c.Low,
			Close:     c.Close,
			Volume:    c.Volume,
		})
	}
	return out
}
