// Package models provides the bar and timeframe models shared by the scanner.
package models

import (
	"fmt"
	"time"
)

// Timeframe represents the interval covered by a single bar.
type Timeframe string

const (
	Timeframe1Min  Timeframe = "1min"
	Timeframe5Min  Timeframe = "5min"
	Timeframe15Min Timeframe = "15min"
	Timeframe30Min Timeframe = "30min"
	Timeframe1Hour Timeframe = "1hour"
	Timeframe1Day  Timeframe = "1day"
	Timeframe1Week Timeframe = "1week"
)

// Timeframes lists every supported timeframe, shortest first.
var Timeframes = []Timeframe{
	Timeframe1Min, Timeframe5Min, Timeframe15Min, Timeframe30Min,
	Timeframe1Hour, Timeframe1Day, Timeframe1Week,
}

// Valid reports whether tf is a known timeframe.
func (tf Timeframe) Valid() bool {
	for _, t := range Timeframes {
		if t == tf {
			return true
		}
	}
	return false
}

// Duration returns the wall-clock span of one bar.
func (tf Timeframe) Duration() time.Duration {
	switch tf {
	case Timeframe1Min:
		return time.Minute
	case Timeframe5Min:
		return 5 * time.Minute
	case Timeframe15Min:
		return 15 * time.Minute
	case Timeframe30Min:
		return 30 * time.Minute
	case Timeframe1Hour:
		return time.Hour
	case Timeframe1Week:
		return 7 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// BarsPerDay returns how many bars of tf make up one trading day
// (375-minute session).
func (tf Timeframe) BarsPerDay() float64 {
	switch tf {
	case Timeframe1Min:
		return 375
	case Timeframe5Min:
		return 75
	case Timeframe15Min:
		return 25
	case Timeframe30Min:
		return 13
	case Timeframe1Hour:
		return 7
	case Timeframe1Week:
		return 0.2
	default:
		return 1
	}
}

// Candle represents OHLCV data for a time period.
type Candle struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    int64
}

// Highs returns the high series of candles.
func Highs(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.High
	}
	return out
}

// Lows returns the low series of candles.
func Lows(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Low
	}
	return out
}

// Closes returns the close series of candles.
func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// CheckOrdering returns an error naming the first bar whose timestamp does
// not strictly follow its predecessor.
func CheckOrdering(candles []Candle) error {
	for i := 1; i < len(candles); i++ {
		if !candles[i].Timestamp.After(candles[i-1].Timestamp) {
			return fmt.Errorf("bar %d at %s does not follow bar %d at %s",
				i, candles[i].Timestamp.Format(time.RFC3339),
				i-1, candles[i-1].Timestamp.Format(time.RFC3339))
		}
	}
	return nil
}
