// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"pattern-scanner/internal/models"
)

// CandleStore defines the interface for bar persistence.
type CandleStore interface {
	// Candles
	SaveCandles(ctx context.Context, symbol string, tf models.Timeframe, candles []models.Candle) error
	GetCandles(ctx context.Context, symbol string, tf models.Timeframe, from, to time.Time) ([]models.Candle, error)
	GetCandlesFreshness(ctx context.Context, symbol string, tf models.Timeframe) (time.Time, error)
	ListSeries(ctx context.Context) ([]SeriesInfo, error)

	// Sync
	GetLastSync(key string) time.Time
	SetLastSync(key string, t time.Time) error

	// Lifecycle
	Close() error
}

// SeriesInfo summarises one stored symbol/timeframe series.
type SeriesInfo struct {
	Symbol    string           `json:"symbol"`
	Timeframe models.Timeframe `json:"timeframe"`
	Bars      int              `json:"bars"`
	First     time.Time        `json:"first"`
	Last      time.Time        `json:"last"`
}

// SyncKey names the sync marker of one series.
func SyncKey(symbol string, tf models.Timeframe) string {
	return "candles:" + symbol + ":" + string(tf)
}
