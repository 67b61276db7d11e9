package feed

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"pattern-scanner/internal/errors"
	"pattern-scanner/internal/logging"
	"pattern-scanner/internal/models"
	"pattern-scanner/internal/store"
	"pattern-scanner/pkg/utils"
)

// StoreProvider serves bars straight from the local candle store.
type StoreProvider struct {
	store  store.CandleStore
	logger zerolog.Logger
}

// NewStoreProvider creates a provider over st.
func NewStoreProvider(st store.CandleStore, logger zerolog.Logger) *StoreProvider {
	return &StoreProvider{store: st, logger: logger}
}

func (p *StoreProvider) Name() string {
	return "sqlite"
}

// Bars reads the stored range. An empty result is ErrDataNotFound.
func (p *StoreProvider) Bars(ctx context.Context, req Request) (candles []models.Candle, err error) {
	req = req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	started := time.Now()
	defer func() {
		logging.LogFetch(p.logger, p.Name(), req.Symbol, len(candles), time.Since(started), err)
	}()

	from, to := req.From, req.To
	if to.IsZero() {
		to = time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	candles, err = p.store.GetCandles(ctx, req.Symbol, req.Timeframe, from, to)
	if err != nil {
		return nil, errors.NewDataError(p.Name(), req.Symbol, "read candles", err)
	}
	if len(candles) == 0 {
		return nil, errors.NewDataError(p.Name(), req.Symbol, "no stored bars for "+string(req.Timeframe), errors.ErrDataNotFound)
	}
	return candles, nil
}

// CachingProvider serves bars from the candle store while the cached series
// is fresh and refreshes it from the source otherwise.
type CachingProvider struct {
	source BarProvider
	store  store.CandleStore
	maxAge time.Duration
	logger zerolog.Logger
	now    func() time.Time
}

// NewCachingProvider puts st in front of source. maxAge bounds the age of
// intraday series while the session is open; everything else stays fresh
// until the next session close.
func NewCachingProvider(source BarProvider, st store.CandleStore, maxAge time.Duration, logger zerolog.Logger) *CachingProvider {
	return &CachingProvider{
		source: source,
		store:  st,
		maxAge: maxAge,
		logger: logging.WithOperation(logger, "cache"),
		now:    time.Now,
	}
}

func (p *CachingProvider) Name() string {
	return "cache+" + p.source.Name()
}

// fresh reports whether a series synced at synced needs no refetch.
// Outside the session no new bars print, so intraday series synced after
// the last close stay fresh too.
func (p *CachingProvider) fresh(tf models.Timeframe, synced time.Time) bool {
	if synced.IsZero() {
		return false
	}
	now := p.now()
	if tf == models.Timeframe1Day || tf == models.Timeframe1Week || !utils.IsSessionOpen(now) {
		return !synced.Before(utils.LastSessionClose(now))
	}
	return now.Sub(synced) <= p.maxAge
}

// Bars returns cached bars when the series is fresh and covers the request,
// otherwise fetches from the source and stores the result.
func (p *CachingProvider) Bars(ctx context.Context, req Request) ([]models.Candle, error) {
	req = req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	key := store.SyncKey(req.Symbol, req.Timeframe)
	logger := logging.WithSymbol(p.logger, req.Symbol)

	if p.fresh(req.Timeframe, p.store.GetLastSync(key)) {
		cached, err := NewStoreProvider(p.store, p.logger).Bars(ctx, req)
		if err == nil && p.covers(cached, req) {
			logger.Debug().Int("bars", len(cached)).Msg("Serving bars from cache")
			return cached, nil
		}
	}

	candles, err := p.source.Bars(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := p.store.SaveCandles(ctx, req.Symbol, req.Timeframe, candles); err != nil {
		logger.Warn().Err(err).Msg("Failed to cache bars")
		return candles, nil
	}
	if err := p.store.SetLastSync(key, p.now()); err != nil {
		logger.Warn().Err(err).Msg("Failed to record sync time")
	}
	return candles, nil
}

// covers reports whether cached bars reach back to the requested start.
func (p *CachingProvider) covers(cached []models.Candle, req Request) bool {
	if len(cached) == 0 {
		return false
	}
	if req.From.IsZero() {
		return true
	}
	slack := 4 * 24 * time.Hour
	if req.Timeframe == models.Timeframe1Week {
		slack = 8 * 24 * time.Hour
	}
	return !cached[0].Timestamp.After(req.From.Add(slack))
}
