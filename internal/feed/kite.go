package feed

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	kiteconnect "github.com/zerodha/gokiteconnect/v4"
	"golang.org/x/time/rate"

	"pattern-scanner/internal/errors"
	"pattern-scanner/internal/logging"
	"pattern-scanner/internal/models"
	"pattern-scanner/pkg/utils"
)

// historicalClient is the part of the Kite Connect client the provider uses.
type historicalClient interface {
	GetInstruments() (kiteconnect.Instruments, error)
	GetHistoricalData(instrumentToken int, interval string, fromDate time.Time, toDate time.Time, continuous bool, OI bool) ([]kiteconnect.HistoricalData, error)
}

// KiteConfig holds Kite Connect credentials.
type KiteConfig struct {
	APIKey      string
	AccessToken string
	Retry       utils.RetryConfig
}

// KiteProvider fetches historical bars from Kite Connect.
type KiteProvider struct {
	client historicalClient
	retry   utils.RetryConfig
	limiter *rate.Limiter
	logger  zerolog.Logger
	now     func() time.Time

	mu     sync.RWMutex
	tokens map[string]int
}

// NewKiteProvider creates a provider with an authenticated client.
func NewKiteProvider(cfg KiteConfig, logger zerolog.Logger) (*KiteProvider, error) {
	if cfg.APIKey == "" || cfg.AccessToken == "" {
		return nil, errors.Wrap(errors.ErrNotAuthenticated, "kite api key and access token are required")
	}
	client := kiteconnect.New(cfg.APIKey)
	client.SetAccessToken(cfg.AccessToken)
	return newKiteProvider(client, cfg.Retry, logger), nil
}

func newKiteProvider(client historicalClient, retry utils.RetryConfig, logger zerolog.Logger) *KiteProvider {
	if retry.MaxAttempts == 0 {
		retry = utils.DefaultRetryConfig()
	}
	retry.Retryable = retryableKiteError
	return &KiteProvider{
		client:  client,
		retry:   retry,
		limiter: newKiteLimiter(),
		logger:  logger,
		now:     time.Now,
		tokens:  make(map[string]int),
	}
}

func (k *KiteProvider) Name() string {
	return "kite"
}

// kiteInterval maps a timeframe to a Kite interval and the longest span
// one historical call may cover. Weekly bars are built from daily ones.
func kiteInterval(tf models.Timeframe) (string, time.Duration) {
	const day = 24 * time.Hour
	switch tf {
	case models.Timeframe1Min:
		return "minute", 60 * day
	case models.Timeframe5Min:
		return "5minute", 100 * day
	case models.Timeframe15Min:
		return "15minute", 200 * day
	case models.Timeframe30Min:
		return "30minute", 200 * day
	case models.Timeframe1Hour:
		return "60minute", 400 * day
	default:
		return "day", 2000 * day
	}
}

// defaultLookback is the span fetched when a request has no From.
func defaultLookback(tf models.Timeframe) time.Duration {
	const day = 24 * time.Hour
	switch tf {
	case models.Timeframe1Min, models.Timeframe5Min:
		return 10 * day
	case models.Timeframe15Min, models.Timeframe30Min:
		return 60 * day
	case models.Timeframe1Hour:
		return 180 * day
	case models.Timeframe1Week:
		return 5 * 365 * day
	default:
		return 2 * 365 * day
	}
}

// Bars fetches bars in chunks the API accepts, retrying transient failures.
func (k *KiteProvider) Bars(ctx context.Context, req Request) (candles []models.Candle, err error) {
	req = req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	started := time.Now()
	defer func() {
		logging.LogFetch(k.logger, k.Name(), req.Symbol, len(candles), time.Since(started), err)
	}()

	token, err := k.instrumentToken(ctx, req.Exchange, req.Symbol)
	if err != nil {
		return nil, err
	}

	to := req.To
	if to.IsZero() {
		to = k.now()
	}
	from := req.From
	if from.IsZero() {
		from = to.Add(-defaultLookback(req.Timeframe))
	}
	interval, span := kiteInterval(req.Timeframe)

	for lo := from; !lo.After(to); {
		hi := lo.Add(span)
		if hi.After(to) {
			hi = to
		}
		chunk, err := utils.RetryWithResult(ctx, k.retry, func() ([]kiteconnect.HistoricalData, error) {
			if err := k.limiter.Wait(ctx); err != nil {
				return nil, err
			}
			return k.client.GetHistoricalData(token, interval, lo, hi, false, false)
		})
		if err != nil {
			return nil, k.dataError(req.Symbol, "historical data", err)
		}
		for _, d := range chunk {
			candles = append(candles, models.Candle{
				Timestamp: d.Date.Time,
				Open:      d.Open,
				High:      d.High,
				Low:       d.Low,
				Close:     d.Close,
				Volume:    int64(d.Volume),
			})
		}
		if !hi.Before(to) {
			break
		}
		lo = hi.Add(time.Second)
	}

	candles = Clean(candles)
	if req.Timeframe == models.Timeframe1Week {
		candles = Resample(candles, utils.IndiaLocation)
	}
	return candles, nil
}

// instrumentToken resolves EXCHANGE:SYMBOL, loading the instrument dump
// once per provider.
func (k *KiteProvider) instrumentToken(ctx context.Context, exchange, symbol string) (int, error) {
	key := fmt.Sprintf("%s:%s", exchange, symbol)

	k.mu.RLock()
	token, ok := k.tokens[key]
	loaded := len(k.tokens) > 0
	k.mu.RUnlock()
	if ok {
		return token, nil
	}
	if loaded {
		return 0, errors.NewDataError(k.Name(), symbol, "unknown instrument "+key, errors.ErrSymbolNotFound)
	}

	instruments, err := utils.RetryWithResult(ctx, k.retry, k.client.GetInstruments)
	if err != nil {
		return 0, k.dataError(symbol, "instruments", err)
	}

	k.mu.Lock()
	for _, inst := range instruments {
		k.tokens[fmt.Sprintf("%s:%s", inst.Exchange, inst.Tradingsymbol)] = inst.InstrumentToken
	}
	token, ok = k.tokens[key]
	k.mu.Unlock()

	if !ok {
		return 0, errors.NewDataError(k.Name(), symbol, "unknown instrument "+key, errors.ErrSymbolNotFound)
	}
	return token, nil
}

// dataError classifies a Kite failure under the matching sentinel.
func (k *KiteProvider) dataError(symbol, what string, err error) error {
	var kerr kiteconnect.Error
	if errors.As(err, &kerr) {
		switch {
		case kerr.ErrorType == kiteconnect.TokenError:
			err = fmt.Errorf("%w: %s", errors.ErrNotAuthenticated, kerr.Message)
		case kerr.Code == http.StatusTooManyRequests:
			err = fmt.Errorf("%w: %s", errors.ErrRateLimited, kerr.Message)
		}
	}
	return errors.NewDataError(k.Name(), symbol, what, err)
}

// retryableKiteError retries network failures, rate limits and server errors.
func retryableKiteError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var kerr kiteconnect.Error
	if !errors.As(err, &kerr) {
		return true
	}
	switch {
	case kerr.ErrorType == kiteconnect.NetworkError:
		return true
	case kerr.Code == http.StatusTooManyRequests, kerr.Code >= 500:
		return true
	default:
		return false
	}
}
