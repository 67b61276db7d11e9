package feed

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"pattern-scanner/internal/errors"
	"pattern-scanner/internal/models"
)

// BreakerState is the state of a BreakerProvider.
type BreakerState string

const (
	BreakerClosed   BreakerState = "closed"
	BreakerOpen     BreakerState = "open"
	BreakerHalfOpen BreakerState = "half_open"
)

// BreakerConfig holds circuit breaker settings.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive source failures that
	// open the circuit.
	FailureThreshold int
	// SuccessThreshold is the number of half-open successes that close it.
	SuccessThreshold int
	// Cooldown is how long the circuit stays open before a trial request.
	Cooldown time.Duration
}

// DefaultBreakerConfig returns the defaults used for the kite source.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 1,
		Cooldown:         30 * time.Second,
	}
}

// BreakerProvider stops calling a failing source. Once FailureThreshold
// requests in a row fail, requests are rejected with ErrSourceOpen until
// Cooldown has passed. Missing symbols and bad requests are answers from a
// healthy source and do not count as failures.
type BreakerProvider struct {
	source BarProvider
	config BreakerConfig
	logger zerolog.Logger
	now    func() time.Time

	mu          sync.Mutex
	state       BreakerState
	failures    int
	successes   int
	lastFailure time.Time
	rejected    int64
}

// NewBreakerProvider wraps source.
func NewBreakerProvider(source BarProvider, config BreakerConfig, logger zerolog.Logger) *BreakerProvider {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = DefaultBreakerConfig().FailureThreshold
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = 1
	}
	return &BreakerProvider{
		source: source,
		config: config,
		logger: logger.With().Str("component", "breaker").Str("source", source.Name()).Logger(),
		now:    time.Now,
		state:  BreakerClosed,
	}
}

// Name returns the wrapped source's name.
func (b *BreakerProvider) Name() string {
	return b.source.Name()
}

// Bars forwards to the source unless the circuit is open.
func (b *BreakerProvider) Bars(ctx context.Context, req Request) ([]models.Candle, error) {
	if err := b.allow(); err != nil {
		return nil, errors.NewDataError(b.Name(), req.Symbol, "skipped", err)
	}
	candles, err := b.source.Bars(ctx, req)
	b.record(err)
	return candles, err
}

// State returns the current circuit state.
func (b *BreakerProvider) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Rejected returns how many requests the open circuit turned away.
func (b *BreakerProvider) Rejected() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rejected
}

func (b *BreakerProvider) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != BreakerOpen {
		return nil
	}
	if b.now().Sub(b.lastFailure) >= b.config.Cooldown {
		b.transition(BreakerHalfOpen)
		return nil
	}
	b.rejected++
	return errors.ErrSourceOpen
}

func (b *BreakerProvider) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !sourceFailure(err) {
		switch b.state {
		case BreakerHalfOpen:
			b.successes++
			if b.successes >= b.config.SuccessThreshold {
				b.transition(BreakerClosed)
			}
		case BreakerClosed:
			b.failures = 0
		}
		return
	}

	b.lastFailure = b.now()
	switch b.state {
	case BreakerClosed:
		b.failures++
		if b.failures >= b.config.FailureThreshold {
			b.transition(BreakerOpen)
		}
	case BreakerHalfOpen:
		b.transition(BreakerOpen)
	}
}

func (b *BreakerProvider) transition(state BreakerState) {
	if b.state != state {
		b.logger.Warn().Str("from", string(b.state)).Str("to", string(state)).Msg("Circuit state changed")
	}
	b.state = state
	b.failures = 0
	b.successes = 0
}

// sourceFailure reports whether err says the source itself is unhealthy.
func sourceFailure(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, errors.ErrDataNotFound),
		errors.Is(err, errors.ErrSymbolNotFound),
		errors.Is(err, errors.ErrInputValidation),
		errors.Is(err, context.Canceled):
		return false
	}
	return true
}
