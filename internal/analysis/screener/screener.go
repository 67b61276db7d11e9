// Package screener runs pattern detection across a list of symbols and
// ranks the symbols that show a matching pattern.
package screener

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"pattern-scanner/internal/analysis"
	"pattern-scanner/internal/analysis/patterns"
	"pattern-scanner/internal/feed"
	"pattern-scanner/internal/logging"
)

// Filter selects which detections count as a match. Zero values accept
// everything.
type Filter struct {
	MinConfidence float64
	Statuses      []analysis.Status
	Direction     analysis.PatternDirection
}

// Matches reports whether a detection passes the filter.
func (f Filter) Matches(e analysis.PatternEntry) bool {
	if e.Confidence < f.MinConfidence {
		return false
	}
	if f.Direction != "" && e.ExpectedDirection != f.Direction {
		return false
	}
	if len(f.Statuses) == 0 {
		return true
	}
	for _, s := range f.Statuses {
		if e.Status == s {
			return true
		}
	}
	return false
}

// Result is the outcome of screening one symbol.
type Result struct {
	Symbol   string                  `json:"symbol"`
	Score    float64                 `json:"score"`
	Matches  []analysis.PatternEntry `json:"matches,omitempty"`
	Bars     int                     `json:"bars"`
	Warnings []analysis.Warning      `json:"warnings,omitempty"`
	Error    string                  `json:"error,omitempty"`
	Err      error                   `json:"-"`
}

// Matched reports whether the symbol had at least one passing detection.
func (r Result) Matched() bool {
	return len(r.Matches) > 0
}

// Screener scans symbols concurrently.
type Screener struct {
	provider    feed.BarProvider
	opts        patterns.Options
	concurrency int
	logger      zerolog.Logger
}

// NewScreener creates a screener reading bars from provider.
func NewScreener(provider feed.BarProvider, opts patterns.Options, concurrency int, logger zerolog.Logger) *Screener {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Screener{
		provider:    provider,
		opts:        opts,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Scan runs detection for every symbol. base supplies the timeframe,
// exchange and range; its symbol is replaced per scan. Every symbol gets a
// result, including ones that failed to load. Matched symbols come first,
// highest score first.
func (s *Screener) Scan(ctx context.Context, symbols []string, base feed.Request, filter Filter) ([]Result, error) {
	if len(symbols) == 0 {
		return nil, nil
	}
	if err := s.opts.Validate(); err != nil {
		return nil, err
	}

	resultChan := make(chan Result, len(symbols))
	workChan := make(chan string, len(symbols))

	var wg sync.WaitGroup
	for i := 0; i < s.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for symbol := range workChan {
				if ctx.Err() != nil {
					return
				}
				resultChan <- s.scanSymbol(ctx, symbol, base, filter)
			}
		}()
	}

	go func() {
		defer close(workChan)
		for _, symbol := range symbols {
			select {
			case <-ctx.Done():
				return
			case workChan <- symbol:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	results := make([]Result, 0, len(symbols))
	for result := range resultChan {
		results = append(results, result)
	}
	if err := ctx.Err(); err != nil {
		return results, err
	}

	sortResults(results)
	return results, nil
}

func (s *Screener) scanSymbol(ctx context.Context, symbol string, base feed.Request, filter Filter) Result {
	req := base
	req.Symbol = symbol
	req = req.Normalize()
	result := Result{Symbol: req.Symbol}

	fail := func(err error) Result {
		result.Err = err
		result.Error = err.Error()
		return result
	}

	if err := req.Validate(); err != nil {
		return fail(err)
	}
	candles, err := s.provider.Bars(ctx, req)
	if err != nil {
		return fail(err)
	}
	result.Bars = len(candles)

	logger := logging.WithSymbol(s.logger, req.Symbol)
	res, err := patterns.NewEngine(s.opts, logger).Detect(ctx, candles)
	if err != nil {
		return fail(err)
	}
	result.Warnings = res.Warnings

	for _, e := range res.Patterns {
		if !filter.Matches(e) {
			continue
		}
		result.Matches = append(result.Matches, e)
		if e.Confidence > result.Score {
			result.Score = e.Confidence
		}
	}
	logger.Debug().
		Int("bars", result.Bars).
		Int("detected", len(res.Patterns)).
		Int("matched", len(result.Matches)).
		Msg("Symbol screened")
	return result
}

func sortResults(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Matched() != b.Matched() {
			return a.Matched()
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return a.Symbol < b.Symbol
	})
}

// ParseSymbols splits comma or whitespace separated symbols, upper-cases
// them and drops duplicates.
func ParseSymbols(args ...string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, arg := range args {
		for _, f := range strings.FieldsFunc(arg, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t' || r == '\n'
		}) {
			sym := strings.ToUpper(f)
			if !seen[sym] {
				seen[sym] = true
				out = append(out, sym)
			}
		}
	}
	return out
}
