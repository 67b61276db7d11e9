package feed

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/rs/zerolog"

	"pattern-scanner/internal/errors"
	"pattern-scanner/internal/logging"
	"pattern-scanner/internal/models"
	"pattern-scanner/pkg/utils"
)

// csvBar is one row of a bar file. Headers are matched case-insensitively.
type csvBar struct {
	Date   string  `csv:"date"`
	Open   float64 `csv:"open"`
	High   float64 `csv:"high"`
	Low    float64 `csv:"low"`
	Close  float64 `csv:"close"`
	Volume float64 `csv:"volume"`
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"02-01-2006",
	"02-Jan-2006",
}

// parseTimestamp accepts the layouts above or unix seconds. Times without a
// zone are read in loc.
func parseTimestamp(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil && len(s) >= 9 {
		return time.Unix(secs, 0).In(loc), nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

// ReadCSV parses a bar file. The header row must name date, open, high,
// low and close; volume is optional.
func ReadCSV(r io.Reader, loc *time.Location) ([]models.Candle, error) {
	if loc == nil {
		loc = utils.IndiaLocation
	}
	br := bufio.NewReader(r)
	header, err := br.ReadString('\n')
	if err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "read header")
	}
	header = strings.ToLower(strings.TrimPrefix(header, "\ufeff"))
	if !strings.Contains(header, "date") || !strings.Contains(header, "close") {
		return nil, errors.NewValidationError("header", strings.TrimSpace(header), "expected date, open, high, low, close columns")
	}

	var rows []*csvBar
	if err := gocsv.Unmarshal(io.MultiReader(strings.NewReader(header), br), &rows); err != nil {
		return nil, errors.Wrap(err, "parse bars")
	}

	candles := make([]models.Candle, 0, len(rows))
	for i, row := range rows {
		ts, err := parseTimestamp(row.Date, loc)
		if err != nil {
			return nil, errors.NewValidationError(fmt.Sprintf("row %d", i+2), row.Date, err.Error())
		}
		candles = append(candles, models.Candle{
			Timestamp: ts,
			Open:      row.Open,
			High:      row.High,
			Low:       row.Low,
			Close:     row.Close,
			Volume:    int64(math.Round(row.Volume)),
		})
	}
	return Clean(candles), nil
}

// WriteCSV writes candles in the format ReadCSV accepts.
func WriteCSV(w io.Writer, candles []models.Candle) error {
	rows := make([]*csvBar, len(candles))
	for i, c := range candles {
		rows[i] = &csvBar{
			Date:   c.Timestamp.Format(time.RFC3339),
			Open:   c.Open,
			High:   c.High,
			Low:    c.Low,
			Close:  c.Close,
			Volume: float64(c.Volume),
		}
	}
	return gocsv.Marshal(&rows, w)
}

// CSVProvider reads bar files from a directory. A request for INFY on 1day
// looks for INFY_1day.csv, then INFY.csv.
type CSVProvider struct {
	Dir      string
	Location *time.Location
	logger   zerolog.Logger
}

// NewCSVProvider creates a provider over dir.
func NewCSVProvider(dir string, logger zerolog.Logger) *CSVProvider {
	return &CSVProvider{Dir: dir, Location: utils.IndiaLocation, logger: logger}
}

func (p *CSVProvider) Name() string {
	return "csv"
}

// Path returns the file that serves req, or an error naming the candidates.
func (p *CSVProvider) Path(req Request) (string, error) {
	candidates := []string{
		filepath.Join(p.Dir, fmt.Sprintf("%s_%s.csv", req.Symbol, req.Timeframe)),
		filepath.Join(p.Dir, req.Symbol+".csv"),
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c, nil
		}
	}
	return "", errors.NewDataError(p.Name(), req.Symbol,
		fmt.Sprintf("no bar file (tried %s)", strings.Join(candidates, ", ")), errors.ErrDataNotFound)
}

// Bars reads and filters the symbol's bar file.
func (p *CSVProvider) Bars(ctx context.Context, req Request) (candles []models.Candle, err error) {
	req = req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	started := time.Now()
	defer func() {
		logging.LogFetch(p.logger, p.Name(), req.Symbol, len(candles), time.Since(started), err)
	}()

	path, err := p.Path(req)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewDataError(p.Name(), req.Symbol, "open bar file", err)
	}
	defer f.Close()

	all, err := ReadCSV(f, p.Location)
	if err != nil {
		return nil, errors.NewDataError(p.Name(), req.Symbol, path, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	candles = make([]models.Candle, 0, len(all))
	for _, c := range all {
		if req.inRange(c.Timestamp) {
			candles = append(candles, c)
		}
	}
	return candles, nil
}
