// Package integration provides end-to-end tests across the feed, store,
// engine and CLI layers.
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"pattern-scanner/internal/analysis"
	"pattern-scanner/internal/analysis/patterns"
	"pattern-scanner/internal/analysis/screener"
	"pattern-scanner/internal/cli"
	"pattern-scanner/internal/feed"
	"pattern-scanner/internal/models"
	"pattern-scanner/internal/store"
)

// wShapeBars is a double bottom at bars 10 and 26 that breaks out upward.
func wShapeBars() []models.Candle {
	type waypoint struct {
		index int
		price float64
	}
	points := []waypoint{{0, 120}, {10, 100}, {18, 112}, {26, 100.5}, {34, 116}, {45, 125}}
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]models.Candle, points[len(points)-1].index+1)
	for seg := 1; seg < len(points); seg++ {
		a, b := points[seg-1], points[seg]
		for i := a.index; i <= b.index; i++ {
			t := float64(i-a.index) / float64(b.index-a.index)
			c := a.price + t*(b.price-a.price)
			candles[i] = models.Candle{
				Timestamp: base.AddDate(0, 0, i),
				Open:      c,
				High:      c + 0.5,
				Low:       c - 0.5,
				Close:     c,
				Volume:    1000,
			}
		}
	}
	return candles
}

func writeBars(t *testing.T, dir, name string, candles []models.Candle) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := feed.WriteCSV(f, candles); err != nil {
		t.Fatal(err)
	}
	return path
}

func bottomsOnly() patterns.Options {
	opts := patterns.DefaultOptions()
	opts.Patterns = []analysis.PatternType{analysis.DoubleBottom}
	return opts
}

// TestCSVToStoreToEngine runs the same series through the CSV provider and
// through the SQLite store and expects the same detections.
func TestCSVToStoreToEngine(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	dir := t.TempDir()
	writeBars(t, dir, "WSHAPE_1day.csv", wShapeBars())
	req := feed.Request{Symbol: "wshape", Timeframe: models.Timeframe1Day}

	csvBars, err := feed.NewCSVProvider(dir, zerolog.Nop()).Bars(ctx, req)
	if err != nil {
		t.Fatalf("csv provider: %v", err)
	}
	if len(csvBars) != 46 {
		t.Fatalf("expected 46 bars from csv, got %d", len(csvBars))
	}

	st, err := store.NewSQLiteStore(filepath.Join(dir, "candles.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	if err := st.SaveCandles(ctx, "WSHAPE", models.Timeframe1Day, csvBars); err != nil {
		t.Fatal(err)
	}
	storedBars, err := feed.NewStoreProvider(st, zerolog.Nop()).Bars(ctx, req)
	if err != nil {
		t.Fatalf("store provider: %v", err)
	}

	engine := patterns.NewEngine(bottomsOnly(), zerolog.Nop())
	fromCSV, err := engine.Detect(ctx, csvBars)
	if err != nil {
		t.Fatal(err)
	}
	fromStore, err := engine.Detect(ctx, storedBars)
	if err != nil {
		t.Fatal(err)
	}

	if len(fromCSV.Patterns) != 1 || len(fromStore.Patterns) != 1 {
		t.Fatalf("expected one double bottom from each source, got %d and %d",
			len(fromCSV.Patterns), len(fromStore.Patterns))
	}
	a, b := fromCSV.Patterns[0], fromStore.Patterns[0]
	if a.Type != b.Type || a.StartIndex != b.StartIndex || a.EndIndex != b.EndIndex ||
		a.Confidence != b.Confidence || a.Status != b.Status {
		t.Fatalf("sources disagree:\ncsv:   %+v\nstore: %+v", a, b)
	}
	if !a.Range.Start.Equal(b.Range.Start) || !a.Range.End.Equal(b.Range.End) {
		t.Fatalf("ranges disagree: %+v vs %+v", a.Range, b.Range)
	}
	if fromCSV.RunID == fromStore.RunID {
		t.Fatal("every run should get its own id")
	}
}

func runCLI(t *testing.T, ctx context.Context, args ...string) []byte {
	t.Helper()
	var out bytes.Buffer
	root := cli.NewRootCmd(zerolog.Nop())
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		t.Fatalf("scanner %v: %v\n%s", args, err, out.String())
	}
	return out.Bytes()
}

// TestCLIImportAndDetect drives the command tree: import a CSV into the
// store, list it, then detect from the store.
func TestCLIImportAndDetect(t *testing.T) {
	for _, k := range []string{"KITE_API_KEY", "KITE_ACCESS_TOKEN", "SCANNER_LOG_LEVEL", "SCANNER_DB_PATH"} {
		t.Setenv(k, "")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfgDir := t.TempDir()
	csvPath := writeBars(t, t.TempDir(), "WSHAPE_1day.csv", wShapeBars())

	var imported store.SeriesInfo
	if err := json.Unmarshal(runCLI(t, ctx, "--config", cfgDir, "--json", "import", csvPath), &imported); err != nil {
		t.Fatal(err)
	}
	if imported.Symbol != "WSHAPE" || imported.Bars != 46 {
		t.Fatalf("unexpected import summary %+v", imported)
	}

	var series []store.SeriesInfo
	if err := json.Unmarshal(runCLI(t, ctx, "--config", cfgDir, "--json", "series"), &series); err != nil {
		t.Fatal(err)
	}
	if len(series) != 1 || series[0].Bars != 46 || series[0].Timeframe != models.Timeframe1Day {
		t.Fatalf("unexpected series %+v", series)
	}

	var res analysis.Result
	out := runCLI(t, ctx, "--config", cfgDir, "--json", "detect", "wshape",
		"--source", "sqlite", "--patterns", "double_bottom")
	if err := json.Unmarshal(out, &res); err != nil {
		t.Fatalf("decode result: %v\n%s", err, out)
	}
	if len(res.Patterns) != 1 || res.Patterns[0].Type != analysis.DoubleBottom {
		t.Fatalf("expected one double bottom, got %+v", res.Patterns)
	}
	if res.Patterns[0].Outcome == nil || *res.Patterns[0].Outcome != analysis.OutcomeSuccess {
		t.Errorf("expected a successful breakout, got %v", res.Patterns[0].Outcome)
	}
	if len(res.Overlays.Ranges) != 1 {
		t.Errorf("expected one overlay range, got %d", len(res.Overlays.Ranges))
	}
}

// TestCLIDetectFromFile reads bars straight from a file and renders tables.
func TestCLIDetectFromFile(t *testing.T) {
	for _, k := range []string{"KITE_API_KEY", "KITE_ACCESS_TOKEN", "SCANNER_LOG_LEVEL", "SCANNER_DB_PATH"} {
		t.Setenv(k, "")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	csvPath := writeBars(t, t.TempDir(), "bars.csv", wShapeBars())
	out := runCLI(t, ctx, "--config", t.TempDir(), "detect", "WSHAPE", "--file", csvPath,
		"--patterns", "double_bottom", "--candidates")

	for _, want := range []string{"WSHAPE 1day", "Double Bottom", "Outcomes by type", "Candidates"} {
		if !bytes.Contains(out, []byte(want)) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

// TestCLIScan imports one series and screens it alongside a symbol with no
// stored bars.
func TestCLIScan(t *testing.T) {
	for _, k := range []string{"KITE_API_KEY", "KITE_ACCESS_TOKEN", "SCANNER_LOG_LEVEL", "SCANNER_DB_PATH"} {
		t.Setenv(k, "")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfgDir := t.TempDir()
	csvPath := writeBars(t, t.TempDir(), "WSHAPE_1day.csv", wShapeBars())
	runCLI(t, ctx, "--config", cfgDir, "import", csvPath)

	var results []screener.Result
	out := runCLI(t, ctx, "--config", cfgDir, "--json", "scan", "missing", "--symbols", "wshape",
		"--source", "sqlite", "--preset", "bullish_reversal", "--min-confidence", "0")
	if err := json.Unmarshal(out, &results); err != nil {
		t.Fatalf("decode results: %v\n%s", err, out)
	}
	if len(results) != 2 {
		t.Fatalf("expected two results, got %+v", results)
	}
	if results[0].Symbol != "WSHAPE" || len(results[0].Matches) == 0 {
		t.Fatalf("expected WSHAPE to match, got %+v", results[0])
	}
	if results[0].Matches[0].Type != analysis.DoubleBottom {
		t.Errorf("unexpected match %s", results[0].Matches[0].Type)
	}
	if results[1].Symbol != "MISSING" || results[1].Error == "" {
		t.Errorf("expected MISSING to report an error, got %+v", results[1])
	}
}
