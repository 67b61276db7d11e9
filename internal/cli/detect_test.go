package cli

import (
	"testing"
	"time"

	"pattern-scanner/internal/analysis"
	"pattern-scanner/internal/config"
	"pattern-scanner/internal/errors"
	"pattern-scanner/internal/models"
	"pattern-scanner/pkg/utils"
)

func testConfig() *config.Config {
	return &config.Config{
		Detection: config.DetectionConfig{
			Timeframe:        "1day",
			StrictPivots:     true,
			IncludeCompleted: true,
			Parallel:         true,
			SmoothWindow:     7,
		},
		Data: config.DataConfig{Source: config.SourceCSV, Exchange: "NSE"},
	}
}

func TestDetectOptions_FlagsOverrideConfig(t *testing.T) {
	cmd := newDetectCmd(&App{Config: testConfig()})
	if err := cmd.ParseFlags([]string{
		"--timeframe", "15min",
		"--patterns", "flag,pennant",
		"--forming",
		"--tolerance", "1.5",
		"--depth", "4",
		"--relaxed-pivots",
		"--sequential",
	}); err != nil {
		t.Fatal(err)
	}

	opts, err := detectOptions(cmd, testConfig())
	if err != nil {
		t.Fatal(err)
	}
	if opts.Timeframe != models.Timeframe15Min || opts.TolerancePct != 1.5 || opts.SwingDepth != 4 {
		t.Errorf("scalar flags not applied: %+v", opts)
	}
	if !opts.IncludeForming || opts.StrictPivots || opts.Parallel {
		t.Errorf("bool flags not applied: %+v", opts)
	}
	if len(opts.Patterns) != 2 || opts.Patterns[0] != analysis.Flag || opts.Patterns[1] != analysis.Pennant {
		t.Errorf("patterns = %v", opts.Patterns)
	}
	if !opts.IncludeCompleted {
		t.Error("unset flags should keep config values")
	}
}

func TestDetectOptions_RejectsUnknownPattern(t *testing.T) {
	cmd := newDetectCmd(&App{Config: testConfig()})
	if err := cmd.ParseFlags([]string{"--patterns", "cup_and_handle"}); err != nil {
		t.Fatal(err)
	}
	_, err := detectOptions(cmd, testConfig())
	var ve *errors.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected a validation error, got %v", err)
	}
}

func TestBarRequest(t *testing.T) {
	cmd := newDetectCmd(&App{Config: testConfig()})
	if err := cmd.ParseFlags([]string{"--from", "2024-01-01", "--to", "2024-03-31", "--exchange", "bse"}); err != nil {
		t.Fatal(err)
	}
	req, err := barRequest(cmd, " infy ", models.Timeframe1Day, testConfig())
	if err != nil {
		t.Fatal(err)
	}
	if req.Symbol != "INFY" || req.Exchange != "BSE" {
		t.Errorf("unexpected request %+v", req)
	}
	wantFrom := time.Date(2024, 1, 1, 0, 0, 0, 0, utils.IndiaLocation)
	if !req.From.Equal(wantFrom) {
		t.Errorf("from = %v, want %v", req.From, wantFrom)
	}
	if req.To.Before(time.Date(2024, 3, 31, 23, 59, 0, 0, utils.IndiaLocation)) {
		t.Errorf("to should cover the whole last day, got %v", req.To)
	}
}

func TestBarRequest_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"bad from", []string{"--from", "01/02/2024"}},
		{"bad to", []string{"--to", "yesterday"}},
		{"reversed range", []string{"--from", "2024-05-01", "--to", "2024-01-01"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newDetectCmd(&App{Config: testConfig()})
			if err := cmd.ParseFlags(tt.args); err != nil {
				t.Fatal(err)
			}
			if _, err := barRequest(cmd, "INFY", models.Timeframe1Day, testConfig()); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

func TestBarRequest_Days(t *testing.T) {
	cmd := newDetectCmd(&App{Config: testConfig()})
	if err := cmd.ParseFlags([]string{"--days", "30"}); err != nil {
		t.Fatal(err)
	}
	req, err := barRequest(cmd, "TCS", "", testConfig())
	if err != nil {
		t.Fatal(err)
	}
	if req.Timeframe != models.Timeframe1Day {
		t.Errorf("timeframe = %s", req.Timeframe)
	}
	age := time.Since(req.From)
	if age < 29*24*time.Hour || age > 31*24*time.Hour {
		t.Errorf("from should be about 30 days back, got %v", age)
	}
}

func TestSymbolFromPath(t *testing.T) {
	tests := map[string]string{
		"./data/INFY_1day.csv": "INFY",
		"reliance.csv":         "RELIANCE",
		"/tmp/_odd.csv":        "_ODD",
	}
	for in, want := range tests {
		if got := symbolFromPath(in); got != want {
			t.Errorf("symbolFromPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestProviderRejectsUnknownSource(t *testing.T) {
	app := &App{Config: testConfig()}
	if _, err := app.Provider("ftp"); err == nil {
		t.Fatal("expected an error for an unknown source")
	}
	p, err := app.Provider(config.SourceCSV)
	if err != nil || p.Name() != "csv" {
		t.Fatalf("csv provider = %v, %v", p, err)
	}
	if _, err := app.Provider(config.SourceKite); !errors.Is(err, errors.ErrNotAuthenticated) {
		t.Fatalf("kite without credentials should be unauthenticated, got %v", err)
	}
}
