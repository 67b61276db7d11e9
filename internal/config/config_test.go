package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"pattern-scanner/internal/analysis"
	"pattern-scanner/internal/analysis/patterns"
	"pattern-scanner/internal/errors"
	"pattern-scanner/internal/feed"
	"pattern-scanner/internal/models"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"KITE_API_KEY", "KITE_ACCESS_TOKEN", "SCANNER_LOG_LEVEL", "SCANNER_DB_PATH"} {
		t.Setenv(k, "")
	}
}

func loadTemp(t *testing.T, configTOML string) *Config {
	t.Helper()
	clearEnv(t)
	dir := t.TempDir()
	if configTOML != "" {
		if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(configTOML), 0644); err != nil {
			t.Fatal(err)
		}
	}
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return cfg
}

func TestLoad_WritesTemplatesOnFirstRun(t *testing.T) {
	cfg := loadTemp(t, "")

	if _, err := os.Stat(ConfigFile(cfg.Dir)); err != nil {
		t.Fatalf("config template not written: %v", err)
	}
	info, err := os.Stat(filepath.Join(cfg.Dir, "credentials.toml"))
	if err != nil {
		t.Fatalf("credentials template not written: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("credentials perm = %v, want 0600", perm)
	}

	if cfg.Detection.Timeframe != "1day" || !cfg.Detection.IncludeCompleted || !cfg.Detection.Parallel {
		t.Errorf("unexpected detection defaults %+v", cfg.Detection)
	}
	if cfg.Data.Source != SourceCSV || cfg.Data.Exchange != "NSE" {
		t.Errorf("unexpected data defaults %+v", cfg.Data)
	}
	if cfg.Data.DBPath != filepath.Join(cfg.Dir, "candles.db") {
		t.Errorf("db path = %s", cfg.Data.DBPath)
	}
	if cfg.Data.CacheMaxAge != 15*time.Minute {
		t.Errorf("cache max age = %v", cfg.Data.CacheMaxAge)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("log level = %s", cfg.Log.Level)
	}
}

func TestLoad_SecondRunReadsExistingFiles(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	if _, err := Load(dir); err != nil {
		t.Fatal(err)
	}
	creds := "[kite]\napi_key = \"abc123\"\naccess_token = \"tok456\"\n"
	if err := os.WriteFile(filepath.Join(dir, "credentials.toml"), []byte(creds), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Kite.APIKey != "abc123" || cfg.Kite.AccessToken != "tok456" {
		t.Fatalf("credentials not loaded: %+v", cfg.Kite)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("KITE_API_KEY", "envkey")
	t.Setenv("KITE_ACCESS_TOKEN", "envtoken")
	t.Setenv("SCANNER_LOG_LEVEL", "debug")
	t.Setenv("SCANNER_DB_PATH", "/tmp/other.db")

	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Kite.APIKey != "envkey" || cfg.Kite.AccessToken != "envtoken" {
		t.Errorf("kite env overrides not applied: %+v", cfg.Kite)
	}
	if cfg.Log.Level != "debug" || cfg.Data.DBPath != "/tmp/other.db" {
		t.Errorf("scanner env overrides not applied: %+v %+v", cfg.Log, cfg.Data)
	}
}

func TestLoad_RejectsInvalidFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	bad := "[data]\nsource = \"ftp\"\n"
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(bad), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := Load(dir)
	if !errors.Is(err, errors.ErrConfigInvalid) {
		t.Fatalf("expected ErrConfigInvalid, got %v", err)
	}
}

func TestOptions_FromFile(t *testing.T) {
	cfg := loadTemp(t, `
[detection]
timeframe = "1hour"
tolerance_pct = 1.5
patterns = ["double_top", "flag"]
include_forming = true
smooth = true

[tuning]
pole_atr_multiple = 2.5
window_sizes = [30, 60]

[tuning.min_confidence]
double_top = 0.6

[tuning.family_adjustment]
flag = 0.8

[tuning.relax_steps]
double = [{ tolerance_mult = 1.5, penalty = 0.8 }]
`)

	opts, err := cfg.Options()
	if err != nil {
		t.Fatal(err)
	}
	if opts.Timeframe != models.Timeframe1Hour || opts.TolerancePct != 1.5 || !opts.IncludeForming || !opts.Smooth {
		t.Errorf("unexpected options %+v", opts)
	}
	if len(opts.Patterns) != 2 || opts.Patterns[0] != analysis.DoubleTop || opts.Patterns[1] != analysis.Flag {
		t.Errorf("patterns = %v", opts.Patterns)
	}
	// Keys the file leaves out keep their defaults.
	if !opts.IncludeCompleted || !opts.StrictPivots || opts.CurrentRelevanceDays != 5 {
		t.Errorf("defaults lost: %+v", opts)
	}

	tn := opts.Tuning
	if tn.PoleATRMultiple != 2.5 || len(tn.WindowSizes) != 2 {
		t.Errorf("tuning scalars not applied: %+v", tn)
	}
	if tn.MinConfidence[analysis.DoubleTop] != 0.6 {
		t.Errorf("min confidence = %v", tn.MinConfidence)
	}
	if tn.FamilyAdjustment[analysis.FamilyFlag] != 0.8 {
		t.Errorf("family adjustment = %v", tn.FamilyAdjustment)
	}
	steps := tn.RelaxSteps[analysis.FamilyDouble]
	if len(steps) != 1 || steps[0] != (patterns.RelaxStep{ToleranceMult: 1.5, Penalty: 0.8}) {
		t.Errorf("relax steps = %v", tn.RelaxSteps)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown timeframe", func(c *Config) { c.Detection.Timeframe = "2day" }},
		{"tolerance out of range", func(c *Config) { c.Detection.TolerancePct = 50 }},
		{"unknown pattern", func(c *Config) { c.Detection.Patterns = []string{"cup_and_handle"} }},
		{"confidence above one", func(c *Config) { c.Tuning.MinConfidence = map[string]float64{"flag": 1.5} }},
		{"unknown family", func(c *Config) { c.Tuning.FamilyAdjustment = map[string]float64{"cup": 1} }},
		{"relax step shrinks tolerance", func(c *Config) {
			c.Tuning.RelaxSteps = map[string][]patterns.RelaxStep{"double": {{ToleranceMult: 0.5, Penalty: 0.9}}}
		}},
		{"window too small", func(c *Config) { c.Tuning.WindowSizes = []int{10} }},
		{"unknown source", func(c *Config) { c.Data.Source = "ftp" }},
		{"negative cache age", func(c *Config) { c.Data.CacheMaxAge = -time.Minute }},
		{"unknown log level", func(c *Config) { c.Log.Level = "loud" }},
	}

	base := loadTemp(t, "")
	if err := base.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := *base
			tt.mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, errors.ErrConfigInvalid) {
				t.Fatalf("expected ErrConfigInvalid, got %v", err)
			}
		})
	}
}

func TestRedacted(t *testing.T) {
	cfg := &Config{Kite: KiteCredentials{APIKey: "abcdef123", AccessToken: "xy"}}
	r := cfg.Redacted()
	if r.Kite.APIKey != "ab*****23" {
		t.Errorf("api key = %s", r.Kite.APIKey)
	}
	if r.Kite.AccessToken != "****" {
		t.Errorf("access token = %s", r.Kite.AccessToken)
	}
	if cfg.Kite.APIKey != "abcdef123" {
		t.Error("Redacted modified the original")
	}
}

func TestKiteConfig(t *testing.T) {
	cfg := &Config{
		Data: DataConfig{MaxRetries: 5},
		Kite: KiteCredentials{APIKey: "k", AccessToken: "t"},
	}
	kc := cfg.KiteConfig()
	if kc.APIKey != "k" || kc.AccessToken != "t" || kc.Retry.MaxAttempts != 5 {
		t.Fatalf("unexpected kite config %+v", kc)
	}
}

func TestBreakerConfig(t *testing.T) {
	if bc := (&Config{}).BreakerConfig(); bc != feed.DefaultBreakerConfig() {
		t.Fatalf("zero values should keep defaults, got %+v", bc)
	}
	cfg := &Config{Data: DataConfig{BreakerFailures: 2, BreakerCooldown: time.Minute}}
	if bc := cfg.BreakerConfig(); bc.FailureThreshold != 2 || bc.Cooldown != time.Minute {
		t.Fatalf("unexpected breaker config %+v", bc)
	}
}

func TestLoggerConfig(t *testing.T) {
	cfg := &Config{Log: LoggingConfig{Level: "warn", File: true, FilePath: "/tmp/x.log", MaxSizeMB: 1, MaxBackups: 2, MaxAgeDays: 3}}
	lc := cfg.LoggerConfig()
	if !lc.Console || lc.Level != "warn" || !lc.File || lc.MaxSize != 1 || lc.MaxBackups != 2 || lc.MaxAge != 3 {
		t.Fatalf("unexpected log config %+v", lc)
	}
}
