// Package config provides configuration management for the pattern scanner.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"pattern-scanner/internal/analysis"
	"pattern-scanner/internal/analysis/patterns"
	"pattern-scanner/internal/errors"
	"pattern-scanner/internal/feed"
	"pattern-scanner/internal/logging"
	"pattern-scanner/internal/models"
	"pattern-scanner/pkg/utils"
)

// Config holds all application configuration.
type Config struct {
	Detection DetectionConfig `mapstructure:"detection"`
	Tuning    TuningConfig    `mapstructure:"tuning"`
	Data      DataConfig      `mapstructure:"data"`
	Log       LoggingConfig   `mapstructure:"log"`
	Kite      KiteCredentials `mapstructure:"-"` // Loaded separately

	// Dir is the directory the files were loaded from.
	Dir string `mapstructure:"-"`
}

// DetectionConfig holds the defaults of every detection option.
type DetectionConfig struct {
	Timeframe               string   `mapstructure:"timeframe"`
	SwingDepth              int      `mapstructure:"swing_depth"`
	TolerancePct            float64  `mapstructure:"tolerance_pct"`
	MinBarsBetweenSwings    int      `mapstructure:"min_bars_between_swings"`
	StrictPivots            bool     `mapstructure:"strict_pivots"`
	Patterns                []string `mapstructure:"patterns"`
	IncludeForming          bool     `mapstructure:"include_forming"`
	IncludeCompleted        bool     `mapstructure:"include_completed"`
	IncludeInvalid          bool     `mapstructure:"include_invalid"`
	RequireCurrentInPattern bool     `mapstructure:"require_current_in_pattern"`
	CurrentRelevanceDays    float64  `mapstructure:"current_relevance_days"`
	Smooth                  bool     `mapstructure:"smooth"`
	SmoothWindow            int      `mapstructure:"smooth_window"`
	Parallel                bool     `mapstructure:"parallel"`
	MaxDebugCandidates      int      `mapstructure:"max_debug_candidates"`
}

// TuningConfig overrides classifier thresholds. Zero values keep the
// built-in defaults.
type TuningConfig struct {
	MinConfidence     map[string]float64               `mapstructure:"min_confidence"`
	FamilyAdjustment  map[string]float64               `mapstructure:"family_adjustment"`
	RelaxSteps        map[string][]patterns.RelaxStep `mapstructure:"relax_steps"`
	MinFitQuality     float64                          `mapstructure:"min_fit_quality"`
	PoleATRMultiple   float64                          `mapstructure:"pole_atr_multiple"`
	MinPolePct        float64                          `mapstructure:"min_pole_pct"`
	StaleBars         int                              `mapstructure:"stale_bars"`
	BreakoutLookahead int                              `mapstructure:"breakout_lookahead"`
	WindowSizes       []int                            `mapstructure:"window_sizes"`
	ATRPeriod         int                              `mapstructure:"atr_period"`
}

// DataConfig selects where bars come from.
type DataConfig struct {
	Source      string        `mapstructure:"source"` // csv, sqlite, kite
	Exchange    string        `mapstructure:"exchange"`
	CSVDir      string        `mapstructure:"csv_dir"`
	DBPath      string        `mapstructure:"db_path"`
	Cache       bool          `mapstructure:"cache"`
	CacheMaxAge time.Duration `mapstructure:"cache_max_age"`
	MaxRetries  int           `mapstructure:"max_retries"`
	// Consecutive kite failures that pause requests for BreakerCooldown.
	BreakerFailures int           `mapstructure:"breaker_failures"`
	BreakerCooldown time.Duration `mapstructure:"breaker_cooldown"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	File       bool   `mapstructure:"file"`
	FilePath   string `mapstructure:"file_path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// KiteCredentials holds Kite Connect API credentials.
type KiteCredentials struct {
	APIKey      string `mapstructure:"api_key"`
	AccessToken string `mapstructure:"access_token"`
}

// Data sources.
const (
	SourceCSV    = "csv"
	SourceSQLite = "sqlite"
	SourceKite   = "kite"
)

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/pattern-scanner"
	}
	return filepath.Join(home, ".config", "pattern-scanner")
}

// ConfigFile returns the path of the main config file in configDir.
func ConfigFile(configDir string) string {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}
	return filepath.Join(configDir, "config.toml")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory. Missing files
// are written from templates and then read back.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	cfg := &Config{Dir: configDir}

	if err := loadConfigFile(configDir, cfg); err != nil {
		return nil, errors.Wrap(err, "loading config.toml")
	}

	if err := loadCredentials(configDir, &cfg.Kite); err != nil {
		return nil, errors.Wrap(err, "loading credentials.toml")
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "validating config")
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, configDir string) {
	d := patterns.DefaultOptions()
	v.SetDefault("detection.timeframe", string(d.Timeframe))
	v.SetDefault("detection.strict_pivots", d.StrictPivots)
	v.SetDefault("detection.include_completed", d.IncludeCompleted)
	v.SetDefault("detection.current_relevance_days", d.CurrentRelevanceDays)
	v.SetDefault("detection.smooth_window", d.SmoothWindow)
	v.SetDefault("detection.parallel", d.Parallel)
	v.SetDefault("detection.max_debug_candidates", d.MaxDebugCandidates)

	v.SetDefault("data.source", SourceCSV)
	v.SetDefault("data.exchange", "NSE")
	v.SetDefault("data.csv_dir", ".")
	v.SetDefault("data.db_path", filepath.Join(configDir, "candles.db"))
	v.SetDefault("data.cache", true)
	v.SetDefault("data.cache_max_age", "15m")
	v.SetDefault("data.max_retries", 3)
	v.SetDefault("data.breaker_failures", 5)
	v.SetDefault("data.breaker_cooldown", "30s")

	l := logging.DefaultLogConfig()
	v.SetDefault("log.level", l.Level)
	v.SetDefault("log.file", l.File)
	v.SetDefault("log.file_path", filepath.Join(configDir, "logs", "scanner.log"))
	v.SetDefault("log.max_size_mb", l.MaxSize)
	v.SetDefault("log.max_backups", l.MaxBackups)
	v.SetDefault("log.max_age_days", l.MaxAge)
}

func loadConfigFile(configDir string, cfg *Config) error {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	setDefaults(v, configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
		if err := writeTemplate(configDir, "config.toml", configTemplate, 0644); err != nil {
			return err
		}
		if err := v.ReadInConfig(); err != nil {
			return err
		}
	}

	return v.Unmarshal(cfg)
}

func loadCredentials(configDir string, creds *KiteCredentials) error {
	v := viper.New()
	v.SetConfigName("credentials")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Credentials are optional until the kite source is used.
			return writeTemplate(configDir, "credentials.toml", credentialsTemplate, 0600)
		}
		return err
	}

	return v.UnmarshalKey("kite", creds)
}

func applyEnvOverrides(cfg *Config) {
	// Kite credentials
	if v := os.Getenv("KITE_API_KEY"); v != "" {
		cfg.Kite.APIKey = v
	}
	if v := os.Getenv("KITE_ACCESS_TOKEN"); v != "" {
		cfg.Kite.AccessToken = v
	}

	if v := os.Getenv("SCANNER_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("SCANNER_DB_PATH"); v != "" {
		cfg.Data.DBPath = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if _, err := c.Options(); err != nil {
		return errors.Wrapf(errors.ErrConfigInvalid, "detection: %v", err)
	}

	for name, v := range c.Tuning.MinConfidence {
		if _, ok := analysis.ParsePatternType(name); !ok {
			return errors.Wrapf(errors.ErrConfigInvalid, "tuning.min_confidence: unknown pattern %q", name)
		}
		if v < 0 || v > 1 {
			return errors.Wrapf(errors.ErrConfigInvalid, "tuning.min_confidence.%s must be between 0 and 1", name)
		}
	}
	for name, v := range c.Tuning.FamilyAdjustment {
		if !knownFamily(name) {
			return errors.Wrapf(errors.ErrConfigInvalid, "tuning.family_adjustment: unknown family %q", name)
		}
		if v <= 0 {
			return errors.Wrapf(errors.ErrConfigInvalid, "tuning.family_adjustment.%s must be positive", name)
		}
	}
	for name, steps := range c.Tuning.RelaxSteps {
		if !knownFamily(name) {
			return errors.Wrapf(errors.ErrConfigInvalid, "tuning.relax_steps: unknown family %q", name)
		}
		for _, s := range steps {
			if s.ToleranceMult < 1 || s.Penalty <= 0 || s.Penalty > 1 {
				return errors.Wrapf(errors.ErrConfigInvalid, "tuning.relax_steps.%s: tolerance_mult must be >= 1 and penalty in (0, 1]", name)
			}
		}
	}
	for _, w := range c.Tuning.WindowSizes {
		if w < patterns.MinBars {
			return errors.Wrapf(errors.ErrConfigInvalid, "tuning.window_sizes: %d is below %d bars", w, patterns.MinBars)
		}
	}

	switch c.Data.Source {
	case SourceCSV, SourceSQLite, SourceKite:
	default:
		return errors.Wrapf(errors.ErrConfigInvalid, "data.source %q (must be csv, sqlite or kite)", c.Data.Source)
	}
	if c.Data.CacheMaxAge < 0 {
		return errors.Wrapf(errors.ErrConfigInvalid, "data.cache_max_age must not be negative")
	}
	if c.Data.BreakerFailures < 0 || c.Data.BreakerCooldown < 0 {
		return errors.Wrapf(errors.ErrConfigInvalid, "data.breaker_failures and data.breaker_cooldown must not be negative")
	}

	switch c.Log.Level {
	case "", "trace", "debug", "info", "warn", "error":
	default:
		return errors.Wrapf(errors.ErrConfigInvalid, "log.level %q", c.Log.Level)
	}

	return nil
}

func knownFamily(name string) bool {
	for _, f := range analysis.AllFamilies() {
		if string(f) == name {
			return true
		}
	}
	return false
}

// Options converts the detection and tuning sections into engine options.
func (c *Config) Options() (patterns.Options, error) {
	d := c.Detection
	opts := patterns.Options{
		Timeframe:               models.Timeframe(d.Timeframe),
		SwingDepth:              d.SwingDepth,
		TolerancePct:            d.TolerancePct,
		MinBarsBetweenSwings:    d.MinBarsBetweenSwings,
		StrictPivots:            d.StrictPivots,
		IncludeForming:          d.IncludeForming,
		IncludeCompleted:        d.IncludeCompleted,
		IncludeInvalid:          d.IncludeInvalid,
		RequireCurrentInPattern: d.RequireCurrentInPattern,
		CurrentRelevanceDays:    d.CurrentRelevanceDays,
		Smooth:                  d.Smooth,
		SmoothWindow:            d.SmoothWindow,
		Parallel:                d.Parallel,
		MaxDebugCandidates:      d.MaxDebugCandidates,
		Tuning:                  c.Tuning.tuning(),
	}
	for _, p := range d.Patterns {
		t, ok := analysis.ParsePatternType(strings.TrimSpace(p))
		if !ok {
			return opts, errors.NewValidationError("patterns", p, "unknown pattern type")
		}
		opts.Patterns = append(opts.Patterns, t)
	}
	return opts, opts.Validate()
}

func (t TuningConfig) tuning() patterns.Tuning {
	out := patterns.Tuning{
		MinFitQuality:     t.MinFitQuality,
		PoleATRMultiple:   t.PoleATRMultiple,
		MinPolePct:        t.MinPolePct,
		StaleBars:         t.StaleBars,
		BreakoutLookahead: t.BreakoutLookahead,
		WindowSizes:       t.WindowSizes,
		ATRPeriod:         t.ATRPeriod,
	}
	if len(t.MinConfidence) > 0 {
		out.MinConfidence = make(map[analysis.PatternType]float64, len(t.MinConfidence))
		for k, v := range t.MinConfidence {
			out.MinConfidence[analysis.PatternType(k)] = v
		}
	}
	if len(t.FamilyAdjustment) > 0 {
		out.FamilyAdjustment = make(map[analysis.Family]float64, len(t.FamilyAdjustment))
		for k, v := range t.FamilyAdjustment {
			out.FamilyAdjustment[analysis.Family(k)] = v
		}
	}
	if len(t.RelaxSteps) > 0 {
		out.RelaxSteps = make(map[analysis.Family][]patterns.RelaxStep, len(t.RelaxSteps))
		for k, v := range t.RelaxSteps {
			out.RelaxSteps[analysis.Family(k)] = v
		}
	}
	return out
}

// LoggerConfig converts the log section for the logging package.
func (c *Config) LoggerConfig() logging.LogConfig {
	return logging.LogConfig{
		Level:      c.Log.Level,
		Console:    true,
		File:       c.Log.File,
		FilePath:   c.Log.FilePath,
		MaxSize:    c.Log.MaxSizeMB,
		MaxBackups: c.Log.MaxBackups,
		MaxAge:     c.Log.MaxAgeDays,
	}
}

// KiteConfig returns the provider settings for the kite source.
func (c *Config) KiteConfig() feed.KiteConfig {
	retry := utils.DefaultRetryConfig()
	if c.Data.MaxRetries > 0 {
		retry.MaxAttempts = c.Data.MaxRetries
	}
	return feed.KiteConfig{
		APIKey:      c.Kite.APIKey,
		AccessToken: c.Kite.AccessToken,
		Retry:       retry,
	}
}

// BreakerConfig returns the circuit breaker settings for the kite source.
func (c *Config) BreakerConfig() feed.BreakerConfig {
	bc := feed.DefaultBreakerConfig()
	if c.Data.BreakerFailures > 0 {
		bc.FailureThreshold = c.Data.BreakerFailures
	}
	if c.Data.BreakerCooldown > 0 {
		bc.Cooldown = c.Data.BreakerCooldown
	}
	return bc
}

// Redacted returns a copy safe to print.
func (c *Config) Redacted() Config {
	out := *c
	out.Kite.APIKey = maskSecret(c.Kite.APIKey)
	out.Kite.AccessToken = maskSecret(c.Kite.AccessToken)
	return out
}

func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}
