// Package cli provides the command-line interface for the pattern scanner.
package cli

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"pattern-scanner/internal/config"
	"pattern-scanner/internal/errors"
	"pattern-scanner/internal/feed"
	"pattern-scanner/internal/logging"
	"pattern-scanner/internal/store"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2026-10-16"
)

// App holds the application dependencies.
type App struct {
	Config *config.Config
	Logger zerolog.Logger

	store *store.SQLiteStore
}

// Store opens the candle store on first use.
func (a *App) Store() (*store.SQLiteStore, error) {
	if a.store != nil {
		return a.store, nil
	}
	st, err := store.NewSQLiteStore(a.Config.Data.DBPath)
	if err != nil {
		return nil, err
	}
	a.Logger.Debug().Str("path", a.Config.Data.DBPath).Msg("SQLite store initialized")
	a.store = st
	return st, nil
}

// Close releases the store if it was opened.
func (a *App) Close() {
	if a.store == nil {
		return
	}
	if err := a.store.Close(); err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to close store")
	}
	a.store = nil
}

// Provider builds the bar provider for source. Kite requests pass a circuit
// breaker and go through the SQLite cache when data.cache is set.
func (a *App) Provider(source string) (feed.BarProvider, error) {
	switch source {
	case config.SourceCSV:
		return feed.NewCSVProvider(a.Config.Data.CSVDir, a.Logger), nil
	case config.SourceSQLite:
		st, err := a.Store()
		if err != nil {
			return nil, err
		}
		return feed.NewStoreProvider(st, a.Logger), nil
	case config.SourceKite:
		kite, err := feed.NewKiteProvider(a.Config.KiteConfig(), a.Logger)
		if err != nil {
			return nil, err
		}
		guarded := feed.NewBreakerProvider(kite, a.Config.BreakerConfig(), a.Logger)
		if !a.Config.Data.Cache {
			return guarded, nil
		}
		st, err := a.Store()
		if err != nil {
			return nil, err
		}
		return feed.NewCachingProvider(guarded, st, a.Config.Data.CacheMaxAge, a.Logger), nil
	default:
		return nil, errors.NewValidationError("source", source, "must be csv, sqlite or kite")
	}
}

// NewRootCmd creates the root command for the CLI. Configuration is loaded
// before any subcommand runs, from --config or the default directory.
func NewRootCmd(logger zerolog.Logger) *cobra.Command {
	app := &App{Logger: logger}

	rootCmd := &cobra.Command{
		Use:   "scanner",
		Short: "Chart pattern scanner for OHLCV bars",
		Long: `Scanner detects classical chart patterns in OHLCV bar series:
double and triple tops and bottoms, head and shoulders, triangles, wedges,
flags and pennants. Each detection carries a confidence, a status and, once
it has broken out, what price did afterwards.

Bars come from CSV files, the local SQLite cache or the Kite Connect
historical API.

Use 'scanner help <command>' for more information about a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(dir)
			if err != nil {
				return err
			}
			app.Config = cfg
			app.Logger = logging.NewLoggerWithConfig(cfg.LoggerConfig())

			// Handle debug flag
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/pattern-scanner)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	addCoreCommands(rootCmd, app)
	addDetectCommands(rootCmd, app)
	addDataCommands(rootCmd, app)
	addScanCommands(rootCmd, app)

	return rootCmd
}

// addCoreCommands adds core utility commands.
func addCoreCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			}
			output.Printf("Pattern Scanner v%s\n", Version)
			output.Dim("Build date: %s", BuildDate)
			return nil
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			cfg := app.Config.Redacted()
			if output.IsJSON() {
				return output.JSON(cfg)
			}
			return showConfig(output, &cfg)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			path := config.ConfigFile(app.Config.Dir)
			if output.IsJSON() {
				return output.JSON(map[string]string{"dir": app.Config.Dir, "path": path})
			}
			output.Println(path)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration files",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]bool{"valid": true})
			}
			output.Success("✓ Configuration is valid")
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) error {
	d := cfg.Detection
	output.Bold("Detection")
	output.Printf("  Timeframe:        %s\n", d.Timeframe)
	output.Printf("  Swing Depth:      %s\n", autoInt(d.SwingDepth))
	output.Printf("  Tolerance:        %s\n", autoPct(d.TolerancePct))
	output.Printf("  Strict Pivots:    %v\n", d.StrictPivots)
	output.Printf("  Patterns:         %s\n", listOrAll(d.Patterns))
	output.Printf("  Forming:          %v\n", d.IncludeForming)
	output.Printf("  Completed:        %v\n", d.IncludeCompleted)
	output.Printf("  Invalid:          %v\n", d.IncludeInvalid)
	output.Printf("  Current Only:     %v (%.1f days)\n", d.RequireCurrentInPattern, d.CurrentRelevanceDays)
	output.Printf("  Smoothing:        %v (window %d)\n", d.Smooth, d.SmoothWindow)
	output.Printf("  Parallel:         %v\n", d.Parallel)
	output.Println()

	output.Bold("Data")
	output.Printf("  Source:           %s\n", cfg.Data.Source)
	output.Printf("  Exchange:         %s\n", cfg.Data.Exchange)
	output.Printf("  CSV Dir:          %s\n", cfg.Data.CSVDir)
	output.Printf("  Database:         %s\n", cfg.Data.DBPath)
	output.Printf("  Cache:            %v (intraday max age %s)\n", cfg.Data.Cache, cfg.Data.CacheMaxAge)
	output.Printf("  Kite breaker:     %d failures, %s cooldown\n", cfg.BreakerConfig().FailureThreshold, cfg.BreakerConfig().Cooldown)
	output.Println()

	output.Bold("Kite")
	output.Printf("  API Key:          %s\n", orNone(cfg.Kite.APIKey))
	output.Printf("  Access Token:     %s\n", orNone(cfg.Kite.AccessToken))
	output.Println()

	output.Bold("Logging")
	output.Printf("  Level:            %s\n", cfg.Log.Level)
	if cfg.Log.File {
		output.Printf("  File:             %s\n", cfg.Log.FilePath)
	}

	return nil
}
