package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"pattern-scanner/internal/analysis"
	"pattern-scanner/internal/analysis/patterns"
	"pattern-scanner/internal/config"
	"pattern-scanner/internal/errors"
	"pattern-scanner/internal/feed"
	"pattern-scanner/internal/logging"
	"pattern-scanner/internal/models"
	"pattern-scanner/pkg/utils"
)

// addDetectCommands adds pattern detection commands.
func addDetectCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newDetectCmd(app))
}

func newDetectCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "detect <symbol>",
		Short: "Detect chart patterns in a symbol's bars",
		Long: `Run every pattern classifier over the symbol's bars and list the
detections with confidence, status and post-breakout outcome.

Defaults come from the [detection] section of config.toml; flags override
them for one run.`,
		Example: `  scanner detect RELIANCE
  scanner detect INFY --timeframe 1hour --source kite --days 60
  scanner detect TCS --forming --patterns double_top,triangle_ascending
  scanner detect NIFTY --file ./nifty.csv --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()
			defer app.Close()

			opts, err := detectOptions(cmd, app.Config)
			if err != nil {
				return err
			}
			req, err := barRequest(cmd, args[0], opts.Timeframe, app.Config)
			if err != nil {
				return err
			}

			candles, err := loadBars(cmd, app, req)
			if err != nil {
				output.Error("Failed to load bars: %v", err)
				return err
			}

			engine := patterns.NewEngine(opts, logging.WithSymbol(app.Logger, req.Symbol))
			result, err := engine.Detect(ctx, candles)
			if err != nil {
				output.Error("Detection failed: %v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(result)
			}
			showCandidates, _ := cmd.Flags().GetBool("candidates")
			return displayResult(output, req, len(candles), result, showCandidates)
		},
	}

	cmd.Flags().StringP("timeframe", "t", "", "bar interval (1min, 5min, 15min, 30min, 1hour, 1day, 1week)")
	cmd.Flags().StringP("source", "s", "", "bar source: csv, sqlite or kite (default from config)")
	cmd.Flags().StringP("file", "f", "", "read bars from this CSV file instead of a source")
	cmd.Flags().StringP("exchange", "e", "", "exchange (default from config)")
	cmd.Flags().String("from", "", "first bar date (YYYY-MM-DD)")
	cmd.Flags().String("to", "", "last bar date (YYYY-MM-DD)")
	cmd.Flags().IntP("days", "d", 0, "bars from the last N days (ignored with --from)")
	cmd.Flags().StringSlice("patterns", nil, "comma-separated pattern types to report")
	cmd.Flags().Bool("forming", false, "include forming patterns")
	cmd.Flags().Bool("invalid", false, "include invalidated patterns")
	cmd.Flags().Bool("current", false, "only patterns that reach the latest bars")
	cmd.Flags().Float64("tolerance", 0, "price tolerance in percent")
	cmd.Flags().Int("depth", 0, "swing depth in bars")
	cmd.Flags().Bool("relaxed-pivots", false, "use relaxed instead of strict pivots")
	cmd.Flags().Bool("smooth", false, "smooth prices before finding pivots")
	cmd.Flags().Bool("sequential", false, "run classifiers one after another")
	cmd.Flags().Bool("candidates", false, "list accepted and rejected candidates")

	return cmd
}

// detectOptions starts from the configured defaults and applies the flags
// the user set.
func detectOptions(cmd *cobra.Command, cfg *config.Config) (patterns.Options, error) {
	opts, err := cfg.Options()
	if err != nil {
		return opts, err
	}
	flags := cmd.Flags()

	if flags.Changed("timeframe") {
		tf, _ := flags.GetString("timeframe")
		opts.Timeframe = models.Timeframe(tf)
	}
	if flags.Changed("patterns") {
		names, _ := flags.GetStringSlice("patterns")
		opts.Patterns = opts.Patterns[:0]
		for _, name := range names {
			t, ok := analysis.ParsePatternType(strings.TrimSpace(name))
			if !ok {
				return opts, errors.NewValidationError("patterns", name, "unknown pattern type")
			}
			opts.Patterns = append(opts.Patterns, t)
		}
	}
	if flags.Changed("forming") {
		opts.IncludeForming, _ = flags.GetBool("forming")
	}
	if flags.Changed("invalid") {
		opts.IncludeInvalid, _ = flags.GetBool("invalid")
	}
	if flags.Changed("current") {
		opts.RequireCurrentInPattern, _ = flags.GetBool("current")
	}
	if flags.Changed("tolerance") {
		opts.TolerancePct, _ = flags.GetFloat64("tolerance")
	}
	if flags.Changed("depth") {
		opts.SwingDepth, _ = flags.GetInt("depth")
	}
	if flags.Changed("relaxed-pivots") {
		relaxed, _ := flags.GetBool("relaxed-pivots")
		opts.StrictPivots = !relaxed
	}
	if flags.Changed("smooth") {
		opts.Smooth, _ = flags.GetBool("smooth")
	}
	if flags.Changed("sequential") {
		sequential, _ := flags.GetBool("sequential")
		opts.Parallel = !sequential
	}
	return opts, opts.Validate()
}

// barRequest builds the provider request from the symbol and range flags.
func barRequest(cmd *cobra.Command, symbol string, tf models.Timeframe, cfg *config.Config) (feed.Request, error) {
	if tf == "" {
		tf = models.Timeframe1Day
	}
	req := feed.Request{
		Symbol:    symbol,
		Exchange:  cfg.Data.Exchange,
		Timeframe: tf,
	}
	flags := cmd.Flags()
	if ex, _ := flags.GetString("exchange"); ex != "" {
		req.Exchange = strings.ToUpper(ex)
	}

	var err error
	if from, _ := flags.GetString("from"); from != "" {
		if req.From, err = parseDate(from); err != nil {
			return req, errors.NewValidationError("from", from, "expected YYYY-MM-DD")
		}
	} else if days, _ := flags.GetInt("days"); days > 0 {
		req.From = time.Now().In(utils.IndiaLocation).AddDate(0, 0, -days)
	}
	if to, _ := flags.GetString("to"); to != "" {
		if req.To, err = parseDate(to); err != nil {
			return req, errors.NewValidationError("to", to, "expected YYYY-MM-DD")
		}
		// Include the whole last day.
		req.To = req.To.Add(24*time.Hour - time.Nanosecond)
	}

	req = req.Normalize()
	return req, req.Validate()
}

func parseDate(s string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", s, utils.IndiaLocation)
}

// loadBars reads --file when given, otherwise asks the configured source.
func loadBars(cmd *cobra.Command, app *App, req feed.Request) ([]models.Candle, error) {
	if path, _ := cmd.Flags().GetString("file"); path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, errors.NewDataError("file", req.Symbol, "open bar file", err)
		}
		defer f.Close()
		candles, err := feed.ReadCSV(f, utils.IndiaLocation)
		if err != nil {
			return nil, errors.NewDataError("file", req.Symbol, path, err)
		}
		return feed.Clean(candles), nil
	}

	source, _ := cmd.Flags().GetString("source")
	if source == "" {
		source = app.Config.Data.Source
	}
	provider, err := app.Provider(source)
	if err != nil {
		return nil, err
	}
	return provider.Bars(cmd.Context(), req)
}

func displayResult(output *Output, req feed.Request, bars int, res *analysis.Result, showCandidates bool) error {
	output.Bold("%s %s · %d bars · %d patterns", req.Symbol, req.Timeframe, bars, len(res.Patterns))
	output.Dim("run %s", res.RunID)
	output.Println()

	if len(res.Patterns) > 0 {
		if err := patternTable(output, req.Timeframe, res.Patterns); err != nil {
			return err
		}
		output.Println()
	}

	if len(res.Statistics) > 0 {
		output.Bold("Outcomes by type")
		if err := statisticsTable(output, res.Statistics); err != nil {
			return err
		}
		output.Println()
	}

	for _, w := range res.Warnings {
		output.Warning("⚠ %s", w.Message)
		if w.Suggested != nil {
			output.Dim("  try --tolerance %.2f --depth %d --relaxed-pivots=%t",
				w.Suggested.TolerancePct, w.Suggested.SwingDepth, !w.Suggested.StrictPivots)
		}
	}

	if showCandidates && res.Debug != nil {
		output.Println()
		output.Bold("Candidates")
		return candidateTable(output, res.Debug.Candidates)
	}
	return nil
}

func patternTable(output *Output, tf models.Timeframe, entries []analysis.PatternEntry) error {
	table := output.Table("Pattern", "Status", "Conf", "Start", "End", "Direction", "Breakout", "Target", "Outcome")
	for _, e := range entries {
		name := FormatPatternName(e.Type)
		if e.Relaxed {
			name += " *"
		}
		status := output.Status(e.Status)
		if e.Status.Active() && e.CompletionPct > 0 {
			status += fmt.Sprintf(" %.0f%%", e.CompletionPct*100)
		}
		table.Append([]string{
			name,
			status,
			FormatConfidence(e.Confidence),
			FormatBarTime(e.Range.Start, tf),
			FormatBarTime(e.Range.End, tf),
			output.Direction(e.ExpectedDirection),
			FormatBreakout(e.BreakoutDirection),
			FormatTarget(e.BreakoutTarget),
			output.Outcome(e.Outcome),
		})
	}
	return table.Render()
}

func statisticsTable(output *Output, stats map[analysis.PatternType]analysis.TypeStats) error {
	table := output.Table("Pattern", "Detected", "Walked", "Success", "Avg 7", "Avg 14", "Median 7")
	for _, t := range patterns.StatisticsTypes(stats) {
		s := stats[t]
		table.Append([]string{
			FormatPatternName(t),
			fmt.Sprintf("%d", s.Detected),
			fmt.Sprintf("%d", s.WithAftermath),
			FormatConfidence(s.SuccessRate),
			output.Return(s.AvgReturn7d),
			output.Return(s.AvgReturn14d),
			output.Return(s.MedianReturn7d),
		})
	}
	return table.Render()
}

func candidateTable(output *Output, candidates []analysis.DebugCandidate) error {
	table := output.Table("Pattern", "Accepted", "Reason", "Start", "End", "Tol x")
	for _, c := range candidates {
		accepted := output.Red("no")
		if c.Accepted {
			accepted = output.Green("yes")
		}
		mult := "-"
		if c.ToleranceMultiplier > 0 {
			mult = fmt.Sprintf("%.2f", c.ToleranceMultiplier)
		}
		table.Append([]string{
			FormatPatternName(c.Type),
			accepted,
			TruncateString(c.Reason, 32),
			fmt.Sprintf("%d", c.StartIndex),
			fmt.Sprintf("%d", c.EndIndex),
			mult,
		})
	}
	return table.Render()
}
