package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"pattern-scanner/internal/analysis"
	"pattern-scanner/internal/analysis/screener"
	"pattern-scanner/internal/errors"
)

// addScanCommands adds the multi-symbol screener.
func addScanCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newScanCmd(app))
}

func newScanCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan [symbols...]",
		Short: "Screen several symbols for chart patterns",
		Long: `Run detection over a list of symbols and rank the ones with a matching
pattern by their best confidence.

Presets narrow the pattern types and the match filter:
  bullish_reversal   completed double/triple bottoms and inverse H&S
  bearish_reversal   completed double/triple tops and H&S
  continuation       flags and pennants
  forming_breakout   triangles and wedges still forming`,
		Example: `  scanner scan INFY TCS WIPRO
  scanner scan --symbols RELIANCE,HDFCBANK --preset bullish_reversal
  scanner scan --symbols "$(cat nifty50.txt)" --source sqlite --min-confidence 0.7`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()
			defer app.Close()

			listed, _ := cmd.Flags().GetString("symbols")
			symbols := screener.ParseSymbols(append(args, listed)...)
			if len(symbols) == 0 {
				return errors.NewValidationError("symbols", "", "give symbols as arguments or --symbols")
			}

			opts, err := detectOptions(cmd, app.Config)
			if err != nil {
				return err
			}
			filter, err := scanFilter(cmd)
			if err != nil {
				return err
			}
			if name, _ := cmd.Flags().GetString("preset"); name != "" {
				preset, ok := screener.Presets()[name]
				if !ok {
					return errors.NewValidationError("preset", name,
						"expected one of "+strings.Join(screener.PresetNames(), ", "))
				}
				opts = preset.Apply(opts)
				filter = mergeFilter(preset.Filter, filter, cmd)
			}

			base, err := barRequest(cmd, symbols[0], opts.Timeframe, app.Config)
			if err != nil {
				return err
			}
			source, _ := cmd.Flags().GetString("source")
			if source == "" {
				source = app.Config.Data.Source
			}
			provider, err := app.Provider(source)
			if err != nil {
				output.Error("Failed to open %s source: %v", source, err)
				return err
			}

			concurrency, _ := cmd.Flags().GetInt("concurrency")
			s := screener.NewScreener(provider, opts, concurrency, app.Logger)
			results, err := s.Scan(ctx, symbols, base, filter)
			if err != nil {
				output.Error("Scan failed: %v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(results)
			}
			all, _ := cmd.Flags().GetBool("all")
			return displayScan(output, string(base.Timeframe), results, all)
		},
	}

	cmd.Flags().String("symbols", "", "comma-separated symbols to scan")
	cmd.Flags().String("preset", "", "preset: "+strings.Join(screener.PresetNames(), ", "))
	cmd.Flags().Float64("min-confidence", 0, "minimum confidence of a matching pattern (0-1)")
	cmd.Flags().StringSlice("status", nil, "statuses that count as a match")
	cmd.Flags().String("direction", "", "bullish, bearish or neutral")
	cmd.Flags().Int("concurrency", 4, "symbols scanned at once")
	cmd.Flags().Bool("all", false, "also list symbols without a match")
	cmd.Flags().StringP("timeframe", "t", "", "bar interval")
	cmd.Flags().StringP("source", "s", "", "bar source: csv, sqlite or kite (default from config)")
	cmd.Flags().StringP("exchange", "e", "", "exchange (default from config)")
	cmd.Flags().String("from", "", "first bar date (YYYY-MM-DD)")
	cmd.Flags().String("to", "", "last bar date (YYYY-MM-DD)")
	cmd.Flags().IntP("days", "d", 0, "bars from the last N days (ignored with --from)")
	cmd.Flags().StringSlice("patterns", nil, "comma-separated pattern types to report")
	cmd.Flags().Bool("forming", false, "include forming patterns")

	return cmd
}

func scanFilter(cmd *cobra.Command) (screener.Filter, error) {
	var filter screener.Filter
	flags := cmd.Flags()

	filter.MinConfidence, _ = flags.GetFloat64("min-confidence")
	if filter.MinConfidence < 0 || filter.MinConfidence > 1 {
		return filter, errors.NewValidationError("min-confidence", filter.MinConfidence, "must be between 0 and 1")
	}
	statuses, _ := flags.GetStringSlice("status")
	for _, s := range statuses {
		status := analysis.Status(strings.TrimSpace(s))
		switch status {
		case analysis.StatusCompleted, analysis.StatusForming, analysis.StatusNearCompletion, analysis.StatusInvalid:
			filter.Statuses = append(filter.Statuses, status)
		default:
			return filter, errors.NewValidationError("status", s, "unknown status")
		}
	}
	if d, _ := flags.GetString("direction"); d != "" {
		dir := analysis.PatternDirection(strings.ToLower(d))
		switch dir {
		case analysis.PatternBullish, analysis.PatternBearish, analysis.PatternNeutral:
			filter.Direction = dir
		default:
			return filter, errors.NewValidationError("direction", d, "expected bullish, bearish or neutral")
		}
	}
	return filter, nil
}

// mergeFilter lets explicit flags override the preset filter.
func mergeFilter(preset, flags screener.Filter, cmd *cobra.Command) screener.Filter {
	if cmd.Flags().Changed("min-confidence") {
		preset.MinConfidence = flags.MinConfidence
	}
	if cmd.Flags().Changed("status") {
		preset.Statuses = flags.Statuses
	}
	if cmd.Flags().Changed("direction") {
		preset.Direction = flags.Direction
	}
	return preset
}

func displayScan(output *Output, tf string, results []screener.Result, all bool) error {
	matched, failed := 0, 0
	for _, r := range results {
		if r.Matched() {
			matched++
		}
		if r.Err != nil {
			failed++
		}
	}
	output.Bold("%d of %d symbols matched (%s)", matched, len(results), tf)
	output.Println()

	table := output.Table("Symbol", "Score", "Bars", "Patterns", "Best")
	for _, r := range results {
		if !r.Matched() && (!all || r.Err != nil) {
			continue
		}
		best := "-"
		if r.Matched() {
			top := r.Matches[0]
			for _, m := range r.Matches[1:] {
				if m.Confidence > top.Confidence {
					top = m
				}
			}
			best = fmt.Sprintf("%s (%s)", FormatPatternName(top.Type), FormatStatus(top.Status))
		}
		table.Append([]string{
			r.Symbol,
			FormatConfidence(r.Score),
			fmt.Sprintf("%d", r.Bars),
			fmt.Sprintf("%d", len(r.Matches)),
			best,
		})
	}
	if err := table.Render(); err != nil {
		return err
	}

	if failed > 0 {
		output.Println()
		for _, r := range results {
			if r.Err != nil {
				output.Warning("⚠ %s: %s", r.Symbol, r.Error)
			}
		}
	}
	return nil
}
