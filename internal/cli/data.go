package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"pattern-scanner/internal/errors"
	"pattern-scanner/internal/feed"
	"pattern-scanner/internal/models"
	"pattern-scanner/internal/store"
	"pattern-scanner/pkg/utils"
)

// addDataCommands adds bar import, fetch and listing commands.
func addDataCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newImportCmd(app))
	rootCmd.AddCommand(newFetchCmd(app))
	rootCmd.AddCommand(newSeriesCmd(app))
}

func newImportCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <csv>",
		Short: "Import a CSV bar file into the local store",
		Long: `Read OHLCV bars from a CSV file and save them to the SQLite store so
that 'detect --source sqlite' can use them.

The file needs timestamp, open, high, low and close columns; volume is
optional. The symbol defaults to the file name up to the first underscore.`,
		Example: `  scanner import ./RELIANCE_1day.csv
  scanner import ./infy.csv --symbol INFY --timeframe 15min`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()
			defer app.Close()

			path := args[0]
			symbol, _ := cmd.Flags().GetString("symbol")
			if symbol == "" {
				symbol = symbolFromPath(path)
			}
			tfFlag, _ := cmd.Flags().GetString("timeframe")
			tf := models.Timeframe(tfFlag)
			if !tf.Valid() {
				return errors.NewValidationError("timeframe", tfFlag, "unknown timeframe")
			}
			symbol = strings.ToUpper(symbol)

			f, err := os.Open(path)
			if err != nil {
				output.Error("Failed to open %s: %v", path, err)
				return err
			}
			defer f.Close()

			candles, err := feed.ReadCSV(f, utils.IndiaLocation)
			if err != nil {
				output.Error("Failed to parse %s: %v", path, err)
				return err
			}
			candles = feed.Clean(candles)

			st, err := app.Store()
			if err != nil {
				return err
			}
			if err := st.SaveCandles(ctx, symbol, tf, candles); err != nil {
				output.Error("Failed to save bars: %v", err)
				return err
			}

			summary := seriesSummary(symbol, tf, candles)
			if output.IsJSON() {
				return output.JSON(summary)
			}
			output.Success("✓ Imported %d bars of %s %s", summary.Bars, symbol, tf)
			if summary.Bars > 0 {
				output.Dim("  %s → %s", FormatBarTime(summary.First, tf), FormatBarTime(summary.Last, tf))
			}
			return nil
		},
	}

	cmd.Flags().String("symbol", "", "symbol to store the bars under")
	cmd.Flags().StringP("timeframe", "t", string(models.Timeframe1Day), "bar interval of the file")

	return cmd
}

func newFetchCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch <symbol>",
		Short: "Fetch historical bars from Kite Connect",
		Long: `Download historical bars from the Kite Connect API. With caching enabled
the bars are kept in the SQLite store and reused while fresh: daily and
weekly series until the next session close, intraday series for
data.cache_max_age.`,
		Example: `  scanner fetch RELIANCE
  scanner fetch INFY --timeframe 15min --days 30
  scanner fetch TCS --from 2024-01-01 --out ./TCS_1day.csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()
			defer app.Close()

			tfFlag, _ := cmd.Flags().GetString("timeframe")
			req, err := barRequest(cmd, args[0], models.Timeframe(tfFlag), app.Config)
			if err != nil {
				return err
			}

			provider, err := app.Provider("kite")
			if err != nil {
				output.Error("Kite not configured: %v", err)
				output.Dim("  set KITE_API_KEY and KITE_ACCESS_TOKEN or edit credentials.toml")
				return err
			}

			started := time.Now()
			candles, err := provider.Bars(ctx, req)
			if err != nil {
				output.Error("Fetch failed: %v", err)
				return err
			}

			if out, _ := cmd.Flags().GetString("out"); out != "" {
				if err := writeBarFile(out, candles); err != nil {
					output.Error("Failed to write %s: %v", out, err)
					return err
				}
			}

			summary := seriesSummary(req.Symbol, req.Timeframe, candles)
			if output.IsJSON() {
				return output.JSON(summary)
			}
			output.Success("✓ %d bars of %s %s from %s in %s", summary.Bars, req.Symbol, req.Timeframe,
				provider.Name(), time.Since(started).Round(time.Millisecond))
			if summary.Bars > 0 {
				last := candles[len(candles)-1]
				output.Dim("  %s → %s, last close %s", FormatBarTime(summary.First, req.Timeframe),
					FormatBarTime(summary.Last, req.Timeframe), utils.FormatPrice(last.Close))
			}
			return nil
		},
	}

	cmd.Flags().StringP("timeframe", "t", string(models.Timeframe1Day), "bar interval")
	cmd.Flags().StringP("exchange", "e", "", "exchange (default from config)")
	cmd.Flags().String("from", "", "first bar date (YYYY-MM-DD)")
	cmd.Flags().String("to", "", "last bar date (YYYY-MM-DD)")
	cmd.Flags().IntP("days", "d", 0, "bars from the last N days (ignored with --from)")
	cmd.Flags().StringP("out", "o", "", "also write the bars to this CSV file")

	return cmd
}

func newSeriesCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "series",
		Short: "List bar series in the local store",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()
			defer app.Close()

			st, err := app.Store()
			if err != nil {
				return err
			}
			series, err := st.ListSeries(ctx)
			if err != nil {
				output.Error("Failed to list series: %v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(series)
			}
			if len(series) == 0 {
				output.Info("No stored series. Use 'scanner import' or 'scanner fetch'.")
				return nil
			}

			table := output.Table("Symbol", "Timeframe", "Bars", "First", "Last", "Synced")
			for _, s := range series {
				synced := "-"
				if t := st.GetLastSync(store.SyncKey(s.Symbol, s.Timeframe)); !t.IsZero() {
					synced = t.In(utils.IndiaLocation).Format("02-Jan 15:04")
				}
				table.Append([]string{
					s.Symbol,
					string(s.Timeframe),
					fmt.Sprintf("%d", s.Bars),
					FormatBarTime(s.First, s.Timeframe),
					FormatBarTime(s.Last, s.Timeframe),
					synced,
				})
			}
			return table.Render()
		},
	}
}

// symbolFromPath takes INFY from ./data/INFY_1day.csv.
func symbolFromPath(path string) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if i := strings.Index(base, "_"); i > 0 {
		base = base[:i]
	}
	return strings.ToUpper(base)
}

func seriesSummary(symbol string, tf models.Timeframe, candles []models.Candle) store.SeriesInfo {
	info := store.SeriesInfo{Symbol: symbol, Timeframe: tf, Bars: len(candles)}
	if len(candles) > 0 {
		info.First = candles[0].Timestamp
		info.Last = candles[len(candles)-1].Timestamp
	}
	return info
}

func writeBarFile(path string, candles []models.Candle) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := feed.WriteCSV(f, candles); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
