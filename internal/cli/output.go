package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"pattern-scanner/internal/analysis"
	"pattern-scanner/pkg/utils"
)

// Output handles formatted output for the CLI.
type Output struct {
	writer       io.Writer
	jsonMode     bool
	colorEnabled bool
}

// NewOutput creates a new Output instance.
func NewOutput(cmd *cobra.Command) *Output {
	jsonMode, _ := cmd.Flags().GetBool("json")
	return &Output{
		writer:       cmd.OutOrStdout(),
		jsonMode:     jsonMode,
		colorEnabled: !jsonMode && !color.NoColor,
	}
}

// IsJSON returns true if JSON output mode is enabled.
func (o *Output) IsJSON() bool {
	return o.jsonMode
}

// JSON outputs data as JSON.
func (o *Output) JSON(data interface{}) error {
	encoder := json.NewEncoder(o.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// Println prints a message with newline.
func (o *Output) Println(args ...interface{}) {
	fmt.Fprintln(o.writer, args...)
}

// Printf prints a formatted message.
func (o *Output) Printf(format string, args ...interface{}) {
	fmt.Fprintf(o.writer, format, args...)
}

// Success prints a success message in green.
func (o *Output) Success(format string, args ...interface{}) {
	o.line(format, args, color.FgGreen)
}

// Error prints an error message in red.
func (o *Output) Error(format string, args ...interface{}) {
	o.line(format, args, color.FgRed)
}

// Warning prints a warning message in yellow.
func (o *Output) Warning(format string, args ...interface{}) {
	o.line(format, args, color.FgYellow)
}

// Info prints an info message in cyan.
func (o *Output) Info(format string, args ...interface{}) {
	o.line(format, args, color.FgCyan)
}

// Bold prints a bold message.
func (o *Output) Bold(format string, args ...interface{}) {
	o.line(format, args, color.Bold)
}

// Dim prints a dimmed message.
func (o *Output) Dim(format string, args ...interface{}) {
	o.line(format, args, color.Faint)
}

func (o *Output) line(format string, args []interface{}, attrs ...color.Attribute) {
	fmt.Fprintln(o.writer, o.paint(fmt.Sprintf(format, args...), attrs...))
}

// paint colours text when colour output is on.
func (o *Output) paint(text string, attrs ...color.Attribute) string {
	c := color.New(attrs...)
	if o.colorEnabled {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c.Sprint(text)
}

// Green returns green colored text.
func (o *Output) Green(text string) string {
	return o.paint(text, color.FgGreen)
}

// Red returns red colored text.
func (o *Output) Red(text string) string {
	return o.paint(text, color.FgRed)
}

// Yellow returns yellow colored text.
func (o *Output) Yellow(text string) string {
	return o.paint(text, color.FgYellow)
}

// DimText returns dimmed text.
func (o *Output) DimText(text string) string {
	return o.paint(text, color.Faint)
}

// Direction colours an expected direction.
func (o *Output) Direction(d analysis.PatternDirection) string {
	switch d {
	case analysis.PatternBullish:
		return o.Green("▲ bullish")
	case analysis.PatternBearish:
		return o.Red("▼ bearish")
	default:
		return o.Yellow("◆ neutral")
	}
}

// Outcome colours an aftermath outcome. Nil prints a dash.
func (o *Output) Outcome(out *analysis.Outcome) string {
	if out == nil {
		return o.DimText("-")
	}
	text := FormatOutcome(*out)
	switch *out {
	case analysis.OutcomeSuccess:
		return o.Green(text)
	case analysis.OutcomePartialSuccess:
		return o.Yellow(text)
	case analysis.OutcomeFailure:
		return o.Red(text)
	default:
		return o.DimText(text)
	}
}

// Status colours a pattern status.
func (o *Output) Status(s analysis.Status) string {
	text := FormatStatus(s)
	switch s {
	case analysis.StatusCompleted:
		return o.Green(text)
	case analysis.StatusNearCompletion:
		return o.Yellow(text)
	case analysis.StatusInvalid:
		return o.Red(text)
	default:
		return text
	}
}

// Return colours a signed return percentage.
func (o *Output) Return(pct float64) string {
	text := utils.FormatPercent(pct)
	switch {
	case pct > 0:
		return o.Green(text)
	case pct < 0:
		return o.Red(text)
	default:
		return text
	}
}

// Table creates a table writing to the output.
func (o *Output) Table(headers ...string) *tablewriter.Table {
	return tablewriter.NewTable(o.writer,
		tablewriter.WithHeader(headers),
	)
}
