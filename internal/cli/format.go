package cli

import (
	"fmt"
	"math"
	"strings"
	"time"

	"pattern-scanner/internal/analysis"
	"pattern-scanner/internal/models"
	"pattern-scanner/pkg/utils"
)

// FormatConfidence formats a 0..1 confidence as a whole percentage.
func FormatConfidence(conf float64) string {
	return utils.FormatRatio(clampUnit(conf))
}

func clampUnit(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}

// FormatPatternName turns a pattern tag into a title.
// double_bottom becomes "Double Bottom".
func FormatPatternName(t analysis.PatternType) string {
	words := strings.Split(string(t), "_")
	for i, w := range words {
		if w == "and" {
			continue
		}
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// FormatStatus formats a status for display.
func FormatStatus(s analysis.Status) string {
	return strings.ReplaceAll(string(s), "_", " ")
}

// FormatOutcome formats an outcome for display.
func FormatOutcome(o analysis.Outcome) string {
	return strings.ReplaceAll(string(o), "_", " ")
}

// FormatBarTime formats a bar timestamp in IST. Daily and weekly bars show
// the date only.
func FormatBarTime(t time.Time, tf models.Timeframe) string {
	ist := t.In(utils.IndiaLocation)
	if tf == models.Timeframe1Day || tf == models.Timeframe1Week {
		return ist.Format("02-Jan-2006")
	}
	return ist.Format("02-Jan-06 15:04")
}

// FormatTarget formats an optional price target.
func FormatTarget(target *float64) string {
	if target == nil {
		return "-"
	}
	return utils.FormatPrice(*target)
}

// FormatBreakout formats an optional breakout side.
func FormatBreakout(d *analysis.Direction) string {
	if d == nil {
		return "-"
	}
	return string(*d)
}

// TruncateString truncates a string to max length with ellipsis.
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

func autoInt(v int) string {
	if v == 0 {
		return "auto"
	}
	return fmt.Sprintf("%d", v)
}

func autoPct(v float64) string {
	if v == 0 {
		return "auto"
	}
	return fmt.Sprintf("%.2f%%", v)
}

func listOrAll(items []string) string {
	if len(items) == 0 {
		return "all"
	}
	return strings.Join(items, ", ")
}

func orNone(s string) string {
	if s == "" {
		return "(not set)"
	}
	return s
}
