package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Pattern Scanner Configuration

[detection]
# Bar interval: 1min, 5min, 15min, 30min, 1hour, 1day, 1week
timeframe = "1day"
# Strict pivot half-window; 0 picks a value from the timeframe
swing_depth = 0
# Price tolerance in percent; 0 picks a value from the timeframe
tolerance_pct = 0
# Minimum bars between pivots; 0 uses swing_depth
min_bars_between_swings = 0
strict_pivots = true
# Restrict output to these types; empty means all
patterns = []
include_forming = false
include_completed = true
include_invalid = false
# Keep only patterns that reach within current_relevance_days of now
require_current_in_pattern = false
current_relevance_days = 5.0
# Savitzky-Golay smoothing before pivot detection
smooth = false
smooth_window = 7
parallel = true
max_debug_candidates = 200

[tuning]
# Leave a value at 0 (or a table empty) to keep the built-in default.
min_fit_quality = 0
pole_atr_multiple = 0
min_pole_pct = 0
stale_bars = 0
breakout_lookahead = 0
atr_period = 0
window_sizes = []

# Minimum confidence per pattern type
[tuning.min_confidence]
# double_top = 0.45

# Confidence multiplier per family
[tuning.family_adjustment]
# flag = 0.9

# Relaxed fallback passes per family
[tuning.relax_steps]
# double = [{ tolerance_mult = 1.25, penalty = 0.9 }, { tolerance_mult = 2.0, penalty = 0.85 }]

[data]
# Bar source: csv, sqlite or kite
source = "csv"
exchange = "NSE"
# Directory holding SYMBOL_timeframe.csv or SYMBOL.csv files
csv_dir = "."
# SQLite candle cache; defaults to candles.db in the config directory
# db_path = ""
# Cache kite bars in SQLite
cache = true
# Freshness of cached intraday bars
cache_max_age = "15m"
max_retries = 3
# Pause kite requests after this many failures in a row
breaker_failures = 5
breaker_cooldown = "30s"

[log]
# trace, debug, info, warn, error
level = "info"
# Also write a rotating log file
file = false
# file_path = ""
max_size_mb = 50
max_backups = 5
max_age_days = 14
`

const credentialsTemplate = `# Pattern Scanner Credentials
# This file contains sensitive information - keep it secure!
# Environment variables KITE_API_KEY and KITE_ACCESS_TOKEN take precedence.

[kite]
api_key = ""
access_token = ""
`

func writeTemplate(configDir, name, content string, perm os.FileMode) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, name)
	if err := os.WriteFile(path, []byte(content), perm); err != nil {
		return fmt.Errorf("writing %s template: %w", name, err)
	}

	return nil
}
