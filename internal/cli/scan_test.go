package cli

import (
	"testing"

	"pattern-scanner/internal/analysis"
	"pattern-scanner/internal/analysis/screener"
)

func TestScanFilter(t *testing.T) {
	cmd := newScanCmd(&App{Config: testConfig()})
	if err := cmd.ParseFlags([]string{
		"--min-confidence", "0.65",
		"--status", "completed,forming",
		"--direction", "Bullish",
	}); err != nil {
		t.Fatal(err)
	}
	filter, err := scanFilter(cmd)
	if err != nil {
		t.Fatal(err)
	}
	if filter.MinConfidence != 0.65 || filter.Direction != analysis.PatternBullish {
		t.Errorf("unexpected filter %+v", filter)
	}
	if len(filter.Statuses) != 2 || filter.Statuses[1] != analysis.StatusForming {
		t.Errorf("unexpected statuses %v", filter.Statuses)
	}
}

func TestScanFilter_Rejects(t *testing.T) {
	tests := [][]string{
		{"--min-confidence", "1.5"},
		{"--status", "done"},
		{"--direction", "sideways"},
	}
	for _, args := range tests {
		cmd := newScanCmd(&App{Config: testConfig()})
		if err := cmd.ParseFlags(args); err != nil {
			t.Fatal(err)
		}
		if _, err := scanFilter(cmd); err == nil {
			t.Errorf("expected %v to be rejected", args)
		}
	}
}

func TestMergeFilter_FlagsOverridePreset(t *testing.T) {
	cmd := newScanCmd(&App{Config: testConfig()})
	if err := cmd.ParseFlags([]string{"--min-confidence", "0.9"}); err != nil {
		t.Fatal(err)
	}
	flags, err := scanFilter(cmd)
	if err != nil {
		t.Fatal(err)
	}
	preset := screener.BullishReversalPreset()
	merged := mergeFilter(preset.Filter, flags, cmd)
	if merged.MinConfidence != 0.9 {
		t.Errorf("flag should override confidence, got %v", merged.MinConfidence)
	}
	if merged.Direction != analysis.PatternBullish || len(merged.Statuses) != 1 {
		t.Errorf("unset flags should keep the preset, got %+v", merged)
	}
}
