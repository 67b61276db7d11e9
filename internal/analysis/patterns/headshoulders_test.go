package patterns

import (
	"context"
	"testing"

	"pattern-scanner/internal/analysis"
	"pattern-scanner/internal/models"
)

// inverseHS has shoulders at bars 10 and 41, the head at bar 25 and a
// neckline near 116 that breaks on the way to 130.
func inverseHS() []models.Candle {
	return pathCandles(0.5,
		waypoint{0, 125},
		waypoint{10, 105},
		waypoint{17, 115},
		waypoint{25, 100},
		waypoint{33, 115.5},
		waypoint{41, 105.5},
		waypoint{49, 119},
		waypoint{60, 130},
	)
}

func TestDetect_InverseHeadAndShoulders(t *testing.T) {
	engine := testEngine(func(o *Options) {
		o.Patterns = []analysis.PatternType{analysis.InverseHeadAndShoulders}
	})

	res, err := engine.Detect(context.Background(), inverseHS())
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	found := ofType(res.Patterns, analysis.InverseHeadAndShoulders)
	if len(found) != 1 {
		t.Fatalf("expected one inverse head and shoulders, got %d: %+v", len(found), res.Patterns)
	}
	p := found[0]

	if len(p.Pivots) != 5 {
		t.Fatalf("expected five pivots, got %+v", p.Pivots)
	}
	if p.Pivots[0].Index != 10 || p.Pivots[2].Index != 25 || p.Pivots[4].Index != 41 {
		t.Errorf("unexpected shoulder/head pivots %+v", p.Pivots)
	}
	if p.Status != analysis.StatusCompleted {
		t.Errorf("status = %s, want completed", p.Status)
	}
	if p.ExpectedDirection != analysis.PatternBullish {
		t.Errorf("expected direction = %s, want bullish", p.ExpectedDirection)
	}
	if p.BreakoutDirection == nil || *p.BreakoutDirection != analysis.DirectionUp {
		t.Errorf("breakout direction = %v, want up", p.BreakoutDirection)
	}
	if p.Neckline == nil || p.Neckline[0].Index != 17 || p.Neckline[1].Index != 33 {
		t.Errorf("neckline should join the two reaction highs, got %+v", p.Neckline)
	}
	if p.Reversal == nil || p.Reversal.Symmetry <= 0.4 {
		t.Errorf("unexpected reversal geometry %+v", p.Reversal)
	}
	if p.Height <= 0 || p.Confidence <= 0 || p.Confidence > 1 {
		t.Errorf("height = %v, confidence = %v", p.Height, p.Confidence)
	}
}

func TestDetect_HeadAndShouldersRejectsLowHead(t *testing.T) {
	// The middle peak is no higher than the shoulders.
	candles := pathCandles(0.5,
		waypoint{0, 90},
		waypoint{10, 110},
		waypoint{17, 100},
		waypoint{25, 110.2},
		waypoint{33, 100},
		waypoint{41, 110.1},
		waypoint{55, 95},
	)
	engine := testEngine(func(o *Options) {
		o.Patterns = []analysis.PatternType{analysis.HeadAndShoulders}
	})

	res, err := engine.Detect(context.Background(), candles)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if n := len(ofType(res.Patterns, analysis.HeadAndShoulders)); n != 0 {
		t.Fatalf("expected no head and shoulders, got %d", n)
	}
	rejected := false
	for _, c := range res.Debug.Candidates {
		if c.Type == analysis.HeadAndShoulders && c.Reason == "head_not_highest" {
			rejected = true
		}
	}
	if !rejected {
		t.Error("expected a head_not_highest rejection in the debug log")
	}
}

func TestMaxNecklineTilt(t *testing.T) {
	if got := maxNecklineTilt(0.005); got != 0.03 {
		t.Errorf("maxNecklineTilt(0.005) = %v, want the 0.03 floor", got)
	}
	if got := maxNecklineTilt(0.02); got != 0.04 {
		t.Errorf("maxNecklineTilt(0.02) = %v, want 0.04", got)
	}
}
