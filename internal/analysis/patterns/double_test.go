package patterns

import (
	"context"
	"testing"

	"pattern-scanner/internal/analysis"
)

func TestDetect_DoubleBottomWShape(t *testing.T) {
	engine := testEngine(func(o *Options) {
		o.Patterns = []analysis.PatternType{analysis.DoubleBottom}
	})

	res, err := engine.Detect(context.Background(), wShape())
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}

	bottoms := ofType(res.Patterns, analysis.DoubleBottom)
	if len(bottoms) != 1 {
		t.Fatalf("expected one double bottom, got %d: %+v", len(bottoms), res.Patterns)
	}
	p := bottoms[0]

	if p.Pivots[0].Index != 10 || p.Pivots[len(p.Pivots)-1].Index != 26 {
		t.Errorf("unexpected pivots %+v", p.Pivots)
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
	if p.Outcome == nil || *p.Outcome != analysis.OutcomeSuccess {
		t.Errorf("outcome = %v, want success", p.Outcome)
	}
	if p.Neckline == nil || p.Neckline[0].Index > p.Neckline[1].Index {
		t.Errorf("malformed neckline %+v", p.Neckline)
	}
	if p.Confidence <= 0 || p.Confidence > 1 {
		t.Errorf("confidence out of range: %v", p.Confidence)
	}
	if p.StartIndex >= p.EndIndex {
		t.Errorf("range not ordered: %d..%d", p.StartIndex, p.EndIndex)
	}
	if p.Aftermath == nil || !p.Aftermath.TargetReached || p.Aftermath.Outcome != analysis.OutcomeSuccess {
		t.Errorf("expected the target to be reached, got %+v", p.Aftermath)
	}
}

func TestDetect_DoubleBottomRejectsUnequalLows(t *testing.T) {
	candles := pathCandles(0.5,
		waypoint{0, 120},
		waypoint{10, 100},
		waypoint{18, 112},
		waypoint{26, 92},
		waypoint{34, 116},
		waypoint{45, 125},
	)
	engine := testEngine(func(o *Options) {
		o.Patterns = []analysis.PatternType{analysis.DoubleBottom}
		o.TolerancePct = 1
	})

	res, err := engine.Detect(context.Background(), candles)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if n := len(ofType(res.Patterns, analysis.DoubleBottom)); n != 0 {
		t.Fatalf("expected no double bottom for lows 8%% apart, got %d", n)
	}

	found := false
	for _, c := range res.Debug.Candidates {
		if c.Type == analysis.DoubleBottom && c.Reason == "peaks_not_equal" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a peaks_not_equal rejection in debug output")
	}
}

func TestDetect_FormingDoubleTop(t *testing.T) {
	// Peak at 15, pullback to 100 at 25, then a rally back toward the peak.
	candles := pathCandles(0.5,
		waypoint{0, 95},
		waypoint{15, 120},
		waypoint{25, 100},
		waypoint{34, 118},
	)
	engine := testEngine(func(o *Options) {
		o.Patterns = []analysis.PatternType{analysis.DoubleTop}
		o.IncludeForming = true
	})

	res, err := engine.Detect(context.Background(), candles)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	tops := ofType(res.Patterns, analysis.DoubleTop)
	if len(tops) != 1 {
		t.Fatalf("expected one forming double top, got %+v", res.Patterns)
	}
	p := tops[0]
	if !p.Status.Active() {
		t.Errorf("status = %s, want forming or near_completion", p.Status)
	}
	if p.CompletionPct < 0.4 || p.CompletionPct > 1 {
		t.Errorf("completion = %v", p.CompletionPct)
	}
	if p.EndIndex != len(candles)-1 {
		t.Errorf("forming pattern should end on the last bar, got %d", p.EndIndex)
	}
}

func TestDetect_DoubleBottomRelaxedPass(t *testing.T) {
	// Lows at 99.5 and 102.5 are 3% apart: outside the 2% default and the
	// 2.5% first relaxation, inside the 4% second one.
	candles := pathCandles(0.5,
		waypoint{0, 120},
		waypoint{10, 100},
		waypoint{18, 112},
		waypoint{26, 103},
		waypoint{34, 116},
		waypoint{45, 125},
	)
	engine := testEngine(func(o *Options) {
		o.Patterns = []analysis.PatternType{analysis.DoubleBottom}
	})

	res, err := engine.Detect(context.Background(), candles)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	bottoms := ofType(res.Patterns, analysis.DoubleBottom)
	if len(bottoms) != 1 {
		t.Fatalf("expected one relaxed double bottom, got %+v", res.Patterns)
	}
	p := bottoms[0]

	if !p.Relaxed || p.ToleranceMultiplier != 2.0 {
		t.Errorf("relaxed = %t, multiplier = %v, want true/2.0", p.Relaxed, p.ToleranceMultiplier)
	}
	// The 0.85 penalty caps confidence below the unpenalised maximum.
	if p.Confidence <= 0 || p.Confidence > 0.85 {
		t.Errorf("confidence = %v, want penalised", p.Confidence)
	}
	if p.Status != analysis.StatusCompleted {
		t.Errorf("status = %s, want completed", p.Status)
	}

	var strict, firstStep bool
	for _, c := range res.Debug.Candidates {
		if c.Type != analysis.DoubleBottom || c.Reason != "peaks_not_equal" {
			continue
		}
		switch c.ToleranceMultiplier {
		case 1:
			strict = true
		case 1.25:
			firstStep = true
		}
	}
	if !strict || !firstStep {
		t.Errorf("expected peaks_not_equal rejections at 1x and 1.25x, got strict=%t first=%t", strict, firstStep)
	}
}

func TestDetect_StaleDoubleBottomDiscarded(t *testing.T) {
	// The lows at 10 and 26 match but price never clears the 112.5
	// neckline in the 19 bars that follow.
	candles := pathCandles(0.5,
		waypoint{0, 120},
		waypoint{10, 100},
		waypoint{18, 112},
		waypoint{26, 100.5},
		waypoint{45, 108},
	)
	// Forming entries are wanted, so only staleness can drop it.
	engine := testEngine(func(o *Options) {
		o.Patterns = []analysis.PatternType{analysis.DoubleBottom}
		o.IncludeForming = true
	})

	res, err := engine.Detect(context.Background(), candles)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if n := len(ofType(res.Patterns, analysis.DoubleBottom)); n != 0 {
		t.Fatalf("expected the stale double bottom to be discarded, got %d", n)
	}
	stale := false
	for _, c := range res.Debug.Candidates {
		if c.Type == analysis.DoubleBottom && c.Reason == "stale_no_breakout" && c.EndIndex == 26 {
			stale = true
		}
	}
	if !stale {
		t.Error("expected a stale_no_breakout rejection ending at bar 26")
	}
}
