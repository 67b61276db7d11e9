// Package analysis provides the shared chart-pattern types produced by the
// detection engine and consumed by the CLI.
package analysis

import (
	"context"
	"time"

	"pattern-scanner/internal/models"
)

// PatternDetector defines the interface for pattern detection.
type PatternDetector interface {
	Name() string
	Detect(ctx context.Context, candles []models.Candle) (*Result, error)
}

// PatternType is the tag of a detected chart formation.
type PatternType string

const (
	DoubleTop               PatternType = "double_top"
	DoubleBottom            PatternType = "double_bottom"
	HeadAndShoulders        PatternType = "head_and_shoulders"
	InverseHeadAndShoulders PatternType = "inverse_head_and_shoulders"
	TriangleAscending       PatternType = "triangle_ascending"
	TriangleDescending      PatternType = "triangle_descending"
	TriangleSymmetrical     PatternType = "triangle_symmetrical"
	RisingWedge             PatternType = "rising_wedge"
	FallingWedge            PatternType = "falling_wedge"
	Flag                    PatternType = "flag"
	Pennant                 PatternType = "pennant"
	TripleTop               PatternType = "triple_top"
	TripleBottom            PatternType = "triple_bottom"
)

// AllPatternTypes returns the full taxonomy in a stable order.
func AllPatternTypes() []PatternType {
	return []PatternType{
		DoubleTop, DoubleBottom,
		HeadAndShoulders, InverseHeadAndShoulders,
		TriangleAscending, TriangleDescending, TriangleSymmetrical,
		RisingWedge, FallingWedge,
		Flag, Pennant,
		TripleTop, TripleBottom,
	}
}

// ParsePatternType validates a pattern tag.
func ParsePatternType(s string) (PatternType, bool) {
	for _, t := range AllPatternTypes() {
		if string(t) == s {
			return t, true
		}
	}
	return "", false
}

// Family groups pattern types that share one classifier.
type Family string

const (
	FamilyDouble           Family = "double"
	FamilyHeadAndShoulders Family = "head_and_shoulders"
	FamilyTriple           Family = "triple"
	FamilyTriangle         Family = "triangle"
	FamilyWedge            Family = "wedge"
	FamilyFlag             Family = "flag"
	FamilyPennant          Family = "pennant"
)

// AllFamilies returns the classifier families in a stable order.
func AllFamilies() []Family {
	return []Family{
		FamilyDouble, FamilyHeadAndShoulders, FamilyTriple,
		FamilyTriangle, FamilyWedge, FamilyFlag, FamilyPennant,
	}
}

// Family returns the classifier family of t.
func (t PatternType) Family() Family {
	switch t {
	case DoubleTop, DoubleBottom:
		return FamilyDouble
	case HeadAndShoulders, InverseHeadAndShoulders:
		return FamilyHeadAndShoulders
	case TripleTop, TripleBottom:
		return FamilyTriple
	case TriangleAscending, TriangleDescending, TriangleSymmetrical:
		return FamilyTriangle
	case RisingWedge, FallingWedge:
		return FamilyWedge
	case Flag:
		return FamilyFlag
	default:
		return FamilyPennant
	}
}

// Category is the grouping used by cross-family deduplication. Triangles
// share one category, wedges share another, every other type stands alone.
func (t PatternType) Category() string {
	switch t.Family() {
	case FamilyTriangle:
		return "triangle"
	case FamilyWedge:
		return "wedge"
	default:
		return string(t)
	}
}

// Status is the lifecycle state of a detection.
type Status string

const (
	StatusCompleted      Status = "completed"
	StatusInvalid        Status = "invalid"
	StatusForming        Status = "forming"
	StatusNearCompletion Status = "near_completion"
)

// Active reports whether the shape has not broken out yet.
func (s Status) Active() bool {
	return s == StatusForming || s == StatusNearCompletion
}

// Direction is the side a breakout happened on.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// PatternDirection represents the expected direction of a pattern.
type PatternDirection string

const (
	PatternBullish PatternDirection = "bullish"
	PatternBearish PatternDirection = "bearish"
	PatternNeutral PatternDirection = "neutral"
)

// Breakout maps an expected direction to the breakout side that confirms it.
func (d PatternDirection) Breakout() Direction {
	if d == PatternBearish {
		return DirectionDown
	}
	return DirectionUp
}

// Sign is +1 for bullish, -1 for bearish and 0 otherwise.
func (d PatternDirection) Sign() float64 {
	switch d {
	case PatternBullish:
		return 1
	case PatternBearish:
		return -1
	default:
		return 0
	}
}

// DirectionFor maps a breakout side to the direction it implies.
func DirectionFor(b Direction) PatternDirection {
	if b == DirectionDown {
		return PatternBearish
	}
	return PatternBullish
}

// Outcome summarises what price did after the pattern.
type Outcome string

const (
	OutcomeSuccess        Outcome = "success"
	OutcomePartialSuccess Outcome = "partial_success"
	OutcomeFailure        Outcome = "failure"
	OutcomeNeutral        Outcome = "neutral"
	OutcomePending        Outcome = "pending"
)

// SwingKind distinguishes local maxima from local minima.
type SwingKind string

const (
	SwingPeak   SwingKind = "peak"
	SwingValley SwingKind = "valley"
)

// SwingPoint is a local extreme of the high or low series.
type SwingPoint struct {
	Index     int       `json:"index"`
	Price     float64   `json:"price"`
	Kind      SwingKind `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
}

// Point is a bar index paired with a price.
type Point struct {
	Index int     `json:"index"`
	Price float64 `json:"price"`
}

// PointOf returns the index/price pair of a swing.
func PointOf(s SwingPoint) Point {
	return Point{Index: s.Index, Price: s.Price}
}

// TrendLine is a straight line in (bar index, price) space.
type TrendLine struct {
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`
	R2        float64 `json:"r2"`
	// Anchors holds the two points a pair line was drawn through.
	Anchors []Point `json:"anchors,omitempty"`
}

// ValueAt evaluates the line at bar index i.
func (l TrendLine) ValueAt(i int) float64 {
	return l.Intercept + l.Slope*float64(i)
}

// Neckline is exactly two points with non-decreasing index.
type Neckline [2]Point

// ValueAt extrapolates the neckline to bar index i.
func (n Neckline) ValueAt(i int) float64 {
	dx := n[1].Index - n[0].Index
	if dx == 0 {
		return (n[0].Price + n[1].Price) / 2
	}
	slope := (n[1].Price - n[0].Price) / float64(dx)
	return n[0].Price + slope*float64(i-n[0].Index)
}

// Range is the time span of a pattern.
type Range struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// ReversalGeometry is the payload of double, triple and head-and-shoulders
// patterns.
type ReversalGeometry struct {
	Extremes      []Point `json:"extremes"`
	Level         float64 `json:"level"`
	NecklineSlope float64 `json:"necklineSlope"`
	Symmetry      float64 `json:"symmetry"`
}

// ConvergingGeometry is the payload of triangles and wedges.
type ConvergingGeometry struct {
	Upper        TrendLine `json:"upper"`
	Lower        TrendLine `json:"lower"`
	UpperTouches int       `json:"upperTouches"`
	LowerTouches int       `json:"lowerTouches"`
	Apex         float64   `json:"apex"`
	Containment  float64   `json:"containment"`
	Progress     float64   `json:"progress"`
}

// PoleGeometry is the payload of flags and pennants.
type PoleGeometry struct {
	StartIndex  int       `json:"startIndex"`
	EndIndex    int       `json:"endIndex"`
	Height      float64   `json:"height"`
	Direction   Direction `json:"direction"`
	Retracement float64   `json:"retracement"`
	Upper       TrendLine `json:"upper"`
	Lower       TrendLine `json:"lower"`
	Containment float64   `json:"containment"`
}

// PatternEntry is one detected formation. Exactly one of Reversal,
// Converging and Pole is set.
type PatternEntry struct {
	Type                PatternType         `json:"type"`
	Confidence          float64             `json:"confidence"`
	Status              Status              `json:"status"`
	Range               Range               `json:"range"`
	StartIndex          int                 `json:"startIndex"`
	EndIndex            int                 `json:"endIndex"`
	Pivots              []SwingPoint        `json:"pivots,omitempty"`
	Neckline            *Neckline           `json:"neckline,omitempty"`
	ExpectedDirection   PatternDirection    `json:"expectedDirection"`
	BreakoutDirection   *Direction          `json:"breakoutDirection,omitempty"`
	BreakoutIndex       int                 `json:"breakoutIndex"`
	Outcome             *Outcome            `json:"outcome,omitempty"`
	BreakoutTarget      *float64            `json:"breakoutTarget,omitempty"`
	Height              float64             `json:"height"`
	CompletionPct       float64             `json:"completionPct,omitempty"`
	Relaxed             bool                `json:"relaxed,omitempty"`
	ToleranceMultiplier float64             `json:"toleranceMultiplier,omitempty"`
	Reversal            *ReversalGeometry   `json:"reversal,omitempty"`
	Converging          *ConvergingGeometry `json:"converging,omitempty"`
	Pole                *PoleGeometry       `json:"pole,omitempty"`
	Aftermath           *Aftermath          `json:"aftermath,omitempty"`
}

// Bars returns the bar length of the entry's range.
func (e PatternEntry) Bars() int {
	return e.EndIndex - e.StartIndex
}

// BoundaryAt returns the breakout boundary on the side of dir at bar i.
func (e PatternEntry) BoundaryAt(i int, dir PatternDirection) float64 {
	switch {
	case e.Neckline != nil:
		return e.Neckline.ValueAt(i)
	case e.Converging != nil:
		if dir == PatternBearish {
			return e.Converging.Lower.ValueAt(i)
		}
		return e.Converging.Upper.ValueAt(i)
	case e.Pole != nil:
		if dir == PatternBearish {
			return e.Pole.Lower.ValueAt(i)
		}
		return e.Pole.Upper.ValueAt(i)
	default:
		return 0
	}
}

// Horizon is the post-breakout move after a fixed number of bars.
type Horizon struct {
	Bars      int     `json:"bars"`
	ReturnPct float64 `json:"returnPct"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
}

// Aftermath is the forward walk after a completed pattern. ReturnPct is
// signed in the pattern's expected direction.
type Aftermath struct {
	Direction     PatternDirection `json:"direction"`
	Boundary      float64          `json:"boundary"`
	BreakoutIndex int              `json:"breakoutIndex"`
	BreakoutPrice float64          `json:"breakoutPrice,omitempty"`
	Horizons      []Horizon        `json:"horizons,omitempty"`
	Target        float64          `json:"target"`
	TargetReached bool             `json:"targetReached"`
	Outcome       Outcome          `json:"outcome"`
}

// HorizonReturn returns the return at the given horizon, if it was observed.
func (a *Aftermath) HorizonReturn(bars int) (float64, bool) {
	if a == nil {
		return 0, false
	}
	for _, h := range a.Horizons {
		if h.Bars == bars {
			return h.ReturnPct, true
		}
	}
	return 0, false
}

// TypeStats aggregates aftermath outcomes for one pattern type.
type TypeStats struct {
	Detected       int     `json:"detected"`
	WithAftermath  int     `json:"withAftermath"`
	SuccessRate    float64 `json:"successRate"`
	AvgReturn7d    float64 `json:"avgReturn7d"`
	AvgReturn14d   float64 `json:"avgReturn14d"`
	MedianReturn7d float64 `json:"medianReturn7d"`
}

// OverlayRange is a labelled span for chart rendering.
type OverlayRange struct {
	Start  time.Time   `json:"start"`
	End    time.Time   `json:"end"`
	Label  string      `json:"label"`
	Type   PatternType `json:"type"`
	Status Status      `json:"status"`
}

// Overlays holds render hints derived from the detected patterns.
type Overlays struct {
	Ranges    []OverlayRange `json:"ranges"`
	Necklines []Neckline     `json:"necklines,omitempty"`
}

// Warning is a non-fatal advisory attached to a result.
type Warning struct {
	Code      string           `json:"code"`
	Message   string           `json:"message"`
	Suggested *SuggestedParams `json:"suggested,omitempty"`
}

// SuggestedParams are looser detection parameters offered with a
// low_detection_count warning.
type SuggestedParams struct {
	TolerancePct float64 `json:"tolerancePct"`
	SwingDepth   int     `json:"swingDepth"`
	StrictPivots bool    `json:"strictPivots"`
}

// DebugCandidate records why a candidate was accepted or rejected.
type DebugCandidate struct {
	Type                PatternType `json:"type"`
	Accepted            bool        `json:"accepted"`
	Reason              string      `json:"reason,omitempty"`
	StartIndex          int         `json:"startIndex"`
	EndIndex            int         `json:"endIndex"`
	Indices             []int       `json:"indices,omitempty"`
	Points              []Point     `json:"points,omitempty"`
	ToleranceMultiplier float64     `json:"toleranceMultiplier,omitempty"`
}

// Debug carries the swing points and candidate log of a run.
type Debug struct {
	Swings     []SwingPoint     `json:"swings"`
	Candidates []DebugCandidate `json:"candidates"`
}

// Result is the output of one detection call.
type Result struct {
	RunID      string                    `json:"runId"`
	Patterns   []PatternEntry            `json:"patterns"`
	Overlays   Overlays                  `json:"overlays"`
	Statistics map[PatternType]TypeStats `json:"statistics"`
	Warnings   []Warning                 `json:"warnings,omitempty"`
	Debug      *Debug                    `json:"debug,omitempty"`
}
