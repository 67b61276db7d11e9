package patterns

import (
	"pattern-scanner/internal/analysis"
)

// RelaxStep is one fallback pass: tolerance is multiplied by ToleranceMult
// and accepted confidences by Penalty.
type RelaxStep struct {
	ToleranceMult float64 `mapstructure:"tolerance_mult"`
	Penalty       float64 `mapstructure:"penalty"`
}

// BufferSpec sizes the breakout buffer as max(price*Pct, ATR*ATRMult).
type BufferSpec struct {
	Pct     float64 `mapstructure:"pct"`
	ATRMult float64 `mapstructure:"atr_mult"`
}

// DurationSpec is the day-count curve of the duration score.
type DurationSpec struct {
	MinDays     float64 `mapstructure:"min_days"`
	IdealLoDays float64 `mapstructure:"ideal_lo_days"`
	IdealHiDays float64 `mapstructure:"ideal_hi_days"`
	MaxDays     float64 `mapstructure:"max_days"`
}

// Tuning holds every threshold of the classifiers. Zero values are filled
// from DefaultTuning when a context is built.
type Tuning struct {
	MinConfidence    map[analysis.PatternType]float64
	FamilyAdjustment map[analysis.Family]float64
	Buffers          map[analysis.Family]BufferSpec
	RelaxSteps       map[analysis.Family][]RelaxStep
	Durations        map[analysis.Family]DurationSpec

	MinHeightPct         float64
	MinFitQuality        float64
	MinContainment       float64
	MaxConvergence       float64 // end gap / start gap must not exceed this
	MinConvergence       float64 // nor fall below this
	WedgeSlopeRatio      float64
	PoleATRMultiple      float64
	MinPolePct           float64
	MaxFlagRetrace       float64
	PennantConvergence   float64
	MinFormingCompletion float64
	NearCompletion       float64
	ApexNearCompletion   float64
	StaleBars            int
	BreakoutLookahead    int
	WindowSizes          []int
	ATRPeriod            int

	AftermathBars      int
	AftermathBufferPct float64
	Horizons           []int
}

// DefaultTuning returns the stock thresholds.
func DefaultTuning() Tuning {
	return Tuning{
		MinConfidence: map[analysis.PatternType]float64{
			analysis.DoubleTop:               0.45,
			analysis.DoubleBottom:            0.45,
			analysis.HeadAndShoulders:        0.5,
			analysis.InverseHeadAndShoulders: 0.5,
			analysis.TriangleAscending:       0.45,
			analysis.TriangleDescending:      0.45,
			analysis.TriangleSymmetrical:     0.45,
			analysis.RisingWedge:             0.45,
			analysis.FallingWedge:            0.45,
			analysis.Flag:                    0.4,
			analysis.Pennant:                 0.4,
			analysis.TripleTop:               0.5,
			analysis.TripleBottom:            0.5,
		},
		FamilyAdjustment: map[analysis.Family]float64{
			analysis.FamilyHeadAndShoulders: 1.05,
			analysis.FamilyDouble:           1.0,
			analysis.FamilyTriple:           1.0,
			analysis.FamilyTriangle:         0.95,
			analysis.FamilyWedge:            1.0,
			analysis.FamilyFlag:             0.9,
			analysis.FamilyPennant:          0.9,
		},
		Buffers: map[analysis.Family]BufferSpec{
			analysis.FamilyDouble:           {Pct: 0.005, ATRMult: 0.25},
			analysis.FamilyHeadAndShoulders: {Pct: 0.005, ATRMult: 0.25},
			analysis.FamilyTriple:           {Pct: 0.005, ATRMult: 0.25},
			analysis.FamilyTriangle:         {Pct: 0.01, ATRMult: 0.5},
			analysis.FamilyWedge:            {Pct: 0.01, ATRMult: 0.5},
			analysis.FamilyFlag:             {Pct: 0.005, ATRMult: 0.25},
			analysis.FamilyPennant:          {Pct: 0.005, ATRMult: 0.25},
		},
		RelaxSteps: map[analysis.Family][]RelaxStep{
			analysis.FamilyDouble:           {{1.25, 0.9}, {2.0, 0.85}},
			analysis.FamilyTriple:           {{1.25, 0.9}, {2.0, 0.85}},
			analysis.FamilyHeadAndShoulders: {{1.3, 0.9}},
			analysis.FamilyFlag:             {{1.3, 0.9}},
			analysis.FamilyPennant:          {{1.3, 0.9}},
			analysis.FamilyTriangle:         {{1.25, 0.9}},
			analysis.FamilyWedge:            {{1.25, 0.9}},
		},
		Durations: map[analysis.Family]DurationSpec{
			analysis.FamilyDouble:           {MinDays: 2, IdealLoDays: 10, IdealHiDays: 60, MaxDays: 250},
			analysis.FamilyHeadAndShoulders: {MinDays: 3, IdealLoDays: 15, IdealHiDays: 90, MaxDays: 300},
			analysis.FamilyTriple:           {MinDays: 4, IdealLoDays: 20, IdealHiDays: 90, MaxDays: 300},
			analysis.FamilyTriangle:         {MinDays: 2, IdealLoDays: 10, IdealHiDays: 60, MaxDays: 200},
			analysis.FamilyWedge:            {MinDays: 2, IdealLoDays: 10, IdealHiDays: 60, MaxDays: 200},
			analysis.FamilyFlag:             {MinDays: 0.2, IdealLoDays: 1, IdealHiDays: 15, MaxDays: 40},
			analysis.FamilyPennant:          {MinDays: 0.2, IdealLoDays: 1, IdealHiDays: 15, MaxDays: 40},
		},

		MinHeightPct:         0.01,
		MinFitQuality:        0.25,
		MinContainment:       0.8,
		MaxConvergence:       0.9,
		MinConvergence:       0.05,
		WedgeSlopeRatio:      1.2,
		PoleATRMultiple:      3.0,
		MinPolePct:           0.03,
		MaxFlagRetrace:       0.5,
		PennantConvergence:   0.7,
		MinFormingCompletion: 0.4,
		NearCompletion:       0.9,
		ApexNearCompletion:   0.75,
		StaleBars:            10,
		BreakoutLookahead:    20,
		WindowSizes:          []int{20, 30, 45, 60, 90},
		ATRPeriod:            14,

		AftermathBars:      30,
		AftermathBufferPct: 0.015,
		Horizons:           []int{3, 7, 14},
	}
}

// withDefaults returns a copy of t with every unset field taken from
// DefaultTuning. Maps are merged key by key.
func (t Tuning) withDefaults() Tuning {
	d := DefaultTuning()
	out := t

	out.MinConfidence = mergeMap(d.MinConfidence, t.MinConfidence)
	out.FamilyAdjustment = mergeMap(d.FamilyAdjustment, t.FamilyAdjustment)
	out.Buffers = mergeMap(d.Buffers, t.Buffers)
	out.RelaxSteps = mergeMap(d.RelaxSteps, t.RelaxSteps)
	out.Durations = mergeMap(d.Durations, t.Durations)

	setFloat(&out.MinHeightPct, d.MinHeightPct)
	setFloat(&out.MinFitQuality, d.MinFitQuality)
	setFloat(&out.MinContainment, d.MinContainment)
	setFloat(&out.MaxConvergence, d.MaxConvergence)
	setFloat(&out.MinConvergence, d.MinConvergence)
	setFloat(&out.WedgeSlopeRatio, d.WedgeSlopeRatio)
	setFloat(&out.PoleATRMultiple, d.PoleATRMultiple)
	setFloat(&out.MinPolePct, d.MinPolePct)
	setFloat(&out.MaxFlagRetrace, d.MaxFlagRetrace)
	setFloat(&out.PennantConvergence, d.PennantConvergence)
	setFloat(&out.MinFormingCompletion, d.MinFormingCompletion)
	setFloat(&out.NearCompletion, d.NearCompletion)
	setFloat(&out.ApexNearCompletion, d.ApexNearCompletion)
	setFloat(&out.AftermathBufferPct, d.AftermathBufferPct)
	setInt(&out.StaleBars, d.StaleBars)
	setInt(&out.BreakoutLookahead, d.BreakoutLookahead)
	setInt(&out.ATRPeriod, d.ATRPeriod)
	setInt(&out.AftermathBars, d.AftermathBars)
	if len(out.WindowSizes) == 0 {
		out.WindowSizes = d.WindowSizes
	}
	if len(out.Horizons) == 0 {
		out.Horizons = d.Horizons
	}
	return out
}

func mergeMap[K comparable, V any](defaults, overrides map[K]V) map[K]V {
	out := make(map[K]V, len(defaults))
	for k, v := range defaults {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}

func setFloat(dst *float64, def float64) {
	if *dst <= 0 {
		*dst = def
	}
}

func setInt(dst *int, def int) {
	if *dst <= 0 {
		*dst = def
	}
}
