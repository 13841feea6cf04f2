package analysis

import (
	"fmt"
)

// Emotion is one of the ten emotion labels
type Emotion string

const (
	Neutral     Emotion = "neutral"
	Calm        Emotion = "calm"
	Stress      Emotion = "stress"
	Excitement  Emotion = "excitement"
	Uncertainty Emotion = "uncertainty"
	Frustration Emotion = "frustration"
	Joy         Emotion = "joy"
	Doubt       Emotion = "doubt"
	Conviction  Emotion = "conviction"
	Aggression  Emotion = "aggression"
)

// Emotions lists every label
var Emotions = []Emotion{
	Neutral, Calm, Stress, Excitement, Uncertainty,
	Frustration, Joy, Doubt, Conviction, Aggression,
}

// Valid reports whether e is a defined label
func (e Emotion) Valid() bool {
	for _, known := range Emotions {
		if e == known {
			return true
		}
	}
	return false
}

// EmotionResult is the outcome of emotion classification
type EmotionResult struct {
	Primary    Emotion `json:"primary"`
	Secondary  Emotion `json:"secondary,omitempty"`
	Confidence float64 `json:"confidence"`
	Rule       string  `json:"rule"`
}

// neutralConfidence is reported when no rule matches
const neutralConfidence = 0.5

// Feature selects one value of the feature vector
type Feature int

const (
	Pitch Feature = iota
	Energy
	PitchVariance
	SpeechRate
	SpectralFlux
	SpectralCentroid
)

func (f Feature) String() string {
	switch f {
	case Pitch:
		return "pitch"
	case Energy:
		return "energy"
	case PitchVariance:
		return "pitch_variance"
	case SpeechRate:
		return "speech_rate"
	case SpectralFlux:
		return "spectral_flux"
	case SpectralCentroid:
		return "spectral_centroid"
	}
	return fmt.Sprintf("feature(%d)", int(f))
}

// Value returns the selected feature of fv
func (f Feature) Value(fv Features) float64 {
	switch f {
	case Pitch:
		return fv.PitchMean
	case Energy:
		return fv.EnergyMean
	case PitchVariance:
		return fv.PitchVariance
	case SpeechRate:
		return fv.SpeechRate
	case SpectralFlux:
		return fv.SpectralFlux
	case SpectralCentroid:
		return fv.SpectralCentroid
	}
	return 0
}

// Cond is a strict threshold comparison on one feature
type Cond struct {
	Feature Feature
	Above   bool // true: value > Value, false: value < Value
	Value   float64
}

// Holds evaluates the condition. NaN never holds.
func (c Cond) Holds(fv Features) bool {
	v := c.Feature.Value(fv)
	if c.Above {
		return v > c.Value
	}
	return v < c.Value
}

func (c Cond) String() string {
	op := "<"
	if c.Above {
		op = ">"
	}
	return fmt.Sprintf("%s %s %g", c.Feature, op, c.Value)
}

func gt(f Feature, v float64) Cond { return Cond{Feature: f, Above: true, Value: v} }
func lt(f Feature, v float64) Cond { return Cond{Feature: f, Above: false, Value: v} }

// Rule is one row of the emotion table. It matches when every All
// condition holds, at least one Any condition holds (if any are given),
// and Tiebreak (if set) returns true.
type Rule struct {
	Name       string
	All        []Cond
	Any        []Cond
	Tiebreak   func(Features) bool
	Primary    Emotion
	Secondary  Emotion
	Confidence float64
}

// Matches reports whether fv satisfies the rule
func (r Rule) Matches(fv Features) bool {
	for _, c := range r.All {
		if !c.Holds(fv) {
			return false
		}
	}
	if len(r.Any) > 0 {
		matched := false
		for _, c := range r.Any {
			if c.Holds(fv) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	if r.Tiebreak != nil && !r.Tiebreak(fv) {
		return false
	}
	return true
}

// stressOverExcitement settles the band between the stress and excitement
// rules: pitch variance normalized over 1200..3500 Hz² against speech rate.
func stressOverExcitement(fv Features) bool {
	stress := (fv.PitchVariance - 1200) / 2300
	return stress > fv.SpeechRate
}

// EmotionRules is the ordered rule table. The first matching row wins, so
// order is significant: calm and joy must stay ahead of stress.
var EmotionRules = []Rule{
	{
		Name:       "calm",
		All:        []Cond{lt(Energy, 0.12), lt(PitchVariance, 800), gt(SpeechRate, 0.65)},
		Primary:    Calm,
		Confidence: 0.72,
	},
	{
		Name: "joy",
		All: []Cond{
			gt(Pitch, 150), gt(Energy, 0.08), lt(Energy, 0.18), gt(SpectralCentroid, 1000),
			gt(PitchVariance, 400), lt(PitchVariance, 1800), gt(SpeechRate, 0.7),
		},
		Primary:    Joy,
		Secondary:  Excitement,
		Confidence: 0.70,
	},
	{
		Name:       "stress",
		All:        []Cond{gt(Pitch, 160), gt(PitchVariance, 1200)},
		Any:        []Cond{gt(PitchVariance, 3500), gt(Energy, 0.18)},
		Primary:    Stress,
		Secondary:  Excitement,
		Confidence: 0.75,
	},
	{
		Name:       "excitement",
		All:        []Cond{gt(Pitch, 160), gt(PitchVariance, 1200), gt(SpeechRate, 0.8)},
		Primary:    Excitement,
		Secondary:  Stress,
		Confidence: 0.70,
	},
	{
		Name:       "stress_tiebreak",
		All:        []Cond{gt(Pitch, 160), gt(PitchVariance, 1200)},
		Tiebreak:   stressOverExcitement,
		Primary:    Stress,
		Secondary:  Excitement,
		Confidence: 0.62,
	},
	{
		Name:       "excitement_tiebreak",
		All:        []Cond{gt(Pitch, 160), gt(PitchVariance, 1200)},
		Primary:    Excitement,
		Secondary:  Stress,
		Confidence: 0.60,
	},
	{
		Name:       "uncertainty",
		All:        []Cond{gt(PitchVariance, 1500), lt(SpeechRate, 0.6)},
		Primary:    Uncertainty,
		Secondary:  Doubt,
		Confidence: 0.68,
	},
	{
		Name:       "aggression",
		All:        []Cond{lt(Pitch, 180), gt(Energy, 0.12)},
		Any:        []Cond{gt(SpectralFlux, 0.05), gt(PitchVariance, 2000)},
		Primary:    Aggression,
		Secondary:  Conviction,
		Confidence: 0.70,
	},
	{
		Name:       "conviction",
		All:        []Cond{lt(Pitch, 180), gt(Energy, 0.12), gt(SpeechRate, 0.8)},
		Primary:    Conviction,
		Confidence: 0.65,
	},
	{
		Name:       "frustration",
		All:        []Cond{gt(PitchVariance, 1200), lt(PitchVariance, 4000), gt(Energy, 0.1), gt(SpeechRate, 0.7)},
		Primary:    Frustration,
		Secondary:  Stress,
		Confidence: 0.63,
	},
	{
		Name:       "doubt",
		All:        []Cond{gt(PitchVariance, 800), lt(PitchVariance, 2000), lt(SpeechRate, 0.8)},
		Primary:    Doubt,
		Secondary:  Uncertainty,
		Confidence: 0.60,
	},
}

// Classify evaluates the table against fv
func Classify(rules []Rule, fv Features) EmotionResult {
	for _, r := range rules {
		if r.Matches(fv) {
			return EmotionResult{
				Primary:    r.Primary,
				Secondary:  r.Secondary,
				Confidence: clamp01(r.Confidence),
				Rule:       r.Name,
			}
		}
	}
	return NeutralEmotion()
}

// NeutralEmotion is the fallback result
func NeutralEmotion() EmotionResult {
	return EmotionResult{Primary: Neutral, Confidence: neutralConfidence, Rule: "neutral"}
}

// ClassifyEmotion classifies precomputed features with EmotionRules
func ClassifyEmotion(prosodic ProsodicFeatures, spectral SpectralFeatures, speechRate float64) EmotionResult {
	return Classify(EmotionRules, Features{
		ProsodicFeatures: prosodic,
		SpectralFeatures: spectral,
		SpeechRate:       speechRate,
	})
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
