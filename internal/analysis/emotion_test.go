package analysis

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fv(pitch, energy, variance, rate float64) Features {
	return Features{
		ProsodicFeatures: ProsodicFeatures{PitchMean: pitch, EnergyMean: energy, PitchVariance: variance},
		SpeechRate:       rate,
	}
}

func TestClassifyEmotionExamples(t *testing.T) {
	stressed := ClassifyEmotion(
		ProsodicFeatures{PitchMean: 200, EnergyMean: 0.20, PitchVariance: 5000},
		SpectralFeatures{}, 0.9)
	assert.Equal(t, Stress, stressed.Primary)
	assert.Greater(t, stressed.Confidence, 0.7)

	calm := ClassifyEmotion(
		ProsodicFeatures{PitchMean: 120, EnergyMean: 0.08, PitchVariance: 500},
		SpectralFeatures{}, 0.75)
	assert.Equal(t, Calm, calm.Primary)
	assert.Greater(t, calm.Confidence, 0.7)
}

func TestEmotionRules(t *testing.T) {
	withSpectral := func(f Features, centroid, flux float64) Features {
		f.SpectralCentroid = centroid
		f.SpectralFlux = flux
		return f
	}

	tests := []struct {
		name       string
		features   Features
		primary    Emotion
		secondary  Emotion
		confidence float64
	}{
		{"calm", fv(120, 0.08, 500, 0.75), Calm, "", 0.72},
		{"joy", withSpectral(fv(170, 0.15, 1000, 0.75), 1200, 0), Joy, Excitement, 0.70},
		{"stress", fv(200, 0.20, 5000, 0.9), Stress, Excitement, 0.75},
		{"excitement", fv(200, 0.10, 2000, 0.9), Excitement, Stress, 0.70},
		{"stress_tiebreak", fv(200, 0.10, 3000, 0.3), Stress, Excitement, 0.62},
		{"excitement_tiebreak", fv(200, 0.10, 1300, 0.7), Excitement, Stress, 0.60},
		{"uncertainty", fv(120, 0.05, 1600, 0.5), Uncertainty, Doubt, 0.68},
		{"aggression", withSpectral(fv(150, 0.15, 500, 0.5), 0, 0.1), Aggression, Conviction, 0.70},
		{"conviction", withSpectral(fv(150, 0.15, 500, 0.9), 0, 0.01), Conviction, "", 0.65},
		{"frustration", fv(140, 0.11, 1300, 0.75), Frustration, Stress, 0.63},
		{"doubt", fv(140, 0.05, 1000, 0.7), Doubt, Uncertainty, 0.60},
		{"neutral", Features{}, Neutral, "", 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(EmotionRules, tt.features)
			assert.Equal(t, tt.name, got.Rule)
			assert.Equal(t, tt.primary, got.Primary)
			assert.Equal(t, tt.secondary, got.Secondary)
			assert.InDelta(t, tt.confidence, got.Confidence, 1e-9)
		})
	}
}

func TestEmotionStrictThresholds(t *testing.T) {
	// energy exactly at the calm bound is not calm
	got := Classify(EmotionRules, fv(120, 0.12, 500, 0.75))
	assert.NotEqual(t, Calm, got.Primary)
}

func TestEmotionFirstMatchWins(t *testing.T) {
	rules := []Rule{
		{Name: "first", All: []Cond{gt(Pitch, 100)}, Primary: Joy, Confidence: 0.9},
		{Name: "second", All: []Cond{gt(Pitch, 100)}, Primary: Doubt, Confidence: 0.9},
	}
	got := Classify(rules, fv(150, 0, 0, 0))
	assert.Equal(t, "first", got.Rule)

	got = Classify(rules, fv(50, 0, 0, 0))
	assert.Equal(t, NeutralEmotion(), got)
}

func TestEmotionTotal(t *testing.T) {
	pitches := []float64{0, 80, 150, 161, 200, 400}
	energies := []float64{0, 0.05, 0.1, 0.15, 0.3}
	variances := []float64{0, 500, 1000, 1500, 2500, 5000}
	rates := []float64{0, 0.5, 0.7, 0.85, 1}
	fluxes := []float64{0, 0.1}

	for _, p := range pitches {
		for _, e := range energies {
			for _, v := range variances {
				for _, r := range rates {
					for _, fl := range fluxes {
						f := fv(p, e, v, r)
						f.SpectralFlux = fl
						f.SpectralCentroid = 1200
						got := Classify(EmotionRules, f)
						require.True(t, got.Primary.Valid(), "%+v", f)
						require.GreaterOrEqual(t, got.Confidence, 0.0)
						require.LessOrEqual(t, got.Confidence, 1.0)
					}
				}
			}
		}
	}
}

func TestEmotionNaN(t *testing.T) {
	nan := math.NaN()
	got := Classify(EmotionRules, Features{
		ProsodicFeatures: ProsodicFeatures{PitchMean: nan, EnergyMean: nan, PitchVariance: nan},
		SpectralFeatures: SpectralFeatures{SpectralFlux: nan, SpectralCentroid: nan},
		SpeechRate:       nan,
	})
	assert.Equal(t, Neutral, got.Primary)
}

func TestCondString(t *testing.T) {
	assert.Equal(t, "pitch > 160", gt(Pitch, 160).String())
	assert.Equal(t, "speech_rate < 0.6", lt(SpeechRate, 0.6).String())
	assert.Equal(t, "feature(42)", Feature(42).String())
}

func TestEmotionValid(t *testing.T) {
	for _, e := range Emotions {
		assert.True(t, e.Valid())
	}
	assert.Len(t, Emotions, 10)
	assert.False(t, Emotion("boredom").Valid())
}
