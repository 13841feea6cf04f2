package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNeutralTone(t *testing.T) {
	n := NeutralTone()
	assert.Equal(t, ToneResult{3, 3, 3, 3, 3, 0.5}, n)
}

func TestToneFormality(t *testing.T) {
	tests := []struct {
		variance, rate float64
		want           int
	}{
		{400, 0.7, 5},
		{400, 0.9, 4},
		{400, 0.5, 5},
		{1500, 0.7, 3},
		{3000, 0.7, 2},
		{5000, 0.7, 1},
		{5000, 0.9, 1},
		{5000, 0.5, 2},
	}
	for _, tt := range tests {
		got := ClassifyTone(ProsodicFeatures{PitchVariance: tt.variance}, SpectralFeatures{}, tt.rate)
		assert.Equal(t, tt.want, got.Formality, "variance %v rate %v", tt.variance, tt.rate)
	}
}

func TestToneProfessionalism(t *testing.T) {
	for v, want := range map[float64]int{0.001: 5, 0.007: 4, 0.015: 3, 0.03: 2, 0.05: 1} {
		got := ClassifyTone(ProsodicFeatures{EnergyVariance: v}, SpectralFeatures{}, 0.7)
		assert.Equal(t, want, got.Professionalism, "energy variance %v", v)
	}
}

func TestToneDirectness(t *testing.T) {
	tests := []struct {
		pauseMs, freq float64
		want          int
	}{
		{50, 0.1, 5},
		{50, 1.0, 4},
		{150, 0.5, 4},
		{300, 0.5, 3},
		{500, 0.5, 2},
		{800, 1.0, 1},
		{800, 0.1, 2},
	}
	for _, tt := range tests {
		got := ClassifyTone(ProsodicFeatures{PauseDurationAvg: tt.pauseMs, PauseFrequency: tt.freq}, SpectralFeatures{}, 0.7)
		assert.Equal(t, tt.want, got.Directness, "pause %v freq %v", tt.pauseMs, tt.freq)
	}
}

func TestToneEnergy(t *testing.T) {
	tests := []struct {
		energy, centroid float64
		want             int
	}{
		{0.01, 500, 1},
		{0.01, 1000, 1},
		{0.01, 2000, 2},
		{0.06, 1000, 2},
		{0.1, 1000, 3},
		{0.15, 1000, 4},
		{0.2, 1000, 5},
		{0.2, 2000, 5},
		{0.2, 500, 4},
	}
	for _, tt := range tests {
		got := ClassifyTone(ProsodicFeatures{EnergyMean: tt.energy}, SpectralFeatures{SpectralCentroid: tt.centroid}, 0.7)
		assert.Equal(t, tt.want, got.Energy, "energy %v centroid %v", tt.energy, tt.centroid)
	}
}

func TestToneSeriousness(t *testing.T) {
	tests := []struct {
		pitch, variance float64
		want            int
	}{
		{100, 400, 5},
		{100, 1000, 5},
		{120, 1000, 4},
		{140, 1000, 3},
		{170, 1000, 2},
		{200, 1000, 1},
		{200, 3000, 1},
		{200, 400, 2},
	}
	for _, tt := range tests {
		got := ClassifyTone(ProsodicFeatures{PitchMean: tt.pitch, PitchVariance: tt.variance}, SpectralFeatures{}, 0.7)
		assert.Equal(t, tt.want, got.Seriousness, "pitch %v variance %v", tt.pitch, tt.variance)
	}
}

func TestToneConfidence(t *testing.T) {
	// only the speech rate bonus and the low pitch penalty apply
	got := ClassifyTone(ProsodicFeatures{}, SpectralFeatures{}, 0.7)
	assert.InDelta(t, 0.6, got.Confidence, 1e-9)

	got = ClassifyTone(
		ProsodicFeatures{PitchMean: 150, EnergyMean: 0.1},
		SpectralFeatures{SpectralCentroid: 1000, SpectralRolloff: 2000},
		0.7)
	assert.InDelta(t, 0.9, got.Confidence, 1e-9)

	got = ClassifyTone(ProsodicFeatures{}, SpectralFeatures{}, 1)
	assert.InDelta(t, 0.5, got.Confidence, 1e-9)
}

func TestToneScoresInRange(t *testing.T) {
	for _, p := range []float64{0, 100, 150, 250} {
		for _, e := range []float64{0, 0.1, 0.5} {
			for _, v := range []float64{0, 1000, 10000} {
				for _, r := range []float64{0, 0.7, 1} {
					got := ClassifyTone(
						ProsodicFeatures{PitchMean: p, EnergyMean: e, PitchVariance: v, EnergyVariance: e / 4, PauseDurationAvg: v / 10, PauseFrequency: r},
						SpectralFeatures{SpectralCentroid: v / 4, SpectralRolloff: v / 2},
						r)
					for _, s := range []int{got.Formality, got.Professionalism, got.Directness, got.Energy, got.Seriousness} {
						assert.GreaterOrEqual(t, s, 1)
						assert.LessOrEqual(t, s, 5)
					}
					assert.GreaterOrEqual(t, got.Confidence, 0.0)
					assert.LessOrEqual(t, got.Confidence, 1.0)
				}
			}
		}
	}
}
