package analysis

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pa/hablara/internal/vad"
)

func sweep(from, to, amp float64, n int) []float32 {
	out := make([]float32, n)
	phase := 0.0
	for i := range out {
		f := from + (to-from)*float64(i)/float64(n)
		phase += 2 * math.Pi * f / 16000
		out[i] = float32(amp * math.Sin(phase))
	}
	return out
}

func TestProsodicMonotone(t *testing.T) {
	f := NewProsodicAnalyzer(16000).Analyze(sine(200, 0.5, 16000), nil)

	assert.InDelta(t, 200, f.PitchMean, 5)
	assert.Less(t, f.PitchVariance, 100.0)
	assert.InDelta(t, 0.5/math.Sqrt2, f.EnergyMean, 0.01)
	assert.Less(t, f.EnergyVariance, 1e-4)
	assert.Equal(t, 0.0, f.PauseDurationAvg)
	assert.Equal(t, 0.0, f.PauseFrequency)
}

func TestProsodicSweep(t *testing.T) {
	f := NewProsodicAnalyzer(16000).Analyze(sweep(100, 300, 0.5, 16000), nil)

	assert.Greater(t, f.PitchVariance, 100.0)
	assert.Greater(t, f.PitchRange, 100.0)
}

func TestProsodicSilence(t *testing.T) {
	f := NewProsodicAnalyzer(16000).Analyze(make([]float32, 8000), nil)

	assert.Equal(t, 0.0, f.PitchMean)
	assert.Equal(t, 0.0, f.PitchVariance)
	assert.Equal(t, 0.0, f.EnergyMean)
}

func TestProsodicEmpty(t *testing.T) {
	assert.Equal(t, ProsodicFeatures{}, NewProsodicAnalyzer(16000).Analyze(nil, nil))
}

func TestPauseStats(t *testing.T) {
	S, N := vad.Speech, vad.Noise

	tests := []struct {
		name      string
		labels    []vad.Label
		avgMs     float64
		perSecond float64
	}{
		{"empty", nil, 0, 0},
		{"all speech", []vad.Label{S, S, S}, 0, 0},
		{"all noise", []vad.Label{N, N, N}, 0, 0},
		{"leading silence ignored", []vad.Label{N, N, S, S}, 0, 0},
		{"inner and trailing", []vad.Label{S, S, N, N, S, N}, 45, 2 / (6 * vad.FrameSeconds)},
		{"single pause", []vad.Label{N, S, N, N, N, S}, 90, 1 / (6 * vad.FrameSeconds)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			avg, freq := PauseStats(tt.labels)
			assert.InDelta(t, tt.avgMs, avg, 1e-9)
			assert.InDelta(t, tt.perSecond, freq, 1e-9)
		})
	}
}

func TestPauseStatsNonNegative(t *testing.T) {
	labels := make([]vad.Label, 200)
	for i := range labels {
		if (i*7)%5 < 2 {
			labels[i] = vad.Speech
		}
	}
	for n := 0; n <= len(labels); n += 13 {
		avg, freq := PauseStats(labels[:n])
		assert.GreaterOrEqual(t, avg, 0.0)
		assert.GreaterOrEqual(t, freq, 0.0)
	}
}
