package vad

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	ort "github.com/yalue/onnxruntime_go"
)

func sine(freq, amp float64, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(amp * math.Sin(2*math.Pi*freq*float64(i)/SampleRate))
	}
	return out
}

func TestNewDetectorValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  func() DetectorConfig
		is   error
	}{
		{"threshold above one", func() DetectorConfig {
			c := DefaultDetectorConfig()
			c.Threshold = 1.5
			return c
		}, ErrThreshold},
		{"negative threshold", func() DetectorConfig {
			c := DefaultDetectorConfig()
			c.Threshold = -0.1
			return c
		}, ErrThreshold},
		{"missing model", func() DetectorConfig {
			c := DefaultDetectorConfig()
			c.ModelPath = filepath.Join(t.TempDir(), "missing.onnx")
			return c
		}, nil},
		{"empty model path", func() DetectorConfig {
			return DefaultDetectorConfig()
		}, nil},
		{"unknown backend", func() DetectorConfig {
			c := DefaultDetectorConfig()
			c.Backend = "cobra"
			return c
		}, nil},
		{"webrtc mode", func() DetectorConfig {
			c := DefaultDetectorConfig()
			c.Backend = BackendWebRTC
			c.Mode = 7
			return c
		}, nil},
		{"energy thresholds", func() DetectorConfig {
			c := DefaultDetectorConfig()
			c.Backend = BackendEnergy
			c.Energy.ZcrThreshold = 0
			return c
		}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := NewDetector(tt.cfg())
			require.Error(t, err)
			assert.Nil(t, d)
			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
			}
		})
	}
}

func TestEnergyDetector(t *testing.T) {
	cfg := DefaultDetectorConfig()
	cfg.Backend = BackendEnergy
	d, err := NewDetector(cfg)
	require.NoError(t, err)
	assert.Equal(t, BackendEnergy, d.Backend())

	voice, err := d.IsVoice(make([]float32, FrameSize))
	require.NoError(t, err)
	assert.False(t, voice)

	voice, err = d.IsVoice(sine(200, 0.5, FrameSize))
	require.NoError(t, err)
	assert.True(t, voice)

	f, err := d.PushFrame(sine(200, 0.5, FrameSize))
	require.NoError(t, err)
	assert.True(t, f.Speech)
	assert.Len(t, f.Samples, FrameSize)

	_, err = d.Probability(make([]float32, 512))
	assert.ErrorIs(t, err, ErrFrameSize)

	d.Reset()
	assert.NoError(t, d.Close())
}

func TestThresholdIsInclusive(t *testing.T) {
	cfg := DefaultDetectorConfig()
	cfg.Backend = BackendEnergy
	cfg.Threshold = 0
	d, err := NewDetector(cfg)
	require.NoError(t, err)

	// silence scores exactly zero, which still reaches a zero threshold
	voice, err := d.IsVoice(make([]float32, FrameSize))
	require.NoError(t, err)
	assert.True(t, voice)
}

func TestMeanFrequency(t *testing.T) {
	for _, f := range []float64{150, 440, 1000, 3000} {
		frame := sine(f, 0.3, FrameSize)
		got := meanFrequency(frame, meanSquare(frame))
		assert.InDelta(t, f, got, f*0.05, "freq %v", f)
	}
	assert.Equal(t, 0.0, meanFrequency(make([]float32, FrameSize), 0))
}

func TestPCM16(t *testing.T) {
	assert.Equal(t, int16(32767), pcm16(1))
	assert.Equal(t, int16(32767), pcm16(2))
	assert.Equal(t, int16(-32768), pcm16(-2))
	assert.Equal(t, int16(0), pcm16(0))
}

func TestSileroFrameShape(t *testing.T) {
	assert.Equal(t, ort.NewShape(1, 480), frameShape)
	assert.Equal(t, int64(FrameSize), frameShape.FlattenedSize())
}
