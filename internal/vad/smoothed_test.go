package vad

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errScripted = errors.New("scripted failure")

// scripted replays a fixed sequence of decisions
type scripted struct {
	decisions []bool
	errAt     map[int]bool
	calls     int
	resets    int
}

func (s *scripted) IsVoice(frame []float32) (bool, error) {
	i := s.calls
	s.calls++
	if s.errAt[i] {
		return false, errScripted
	}
	if i < len(s.decisions) {
		return s.decisions[i], nil
	}
	return false, nil
}

func (s *scripted) Reset() {
	s.resets++
}

func filled(v float32) []float32 {
	f := make([]float32, FrameSize)
	for i := range f {
		f[i] = v
	}
	return f
}

func TestSmoothedTransitions(t *testing.T) {
	inner := &scripted{decisions: []bool{false, true, true, true, true, false, false, false, false}}
	s, err := NewSmoothed(inner, Params{Prefill: 2, Hangover: 2, Onset: 3})
	require.NoError(t, err)

	var got []Frame
	for i := range inner.decisions {
		f, err := s.PushFrame(filled(float32(i)))
		require.NoError(t, err)
		got = append(got, Frame{Speech: f.Speech, Samples: append([]float32(nil), f.Samples...)})
	}

	want := []bool{false, false, false, true, true, true, true, false, false}
	for i, f := range got {
		assert.Equal(t, want[i], f.Speech, "frame %d", i)
	}

	// onset frame carries the ring: frames 1, 2 and 3
	require.Len(t, got[3].Samples, 3*FrameSize)
	assert.Equal(t, float32(1), got[3].Samples[0])
	assert.Equal(t, float32(2), got[3].Samples[FrameSize])
	assert.Equal(t, float32(3), got[3].Samples[2*FrameSize])

	for _, i := range []int{4, 5, 6} {
		assert.Len(t, got[i].Samples, FrameSize, "frame %d", i)
	}
	assert.Nil(t, got[7].Samples)
}

func TestSmoothedInterruptedOnset(t *testing.T) {
	inner := &scripted{decisions: []bool{true, false, true, false, true}}
	s, err := NewSmoothed(inner, Params{Prefill: 1, Hangover: 3, Onset: 2})
	require.NoError(t, err)

	for i := range inner.decisions {
		f, err := s.PushFrame(filled(0))
		require.NoError(t, err)
		assert.False(t, f.Speech, "frame %d", i)
	}
	assert.False(t, s.InSpeech())
}

func TestSmoothedFailedFrameLeavesState(t *testing.T) {
	inner := &scripted{decisions: []bool{true, true, true}, errAt: map[int]bool{1: true}}
	s, err := NewSmoothed(inner, Params{Prefill: 1, Hangover: 0, Onset: 2})
	require.NoError(t, err)

	f, err := s.PushFrame(filled(0))
	require.NoError(t, err)
	assert.False(t, f.Speech)

	_, err = s.PushFrame(filled(1))
	require.ErrorIs(t, err, errScripted)

	f, err = s.PushFrame(filled(2))
	require.NoError(t, err)
	require.True(t, f.Speech)
	require.Len(t, f.Samples, 2*FrameSize)
	assert.Equal(t, float32(0), f.Samples[0])
	assert.Equal(t, float32(2), f.Samples[FrameSize])
}

func TestSmoothedPrefillBounded(t *testing.T) {
	decisions := make([]bool, 40)
	for i := 30; i < 40; i++ {
		decisions[i] = true
	}
	inner := &scripted{decisions: decisions}
	s, err := NewSmoothed(inner, Params{Prefill: 4, Hangover: 1, Onset: 1})
	require.NoError(t, err)

	for i := range decisions {
		f, err := s.PushFrame(filled(float32(i)))
		require.NoError(t, err)
		if f.Speech {
			assert.GreaterOrEqual(t, len(f.Samples), FrameSize)
			assert.LessOrEqual(t, len(f.Samples), 5*FrameSize)
		}
	}
}

func TestSmoothedReset(t *testing.T) {
	inner := &scripted{decisions: []bool{true, true, true}}
	s, err := NewSmoothed(inner, Params{Prefill: 0, Hangover: 5, Onset: 1})
	require.NoError(t, err)

	f, err := s.PushFrame(filled(0))
	require.NoError(t, err)
	require.True(t, f.Speech)
	require.True(t, s.InSpeech())

	s.Reset()
	assert.False(t, s.InSpeech())
	assert.Equal(t, 1, inner.resets)
}

func TestSmoothedFrameSize(t *testing.T) {
	s, err := NewSmoothed(&scripted{}, DefaultParams())
	require.NoError(t, err)

	_, err = s.PushFrame(make([]float32, FrameSize-1))
	assert.ErrorIs(t, err, ErrFrameSize)
	_, err = s.PushFrame(make([]float32, FrameSize+1))
	assert.ErrorIs(t, err, ErrFrameSize)
}

func TestParamsValidate(t *testing.T) {
	tests := []struct {
		name   string
		params Params
		ok     bool
	}{
		{"defaults", DefaultParams(), true},
		{"zero prefill", Params{Prefill: 0, Hangover: 0, Onset: 1}, true},
		{"zero onset", Params{Prefill: 1, Hangover: 1, Onset: 0}, false},
		{"negative hangover", Params{Prefill: 1, Hangover: -1, Onset: 1}, false},
		{"negative prefill", Params{Prefill: -2, Hangover: 1, Onset: 1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSmoothed(&scripted{}, tt.params)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestSmoothedOnsetAndHangoverBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for trial := 0; trial < 200; trial++ {
		params := Params{
			Prefill:  rng.Intn(4),
			Hangover: rng.Intn(6),
			Onset:    1 + rng.Intn(4),
		}
		decisions := make([]bool, 120)
		for i := range decisions {
			decisions[i] = rng.Float64() < 0.55
		}

		s, err := NewSmoothed(&scripted{decisions: decisions}, params)
		require.NoError(t, err)

		out := make([]bool, len(decisions))
		for i := range decisions {
			f, err := s.PushFrame(filled(0))
			require.NoError(t, err)
			out[i] = f.Speech
		}

		for i := range out {
			// entering speech needs Onset consecutive voice frames
			if out[i] && (i == 0 || !out[i-1]) {
				require.GreaterOrEqual(t, i+1, params.Onset, "trial %d frame %d", trial, i)
				for j := i - params.Onset + 1; j <= i; j++ {
					require.True(t, decisions[j], "trial %d frame %d", trial, i)
				}
			}
			// speech persists for Hangover frames after a voice frame
			if out[i] && decisions[i] {
				for j := i + 1; j <= i+params.Hangover && j < len(out); j++ {
					require.True(t, out[j], "trial %d frame %d after %d", trial, j, i)
				}
			}
		}
	}
}
