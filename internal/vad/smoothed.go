package vad

import (
	"fmt"
)

// Params controls smoothing around the raw backend decision
type Params struct {
	Prefill  int // frames of context emitted before a confirmed onset
	Hangover int // frames still reported as speech after the last voice frame
	Onset    int // consecutive voice frames needed to enter speech
}

// DefaultParams returns the default smoothing parameters
func DefaultParams() Params {
	return Params{Prefill: 15, Hangover: 15, Onset: 2}
}

// Validate checks the parameter ranges
func (p Params) Validate() error {
	if p.Prefill < 0 || p.Hangover < 0 {
		return fmt.Errorf("vad: prefill and hangover must not be negative: %+v", p)
	}
	if p.Onset < 1 {
		return fmt.Errorf("vad: onset must be at least one frame, got %d", p.Onset)
	}
	return nil
}

// Smoothed applies onset confirmation, prefill and hangover to a
// Classifier. It is not safe for concurrent use.
type Smoothed struct {
	inner  Classifier
	params Params

	ring     [][]float32 // last prefill+1 frames, oldest at head
	head     int
	count    int
	onset    int
	hangover int
	inSpeech bool

	out []float32
}

// NewSmoothed wraps inner with the given smoothing parameters
func NewSmoothed(inner Classifier, params Params) (*Smoothed, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	ring := make([][]float32, params.Prefill+1)
	for i := range ring {
		ring[i] = make([]float32, FrameSize)
	}

	return &Smoothed{
		inner:  inner,
		params: params,
		ring:   ring,
		out:    make([]float32, 0, len(ring)*FrameSize),
	}, nil
}

// PushFrame classifies one frame and advances the state machine. The
// backend is consulted first, so a failed frame leaves the state unchanged.
func (s *Smoothed) PushFrame(frame []float32) (Frame, error) {
	if err := checkFrame(frame); err != nil {
		return Frame{}, err
	}

	voice, err := s.inner.IsVoice(frame)
	if err != nil {
		return Frame{}, err
	}

	s.remember(frame)

	if !s.inSpeech {
		if !voice {
			s.onset = 0
			return Frame{}, nil
		}
		s.onset++
		if s.onset < s.params.Onset {
			return Frame{}, nil
		}
		s.inSpeech = true
		s.onset = 0
		s.hangover = s.params.Hangover
		return Frame{Speech: true, Samples: s.prefill()}, nil
	}

	if voice {
		s.hangover = s.params.Hangover
		return Frame{Speech: true, Samples: frame}, nil
	}

	if s.hangover > 0 {
		s.hangover--
		return Frame{Speech: true, Samples: frame}, nil
	}

	s.inSpeech = false
	return Frame{}, nil
}

// IsVoice reports whether the smoothed state is speech after frame
func (s *Smoothed) IsVoice(frame []float32) (bool, error) {
	f, err := s.PushFrame(frame)
	return f.Speech, err
}

// InSpeech reports whether the state machine is in speech or hangover
func (s *Smoothed) InSpeech() bool {
	return s.inSpeech
}

// Reset clears counters, the prefill ring and the backend state
func (s *Smoothed) Reset() {
	s.head, s.count = 0, 0
	s.onset, s.hangover = 0, 0
	s.inSpeech = false
	s.inner.Reset()
}

func (s *Smoothed) remember(frame []float32) {
	slot := (s.head + s.count) % len(s.ring)
	if s.count == len(s.ring) {
		slot = s.head
		s.head = (s.head + 1) % len(s.ring)
	} else {
		s.count++
	}
	copy(s.ring[slot], frame)
}

// prefill concatenates the ring contents, oldest first. The current frame
// is always the last one.
func (s *Smoothed) prefill() []float32 {
	s.out = s.out[:0]
	for i := 0; i < s.count; i++ {
		s.out = append(s.out, s.ring[(s.head+i)%len(s.ring)]...)
	}
	return s.out
}
