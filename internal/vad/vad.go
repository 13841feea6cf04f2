package vad

import (
	"errors"
	"fmt"
	"time"
)

// Canonical pipeline format
const (
	SampleRate    = 16000
	FrameDuration = 30 * time.Millisecond
	FrameSize     = SampleRate * int(FrameDuration/time.Millisecond) / 1000
)

// FrameSeconds is the duration of one frame in seconds
const FrameSeconds = float64(FrameSize) / SampleRate

var (
	// ErrFrameSize is returned when a frame is not exactly FrameSize samples
	ErrFrameSize = errors.New("vad: frame must be exactly 480 samples")
	// ErrThreshold is returned for a detection threshold outside [0,1]
	ErrThreshold = errors.New("vad: threshold must be within [0,1]")
)

// Label is the per-frame voice activity label
type Label uint8

const (
	Noise Label = iota
	Speech
)

func (l Label) String() string {
	if l == Speech {
		return "speech"
	}
	return "noise"
}

// Frame is the classification of one input frame.
// Samples is nil for noise. For speech it holds the current frame and,
// on an onset transition, the buffered prefill frames before it. The slice
// is only valid until the next call on the producer.
type Frame struct {
	Speech  bool
	Samples []float32
}

// Label returns the frame label
func (f Frame) Label() Label {
	if f.Speech {
		return Speech
	}
	return Noise
}

// Classifier decides whether one frame contains voice
type Classifier interface {
	IsVoice(frame []float32) (bool, error)
	Reset()
}

// FrameProcessor turns frames into classifications
type FrameProcessor interface {
	PushFrame(frame []float32) (Frame, error)
	Reset()
}

func checkFrame(frame []float32) error {
	if len(frame) != FrameSize {
		return fmt.Errorf("%w: got %d", ErrFrameSize, len(frame))
	}
	return nil
}
