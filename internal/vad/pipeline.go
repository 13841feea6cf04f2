package vad

import (
	"fmt"
	"sync"
)

// hasSpeechFrames bounds the early-exit speech probe
const hasSpeechFrames = 30

// Result is the outcome of filtering a whole buffer
type Result struct {
	Samples       []float32 // concatenated speech output
	Labels        []Label   // one smoothed label per full frame
	SpeechSeconds float64
	TotalSeconds  float64
}

// Pipeline runs a Smoothed VAD over whole buffers or frame by frame.
// Calls are serialized so one Pipeline can be shared by the daemon's
// consumers.
type Pipeline struct {
	mu       sync.Mutex
	smoothed *Smoothed
}

// NewPipeline wraps classifier with smoothing and resets it
func NewPipeline(classifier Classifier, params Params) (*Pipeline, error) {
	smoothed, err := NewSmoothed(classifier, params)
	if err != nil {
		return nil, err
	}
	smoothed.Reset()
	return &Pipeline{smoothed: smoothed}, nil
}

// FilterAudio keeps the speech portions of samples. State is reset
// before the pass; a trailing partial frame is kept when the pass ends
// in speech.
func (p *Pipeline) FilterAudio(samples []float32) (Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.smoothed.Reset()

	frames := len(samples) / FrameSize
	res := Result{
		Samples: make([]float32, 0, len(samples)),
		Labels:  make([]Label, 0, frames),
	}

	speechFrames := 0
	for i := 0; i < frames; i++ {
		f, err := p.smoothed.PushFrame(samples[i*FrameSize : (i+1)*FrameSize])
		if err != nil {
			return Result{}, fmt.Errorf("vad: frame %d: %w", i, err)
		}
		res.Labels = append(res.Labels, f.Label())
		if f.Speech {
			speechFrames++
			res.Samples = append(res.Samples, f.Samples...)
		}
	}

	if rest := samples[frames*FrameSize:]; len(rest) > 0 && p.smoothed.InSpeech() {
		res.Samples = append(res.Samples, rest...)
	}

	res.SpeechSeconds = float64(speechFrames) * FrameSeconds
	res.TotalSeconds = float64(frames) * FrameSeconds
	return res, nil
}

// HasSpeech probes at most the first 30 frames and stops at the first
// speech frame. State is reset afterwards.
func (p *Pipeline) HasSpeech(samples []float32) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.smoothed.Reset()
	defer p.smoothed.Reset()

	frames := min(len(samples)/FrameSize, hasSpeechFrames)
	for i := 0; i < frames; i++ {
		voice, err := p.smoothed.IsVoice(samples[i*FrameSize : (i+1)*FrameSize])
		if err != nil {
			return false, fmt.Errorf("vad: frame %d: %w", i, err)
		}
		if voice {
			return true, nil
		}
	}
	return false, nil
}

// PushFrame classifies one frame in streaming mode. The returned samples
// are only valid until the next call.
func (p *Pipeline) PushFrame(frame []float32) (Frame, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.smoothed.PushFrame(frame)
}

// Reset clears the smoothing and backend state
func (p *Pipeline) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.smoothed.Reset()
}
