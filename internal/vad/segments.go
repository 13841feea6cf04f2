package vad

import (
	"fmt"

	"github.com/streamer45/silero-vad-go/speech"
)

// Segment is one detected stretch of speech, in seconds
type Segment struct {
	Start float64
	End   float64
}

// Duration returns the segment length in seconds
func (s Segment) Duration() float64 {
	return s.End - s.Start
}

// SegmenterConfig configures offline segmentation
type SegmenterConfig struct {
	ModelPath          string
	Threshold          float64
	MinSilenceDuration int // ms of silence that closes a segment
	SpeechPad          int // ms added on both sides of a segment
}

// DefaultSegmenterConfig returns the defaults used by the segments command
func DefaultSegmenterConfig(modelPath string) SegmenterConfig {
	return SegmenterConfig{
		ModelPath:          modelPath,
		Threshold:          0.5,
		MinSilenceDuration: 100,
		SpeechPad:          30,
	}
}

// Segmenter finds speech boundaries in complete 16 kHz buffers
type Segmenter struct {
	sd *speech.Detector
}

// NewSegmenter loads the Silero model for offline segmentation
func NewSegmenter(cfg SegmenterConfig) (*Segmenter, error) {
	if cfg.Threshold < 0 || cfg.Threshold > 1 {
		return nil, fmt.Errorf("%w: %v", ErrThreshold, cfg.Threshold)
	}
	sd, err := speech.NewDetector(speech.DetectorConfig{
		ModelPath:            cfg.ModelPath,
		SampleRate:           SampleRate,
		Threshold:            float32(cfg.Threshold),
		MinSilenceDurationMs: cfg.MinSilenceDuration,
		SpeechPadMs:          cfg.SpeechPad,
	})
	if err != nil {
		return nil, fmt.Errorf("vad: failed to create segmenter: %w", err)
	}
	return &Segmenter{sd: sd}, nil
}

// Segments returns the speech segments in samples. An open final segment
// is closed at the end of the buffer.
func (s *Segmenter) Segments(samples []float32) ([]Segment, error) {
	if err := s.sd.Reset(); err != nil {
		return nil, fmt.Errorf("vad: failed to reset segmenter: %w", err)
	}
	raw, err := s.sd.Detect(samples)
	if err != nil {
		return nil, fmt.Errorf("vad: failed to detect segments: %w", err)
	}

	total := float64(len(samples)) / SampleRate
	out := make([]Segment, 0, len(raw))
	for _, r := range raw {
		end := r.SpeechEndAt
		if end <= 0 {
			end = total
		}
		out = append(out, Segment{Start: r.SpeechStartAt, End: end})
	}
	return out, nil
}

// Close releases the model
func (s *Segmenter) Close() error {
	return s.sd.Destroy()
}

// LabelSegments turns per-frame labels into continuous speech segments
func LabelSegments(labels []Label) []Segment {
	var segments []Segment
	inVoice := false
	start := 0

	for i, l := range labels {
		if l == Speech && !inVoice {
			inVoice = true
			start = i
		} else if l != Speech && inVoice {
			inVoice = false
			segments = append(segments, Segment{
				Start: float64(start) * FrameSeconds,
				End:   float64(i) * FrameSeconds,
			})
		}
	}

	if inVoice {
		segments = append(segments, Segment{
			Start: float64(start) * FrameSeconds,
			End:   float64(len(labels)) * FrameSeconds,
		})
	}

	return segments
}
