package analysis

import (
	"github.com/pa/hablara/internal/vad"
)

// Analyzer runs feature extraction and both classifiers over one
// recording. It carries spectral state and is not safe for concurrent use.
type Analyzer struct {
	spectral *SpectralAnalyzer
	prosodic *ProsodicAnalyzer
}

// NewAnalyzer creates an analyzer for audio at sampleRate
func NewAnalyzer(sampleRate int) *Analyzer {
	return &Analyzer{
		spectral: NewSpectralAnalyzer(sampleRate),
		prosodic: NewProsodicAnalyzer(sampleRate),
	}
}

// Analyze extracts features from samples and classifies them. labels and
// the two durations come from the VAD pipeline that produced samples.
func (a *Analyzer) Analyze(samples []float32, labels []vad.Label, speechSeconds, totalSeconds float64) (Features, Classification) {
	fv := Features{SpeechRate: SpeechRatio(speechSeconds, totalSeconds)}
	if len(samples) == 0 {
		return fv, Classification{Emotion: NeutralEmotion(), Tone: NeutralTone()}
	}

	fv.ProsodicFeatures = a.prosodic.Analyze(samples, labels)
	fv.SpectralFeatures = a.spectral.Analyze(samples)

	return fv, Classification{
		Emotion: Classify(EmotionRules, fv),
		Tone:    ClassifyTone(fv.ProsodicFeatures, fv.SpectralFeatures, fv.SpeechRate),
	}
}

// SpeechRatio is speech time over total time, 1 when total is zero
func SpeechRatio(speechSeconds, totalSeconds float64) float64 {
	if totalSeconds <= 0 {
		return 1
	}
	return clamp01(speechSeconds / totalSeconds)
}
