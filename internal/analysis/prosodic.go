package analysis

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/pa/hablara/internal/vad"
)

const (
	prosodicFrameSize = 512
	minPitchHz        = 40
	maxPitchHz        = 400
	// raw autocorrelation peak below this yields no pitch for the frame
	pitchCorrelationFloor = 0.01
)

// ProsodicAnalyzer extracts pitch, energy and pause statistics
type ProsodicAnalyzer struct {
	sampleRate int
	minLag     int
	maxLag     int
}

// NewProsodicAnalyzer creates an analyzer for sampleRate
func NewProsodicAnalyzer(sampleRate int) *ProsodicAnalyzer {
	return &ProsodicAnalyzer{
		sampleRate: sampleRate,
		minLag:     sampleRate / maxPitchHz,
		maxLag:     sampleRate / minPitchHz,
	}
}

// Analyze returns the prosodic features of samples. labels are the
// per-frame VAD decisions used for pause statistics; nil gives zero pauses.
func (a *ProsodicAnalyzer) Analyze(samples []float32, labels []vad.Label) ProsodicFeatures {
	var out ProsodicFeatures
	if len(samples) == 0 {
		return out
	}

	pitch, energy := a.contours(samples)

	if len(pitch) > 0 {
		out.PitchMean, out.PitchVariance = meanVariance(pitch)
		out.PitchRange = floats.Max(pitch) - floats.Min(pitch)
	}
	if len(energy) > 0 {
		out.EnergyMean, out.EnergyVariance = meanVariance(energy)
	}

	out.PauseDurationAvg, out.PauseFrequency = PauseStats(labels)
	return out
}

func (a *ProsodicAnalyzer) contours(samples []float32) (pitch, energy []float64) {
	frames := len(samples) / prosodicFrameSize
	pitch = make([]float64, 0, frames)
	energy = make([]float64, 0, frames)

	for i := 0; i < frames; i++ {
		frame := samples[i*prosodicFrameSize : (i+1)*prosodicFrameSize]
		if p, ok := a.pitch(frame); ok {
			pitch = append(pitch, p)
		}
		energy = append(energy, rms(frame))
	}
	return pitch, energy
}

// pitch estimates the fundamental from the strongest autocorrelation lag
func (a *ProsodicAnalyzer) pitch(frame []float32) (float64, bool) {
	if len(frame) < a.maxLag || a.minLag <= 0 {
		return 0, false
	}

	best, bestLag := 0.0, 0
	for lag := a.minLag; lag < a.maxLag; lag++ {
		corr := 0.0
		for i := 0; i < len(frame)-lag; i++ {
			corr += float64(frame[i]) * float64(frame[i+lag])
		}
		if corr > best {
			best, bestLag = corr, lag
		}
	}

	if bestLag == 0 || best <= pitchCorrelationFloor {
		return 0, false
	}
	return float64(a.sampleRate) / float64(bestLag), true
}

// PauseStats returns the average pause length in ms and pauses per second.
// A pause is a run of noise frames after speech has begun, including a
// trailing run; leading silence is not a pause.
func PauseStats(labels []vad.Label) (avgMs, perSecond float64) {
	if len(labels) == 0 {
		return 0, 0
	}

	var runs []float64
	seenSpeech := false
	run := 0
	for _, l := range labels {
		if l == vad.Speech {
			if run > 0 {
				runs = append(runs, float64(run))
			}
			run = 0
			seenSpeech = true
			continue
		}
		if seenSpeech {
			run++
		}
	}
	if run > 0 {
		runs = append(runs, float64(run))
	}

	if len(runs) == 0 {
		return 0, 0
	}

	frameMs := vad.FrameSeconds * 1000
	avgMs = stat.Mean(runs, nil) * frameMs
	perSecond = float64(len(runs)) / (float64(len(labels)) * vad.FrameSeconds)
	return avgMs, perSecond
}

func meanVariance(x []float64) (mean, variance float64) {
	return stat.PopMeanVariance(x, nil)
}

func rms(frame []float32) float64 {
	if len(frame) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range frame {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(frame)))
}
