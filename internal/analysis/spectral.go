package analysis

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

const (
	spectralFFTSize = 512
	rolloffShare    = 0.85
)

// SpectralAnalyzer computes zero-crossing rate and windowed spectral
// descriptors. The previous window's spectrum is kept for flux, so an
// analyzer must not be shared between goroutines.
type SpectralAnalyzer struct {
	sampleRate int

	fft      *fourier.FFT
	frame    []float64
	coeffs   []complex128
	spectrum []float64
	prev     []float64
}

// NewSpectralAnalyzer creates an analyzer for sampleRate
func NewSpectralAnalyzer(sampleRate int) *SpectralAnalyzer {
	return &SpectralAnalyzer{
		sampleRate: sampleRate,
		fft:        fourier.NewFFT(spectralFFTSize),
		frame:      make([]float64, spectralFFTSize),
		coeffs:     make([]complex128, spectralFFTSize/2+1),
		spectrum:   make([]float64, spectralFFTSize/2),
		prev:       make([]float64, spectralFFTSize/2),
	}
}

// Analyze returns the spectral features of samples. Input shorter than
// one window yields the zero-crossing rate only.
func (a *SpectralAnalyzer) Analyze(samples []float32) SpectralFeatures {
	clear(a.prev)

	out := SpectralFeatures{ZCR: ZeroCrossingRate(samples)}

	windows := len(samples) / spectralFFTSize
	if windows == 0 {
		return out
	}

	var centroid, rolloff, flux float64
	for w := 0; w < windows; w++ {
		a.magnitudes(samples[w*spectralFFTSize : (w+1)*spectralFFTSize])
		centroid += a.centroid()
		rolloff += a.rolloff()
		flux += a.flux()
	}

	n := float64(windows)
	out.SpectralCentroid = centroid / n
	out.SpectralRolloff = rolloff / n
	out.SpectralFlux = flux / n
	return out
}

// Nyquist returns half the sample rate
func (a *SpectralAnalyzer) Nyquist() float64 {
	return float64(a.sampleRate) / 2
}

func (a *SpectralAnalyzer) magnitudes(frame []float32) {
	for i, s := range frame {
		a.frame[i] = float64(s)
	}
	window.Hamming(a.frame)
	a.coeffs = a.fft.Coefficients(a.coeffs, a.frame)
	for k := range a.spectrum {
		a.spectrum[k] = cmplx.Abs(a.coeffs[k])
	}
}

func (a *SpectralAnalyzer) binFrequency(k int) float64 {
	return float64(k) * float64(a.sampleRate) / float64(2*len(a.spectrum))
}

func (a *SpectralAnalyzer) centroid() float64 {
	var weighted, total float64
	for k, m := range a.spectrum {
		weighted += a.binFrequency(k) * m
		total += m
	}
	if total == 0 {
		return 0
	}
	return weighted / total
}

func (a *SpectralAnalyzer) rolloff() float64 {
	total := 0.0
	for _, m := range a.spectrum {
		total += m * m
	}
	threshold := rolloffShare * total

	cumulative := 0.0
	for k, m := range a.spectrum {
		cumulative += m * m
		if cumulative >= threshold {
			return a.binFrequency(k)
		}
	}
	return a.Nyquist()
}

func (a *SpectralAnalyzer) flux() float64 {
	sum := 0.0
	for k, m := range a.spectrum {
		d := m - a.prev[k]
		sum += d * d
	}
	copy(a.prev, a.spectrum)
	return math.Sqrt(sum / float64(len(a.spectrum)))
}

// ZeroCrossingRate returns sign changes per sample pair over samples
func ZeroCrossingRate(samples []float32) float64 {
	if len(samples) < 2 {
		return 0
	}
	crossings := 0
	for i := 1; i < len(samples); i++ {
		if (samples[i-1] >= 0) != (samples[i] >= 0) {
			crossings++
		}
	}
	return float64(crossings) / float64(len(samples)-1)
}
