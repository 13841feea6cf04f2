package audio

import (
	"math"
	"time"

	"gonum.org/v1/gonum/dsp/fourier"
)

// resampleChunk is the minimum input block handed to the FFT resampler
const resampleChunk = 1024

// FrameResampler converts a stream at an arbitrary rate into fixed
// duration frames at the output rate.
type FrameResampler struct {
	fft       *fftResampler // nil when rates match
	block     []float32
	frameSize int
	pending   []float32
}

// NewFrameResampler creates a resampler emitting frames of frameDur at outRate
func NewFrameResampler(inRate, outRate int, frameDur time.Duration) *FrameResampler {
	frameSize := int(int64(outRate) * int64(frameDur) / int64(time.Second))
	if frameSize <= 0 {
		panic("audio: frame duration yields no samples")
	}

	r := &FrameResampler{
		frameSize: frameSize,
		pending:   make([]float32, 0, frameSize),
	}
	if inRate != outRate {
		r.fft = newFFTResampler(inRate, outRate, resampleChunk)
		r.block = make([]float32, 0, r.fft.blockIn)
	}
	return r
}

// FrameSize returns the number of samples per emitted frame
func (r *FrameResampler) FrameSize() int {
	return r.frameSize
}

// Push feeds samples and calls emit once per completed frame. The frame
// passed to emit is reused after emit returns.
func (r *FrameResampler) Push(samples []float32, emit func([]float32)) {
	if r.fft == nil {
		r.collect(samples, emit)
		return
	}

	for len(samples) > 0 {
		n := min(cap(r.block)-len(r.block), len(samples))
		r.block = append(r.block, samples[:n]...)
		samples = samples[n:]

		if len(r.block) == cap(r.block) {
			r.collect(r.fft.process(r.block), emit)
			r.block = r.block[:0]
		}
	}
}

// Finish flushes the partial block and the partial frame, zero padding both
func (r *FrameResampler) Finish(emit func([]float32)) {
	if r.fft != nil {
		if len(r.block) > 0 {
			r.collect(r.fft.process(r.block), emit)
			r.block = r.block[:0]
		}
		r.fft.reset()
	}

	if len(r.pending) > 0 {
		for len(r.pending) < r.frameSize {
			r.pending = append(r.pending, 0)
		}
		emit(r.pending)
		r.pending = r.pending[:0]
	}
}

// Discard drops buffered input without emitting it
func (r *FrameResampler) Discard() {
	r.block = r.block[:0]
	r.pending = r.pending[:0]
	if r.fft != nil {
		r.fft.reset()
	}
}

func (r *FrameResampler) collect(samples []float32, emit func([]float32)) {
	for len(samples) > 0 {
		n := min(r.frameSize-len(r.pending), len(samples))
		r.pending = append(r.pending, samples[:n]...)
		samples = samples[n:]

		if len(r.pending) == r.frameSize {
			emit(r.pending)
			r.pending = r.pending[:0]
		}
	}
}

// fftResampler resamples fixed blocks by spectrum truncation or zero
// extension with overlap-add. Each input block is filtered by a
// windowed-sinc lowpass and transformed at twice the block length so the
// linear convolution does not wrap.
type fftResampler struct {
	blockIn, blockOut int

	fwd, inv *fourier.FFT
	filter   []complex128

	timeIn   []float64
	specIn   []complex128
	specOut  []complex128
	timeOut  []float64
	overlap  []float64
	out      []float32
	outScale float64
}

func newFFTResampler(inRate, outRate, minChunk int) *fftResampler {
	g := gcd(inRate, outRate)
	baseIn, baseOut := inRate/g, outRate/g
	m := (minChunk + baseIn - 1) / baseIn
	if m < 1 {
		m = 1
	}

	f := &fftResampler{
		blockIn:  baseIn * m,
		blockOut: baseOut * m,
	}
	f.fwd = fourier.NewFFT(2 * f.blockIn)
	f.inv = fourier.NewFFT(2 * f.blockOut)
	f.timeIn = make([]float64, 2*f.blockIn)
	f.specIn = make([]complex128, f.blockIn+1)
	f.specOut = make([]complex128, f.blockOut+1)
	f.timeOut = make([]float64, 2*f.blockOut)
	f.overlap = make([]float64, f.blockOut)
	f.out = make([]float32, f.blockOut)
	// unnormalized inverse transform over the input length keeps amplitude
	f.outScale = 1 / float64(2*f.blockIn)

	// cutoff in cycles per input sample, just under the lower Nyquist
	cutoff := 0.95 * 0.5 * float64(min(inRate, outRate)) / float64(inRate)
	taps := make([]float64, 2*f.blockIn)
	sum := 0.0
	center := float64(f.blockIn-1) / 2
	for i := 0; i < f.blockIn; i++ {
		x := float64(i) - center
		w := 0.42 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(f.blockIn-1)) +
			0.08*math.Cos(4*math.Pi*float64(i)/float64(f.blockIn-1))
		taps[i] = 2 * cutoff * sinc(2*cutoff*x) * w
		sum += taps[i]
	}
	for i := range taps {
		taps[i] /= sum
	}
	f.filter = f.fwd.Coefficients(nil, taps)

	return f
}

func (f *fftResampler) process(block []float32) []float32 {
	for i := range f.timeIn {
		if i < len(block) {
			f.timeIn[i] = float64(block[i])
		} else {
			f.timeIn[i] = 0
		}
	}
	f.specIn = f.fwd.Coefficients(f.specIn, f.timeIn)

	for k := range f.specOut {
		if k < len(f.specIn) {
			f.specOut[k] = f.specIn[k] * f.filter[k]
		} else {
			f.specOut[k] = 0
		}
	}
	f.timeOut = f.inv.Sequence(f.timeOut, f.specOut)

	for i := 0; i < f.blockOut; i++ {
		f.out[i] = float32((f.timeOut[i] + f.overlap[i]) * f.outScale)
		f.overlap[i] = f.timeOut[f.blockOut+i]
	}
	return f.out
}

func (f *fftResampler) reset() {
	clear(f.overlap)
}

func sinc(x float64) float64 {
	if x == 0 {
		return 1
	}
	return math.Sin(math.Pi*x) / (math.Pi * x)
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
