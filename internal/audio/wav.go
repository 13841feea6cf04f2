package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/wav"

	"github.com/pa/hablara/internal/vad"
)

// WAVFormat is the canonical container format: mono, 16-bit, 16 kHz
var WAVFormat = beep.Format{
	SampleRate:  beep.SampleRate(vad.SampleRate),
	NumChannels: 1,
	Precision:   2,
}

// resampleQuality is the beep interpolation quality used on decode
const resampleQuality = 4

// pcm16Scale corrects beep's 16-bit decode, which divides by 65535
// while encode multiplies by 32767.
const pcm16Scale = 65535.0 / 32767.0

// EncodeWAV serializes samples as a canonical WAV byte stream
func EncodeWAV(samples []float32) ([]byte, error) {
	ws := &writeSeeker{}
	if err := WriteWAV(ws, samples); err != nil {
		return nil, err
	}
	return ws.buf, nil
}

// WriteWAV writes samples in the canonical format to w
func WriteWAV(w io.WriteSeeker, samples []float32) error {
	if err := wav.Encode(w, sliceStreamer(samples), WAVFormat); err != nil {
		return fmt.Errorf("failed to encode wav: %w", err)
	}
	return nil
}

// SaveWAV writes samples to a file at path
func SaveWAV(path string, samples []float32) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := WriteWAV(f, samples); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// DecodeWAV parses a WAV byte stream into 16 kHz mono samples
func DecodeWAV(data []byte) ([]float32, error) {
	return ReadWAV(bytes.NewReader(data))
}

// LoadWAV reads a WAV file into 16 kHz mono samples
func LoadWAV(path string) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return ReadWAV(f)
}

// ReadWAV decodes any PCM WAV stream, downmixing to mono and resampling
// to 16 kHz when needed.
func ReadWAV(r io.Reader) ([]float32, error) {
	stream, format, err := wav.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode wav: %w", err)
	}
	defer stream.Close()

	var src beep.Streamer = stream
	if format.SampleRate != WAVFormat.SampleRate {
		src = beep.Resample(resampleQuality, format.SampleRate, WAVFormat.SampleRate, stream)
	}

	scale := 1.0
	if format.Precision == 2 {
		scale = pcm16Scale
	}

	samples := make([]float32, 0, stream.Len())
	buf := make([][2]float64, 4096)
	for {
		n, ok := src.Stream(buf)
		for _, frame := range buf[:n] {
			v := frame[0]
			if format.NumChannels > 1 {
				v = (frame[0] + frame[1]) / 2
			}
			samples = append(samples, float32(max(-1, min(v*scale, 1))))
		}
		if !ok {
			break
		}
	}
	if err := src.Err(); err != nil {
		return nil, fmt.Errorf("failed to read wav samples: %w", err)
	}

	return samples, nil
}

func sliceStreamer(samples []float32) beep.Streamer {
	pos := 0
	return beep.StreamerFunc(func(buf [][2]float64) (int, bool) {
		if pos >= len(samples) {
			return 0, false
		}
		n := 0
		for n < len(buf) && pos < len(samples) {
			v := float64(samples[pos])
			buf[n] = [2]float64{v, v}
			n++
			pos++
		}
		return n, true
	})
}

// writeSeeker is an in-memory io.WriteSeeker
type writeSeeker struct {
	buf []byte
	pos int
}

func (w *writeSeeker) Write(p []byte) (int, error) {
	if end := w.pos + len(p); end > len(w.buf) {
		w.buf = append(w.buf, make([]byte, end-len(w.buf))...)
	}
	n := copy(w.buf[w.pos:], p)
	w.pos += n
	return n, nil
}

func (w *writeSeeker) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		base = int64(w.pos)
	case io.SeekEnd:
		base = int64(len(w.buf))
	default:
		return 0, errors.New("invalid whence")
	}
	pos := base + offset
	if pos < 0 {
		return 0, errors.New("negative position")
	}
	w.pos = int(pos)
	return pos, nil
}
