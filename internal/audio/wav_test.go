package audio

import (
	"encoding/binary"
	"math"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWAVRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	in := make([]float32, 16000)
	for i := range in {
		in[i] = float32(rng.Float64()*1.8 - 0.9)
	}
	in[0], in[1], in[2] = 0, 0.999, -0.999

	data, err := EncodeWAV(in)
	require.NoError(t, err)

	// 44 byte header plus 16-bit mono samples
	assert.Equal(t, "RIFF", string(data[0:4]))
	assert.Equal(t, "WAVE", string(data[8:12]))
	assert.Len(t, data, 44+2*len(in))
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(data[22:24]))
	assert.Equal(t, uint32(16000), binary.LittleEndian.Uint32(data[24:28]))
	assert.Equal(t, uint16(16), binary.LittleEndian.Uint16(data[34:36]))

	out, err := DecodeWAV(data)
	require.NoError(t, err)
	require.Len(t, out, len(in))
	for i := range in {
		require.InDelta(t, in[i], out[i], 2.0/32767, "sample %d", i)
	}
}

func TestWAVFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.wav")
	in := tone(300, 16000, 4800)
	for i := range in {
		in[i] *= 0.5
	}

	require.NoError(t, SaveWAV(path, in))
	out, err := LoadWAV(path)
	require.NoError(t, err)
	require.Len(t, out, len(in))
	for i := range in {
		require.InDelta(t, in[i], out[i], 2.0/32767)
	}
}

func TestWAVFullScale(t *testing.T) {
	data, err := EncodeWAV([]float32{1, -1, 0, 0.5, -0.5})
	require.NoError(t, err)

	out, err := DecodeWAV(data)
	require.NoError(t, err)
	require.Len(t, out, 5)
	assert.InDelta(t, 1, out[0], 1.0/32767)
	assert.InDelta(t, -1, out[1], 1.0/32767)
	assert.Zero(t, out[2])
	assert.InDelta(t, 0.5, out[3], 1.0/32767)
	assert.InDelta(t, -0.5, out[4], 1.0/32767)
}

func TestWAVDecodeStereoDownmix(t *testing.T) {
	frames := [][2]int16{
		{32767, 32767},
		{-32767, -32767},
		{32767, 0},
		{16384, -16384},
	}
	pcm := make([]byte, 0, len(frames)*4)
	for _, f := range frames {
		pcm = binary.LittleEndian.AppendUint16(pcm, uint16(f[0]))
		pcm = binary.LittleEndian.AppendUint16(pcm, uint16(f[1]))
	}
	data := append(wavHeader(16000, 2, len(pcm)), pcm...)

	out, err := DecodeWAV(data)
	require.NoError(t, err)
	require.Len(t, out, len(frames))
	assert.InDelta(t, 1, out[0], 1.0/32767)
	assert.InDelta(t, -1, out[1], 1.0/32767)
	assert.InDelta(t, 0.5, out[2], 1.0/32767)
	assert.InDelta(t, 0, out[3], 1.0/32767)
}

func TestWAVEmpty(t *testing.T) {
	data, err := EncodeWAV(nil)
	require.NoError(t, err)
	assert.Len(t, data, 44)
}

func TestWAVDecodeResamples(t *testing.T) {
	// hand-built 8 kHz stereo file, both channels carrying the same tone
	const rate = 8000
	n := rate / 2
	pcm := make([]byte, n*4)
	for i := 0; i < n; i++ {
		v := int16(0.5 * 32767 * math.Sin(2*math.Pi*200*float64(i)/rate))
		binary.LittleEndian.PutUint16(pcm[i*4:], uint16(v))
		binary.LittleEndian.PutUint16(pcm[i*4+2:], uint16(v))
	}
	data := wavHeader(rate, 2, len(pcm))
	data = append(data, pcm...)

	out, err := DecodeWAV(data)
	require.NoError(t, err)
	assert.InDelta(t, 8000, len(out), 64)
	assert.InDelta(t, 0.5/math.Sqrt2, float64(rms(out[1000:7000])), 0.02)
}

func TestWAVDecodeInvalid(t *testing.T) {
	_, err := DecodeWAV([]byte("not a wav file at all"))
	assert.Error(t, err)
}

func TestWriteSeeker(t *testing.T) {
	ws := &writeSeeker{}
	_, err := ws.Write([]byte("hello world"))
	require.NoError(t, err)
	_, err = ws.Seek(0, 0)
	require.NoError(t, err)
	_, err = ws.Write([]byte("J"))
	require.NoError(t, err)
	assert.Equal(t, "Jello world", string(ws.buf))

	_, err = ws.Seek(-1, 0)
	assert.Error(t, err)
}

func wavHeader(rate, channels, dataLen int) []byte {
	h := make([]byte, 44)
	copy(h[0:], "RIFF")
	binary.LittleEndian.PutUint32(h[4:], uint32(36+dataLen))
	copy(h[8:], "WAVE")
	copy(h[12:], "fmt ")
	binary.LittleEndian.PutUint32(h[16:], 16)
	binary.LittleEndian.PutUint16(h[20:], 1)
	binary.LittleEndian.PutUint16(h[22:], uint16(channels))
	binary.LittleEndian.PutUint32(h[24:], uint32(rate))
	binary.LittleEndian.PutUint32(h[28:], uint32(rate*channels*2))
	binary.LittleEndian.PutUint16(h[32:], uint16(channels*2))
	binary.LittleEndian.PutUint16(h[34:], 16)
	copy(h[36:], "data")
	binary.LittleEndian.PutUint32(h[40:], uint32(dataLen))
	return h
}
