package vad

import (
	"encoding/binary"
	"fmt"
	"math"

	webrtcvad "github.com/godeps/webrtcvad-go"
)

// webrtcModel wraps the WebRTC GMM detector. Its decision is binary so
// the reported probability is 0 or 1.
type webrtcModel struct {
	mode int
	vad  *webrtcvad.VAD
	pcm  []byte
}

func newWebRTCModel(mode int) (*webrtcModel, error) {
	if mode < 0 || mode > 3 {
		return nil, fmt.Errorf("mode must be 0-3, got %d", mode)
	}
	v, err := webrtcvad.New(mode)
	if err != nil {
		return nil, err
	}
	return &webrtcModel{mode: mode, vad: v, pcm: make([]byte, FrameSize*2)}, nil
}

func (m *webrtcModel) infer(frame []float32) (float32, error) {
	for i, s := range frame {
		binary.LittleEndian.PutUint16(m.pcm[i*2:], uint16(pcm16(s)))
	}
	speech, err := m.vad.IsSpeech(m.pcm, SampleRate)
	if err != nil {
		return 0, fmt.Errorf("inference failed: %w", err)
	}
	if speech {
		return 1, nil
	}
	return 0, nil
}

func (m *webrtcModel) reset() {
	if v, err := webrtcvad.New(m.mode); err == nil {
		m.vad = v
	}
}

func pcm16(s float32) int16 {
	v := math.Round(float64(s) * 32767)
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}
