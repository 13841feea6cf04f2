package vad

import (
	"fmt"
)

// Backend names a voice activity inference backend
type Backend string

const (
	BackendSilero Backend = "silero"
	BackendWebRTC Backend = "webrtc"
	BackendEnergy Backend = "energy"
)

// DetectorConfig selects and configures a backend
type DetectorConfig struct {
	Backend   Backend
	Threshold float64 // speech when probability >= threshold

	// silero
	ModelPath   string
	RuntimePath string // onnxruntime shared library, empty for the platform default

	// webrtc
	Mode int // aggressiveness 0-3

	// energy
	Energy EnergyConfig
}

// DefaultDetectorConfig returns the silero backend with the default threshold
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		Backend:   BackendSilero,
		Threshold: 0.3,
		Mode:      2,
		Energy:    DefaultEnergyConfig(),
	}
}

// Detector classifies single frames with one of the supported backends.
// It is not safe for concurrent use.
type Detector struct {
	backend   Backend
	threshold float32

	silero *sileroModel
	webrtc *webrtcModel
	energy *energyModel
}

// NewDetector builds the backend named in cfg
func NewDetector(cfg DetectorConfig) (*Detector, error) {
	if cfg.Threshold < 0 || cfg.Threshold > 1 {
		return nil, fmt.Errorf("%w: %v", ErrThreshold, cfg.Threshold)
	}

	d := &Detector{backend: cfg.Backend, threshold: float32(cfg.Threshold)}

	var err error
	switch cfg.Backend {
	case BackendSilero:
		d.silero, err = newSileroModel(cfg.ModelPath, cfg.RuntimePath)
	case BackendWebRTC:
		d.webrtc, err = newWebRTCModel(cfg.Mode)
	case BackendEnergy:
		d.energy, err = newEnergyModel(cfg.Energy)
	default:
		err = fmt.Errorf("unknown backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("vad: %s: %w", cfg.Backend, err)
	}

	return d, nil
}

// Backend returns the backend in use
func (d *Detector) Backend() Backend {
	return d.backend
}

// Probability returns the speech probability of one frame
func (d *Detector) Probability(frame []float32) (float32, error) {
	if err := checkFrame(frame); err != nil {
		return 0, err
	}

	switch d.backend {
	case BackendSilero:
		return d.silero.infer(frame)
	case BackendWebRTC:
		return d.webrtc.infer(frame)
	default:
		return d.energy.infer(frame), nil
	}
}

// IsVoice reports whether the frame probability reaches the threshold
func (d *Detector) IsVoice(frame []float32) (bool, error) {
	p, err := d.Probability(frame)
	if err != nil {
		return false, err
	}
	return p >= d.threshold, nil
}

// PushFrame classifies one frame without smoothing
func (d *Detector) PushFrame(frame []float32) (Frame, error) {
	voice, err := d.IsVoice(frame)
	if err != nil {
		return Frame{}, err
	}
	if !voice {
		return Frame{}, nil
	}
	return Frame{Speech: true, Samples: frame}, nil
}

// Reset clears recurrent model state
func (d *Detector) Reset() {
	switch d.backend {
	case BackendSilero:
		d.silero.reset()
	case BackendWebRTC:
		d.webrtc.reset()
	default:
		d.energy.reset()
	}
}

// Close releases model resources
func (d *Detector) Close() error {
	if d.silero != nil {
		return d.silero.close()
	}
	return nil
}
