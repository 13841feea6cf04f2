package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Config represents the application configuration
type Config struct {
	AudioDevice       *string `json:"audio_device"`        // nil = default device
	CaptureSampleRate int     `json:"capture_sample_rate"` // 0 = device native rate
	CaptureChannels   int     `json:"capture_channels"`    // 0 = device default
	QueueSize         int     `json:"queue_size"`          // hardware buffers queued before dropping
	SocketPath        string  `json:"socket_path"`
	ModelDir          string  `json:"model_dir"`

	MaxRecordingSeconds int `json:"max_recording_seconds"`
	CloseTimeoutMs      int `json:"close_timeout_ms"`

	// Voice Activity Detection settings
	VoiceActivityDetection bool    `json:"voice_activity_detection"` // false records without filtering
	VADBackend             string  `json:"vad_backend"`              // silero, webrtc or energy
	VADModel               string  `json:"vad_model"`                // model name in ModelDir
	VADModelPath           *string `json:"vad_model_path"`           // nil = resolve VADModel in ModelDir
	ONNXRuntimeLib         string  `json:"onnxruntime_lib"`          // empty = platform default
	VADThreshold           float64 `json:"vad_threshold"`
	VADPrefillFrames       int     `json:"vad_prefill_frames"`
	VADHangoverFrames      int     `json:"vad_hangover_frames"`
	VADOnsetFrames         int     `json:"vad_onset_frames"`
	WebRTCMode             int     `json:"webrtc_mode"`          // aggressiveness 0-3
	VADEnergyThreshold     float64 `json:"vad_energy_threshold"` // energy backend only

	// Analysis settings
	AnalysisWorkers    int `json:"analysis_workers"`
	MaxAnalysisSeconds int `json:"max_analysis_seconds"`

	AudioFeedback    bool    `json:"audio_feedback"`
	StartSoundVolume float64 `json:"start_sound_volume"`
	StopSoundVolume  float64 `json:"stop_sound_volume"`
	StartSoundPath   *string `json:"start_sound_path"` // nil = default
	StopSoundPath    *string `json:"stop_sound_path"`  // nil = default

	MetricsAddress string `json:"metrics_address"` // empty = no /metrics endpoint
	LogLevel       string `json:"log_level"`
}

// Default returns default configuration
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	socketPath := filepath.Join(homeDir, ".config", "hablara", "hablara.sock")
	modelDir := filepath.Join(homeDir, ".local", "share", "hablara", "models")

	return &Config{
		AudioDevice: nil,
		QueueSize:   64,
		SocketPath:  socketPath,
		ModelDir:    modelDir,

		MaxRecordingSeconds: 1800,
		CloseTimeoutMs:      2000,

		VoiceActivityDetection: true,
		VADBackend:             "silero",
		VADModel:               "silero_vad",
		ONNXRuntimeLib:         "",
		VADThreshold:           0.3,
		VADPrefillFrames:       15,
		VADHangoverFrames:      15,
		VADOnsetFrames:         2,
		WebRTCMode:             2,
		VADEnergyThreshold:     0.001,

		AnalysisWorkers:    2,
		MaxAnalysisSeconds: 300,

		AudioFeedback:    true,
		StartSoundVolume: 0.4,
		StopSoundVolume:  0.4,

		LogLevel: "info",
	}
}

// Load loads configuration from file
func Load(configPath string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", configPath, err)
	}

	return cfg, nil
}

// Save saves configuration to file
func (c *Config) Save(configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0644)
}

// Validate reports every out of range setting
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	switch c.VADBackend {
	case "silero", "webrtc", "energy":
	default:
		errs = append(errs, fmt.Errorf("vad_backend: unknown backend %q", c.VADBackend))
	}
	check(c.VADThreshold >= 0 && c.VADThreshold <= 1, "vad_threshold: %v not in [0, 1]", c.VADThreshold)
	check(c.VADPrefillFrames >= 0, "vad_prefill_frames: %d is negative", c.VADPrefillFrames)
	check(c.VADHangoverFrames >= 0, "vad_hangover_frames: %d is negative", c.VADHangoverFrames)
	check(c.VADOnsetFrames >= 1, "vad_onset_frames: %d is below 1", c.VADOnsetFrames)
	check(c.WebRTCMode >= 0 && c.WebRTCMode <= 3, "webrtc_mode: %d not in [0, 3]", c.WebRTCMode)
	check(c.CaptureSampleRate >= 0, "capture_sample_rate: %d is negative", c.CaptureSampleRate)
	check(c.CaptureChannels >= 0, "capture_channels: %d is negative", c.CaptureChannels)
	check(c.QueueSize > 0, "queue_size: %d must be positive", c.QueueSize)
	check(c.MaxRecordingSeconds > 0, "max_recording_seconds: %d must be positive", c.MaxRecordingSeconds)
	check(c.CloseTimeoutMs > 0, "close_timeout_ms: %d must be positive", c.CloseTimeoutMs)
	check(c.AnalysisWorkers > 0, "analysis_workers: %d must be positive", c.AnalysisWorkers)
	check(c.MaxAnalysisSeconds > 0, "max_analysis_seconds: %d must be positive", c.MaxAnalysisSeconds)
	check(c.SocketPath != "", "socket_path: empty")

	return errors.Join(errs...)
}

// GetConfigPath returns the default config path
func GetConfigPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".config", "hablara", "config.json")
}
