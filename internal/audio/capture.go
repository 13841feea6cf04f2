package audio

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/gen2brain/malgo"
	"go.uber.org/zap"
)

// StreamInfo describes the stream negotiated with the hardware
type StreamInfo struct {
	Device     string
	SampleRate int
	Channels   int
	Format     string
}

// InputDevice is a capture endpoint delivering mono float samples.
// deliver runs on the driver's thread and must not block; the slice it
// receives is owned by the callee.
type InputDevice interface {
	Start(deliver func([]float32)) (StreamInfo, error)
	Stop() error
	Close() error
}

// CaptureConfig configures the hardware input
type CaptureConfig struct {
	DeviceName *string // substring of the device name, nil for the system default
	SampleRate int     // 0 for the device native rate
	Channels   int     // 0 for the device native channel count; downmixed to mono
}

// Capture is the malgo (miniaudio) implementation of InputDevice
type Capture struct {
	config CaptureConfig
	log    *zap.SugaredLogger

	mu     sync.Mutex
	ctx    *malgo.AllocatedContext
	device *malgo.Device
}

// NewCapture initializes the audio context
func NewCapture(cfg CaptureConfig, log *zap.SugaredLogger) (*Capture, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio context: %w", err)
	}
	return &Capture{config: cfg, log: log, ctx: ctx}, nil
}

// Start opens the device and begins delivering samples
func (c *Capture) Start(deliver func([]float32)) (StreamInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ctx == nil {
		return StreamInfo{}, ErrClosed
	}
	if c.device != nil {
		return StreamInfo{}, fmt.Errorf("capture already started")
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = uint32(c.config.Channels)
	deviceConfig.SampleRate = uint32(c.config.SampleRate)
	deviceConfig.Alsa.NoMMap = 1

	name := "default"
	if c.config.DeviceName != nil && *c.config.DeviceName != "" {
		info, err := findDevice(c.ctx, *c.config.DeviceName)
		if err != nil {
			return StreamInfo{}, err
		}
		if info != nil {
			deviceConfig.Capture.DeviceID = info.ID.Pointer()
			name = info.Name()
			if isMonitor(name) {
				c.log.Warnw("capture: selected device is a monitor of system output", "device", name)
			}
		} else {
			c.log.Warnw("capture: device not found, using default", "wanted", *c.config.DeviceName)
		}
	}

	var channels int
	onRecvFrames := func(_, pSample []byte, framecount uint32) {
		deliver(decodeF32(pSample, int(framecount), channels))
	}

	device, err := malgo.InitDevice(c.ctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: onRecvFrames,
	})
	if err != nil {
		return StreamInfo{}, fmt.Errorf("failed to initialize device: %w", err)
	}

	info := StreamInfo{
		Device:     name,
		SampleRate: int(device.SampleRate()),
		Channels:   int(device.CaptureChannels()),
		Format:     "f32",
	}
	channels = max(info.Channels, 1)

	if err := device.Start(); err != nil {
		device.Uninit()
		return StreamInfo{}, fmt.Errorf("failed to start device: %w", err)
	}
	c.device = device

	return info, nil
}

// Stop stops and releases the device
func (c *Capture) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.device == nil {
		return nil
	}
	err := c.device.Stop()
	c.device.Uninit()
	c.device = nil
	if err != nil {
		return fmt.Errorf("failed to stop device: %w", err)
	}
	return nil
}

// Close releases the audio context
func (c *Capture) Close() error {
	stopErr := c.Stop()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ctx != nil {
		_ = c.ctx.Uninit()
		c.ctx.Free()
		c.ctx = nil
	}
	return stopErr
}

// decodeF32 converts interleaved little-endian float32 frames to mono
func decodeF32(raw []byte, frames, channels int) []float32 {
	if avail := len(raw) / (4 * channels); frames > avail {
		frames = avail
	}
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for ch := 0; ch < channels; ch++ {
			idx := (i*channels + ch) * 4
			sum += math.Float32frombits(binary.LittleEndian.Uint32(raw[idx:]))
		}
		out[i] = sum / float32(channels)
	}
	return out
}

func isMonitor(name string) bool {
	return strings.Contains(strings.ToLower(name), "monitor")
}

// containsIgnoreCase checks if haystack contains needle (case-insensitive)
func containsIgnoreCase(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
