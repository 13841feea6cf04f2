package audio

import (
	"fmt"

	"github.com/gen2brain/malgo"
)

// DeviceInfo describes one capture device
type DeviceInfo struct {
	Name      string
	IsDefault bool
	IsMonitor bool
}

// ListInputDevices returns all capture devices known to the audio backend
func ListInputDevices() ([]DeviceInfo, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio context: %w", err)
	}
	defer func() {
		_ = ctx.Uninit()
		ctx.Free()
	}()

	devices, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	out := make([]DeviceInfo, 0, len(devices))
	for _, d := range devices {
		out = append(out, DeviceInfo{
			Name:      d.Name(),
			IsDefault: d.IsDefault != 0,
			IsMonitor: isMonitor(d.Name()),
		})
	}
	return out, nil
}

// findDevice returns the first capture device whose name contains name,
// or nil when none matches.
func findDevice(ctx *malgo.AllocatedContext, name string) (*malgo.DeviceInfo, error) {
	devices, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	for i := range devices {
		if containsIgnoreCase(devices[i].Name(), name) {
			return &devices[i], nil
		}
	}
	return nil, nil
}
