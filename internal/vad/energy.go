package vad

import (
	"fmt"
	"math"
)

// EnergyConfig contains configuration for the energy backend
type EnergyConfig struct {
	EnergyThreshold float64 // mean square level where the energy score reaches 0.5
	ZcrThreshold    float64 // zero-crossing rate above which a frame is treated as noise-like
	BrightnessHz    float64 // frequency estimate where the spectral score saturates
}

// DefaultEnergyConfig returns default energy backend configuration
func DefaultEnergyConfig() EnergyConfig {
	return EnergyConfig{
		EnergyThreshold: 0.001,
		ZcrThreshold:    0.25,
		BrightnessHz:    2000,
	}
}

// energyModel scores frames from level, zero crossings and brightness.
// It needs no external resource.
type energyModel struct {
	config EnergyConfig
}

func newEnergyModel(cfg EnergyConfig) (*energyModel, error) {
	if cfg.EnergyThreshold <= 0 || cfg.ZcrThreshold <= 0 || cfg.BrightnessHz <= 0 {
		return nil, fmt.Errorf("thresholds must be positive: %+v", cfg)
	}
	return &energyModel{config: cfg}, nil
}

func (m *energyModel) infer(frame []float32) float32 {
	energy := meanSquare(frame)
	if energy < m.config.EnergyThreshold*0.1 {
		return 0
	}

	energyScore := math.Min(energy/m.config.EnergyThreshold, 2.0) / 2.0

	zcrScore := 0.0
	if zcr := crossingRate(frame); zcr < m.config.ZcrThreshold {
		zcrScore = 1.0 - zcr/m.config.ZcrThreshold
	}

	spectralScore := math.Min(meanFrequency(frame, energy)/m.config.BrightnessHz, 1.0)

	return float32(energyScore*0.5 + zcrScore*0.3 + spectralScore*0.2)
}

func (m *energyModel) reset() {}

func meanSquare(frame []float32) float64 {
	if len(frame) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range frame {
		sum += float64(s) * float64(s)
	}
	return sum / float64(len(frame))
}

func crossingRate(frame []float32) float64 {
	if len(frame) < 2 {
		return 0
	}
	crossings := 0
	for i := 1; i < len(frame); i++ {
		if (frame[i-1] >= 0) != (frame[i] >= 0) {
			crossings++
		}
	}
	return float64(crossings) / float64(len(frame)-1)
}

// meanFrequency estimates the dominant frequency from the ratio of
// first-difference energy to signal energy.
func meanFrequency(frame []float32, energy float64) float64 {
	if energy == 0 || len(frame) < 2 {
		return 0
	}
	diff := 0.0
	for i := 1; i < len(frame); i++ {
		d := float64(frame[i] - frame[i-1])
		diff += d * d
	}
	ratio := diff / float64(len(frame)-1) / energy
	return SampleRate / math.Pi * math.Asin(math.Min(math.Sqrt(ratio)/2, 1))
}
