// Package analysis extracts prosodic and spectral features from 16 kHz
// speech and maps them to emotion and tone labels.
package analysis

// ProsodicFeatures are time-domain speech descriptors
type ProsodicFeatures struct {
	PitchMean        float64 `json:"pitch_mean"`         // Hz
	EnergyMean       float64 `json:"energy_mean"`        // RMS
	PitchVariance    float64 `json:"pitch_variance"`     // Hz²
	PitchRange       float64 `json:"pitch_range"`        // Hz
	EnergyVariance   float64 `json:"energy_variance"`    // RMS²
	PauseDurationAvg float64 `json:"pause_duration_avg"` // ms
	PauseFrequency   float64 `json:"pause_frequency"`    // pauses per second
}

// SpectralFeatures are frequency-domain descriptors
type SpectralFeatures struct {
	ZCR              float64 `json:"zcr"`
	SpectralCentroid float64 `json:"spectral_centroid"` // Hz
	SpectralRolloff  float64 `json:"spectral_rolloff"`  // Hz
	SpectralFlux     float64 `json:"spectral_flux"`
}

// Features is the full twelve-feature vector used by the classifiers
type Features struct {
	ProsodicFeatures
	SpectralFeatures
	SpeechRate float64 `json:"speech_rate"` // speech time over total time
}

// Classification is the combined emotion and tone result
type Classification struct {
	Emotion EmotionResult `json:"emotion"`
	Tone    ToneResult    `json:"tone"`
}
