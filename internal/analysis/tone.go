package analysis

// ToneResult holds the five 1-5 tone scores
type ToneResult struct {
	Formality       int     `json:"formality"`       // 1 casual .. 5 formal
	Professionalism int     `json:"professionalism"` // 1 personal .. 5 professional
	Directness      int     `json:"directness"`      // 1 indirect .. 5 direct
	Energy          int     `json:"energy"`          // 1 low .. 5 high
	Seriousness     int     `json:"seriousness"`     // 1 light .. 5 serious
	Confidence      float64 `json:"confidence"`
}

// NeutralTone is the mid-scale result used when there is nothing to score
func NeutralTone() ToneResult {
	return ToneResult{
		Formality:       3,
		Professionalism: 3,
		Directness:      3,
		Energy:          3,
		Seriousness:     3,
		Confidence:      0.5,
	}
}

// step maps v onto scores by ascending cut points: v below cuts[i]
// scores scores[i], anything above the last cut scores the final entry.
type step struct {
	cuts   [4]float64
	scores [5]int
}

func (s step) score(v float64) int {
	for i, c := range s.cuts {
		if v < c {
			return s.scores[i]
		}
	}
	return s.scores[4]
}

var (
	descending = [5]int{5, 4, 3, 2, 1}
	ascending  = [5]int{1, 2, 3, 4, 5}

	formalityStep       = step{cuts: [4]float64{500, 1000, 2000, 3500}, scores: descending}
	professionalismStep = step{cuts: [4]float64{0.005, 0.01, 0.02, 0.04}, scores: descending}
	directnessStep      = step{cuts: [4]float64{100, 200, 400, 700}, scores: descending}
	energyStep          = step{cuts: [4]float64{0.05, 0.08, 0.12, 0.18}, scores: ascending}
	seriousnessStep     = step{cuts: [4]float64{110, 130, 160, 190}, scores: descending}
)

// ClassifyTone scores the five tone dimensions
func ClassifyTone(prosodic ProsodicFeatures, spectral SpectralFeatures, speechRate float64) ToneResult {
	return ToneResult{
		Formality:       formality(prosodic, speechRate),
		Professionalism: professionalismStep.score(prosodic.EnergyVariance),
		Directness:      directness(prosodic),
		Energy:          energyLevel(prosodic, spectral),
		Seriousness:     seriousness(prosodic),
		Confidence:      toneConfidence(prosodic, spectral, speechRate),
	}
}

// formality falls with pitch variation and fast speech
func formality(p ProsodicFeatures, speechRate float64) int {
	score := formalityStep.score(p.PitchVariance)
	switch {
	case speechRate > 0.85:
		score--
	case speechRate < 0.6:
		score++
	}
	return clampScore(score)
}

// directness falls with long or frequent pauses
func directness(p ProsodicFeatures) int {
	score := directnessStep.score(p.PauseDurationAvg)
	switch {
	case p.PauseFrequency > 0.8:
		score--
	case p.PauseFrequency < 0.3:
		score++
	}
	return clampScore(score)
}

// energyLevel follows loudness, shifted by spectral brightness
func energyLevel(p ProsodicFeatures, s SpectralFeatures) int {
	score := energyStep.score(p.EnergyMean)
	switch {
	case s.SpectralCentroid > 1500:
		score++
	case s.SpectralCentroid < 800:
		score--
	}
	return clampScore(score)
}

// seriousness falls with pitch level and pitch variation
func seriousness(p ProsodicFeatures) int {
	score := seriousnessStep.score(p.PitchMean)
	switch {
	case p.PitchVariance > 2000:
		score--
	case p.PitchVariance < 500:
		score++
	}
	return clampScore(score)
}

func toneConfidence(p ProsodicFeatures, s SpectralFeatures, speechRate float64) float64 {
	c := 0.6
	if speechRate > 0.5 && speechRate < 0.95 {
		c += 0.1
	}
	if p.EnergyMean > 0.05 {
		c += 0.1
	}
	if s.SpectralCentroid > 0 && s.SpectralRolloff > 0 {
		c += 0.1
	}
	if p.PitchMean < 50 {
		c -= 0.1
	}
	return clamp01(c)
}

func clampScore(v int) int {
	return min(max(v, 1), 5)
}
