package audio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/speaker"
	"github.com/gopxl/beep/vorbis"
	"github.com/gopxl/beep/wav"
	"go.uber.org/zap"
)

// Cue selects one of the feedback sounds
type Cue int

const (
	CueStart Cue = iota
	CueStop
)

func (c Cue) String() string {
	if c == CueStop {
		return "stop"
	}
	return "start"
}

var errUnsupportedCue = errors.New("unsupported cue format")

// gain scales every sample by a fixed factor
type gain struct {
	streamer beep.Streamer
	factor   float64
}

func (g *gain) Stream(samples [][2]float64) (n int, ok bool) {
	n, ok = g.streamer.Stream(samples)
	for i := range samples[:n] {
		samples[i][0] *= g.factor
		samples[i][1] *= g.factor
	}
	return n, ok
}

func (g *gain) Err() error {
	return g.streamer.Err()
}

// PlayerConfig contains configuration for the cue player
type PlayerConfig struct {
	Enabled     bool
	StartVolume float64
	StopVolume  float64
	StartPath   string   // empty = start.ogg or start.wav from an asset dir
	StopPath    string   // empty = stop.ogg or stop.wav from an asset dir
	AssetDirs   []string // nil = DefaultAssetDirs()
}

// sink plays one decoded cue and returns when it has finished
type sink func(s beep.Streamer, format beep.Format) error

// Player plays start and stop cues asynchronously
type Player struct {
	paths   [2]string
	volumes [2]float64
	enabled bool
	log     *zap.SugaredLogger

	sink sink
	wg   sync.WaitGroup

	speakerOnce sync.Once
	speakerRate beep.SampleRate
	speakerErr  error
}

// DefaultAssetDirs lists the directories searched for cue files
func DefaultAssetDirs() []string {
	homeDir, _ := os.UserHomeDir()
	execDir := "."
	if execPath, err := os.Executable(); err == nil {
		execDir = filepath.Dir(execPath)
	}
	return []string{
		filepath.Join(homeDir, ".local", "share", "hablara", "assets"),
		filepath.Join(homeDir, ".local", "share", "hablara"),
		filepath.Join(execDir, "share", "assets"),
		filepath.Join(execDir, "..", "share", "assets"),
		filepath.Join("share", "assets"),
	}
}

// NewPlayer creates a player. Missing cue files disable feedback instead
// of failing.
func NewPlayer(cfg PlayerConfig, log *zap.SugaredLogger) *Player {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	p := &Player{
		volumes: [2]float64{clampVolume(cfg.StartVolume), clampVolume(cfg.StopVolume)},
		enabled: cfg.Enabled,
		log:     log,
	}
	p.sink = p.speakerSink
	if !p.enabled {
		return p
	}

	dirs := cfg.AssetDirs
	if dirs == nil {
		dirs = DefaultAssetDirs()
	}
	for cue, custom := range map[Cue]string{CueStart: cfg.StartPath, CueStop: cfg.StopPath} {
		path, err := resolveCue(cue, custom, dirs)
		if err != nil {
			log.Warnw("audio: feedback disabled", "cue", cue, "error", err)
			p.enabled = false
			return p
		}
		p.paths[cue] = path
	}

	log.Infow("audio: feedback enabled",
		"start", p.paths[CueStart], "start_volume", p.volumes[CueStart],
		"stop", p.paths[CueStop], "stop_volume", p.volumes[CueStop],
	)
	return p
}

// Enabled reports whether cues will be played
func (p *Player) Enabled() bool {
	return p.enabled
}

// Play starts the cue in the background
func (p *Player) Play(cue Cue) {
	if !p.enabled || p.paths[cue] == "" {
		return
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := p.play(p.paths[cue], p.volumes[cue]); err != nil {
			p.log.Warnw("audio: failed to play cue", "cue", cue, "error", err)
		}
	}()
}

// PlayStart plays the recording start sound
func (p *Player) PlayStart() { p.Play(CueStart) }

// PlayStop plays the recording stop sound
func (p *Player) PlayStop() { p.Play(CueStop) }

// Close waits for cues still playing
func (p *Player) Close() {
	p.wg.Wait()
}

func (p *Player) play(path string, volume float64) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	stream, format, err := decodeCue(f, path)
	if err != nil {
		return err
	}
	defer stream.Close()

	return p.sink(&gain{streamer: stream, factor: volume}, format)
}

func decodeCue(f *os.File, path string) (beep.StreamSeekCloser, beep.Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ogg":
		return vorbis.Decode(f)
	case ".wav":
		return wav.Decode(f)
	}
	return nil, beep.Format{}, fmt.Errorf("%w: %s", errUnsupportedCue, path)
}

// speakerSink initializes the speaker at the first cue's rate and plays
// later cues resampled to it.
func (p *Player) speakerSink(s beep.Streamer, format beep.Format) error {
	p.speakerOnce.Do(func() {
		p.speakerRate = format.SampleRate
		p.speakerErr = speaker.Init(format.SampleRate, format.SampleRate.N(100*time.Millisecond))
	})
	if p.speakerErr != nil {
		return fmt.Errorf("failed to initialize speaker: %w", p.speakerErr)
	}

	if format.SampleRate != p.speakerRate {
		s = beep.Resample(resampleQuality, format.SampleRate, p.speakerRate, s)
	}

	done := make(chan struct{})
	speaker.Play(beep.Seq(s, beep.Callback(func() {
		close(done)
	})))
	<-done
	return nil
}

// resolveCue finds the file for cue: an absolute custom path, a custom
// path relative to an asset dir, or the default name in an asset dir.
func resolveCue(cue Cue, custom string, dirs []string) (string, error) {
	if custom != "" {
		if filepath.IsAbs(custom) {
			if fileExists(custom) {
				return custom, nil
			}
			return "", fmt.Errorf("%s sound not found: %s", cue, custom)
		}
		for _, dir := range dirs {
			if path := filepath.Join(dir, custom); fileExists(path) {
				return path, nil
			}
		}
	}

	for _, dir := range dirs {
		for _, ext := range []string{".ogg", ".wav"} {
			if path := filepath.Join(dir, cue.String()+ext); fileExists(path) {
				return path, nil
			}
		}
	}
	return "", fmt.Errorf("%s sound not found in %s", cue, strings.Join(dirs, ", "))
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func clampVolume(v float64) float64 {
	return min(max(v, 0), 1)
}
