package audio

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/pa/hablara/internal/observe"
	"github.com/pa/hablara/internal/vad"
)

var (
	// ErrNotOpen is returned by control calls before Open
	ErrNotOpen = errors.New("audio: recorder is not open")
	// ErrClosed is returned when the worker or device has shut down
	ErrClosed = errors.New("audio: recorder is closed")
	// ErrCloseTimeout is returned when the worker did not exit in time and was abandoned
	ErrCloseTimeout = errors.New("audio: recorder worker did not exit in time")
)

// RecorderConfig controls recorder limits
type RecorderConfig struct {
	MaxDuration  time.Duration // cap on accumulated audio
	CloseTimeout time.Duration // how long Close waits for the worker
	QueueSize    int           // hardware buffers queued before dropping
}

// DefaultRecorderConfig returns the default recorder limits
func DefaultRecorderConfig() RecorderConfig {
	return RecorderConfig{
		MaxDuration:  30 * time.Minute,
		CloseTimeout: 2 * time.Second,
		QueueSize:    64,
	}
}

// Recording is the result of one start/stop session
type Recording struct {
	Samples       []float32 // 16 kHz speech samples
	Labels        []vad.Label
	SpeechSeconds float64
	TotalSeconds  float64
	Capped        bool
}

// Status is a snapshot of the recorder state
type Status struct {
	Open      bool
	Recording bool
	Capped    bool
	Samples   int
	Device    StreamInfo
}

// Recorder owns one input stream on a dedicated worker goroutine locked
// to its OS thread. The worker applies resampling and voice activity
// detection to every hardware buffer and keeps the session buffer; callers
// only reach it through commands.
type Recorder struct {
	device  InputDevice
	vad     vad.FrameProcessor // nil records without voice filtering
	config  RecorderConfig
	log     *zap.SugaredLogger
	metrics *observe.Metrics

	level   atomic.Uint32 // float32 bits, last writer wins
	onLevel atomic.Pointer[func(float32)]

	mu sync.Mutex
	w  *worker
}

// NewRecorder creates a recorder over device. processor may be nil, in
// which case every frame is kept.
func NewRecorder(device InputDevice, processor vad.FrameProcessor, cfg RecorderConfig, log *zap.SugaredLogger, metrics *observe.Metrics) *Recorder {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultRecorderConfig().QueueSize
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if metrics == nil {
		metrics = observe.Nop()
	}
	return &Recorder{
		device:  device,
		vad:     processor,
		config:  cfg,
		log:     log,
		metrics: metrics,
	}
}

// SetLevelCallback registers fn to receive the RMS level of every hardware
// buffer. fn runs on the worker and must return quickly. nil unregisters.
func (r *Recorder) SetLevelCallback(fn func(float32)) {
	if fn == nil {
		r.onLevel.Store(nil)
		return
	}
	r.onLevel.Store(&fn)
}

// Level returns the latest RMS input level
func (r *Recorder) Level() float32 {
	return math.Float32frombits(r.level.Load())
}

// Open starts the worker and the input device. Calling Open on an open
// recorder does nothing.
func (r *Recorder) Open() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.w != nil {
		select {
		case <-r.w.done:
			r.w = nil
		default:
			return nil
		}
	}

	w := &worker{
		cmds:    make(chan command),
		done:    make(chan struct{}),
		samples: make(chan []float32, r.config.QueueSize),
	}
	ready := make(chan error, 1)
	go r.run(w, ready)

	if err := <-ready; err != nil {
		return err
	}
	r.w = w
	return nil
}

// Start clears the session buffer and begins accumulating speech
func (r *Recorder) Start() error {
	ctx, cancel := context.WithTimeout(context.Background(), r.closeTimeout())
	defer cancel()
	_, err := r.request(ctx, cmdStart)
	return err
}

// Stop ends the session and returns its samples. Without a prior Start
// the result is empty.
func (r *Recorder) Stop(ctx context.Context) ([]float32, error) {
	rec, err := r.StopRecording(ctx)
	return rec.Samples, err
}

// StopRecording ends the session and returns samples, labels and durations
func (r *Recorder) StopRecording(ctx context.Context) (Recording, error) {
	rep, err := r.request(ctx, cmdStop)
	return rep.recording, err
}

// Status reports the current state
func (r *Recorder) Status(ctx context.Context) (Status, error) {
	rep, err := r.request(ctx, cmdStatus)
	if errors.Is(err, ErrNotOpen) {
		return Status{}, nil
	}
	return rep.status, err
}

// Close shuts the worker down and waits up to the close timeout. A worker
// that does not exit in time is abandoned.
func (r *Recorder) Close() error {
	r.mu.Lock()
	w := r.w
	r.w = nil
	r.mu.Unlock()

	if w == nil {
		return nil
	}

	timeout := r.closeTimeout()
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case w.cmds <- command{kind: cmdShutdown}:
	case <-w.done:
		return nil
	case <-timer.C:
		r.log.Warnw("recorder: worker unresponsive, abandoning", "timeout", timeout)
		return ErrCloseTimeout
	}

	select {
	case <-w.done:
		r.log.Infow("recorder: closed")
		return nil
	case <-timer.C:
		r.log.Warnw("recorder: worker did not exit, abandoning", "timeout", timeout)
		return ErrCloseTimeout
	}
}

func (r *Recorder) closeTimeout() time.Duration {
	if r.config.CloseTimeout > 0 {
		return r.config.CloseTimeout
	}
	return DefaultRecorderConfig().CloseTimeout
}

func (r *Recorder) request(ctx context.Context, kind commandKind) (reply, error) {
	r.mu.Lock()
	w := r.w
	r.mu.Unlock()

	if w == nil {
		return reply{}, ErrNotOpen
	}

	cmd := command{kind: kind, reply: make(chan reply, 1)}
	select {
	case w.cmds <- cmd:
	case <-w.done:
		return reply{}, ErrClosed
	case <-ctx.Done():
		return reply{}, ctx.Err()
	}

	select {
	case rep := <-cmd.reply:
		return rep, nil
	case <-w.done:
		return reply{}, ErrClosed
	case <-ctx.Done():
		return reply{}, ctx.Err()
	}
}

func (r *Recorder) setLevel(level float32) {
	level = min(level, 1)
	r.level.Store(math.Float32bits(level))
	if fn := r.onLevel.Load(); fn != nil {
		(*fn)(level)
	}
	r.metrics.AudioLevel.Record(context.Background(), float64(level))
}

type commandKind int

const (
	cmdStart commandKind = iota
	cmdStop
	cmdStatus
	cmdShutdown
)

type command struct {
	kind  commandKind
	reply chan reply
}

type reply struct {
	recording Recording
	status    Status
}

type worker struct {
	cmds    chan command
	done    chan struct{}
	samples chan []float32
}

// run is the worker loop. It owns the device and the session.
func (r *Recorder) run(w *worker, ready chan<- error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(w.done)

	info, err := r.device.Start(func(buf []float32) {
		select {
		case w.samples <- buf:
		default:
			r.metrics.DroppedBuffers.Add(context.Background(), 1)
		}
	})
	if err != nil {
		ready <- fmt.Errorf("failed to start capture: %w", err)
		return
	}
	defer func() {
		if err := r.device.Stop(); err != nil {
			r.log.Warnw("recorder: failed to stop device", "error", err)
		}
	}()

	r.log.Infow("recorder: worker started",
		"device", info.Device, "rate", info.SampleRate, "channels", info.Channels, "vad", r.vad != nil)
	ready <- nil

	s := newSession(r, info)
	for {
		select {
		case buf := <-w.samples:
			s.process(buf)
		case cmd := <-w.cmds:
			// buffers queued before the command belong before it
			s.drain(w.samples)
			if !s.handle(cmd) {
				r.log.Infow("recorder: worker stopped")
				return
			}
		}
	}
}

// session is the worker-owned recording state
type session struct {
	r          *Recorder
	info       StreamInfo
	resampler  *FrameResampler
	maxSamples int

	recording bool
	capped    bool
	samples   []float32
	labels    []vad.Label
	speech    int
}

func newSession(r *Recorder, info StreamInfo) *session {
	maxSamples := int(r.config.MaxDuration.Seconds() * vad.SampleRate)
	if maxSamples <= 0 {
		maxSamples = int(DefaultRecorderConfig().MaxDuration.Seconds() * vad.SampleRate)
	}
	return &session{
		r:          r,
		info:       info,
		resampler:  NewFrameResampler(info.SampleRate, vad.SampleRate, vad.FrameDuration),
		maxSamples: maxSamples,
	}
}

func (s *session) drain(samples <-chan []float32) {
	for {
		select {
		case buf := <-samples:
			s.process(buf)
		default:
			return
		}
	}
}

func (s *session) handle(cmd command) bool {
	switch cmd.kind {
	case cmdStart:
		s.begin()
		cmd.reply <- reply{}
	case cmdStop:
		cmd.reply <- reply{recording: s.end()}
	case cmdStatus:
		cmd.reply <- reply{status: Status{
			Open:      true,
			Recording: s.recording,
			Capped:    s.capped,
			Samples:   len(s.samples),
			Device:    s.info,
		}}
	case cmdShutdown:
		return false
	}
	return true
}

func (s *session) begin() {
	s.samples = make([]float32, 0, 10*vad.SampleRate)
	s.labels = nil
	s.speech = 0
	s.capped = false
	s.recording = true
	if s.r.vad != nil {
		s.r.vad.Reset()
	}
	s.r.log.Infow("recorder: recording started")
}

func (s *session) end() Recording {
	if s.recording {
		s.resampler.Finish(s.frame)
	} else {
		s.resampler.Discard()
	}
	s.recording = false

	rec := Recording{
		Samples:       s.samples,
		Labels:        s.labels,
		SpeechSeconds: float64(s.speech) * vad.FrameSeconds,
		TotalSeconds:  float64(len(s.labels)) * vad.FrameSeconds,
		Capped:        s.capped,
	}
	if rec.Samples == nil {
		rec.Samples = []float32{}
	}

	s.samples, s.labels, s.speech, s.capped = nil, nil, 0, false
	s.r.log.Infow("recorder: recording stopped",
		"samples", len(rec.Samples), "speech_s", rec.SpeechSeconds, "total_s", rec.TotalSeconds, "capped", rec.Capped)
	return rec
}

func (s *session) process(buf []float32) {
	s.r.setLevel(rms(buf))
	s.resampler.Push(buf, s.frame)
}

func (s *session) frame(frame []float32) {
	if !s.recording {
		return
	}

	out := vad.Frame{Speech: true, Samples: frame}
	if s.r.vad != nil {
		f, err := s.r.vad.PushFrame(frame)
		if err != nil {
			// keep audio the detector could not judge
			s.r.metrics.VADErrors.Add(context.Background(), 1)
			s.r.log.Debugw("recorder: vad failed on frame", "error", err)
		} else {
			out = f
		}
	}

	s.labels = append(s.labels, out.Label())
	s.r.metrics.RecordFrame(context.Background(), out.Label().String())
	if out.Speech {
		s.speech++
		s.append(out.Samples)
	}
}

func (s *session) append(samples []float32) {
	room := s.maxSamples - len(s.samples)
	if len(samples) >= room {
		samples = samples[:room]
		s.recording = false
		s.capped = true
		s.r.metrics.CappedRecordings.Add(context.Background(), 1)
		s.r.log.Warnw("recorder: maximum duration reached, buffering stopped", "samples", s.maxSamples)
	}
	s.samples = append(s.samples, samples...)
}

func rms(samples []float32) float32 {
	if len(samples) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return float32(math.Sqrt(sum / float64(len(samples))))
}
