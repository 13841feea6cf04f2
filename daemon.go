package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/pa/hablara/internal/analysis"
	"github.com/pa/hablara/internal/audio"
	"github.com/pa/hablara/internal/config"
	"github.com/pa/hablara/internal/ipc"
	"github.com/pa/hablara/internal/models"
	"github.com/pa/hablara/internal/observe"
	"github.com/pa/hablara/internal/vad"
)

// App wires capture, voice filtering, analysis and the control socket
type App struct {
	cfg     *config.Config
	log     *zap.SugaredLogger
	metrics *observe.Metrics

	device    audio.InputDevice
	detector  *vad.Detector // nil when recording unfiltered
	recorder  *audio.Recorder
	pool      *analysis.Pool
	player    *audio.Player
	ipcServer *ipc.Server

	ctx  context.Context
	jobs sync.WaitGroup

	mu   sync.Mutex
	last *analysis.Report
}

func runDaemon(cfg *config.Config, log *zap.SugaredLogger) error {
	log.Infow("startup", "version", build, "socket", cfg.SocketPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownMetrics, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "hablara",
		ServiceVersion: build,
		Address:        cfg.MetricsAddress,
	}, log)
	if err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := shutdownMetrics(sctx); err != nil {
			log.Warnw("shutdown: metrics", "error", err)
		}
	}()

	capture, err := audio.NewCapture(audio.CaptureConfig{
		DeviceName: cfg.AudioDevice,
		SampleRate: cfg.CaptureSampleRate,
		Channels:   cfg.CaptureChannels,
	}, log)
	if err != nil {
		return fmt.Errorf("failed to initialize audio capture: %w", err)
	}
	defer func() {
		if err := capture.Close(); err != nil {
			log.Warnw("shutdown: capture", "error", err)
		}
	}()

	app := newApp(ctx, cfg, log, observe.DefaultMetrics(), capture)
	if err := app.start(); err != nil {
		app.close()
		return err
	}

	log.Infow("daemon: running", "vad", app.detector != nil)
	<-ctx.Done()

	log.Infow("daemon: shutting down")
	app.close()
	return nil
}

// newApp builds every component over device. A voice activity detector
// that cannot be built leaves the recorder unfiltered.
func newApp(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger, metrics *observe.Metrics, device audio.InputDevice) *App {
	app := &App{
		cfg:     cfg,
		log:     log,
		metrics: metrics,
		device:  device,
		ctx:     ctx,
	}

	var processor vad.FrameProcessor
	if cfg.VoiceActivityDetection {
		detector, pipeline, err := buildPipeline(cfg)
		if err != nil {
			log.Warnw("daemon: voice filtering unavailable, recording unfiltered", "backend", cfg.VADBackend, "error", err)
		} else {
			app.detector = detector
			processor = pipeline
			log.Infow("daemon: voice filtering enabled", "backend", detector.Backend(), "threshold", cfg.VADThreshold)
		}
	}

	app.recorder = audio.NewRecorder(device, processor, audio.RecorderConfig{
		MaxDuration:  time.Duration(cfg.MaxRecordingSeconds) * time.Second,
		CloseTimeout: time.Duration(cfg.CloseTimeoutMs) * time.Millisecond,
		QueueSize:    cfg.QueueSize,
	}, log, metrics)

	app.pool = analysis.NewPool(analysis.PoolConfig{
		Workers:    cfg.AnalysisWorkers,
		MaxSeconds: float64(cfg.MaxAnalysisSeconds),
		SampleRate: vad.SampleRate,
	}, log, metrics)

	app.player = audio.NewPlayer(playerConfig(cfg), log)
	app.ipcServer = ipc.NewServer(cfg.SocketPath, app.handleCommand, log)
	return app
}

func (app *App) start() error {
	if err := app.recorder.Open(); err != nil {
		return fmt.Errorf("failed to open recorder: %w", err)
	}
	if err := app.ipcServer.Start(app.ctx); err != nil {
		return fmt.Errorf("failed to start IPC server: %w", err)
	}
	return nil
}

// close tears down in reverse order and waits for pending analysis
func (app *App) close() {
	app.ipcServer.Stop()
	if err := app.recorder.Close(); err != nil {
		app.log.Warnw("shutdown: recorder", "error", err)
	}
	app.jobs.Wait()
	app.player.Close()
	if app.detector != nil {
		if err := app.detector.Close(); err != nil {
			app.log.Warnw("shutdown: detector", "error", err)
		}
	}
}

func (app *App) handleCommand(ctx context.Context, cmd ipc.Command, _ []string) string {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	switch cmd {
	case ipc.CmdPing:
		return ipc.OK("pong")

	case ipc.CmdStart:
		if err := app.startRecording(ctx); err != nil {
			return ipc.Error(err)
		}
		return ipc.OK("Recording started")

	case ipc.CmdStop:
		if err := app.stopRecording(ctx); err != nil {
			return ipc.Error(err)
		}
		return ipc.OK("Recording stopped")

	case ipc.CmdToggle:
		st, err := app.recorder.Status(ctx)
		if err != nil {
			return ipc.Error(err)
		}
		if st.Recording || st.Capped {
			if err := app.stopRecording(ctx); err != nil {
				return ipc.Error(err)
			}
			return ipc.OK("Recording stopped")
		}
		if err := app.startRecording(ctx); err != nil {
			return ipc.Error(err)
		}
		return ipc.OK("Recording started")

	case ipc.CmdStatus:
		st, err := app.recorder.Status(ctx)
		if err != nil {
			return ipc.Error(err)
		}
		state := "idle"
		switch {
		case st.Recording:
			state = "recording"
		case st.Capped:
			state = "capped"
		}
		return ipc.OK("%s samples=%d capped=%t device=%q rate=%d vad=%t",
			state, st.Samples, st.Capped, st.Device.Device, st.Device.SampleRate, app.detector != nil)

	case ipc.CmdLevel:
		return ipc.OK("%.4f", app.recorder.Level())

	case ipc.CmdReport:
		rep := app.lastReport()
		if rep == nil {
			return ipc.Error(errors.New("no analysis yet"))
		}
		data, err := json.Marshal(rep)
		if err != nil {
			return ipc.Error(err)
		}
		return ipc.OK("%s", data)
	}
	return ipc.Error(fmt.Errorf("unhandled command: %s", cmd))
}

func (app *App) startRecording(ctx context.Context) error {
	st, err := app.recorder.Status(ctx)
	if err != nil {
		return err
	}
	if st.Recording || st.Capped {
		return errors.New("already recording")
	}
	if err := app.recorder.Start(); err != nil {
		return err
	}
	app.player.PlayStart()
	return nil
}

func (app *App) stopRecording(ctx context.Context) error {
	st, err := app.recorder.Status(ctx)
	if err != nil {
		return err
	}
	// a capped session has stopped buffering but still holds its audio
	if !st.Recording && !st.Capped {
		return errors.New("not recording")
	}

	rec, err := app.recorder.StopRecording(ctx)
	if err != nil {
		return err
	}
	app.player.PlayStop()

	app.jobs.Add(1)
	go func() {
		defer app.jobs.Done()
		app.analyze(rec)
	}()
	return nil
}

// analyze runs the finished recording through the pool and keeps the report
func (app *App) analyze(rec audio.Recording) {
	if len(rec.Samples) == 0 {
		app.log.Infow("daemon: no speech in recording, skipping analysis", "seconds", rec.TotalSeconds)
		return
	}

	rep, err := app.pool.Analyze(app.ctx, analysis.Request{
		Samples:       rec.Samples,
		Labels:        rec.Labels,
		SpeechSeconds: rec.SpeechSeconds,
		TotalSeconds:  rec.TotalSeconds,
	})
	if err != nil {
		app.log.Warnw("daemon: analysis failed", "error", err)
		return
	}

	app.mu.Lock()
	app.last = &rep
	app.mu.Unlock()
}

func (app *App) lastReport() *analysis.Report {
	app.mu.Lock()
	defer app.mu.Unlock()
	return app.last
}

// buildPipeline creates the configured detector with smoothing on top
func buildPipeline(cfg *config.Config) (*vad.Detector, *vad.Pipeline, error) {
	detector, err := vad.NewDetector(detectorConfig(cfg))
	if err != nil {
		return nil, nil, err
	}
	pipeline, err := vad.NewPipeline(detector, vad.Params{
		Prefill:  cfg.VADPrefillFrames,
		Hangover: cfg.VADHangoverFrames,
		Onset:    cfg.VADOnsetFrames,
	})
	if err != nil {
		_ = detector.Close()
		return nil, nil, err
	}
	return detector, pipeline, nil
}

func detectorConfig(cfg *config.Config) vad.DetectorConfig {
	energy := vad.DefaultEnergyConfig()
	if cfg.VADEnergyThreshold > 0 {
		energy.EnergyThreshold = cfg.VADEnergyThreshold
	}
	return vad.DetectorConfig{
		Backend:     vad.Backend(cfg.VADBackend),
		Threshold:   cfg.VADThreshold,
		ModelPath:   vadModelPath(cfg),
		RuntimePath: cfg.ONNXRuntimeLib,
		Mode:        cfg.WebRTCMode,
		Energy:      energy,
	}
}

// vadModelPath returns the explicit model path or the named model in the
// model directory
func vadModelPath(cfg *config.Config) string {
	if cfg.VADModelPath != nil && *cfg.VADModelPath != "" {
		return *cfg.VADModelPath
	}
	return models.NewManager(cfg.ModelDir).GetModelPath(cfg.VADModel)
}

func playerConfig(cfg *config.Config) audio.PlayerConfig {
	pc := audio.PlayerConfig{
		Enabled:     cfg.AudioFeedback,
		StartVolume: cfg.StartSoundVolume,
		StopVolume:  cfg.StopSoundVolume,
	}
	if cfg.StartSoundPath != nil {
		pc.StartPath = *cfg.StartSoundPath
	}
	if cfg.StopSoundPath != nil {
		pc.StopPath = *cfg.StopSoundPath
	}
	return pc
}
