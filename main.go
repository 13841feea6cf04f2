package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ardanlabs/conf/v3"
	"go.uber.org/zap"

	"github.com/pa/hablara/internal/analysis"
	"github.com/pa/hablara/internal/audio"
	"github.com/pa/hablara/internal/config"
	"github.com/pa/hablara/internal/ipc"
	"github.com/pa/hablara/internal/logger"
	"github.com/pa/hablara/internal/models"
	"github.com/pa/hablara/internal/vad"
)

var build = "develop"

var (
	errUsage          = errors.New("usage")
	errUnknownCommand = errors.New("unknown command")
)

// segmenterModel is the model used by the segments command
const segmenterModel = "silero_vad_v5"

type cliConfig struct {
	conf.Version
	Args   conf.Args
	Config string `conf:"help:path of the JSON config file"`
	Log    struct {
		Level string `conf:"help:log level overriding the config file"`
		File  string `conf:"help:log file instead of stderr"`
	}
	Metrics struct {
		Address string `conf:"help:listen address of the /metrics endpoint"`
	}
	Device string `conf:"help:capture device name substring"`
}

func main() {
	cli := cliConfig{
		Version: conf.Version{
			Build: build,
			Desc:  "Speech capture and voice feature classification daemon",
		},
	}
	help, err := conf.Parse("HABLARA", &cli)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return
		}
		exitErr("Failed to parse arguments", err)
	}

	command := cli.Args.Num(0)
	switch command {
	case "help", "-h", "--help":
		printUsage()
		return
	case "version", "-v", "--version":
		printVersion()
		return
	}

	cfg, err := loadConfig(cli)
	if err != nil {
		exitErr("Failed to load config", err)
	}

	var outputs []string
	if cli.Log.File != "" {
		outputs = append(outputs, cli.Log.File)
	}
	log, err := logger.New("hablara", cfg.LogLevel, outputs...)
	if err != nil {
		exitErr("Failed to create logger", err)
	}
	defer func() { _ = log.Sync() }()

	if err := run(command, cli.Args, cfg, log); err != nil {
		_ = log.Sync()
		if errors.Is(err, errUnknownCommand) {
			printUsage()
		}
		exitErr("ERROR", err)
	}
}

// run dispatches one subcommand
func run(command string, args conf.Args, cfg *config.Config, log *zap.SugaredLogger) error {
	switch command {
	case "", "daemon":
		return runDaemon(cfg, log)
	case "start", "stop", "toggle", "status", "level", "report", "ping":
		return runControl(cfg, ipc.Command(command))
	case "devices":
		return runDevices()
	case "analyze":
		path, err := requireArg(args, 1, "analyze <file.wav>")
		if err != nil {
			return err
		}
		return runAnalyze(cfg, log, path)
	case "filter":
		in, err := requireArg(args, 1, "filter <in.wav> <out.wav>")
		if err != nil {
			return err
		}
		out, err := requireArg(args, 2, "filter <in.wav> <out.wav>")
		if err != nil {
			return err
		}
		return runFilter(cfg, in, out)
	case "segments":
		path, err := requireArg(args, 1, "segments <file.wav>")
		if err != nil {
			return err
		}
		return runSegments(cfg, path)
	case "models":
		return models.NewManager(cfg.ModelDir).PrintModelInfo(os.Stdout, cfg.VADModel)
	case "download":
		model, err := requireArg(args, 1, "download <model>")
		if err != nil {
			return err
		}
		return runDownloadModel(cfg, model)
	case "delete":
		model, err := requireArg(args, 1, "delete <model>")
		if err != nil {
			return err
		}
		return models.NewManager(cfg.ModelDir).DeleteModel(model)
	case "config":
		return printJSON(cfg)
	}
	return fmt.Errorf("%w: %s", errUnknownCommand, command)
}

func printUsage() {
	fmt.Println("hablara - speech capture and voice feature classification")
	fmt.Println("")
	fmt.Println("Usage:")
	fmt.Println("  hablara [options] [command] [args]")
	fmt.Println("")
	fmt.Println("Daemon Commands:")
	fmt.Println("  (none)                 Start daemon (default)")
	fmt.Println("  daemon                 Start daemon explicitly")
	fmt.Println("")
	fmt.Println("Recording Commands:")
	fmt.Println("  start                  Start recording")
	fmt.Println("  stop                   Stop recording and analyze it")
	fmt.Println("  toggle                 Toggle recording on/off")
	fmt.Println("  status                 Get current status")
	fmt.Println("  level                  Get the current input level")
	fmt.Println("  report                 Print the last analysis as JSON")
	fmt.Println("  ping                   Check the daemon is alive")
	fmt.Println("")
	fmt.Println("Offline Commands:")
	fmt.Println("  analyze <file.wav>     Filter and classify a recording")
	fmt.Println("  filter <in> <out>      Write only the speech of a recording")
	fmt.Println("  segments <file.wav>    Print speech segments")
	fmt.Println("  devices                List capture devices")
	fmt.Println("  config                 Print the effective configuration")
	fmt.Println("")
	fmt.Println("Model Management:")
	fmt.Println("  models                 List available and downloaded VAD models")
	fmt.Println("  download <model>       Download a VAD model")
	fmt.Println("  delete <model>         Delete a downloaded model")
	fmt.Println("")
	fmt.Println("Other:")
	fmt.Println("  help                   Show this help")
	fmt.Println("  version                Show version")
	fmt.Println("  --help                 Show options and environment variables")
}

func printVersion() {
	fmt.Printf("hablara %s\n", build)
}

func loadConfig(cli cliConfig) (*config.Config, error) {
	path := cli.Config
	if path == "" {
		path = config.GetConfigPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	applyOverrides(cfg, cli)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyOverrides(cfg *config.Config, cli cliConfig) {
	if cli.Log.Level != "" {
		cfg.LogLevel = cli.Log.Level
	}
	if cli.Metrics.Address != "" {
		cfg.MetricsAddress = cli.Metrics.Address
	}
	if cli.Device != "" {
		device := cli.Device
		cfg.AudioDevice = &device
	}
}

// requireArg returns positional argument i or a usage error
func requireArg(args conf.Args, i int, usage string) (string, error) {
	arg := args.Num(i)
	if arg == "" {
		return "", fmt.Errorf("%w: hablara %s", errUsage, usage)
	}
	return arg, nil
}

func runControl(cfg *config.Config, cmd ipc.Command) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	payload, err := ipc.NewClient(cfg.SocketPath).Call(ctx, cmd)
	if err != nil {
		return err
	}
	fmt.Println(payload)
	return nil
}

func runDevices() error {
	devices, err := audio.ListInputDevices()
	if err != nil {
		return err
	}
	for _, d := range devices {
		mark := " "
		if d.IsDefault {
			mark = "*"
		}
		note := ""
		if d.IsMonitor {
			note = " (monitor)"
		}
		fmt.Printf(" %s %s%s\n", mark, d.Name, note)
	}
	return nil
}

// filterOffline runs samples through the configured voice filter. With
// voice filtering off every sample counts as speech.
func filterOffline(cfg *config.Config, samples []float32) (vad.Result, error) {
	total := float64(len(samples)) / vad.SampleRate
	if !cfg.VoiceActivityDetection {
		return vad.Result{Samples: samples, SpeechSeconds: total, TotalSeconds: total}, nil
	}

	detector, pipeline, err := buildPipeline(cfg)
	if err != nil {
		return vad.Result{}, fmt.Errorf("failed to build voice filter: %w", err)
	}
	defer detector.Close()

	return pipeline.FilterAudio(samples)
}

func runAnalyze(cfg *config.Config, log *zap.SugaredLogger, path string) error {
	samples, err := audio.LoadWAV(path)
	if err != nil {
		return err
	}
	res, err := filterOffline(cfg, samples)
	if err != nil {
		return err
	}

	pool := analysis.NewPool(analysis.PoolConfig{
		Workers:    1,
		MaxSeconds: float64(cfg.MaxAnalysisSeconds),
	}, log, nil)
	rep, err := pool.Analyze(context.Background(), analysis.Request{
		Samples:       res.Samples,
		Labels:        res.Labels,
		SpeechSeconds: res.SpeechSeconds,
		TotalSeconds:  res.TotalSeconds,
	})
	if err != nil {
		return err
	}
	return printJSON(rep)
}

func runFilter(cfg *config.Config, in, out string) error {
	samples, err := audio.LoadWAV(in)
	if err != nil {
		return err
	}
	res, err := filterOffline(cfg, samples)
	if err != nil {
		return err
	}
	if err := audio.SaveWAV(out, res.Samples); err != nil {
		return err
	}
	fmt.Printf("%s: %.2fs of speech in %.2fs\n", out, res.SpeechSeconds, res.TotalSeconds)
	return nil
}

// runSegments uses the offline Silero segmenter when its model is present
// and the configured frame filter otherwise.
func runSegments(cfg *config.Config, path string) error {
	samples, err := audio.LoadWAV(path)
	if err != nil {
		return err
	}

	var segments []vad.Segment
	manager := models.NewManager(cfg.ModelDir)
	if manager.IsModelDownloaded(segmenterModel) {
		seg, err := vad.NewSegmenter(vad.DefaultSegmenterConfig(manager.GetModelPath(segmenterModel)))
		if err != nil {
			return err
		}
		defer seg.Close()
		if segments, err = seg.Segments(samples); err != nil {
			return err
		}
	} else {
		res, err := filterOffline(cfg, samples)
		if err != nil {
			return err
		}
		segments = vad.LabelSegments(res.Labels)
	}

	for i, s := range segments {
		fmt.Printf("%3d  %8.2fs  %8.2fs  (%.2fs)\n", i+1, s.Start, s.End, s.Duration())
	}
	return nil
}

func runDownloadModel(cfg *config.Config, model string) error {
	manager := models.NewManager(cfg.ModelDir)
	if err := manager.DownloadModelWithProgress(context.Background(), model, os.Stdout); err != nil {
		return err
	}
	fmt.Printf("Model '%s' downloaded to %s\n", model, manager.GetModelPath(model))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// exitErr prints err and exits non-zero
func exitErr(prefix string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", prefix, err)
	os.Exit(1)
}
