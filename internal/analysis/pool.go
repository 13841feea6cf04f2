package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/pa/hablara/internal/observe"
	"github.com/pa/hablara/internal/vad"
)

// ErrTooLong is returned for requests above the configured maximum length
var ErrTooLong = errors.New("analysis: recording too long")

// PoolConfig bounds offline analysis
type PoolConfig struct {
	Workers    int
	MaxSeconds float64
	SampleRate int
}

// DefaultPoolConfig returns two workers and a five minute limit
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		Workers:    2,
		MaxSeconds: 300,
		SampleRate: vad.SampleRate,
	}
}

// Request is one recording to analyze
type Request struct {
	Samples       []float32
	Labels        []vad.Label
	SpeechSeconds float64
	TotalSeconds  float64
}

// Report is the result of one analysis job
type Report struct {
	ID             string         `json:"id"`
	Features       Features       `json:"features"`
	Classification Classification `json:"classification"`
	Duration       time.Duration  `json:"duration_ns"`
}

// Pool runs analysis jobs with bounded concurrency
type Pool struct {
	cfg        PoolConfig
	maxSamples int
	sem        *semaphore.Weighted
	log        *zap.SugaredLogger
	metrics    *observe.Metrics
}

// NewPool creates a pool. Non-positive fields of cfg fall back to defaults.
func NewPool(cfg PoolConfig, log *zap.SugaredLogger, metrics *observe.Metrics) *Pool {
	def := DefaultPoolConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.MaxSeconds <= 0 {
		cfg.MaxSeconds = def.MaxSeconds
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = def.SampleRate
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if metrics == nil {
		metrics = observe.Nop()
	}
	return &Pool{
		cfg:        cfg,
		maxSamples: int(cfg.MaxSeconds * float64(cfg.SampleRate)),
		sem:        semaphore.NewWeighted(int64(cfg.Workers)),
		log:        log,
		metrics:    metrics,
	}
}

// Workers returns the concurrency limit
func (p *Pool) Workers() int {
	return p.cfg.Workers
}

// Analyze runs one job, waiting for a free worker
func (p *Pool) Analyze(ctx context.Context, req Request) (Report, error) {
	if len(req.Samples) > p.maxSamples {
		p.metrics.RecordAnalysis(ctx, 0, "rejected")
		return Report{}, fmt.Errorf("%w: %d samples, limit %d", ErrTooLong, len(req.Samples), p.maxSamples)
	}

	if err := p.sem.Acquire(ctx, 1); err != nil {
		p.metrics.RecordAnalysis(ctx, 0, "cancelled")
		return Report{}, fmt.Errorf("analysis: waiting for worker: %w", err)
	}
	defer p.sem.Release(1)

	start := time.Now()
	features, class := NewAnalyzer(p.cfg.SampleRate).Analyze(req.Samples, req.Labels, req.SpeechSeconds, req.TotalSeconds)
	rep := Report{
		ID:             uuid.NewString(),
		Features:       features,
		Classification: class,
		Duration:       time.Since(start),
	}

	p.metrics.RecordAnalysis(ctx, rep.Duration.Seconds(), "ok")
	p.log.Infow("analysis: job finished",
		"id", rep.ID,
		"samples", len(req.Samples),
		"emotion", class.Emotion.Primary,
		"confidence", class.Emotion.Confidence,
		"duration", rep.Duration,
	)
	return rep, nil
}

// AnalyzeBatch runs every request and returns reports in request order.
// The first failure cancels the jobs that have not started.
func (p *Pool) AnalyzeBatch(ctx context.Context, reqs []Request) ([]Report, error) {
	reports := make([]Report, len(reqs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)

	for i := range reqs {
		g.Go(func() error {
			rep, err := p.Analyze(ctx, reqs[i])
			if err != nil {
				return fmt.Errorf("request %d: %w", i, err)
			}
			reports[i] = rep
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}
