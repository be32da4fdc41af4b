package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/user/glance/internal/entity"
	"github.com/user/glance/internal/repository"
	"github.com/user/glance/pkg/config"
	"github.com/user/glance/pkg/metrics"
)

const closeTimeout = 5 * time.Second

// TickResult says how one iteration of the loop ended.
type TickResult int

const (
	TickUnavailable TickResult = iota
	TickIdle
	TickKnown
	TickCheckFailed
	TickExtractFailed
	TickSummarizeFailed
	TickEmitFailed
	TickSummarized
	TickInterrupted
)

func (r TickResult) String() string {
	switch r {
	case TickUnavailable:
		return "unavailable"
	case TickIdle:
		return "idle"
	case TickKnown:
		return "known"
	case TickCheckFailed:
		return "check_failed"
	case TickExtractFailed:
		return "extract_failed"
	case TickSummarizeFailed:
		return "summarize_failed"
	case TickEmitFailed:
		return "emit_failed"
	case TickSummarized:
		return "summarized"
	case TickInterrupted:
		return "interrupted"
	default:
		return "unknown"
	}
}

// Emitter delivers a finished summary to the user.
type Emitter interface {
	Emit(ctx context.Context, s entity.Summary) error
}

// Sleeper waits between ticks. It returns early with an error when ctx is done.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// TimerSleeper sleeps on a real timer.
type TimerSleeper struct{}

func (TimerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PipelineConfig tunes the loop.
type PipelineConfig struct {
	Interval time.Duration
	// MaxTicks stops Run after that many ticks. Zero runs until cancelled.
	MaxTicks int
	// StopOnFatal makes Run return on the first unrecoverable stage failure.
	StopOnFatal bool
	Model       string
}

// PipelineDeps are the collaborators the loop drives.
type PipelineDeps struct {
	Session    repository.BrowserSession
	Watcher    *NavigationWatcher
	Summarizer repository.Summarizer
	Processed  repository.ProcessedSet
	Emitter    Emitter
	// Sleeper defaults to TimerSleeper.
	Sleeper Sleeper
	// Metrics defaults to collectors on a private registry.
	Metrics *metrics.Metrics
	// OnStop runs once before Session and Processed are released.
	OnStop func(ctx context.Context)
}

// Pipeline polls the browser and summarizes every new address once.
type Pipeline struct {
	cfg  PipelineConfig
	deps PipelineDeps

	logger    *zap.Logger
	closeOnce sync.Once
	now       func() time.Time
}

// NewPipeline creates a pipeline. The pipeline owns deps.Session and
// deps.Processed and releases both when Run returns.
func NewPipeline(cfg PipelineConfig, deps PipelineDeps, logger *zap.Logger) *Pipeline {
	if deps.Sleeper == nil {
		deps.Sleeper = TimerSleeper{}
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New(prometheus.NewRegistry())
	}
	if deps.Watcher == nil {
		deps.Watcher = NewNavigationWatcher(deps.Session, config.DefaultIgnoredPrefixes, logger)
	}
	return &Pipeline{
		cfg:    cfg,
		deps:   deps,
		logger: logger.Named("pipeline"),
		now:    time.Now,
	}
}

// Run ticks until ctx is cancelled, MaxTicks is reached, or a fatal failure
// occurs with StopOnFatal set. Cancellation is reported as repository.ErrInterrupted.
func (p *Pipeline) Run(ctx context.Context) error {
	defer p.shutdown()

	for n := 1; ; n++ {
		result, fatal := p.tick(ctx)
		if result == TickInterrupted || ctx.Err() != nil {
			return p.interrupted(ctx)
		}
		if fatal != nil && p.cfg.StopOnFatal {
			return fatal
		}
		if p.cfg.MaxTicks > 0 && n >= p.cfg.MaxTicks {
			p.logger.Info("Tick limit reached", zap.Int("ticks", n))
			return nil
		}
		if err := p.deps.Sleeper.Sleep(ctx, p.cfg.Interval); err != nil {
			if ctx.Err() != nil {
				return p.interrupted(ctx)
			}
			return fmt.Errorf("%w: %w", repository.ErrInterrupted, err)
		}
	}
}

// Tick runs a single iteration.
func (p *Pipeline) Tick(ctx context.Context) TickResult {
	result, _ := p.tick(ctx)
	return result
}

// tick returns the fatal stage error alongside the result, if there was one.
func (p *Pipeline) tick(ctx context.Context) (TickResult, error) {
	result, fatal := p.step(ctx)
	p.deps.Metrics.IncTick(result.String())
	return result, fatal
}

func (p *Pipeline) step(ctx context.Context) (TickResult, error) {
	if ctx.Err() != nil {
		return TickInterrupted, nil
	}

	obs := p.deps.Watcher.Observe(ctx)
	if ctx.Err() != nil {
		return TickInterrupted, nil
	}
	switch obs.Status {
	case ObservationUnavailable:
		p.logger.Warn("Error retrieving current URL", zap.Error(obs.Err))
		return TickUnavailable, nil
	case ObservationInvalid:
		return TickIdle, nil
	}
	addr := obs.Address

	known, err := p.deps.Processed.Contains(ctx, addr)
	if err != nil {
		if ctx.Err() != nil {
			return TickInterrupted, nil
		}
		p.logger.Warn("Failed to check processed set", zap.String("url", addr.String()), zap.Error(err))
		p.deps.Metrics.IncStageFailure("check", OutcomeTransient.String())
		return TickCheckFailed, nil
	}
	if known {
		return TickKnown, nil
	}

	p.logger.Info("Processing new URL", zap.String("url", addr.String()))

	content := p.extract(ctx, addr)
	if ctx.Err() != nil {
		return TickInterrupted, nil
	}
	if !content.OK() {
		return TickExtractFailed, p.reportFailure("extract", addr, content.Outcome, content.Err)
	}

	summary := p.summarize(ctx, content.Value)
	if ctx.Err() != nil {
		// A summary that finished during shutdown is dropped.
		return TickInterrupted, nil
	}
	if !summary.OK() {
		return TickSummarizeFailed, p.reportFailure("summarize", addr, summary.Outcome, summary.Err)
	}

	if err := p.deps.Emitter.Emit(ctx, summary.Value); err != nil {
		p.logger.Error("Failed to emit summary", zap.String("url", addr.String()), zap.Error(err))
		p.deps.Metrics.IncStageFailure("emit", OutcomeTransient.String())
		return TickEmitFailed, nil
	}
	p.deps.Metrics.SummariesTotal.Inc()

	if err := p.deps.Processed.Add(ctx, addr); err != nil {
		p.logger.Warn("Failed to record processed URL", zap.String("url", addr.String()), zap.Error(err))
	} else if n, err := p.deps.Processed.Len(ctx); err == nil {
		p.deps.Metrics.ProcessedAddresses.Set(float64(n))
	}

	return TickSummarized, nil
}

func (p *Pipeline) extract(ctx context.Context, addr entity.Address) StageResult[*entity.PageContent] {
	start := time.Now()
	content, err := p.deps.Session.ExtractText(ctx, addr)
	p.deps.Metrics.ObserveStage("extract", time.Since(start).Seconds())
	if err != nil {
		if !errors.Is(err, repository.ErrExtractionFailed) {
			err = fmt.Errorf("%w: %w", repository.ErrExtractionFailed, err)
		}
		return failed[*entity.PageContent](err)
	}
	return succeeded(content)
}

func (p *Pipeline) summarize(ctx context.Context, content *entity.PageContent) StageResult[entity.Summary] {
	start := time.Now()
	text, err := p.deps.Summarizer.Summarize(ctx, content.Text, p.cfg.Model)
	p.deps.Metrics.ObserveStage("summarize", time.Since(start).Seconds())
	if err != nil {
		if !errors.Is(err, repository.ErrSummarizationFailed) {
			err = fmt.Errorf("%w: %w", repository.ErrSummarizationFailed, err)
		}
		return failed[entity.Summary](err)
	}
	return succeeded(entity.Summary{
		Address:   content.Address,
		Model:     p.cfg.Model,
		Text:      text,
		CreatedAt: p.now(),
	})
}

// reportFailure logs a failed stage and returns err when it is fatal.
func (p *Pipeline) reportFailure(stage string, addr entity.Address, outcome Outcome, err error) error {
	p.deps.Metrics.IncStageFailure(stage, outcome.String())
	fatal := outcome == OutcomeFatal
	p.logger.Error("Stage failed, will retry on a later tick",
		zap.String("stage", stage),
		zap.String("url", addr.String()),
		zap.Bool("fatal", fatal),
		zap.Error(err),
	)
	if fatal {
		return fmt.Errorf("%s %s: %w", stage, addr, err)
	}
	return nil
}

func (p *Pipeline) interrupted(ctx context.Context) error {
	return fmt.Errorf("%w: %w", repository.ErrInterrupted, context.Cause(ctx))
}

func (p *Pipeline) shutdown() {
	p.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()

		if p.deps.OnStop != nil {
			p.deps.OnStop(ctx)
		}
		if err := p.deps.Session.Close(); err != nil {
			p.logger.Warn("Failed to close browser session", zap.Error(err))
		}
		if err := p.deps.Processed.Close(ctx); err != nil {
			p.logger.Warn("Failed to release processed set", zap.Error(err))
		}
		p.logger.Info("Pipeline stopped")
	})
}
