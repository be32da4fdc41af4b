package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/user/glance/internal/adapter/memory"
	"github.com/user/glance/internal/entity"
	"github.com/user/glance/internal/repository"
	"github.com/user/glance/pkg/metrics"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const (
	p1 = "https://x.test/p1"
	p2 = "https://x.test/p2"
)

type harness struct {
	session    *fakeSession
	summarizer *fakeSummarizer
	emitter    *fakeEmitter
	sleeper    *fakeSleeper
	processed  repository.ProcessedSet
	metrics    *metrics.Metrics
	logs       *observer.ObservedLogs
	pipeline   *Pipeline
}

func newHarness(t *testing.T, cfg PipelineConfig, locations ...string) *harness {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	h := &harness{
		session:    &fakeSession{locations: locations},
		summarizer: &fakeSummarizer{},
		emitter:    &fakeEmitter{},
		sleeper:    &fakeSleeper{},
		processed:  memory.NewProcessedSet(),
		metrics:    metrics.New(prometheus.NewRegistry()),
		logs:       logs,
	}
	h.build(cfg, logger)
	return h
}

func (h *harness) build(cfg PipelineConfig, logger *zap.Logger) {
	if cfg.Model == "" {
		cfg.Model = "test-model"
	}
	h.pipeline = NewPipeline(cfg, PipelineDeps{
		Session:    h.session,
		Watcher:    NewNavigationWatcher(h.session, []string{"about:", "chrome:"}, logger),
		Summarizer: h.summarizer,
		Processed:  h.processed,
		Emitter:    h.emitter,
		Sleeper:    h.sleeper,
		Metrics:    h.metrics,
	}, logger)
}

func (h *harness) ticks(ctx context.Context, n int) []TickResult {
	out := make([]TickResult, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, h.pipeline.Tick(ctx))
	}
	return out
}

func TestPipeline_SummarizesEachNewAddressOnce(t *testing.T) {
	h := newHarness(t, PipelineConfig{}, "", "about:blank", p1, p1, p2)

	results := h.ticks(context.Background(), 5)

	assert.Equal(t, []TickResult{TickIdle, TickIdle, TickSummarized, TickKnown, TickSummarized}, results)
	assert.Equal(t, []string{"text of " + p1, "text of " + p2}, h.summarizer.inputs)
	assert.Equal(t, []entity.Address{p1, p2}, h.emitter.addresses())
	assert.Equal(t, "summary of text of "+p1, h.emitter.emitted[0].Text)
	assert.Equal(t, "test-model", h.emitter.emitted[0].Model)
	assert.Equal(t, []string{"test-model", "test-model"}, h.summarizer.models)
}

func TestPipeline_RevisitIsNotSummarizedAgain(t *testing.T) {
	h := newHarness(t, PipelineConfig{}, p1, p2, p1)

	results := h.ticks(context.Background(), 3)

	assert.Equal(t, []TickResult{TickSummarized, TickSummarized, TickKnown}, results)
	assert.Equal(t, []entity.Address{p1, p2}, h.emitter.addresses())
}

func TestPipeline_FailedAddressIsRetriedAfterAnother(t *testing.T) {
	h := newHarness(t, PipelineConfig{}, p1, p2, p1, p2)
	failed := false
	h.session.extract = func(_ context.Context, addr entity.Address) (*entity.PageContent, error) {
		if addr == p1 && !failed {
			failed = true
			return nil, repository.ErrEmptyContent
		}
		return &entity.PageContent{Address: addr, Text: "text of " + addr.String()}, nil
	}

	results := h.ticks(context.Background(), 4)

	assert.Equal(t, []TickResult{TickExtractFailed, TickSummarized, TickSummarized, TickKnown}, results)
	assert.Equal(t, []entity.Address{p2, p1}, h.emitter.addresses())
	assert.Equal(t, []entity.Address{p1, p2, p1}, h.session.extracted)
}

func TestPipeline_DefaultWatcherIgnoresBrowserPages(t *testing.T) {
	h := newHarness(t, PipelineConfig{}, "about:blank", "chrome://newtab/", p1)
	h.pipeline = NewPipeline(PipelineConfig{Model: "test-model"}, PipelineDeps{
		Session:    h.session,
		Summarizer: h.summarizer,
		Processed:  h.processed,
		Emitter:    h.emitter,
		Sleeper:    h.sleeper,
		Metrics:    h.metrics,
	}, zap.NewNop())

	results := h.ticks(context.Background(), 3)

	assert.Equal(t, []TickResult{TickIdle, TickIdle, TickSummarized}, results)
	assert.Equal(t, []entity.Address{p1}, h.emitter.addresses())
}

func TestPipeline_WhitespaceIsTrimmed(t *testing.T) {
	h := newHarness(t, PipelineConfig{}, "  "+p1+"\n", p1)

	results := h.ticks(context.Background(), 2)

	assert.Equal(t, []TickResult{TickSummarized, TickKnown}, results)
	assert.Equal(t, []entity.Address{p1}, h.session.extracted)
}

func TestPipeline_ExtractionFailureIsRetried(t *testing.T) {
	h := newHarness(t, PipelineConfig{}, p1)
	attempts := 0
	h.session.extract = func(_ context.Context, addr entity.Address) (*entity.PageContent, error) {
		attempts++
		if attempts == 1 {
			return nil, repository.ErrNavigationRace
		}
		return &entity.PageContent{Address: addr, Text: "recovered"}, nil
	}

	results := h.ticks(context.Background(), 3)

	assert.Equal(t, []TickResult{TickExtractFailed, TickSummarized, TickKnown}, results)
	assert.Equal(t, []string{"recovered"}, h.summarizer.inputs)
	assert.Len(t, h.emitter.emitted, 1)

	failures := h.logs.FilterMessage("Stage failed, will retry on a later tick").All()
	require.Len(t, failures, 1)
	assert.Equal(t, "extract", failures[0].ContextMap()["stage"])
	assert.Equal(t, false, failures[0].ContextMap()["fatal"])
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.StageFailuresTotal.WithLabelValues("extract", "transient")))
}

func TestPipeline_ExtractionErrorsAreWrapped(t *testing.T) {
	h := newHarness(t, PipelineConfig{StopOnFatal: true}, p1)
	h.session.extract = func(context.Context, entity.Address) (*entity.PageContent, error) {
		return nil, repository.Fatal(errBoom)
	}

	result, err := h.pipeline.tick(context.Background())

	assert.Equal(t, TickExtractFailed, result)
	require.Error(t, err)
	assert.ErrorIs(t, err, repository.ErrExtractionFailed)
	assert.ErrorIs(t, err, errBoom)
	assert.True(t, repository.IsFatal(err))
}

func TestPipeline_SummarizationFailureIsRetried(t *testing.T) {
	h := newHarness(t, PipelineConfig{}, p1)
	calls := 0
	h.summarizer.fn = func(_ context.Context, text string) (string, error) {
		calls++
		if calls == 1 {
			return "", errBoom
		}
		return "ok", nil
	}

	results := h.ticks(context.Background(), 2)

	assert.Equal(t, []TickResult{TickSummarizeFailed, TickSummarized}, results)
	assert.Equal(t, []entity.Address{p1, p1}, h.session.extracted)
	assert.Len(t, h.emitter.emitted, 1)
}

func TestPipeline_UnavailableSessionKeepsPolling(t *testing.T) {
	h := newHarness(t, PipelineConfig{MaxTicks: 3, Interval: time.Second}, p1)
	h.session.locErr = errBoom

	err := h.pipeline.Run(context.Background())

	require.NoError(t, err)
	assert.Empty(t, h.session.extracted)
	assert.Equal(t, 3.0, testutil.ToFloat64(h.metrics.TicksTotal.WithLabelValues("unavailable")))
	assert.Equal(t, 3, h.logs.FilterMessage("Error retrieving current URL").Len())
	assert.Equal(t, []time.Duration{time.Second, time.Second}, h.sleeper.slept)
	assert.Equal(t, 1, h.session.closed)
}

func TestPipeline_CheckFailureSkipsExtraction(t *testing.T) {
	h := newHarness(t, PipelineConfig{}, p1)
	set := newBrokenSet()
	set.containsErr = errBoom
	h.processed = set
	h.build(PipelineConfig{}, zap.NewNop())

	assert.Equal(t, TickCheckFailed, h.pipeline.Tick(context.Background()))
	assert.Empty(t, h.session.extracted)
}

func TestPipeline_AddFailureStillEmits(t *testing.T) {
	h := newHarness(t, PipelineConfig{}, p1)
	set := newBrokenSet()
	set.addErr = errBoom
	h.processed = set
	core, logs := observer.New(zapcore.WarnLevel)
	h.build(PipelineConfig{}, zap.New(core))

	assert.Equal(t, TickSummarized, h.pipeline.Tick(context.Background()))
	assert.Len(t, h.emitter.emitted, 1)
	assert.Equal(t, 1, logs.FilterMessage("Failed to record processed URL").Len())
}

func TestPipeline_EmitFailureIsNotRecorded(t *testing.T) {
	h := newHarness(t, PipelineConfig{}, p1)
	h.emitter.err = errBoom

	assert.Equal(t, TickEmitFailed, h.pipeline.Tick(context.Background()))

	ok, err := h.processed.Contains(context.Background(), p1)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.TicksTotal.WithLabelValues("emit_failed")))
	assert.Zero(t, testutil.ToFloat64(h.metrics.TicksTotal.WithLabelValues("summarize_failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.StageFailuresTotal.WithLabelValues("emit", "transient")))
}

func TestPipeline_InterruptDuringSummarization(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := newHarness(t, PipelineConfig{}, p1, p2)
	h.summarizer.fn = func(ctx context.Context, text string) (string, error) {
		cancel()
		<-ctx.Done()
		// A provider that ignores cancellation and still answers.
		return "late summary", nil
	}

	err := h.pipeline.Run(ctx)

	require.Error(t, err)
	assert.ErrorIs(t, err, repository.ErrInterrupted)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, h.emitter.emitted)
	assert.Equal(t, 1, h.session.closed)

	ok, err := h.processed.Contains(context.Background(), p1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPipeline_InterruptDuringSleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := newHarness(t, PipelineConfig{Interval: 5 * time.Second}, p1, p2, p2)
	h.sleeper.cancel = cancel
	h.sleeper.cancelAfter = 2

	err := h.pipeline.Run(ctx)

	assert.ErrorIs(t, err, repository.ErrInterrupted)
	assert.Equal(t, []entity.Address{p1, p2}, h.emitter.addresses())
	assert.Equal(t, 1, h.session.closed)
}

func TestPipeline_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	h := newHarness(t, PipelineConfig{}, p1)
	err := h.pipeline.Run(ctx)

	assert.ErrorIs(t, err, repository.ErrInterrupted)
	assert.Equal(t, 0, h.session.calls)
	assert.Equal(t, 1, h.session.closed)
}

func TestPipeline_FatalFailure(t *testing.T) {
	fatal := func(context.Context, string) (string, error) {
		return "", repository.Fatal(errors.New("401 unauthorized"))
	}

	t.Run("retried by default", func(t *testing.T) {
		h := newHarness(t, PipelineConfig{MaxTicks: 3}, p1)
		h.summarizer.fn = fatal

		require.NoError(t, h.pipeline.Run(context.Background()))
		assert.Len(t, h.summarizer.inputs, 3)
		assert.Equal(t, 3.0, testutil.ToFloat64(h.metrics.StageFailuresTotal.WithLabelValues("summarize", "fatal")))

		entries := h.logs.FilterField(zap.Bool("fatal", true)).All()
		assert.Len(t, entries, 3)
	})

	t.Run("stops when configured", func(t *testing.T) {
		h := newHarness(t, PipelineConfig{MaxTicks: 3, StopOnFatal: true}, p1)
		h.summarizer.fn = fatal

		err := h.pipeline.Run(context.Background())
		require.Error(t, err)
		assert.True(t, repository.IsFatal(err))
		assert.ErrorIs(t, err, repository.ErrSummarizationFailed)
		assert.Len(t, h.summarizer.inputs, 1)
		assert.Equal(t, 1, h.session.closed)
	})
}

func TestPipeline_RunClosesProcessedSet(t *testing.T) {
	h := newHarness(t, PipelineConfig{MaxTicks: 1}, p1)
	set := newBrokenSet()
	h.processed = set
	h.build(PipelineConfig{MaxTicks: 1}, zap.NewNop())

	require.NoError(t, h.pipeline.Run(context.Background()))
	assert.Equal(t, 1, set.closed)
	assert.Equal(t, 1, h.session.closed)
	assert.Empty(t, h.sleeper.slept)
}

func TestPipeline_OnStopRunsBeforeRelease(t *testing.T) {
	h := newHarness(t, PipelineConfig{MaxTicks: 1}, p1)
	h.build(PipelineConfig{MaxTicks: 1}, zap.NewNop())

	var stops int
	var summarizedAtStop bool
	var sessionClosedAtStop int
	h.pipeline.deps.OnStop = func(ctx context.Context) {
		stops++
		summarizedAtStop, _ = h.processed.Contains(ctx, p1)
		sessionClosedAtStop = h.session.closed
	}

	require.NoError(t, h.pipeline.Run(context.Background()))
	h.pipeline.shutdown()

	assert.Equal(t, 1, stops)
	assert.True(t, summarizedAtStop)
	assert.Zero(t, sessionClosedAtStop)
	assert.Equal(t, 1, h.session.closed)
}

func TestPipeline_Metrics(t *testing.T) {
	h := newHarness(t, PipelineConfig{}, "about:blank", p1, p1)

	h.ticks(context.Background(), 3)

	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.TicksTotal.WithLabelValues("idle")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.TicksTotal.WithLabelValues("summarized")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.TicksTotal.WithLabelValues("known")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.SummariesTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.ProcessedAddresses))
	assert.Equal(t, 2, testutil.CollectAndCount(h.metrics.StageDuration))
}

func TestTimerSleeper(t *testing.T) {
	var s TimerSleeper
	assert.NoError(t, s.Sleep(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Sleep(ctx, time.Hour), context.Canceled)
}

func TestTickResult_String(t *testing.T) {
	assert.Equal(t, "summarized", TickSummarized.String())
	assert.Equal(t, "check_failed", TickCheckFailed.String())
	assert.Equal(t, "emit_failed", TickEmitFailed.String())
	assert.Equal(t, "unknown", TickResult(99).String())
}
