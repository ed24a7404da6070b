package summarize

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// HistorySink persists successful generations. Optional; failures are
// logged by the implementation, never surfaced here.
type HistorySink interface {
	Save(ctx context.Context, fingerprint string, excerpt Excerpt, result Result)
}

// Pipeline is the summarization orchestrator. It owns the capability
// snapshot, the cache and the epoch counter that discards late results.
// All capability and storage errors are converted into typed Results;
// nothing escapes Summarize.
type Pipeline struct {
	detector   *Detector
	summarizer Summarizer
	prompt     PromptModel
	cache      *Cache
	telemetry  *Telemetry
	history    HistorySink
	logger     *zap.Logger

	timeout    time.Duration
	minExcerpt int

	capsMu sync.RWMutex
	caps   CapabilitySet

	epoch atomic.Int64
}

// PipelineParams bundles constructor dependencies.
type PipelineParams struct {
	Detector   *Detector
	Summarizer Summarizer
	Prompt     PromptModel
	Cache      *Cache
	Telemetry  *Telemetry
	History    HistorySink
	Logger     *zap.Logger
	Timeout    time.Duration
	MinExcerpt int
}

// NewPipeline probes capabilities once and returns the orchestrator.
func NewPipeline(ctx context.Context, p PipelineParams) *Pipeline {
	pl := &Pipeline{
		detector:   p.Detector,
		summarizer: p.Summarizer,
		prompt:     p.Prompt,
		cache:      p.Cache,
		telemetry:  p.Telemetry,
		history:    p.History,
		logger:     p.Logger,
		timeout:    p.Timeout,
		minExcerpt: p.MinExcerpt,
	}
	pl.caps = p.Detector.Detect(ctx)
	return pl
}

// Capabilities returns the current availability snapshot.
func (p *Pipeline) Capabilities() CapabilitySet {
	p.capsMu.RLock()
	defer p.capsMu.RUnlock()
	return p.caps
}

// Reprobe refreshes the capability snapshot on demand.
func (p *Pipeline) Reprobe(ctx context.Context) CapabilitySet {
	caps := p.detector.Detect(ctx)
	p.capsMu.Lock()
	p.caps = caps
	p.capsMu.Unlock()
	return caps
}

// Summarize runs one generation attempt for the excerpt. The cache check
// wins over everything; among strategies the non-streaming summarizer is
// preferred unless the caller asked for streaming. The whole attempt is
// raced against the configured timeout; a late result is discarded, not
// rendered.
func (p *Pipeline) Summarize(ctx context.Context, excerpt Excerpt, opts Options) Result {
	start := time.Now()
	if opts.Lang == "" {
		opts.Lang = defaultLangCode
	}

	if len(strings.TrimSpace(excerpt.Text)) < p.minExcerpt {
		res := Result{
			Success: false,
			APIUsed: APINone,
			Lang:    opts.Lang,
			Reason:  ReasonInsufficientInput,
			Error:   "not enough product information",
		}
		p.report("failed", res, excerpt, start)
		return res
	}

	fingerprint := Fingerprint(excerpt.Host, excerpt.ProductKey, opts.Lang)
	if entry, ok := p.cache.Get(ctx, fingerprint); ok {
		res := Result{
			Success: true,
			Summary: entry.Summary,
			APIUsed: APICache,
			Lang:    entry.Lang,
			Cached:  true,
		}
		p.report("generated", res, excerpt, start)
		return res
	}

	epoch := p.epoch.Add(1)
	guarded := p.guardCallbacks(epoch, opts)

	resultCh := make(chan Result, 1)
	go func() {
		resultCh <- p.generate(ctx, excerpt, guarded)
	}()

	timer := time.NewTimer(p.timeout)
	defer timer.Stop()

	select {
	case res := <-resultCh:
		if res.Success {
			p.cache.Set(ctx, fingerprint, CacheEntry{
				Summary:    res.Summary,
				APIUsed:    res.APIUsed,
				Lang:       res.Lang,
				TTFBMs:     res.TTFBMs,
				DurationMs: res.DurationMs,
			})
			if p.history != nil {
				p.history.Save(ctx, fingerprint, excerpt, res)
			}
			p.report("generated", res, excerpt, start)
		} else {
			p.report("failed", res, excerpt, start)
		}
		return res

	case <-timer.C:
		// Advance the epoch so the in-flight attempt's callbacks and
		// eventual result are ignored.
		p.epoch.Add(1)
		res := Result{
			Success: false,
			APIUsed: APINone,
			Lang:    opts.Lang,
			Reason:  ReasonTimeout,
			Error:   "generation timed out",
		}
		p.report("failed", res, excerpt, start)
		return res

	case <-ctx.Done():
		p.epoch.Add(1)
		res := Result{
			Success: false,
			APIUsed: APINone,
			Lang:    opts.Lang,
			Reason:  ReasonGenerationFailure,
			Error:   ctx.Err().Error(),
		}
		p.report("error", res, excerpt, start)
		return res
	}
}

// guardCallbacks wraps the caller's callbacks so that nothing fires once
// the epoch has advanced past this invocation.
func (p *Pipeline) guardCallbacks(epoch int64, opts Options) Options {
	guarded := opts
	if opts.OnProgress != nil {
		orig := opts.OnProgress
		guarded.OnProgress = func(fraction float64) {
			if p.epoch.Load() == epoch {
				orig(fraction)
			}
		}
	}
	if opts.OnChunk != nil {
		orig := opts.OnChunk
		guarded.OnChunk = func(text string) {
			if p.epoch.Load() == epoch {
				orig(text)
			}
		}
	}
	return guarded
}

func (p *Pipeline) generate(ctx context.Context, excerpt Excerpt, opts Options) Result {
	caps := p.Capabilities()

	var summarizerErr error
	if !opts.PreferStreaming && caps.Summarizer.Usable() {
		res, err := p.trySummarizer(ctx, excerpt, opts)
		if err == nil {
			return res
		}
		summarizerErr = err
	}

	if caps.PromptModel.Usable() {
		return p.tryPromptStream(ctx, excerpt, opts)
	}

	// A usable capability that failed is a generation failure carrying
	// the capability's own error; only the no-capability case reports
	// unavailability.
	if summarizerErr != nil {
		return Result{
			Success:      false,
			APIUsed:      APINone,
			Lang:         opts.Lang,
			Reason:       ReasonGenerationFailure,
			FallbackUsed: true,
			Error:        summarizerErr.Error(),
		}
	}

	return Result{
		Success:      false,
		APIUsed:      APINone,
		Lang:         opts.Lang,
		Reason:       ReasonCapabilityUnavailable,
		FallbackUsed: true,
		Error:        "no usable AI capability",
	}
}

// trySummarizer runs the non-streaming strategy. Output arrives whole,
// so wall-clock time counts as both time-to-first-byte and completion.
func (p *Pipeline) trySummarizer(ctx context.Context, excerpt Excerpt, opts Options) (Result, error) {
	text := truncateRunes(excerpt.Text, p.summarizer.MaxInput())
	begin := time.Now()

	summary, err := p.summarizer.Summarize(ctx, text, opts.Lang, opts.OnProgress)
	if err != nil {
		if p.logger != nil {
			p.logger.Warn("summarizer failed", zap.Error(err))
		}
		return Result{}, err
	}

	elapsed := time.Since(begin).Milliseconds()
	return Result{
		Success:    true,
		Summary:    summary,
		APIUsed:    APISummarizer,
		Lang:       opts.Lang,
		TTFBMs:     elapsed,
		DurationMs: elapsed,
	}, nil
}

func (p *Pipeline) tryPromptStream(ctx context.Context, excerpt Excerpt, opts Options) Result {
	system, prompt := buildStreamPrompt(opts.Lang, excerpt.Text, p.prompt.MaxInput())
	begin := time.Now()

	var ttfb atomic.Int64
	ttfb.Store(-1)
	onSnapshot := func(snapshot string) {
		ttfb.CompareAndSwap(-1, time.Since(begin).Milliseconds())
		if opts.OnChunk != nil {
			opts.OnChunk(snapshot)
		}
	}

	summary, err := p.prompt.Stream(ctx, system, prompt, onSnapshot)
	if err != nil {
		return Result{
			Success:      false,
			APIUsed:      APINone,
			Lang:         opts.Lang,
			Reason:       ReasonGenerationFailure,
			FallbackUsed: true,
			Error:        err.Error(),
		}
	}

	firstByte := ttfb.Load()
	if firstByte < 0 {
		firstByte = time.Since(begin).Milliseconds()
	}
	return Result{
		Success:    true,
		Summary:    summary,
		APIUsed:    APIPromptStreaming,
		Lang:       opts.Lang,
		TTFBMs:     firstByte,
		DurationMs: time.Since(begin).Milliseconds(),
	}
}

func (p *Pipeline) report(kind string, res Result, excerpt Excerpt, start time.Time) {
	if p.telemetry == nil {
		return
	}
	p.telemetry.Record(TelemetryEvent{
		Kind:       kind,
		Result:     res,
		Site:       excerpt.Site,
		ExcerptLen: len(excerpt.Text),
		PipelineMs: time.Since(start).Milliseconds(),
	})
}
