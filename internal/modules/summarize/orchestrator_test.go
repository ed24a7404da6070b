package summarize

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopsense/core/internal/pkg/kvstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSummarizer struct {
	availability Availability
	summary      string
	err          error
	delay        time.Duration
	progress     []float64
	calls        int
}

func (f *fakeSummarizer) Availability(context.Context) Availability { return f.availability }
func (f *fakeSummarizer) MaxInput() int { return 32000 }

func (f *fakeSummarizer) Summarize(ctx context.Context, _, _ string, onProgress func(float64)) (string, error) {
	f.calls++
	for _, p := range f.progress {
		if onProgress != nil {
			onProgress(p)
		}
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.summary, f.err
}

type fakePromptModel struct {
	availability Availability
	snapshots    []string
	err          error
	delay        time.Duration
	calls        int
}

func (f *fakePromptModel) Availability(context.Context) Availability { return f.availability }
func (f *fakePromptModel) MaxInput() int { return 8000 }

func (f *fakePromptModel) Stream(ctx context.Context, _, _ string, onSnapshot func(string)) (string, error) {
	f.calls++
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	var last string
	for _, s := range f.snapshots {
		last = s
		if onSnapshot != nil {
			onSnapshot(s)
		}
	}
	if f.err != nil {
		return "", f.err
	}
	return last, nil
}

type fakeDetector struct{ code string }

func (f *fakeDetector) Availability() Availability {
	if f.code == "" {
		return Unavailable
	}
	return Ready
}

func (f *fakeDetector) Detect(string) (string, bool) { return f.code, f.code != "" }

type recordingHistory struct {
	mu    sync.Mutex
	saves []Result
}

func (r *recordingHistory) Save(_ context.Context, _ string, _ Excerpt, res Result) {
	r.mu.Lock()
	r.saves = append(r.saves, res)
	r.mu.Unlock()
}

func testExcerpt() Excerpt {
	return Excerpt{
		Text:       "Product: Wireless Earbuds X2\nPrice: $59.99\nDescription: Noise cancelling earbuds with 30h battery.",
		Host:       "www.example.com",
		ProductKey: "B0TEST123",
		Site:       "example",
	}
}

func newTestPipeline(t *testing.T, summarizer Summarizer, prompt PromptModel, timeout time.Duration) (*Pipeline, *Cache) {
	t.Helper()
	cache := NewCache(kvstore.NewMemoryStore(), 24*time.Hour, nil)
	return NewPipeline(context.Background(), PipelineParams{
		Detector:   NewDetector(summarizer, prompt, nil, nil),
		Summarizer: summarizer,
		Prompt:     prompt,
		Cache:      cache,
		Logger:     nil,
		Timeout:    timeout,
		MinExcerpt: 10,
	}), cache
}

func TestSummarizePrefersSummarizer(t *testing.T) {
	local := &fakeSummarizer{availability: Ready, summary: "- great battery\n- solid fit"}
	cloud := &fakePromptModel{availability: Ready, snapshots: []string{"cloud"}}
	p, _ := newTestPipeline(t, local, cloud, 5*time.Second)

	res := p.Summarize(context.Background(), testExcerpt(), Options{Lang: "en"})

	require.True(t, res.Success)
	assert.Equal(t, APISummarizer, res.APIUsed)
	assert.Equal(t, "- great battery\n- solid fit", res.Summary)
	assert.False(t, res.Cached)
	assert.False(t, res.FallbackUsed)
	assert.Equal(t, res.TTFBMs, res.DurationMs)
	assert.Equal(t, 1, local.calls)
	assert.Equal(t, 0, cloud.calls)
}

func TestSummarizeFallsBackToPromptStream(t *testing.T) {
	local := &fakeSummarizer{availability: Ready, err: errors.New("model load failed")}
	cloud := &fakePromptModel{availability: Ready, snapshots: []string{"- light", "- lightweight\n- comfortable"}}
	p, _ := newTestPipeline(t, local, cloud, 5*time.Second)

	var chunks []string
	res := p.Summarize(context.Background(), testExcerpt(), Options{
		Lang:    "en",
		OnChunk: func(s string) { chunks = append(chunks, s) },
	})

	require.True(t, res.Success)
	assert.Equal(t, APIPromptStreaming, res.APIUsed)
	assert.Equal(t, "- lightweight\n- comfortable", res.Summary)
	assert.Equal(t, []string{"- light", "- lightweight\n- comfortable"}, chunks)
	assert.Equal(t, 1, local.calls)
	assert.Equal(t, 1, cloud.calls)
}

func TestSummarizePreferStreamingSkipsSummarizer(t *testing.T) {
	local := &fakeSummarizer{availability: Ready, summary: "local"}
	cloud := &fakePromptModel{availability: Ready, snapshots: []string{"streamed"}}
	p, _ := newTestPipeline(t, local, cloud, 5*time.Second)

	res := p.Summarize(context.Background(), testExcerpt(), Options{Lang: "en", PreferStreaming: true})

	require.True(t, res.Success)
	assert.Equal(t, APIPromptStreaming, res.APIUsed)
	assert.Equal(t, 0, local.calls)
}

func TestSummarizeSummarizerFailureWithoutFallback(t *testing.T) {
	local := &fakeSummarizer{availability: Ready, err: errors.New("model load failed")}
	cloud := &fakePromptModel{availability: Unavailable}
	p, _ := newTestPipeline(t, local, cloud, 5*time.Second)

	res := p.Summarize(context.Background(), testExcerpt(), Options{Lang: "en"})

	assert.False(t, res.Success)
	assert.Equal(t, APINone, res.APIUsed)
	assert.Equal(t, ReasonGenerationFailure, res.Reason, "a usable capability that failed is not 'unavailable'")
	assert.True(t, res.FallbackUsed)
	assert.Contains(t, res.Error, "model load failed")
	assert.Equal(t, 1, local.calls)
	assert.Equal(t, 0, cloud.calls)
}

func TestSummarizeNoCapabilities(t *testing.T) {
	local := &fakeSummarizer{availability: Unavailable}
	cloud := &fakePromptModel{availability: Unavailable}
	p, _ := newTestPipeline(t, local, cloud, 5*time.Second)

	res := p.Summarize(context.Background(), testExcerpt(), Options{Lang: "en"})

	assert.False(t, res.Success)
	assert.Equal(t, APINone, res.APIUsed)
	assert.Equal(t, ReasonCapabilityUnavailable, res.Reason)
	assert.True(t, res.FallbackUsed)
	assert.Equal(t, 0, local.calls)
	assert.Equal(t, 0, cloud.calls)
}

func TestSummarizeInsufficientInput(t *testing.T) {
	local := &fakeSummarizer{availability: Ready, summary: "should not run"}
	p, _ := newTestPipeline(t, local, nil, 5*time.Second)

	res := p.Summarize(context.Background(), Excerpt{Text: "   hi  ", Host: "x", ProductKey: "y"}, Options{Lang: "en"})

	assert.False(t, res.Success)
	assert.Equal(t, ReasonInsufficientInput, res.Reason)
	assert.Equal(t, 0, local.calls)
}

func TestSummarizeCacheShortCircuit(t *testing.T) {
	local := &fakeSummarizer{availability: Ready, summary: "fresh"}
	p, _ := newTestPipeline(t, local, nil, 5*time.Second)
	excerpt := testExcerpt()

	first := p.Summarize(context.Background(), excerpt, Options{Lang: "en"})
	require.True(t, first.Success)
	assert.False(t, first.Cached)

	second := p.Summarize(context.Background(), excerpt, Options{Lang: "en"})
	require.True(t, second.Success)
	assert.True(t, second.Cached)
	assert.Equal(t, APICache, second.APIUsed)
	assert.Equal(t, "fresh", second.Summary)
	assert.Equal(t, 1, local.calls, "second call must not hit the summarizer")
}

func TestSummarizeCacheKeyedByLanguage(t *testing.T) {
	local := &fakeSummarizer{availability: Ready, summary: "ok"}
	p, _ := newTestPipeline(t, local, nil, 5*time.Second)
	excerpt := testExcerpt()

	p.Summarize(context.Background(), excerpt, Options{Lang: "en"})
	p.Summarize(context.Background(), excerpt, Options{Lang: "de"})

	assert.Equal(t, 2, local.calls, "a different language is a different cache entry")
}

func TestSummarizeTimeout(t *testing.T) {
	local := &fakeSummarizer{availability: Ready, summary: "late", delay: 500 * time.Millisecond}
	p, _ := newTestPipeline(t, local, nil, 50*time.Millisecond)

	begin := time.Now()
	res := p.Summarize(context.Background(), testExcerpt(), Options{Lang: "en"})

	assert.False(t, res.Success)
	assert.Equal(t, ReasonTimeout, res.Reason)
	assert.Equal(t, APINone, res.APIUsed)
	assert.Less(t, time.Since(begin), 400*time.Millisecond)
}

func TestSummarizeTimeoutDiscardsLateChunks(t *testing.T) {
	cloud := &fakePromptModel{
		availability: Ready,
		snapshots:    []string{"late chunk"},
		delay:        150 * time.Millisecond,
	}
	p, _ := newTestPipeline(t, nil, cloud, 30*time.Millisecond)

	var mu sync.Mutex
	var chunks []string
	res := p.Summarize(context.Background(), testExcerpt(), Options{
		Lang: "en",
		OnChunk: func(s string) {
			mu.Lock()
			chunks = append(chunks, s)
			mu.Unlock()
		},
	})

	require.Equal(t, ReasonTimeout, res.Reason)

	// Let the abandoned attempt finish; its chunks must not fire.
	time.Sleep(250 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Empty(t, chunks)
}

func TestSummarizeProgressForwarded(t *testing.T) {
	local := &fakeSummarizer{
		availability: ReadyAfterDownload,
		summary:      "done",
		progress:     []float64{0.25, 0.5, 1.0},
	}
	p, _ := newTestPipeline(t, local, nil, 5*time.Second)

	var got []float64
	res := p.Summarize(context.Background(), testExcerpt(), Options{
		Lang:       "en",
		OnProgress: func(f float64) { got = append(got, f) },
	})

	require.True(t, res.Success)
	assert.Equal(t, []float64{0.25, 0.5, 1.0}, got)
}

func TestSummarizeHistorySavedOnSuccessOnly(t *testing.T) {
	local := &fakeSummarizer{availability: Ready, summary: "ok"}
	cache := NewCache(kvstore.NewMemoryStore(), 24*time.Hour, nil)
	history := &recordingHistory{}
	p := NewPipeline(context.Background(), PipelineParams{
		Detector:   NewDetector(local, nil, nil, nil),
		Summarizer: local,
		Cache:      cache,
		History:    history,
		Timeout:    5 * time.Second,
		MinExcerpt: 10,
	})

	p.Summarize(context.Background(), testExcerpt(), Options{Lang: "en"})
	p.Summarize(context.Background(), Excerpt{Text: "x"}, Options{Lang: "en"})

	history.mu.Lock()
	defer history.mu.Unlock()
	require.Len(t, history.saves, 1)
	assert.Equal(t, APISummarizer, history.saves[0].APIUsed)
}

func TestCapabilitiesSnapshotAndReprobe(t *testing.T) {
	local := &fakeSummarizer{availability: Unavailable}
	cloud := &fakePromptModel{availability: Ready}
	p, _ := newTestPipeline(t, local, cloud, 5*time.Second)

	caps := p.Capabilities()
	assert.Equal(t, Unavailable, caps.Summarizer)
	assert.Equal(t, Ready, caps.PromptModel)
	assert.False(t, caps.ProbedAt.IsZero())

	// The snapshot is stable until an explicit re-probe.
	local.availability = Ready
	assert.Equal(t, Unavailable, p.Capabilities().Summarizer)

	refreshed := p.Reprobe(context.Background())
	assert.Equal(t, Ready, refreshed.Summarizer)
	assert.Equal(t, Ready, p.Capabilities().Summarizer)
}

func TestDetectorRecoversFromPanic(t *testing.T) {
	panicky := &panicSummarizer{}
	d := NewDetector(panicky, nil, nil, nil)

	caps := d.Detect(context.Background())
	assert.Equal(t, Unavailable, caps.Summarizer)
}

type panicSummarizer struct{}

func (p *panicSummarizer) Availability(context.Context) Availability { panic("probe exploded") }
func (p *panicSummarizer) MaxInput() int { return 0 }
func (p *panicSummarizer) Summarize(context.Context, string, string, func(float64)) (string, error) {
	return "", nil
}

func TestAvailabilityUsable(t *testing.T) {
	assert.True(t, Ready.Usable())
	assert.True(t, ReadyAfterDownload.Usable())
	assert.False(t, Unavailable.Usable())
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "short", truncateRunes("short", 100))
	assert.Equal(t, "ab", truncateRunes("abcdefgh", 2))
	assert.Equal(t, "abcde...", truncateRunes("abcdefghij", 8))

	long := strings.Repeat("ä", 50)
	assert.Equal(t, strings.Repeat("ä", 7)+"...", truncateRunes(long, 10))

	// The cap bounds the output, marker included.
	for _, max := range []int{1, 3, 4, 10, 49, 50, 51} {
		got := truncateRunes(long, max)
		assert.LessOrEqual(t, len([]rune(got)), max, "maxLen=%d", max)
	}
}
