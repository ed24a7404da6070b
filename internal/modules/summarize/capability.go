package summarize

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Summarizer is the non-streaming key-point capability. Output arrives
// whole; progress callbacks report a one-time model download, if any.
type Summarizer interface {
	Availability(ctx context.Context) Availability
	Summarize(ctx context.Context, text, lang string, onProgress func(float64)) (string, error)
	MaxInput() int
}

// PromptModel is the streaming prompt/chat capability. onSnapshot
// receives cumulative text, each call superseding the last.
type PromptModel interface {
	Availability(ctx context.Context) Availability
	Stream(ctx context.Context, system, prompt string, onSnapshot func(string)) (string, error)
	MaxInput() int
}

// LanguageDetector detects the dominant language of a text sample.
type LanguageDetector interface {
	Availability() Availability
	Detect(sample string) (code string, ok bool)
}

// Detector probes the configured capabilities. Probes never propagate
// errors: anything that fails reports Unavailable.
type Detector struct {
	summarizer Summarizer
	prompt     PromptModel
	language   LanguageDetector
	logger     *zap.Logger
}

func NewDetector(summarizer Summarizer, prompt PromptModel, language LanguageDetector, logger *zap.Logger) *Detector {
	return &Detector{
		summarizer: summarizer,
		prompt:     prompt,
		language:   language,
		logger:     logger,
	}
}

// Detect probes each capability and returns the availability snapshot.
func (d *Detector) Detect(ctx context.Context) CapabilitySet {
	set := CapabilitySet{
		Summarizer:       Unavailable,
		PromptModel:      Unavailable,
		LanguageDetector: Unavailable,
		ProbedAt:         time.Now(),
	}

	if d.summarizer != nil {
		set.Summarizer = d.probe(ctx, "summarizer", d.summarizer.Availability)
	}
	if d.prompt != nil {
		set.PromptModel = d.probe(ctx, "prompt-model", d.prompt.Availability)
	}
	if d.language != nil {
		set.LanguageDetector = d.language.Availability()
	}
	return set
}

func (d *Detector) probe(ctx context.Context, name string, fn func(context.Context) Availability) (result Availability) {
	defer func() {
		if r := recover(); r != nil {
			if d.logger != nil {
				d.logger.Warn("capability probe panicked", zap.String("capability", name), zap.Any("panic", r))
			}
			result = Unavailable
		}
	}()
	return fn(ctx)
}
