package summarize

import (
	"go.uber.org/zap"
)

const languageSampleLimit = 5000

// Resolver determines the dominant language of the current page. It
// never fails outward: any internal error yields the configured locale.
type Resolver struct {
	detector LanguageDetector
	fallback string // configured locale, e.g. "en-US"
	logger   *zap.Logger
}

func NewResolver(detector LanguageDetector, fallbackLocale string, logger *zap.Logger) *Resolver {
	return &Resolver{detector: detector, fallback: fallbackLocale, logger: logger}
}

// Resolve returns a two-letter language code for the given page text.
func (r *Resolver) Resolve(pageText string) string {
	if r.detector != nil && r.detector.Availability().Usable() {
		sample := truncateRunes(pageText, languageSampleLimit)
		if code, ok := r.detect(sample); ok {
			return primarySubtag(code)
		}
	}
	return primarySubtag(r.fallback)
}

func (r *Resolver) detect(sample string) (code string, ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			if r.logger != nil {
				r.logger.Warn("language detection panicked", zap.Any("panic", rec))
			}
			code, ok = "", false
		}
	}()
	return r.detector.Detect(sample)
}
