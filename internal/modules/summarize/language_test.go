package summarize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolverUsesDetector(t *testing.T) {
	r := NewResolver(&fakeDetector{code: "de"}, "en-US", nil)

	assert.Equal(t, "de", r.Resolve("Das ist ein sehr gutes Produkt mit langer Akkulaufzeit."))
}

func TestResolverFallsBackToLocale(t *testing.T) {
	r := NewResolver(&fakeDetector{}, "en-US", nil)
	assert.Equal(t, "en", r.Resolve("short"))

	r = NewResolver(nil, "pt-BR", nil)
	assert.Equal(t, "pt", r.Resolve("anything"))
}

func TestResolverRecoversFromDetectorPanic(t *testing.T) {
	r := NewResolver(&panicDetector{}, "ja-JP", nil)
	assert.Equal(t, "ja", r.Resolve("whatever"))
}

type panicDetector struct{}

func (p *panicDetector) Availability() Availability { return Ready }
func (p *panicDetector) Detect(string) (string, bool) { panic("detector exploded") }

func TestPrimarySubtag(t *testing.T) {
	assert.Equal(t, "en", primarySubtag("en-US"))
	assert.Equal(t, "en", primarySubtag("EN"))
	assert.Equal(t, "zh", primarySubtag("zh_CN"))
	assert.Equal(t, "fr", primarySubtag("fr-CA, en;q=0.9"))
	assert.Equal(t, "en", primarySubtag(""))
	assert.Equal(t, "en", primarySubtag("  -  "))
}

func TestLanguageName(t *testing.T) {
	assert.Equal(t, "English", languageName("en"))
	assert.Equal(t, "German", languageName("de"))
	// Unknown codes fall back to English output.
	assert.Equal(t, "English", languageName("xx"))
}
