package summarize

import "time"

// Availability is the closed probe state of one capability.
type Availability string

const (
	Ready              Availability = "ready"
	ReadyAfterDownload Availability = "ready-after-download"
	Unavailable        Availability = "unavailable"
)

// Usable reports whether the capability can serve a generation attempt.
// Ready-after-download is usable: the first real use may incur a one-time
// model download surfaced through progress events.
func (a Availability) Usable() bool {
	return a == Ready || a == ReadyAfterDownload
}

// CapabilitySet records what the environment offers right now. Created
// once per pipeline session; refreshed only by an explicit re-probe.
type CapabilitySet struct {
	Summarizer       Availability `json:"summarizer"`
	PromptModel      Availability `json:"promptModel"`
	LanguageDetector Availability `json:"languageDetector"`
	ProbedAt         time.Time    `json:"probedAt"`
}

// APIUsed identifies which path produced a result.
type APIUsed string

const (
	APICache           APIUsed = "cache"
	APISummarizer      APIUsed = "summarizer"
	APIPromptStreaming APIUsed = "prompt-streaming"
	APINone            APIUsed = "none"
)

// FailureReason is the typed error taxonomy of the pipeline.
type FailureReason string

const (
	ReasonNone                  FailureReason = ""
	ReasonCapabilityUnavailable FailureReason = "capability-unavailable"
	ReasonTimeout               FailureReason = "timeout"
	ReasonGenerationFailure     FailureReason = "generation-failure"
	ReasonInsufficientInput     FailureReason = "insufficient-input"
)

// Result is the outcome of one generation attempt.
type Result struct {
	Success      bool          `json:"success"`
	Summary      string        `json:"summary,omitempty"`
	APIUsed      APIUsed       `json:"apiUsed"`
	Lang         string        `json:"lang,omitempty"`
	TTFBMs       int64         `json:"ttfbMs"`
	DurationMs   int64         `json:"durationMs"`
	Cached       bool          `json:"cached"`
	FallbackUsed bool          `json:"fallbackUsed"`
	Reason       FailureReason `json:"reason,omitempty"`
	Error        string        `json:"error,omitempty"`
}

// Options controls one Summarize invocation.
type Options struct {
	Lang            string
	PreferStreaming bool
	// OnProgress receives download/progress fractions clamped to [0,1].
	OnProgress func(float64)
	// OnChunk receives cumulative text snapshots, each superseding the last.
	OnChunk func(string)
}

// ProductRecord is the flat record handed over by the extension's
// scrapers. Only Title is required.
type ProductRecord struct {
	Title       string   `json:"title"`
	Price       string   `json:"price,omitempty"`
	Rating      string   `json:"rating,omitempty"`
	ReviewCount int      `json:"reviewCount,omitempty"`
	Seller      string   `json:"seller,omitempty"`
	Site        string   `json:"site,omitempty"`
	URL         string   `json:"url,omitempty"`
	ProductID   string   `json:"productId,omitempty"`
	SKU         string   `json:"sku,omitempty"`
	UPC         string   `json:"upc,omitempty"`
	Description string   `json:"description,omitempty"`
	Reviews     []string `json:"reviews,omitempty"`
}

// Excerpt is the bounded text blob handed to a generation strategy.
type Excerpt struct {
	Text       string
	Host       string
	ProductKey string
	Site       string
}
