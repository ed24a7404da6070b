package summarize

import (
	"bytes"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/yuin/goldmark"
	"go.uber.org/zap"
)

// RenderState is the state of the single summary slot.
type RenderState string

const (
	StateAbsent    RenderState = "absent"
	StateSkeleton  RenderState = "skeleton"
	StateStreaming RenderState = "streaming"
	StateFinal     RenderState = "final"
	StateError     RenderState = "error"
)

// Frame is one render instruction pushed to the client. Every frame
// replaces the slot's current content; the client never appends.
type Frame struct {
	Kind     string      `json:"kind"` // skeleton | progress | chunk | final | error
	State    RenderState `json:"state"`
	Anchor   string      `json:"anchor,omitempty"`
	Progress float64     `json:"progress,omitempty"`
	Text     string      `json:"text,omitempty"`
	HTML     string      `json:"html,omitempty"`
	Message  string      `json:"message,omitempty"`
	Meta     *Result     `json:"meta,omitempty"`
}

// FrameSink consumes render frames in order.
type FrameSink interface {
	Send(Frame)
}

// Slot is the progressive renderer: a state machine over the single
// summary slot. Transitions replace, never append, so at most one
// summary node exists client-side at any time. Reset on navigation to a
// new product.
type Slot struct {
	mu     sync.Mutex
	state  RenderState
	anchor string
	sink   FrameSink
	md     goldmark.Markdown
	logger *zap.Logger
}

func NewSlot(sink FrameSink, logger *zap.Logger) *Slot {
	return &Slot{
		state:  StateAbsent,
		sink:   sink,
		md:     goldmark.New(),
		logger: logger,
	}
}

// State returns the current render state.
func (s *Slot) State() RenderState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ShowSkeleton resolves the mount anchor from the page HTML and emits a
// skeleton frame, replacing any prior content. With no matching anchor
// the skeleton is not shown; this is logged, not an error.
func (s *Slot) ShowSkeleton(pageHTML string, anchors, fallbacks []string) {
	anchor := resolveAnchor(pageHTML, anchors, fallbacks)
	if anchor == "" {
		if s.logger != nil {
			s.logger.Info("no anchor found for summary slot, skeleton suppressed")
		}
		return
	}

	s.mu.Lock()
	s.state = StateSkeleton
	s.anchor = anchor
	s.mu.Unlock()

	s.sink.Send(Frame{Kind: "skeleton", State: StateSkeleton, Anchor: anchor})
}

// UpdateProgress updates the skeleton's progress indicator. Fractions
// are clamped to [0,1]; frames outside the skeleton state are dropped.
func (s *Slot) UpdateProgress(fraction float64) {
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}

	s.mu.Lock()
	if s.state != StateSkeleton {
		s.mu.Unlock()
		return
	}
	anchor := s.anchor
	s.mu.Unlock()

	s.sink.Send(Frame{Kind: "progress", State: StateSkeleton, Anchor: anchor, Progress: fraction})
}

// OnChunk replaces the slot content with the latest cumulative snapshot.
// The first chunk replaces the skeleton with a streaming node. With the
// slot absent (skeleton suppressed for lack of an anchor) there is
// nothing to replace, so chunks are dropped.
func (s *Slot) OnChunk(text string) {
	s.mu.Lock()
	if s.state == StateAbsent {
		s.mu.Unlock()
		return
	}
	s.state = StateStreaming
	anchor := s.anchor
	s.mu.Unlock()

	s.sink.Send(Frame{Kind: "chunk", State: StateStreaming, Anchor: anchor, Text: text})
}

// OnFinal replaces whatever occupies the slot with the final summary,
// raw and rendered from markdown.
func (s *Slot) OnFinal(text string, meta Result) {
	s.mu.Lock()
	s.state = StateFinal
	anchor := s.anchor
	s.mu.Unlock()

	s.sink.Send(Frame{
		Kind:   "final",
		State:  StateFinal,
		Anchor: anchor,
		Text:   text,
		HTML:   s.renderMarkdown(text),
		Meta:   &meta,
	})
}

// OnError replaces the slot with a short, non-technical message. The
// underlying detail stays in telemetry and logs.
func (s *Slot) OnError(reason FailureReason) {
	s.mu.Lock()
	s.state = StateError
	anchor := s.anchor
	s.mu.Unlock()

	s.sink.Send(Frame{Kind: "error", State: StateError, Anchor: anchor, Message: userMessage(reason)})
}

// Reset returns the slot to absent, e.g. on navigation.
func (s *Slot) Reset() {
	s.mu.Lock()
	s.state = StateAbsent
	s.anchor = ""
	s.mu.Unlock()
}

func (s *Slot) renderMarkdown(text string) string {
	var buf bytes.Buffer
	if err := s.md.Convert([]byte(text), &buf); err != nil {
		if s.logger != nil {
			s.logger.Warn("summary markdown render failed", zap.Error(err))
		}
		return ""
	}
	return buf.String()
}

// resolveAnchor returns the first selector that matches a node in the
// page, trying the pricing/deal candidates before the main-content
// fallbacks.
func resolveAnchor(pageHTML string, anchors, fallbacks []string) string {
	if strings.TrimSpace(pageHTML) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return ""
	}
	for _, sel := range anchors {
		if doc.Find(sel).Length() > 0 {
			return sel
		}
	}
	for _, sel := range fallbacks {
		if doc.Find(sel).Length() > 0 {
			return sel
		}
	}
	return ""
}

func userMessage(reason FailureReason) string {
	switch reason {
	case ReasonInsufficientInput:
		return "Not enough product information to summarize."
	case ReasonTimeout, ReasonCapabilityUnavailable:
		return "AI summary unavailable."
	default:
		return "AI summary unavailable."
	}
}

// BufferSink collects frames in memory. Used by tests and by the
// JSON-mode handler to inspect the final frame.
type BufferSink struct {
	mu     sync.Mutex
	frames []Frame
}

func (b *BufferSink) Send(f Frame) {
	b.mu.Lock()
	b.frames = append(b.frames, f)
	b.mu.Unlock()
}

// Frames returns a copy of the collected frames.
func (b *BufferSink) Frames() []Frame {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Frame, len(b.frames))
	copy(out, b.frames)
	return out
}
