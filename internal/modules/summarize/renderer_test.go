package summarize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const productPageHTML = `
<html><body>
  <div id="main-content">
    <h1 class="product-title">Wireless Earbuds X2</h1>
    <div class="deal-banner">Save 20% today</div>
    <div class="price-block">$59.99</div>
  </div>
</body></html>`

func newTestSlot() (*Slot, *BufferSink) {
	sink := &BufferSink{}
	return NewSlot(sink, nil), sink
}

func TestSlotSkeletonUsesFirstMatchingAnchor(t *testing.T) {
	slot, sink := newTestSlot()

	slot.ShowSkeleton(productPageHTML, []string{".coupon-box", ".deal-banner", ".price-block"}, []string{"#main-content"})

	frames := sink.Frames()
	require.Len(t, frames, 1)
	assert.Equal(t, "skeleton", frames[0].Kind)
	assert.Equal(t, StateSkeleton, frames[0].State)
	assert.Equal(t, ".deal-banner", frames[0].Anchor)
	assert.Equal(t, StateSkeleton, slot.State())
}

func TestSlotSkeletonFallbackAnchor(t *testing.T) {
	slot, sink := newTestSlot()

	slot.ShowSkeleton(productPageHTML, []string{".coupon-box"}, []string{"#main-content"})

	frames := sink.Frames()
	require.Len(t, frames, 1)
	assert.Equal(t, "#main-content", frames[0].Anchor)
}

func TestSlotSkeletonSuppressedWithoutAnchor(t *testing.T) {
	slot, sink := newTestSlot()

	slot.ShowSkeleton(productPageHTML, []string{".coupon-box"}, []string{".sidebar"})

	assert.Empty(t, sink.Frames())
	assert.Equal(t, StateAbsent, slot.State())
}

func TestSlotProgressClampedAndStateGated(t *testing.T) {
	slot, sink := newTestSlot()
	slot.ShowSkeleton(productPageHTML, nil, []string{"#main-content"})

	slot.UpdateProgress(-0.5)
	slot.UpdateProgress(0.4)
	slot.UpdateProgress(1.7)

	frames := sink.Frames()
	require.Len(t, frames, 4)
	assert.Equal(t, 0.0, frames[1].Progress)
	assert.Equal(t, 0.4, frames[2].Progress)
	assert.Equal(t, 1.0, frames[3].Progress)

	// Progress after streaming began is dropped.
	slot.OnChunk("- first point")
	slot.UpdateProgress(0.9)
	assert.Len(t, sink.Frames(), 5)
}

func TestSlotChunksReplaceNotAppend(t *testing.T) {
	slot, sink := newTestSlot()
	slot.ShowSkeleton(productPageHTML, nil, []string{"#main-content"})

	slot.OnChunk("- good battery")
	slot.OnChunk("- good battery\n- comfortable fit")

	frames := sink.Frames()
	require.Len(t, frames, 3)
	assert.Equal(t, StateStreaming, frames[1].State)
	assert.Equal(t, "- good battery", frames[1].Text)
	assert.Equal(t, "- good battery\n- comfortable fit", frames[2].Text, "each chunk carries the full snapshot")
}

func TestSlotChunksDroppedWhileAbsent(t *testing.T) {
	slot, sink := newTestSlot()
	slot.ShowSkeleton(productPageHTML, []string{".coupon-box"}, []string{".sidebar"})
	require.Equal(t, StateAbsent, slot.State())

	slot.OnChunk("- orphan chunk")

	assert.Empty(t, sink.Frames())
	assert.Equal(t, StateAbsent, slot.State())
}

func TestSlotFinalRendersMarkdown(t *testing.T) {
	slot, sink := newTestSlot()
	slot.ShowSkeleton(productPageHTML, nil, []string{"#main-content"})

	meta := Result{Success: true, APIUsed: APIPromptStreaming, Lang: "en"}
	slot.OnFinal("- **good** battery", meta)

	frames := sink.Frames()
	require.Len(t, frames, 2)
	final := frames[1]
	assert.Equal(t, "final", final.Kind)
	assert.Equal(t, StateFinal, final.State)
	assert.Equal(t, "- **good** battery", final.Text)
	assert.Contains(t, final.HTML, "<strong>good</strong>")
	require.NotNil(t, final.Meta)
	assert.Equal(t, APIPromptStreaming, final.Meta.APIUsed)
	assert.Equal(t, StateFinal, slot.State())
}

func TestSlotErrorMessages(t *testing.T) {
	slot, sink := newTestSlot()
	slot.ShowSkeleton(productPageHTML, nil, []string{"#main-content"})

	slot.OnError(ReasonInsufficientInput)
	slot.OnError(ReasonTimeout)

	frames := sink.Frames()
	require.Len(t, frames, 3)
	assert.Equal(t, "Not enough product information to summarize.", frames[1].Message)
	assert.Equal(t, "AI summary unavailable.", frames[2].Message)
	assert.Equal(t, StateError, slot.State())
}

func TestSlotReset(t *testing.T) {
	slot, _ := newTestSlot()
	slot.ShowSkeleton(productPageHTML, nil, []string{"#main-content"})
	slot.OnChunk("text")

	slot.Reset()
	assert.Equal(t, StateAbsent, slot.State())
}
