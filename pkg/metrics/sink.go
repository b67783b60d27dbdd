package metrics

import (
	"github.com/go-go-golems/chat-relay/pkg/events"
	"github.com/go-go-golems/chat-relay/pkg/upstream"
)

// OtherTool labels tool calls whose name is not in the capability catalog.
// Tool names come from the provider, so they are not used as label values
// directly.
const OtherTool = "other"

func toolLabel(name string) string {
	if _, ok := upstream.LookupCapability(name); ok {
		return name
	}
	return OtherTool
}

// Sink updates the relay collectors from relay events.
type Sink struct{}

func NewSink() *Sink {
	return &Sink{}
}

var _ events.EventSink = (*Sink)(nil)

func (s *Sink) PublishEvent(event events.Event) error {
	meta := event.Metadata()
	mode := meta.Mode

	switch e := event.(type) {
	case *events.EventPartialCompletion:
		ChunksTotal.WithLabelValues(mode).Inc()
		ChunkBytesTotal.WithLabelValues(mode).Add(float64(len(e.Delta)))
	case *events.EventToolCall:
		ToolCallsTotal.WithLabelValues(mode, toolLabel(e.ToolCall.Name)).Inc()
	case *events.EventThinkingDone:
		ThinkingDuration.WithLabelValues(mode).Observe(e.Duration.Seconds())
	case *events.EventFinal:
		CallsTotal.WithLabelValues(mode, "ok").Inc()
		CallDuration.WithLabelValues(mode, "ok").Observe(meta.Elapsed.Seconds())
	case *events.EventError:
		CallsTotal.WithLabelValues(mode, "error").Inc()
		CallDuration.WithLabelValues(mode, "error").Observe(meta.Elapsed.Seconds())
		CallErrorsTotal.WithLabelValues(mode, e.Stage).Inc()
	case *events.EventInterrupt:
		CallsTotal.WithLabelValues(mode, "canceled").Inc()
		CallDuration.WithLabelValues(mode, "canceled").Observe(meta.Elapsed.Seconds())
	}
	return nil
}
