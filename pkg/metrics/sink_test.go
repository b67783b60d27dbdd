package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/go-go-golems/chat-relay/pkg/events"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSinkUpdatesCollectors(t *testing.T) {
	meta := events.EventMetadata{CallID: "c", Mode: "sink-test", Elapsed: time.Second}
	s := NewSink()

	require.NoError(t, s.PublishEvent(events.NewStartEvent(meta, nil)))
	require.NoError(t, s.PublishEvent(events.NewToolCallEvent(meta, events.ToolCall{Name: "web_search"})))
	require.NoError(t, s.PublishEvent(events.NewToolCallEvent(meta, events.ToolCall{Name: "web_search"})))
	require.NoError(t, s.PublishEvent(events.NewThinkingDoneEvent(meta, 300*time.Millisecond, 2)))
	require.NoError(t, s.PublishEvent(events.NewPartialCompletionEvent(meta, "Hello", 0)))
	require.NoError(t, s.PublishEvent(events.NewPartialCompletionEvent(meta, " World", 1)))
	require.NoError(t, s.PublishEvent(events.NewFinalEvent(meta, 2, 2)))
	require.NoError(t, s.PublishEvent(events.NewErrorEvent(meta, "stream", errors.New("x"), 0)))
	require.NoError(t, s.PublishEvent(events.NewInterruptEvent(meta, 0)))

	assert.Equal(t, 2.0, testutil.ToFloat64(ChunksTotal.WithLabelValues("sink-test")))
	assert.Equal(t, 11.0, testutil.ToFloat64(ChunkBytesTotal.WithLabelValues("sink-test")))
	assert.Equal(t, 2.0, testutil.ToFloat64(ToolCallsTotal.WithLabelValues("sink-test", "web_search")))
	assert.Equal(t, 1.0, testutil.ToFloat64(CallsTotal.WithLabelValues("sink-test", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(CallsTotal.WithLabelValues("sink-test", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(CallsTotal.WithLabelValues("sink-test", "canceled")))
	assert.Equal(t, 1.0, testutil.ToFloat64(CallErrorsTotal.WithLabelValues("sink-test", "stream")))
}

func TestSinkFoldsUnknownToolNames(t *testing.T) {
	meta := events.EventMetadata{Mode: "tool-label-test"}
	s := NewSink()

	for _, name := range []string{"x_search", "rm_rf", "", "web_search_v2"} {
		require.NoError(t, s.PublishEvent(events.NewToolCallEvent(meta, events.ToolCall{Name: name})))
	}

	assert.Equal(t, 1.0, testutil.ToFloat64(ToolCallsTotal.WithLabelValues("tool-label-test", "x_search")))
	assert.Equal(t, 3.0, testutil.ToFloat64(ToolCallsTotal.WithLabelValues("tool-label-test", OtherTool)))
	assert.Equal(t, 0.0, testutil.ToFloat64(ToolCallsTotal.WithLabelValues("tool-label-test", "rm_rf")))
}
