package openai

import (
	"context"
	"io"
	"sort"

	"github.com/go-go-golems/chat-relay/pkg/events"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	go_openai "github.com/sashabaranov/go-openai"
)

// Stream adapts a go-openai completion stream to upstream.Stream.
//
// Tool calls arrive as fragments spread over several chunks. They are merged
// and released as one event when the choice finishes or the stream ends.
type Stream struct {
	stream *go_openai.ChatCompletionStream
	cancel context.CancelFunc
	merger *ToolCallMerger
	chunks int
	done   bool
}

func (s *Stream) Recv() (events.ChatEvent, error) {
	if s.done {
		return events.ChatEvent{}, io.EOF
	}

	response, err := s.stream.Recv()
	if errors.Is(err, io.EOF) {
		log.Debug().Str("component", "upstream.openai").Int("chunks_received", s.chunks).Msg("Upstream stream completed")
		s.done = true
		if s.merger.Len() > 0 {
			return events.ChatEvent{ToolCalls: s.merger.Flush()}, nil
		}
		return events.ChatEvent{}, io.EOF
	}
	if err != nil {
		log.Error().Err(err).Str("component", "upstream.openai").Int("chunks_received", s.chunks).Msg("Upstream stream receive failed")
		return events.ChatEvent{}, err
	}
	s.chunks++

	ev := events.ChatEvent{}
	if len(response.Choices) == 0 {
		return ev, nil
	}
	choice := response.Choices[0]
	ev.Content = choice.Delta.Content

	if len(choice.Delta.ToolCalls) > 0 {
		s.merger.AddToolCalls(choice.Delta.ToolCalls)
		for _, tc := range choice.Delta.ToolCalls {
			argPreview := events.Truncate(tc.Function.Arguments, 200)
			log.Trace().
				Int("chunk", s.chunks).
				Str("tool_id", tc.ID).
				Str("name", tc.Function.Name).
				Str("arguments_delta", argPreview).
				Msg("Upstream tool_call delta")
		}
	}
	if choice.FinishReason != "" && s.merger.Len() > 0 {
		ev.ToolCalls = s.merger.Flush()
	}

	return ev, nil
}

func (s *Stream) Close() error {
	defer s.cancel()
	return s.stream.Close()
}

// ToolCallMerger accumulates streamed tool call fragments by index.
type ToolCallMerger struct {
	toolCalls map[int]go_openai.ToolCall
}

func NewToolCallMerger() *ToolCallMerger {
	return &ToolCallMerger{
		toolCalls: make(map[int]go_openai.ToolCall),
	}
}

func (tcm *ToolCallMerger) AddToolCalls(toolCalls []go_openai.ToolCall) {
	for _, call := range toolCalls {
		index := 0
		if call.Index != nil {
			index = *call.Index
		}
		if existing, found := tcm.toolCalls[index]; found {
			if existing.ID == "" {
				existing.ID = call.ID
			}
			existing.Function.Name += call.Function.Name
			existing.Function.Arguments += call.Function.Arguments
			tcm.toolCalls[index] = existing
		} else {
			tcm.toolCalls[index] = call
		}
	}
}

func (tcm *ToolCallMerger) Len() int {
	return len(tcm.toolCalls)
}

// Flush returns the merged tool calls ordered by index and resets the merger.
func (tcm *ToolCallMerger) Flush() []events.ToolCall {
	indices := make([]int, 0, len(tcm.toolCalls))
	for i := range tcm.toolCalls {
		indices = append(indices, i)
	}
	sort.Ints(indices)

	ret := make([]events.ToolCall, 0, len(indices))
	for _, i := range indices {
		tc := tcm.toolCalls[i]
		ret = append(ret, events.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	tcm.toolCalls = make(map[int]go_openai.ToolCall)
	return ret
}
