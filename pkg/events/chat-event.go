package events

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
)

// ToolCall describes one tool invocation requested by the upstream provider.
type ToolCall struct {
	ID        string `json:"id,omitempty" yaml:"id,omitempty"`
	Name      string `json:"name" yaml:"name"`
	Arguments string `json:"arguments,omitempty" yaml:"arguments,omitempty"`
}

// ChatEvent is the single shape every upstream binding normalizes into. Both
// fields are always present; an absent value upstream is the zero value here.
type ChatEvent struct {
	Content   string     `json:"content,omitempty" yaml:"content,omitempty"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty" yaml:"tool_calls,omitempty"`
}

func (e ChatEvent) HasContent() bool {
	return e.Content != ""
}

func (e ChatEvent) HasToolCalls() bool {
	return len(e.ToolCalls) > 0
}

// ContentProvider is implemented by upstream values exposing a content fragment.
type ContentProvider interface {
	ChatContent() string
}

// ToolCallProvider is implemented by upstream values exposing tool calls.
type ToolCallProvider interface {
	ChatToolCalls() []ToolCall
}

// Normalize converts a raw upstream value into a ChatEvent.
//
// Known shapes are ChatEvent, *ChatEvent, values implementing ContentProvider
// and/or ToolCallProvider, string, []byte and json.RawMessage (decoded as a
// ChatEvent object when possible). Anything else takes the fallback path: it
// is stringified with fmt.Sprint and used as content. Normalize never fails,
// an unknown shape must not abort a call.
func Normalize(v any) ChatEvent {
	switch tv := v.(type) {
	case nil:
		return ChatEvent{}
	case ChatEvent:
		return tv
	case *ChatEvent:
		if tv == nil {
			return ChatEvent{}
		}
		return *tv
	case string:
		return ChatEvent{Content: tv}
	case []byte:
		return ChatEvent{Content: string(tv)}
	case json.RawMessage:
		var ev ChatEvent
		if err := json.Unmarshal(tv, &ev); err == nil {
			return ev
		}
		return ChatEvent{Content: string(tv)}
	}

	cp, hasContent := v.(ContentProvider)
	tp, hasToolCalls := v.(ToolCallProvider)
	if hasContent || hasToolCalls {
		// a nil pointer to a provider type carries nothing; calling a value
		// method through it would panic
		if isNilPointer(v) {
			return ChatEvent{}
		}
		ev := ChatEvent{}
		if hasContent {
			ev.Content = cp.ChatContent()
		}
		if hasToolCalls {
			ev.ToolCalls = tp.ChatToolCalls()
		}
		return ev
	}

	s := fmt.Sprint(v)
	log.Warn().
		Str("component", "events.normalize").
		Str("go_type", fmt.Sprintf("%T", v)).
		Int("length", len(s)).
		Msg("Unknown upstream event shape, relaying its string form")
	return ChatEvent{Content: s}
}

func isNilPointer(v any) bool {
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Ptr && rv.IsNil()
}

// ArgumentsPreview shortens tool call arguments for logging.
func (tc ToolCall) ArgumentsPreview(max int) string {
	return Truncate(strings.TrimSpace(tc.Arguments), max)
}

// Truncate cuts s to at most max bytes without splitting a rune and marks the
// cut with an ellipsis. A non-positive max leaves s unchanged.
func Truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}
