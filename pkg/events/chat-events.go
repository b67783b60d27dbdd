package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type EventType string

const (
	// EventTypeStart is published once the upstream session is open.
	EventTypeStart EventType = "start"
	// EventTypePartialCompletion carries one relayed content fragment.
	EventTypePartialCompletion EventType = "partial"
	// EventTypeThinkingDone marks the end of the thinking phase: the first
	// non-empty content fragment of a call.
	EventTypeThinkingDone EventType = "thinking-done"
	// EventTypeToolCall is a tool invocation requested by the provider. Tool
	// calls are observed only, they never reach the caller.
	EventTypeToolCall EventType = "tool-call"

	EventTypeError     EventType = "error"
	EventTypeInterrupt EventType = "interrupt"
	EventTypeFinal     EventType = "final"
)

type Event interface {
	Type() EventType
	Metadata() EventMetadata
	Payload() []byte
}

type EventImpl struct {
	Type_     EventType     `json:"type"`
	Metadata_ EventMetadata `json:"meta,omitempty"`

	// store payload if the event was deserialized from JSON (see NewEventFromJson), not further used
	payload []byte
}

func (e *EventImpl) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("type", string(e.Type_))
	ev.Object("meta", e.Metadata_)
}

func (e *EventImpl) Type() EventType {
	return e.Type_
}

func (e *EventImpl) Metadata() EventMetadata {
	return e.Metadata_
}

func (e *EventImpl) Payload() []byte {
	return e.payload
}

// SetPayload stores the raw JSON payload on the event implementation.
func (e *EventImpl) SetPayload(b []byte) {
	e.payload = b
}

var _ Event = &EventImpl{}

type EventStart struct {
	EventImpl
	// Capabilities lists the tools enabled on the upstream session.
	Capabilities []string `json:"capabilities,omitempty"`
}

func NewStartEvent(metadata EventMetadata, capabilities []string) *EventStart {
	return &EventStart{
		EventImpl: EventImpl{
			Type_:     EventTypeStart,
			Metadata_: metadata,
		},
		Capabilities: capabilities,
	}
}

var _ Event = &EventStart{}

// EventPartialCompletion is published for every chunk sent to the caller.
type EventPartialCompletion struct {
	EventImpl
	Delta string `json:"delta"`
	// Index is the zero based position of the chunk in the outbound stream.
	Index int `json:"index"`
}

func NewPartialCompletionEvent(metadata EventMetadata, delta string, index int) *EventPartialCompletion {
	return &EventPartialCompletion{
		EventImpl: EventImpl{
			Type_:     EventTypePartialCompletion,
			Metadata_: metadata,
		},
		Delta: delta,
		Index: index,
	}
}

var _ Event = &EventPartialCompletion{}

type EventThinkingDone struct {
	EventImpl
	// Duration is the time between the session start and the first content fragment.
	Duration time.Duration `json:"duration"`
	// SkippedEvents counts upstream events received while thinking.
	SkippedEvents int `json:"skipped_events"`
}

func NewThinkingDoneEvent(metadata EventMetadata, duration time.Duration, skipped int) *EventThinkingDone {
	return &EventThinkingDone{
		EventImpl: EventImpl{
			Type_:     EventTypeThinkingDone,
			Metadata_: metadata,
		},
		Duration:      duration,
		SkippedEvents: skipped,
	}
}

var _ Event = &EventThinkingDone{}

type EventToolCall struct {
	EventImpl
	ToolCall ToolCall `json:"tool_call"`
}

func NewToolCallEvent(metadata EventMetadata, toolCall ToolCall) *EventToolCall {
	return &EventToolCall{
		EventImpl: EventImpl{
			Type_:     EventTypeToolCall,
			Metadata_: metadata,
		},
		ToolCall: toolCall,
	}
}

var _ Event = &EventToolCall{}

type EventError struct {
	EventImpl
	ErrorString string `json:"error_string"`
	// Stage names the part of the call that failed (session, translate, stream, emit).
	Stage string `json:"stage,omitempty"`
	// Chunks is the number of chunks delivered before the failure.
	Chunks int `json:"chunks"`
}

func NewErrorEvent(metadata EventMetadata, stage string, err error, chunks int) *EventError {
	return &EventError{
		EventImpl: EventImpl{
			Type_:     EventTypeError,
			Metadata_: metadata,
		},
		ErrorString: err.Error(),
		Stage:       stage,
		Chunks:      chunks,
	}
}

var _ Event = &EventError{}

type EventInterrupt struct {
	EventImpl
	Chunks int `json:"chunks"`
}

func NewInterruptEvent(metadata EventMetadata, chunks int) *EventInterrupt {
	return &EventInterrupt{
		EventImpl: EventImpl{
			Type_:     EventTypeInterrupt,
			Metadata_: metadata,
		},
		Chunks: chunks,
	}
}

var _ Event = &EventInterrupt{}

type EventFinal struct {
	EventImpl
	Chunks    int `json:"chunks"`
	ToolCalls int `json:"tool_calls"`
}

func NewFinalEvent(metadata EventMetadata, chunks int, toolCalls int) *EventFinal {
	return &EventFinal{
		EventImpl: EventImpl{
			Type_:     EventTypeFinal,
			Metadata_: metadata,
		},
		Chunks:    chunks,
		ToolCalls: toolCalls,
	}
}

var _ Event = &EventFinal{}

// EventMetadata is attached to every event of one relayed call.
type EventMetadata struct {
	ID uuid.UUID `json:"message_id" yaml:"message_id" mapstructure:"message_id"`
	// CallID correlates all events of one inbound call.
	CallID string `json:"call_id,omitempty" yaml:"call_id,omitempty" mapstructure:"call_id"`
	Mode   string `json:"mode,omitempty" yaml:"mode,omitempty" mapstructure:"mode"`
	Model  string `json:"model,omitempty" yaml:"model,omitempty" mapstructure:"model"`
	// Elapsed is the time since the call started.
	Elapsed time.Duration `json:"elapsed,omitempty" yaml:"elapsed,omitempty" mapstructure:"elapsed"`
	// Extra carries provider-specific/context values
	Extra map[string]interface{} `json:"extra,omitempty" yaml:"extra,omitempty" mapstructure:"extra"`
}

func (em EventMetadata) MarshalZerologObject(e *zerolog.Event) {
	e.Str("message_id", em.ID.String())
	if em.CallID != "" {
		e.Str("call_id", em.CallID)
	}
	if em.Mode != "" {
		e.Str("mode", em.Mode)
	}
	if em.Model != "" {
		e.Str("model", em.Model)
	}
	if em.Elapsed > 0 {
		e.Dur("elapsed", em.Elapsed)
	}
	if len(em.Extra) > 0 {
		e.Dict("extra", zerolog.Dict().Fields(em.Extra))
	}
}

// NewEventFromJson decodes an event serialized by one of the sinks back into
// its typed form.
func NewEventFromJson(b []byte) (Event, error) {
	var e *EventImpl
	err := json.Unmarshal(b, &e)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, fmt.Errorf("empty event payload")
	}

	e.payload = b

	switch e.Type_ {
	case EventTypeStart:
		return decodeTyped[EventStart](e)
	case EventTypePartialCompletion:
		return decodeTyped[EventPartialCompletion](e)
	case EventTypeThinkingDone:
		return decodeTyped[EventThinkingDone](e)
	case EventTypeToolCall:
		return decodeTyped[EventToolCall](e)
	case EventTypeError:
		return decodeTyped[EventError](e)
	case EventTypeInterrupt:
		return decodeTyped[EventInterrupt](e)
	case EventTypeFinal:
		return decodeTyped[EventFinal](e)
	}

	return nil, fmt.Errorf("unknown event type: %s", e.Type_)
}

type payloadSetter interface {
	SetPayload([]byte)
}

func decodeTyped[T any](e Event) (Event, error) {
	ret, ok := ToTypedEvent[T](e)
	if !ok || ret == nil {
		return nil, fmt.Errorf("could not cast event to %T", ret)
	}
	ev, ok := any(ret).(Event)
	if !ok {
		return nil, fmt.Errorf("%T is not an event", ret)
	}
	if setter, ok := ev.(payloadSetter); ok {
		setter.SetPayload(e.Payload())
	}
	return ev, nil
}

func ToTypedEvent[T any](e Event) (*T, bool) {
	var ret *T
	err := json.Unmarshal(e.Payload(), &ret)
	if err != nil {
		return nil, false
	}

	return ret, true
}
