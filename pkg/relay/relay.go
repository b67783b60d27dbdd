// Package relay turns one inbound conversation into one upstream session and
// forwards the session's content fragments, in order, as outbound chunks.
package relay

import (
	"context"
	"io"
	"time"

	"github.com/go-go-golems/chat-relay/pkg/events"
	"github.com/go-go-golems/chat-relay/pkg/turns"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// EmitFunc delivers one non-empty chunk to the caller.
type EmitFunc func(chunk string) error

// Call is one inbound request.
type Call struct {
	// ID correlates logs and events of the call. Generated when empty.
	ID           string
	Mode         Mode
	Conversation turns.Conversation
}

type Relay struct {
	factory *SessionFactory
	sinks   []events.EventSink
	now     func() time.Time
}

type Option func(*Relay)

func WithEventSinks(sinks ...events.EventSink) Option {
	return func(r *Relay) {
		r.sinks = append(r.sinks, sinks...)
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Relay) {
		r.now = now
	}
}

func New(factory *SessionFactory, options ...Option) *Relay {
	r := &Relay{
		factory: factory,
		now:     time.Now,
	}
	for _, o := range options {
		o(r)
	}
	return r
}

func (r *Relay) Factory() *SessionFactory {
	return r.factory
}

// Run relays one call. Every chunk is passed to emit as soon as its event is
// received. A nil error means the upstream sequence ended normally; any other
// outcome is returned as an *Error. Chunks already emitted stay delivered.
func (r *Relay) Run(ctx context.Context, call Call, emit EmitFunc) (*State, error) {
	mode := call.Mode
	if mode == nil {
		mode = ModeSimple
	}
	if call.ID == "" {
		call.ID = uuid.NewString()
	}

	state := NewState(r.now())
	meta := events.EventMetadata{
		ID:     uuid.New(),
		CallID: call.ID,
		Mode:   mode.Name(),
		Model:  r.factory.Model(),
	}
	logger := log.With().
		Str("component", "relay").
		Str("call_id", call.ID).
		Str("mode", mode.Name()).
		Logger()
	logger.Debug().
		Int("turns", len(call.Conversation)).
		Interface("roles", call.Conversation.CountByRole()).
		Msg("Relaying call")

	session, err := r.factory.Create(ctx, mode, call.Conversation)
	if err != nil {
		return state, r.fail(ctx, logger, meta, state, StageSession, err)
	}
	if err := mode.Seed(session, call.Conversation); err != nil {
		return state, r.fail(ctx, logger, meta, state, StageTranslate, err)
	}

	stream, err := session.Stream(ctx)
	if err != nil {
		return state, r.fail(ctx, logger, meta, state, StageStream, err)
	}
	if stream == nil {
		return state, r.fail(ctx, logger, meta, state, StageStream, ErrNoStream)
	}
	defer func() {
		if err := stream.Close(); err != nil {
			logger.Debug().Err(err).Msg("Failed to close upstream stream")
		}
	}()

	var capabilities []string
	if mode.UsesTools() {
		capabilities = r.factory.Capabilities()
	}
	r.publish(ctx, events.NewStartEvent(r.stamp(meta, state), capabilities))

	for {
		if err := ctx.Err(); err != nil {
			return state, r.interrupt(ctx, logger, meta, state, err)
		}

		ev, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			logger.Debug().
				Int("events", state.Events()).
				Int("chunks", state.Chunks()).
				Int("tool_calls", state.ToolCalls()).
				Msg("Upstream stream completed")
			r.publish(ctx, events.NewFinalEvent(r.stamp(meta, state), state.Chunks(), state.ToolCalls()))
			return state, nil
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return state, r.interrupt(ctx, logger, meta, state, ctxErr)
			}
			return state, r.fail(ctx, logger, meta, state, StageStream, err)
		}
		if err := ctx.Err(); err != nil {
			return state, r.interrupt(ctx, logger, meta, state, err)
		}

		emitChunk, flipped := state.Observe(ev, r.now())

		for _, tc := range ev.ToolCalls {
			logger.Debug().
				Str("tool_id", tc.ID).
				Str("name", tc.Name).
				Str("arguments", tc.ArgumentsPreview(200)).
				Msg("Upstream tool call")
			r.publish(ctx, events.NewToolCallEvent(r.stamp(meta, state), tc))
		}

		if !emitChunk {
			continue
		}
		if flipped {
			logger.Debug().
				Dur("thinking", state.ThinkingDuration()).
				Int("skipped_events", state.SkippedEvents()).
				Msg("Thinking phase done")
			r.publish(ctx, events.NewThinkingDoneEvent(r.stamp(meta, state), state.ThinkingDuration(), state.SkippedEvents()))
		}

		if err := emit(ev.Content); err != nil {
			return state, r.fail(ctx, logger, meta, state, StageEmit, err)
		}
		state.recordChunk()
		r.publish(ctx, events.NewPartialCompletionEvent(r.stamp(meta, state), ev.Content, state.Chunks()-1))
	}
}

func (r *Relay) stamp(meta events.EventMetadata, state *State) events.EventMetadata {
	meta.ID = uuid.New()
	meta.Elapsed = state.Elapsed(r.now())
	return meta
}

func (r *Relay) fail(
	ctx context.Context,
	logger zerolog.Logger,
	meta events.EventMetadata,
	state *State,
	stage Stage,
	err error,
) error {
	logger.Error().
		Err(err).
		Str("stage", string(stage)).
		Int("chunks", state.Chunks()).
		Msg("Relay call failed")
	r.publish(ctx, events.NewErrorEvent(r.stamp(meta, state), string(stage), err, state.Chunks()))
	return newError(stage, err)
}

func (r *Relay) interrupt(
	ctx context.Context,
	logger zerolog.Logger,
	meta events.EventMetadata,
	state *State,
	err error,
) error {
	logger.Debug().Err(err).Int("chunks", state.Chunks()).Msg("Relay call cancelled")
	r.publish(ctx, events.NewInterruptEvent(r.stamp(meta, state), state.Chunks()))
	return newError(StageStream, err)
}

// publish sends the event to the relay sinks and to any sinks carried in ctx.
func (r *Relay) publish(ctx context.Context, event events.Event) {
	events.PublishToSinks(event, r.sinks...)
	events.PublishEventToContext(ctx, event)
}
