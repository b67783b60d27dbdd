package events

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/chat-relay/pkg/helpers"
)

// EventRouter owns an in-process pub/sub and a watermill router dispatching
// relay events to diagnostic handlers. Publishing never waits for handlers.
type EventRouter struct {
	logger     watermill.LoggerAdapter
	Publisher  message.Publisher
	Subscriber message.Subscriber
	router     *message.Router
	verbose    bool
	buffer     int64
}

type EventRouterOption func(*EventRouter)

func WithLogger(logger watermill.LoggerAdapter) EventRouterOption {
	return func(r *EventRouter) {
		r.logger = logger
	}
}

func WithVerbose(verbose bool) EventRouterOption {
	return func(r *EventRouter) {
		r.verbose = verbose
		r.logger = helpers.NewWatermill(log.Logger)
	}
}

// WithBufferSize sets the per-subscriber output buffer of the in-process pub/sub.
func WithBufferSize(size int64) EventRouterOption {
	return func(r *EventRouter) {
		r.buffer = size
	}
}

func NewEventRouter(options ...EventRouterOption) (*EventRouter, error) {
	ret := &EventRouter{
		logger: watermill.NopLogger{},
		buffer: 256,
	}

	for _, o := range options {
		o(ret)
	}

	goPubSub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: ret.buffer,
	}, ret.logger)
	ret.Publisher = goPubSub
	ret.Subscriber = goPubSub

	router, err := message.NewRouter(message.RouterConfig{}, ret.logger)
	if err != nil {
		return nil, err
	}

	ret.router = router

	return ret, nil
}

// Sink returns an EventSink publishing into this router on the given topic.
func (e *EventRouter) Sink(topic string) *WatermillSink {
	return NewWatermillSink(e.Publisher, topic)
}

func (e *EventRouter) Close() error {
	log.Debug().Msg("Closing publisher")
	err := e.Publisher.Close()
	if err != nil {
		log.Error().Err(err).Msg("Failed to close pubsub")
		// not returning just yet
	}
	log.Debug().Msg("Publisher closed")

	log.Debug().Msg("Closing router")
	err = e.router.Close()
	if err != nil {
		log.Error().Err(err).Msg("Failed to close router")
	}
	log.Debug().Msg("Router closed")

	return nil
}

func (e *EventRouter) AddHandler(name string, topic string, f func(msg *message.Message) error) {
	e.router.AddNoPublisherHandler(name, topic, e.Subscriber, f)
}

// LogToolCalls records every tool call seen on the topic. Tool calls are
// never forwarded to callers; this log is where they end up.
func (e *EventRouter) LogToolCalls(msg *message.Message) error {
	defer msg.Ack()

	if t := msg.Metadata.Get(MetadataEventType); t != "" && t != string(EventTypeToolCall) {
		return nil
	}

	ev, err := NewEventFromJson(msg.Payload)
	if err != nil {
		log.Warn().Err(err).Str("message_id", msg.UUID).Msg("Failed to decode relay event")
		return nil
	}
	tc, ok := ev.(*EventToolCall)
	if !ok {
		return nil
	}
	log.Info().
		Str("call_id", tc.Metadata().CallID).
		Str("mode", tc.Metadata().Mode).
		Str("tool_id", tc.ToolCall.ID).
		Str("name", tc.ToolCall.Name).
		Str("arguments", tc.ToolCall.ArgumentsPreview(200)).
		Msg("Upstream requested tool call")
	return nil
}

// DumpRawEvents logs every event payload. Without verbose, metadata is
// reduced to the call id.
func (e *EventRouter) DumpRawEvents(msg *message.Message) error {
	defer msg.Ack()

	ev, err := NewEventFromJson(msg.Payload)
	if err != nil {
		log.Warn().Err(err).Str("message_id", msg.UUID).Msg("Failed to decode relay event")
		return nil
	}
	l := log.Debug().
		Str("event_type", string(ev.Type())).
		Str("call_id", ev.Metadata().CallID)
	if e.verbose {
		l = l.RawJSON("payload", msg.Payload)
	}
	l.Msg("Relay event")
	return nil
}

func (e *EventRouter) Running() chan struct{} {
	return e.router.Running()
}

func (e *EventRouter) IsRunning() bool {
	return e.router.IsRunning()
}

func (e *EventRouter) Run(ctx context.Context) error {
	return e.router.Run(ctx)
}
