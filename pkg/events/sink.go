package events

import (
	"github.com/rs/zerolog/log"
)

// EventSink represents a destination for relay events.
// Implementations can publish events to different backends like watermill,
// metrics or logging.
type EventSink interface {
	// PublishEvent publishes an event to the sink.
	// Returns an error if the event could not be published.
	PublishEvent(event Event) error
}

// NullSink is a no-op EventSink implementation that discards all events.
type NullSink struct{}

func NewNullSink() *NullSink {
	return &NullSink{}
}

func (n *NullSink) PublishEvent(event Event) error {
	return nil
}

var _ EventSink = (*NullSink)(nil)

// SinkFunc adapts a function to the EventSink interface.
type SinkFunc func(event Event) error

func (f SinkFunc) PublishEvent(event Event) error {
	return f(event)
}

// LogSink writes every event to the global zerolog logger at debug level.
type LogSink struct{}

func (LogSink) PublishEvent(event Event) error {
	log.Debug().
		Str("component", "events.log_sink").
		Str("event_type", string(event.Type())).
		Object("meta", event.Metadata()).
		Msg("Relay event")
	return nil
}

var _ EventSink = LogSink{}

// PublishToSinks publishes the event to every sink. Sink failures are logged
// and never interrupt the caller.
func PublishToSinks(event Event, sinks ...EventSink) {
	for _, sink := range sinks {
		if sink == nil {
			continue
		}
		if err := sink.PublishEvent(event); err != nil {
			log.Warn().Err(err).Str("event_type", string(event.Type())).Msg("Failed to publish event to sink")
		}
	}
}
