package events

import (
	"context"
)

type sinksKey struct{}

// WithEventSinks returns a context carrying sinks in addition to those already
// attached. Callers use it to observe a single relay call, e.g. a test or a
// request-scoped recorder.
func WithEventSinks(ctx context.Context, sinks ...EventSink) context.Context {
	if len(sinks) == 0 {
		return ctx
	}
	existing := GetEventSinks(ctx)
	combined := make([]EventSink, 0, len(existing)+len(sinks))
	combined = append(combined, existing...)
	combined = append(combined, sinks...)
	return context.WithValue(ctx, sinksKey{}, combined)
}

func GetEventSinks(ctx context.Context) []EventSink {
	sinks, _ := ctx.Value(sinksKey{}).([]EventSink)
	return sinks
}

// PublishEventToContext publishes to the sinks carried by ctx. Sink failures
// are logged and never reach the relay loop.
func PublishEventToContext(ctx context.Context, event Event) {
	PublishToSinks(event, GetEventSinks(ctx)...)
}
