package relay

import (
	"context"
	"io"
	"sync"

	"github.com/go-go-golems/chat-relay/pkg/events"
	"github.com/go-go-golems/chat-relay/pkg/turns"
	"github.com/go-go-golems/chat-relay/pkg/upstream"
)

type fakeClient struct {
	newSession func(ctx context.Context, opts upstream.SessionOptions) (upstream.Session, error)

	mu       sync.Mutex
	opts     []upstream.SessionOptions
	sessions []*fakeSession
}

func (c *fakeClient) NewSession(ctx context.Context, opts upstream.SessionOptions) (upstream.Session, error) {
	c.mu.Lock()
	c.opts = append(c.opts, opts)
	c.mu.Unlock()
	s, err := c.newSession(ctx, opts)
	if fs, ok := s.(*fakeSession); ok {
		c.mu.Lock()
		c.sessions = append(c.sessions, fs)
		c.mu.Unlock()
	}
	return s, err
}

// scripted returns a client whose sessions stream the given steps.
func scripted(steps ...step) *fakeClient {
	return &fakeClient{newSession: func(ctx context.Context, opts upstream.SessionOptions) (upstream.Session, error) {
		return &fakeSession{history: opts.History, steps: steps}, nil
	}}
}

type step struct {
	ev  events.ChatEvent
	err error
	// before runs before the step is returned, e.g. to cancel the call.
	before func()
}

func content(s string) step {
	return step{ev: events.ChatEvent{Content: s}}
}

func toolCall(name string) step {
	return step{ev: events.ChatEvent{ToolCalls: []events.ToolCall{{ID: "call_" + name, Name: name, Arguments: "{}"}}}}
}

func failure(err error) step {
	return step{err: err}
}

type fakeSession struct {
	history  turns.Conversation
	appended []string
	steps    []step
	streamed bool
	stream   *fakeStream
}

func (s *fakeSession) AppendUser(content string) {
	s.appended = append(s.appended, content)
}

func (s *fakeSession) Stream(ctx context.Context) (upstream.Stream, error) {
	s.streamed = true
	s.stream = &fakeStream{steps: s.steps}
	return s.stream, nil
}

type fakeStream struct {
	steps  []step
	recvs  int
	closed bool
}

func (s *fakeStream) Recv() (events.ChatEvent, error) {
	s.recvs++
	if len(s.steps) == 0 {
		return events.ChatEvent{}, io.EOF
	}
	st := s.steps[0]
	s.steps = s.steps[1:]
	if st.before != nil {
		st.before()
	}
	return st.ev, st.err
}

func (s *fakeStream) Close() error {
	s.closed = true
	return nil
}

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) PublishEvent(e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	ret := make([]events.EventType, 0, len(r.events))
	for _, e := range r.events {
		ret = append(ret, e.Type())
	}
	return ret
}

type chunks []string

func (c *chunks) emit(chunk string) error {
	*c = append(*c, chunk)
	return nil
}
