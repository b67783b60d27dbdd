// Package upstream defines the contract between the relay and a streaming
// conversational model provider.
//
// A Client opens one Session per inbound call. The session collects the
// conversation (either as history at creation time or through AppendUser) and
// produces a Stream of events.ChatEvent values once Stream is called. Nothing
// in this package waits for the provider before Stream.
package upstream

import (
	"context"
	"time"

	"github.com/go-go-golems/chat-relay/pkg/events"
	"github.com/go-go-golems/chat-relay/pkg/turns"
	"github.com/pkg/errors"
)

var (
	ErrMissingAPIKey        = errors.New("missing upstream api key")
	ErrEmptyModel           = errors.New("upstream model identifier is empty")
	ErrUnknownCapability    = errors.New("unknown upstream capability")
	ErrStreamAlreadyStarted = errors.New("session stream already started")
)

// SessionOptions configures a single upstream session.
type SessionOptions struct {
	// Model is the process-wide model identifier.
	Model string
	// Capabilities names the server-side tools enabled for the session. Empty
	// means a plain chat session.
	Capabilities []string
	// History seeds the session with prior turns, in order.
	History turns.Conversation
	// Timeout bounds the whole stream. Zero disables it.
	Timeout time.Duration
}

func (o SessionOptions) Validate() error {
	if o.Model == "" {
		return ErrEmptyModel
	}
	_, err := ResolveCapabilities(o.Capabilities)
	return err
}

// Client creates sessions. Implementations must be safe for concurrent use.
type Client interface {
	NewSession(ctx context.Context, opts SessionOptions) (Session, error)
}

// Session is owned by exactly one call and is never shared.
type Session interface {
	// AppendUser adds a user turn to the session conversation.
	AppendUser(content string)
	// Stream starts the provider request. It may be called once.
	Stream(ctx context.Context) (Stream, error)
}

// Stream yields events in provider order. Recv returns io.EOF after the last
// event.
type Stream interface {
	Recv() (events.ChatEvent, error)
	Close() error
}

// ClientFunc adapts a function to the Client interface.
type ClientFunc func(ctx context.Context, opts SessionOptions) (Session, error)

func (f ClientFunc) NewSession(ctx context.Context, opts SessionOptions) (Session, error) {
	return f(ctx, opts)
}

// Transcript is the conversation state shared by the provider sessions.
type Transcript struct {
	turns turns.Conversation
}

func NewTranscript(history turns.Conversation) *Transcript {
	return &Transcript{turns: history.Clone()}
}

func (t *Transcript) Append(role turns.Role, content string) {
	t.turns = append(t.turns, turns.Turn{Role: role, Content: content})
}

func (t *Transcript) AppendUser(content string) {
	t.Append(turns.RoleUser, content)
}

func (t *Transcript) Turns() turns.Conversation {
	return t.turns.Clone()
}

func (t *Transcript) Len() int {
	return len(t.turns)
}

// WithTimeout derives the stream context for a session. The returned cancel
// function must be called when the stream is closed.
func WithTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
