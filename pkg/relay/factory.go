package relay

import (
	"context"
	"time"

	"github.com/go-go-golems/chat-relay/pkg/turns"
	"github.com/go-go-golems/chat-relay/pkg/upstream"
)

// SessionFactory builds one upstream session per call, bound to the process
// wide model and capability set.
type SessionFactory struct {
	client       upstream.Client
	model        string
	capabilities []string
	timeout      time.Duration
}

type FactoryOption func(*SessionFactory)

func WithCapabilities(names ...string) FactoryOption {
	return func(f *SessionFactory) {
		f.capabilities = append([]string{}, names...)
	}
}

func WithTimeout(timeout time.Duration) FactoryOption {
	return func(f *SessionFactory) {
		f.timeout = timeout
	}
}

func NewSessionFactory(client upstream.Client, model string, options ...FactoryOption) *SessionFactory {
	f := &SessionFactory{
		client:       client,
		model:        model,
		capabilities: append([]string{}, upstream.DefaultCapabilities...),
	}
	for _, o := range options {
		o(f)
	}
	return f
}

func (f *SessionFactory) Model() string {
	return f.model
}

// Capabilities returns the capability set used for tool-augmented sessions.
func (f *SessionFactory) Capabilities() []string {
	return append([]string{}, f.capabilities...)
}

// Create opens the session. It does not wait for any upstream event.
func (f *SessionFactory) Create(ctx context.Context, mode Mode, conv turns.Conversation) (upstream.Session, error) {
	opts := upstream.SessionOptions{
		Model:   f.model,
		History: mode.History(conv),
		Timeout: f.timeout,
	}
	if mode.UsesTools() {
		if len(f.capabilities) == 0 {
			return nil, ErrNoCapabilities
		}
		opts.Capabilities = f.Capabilities()
	}

	s, err := f.client.NewSession(ctx, opts)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, ErrNoSession
	}
	return s, nil
}
