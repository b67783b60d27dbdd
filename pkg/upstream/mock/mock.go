// Package mock is an upstream provider that needs no network access. Without
// a script it streams a canned answer word by word; with a script it replays
// raw events, including malformed shapes and injected errors.
package mock

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/go-go-golems/chat-relay/pkg/upstream"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const DefaultDelay = 100 * time.Millisecond

// Token mimics a provider token object exposing its text through an accessor.
type Token struct {
	Text string
}

func (t Token) ChatContent() string {
	return t.Text
}

type Config struct {
	// Delay is waited before every event.
	Delay time.Duration
	// Script replaces the canned answer when set.
	Script *Script
	// Record keeps every created session for inspection by Sessions. Tests
	// only: a serving process must not hold finished calls.
	Record bool
}

type Client struct {
	config Config

	mu       sync.Mutex
	sessions []*Session
}

func NewClient(config Config) *Client {
	return &Client{config: config}
}

var _ upstream.Client = (*Client)(nil)

func (c *Client) NewSession(ctx context.Context, opts upstream.SessionOptions) (upstream.Session, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if c.config.Script != nil && c.config.Script.SessionError != "" {
		return nil, errors.New(c.config.Script.SessionError)
	}

	s := &Session{
		client:     c,
		opts:       opts,
		transcript: upstream.NewTranscript(opts.History),
	}
	if c.config.Record {
		c.mu.Lock()
		c.sessions = append(c.sessions, s)
		c.mu.Unlock()
	}

	log.Debug().
		Str("component", "upstream.mock").
		Str("model", opts.Model).
		Strs("capabilities", opts.Capabilities).
		Int("history", len(opts.History)).
		Msg("Created mock session")
	return s, nil
}

// Sessions returns the sessions created so far. It is always empty unless
// Config.Record is set.
func (c *Client) Sessions() []*Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Session{}, c.sessions...)
}

type Session struct {
	client     *Client
	opts       upstream.SessionOptions
	transcript *upstream.Transcript
	started    bool
}

var _ upstream.Session = (*Session)(nil)

func (s *Session) AppendUser(content string) {
	s.transcript.AppendUser(content)
}

func (s *Session) Options() upstream.SessionOptions {
	return s.opts
}

// Transcript is the conversation the session would send to a provider.
func (s *Session) Transcript() *upstream.Transcript {
	return s.transcript
}

func (s *Session) Stream(ctx context.Context) (upstream.Stream, error) {
	if s.started {
		return nil, upstream.ErrStreamAlreadyStarted
	}
	s.started = true

	var steps []Step
	if s.client.config.Script != nil {
		steps = s.client.config.Script.Steps
	} else {
		steps = cannedSteps(s.opts.Model)
	}

	ctx, cancel := upstream.WithTimeout(ctx, s.opts.Timeout)
	raw := &rawStream{
		ctx:    ctx,
		cancel: cancel,
		steps:  steps,
		delay:  s.client.config.Delay,
	}
	return upstream.NewNormalizingStream(raw), nil
}

func cannedSteps(model string) []Step {
	text := fmt.Sprintf("This is a mock response from %s.", model)
	words := strings.Fields(text)
	ret := make([]Step, 0, len(words))
	for _, w := range words {
		ret = append(ret, Step{Raw: Token{Text: w + " "}})
	}
	return ret
}

type rawStream struct {
	ctx    context.Context
	cancel context.CancelFunc
	steps  []Step
	delay  time.Duration
}

func (r *rawStream) RecvRaw() (any, error) {
	if len(r.steps) == 0 {
		return nil, io.EOF
	}
	step := r.steps[0]
	r.steps = r.steps[1:]

	delay := r.delay
	if step.Delay > 0 {
		delay = step.Delay
	}
	if delay > 0 {
		timer := time.NewTimer(delay)
		select {
		case <-r.ctx.Done():
			timer.Stop()
			return nil, r.ctx.Err()
		case <-timer.C:
		}
	} else if err := r.ctx.Err(); err != nil {
		return nil, err
	}

	if step.Error != "" {
		return nil, errors.New(step.Error)
	}
	return step.Value(), nil
}

func (r *rawStream) Close() error {
	r.cancel()
	return nil
}
