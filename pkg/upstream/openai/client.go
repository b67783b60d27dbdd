// Package openai binds the upstream contract to OpenAI compatible chat
// completion APIs. xAI serves the same API, which makes this the default
// provider.
package openai

import (
	"context"
	"net/http"

	"github.com/go-go-golems/chat-relay/pkg/upstream"
	"github.com/rs/zerolog/log"
	go_openai "github.com/sashabaranov/go-openai"
)

const (
	XAIBaseURL    = "https://api.x.ai/v1"
	OpenAIBaseURL = "https://api.openai.com/v1"
)

type Config struct {
	APIKey  string
	BaseURL string
	// HTTPClient overrides the transport, mostly for tests.
	HTTPClient *http.Client
}

type Client struct {
	client  *go_openai.Client
	baseURL string
}

var _ upstream.Client = (*Client)(nil)

func NewClient(config Config) (*Client, error) {
	if config.APIKey == "" {
		return nil, upstream.ErrMissingAPIKey
	}
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = XAIBaseURL
	}

	cfg := go_openai.DefaultConfig(config.APIKey)
	cfg.BaseURL = baseURL
	if config.HTTPClient != nil {
		cfg.HTTPClient = config.HTTPClient
	}

	return &Client{
		client:  go_openai.NewClientWithConfig(cfg),
		baseURL: baseURL,
	}, nil
}

// NewSession prepares a session without contacting the provider.
func (c *Client) NewSession(ctx context.Context, opts upstream.SessionOptions) (upstream.Session, error) {
	if opts.Model == "" {
		return nil, upstream.ErrEmptyModel
	}
	tools, err := makeTools(opts.Capabilities)
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("component", "upstream.openai").
		Str("base_url", c.baseURL).
		Str("model", opts.Model).
		Int("tool_count", len(tools)).
		Int("history", len(opts.History)).
		Msg("Created upstream session")

	return &Session{
		client:     c.client,
		opts:       opts,
		tools:      tools,
		transcript: upstream.NewTranscript(opts.History),
	}, nil
}

func makeTools(capabilities []string) ([]go_openai.Tool, error) {
	caps, err := upstream.ResolveCapabilities(capabilities)
	if err != nil {
		return nil, err
	}
	var ret []go_openai.Tool
	for _, c := range caps {
		ret = append(ret, go_openai.Tool{
			Type: go_openai.ToolTypeFunction,
			Function: &go_openai.FunctionDefinition{
				Name:        c.Name,
				Description: c.Description,
				Parameters:  c.Parameters,
			},
		})
	}
	return ret, nil
}

type Session struct {
	client     *go_openai.Client
	opts       upstream.SessionOptions
	tools      []go_openai.Tool
	transcript *upstream.Transcript
	started    bool
}

var _ upstream.Session = (*Session)(nil)

func (s *Session) AppendUser(content string) {
	s.transcript.AppendUser(content)
}

// Request builds the streaming completion request for the current transcript.
func (s *Session) Request() go_openai.ChatCompletionRequest {
	conv := s.transcript.Turns()
	messages := make([]go_openai.ChatCompletionMessage, 0, len(conv))
	for _, t := range conv {
		messages = append(messages, go_openai.ChatCompletionMessage{
			Role:    t.Role.String(),
			Content: t.Content,
		})
	}

	req := go_openai.ChatCompletionRequest{
		Model:    s.opts.Model,
		Messages: messages,
		Stream:   true,
	}
	if len(s.tools) > 0 {
		req.Tools = s.tools
		req.ToolChoice = "auto"
	}
	return req
}

func (s *Session) Stream(ctx context.Context) (upstream.Stream, error) {
	if s.started {
		return nil, upstream.ErrStreamAlreadyStarted
	}
	s.started = true

	req := s.Request()
	ctx, cancel := upstream.WithTimeout(ctx, s.opts.Timeout)

	log.Debug().
		Str("component", "upstream.openai").
		Str("model", req.Model).
		Int("messages", len(req.Messages)).
		Int("tools", len(req.Tools)).
		Msg("Starting upstream stream")

	stream, err := s.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		cancel()
		log.Error().Err(err).Str("component", "upstream.openai").Msg("Upstream streaming request failed")
		return nil, err
	}

	return &Stream{
		stream: stream,
		cancel: cancel,
		merger: NewToolCallMerger(),
	}, nil
}
