package server

import (
	"github.com/go-go-golems/chat-relay/pkg/config"
	"github.com/go-go-golems/chat-relay/pkg/upstream"
	"github.com/go-go-golems/chat-relay/pkg/upstream/mock"
	"github.com/go-go-golems/chat-relay/pkg/upstream/openai"
	"github.com/pkg/errors"
)

// NewUpstreamClient builds the provider client selected by the settings.
func NewUpstreamClient(s *config.Settings) (upstream.Client, error) {
	switch s.Upstream.Provider {
	case config.ProviderXAI, config.ProviderOpenAI:
		baseURL := s.Upstream.BaseURL
		if baseURL == "" {
			baseURL = openai.XAIBaseURL
			if s.Upstream.Provider == config.ProviderOpenAI {
				baseURL = openai.OpenAIBaseURL
			}
		}
		return openai.NewClient(openai.Config{
			APIKey:  s.Upstream.APIKey,
			BaseURL: baseURL,
		})

	case config.ProviderMock:
		cfg := mock.Config{Delay: s.Upstream.MockDelay}
		if s.Upstream.MockScript != "" {
			script, err := mock.LoadScript(s.Upstream.MockScript)
			if err != nil {
				return nil, err
			}
			cfg.Script = script
		}
		return mock.NewClient(cfg), nil
	}
	return nil, errors.Errorf("unknown upstream provider %q", s.Upstream.Provider)
}
