package config

import (
	"os"
	"strings"
	"time"

	"github.com/go-go-golems/chat-relay/pkg/upstream"
	"github.com/huandu/go-clone"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	ProviderXAI    = "xai"
	ProviderOpenAI = "openai"
	ProviderMock   = "mock"
)

// EnvPrefix is the prefix of environment variables overriding settings.
const EnvPrefix = "CHAT_RELAY"

type ServerSettings struct {
	Listen               string        `mapstructure:"listen" yaml:"listen"`
	MaxConcurrentStreams int           `mapstructure:"max-concurrent-streams" yaml:"max-concurrent-streams"`
	Metrics              bool          `mapstructure:"metrics" yaml:"metrics"`
	ShutdownTimeout      time.Duration `mapstructure:"shutdown-timeout" yaml:"shutdown-timeout"`
}

type BridgeSettings struct {
	// Listen enables the SSE bridge when set.
	Listen      string `mapstructure:"listen" yaml:"listen"`
	AllowOrigin string `mapstructure:"allow-origin" yaml:"allow-origin"`
	// RelayURL is the chat service the bridge calls. Defaults to the local server.
	RelayURL string `mapstructure:"relay-url" yaml:"relay-url"`
}

type UpstreamSettings struct {
	Provider   string        `mapstructure:"provider" yaml:"provider"`
	Model      string        `mapstructure:"model" yaml:"model"`
	BaseURL    string        `mapstructure:"base-url" yaml:"base-url"`
	APIKey     string        `mapstructure:"api-key" yaml:"api-key"`
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Tools      []string      `mapstructure:"tools" yaml:"tools"`
	MockScript string        `mapstructure:"mock-script" yaml:"mock-script"`
	MockDelay  time.Duration `mapstructure:"mock-delay" yaml:"mock-delay"`
}

type EventsSettings struct {
	Topic string `mapstructure:"topic" yaml:"topic"`
	// Debug dumps every relay event through the event router.
	Debug bool `mapstructure:"debug" yaml:"debug"`
}

type Settings struct {
	Server   ServerSettings   `mapstructure:"server" yaml:"server"`
	Bridge   BridgeSettings   `mapstructure:"bridge" yaml:"bridge"`
	Upstream UpstreamSettings `mapstructure:"upstream" yaml:"upstream"`
	Events   EventsSettings   `mapstructure:"events" yaml:"events"`
}

func NewSettings() *Settings {
	return &Settings{
		Server: ServerSettings{
			Listen:               ":50051",
			MaxConcurrentStreams: 10,
			Metrics:              true,
			ShutdownTimeout:      10 * time.Second,
		},
		Bridge: BridgeSettings{
			AllowOrigin: "*",
		},
		Upstream: UpstreamSettings{
			Provider:  ProviderXAI,
			Model:     "grok-4-fast",
			Tools:     append([]string{}, upstream.DefaultCapabilities...),
			MockDelay: 100 * time.Millisecond,
		},
		Events: EventsSettings{
			Topic: "chat-relay.events",
		},
	}
}

// SetDefaults registers every setting with its default value, which also makes
// them visible to AutomaticEnv.
func SetDefaults(v *viper.Viper) {
	d := NewSettings()
	v.SetDefault("server.listen", d.Server.Listen)
	v.SetDefault("server.max-concurrent-streams", d.Server.MaxConcurrentStreams)
	v.SetDefault("server.metrics", d.Server.Metrics)
	v.SetDefault("server.shutdown-timeout", d.Server.ShutdownTimeout)
	v.SetDefault("bridge.listen", d.Bridge.Listen)
	v.SetDefault("bridge.allow-origin", d.Bridge.AllowOrigin)
	v.SetDefault("bridge.relay-url", d.Bridge.RelayURL)
	v.SetDefault("upstream.provider", d.Upstream.Provider)
	v.SetDefault("upstream.model", d.Upstream.Model)
	v.SetDefault("upstream.base-url", d.Upstream.BaseURL)
	v.SetDefault("upstream.api-key", d.Upstream.APIKey)
	v.SetDefault("upstream.timeout", d.Upstream.Timeout)
	v.SetDefault("upstream.tools", d.Upstream.Tools)
	v.SetDefault("upstream.mock-script", d.Upstream.MockScript)
	v.SetDefault("upstream.mock-delay", d.Upstream.MockDelay)
	v.SetDefault("events.topic", d.Events.Topic)
	v.SetDefault("events.debug", d.Events.Debug)
}

// ConfigureEnv makes CHAT_RELAY_SERVER_LISTEN override server.listen and so on.
func ConfigureEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
}

// Load decodes the settings from v and fills provider specific fallbacks.
func Load(v *viper.Viper) (*Settings, error) {
	s := NewSettings()
	if err := v.Unmarshal(s); err != nil {
		return nil, errors.Wrap(err, "could not decode settings")
	}
	s.applyFallbacks()
	return s, nil
}

func (s *Settings) applyFallbacks() {
	s.Upstream.Provider = strings.ToLower(strings.TrimSpace(s.Upstream.Provider))
	if s.Upstream.APIKey != "" {
		return
	}
	switch s.Upstream.Provider {
	case ProviderXAI:
		s.Upstream.APIKey = os.Getenv("XAI_API_KEY")
	case ProviderOpenAI:
		s.Upstream.APIKey = os.Getenv("OPENAI_API_KEY")
	}
}

func (s *Settings) Validate() error {
	if s.Upstream.Model == "" {
		return upstream.ErrEmptyModel
	}
	switch s.Upstream.Provider {
	case ProviderXAI, ProviderOpenAI:
		if s.Upstream.APIKey == "" {
			return errors.Wrapf(upstream.ErrMissingAPIKey, "provider %s", s.Upstream.Provider)
		}
	case ProviderMock:
	default:
		return errors.Errorf("unknown upstream provider %q", s.Upstream.Provider)
	}
	if len(s.Upstream.Tools) == 0 {
		return errors.New("upstream.tools must name at least one capability")
	}
	if _, err := upstream.ResolveCapabilities(s.Upstream.Tools); err != nil {
		return err
	}
	if s.Server.MaxConcurrentStreams <= 0 {
		return errors.Errorf("server.max-concurrent-streams must be positive, got %d", s.Server.MaxConcurrentStreams)
	}
	if s.Upstream.Timeout < 0 {
		return errors.New("upstream.timeout must not be negative")
	}
	return nil
}

func (s *Settings) Clone() *Settings {
	return clone.Clone(s).(*Settings)
}

// Redacted returns a copy safe for printing.
func (s *Settings) Redacted() *Settings {
	ret := s.Clone()
	if ret.Upstream.APIKey != "" {
		ret.Upstream.APIKey = "***"
	}
	return ret
}
