package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-go-golems/chat-relay/pkg/upstream"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	ConfigureEnv(v)
	return v
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("XAI_API_KEY", "from-env")
	s, err := Load(newViper())
	require.NoError(t, err)

	assert.Equal(t, ":50051", s.Server.Listen)
	assert.Equal(t, 10, s.Server.MaxConcurrentStreams)
	assert.True(t, s.Server.Metrics)
	assert.Equal(t, "grok-4-fast", s.Upstream.Model)
	assert.Equal(t, ProviderXAI, s.Upstream.Provider)
	assert.Equal(t, upstream.DefaultCapabilities, s.Upstream.Tools)
	assert.Equal(t, "from-env", s.Upstream.APIKey)
	assert.Equal(t, "chat-relay.events", s.Events.Topic)
	require.NoError(t, s.Validate())
}

func TestLoad_ConfigFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  listen: ":6000"
  max-concurrent-streams: 3
upstream:
  provider: Mock
  timeout: 30s
  tools: [web_search]
bridge:
  listen: ":8080"
`), 0o644))

	t.Setenv("CHAT_RELAY_UPSTREAM_MODEL", "grok-3")
	v := newViper()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	s, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, ":6000", s.Server.Listen)
	assert.Equal(t, 3, s.Server.MaxConcurrentStreams)
	assert.Equal(t, ProviderMock, s.Upstream.Provider)
	assert.Equal(t, 30*time.Second, s.Upstream.Timeout)
	assert.Equal(t, []string{"web_search"}, s.Upstream.Tools)
	assert.Equal(t, "grok-3", s.Upstream.Model)
	assert.Equal(t, ":8080", s.Bridge.Listen)
	require.NoError(t, s.Validate())
}

func TestValidate(t *testing.T) {
	t.Setenv("XAI_API_KEY", "")

	s := NewSettings()
	require.ErrorIs(t, s.Validate(), upstream.ErrMissingAPIKey)

	s.Upstream.Provider = ProviderMock
	require.NoError(t, s.Validate())

	bad := s.Clone()
	bad.Upstream.Model = ""
	require.ErrorIs(t, bad.Validate(), upstream.ErrEmptyModel)

	bad = s.Clone()
	bad.Upstream.Provider = "anthropic"
	require.Error(t, bad.Validate())

	bad = s.Clone()
	bad.Upstream.Tools = []string{"web_search", "mind_reading"}
	require.ErrorIs(t, bad.Validate(), upstream.ErrUnknownCapability)

	bad = s.Clone()
	bad.Upstream.Tools = nil
	require.Error(t, bad.Validate())

	bad = s.Clone()
	bad.Server.MaxConcurrentStreams = 0
	require.Error(t, bad.Validate())
}

func TestCloneAndRedacted(t *testing.T) {
	s := NewSettings()
	s.Upstream.APIKey = "secret"

	c := s.Clone()
	c.Upstream.Tools[0] = "changed"
	assert.Equal(t, upstream.CapabilityWebSearch, s.Upstream.Tools[0])

	r := s.Redacted()
	assert.Equal(t, "***", r.Upstream.APIKey)
	assert.Equal(t, "secret", s.Upstream.APIKey)
}
