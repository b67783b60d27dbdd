package mock

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-go-golems/chat-relay/pkg/events"
	"github.com/go-go-golems/chat-relay/pkg/turns"
	"github.com/go-go-golems/chat-relay/pkg/upstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testScript = `
steps:
  - content: "Hel"
  - tool_calls:
      - id: call_1
        name: web_search
        arguments: '{"query":"go"}'
  - raw:
      unexpected: shape
  - delay: 1ms
    content: "lo"
  - error: "upstream exploded"
  - content: "never"
`

func drain(t *testing.T, s upstream.Stream) ([]events.ChatEvent, error) {
	t.Helper()
	var ret []events.ChatEvent
	for {
		ev, err := s.Recv()
		if err != nil {
			if err == io.EOF {
				return ret, nil
			}
			return ret, err
		}
		ret = append(ret, ev)
	}
}

func TestCannedResponseWordByWord(t *testing.T) {
	c := NewClient(Config{})
	sess, err := c.NewSession(context.Background(), upstream.SessionOptions{Model: "grok-4-fast"})
	require.NoError(t, err)
	sess.AppendUser("hello")

	stream, err := sess.Stream(context.Background())
	require.NoError(t, err)
	defer func() { _ = stream.Close() }()

	evs, err := drain(t, stream)
	require.NoError(t, err)

	var sb strings.Builder
	for _, ev := range evs {
		require.True(t, ev.HasContent())
		assert.True(t, strings.HasSuffix(ev.Content, " "))
		sb.WriteString(ev.Content)
	}
	assert.Equal(t, "This is a mock response from grok-4-fast. ", sb.String())

	_, err = sess.Stream(context.Background())
	require.ErrorIs(t, err, upstream.ErrStreamAlreadyStarted)
}

func TestScriptReplay(t *testing.T) {
	script, err := ParseScript([]byte(testScript))
	require.NoError(t, err)
	require.Len(t, script.Steps, 6)
	assert.Equal(t, time.Millisecond, script.Steps[3].Delay)

	c := NewClient(Config{Script: script})
	sess, err := c.NewSession(context.Background(), upstream.SessionOptions{
		Model:        "m",
		Capabilities: upstream.DefaultCapabilities,
	})
	require.NoError(t, err)

	stream, err := sess.Stream(context.Background())
	require.NoError(t, err)
	defer func() { _ = stream.Close() }()

	evs, err := drain(t, stream)
	require.Error(t, err)
	assert.Equal(t, "upstream exploded", err.Error())
	require.Len(t, evs, 4)

	assert.Equal(t, "Hel", evs[0].Content)
	assert.Empty(t, evs[1].Content)
	require.Len(t, evs[1].ToolCalls, 1)
	assert.Equal(t, "web_search", evs[1].ToolCalls[0].Name)
	assert.Equal(t, "map[unexpected:shape]", evs[2].Content)
	assert.Equal(t, "lo", evs[3].Content)
}

func TestSessionErrorAndValidation(t *testing.T) {
	c := NewClient(Config{Script: &Script{SessionError: "no capacity"}})
	_, err := c.NewSession(context.Background(), upstream.SessionOptions{Model: "m"})
	require.EqualError(t, err, "no capacity")

	_, err = NewClient(Config{}).NewSession(context.Background(), upstream.SessionOptions{})
	require.ErrorIs(t, err, upstream.ErrEmptyModel)
}

func TestStreamHonorsCancellation(t *testing.T) {
	c := NewClient(Config{Delay: time.Hour})
	sess, err := c.NewSession(context.Background(), upstream.SessionOptions{Model: "m"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := sess.Stream(ctx)
	require.NoError(t, err)
	cancel()

	_, err = stream.Recv()
	require.ErrorIs(t, err, context.Canceled)
	require.NoError(t, stream.Close())
}

func TestStreamTimeout(t *testing.T) {
	c := NewClient(Config{Delay: time.Hour})
	sess, err := c.NewSession(context.Background(), upstream.SessionOptions{Model: "m", Timeout: 10 * time.Millisecond})
	require.NoError(t, err)

	stream, err := sess.Stream(context.Background())
	require.NoError(t, err)
	defer func() { _ = stream.Close() }()

	_, err = stream.Recv()
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSessionsRecordHistory(t *testing.T) {
	c := NewClient(Config{Record: true})
	history := turns.NewConversationBuilder().
		WithSystemPrompt("sys").
		WithUserPrompt("q").
		Build()
	_, err := c.NewSession(context.Background(), upstream.SessionOptions{Model: "m", History: history})
	require.NoError(t, err)

	sessions := c.Sessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, history, sessions[0].Transcript().Turns())
	assert.Equal(t, "m", sessions[0].Options().Model)
}

func TestSessionsNotRetainedByDefault(t *testing.T) {
	c := NewClient(Config{})
	for i := 0; i < 100; i++ {
		s, err := c.NewSession(context.Background(), upstream.SessionOptions{Model: "m"})
		require.NoError(t, err)
		st, err := s.Stream(context.Background())
		require.NoError(t, err)
		require.NoError(t, st.Close())
	}
	assert.Empty(t, c.Sessions())
}

func TestLoadScript(t *testing.T) {
	path := filepath.Join(t.TempDir(), "script.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testScript), 0o644))
	s, err := LoadScript(path)
	require.NoError(t, err)
	assert.Len(t, s.Steps, 6)

	_, err = LoadScript(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	_, err = ParseScript([]byte("steps: [unclosed"))
	require.Error(t, err)
}

func TestExampleScript(t *testing.T) {
	s, err := LoadScript(filepath.Join("..", "..", "..", "examples", "mock-script.yaml"))
	require.NoError(t, err)
	require.Len(t, s.Steps, 5)
	assert.Equal(t, 300*time.Millisecond, s.Steps[0].Delay)
	require.Len(t, s.Steps[0].ToolCalls, 1)
	assert.Equal(t, "web_search", s.Steps[0].ToolCalls[0].Name)
	assert.Equal(t, "42", events.Normalize(s.Steps[4].Value()).Content)
}
