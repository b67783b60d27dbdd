package bridge

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"connectrpc.com/connect"
	"github.com/go-go-golems/chat-relay/pkg/events"
	"github.com/go-go-golems/chat-relay/pkg/relay"
	"github.com/go-go-golems/chat-relay/pkg/service"
	"github.com/go-go-golems/chat-relay/pkg/upstream/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bridgeFixture struct {
	url  string
	mock *mock.Client
}

func newBridge(t *testing.T, script *mock.Script) *bridgeFixture {
	t.Helper()
	mc := mock.NewClient(mock.Config{Script: script, Record: true})
	r := relay.New(relay.NewSessionFactory(mc, "grok-4-fast"))

	mux := http.NewServeMux()
	path, handler := service.NewChatServiceHandler(
		service.NewService(r),
		connect.WithInterceptors(service.NewLoggingInterceptor()),
	)
	mux.Handle(path, handler)
	relaySrv := httptest.NewServer(mux)
	t.Cleanup(relaySrv.Close)

	client := service.NewChatServiceClient(relaySrv.Client(), relaySrv.URL)
	bridgeSrv := httptest.NewServer(NewRouter(NewHandler(client, WithAllowOrigin("https://chat.example.com"))))
	t.Cleanup(bridgeSrv.Close)

	return &bridgeFixture{url: bridgeSrv.URL, mock: mc}
}

func post(t *testing.T, url string, body string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(b)
}

const helloBody = `{"messages":[{"role":"user","content":"hello"}]}`

func TestHandleChat_StreamsChunksAsEvents(t *testing.T) {
	f := newBridge(t, &mock.Script{Steps: []mock.Step{
		{Content: "Hello"},
		{ToolCalls: []events.ToolCall{{Name: "web_search"}}},
		{Content: " World"},
	}})

	resp, body := post(t, f.url+"/api/chat", helloBody)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	assert.Equal(t, "https://chat.example.com", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "data: Hello\n\ndata:  World\n\n", body)
}

func TestHandleChat_MultiLineChunk(t *testing.T) {
	f := newBridge(t, &mock.Script{Steps: []mock.Step{{Content: "line1\nline2"}}})

	_, body := post(t, f.url+"/api/chat", helloBody)
	assert.Equal(t, "data: line1\ndata: line2\n\n", body)
}

func TestHandleChat_ToolsQuerySelectsToolMode(t *testing.T) {
	f := newBridge(t, &mock.Script{Steps: []mock.Step{{Content: "ok"}}})

	body := `{"messages":[{"role":"system","content":"s"},{"role":"user","content":"q"}]}`
	resp, out := post(t, f.url+"/api/chat?tools=true", body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "data: ok\n\n", out)

	sessions := f.mock.Sessions()
	require.Len(t, sessions, 1)
	assert.NotEmpty(t, sessions[0].Options().Capabilities)
	assert.Len(t, sessions[0].Transcript().Turns(), 1)
}

func TestHandleChat_FailureBeforeFirstChunk(t *testing.T) {
	f := newBridge(t, &mock.Script{SessionError: "model unavailable"})

	resp, body := post(t, f.url+"/api/chat", helloBody)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Contains(t, body, "model unavailable")
}

func TestHandleChat_FailureAfterChunks(t *testing.T) {
	f := newBridge(t, &mock.Script{Steps: []mock.Step{
		{Content: "partial"},
		{Error: "stream broke"},
	}})

	resp, body := post(t, f.url+"/api/chat", helloBody)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "data: partial\n\nevent: error\ndata: stream broke\n\n", body)
}

func TestHandleChat_BadRequests(t *testing.T) {
	f := newBridge(t, &mock.Script{})

	resp, _ := post(t, f.url+"/api/chat", "{not json")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body := post(t, f.url+"/api/chat?tools=maybe", helloBody)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.True(t, strings.Contains(body, "maybe"))
}

func TestCORSPreflight(t *testing.T) {
	f := newBridge(t, &mock.Script{})

	req, err := http.NewRequest(http.MethodOptions, f.url+"/api/chat", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "GET, POST, OPTIONS", resp.Header.Get("Access-Control-Allow-Methods"))
}
