package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/go-go-golems/chat-relay/pkg/events"
	"github.com/go-go-golems/chat-relay/pkg/relay"
	"github.com/go-go-golems/chat-relay/pkg/turns"
	"github.com/go-go-golems/chat-relay/pkg/upstream/mock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	client ChatServiceClient
	mock   *mock.Client
}

func newTestServer(t *testing.T, script *mock.Script, maxStreams int64) *testServer {
	t.Helper()
	mc := mock.NewClient(mock.Config{Script: script, Record: true})
	r := relay.New(relay.NewSessionFactory(mc, "grok-4-fast"))

	mux := http.NewServeMux()
	path, handler := NewChatServiceHandler(
		NewService(r),
		connect.WithInterceptors(NewLoggingInterceptor(), NewStreamLimiter(maxStreams)),
	)
	mux.Handle(path, handler)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return &testServer{
		client: NewChatServiceClient(srv.Client(), srv.URL),
		mock:   mc,
	}
}

func steps(s ...mock.Step) *mock.Script {
	return &mock.Script{Steps: s}
}

func receiveAll(stream *connect.ServerStreamForClient[ChatResponse]) ([]string, error) {
	var ret []string
	for stream.Receive() {
		ret = append(ret, stream.Msg().Chunk)
	}
	return ret, stream.Err()
}

func call(t *testing.T, ts *testServer, tools bool, conv turns.Conversation) ([]string, error) {
	t.Helper()
	stream, err := Stream(context.Background(), ts.client, tools, NewChatRequest(conv))
	if err != nil {
		return nil, err
	}
	defer func() { _ = stream.Close() }()
	return receiveAll(stream)
}

func TestStreamChat_HelloWorld(t *testing.T) {
	ts := newTestServer(t, steps(mock.Step{Content: "Hello"}, mock.Step{Content: " World"}), 10)

	got, err := call(t, ts, false, turns.Conversation{{Role: turns.RoleUser, Content: "hello"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Hello", " World"}, got)
}

func TestStreamChat_ToolCallProducesNoChunk(t *testing.T) {
	ts := newTestServer(t, steps(
		mock.Step{ToolCalls: []events.ToolCall{{Name: "web_search", Arguments: `{"query":"hi"}`}}},
		mock.Step{Content: "Answer"},
	), 10)

	got, err := call(t, ts, false, turns.Conversation{{Role: turns.RoleUser, Content: "hi"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Answer"}, got)
}

func TestStreamChat_SessionFailureMapsToInternal(t *testing.T) {
	ts := newTestServer(t, &mock.Script{SessionError: "model grok-4-fast is overloaded"}, 10)

	got, err := call(t, ts, false, turns.Conversation{{Role: turns.RoleUser, Content: "hi"}})
	require.Error(t, err)
	assert.Empty(t, got)
	assert.Equal(t, connect.CodeInternal, connect.CodeOf(err))

	var ce *connect.Error
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "model grok-4-fast is overloaded", ce.Message())
}

func TestStreamChatWithTools_ReplaysOnlyUserTurns(t *testing.T) {
	ts := newTestServer(t, steps(mock.Step{Content: "You're welcome"}), 10)

	conv := turns.NewConversationBuilder().
		WithSystemPrompt("be helpful").
		WithUserPrompt("2+2").
		WithAssistantReply("4").
		WithUserPrompt("ok thanks").
		Build()
	got, err := call(t, ts, true, conv)
	require.NoError(t, err)
	assert.Equal(t, []string{"You're welcome"}, got)

	sessions := ts.mock.Sessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, turns.Conversation{
		{Role: turns.RoleUser, Content: "2+2"},
		{Role: turns.RoleUser, Content: "ok thanks"},
	}, sessions[0].Transcript().Turns())
	assert.NotEmpty(t, sessions[0].Options().Capabilities)
}

func TestStreamChat_ForwardsFullHistory(t *testing.T) {
	ts := newTestServer(t, steps(mock.Step{Content: "ok"}), 10)

	conv := turns.NewConversationBuilder().
		WithSystemPrompt("be helpful").
		WithUserPrompt("2+2").
		WithAssistantReply("4").
		Build()
	_, err := call(t, ts, false, conv)
	require.NoError(t, err)

	sessions := ts.mock.Sessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, conv, sessions[0].Transcript().Turns())
	assert.Empty(t, sessions[0].Options().Capabilities)
}

func TestStreamChat_MidStreamErrorAfterChunks(t *testing.T) {
	ts := newTestServer(t, steps(
		mock.Step{Content: "C1"},
		mock.Step{Content: ""},
		mock.Step{Content: "C2"},
		mock.Step{Error: "upstream connection reset"},
		mock.Step{Content: "never"},
	), 10)

	got, err := call(t, ts, false, turns.Conversation{{Role: turns.RoleUser, Content: "hi"}})
	require.Error(t, err)
	assert.Equal(t, []string{"C1", "C2"}, got)
	assert.Equal(t, connect.CodeInternal, connect.CodeOf(err))
	var ce *connect.Error
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "upstream connection reset", ce.Message())
}

func TestStreamChat_UnknownShapeIsStringified(t *testing.T) {
	ts := newTestServer(t, steps(mock.Step{Raw: 42}, mock.Step{Raw: []any{"a", "b"}}), 10)

	got, err := call(t, ts, false, turns.Conversation{{Role: turns.RoleUser, Content: "hi"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"42", "[a b]"}, got)
}

func TestStreamChat_CallIDHeader(t *testing.T) {
	ts := newTestServer(t, steps(mock.Step{Content: "x"}), 10)

	req := connect.NewRequest(NewChatRequest(turns.Conversation{{Role: turns.RoleUser, Content: "hi"}}))
	req.Header().Set(CallIDHeader, "call-from-client")
	stream, err := ts.client.StreamChat(context.Background(), req)
	require.NoError(t, err)
	defer func() { _ = stream.Close() }()

	got, err := receiveAll(stream)
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, got)
	assert.Equal(t, "call-from-client", stream.ResponseHeader().Get(CallIDHeader))
}

func TestStreamLimiter_WaitsForFreeSlot(t *testing.T) {
	ts := newTestServer(t, steps(
		mock.Step{Content: "first"},
		mock.Step{Content: "late", Delay: time.Hour},
	), 1)
	conv := turns.Conversation{{Role: turns.RoleUser, Content: "hi"}}

	ctx1, cancel1 := context.WithCancel(context.Background())
	defer cancel1()
	first, err := Stream(ctx1, ts.client, false, NewChatRequest(conv))
	require.NoError(t, err)
	require.True(t, first.Receive())
	assert.Equal(t, "first", first.Msg().Chunk)

	ctx2, cancel2 := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel2()
	second, err := Stream(ctx2, ts.client, false, NewChatRequest(conv))
	if err == nil {
		_, err = receiveAll(second)
		_ = second.Close()
	}
	require.Error(t, err)
	assert.Equal(t, connect.CodeDeadlineExceeded, connect.CodeOf(err))
	assert.Len(t, ts.mock.Sessions(), 1)

	cancel1()
	_ = first.Close()
}

func TestToConnectError(t *testing.T) {
	assert.Nil(t, ToConnectError(nil))

	err := ToConnectError(errors.New("boom"))
	assert.Equal(t, connect.CodeInternal, connect.CodeOf(err))
	assert.Equal(t, "internal: boom", err.Error())

	wrapped := &relay.Error{Stage: relay.StageStream, Err: context.Canceled}
	assert.Equal(t, connect.CodeCanceled, connect.CodeOf(ToConnectError(wrapped)))

	assert.Equal(t, connect.CodeDeadlineExceeded, connect.CodeOf(ToConnectError(errors.Wrap(context.DeadlineExceeded, "upstream"))))

	already := connect.NewError(connect.CodeResourceExhausted, errors.New("busy"))
	assert.Equal(t, already, ToConnectError(already))
}

func TestChatRequestConversation(t *testing.T) {
	req := &ChatRequest{Messages: []*Message{{Role: "user", Content: "a"}, nil, {Role: "tool", Content: "b"}}}
	assert.Equal(t, turns.Conversation{
		{Role: turns.RoleUser, Content: "a"},
		{Role: turns.Role("tool"), Content: "b"},
	}, req.Conversation())
	assert.Nil(t, (*ChatRequest)(nil).Conversation())
}
