package service

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
)

const ChatServiceName = "chat.v1.ChatService"

const (
	ChatServiceStreamChatProcedure          = "/chat.v1.ChatService/StreamChat"
	ChatServiceStreamChatWithToolsProcedure = "/chat.v1.ChatService/StreamChatWithTools"
)

// ChatServiceHandler is the server side of chat.v1.ChatService.
type ChatServiceHandler interface {
	// StreamChat forwards the whole conversation to a plain upstream session.
	StreamChat(context.Context, *connect.Request[ChatRequest], *connect.ServerStream[ChatResponse]) error
	// StreamChatWithTools replays the user turns into a session with tools enabled.
	StreamChatWithTools(context.Context, *connect.Request[ChatRequest], *connect.ServerStream[ChatResponse]) error
}

// NewChatServiceHandler builds an HTTP handler serving the chat service over
// the Connect, gRPC and gRPC-Web protocols. It returns the path to mount it on.
func NewChatServiceHandler(svc ChatServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(JSONCodec{})}, opts...)

	streamChat := connect.NewServerStreamHandler(
		ChatServiceStreamChatProcedure,
		svc.StreamChat,
		opts...,
	)
	streamChatWithTools := connect.NewServerStreamHandler(
		ChatServiceStreamChatWithToolsProcedure,
		svc.StreamChatWithTools,
		opts...,
	)

	return "/" + ChatServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case ChatServiceStreamChatProcedure:
			streamChat.ServeHTTP(w, r)
		case ChatServiceStreamChatWithToolsProcedure:
			streamChatWithTools.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}
