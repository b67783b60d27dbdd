package service

import (
	"context"
	"strings"

	"connectrpc.com/connect"
)

// ChatServiceClient is the client side of chat.v1.ChatService.
type ChatServiceClient interface {
	StreamChat(context.Context, *connect.Request[ChatRequest]) (*connect.ServerStreamForClient[ChatResponse], error)
	StreamChatWithTools(context.Context, *connect.Request[ChatRequest]) (*connect.ServerStreamForClient[ChatResponse], error)
}

type chatServiceClient struct {
	streamChat          *connect.Client[ChatRequest, ChatResponse]
	streamChatWithTools *connect.Client[ChatRequest, ChatResponse]
}

// NewChatServiceClient talks to a chat service at baseURL, e.g.
// http://localhost:50051.
func NewChatServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) ChatServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(JSONCodec{})}, opts...)
	return &chatServiceClient{
		streamChat: connect.NewClient[ChatRequest, ChatResponse](
			httpClient,
			baseURL+ChatServiceStreamChatProcedure,
			opts...,
		),
		streamChatWithTools: connect.NewClient[ChatRequest, ChatResponse](
			httpClient,
			baseURL+ChatServiceStreamChatWithToolsProcedure,
			opts...,
		),
	}
}

func (c *chatServiceClient) StreamChat(ctx context.Context, req *connect.Request[ChatRequest]) (*connect.ServerStreamForClient[ChatResponse], error) {
	return c.streamChat.CallServerStream(ctx, req)
}

func (c *chatServiceClient) StreamChatWithTools(ctx context.Context, req *connect.Request[ChatRequest]) (*connect.ServerStreamForClient[ChatResponse], error) {
	return c.streamChatWithTools.CallServerStream(ctx, req)
}

// Stream calls the procedure selected by tools.
func Stream(ctx context.Context, client ChatServiceClient, tools bool, req *ChatRequest) (*connect.ServerStreamForClient[ChatResponse], error) {
	if tools {
		return client.StreamChatWithTools(ctx, connect.NewRequest(req))
	}
	return client.StreamChat(ctx, connect.NewRequest(req))
}
