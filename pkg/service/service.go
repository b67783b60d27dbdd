// Package service exposes the relay as the chat.v1.ChatService Connect
// service.
package service

import (
	"context"

	"connectrpc.com/connect"
	"github.com/go-go-golems/chat-relay/pkg/helpers"
	"github.com/go-go-golems/chat-relay/pkg/relay"
	"github.com/rs/zerolog/log"
)

// CallIDHeader carries the call id in both directions.
const CallIDHeader = "X-Call-Id"

type Service struct {
	relay *relay.Relay
}

var _ ChatServiceHandler = (*Service)(nil)

func NewService(r *relay.Relay) *Service {
	return &Service{relay: r}
}

func (s *Service) StreamChat(
	ctx context.Context,
	req *connect.Request[ChatRequest],
	stream *connect.ServerStream[ChatResponse],
) error {
	return s.run(ctx, relay.ModeSimple, req, stream)
}

func (s *Service) StreamChatWithTools(
	ctx context.Context,
	req *connect.Request[ChatRequest],
	stream *connect.ServerStream[ChatResponse],
) error {
	return s.run(ctx, relay.ModeTools, req, stream)
}

func (s *Service) run(
	ctx context.Context,
	mode relay.Mode,
	req *connect.Request[ChatRequest],
	stream *connect.ServerStream[ChatResponse],
) error {
	call := relay.Call{
		ID:           helpers.CorrelationIDFromContext(ctx),
		Mode:         mode,
		Conversation: req.Msg.Conversation(),
	}

	st, err := s.relay.Run(ctx, call, func(chunk string) error {
		return stream.Send(&ChatResponse{Chunk: chunk})
	})
	if err != nil {
		return ToConnectError(err)
	}

	log.Debug().
		Str("component", "service").
		Str("call_id", call.ID).
		Int("chunks", st.Chunks()).
		Dur("thinking", st.ThinkingDuration()).
		Msg("Stream completed")
	return nil
}
