package service

import (
	"github.com/go-go-golems/chat-relay/pkg/turns"
)

// Message is one role-tagged turn of the inbound conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Messages []*Message `json:"messages"`
}

// ChatResponse carries one non-empty chunk.
type ChatResponse struct {
	Chunk string `json:"chunk"`
}

// Conversation converts the request into turns, keeping order and roles as
// sent. Nil messages are skipped.
func (r *ChatRequest) Conversation() turns.Conversation {
	if r == nil {
		return nil
	}
	ret := make(turns.Conversation, 0, len(r.Messages))
	for _, m := range r.Messages {
		if m == nil {
			continue
		}
		ret = append(ret, turns.Turn{Role: turns.Role(m.Role), Content: m.Content})
	}
	return ret
}

func NewChatRequest(conv turns.Conversation) *ChatRequest {
	ret := &ChatRequest{Messages: make([]*Message, 0, len(conv))}
	for _, t := range conv {
		ret.Messages = append(ret.Messages, &Message{Role: t.Role.String(), Content: t.Content})
	}
	return ret
}
