package turns

// ConversationBuilder helps construct a Conversation with ordered turns.
type ConversationBuilder struct {
	turns Conversation
}

func NewConversationBuilder() *ConversationBuilder {
	return &ConversationBuilder{turns: Conversation{}}
}

func (cb *ConversationBuilder) WithSystemPrompt(systemText string) *ConversationBuilder {
	if systemText != "" {
		cb.turns = append(cb.turns, Turn{Role: RoleSystem, Content: systemText})
	}
	return cb
}

func (cb *ConversationBuilder) WithUserPrompt(userText string) *ConversationBuilder {
	if userText != "" {
		cb.turns = append(cb.turns, Turn{Role: RoleUser, Content: userText})
	}
	return cb
}

func (cb *ConversationBuilder) WithAssistantReply(text string) *ConversationBuilder {
	if text != "" {
		cb.turns = append(cb.turns, Turn{Role: RoleAssistant, Content: text})
	}
	return cb
}

// WithTurn appends a turn as-is, including turns with roles unknown to this package.
func (cb *ConversationBuilder) WithTurn(role Role, content string) *ConversationBuilder {
	cb.turns = append(cb.turns, Turn{Role: role, Content: content})
	return cb
}

func (cb *ConversationBuilder) Build() Conversation {
	return cb.turns.Clone()
}
