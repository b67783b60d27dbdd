package turns

// Role identifies the author of a Turn. The set of valid roles is owned by the
// upstream provider, so unknown roles are carried through unchanged.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

func (r Role) String() string {
	return string(r)
}

// IsUser reports whether the role is exactly "user". Other spellings are
// unknown roles and pass through like any other.
func (r Role) IsUser() bool {
	return r == RoleUser
}

// Turn is one role-tagged message of a conversation.
type Turn struct {
	Role    Role   `json:"role" yaml:"role"`
	Content string `json:"content" yaml:"content"`
}

// Conversation is an ordered list of turns. Order is the conversation history
// and is never changed by the relay.
type Conversation []Turn

// Clone returns a copy of the conversation that can be handed to an upstream
// session without exposing the inbound request's backing array.
func (c Conversation) Clone() Conversation {
	if c == nil {
		return nil
	}
	out := make(Conversation, len(c))
	copy(out, c)
	return out
}

// UserTurns returns the user-authored turns in their original order.
func (c Conversation) UserTurns() []Turn {
	var out []Turn
	for _, t := range c {
		if t.Role.IsUser() {
			out = append(out, t)
		}
	}
	return out
}

// CountByRole counts turns per role, used for request logging.
func (c Conversation) CountByRole() map[Role]int {
	counts := make(map[Role]int, 3)
	for _, t := range c {
		counts[t.Role]++
	}
	return counts
}
