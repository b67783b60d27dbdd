package relay

import (
	"strings"

	"github.com/go-go-golems/chat-relay/pkg/turns"
	"github.com/go-go-golems/chat-relay/pkg/upstream"
	"github.com/pkg/errors"
)

// Mode controls how an inbound conversation reaches the upstream session. The
// relay loop is the same for every mode.
type Mode interface {
	Name() string
	// UsesTools enables the configured capability set on the session.
	UsesTools() bool
	// History is passed to the session at creation time.
	History(conv turns.Conversation) turns.Conversation
	// Seed runs after the session is created and before it streams.
	Seed(s upstream.Session, conv turns.Conversation) error
}

type simpleMode struct{}

func (simpleMode) Name() string    { return "simple" }
func (simpleMode) UsesTools() bool { return false }

// History forwards every turn in order, whatever its role.
func (simpleMode) History(conv turns.Conversation) turns.Conversation {
	return conv.Clone()
}

func (simpleMode) Seed(upstream.Session, turns.Conversation) error {
	return nil
}

type toolsMode struct{}

func (toolsMode) Name() string    { return "tools" }
func (toolsMode) UsesTools() bool { return true }

// History is empty: the session starts fresh.
func (toolsMode) History(turns.Conversation) turns.Conversation {
	return nil
}

// Seed appends only the user turns, in order. System and assistant turns are
// not replayed.
func (toolsMode) Seed(s upstream.Session, conv turns.Conversation) error {
	for _, t := range conv.UserTurns() {
		s.AppendUser(t.Content)
	}
	return nil
}

var (
	ModeSimple Mode = simpleMode{}
	ModeTools  Mode = toolsMode{}
)

func ModeFromName(name string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "simple":
		return ModeSimple, nil
	case "tools":
		return ModeTools, nil
	}
	return nil, errors.Errorf("unknown relay mode %q", name)
}
