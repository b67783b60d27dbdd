package relay

import (
	"time"

	"github.com/go-go-golems/chat-relay/pkg/events"
)

// State is the per-call relay state. A call starts in the thinking phase and
// leaves it with the first non-empty content fragment; it never returns.
type State struct {
	thinking         bool
	startedAt        time.Time
	thinkingDuration time.Duration
	skipped          int
	events           int
	chunks           int
	toolCalls        int
}

func NewState(startedAt time.Time) *State {
	return &State{
		thinking:  true,
		startedAt: startedAt,
	}
}

func (s *State) Thinking() bool {
	return s.thinking
}

// ThinkingDuration is zero while the call is still thinking.
func (s *State) ThinkingDuration() time.Duration {
	return s.thinkingDuration
}

// SkippedEvents counts events received during the thinking phase.
func (s *State) SkippedEvents() int {
	return s.skipped
}

func (s *State) Events() int {
	return s.events
}

func (s *State) Chunks() int {
	return s.chunks
}

func (s *State) ToolCalls() int {
	return s.toolCalls
}

func (s *State) Elapsed(now time.Time) time.Duration {
	return now.Sub(s.startedAt)
}

// Observe records an event. It reports whether the event carries a chunk and
// whether it ended the thinking phase.
func (s *State) Observe(ev events.ChatEvent, now time.Time) (emit bool, flipped bool) {
	s.events++
	s.toolCalls += len(ev.ToolCalls)

	if !ev.HasContent() {
		if s.thinking {
			s.skipped++
		}
		return false, false
	}
	if s.thinking {
		s.thinking = false
		s.thinkingDuration = now.Sub(s.startedAt)
		flipped = true
	}
	return true, flipped
}

func (s *State) recordChunk() {
	s.chunks++
}
