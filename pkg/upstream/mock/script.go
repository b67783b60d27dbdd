package mock

import (
	"os"
	"time"

	"github.com/go-go-golems/chat-relay/pkg/events"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Script is a YAML description of what a mock session streams.
//
//	session_error: ""        # fail session creation with this message
//	steps:
//	  - content: "Hel"
//	  - tool_calls: [{name: web_search, arguments: '{"query":"go"}'}]
//	  - raw: {unexpected: shape}   # relayed through events.Normalize
//	  - delay: 50ms
//	    content: "lo"
//	  - error: "upstream exploded"
type Script struct {
	SessionError string `yaml:"session_error,omitempty"`
	Steps        []Step `yaml:"steps"`
}

type Step struct {
	Content   string            `yaml:"content,omitempty"`
	ToolCalls []events.ToolCall `yaml:"tool_calls,omitempty"`
	// Raw is passed to the relay as is, bypassing the typed fields.
	Raw   any           `yaml:"raw,omitempty"`
	Error string        `yaml:"error,omitempty"`
	Delay time.Duration `yaml:"delay,omitempty"`
}

// Value is the raw provider value the step produces.
func (s Step) Value() any {
	if s.Raw != nil {
		return s.Raw
	}
	return events.ChatEvent{Content: s.Content, ToolCalls: s.ToolCalls}
}

func ParseScript(b []byte) (*Script, error) {
	s := &Script{}
	if err := yaml.Unmarshal(b, s); err != nil {
		return nil, errors.Wrap(err, "could not parse mock script")
	}
	return s, nil
}

func LoadScript(path string) (*Script, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read mock script %s", path)
	}
	return ParseScript(b)
}
