package upstream

import (
	"github.com/go-go-golems/chat-relay/pkg/events"
)

// RawStream yields provider values of unknown shape.
type RawStream interface {
	RecvRaw() (any, error)
	Close() error
}

// NormalizingStream turns a RawStream into a Stream by passing every value
// through events.Normalize.
type NormalizingStream struct {
	raw RawStream
}

func NewNormalizingStream(raw RawStream) *NormalizingStream {
	return &NormalizingStream{raw: raw}
}

func (s *NormalizingStream) Recv() (events.ChatEvent, error) {
	v, err := s.raw.RecvRaw()
	if err != nil {
		return events.ChatEvent{}, err
	}
	return events.Normalize(v), nil
}

func (s *NormalizingStream) Close() error {
	return s.raw.Close()
}

var _ Stream = (*NormalizingStream)(nil)
