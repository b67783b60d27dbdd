package service

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// JSONCodec serializes the plain Go message types of the chat service. It is
// registered under the "json" name, replacing Connect's protobuf JSON codec.
type JSONCodec struct{}

func (JSONCodec) Name() string {
	return "json"
}

func (JSONCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONCodec) Unmarshal(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Wrap(err, "could not decode chat message")
	}
	return nil
}
