package events

import (
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Message metadata keys set on every published relay event.
const (
	MetadataEventType = "event_type"
	MetadataCallID    = "call_id"
	MetadataMode      = "mode"
)

// WatermillSink publishes relay events as JSON messages on one topic.
type WatermillSink struct {
	publisher message.Publisher
	topic     string
}

func NewWatermillSink(publisher message.Publisher, topic string) *WatermillSink {
	return &WatermillSink{
		publisher: publisher,
		topic:     topic,
	}
}

// PublishEvent uses the event id as the message uuid. Call id, mode and type
// are copied into the metadata so handlers can filter without decoding.
func (w *WatermillSink) PublishEvent(event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return errors.Wrapf(err, "could not encode %s event", event.Type())
	}

	meta := event.Metadata()
	id := meta.ID.String()
	if meta.ID == uuid.Nil {
		id = watermill.NewUUID()
	}

	msg := message.NewMessage(id, payload)
	msg.Metadata.Set(MetadataEventType, string(event.Type()))
	if meta.CallID != "" {
		msg.Metadata.Set(MetadataCallID, meta.CallID)
	}
	if meta.Mode != "" {
		msg.Metadata.Set(MetadataMode, meta.Mode)
	}

	if err := w.publisher.Publish(w.topic, msg); err != nil {
		return errors.Wrapf(err, "could not publish to %s", w.topic)
	}
	return nil
}

var _ EventSink = (*WatermillSink)(nil)
