package bridge

import (
	"encoding/json"
	"fmt"

	"github.com/vango-dev/storesync/pkg/storage"
)

// Message is the wire form of a native change notification.
type Message struct {
	Scope    string  `json:"scope"`
	Key      string  `json:"key"`
	NewValue *string `json:"newValue"`
	OldValue *string `json:"oldValue,omitempty"`
	Origin   string  `json:"origin,omitempty"`
}

// MessageFromEvent converts a storage event to its wire form.
func MessageFromEvent(ev storage.Event) Message {
	return Message{
		Scope:    ev.Scope.String(),
		Key:      ev.Key,
		NewValue: ev.NewValue,
		OldValue: ev.OldValue,
		Origin:   ev.Origin,
	}
}

// Event converts m to a native storage event.
func (m Message) Event() (storage.Event, error) {
	scope, err := storage.ParseScope(m.Scope)
	if err != nil {
		return storage.Event{}, err
	}
	return storage.Event{
		Key:      m.Key,
		NewValue: m.NewValue,
		OldValue: m.OldValue,
		Scope:    scope,
		Origin:   m.Origin,
	}, nil
}

func encodeMessage(m Message) ([]byte, error) {
	return json.Marshal(m)
}

func decodeMessage(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("decode bridge message: %w", err)
	}
	if m.Key == "" {
		return Message{}, fmt.Errorf("decode bridge message: missing key")
	}
	if _, err := storage.ParseScope(m.Scope); err != nil {
		return Message{}, fmt.Errorf("decode bridge message: %w", err)
	}
	return m, nil
}
