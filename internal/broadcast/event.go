// Package broadcast shares view revalidations between processes over an
// AMQP fanout exchange.
package broadcast

import (
	"encoding/json"
	"time"
)

// Event announces that views became stale on some instance.
type Event struct {
	IssuedAt time.Time `json:"issued_at"`
	Source   string    `json:"source"`
	Views    []string  `json:"views"`
}

// NewEvent creates an event stamped with the current time.
func NewEvent(source string, views []string) *Event {
	return &Event{
		Source:   source,
		Views:    views,
		IssuedAt: time.Now().UTC(),
	}
}

// ToJSON serializes the event.
func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// EventFromJSON deserializes an event.
func EventFromJSON(data []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
