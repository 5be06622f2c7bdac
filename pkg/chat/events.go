package chat

import (
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/pkg/errors"
)

// EventType enumerates the fragment events published on a session topic.
type EventType string

const (
	// EventDelta carries one incremental text fragment.
	EventDelta EventType = "delta"
	// EventDone terminates a run; Text holds the committed reply.
	EventDone EventType = "done"
	// EventError terminates a run on inference failure; Text holds the
	// human-readable error that was committed to the log.
	EventError EventType = "error"
)

// Event is the wire form of one fragment event. A run is a finite sequence
// of deltas terminated by exactly one done or error event.
type Event struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
	RunID     string    `json:"run_id"`
	Delta     string    `json:"delta,omitempty"`
	Text      string    `json:"text,omitempty"`
}

func (e Event) Message() (*message.Message, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, errors.Wrap(err, "marshal event")
	}
	return message.NewMessage(watermill.NewUUID(), payload), nil
}

func ParseEvent(payload []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(payload, &e); err != nil {
		return Event{}, errors.Wrap(err, "unmarshal event")
	}
	return e, nil
}
