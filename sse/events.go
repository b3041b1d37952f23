package sse

import "encoding/json"

// Infrastructure event types. Domain events define their own.
const (
	EventTypeConnected = "connected"
	EventTypeMessage   = "message"
	EventTypeError     = "error"
)

// Event is one SSE frame. Final events end the client's stream once written.
type Event struct {
	Type  string
	Data  []byte
	Final bool
}

// JSONEvent marshals v into an event of the given type.
func JSONEvent(eventType string, v any, final bool) (Event, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Event{}, err
	}
	return Event{Type: eventType, Data: data, Final: final}, nil
}
