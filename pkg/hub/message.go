// Package hub provides a thread-safe websocket broadcast hub
// using the idiomatic Go channel-based fan-out pattern.
package hub

import "encoding/json"

// Event is one typed message pushed to dashboard clients.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Message is an encoded event ready to be written to a connection.
type Message struct {
	Type string
	Data []byte
}

// Encode marshals e into a Message.
func Encode(e Event) (Message, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return Message{}, err
	}
	return Message{Type: e.Type, Data: data}, nil
}
