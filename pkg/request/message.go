package request

import "fmt"

// Message represents a JSON message response from the monitoring server.
type Message struct {
	Message string `json:"Message"`
}

// NewMessage creates a new Message, formatting when args are given.
func NewMessage(message string, args ...any) *Message {
	if len(args) > 0 {
		message = fmt.Sprintf(message, args...)
	}
	return &Message{
		Message: message,
	}
}
