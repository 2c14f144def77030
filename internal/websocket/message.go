package websocket

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/isdelr/authgate/internal/models"
)

// Actions carried by Message.
const (
	ActionEvent = "event"
	ActionError = "error"
	ActionPing  = "ping"
	ActionPong  = "pong"
)

// Message defines the structure for websocket messages.
type Message struct {
	Action  string      `json:"action"`
	Payload interface{} `json:"payload"`
}

// NewEventMessage wraps an audit event for delivery to feed subscribers.
func NewEventMessage(e models.Event) []byte {
	return encode(Message{Action: ActionEvent, Payload: e})
}

// NewErrorMessage builds an error reply for a single client.
func NewErrorMessage(msg string) []byte {
	return encode(Message{Action: ActionError, Payload: map[string]string{"message": msg}})
}

// NewPongMessage answers a client ping.
func NewPongMessage() []byte {
	return encode(Message{Action: ActionPong})
}

func encode(m Message) []byte {
	buf, err := json.Marshal(m)
	if err != nil {
		log.Error().Err(err).Str("action", m.Action).Msg("Failed to encode websocket message")
		return nil
	}
	return buf
}
