package websocket

import "encoding/json"

// Message defines the structure for websocket messages.
type Message struct {
	Action  string      `json:"action"`
	Payload interface{} `json:"payload,omitempty"`
}

// Actions pushed to clients.
const (
	ActionTweetCreated  = "tweet.created"
	ActionTweetLiked    = "tweet.liked"
	ActionFollowCreated = "follow.created"
	ActionPong          = "pong"
	ActionError         = "error"
)

// NewMessage encodes a message. Payloads are API views, so encoding cannot fail in practice.
func NewMessage(action string, payload interface{}) []byte {
	b, err := json.Marshal(Message{Action: action, Payload: payload})
	if err != nil {
		b, _ = json.Marshal(Message{Action: ActionError, Payload: map[string]string{"error": err.Error()}})
	}
	return b
}

// NewErrorMessage creates an error message for the client.
func NewErrorMessage(msg string) []byte {
	return NewMessage(ActionError, map[string]string{"error": msg})
}
