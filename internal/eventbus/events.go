package eventbus

import "time"

type EventType string

const (
	EventMessageReceived         EventType = "message.received"
	EventMessageSent             EventType = "message.sent"
	EventConversationTransferred EventType = "conversation.transferred"
	EventStateChanged            EventType = "conversation.state_changed"
)

// Event is what the core publishes for live dashboard feeds. Delivery
// is fire-and-forget and not part of the interpreter's correctness
// contract.
type Event struct {
	Type           EventType `json:"type"`
	ConversationID uint      `json:"conversation_id"`
	Channel        string    `json:"channel,omitempty"`
	Text           string    `json:"text,omitempty"`
	Queue          string    `json:"queue,omitempty"`
	Reason         string    `json:"reason,omitempty"`
	NodeID         string    `json:"node_id,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}
