package ws

import "time"

// Inbound event types accepted from clients.
const (
	EventJoin    = "join"
	EventMessage = "message"
)

// Outbound event types pushed to clients.
const (
	EventActivity = "activity"
	EventError    = "error"
)

// Event is the envelope clients send over the socket.
type Event struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id,omitempty"`
	To             string `json:"to,omitempty"`
	Text           string `json:"text,omitempty"`
}

// MessageEvent is a delivered chat message.
type MessageEvent struct {
	Type           string    `json:"type"`
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Sender         string    `json:"sender"`
	SenderName     string    `json:"sender_name"`
	Text           string    `json:"text"`
	Seq            int64     `json:"seq"`
	CreatedAt      time.Time `json:"created_at"`
}

// ActivityEvent tells a participant that a conversation has new activity,
// whether or not they have joined its room.
type ActivityEvent struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id"`
}

// ErrorEvent reports a rejected operation back to the offending client.
type ErrorEvent struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
