package domain

// WebSocket event types from client.
const (
	EventAuthenticate = "authenticate"
	EventMessage      = "message"
	EventJoin         = "join_conversation"
	EventLeave        = "leave_conversation"
)

// WebSocket event types to client.
const (
	EventAuthenticated = "authenticated"
	EventNewMessage    = "new_message"
	EventJoined        = "joined"
	EventError         = "error"
	EventMessageAck    = "message_ack"
)

// BaseEvent is the envelope every inbound event is first decoded into.
type BaseEvent struct {
	Type string `json:"type"`
}

// Client -> Server events

type AuthenticateEvent struct {
	Type   string `json:"type"`
	UserID int64  `json:"user_id"`
}

type PublishEvent struct {
	Type           string `json:"type"`
	ConversationID int64  `json:"conversation_id"`
	SenderID       int64  `json:"sender_id"`
	Content        string `json:"content"`
}

type JoinEvent struct {
	Type           string `json:"type"`
	ConversationID int64  `json:"conversation_id"`
	UserID         int64  `json:"user_id"`
}

type LeaveEvent struct {
	Type           string `json:"type"`
	ConversationID int64  `json:"conversation_id"`
}

// Server -> Client events

type AuthenticatedEvent struct {
	Type    string `json:"type"`
	Success bool   `json:"success"`
}

// NewMessageEvent is broadcast to every connection subscribed to the
// conversation's room, including the sender's own connection.
type NewMessageEvent struct {
	Type    string   `json:"type"`
	Message *Message `json:"message"`
}

type JoinedEvent struct {
	Type           string `json:"type"`
	ConversationID int64  `json:"conversation_id"`
}

type ErrorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// MessageAckEvent is the direct reply to a publish, sent to the calling
// connection only. It exists alongside the room broadcast so the sender
// can correlate the result of its own request.
type MessageAckEvent struct {
	Type      string `json:"type"`
	Success   bool   `json:"success"`
	MessageID int64  `json:"message_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// NewErrorEvent builds an error event for the calling connection.
func NewErrorEvent(message string) *ErrorEvent {
	return &ErrorEvent{Type: EventError, Message: message}
}
