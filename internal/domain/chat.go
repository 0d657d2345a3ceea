package domain

import (
	"time"
)

// Conversation types.
const (
	ConversationTypeDirect = "direct"
	ConversationTypeGroup  = "group"
)

// DefaultMessageLimit caps message history fetches when the caller does
// not specify a limit.
const DefaultMessageLimit = 50

// User represents a chat participant in API responses.
type User struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

// ConversationSummary is a conversation as it appears in the listing:
// display name resolved (counterpart name for direct chats), with the
// requesting user's unread count and the member count attached.
type ConversationSummary struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	UnreadCount int64  `json:"unread_count"`
	MemberCount int64  `json:"member_count"`

	// CreatedAt is carried for ordering but not serialized; the listing
	// orders by unread count first, then recency.
	CreatedAt time.Time `json:"-"`
}

// Message is a persisted message enriched for a specific viewer: the
// sender's current display name (always recomputed by join, never
// cached) and whether a read receipt exists for the viewer.
type Message struct {
	ID             int64     `json:"id"`
	ConversationID int64     `json:"conversation_id"`
	SenderID       int64     `json:"sender_id"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
	SenderName     string    `json:"sender_name"`
	IsRead         bool      `json:"is_read"`
}

// SendMessageRequest is the HTTP body for sending a message.
type SendMessageRequest struct {
	ConversationID int64  `json:"conversation_id" binding:"required"`
	SenderID       int64  `json:"sender_id" binding:"required"`
	Content        string `json:"content"`
}

// SendMessageResponse acknowledges a stored message.
type SendMessageResponse struct {
	ID      int64  `json:"id"`
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// MarkReadRequest is the HTTP body for the explicit mark-read path.
type MarkReadRequest struct {
	UserID int64 `json:"user_id" binding:"required"`
}

// MarkReadResponse reports how many messages were newly marked read.
type MarkReadResponse struct {
	Success     bool  `json:"success"`
	MarkedCount int64 `json:"marked_count"`
}
