package service

import (
	"context"

	"github.com/weiawesome/chat-backend/internal/domain"
	"github.com/weiawesome/chat-backend/internal/hub"
)

// ChatService defines the business logic of the synchronous chat API.
type ChatService interface {
	ListConversations(ctx context.Context, userID int64) ([]domain.ConversationSummary, error)
	ListMessages(ctx context.Context, conversationID, userID int64, limit int) ([]domain.Message, error)
	SendMessage(ctx context.Context, conversationID, senderID int64, content string) (*domain.Message, error)
	MarkConversationRead(ctx context.Context, conversationID, userID int64) (int64, error)
	GetUser(ctx context.Context, userID int64) (*domain.User, error)
	GetMembers(ctx context.Context, conversationID int64) ([]domain.User, error)
}

// RealtimeService handles the websocket event surface. Outcomes are
// delivered as events on the calling connection; the returned errors
// exist for logging only and never disconnect the client.
type RealtimeService interface {
	HandleAuthenticate(ctx context.Context, c *hub.Client, userID int64) error
	HandleJoin(ctx context.Context, c *hub.Client, conversationID, userID int64) error
	HandleLeave(ctx context.Context, c *hub.Client, conversationID int64) error
	HandlePublish(ctx context.Context, c *hub.Client, conversationID, senderID int64, content string) error
}
