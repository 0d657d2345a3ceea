package repository

import (
	"context"
	"errors"

	"github.com/weiawesome/chat-backend/internal/domain"
)

var (
	ErrUserNotFound = errors.New("user not found")
)

// ChatRepository defines the persistence operations of the chat core:
// the membership guard, the read-tracking engine, and the message and
// conversation stores. All cross-caller invariants (idempotent receipt
// insertion, read-your-writes unread counts) are enforced here with
// store-level transactions, never in-process locks.
type ChatRepository interface {
	// Membership guard
	IsMember(ctx context.Context, conversationID, userID int64) (bool, error)

	// Read-tracking engine
	MarkUnreadAsRead(ctx context.Context, conversationID, userID int64) (int64, error)
	UnreadCount(ctx context.Context, conversationID, userID int64) (int64, error)
	BatchUnreadCounts(ctx context.Context, userID int64) (map[int64]int64, error)

	// Messages
	CreateMessage(ctx context.Context, conversationID, senderID int64, content string) (*domain.Message, error)
	// ListMessages marks the viewer's unread messages read and returns
	// the annotated history in one transaction, so the returned is_read
	// flags reflect the receipts it just applied.
	ListMessages(ctx context.Context, conversationID, userID int64, limit int) ([]domain.Message, error)

	// Conversations
	ListConversations(ctx context.Context, userID int64) ([]domain.ConversationSummary, error)
	ConversationIDsForUser(ctx context.Context, userID int64) ([]int64, error)

	// Users
	GetUser(ctx context.Context, userID int64) (*domain.User, error)
	GetMembers(ctx context.Context, conversationID int64) ([]domain.User, error)
}
