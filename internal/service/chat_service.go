package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/weiawesome/chat-backend/internal/audit"
	"github.com/weiawesome/chat-backend/internal/cache"
	"github.com/weiawesome/chat-backend/internal/domain"
	"github.com/weiawesome/chat-backend/internal/repository"
	"github.com/weiawesome/chat-backend/pkg/log"
)

var (
	ErrEmptyContent = errors.New("message content is empty")
	ErrNotMember    = errors.New("user is not a member of this conversation")
	ErrUserNotFound = errors.New("user not found")
)

// chatServiceImpl implements ChatService.
type chatServiceImpl struct {
	repo    repository.ChatRepository
	cache   cache.UserCache // nil when caching is disabled
	userTTL time.Duration
	sf      singleflight.Group
}

// NewChatService creates the chat service. userCache may be nil; user
// lookups then always hit the store.
func NewChatService(repo repository.ChatRepository, userCache cache.UserCache, userTTL time.Duration) ChatService {
	return &chatServiceImpl{
		repo:    repo,
		cache:   userCache,
		userTTL: userTTL,
	}
}

// ListConversations returns the user's conversations with unread and
// member counts.
func (s *chatServiceImpl) ListConversations(ctx context.Context, userID int64) ([]domain.ConversationSummary, error) {
	return s.repo.ListConversations(ctx, userID)
}

// ListMessages returns the conversation history for a member, marking
// the member's unread messages read as a side effect of the fetch.
// Opening a thread is what marks it read; this is deliberate, the fetch
// is not read-only from the receipt store's point of view.
func (s *chatServiceImpl) ListMessages(ctx context.Context, conversationID, userID int64, limit int) ([]domain.Message, error) {
	member, err := s.repo.IsMember(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, ErrNotMember
	}

	return s.repo.ListMessages(ctx, conversationID, userID, limit)
}

// SendMessage validates, authorizes, and persists a message, returning
// it enriched with the sender's display name. Membership is checked on
// every path that reaches here, HTTP and websocket alike.
func (s *chatServiceImpl) SendMessage(ctx context.Context, conversationID, senderID int64, content string) (*domain.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}

	member, err := s.repo.IsMember(ctx, conversationID, senderID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, ErrNotMember
	}

	msg, err := s.repo.CreateMessage(ctx, conversationID, senderID, content)
	if err != nil {
		return nil, err
	}

	audit.Log(ctx, audit.ActionSendMessage, senderID, conversationID, "message sent")
	return msg, nil
}

// MarkConversationRead marks every unread message authored by others as
// read for the user and reports how many were newly marked. Calling it
// again immediately marks zero.
func (s *chatServiceImpl) MarkConversationRead(ctx context.Context, conversationID, userID int64) (int64, error) {
	member, err := s.repo.IsMember(ctx, conversationID, userID)
	if err != nil {
		return 0, err
	}
	if !member {
		return 0, ErrNotMember
	}

	marked, err := s.repo.MarkUnreadAsRead(ctx, conversationID, userID)
	if err != nil {
		return 0, err
	}

	audit.Log(ctx, audit.ActionMarkRead, userID, conversationID, "conversation marked read")
	return marked, nil
}

// GetUser retrieves a user profile, served from the short-TTL cache
// when one is configured. Concurrent lookups for the same user collapse
// into a single store read.
func (s *chatServiceImpl) GetUser(ctx context.Context, userID int64) (*domain.User, error) {
	if s.cache == nil {
		return s.getUserFromStore(ctx, userID)
	}

	key := s.cache.BuildKey(userID)
	result, err, _ := s.sf.Do(key, func() (interface{}, error) {
		cached, err := s.cache.Get(ctx, key)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			l := log.Ctx(ctx)
			l.Warn().Err(err).Msg("user cache get error")
		}

		user, err := s.getUserFromStore(ctx, userID)
		if err != nil {
			return nil, err
		}

		if err := s.cache.Set(ctx, key, user, s.userTTL); err != nil {
			l := log.Ctx(ctx)
			l.Warn().Err(err).Msg("user cache set error")
		}
		return user, nil
	})
	if err != nil {
		return nil, err
	}

	return result.(*domain.User), nil
}

func (s *chatServiceImpl) getUserFromStore(ctx context.Context, userID int64) (*domain.User, error) {
	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// GetMembers returns the users belonging to a conversation.
func (s *chatServiceImpl) GetMembers(ctx context.Context, conversationID int64) ([]domain.User, error) {
	return s.repo.GetMembers(ctx, conversationID)
}
