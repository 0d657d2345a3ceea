package service

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"

	"github.com/weiawesome/chat-backend/internal/domain"
	"github.com/weiawesome/chat-backend/internal/hub"
	"github.com/weiawesome/chat-backend/internal/repository"
	"github.com/weiawesome/chat-backend/pkg/log"
)

// publishStripes is the number of per-conversation publish locks.
const publishStripes = 32

// realtimeServiceImpl implements RealtimeService on top of the chat
// service and the hub.
type realtimeServiceImpl struct {
	chat ChatService
	repo repository.ChatRepository
	hub  *hub.Hub

	// publishMu serializes persist+broadcast per conversation so room
	// delivery order matches store commit order.
	publishMu [publishStripes]sync.Mutex
}

// NewRealtimeService creates the websocket event service.
func NewRealtimeService(chat ChatService, repo repository.ChatRepository, h *hub.Hub) RealtimeService {
	return &realtimeServiceImpl{
		chat: chat,
		repo: repo,
		hub:  h,
	}
}

// HandleAuthenticate binds a user to the connection and subscribes it
// to every conversation the user belongs to. A missing user ID emits
// nothing; the connection stays unauthenticated and the caller may
// retry.
func (s *realtimeServiceImpl) HandleAuthenticate(ctx context.Context, c *hub.Client, userID int64) error {
	if userID <= 0 {
		return nil
	}

	if _, err := s.repo.GetUser(ctx, userID); err != nil {
		c.SendEvent(domain.NewErrorEvent("Authentication failed"))
		if errors.Is(err, repository.ErrUserNotFound) {
			return fmt.Errorf("authenticate: unknown user %d", userID)
		}
		return err
	}

	conversationIDs, err := s.repo.ConversationIDsForUser(ctx, userID)
	if err != nil {
		c.SendEvent(domain.NewErrorEvent("Authentication failed"))
		return err
	}

	for _, convID := range conversationIDs {
		s.hub.JoinRoom(c, convID)
	}
	c.Session.Authenticate(userID)

	log.Ctx(ctx).Debug().Str(log.FieldClientID, c.ID).Int64(log.FieldUserID, userID).Msg("connection authenticated")
	return c.SendEvent(&domain.AuthenticatedEvent{Type: domain.EventAuthenticated, Success: true})
}

// HandleJoin subscribes the connection to one conversation room after
// re-validating membership. Prior authentication state is not trusted;
// membership can change between events.
func (s *realtimeServiceImpl) HandleJoin(ctx context.Context, c *hub.Client, conversationID, userID int64) error {
	member, err := s.repo.IsMember(ctx, conversationID, userID)
	if err != nil {
		c.SendEvent(domain.NewErrorEvent("Failed to join conversation"))
		return err
	}
	if !member {
		c.SendEvent(domain.NewErrorEvent("Not authorized"))
		return nil
	}

	s.hub.JoinRoom(c, conversationID)
	return c.SendEvent(&domain.JoinedEvent{Type: domain.EventJoined, ConversationID: conversationID})
}

// HandleLeave unsubscribes the connection from a room. Best-effort;
// never fails visibly.
func (s *realtimeServiceImpl) HandleLeave(ctx context.Context, c *hub.Client, conversationID int64) error {
	s.hub.LeaveRoom(c, conversationID)
	return nil
}

// HandlePublish validates, authorizes, and persists a message through
// the same path as the HTTP send, then broadcasts it to the room and
// acknowledges the calling connection directly. Both deliveries happen
// for every successful publish: the broadcast for subscribers (sender
// included) and the ack for request correlation.
func (s *realtimeServiceImpl) HandlePublish(ctx context.Context, c *hub.Client, conversationID, senderID int64, content string) error {
	mu := &s.publishMu[stripeFor(conversationID)]
	mu.Lock()

	msg, err := s.chat.SendMessage(ctx, conversationID, senderID, content)
	if err != nil {
		mu.Unlock()
		c.SendEvent(ackForPublishError(err))
		if errors.Is(err, ErrEmptyContent) || errors.Is(err, ErrNotMember) {
			return nil
		}
		return err
	}

	broadcastErr := s.hub.BroadcastToRoom(conversationID, &domain.NewMessageEvent{
		Type:    domain.EventNewMessage,
		Message: msg,
	})
	mu.Unlock()

	if broadcastErr != nil {
		log.Ctx(ctx).Error().Err(broadcastErr).Int64(log.FieldConversationID, conversationID).Msg("failed to broadcast message")
	}

	return c.SendEvent(&domain.MessageAckEvent{
		Type:      domain.EventMessageAck,
		Success:   true,
		MessageID: msg.ID,
	})
}

func ackForPublishError(err error) *domain.MessageAckEvent {
	ack := &domain.MessageAckEvent{Type: domain.EventMessageAck}
	switch {
	case errors.Is(err, ErrEmptyContent):
		ack.Error = "Empty message"
	case errors.Is(err, ErrNotMember):
		ack.Error = "Unauthorized"
	default:
		ack.Error = "Server error"
	}
	return ack
}

func stripeFor(conversationID int64) uint32 {
	h := fnv.New32a()
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(conversationID >> (8 * i))
	}
	h.Write(buf[:])
	return h.Sum32() % publishStripes
}
