package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/weiawesome/chat-backend/internal/domain"
	"github.com/weiawesome/chat-backend/internal/service"
	"github.com/weiawesome/chat-backend/pkg/log"
	"github.com/weiawesome/chat-backend/pkg/response"
)

// HTTPHandler handles the synchronous request/response surface.
type HTTPHandler struct {
	chatService  service.ChatService
	messageLimit int
}

// NewHTTPHandler creates a new HTTP handler.
func NewHTTPHandler(chatService service.ChatService, messageLimit int) *HTTPHandler {
	if messageLimit <= 0 {
		messageLimit = domain.DefaultMessageLimit
	}
	return &HTTPHandler{
		chatService:  chatService,
		messageLimit: messageLimit,
	}
}

// RegisterRoutes registers all routes.
func (h *HTTPHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/", h.Health)
	r.GET("/conversations", h.ListConversations)
	r.GET("/conversations/:id/messages", h.GetMessages)
	r.GET("/conversations/:id/members", h.GetMembers)
	r.POST("/conversations/:id/read", h.MarkAsRead)
	r.POST("/messages", h.SendMessage)
	r.GET("/users/:id", h.GetUser)
}

// Health reports service liveness.
func (h *HTTPHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "Chat API running!",
		"features": []string{"Multi-user", "Groups", "Read receipts"},
		"database": "Connected",
	})
}

// ListConversations lists the user's conversations with unread counts,
// ordered by unread count then recency.
func (h *HTTPHandler) ListConversations(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	userID, ok := parsePositiveID(c.Query("user_id"))
	if !ok {
		response.BadRequest(c, "Invalid or missing user_id")
		return
	}

	convs, err := h.chatService.ListConversations(ctx, userID)
	if err != nil {
		l.Error().Err(err).Int64(log.FieldUserID, userID).Msg("failed to list conversations")
		response.InternalError(c, "Database error")
		return
	}

	c.JSON(http.StatusOK, convs)
}

// GetMessages returns a conversation's history for a member. Fetching
// marks the member's unread messages read before the result is built.
func (h *HTTPHandler) GetMessages(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	conversationID, ok := parsePositiveID(c.Param("id"))
	if !ok {
		response.BadRequest(c, "Invalid conversation id")
		return
	}
	userID, ok := parsePositiveID(c.Query("user_id"))
	if !ok {
		response.BadRequest(c, "Invalid or missing user_id")
		return
	}

	msgs, err := h.chatService.ListMessages(ctx, conversationID, userID, h.messageLimit)
	if err != nil {
		if errors.Is(err, service.ErrNotMember) {
			response.Forbidden(c, "Unauthorized")
			return
		}
		l.Error().Err(err).Int64(log.FieldConversationID, conversationID).Msg("failed to get messages")
		response.InternalError(c, "Database error")
		return
	}

	c.JSON(http.StatusOK, msgs)
}

// SendMessage persists a new message.
func (h *HTTPHandler) SendMessage(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	var req domain.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Missing required field")
		return
	}

	msg, err := h.chatService.SendMessage(ctx, req.ConversationID, req.SenderID, req.Content)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmptyContent):
			response.BadRequest(c, "Message cannot be empty")
		case errors.Is(err, service.ErrNotMember):
			response.Forbidden(c, "Unauthorized")
		default:
			l.Error().Err(err).Int64(log.FieldConversationID, req.ConversationID).Msg("failed to send message")
			response.InternalError(c, "Database error occurred")
		}
		return
	}

	c.JSON(http.StatusCreated, domain.SendMessageResponse{
		ID:      msg.ID,
		Success: true,
		Message: "Message sent!",
	})
}

// MarkAsRead is the explicit mark-read path; it shares the idempotent
// bulk insert with the fetch path.
func (h *HTTPHandler) MarkAsRead(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	conversationID, ok := parsePositiveID(c.Param("id"))
	if !ok {
		response.BadRequest(c, "Invalid conversation id")
		return
	}

	var req domain.MarkReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Missing user_id")
		return
	}

	marked, err := h.chatService.MarkConversationRead(ctx, conversationID, req.UserID)
	if err != nil {
		if errors.Is(err, service.ErrNotMember) {
			response.Forbidden(c, "Unauthorized")
			return
		}
		l.Error().Err(err).Int64(log.FieldConversationID, conversationID).Msg("failed to mark conversation read")
		response.InternalError(c, "Database error")
		return
	}

	c.JSON(http.StatusOK, domain.MarkReadResponse{
		Success:     true,
		MarkedCount: marked,
	})
}

// GetUser returns a user profile.
func (h *HTTPHandler) GetUser(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	userID, ok := parsePositiveID(c.Param("id"))
	if !ok {
		response.BadRequest(c, "Invalid user id")
		return
	}

	user, err := h.chatService.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			response.NotFound(c, "User not found")
			return
		}
		l.Error().Err(err).Int64(log.FieldUserID, userID).Msg("failed to get user")
		response.InternalError(c, "Database error")
		return
	}

	c.JSON(http.StatusOK, user)
}

// GetMembers returns a conversation's member list.
func (h *HTTPHandler) GetMembers(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	conversationID, ok := parsePositiveID(c.Param("id"))
	if !ok {
		response.BadRequest(c, "Invalid conversation id")
		return
	}

	members, err := h.chatService.GetMembers(ctx, conversationID)
	if err != nil {
		l.Error().Err(err).Int64(log.FieldConversationID, conversationID).Msg("failed to get members")
		response.InternalError(c, "Database error")
		return
	}

	c.JSON(http.StatusOK, members)
}

func parsePositiveID(s string) (int64, bool) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
