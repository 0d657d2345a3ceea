package audit

import (
	"context"

	"github.com/weiawesome/chat-backend/pkg/log"
)

// Audit actions for the chat backend.
const (
	ActionSendMessage = "message.send"
	ActionMarkRead    = "conversation.mark_read"
)

// Field constants for audit entries.
const (
	FieldAction = "action"
	FieldDetail = "detail"
)

// Log emits a structured audit log entry via the context logger.
func Log(ctx context.Context, action string, userID int64, conversationID int64, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Int64(log.FieldUserID, userID).
		Int64(log.FieldConversationID, conversationID).
		Msg(msg)
}
