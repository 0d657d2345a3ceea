package log

const (
	// Request
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"

	// Actor
	FieldUserID = "user_id"

	// Chat
	FieldConversationID = "conversation_id"
	FieldMessageID      = "message_id"
	FieldClientID       = "client_id"

	// Service
	FieldService = "service"

	// Log type (for audit entries)
	FieldLogType = "log_type"
	LogTypeAudit = "audit"
)
