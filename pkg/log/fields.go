package log

const (
	// Request
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"

	// Actor (matches pkg/middleware wallet keys)
	FieldWallet = "wallet_address"

	// Domain
	FieldStreamID  = "stream_id"
	FieldMessageID = "message_id"
	FieldTable     = "table"
	FieldFilter    = "filter"

	// Service
	FieldService = "service"

	// Log type (for audit log)
	FieldLogType = "log_type"
	LogTypeAudit = "audit"
)
