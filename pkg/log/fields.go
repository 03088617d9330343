package log

const (
	// Request
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"

	// Pipeline
	FieldEventID        = "event_id"
	FieldEventKind      = "event_kind"
	FieldNotificationID = "notification_id"
	FieldRecipientID    = "recipient_id"
	FieldChannelID      = "channel_id"
	FieldTopic          = "topic"
	FieldBatch          = "batch"
	FieldPending        = "pending"

	// Gateway
	FieldConnID = "conn_id"
	FieldUserID = "user_id"
	FieldRoom   = "room"

	// Service
	FieldService = "service"
)
