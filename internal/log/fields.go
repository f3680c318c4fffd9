package log

// Canonical field name constants for structured logging.
const (
	FieldComponent = "component"

	// Twitch identity fields
	FieldChannelID      = "channel_id"
	FieldLogin          = "login"
	FieldSessionID      = "session_id"
	FieldSubscriptionID = "subscription_id"
	FieldConnID         = "conn_id"

	// EventSub fields
	FieldMessageType = "message_type"
	FieldEventType   = "event_type"
	FieldCause       = "cause"
	FieldCloseCode   = "close_code"
	FieldOldState    = "old_state"
	FieldNewState    = "new_state"

	// HTTP fields
	FieldStatus   = "status"
	FieldEndpoint = "endpoint"
	FieldAttempt  = "attempt"
)
