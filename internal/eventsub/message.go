package eventsub

import (
	"encoding/json"
	"time"

	"github.com/bnema/twitch-bot-cli/internal/domain"
)

const (
	MessageTypeWelcome      = "session_welcome"
	MessageTypeKeepalive    = "session_keepalive"
	MessageTypeNotification = "notification"
	MessageTypeReconnect    = "session_reconnect"
	MessageTypeRevocation   = "revocation"
)

type Metadata struct {
	MessageID           string    `json:"message_id"`
	MessageType         string    `json:"message_type"`
	MessageTimestamp    time.Time `json:"message_timestamp"`
	SubscriptionType    string    `json:"subscription_type,omitempty"`
	SubscriptionVersion string    `json:"subscription_version,omitempty"`
}

// Frame is the envelope of every text message on an EventSub socket.
type Frame struct {
	Metadata Metadata        `json:"metadata"`
	Payload  json.RawMessage `json:"payload"`
}

type Session struct {
	ID                      string    `json:"id"`
	Status                  string    `json:"status"`
	ConnectedAt             time.Time `json:"connected_at"`
	KeepaliveTimeoutSeconds *int      `json:"keepalive_timeout_seconds"`
	ReconnectURL            *string   `json:"reconnect_url"`
}

func (s Session) KeepaliveTimeout() time.Duration {
	if s.KeepaliveTimeoutSeconds == nil {
		return 0
	}
	return time.Duration(*s.KeepaliveTimeoutSeconds) * time.Second
}

type subscriptionPayload struct {
	ID        string            `json:"id"`
	Status    string            `json:"status"`
	Type      string            `json:"type"`
	Version   string            `json:"version"`
	Condition map[string]string `json:"condition"`
	Transport struct {
		Method    string `json:"method"`
		SessionID string `json:"session_id"`
	} `json:"transport"`
	CreatedAt time.Time `json:"created_at"`
}

func (s subscriptionPayload) toDomain() domain.Subscription {
	return domain.Subscription{
		ID:        s.ID,
		Type:      s.Type,
		Version:   s.Version,
		Status:    s.Status,
		Condition: s.Condition,
		Transport: domain.SubscriptionTransport{
			Method:    s.Transport.Method,
			SessionID: s.Transport.SessionID,
		},
		CreatedAt: s.CreatedAt,
	}
}

// Notification is one event delivered for a subscription. Event is left raw
// for the handler to decode per subscription type.
type Notification struct {
	MessageID    string
	Timestamp    time.Time
	Subscription domain.Subscription
	Event        json.RawMessage
}

type Revocation struct {
	Subscription domain.Subscription
}

type welcomeMessage struct {
	Session Session
}

type keepaliveMessage struct{}

type reconnectMessage struct {
	Session Session
}
