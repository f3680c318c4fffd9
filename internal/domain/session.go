package domain

import "time"

type SessionStatus string

const (
	SessionStatusConnected    SessionStatus = "connected"
	SessionStatusReconnecting SessionStatus = "reconnecting"
)

// SessionDescriptor describes the EventSub session bound to one transport.
// KeepaliveTimeout is zero while reconnecting; ReconnectURL is empty unless
// the server asked for a reconnect.
type SessionDescriptor struct {
	SessionID        string
	Status           SessionStatus
	KeepaliveTimeout time.Duration
	ReconnectURL     string
	CreatedAt        time.Time
}
