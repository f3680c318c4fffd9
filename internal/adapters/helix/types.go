package helix

import (
	"fmt"
	"net/http"
	"time"

	"github.com/bnema/twitch-bot-cli/internal/domain"
)

type Pagination struct {
	Cursor string `json:"cursor,omitempty"`
}

// Response is one Helix reply. Status and Message come from the HTTP layer
// and the Helix error body; Data and Pagination from a successful body.
type Response[T any] struct {
	Status     int        `json:"-"`
	Message    string     `json:"-"`
	Data       []T        `json:"data"`
	Pagination Pagination `json:"pagination"`
	Total      int        `json:"total"`
}

func (r *Response[T]) StatusCode() int {
	return r.Status
}

func (r *Response[T]) OK() bool {
	return r.Status >= http.StatusOK && r.Status < http.StatusMultipleChoices
}

func (r *Response[T]) PageItems() []T {
	return r.Data
}

func (r *Response[T]) PageCursor() string {
	return r.Pagination.Cursor
}

func (r *Response[T]) SetPageItems(items []T) {
	r.Data = items
	r.Pagination.Cursor = ""
}

// Err returns nil for a 2xx response and an *APIError otherwise.
func (r *Response[T]) Err() error {
	if r.OK() {
		return nil
	}
	return &APIError{Status: r.Status, Message: r.Message}
}

type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("helix: status %d", e.Status)
	}
	return fmt.Sprintf("helix: status %d: %s", e.Status, e.Message)
}

type errorBody struct {
	Error   string `json:"error"`
	Status  int    `json:"status"`
	Message string `json:"message"`
}

type Transport struct {
	Method    string `json:"method"`
	SessionID string `json:"session_id,omitempty"`
}

type Subscription struct {
	ID        string            `json:"id"`
	Status    string            `json:"status"`
	Type      string            `json:"type"`
	Version   string            `json:"version"`
	Condition map[string]string `json:"condition"`
	Transport Transport         `json:"transport"`
	CreatedAt time.Time         `json:"created_at"`
}

func (s Subscription) ToDomain() domain.Subscription {
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

type CreateSubscriptionRequest struct {
	Type      string            `json:"type"`
	Version   string            `json:"version"`
	Condition map[string]string `json:"condition"`
	Transport Transport         `json:"transport"`
}

// NewWebsocketSubscription binds spec to an EventSub WebSocket session.
func NewWebsocketSubscription(spec domain.SubscriptionSpec, sessionID string) CreateSubscriptionRequest {
	return CreateSubscriptionRequest{
		Type:      spec.Type,
		Version:   spec.Version,
		Condition: spec.Condition,
		Transport: Transport{
			Method:    domain.TransportMethodWebsocket,
			SessionID: sessionID,
		},
	}
}

type Stream struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	UserLogin   string    `json:"user_login"`
	GameName    string    `json:"game_name"`
	Type        string    `json:"type"`
	Title       string    `json:"title"`
	ViewerCount int       `json:"viewer_count"`
	StartedAt   time.Time `json:"started_at"`
}

type Chatter struct {
	UserID    string `json:"user_id"`
	UserLogin string `json:"user_login"`
	UserName  string `json:"user_name"`
}

type User struct {
	ID          string    `json:"id"`
	Login       string    `json:"login"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}

// Empty is the item type of endpoints that answer 204 No Content.
type Empty struct{}
