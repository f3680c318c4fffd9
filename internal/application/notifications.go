package application

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/bnema/twitch-bot-cli/internal/domain"
	"github.com/bnema/twitch-bot-cli/internal/eventsub"
	"github.com/bnema/twitch-bot-cli/internal/log"
)

type ChatMessage struct {
	BroadcasterUserID    string `json:"broadcaster_user_id"`
	BroadcasterUserLogin string `json:"broadcaster_user_login"`
	ChatterUserID        string `json:"chatter_user_id"`
	ChatterUserLogin     string `json:"chatter_user_login"`
	MessageID            string `json:"message_id"`
	Message              struct {
		Text string `json:"text"`
	} `json:"message"`
}

type StreamEvent struct {
	ID                   string `json:"id"`
	BroadcasterUserID    string `json:"broadcaster_user_id"`
	BroadcasterUserLogin string `json:"broadcaster_user_login"`
	Type                 string `json:"type"`
}

func decodeEvent[T any](n eventsub.Notification) (T, error) {
	var event T
	if err := json.Unmarshal(n.Event, &event); err != nil {
		return event, fmt.Errorf("decode %s event: %w", n.Subscription.Type, err)
	}
	return event, nil
}

// ChatHandler receives decoded chat messages.
type ChatHandler func(ctx context.Context, entity domain.EntityID, msg ChatMessage)

// NotificationRouter dispatches EventSub notifications by subscription type.
type NotificationRouter struct {
	presence *PresenceService
	chat     ChatHandler
	logger   zerolog.Logger
}

func NewNotificationRouter(presence *PresenceService, chat ChatHandler) *NotificationRouter {
	return &NotificationRouter{
		presence: presence,
		chat:     chat,
		logger:   log.WithComponent("router"),
	}
}

// Handle matches eventsub.NotificationHandler.
func (r *NotificationRouter) Handle(ctx context.Context, entity domain.EntityID, n eventsub.Notification) {
	notificationsTotal.WithLabelValues(n.Subscription.Type).Inc()
	logger := r.logger.With().
		Str(log.FieldChannelID, string(entity)).
		Str(log.FieldEventType, n.Subscription.Type).
		Logger()

	switch n.Subscription.Type {
	case domain.SubscriptionTypeChatMessage:
		msg, err := decodeEvent[ChatMessage](n)
		if err != nil {
			logger.Warn().Err(err).Msg("dropping notification")
			return
		}
		if r.chat != nil {
			r.chat(ctx, entity, msg)
		}
	case domain.SubscriptionTypeStreamOnline, domain.SubscriptionTypeStreamOffline:
		event, err := decodeEvent[StreamEvent](n)
		if err != nil {
			logger.Warn().Err(err).Msg("dropping notification")
			return
		}
		if r.presence == nil {
			return
		}
		broadcaster := domain.EntityID(event.BroadcasterUserID)
		if broadcaster == "" {
			broadcaster = entity
		}
		r.presence.SetLive(broadcaster, n.Subscription.Type == domain.SubscriptionTypeStreamOnline)
	default:
		logger.Debug().Msg("unhandled notification type")
	}
}

// LogChat writes each chat message to logger at info level.
func LogChat(logger zerolog.Logger) ChatHandler {
	return func(_ context.Context, entity domain.EntityID, msg ChatMessage) {
		logger.Info().
			Str(log.FieldChannelID, string(entity)).
			Str("channel", msg.BroadcasterUserLogin).
			Str("chatter", msg.ChatterUserLogin).
			Str("text", msg.Message.Text).
			Msg("chat message")
	}
}
