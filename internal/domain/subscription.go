package domain

import "time"

const (
	SubscriptionTypeChatMessage   = "channel.chat.message"
	SubscriptionTypeStreamOnline  = "stream.online"
	SubscriptionTypeStreamOffline = "stream.offline"

	TransportMethodWebsocket = "websocket"
)

type SubscriptionTransport struct {
	Method    string
	SessionID string
}

type Subscription struct {
	ID        string
	Type      string
	Version   string
	Status    string
	Condition map[string]string
	Transport SubscriptionTransport
	CreatedAt time.Time
}

type SubscriptionSpec struct {
	Type      string
	Version   string
	Condition map[string]string
}

// RequiredSubscriptions is the fixed set every tracked channel subscribes to.
// Chat is read as the broadcaster itself.
func RequiredSubscriptions(broadcaster EntityID) []SubscriptionSpec {
	id := string(broadcaster)
	return []SubscriptionSpec{
		{
			Type:      SubscriptionTypeChatMessage,
			Version:   "1",
			Condition: map[string]string{"broadcaster_user_id": id, "user_id": id},
		},
		{
			Type:      SubscriptionTypeStreamOnline,
			Version:   "1",
			Condition: map[string]string{"broadcaster_user_id": id},
		},
		{
			Type:      SubscriptionTypeStreamOffline,
			Version:   "1",
			Condition: map[string]string{"broadcaster_user_id": id},
		},
	}
}
