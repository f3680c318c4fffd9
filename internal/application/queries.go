package application

import (
	"time"

	"github.com/bnema/twitch-bot-cli/internal/domain"
)

// Status is the read model of one tracked channel.
type Status struct {
	Channel       domain.Channel
	Scopes        []domain.Scope
	MissingScopes []domain.Scope
	// ExpiresAt is zero when no credential is stored.
	ExpiresAt         time.Time
	CredentialMissing bool
	Live              bool
	TopChatters       []domain.ChatterMinutes
	ChatterCount      int
	// ChatterLogins maps chatter user ids to logins when they were looked up.
	ChatterLogins map[string]string
}

func (s Status) ScopesGranted() int {
	return len(domain.ChannelScopes) - len(s.MissingScopes)
}
