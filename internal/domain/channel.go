package domain

import (
	"fmt"
	"strings"
	"time"
)

// EntityID is the Twitch user id of a tracked channel.
type EntityID string

type Channel struct {
	ID              EntityID
	Login           string
	Enabled         bool
	SecretRef       string
	SubscriptionIDs []string
	UpdatedAt       time.Time
}

func (c Channel) Validate() error {
	if strings.TrimSpace(string(c.ID)) == "" {
		return fmt.Errorf("id is required")
	}
	if strings.TrimSpace(c.Login) == "" {
		return fmt.Errorf("login is required")
	}

	return nil
}

func (c *Channel) NormalizeSubscriptionIDs() {
	if c == nil {
		return
	}

	ids := make([]string, 0, len(c.SubscriptionIDs))
	seen := make(map[string]struct{}, len(c.SubscriptionIDs))
	for _, id := range c.SubscriptionIDs {
		trimmed := strings.TrimSpace(id)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		ids = append(ids, trimmed)
	}

	c.SubscriptionIDs = ids
}

// CredentialSecretRef is the secret-store key holding the OAuth tokens of a channel.
func CredentialSecretRef(id EntityID) string {
	return fmt.Sprintf("twitch://%s/oauth_tokens", id)
}
