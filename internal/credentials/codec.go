package credentials

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/bnema/twitch-bot-cli/internal/domain"
)

// oauthTokens is the secret-store encoding of a channel credential.
type oauthTokens struct {
	UserID       string   `json:"user_id"`
	Login        string   `json:"login,omitempty"`
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token,omitempty"`
	Scopes       []string `json:"scopes,omitempty"`
	ExpiresAt    int64    `json:"expires_at,omitempty"`
}

func decodeOAuthTokens(secretValue string) (domain.Credential, error) {
	var tokens oauthTokens
	if err := json.Unmarshal([]byte(secretValue), &tokens); err != nil {
		return domain.Credential{}, fmt.Errorf("decode oauth tokens: %w", err)
	}
	if strings.TrimSpace(tokens.AccessToken) == "" {
		return domain.Credential{}, fmt.Errorf("oauth tokens missing access_token")
	}

	cred := domain.Credential{
		EntityID:     domain.EntityID(tokens.UserID),
		Login:        tokens.Login,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		Scopes:       domain.ParseScopes(tokens.Scopes),
	}
	if tokens.ExpiresAt > 0 {
		cred.ExpiresAt = time.Unix(tokens.ExpiresAt, 0).UTC()
	}

	return cred, nil
}

func encodeOAuthTokens(cred domain.Credential) (string, error) {
	tokens := oauthTokens{
		UserID:       string(cred.EntityID),
		Login:        cred.Login,
		AccessToken:  cred.AccessToken,
		RefreshToken: cred.RefreshToken,
		Scopes:       domain.ScopeStrings(cred.Scopes),
	}
	if !cred.ExpiresAt.IsZero() {
		tokens.ExpiresAt = cred.ExpiresAt.Unix()
	}

	payload, err := json.Marshal(tokens)
	if err != nil {
		return "", fmt.Errorf("encode oauth tokens: %w", err)
	}
	return string(payload), nil
}
