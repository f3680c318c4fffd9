package application

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/bnema/twitch-bot-cli/internal/domain"
)

// Authorize exchanges an authorization code and validates the resulting
// token to learn which channel it belongs to.
func (s *Service) Authorize(ctx context.Context, oauth OAuthAPI, code, redirectURI string) (domain.Credential, error) {
	tokens, err := oauth.ExchangeCode(ctx, code, redirectURI)
	if err != nil {
		return domain.Credential{}, err
	}

	validation, err := oauth.Validate(ctx, tokens.AccessToken)
	if err != nil {
		return domain.Credential{}, fmt.Errorf("validate new token: %w", err)
	}
	if validation.Status != http.StatusOK {
		return domain.Credential{}, fmt.Errorf("validate new token: status %d", validation.Status)
	}
	if validation.UserID == "" {
		return domain.Credential{}, errors.New("validate new token: response has no user id")
	}

	scopes := validation.Scopes
	if len(scopes) == 0 {
		scopes = tokens.Scope
	}

	return domain.Credential{
		EntityID:     domain.EntityID(validation.UserID),
		Login:        validation.Login,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		Scopes:       domain.ParseScopes(scopes),
		ExpiresAt:    tokens.ExpiresAt(s.clock.Now()),
	}, nil
}

// OnboardCode runs Authorize and then Onboard.
func (s *Service) OnboardCode(ctx context.Context, oauth OAuthAPI, code, redirectURI string) (domain.Channel, error) {
	cred, err := s.Authorize(ctx, oauth, code, redirectURI)
	if err != nil {
		return domain.Channel{}, err
	}

	return s.Onboard(ctx, cred)
}
