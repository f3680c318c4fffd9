package application

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/bnema/twitch-bot-cli/internal/adapters/auth"
	"github.com/bnema/twitch-bot-cli/internal/credentials"
	"github.com/bnema/twitch-bot-cli/internal/domain"
	"github.com/bnema/twitch-bot-cli/internal/log"
	"github.com/bnema/twitch-bot-cli/internal/ports"
	"github.com/bnema/twitch-bot-cli/internal/resilience"
)

// TokenValidator checks stored channel tokens against /validate, refreshing
// them when Twitch answers 401.
type TokenValidator struct {
	oauth    OAuthAPI
	creds    *credentials.Store
	executor *resilience.Executor
	channels ports.ChannelRepository
	clock    ports.Clock
	logger   zerolog.Logger
}

type CheckResult struct {
	Channel    domain.Channel
	Credential domain.Credential
	Err        error
}

func NewTokenValidator(oauth OAuthAPI, creds *credentials.Store, executor *resilience.Executor, channels ports.ChannelRepository, clock ports.Clock) *TokenValidator {
	if executor == nil {
		executor = resilience.NewExecutor()
	}
	if clock == nil {
		clock = ports.SystemClock{}
	}

	return &TokenValidator{
		oauth:    oauth,
		creds:    creds,
		executor: executor,
		channels: channels,
		clock:    clock,
		logger:   log.WithComponent("validator"),
	}
}

// Check validates the token of id and records the login, scopes and expiry
// Twitch reports. A token lacking any channel scope yields ErrMissingScopes
// alongside the updated credential.
func (v *TokenValidator) Check(ctx context.Context, id domain.EntityID) (domain.Credential, error) {
	validation, err := resilience.Execute(ctx, v.executor, v.creds.RefreshFunc(id), func(ctx context.Context) (*auth.Validation, error) {
		cred, err := v.creds.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return v.oauth.Validate(ctx, cred.AccessToken)
	})
	if err != nil {
		return domain.Credential{}, fmt.Errorf("validate token for %s: %w", id, err)
	}
	if validation.Status != http.StatusOK {
		return domain.Credential{}, fmt.Errorf("validate token for %s: status %d", id, validation.Status)
	}
	if validation.UserID != "" && validation.UserID != string(id) {
		return domain.Credential{}, fmt.Errorf("validate token for %s: token belongs to user %s", id, validation.UserID)
	}

	now := v.clock.Now()
	cred, err := v.creds.Update(ctx, id, func(c *domain.Credential) {
		if validation.Login != "" {
			c.Login = validation.Login
		}
		c.Scopes = domain.ParseScopes(validation.Scopes)
		if validation.ExpiresIn > 0 {
			c.ExpiresAt = now.Add(time.Duration(validation.ExpiresIn) * time.Second)
		}
	})
	if err != nil {
		return domain.Credential{}, err
	}

	if err := v.syncLogin(ctx, id, cred.Login); err != nil {
		v.logger.Warn().Err(err).Str(log.FieldChannelID, string(id)).Msg("update channel login failed")
	}

	if missing := cred.MissingScopes(domain.ChannelScopes...); len(missing) > 0 {
		return cred, fmt.Errorf("%w: %s", domain.ErrMissingScopes, strings.Join(domain.ScopeStrings(missing), ", "))
	}

	return cred, nil
}

// CheckAll validates every enabled channel. Per-channel failures are
// reported in the results; only listing the channels can fail the call.
func (v *TokenValidator) CheckAll(ctx context.Context) ([]CheckResult, error) {
	channels, err := v.channels.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}

	results := make([]CheckResult, 0, len(channels))
	for _, channel := range channels {
		if !channel.Enabled {
			continue
		}

		cred, err := v.Check(ctx, channel.ID)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return results, ctxErr
		}
		if err != nil {
			event := v.logger.Error()
			if errors.Is(err, domain.ErrMissingScopes) {
				event = v.logger.Warn()
			}
			event.Err(err).Str(log.FieldChannelID, string(channel.ID)).Str(log.FieldLogin, channel.Login).Msg("token check failed")
		}
		results = append(results, CheckResult{Channel: channel, Credential: cred, Err: err})
	}

	return results, nil
}

func (v *TokenValidator) syncLogin(ctx context.Context, id domain.EntityID, login string) error {
	if login == "" {
		return nil
	}

	channel, err := v.channels.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if channel.Login == login {
		return nil
	}

	channel.Login = login
	channel.UpdatedAt = v.clock.Now()
	return v.channels.Save(ctx, channel)
}
