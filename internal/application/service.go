package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/bnema/twitch-bot-cli/internal/credentials"
	"github.com/bnema/twitch-bot-cli/internal/domain"
	"github.com/bnema/twitch-bot-cli/internal/eventsub"
	"github.com/bnema/twitch-bot-cli/internal/log"
	"github.com/bnema/twitch-bot-cli/internal/ports"
)

type TokenRevoker interface {
	Revoke(ctx context.Context, accessToken string) error
}

// Service manages the tracked channel records and their credentials.
type Service struct {
	channels  ports.ChannelRepository
	watchtime ports.WatchtimeRepository
	creds     *credentials.Store
	clock     ports.Clock
	logger    zerolog.Logger
}

func NewService(channels ports.ChannelRepository, watchtime ports.WatchtimeRepository, creds *credentials.Store, clock ports.Clock) *Service {
	if clock == nil {
		clock = ports.SystemClock{}
	}

	return &Service{
		channels:  channels,
		watchtime: watchtime,
		creds:     creds,
		clock:     clock,
		logger:    log.WithComponent("channels"),
	}
}

// Onboard stores cred and upserts its channel as enabled. If the channel
// cannot be saved, the previous credential is restored (or the new one is
// removed when there was none).
func (s *Service) Onboard(ctx context.Context, cred domain.Credential) (domain.Channel, error) {
	if strings.TrimSpace(string(cred.EntityID)) == "" {
		return domain.Channel{}, errors.New("credential user id is required")
	}
	if missing := cred.MissingScopes(domain.ChannelScopes...); len(missing) > 0 {
		return domain.Channel{}, fmt.Errorf("%w: %s", domain.ErrMissingScopes, strings.Join(domain.ScopeStrings(missing), ", "))
	}

	channel, err := s.channels.GetByID(ctx, cred.EntityID)
	if err != nil {
		if !errors.Is(err, domain.ErrChannelNotFound) {
			return domain.Channel{}, fmt.Errorf("get channel by id: %w", err)
		}
		channel = domain.Channel{ID: cred.EntityID}
	}

	previous, prevErr := s.creds.Get(ctx, cred.EntityID)
	if errors.Is(prevErr, context.Canceled) || errors.Is(prevErr, context.DeadlineExceeded) {
		return domain.Channel{}, prevErr
	}
	hadPrevious := prevErr == nil

	if err := s.creds.Replace(ctx, cred); err != nil {
		return domain.Channel{}, fmt.Errorf("store channel credential: %w", err)
	}

	channel.Login = cred.Login
	channel.Enabled = true
	channel.SecretRef = domain.CredentialSecretRef(cred.EntityID)
	channel.UpdatedAt = s.clock.Now()

	if err := s.channels.Save(ctx, channel); err != nil {
		var rollbackErr error
		if hadPrevious {
			rollbackErr = s.creds.Replace(ctx, previous)
		} else {
			rollbackErr = s.creds.Forget(ctx, cred.EntityID)
		}
		if rollbackErr != nil {
			return domain.Channel{}, fmt.Errorf("save channel and rollback credential: %w", errors.Join(err, rollbackErr))
		}
		return domain.Channel{}, fmt.Errorf("save channel: %w", err)
	}

	s.logger.Info().
		Str(log.FieldChannelID, string(channel.ID)).
		Str(log.FieldLogin, channel.Login).
		Bool("rotated", hadPrevious).
		Msg("channel onboarded")

	return channel, nil
}

func (s *Service) List(ctx context.Context) ([]domain.Channel, error) {
	channels, err := s.channels.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	return channels, nil
}

// Enabled lists the channels the bot should track.
func (s *Service) Enabled(ctx context.Context) ([]domain.Channel, error) {
	channels, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	enabled := make([]domain.Channel, 0, len(channels))
	for _, channel := range channels {
		if channel.Enabled {
			enabled = append(enabled, channel)
		}
	}
	return enabled, nil
}

// Resolve finds a channel by user id, then by login (case-insensitive).
func (s *Service) Resolve(ctx context.Context, ref string) (domain.Channel, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return domain.Channel{}, errors.New("channel id or login is required")
	}

	channel, err := s.channels.GetByID(ctx, domain.EntityID(ref))
	if err == nil {
		return channel, nil
	}
	if !errors.Is(err, domain.ErrChannelNotFound) {
		return domain.Channel{}, fmt.Errorf("get channel by id: %w", err)
	}

	channels, err := s.List(ctx)
	if err != nil {
		return domain.Channel{}, err
	}
	for _, candidate := range channels {
		if strings.EqualFold(candidate.Login, ref) {
			return candidate, nil
		}
	}

	return domain.Channel{}, fmt.Errorf("%w: %q", domain.ErrChannelNotFound, ref)
}

func (s *Service) SetEnabled(ctx context.Context, id domain.EntityID, enabled bool) (domain.Channel, error) {
	channel, err := s.channels.GetByID(ctx, id)
	if err != nil {
		return domain.Channel{}, fmt.Errorf("get channel by id: %w", err)
	}
	if channel.Enabled == enabled {
		return channel, nil
	}

	channel.Enabled = enabled
	channel.UpdatedAt = s.clock.Now()
	if err := s.channels.Save(ctx, channel); err != nil {
		return domain.Channel{}, fmt.Errorf("save channel: %w", err)
	}

	return channel, nil
}

// Remove disables the channel and drops its credential. Watchtime is kept.
// Deleting the recorded subscriptions and revoking the token are best effort.
func (s *Service) Remove(ctx context.Context, id domain.EntityID, subscriptions eventsub.SubscriptionAPI, revoker TokenRevoker) (domain.Channel, error) {
	channel, err := s.channels.GetByID(ctx, id)
	if err != nil {
		return domain.Channel{}, fmt.Errorf("get channel by id: %w", err)
	}
	logger := s.logger.With().Str(log.FieldChannelID, string(id)).Logger()

	cred, credErr := s.creds.Get(ctx, id)
	if credErr == nil && subscriptions != nil {
		for _, subscriptionID := range channel.SubscriptionIDs {
			if err := subscriptions.Delete(ctx, id, subscriptionID); err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return domain.Channel{}, ctxErr
				}
				logger.Warn().Err(err).Str(log.FieldSubscriptionID, subscriptionID).Msg("delete subscription failed")
			}
		}
	}

	channel.Enabled = false
	channel.SubscriptionIDs = nil
	channel.UpdatedAt = s.clock.Now()
	if err := s.channels.Save(ctx, channel); err != nil {
		return domain.Channel{}, fmt.Errorf("save channel: %w", err)
	}

	if credErr != nil {
		logger.Debug().Err(credErr).Msg("no credential to revoke")
		return channel, nil
	}

	if revoker != nil {
		if err := revoker.Revoke(ctx, cred.AccessToken); err != nil {
			logger.Warn().Err(err).Msg("revoke token failed")
		}
	}
	if err := s.creds.Forget(ctx, id); err != nil {
		return channel, fmt.Errorf("remove channel credential: %w", err)
	}

	logger.Info().Str(log.FieldLogin, channel.Login).Msg("channel removed")

	return channel, nil
}

// Statuses builds the read model of every channel. live may be nil.
func (s *Service) Statuses(ctx context.Context, topN int, live func(domain.EntityID) bool) ([]Status, error) {
	channels, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	statuses := make([]Status, 0, len(channels))
	for _, channel := range channels {
		status := Status{Channel: channel}

		cred, err := s.creds.Get(ctx, channel.ID)
		switch {
		case err == nil:
			status.Scopes = cred.Scopes
			status.MissingScopes = cred.MissingScopes(domain.ChannelScopes...)
			status.ExpiresAt = cred.ExpiresAt
		case errors.Is(err, domain.ErrCredentialNotFound):
			status.CredentialMissing = true
		default:
			return nil, fmt.Errorf("get credential for %s: %w", channel.ID, err)
		}

		if s.watchtime != nil {
			record, err := s.watchtime.GetByChannelID(ctx, channel.ID)
			if err != nil {
				return nil, fmt.Errorf("get watchtime for %s: %w", channel.ID, err)
			}
			status.ChatterCount = len(record.Chatters)
			status.TopChatters = record.Top(topN)
		}

		if live != nil {
			status.Live = live(channel.ID)
		}

		statuses = append(statuses, status)
	}

	return statuses, nil
}
