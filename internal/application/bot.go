package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/bnema/twitch-bot-cli/internal/adapters/httpserver"
	"github.com/bnema/twitch-bot-cli/internal/domain"
	"github.com/bnema/twitch-bot-cli/internal/eventsub"
	"github.com/bnema/twitch-bot-cli/internal/log"
)

const defaultShutdownTimeout = 10 * time.Second

type BotConfig struct {
	Channels        *Service
	Validator       *TokenValidator
	Presence        *PresenceService
	Supervisor      *eventsub.Supervisor
	PollInterval    time.Duration
	MetricsAddr     string
	ShutdownTimeout time.Duration
}

// Bot is the long-running process behind `tb run`: it validates every
// enabled channel, keeps one EventSub session per valid channel, and polls
// chatters of live channels.
type Bot struct {
	channels        *Service
	validator       *TokenValidator
	presence        *PresenceService
	supervisor      *eventsub.Supervisor
	pollInterval    time.Duration
	metricsAddr     string
	shutdownTimeout time.Duration
	logger          zerolog.Logger
}

func NewBot(cfg BotConfig) (*Bot, error) {
	if cfg.Channels == nil {
		return nil, errors.New("channel service is required")
	}
	if cfg.Validator == nil {
		return nil, errors.New("token validator is required")
	}
	if cfg.Presence == nil {
		return nil, errors.New("presence service is required")
	}
	if cfg.Supervisor == nil {
		return nil, errors.New("supervisor is required")
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}

	return &Bot{
		channels:        cfg.Channels,
		validator:       cfg.Validator,
		presence:        cfg.Presence,
		supervisor:      cfg.Supervisor,
		pollInterval:    cfg.PollInterval,
		metricsAddr:     cfg.MetricsAddr,
		shutdownTimeout: cfg.ShutdownTimeout,
		logger:          log.WithComponent("bot"),
	}, nil
}

func (b *Bot) Active() []domain.EntityID {
	return b.supervisor.Active()
}

func (b *Bot) Live() []domain.EntityID {
	return b.presence.Live()
}

// Run blocks until ctx ends or a background task fails. Cancellation is a
// clean stop and returns nil.
func (b *Bot) Run(ctx context.Context) error {
	results, err := b.validator.CheckAll(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("check channel tokens: %w", err)
	}

	ids := make([]domain.EntityID, 0, len(results))
	for _, result := range results {
		if result.Err != nil {
			continue
		}
		ids = append(ids, result.Channel.ID)
	}
	if len(ids) == 0 {
		b.logger.Warn().Int("checked", len(results)).Msg("no channel with a valid token to track")
	}

	if len(ids) > 0 {
		if err := b.presence.Seed(ctx, ids); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			b.logger.Warn().Err(err).Msg("seed live channels failed")
		}
	}

	for _, id := range ids {
		if err := b.supervisor.Track(id); err != nil {
			return fmt.Errorf("track channel %s: %w", id, err)
		}
	}
	b.logger.Info().Int("tracked", len(ids)).Int("live", len(b.presence.Live())).Msg("bot started")

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return b.presence.Run(gctx, b.pollInterval)
	})

	if b.metricsAddr != "" {
		g.Go(func() error {
			if err := httpserver.Serve(gctx, b.metricsAddr, httpserver.NewHandler(b)); err != nil {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), b.shutdownTimeout)
		defer cancel()
		if err := b.supervisor.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown supervisor: %w", err)
		}
		b.logger.Info().Msg("bot stopped")
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// DisableOnFatal is the fatal handler `tb run` installs: a channel whose
// subscriptions were revoked is disabled and no longer counted as live.
func DisableOnFatal(channels *Service, presence *PresenceService) eventsub.FatalHandler {
	logger := log.WithComponent("bot")
	return func(id domain.EntityID, d eventsub.Disconnect) {
		logger.Error().
			Str(log.FieldChannelID, string(id)).
			Str(log.FieldCause, string(d.Cause)).
			Str("reason", d.Reason).
			Msg("channel dropped, disabling")

		if presence != nil {
			presence.SetLive(id, false)
		}
		if _, err := channels.SetEnabled(context.Background(), id, false); err != nil {
			logger.Error().Err(err).Str(log.FieldChannelID, string(id)).Msg("disable channel failed")
		}
	}
}

type ConnectionSettings struct {
	Dialer         eventsub.Dialer
	KeepaliveGrace time.Duration
	WelcomeTimeout time.Duration
}

// NewConnectionFactory builds Connections that reconcile through subs and
// deliver notifications to handler.
func NewConnectionFactory(subs *SubscriptionService, handler eventsub.NotificationHandler, settings ConnectionSettings) eventsub.ConnectionFactory {
	return func(id domain.EntityID) (*eventsub.Connection, error) {
		return eventsub.NewConnection(eventsub.ConnectionConfig{
			Entity:         id,
			Dialer:         settings.Dialer,
			API:            subs,
			Ledger:         subs,
			Handler:        handler,
			KeepaliveGrace: settings.KeepaliveGrace,
			WelcomeTimeout: settings.WelcomeTimeout,
		})
	}
}
