package application

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/bnema/twitch-bot-cli/internal/adapters/helix"
	"github.com/bnema/twitch-bot-cli/internal/credentials"
	"github.com/bnema/twitch-bot-cli/internal/domain"
	"github.com/bnema/twitch-bot-cli/internal/eventsub"
	"github.com/bnema/twitch-bot-cli/internal/ports"
	"github.com/bnema/twitch-bot-cli/internal/resilience"
)

// SubscriptionService creates and deletes EventSub subscriptions through
// Helix with the channel's own token, and records their ids on the channel.
type SubscriptionService struct {
	helix    HelixAPI
	creds    *credentials.Store
	executor *resilience.Executor
	channels ports.ChannelRepository
	clock    ports.Clock

	ledgerMu sync.Mutex
}

var (
	_ eventsub.SubscriptionAPI    = (*SubscriptionService)(nil)
	_ eventsub.SubscriptionLedger = (*SubscriptionService)(nil)
)

func NewSubscriptionService(api HelixAPI, creds *credentials.Store, executor *resilience.Executor, channels ports.ChannelRepository, clock ports.Clock) *SubscriptionService {
	if executor == nil {
		executor = resilience.NewExecutor()
	}
	if clock == nil {
		clock = ports.SystemClock{}
	}

	return &SubscriptionService{
		helix:    api,
		creds:    creds,
		executor: executor,
		channels: channels,
		clock:    clock,
	}
}

func (s *SubscriptionService) Create(ctx context.Context, entity domain.EntityID, sessionID string, spec domain.SubscriptionSpec) (domain.Subscription, error) {
	req := helix.NewWebsocketSubscription(spec, sessionID)

	resp, err := resilience.Execute(ctx, s.executor, s.creds.RefreshFunc(entity), func(ctx context.Context) (*helix.Response[helix.Subscription], error) {
		cred, err := s.creds.Get(ctx, entity)
		if err != nil {
			return nil, err
		}
		return s.helix.CreateEventSubSubscription(ctx, cred.AccessToken, req)
	})
	if err != nil {
		return domain.Subscription{}, fmt.Errorf("create %s subscription: %w", spec.Type, err)
	}
	if err := resp.Err(); err != nil {
		return domain.Subscription{}, fmt.Errorf("create %s subscription: %w", spec.Type, err)
	}
	if len(resp.Data) == 0 {
		return domain.Subscription{}, fmt.Errorf("create %s subscription: empty response", spec.Type)
	}

	return resp.Data[0].ToDomain(), nil
}

// Delete treats an already missing subscription as deleted.
func (s *SubscriptionService) Delete(ctx context.Context, entity domain.EntityID, id string) error {
	resp, err := resilience.Execute(ctx, s.executor, s.creds.RefreshFunc(entity), func(ctx context.Context) (*helix.Response[helix.Empty], error) {
		cred, err := s.creds.Get(ctx, entity)
		if err != nil {
			return nil, err
		}
		return s.helix.DeleteEventSubSubscription(ctx, cred.AccessToken, id)
	})
	if err != nil {
		return fmt.Errorf("delete subscription %s: %w", id, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil
	}
	if err := resp.Err(); err != nil {
		return fmt.Errorf("delete subscription %s: %w", id, err)
	}

	return nil
}

func (s *SubscriptionService) LoadSubscriptionIDs(ctx context.Context, entity domain.EntityID) ([]string, error) {
	channel, err := s.channels.GetByID(ctx, entity)
	if err != nil {
		if errors.Is(err, domain.ErrChannelNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load subscription ids: %w", err)
	}

	return append([]string(nil), channel.SubscriptionIDs...), nil
}

func (s *SubscriptionService) SaveSubscriptionIDs(ctx context.Context, entity domain.EntityID, ids []string) error {
	s.ledgerMu.Lock()
	defer s.ledgerMu.Unlock()

	channel, err := s.channels.GetByID(ctx, entity)
	if err != nil {
		return fmt.Errorf("save subscription ids: %w", err)
	}

	channel.SubscriptionIDs = append([]string(nil), ids...)
	channel.UpdatedAt = s.clock.Now()
	if err := s.channels.Save(ctx, channel); err != nil {
		return fmt.Errorf("save subscription ids: %w", err)
	}

	return nil
}
