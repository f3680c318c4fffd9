package application

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/bnema/twitch-bot-cli/internal/adapters/helix"
	"github.com/bnema/twitch-bot-cli/internal/credentials"
	"github.com/bnema/twitch-bot-cli/internal/domain"
	"github.com/bnema/twitch-bot-cli/internal/log"
	"github.com/bnema/twitch-bot-cli/internal/ports"
	"github.com/bnema/twitch-bot-cli/internal/resilience"
)

const (
	DefaultPollInterval = time.Minute

	streamsBatchSize = 100
)

// PresenceService tracks which channels are live and accrues watchtime for
// the chatters seen in them.
type PresenceService struct {
	helix     HelixAPI
	creds     *credentials.Store
	executor  *resilience.Executor
	watchtime ports.WatchtimeRepository
	clock     ports.Clock
	logger    zerolog.Logger

	mu   sync.RWMutex
	live map[domain.EntityID]struct{}
}

func NewPresenceService(api HelixAPI, creds *credentials.Store, executor *resilience.Executor, watchtime ports.WatchtimeRepository, clock ports.Clock) *PresenceService {
	if executor == nil {
		executor = resilience.NewExecutor()
	}
	if clock == nil {
		clock = ports.SystemClock{}
	}

	return &PresenceService{
		helix:     api,
		creds:     creds,
		executor:  executor,
		watchtime: watchtime,
		clock:     clock,
		logger:    log.WithComponent("presence"),
		live:      map[domain.EntityID]struct{}{},
	}
}

func (p *PresenceService) SetLive(id domain.EntityID, live bool) {
	p.mu.Lock()
	_, was := p.live[id]
	if live {
		p.live[id] = struct{}{}
	} else {
		delete(p.live, id)
	}
	count := len(p.live)
	p.mu.Unlock()

	liveChannels.Set(float64(count))
	if was != live {
		p.logger.Info().Str(log.FieldChannelID, string(id)).Bool("live", live).Msg("presence changed")
	}
}

func (p *PresenceService) IsLive(id domain.EntityID) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	_, ok := p.live[id]
	return ok
}

// Live returns the live channels in id order.
func (p *PresenceService) Live() []domain.EntityID {
	p.mu.RLock()
	ids := make([]domain.EntityID, 0, len(p.live))
	for id := range p.live {
		ids = append(ids, id)
	}
	p.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Seed marks as live every channel among ids that currently streams. Each
// batch is queried with the token of its first channel.
func (p *PresenceService) Seed(ctx context.Context, ids []domain.EntityID) error {
	for start := 0; start < len(ids); start += streamsBatchSize {
		end := start + streamsBatchSize
		if end > len(ids) {
			end = len(ids)
		}
		batch := ids[start:end]

		streams, err := p.liveStreams(ctx, batch)
		if err != nil {
			return err
		}

		online := make(map[domain.EntityID]struct{}, len(streams))
		for _, stream := range streams {
			online[domain.EntityID(stream.UserID)] = struct{}{}
		}
		for _, id := range batch {
			_, ok := online[id]
			p.SetLive(id, ok)
		}
	}

	return nil
}

func (p *PresenceService) liveStreams(ctx context.Context, batch []domain.EntityID) ([]helix.Stream, error) {
	owner := batch[0]
	userIDs := make([]string, 0, len(batch))
	for _, id := range batch {
		userIDs = append(userIDs, string(id))
	}

	resp, err := resilience.Collect[helix.Stream](ctx, func(ctx context.Context, cursor string) (*helix.Response[helix.Stream], error) {
		return resilience.Execute(ctx, p.executor, p.creds.RefreshFunc(owner), func(ctx context.Context) (*helix.Response[helix.Stream], error) {
			cred, err := p.creds.Get(ctx, owner)
			if err != nil {
				return nil, err
			}
			return p.helix.GetStreams(ctx, cred.AccessToken, userIDs, cursor)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("get streams: %w", err)
	}
	if err := resp.Err(); err != nil {
		return nil, fmt.Errorf("get streams: %w", err)
	}

	return resp.Data, nil
}

// Poll records one chatter sighting per live channel. Channels whose poll
// fails are logged and skipped.
func (p *PresenceService) Poll(ctx context.Context) error {
	for _, id := range p.Live() {
		if err := p.pollChannel(ctx, id); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			chatterPollsTotal.WithLabelValues("error").Inc()
			p.logger.Warn().Err(err).Str(log.FieldChannelID, string(id)).Msg("chatter poll failed")
			continue
		}
		chatterPollsTotal.WithLabelValues("ok").Inc()
	}

	return nil
}

func (p *PresenceService) pollChannel(ctx context.Context, id domain.EntityID) error {
	resp, err := resilience.Collect[helix.Chatter](ctx, func(ctx context.Context, cursor string) (*helix.Response[helix.Chatter], error) {
		return resilience.Execute(ctx, p.executor, p.creds.RefreshFunc(id), func(ctx context.Context) (*helix.Response[helix.Chatter], error) {
			cred, err := p.creds.Get(ctx, id)
			if err != nil {
				return nil, err
			}
			return p.helix.GetChatters(ctx, cred.AccessToken, string(id), string(id), cursor)
		})
	})
	if err != nil {
		return fmt.Errorf("get chatters: %w", err)
	}
	if err := resp.Err(); err != nil {
		return fmt.Errorf("get chatters: %w", err)
	}

	userIDs := make([]string, 0, len(resp.Data))
	for _, chatter := range resp.Data {
		userIDs = append(userIDs, chatter.UserID)
	}

	record, err := p.watchtime.GetByChannelID(ctx, id)
	if err != nil {
		return fmt.Errorf("get watchtime: %w", err)
	}
	record.ChannelID = id
	record.Observe(userIDs, p.clock.Now())
	if err := p.watchtime.Save(ctx, record); err != nil {
		return fmt.Errorf("save watchtime: %w", err)
	}

	p.logger.Debug().Str(log.FieldChannelID, string(id)).Int("chatters", len(userIDs)).Msg("watchtime updated")

	return nil
}

// Run polls every interval until ctx ends.
func (p *PresenceService) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := p.Poll(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
		}
	}
}
