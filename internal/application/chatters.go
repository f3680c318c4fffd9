package application

import (
	"context"
	"fmt"

	"github.com/bnema/twitch-bot-cli/internal/adapters/helix"
	"github.com/bnema/twitch-bot-cli/internal/domain"
	"github.com/bnema/twitch-bot-cli/internal/log"
	"github.com/bnema/twitch-bot-cli/internal/resilience"
)

const usersBatchSize = 100

// ChatterLogins looks up the logins of userIDs with the token of channel.
// Unknown or deleted users are absent from the result.
func (p *PresenceService) ChatterLogins(ctx context.Context, channel domain.EntityID, userIDs []string) (map[string]string, error) {
	logins := make(map[string]string, len(userIDs))

	for start := 0; start < len(userIDs); start += usersBatchSize {
		end := start + usersBatchSize
		if end > len(userIDs) {
			end = len(userIDs)
		}
		batch := userIDs[start:end]

		resp, err := resilience.Execute(ctx, p.executor, p.creds.RefreshFunc(channel), func(ctx context.Context) (*helix.Response[helix.User], error) {
			cred, err := p.creds.Get(ctx, channel)
			if err != nil {
				return nil, err
			}
			return p.helix.GetUsers(ctx, cred.AccessToken, batch, nil)
		})
		if err != nil {
			return nil, fmt.Errorf("get users: %w", err)
		}
		if err := resp.Err(); err != nil {
			return nil, fmt.Errorf("get users: %w", err)
		}

		for _, user := range resp.Data {
			logins[user.ID] = user.Login
		}
	}

	return logins, nil
}

// WithChatterLogins fills in the logins of each status's top chatters.
// Channels whose lookup fails keep bare user ids.
func (p *PresenceService) WithChatterLogins(ctx context.Context, statuses []Status) []Status {
	for i, status := range statuses {
		if status.CredentialMissing || len(status.TopChatters) == 0 {
			continue
		}

		ids := make([]string, 0, len(status.TopChatters))
		for _, chatter := range status.TopChatters {
			ids = append(ids, chatter.UserID)
		}

		logins, err := p.ChatterLogins(ctx, status.Channel.ID, ids)
		if err != nil {
			p.logger.Warn().Err(err).Str(log.FieldChannelID, string(status.Channel.ID)).Msg("chatter login lookup failed")
			continue
		}
		statuses[i].ChatterLogins = logins
	}

	return statuses
}
