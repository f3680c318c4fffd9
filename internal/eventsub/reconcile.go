package eventsub

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/bnema/twitch-bot-cli/internal/domain"
	"github.com/bnema/twitch-bot-cli/internal/log"
)

// reconcile replaces every subscription of the entity with the required set
// bound to sessionID: delete each known id, then create each required spec.
// Ledger writes outlive ctx so an interrupted pass still records progress.
func (c *Connection) reconcile(ctx context.Context, logger zerolog.Logger, sessionID string) {
	persistCtx := context.WithoutCancel(ctx)

	pending, err := c.ledger.LoadSubscriptionIDs(ctx, c.entity)
	loaded := err == nil
	if !loaded {
		logger.Warn().Err(err).Msg("load subscription ids, keeping ledger for next pass")
	}

	for len(pending) > 0 {
		if ctx.Err() != nil {
			c.persist(persistCtx, logger, pending)
			reconciliationsTotal.WithLabelValues(resultCanceled).Inc()
			return
		}

		id := pending[0]
		if err := c.api.Delete(ctx, c.entity, id); err != nil {
			logger.Warn().Err(err).Str(log.FieldSubscriptionID, id).Msg("delete stale subscription")
		}
		pending = pending[1:]
	}
	if loaded {
		c.persist(persistCtx, logger, pending)
	}

	created := make([]string, 0, 3)
	failed := false
	for _, spec := range domain.RequiredSubscriptions(c.entity) {
		if ctx.Err() != nil {
			failed = true
			break
		}

		sub, err := c.api.Create(ctx, c.entity, sessionID, spec)
		if err != nil {
			failed = true
			logger.Error().Err(err).Str(log.FieldEventType, spec.Type).Msg("create subscription")
			continue
		}
		created = append(created, sub.ID)
		logger.Debug().Str(log.FieldSubscriptionID, sub.ID).Str(log.FieldEventType, spec.Type).Msg("subscription created")
	}
	if loaded {
		c.persist(persistCtx, logger, created)
	} else {
		c.appendToLedger(persistCtx, logger, created)
	}

	c.mu.Lock()
	c.subscriptionIDs = append([]string(nil), created...)
	c.mu.Unlock()

	switch {
	case ctx.Err() != nil:
		reconciliationsTotal.WithLabelValues(resultCanceled).Inc()
	case failed:
		reconciliationsTotal.WithLabelValues(resultPartial).Inc()
	default:
		reconciliationsTotal.WithLabelValues(resultOK).Inc()
	}

	logger.Info().
		Str(log.FieldSessionID, sessionID).
		Strs("subscription_ids", created).
		Msg("subscriptions reconciled")
}

func (c *Connection) persist(ctx context.Context, logger zerolog.Logger, ids []string) {
	if ids == nil {
		ids = []string{}
	}
	if err := c.ledger.SaveSubscriptionIDs(ctx, c.entity, ids); err != nil {
		logger.Error().Err(err).Msg("persist subscription ids")
	}
}

// appendToLedger records created after whatever ids the ledger still holds,
// so stale ids that were never deleted are retried on the next welcome.
func (c *Connection) appendToLedger(ctx context.Context, logger zerolog.Logger, created []string) {
	stale, err := c.ledger.LoadSubscriptionIDs(ctx, c.entity)
	if err != nil {
		logger.Error().Err(err).Strs("subscription_ids", created).Msg("ledger unavailable, created ids not recorded")
		return
	}
	c.persist(ctx, logger, append(stale, created...))
}

// DeleteSubscriptions removes every persisted subscription of the entity,
// best effort, and clears the ledger.
func (c *Connection) DeleteSubscriptions(ctx context.Context) error {
	ids, err := c.ledger.LoadSubscriptionIDs(ctx, c.entity)
	if err != nil {
		return err
	}

	for _, id := range ids {
		if err := c.api.Delete(ctx, c.entity, id); err != nil {
			c.logger.Warn().Err(err).Str(log.FieldSubscriptionID, id).Msg("delete subscription")
		}
	}

	c.mu.Lock()
	c.subscriptionIDs = nil
	c.mu.Unlock()

	return c.ledger.SaveSubscriptionIDs(ctx, c.entity, []string{})
}
