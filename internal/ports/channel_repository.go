package ports

import (
	"context"

	"github.com/bnema/twitch-bot-cli/internal/domain"
)

type ChannelRepository interface {
	GetByID(ctx context.Context, id domain.EntityID) (domain.Channel, error)
	List(ctx context.Context) ([]domain.Channel, error)
	Save(ctx context.Context, channel domain.Channel) error
}

type WatchtimeRepository interface {
	GetByChannelID(ctx context.Context, id domain.EntityID) (domain.Watchtime, error)
	Save(ctx context.Context, watchtime domain.Watchtime) error
}
