package toml

import (
	"context"
	"sort"

	"github.com/bnema/twitch-bot-cli/internal/domain"
	"github.com/bnema/twitch-bot-cli/internal/ports"
)

type ChannelRepository struct {
	doc document
}

var _ ports.ChannelRepository = (*ChannelRepository)(nil)

func NewChannelRepository(path string) (*ChannelRepository, error) {
	doc, err := newDocument(path, "channels")
	if err != nil {
		return nil, err
	}

	return &ChannelRepository{doc: doc}, nil
}

func (r *ChannelRepository) Save(ctx context.Context, channel domain.Channel) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := channel.Validate(); err != nil {
		return err
	}
	channel.NormalizeSubscriptionIDs()

	r.doc.mu.Lock()
	defer r.doc.mu.Unlock()

	file, err := r.readFile()
	if err != nil {
		return err
	}

	encoded := toChannelSchema(channel)
	updated := false
	for i := range file.Channels {
		if file.Channels[i].ID == encoded.ID {
			file.Channels[i] = encoded
			updated = true
			break
		}
	}
	if !updated {
		file.Channels = append(file.Channels, encoded)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	applyDefaultVersion(&file.Version)
	return r.doc.write(file)
}

func (r *ChannelRepository) GetByID(ctx context.Context, id domain.EntityID) (domain.Channel, error) {
	if err := ctx.Err(); err != nil {
		return domain.Channel{}, err
	}

	r.doc.mu.RLock()
	defer r.doc.mu.RUnlock()

	file, err := r.readFile()
	if err != nil {
		return domain.Channel{}, err
	}

	for _, entry := range file.Channels {
		if entry.ID == string(id) {
			return fromChannelSchema(entry), nil
		}
	}

	return domain.Channel{}, domain.ErrChannelNotFound
}

// List returns channels ordered by login.
func (r *ChannelRepository) List(ctx context.Context) ([]domain.Channel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.doc.mu.RLock()
	defer r.doc.mu.RUnlock()

	file, err := r.readFile()
	if err != nil {
		return nil, err
	}

	channels := make([]domain.Channel, 0, len(file.Channels))
	for _, entry := range file.Channels {
		channels = append(channels, fromChannelSchema(entry))
	}
	sort.SliceStable(channels, func(i, j int) bool {
		return channels[i].Login < channels[j].Login
	})

	return channels, nil
}

func (r *ChannelRepository) readFile() (channelsFile, error) {
	var file channelsFile
	if err := r.doc.read(&file); err != nil {
		return channelsFile{}, err
	}
	if err := validateVersion(r.doc.kind, file.Version); err != nil {
		return channelsFile{}, err
	}
	applyDefaultVersion(&file.Version)

	return file, nil
}

func toChannelSchema(channel domain.Channel) channelSchema {
	ids := channel.SubscriptionIDs
	if ids == nil {
		ids = []string{}
	}

	return channelSchema{
		ID:              string(channel.ID),
		Login:           channel.Login,
		Enabled:         channel.Enabled,
		SecretRef:       channel.SecretRef,
		SubscriptionIDs: ids,
		UpdatedAt:       formatTime(channel.UpdatedAt),
	}
}

func fromChannelSchema(entry channelSchema) domain.Channel {
	secretRef := entry.SecretRef
	if secretRef == "" {
		secretRef = domain.CredentialSecretRef(domain.EntityID(entry.ID))
	}

	channel := domain.Channel{
		ID:              domain.EntityID(entry.ID),
		Login:           entry.Login,
		Enabled:         entry.Enabled,
		SecretRef:       secretRef,
		SubscriptionIDs: entry.SubscriptionIDs,
		UpdatedAt:       parseTime(entry.UpdatedAt),
	}
	channel.NormalizeSubscriptionIDs()

	return channel
}
