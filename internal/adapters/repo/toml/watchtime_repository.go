package toml

import (
	"context"

	"github.com/bnema/twitch-bot-cli/internal/domain"
	"github.com/bnema/twitch-bot-cli/internal/ports"
)

type WatchtimeRepository struct {
	doc document
}

var _ ports.WatchtimeRepository = (*WatchtimeRepository)(nil)

func NewWatchtimeRepository(path string) (*WatchtimeRepository, error) {
	doc, err := newDocument(path, "watchtime")
	if err != nil {
		return nil, err
	}

	return &WatchtimeRepository{doc: doc}, nil
}

// GetByChannelID returns an empty record for a channel that has no entry yet.
func (r *WatchtimeRepository) GetByChannelID(ctx context.Context, id domain.EntityID) (domain.Watchtime, error) {
	if err := ctx.Err(); err != nil {
		return domain.Watchtime{}, err
	}

	r.doc.mu.RLock()
	defer r.doc.mu.RUnlock()

	file, err := r.readFile()
	if err != nil {
		return domain.Watchtime{}, err
	}

	for _, entry := range file.Channels {
		if entry.ChannelID == string(id) {
			return fromWatchtimeSchema(entry), nil
		}
	}

	return domain.Watchtime{ChannelID: id, Chatters: map[string]int64{}}, nil
}

func (r *WatchtimeRepository) Save(ctx context.Context, watchtime domain.Watchtime) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.doc.mu.Lock()
	defer r.doc.mu.Unlock()

	file, err := r.readFile()
	if err != nil {
		return err
	}

	encoded := toWatchtimeSchema(watchtime)
	updated := false
	for i := range file.Channels {
		if file.Channels[i].ChannelID == encoded.ChannelID {
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

func (r *WatchtimeRepository) readFile() (watchtimeFile, error) {
	var file watchtimeFile
	if err := r.doc.read(&file); err != nil {
		return watchtimeFile{}, err
	}
	if err := validateVersion(r.doc.kind, file.Version); err != nil {
		return watchtimeFile{}, err
	}
	applyDefaultVersion(&file.Version)

	return file, nil
}

func toWatchtimeSchema(watchtime domain.Watchtime) watchtimeSchema {
	chatters := make(map[string]int64, len(watchtime.Chatters))
	for userID, minutes := range watchtime.Chatters {
		chatters[userID] = minutes
	}

	return watchtimeSchema{
		ChannelID: string(watchtime.ChannelID),
		UpdatedAt: formatTime(watchtime.UpdatedAt),
		Chatters:  chatters,
	}
}

func fromWatchtimeSchema(entry watchtimeSchema) domain.Watchtime {
	chatters := make(map[string]int64, len(entry.Chatters))
	for userID, minutes := range entry.Chatters {
		chatters[userID] = minutes
	}

	return domain.Watchtime{
		ChannelID: domain.EntityID(entry.ChannelID),
		Chatters:  chatters,
		UpdatedAt: parseTime(entry.UpdatedAt),
	}
}
