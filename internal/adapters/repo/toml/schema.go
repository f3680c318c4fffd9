package toml

import "fmt"

const currentSchemaVersion = 1

type channelsFile struct {
	Version  int             `toml:"version"`
	Channels []channelSchema `toml:"channels"`
}

type channelSchema struct {
	ID              string   `toml:"id"`
	Login           string   `toml:"login"`
	Enabled         bool     `toml:"enabled"`
	SecretRef       string   `toml:"secret_ref"`
	SubscriptionIDs []string `toml:"subscription_ids"`
	UpdatedAt       string   `toml:"updated_at,omitempty"`
}

type watchtimeFile struct {
	Version  int               `toml:"version"`
	Channels []watchtimeSchema `toml:"channels"`
}

type watchtimeSchema struct {
	ChannelID string           `toml:"channel_id"`
	UpdatedAt string           `toml:"updated_at,omitempty"`
	Chatters  map[string]int64 `toml:"chatters"`
}

func applyDefaultVersion(version *int) {
	if *version == 0 {
		*version = currentSchemaVersion
	}
}

func validateVersion(kind string, version int) error {
	if version > currentSchemaVersion {
		return fmt.Errorf("unsupported %s schema version %d (current %d)", kind, version, currentSchemaVersion)
	}

	return nil
}
