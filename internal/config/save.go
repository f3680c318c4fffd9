package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

const (
	fileMode = 0o600
	dirMode  = 0o700
)

// SetClientID writes twitch.client_id into <dir>/config.toml, keeping every
// other key already present in the file.
func SetClientID(dir string, clientID string) error {
	if clientID == "" {
		return errors.New("client id is required")
	}

	path := filepath.Join(dir, configFile)
	doc := map[string]any{}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("decode config file: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return fmt.Errorf("read config file: %w", err)
	}

	twitch, _ := doc["twitch"].(map[string]any)
	if twitch == nil {
		twitch = map[string]any{}
	}
	twitch["client_id"] = clientID
	doc["twitch"] = twitch

	encoded, err := toml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode config file: %w", err)
	}

	return writeFileAtomic(path, encoded)
}

func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), dirMode); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(path), ".config-*.toml.tmp")
	if err != nil {
		return fmt.Errorf("create temp config file: %w", err)
	}

	tempName := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempName)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp config file: %w", err)
	}
	if err := tempFile.Chmod(fileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp config file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp config file: %w", err)
	}
	if err := os.Rename(tempName, path); err != nil {
		return fmt.Errorf("replace config file: %w", err)
	}
	cleanup = false

	return nil
}
