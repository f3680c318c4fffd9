package chain

import (
	"context"
	"errors"
	"fmt"

	filestore "github.com/bnema/twitch-bot-cli/internal/adapters/secrets/file"
	passstore "github.com/bnema/twitch-bot-cli/internal/adapters/secrets/pass"
	"github.com/bnema/twitch-bot-cli/internal/domain"
	tblog "github.com/bnema/twitch-bot-cli/internal/log"
	"github.com/bnema/twitch-bot-cli/internal/ports"
	"github.com/rs/zerolog"
)

// Store tries primary first and falls back to the second backend on any
// failure that is not a context cancellation.
type Store struct {
	primary  ports.SecretStore
	fallback ports.SecretStore
	logger   zerolog.Logger
}

var _ ports.SecretStore = (*Store)(nil)

var (
	errNilPrimaryStore  = errors.New("primary secret store is nil")
	errNilFallbackStore = errors.New("fallback secret store is nil")
)

func NewStore(primary ports.SecretStore, fallback ports.SecretStore) *Store {
	store, err := NewStoreChecked(primary, fallback)
	if err != nil {
		panic(err)
	}

	return store
}

func NewStoreChecked(primary ports.SecretStore, fallback ports.SecretStore) (*Store, error) {
	if primary == nil {
		return nil, errNilPrimaryStore
	}
	if fallback == nil {
		return nil, errNilFallbackStore
	}

	return &Store{primary: primary, fallback: fallback, logger: tblog.WithComponent("secrets")}, nil
}

// NewPassFirstWithFileFallback stores secrets in pass when it is installed
// and in plain files under fileRoot otherwise.
func NewPassFirstWithFileFallback(fileRoot string) (*Store, error) {
	return NewStoreChecked(passstore.NewStore(), filestore.NewStore(fileRoot))
}

func (s *Store) Put(ctx context.Context, key string, value string) error {
	err := s.primary.Put(ctx, key, value)
	if err == nil {
		return nil
	}
	if shouldSkipFallback(err) {
		return err
	}
	s.logFallback("put", key, err)

	fallbackErr := s.fallback.Put(ctx, key, value)
	if fallbackErr == nil {
		return nil
	}

	return fmt.Errorf("primary backend put failed: %w; fallback backend put failed: %w", err, fallbackErr)
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	value, err := s.primary.Get(ctx, key)
	if err == nil {
		return value, nil
	}
	if shouldSkipFallback(err) {
		return "", err
	}
	s.logFallback("get", key, err)

	fallbackValue, fallbackErr := s.fallback.Get(ctx, key)
	if fallbackErr == nil {
		return fallbackValue, nil
	}

	return "", fmt.Errorf("primary backend get failed: %w; fallback backend get failed: %w", err, fallbackErr)
}

// Delete removes the key from both backends so a stale fallback copy cannot
// resurface after the primary entry is gone.
func (s *Store) Delete(ctx context.Context, key string) error {
	err := s.primary.Delete(ctx, key)
	if shouldSkipFallback(err) {
		return err
	}

	fallbackErr := s.fallback.Delete(ctx, key)
	if err == nil || fallbackErr == nil {
		return nil
	}

	return fmt.Errorf("primary backend delete failed: %w; fallback backend delete failed: %w", err, fallbackErr)
}

func (s *Store) logFallback(op, key string, err error) {
	event := s.logger.Debug()
	if !errors.Is(err, domain.ErrSecretNotFound) {
		event = s.logger.Warn()
	}
	event.Err(err).Str("op", op).Str("key", key).Msg("primary secret backend failed, using fallback")
}

func shouldSkipFallback(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
