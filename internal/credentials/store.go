package credentials

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/bnema/twitch-bot-cli/internal/domain"
	"github.com/bnema/twitch-bot-cli/internal/log"
	"github.com/bnema/twitch-bot-cli/internal/ports"
	"github.com/bnema/twitch-bot-cli/internal/resilience"
)

// Tokens is what a successful refresh hands back.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	Scopes       []domain.Scope
	ExpiresAt    time.Time
}

type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (Tokens, error)
}

type RefresherFunc func(ctx context.Context, refreshToken string) (Tokens, error)

func (f RefresherFunc) Refresh(ctx context.Context, refreshToken string) (Tokens, error) {
	return f(ctx, refreshToken)
}

// Store holds one credential per tracked entity, backed by a secret store.
// Reads and writes for one entity are serialized on that entity's lock;
// concurrent refreshes for one entity share a single upstream call.
type Store struct {
	secrets   ports.SecretStore
	refresher Refresher
	logger    zerolog.Logger

	mu      sync.Mutex
	entries map[domain.EntityID]*entry
	group   singleflight.Group
}

type entry struct {
	mu     sync.RWMutex
	cred   domain.Credential
	loaded bool
}

type Option func(*Store)

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

func NewStore(secrets ports.SecretStore, refresher Refresher, opts ...Option) *Store {
	s := &Store{
		secrets:   secrets,
		refresher: refresher,
		logger:    log.WithComponent("credentials"),
		entries:   map[domain.EntityID]*entry{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) entryFor(id domain.EntityID) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		e = &entry{}
		s.entries[id] = e
	}
	return e
}

// Get returns the current credential of id, loading it from the secret store
// on first use.
func (s *Store) Get(ctx context.Context, id domain.EntityID) (domain.Credential, error) {
	e := s.entryFor(id)

	e.mu.RLock()
	if e.loaded {
		cred := e.cred
		e.mu.RUnlock()
		return cred, nil
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.loaded {
		return e.cred, nil
	}

	cred, err := s.load(ctx, id)
	if err != nil {
		return domain.Credential{}, err
	}
	e.cred = cred
	e.loaded = true

	return cred, nil
}

func (s *Store) load(ctx context.Context, id domain.EntityID) (domain.Credential, error) {
	value, err := s.secrets.Get(ctx, domain.CredentialSecretRef(id))
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return domain.Credential{}, err
		}
		return domain.Credential{}, fmt.Errorf("load credential for %s: %w: %w", id, domain.ErrCredentialNotFound, err)
	}

	cred, err := decodeOAuthTokens(value)
	if err != nil {
		return domain.Credential{}, fmt.Errorf("load credential for %s: %w", id, err)
	}
	cred.EntityID = id

	return cred, nil
}

// Replace persists cred and then swaps it in. Access and refresh tokens are
// never observed half-updated.
func (s *Store) Replace(ctx context.Context, cred domain.Credential) error {
	if cred.EntityID == "" {
		return errors.New("credential entity id is required")
	}
	if cred.AccessToken == "" {
		return errors.New("credential access token is required")
	}

	e := s.entryFor(cred.EntityID)
	e.mu.Lock()
	defer e.mu.Unlock()

	return s.replaceLocked(ctx, e, cred)
}

func (s *Store) replaceLocked(ctx context.Context, e *entry, cred domain.Credential) error {
	encoded, err := encodeOAuthTokens(cred)
	if err != nil {
		return err
	}
	if err := s.secrets.Put(ctx, domain.CredentialSecretRef(cred.EntityID), encoded); err != nil {
		return fmt.Errorf("persist credential for %s: %w", cred.EntityID, err)
	}

	e.cred = cred
	e.loaded = true

	return nil
}

// Update applies mutate to the stored credential of id and persists the result.
func (s *Store) Update(ctx context.Context, id domain.EntityID, mutate func(*domain.Credential)) (domain.Credential, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return domain.Credential{}, err
	}

	e := s.entryFor(id)
	e.mu.Lock()
	defer e.mu.Unlock()

	next := e.cred
	next.Scopes = append([]domain.Scope(nil), e.cred.Scopes...)
	mutate(&next)
	next.EntityID = id

	if err := s.replaceLocked(ctx, e, next); err != nil {
		return domain.Credential{}, err
	}

	return next, nil
}

// Refresh renews the credential of id. Concurrent callers for the same id
// share one upstream refresh; a caller whose ctx ends stops waiting without
// cancelling the shared refresh.
func (s *Store) Refresh(ctx context.Context, id domain.EntityID) (domain.Credential, error) {
	ch := s.group.DoChan(string(id), func() (any, error) {
		return s.refresh(context.WithoutCancel(ctx), id)
	})

	select {
	case <-ctx.Done():
		return domain.Credential{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return domain.Credential{}, res.Err
		}
		return res.Val.(domain.Credential), nil
	}
}

func (s *Store) refresh(ctx context.Context, id domain.EntityID) (domain.Credential, error) {
	e := s.entryFor(id)
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.loaded {
		cred, err := s.load(ctx, id)
		if err != nil {
			refreshesTotal.WithLabelValues(resultError).Inc()
			return domain.Credential{}, err
		}
		e.cred = cred
		e.loaded = true
	}
	current := e.cred

	// The entity lock is held across the upstream call so that an Update or
	// Replace issued meanwhile applies on top of the refreshed tokens.
	tokens, err := s.refresher.Refresh(ctx, current.RefreshToken)
	if err != nil {
		if errors.Is(err, domain.ErrRefreshRejected) {
			refreshesTotal.WithLabelValues(resultRejected).Inc()
			s.logger.Error().Err(err).Str(log.FieldChannelID, string(id)).Msg("refresh token rejected")
			return domain.Credential{}, err
		}
		refreshesTotal.WithLabelValues(resultError).Inc()
		return domain.Credential{}, fmt.Errorf("refresh credential for %s: %w", id, err)
	}

	next := current
	next.AccessToken = tokens.AccessToken
	if tokens.RefreshToken != "" {
		next.RefreshToken = tokens.RefreshToken
	}
	if len(tokens.Scopes) > 0 {
		next.Scopes = tokens.Scopes
	} else {
		next.Scopes = append([]domain.Scope(nil), current.Scopes...)
	}
	next.ExpiresAt = tokens.ExpiresAt

	if err := s.replaceLocked(ctx, e, next); err != nil {
		refreshesTotal.WithLabelValues(resultError).Inc()
		return domain.Credential{}, err
	}

	refreshesTotal.WithLabelValues(resultOK).Inc()
	s.logger.Info().Str(log.FieldChannelID, string(id)).Time("expires_at", next.ExpiresAt).Msg("credential refreshed")

	return next, nil
}

// RefreshFunc binds Refresh to one entity for use with resilience.Execute.
func (s *Store) RefreshFunc(id domain.EntityID) resilience.RefreshFunc {
	return func(ctx context.Context) error {
		_, err := s.Refresh(ctx, id)
		return err
	}
}

// Forget drops the cached credential of id and deletes its secret.
func (s *Store) Forget(ctx context.Context, id domain.EntityID) error {
	e := s.entryFor(id)
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := s.secrets.Delete(ctx, domain.CredentialSecretRef(id)); err != nil {
		return fmt.Errorf("delete credential for %s: %w", id, err)
	}

	e.cred = domain.Credential{}
	e.loaded = false

	return nil
}
