package application

import (
	"context"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bnema/twitch-bot-cli/internal/adapters/auth"
	"github.com/bnema/twitch-bot-cli/internal/adapters/helix"
	tomlrepo "github.com/bnema/twitch-bot-cli/internal/adapters/repo/toml"
	"github.com/bnema/twitch-bot-cli/internal/credentials"
	"github.com/bnema/twitch-bot-cli/internal/domain"
	"github.com/bnema/twitch-bot-cli/internal/resilience"
)

var testNow = time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func mockAnyContext() interface{} {
	return mock.Anything
}

type memorySecrets struct {
	mu     sync.Mutex
	values map[string]string
}

func newMemorySecrets() *memorySecrets {
	return &memorySecrets{values: map[string]string{}}
}

func (m *memorySecrets) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.values[key]
	if !ok {
		return "", domain.ErrSecretNotFound
	}
	return value, nil
}

func (m *memorySecrets) Put(_ context.Context, key string, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *memorySecrets) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

func (m *memorySecrets) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.values[key]
	return ok
}

// countingRefresher hands out access-<n> tokens.
type countingRefresher struct {
	calls atomic.Int32
	err   error
}

func (r *countingRefresher) Refresh(_ context.Context, refreshToken string) (credentials.Tokens, error) {
	n := r.calls.Add(1)
	if r.err != nil {
		return credentials.Tokens{}, r.err
	}
	return credentials.Tokens{
		AccessToken:  "access-" + strconv.Itoa(int(n)),
		RefreshToken: refreshToken,
		ExpiresAt:    testNow.Add(4 * time.Hour),
	}, nil
}

func newTestCredentials(t *testing.T) (*credentials.Store, *memorySecrets, *countingRefresher) {
	t.Helper()

	secrets := newMemorySecrets()
	refresher := &countingRefresher{}
	return credentials.NewStore(secrets, refresher), secrets, refresher
}

func seedCredential(t *testing.T, creds *credentials.Store, id domain.EntityID, token string, scopes ...domain.Scope) domain.Credential {
	t.Helper()

	if len(scopes) == 0 {
		scopes = domain.ChannelScopes
	}
	cred := domain.Credential{
		EntityID:     id,
		Login:        "login-" + string(id),
		AccessToken:  token,
		RefreshToken: "refresh-" + string(id),
		Scopes:       scopes,
		ExpiresAt:    testNow.Add(time.Hour),
	}
	require.NoError(t, creds.Replace(context.Background(), cred))
	return cred
}

func newTestChannelRepo(t *testing.T) *tomlrepo.ChannelRepository {
	t.Helper()

	repo, err := tomlrepo.NewChannelRepository(filepath.Join(t.TempDir(), "channels.toml"))
	require.NoError(t, err)
	return repo
}

func newTestWatchtimeRepo(t *testing.T) *tomlrepo.WatchtimeRepository {
	t.Helper()

	repo, err := tomlrepo.NewWatchtimeRepository(filepath.Join(t.TempDir(), "watchtime.toml"))
	require.NoError(t, err)
	return repo
}

func testExecutor() *resilience.Executor {
	return resilience.NewExecutor(resilience.WithTimeoutDelay(time.Millisecond))
}

type fakeHelix struct {
	create   func(ctx context.Context, token string, req helix.CreateSubscriptionRequest) (*helix.Response[helix.Subscription], error)
	del      func(ctx context.Context, token string, id string) (*helix.Response[helix.Empty], error)
	streams  func(ctx context.Context, token string, userIDs []string, cursor string) (*helix.Response[helix.Stream], error)
	chatters func(ctx context.Context, token string, broadcasterID string, moderatorID string, cursor string) (*helix.Response[helix.Chatter], error)
	users    func(ctx context.Context, token string, ids []string, logins []string) (*helix.Response[helix.User], error)
}

func (f *fakeHelix) CreateEventSubSubscription(ctx context.Context, token string, req helix.CreateSubscriptionRequest) (*helix.Response[helix.Subscription], error) {
	return f.create(ctx, token, req)
}

func (f *fakeHelix) DeleteEventSubSubscription(ctx context.Context, token string, id string) (*helix.Response[helix.Empty], error) {
	return f.del(ctx, token, id)
}

func (f *fakeHelix) GetStreams(ctx context.Context, token string, userIDs []string, cursor string) (*helix.Response[helix.Stream], error) {
	return f.streams(ctx, token, userIDs, cursor)
}

func (f *fakeHelix) GetChatters(ctx context.Context, token string, broadcasterID string, moderatorID string, cursor string) (*helix.Response[helix.Chatter], error) {
	return f.chatters(ctx, token, broadcasterID, moderatorID, cursor)
}

func (f *fakeHelix) GetUsers(ctx context.Context, token string, ids []string, logins []string) (*helix.Response[helix.User], error) {
	return f.users(ctx, token, ids, logins)
}

type fakeOAuth struct {
	exchange func(ctx context.Context, code string, redirectURI string) (auth.TokenResult, error)
	validate func(ctx context.Context, accessToken string) (*auth.Validation, error)
	revoked  []string
}

func (f *fakeOAuth) ExchangeCode(ctx context.Context, code string, redirectURI string) (auth.TokenResult, error) {
	return f.exchange(ctx, code, redirectURI)
}

func (f *fakeOAuth) Validate(ctx context.Context, accessToken string) (*auth.Validation, error) {
	return f.validate(ctx, accessToken)
}

func (f *fakeOAuth) Revoke(_ context.Context, accessToken string) error {
	f.revoked = append(f.revoked, accessToken)
	return nil
}

type recordingSubscriptions struct {
	mu      sync.Mutex
	deleted []string
	err     error
}

func (r *recordingSubscriptions) Create(context.Context, domain.EntityID, string, domain.SubscriptionSpec) (domain.Subscription, error) {
	return domain.Subscription{}, nil
}

func (r *recordingSubscriptions) Delete(_ context.Context, _ domain.EntityID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = append(r.deleted, id)
	return r.err
}

func mockAnyChannel() interface{} {
	return mock.AnythingOfType("domain.Channel")
}
