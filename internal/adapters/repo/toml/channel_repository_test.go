package toml

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bnema/twitch-bot-cli/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestChannelRepository(t *testing.T) (*ChannelRepository, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "channels.toml")
	repo, err := NewChannelRepository(path)
	require.NoError(t, err)

	return repo, path
}

func TestChannelRepositoryRoundTrip(t *testing.T) {
	t.Parallel()

	repo, _ := newTestChannelRepository(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	first := domain.Channel{
		ID:              "1001",
		Login:           "zeta",
		Enabled:         true,
		SecretRef:       domain.CredentialSecretRef("1001"),
		SubscriptionIDs: []string{"sub-a", "sub-b", "sub-c"},
		UpdatedAt:       now,
	}
	second := domain.Channel{
		ID:              "1002",
		Login:           "alpha",
		Enabled:         false,
		SecretRef:       domain.CredentialSecretRef("1002"),
		SubscriptionIDs: []string{},
		UpdatedAt:       now,
	}

	require.NoError(t, repo.Save(context.Background(), first))
	require.NoError(t, repo.Save(context.Background(), second))

	got, err := repo.GetByID(context.Background(), first.ID)
	require.NoError(t, err)
	assert.Equal(t, first, got)

	channels, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, channels, 2)
	assert.Equal(t, "alpha", channels[0].Login)
	assert.Equal(t, "zeta", channels[1].Login)
}

func TestChannelRepositorySaveReplacesExistingEntry(t *testing.T) {
	t.Parallel()

	repo, _ := newTestChannelRepository(t)

	channel := domain.Channel{ID: "1001", Login: "streamer", Enabled: true, SubscriptionIDs: []string{"old"}}
	require.NoError(t, repo.Save(context.Background(), channel))

	channel.Enabled = false
	channel.SubscriptionIDs = []string{"new", "new", " "}
	require.NoError(t, repo.Save(context.Background(), channel))

	channels, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, channels, 1)
	assert.False(t, channels[0].Enabled)
	assert.Equal(t, []string{"new"}, channels[0].SubscriptionIDs)
}

func TestChannelRepositoryRejectsInvalidChannel(t *testing.T) {
	t.Parallel()

	repo, path := newTestChannelRepository(t)

	err := repo.Save(context.Background(), domain.Channel{ID: "1001"})
	require.Error(t, err)
	assert.ErrorContains(t, err, "login is required")

	_, statErr := os.Stat(path)
	assert.True(t, errors.Is(statErr, os.ErrNotExist))
}

func TestChannelRepositoryMissingSecretRefFallsBackToDefault(t *testing.T) {
	t.Parallel()

	repo, path := newTestChannelRepository(t)
	require.NoError(t, os.WriteFile(path, []byte(strings.Join([]string{
		"version = 1",
		"",
		"[[channels]]",
		"id = \"1001\"",
		"login = \"streamer\"",
		"enabled = true",
		"",
	}, "\n")), 0o600))

	channel, err := repo.GetByID(context.Background(), "1001")
	require.NoError(t, err)
	assert.Equal(t, "twitch://1001/oauth_tokens", channel.SecretRef)
	assert.Empty(t, channel.SubscriptionIDs)
	assert.True(t, channel.UpdatedAt.IsZero())
}

func TestChannelRepositoryMissingFileBehaviors(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "missing", "channels.toml")
	repo, err := NewChannelRepository(path)
	require.NoError(t, err)

	channels, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, channels)

	_, err = repo.GetByID(context.Background(), "1001")
	require.ErrorIs(t, err, domain.ErrChannelNotFound)
}

func TestChannelRepositorySaveCreatesDirectoryAndEnforcesPermissions(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "channels.toml")
	repo, err := NewChannelRepository(path)
	require.NoError(t, err)

	require.NoError(t, repo.Save(context.Background(), domain.Channel{ID: "1001", Login: "streamer"}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "version = 1")
}

func TestChannelRepositoryMalformedTOMLReturnsError(t *testing.T) {
	t.Parallel()

	repo, path := newTestChannelRepository(t)
	require.NoError(t, os.WriteFile(path, []byte("channels = ["), 0o600))

	_, err := repo.List(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "decode channels file")
}

func TestChannelRepositoryFutureSchemaVersionReturnsError(t *testing.T) {
	t.Parallel()

	repo, path := newTestChannelRepository(t)
	require.NoError(t, os.WriteFile(path, []byte("version = 999\n\nchannels = []\n"), 0o600))

	_, err := repo.List(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "unsupported channels schema version")
}

func TestChannelRepositorySaveCanceledContextReturnsContextError(t *testing.T) {
	t.Parallel()

	repo, _ := newTestChannelRepository(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := repo.Save(ctx, domain.Channel{ID: "1001", Login: "streamer"})
	require.ErrorIs(t, err, context.Canceled)
}

func TestChannelRepositoryConcurrentSavesAcrossInstancesPreserveAllChannels(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "channels.toml")
	newRepo := func() *ChannelRepository {
		repo, err := NewChannelRepository(path)
		require.NoError(t, err)
		return repo
	}

	repoA := newRepo()
	repoB := newRepo()

	const perRepoWrites = 50
	start := make(chan struct{})
	errCh := make(chan error, perRepoWrites*2)
	var wg sync.WaitGroup
	wg.Add(2)

	write := func(repo *ChannelRepository, prefix string) {
		defer wg.Done()
		<-start
		for i := 0; i < perRepoWrites; i++ {
			id := prefix + strconv.Itoa(i)
			errCh <- repo.Save(context.Background(), domain.Channel{ID: domain.EntityID(id), Login: "login-" + id})
		}
	}

	go write(repoA, "a")
	go write(repoB, "b")

	close(start)
	wg.Wait()
	close(errCh)

	for err := range errCh {
		require.NoError(t, err)
	}

	channels, err := repoA.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, channels, perRepoWrites*2)
}

func TestNewChannelRepositoryRejectsEmptyPath(t *testing.T) {
	t.Parallel()

	_, err := NewChannelRepository("")
	require.Error(t, err)
	assert.ErrorContains(t, err, "channels path is empty")
}
