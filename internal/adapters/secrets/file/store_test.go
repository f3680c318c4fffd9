package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/bnema/twitch-bot-cli/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreRejectsInvalidKeys(t *testing.T) {
	t.Parallel()

	store := NewStore(t.TempDir())
	testCases := []struct {
		name    string
		key     string
		wantErr string
	}{
		{name: "empty", key: "", wantErr: "secret key is empty"},
		{name: "whitespace", key: "   ", wantErr: "secret key is empty"},
		{name: "absolute", key: "/absolute/path", wantErr: "invalid secret key"},
		{name: "traversal", key: "../escape", wantErr: "invalid secret key"},
		{name: "deep traversal", key: "../../secret", wantErr: "invalid secret key"},
		{name: "scheme traversal", key: "twitch://../../secret", wantErr: "invalid secret key"},
		{name: "missing scheme", key: "://1001/oauth_tokens", wantErr: "invalid secret key"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := store.Put(context.Background(), tc.key, "value")
			require.Error(t, err)
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestStorePutGetRoundTripAndPermissions(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	store := NewStore(root)
	key := domain.CredentialSecretRef("1001")
	want := `{"access_token":"abc"}`

	require.NoError(t, store.Put(context.Background(), key, want))

	got, err := store.Get(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	secretPath := filepath.Join(root, "twitch", "1001", "oauth_tokens")
	info, err := os.Stat(secretPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(secretFileMod), info.Mode().Perm())
}

func TestStorePutOverwritesWithoutLeavingTempFiles(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	store := NewStore(root)
	key := domain.CredentialSecretRef("1001")

	require.NoError(t, store.Put(context.Background(), key, "first"))
	require.NoError(t, store.Put(context.Background(), key, "second"))

	got, err := store.Get(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, "second", got)

	entries, err := os.ReadDir(filepath.Join(root, "twitch", "1001"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "oauth_tokens", entries[0].Name())
}

func TestStoreGetMissingSecretReturnsNotFound(t *testing.T) {
	t.Parallel()

	store := NewStore(t.TempDir())

	_, err := store.Get(context.Background(), domain.CredentialSecretRef("1001"))
	require.ErrorIs(t, err, domain.ErrSecretNotFound)
}

func TestStoreDeleteIsIdempotentWhenSecretMissing(t *testing.T) {
	t.Parallel()

	store := NewStore(t.TempDir())
	key := domain.CredentialSecretRef("1001")

	require.NoError(t, store.Delete(context.Background(), key))
	require.NoError(t, store.Delete(context.Background(), key))
}
