package auth

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildAuthorizationURLIncludesScopesAndState(t *testing.T) {
	t.Parallel()

	u, err := BuildAuthorizationURL(AuthorizationRequest{
		ClientID:    "client-123",
		RedirectURI: "http://localhost:44026",
		Scopes:      []string{"user:read:chat", "moderator:read:chatters"},
		State:       "state-xyz",
		ForceVerify: true,
	})
	require.NoError(t, err)

	parsed, err := url.Parse(u)
	require.NoError(t, err)
	assert.Equal(t, "id.twitch.tv", parsed.Host)
	assert.Equal(t, "/oauth2/authorize", parsed.Path)

	q := parsed.Query()
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "client-123", q.Get("client_id"))
	assert.Equal(t, "http://localhost:44026", q.Get("redirect_uri"))
	assert.Equal(t, "user:read:chat moderator:read:chatters", q.Get("scope"))
	assert.Equal(t, "state-xyz", q.Get("state"))
	assert.Equal(t, "true", q.Get("force_verify"))
}

func TestBuildAuthorizationURLRejectsNonHTTPSScheme(t *testing.T) {
	t.Parallel()

	_, err := BuildAuthorizationURL(AuthorizationRequest{
		AuthURL:     "ftp://id.example.com/oauth2/authorize",
		ClientID:    "client-123",
		RedirectURI: "http://localhost:44026",
		State:       "state-xyz",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http or https")
}

func TestNewStateIsRandom(t *testing.T) {
	t.Parallel()

	a, err := NewState()
	require.NoError(t, err)
	b, err := NewState()
	require.NoError(t, err)

	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}

func TestCallbackServerReturnsCodeOnSuccess(t *testing.T) {
	t.Parallel()

	server, err := StartCallbackServer("127.0.0.1:0", "expected-state")
	require.NoError(t, err)
	defer func() { _ = server.Close() }()

	resp, err := http.Get(server.RedirectURI() + "/?code=auth-code&state=expected-state")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "Channel authorized")

	code, err := server.WaitForCode(context.Background(), 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "auth-code", code)
}

func TestCallbackServerReturnsErrorOnStateMismatch(t *testing.T) {
	t.Parallel()

	server, err := StartCallbackServer("127.0.0.1:0", "expected-state")
	require.NoError(t, err)
	defer func() { _ = server.Close() }()

	resp, err := http.Get(server.RedirectURI() + "/?code=auth-code&state=wrong-state")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	_, err = server.WaitForCode(context.Background(), 2*time.Second)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStateMismatch))
}

func TestCallbackServerReportsOAuthDenial(t *testing.T) {
	t.Parallel()

	server, err := StartCallbackServer("127.0.0.1:0", "s")
	require.NoError(t, err)
	defer func() { _ = server.Close() }()

	resp, err := http.Get(server.RedirectURI() + "/?state=s&error=access_denied&error_description=The+user+denied")
	require.NoError(t, err)
	_ = resp.Body.Close()

	_, err = server.WaitForCode(context.Background(), 2*time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access_denied: The user denied")
}

func TestCallbackServerTimesOutWaitingForCallback(t *testing.T) {
	t.Parallel()

	server, err := StartCallbackServer("127.0.0.1:0", "expected-state")
	require.NoError(t, err)
	defer func() { _ = server.Close() }()

	_, err = server.WaitForCode(context.Background(), 50*time.Millisecond)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCallbackTimeout))
}

func TestCallbackServerStopsOnCancel(t *testing.T) {
	t.Parallel()

	server, err := StartCallbackServer("127.0.0.1:0", "expected-state")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = server.WaitForCode(ctx, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStartCallbackServerRequiresExpectedState(t *testing.T) {
	t.Parallel()

	_, err := StartCallbackServer("127.0.0.1:0", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingState))
}
