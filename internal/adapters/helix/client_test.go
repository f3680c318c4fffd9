package helix

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/twitch-bot-cli/internal/domain"
	"github.com/bnema/twitch-bot-cli/internal/resilience"
)

func newTestClient(server *httptest.Server) *Client {
	return &Client{
		BaseURL:        server.URL,
		ClientID:       "client-1",
		HTTPClient:     server.Client(),
		RequestTimeout: time.Second,
	}
}

func TestCreateEventSubSubscription(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/eventsub/subscriptions", r.URL.Path)
		assert.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))
		assert.Equal(t, "client-1", r.Header.Get("Client-Id"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body CreateSubscriptionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, domain.SubscriptionTypeStreamOnline, body.Type)
		assert.Equal(t, "websocket", body.Transport.Method)
		assert.Equal(t, "session-1", body.Transport.SessionID)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"data":[{"id":"sub-1","status":"enabled","type":"stream.online","version":"1","condition":{"broadcaster_user_id":"1234"},"transport":{"method":"websocket","session_id":"session-1"},"created_at":"2026-02-14T12:00:00Z"}],"total":1}`))
	}))
	defer server.Close()

	spec := domain.RequiredSubscriptions("1234")[1]
	resp, err := newTestClient(server).CreateEventSubSubscription(context.Background(), "token-1", NewWebsocketSubscription(spec, "session-1"))

	require.NoError(t, err)
	assert.True(t, resp.OK())
	assert.Equal(t, http.StatusAccepted, resp.StatusCode())
	require.Len(t, resp.Data, 1)
	sub := resp.Data[0].ToDomain()
	assert.Equal(t, "sub-1", sub.ID)
	assert.Equal(t, "session-1", sub.Transport.SessionID)
	assert.Equal(t, "1234", sub.Condition["broadcaster_user_id"])
}

func TestDeleteEventSubSubscriptionNoContent(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "sub-9", r.URL.Query().Get("id"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	resp, err := newTestClient(server).DeleteEventSubSubscription(context.Background(), "token-1", "sub-9")

	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode())
	assert.NoError(t, resp.Err())
}

func TestUnauthorizedResponseCarriesMessage(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"Unauthorized","status":401,"message":"Invalid OAuth token"}`))
	}))
	defer server.Close()

	resp, err := newTestClient(server).GetUsers(context.Background(), "expired", []string{"1"}, nil)

	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode())
	assert.Equal(t, "Invalid OAuth token", resp.Message)

	var apiErr *APIError
	require.ErrorAs(t, resp.Err(), &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
}

func TestClientTimeoutMapsToRequestTimeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := newTestClient(server)
	client.RequestTimeout = 20 * time.Millisecond

	resp, err := client.GetStreams(context.Background(), "token-1", []string{"1"}, "")

	require.NoError(t, err)
	assert.Equal(t, http.StatusRequestTimeout, resp.StatusCode())
}

func TestGetStreamsCollectsAllPages(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/streams", r.URL.Path)
		assert.Equal(t, []string{"1", "2", "3"}, r.URL.Query()["user_id"])
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("after") {
		case "":
			_, _ = w.Write([]byte(`{"data":[{"user_id":"1","user_login":"one","type":"live"},{"user_id":"2","user_login":"two","type":"live"}],"pagination":{"cursor":"p2"}}`))
		case "p2":
			_, _ = w.Write([]byte(`{"data":[{"user_id":"3","user_login":"three","type":"live"}],"pagination":{}}`))
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	defer server.Close()

	client := newTestClient(server)
	resp, err := resilience.Collect[Stream](context.Background(), func(ctx context.Context, cursor string) (*Response[Stream], error) {
		return client.GetStreams(ctx, "token-1", []string{"1", "2", "3"}, cursor)
	})

	require.NoError(t, err)
	require.True(t, resp.OK())
	require.Len(t, resp.Data, 3)
	assert.Equal(t, "three", resp.Data[2].UserLogin)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGetChattersQuery(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/chatters", r.URL.Path)
		assert.Equal(t, "1234", r.URL.Query().Get("broadcaster_id"))
		assert.Equal(t, "1234", r.URL.Query().Get("moderator_id"))
		assert.Equal(t, "c1", r.URL.Query().Get("after"))
		_, _ = w.Write([]byte(`{"data":[{"user_id":"9","user_login":"viewer"}],"total":1}`))
	}))
	defer server.Close()

	resp, err := newTestClient(server).GetChatters(context.Background(), "token-1", "1234", "1234", "c1")

	require.NoError(t, err)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "viewer", resp.Data[0].UserLogin)
	assert.Equal(t, 1, resp.Total)
}

func TestRequiresClientIDAndToken(t *testing.T) {
	t.Parallel()

	_, err := (&Client{}).GetUsers(context.Background(), "token", nil, nil)
	assert.Error(t, err)

	_, err = (&Client{ClientID: "x"}).GetUsers(context.Background(), "", nil, nil)
	assert.Error(t, err)
}
