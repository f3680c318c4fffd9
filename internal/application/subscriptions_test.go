package application

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/twitch-bot-cli/internal/adapters/helix"
	"github.com/bnema/twitch-bot-cli/internal/domain"
)

func TestSubscriptionServiceCreateRefreshesOnUnauthorized(t *testing.T) {
	t.Parallel()

	creds, _, refresher := newTestCredentials(t)
	seedCredential(t, creds, "1001", "stale")

	var tokens []string
	api := &fakeHelix{
		create: func(_ context.Context, token string, req helix.CreateSubscriptionRequest) (*helix.Response[helix.Subscription], error) {
			tokens = append(tokens, token)
			if token == "stale" {
				return &helix.Response[helix.Subscription]{Status: http.StatusUnauthorized}, nil
			}
			assert.Equal(t, "session-1", req.Transport.SessionID)
			assert.Equal(t, domain.TransportMethodWebsocket, req.Transport.Method)
			return &helix.Response[helix.Subscription]{
				Status: http.StatusAccepted,
				Data: []helix.Subscription{{
					ID:        "sub-1",
					Type:      req.Type,
					Version:   req.Version,
					Status:    "enabled",
					Condition: req.Condition,
					Transport: req.Transport,
				}},
			}, nil
		},
	}
	service := NewSubscriptionService(api, creds, testExecutor(), newTestChannelRepo(t), fixedClock{now: testNow})

	spec := domain.RequiredSubscriptions("1001")[0]
	sub, err := service.Create(context.Background(), "1001", "session-1", spec)
	require.NoError(t, err)
	assert.Equal(t, "sub-1", sub.ID)
	assert.Equal(t, domain.SubscriptionTypeChatMessage, sub.Type)
	assert.Equal(t, []string{"stale", "access-1"}, tokens)
	assert.Equal(t, int32(1), refresher.calls.Load())
}

func TestSubscriptionServiceCreateReportsHelixError(t *testing.T) {
	t.Parallel()

	creds, _, _ := newTestCredentials(t)
	seedCredential(t, creds, "1001", "access")
	api := &fakeHelix{
		create: func(context.Context, string, helix.CreateSubscriptionRequest) (*helix.Response[helix.Subscription], error) {
			return &helix.Response[helix.Subscription]{Status: http.StatusConflict, Message: "subscription already exists"}, nil
		},
	}
	service := NewSubscriptionService(api, creds, testExecutor(), newTestChannelRepo(t), nil)

	_, err := service.Create(context.Background(), "1001", "session-1", domain.RequiredSubscriptions("1001")[1])
	var apiErr *helix.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	assert.ErrorContains(t, err, "stream.online")
}

func TestSubscriptionServiceCreateWithoutCredential(t *testing.T) {
	t.Parallel()

	creds, _, _ := newTestCredentials(t)
	service := NewSubscriptionService(&fakeHelix{}, creds, testExecutor(), newTestChannelRepo(t), nil)

	_, err := service.Create(context.Background(), "1001", "session-1", domain.RequiredSubscriptions("1001")[0])
	require.ErrorIs(t, err, domain.ErrCredentialNotFound)
}

func TestSubscriptionServiceDeleteTreatsNotFoundAsDeleted(t *testing.T) {
	t.Parallel()

	creds, _, _ := newTestCredentials(t)
	seedCredential(t, creds, "1001", "access")

	statuses := map[string]int{
		"gone":   http.StatusNotFound,
		"ok":     http.StatusNoContent,
		"broken": http.StatusInternalServerError,
	}
	api := &fakeHelix{
		del: func(_ context.Context, token string, id string) (*helix.Response[helix.Empty], error) {
			assert.Equal(t, "access", token)
			return &helix.Response[helix.Empty]{Status: statuses[id]}, nil
		},
	}
	service := NewSubscriptionService(api, creds, testExecutor(), newTestChannelRepo(t), nil)

	require.NoError(t, service.Delete(context.Background(), "1001", "gone"))
	require.NoError(t, service.Delete(context.Background(), "1001", "ok"))

	err := service.Delete(context.Background(), "1001", "broken")
	var apiErr *helix.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
}

func TestSubscriptionServiceLedgerRoundTrip(t *testing.T) {
	t.Parallel()

	creds, _, _ := newTestCredentials(t)
	repo := newTestChannelRepo(t)
	require.NoError(t, repo.Save(context.Background(), domain.Channel{ID: "1001", Login: "streamer", Enabled: true}))
	service := NewSubscriptionService(&fakeHelix{}, creds, testExecutor(), repo, fixedClock{now: testNow})

	ids, err := service.LoadSubscriptionIDs(context.Background(), "1001")
	require.NoError(t, err)
	assert.Empty(t, ids)

	require.NoError(t, service.SaveSubscriptionIDs(context.Background(), "1001", []string{"sub-a", "sub-b"}))

	ids, err = service.LoadSubscriptionIDs(context.Background(), "1001")
	require.NoError(t, err)
	assert.Equal(t, []string{"sub-a", "sub-b"}, ids)

	channel, err := repo.GetByID(context.Background(), "1001")
	require.NoError(t, err)
	assert.True(t, channel.Enabled)
	assert.Equal(t, testNow, channel.UpdatedAt)
}

func TestSubscriptionServiceLedgerUnknownChannel(t *testing.T) {
	t.Parallel()

	creds, _, _ := newTestCredentials(t)
	service := NewSubscriptionService(&fakeHelix{}, creds, testExecutor(), newTestChannelRepo(t), nil)

	ids, err := service.LoadSubscriptionIDs(context.Background(), "404")
	require.NoError(t, err)
	assert.Nil(t, ids)

	err = service.SaveSubscriptionIDs(context.Background(), "404", []string{"sub-a"})
	require.ErrorIs(t, err, domain.ErrChannelNotFound)
}
