package httpserver

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/twitch-bot-cli/internal/domain"
)

type staticSource struct {
	active []domain.EntityID
	live   []domain.EntityID
}

func (s staticSource) Active() []domain.EntityID { return s.active }
func (s staticSource) Live() []domain.EntityID   { return s.live }

func TestHealthzReportsTrackedAndLiveChannels(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(NewHandler(staticSource{
		active: []domain.EntityID{"1001", "1002"},
		live:   []domain.EntityID{"1002"},
	}))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var body health
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, []string{"1001", "1002"}, body.Tracked)
	assert.Equal(t, []string{"1002"}, body.Live)
}

func TestHealthzWithoutSourceReturnsEmptyLists(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(NewHandler(nil))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"ok","tracked":[],"live":[]}`, string(data))
}

func TestMetricsEndpointServesPrometheusText(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(NewHandler(nil))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(data), "go_goroutines")
}

func TestServeListenerStopsOnContextCancel(t *testing.T) {
	t.Parallel()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- ServeListener(ctx, listener, NewHandler(nil))
	}()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + listener.Addr().String() + "/healthz")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
