package resilience

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOutcome struct {
	status int
	body   string
}

func (o fakeOutcome) StatusCode() int { return o.status }

type scriptedCall struct {
	statuses []int
	calls    int
	args     []string
}

func (s *scriptedCall) call(arg string) func(context.Context) (fakeOutcome, error) {
	return func(context.Context) (fakeOutcome, error) {
		s.args = append(s.args, arg)
		status := s.statuses[len(s.statuses)-1]
		if s.calls < len(s.statuses) {
			status = s.statuses[s.calls]
		}
		s.calls++
		return fakeOutcome{status: status, body: arg}, nil
	}
}

func newTestExecutor(waits *[]time.Duration) *Executor {
	ex := NewExecutor(WithLogger(zerolog.Nop()), WithTimeoutDelay(time.Second))
	ex.wait = func(ctx context.Context, d time.Duration) error {
		*waits = append(*waits, d)
		return ctx.Err()
	}
	return ex
}

func TestExecuteRefreshesOncePerUnauthorized(t *testing.T) {
	t.Parallel()

	var waits []time.Duration
	ex := newTestExecutor(&waits)
	script := &scriptedCall{statuses: []int{401, 401, 401, 200}}
	refreshes := 0

	res, err := Execute(context.Background(), ex, func(context.Context) error {
		refreshes++
		return nil
	}, script.call("same-args"))

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode())
	assert.Equal(t, 3, refreshes)
	assert.Equal(t, 4, script.calls)
	assert.Empty(t, waits)
	for _, arg := range script.args {
		assert.Equal(t, "same-args", arg)
	}
}

func TestExecuteWaitsOncePerTimeout(t *testing.T) {
	t.Parallel()

	var waits []time.Duration
	ex := newTestExecutor(&waits)
	script := &scriptedCall{statuses: []int{408, 408, 204}}
	refreshes := 0

	res, err := Execute(context.Background(), ex, func(context.Context) error {
		refreshes++
		return nil
	}, script.call("x"))

	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, res.StatusCode())
	assert.Equal(t, []time.Duration{time.Second, time.Second}, waits)
	assert.Zero(t, refreshes)
}

func TestExecuteReturnsOtherStatusesImmediately(t *testing.T) {
	t.Parallel()

	for _, status := range []int{200, 400, 403, 404, 429, 500} {
		var waits []time.Duration
		ex := newTestExecutor(&waits)
		script := &scriptedCall{statuses: []int{status}}

		res, err := Execute(context.Background(), ex, nil, script.call("x"))

		require.NoError(t, err)
		assert.Equal(t, status, res.StatusCode())
		assert.Equal(t, 1, script.calls)
	}
}

func TestExecuteWrapsRefreshError(t *testing.T) {
	t.Parallel()

	var waits []time.Duration
	ex := newTestExecutor(&waits)
	script := &scriptedCall{statuses: []int{401}}
	rejected := errors.New("invalid refresh token")

	_, err := Execute(context.Background(), ex, func(context.Context) error {
		return rejected
	}, script.call("x"))

	require.ErrorIs(t, err, rejected)
	assert.Contains(t, err.Error(), "refresh credential")
	assert.Equal(t, 1, script.calls)
}

func TestExecuteReturnsTransportError(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection reset")
	calls := 0
	_, err := Execute(context.Background(), NewExecutor(WithLogger(zerolog.Nop())), nil, func(context.Context) (fakeOutcome, error) {
		calls++
		return fakeOutcome{}, boom
	})

	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestExecuteReturnsUnauthorizedWithoutRefresher(t *testing.T) {
	t.Parallel()

	var waits []time.Duration
	script := &scriptedCall{statuses: []int{401}}

	res, err := Execute(context.Background(), newTestExecutor(&waits), nil, script.call("x"))

	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode())
}

func TestExecuteStopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	ex := NewExecutor(WithLogger(zerolog.Nop()), WithTimeoutDelay(time.Hour))
	calls := 0

	done := make(chan error, 1)
	go func() {
		_, err := Execute(ctx, ex, nil, func(context.Context) (fakeOutcome, error) {
			calls++
			return fakeOutcome{status: http.StatusRequestTimeout}, nil
		})
		done <- err
	}()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Execute did not return after cancel")
	}
	assert.LessOrEqual(t, calls, 1)
}
