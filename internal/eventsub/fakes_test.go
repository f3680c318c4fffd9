package eventsub

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bnema/twitch-bot-cli/internal/domain"
)

var errTransportClosed = errors.New("transport closed")

type fakeTransport struct {
	url    string
	frames chan []byte
	closed chan struct{}
	remote chan error

	once        sync.Once
	mu          sync.Mutex
	closeCode   int
	closeReason string
}

func newFakeTransport(url string) *fakeTransport {
	return &fakeTransport{
		url:    url,
		frames: make(chan []byte, 16),
		closed: make(chan struct{}),
		remote: make(chan error, 1),
	}
}

func (t *fakeTransport) Read() ([]byte, error) {
	select {
	case data := <-t.frames:
		return data, nil
	case err := <-t.remote:
		return nil, err
	case <-t.closed:
		return nil, errTransportClosed
	}
}

func (t *fakeTransport) Close(code int, reason string) error {
	t.once.Do(func() {
		t.mu.Lock()
		t.closeCode, t.closeReason = code, reason
		t.mu.Unlock()
		close(t.closed)
	})
	return nil
}

func (t *fakeTransport) send(frame string) {
	t.frames <- []byte(frame)
}

func (t *fakeTransport) serverClose(code int) {
	t.remote <- &CloseError{Code: code, Text: "server"}
}

func (t *fakeTransport) code() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closeCode
}

func (t *fakeTransport) waitClosed(timeout time.Duration) bool {
	select {
	case <-t.closed:
		return true
	case <-time.After(timeout):
		return false
	}
}

type fakeDialer struct {
	mu     sync.Mutex
	urls   []string
	fail   int
	dialed chan *fakeTransport
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{dialed: make(chan *fakeTransport, 16)}
}

func (d *fakeDialer) Dial(ctx context.Context, url string) (Transport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	d.urls = append(d.urls, url)
	if d.fail > 0 {
		d.fail--
		d.mu.Unlock()
		return nil, errors.New("connection refused")
	}
	d.mu.Unlock()

	t := newFakeTransport(url)
	select {
	case d.dialed <- t:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return t, nil
}

func (d *fakeDialer) dialedURLs() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.urls...)
}

func (d *fakeDialer) next(timeout time.Duration) (*fakeTransport, error) {
	select {
	case t := <-d.dialed:
		return t, nil
	case <-time.After(timeout):
		return nil, errors.New("no dial within timeout")
	}
}

type fakeAPI struct {
	mu      sync.Mutex
	seq     int
	created []domain.SubscriptionSpec
	deleted []string
	failDel map[string]bool
	session []string
}

func (a *fakeAPI) Create(_ context.Context, _ domain.EntityID, sessionID string, spec domain.SubscriptionSpec) (domain.Subscription, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.seq++
	a.created = append(a.created, spec)
	a.session = append(a.session, sessionID)
	return domain.Subscription{ID: fmt.Sprintf("sub-%d", a.seq), Type: spec.Type, Version: spec.Version}, nil
}

func (a *fakeAPI) Delete(_ context.Context, _ domain.EntityID, id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.deleted = append(a.deleted, id)
	if a.failDel[id] {
		return errors.New("delete failed")
	}
	return nil
}

func (a *fakeAPI) counts() (int, int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.created), len(a.deleted)
}

type memoryLedger struct {
	mu       sync.Mutex
	ids      map[domain.EntityID][]string
	loadFail int
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{ids: map[domain.EntityID][]string{}}
}

func (l *memoryLedger) LoadSubscriptionIDs(_ context.Context, entity domain.EntityID) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.loadFail > 0 {
		l.loadFail--
		return nil, errors.New("ledger unreadable")
	}
	return append([]string(nil), l.ids[entity]...), nil
}

func (l *memoryLedger) SaveSubscriptionIDs(_ context.Context, entity domain.EntityID, ids []string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ids[entity] = append([]string(nil), ids...)
	return nil
}

func (l *memoryLedger) get(entity domain.EntityID) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.ids[entity]...)
}

func welcomeFrame(sessionID string, keepaliveSeconds int) string {
	return fmt.Sprintf(`{"metadata":{"message_id":"m-welcome","message_type":"session_welcome","message_timestamp":"2026-02-14T12:00:00.123456789Z"},"payload":{"session":{"id":%q,"status":"connected","connected_at":"2026-02-14T12:00:00Z","keepalive_timeout_seconds":%d,"reconnect_url":null}}}`, sessionID, keepaliveSeconds)
}

func keepaliveFrame() string {
	return `{"metadata":{"message_id":"m-ka","message_type":"session_keepalive","message_timestamp":"2026-02-14T12:00:05Z"},"payload":{}}`
}

func reconnectFrame(sessionID string, url string) string {
	return fmt.Sprintf(`{"metadata":{"message_id":"m-rc","message_type":"session_reconnect","message_timestamp":"2026-02-14T12:00:05Z"},"payload":{"session":{"id":%q,"status":"reconnecting","keepalive_timeout_seconds":null,"reconnect_url":%q,"connected_at":"2026-02-14T12:00:00Z"}}}`, sessionID, url)
}

func notificationFrame(messageID string, subType string, event string) string {
	return fmt.Sprintf(`{"metadata":{"message_id":%q,"message_type":"notification","message_timestamp":"2026-02-14T12:00:06Z","subscription_type":%q,"subscription_version":"1"},"payload":{"subscription":{"id":"sub-1","status":"enabled","type":%q,"version":"1","condition":{"broadcaster_user_id":"1234"},"transport":{"method":"websocket","session_id":"s1"},"created_at":"2026-02-14T12:00:01Z"},"event":%s}}`, messageID, subType, subType, event)
}

func revocationFrame() string {
	return `{"metadata":{"message_id":"m-rv","message_type":"revocation","message_timestamp":"2026-02-14T12:00:07Z","subscription_type":"channel.chat.message","subscription_version":"1"},"payload":{"subscription":{"id":"sub-1","status":"authorization_revoked","type":"channel.chat.message","version":"1","condition":{"broadcaster_user_id":"1234"},"transport":{"method":"websocket","session_id":"s1"},"created_at":"2026-02-14T12:00:01Z"}}}`
}
