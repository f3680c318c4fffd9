package eventsub

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	CloseNormal           = websocket.CloseNormalClosure
	CloseKeepaliveTimeout = 4900
	ClosePlannedReconnect = 4901
	CloseRevoked          = 4902

	closeWriteTimeout = time.Second
)

// Transport is one open EventSub socket. Read blocks for the next text
// frame; Close unblocks a pending Read.
type Transport interface {
	Read() ([]byte, error)
	Close(code int, reason string) error
}

type Dialer interface {
	Dial(ctx context.Context, url string) (Transport, error)
}

// CloseError reports a close frame received from the server.
type CloseError struct {
	Code int
	Text string
}

func (e *CloseError) Error() string {
	return fmt.Sprintf("websocket closed: %d %s", e.Code, e.Text)
}

type WebsocketDialer struct {
	Dialer *websocket.Dialer
	Header http.Header
}

func (d WebsocketDialer) Dial(ctx context.Context, url string) (Transport, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	conn, resp, err := dialer.DialContext(ctx, url, d.Header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	return &wsTransport{conn: conn}, nil
}

type wsTransport struct {
	conn      *websocket.Conn
	closeOnce sync.Once
	closeErr  error
}

func (t *wsTransport) Read() ([]byte, error) {
	for {
		messageType, data, err := t.conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				return nil, &CloseError{Code: closeErr.Code, Text: closeErr.Text}
			}
			return nil, err
		}
		if messageType == websocket.TextMessage {
			return data, nil
		}
	}
}

func (t *wsTransport) Close(code int, reason string) error {
	t.closeOnce.Do(func() {
		deadline := time.Now().Add(closeWriteTimeout)
		_ = t.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
		t.closeErr = t.conn.Close()
	})
	return t.closeErr
}
