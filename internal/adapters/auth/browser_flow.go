package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
)

const DefaultAuthorizeURL = "https://id.twitch.tv/oauth2/authorize"

var (
	ErrStateMismatch   = errors.New("oauth callback state mismatch")
	ErrCallbackTimeout = errors.New("timed out waiting for oauth callback")
	ErrMissingState    = errors.New("expected state is required")
)

type AuthorizationRequest struct {
	AuthURL     string
	ClientID    string
	RedirectURI string
	Scopes      []string
	State       string
	ForceVerify bool
}

func NewState() (string, error) {
	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}

	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// BuildAuthorizationURL returns the Twitch authorization-code grant URL the
// channel owner opens in a browser.
func BuildAuthorizationURL(req AuthorizationRequest) (string, error) {
	if req.AuthURL == "" {
		req.AuthURL = DefaultAuthorizeURL
	}
	if req.ClientID == "" {
		return "", errors.New("client id is required")
	}
	if req.RedirectURI == "" {
		return "", errors.New("redirect uri is required")
	}
	if req.State == "" {
		return "", errors.New("state is required")
	}

	parsed, err := url.Parse(req.AuthURL)
	if err != nil {
		return "", fmt.Errorf("parse auth url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", errors.New("auth url must use http or https")
	}
	if parsed.Host == "" {
		return "", errors.New("auth url host is required")
	}

	q := parsed.Query()
	q.Set("response_type", "code")
	q.Set("client_id", req.ClientID)
	q.Set("redirect_uri", req.RedirectURI)
	if len(req.Scopes) > 0 {
		q.Set("scope", strings.Join(req.Scopes, " "))
	}
	q.Set("state", req.State)
	if req.ForceVerify {
		q.Set("force_verify", "true")
	}
	parsed.RawQuery = q.Encode()

	return parsed.String(), nil
}

// CallbackServer receives the OAuth redirect on the application's registered
// redirect URI and hands back the authorization code.
type CallbackServer struct {
	expectedState string
	listener      net.Listener
	server        *http.Server
	resultCh      chan callbackResult
	resultOnce    sync.Once
	closeOnce     sync.Once
}

type callbackResult struct {
	code string
	err  error
}

func StartCallbackServer(listenAddr string, expectedState string) (*CallbackServer, error) {
	if expectedState == "" {
		return nil, ErrMissingState
	}
	if listenAddr == "" {
		listenAddr = "127.0.0.1:0"
	}

	listener, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return nil, fmt.Errorf("listen callback server: %w", err)
	}

	cb := &CallbackServer{
		expectedState: expectedState,
		listener:      listener,
		resultCh:      make(chan callbackResult, 1),
	}

	router := chi.NewRouter()
	router.Get("/", cb.handleCallback)

	cb.server = &http.Server{Handler: router, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if serveErr := cb.server.Serve(cb.listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			cb.trySendResult(callbackResult{err: serveErr})
		}
	}()

	return cb, nil
}

func (c *CallbackServer) RedirectURI() string {
	if tcpAddr, ok := c.listener.Addr().(*net.TCPAddr); ok {
		return fmt.Sprintf("http://localhost:%d", tcpAddr.Port)
	}
	return "http://localhost"
}

func (c *CallbackServer) WaitForCode(ctx context.Context, timeout time.Duration) (string, error) {
	defer func() { _ = c.Close() }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case result := <-c.resultCh:
		return result.code, result.err
	case <-ctx.Done():
		return "", ctx.Err()
	case <-timer.C:
		return "", ErrCallbackTimeout
	}
}

func (c *CallbackServer) Close() error {
	var closeErr error
	c.closeOnce.Do(func() {
		closeErr = c.server.Close()
	})
	return closeErr
}

func (c *CallbackServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	state := query.Get("state")
	code := query.Get("code")

	if state != c.expectedState {
		c.trySendResult(callbackResult{err: ErrStateMismatch})
		http.Error(w, "state mismatch", http.StatusBadRequest)
		return
	}
	if oauthError := query.Get("error"); oauthError != "" {
		description := query.Get("error_description")
		if description != "" {
			oauthError = oauthError + ": " + description
		}
		c.trySendResult(callbackResult{err: errors.New(oauthError)})
		http.Error(w, "oauth error", http.StatusBadRequest)
		return
	}
	if code == "" {
		c.trySendResult(callbackResult{err: errors.New("missing authorization code")})
		http.Error(w, "missing code", http.StatusBadRequest)
		return
	}

	c.trySendResult(callbackResult{code: code})
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Channel authorized. You can close this window."))
}

func (c *CallbackServer) trySendResult(result callbackResult) {
	c.resultOnce.Do(func() {
		c.resultCh <- result
	})
}
