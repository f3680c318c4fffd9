package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bnema/twitch-bot-cli/internal/domain"
)

const (
	DefaultBaseURL = "https://id.twitch.tv/oauth2"

	maxOAuthResponseBytes = 1 << 20
)

// TokenClient talks to the Twitch OAuth endpoints (token, validate, revoke).
type TokenClient struct {
	BaseURL        string
	ClientID       string
	ClientSecret   string
	HTTPClient     *http.Client
	RequestTimeout time.Duration
}

type TokenResult struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	ExpiresIn    int64    `json:"expires_in"`
	Scope        []string `json:"scope"`
	TokenType    string   `json:"token_type"`
}

// ExpiresAt converts ExpiresIn relative to now. Zero when unknown.
func (t TokenResult) ExpiresAt(now time.Time) time.Time {
	if t.ExpiresIn <= 0 {
		return time.Time{}
	}
	return now.Add(time.Duration(t.ExpiresIn) * time.Second)
}

// Validation is the /validate reply. A 401 status means the access token is
// no longer valid; the remaining fields are only set on 200.
type Validation struct {
	Status    int      `json:"-"`
	ClientID  string   `json:"client_id"`
	Login     string   `json:"login"`
	UserID    string   `json:"user_id"`
	Scopes    []string `json:"scopes"`
	ExpiresIn int64    `json:"expires_in"`
}

func (v *Validation) StatusCode() int {
	return v.Status
}

type oauthErrorResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (c TokenClient) ExchangeCode(ctx context.Context, code string, redirectURI string) (TokenResult, error) {
	if code == "" {
		return TokenResult{}, errors.New("authorization code is required")
	}
	if redirectURI == "" {
		return TokenResult{}, errors.New("redirect uri is required")
	}

	values := url.Values{}
	values.Set("grant_type", "authorization_code")
	values.Set("code", code)
	values.Set("redirect_uri", redirectURI)

	token, err := c.postToken(ctx, values, nil)
	if err != nil {
		return TokenResult{}, fmt.Errorf("exchange code for tokens: %w", err)
	}

	return token, nil
}

// RefreshToken trades a refresh token for a new token pair. A refresh token
// Twitch refuses yields an error wrapping domain.ErrRefreshRejected.
func (c TokenClient) RefreshToken(ctx context.Context, refreshToken string) (TokenResult, error) {
	if refreshToken == "" {
		return TokenResult{}, fmt.Errorf("refresh token is empty: %w", domain.ErrRefreshRejected)
	}

	values := url.Values{}
	values.Set("grant_type", "refresh_token")
	values.Set("refresh_token", refreshToken)

	token, err := c.postToken(ctx, values, domain.ErrRefreshRejected)
	if err != nil {
		return TokenResult{}, fmt.Errorf("refresh token: %w", err)
	}

	return token, nil
}

func (c TokenClient) Validate(ctx context.Context, accessToken string) (*Validation, error) {
	endpoint, err := c.endpoint("/validate")
	if err != nil {
		return nil, err
	}

	requestCtx, cancel := c.requestContext(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(requestCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create validate request: %w", err)
	}
	req.Header.Set("Authorization", "OAuth "+accessToken)

	resp, err := c.httpClient().Do(req)
	if err != nil {
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			return &Validation{Status: http.StatusRequestTimeout}, nil
		}
		return nil, fmt.Errorf("validate token: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return &Validation{Status: resp.StatusCode}, nil
	}

	var validation Validation
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxOAuthResponseBytes)).Decode(&validation); err != nil {
		return nil, fmt.Errorf("decode validate response: %w", err)
	}
	validation.Status = resp.StatusCode

	return &validation, nil
}

func (c TokenClient) Revoke(ctx context.Context, accessToken string) error {
	if c.ClientID == "" {
		return errors.New("client id is required")
	}

	endpoint, err := c.endpoint("/revoke")
	if err != nil {
		return err
	}

	values := url.Values{}
	values.Set("client_id", c.ClientID)
	values.Set("token", accessToken)

	resp, err := c.postForm(ctx, endpoint, values)
	if err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("revoke token: %s", decodeOAuthError(resp))
	}

	return nil
}

// postToken wraps a 400/401 reply in rejected when it is non-nil.
func (c TokenClient) postToken(ctx context.Context, values url.Values, rejected error) (TokenResult, error) {
	if c.ClientID == "" {
		return TokenResult{}, errors.New("client id is required")
	}
	if c.ClientSecret == "" {
		return TokenResult{}, errors.New("client secret is required")
	}

	endpoint, err := c.endpoint("/token")
	if err != nil {
		return TokenResult{}, err
	}

	values.Set("client_id", c.ClientID)
	values.Set("client_secret", c.ClientSecret)

	resp, err := c.postForm(ctx, endpoint, values)
	if err != nil {
		return TokenResult{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		message := decodeOAuthError(resp)
		if rejected != nil && (resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized) {
			return TokenResult{}, fmt.Errorf("%s: %w", message, rejected)
		}
		return TokenResult{}, errors.New(message)
	}

	var token TokenResult
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxOAuthResponseBytes)).Decode(&token); err != nil {
		return TokenResult{}, fmt.Errorf("decode token response: %w", err)
	}
	if token.AccessToken == "" || token.RefreshToken == "" {
		return TokenResult{}, errors.New("token response missing required fields")
	}

	return token, nil
}

func (c TokenClient) postForm(ctx context.Context, endpoint string, values url.Values) (*http.Response, error) {
	requestCtx, cancel := c.requestContext(ctx)

	req, err := http.NewRequestWithContext(requestCtx, http.MethodPost, endpoint, strings.NewReader(values.Encode()))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		cancel()
		return nil, err
	}
	resp.Body = cancelOnClose{ReadCloser: resp.Body, cancel: cancel}

	return resp, nil
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

func (c TokenClient) endpoint(path string) (string, error) {
	baseURL := c.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	parsed, err := url.Parse(strings.TrimRight(baseURL, "/") + path)
	if err != nil {
		return "", fmt.Errorf("parse oauth url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", errors.New("oauth base url must use http or https")
	}
	if parsed.Host == "" {
		return "", errors.New("oauth base url host is required")
	}

	return parsed.String(), nil
}

func (c TokenClient) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c TokenClient) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}

	requestTimeout := c.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = 30 * time.Second
	}

	return context.WithTimeout(ctx, requestTimeout)
}

func decodeOAuthError(resp *http.Response) string {
	var oauthErr oauthErrorResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxOAuthResponseBytes)).Decode(&oauthErr); err != nil {
		return fmt.Sprintf("status %d", resp.StatusCode)
	}
	return formatOAuthError(resp.StatusCode, oauthErr)
}

func formatOAuthError(statusCode int, oauthErr oauthErrorResponse) string {
	if oauthErr.Message == "" && oauthErr.Error == "" {
		return fmt.Sprintf("status %d", statusCode)
	}
	if oauthErr.Message != "" {
		return fmt.Sprintf("status %d: %s", statusCode, oauthErr.Message)
	}
	return fmt.Sprintf("status %d: %s", statusCode, oauthErr.Error)
}
