package helix

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://api.twitch.tv/helix"

	maxResponseBytes = 4 << 20
	pageSize         = "100"
)

// Client calls the Helix REST API. Every method takes the access token to
// authenticate with, so callers can re-read it from the credential store on
// each retry.
type Client struct {
	BaseURL        string
	ClientID       string
	HTTPClient     *http.Client
	Limiter        *rate.Limiter
	RequestTimeout time.Duration
}

func (c *Client) CreateEventSubSubscription(ctx context.Context, token string, req CreateSubscriptionRequest) (*Response[Subscription], error) {
	return do[Subscription](ctx, c, request{
		endpoint: "eventsub_create",
		method:   http.MethodPost,
		path:     "/eventsub/subscriptions",
		token:    token,
		body:     req,
	})
}

func (c *Client) DeleteEventSubSubscription(ctx context.Context, token string, id string) (*Response[Empty], error) {
	if id == "" {
		return nil, errors.New("subscription id is required")
	}

	return do[Empty](ctx, c, request{
		endpoint: "eventsub_delete",
		method:   http.MethodDelete,
		path:     "/eventsub/subscriptions",
		query:    url.Values{"id": {id}},
		token:    token,
	})
}

// GetStreams returns one page of live streams among userIDs.
func (c *Client) GetStreams(ctx context.Context, token string, userIDs []string, cursor string) (*Response[Stream], error) {
	query := url.Values{"first": {pageSize}}
	for _, id := range userIDs {
		query.Add("user_id", id)
	}
	if cursor != "" {
		query.Set("after", cursor)
	}

	return do[Stream](ctx, c, request{
		endpoint: "streams",
		method:   http.MethodGet,
		path:     "/streams",
		query:    query,
		token:    token,
	})
}

// GetChatters returns one page of users connected to the broadcaster's chat.
// The token must belong to moderatorID.
func (c *Client) GetChatters(ctx context.Context, token string, broadcasterID string, moderatorID string, cursor string) (*Response[Chatter], error) {
	query := url.Values{
		"broadcaster_id": {broadcasterID},
		"moderator_id":   {moderatorID},
		"first":          {"1000"},
	}
	if cursor != "" {
		query.Set("after", cursor)
	}

	return do[Chatter](ctx, c, request{
		endpoint: "chatters",
		method:   http.MethodGet,
		path:     "/chat/chatters",
		query:    query,
		token:    token,
	})
}

func (c *Client) GetUsers(ctx context.Context, token string, ids []string, logins []string) (*Response[User], error) {
	query := url.Values{}
	for _, id := range ids {
		query.Add("id", id)
	}
	for _, login := range logins {
		query.Add("login", strings.ToLower(login))
	}

	return do[User](ctx, c, request{
		endpoint: "users",
		method:   http.MethodGet,
		path:     "/users",
		query:    query,
		token:    token,
	})
}

type request struct {
	endpoint string
	method   string
	path     string
	query    url.Values
	token    string
	body     any
}

func do[T any](ctx context.Context, c *Client, req request) (*Response[T], error) {
	if c.ClientID == "" {
		return nil, errors.New("client id is required")
	}
	if req.token == "" {
		return nil, errors.New("access token is required")
	}

	endpoint, err := c.buildURL(req.path, req.query)
	if err != nil {
		return nil, err
	}

	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("wait for rate limiter: %w", err)
		}
	}

	var body io.Reader
	if req.body != nil {
		encoded, err := json.Marshal(req.body)
		if err != nil {
			return nil, fmt.Errorf("encode %s request: %w", req.endpoint, err)
		}
		body = bytes.NewReader(encoded)
	}

	requestCtx, cancel := c.requestContext(ctx)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(requestCtx, req.method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", req.endpoint, err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+req.token)
	httpReq.Header.Set("Client-Id", c.ClientID)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient().Do(httpReq)
	if err != nil {
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			requestsTotal.WithLabelValues(req.endpoint, strconv.Itoa(http.StatusRequestTimeout)).Inc()
			return &Response[T]{Status: http.StatusRequestTimeout, Message: "client request timeout"}, nil
		}
		return nil, fmt.Errorf("request %s: %w", req.endpoint, err)
	}
	defer func() { _ = resp.Body.Close() }()

	requestsTotal.WithLabelValues(req.endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", req.endpoint, err)
	}

	out := &Response[T]{Status: resp.StatusCode}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		out.Message = decodeErrorMessage(raw, resp.Status)
		return out, nil
	}

	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return nil, fmt.Errorf("decode %s response: %w", req.endpoint, err)
		}
	}
	out.Status = resp.StatusCode

	return out, nil
}

func decodeErrorMessage(raw []byte, fallback string) string {
	var body errorBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return fallback
	}
	if body.Message != "" {
		return body.Message
	}
	if body.Error != "" {
		return body.Error
	}
	return fallback
}

func (c *Client) buildURL(path string, query url.Values) (string, error) {
	baseURL := c.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	parsed, err := url.Parse(strings.TrimRight(baseURL, "/") + path)
	if err != nil {
		return "", fmt.Errorf("parse helix url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", errors.New("helix base url must use http or https")
	}
	if len(query) > 0 {
		parsed.RawQuery = query.Encode()
	}

	return parsed.String(), nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	requestTimeout := c.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = 10 * time.Second
	}

	return context.WithTimeout(ctx, requestTimeout)
}
