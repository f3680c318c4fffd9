package application

import (
	"context"

	"github.com/bnema/twitch-bot-cli/internal/adapters/auth"
	"github.com/bnema/twitch-bot-cli/internal/adapters/helix"
)

// HelixAPI is the subset of the Helix client the services call.
type HelixAPI interface {
	CreateEventSubSubscription(ctx context.Context, token string, req helix.CreateSubscriptionRequest) (*helix.Response[helix.Subscription], error)
	DeleteEventSubSubscription(ctx context.Context, token string, id string) (*helix.Response[helix.Empty], error)
	GetStreams(ctx context.Context, token string, userIDs []string, cursor string) (*helix.Response[helix.Stream], error)
	GetChatters(ctx context.Context, token string, broadcasterID string, moderatorID string, cursor string) (*helix.Response[helix.Chatter], error)
	GetUsers(ctx context.Context, token string, ids []string, logins []string) (*helix.Response[helix.User], error)
}

// OAuthAPI is the subset of the OAuth token client the services call.
type OAuthAPI interface {
	ExchangeCode(ctx context.Context, code string, redirectURI string) (auth.TokenResult, error)
	Validate(ctx context.Context, accessToken string) (*auth.Validation, error)
	Revoke(ctx context.Context, accessToken string) error
}

var (
	_ HelixAPI = (*helix.Client)(nil)
	_ OAuthAPI = auth.TokenClient{}
)
