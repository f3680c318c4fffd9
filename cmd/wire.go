package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/time/rate"

	"github.com/bnema/twitch-bot-cli/internal/adapters/auth"
	"github.com/bnema/twitch-bot-cli/internal/adapters/helix"
	statusadapter "github.com/bnema/twitch-bot-cli/internal/adapters/render/status"
	tomlrepo "github.com/bnema/twitch-bot-cli/internal/adapters/repo/toml"
	chainstore "github.com/bnema/twitch-bot-cli/internal/adapters/secrets/chain"
	"github.com/bnema/twitch-bot-cli/internal/application"
	"github.com/bnema/twitch-bot-cli/internal/config"
	"github.com/bnema/twitch-bot-cli/internal/credentials"
	"github.com/bnema/twitch-bot-cli/internal/domain"
	"github.com/bnema/twitch-bot-cli/internal/log"
	"github.com/bnema/twitch-bot-cli/internal/ports"
	"github.com/bnema/twitch-bot-cli/internal/resilience"
)

// clientSecretRef is where `tb init` keeps the application client secret.
const clientSecretRef = "twitch://app/client_secret"

type app struct {
	cfg            config.Config
	channels       *tomlrepo.ChannelRepository
	secretStore    ports.SecretStore
	creds          *credentials.Store
	executor       *resilience.Executor
	helix          *helix.Client
	service        *application.Service
	subscriptions  *application.SubscriptionService
	presence       *application.PresenceService
	statusRenderer func([]application.Status, statusadapter.RenderOptions) (string, error)
	httpClient     *http.Client
	now            func() time.Time
}

func wireApp() (*app, error) {
	cfg, err := config.Load(viper.New(), "")
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log.Configure(log.Config{Level: cfg.LogLevel, Output: os.Stderr, Console: true})

	channels, err := tomlrepo.NewChannelRepository(cfg.Channels)
	if err != nil {
		return nil, fmt.Errorf("wire channel repository: %w", err)
	}
	watchtime, err := tomlrepo.NewWatchtimeRepository(cfg.Watchtime)
	if err != nil {
		return nil, fmt.Errorf("wire watchtime repository: %w", err)
	}

	secretStore, err := chainstore.NewPassFirstWithFileFallback(cfg.Secrets)
	if err != nil {
		return nil, fmt.Errorf("wire secret store chain: %w", err)
	}

	a := &app{
		cfg:            cfg,
		channels:       channels,
		secretStore:    secretStore,
		statusRenderer: statusadapter.Render,
		httpClient:     http.DefaultClient,
		now:            time.Now,
	}

	a.creds = credentials.NewStore(secretStore, credentials.RefresherFunc(a.refreshTokens))
	a.executor = resilience.NewExecutor(resilience.WithTimeoutDelay(cfg.Executor.TimeoutDelay))
	a.helix = &helix.Client{
		BaseURL:        cfg.Twitch.HelixURL,
		ClientID:       cfg.Twitch.ClientID,
		HTTPClient:     a.httpClient,
		Limiter:        rate.NewLimiter(rate.Limit(cfg.API.RatePerSecond), cfg.API.Burst),
		RequestTimeout: cfg.API.RequestTimeout,
	}

	clock := ports.SystemClock{}
	a.service = application.NewService(channels, watchtime, a.creds, clock)
	a.subscriptions = application.NewSubscriptionService(a.helix, a.creds, a.executor, channels, clock)
	a.presence = application.NewPresenceService(a.helix, a.creds, a.executor, watchtime, clock)

	return a, nil
}

// publicOAuth needs no client secret: enough for validate and revoke.
func (a *app) publicOAuth() auth.TokenClient {
	return auth.TokenClient{
		BaseURL:        a.cfg.Twitch.OAuthURL,
		ClientID:       a.cfg.Twitch.ClientID,
		HTTPClient:     a.httpClient,
		RequestTimeout: a.cfg.API.RequestTimeout,
	}
}

// confidentialOAuth loads the client secret for code exchange and refresh.
func (a *app) confidentialOAuth(ctx context.Context) (auth.TokenClient, error) {
	if err := a.cfg.RequireClientID(); err != nil {
		return auth.TokenClient{}, err
	}

	secret, err := a.secretStore.Get(ctx, clientSecretRef)
	if err != nil {
		if errors.Is(err, domain.ErrSecretNotFound) {
			return auth.TokenClient{}, errors.New("client secret is not stored, run `tb init` first")
		}
		return auth.TokenClient{}, fmt.Errorf("load client secret: %w", err)
	}

	client := a.publicOAuth()
	client.ClientSecret = secret
	return client, nil
}

func (a *app) refreshTokens(ctx context.Context, refreshToken string) (credentials.Tokens, error) {
	client, err := a.confidentialOAuth(ctx)
	if err != nil {
		return credentials.Tokens{}, err
	}

	result, err := client.RefreshToken(ctx, refreshToken)
	if err != nil {
		return credentials.Tokens{}, err
	}

	return credentials.Tokens{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		Scopes:       domain.ParseScopes(result.Scope),
		ExpiresAt:    result.ExpiresAt(a.now()),
	}, nil
}

func (a *app) validator() *application.TokenValidator {
	return application.NewTokenValidator(a.publicOAuth(), a.creds, a.executor, a.channels, ports.SystemClock{})
}
