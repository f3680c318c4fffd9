package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	authadapter "github.com/bnema/twitch-bot-cli/internal/adapters/auth"
	"github.com/bnema/twitch-bot-cli/internal/application"
	"github.com/bnema/twitch-bot-cli/internal/domain"
)

func newChannelCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "channel",
		Short: "Manage tracked channels",
	}

	cmd.AddCommand(
		newChannelAddCmd(app),
		newChannelListCmd(app),
		newChannelRemoveCmd(app),
		newChannelEnableCmd(app),
		newChannelCheckCmd(app),
	)

	return cmd
}

func newChannelAddCmd(app *app) *cobra.Command {
	var forceVerify bool

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Onboard a channel through the Twitch browser login",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runChannelAdd(cmd, app, forceVerify)
		},
	}

	cmd.Flags().BoolVar(&forceVerify, "force-verify", false, "Ask Twitch to show the consent screen even if already authorized")

	return cmd
}

func runChannelAdd(cmd *cobra.Command, app *app, forceVerify bool) error {
	oauth, err := app.confidentialOAuth(cmd.Context())
	if err != nil {
		return err
	}

	state, err := authadapter.NewState()
	if err != nil {
		return fmt.Errorf("generate oauth state: %w", err)
	}

	server, err := authadapter.StartCallbackServer(app.cfg.OAuth.ListenAddr, state)
	if err != nil {
		return fmt.Errorf("start callback server: %w", err)
	}

	authURL, err := authadapter.BuildAuthorizationURL(authadapter.AuthorizationRequest{
		AuthURL:     app.cfg.Twitch.OAuthURL + "/authorize",
		ClientID:    app.cfg.Twitch.ClientID,
		RedirectURI: server.RedirectURI(),
		Scopes:      domain.ScopeStrings(domain.ChannelScopes),
		State:       state,
		ForceVerify: forceVerify,
	})
	if err != nil {
		_ = server.Close()
		return fmt.Errorf("build authorization url: %w", err)
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Open this URL while logged in as the channel owner:\n%s\n", authURL)

	code, err := server.WaitForCode(cmd.Context(), app.cfg.OAuth.Timeout)
	if err != nil {
		return fmt.Errorf("wait for oauth callback: %w", err)
	}

	channel, err := app.service.OnboardCode(cmd.Context(), oauth, code, server.RedirectURI())
	if err != nil {
		return fmt.Errorf("onboard channel: %w", err)
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Onboarded channel %s (%s)\n", channel.Login, channel.ID)
	return nil
}

func newChannelListCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List tracked channels",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			channels, err := app.service.List(cmd.Context())
			if err != nil {
				return err
			}

			for _, channel := range channels {
				state := "enabled"
				if !channel.Enabled {
					state = "disabled"
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", channel.ID, channel.Login, state)
			}

			return nil
		},
	}
}

func newChannelRemoveCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id|login>",
		Short: "Stop tracking a channel and revoke its token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			channel, err := app.service.Resolve(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			channel, err = app.service.Remove(cmd.Context(), channel.ID, app.subscriptions, app.publicOAuth())
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Removed channel %s (%s)\n", channel.Login, channel.ID)
			return nil
		},
	}
}

func newChannelEnableCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "enable <id|login>",
		Short: "Track a disabled channel again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			channel, err := app.service.Resolve(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			channel, err = app.service.SetEnabled(cmd.Context(), channel.ID, true)
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Enabled channel %s (%s)\n", channel.Login, channel.ID)
			return nil
		},
	}
}

var errCheckFailed = errors.New("token check failed")

func newChannelCheckCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the stored token of every enabled channel",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := app.cfg.RequireClientID(); err != nil {
				return err
			}

			var results []application.CheckResult
			err := runWithSpinner(cmd.Context(), cmd.ErrOrStderr(), "Validating channel tokens...", func(ctx context.Context) error {
				var err error
				results, err = app.validator().CheckAll(ctx)
				return err
			})
			if err != nil {
				return err
			}

			return writeCheckResults(cmd, results, app.now())
		},
	}
}

func writeCheckResults(cmd *cobra.Command, results []application.CheckResult, now time.Time) error {
	if len(results) == 0 {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No enabled channels to check.")
		return nil
	}

	failed := 0
	for _, result := range results {
		name := fmt.Sprintf("%s (%s)", result.Channel.Login, result.Channel.ID)
		if result.Err != nil {
			failed++
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "FAIL %s: %s\n", name, checkHint(result.Err))
			continue
		}

		expiry := "no expiry reported"
		if !result.Credential.ExpiresAt.IsZero() {
			expiry = "expires in " + result.Credential.ExpiresAt.Sub(now).Round(time.Minute).String()
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "OK   %s: %s\n", name, expiry)
	}

	if failed > 0 {
		return fmt.Errorf("%w for %d of %d channel(s)", errCheckFailed, failed, len(results))
	}
	return nil
}

func checkHint(err error) string {
	msg := err.Error()
	switch {
	case errors.Is(err, domain.ErrCredentialNotFound):
		return msg + "; run `tb channel add` to onboard it again"
	case errors.Is(err, domain.ErrRefreshRejected), errors.Is(err, domain.ErrMissingScopes):
		return msg + "; run `tb channel add --force-verify` to re-authorize"
	default:
		return strings.TrimSpace(msg)
	}
}
