package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bnema/twitch-bot-cli/internal/application"
	"github.com/bnema/twitch-bot-cli/internal/eventsub"
	"github.com/bnema/twitch-bot-cli/internal/log"
)

func newRunCmd(app *app) *cobra.Command {
	var (
		metricsAddr  string
		pollInterval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the bot for every enabled channel until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := app.cfg.RequireClientID(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			router := application.NewNotificationRouter(app.presence, application.LogChat(log.WithComponent("chat")))
			factory := application.NewConnectionFactory(app.subscriptions, router.Handle, application.ConnectionSettings{
				Dialer:         eventsub.WebsocketDialer{},
				KeepaliveGrace: app.cfg.EventSub.KeepaliveGrace,
				WelcomeTimeout: app.cfg.EventSub.WelcomeTimeout,
			})
			supervisor := eventsub.NewSupervisor(factory,
				eventsub.WithDefaultURL(app.cfg.EventSub.URL),
				eventsub.WithRedialDelay(app.cfg.EventSub.RedialDelay),
				eventsub.WithFatalHandler(application.DisableOnFatal(app.service, app.presence)),
			)

			bot, err := application.NewBot(application.BotConfig{
				Channels:     app.service,
				Validator:    app.validator(),
				Presence:     app.presence,
				Supervisor:   supervisor,
				PollInterval: pollInterval,
				MetricsAddr:  metricsAddr,
			})
			if err != nil {
				return fmt.Errorf("wire bot: %w", err)
			}

			return bot.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", app.cfg.Metrics.ListenAddr, "Serve /metrics and /healthz on this address (empty disables)")
	cmd.Flags().DurationVar(&pollInterval, "poll-interval", app.cfg.Presence.PollInterval, "Interval between chatter polls of live channels")

	return cmd
}
