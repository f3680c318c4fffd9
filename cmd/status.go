package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	statusadapter "github.com/bnema/twitch-bot-cli/internal/adapters/render/status"
	"github.com/bnema/twitch-bot-cli/internal/application"
	"github.com/bnema/twitch-bot-cli/internal/domain"
)

const defaultExpiryWarning = time.Hour

func newStatusCmd(app *app) *cobra.Command {
	var (
		channelRef string
		top        int
		asJSON     bool
		logins     bool
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show tracked channels, token health and top chatters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			statuses, err := app.service.Statuses(cmd.Context(), top, nil)
			if err != nil {
				return err
			}

			if channelRef != "" {
				channel, err := app.service.Resolve(cmd.Context(), channelRef)
				if err != nil {
					return err
				}
				statuses = filterStatuses(statuses, channel.ID)
			}

			if logins {
				if err := app.cfg.RequireClientID(); err != nil {
					return err
				}
				statuses = app.presence.WithChatterLogins(cmd.Context(), statuses)
			}

			return writeStatusesOutput(cmd, app, statuses, asJSON)
		},
	}

	cmd.Flags().StringVar(&channelRef, "channel", "", "Only show this channel (id or login)")
	cmd.Flags().IntVar(&top, "top", 3, "Number of top chatters to show per channel")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output status as JSON")
	cmd.Flags().BoolVar(&logins, "logins", false, "Look up top chatter logins through Helix")

	return cmd
}

func filterStatuses(statuses []application.Status, id domain.EntityID) []application.Status {
	for _, status := range statuses {
		if status.Channel.ID == id {
			return []application.Status{status}
		}
	}
	return nil
}

func writeStatusesOutput(cmd *cobra.Command, app *app, statuses []application.Status, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(statuses)
	}

	rendered, err := app.statusRenderer(statuses, statusadapter.RenderOptions{
		Now:           app.now(),
		ExpiryWarning: defaultExpiryWarning,
	})
	if err != nil {
		return fmt.Errorf("render status: %w", err)
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
	return err
}
