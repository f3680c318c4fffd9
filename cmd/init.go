package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bnema/twitch-bot-cli/internal/config"
)

func newInitCmd(app *app) *cobra.Command {
	var (
		clientID     string
		clientSecret string
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Register the Twitch application credentials",
		RunE: func(cmd *cobra.Command, _ []string) error {
			clientID = strings.TrimSpace(clientID)
			clientSecret = strings.TrimSpace(clientSecret)

			if err := config.SetClientID(app.cfg.Dir, clientID); err != nil {
				return fmt.Errorf("save client id: %w", err)
			}
			if err := app.secretStore.Put(cmd.Context(), clientSecretRef, clientSecret); err != nil {
				return fmt.Errorf("save client secret: %w", err)
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Saved Twitch application %s to %s\n", clientID, filepath.Join(app.cfg.Dir, "config.toml"))
			return nil
		},
	}

	cmd.Flags().StringVar(&clientID, "client-id", "", "Twitch application client ID")
	cmd.Flags().StringVar(&clientSecret, "client-secret", "", "Twitch application client secret")
	_ = cmd.MarkFlagRequired("client-id")
	_ = cmd.MarkFlagRequired("client-secret")

	return cmd
}
