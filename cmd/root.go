package cmd

import "github.com/spf13/cobra"

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "tb",
		Short:         "Twitch bot CLI (tb): onboard channels and run the EventSub bot",
		Long:          "tb keeps one Twitch EventSub WebSocket session per onboarded channel, authenticated with that channel's own token, and tracks stream presence and chatter watchtime.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	app, err := wireApp()
	if err != nil {
		rootCmd.RunE = func(_ *cobra.Command, _ []string) error {
			return err
		}
		return rootCmd
	}

	rootCmd.AddCommand(
		newVersionCmd(),
		newInitCmd(app),
		newChannelCmd(app),
		newRunCmd(app),
		newStatusCmd(app),
	)

	return rootCmd
}
