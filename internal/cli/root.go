package cli

import (
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "nudge",
	Short: "Real-time shopper friction scoring and intervention decisions",
	Long: "Nudge scores storefront behavior events for friction and intent and decides, " +
		"per session, when to show which intervention and with what script.",
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default $NUDGE_CONFIG or ~/.nudge/config.toml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(scriptCmd)
	rootCmd.AddCommand(interventionsCmd)
}
