package cmd

import (
	"github.com/propdesk/propdesk/internal/client/output"
	"github.com/propdesk/propdesk/internal/constants"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the version of the CLI",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		output.KeyValue("CLI version", *constants.GetVersion())

		cfg, err := getConfigFromContext(cmd)
		if err != nil {
			return
		}
		rt, err := NewRuntime(cfg, nil)
		if err != nil {
			output.Warningf("%v", err)
			return
		}
		output.KeyValue("API", rt.Client.BaseURL())
		if cfg.NotificationsDisabled {
			output.KeyValue("Notifications", "disabled")
		}
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
