package cli

import (
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number and active backends",
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Printf("medguard version %s\n", version)

		if settingsService == nil {
			return
		}
		settings, err := settingsService.Get()
		if err != nil {
			return
		}
		cmd.Printf("cache: %s, patients: %s\n",
			settings.Cache.Backend.Description(), settings.Patients.Backend.Description())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
