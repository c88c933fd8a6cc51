package cmd

import (
	"fmt"

	"github.com/rzqiy/deteksi-kwh/internal/version"
	"github.com/spf13/cobra"
)

// versionCmd represents the version command.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		v, commit, date := version.Info()
		_, err := fmt.Fprintf(cmd.OutOrStdout(),
			"deteksi-kwh version %s (commit: %s, built: %s)\n", v, commit, date)
		return err
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
