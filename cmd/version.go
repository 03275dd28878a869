package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/itsmostafa/funpad/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "funpad %s\n", version.String())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
