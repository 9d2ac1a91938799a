package commands

import (
	"github.com/arencloud/courtside/internal/transform"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(transformCmd)
}

var transformCmd = &cobra.Command{
	Use:   "transform",
	Short: "Runs the dbt models that build on the raw scoreboard table.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log := setup()
		_, err := transform.NewRunner(cfg, log).Run(cmd.Context())
		return err
	},
}
