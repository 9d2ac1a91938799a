package commands

import (
	"github.com/arencloud/courtside/internal/transform"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(pipelineCmd)
}

var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Loads the newest snapshot, then runs dbt unless the load failed.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log := setup()
		rep, err := runLoad(cmd.Context(), cfg, log, cmd.OutOrStdout())
		if err != nil {
			log.Error("skipping transformation, load failed", "run", rep.RunID)
			return err
		}
		_, err = transform.NewRunner(cfg, log).Run(cmd.Context())
		return err
	},
}
