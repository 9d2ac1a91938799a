package commands

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/arencloud/courtside/internal/config"
	"github.com/arencloud/courtside/internal/loader"
	"github.com/arencloud/courtside/internal/logging"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(loadCmd)
}

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Loads the newest snapshot into the warehouse target table, once.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log := setup()
		_, err := runLoad(cmd.Context(), cfg, log, cmd.OutOrStdout())
		return err
	},
}

// runLoad performs one load and writes the report as JSON to out.
func runLoad(ctx context.Context, cfg *config.Config, log logging.Logger, out io.Writer) (loader.Report, error) {
	l, closer, err := newLoader(cfg, log)
	if err != nil {
		now := time.Now().UTC()
		rep := loader.Report{
			RunID: uuid.NewString(), Outcome: loader.OutcomeFailed, Error: err.Error(),
			StartedAt: now, FinishedAt: now,
		}
		log.Error("load failed", "run", rep.RunID, "error", err)
		writeReport(out, rep)
		return rep, err
	}
	defer closer.Close()

	rep, err := l.Run(ctx)
	writeReport(out, rep)
	return rep, err
}

func writeReport(out io.Writer, rep loader.Report) {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	_ = enc.Encode(rep)
}
