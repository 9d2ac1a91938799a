package commands

import (
	"fmt"
	"time"

	"github.com/arencloud/courtside/internal/retry"
	"github.com/arencloud/courtside/internal/s3"
	"github.com/arencloud/courtside/internal/scoreboard"
	"github.com/arencloud/courtside/internal/snapshot"

	"github.com/spf13/cobra"
)

const fetchTimeout = 30 * time.Second

func init() {
	rootCmd.AddCommand(captureCmd)
}

// objectURL is the s3:// location of key in the store's bucket.
func objectURL(store *snapshot.S3Store, key string) string {
	return "s3://" + store.Bucket() + "/" + key
}

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Fetches the live scoreboard and saves it as a timestamped snapshot.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log := setup()
		if err := cfg.ValidateStore(); err != nil {
			log.Error("invalid configuration", "error", err)
			return err
		}
		store := newStore(cfg)
		c := &scoreboard.Capturer{
			Source:     scoreboard.NewFetcher(cfg.ScoreboardURL, fetchTimeout),
			Store:      store,
			Prefix:     cfg.S3Prefix,
			SourceName: cfg.SourceName,
			Fetch:      retry.Fixed(cfg.FetchMaxAttempts, cfg.FetchRetryDelay, scoreboard.Retryable),
			Save:       retry.Fixed(cfg.FetchMaxAttempts, cfg.FetchRetryDelay, func(err error) bool { return !s3.IsAuthError(err) }),
			Log:        log,
		}
		key, err := c.Capture(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), objectURL(store, key))
		return nil
	},
}
