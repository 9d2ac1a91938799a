package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/arencloud/courtside/internal/config"
	"github.com/arencloud/courtside/internal/logging"

	"github.com/spf13/cobra"
)

var envFiles []string

var rootCmd = &cobra.Command{
	Use:           "courtside",
	Short:         "courtside captures live scoreboard snapshots and loads them into the warehouse.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "Optional .env file(s) to load before reading the environment.")
}

func ExecuteContext(ctx context.Context) {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// setup loads configuration and builds the process logger.
func setup() (*config.Config, logging.Logger) {
	cfg := config.Load(envFiles...)
	return cfg, logging.New(cfg.Env)
}
