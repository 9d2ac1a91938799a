package commands

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/arencloud/courtside/internal/api"
	"github.com/arencloud/courtside/internal/loader"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serves health, logs and on-demand load runs over HTTP.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log := setup()
		run := func(ctx context.Context) (loader.Report, error) {
			return runLoad(ctx, cfg, log, io.Discard)
		}
		srv := &http.Server{
			Addr:              ":" + cfg.HttpPort,
			Handler:           api.Router(cfg, log, run),
			ReadHeaderTimeout: 15 * time.Second,
			MaxHeaderBytes:    1 << 20,
		}

		errc := make(chan error, 1)
		go func() {
			log.Info("server starting", "addr", srv.Addr)
			errc <- srv.ListenAndServe()
		}()
		select {
		case err := <-errc:
			if !errors.Is(err, http.ErrServerClosed) {
				log.Error("server error", "error", err)
				return err
			}
			return nil
		case <-cmd.Context().Done():
		}
		log.Info("server shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	},
}
