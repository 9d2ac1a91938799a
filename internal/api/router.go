// Package api exposes health, version, recent logs and on-demand load runs
// over HTTP.
package api

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/arencloud/courtside/internal/config"
	"github.com/arencloud/courtside/internal/loader"
	"github.com/arencloud/courtside/internal/logging"

	"github.com/gin-contrib/requestid"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
)

// RunFunc performs one load; normally (*loader.Loader).Run.
type RunFunc func(ctx context.Context) (loader.Report, error)

type server struct {
	logger logging.Logger
	run    RunFunc
	runs   *runStore
	busy   atomic.Bool
}

func Router(cfg *config.Config, logger logging.Logger, run RunFunc) http.Handler {
	if cfg.Env != "dev" && gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}
	s := &server{logger: logger, run: run, runs: newRunStore(100)}

	r := gin.New()
	r.Use(requestid.New())
	r.Use(ginzap.Ginzap(logger.Zap(), time.RFC3339, true))
	r.Use(ginzap.RecoveryWithZap(logger.Zap(), true))

	r.GET("/health", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	api := r.Group("/api")
	api.GET("/version", s.version)
	api.GET("/metrics", s.metrics)
	api.GET("/logs", s.logsRecent)
	api.POST("/runs", s.createRun)
	api.GET("/runs", s.listRuns)
	api.GET("/runs/last", s.lastRun)
	return r
}
