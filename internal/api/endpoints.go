package api

import (
	"errors"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/arencloud/courtside/internal/loader"
	"github.com/arencloud/courtside/internal/version"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
)

var appStart = time.Now()

func queryLimit(c *gin.Context, def int) int {
	if v := c.Query("limit"); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i > 0 {
			return i
		}
	}
	return def
}

func (s *server) version(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"name": "courtside", "version": version.Version, "commit": version.Commit})
}

func (s *server) metrics(c *gin.Context) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	total, failed, degraded := s.runs.counts()
	c.JSON(http.StatusOK, gin.H{
		"uptimeSec":    time.Since(appStart).Seconds(),
		"startedAt":    appStart.Format(time.RFC3339),
		"goroutines":   runtime.NumGoroutine(),
		"heapAlloc":    m.HeapAlloc,
		"runsTotal":    total,
		"runsFailed":   failed,
		"runsDegraded": degraded,
		"runInFlight":  s.busy.Load(),
	})
}

// logsRecent returns recent structured logs from the in-memory ring.
func (s *server) logsRecent(c *gin.Context) {
	c.JSON(http.StatusOK, s.logger.Recent(queryLimit(c, 200)))
}

// createRun performs one load synchronously. Only one HTTP-triggered run is
// in flight at a time; a second request gets 409.
func (s *server) createRun(c *gin.Context) {
	if !s.busy.CompareAndSwap(false, true) {
		c.JSON(http.StatusConflict, gin.H{"error": "a load run is already in progress"})
		return
	}
	defer s.busy.Store(false)

	rid := requestid.Get(c)
	s.logger.Info("load run requested", "requestId", rid)
	rep, err := s.run(c.Request.Context())
	s.runs.add(rep)
	if err != nil {
		var le *loader.Error
		status := http.StatusInternalServerError
		if errors.As(err, &le) && le.Retryable() {
			c.Header("Retry-After", "60")
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, rep)
		return
	}
	c.JSON(http.StatusOK, rep)
}

func (s *server) listRuns(c *gin.Context) {
	c.JSON(http.StatusOK, s.runs.all(queryLimit(c, 20)))
}

func (s *server) lastRun(c *gin.Context) {
	rep, ok := s.runs.last()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no runs yet"})
		return
	}
	c.JSON(http.StatusOK, rep)
}
