// Package transform triggers the downstream dbt models once raw data has
// landed in the warehouse.
package transform

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/arencloud/courtside/internal/config"
	"github.com/arencloud/courtside/internal/logging"
)

var ErrDbtNotFound = errors.New("dbt executable not found")

// RunError is a dbt invocation that exited non-zero.
type RunError struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

func (e *RunError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		msg = lastLine(e.Stdout)
	}
	return fmt.Sprintf("dbt run exited with code %d: %s", e.ExitCode, msg)
}

type Result struct {
	Stdout   string
	Duration time.Duration
}

type Runner struct {
	Binary     string
	ProjectDir string
	Select     string
	Log        logging.Logger
}

func NewRunner(cfg *config.Config, log logging.Logger) *Runner {
	return &Runner{Binary: cfg.DbtBinary, ProjectDir: cfg.DbtProjectDir, Select: cfg.DbtSelect, Log: log}
}

// Args is the argument list passed to the binary.
func (r *Runner) Args() []string {
	args := []string{"run"}
	if r.Select != "" {
		args = append(args, "--select", r.Select)
	}
	if r.ProjectDir != "" {
		args = append(args, "--project-dir", r.ProjectDir)
	}
	return args
}

// Run blocks until dbt exits. A missing binary yields ErrDbtNotFound; a
// non-zero exit yields *RunError with both output streams.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	bin := r.Binary
	if bin == "" {
		bin = "dbt"
	}
	path, err := exec.LookPath(bin)
	if err != nil {
		r.Log.Error("dbt executable not found, make sure it is installed and on PATH", "binary", bin)
		return Result{}, fmt.Errorf("%w: %s", ErrDbtNotFound, bin)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, path, r.Args()...)
	cmd.Stdout, cmd.Stderr = &stdout, &stderr
	if r.ProjectDir != "" {
		cmd.Dir = r.ProjectDir
	}
	r.Log.Info("starting dbt run", "binary", path, "args", r.Args())
	start := time.Now()
	err = cmd.Run()
	res := Result{Stdout: stdout.String(), Duration: time.Since(start)}
	if err != nil {
		var ee *exec.ExitError
		if !errors.As(err, &ee) {
			r.Log.Error("dbt run could not start", "error", err)
			return res, fmt.Errorf("dbt run: %w", err)
		}
		re := &RunError{ExitCode: ee.ExitCode(), Stdout: res.Stdout, Stderr: stderr.String()}
		r.Log.Error("dbt run failed", "exitCode", re.ExitCode, "stdout", re.Stdout, "stderr", re.Stderr)
		return res, re
	}
	r.Log.Info("dbt run completed successfully", "durationMs", res.Duration.Milliseconds())
	r.Log.Debug("dbt output", "stdout", res.Stdout)
	return res, nil
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
