package transform

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/arencloud/courtside/internal/config"
	"github.com/arencloud/courtside/internal/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// fakeDbt writes an executable shell script standing in for dbt.
func fakeDbt(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts only")
	}
	p := filepath.Join(t.TempDir(), "dbt")
	require.NoError(t, os.WriteFile(p, []byte("#!/bin/sh\n"+script+"\n"), 0o755))
	return p
}

func TestArgs(t *testing.T) {
	r := NewRunner(&config.Config{DbtBinary: "dbt", DbtProjectDir: "/srv/dbt", DbtSelect: "my_first_dbt_model"}, logging.Nop())
	assert.Equal(t, []string{"run", "--select", "my_first_dbt_model", "--project-dir", "/srv/dbt"}, r.Args())

	r = &Runner{}
	assert.Equal(t, []string{"run"}, r.Args())
}

func TestRunSuccessCapturesStdout(t *testing.T) {
	bin := fakeDbt(t, `echo "args: $@"`)
	core, logs := observer.New(zapcore.DebugLevel)
	r := &Runner{Binary: bin, Select: "stg_games", Log: logging.FromZap(zap.New(core))}

	res, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Contains(t, res.Stdout, "args: run --select stg_games")
	assert.Equal(t, 1, logs.FilterMessage("dbt run completed successfully").Len())
}

func TestRunFailureKeepsBothStreams(t *testing.T) {
	bin := fakeDbt(t, "echo 'Completed with 1 error'\necho 'Database Error in model' 1>&2\nexit 2")
	r := &Runner{Binary: bin, Log: logging.Nop()}

	_, err := r.Run(context.Background())
	var re *RunError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, 2, re.ExitCode)
	assert.Contains(t, re.Stdout, "Completed with 1 error")
	assert.Contains(t, re.Stderr, "Database Error in model")
	assert.Contains(t, err.Error(), "Database Error in model")
}

func TestRunMissingBinary(t *testing.T) {
	r := &Runner{Binary: filepath.Join(t.TempDir(), "no-such-dbt"), Log: logging.Nop()}
	_, err := r.Run(context.Background())
	assert.ErrorIs(t, err, ErrDbtNotFound)
}

func TestRunErrorFallsBackToStdout(t *testing.T) {
	e := &RunError{ExitCode: 1, Stdout: "line one\nDone. PASS=0 ERROR=1"}
	assert.Equal(t, "dbt run exited with code 1: Done. PASS=0 ERROR=1", e.Error())
}
