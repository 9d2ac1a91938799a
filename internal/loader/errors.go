package loader

import (
	"fmt"

	"github.com/arencloud/courtside/internal/warehouse"
)

type Kind string

const (
	// KindConfig: required settings missing; raised before any remote call.
	KindConfig Kind = "config"
	// KindInfrastructure: object store or warehouse unreachable or unauthenticated.
	KindInfrastructure Kind = "infrastructure"
	// KindLoad: the copy itself failed; File names the snapshot.
	KindLoad Kind = "load"
)

type Error struct {
	Kind Kind
	Op   string
	File string
	Err  error
}

func (e *Error) Error() string {
	s := string(e.Kind) + " error"
	if e.Op != "" {
		s += ": " + e.Op
	}
	if e.File != "" {
		s += " (file " + e.File + ")"
	}
	return s + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable tells an external scheduler whether running again may help.
// The loader itself never retries.
func (e *Error) Retryable() bool { return e.Kind == KindInfrastructure }

func copyFailed(res warehouse.CopyResult) error {
	if res.FirstError != "" {
		return fmt.Errorf("warehouse rejected file (%s): %s", res.Status, res.FirstError)
	}
	return fmt.Errorf("warehouse rejected file (%s)", res.Status)
}
