package config

import "strings"

// MissingError lists every required setting that was empty.
type MissingError struct {
	Vars []string
}

func (e *MissingError) Error() string {
	return "missing environment variables: " + strings.Join(e.Vars, ", ")
}
