package cmd

import (
	"errors"

	"fieldparty/internal/config"
	"fieldparty/pkg/domain"
)

// Process exit codes, one per error kind.
const (
	ExitOK           = 0
	ExitError        = 1
	ExitValidation   = 2
	ExitNotFound     = 3
	ExitForbidden    = 4
	ExitInvalidState = 5
	ExitContention   = 6
)

// ExitCode maps err to the process exit status.
func ExitCode(err error) int {
	var cfgErrs config.ValidationErrors
	if errors.As(err, &cfgErrs) {
		return ExitValidation
	}
	switch domain.Classify(err) {
	case "ok":
		return ExitOK
	case "validation":
		return ExitValidation
	case "not_found":
		return ExitNotFound
	case "forbidden":
		return ExitForbidden
	case "invalid_state":
		return ExitInvalidState
	case "contention":
		return ExitContention
	default:
		return ExitError
	}
}
