package cli

import (
	"errors"
	"fmt"

	"blackroad-os/carpool/pkg/config"
	"blackroad-os/carpool/pkg/ledger"
	"blackroad-os/carpool/pkg/routing"
)

// Process exit codes.
const (
	ExitOK                  = 0
	ExitFailure             = 1
	ExitConfig              = 2
	ExitInvalidInput        = 3
	ExitInsufficientBalance = 4
	ExitChainBroken         = 5
)

// ErrChainBroken is returned by commands that found a hash chain failure.
var ErrChainBroken = errors.New("hash chain verification failed")

// ConfigError represents an error in configuration.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error in %s: %s", e.Field, e.Message)
}

// CommandError represents an error from a command execution.
type CommandError struct {
	Command string
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %s failed: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{
		Field:   field,
		Message: message,
	}
}

// NewCommandError creates a new CommandError.
func NewCommandError(command string, err error) *CommandError {
	return &CommandError{
		Command: command,
		Err:     err,
	}
}

// ExitCode maps an error returned by a command to the process exit code.
func ExitCode(err error) int {
	var (
		cfgErr   *ConfigError
		validErr config.ValidationError
	)
	switch {
	case err == nil:
		return ExitOK
	case errors.As(err, &cfgErr), errors.As(err, &validErr):
		return ExitConfig
	case errors.Is(err, ErrChainBroken), errors.Is(err, ledger.ErrChainIntegrity):
		return ExitChainBroken
	case errors.Is(err, ledger.ErrInsufficientBalance):
		return ExitInsufficientBalance
	case errors.Is(err, ledger.ErrInvalidEntry), errors.Is(err, routing.ErrEmptyTask), errors.Is(err, routing.ErrNoCandidates):
		return ExitInvalidInput
	default:
		return ExitFailure
	}
}
