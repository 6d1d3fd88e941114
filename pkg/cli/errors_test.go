package cli

import (
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"

	"blackroad-os/carpool/pkg/config"
	"blackroad-os/carpool/pkg/ledger"
	"blackroad-os/carpool/pkg/routing"
)

func TestConfigError(t *testing.T) {
	err := NewConfigError("ledger.backend", "unknown backend")

	expected := "config error in ledger.backend: unknown backend"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestCommandError(t *testing.T) {
	inner := errors.New("boom")
	err := NewCommandError("ledger verify", inner)

	if err.Error() != "command ledger verify failed: boom" {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(err, inner) {
		t.Error("CommandError should unwrap to the inner error")
	}
}

func TestExitCode(t *testing.T) {
	key := ledger.BalanceKey{Entity: ledger.EntityRef{Type: ledger.EntityUser, ID: "u1"}, Currency: "ROADCOIN"}

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"generic", errors.New("disk full"), ExitFailure},
		{"config error", NewConfigError("output", "bad"), ExitConfig},
		{"config validation", fmt.Errorf("load: %w", config.ValidationError{Errors: []config.FieldError{{Field: "a", Message: "b"}}}), ExitConfig},
		{"insufficient", NewCommandError("ledger burn", ledger.NewInsufficientBalanceError(key, decimal.Zero, decimal.NewFromInt(1))), ExitInsufficientBalance},
		{"invalid entry", NewCommandError("ledger append", ledger.NewValidationError("amount", "negative")), ExitInvalidInput},
		{"empty task", routing.ErrEmptyTask, ExitInvalidInput},
		{"no candidates", &routing.NoCandidatesError{}, ExitInvalidInput},
		{"chain broken", NewCommandError("ledger verify", ErrChainBroken), ExitChainBroken},
		{"integrity", &ledger.ChainIntegrityError{Sequence: 4, Reason: "hash mismatch"}, ExitChainBroken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}
