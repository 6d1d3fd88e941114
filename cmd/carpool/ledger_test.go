package main

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blackroad-os/carpool/pkg/cli"
	"blackroad-os/carpool/pkg/ledger"
	"blackroad-os/carpool/pkg/ledger/chain"
	"blackroad-os/carpool/pkg/ledger/storage"
)

func TestLedgerCommands_Flow(t *testing.T) {
	cfg := writeTestConfig(t)
	run := func(args ...string) (string, error) {
		return execute(t, append([]string{"--config", cfg}, args...)...)
	}

	_, err := run("ledger", "grant", "--to", "user:alice", "--amount", "100", "--idempotency-key", "order-1")
	require.NoError(t, err)
	_, err = run("ledger", "transfer", "--from", "user:alice", "--to", "org:acme", "--amount", "30")
	require.NoError(t, err)

	// A repeated grant with the same key is a replay, not a second credit.
	_, err = run("ledger", "grant", "--to", "user:alice", "--amount", "100", "--idempotency-key", "order-1")
	require.NoError(t, err)

	_, err = run("ledger", "burn", "--from", "user:alice", "--amount", "200")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ledger.ErrInsufficientBalance))
	assert.Equal(t, cli.ExitInsufficientBalance, cli.ExitCode(err))

	out, err := run("ledger", "balance", "user:alice", "--currency", "ROADCOIN", "--output", "json")
	require.NoError(t, err)
	var balances []ledger.Balance
	require.NoError(t, json.Unmarshal([]byte(out), &balances))
	require.Len(t, balances, 1)
	assert.True(t, balances[0].Amount.Equal(decimal.NewFromInt(70)), "alice balance = %s", balances[0].Amount)

	out, err = run("ledger", "balance", "org:acme")
	require.NoError(t, err)
	assert.Contains(t, out, "org:acme")
	assert.Contains(t, out, "30")

	out, err = run("ledger", "entries", "--output", "csv")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3, "header plus two entries:\n%s", out)
	assert.True(t, strings.HasPrefix(lines[0], "SEQ,TYPE,FROM,TO"))
	assert.True(t, strings.HasPrefix(lines[1], "2,transfer,user:alice,org:acme,30,ROADCOIN"), lines[1])

	out, err = run("ledger", "entries", "--type", "credit_grant", "--output", "json")
	require.NoError(t, err)
	var grants []ledger.Entry
	require.NoError(t, json.Unmarshal([]byte(out), &grants))
	require.Len(t, grants, 1)
	assert.Equal(t, "order-1", grants[0].IdempotencyKey)
	assert.Equal(t, ledger.GenesisHash, grants[0].PrevHash)

	out, err = run("ledger", "verify", "--output", "json")
	require.NoError(t, err)
	var report chain.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.True(t, report.Valid)
	assert.Equal(t, 2, report.Checked)

	out, err = run("ledger", "reconcile")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "ENTITY"))
}

func TestLedgerAppendCommand_Errors(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantExit int
	}{
		{
			name:     "unknown type",
			args:     []string{"ledger", "append", "--type", "gift", "--to", "user:u1", "--amount", "1"},
			wantExit: cli.ExitInvalidInput,
		},
		{
			name:     "malformed amount",
			args:     []string{"ledger", "grant", "--to", "user:u1", "--amount", "ten"},
			wantExit: cli.ExitInvalidInput,
		},
		{
			name:     "bad entity",
			args:     []string{"ledger", "grant", "--to", "bank:u1", "--amount", "1"},
			wantExit: cli.ExitInvalidInput,
		},
		{
			name:     "metadata not an object",
			args:     []string{"ledger", "grant", "--to", "user:u1", "--amount", "1", "--metadata", "[1,2]"},
			wantExit: cli.ExitInvalidInput,
		},
		{
			name:     "self transfer",
			args:     []string{"ledger", "transfer", "--from", "user:u1", "--to", "user:u1", "--amount", "1"},
			wantExit: cli.ExitInvalidInput,
		},
		{
			name:     "too many decimals",
			args:     []string{"ledger", "grant", "--to", "user:u1", "--amount", "0.000000001"},
			wantExit: cli.ExitInvalidInput,
		},
		{
			name:     "missing required flag",
			args:     []string{"ledger", "burn", "--amount", "1"},
			wantExit: cli.ExitFailure,
		},
		{
			name:     "burn without amount or model",
			args:     []string{"ledger", "burn", "--from", "user:u1"},
			wantExit: cli.ExitInvalidInput,
		},
		{
			name:     "burn tokens without model",
			args:     []string{"ledger", "burn", "--from", "user:u1", "--amount", "1", "--prompt-tokens", "10"},
			wantExit: cli.ExitInvalidInput,
		},
		{
			name:     "burn unknown model",
			args:     []string{"ledger", "burn", "--from", "user:u1", "--model", "gpt-9", "--prompt-tokens", "10"},
			wantExit: cli.ExitInvalidInput,
		},
		{
			name:     "burn amount and model",
			args:     []string{"ledger", "burn", "--from", "user:u1", "--amount", "1", "--model", "gpt-4o"},
			wantExit: cli.ExitFailure,
		},
		{
			name:     "grant from unfunded system entity",
			args:     []string{"ledger", "grant", "--from", "system:treasury", "--to", "user:u1", "--amount", "1"},
			wantExit: cli.ExitInsufficientBalance,
		},
		{
			name:     "verify inverted range",
			args:     []string{"ledger", "verify", "--from", "3", "--to", "1"},
			wantExit: cli.ExitInvalidInput,
		},
		{
			name:     "verify past tail",
			args:     []string{"ledger", "verify", "--from", "50", "--to", "60"},
			wantExit: cli.ExitInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := writeTestConfig(t)
			_, err := execute(t, append([]string{"--config", cfg}, tt.args...)...)
			require.Error(t, err)
			assert.Equal(t, tt.wantExit, cli.ExitCode(err), "error: %v", err)

			out, err := execute(t, "--config", cfg, "ledger", "entries", "--output", "csv")
			require.NoError(t, err)
			assert.Equal(t, 1, len(strings.Split(strings.TrimSpace(out), "\n")), "nothing should be written:\n%s", out)
		})
	}
}

func TestLedgerBurnCommand_Usage(t *testing.T) {
	cfg := writeTestConfig(t)
	run := func(args ...string) (string, error) {
		return execute(t, append([]string{"--config", cfg}, args...)...)
	}

	_, err := run("ledger", "grant", "--to", "user:alice", "--amount", "1")
	require.NoError(t, err)

	out, err := run("ledger", "burn", "--from", "user:alice", "--model", "gpt-4o",
		"--prompt-tokens", "900", "--completion-tokens", "300", "--metadata", `{"request_id":"r-9"}`, "--output", "json")
	require.NoError(t, err)

	var entries []ledger.Entry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 1)
	burned := entries[0]
	assert.Equal(t, ledger.EntryCreditBurn, burned.Type)
	assert.True(t, burned.Amount.Equal(decimal.RequireFromString("0.006")), "amount = %s", burned.Amount)
	assert.Equal(t, "gpt-4o", burned.Metadata["model"])
	assert.Equal(t, float64(1200), burned.Metadata["tokens"])
	assert.Equal(t, "r-9", burned.Metadata["request_id"])

	out, err = run("ledger", "balance", "user:alice", "--currency", "ROADCOIN", "--output", "json")
	require.NoError(t, err)
	var balances []ledger.Balance
	require.NoError(t, json.Unmarshal([]byte(out), &balances))
	require.Len(t, balances, 1)
	assert.True(t, balances[0].Amount.Equal(decimal.RequireFromString("0.994")), "balance = %s", balances[0].Amount)

	_, err = run("ledger", "verify")
	require.NoError(t, err)
}

func TestLedgerAppendCommand_Verification(t *testing.T) {
	cfg := writeTestConfig(t)

	out, err := execute(t, "--config", cfg, "ledger", "append", "--type", "verification",
		"--metadata", `{"note":"manual audit","checked":12}`, "--output", "json")
	require.NoError(t, err)

	var entries []ledger.Entry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, ledger.EntryVerification, entries[0].Type)
	assert.True(t, entries[0].Amount.IsZero())
	assert.Equal(t, "manual audit", entries[0].Metadata["note"])
}

func TestLedgerEntriesCommand_InvalidFilters(t *testing.T) {
	cfg := writeTestConfig(t)

	for _, args := range [][]string{
		{"--entity", "nobody"},
		{"--type", "gift"},
		{"--limit", "-1"},
	} {
		_, err := execute(t, append([]string{"--config", cfg, "ledger", "entries"}, args...)...)
		assert.Error(t, err, "args %v", args)
	}
}

func TestBuildAppendRequest(t *testing.T) {
	resetCommandState()
	t.Cleanup(resetCommandState)

	entryFlags.amount = "12.50"
	entryFlags.from = "system:treasury"
	entryFlags.to = "agent:a1"
	entryFlags.metadata = `{"big":12345678901234567890}`
	entryFlags.externalRef = "pi_123"

	req, err := buildAppendRequest(string(ledger.EntryReward))
	require.NoError(t, err)
	assert.Equal(t, ledger.EntryReward, req.Type)
	assert.True(t, req.Amount.Equal(decimal.RequireFromString("12.5")))
	require.NotNil(t, req.From)
	assert.Equal(t, ledger.EntitySystem, req.From.Type)
	require.NotNil(t, req.To)
	assert.Equal(t, "a1", req.To.ID)
	assert.Equal(t, json.Number("12345678901234567890"), req.Metadata["big"])
	assert.Equal(t, "pi_123", req.ExternalRef)
}

func TestVerifyChunked(t *testing.T) {
	resetCommandState()
	t.Cleanup(resetCommandState)

	ctx := context.Background()
	l := chain.New(storage.NewMemoryStore())
	to := ledger.EntityRef{Type: ledger.EntityUser, ID: "u1"}

	const n = verifyChunk + 5
	for i := 0; i < n; i++ {
		_, err := l.Append(ctx, chain.AppendRequest{Type: ledger.EntryCreditGrant, Amount: decimal.NewFromInt(1), To: &to})
		require.NoError(t, err)
	}

	report, err := verifyChunked(ctx, l, 1, n)
	require.NoError(t, err)
	assert.True(t, report.Valid)
	assert.Equal(t, n, report.Checked)
	assert.Equal(t, int64(1), report.From)
	assert.Equal(t, int64(n), report.To)

	empty, err := verifyChunked(ctx, l, 1, 0)
	require.NoError(t, err)
	assert.True(t, empty.Valid)
	assert.Zero(t, empty.Checked)
}

func TestReportResult_Rows(t *testing.T) {
	broken := reportResult{&chain.Report{
		From: 1, To: 9, Checked: 4, FirstInvalid: 4,
		Failure: &ledger.ChainIntegrityError{Sequence: 4, Reason: "hash mismatch"},
	}}
	assert.Equal(t, [][]string{{"1", "9", "4", "false", "4", "hash mismatch"}}, broken.Rows())

	ok := reportResult{&chain.Report{From: 1, To: 2, Checked: 2, Valid: true}}
	assert.Equal(t, [][]string{{"1", "2", "2", "true", "-", "-"}}, ok.Rows())
}

func TestServeCommand_DryRun(t *testing.T) {
	cfg := writeTestConfig(t)

	out, err := execute(t, "--config", cfg, "serve", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Configuration valid")
	assert.Contains(t, out, "✓ Ledger opened (sqlite backend, tail 0)")
	assert.Contains(t, out, "✓ Dry run complete")
	assert.NotContains(t, out, "Listening")
}

func TestServeCommand_InvalidConfig(t *testing.T) {
	_, err := execute(t, "--config", "/nonexistent/carpool.yaml", "serve", "--dry-run")
	require.Error(t, err)
	assert.Equal(t, cli.ExitConfig, cli.ExitCode(err))
}
