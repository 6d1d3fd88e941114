package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// resetCommandState restores every flag to its default so each test starts
// from a clean command tree.
func resetCommandState() {
	analyzeFlags.history = nil
	routeFlags.history = nil

	var walk func(c *cobra.Command)
	walk = func(c *cobra.Command) {
		reset := func(f *pflag.Flag) {
			if f.Value.Type() != "stringArray" {
				_ = f.Value.Set(f.DefValue)
			}
			f.Changed = false
		}
		c.Flags().VisitAll(reset)
		c.PersistentFlags().VisitAll(reset)
		for _, sub := range c.Commands() {
			walk(sub)
		}
	}
	walk(rootCmd)
}

// execute runs the CLI with args and returns everything written to stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetCommandState()
	t.Cleanup(resetCommandState)

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

// writeTestConfig writes a config that keeps the ledger in a temporary
// SQLite file and disables background jobs.
func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	content := fmt.Sprintf(`
server:
  listen_address: 127.0.0.1:0
ledger:
  backend: sqlite
  sqlite:
    path: %s
  audit:
    enabled: false
telemetry:
  logging:
    level: error
  metrics:
    enabled: false
`, filepath.Join(dir, "ledger.db"))

	path := filepath.Join(dir, "carpool.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}
