package main

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"blackroad-os/carpool/pkg/cli"
	"blackroad-os/carpool/pkg/config"
	"blackroad-os/carpool/pkg/processing/tokens"
	"blackroad-os/carpool/pkg/routing"
)

var analyzeFlags struct {
	history []string
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <text>",
	Short: "Profile a task without routing it",
	Long: `Classify a task and estimate its token footprint.

Arguments are joined with spaces to form the task text. Each --history value
is added as a prior user message and counts toward the token estimate.

Examples:
  carpool analyze "debug this stack trace"
  carpool analyze "summarize" --history "$(cat notes.txt)" --output json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringArrayVar(&analyzeFlags.history, "history", nil, "prior message content (repeatable)")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	analyzer, err := newAnalyzer(cfg)
	if err != nil {
		return err
	}
	profile, err := analyzer.Analyze(strings.Join(args, " "), historyMessages(analyzeFlags.history))
	if err != nil {
		return err
	}
	return printResult(cmd, profileResult{profile})
}

func newAnalyzer(cfg *config.Config) (*routing.Analyzer, error) {
	estimator, err := tokens.New(&cfg.Processing.Tokens)
	if err != nil {
		return nil, cli.NewConfigError("processing.tokens", err.Error())
	}
	return routing.NewAnalyzer(estimator), nil
}

func historyMessages(contents []string) []routing.Message {
	if len(contents) == 0 {
		return nil
	}
	out := make([]routing.Message, 0, len(contents))
	for _, c := range contents {
		out = append(out, routing.Message{Role: "user", Content: c})
	}
	return out
}

// profileResult renders a task profile as a two-column table.
type profileResult struct {
	*routing.TaskProfile
}

func (r profileResult) Header() []string { return []string{"FIELD", "VALUE"} }

func (r profileResult) Rows() [][]string {
	p := r.TaskProfile
	return [][]string{
		{"task_type", string(p.Type)},
		{"complexity", string(p.Complexity)},
		{"estimated_tokens", strconv.Itoa(p.EstimatedTokens)},
		{"requires_vision", strconv.FormatBool(p.RequiresVision)},
		{"requires_tools", strconv.FormatBool(p.RequiresTools)},
		{"requires_realtime", strconv.FormatBool(p.RequiresRealtime)},
		{"context_length", strconv.Itoa(p.ContextLength)},
	}
}
