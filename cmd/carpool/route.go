package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"blackroad-os/carpool/pkg/cli"
	"blackroad-os/carpool/pkg/config"
	"blackroad-os/carpool/pkg/routing"
)

var routeFlags struct {
	history   []string
	providers string
	prefer    string
}

var routeCmd = &cobra.Command{
	Use:   "route <text>",
	Short: "Pick the best-fit model for a task",
	Long: `Analyze a task and choose a model from the capability catalog.

Only models from --providers are considered. Without the flag the
routing.available_providers configuration is used. --prefer adds a bonus
to one provider and overrides routing.default_preferred_provider.

Examples:
  carpool route "write a go http handler"
  carpool route "describe this screenshot" --providers openai,google
  carpool route "quick question" --prefer anthropic --output json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRoute,
}

func init() {
	rootCmd.AddCommand(routeCmd)

	routeCmd.Flags().StringArrayVar(&routeFlags.history, "history", nil, "prior message content (repeatable)")
	routeCmd.Flags().StringVarP(&routeFlags.providers, "providers", "p", "", "comma separated providers to consider")
	routeCmd.Flags().StringVar(&routeFlags.prefer, "prefer", "", "preferred provider")
}

func runRoute(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	router, err := newRouter(cfg, nil)
	if err != nil {
		return err
	}

	tags := cfg.Routing.AvailableProviders
	if routeFlags.providers != "" {
		tags = splitList(routeFlags.providers)
	}
	available, err := routing.ParseProviders(tags)
	if err != nil {
		return cli.NewConfigError("providers", err.Error())
	}

	var prefs *routing.Preferences
	if routeFlags.prefer != "" {
		p, err := routing.ParseProvider(routeFlags.prefer)
		if err != nil {
			return cli.NewConfigError("prefer", err.Error())
		}
		prefs = &routing.Preferences{PreferredProvider: p}
	}

	analyzer, err := newAnalyzer(cfg)
	if err != nil {
		return err
	}
	task, err := analyzer.Analyze(strings.Join(args, " "), historyMessages(routeFlags.history))
	if err != nil {
		return err
	}

	decision, err := router.Route(cmd.Context(), task, available, prefs)
	if err != nil {
		return err
	}
	return printResult(cmd, routeResult{Task: task, Decision: decision})
}

// newRouter builds a router over the configured catalog.
func newRouter(cfg *config.Config, recorder routing.Recorder) (*routing.Router, error) {
	catalog, err := routing.CatalogFromConfig(&cfg.Routing)
	if err != nil {
		return nil, cli.NewConfigError("routing.catalog", err.Error())
	}

	opts := []routing.Option{}
	if recorder != nil {
		opts = append(opts, routing.WithRecorder(recorder))
	}
	if cfg.Routing.DefaultPreferredProvider != "" {
		opts = append(opts, routing.WithDefaultPreference(routing.Provider(cfg.Routing.DefaultPreferredProvider)))
	}
	return routing.NewRouter(catalog, opts...)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

type routeResult struct {
	Task     *routing.TaskProfile `json:"task"`
	Decision *routing.Decision    `json:"decision"`
}

func (r routeResult) Header() []string { return []string{"FIELD", "VALUE"} }

func (r routeResult) Rows() [][]string {
	d := r.Decision
	return [][]string{
		{"model", d.SelectedModel},
		{"provider", string(d.SelectedProvider)},
		{"model_id", d.ModelID},
		{"confidence", strconv.FormatFloat(d.Confidence, 'f', 2, 64)},
		{"estimated_cost", strconv.FormatFloat(d.EstimatedCost, 'f', 6, 64)},
		{"alternatives", strings.Join(d.Alternatives, ",")},
		{"requirements_relaxed", strconv.FormatBool(d.RequirementsRelaxed)},
		{"task", fmt.Sprintf("%s/%s (%d tokens)", r.Task.Type, r.Task.Complexity, r.Task.EstimatedTokens)},
		{"rationale", d.Rationale},
	}
}
