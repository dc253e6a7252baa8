// Package main provides the goalflow CLI entrypoint.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jmlow/goalflow/internal/config"
	"github.com/jmlow/goalflow/internal/engine"
	"github.com/jmlow/goalflow/internal/metrics"
	"github.com/jmlow/goalflow/internal/plan"
	"github.com/jmlow/goalflow/internal/provider"
	"github.com/jmlow/goalflow/internal/render"
	"github.com/jmlow/goalflow/internal/runner"
	"github.com/jmlow/goalflow/internal/storage"
	"github.com/jmlow/goalflow/internal/tool"
)

var version = "0.1.0"

// app holds the wired components shared by every command.
type app struct {
	cfg       *config.Config
	store     *storage.Storage
	eng       *engine.Engine
	planner   *plan.Planner
	providers *provider.Factory
	tools     *tool.Registry
	metrics   *metrics.Metrics
	out       *render.Renderer
}

var a app

func main() {
	rootCmd := &cobra.Command{
		Use:   "goalflow",
		Short: "Goal decomposition and DAG workflow execution",
		Long: `goalflow decomposes goals into dependency graphs of sub-tasks
and executes them with tools and LLM providers.

  goalflow plan "refactor the auth module"   Plan a goal into a graph
  goalflow run <graph_id>                    Execute a planned graph
  goalflow serve                             Start the HTTP API`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.store != nil {
				a.store.Close()
			}
		},
	}

	rootCmd.AddGroup(
		&cobra.Group{ID: "plan", Title: "Planning:"},
		&cobra.Group{ID: "run", Title: "Execution:"},
		&cobra.Group{ID: "inspect", Title: "Inspection:"},
	)

	for _, c := range []*cobra.Command{
		planCmd(), runCmd(), stopCmd(), resumeCmd(), retryCmd(), redoCmd(),
		graphsCmd(), executionsCmd(), costsCmd(), toolsCmd(), serveCmd(),
		versionCmd(),
	} {
		rootCmd.AddCommand(c)
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func (a *app) init() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	a.cfg = cfg

	store, err := storage.New(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	a.store = store

	a.providers = provider.NewFactory()
	a.providers.Register("anthropic", func() provider.Provider {
		return provider.NewAnthropic(cfg.AnthropicKey, "")
	})
	a.providers.Register("openai", func() provider.Provider {
		return provider.NewOpenAI(cfg.OpenAIKey, "")
	})

	a.metrics = metrics.New()

	a.tools = tool.DefaultRegistry(cfg.WorkDir)
	stepRunner := runner.New(a.tools, a.providers, cfg.Provider, cfg.Model)
	a.eng = engine.New(store, stepRunner, engine.Config{
		Concurrency: cfg.Concurrency,
		Metrics:     a.metrics,
	})

	p, err := a.providers.Get(cfg.Provider)
	if err != nil {
		return err
	}
	a.planner = plan.NewPlanner(plan.NewLLMDecomposer(p, cfg.Model), store)

	a.out = render.New(render.IsTTY())
	return nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("goalflow " + version)
		},
	}
}
