package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmlow/goalflow/internal/domain"
	"github.com/jmlow/goalflow/internal/engine"
)

func graphsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:     "graphs [id]",
		Short:   "List planned graphs, or show one",
		GroupID: "inspect",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				g, err := a.store.GetGraph(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Print(a.out.Graph(g))

				usage, cost, err := a.store.GraphCost(cmd.Context(), g.ID)
				if err != nil {
					return err
				}
				if cost > 0 {
					fmt.Printf("lifetime: %s tokens, %s\n",
						domain.FormatTokens(usage.TotalTokens), domain.FormatCost(cost))
				}
				return nil
			}

			graphs, err := a.store.ListGraphs(cmd.Context(), limit)
			if err != nil {
				return err
			}
			fmt.Print(a.out.Graphs(graphs))
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum graphs to list")
	return cmd
}

func executionsCmd() *cobra.Command {
	var graphID string
	var limit int
	var showSteps bool
	cmd := &cobra.Command{
		Use:     "executions [id]",
		Aliases: []string{"execs"},
		Short:   "List executions, or show one with its steps",
		GroupID: "inspect",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				exec, err := a.eng.GetExecution(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Print(a.out.Execution(exec))

				if showSteps {
					steps, err := a.store.GetSteps(cmd.Context(), exec.ID)
					if err != nil {
						return err
					}
					fmt.Print(a.out.Steps(steps))
				}

				records, err := a.store.ExecutionPhaseCosts(cmd.Context(), exec.ID)
				if err == nil && len(records) > 0 {
					fmt.Print(a.out.PhaseCosts(records))
				}
				return nil
			}

			execs, err := a.store.ListExecutions(cmd.Context(), graphID, limit)
			if err != nil {
				return err
			}
			fmt.Print(a.out.Executions(execs))
			return nil
		},
	}
	cmd.Flags().StringVar(&graphID, "graph", "", "Filter by graph id")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum executions to list")
	cmd.Flags().BoolVar(&showSteps, "steps", true, "Show the execution's steps")
	return cmd
}

func costsCmd() *cobra.Command {
	var by string
	cmd := &cobra.Command{
		Use:     "costs",
		Short:   "Show spend grouped by calendar period",
		GroupID: "inspect",
		RunE: func(cmd *cobra.Command, args []string) error {
			buckets, err := a.eng.CostSummary(cmd.Context(), engine.BucketBy(by))
			if err != nil {
				return err
			}
			fmt.Print(a.out.CostBuckets(buckets))
			return nil
		},
	}
	cmd.Flags().StringVar(&by, "by", "day", "Bucket granularity: day, week, or month")
	return cmd
}

func toolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "tools",
		Short:   "List the available step tools",
		GroupID: "inspect",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, spec := range a.tools.Specs() {
				fmt.Printf("%-12s %s\n", spec.Name, spec.Description)
			}
			return nil
		},
	}
}
