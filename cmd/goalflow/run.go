package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmlow/goalflow/internal/domain"
	"github.com/jmlow/goalflow/internal/engine"
	"github.com/jmlow/goalflow/internal/render"
)

func planCmd() *cobra.Command {
	var answer string
	cmd := &cobra.Command{
		Use:     "plan <goal>",
		Short:   "Decompose a goal into a task graph",
		GroupID: "plan",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			goal := args[0]
			if answer != "" {
				goal = fmt.Sprintf("%s\n\nAdditional context: %s", goal, answer)
			}
			res, err := a.planner.Plan(cmd.Context(), goal)
			if err != nil {
				return err
			}
			if res.Clarification != "" {
				fmt.Println("Clarification needed:")
				fmt.Println("  " + res.Clarification)
				fmt.Println("Re-run with --answer to provide it.")
				return nil
			}
			fmt.Print(a.out.Graph(res.Graph))
			return nil
		},
	}
	cmd.Flags().StringVar(&answer, "answer", "", "Answer to a previous clarification request")
	return cmd
}

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "run <graph_id | goal>",
		Short:   "Execute a planned graph, or plan and execute a goal in one shot",
		GroupID: "run",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			graphID := args[0]
			if !domain.HasPrefix(graphID, domain.PrefixGraph) {
				res, err := a.planner.Plan(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if res.Clarification != "" {
					fmt.Println("Clarification needed:")
					fmt.Println("  " + res.Clarification)
					return nil
				}
				fmt.Print(a.out.Graph(res.Graph))
				graphID = res.Graph.ID
			}

			exec, err := a.eng.ExecuteGraph(cmd.Context(), graphID)
			if err != nil {
				if exec != nil {
					fmt.Print(a.out.Execution(exec))
				}
				return err
			}
			fmt.Print(a.out.Execution(exec))

			steps, err := a.store.GetSteps(cmd.Context(), exec.ID)
			if err != nil {
				return err
			}
			fmt.Print(a.out.Steps(steps))
			return nil
		},
	}
	return cmd
}

func stopCmd() *cobra.Command {
	var graphScope bool
	cmd := &cobra.Command{
		Use:     "stop <id>",
		Short:   "Request a cooperative stop for an execution or graph",
		GroupID: "run",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if graphScope {
				r, err := a.eng.Stops().RequestGraphStop(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Printf("stop requested: %s (graph %s)\n", r.ID, args[0])
				return nil
			}
			r, err := a.eng.Stops().RequestExecutionStop(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("stop requested: %s (execution %s)\n", r.ID, args[0])
			return nil
		},
	}
	cmd.Flags().BoolVar(&graphScope, "graph", false, "Stop every execution of the graph")
	return cmd
}

func resumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "resume <execution_id>",
		Short:   "Resume a suspended execution",
		GroupID: "run",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			exec, err := a.eng.Resume(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Print(a.out.Execution(exec))
			return nil
		},
	}
}

func retryCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "retry <execution_id>",
		Short:   "Re-run the failed steps of a finished execution",
		GroupID: "run",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			exec, err := a.eng.RetryFailed(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Print(a.out.Execution(exec))
			return nil
		},
	}
}

func redoCmd() *cobra.Command {
	var providerID, modelID string
	cmd := &cobra.Command{
		Use:     "redo <execution_id> <task_id>",
		Short:   "Re-run one step in place, optionally with another model",
		GroupID: "run",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			step, err := a.eng.RedoStep(cmd.Context(), args[0], args[1], engine.RunOptions{
				ProviderID: providerID,
				ModelID:    modelID,
			})
			if err != nil {
				return err
			}
			fmt.Printf("%s %s: %s\n", step.TaskID, step.Status, render.Truncate(step.Result, 200))
			if step.Error != "" {
				fmt.Println("  error: " + step.Error)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&providerID, "provider", "", "Provider override")
	cmd.Flags().StringVar(&modelID, "model", "", "Model override")
	return cmd
}
