package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"gradescan/internal/config"
	"gradescan/internal/queue"
	"gradescan/internal/workflow"
)

func newIdentifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "identify",
		Short: "Run the identification pass over pending items",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPass(ctx, cmd, func(runCtx context.Context, manager *workflow.Manager) error {
				report, err := manager.RunIdentification(runCtx)
				printPassReport(cmd, "Identification", report)
				return err
			})
		},
	}
}

func newAnalyzeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze",
		Short: "Run the analysis pass over pending items",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPass(ctx, cmd, func(runCtx context.Context, manager *workflow.Manager) error {
				report, err := manager.RunAnalysis(runCtx)
				printPassReport(cmd, "Analysis", report)
				return err
			})
		},
	}
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run identification to completion, then analysis",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPass(ctx, cmd, func(runCtx context.Context, manager *workflow.Manager) error {
				report, err := manager.Run(runCtx)
				printPassReport(cmd, "Identification", report.Identification)
				printPassReport(cmd, "Analysis", report.Analysis)
				return err
			})
		},
	}
}

func runPass(ctx *commandContext, cmd *cobra.Command, fn func(context.Context, *workflow.Manager) error) error {
	return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
		logger, err := ctx.newLogger(cfg)
		if err != nil {
			return err
		}
		manager := workflow.NewManager(cfg, store, logger)
		for _, health := range manager.HealthCheck(cmd.Context()) {
			if !health.Ready {
				return fmt.Errorf("%s is not ready: %s", health.Name, health.Detail)
			}
		}
		return ctx.withProcessingLock(cfg, func(runCtx context.Context) error {
			return fn(runCtx, manager)
		})
	})
}

func printPassReport(cmd *cobra.Command, name string, report workflow.PassReport) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: %d processed", name, report.Processed)
	if report.Assigned > 0 {
		fmt.Fprintf(out, ", %d assigned", report.Assigned)
	}
	if report.Completed > 0 {
		fmt.Fprintf(out, ", %d completed", report.Completed)
	}
	fmt.Fprintf(out, ", %d failed", report.Failed)
	if len(report.FailedIDs) > 0 {
		fmt.Fprintf(out, " (items %v)", report.FailedIDs)
	}
	fmt.Fprintln(out)
}
