package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"gradescan/internal/adjust"
	"gradescan/internal/config"
	"gradescan/internal/gradebook"
	"gradescan/internal/queue"
	"gradescan/internal/report"
)

func newAdjustCommand(ctx *commandContext) *cobra.Command {
	var level string
	var criteriaIDs []string
	var manualDelta float64
	var justification string
	var students []string
	var commit bool

	cmd := &cobra.Command{
		Use:   "adjust",
		Short: "Bulk-adjust finalized grades within one differentiation band",
		Long: "Compose a grade adjustment from fixed criteria plus a bounded " +
			"manual delta, preview the result for every selected student, and " +
			"commit it with --commit. Without --commit nothing is mutated.",
		RunE: func(cmd *cobra.Command, args []string) error {
			plan := adjust.Plan{
				CriterionIDs:  criteriaIDs,
				ManualDelta:   manualDelta,
				Justification: justification,
			}
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				builder := report.NewBuilder(store, ctx.floors(cfg))
				groups, err := builder.Groups(cmd.Context())
				if err != nil {
					return err
				}
				group, err := findGroup(groups, level)
				if err != nil {
					return err
				}
				selected := selectStudents(group.Students, students)
				if len(selected) == 0 {
					return fmt.Errorf("no matching students in the %s band", group.Level)
				}

				entries, err := adjust.Preview(plan, selected)
				if err != nil {
					return err
				}
				printPreview(cmd, plan, entries)

				if !commit {
					fmt.Fprintln(cmd.OutOrStdout(), "Preview only; re-run with --commit to apply")
					return nil
				}

				logger, err := ctx.newLogger(cfg)
				if err != nil {
					return err
				}
				svc := gradebook.NewService(cfg)
				result := adjust.Commit(cmd.Context(), svc, entries, plan.Justification, logger)
				fmt.Fprintf(cmd.OutOrStdout(), "Saved %d override(s), %d failed\n",
					result.Saved, len(result.Failures))
				for _, failure := range result.Failures {
					fmt.Fprintf(cmd.ErrOrStderr(), "  %s: %v\n", failure.StudentID, failure.Err)
				}
				if result.Failed() {
					return fmt.Errorf("%d override(s) failed", len(result.Failures))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&level, "level", string(report.LevelStruggling), "Band to adjust (struggling, developing, proficient)")
	cmd.Flags().StringSliceVar(&criteriaIDs, "criteria", nil, "Fixed criteria ids (see `gradescan adjust criteria`)")
	cmd.Flags().Float64Var(&manualDelta, "delta", 0, "Manual delta in percentage points (-20..20)")
	cmd.Flags().StringVar(&justification, "justification", "", "Required justification for the adjustment")
	cmd.Flags().StringSliceVar(&students, "student", nil, "Limit to specific student ids (repeatable; default whole band)")
	cmd.Flags().BoolVar(&commit, "commit", false, "Apply the adjustment after previewing")

	cmd.AddCommand(newAdjustCriteriaCommand())
	return cmd
}

func newAdjustCriteriaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "criteria",
		Short: "List the fixed adjustment criteria",
		RunE: func(cmd *cobra.Command, args []string) error {
			rows := make([][]string, 0)
			for _, c := range adjust.Criteria() {
				rows = append(rows, []string{c.ID, c.Label, formatDelta(c.Delta)})
			}
			out := renderTable([]string{"ID", "Label", "Delta"}, rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight})
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
}

func selectStudents(all []report.StudentResult, ids []string) []report.StudentResult {
	if len(ids) == 0 {
		return all
	}
	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[strings.TrimSpace(id)] = struct{}{}
	}
	selected := make([]report.StudentResult, 0, len(ids))
	for _, student := range all {
		if _, ok := wanted[student.StudentID]; ok {
			selected = append(selected, student)
		}
	}
	return selected
}

func printPreview(cmd *cobra.Command, plan adjust.Plan, entries []adjust.Entry) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Total delta: %s\n", formatDelta(plan.TotalDelta()))
	rows := make([][]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.StudentName
		if name == "" {
			name = entry.StudentID
		}
		rows = append(rows, []string{
			name,
			strconv.FormatFloat(entry.CurrentGrade, 'f', 1, 64),
			strconv.FormatFloat(entry.NewGrade, 'f', 1, 64),
		})
	}
	table := renderTable([]string{"Student", "Current", "New"}, rows,
		[]columnAlignment{alignLeft, alignRight, alignRight})
	fmt.Fprintln(out, table)
}

func formatDelta(delta float64) string {
	if delta >= 0 {
		return fmt.Sprintf("+%g", delta)
	}
	return fmt.Sprintf("%g", delta)
}
