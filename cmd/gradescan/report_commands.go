package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"gradescan/internal/config"
	"gradescan/internal/gradebook"
	"gradescan/internal/queue"
	"gradescan/internal/report"
)

func newReportCommand(ctx *commandContext) *cobra.Command {
	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Class-level summaries derived from completed submissions",
	}

	reportCmd.AddCommand(newReportSummaryCommand(ctx))
	reportCmd.AddCommand(newReportGroupsCommand(ctx))
	reportCmd.AddCommand(newReportSaveCommand(ctx))
	reportCmd.AddCommand(newReportPushCommand(ctx))

	return reportCmd
}

func newReportSaveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "save",
		Short: "Save every resolved grade to the gradebook",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				builder := report.NewBuilder(store, ctx.floors(cfg))
				results, err := builder.Results(cmd.Context())
				if err != nil {
					return err
				}

				svc := gradebook.NewService(cfg)
				var saved, skipped, failed int
				for _, student := range results {
					if student.StudentID == "" {
						skipped++
						continue
					}
					req := gradebook.SaveRequest{
						StudentID: student.StudentID,
						Grade:     student.EffectiveGrade,
					}
					if res := student.Result(); res != nil {
						req.Justification = res.GradeJustification
						req.RawScores = res.RubricScores
						req.StandardCode = res.NYSStandard
					}
					if err := svc.SaveGrade(cmd.Context(), req); err != nil {
						failed++
						fmt.Fprintf(cmd.ErrOrStderr(), "save failed for %s: %v\n", student.StudentID, err)
						continue
					}
					saved++
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved %d grade(s), %d failed, %d skipped (no student)\n",
					saved, failed, skipped)
				if failed > 0 {
					return fmt.Errorf("%d save(s) failed", failed)
				}
				return nil
			})
		},
	}
}

func newReportSummaryCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show the batch summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				builder := report.NewBuilder(store, ctx.floors(cfg))
				summary, err := builder.Summary(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return printJSON(cmd, summary)
				}
				printSummary(cmd, summary)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	return cmd
}

func printSummary(cmd *cobra.Command, summary *report.BatchSummary) {
	out := cmd.OutOrStdout()
	if summary.TotalStudents == 0 {
		fmt.Fprintln(out, "No completed submissions yet")
		return
	}
	fmt.Fprintf(out, "Students:  %d\n", summary.TotalStudents)
	fmt.Fprintf(out, "Average:   %.1f\n", summary.AverageScore)
	fmt.Fprintf(out, "Pass rate: %.0f%%\n", summary.PassRate*100)
	fmt.Fprintf(out, "Range:     %.1f - %.1f\n", summary.LowestScore, summary.HighestScore)

	rows := make([][]string, 0, len(summary.ScoreDistribution))
	for _, bucket := range summary.ScoreDistribution {
		rows = append(rows, []string{bucket.Label, strconv.Itoa(bucket.Count)})
	}
	table := renderTable([]string{"Band", "Count"}, rows, []columnAlignment{alignLeft, alignRight})
	fmt.Fprintln(out, table)

	if len(summary.CommonMisconceptions) > 0 {
		fmt.Fprintln(out, "Common misconceptions:")
		for _, m := range summary.CommonMisconceptions {
			fmt.Fprintf(out, "  - %s\n", m)
		}
	}
}

func newReportGroupsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "groups",
		Short: "Show the differentiation groups",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				builder := report.NewBuilder(store, ctx.floors(cfg))
				groups, err := builder.Groups(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return printJSON(cmd, groups)
				}
				printGroups(cmd, groups)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	return cmd
}

func printGroups(cmd *cobra.Command, groups []report.DifferentiationGroup) {
	out := cmd.OutOrStdout()
	for _, group := range groups {
		fmt.Fprintf(out, "%s (%d)\n", strings.ToUpper(string(group.Level)), len(group.Students))
		for _, student := range group.Students {
			name := student.StudentName
			if name == "" {
				name = fmt.Sprintf("item %d", student.ItemID)
			}
			fmt.Fprintf(out, "  %-28s %.1f\n", name, student.EffectiveGrade)
		}
		for _, m := range group.Misconceptions {
			fmt.Fprintf(out, "  misconception: %s\n", m)
		}
	}
}

func newReportPushCommand(ctx *commandContext) *cobra.Command {
	var level string
	var title string
	var description string
	var rewardTier string

	cmd := &cobra.Command{
		Use:   "push",
		Short: "Push remediation work to every student in one band",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(title) == "" {
				return fmt.Errorf("--title is required")
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

				svc := gradebook.NewPushService(cfg)
				var pushed, failed int
				for _, student := range group.Students {
					if student.StudentID == "" {
						continue
					}
					err := svc.Push(cmd.Context(), student.StudentID, title, description, rewardTier)
					if err != nil {
						failed++
						fmt.Fprintf(cmd.ErrOrStderr(), "push failed for %s: %v\n", student.StudentID, err)
						continue
					}
					pushed++
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Pushed to %d student(s), %d failed\n", pushed, failed)
				if failed > 0 {
					return fmt.Errorf("%d push(es) failed", failed)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&level, "level", string(report.LevelStruggling), "Band to push to (struggling, developing, proficient)")
	cmd.Flags().StringVar(&title, "title", "", "Assignment title")
	cmd.Flags().StringVar(&description, "description", "", "Assignment description")
	cmd.Flags().StringVar(&rewardTier, "reward", "", "Reward tier")
	return cmd
}

func findGroup(groups []report.DifferentiationGroup, level string) (report.DifferentiationGroup, error) {
	want := report.Level(strings.ToLower(strings.TrimSpace(level)))
	for _, group := range groups {
		if group.Level == want {
			return group, nil
		}
	}
	return report.DifferentiationGroup{}, fmt.Errorf("unknown level %q", level)
}

func printJSON(cmd *cobra.Command, value any) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}
