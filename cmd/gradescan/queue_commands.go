package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"gradescan/internal/config"
	"gradescan/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the scan queue",
	}

	queueCmd.AddCommand(newAddCommand(ctx))
	queueCmd.AddCommand(newQueueStatusCommand(ctx))
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueShowCommand(ctx))
	queueCmd.AddCommand(newQueueRemoveCommand(ctx))
	queueCmd.AddCommand(newQueueNotesCommand(ctx))
	queueCmd.AddCommand(newQueueAssignCommand(ctx))
	queueCmd.AddCommand(newQueueLinkCommand(ctx))
	queueCmd.AddCommand(newQueueUnlinkCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueReanalyzeCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))
	queueCmd.AddCommand(newQueueResetCommand(ctx))
	queueCmd.AddCommand(newQueueHealthCommand(ctx))

	return queueCmd
}

func newQueueResetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Return items orphaned mid-stage to pending",
		Long: "Return items stuck in identifying or analyzing back to pending. " +
			"Use after a crash; a running pass reclaims its own items via heartbeats.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				count, err := store.ResetStuckProcessing(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reset %d stuck item(s)\n", count)
				return nil
			})
		},
	}
}

func newQueueHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show aggregated queue health counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				health, err := store.Health(cmd.Context())
				if err != nil {
					return err
				}
				rows := [][]string{
					{"Total", strconv.Itoa(health.Total)},
					{"Pending", strconv.Itoa(health.Pending)},
					{"Processing", strconv.Itoa(health.Processing)},
					{"Completed", strconv.Itoa(health.Completed)},
					{"Failed", strconv.Itoa(health.Failed)},
				}
				out := renderTable([]string{"State", "Count"}, rows, []columnAlignment{alignLeft, alignRight})
				fmt.Fprintln(cmd.OutOrStdout(), out)
				return nil
			})
		},
	}
}

func newAddCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "add <image-ref>...",
		Short: "Enqueue scanned pages",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				for _, ref := range args {
					item, err := store.NewScan(cmd.Context(), ref)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Added item %d (%s)\n", item.ID, item.ImageRef)
				}
				return nil
			})
		},
	}
}

func newQueueStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show queue status summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				stats, err := store.Stats(cmd.Context())
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(stats))
				for _, status := range queue.AllStatuses() {
					if count := stats[status]; count > 0 {
						rows = append(rows, []string{string(status), strconv.Itoa(count)})
					}
				}
				if len(rows) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				out := renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight})
				fmt.Fprintln(cmd.OutOrStdout(), out)
				return nil
			})
		},
	}
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var listStatuses []string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queue items",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses := make([]queue.Status, 0, len(listStatuses))
			for _, raw := range listStatuses {
				status, ok := queue.ParseStatus(raw)
				if !ok {
					return fmt.Errorf("unknown status %q", raw)
				}
				statuses = append(statuses, status)
			}
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				items, err := store.List(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				if asJSON {
					return printJSON(cmd, items)
				}
				if len(items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No matching items")
					return nil
				}
				rows := make([][]string, 0, len(items))
				for _, item := range items {
					rows = append(rows, []string{
						strconv.FormatInt(item.ID, 10),
						string(item.Status),
						string(item.PageType),
						studentCell(item),
						item.ImageRef,
					})
				}
				out := renderTable(
					[]string{"ID", "Status", "Page", "Student", "Image"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), out)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVar(&listStatuses, "status", nil, "Filter by status (repeatable)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	return cmd
}

func studentCell(item *queue.Item) string {
	if item.StudentID == "" {
		return "-"
	}
	name := item.StudentName
	if name == "" {
		name = item.StudentID
	}
	if item.AutoAssigned {
		return name + " (auto)"
	}
	return name
}

func newQueueShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one queue item in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseItemID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				item, err := store.GetByID(cmd.Context(), id)
				if err != nil {
					return err
				}
				if item == nil {
					return fmt.Errorf("item %d not found", id)
				}
				printItem(cmd, item)
				if item.IsPrimary() {
					pages, err := store.ContinuationPages(cmd.Context(), item.ID)
					if err != nil {
						return err
					}
					for _, page := range pages {
						fmt.Fprintf(cmd.OutOrStdout(), "Continuation: %d (%s)\n", page.ID, page.ImageRef)
					}
				}
				return nil
			})
		},
	}
}

func printItem(cmd *cobra.Command, item *queue.Item) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Item %d\n", item.ID)
	fmt.Fprintf(out, "  Image:   %s\n", item.ImageRef)
	fmt.Fprintf(out, "  Status:  %s\n", item.Status)
	fmt.Fprintf(out, "  Page:    %s\n", item.PageType)
	if item.ContinuationOf != 0 {
		fmt.Fprintf(out, "  Primary: %d\n", item.ContinuationOf)
	}
	if item.StudentID != "" {
		fmt.Fprintf(out, "  Student: %s (%s)\n", item.StudentName, item.StudentID)
	}
	if ident := item.Identification(); ident != nil {
		fmt.Fprintf(out, "  Identified: code=%q name=%q confidence=%s via_code=%t\n",
			ident.ParsedCode, ident.RawHandwrittenName, ident.Confidence, ident.MatchedViaCode)
	}
	if item.ErrorMessage != "" {
		fmt.Fprintf(out, "  Error:   %s\n", item.ErrorMessage)
	}
	if item.Notes != "" {
		fmt.Fprintf(out, "  Notes:   %s\n", item.Notes)
	}
}

func newQueueRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a pending item from the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseItemID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				if err := store.Remove(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed item %d\n", id)
				return nil
			})
		},
	}
}

func newQueueNotesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "notes <id> <text>",
		Short: "Attach operator notes to an item",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseItemID(args[0])
			if err != nil {
				return err
			}
			notes := strings.Join(args[1:], " ")
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				return store.SetNotes(cmd.Context(), id, notes)
			})
		},
	}
}

func newQueueAssignCommand(ctx *commandContext) *cobra.Command {
	var studentName string

	cmd := &cobra.Command{
		Use:   "assign <id> <student-id>",
		Short: "Manually assign a student to an item",
		Long: "Manually assign a student to an item. Pass an empty student id " +
			"(\"\") to clear the current assignment. Assignment fails if another " +
			"primary item already holds the student.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseItemID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				err := store.AssignStudent(cmd.Context(), id, queue.Assignment{
					StudentID:   args[1],
					StudentName: studentName,
				})
				if err != nil {
					return err
				}
				if strings.TrimSpace(args[1]) == "" {
					fmt.Fprintf(cmd.OutOrStdout(), "Cleared assignment on item %d\n", id)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "Assigned %s to item %d\n", args[1], id)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&studentName, "name", "", "Display name for the student")
	return cmd
}

func newQueueLinkCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "link <continuation-id> <primary-id>",
		Short: "Mark a page as a continuation of a primary submission",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			continuationID, err := parseItemID(args[0])
			if err != nil {
				return err
			}
			primaryID, err := parseItemID(args[1])
			if err != nil {
				return err
			}
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				if err := store.Link(cmd.Context(), continuationID, primaryID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Linked %d as continuation of %d\n", continuationID, primaryID)
				return nil
			})
		},
	}
}

func newQueueUnlinkCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "unlink <continuation-id>",
		Short: "Detach a continuation page and make it independently processable",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseItemID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				if err := store.Unlink(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Unlinked item %d\n", id)
				return nil
			})
		},
	}
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [id...]",
		Short: "Reset failed items to pending",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := parseItemID(arg)
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				count, err := store.RetryFailed(cmd.Context(), ids...)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reset %d item(s) to pending\n", count)
				return nil
			})
		},
	}
}

func newQueueReanalyzeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reanalyze [id...]",
		Short: "Return completed items to pending for a fresh analysis pass",
		Long: "Return completed items to pending so the next analysis pass grades " +
			"them again. The stored result stays in place until the re-run " +
			"overwrites it. With no ids, every completed item is requeued.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := parseItemID(arg)
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				count, err := store.RequeueCompleted(cmd.Context(), ids...)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Requeued %d item(s) for analysis\n", count)
				return nil
			})
		},
	}
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var clearCompleted bool
	var clearFailed bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear queue items",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				var count int64
				var err error
				switch {
				case clearCompleted:
					count, err = store.ClearCompleted(cmd.Context())
				case clearFailed:
					count, err = store.ClearFailed(cmd.Context())
				default:
					count, err = store.Clear(cmd.Context())
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d item(s)\n", count)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&clearCompleted, "completed", false, "Clear only completed items")
	cmd.Flags().BoolVar(&clearFailed, "failed", false, "Clear only failed items")
	return cmd
}

func parseItemID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid item id %q", raw)
	}
	return id, nil
}
