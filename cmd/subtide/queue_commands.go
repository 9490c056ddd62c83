package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"subtide/internal/config"
	"subtide/internal/queue"
	"subtide/internal/translator"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the job queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	queueCmd.AddCommand(newQueueAddCommand(ctx))
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueStatusCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueStopCommand(ctx))
	queueCmd.AddCommand(newQueueRemoveCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))
	return queueCmd
}

func newQueueAddCommand(ctx *commandContext) *cobra.Command {
	var provider string
	var language string
	var model string
	var temperature float64

	cmd := &cobra.Command{
		Use:   "add <video-file>...",
		Short: "Add video files to the queue",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := translator.EncodeSettings(translator.Settings{
				Model:       strings.TrimSpace(model),
				Temperature: temperature,
			})
			if err != nil {
				return err
			}
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				for _, arg := range args {
					source, err := filepath.Abs(arg)
					if err != nil {
						return fmt.Errorf("resolve path %s: %w", arg, err)
					}
					item, created, err := store.NewJob(cmd.Context(), source, provider, language, settings)
					if err != nil {
						return err
					}
					if created {
						fmt.Fprintf(cmd.OutOrStdout(), "Added job %d: %s\n", item.ID, item.Title)
					} else {
						fmt.Fprintf(cmd.OutOrStdout(), "Already queued as job %d (%s): %s\n", item.ID, item.Status, item.Title)
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&provider, "provider", "", "Translation provider for these jobs (defaults to config)")
	cmd.Flags().StringVar(&language, "language", "", "Target language for these jobs (defaults to config)")
	cmd.Flags().StringVar(&model, "model", "", "Model override for these jobs (defaults to the provider's configured model)")
	cmd.Flags().Float64Var(&temperature, "temperature", 0, "Sampling temperature override for these jobs")
	return cmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var statusFilter string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				var statuses []queue.Status
				if trimmed := strings.TrimSpace(statusFilter); trimmed != "" {
					status, ok := queue.ParseStatus(trimmed)
					if !ok {
						return fmt.Errorf("unknown status %q (valid: %s)", trimmed, statusNames())
					}
					statuses = append(statuses, status)
				}

				items, err := store.List(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				if len(items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty.")
					return nil
				}

				rows := make([][]string, 0, len(items))
				for _, item := range items {
					rows = append(rows, []string{
						strconv.FormatInt(item.ID, 10),
						item.Title,
						string(item.Status),
						formatProgress(item),
						item.Provider,
						item.TargetLanguage,
						item.UpdatedAt.Local().Format("2006-01-02 15:04"),
					})
				}
				headers := []string{"ID", "Title", "Status", "Progress", "Provider", "Lang", "Updated"}
				aligns := []columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, rows, aligns))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&statusFilter, "status", "", "Only show jobs with this status")
	return cmd
}

func newQueueStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show queue counts per status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				stats, err := store.Stats(cmd.Context())
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(stats))
				total := 0
				for _, status := range queue.AllStatuses() {
					count := stats[status]
					total += count
					rows = append(rows, []string{string(status), strconv.Itoa(count)})
				}
				rows = append(rows, []string{"total", strconv.Itoa(total)})
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Status", "Jobs"}, rows,
					[]columnAlignment{alignLeft, alignRight},
				))
				return nil
			})
		},
	}
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [job-id]...",
		Short: "Requeue failed jobs (all failed jobs when no IDs are given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseJobIDs(args)
			if err != nil {
				return err
			}
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				updated, err := store.RetryFailed(cmd.Context(), ids...)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Requeued %d job(s).\n", updated)
				return nil
			})
		},
	}
}

func newQueueStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop <job-id>...",
		Short: "Request cancellation of queued or running jobs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseJobIDs(args)
			if err != nil {
				return err
			}
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				for _, id := range ids {
					ok, err := store.RequestStop(cmd.Context(), id)
					if err != nil {
						return err
					}
					if ok {
						fmt.Fprintf(cmd.OutOrStdout(), "Stop requested for job %d.\n", id)
					} else {
						fmt.Fprintf(cmd.OutOrStdout(), "Job %d not found or already finished.\n", id)
					}
				}
				return nil
			})
		},
	}
}

func newQueueRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <job-id>...",
		Short: "Remove jobs from the queue",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseJobIDs(args)
			if err != nil {
				return err
			}
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				for _, id := range ids {
					removed, err := store.Remove(cmd.Context(), id)
					if err != nil {
						return err
					}
					if removed {
						fmt.Fprintf(cmd.OutOrStdout(), "Removed job %d.\n", id)
					} else {
						fmt.Fprintf(cmd.OutOrStdout(), "Job %d not found.\n", id)
					}
				}
				return nil
			})
		},
	}
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var clearCompleted bool
	var clearFailed bool
	var clearAll bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove finished jobs from the queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !clearCompleted && !clearFailed && !clearAll {
				clearCompleted = true
			}
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				clearWith := func(label string, fn func(context.Context) (int64, error)) error {
					removed, err := fn(cmd.Context())
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Removed %d %s job(s).\n", removed, label)
					return nil
				}
				if clearAll {
					return clearWith("queued", store.Clear)
				}
				if clearCompleted {
					if err := clearWith("completed", store.ClearCompleted); err != nil {
						return err
					}
				}
				if clearFailed {
					if err := clearWith("failed", store.ClearFailed); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&clearCompleted, "completed", false, "Remove completed jobs (default)")
	cmd.Flags().BoolVar(&clearFailed, "failed", false, "Remove failed jobs")
	cmd.Flags().BoolVar(&clearAll, "all", false, "Remove every job regardless of status")
	return cmd
}

func parseJobIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid job id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func formatProgress(item *queue.Item) string {
	label := strings.TrimSpace(item.ProgressStage)
	if label == "" {
		return ""
	}
	if queue.IsProcessingStatus(item.Status) {
		return fmt.Sprintf("%s %.0f%%", label, item.ProgressPercent)
	}
	return label
}

func statusNames() string {
	names := make([]string, 0, len(queue.AllStatuses()))
	for _, status := range queue.AllStatuses() {
		names = append(names, string(status))
	}
	return strings.Join(names, ", ")
}
