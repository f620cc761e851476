package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"scribe/internal/config"
	"scribe/internal/jobs"
	"scribe/internal/queue"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var statusFilter string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "List jobs and queue depth",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var filter []jobs.Status
			if statusFilter != "" {
				status, ok := jobs.ParseStatus(statusFilter)
				if !ok {
					return fmt.Errorf("invalid --status %q", statusFilter)
				}
				filter = append(filter, status)
			}

			return ctx.withStoreAndQueue(func(_ *config.Config, store *jobs.Store, q *queue.Queue) error {
				list, err := store.List(cmd.Context(), filter...)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if len(list) == 0 {
					fmt.Fprintln(out, "No jobs found")
				} else {
					rows := make([][]string, 0, len(list))
					for _, job := range list {
						detail := job.Progress
						if job.Status == jobs.StatusFailed {
							detail = job.ErrorMessage
						}
						rows = append(rows, []string{
							job.ID,
							string(job.Status),
							truncate(detail, 48),
							job.UpdatedAt.Local().Format(time.DateTime),
						})
					}
					fmt.Fprintln(out, renderTable(
						[]string{"ID", "Status", "Detail", "Updated"},
						rows,
					))
				}

				stats, err := q.QueueStats(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Queue", "Count"},
					[][]string{
						{"ready", strconv.Itoa(stats.Ready)},
						{"in flight", strconv.Itoa(stats.InFlight)},
						{"dead", strconv.Itoa(stats.Dead)},
					},
					2,
				))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&statusFilter, "status", "s", "", "Only show jobs with this status")
	return cmd
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
