package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"scribe/internal/config"
	"scribe/internal/jobs"
	"scribe/internal/pipeline"
	"scribe/internal/queue"
)

func newRetryCommand(ctx *commandContext) *cobra.Command {
	var kind string

	cmd := &cobra.Command{
		Use:   "retry [job-id...]",
		Short: "Requeue failed jobs; with no ids, retries every failed job",
		RunE: func(cmd *cobra.Command, args []string) error {
			var action pipeline.Action
			switch kind {
			case "audio":
				action = pipeline.ActionTranscribeAudio
			case "video":
				action = pipeline.ActionProcessVideo
			default:
				return fmt.Errorf("invalid --kind %q (expected audio or video)", kind)
			}

			return ctx.withStoreAndQueue(func(_ *config.Config, store *jobs.Store, q *queue.Queue) error {
				var ids []string
				if len(args) == 0 {
					failed, err := store.List(cmd.Context(), jobs.StatusFailed)
					if err != nil {
						return err
					}
					for _, job := range failed {
						ids = append(ids, job.ID)
					}
				} else {
					for _, id := range args {
						job, err := store.GetJob(cmd.Context(), id)
						if err != nil {
							return err
						}
						if job == nil {
							return fmt.Errorf("job %s not found", id)
						}
						if job.Status != jobs.StatusFailed {
							return fmt.Errorf("job %s is %s, only failed jobs can be retried", id, job.Status)
						}
						ids = append(ids, id)
					}
				}
				if len(ids) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No failed jobs to retry")
					return nil
				}

				count, err := store.RetryFailed(cmd.Context(), ids...)
				if err != nil {
					return err
				}

				dispatcher := queue.NewDispatcher(q)
				for _, id := range ids {
					if _, err := dispatcher.SendJob(cmd.Context(), id, string(action), nil); err != nil {
						return err
					}
				}

				fmt.Fprintf(cmd.OutOrStdout(), "Requeued %d job(s)\n", count)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "audio", "Source kind to retry as: audio or video")
	return cmd
}
