package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"scribe/internal/config"
	"scribe/internal/jobs"
	"scribe/internal/pipeline"
	"scribe/internal/queue"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var (
		kind           string
		languageCode   string
		format         string
		timestamps     bool
		wordTimestamps bool
	)

	cmd := &cobra.Command{
		Use:   "submit <url>",
		Short: "Create a transcription job and enqueue it for processing",
		Args:  cobra.ExactArgs(1),
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
				job, err := store.CreateJob(cmd.Context(), jobs.NewJob{
					SourceURL: args[0],
					Language:  languageCode,
					Options: jobs.Options{
						Format:         format,
						Timestamps:     timestamps,
						WordTimestamps: wordTimestamps,
					},
				})
				if err != nil {
					return fmt.Errorf("create job: %w", err)
				}

				dispatcher := queue.NewDispatcher(q)
				if _, err := dispatcher.SendJob(cmd.Context(), job.ID, string(action), nil); err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "Submitted job %s (%s)\n", job.ID, action)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "audio", "Source kind: audio or video")
	cmd.Flags().StringVarP(&languageCode, "language", "l", "", "Source language (e.g. en-US, auto)")
	cmd.Flags().StringVarP(&format, "format", "f", "", "Output format: text, srt, or vtt")
	cmd.Flags().BoolVar(&timestamps, "timestamps", false, "Request segment timestamps")
	cmd.Flags().BoolVar(&wordTimestamps, "word-timestamps", false, "Request word-level timestamps")
	return cmd
}
