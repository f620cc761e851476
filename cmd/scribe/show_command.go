package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"scribe/internal/config"
	"scribe/internal/jobs"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	var showText bool

	cmd := &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show one job in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *jobs.Store) error {
				job, err := store.GetJob(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if job == nil {
					return fmt.Errorf("job %s not found", args[0])
				}

				out := cmd.OutOrStdout()
				rows := [][]string{
					{"ID", job.ID},
					{"Status", string(job.Status)},
					{"Source URL", job.SourceURL},
					{"Language", job.Language},
					{"Progress", job.Progress},
					{"Created", job.CreatedAt.Local().Format(time.DateTime)},
					{"Updated", job.UpdatedAt.Local().Format(time.DateTime)},
				}
				if job.ErrorMessage != "" {
					rows = append(rows, []string{"Error", job.ErrorMessage})
				}
				if job.Result != nil {
					rows = append(rows,
						[]string{"Duration", fmt.Sprintf("%.1fs", job.Result.Duration)},
						[]string{"Words", fmt.Sprintf("%d", job.Result.WordCount)},
						[]string{"Segments", fmt.Sprintf("%d", job.Result.SegmentCount)},
						[]string{"Audio URL", job.Result.AudioURL},
					)
					if job.Result.StagingID != "" {
						rows = append(rows, []string{"Staging ID", job.Result.StagingID})
					}
				}
				fmt.Fprintln(out, renderTable([]string{"Field", "Value"}, rows))

				if showText && job.Result != nil {
					fmt.Fprintln(out)
					fmt.Fprintln(out, job.Result.Text)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&showText, "text", false, "Print the transcript text after the summary")
	return cmd
}
