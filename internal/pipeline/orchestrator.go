package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"scribe/internal/jobs"
	"scribe/internal/language"
	"scribe/internal/logging"
	"scribe/internal/queue"
	"scribe/internal/services"
	"scribe/internal/services/staging"
	"scribe/internal/services/transcriber"
)

// Action identifies what a queued message asks the pipeline to do. Dispatch
// is closed: anything outside the known set is an unknown action, which the
// consumer acknowledges because retrying can never help.
type Action string

const (
	ActionProcessVideo    Action = "process_video"
	ActionTranscribeAudio Action = "transcribe_audio"
)

// Message extra fields recognized by the pipeline.
const (
	fieldAudioURL  = "audioUrl"
	fieldStagingID = "stagingId"
)

// JobStore is the slice of job persistence the orchestrator needs.
type JobStore interface {
	GetJob(ctx context.Context, id string) (*jobs.Job, error)
	UpdateJobStatus(ctx context.Context, id string, to jobs.Status) error
	UpdateJobProgress(ctx context.Context, id, progress string) error
	SetJobResult(ctx context.Context, id string, output jobs.Output, meta jobs.ResultMetadata) error
	SetJobError(ctx context.Context, id, message string) error
}

// Transcriber converts a remote audio file into normalized transcript output.
type Transcriber interface {
	TranscribeFromURL(ctx context.Context, audioURL string, req transcriber.Request) (*transcriber.Result, error)
}

// Stager is the video staging service surface used while deriving audio from
// a source video.
type Stager interface {
	UploadVideoFromURL(ctx context.Context, videoURL string, meta staging.UploadMeta) (*staging.Video, error)
	WaitForProcessing(ctx context.Context, uid string) (*staging.Video, error)
	AudioDownloadURL(ctx context.Context, uid string) (string, error)
	DeleteVideo(ctx context.Context, uid string) error
}

// Notifier publishes job lifecycle events. Implementations must never block
// the pipeline on delivery problems.
type Notifier interface {
	JobCompleted(ctx context.Context, job *jobs.Job)
	JobFailed(ctx context.Context, jobID, message string)
}

// Orchestrator drives one queued message through the transcription pipeline,
// updating persisted job state as stages complete or fail.
type Orchestrator struct {
	store       JobStore
	transcriber Transcriber
	stager      Stager
	notifier    Notifier
	logger      *slog.Logger
}

// New assembles an orchestrator. Notifier and logger may be nil.
func New(store JobStore, t Transcriber, s Stager, notifier Notifier, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Orchestrator{
		store:       store,
		transcriber: t,
		stager:      s,
		notifier:    notifier,
		logger:      logger.With(logging.String(logging.FieldComponent, "pipeline")),
	}
}

// Handle processes one queued message to completion. A nil return means the
// message is settled and should be acknowledged; a non-nil return reports why
// processing failed so the consumer can decide between acknowledgment and
// redelivery. Job state is updated before returning: any failure is recorded
// on the job when the job exists.
func (o *Orchestrator) Handle(ctx context.Context, msg queue.Message) error {
	ctx = services.WithJobID(ctx, msg.JobID)
	ctx = services.WithAction(ctx, msg.Action)

	var err error
	switch Action(msg.Action) {
	case ActionProcessVideo:
		err = o.processVideo(ctx, msg.JobID)
	case ActionTranscribeAudio:
		err = o.transcribeAudioMessage(ctx, msg)
	default:
		err = services.Wrap(services.ErrUnknownAction, "pipeline", "dispatch",
			fmt.Sprintf("action %q", msg.Action), nil)
	}
	if err == nil {
		return nil
	}

	o.recordFailure(ctx, msg.JobID, err)
	return err
}

// recordFailure persists the failure on the job and notifies. A job that no
// longer exists is left alone; the store treats that write as a no-op.
func (o *Orchestrator) recordFailure(ctx context.Context, jobID string, cause error) {
	logger := logging.WithContext(ctx, o.logger)
	logger.Error("job processing failed", logging.Error(cause))
	if err := o.store.SetJobError(ctx, jobID, cause.Error()); err != nil {
		logger.Error("failed to record job error", logging.Error(err))
	}
	if o.notifier != nil {
		o.notifier.JobFailed(ctx, jobID, cause.Error())
	}
}

// processVideo stages a source video for audio extraction, then hands the
// extracted audio to the transcription sub-pipeline.
func (o *Orchestrator) processVideo(ctx context.Context, jobID string) error {
	ctx = services.WithStage(ctx, "staging")
	logger := logging.WithContext(ctx, o.logger)

	job, err := o.loadJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job == nil {
		// Completed job redelivered; nothing left to do.
		return nil
	}
	if job.SourceURL == "" {
		return services.Wrap(services.ErrValidation, "pipeline", "process video", "job has no source url", nil)
	}

	if err := o.markProcessing(ctx, jobID, "uploading to staging"); err != nil {
		return err
	}

	logger.Info("uploading source video to staging", logging.String("source_url", job.SourceURL))
	video, err := o.stager.UploadVideoFromURL(ctx, job.SourceURL, staging.UploadMeta{
		Name:  jobLabel(job),
		JobID: job.ID,
	})
	if err != nil {
		return err
	}

	logger.Info("waiting for audio extraction", logging.String("staging_id", video.UID))
	if _, err := o.stager.WaitForProcessing(ctx, video.UID); err != nil {
		return err
	}

	audioURL, err := o.stager.AudioDownloadURL(ctx, video.UID)
	if err != nil {
		return err
	}

	return o.transcribeAudio(ctx, job, audioURL, video.UID)
}

// transcribeAudioMessage resolves message fields before entering the
// transcription sub-pipeline directly.
func (o *Orchestrator) transcribeAudioMessage(ctx context.Context, msg queue.Message) error {
	job, err := o.loadJob(ctx, msg.JobID)
	if err != nil {
		return err
	}
	if job == nil {
		return nil
	}

	audioURL := msg.StringField(fieldAudioURL)
	if audioURL == "" {
		audioURL = job.SourceURL
	}
	if audioURL == "" {
		return services.Wrap(services.ErrValidation, "pipeline", "transcribe audio", "no audio url available", nil)
	}
	return o.transcribeAudio(ctx, job, audioURL, msg.StringField(fieldStagingID))
}

// transcribeAudio runs the transcription stage and persists the completed
// result. When stagingID is set the staged video is deleted afterwards;
// cleanup failures are logged and never fail the job.
func (o *Orchestrator) transcribeAudio(ctx context.Context, job *jobs.Job, audioURL, stagingID string) error {
	ctx = services.WithStage(ctx, "transcribe")
	logger := logging.WithContext(ctx, o.logger)

	if err := o.markProcessing(ctx, job.ID, "transcribing"); err != nil {
		return err
	}

	logger.Info("transcribing audio",
		logging.String("audio_url", audioURL),
		logging.String("language", job.Language),
	)
	result, err := o.transcriber.TranscribeFromURL(ctx, audioURL, transcriber.Request{
		Language:       language.Normalize(job.Language),
		Format:         job.Options.Format,
		Timestamps:     job.Options.Timestamps,
		WordTimestamps: job.Options.WordTimestamps,
	})
	if err != nil {
		return err
	}

	output := jobs.Output{
		Text:     result.Text,
		Language: result.Language,
		SRT:      result.SRT,
		VTT:      result.VTT,
	}
	meta := jobs.ResultMetadata{
		Duration:     result.Duration,
		WordCount:    len(strings.Fields(result.Text)),
		SegmentCount: len(result.Segments),
		AudioURL:     audioURL,
		StagingID:    stagingID,
	}
	if err := o.store.SetJobResult(ctx, job.ID, output, meta); err != nil {
		return err
	}
	logger.Info("job completed",
		logging.Int("word_count", meta.WordCount),
		logging.Int("segment_count", meta.SegmentCount),
	)

	if stagingID != "" {
		if err := o.stager.DeleteVideo(ctx, stagingID); err != nil {
			logger.Warn("staging cleanup failed", logging.String("staging_id", stagingID), logging.Error(err))
		}
	}

	if o.notifier != nil {
		if completed, err := o.store.GetJob(ctx, job.ID); err == nil && completed != nil {
			o.notifier.JobCompleted(ctx, completed)
		}
	}
	return nil
}

// loadJob fetches a job for processing. Missing jobs are an error; jobs that
// already completed return (nil, nil) so redelivered messages settle as
// no-ops instead of redoing finished work.
func (o *Orchestrator) loadJob(ctx context.Context, jobID string) (*jobs.Job, error) {
	job, err := o.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, services.Wrap(services.ErrNotFound, "pipeline", "load job",
			fmt.Sprintf("job %s not in store", jobID), nil)
	}
	if job.Status == jobs.StatusCompleted {
		logging.WithContext(ctx, o.logger).Info("skipping already completed job")
		return nil, nil
	}
	return job, nil
}

func (o *Orchestrator) markProcessing(ctx context.Context, jobID, progress string) error {
	if err := o.store.UpdateJobStatus(ctx, jobID, jobs.StatusProcessing); err != nil {
		return err
	}
	if err := o.store.UpdateJobProgress(ctx, jobID, progress); err != nil {
		return err
	}
	return nil
}

func jobLabel(job *jobs.Job) string {
	return "Transcription job " + job.ID
}
