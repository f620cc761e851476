package pipeline

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"scribe/internal/jobs"
	"scribe/internal/queue"
	"scribe/internal/services"
	"scribe/internal/services/staging"
	"scribe/internal/services/transcriber"
	"scribe/internal/testsupport"
)

type stubTranscriber struct {
	result   *transcriber.Result
	err      error
	gotURL   string
	gotReq   transcriber.Request
	requests int
}

func (s *stubTranscriber) TranscribeFromURL(_ context.Context, audioURL string, req transcriber.Request) (*transcriber.Result, error) {
	s.requests++
	s.gotURL = audioURL
	s.gotReq = req
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

type stubStager struct {
	uploadUID   string
	uploadErr   error
	waitErr     error
	audioURL    string
	audioErr    error
	deleteErr   error
	uploadedURL string
	uploadMeta  staging.UploadMeta
	deletedUIDs []string
}

func (s *stubStager) UploadVideoFromURL(_ context.Context, videoURL string, meta staging.UploadMeta) (*staging.Video, error) {
	s.uploadedURL = videoURL
	s.uploadMeta = meta
	if s.uploadErr != nil {
		return nil, s.uploadErr
	}
	return &staging.Video{UID: s.uploadUID, Status: staging.StatusQueued}, nil
}

func (s *stubStager) WaitForProcessing(_ context.Context, uid string) (*staging.Video, error) {
	if s.waitErr != nil {
		return nil, s.waitErr
	}
	return &staging.Video{UID: uid, Status: staging.StatusReady}, nil
}

func (s *stubStager) AudioDownloadURL(context.Context, string) (string, error) {
	if s.audioErr != nil {
		return "", s.audioErr
	}
	return s.audioURL, nil
}

func (s *stubStager) DeleteVideo(_ context.Context, uid string) error {
	s.deletedUIDs = append(s.deletedUIDs, uid)
	return s.deleteErr
}

func defaultResult() *transcriber.Result {
	return &transcriber.Result{
		Text:     "hello world again",
		Language: "en",
		Duration: 7.5,
		Segments: []transcriber.Segment{
			{Start: 0, End: 4, Text: "hello world"},
			{Start: 4, End: 7.5, Text: "again"},
		},
		VTT: "WEBVTT\n",
	}
}

func newMessage(jobID, action string, extra map[string]any) queue.Message {
	return queue.Message{
		JobID:     jobID,
		Action:    action,
		Timestamp: "2026-08-30T10:00:00.000000000Z",
		Extra:     extra,
	}
}

func TestTranscribeAudioMessage(t *testing.T) {
	store := testsupport.MustOpenStore(t)
	ctx := context.Background()

	job, err := store.CreateJob(ctx, jobs.NewJob{
		ID:       "j1",
		Language: "en-US",
		Options:  jobs.Options{Format: "vtt"},
	})
	if err != nil {
		t.Fatalf("create job: %v", err)
	}

	vendor := &stubTranscriber{result: defaultResult()}
	stager := &stubStager{}
	orch := New(store, vendor, stager, nil, nil)

	err = orch.Handle(ctx, newMessage(job.ID, "transcribe_audio", map[string]any{
		"audioUrl": "https://x/a.mp3",
	}))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}

	if vendor.gotURL != "https://x/a.mp3" {
		t.Errorf("transcriber called with %q", vendor.gotURL)
	}
	if vendor.gotReq.Language != "en" {
		t.Errorf("language sent to vendor = %q, want en", vendor.gotReq.Language)
	}
	if vendor.gotReq.Format != "vtt" {
		t.Errorf("format sent to vendor = %q, want vtt", vendor.gotReq.Format)
	}

	stored, err := store.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if stored.Status != jobs.StatusCompleted {
		t.Fatalf("status = %s, want completed", stored.Status)
	}
	if stored.Result == nil {
		t.Fatal("completed job has no result")
	}
	if stored.Result.Text != "hello world again" {
		t.Errorf("result text = %q", stored.Result.Text)
	}
	if want := len(strings.Fields("hello world again")); stored.Result.WordCount != want {
		t.Errorf("word count = %d, want %d", stored.Result.WordCount, want)
	}
	if stored.Result.SegmentCount != 2 {
		t.Errorf("segment count = %d, want 2", stored.Result.SegmentCount)
	}
	if stored.Result.AudioURL != "https://x/a.mp3" {
		t.Errorf("audio url = %q", stored.Result.AudioURL)
	}
	if stored.Result.StagingID != "" {
		t.Errorf("staging id recorded for audio-only job: %q", stored.Result.StagingID)
	}
	if len(stager.deletedUIDs) != 0 {
		t.Errorf("staging delete called for audio-only job: %v", stager.deletedUIDs)
	}
}

func TestProcessVideo(t *testing.T) {
	store := testsupport.MustOpenStore(t)
	ctx := context.Background()

	job, err := store.CreateJob(ctx, jobs.NewJob{
		ID:        "j2",
		SourceURL: "https://x/v.mp4",
	})
	if err != nil {
		t.Fatalf("create job: %v", err)
	}

	vendor := &stubTranscriber{result: defaultResult()}
	stager := &stubStager{uploadUID: "uid-1", audioURL: "https://cdn/audio.mp3"}
	orch := New(store, vendor, stager, nil, nil)

	if err := orch.Handle(ctx, newMessage(job.ID, "process_video", nil)); err != nil {
		t.Fatalf("handle: %v", err)
	}

	if stager.uploadedURL != "https://x/v.mp4" {
		t.Errorf("uploaded %q", stager.uploadedURL)
	}
	if stager.uploadMeta.JobID != "j2" {
		t.Errorf("upload meta job id = %q", stager.uploadMeta.JobID)
	}
	if stager.uploadMeta.Name == "" {
		t.Error("upload meta missing human-readable name")
	}
	if vendor.gotURL != "https://cdn/audio.mp3" {
		t.Errorf("transcriber called with %q, want extracted audio url", vendor.gotURL)
	}
	if len(stager.deletedUIDs) != 1 || stager.deletedUIDs[0] != "uid-1" {
		t.Errorf("staging resource not cleaned up: %v", stager.deletedUIDs)
	}

	stored, err := store.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if stored.Status != jobs.StatusCompleted {
		t.Fatalf("status = %s, want completed", stored.Status)
	}
	if stored.Result.StagingID != "uid-1" {
		t.Errorf("staging id = %q, want uid-1", stored.Result.StagingID)
	}
}

func TestMissingJobFails(t *testing.T) {
	store := testsupport.MustOpenStore(t)
	orch := New(store, &stubTranscriber{result: defaultResult()}, &stubStager{}, nil, nil)

	err := orch.Handle(context.Background(), newMessage("ghost", "transcribe_audio", nil))
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("error %v not tagged as not found", err)
	}
	if !services.Retriable(err) {
		t.Error("missing-job failure should leave redelivery to queue limits")
	}
}

func TestUnknownActionNotRetriable(t *testing.T) {
	store := testsupport.MustOpenStore(t)
	ctx := context.Background()

	job, err := store.CreateJob(ctx, jobs.NewJob{ID: "j3", SourceURL: "https://x/a.mp3"})
	if err != nil {
		t.Fatalf("create job: %v", err)
	}

	orch := New(store, &stubTranscriber{result: defaultResult()}, &stubStager{}, nil, nil)
	err = orch.Handle(ctx, newMessage(job.ID, "reticulate_splines", nil))
	if !errors.Is(err, services.ErrUnknownAction) {
		t.Fatalf("error %v not tagged as unknown action", err)
	}
	if services.Retriable(err) {
		t.Error("unknown action must not be retriable")
	}

	stored, err := store.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if stored.Status != jobs.StatusFailed {
		t.Errorf("status = %s, want failed", stored.Status)
	}
	if stored.ErrorMessage == "" {
		t.Error("failed job missing error message")
	}
}

func TestVendorFailureMarksJobFailed(t *testing.T) {
	store := testsupport.MustOpenStore(t)
	ctx := context.Background()

	job, err := store.CreateJob(ctx, jobs.NewJob{ID: "j4", SourceURL: "https://x/a.mp3"})
	if err != nil {
		t.Fatalf("create job: %v", err)
	}

	vendorErr := services.Wrap(services.ErrUpstream, "transcriber", "transcribe", "http 503", nil)
	orch := New(store, &stubTranscriber{err: vendorErr}, &stubStager{}, nil, nil)

	err = orch.Handle(ctx, newMessage(job.ID, "transcribe_audio", nil))
	if !errors.Is(err, services.ErrUpstream) {
		t.Fatalf("error %v not tagged as upstream", err)
	}
	if !services.Retriable(err) {
		t.Error("upstream failure should be retriable via redelivery")
	}

	stored, err := store.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if stored.Status != jobs.StatusFailed {
		t.Errorf("status = %s, want failed", stored.Status)
	}
	if !strings.Contains(stored.ErrorMessage, "503") {
		t.Errorf("error message %q missing vendor detail", stored.ErrorMessage)
	}
}

func TestCleanupFailureStillCompletes(t *testing.T) {
	store := testsupport.MustOpenStore(t)
	ctx := context.Background()

	job, err := store.CreateJob(ctx, jobs.NewJob{ID: "j5", SourceURL: "https://x/v.mp4"})
	if err != nil {
		t.Fatalf("create job: %v", err)
	}

	stager := &stubStager{
		uploadUID: "uid-2",
		audioURL:  "https://cdn/audio.mp3",
		deleteErr: services.Wrap(services.ErrUpstream, "staging", "delete", "http 500", nil),
	}
	orch := New(store, &stubTranscriber{result: defaultResult()}, stager, nil, nil)

	if err := orch.Handle(ctx, newMessage(job.ID, "process_video", nil)); err != nil {
		t.Fatalf("cleanup failure must not fail the job, got %v", err)
	}

	stored, err := store.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if stored.Status != jobs.StatusCompleted {
		t.Errorf("status = %s, want completed despite cleanup failure", stored.Status)
	}
}

func TestCompletedJobRedeliveryIsNoOp(t *testing.T) {
	store := testsupport.MustOpenStore(t)
	ctx := context.Background()

	job, err := store.CreateJob(ctx, jobs.NewJob{ID: "j6", SourceURL: "https://x/a.mp3"})
	if err != nil {
		t.Fatalf("create job: %v", err)
	}

	vendor := &stubTranscriber{result: defaultResult()}
	orch := New(store, vendor, &stubStager{}, nil, nil)

	msg := newMessage(job.ID, "transcribe_audio", nil)
	if err := orch.Handle(ctx, msg); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	if err := orch.Handle(ctx, msg); err != nil {
		t.Fatalf("redelivery of completed job should settle cleanly, got %v", err)
	}
	if vendor.requests != 1 {
		t.Errorf("vendor called %d times, want 1 (no redone work)", vendor.requests)
	}
}

func TestHandleLogsCarryContextFields(t *testing.T) {
	store := testsupport.MustOpenStore(t)
	ctx := context.Background()

	job, err := store.CreateJob(ctx, jobs.NewJob{ID: "j8", SourceURL: "https://x/a.mp3"})
	if err != nil {
		t.Fatalf("create job: %v", err)
	}

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	orch := New(store, &stubTranscriber{result: defaultResult()}, &stubStager{}, nil, logger)

	ctx = services.WithRequestID(ctx, "req-77")
	if err := orch.Handle(ctx, newMessage(job.ID, "transcribe_audio", nil)); err != nil {
		t.Fatalf("handle: %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		`"job_id":"j8"`,
		`"action":"transcribe_audio"`,
		`"stage":"transcribe"`,
		`"correlation_id":"req-77"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %s:\n%s", want, out)
		}
	}
}

func TestDuplicatePoisonMessageSettlesQuietly(t *testing.T) {
	store := testsupport.MustOpenStore(t)
	ctx := context.Background()

	job, err := store.CreateJob(ctx, jobs.NewJob{ID: "j9", SourceURL: "https://x/a.mp3"})
	if err != nil {
		t.Fatalf("create job: %v", err)
	}

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	orch := New(store, &stubTranscriber{result: defaultResult()}, &stubStager{}, nil, logger)
	msg := newMessage(job.ID, "reticulate_splines", nil)

	for i := 0; i < 2; i++ {
		if err := orch.Handle(ctx, msg); !errors.Is(err, services.ErrUnknownAction) {
			t.Fatalf("delivery %d: error %v not tagged as unknown action", i+1, err)
		}
	}

	stored, err := store.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if stored.Status != jobs.StatusFailed {
		t.Errorf("status = %s, want failed", stored.Status)
	}
	if strings.Contains(buf.String(), "failed to record job error") {
		t.Errorf("duplicate delivery logged a record failure:\n%s", buf.String())
	}
}

func TestFailedJobRetriesOnRedelivery(t *testing.T) {
	store := testsupport.MustOpenStore(t)
	ctx := context.Background()

	job, err := store.CreateJob(ctx, jobs.NewJob{ID: "j7", SourceURL: "https://x/a.mp3"})
	if err != nil {
		t.Fatalf("create job: %v", err)
	}

	vendor := &stubTranscriber{err: services.Wrap(services.ErrUpstream, "transcriber", "transcribe", "http 503", nil)}
	orch := New(store, vendor, &stubStager{}, nil, nil)
	msg := newMessage(job.ID, "transcribe_audio", nil)

	if err := orch.Handle(ctx, msg); err == nil {
		t.Fatal("expected first delivery to fail")
	}

	vendor.err = nil
	vendor.result = defaultResult()
	if err := orch.Handle(ctx, msg); err != nil {
		t.Fatalf("redelivery after recovery: %v", err)
	}

	stored, err := store.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if stored.Status != jobs.StatusCompleted {
		t.Errorf("status = %s, want completed after retry", stored.Status)
	}
	if stored.ErrorMessage != "" {
		t.Errorf("error message %q should be cleared by retry", stored.ErrorMessage)
	}
}
