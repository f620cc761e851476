package staging

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"scribe/internal/services"
)

func TestUploadVideoFromURL(t *testing.T) {
	var captured uploadRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/videos" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(Video{UID: "uid-1", Status: StatusQueued})
	}))
	defer server.Close()

	client := NewClient(server.URL, "key")
	video, err := client.UploadVideoFromURL(context.Background(), "https://x/v.mp4", UploadMeta{
		Name:  "Job j2",
		JobID: "j2",
	})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if video.UID != "uid-1" {
		t.Errorf("uid = %q", video.UID)
	}
	if captured.URL != "https://x/v.mp4" || captured.Meta.JobID != "j2" {
		t.Errorf("unexpected upload payload: %+v", captured)
	}
}

func TestUploadMissingUID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(Video{})
	}))
	defer server.Close()

	client := NewClient(server.URL, "key")
	_, err := client.UploadVideoFromURL(context.Background(), "https://x/v.mp4", UploadMeta{})
	if !errors.Is(err, services.ErrUpstream) {
		t.Errorf("error %v not tagged as upstream", err)
	}
}

func TestWaitForProcessingReady(t *testing.T) {
	var polls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		status := StatusProcessing
		if polls.Add(1) >= 3 {
			status = StatusReady
		}
		_ = json.NewEncoder(w).Encode(Video{UID: "uid-2", Status: status})
	}))
	defer server.Close()

	client := NewClient(server.URL, "key",
		WithPollInterval(time.Millisecond),
		WithReadyTimeout(time.Second))
	video, err := client.WaitForProcessing(context.Background(), "uid-2")
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if video.Status != StatusReady {
		t.Errorf("status = %q, want ready", video.Status)
	}
	if polls.Load() < 3 {
		t.Errorf("polled %d times, want at least 3", polls.Load())
	}
}

func TestWaitForProcessingTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(Video{UID: "uid-3", Status: StatusProcessing})
	}))
	defer server.Close()

	client := NewClient(server.URL, "key",
		WithPollInterval(time.Millisecond),
		WithReadyTimeout(5*time.Millisecond))
	_, err := client.WaitForProcessing(context.Background(), "uid-3")
	if !errors.Is(err, services.ErrTimeout) {
		t.Errorf("error %v not tagged as timeout", err)
	}
}

func TestWaitForProcessingUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(Video{UID: "uid-4", Status: StatusError})
	}))
	defer server.Close()

	client := NewClient(server.URL, "key", WithPollInterval(time.Millisecond))
	_, err := client.WaitForProcessing(context.Background(), "uid-4")
	if !errors.Is(err, services.ErrUpstream) {
		t.Errorf("error %v not tagged as upstream", err)
	}
}

func TestAudioDownloadURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/videos/uid-5/audio" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(downloadResponse{AudioURL: "https://cdn/audio.mp3"})
	}))
	defer server.Close()

	client := NewClient(server.URL, "key")
	audioURL, err := client.AudioDownloadURL(context.Background(), "uid-5")
	if err != nil {
		t.Fatalf("audio url: %v", err)
	}
	if audioURL != "https://cdn/audio.mp3" {
		t.Errorf("audio url = %q", audioURL)
	}
}

func TestDeleteVideo(t *testing.T) {
	var deleted atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete && r.URL.Path == "/videos/uid-6" {
			deleted.Store(true)
			w.WriteHeader(http.StatusNoContent)
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := NewClient(server.URL, "key")
	if err := client.DeleteVideo(context.Background(), "uid-6"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !deleted.Load() {
		t.Error("delete request never reached server")
	}
}

func TestDeleteVideoFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, "key")
	err := client.DeleteVideo(context.Background(), "uid-7")
	if !errors.Is(err, services.ErrUpstream) {
		t.Errorf("error %v not tagged as upstream", err)
	}
}
