package testsupport

import (
	"path/filepath"
	"testing"
	"time"

	"scribe/internal/jobs"
	"scribe/internal/queue"
)

// MustOpenStore opens a job store on a per-test database and registers cleanup.
func MustOpenStore(t testing.TB) *jobs.Store {
	t.Helper()

	store, err := jobs.OpenPath(filepath.Join(t.TempDir(), "jobs.db"))
	if err != nil {
		t.Fatalf("jobs.OpenPath: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

// MustOpenQueue opens a delivery queue on a per-test database and registers
// cleanup. The lease is long enough that leased messages never reappear
// mid-test unless explicitly redelivered.
func MustOpenQueue(t testing.TB, maxDeliveries int) *queue.Queue {
	t.Helper()

	q, err := queue.OpenPath(filepath.Join(t.TempDir(), "queue.db"), time.Minute, 0, maxDeliveries)
	if err != nil {
		t.Fatalf("queue.OpenPath: %v", err)
	}
	t.Cleanup(func() {
		_ = q.Close()
	})
	return q
}
