package jobs

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a transcription job.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// StaleProcessingReason is the error message set when in-flight jobs are
// failed because the daemon stopped underneath them.
const StaleProcessingReason = "processing abandoned; daemon restarted"

var allStatuses = []Status{
	StatusQueued,
	StatusProcessing,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// transitions enumerates the legal status moves. A failed job may re-enter
// processing because a redelivered queue message is the system's retry
// mechanism; completed is final.
var transitions = map[Status][]Status{
	StatusQueued:     {StatusProcessing, StatusFailed},
	StatusProcessing: {StatusCompleted, StatusFailed},
	StatusFailed:     {StatusQueued, StatusProcessing},
	StatusCompleted:  {},
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// Terminal reports whether the status admits no further automatic transition.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ValidTransition reports whether a job may move from one status to another.
// Re-asserting a non-terminal status is allowed so nested pipelines can mark
// processing more than once per attempt.
func ValidTransition(from, to Status) bool {
	if from == to {
		return !from.Terminal()
	}
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Options carries caller-supplied output preferences, immutable once the job
// is created.
type Options struct {
	Format         string `json:"format,omitempty"`
	Timestamps     bool   `json:"timestamps,omitempty"`
	WordTimestamps bool   `json:"wordTimestamps,omitempty"`
}

// Output is the normalized transcription payload persisted on completion.
type Output struct {
	Text     string `json:"text"`
	Language string `json:"language,omitempty"`
	SRT      string `json:"srt,omitempty"`
	VTT      string `json:"vtt,omitempty"`
}

// ResultMetadata is derived bookkeeping stored next to the output.
type ResultMetadata struct {
	Duration     float64 `json:"duration"`
	WordCount    int     `json:"wordCount"`
	SegmentCount int     `json:"segmentCount"`
	AudioURL     string  `json:"audioUrl"`
	StagingID    string  `json:"stagingId,omitempty"`
}

// Result combines transcription output with its metadata; present only on
// completed jobs.
type Result struct {
	Output
	ResultMetadata
}

// Job is a persisted unit of transcription work.
type Job struct {
	ID           string
	Status       Status
	SourceURL    string
	Language     string
	Options      Options
	Progress     string
	Result       *Result
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewJob describes the caller-supplied fields of a job to create. A zero ID
// asks the store to assign one.
type NewJob struct {
	ID        string
	SourceURL string
	Language  string
	Options   Options
}
