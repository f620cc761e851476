package queue

import (
	"context"
	"fmt"
	"time"
)

// Dispatcher publishes pipeline messages onto a queue.
type Dispatcher struct {
	queue *Queue
}

// NewDispatcher wraps a queue for message publishing.
func NewDispatcher(q *Queue) *Dispatcher {
	return &Dispatcher{queue: q}
}

// SendJob builds and enqueues a message for the given job and action.
// The timestamp is stamped at send time in RFC 3339 form so message ages
// sort lexicographically. Extra fields ride along verbatim.
func (d *Dispatcher) SendJob(ctx context.Context, jobID, action string, extra map[string]any) (Message, error) {
	msg := Message{
		JobID:     jobID,
		Action:    action,
		Timestamp: time.Now().UTC().Format(timeLayout),
		Extra:     extra,
	}
	if err := d.queue.Send(ctx, msg); err != nil {
		return Message{}, fmt.Errorf("dispatch %s for job %s: %w", action, jobID, err)
	}
	return msg, nil
}
