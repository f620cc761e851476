package queue

import (
	"context"
	"encoding/json"
	"fmt"
)

// Message is the wire payload of one queued delivery. Only jobId, action,
// and timestamp are interpreted here; action-specific fields ride along in
// Extra exactly as the producer supplied them.
type Message struct {
	JobID     string
	Action    string
	Timestamp string
	Extra     map[string]any
}

// StringField returns an action-specific field as a string, or "" when the
// field is absent or not a string.
func (m Message) StringField(key string) string {
	if v, ok := m.Extra[key].(string); ok {
		return v
	}
	return ""
}

// MarshalJSON flattens the message into a single JSON object:
// {jobId, action, timestamp, ...extra}.
func (m Message) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(m.Extra)+3)
	for key, value := range m.Extra {
		flat[key] = value
	}
	flat["jobId"] = m.JobID
	flat["action"] = m.Action
	flat["timestamp"] = m.Timestamp
	return json.Marshal(flat)
}

// UnmarshalJSON splits the flat wire object back into envelope fields and
// action-specific extras.
func (m *Message) UnmarshalJSON(data []byte) error {
	var flat map[string]any
	if err := json.Unmarshal(data, &flat); err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	m.JobID, _ = flat["jobId"].(string)
	m.Action, _ = flat["action"].(string)
	m.Timestamp, _ = flat["timestamp"].(string)
	delete(flat, "jobId")
	delete(flat, "action")
	delete(flat, "timestamp")
	if len(flat) == 0 {
		m.Extra = nil
		return nil
	}
	m.Extra = flat
	return nil
}

// Envelope wraps a delivered message with its two terminal operations.
// Acknowledge removes the message for good; RequestRedelivery returns it to
// the queue for a future attempt.
type Envelope interface {
	Body() Message
	Acknowledge(ctx context.Context) error
	RequestRedelivery(ctx context.Context) error
}

// Batch is one delivery batch. Messages are ordered but each one is settled
// independently.
type Batch struct {
	Messages []Envelope
}

// Empty reports whether the batch carries no messages.
func (b *Batch) Empty() bool {
	return b == nil || len(b.Messages) == 0
}
