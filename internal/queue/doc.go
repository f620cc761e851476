// Package queue implements the delivery queue feeding the transcription
// pipeline. Messages carry a job ID, an action, and a send timestamp plus
// arbitrary extra fields, serialized as a single flat JSON object. The
// queue itself is a SQLite table with visibility leases: consumers receive
// batches, then acknowledge or request redelivery per message, and
// messages that exhaust their delivery budget are parked as dead.
package queue
