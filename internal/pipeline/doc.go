// Package pipeline is the heart of the daemon: it takes one queued message
// at a time and drives the matching job through staging, transcription, and
// result persistence. Failures are recorded on the job before they propagate
// so the queue's redelivery policy can act without corrupting job state.
package pipeline
