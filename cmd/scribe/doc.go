// Package main hosts the scribe CLI entrypoint and command graph.
//
// The Cobra-based command tree submits transcription jobs, inspects job and
// queue state, requeues failures, and scaffolds configuration. Commands open
// the job and queue databases directly; the daemon picks up dispatched work
// through the shared delivery queue.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
