// Package transcriber wraps the external speech-to-text API and normalizes
// its responses into transcript text, timed segments, and subtitle formats.
package transcriber
