// Package staging wraps the external video-processing service that extracts
// audio from uploaded videos. The pipeline uploads a source video, waits for
// extraction, pulls the audio URL for transcription, then deletes the staged
// resource as best-effort cleanup.
package staging
