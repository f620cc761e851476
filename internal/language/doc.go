// Package language normalizes caller-supplied locale codes into the bare
// language codes the transcription vendor accepts.
package language
