// Package services defines shared utilities consumed by the pipeline
// orchestrator and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, stage names, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper that let the consumer
//     loop classify failures (acknowledge vs redeliver) without string
//     matching.
//
// Use these helpers when wiring new pipeline logic so operational behaviour
// stays uniform across the system.
package services
