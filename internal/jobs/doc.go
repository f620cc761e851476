// Package jobs persists transcription job documents in SQLite and enforces
// their lifecycle.
//
// The Store manages database connections, schema initialization, and the
// typed write operations the pipeline uses (status, progress, result,
// error). Every status write is validated against the explicit transition
// table in models.go; the store is the single source of truth for job state,
// while queue messages carry only pointers into it.
//
// The database is treated as operational storage for in-flight and recent
// jobs rather than a long-term archive. Schema changes bump the version in
// schema.go; users delete the database to adopt the new schema.
package jobs
