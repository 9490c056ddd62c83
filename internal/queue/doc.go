// Package queue persists translation jobs in SQLite and enforces the job
// lifecycle state machine. The store is the single source of truth for job
// state; in-memory items are a cache that every status transition writes
// back through Advance or Update.
package queue
