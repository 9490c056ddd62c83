// Package workflow coordinates queue processing. A small worker pool claims
// jobs at their durable checkpoints, runs the matching stage handler, and
// advances the job through the status machine. Transcription holds a single
// slot so only one job uses the speech model at a time; translation runs
// under a bounded semaphore sized by configuration.
package workflow
