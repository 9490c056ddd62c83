// Package translator batches subtitle segments, drives the provider
// adapters, and owns the retry, pacing, and fallback policy. Segments are
// translated in place so callers can persist partial progress after every
// batch.
package translator
