// Package providers contains the translation backend adapters. Each adapter
// turns one batch of subtitle texts into one HTTP request against its
// provider API and parses the numbered-list reply. Adapters are single-shot:
// retry, pacing, and fallback policy live in the translator.
package providers
