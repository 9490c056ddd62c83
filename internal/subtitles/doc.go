// Package subtitles defines the timed segment model produced by
// transcription and consumed by translation, and renders finished segment
// lists into SRT, VTT, and plain-text subtitle documents.
package subtitles
