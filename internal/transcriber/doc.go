// Package transcriber shells out to the configured speech-to-text command
// and parses its JSON output into subtitle segments. Model, device, and
// compute type are passed through verbatim; the tool owns their meaning.
package transcriber
