// Package notifications pushes workflow events to an ntfy topic. Without a
// configured topic every call is a silent no-op, so callers never need to
// guard notification sends.
package notifications
