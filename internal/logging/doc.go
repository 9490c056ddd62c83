// Package logging builds the application's slog loggers and provides
// standardized attribute helpers shared by every component.
package logging
