// Package logging constructs the slog loggers used across tidesync.
//
// Console output is rendered with tinted, human-readable lines; the json
// format emits one structured object per line for ingestion. File outputs
// under the configured log directory receive the same stream.
package logging
