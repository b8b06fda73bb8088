// Package logging builds slog loggers used across the pipeline.
//
// Two formats are supported: "console" for humans and "json" for build systems that collect
// structured logs. Components derive their loggers with NewComponentLogger.
package logging
