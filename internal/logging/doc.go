// Package logging constructs the slog loggers used across the pipeline.
//
// Two output formats are supported: a compact console format that prefixes
// messages with the emitting component and renders attributes as key=value
// pairs, and plain JSON for log aggregation. Standardized field keys keep
// queue item ids, stage names, and correlation ids greppable across stages.
package logging
