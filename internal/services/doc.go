// Package services provides shared plumbing for external service
// integrations: a sentinel-marker error taxonomy used to classify stage
// failures, and context annotations that carry queue item, stage, and
// request identifiers into structured logs.
package services
