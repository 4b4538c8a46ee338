// Package services defines shared utilities consumed by the import pipeline
// components.
//
// Key responsibilities:
//   - Context helpers that stamp session identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that classify failures
//     into the pipeline's error taxonomy (usage, preparation, resolution,
//     parse, timeout, integrity).
//
// Use these helpers when wiring new pipeline logic so operational behaviour
// (error handling, observability) stays uniform across components.
package services
