// Package export implements the format strategies that turn a captured
// hologram render into a delivery artifact, plus the registry that routes an
// export request to the strategy registered for its format.
//
// Each strategy owns option validation, FFmpeg argument synthesis, and its
// cumulative statistics. The registry aggregates cross-format counters and
// exposes the capability catalog callers use for ETA estimation.
package export
