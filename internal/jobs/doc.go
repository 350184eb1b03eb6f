// Package jobs persists export jobs in SQLite and drives each one through
// its lifecycle: pending, processing, then exactly one of complete or failed.
// The store owns all job mutation; the controller owns scheduling, progress
// checkpoints, cancellation, and artifact retrieval.
package jobs
