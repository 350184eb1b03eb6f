// Package server exposes the export service over HTTP: submission, status,
// artifact download, the capability catalog, encoder health, and Prometheus
// metrics. Every error leaves as a JSON envelope, never a stack trace.
package server
