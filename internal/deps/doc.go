// Package deps discovers and health-checks the external encoder binary.
//
// Resolution prefers a bundled ffmpeg (a configured directory, then a copy
// sitting next to the running executable) and falls back to the system PATH.
// Resolution failure is never fatal: callers receive an unresolved handle and
// every export attempt re-checks availability with a remediation message.
package deps
