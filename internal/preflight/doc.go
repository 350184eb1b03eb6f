// Package preflight validates runtime prerequisites before the daemon
// accepts export work: directory access for staging and artifacts, and the
// availability of an ffmpeg binary with the required codecs.
package preflight
