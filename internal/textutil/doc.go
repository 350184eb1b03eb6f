// Package textutil sanitizes caller-supplied strings, such as owner names,
// into tokens safe to use as filesystem path segments.
package textutil
