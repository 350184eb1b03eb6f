package export

import "time"

// Result is the outcome of a single export attempt. Exactly one of the two
// shapes is populated: the artifact fields when Success is true, Error when
// it is false.
type Result struct {
	Success bool `json:"success"`

	Format     Format         `json:"format,omitempty"`
	OutputPath string         `json:"output_path,omitempty"`
	SizeBytes  int64          `json:"size_bytes,omitempty"`
	Elapsed    time.Duration  `json:"elapsed_ns,omitempty"`
	Width      int            `json:"width,omitempty"`
	Height     int            `json:"height,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`

	Error string `json:"error,omitempty"`
}

// Failure builds the failure shape for the given format.
func Failure(format Format, message string) Result {
	return Result{Format: format, Error: message}
}

// ElapsedSeconds returns the wall-clock export duration in seconds.
func (r Result) ElapsedSeconds() float64 {
	return r.Elapsed.Seconds()
}
