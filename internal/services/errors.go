package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrExternalTool marks a non-zero exit, crash, or garbage output from ffmpeg.
	ErrExternalTool = errors.New("external tool error")
	// ErrValidation marks an export request rejected before any invocation.
	ErrValidation = errors.New("validation error")
	// ErrConfiguration marks a missing or unusable encoder installation.
	ErrConfiguration = errors.New("configuration error")
	// ErrNotFound marks lookups of absent jobs, strategies, or source files.
	ErrNotFound = errors.New("not found")
	// ErrTimeout marks an external invocation killed by its deadline.
	ErrTimeout = errors.New("timeout")
	// ErrCancelled marks a job aborted by an explicit cancellation request.
	ErrCancelled = errors.New("cancelled")
	// ErrIntegrity marks inconsistent state, such as a complete job whose
	// artifact file is gone. Distinct from ErrNotFound on purpose.
	ErrIntegrity = errors.New("integrity error")
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrExternalTool
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
