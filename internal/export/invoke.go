package export

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"holoexport/internal/services"
)

// runCommand executes the encoder binary and returns its combined output.
// It is a package-level variable so tests can override it.
var runCommand = func(ctx context.Context, binary string, args []string) (string, error) {
	cmd := exec.CommandContext(ctx, binary, args...)
	output, err := cmd.CombinedOutput()
	return string(output), err
}

// SetRunCommandForTests overrides the encoder runner during tests.
func SetRunCommandForTests(fn func(context.Context, string, []string) (string, error)) func() {
	previous := runCommand
	runCommand = fn
	return func() {
		runCommand = previous
	}
}

// invoke runs one bounded encoder pass. A deadline is a timeout failure, a
// cancelled parent context is a cancellation, and any other non-zero exit
// carries the tool's diagnostic text verbatim.
func invoke(ctx context.Context, format Format, operation, binary string, args []string, timeout time.Duration) error {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	output, err := runCommand(runCtx, binary, args)
	if err == nil {
		return nil
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		return services.Wrap(services.ErrCancelled, "export", operation, "cancelled", nil)
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return services.Wrap(services.ErrTimeout, "export", operation, fmt.Sprintf("%s encode exceeded %s", format, timeout), nil)
	}
	detail := strings.TrimSpace(output)
	if detail == "" {
		detail = err.Error()
	}
	return services.Wrap(services.ErrExternalTool, "export", operation, detail, nil)
}
