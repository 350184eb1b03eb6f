package preflight

import (
	"context"
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/unix"

	"holoexport/internal/deps"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckEncoder verifies that an ffmpeg binary is reachable and carries the
// codecs the export strategies need.
func CheckEncoder(ctx context.Context, locator *deps.Locator) Result {
	const name = "FFmpeg"

	health := locator.HealthCheck(ctx)
	if !health.Installed {
		return Result{Name: name, Detail: health.Remediation}
	}
	if len(health.CodecsMissing) > 0 {
		return Result{Name: name, Detail: fmt.Sprintf("%s (missing codecs: %s)", health.Path, strings.Join(health.CodecsMissing, ", "))}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%s, %s)", health.Path, health.Version, health.Source)}
}
