package preflight

import (
	"context"

	"holoexport/internal/config"
	"holoexport/internal/deps"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes every preflight check for the given config. The encoder
// check is skipped when locator is nil so callers without one can still
// verify directory access.
func RunAll(ctx context.Context, cfg *config.Config, locator *deps.Locator) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Staging directory", cfg.Paths.StagingDir),
		CheckDirectoryAccess("Export directory", cfg.Paths.ExportDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	}

	if locator != nil {
		results = append(results, CheckEncoder(ctx, locator))
	}

	return results
}

// AllPassed reports whether every result in the set passed.
func AllPassed(results []Result) bool {
	for _, result := range results {
		if !result.Passed {
			return false
		}
	}
	return true
}
