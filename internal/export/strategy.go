package export

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"holoexport/internal/config"
	"holoexport/internal/deps"
	"holoexport/internal/logging"
	"holoexport/internal/services"
)

// Descriptor declares a strategy's capabilities. It feeds the capability
// catalog and the pre-submission ETA estimate.
type Descriptor struct {
	Name          string    `json:"name"`
	Format        Format    `json:"format"`
	Qualities     []Quality `json:"qualities"`
	MaxWidth      int       `json:"max_width"`
	MaxHeight     int       `json:"max_height"`
	SupportsAlpha bool      `json:"supports_alpha"`

	// SecondsPerOutputSecond is the empirically calibrated ratio of
	// processing time to output duration, used only for ETA estimation.
	SecondsPerOutputSecond float64 `json:"seconds_per_output_second"`
}

// SupportsQuality reports whether the tier is in the declared set.
func (d Descriptor) SupportsQuality(quality Quality) bool {
	for _, candidate := range d.Qualities {
		if candidate == quality {
			return true
		}
	}
	return false
}

// Strategy converts a source render into one delivery format.
type Strategy interface {
	Descriptor() Descriptor
	Stats() StatsSnapshot
	Validate(opts Options) error
	Export(ctx context.Context, source, output string, opts Options) Result
}

func validateOptions(d Descriptor, opts Options) error {
	if !d.SupportsQuality(opts.Quality) {
		return validationError(d.Format, fmt.Sprintf("quality %q not supported (supported: %s)", string(opts.Quality), qualityList(d.Qualities)))
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		return validationError(d.Format, fmt.Sprintf("resolution %dx%d must be positive in both dimensions", opts.Width, opts.Height))
	}
	if opts.Width > d.MaxWidth || opts.Height > d.MaxHeight {
		return validationError(d.Format, fmt.Sprintf("resolution %dx%d exceeds maximum %dx%d", opts.Width, opts.Height, d.MaxWidth, d.MaxHeight))
	}
	if opts.FPS <= 0 {
		return validationError(d.Format, fmt.Sprintf("frame rate %d must be positive", opts.FPS))
	}
	if opts.Duration <= 0 {
		return validationError(d.Format, fmt.Sprintf("duration %.2f must be positive", opts.Duration))
	}
	if opts.Alpha && !d.SupportsAlpha {
		return validationError(d.Format, "alpha channel not supported (use webm_alpha for transparency)")
	}
	return nil
}

func validationError(format Format, message string) error {
	return services.Wrap(services.ErrValidation, "export", string(format), message, nil)
}

// strategyCore carries the state every concrete strategy shares.
type strategyCore struct {
	descriptor Descriptor
	cfg        *config.Config
	locator    *deps.Locator
	logger     *slog.Logger
	stats      Stats
}

func newStrategyCore(descriptor Descriptor, cfg *config.Config, locator *deps.Locator, logger *slog.Logger) strategyCore {
	if logger == nil {
		logger = logging.NewNop()
	}
	return strategyCore{
		descriptor: descriptor,
		cfg:        cfg,
		locator:    locator,
		logger:     logging.NewComponentLogger(logger, "export-"+string(descriptor.Format)),
	}
}

func (c *strategyCore) Descriptor() Descriptor {
	return c.descriptor
}

func (c *strategyCore) Stats() StatsSnapshot {
	return c.stats.Snapshot()
}

func (c *strategyCore) Validate(opts Options) error {
	return validateOptions(c.descriptor, opts)
}

// prepare validates the request and resolves the encoder. Both failure modes
// surface as a failure Result so nothing is thrown past the strategy.
func (c *strategyCore) prepare(ctx context.Context, source string, opts Options) (deps.Handle, *Result) {
	if err := validateOptions(c.descriptor, opts); err != nil {
		failure := Failure(c.descriptor.Format, err.Error())
		return deps.Handle{}, &failure
	}
	if _, err := os.Stat(source); err != nil {
		failure := Failure(c.descriptor.Format, fmt.Sprintf("source %s not readable: %v", source, err))
		return deps.Handle{}, &failure
	}
	handle, err := c.locator.Ensure(ctx)
	if err != nil {
		failure := Failure(c.descriptor.Format, err.Error())
		return deps.Handle{}, &failure
	}
	return handle, nil
}

// finish stats the artifact and builds the success shape. A missing or empty
// output after a zero-exit invocation is still a failure.
func (c *strategyCore) finish(output string, elapsed time.Duration, width, height int, metadata map[string]any) Result {
	info, err := os.Stat(output)
	if err != nil {
		return Failure(c.descriptor.Format, fmt.Sprintf("encoder exited cleanly but produced no output at %s", output))
	}
	return Result{
		Success:    true,
		Format:     c.descriptor.Format,
		OutputPath: output,
		SizeBytes:  info.Size(),
		Elapsed:    elapsed,
		Width:      width,
		Height:     height,
		Metadata:   metadata,
	}
}
