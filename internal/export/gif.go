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
)

type gifTier struct {
	scale int
	fps   int
}

var gifTiers = map[Quality]gifTier{
	QualityLow:    {scale: 320, fps: 10},
	QualityMedium: {scale: 480, fps: 15},
	QualityHigh:   {scale: 640, fps: 24},
}

// GIFStrategy produces an animated GIF in two passes: a diff-aware palette
// analysis pass, then a palette-driven encode with ordered bayer dithering.
// The palette intermediate is removed on every exit path.
type GIFStrategy struct {
	strategyCore
}

func NewGIFStrategy(cfg *config.Config, locator *deps.Locator, logger *slog.Logger) *GIFStrategy {
	descriptor := Descriptor{
		Name:                   "Animated GIF",
		Format:                 FormatGIF,
		Qualities:              []Quality{QualityLow, QualityMedium, QualityHigh},
		MaxWidth:               640,
		MaxHeight:              640,
		SupportsAlpha:          false,
		SecondsPerOutputSecond: 1.5,
	}
	return &GIFStrategy{strategyCore: newStrategyCore(descriptor, cfg, locator, logger)}
}

func (s *GIFStrategy) Export(ctx context.Context, source, output string, opts Options) (result Result) {
	start := time.Now()
	defer func() {
		s.stats.record(result, time.Since(start))
	}()

	handle, failure := s.prepare(ctx, source, opts)
	if failure != nil {
		return *failure
	}

	tier := gifTiers[opts.Quality]
	palette := output + ".palette.png"
	defer func() {
		if err := os.Remove(palette); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("failed to remove palette intermediate",
				logging.String("palette", palette),
				logging.Error(err),
			)
		}
	}()

	s.logger.Info("launching gif palette pass",
		logging.String(logging.FieldSource, source),
		logging.String(logging.FieldQuality, string(opts.Quality)),
	)
	paletteArgs := []string{
		"-y",
		"-i", source,
		"-vf", fmt.Sprintf("fps=%d,scale=%d:-1:flags=lanczos,palettegen=stats_mode=diff", tier.fps, tier.scale),
		palette,
	}
	paletteTimeout := time.Duration(s.cfg.FFmpeg.GIFPaletteTimeout) * time.Second
	if err := invoke(ctx, FormatGIF, "palettegen", handle.Path, paletteArgs, paletteTimeout); err != nil {
		return Failure(FormatGIF, err.Error())
	}

	s.logger.Info("launching gif encode pass",
		logging.String(logging.FieldOutput, output),
	)
	encodeArgs := []string{
		"-y",
		"-i", source,
		"-i", palette,
		"-lavfi", fmt.Sprintf("fps=%d,scale=%d:-1:flags=lanczos[x];[x][1:v]paletteuse=dither=bayer:bayer_scale=5:diff_mode=rectangle", tier.fps, tier.scale),
		output,
	}
	encodeTimeout := time.Duration(s.cfg.FFmpeg.GIFEncodeTimeout) * time.Second
	if err := invoke(ctx, FormatGIF, "paletteuse", handle.Path, encodeArgs, encodeTimeout); err != nil {
		return Failure(FormatGIF, err.Error())
	}

	return s.finish(output, time.Since(start), tier.scale, tier.scale, map[string]any{
		"palette": "diff-optimized",
		"dither":  "bayer",
		"fps":     tier.fps,
	})
}
