package export

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"holoexport/internal/config"
	"holoexport/internal/deps"
	"holoexport/internal/logging"
)

type webmTier struct {
	bitrate string
	quality string
	speed   string
}

var webmTiers = map[Quality]webmTier{
	QualityMedium: {bitrate: "2M", quality: "good", speed: "2"},
	QualityHigh:   {bitrate: "4M", quality: "best", speed: "1"},
	QualityUltra:  {bitrate: "8M", quality: "best", speed: "0"},
}

// compatibleTools lists downstream consumers known to accept VP9 WebM with a
// preserved alpha channel. Recorded in result metadata because transparency
// is the entire point of this format.
var compatibleTools = []string{
	"After Effects",
	"DaVinci Resolve",
	"Chrome",
	"Firefox",
	"OBS Studio",
}

// WebMAlphaStrategy produces a VP9 WebM with the alpha channel preserved
// end-to-end. There is no low tier; a low-fidelity alpha export defeats the
// purpose of the format.
type WebMAlphaStrategy struct {
	strategyCore
}

func NewWebMAlphaStrategy(cfg *config.Config, locator *deps.Locator, logger *slog.Logger) *WebMAlphaStrategy {
	descriptor := Descriptor{
		Name:                   "WebM (VP9, alpha)",
		Format:                 FormatWebMAlpha,
		Qualities:              []Quality{QualityMedium, QualityHigh, QualityUltra},
		MaxWidth:               3840,
		MaxHeight:              2160,
		SupportsAlpha:          true,
		SecondsPerOutputSecond: 2.5,
	}
	return &WebMAlphaStrategy{strategyCore: newStrategyCore(descriptor, cfg, locator, logger)}
}

func (s *WebMAlphaStrategy) Export(ctx context.Context, source, output string, opts Options) (result Result) {
	start := time.Now()
	defer func() {
		s.stats.record(result, time.Since(start))
	}()

	if !opts.Alpha {
		s.logger.Info("forcing alpha channel on",
			logging.String(logging.FieldSource, source),
		)
		opts.Alpha = true
	}

	handle, failure := s.prepare(ctx, source, opts)
	if failure != nil {
		return *failure
	}

	tier := webmTiers[opts.Quality]
	args := s.buildArgs(source, output, opts, tier)
	s.logger.Info("launching webm alpha encode",
		logging.String(logging.FieldSource, source),
		logging.String(logging.FieldOutput, output),
		logging.String(logging.FieldQuality, string(opts.Quality)),
	)

	timeout := time.Duration(s.cfg.FFmpeg.WebMTimeout) * time.Second
	if err := invoke(ctx, FormatWebMAlpha, "encode", handle.Path, args, timeout); err != nil {
		return Failure(FormatWebMAlpha, err.Error())
	}

	return s.finish(output, time.Since(start), opts.Width, opts.Height, map[string]any{
		"codec":           tierCodec(opts, "libvpx-vp9"),
		"pixel_format":    "yuva420p",
		"alpha":           true,
		"compatible_with": append([]string(nil), compatibleTools...),
	})
}

func (s *WebMAlphaStrategy) buildArgs(source, output string, opts Options, tier webmTier) []string {
	bitrate := tier.bitrate
	if strings.TrimSpace(opts.Bitrate) != "" {
		bitrate = strings.TrimSpace(opts.Bitrate)
	}
	return []string{
		"-y",
		"-i", source,
		"-c:v", tierCodec(opts, "libvpx-vp9"),
		"-pix_fmt", "yuva420p",
		"-b:v", bitrate,
		"-quality", tier.quality,
		"-speed", tier.speed,
		"-auto-alt-ref", "1",
		"-lag-in-frames", "25",
		"-r", strconv.Itoa(opts.FPS),
		output,
	}
}
