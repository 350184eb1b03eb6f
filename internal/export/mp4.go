package export

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"holoexport/internal/config"
	"holoexport/internal/deps"
	"holoexport/internal/logging"
)

type mp4Tier struct {
	scale   string
	bitrate string
	preset  string
	crf     string
}

var mp4Tiers = map[Quality]mp4Tier{
	QualityLow:    {scale: "854:480", bitrate: "2M", preset: "veryfast", crf: "28"},
	QualityMedium: {scale: "1280:720", bitrate: "4M", preset: "medium", crf: "23"},
	QualityHigh:   {scale: "1920:1080", bitrate: "8M", preset: "slow", crf: "20"},
	QualityUltra:  {scale: "3840:2160", bitrate: "20M", preset: "veryslow", crf: "18"},
}

// MP4Strategy produces a universally playable H.264 MP4: yuv420p pixel
// layout, faststart container flags, a closed 2-second GOP, and stripped
// source metadata.
type MP4Strategy struct {
	strategyCore
}

func NewMP4Strategy(cfg *config.Config, locator *deps.Locator, logger *slog.Logger) *MP4Strategy {
	descriptor := Descriptor{
		Name:                   "MP4 (H.264)",
		Format:                 FormatMP4,
		Qualities:              []Quality{QualityLow, QualityMedium, QualityHigh, QualityUltra},
		MaxWidth:               3840,
		MaxHeight:              2160,
		SupportsAlpha:          false,
		SecondsPerOutputSecond: 0.8,
	}
	return &MP4Strategy{strategyCore: newStrategyCore(descriptor, cfg, locator, logger)}
}

func (s *MP4Strategy) Export(ctx context.Context, source, output string, opts Options) (result Result) {
	start := time.Now()
	defer func() {
		s.stats.record(result, time.Since(start))
	}()

	handle, failure := s.prepare(ctx, source, opts)
	if failure != nil {
		return *failure
	}

	tier := mp4Tiers[opts.Quality]
	args := s.buildArgs(source, output, opts, tier)
	s.logger.Info("launching mp4 encode",
		logging.String(logging.FieldSource, source),
		logging.String(logging.FieldOutput, output),
		logging.String(logging.FieldQuality, string(opts.Quality)),
		logging.String("command", handle.Path+" "+strings.Join(args, " ")),
	)

	timeout := time.Duration(s.cfg.FFmpeg.MP4Timeout) * time.Second
	if err := invoke(ctx, FormatMP4, "encode", handle.Path, args, timeout); err != nil {
		return Failure(FormatMP4, err.Error())
	}

	codec := tierCodec(opts, "libx264")
	return s.finish(output, time.Since(start), opts.Width, opts.Height, map[string]any{
		"codec":        codec,
		"preset":       tier.preset,
		"crf":          tier.crf,
		"pixel_format": "yuv420p",
		"faststart":    true,
	})
}

func (s *MP4Strategy) buildArgs(source, output string, opts Options, tier mp4Tier) []string {
	bitrate := tier.bitrate
	if strings.TrimSpace(opts.Bitrate) != "" {
		bitrate = strings.TrimSpace(opts.Bitrate)
	}
	gop := opts.FPS * 2
	return []string{
		"-y",
		"-i", source,
		"-c:v", tierCodec(opts, "libx264"),
		"-preset", tier.preset,
		"-crf", tier.crf,
		"-b:v", bitrate,
		"-vf", fmt.Sprintf("scale=%s", tier.scale),
		"-pix_fmt", "yuv420p",
		"-movflags", "+faststart",
		"-r", strconv.Itoa(opts.FPS),
		"-g", strconv.Itoa(gop),
		"-map_metadata", "-1",
		output,
	}
}

func tierCodec(opts Options, fallback string) string {
	if codec := strings.TrimSpace(opts.Codec); codec != "" {
		return codec
	}
	return fallback
}
