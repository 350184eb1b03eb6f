package export

import (
	"strings"
	"testing"

	"holoexport/internal/config"
	"holoexport/internal/deps"
	"holoexport/internal/logging"
)

func newTestStrategies(t *testing.T) (*MP4Strategy, *GIFStrategy, *WebMAlphaStrategy) {
	t.Helper()
	cfg := config.Default()
	cfg.FFmpeg.Binary = "/opt/ffmpeg/bin/ffmpeg"
	locator := deps.NewLocator(&cfg, logging.NewNop())
	return NewMP4Strategy(&cfg, locator, logging.NewNop()),
		NewGIFStrategy(&cfg, locator, logging.NewNop()),
		NewWebMAlphaStrategy(&cfg, locator, logging.NewNop())
}

func validOptions(quality Quality, width, height int) Options {
	return Options{
		Quality:  quality,
		Width:    width,
		Height:   height,
		FPS:      30,
		Duration: 5,
	}
}

func TestValidateQualitySets(t *testing.T) {
	mp4, gif, webm := newTestStrategies(t)
	cases := []struct {
		name     string
		strategy Strategy
		quality  Quality
		width    int
		height   int
		ok       bool
	}{
		{"mp4 low", mp4, QualityLow, 854, 480, true},
		{"mp4 ultra", mp4, QualityUltra, 3840, 2160, true},
		{"gif high", gif, QualityHigh, 640, 640, true},
		{"gif ultra", gif, QualityUltra, 640, 640, false},
		{"webm medium", webm, QualityMedium, 1280, 720, true},
		{"webm low", webm, QualityLow, 1280, 720, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.strategy.Validate(validOptions(tc.quality, tc.width, tc.height))
			if tc.ok && err != nil {
				t.Fatalf("Validate() = %v, want nil", err)
			}
			if !tc.ok {
				if err == nil {
					t.Fatal("expected validation error")
				}
				if !strings.Contains(err.Error(), string(tc.quality)) {
					t.Fatalf("error %q does not name the rejected quality", err)
				}
				if !strings.Contains(err.Error(), "supported") {
					t.Fatalf("error %q does not list supported tiers", err)
				}
			}
		})
	}
}

func TestValidateResolutionCeiling(t *testing.T) {
	mp4, gif, _ := newTestStrategies(t)

	if err := mp4.Validate(validOptions(QualityUltra, 3840, 2160)); err != nil {
		t.Fatalf("maximum resolution rejected: %v", err)
	}
	if err := mp4.Validate(validOptions(QualityUltra, 3841, 2160)); err == nil {
		t.Fatal("expected width over ceiling to be rejected")
	}
	if err := mp4.Validate(validOptions(QualityUltra, 3840, 2161)); err == nil {
		t.Fatal("expected height over ceiling to be rejected")
	}
	if err := gif.Validate(validOptions(QualityHigh, 1280, 720)); err == nil {
		t.Fatal("expected gif to reject video-scale resolution")
	}
	if err := mp4.Validate(validOptions(QualityHigh, 0, 720)); err == nil {
		t.Fatal("expected zero width to be rejected")
	}
	if err := mp4.Validate(validOptions(QualityHigh, 1280, -1)); err == nil {
		t.Fatal("expected negative height to be rejected")
	}
}

func TestValidatePositiveRateAndDuration(t *testing.T) {
	mp4, _, _ := newTestStrategies(t)

	opts := validOptions(QualityMedium, 1280, 720)
	opts.FPS = 0
	if err := mp4.Validate(opts); err == nil {
		t.Fatal("expected zero fps to be rejected")
	}

	opts = validOptions(QualityMedium, 1280, 720)
	opts.Duration = 0
	if err := mp4.Validate(opts); err == nil {
		t.Fatal("expected zero duration to be rejected")
	}
}

func TestValidateAlphaSupport(t *testing.T) {
	mp4, gif, webm := newTestStrategies(t)

	opts := validOptions(QualityHigh, 640, 640)
	opts.Alpha = true
	if err := gif.Validate(opts); err == nil {
		t.Fatal("expected gif to reject alpha")
	}
	opts = validOptions(QualityHigh, 1920, 1080)
	opts.Alpha = true
	if err := mp4.Validate(opts); err == nil {
		t.Fatal("expected mp4 to reject alpha")
	}
	if err := webm.Validate(opts); err != nil {
		t.Fatalf("expected webm to accept alpha, got %v", err)
	}
}

func TestDescriptorCoversDeclaredTiers(t *testing.T) {
	_, gif, webm := newTestStrategies(t)
	if gif.Descriptor().SupportsQuality(QualityUltra) {
		t.Fatal("gif must not declare ultra")
	}
	if webm.Descriptor().SupportsQuality(QualityLow) {
		t.Fatal("webm must not declare low")
	}
	if !webm.Descriptor().SupportsAlpha {
		t.Fatal("webm must declare alpha support")
	}
}
