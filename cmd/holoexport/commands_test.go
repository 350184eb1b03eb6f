package main

import (
	"context"
	"os"
	"testing"

	"holoexport/internal/deps"
)

func TestCapabilitiesListsEveryFormat(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"capabilities"}, env.configPath)
	if err != nil {
		t.Fatalf("capabilities: %v", err)
	}
	requireContains(t, out, "mp4")
	requireContains(t, out, "gif")
	requireContains(t, out, "webm_alpha")
	requireContains(t, out, "MP4 (H.264)")
	requireContains(t, out, "3840x2160")
	requireContains(t, out, "Ultra")
}

func TestStatsOnEmptyDatabase(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"stats"}, env.configPath)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	requireContains(t, out, "Pending")
	requireContains(t, out, "Total")
	requireContains(t, out, "jobs.db")
}

func TestHealthPassesWithHealthyEncoder(t *testing.T) {
	env := setupCLITestEnv(t)
	env.cfg.FFmpeg.Binary = "/opt/holoexport/ffmpeg"
	writeTestConfig(t, env.configPath, env.cfg)

	restore := deps.SetProbeForTests(func(_ context.Context, _ string, args ...string) (string, error) {
		for _, arg := range args {
			if arg == "-codecs" {
				return "(encoders: libx264)\n(encoders: libvpx-vp9)", nil
			}
		}
		return "ffmpeg version 7.1", nil
	})
	defer restore()

	out, _, err := runCLI(t, []string{"health"}, env.configPath)
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	requireContains(t, out, "Holoexport Health")
	requireContains(t, out, "[OK]")
	requireContains(t, out, "FFmpeg")
}

func TestHealthFailsWhenEncoderMissing(t *testing.T) {
	env := setupCLITestEnv(t)

	restore := deps.SetProbeForTests(func(context.Context, string, ...string) (string, error) {
		return "", os.ErrNotExist
	})
	defer restore()
	t.Setenv("PATH", "")

	out, _, err := runCLI(t, []string{"health"}, env.configPath)
	if err == nil {
		t.Fatal("expected health to fail without an encoder")
	}
	requireContains(t, out, "[ERROR]")
	requireContains(t, err.Error(), "health checks failed")
}
