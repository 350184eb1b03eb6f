package export

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"holoexport/internal/config"
	"holoexport/internal/deps"
	"holoexport/internal/logging"
)

const encoderPath = "/opt/holoexport/ffmpeg"

type exportEnv struct {
	cfg    *config.Config
	mp4    *MP4Strategy
	gif    *GIFStrategy
	webm   *WebMAlphaStrategy
	source string
	outDir string
}

func newExportEnv(t *testing.T) *exportEnv {
	t.Helper()
	cfg := config.Default()
	cfg.FFmpeg.Binary = encoderPath

	restore := deps.SetProbeForTests(func(context.Context, string, ...string) (string, error) {
		return "ffmpeg version 6.1.1 Copyright (c) 2000-2023 the FFmpeg developers\n", nil
	})
	t.Cleanup(restore)

	base := t.TempDir()
	source := filepath.Join(base, "render.mov")
	if err := os.WriteFile(source, []byte("frames"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	locator := deps.NewLocator(&cfg, logging.NewNop())
	return &exportEnv{
		cfg:    &cfg,
		mp4:    NewMP4Strategy(&cfg, locator, logging.NewNop()),
		gif:    NewGIFStrategy(&cfg, locator, logging.NewNop()),
		webm:   NewWebMAlphaStrategy(&cfg, locator, logging.NewNop()),
		source: source,
		outDir: base,
	}
}

// recordingRunner stands in for the encoder: it captures every argv and
// writes the output file (the last argument) so the success path has an
// artifact to stat.
type recordingRunner struct {
	mu      sync.Mutex
	calls   [][]string
	failAt  int // 1-based call index that fails, 0 for never
	failMsg string
}

func (r *recordingRunner) install(t *testing.T) {
	t.Helper()
	restore := SetRunCommandForTests(func(_ context.Context, binary string, args []string) (string, error) {
		r.mu.Lock()
		call := len(r.calls) + 1
		r.calls = append(r.calls, append([]string{binary}, args...))
		r.mu.Unlock()
		if r.failAt != 0 && call >= r.failAt {
			return r.failMsg, errors.New("exit status 1")
		}
		output := args[len(args)-1]
		if err := os.WriteFile(output, []byte("artifact"), 0o644); err != nil {
			return "", err
		}
		return "", nil
	})
	t.Cleanup(restore)
}

func (r *recordingRunner) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func (r *recordingRunner) call(index int) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[index]
}

func argsContain(args []string, want ...string) bool {
	joined := " " + strings.Join(args, " ") + " "
	for _, fragment := range want {
		if !strings.Contains(joined, fragment) {
			return false
		}
	}
	return true
}

func TestMP4ExportSuccess(t *testing.T) {
	env := newExportEnv(t)
	runner := &recordingRunner{}
	runner.install(t)

	output := filepath.Join(env.outDir, "clip.mp4")
	opts := validOptions(QualityMedium, 1280, 720)
	result := env.mp4.Export(context.Background(), env.source, output, opts)
	if !result.Success {
		t.Fatalf("export failed: %s", result.Error)
	}
	if result.Format != FormatMP4 || result.OutputPath != output {
		t.Fatalf("unexpected result identity: %+v", result)
	}
	if result.Width != 1280 || result.Height != 720 {
		t.Fatalf("result resolution = %dx%d, want 1280x720", result.Width, result.Height)
	}
	if result.SizeBytes == 0 {
		t.Fatal("expected a non-empty artifact size")
	}
	if result.Metadata["preset"] != "medium" || result.Metadata["codec"] != "libx264" {
		t.Fatalf("unexpected metadata: %#v", result.Metadata)
	}

	if runner.callCount() != 1 {
		t.Fatalf("expected a single invocation, got %d", runner.callCount())
	}
	args := runner.call(0)
	if args[0] != encoderPath {
		t.Fatalf("invoked %q, want %q", args[0], encoderPath)
	}
	if !argsContain(args, "-pix_fmt yuv420p", "-movflags +faststart", "-g 60", "-map_metadata -1", "scale=1280:720") {
		t.Fatalf("missing expected encode flags: %v", args)
	}

	stats := env.mp4.Stats()
	if stats.Attempts != 1 || stats.Successes != 1 || stats.Failures != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.TotalBytes == 0 {
		t.Fatal("expected cumulative bytes to advance")
	}
}

func TestGIFExportRunsTwoPassesAndRemovesPalette(t *testing.T) {
	env := newExportEnv(t)
	runner := &recordingRunner{}
	runner.install(t)

	output := filepath.Join(env.outDir, "clip.gif")
	result := env.gif.Export(context.Background(), env.source, output, validOptions(QualityMedium, 480, 480))
	if !result.Success {
		t.Fatalf("export failed: %s", result.Error)
	}
	if runner.callCount() != 2 {
		t.Fatalf("expected two passes, got %d", runner.callCount())
	}
	if !argsContain(runner.call(0), "palettegen=stats_mode=diff", "flags=lanczos") {
		t.Fatalf("palette pass missing flags: %v", runner.call(0))
	}
	if !argsContain(runner.call(1), "paletteuse=dither=bayer:bayer_scale=5:diff_mode=rectangle") {
		t.Fatalf("encode pass missing flags: %v", runner.call(1))
	}
	if _, err := os.Stat(output + ".palette.png"); !os.IsNotExist(err) {
		t.Fatal("palette intermediate not cleaned up")
	}
	if result.Width != 480 || result.Height != 480 {
		t.Fatalf("unexpected gif resolution: %dx%d", result.Width, result.Height)
	}
}

func TestGIFPaletteRemovedOnEncodeFailure(t *testing.T) {
	env := newExportEnv(t)
	runner := &recordingRunner{failAt: 2, failMsg: "Error: paletteuse filter rejected input"}
	runner.install(t)

	output := filepath.Join(env.outDir, "clip.gif")
	result := env.gif.Export(context.Background(), env.source, output, validOptions(QualityLow, 320, 320))
	if result.Success {
		t.Fatal("expected failure")
	}
	if !strings.Contains(result.Error, "paletteuse filter rejected input") {
		t.Fatalf("diagnostic text not captured: %q", result.Error)
	}
	if _, err := os.Stat(output + ".palette.png"); !os.IsNotExist(err) {
		t.Fatal("palette intermediate not cleaned up after failure")
	}
}

func TestGIFUltraRejectedBeforeInvocation(t *testing.T) {
	env := newExportEnv(t)
	runner := &recordingRunner{}
	runner.install(t)

	result := env.gif.Export(context.Background(), env.source, filepath.Join(env.outDir, "clip.gif"), validOptions(QualityUltra, 640, 640))
	if result.Success {
		t.Fatal("expected validation failure")
	}
	if !strings.Contains(result.Error, "ultra") {
		t.Fatalf("error does not name the rejected quality: %q", result.Error)
	}
	if runner.callCount() != 0 {
		t.Fatalf("encoder invoked %d times before validation", runner.callCount())
	}

	stats := env.gif.Stats()
	if stats.Attempts != 1 || stats.Failures != 1 {
		t.Fatalf("validation failure not recorded: %+v", stats)
	}
}

func TestWebMAlphaForcedOn(t *testing.T) {
	env := newExportEnv(t)
	runner := &recordingRunner{}
	runner.install(t)

	output := filepath.Join(env.outDir, "clip.webm")
	opts := validOptions(QualityHigh, 1920, 1080)
	opts.Alpha = false
	result := env.webm.Export(context.Background(), env.source, output, opts)
	if !result.Success {
		t.Fatalf("export failed: %s", result.Error)
	}
	if result.Metadata["alpha"] != true {
		t.Fatalf("alpha not recorded as forced on: %#v", result.Metadata)
	}
	compatible, ok := result.Metadata["compatible_with"].([]string)
	if !ok || len(compatible) == 0 {
		t.Fatalf("compatible tool list missing: %#v", result.Metadata)
	}
	if !argsContain(runner.call(0), "-pix_fmt yuva420p", "-auto-alt-ref 1", "-lag-in-frames 25", "-c:v libvpx-vp9") {
		t.Fatalf("missing alpha encode flags: %v", runner.call(0))
	}
}

func TestExportEncoderUnavailable(t *testing.T) {
	cfg := config.Default()
	restore := deps.SetProbeForTests(func(context.Context, string, ...string) (string, error) {
		return "", errors.New("no such file or directory")
	})
	t.Cleanup(restore)
	t.Setenv("PATH", "")

	base := t.TempDir()
	source := filepath.Join(base, "render.mov")
	if err := os.WriteFile(source, []byte("frames"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	runner := &recordingRunner{}
	runner.install(t)

	locator := deps.NewLocator(&cfg, logging.NewNop())
	strategy := NewMP4Strategy(&cfg, locator, logging.NewNop())
	result := strategy.Export(context.Background(), source, filepath.Join(base, "clip.mp4"), validOptions(QualityLow, 854, 480))
	if result.Success {
		t.Fatal("expected failure when encoder is unavailable")
	}
	if !strings.Contains(result.Error, "install ffmpeg") {
		t.Fatalf("remediation missing from error: %q", result.Error)
	}
	if runner.callCount() != 0 {
		t.Fatal("encoder invoked despite being unresolved")
	}
}

func TestExportMissingSource(t *testing.T) {
	env := newExportEnv(t)
	runner := &recordingRunner{}
	runner.install(t)

	result := env.mp4.Export(context.Background(), filepath.Join(env.outDir, "absent.mov"), filepath.Join(env.outDir, "clip.mp4"), validOptions(QualityLow, 854, 480))
	if result.Success {
		t.Fatal("expected failure for missing source")
	}
	if !strings.Contains(result.Error, "not readable") {
		t.Fatalf("unexpected error: %q", result.Error)
	}
}

func TestExportTimeoutIsFailure(t *testing.T) {
	env := newExportEnv(t)
	env.cfg.FFmpeg.MP4Timeout = 0

	restore := SetRunCommandForTests(func(ctx context.Context, _ string, _ []string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	t.Cleanup(restore)

	result := env.mp4.Export(context.Background(), env.source, filepath.Join(env.outDir, "clip.mp4"), validOptions(QualityLow, 854, 480))
	if result.Success {
		t.Fatal("expected timeout failure")
	}
	if !strings.Contains(result.Error, "exceeded") {
		t.Fatalf("timeout not surfaced: %q", result.Error)
	}
}

func TestExportCleanExitWithoutArtifactIsFailure(t *testing.T) {
	env := newExportEnv(t)
	restore := SetRunCommandForTests(func(context.Context, string, []string) (string, error) {
		return "", nil
	})
	t.Cleanup(restore)

	result := env.mp4.Export(context.Background(), env.source, filepath.Join(env.outDir, "clip.mp4"), validOptions(QualityLow, 854, 480))
	if result.Success {
		t.Fatal("expected failure when no artifact was produced")
	}
	if !strings.Contains(result.Error, "no output") {
		t.Fatalf("unexpected error: %q", result.Error)
	}
}
