package deps

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"holoexport/internal/config"
	"holoexport/internal/logging"
	"holoexport/internal/services"
)

// Encoder source classifications.
const (
	SourceBundled = "bundled"
	SourceSystem  = "system"
	SourceNone    = "none"
)

// Encoder health classifications.
const (
	HealthHealthy  = "healthy"
	HealthDegraded = "degraded"
	HealthCritical = "critical"
)

// RequiredCodecs lists the codec identifiers the MP4 and alpha-WebM export
// strategies depend on. HealthCheck string-matches them against the encoder's
// codec listing.
var RequiredCodecs = []string{"libx264", "libvpx-vp9"}

// InstallHint is the remediation instruction surfaced whenever the encoder
// cannot be resolved.
const InstallHint = "install ffmpeg (Linux: sudo apt install -y ffmpeg, macOS: brew install ffmpeg) or set ffmpeg.binary in the holoexport config"

// Handle identifies a resolved encoder executable.
type Handle struct {
	Path    string
	Version string
	Source  string
}

// Health describes encoder availability and codec coverage.
type Health struct {
	Installed       bool
	Source          string
	Version         string
	Path            string
	CodecsAvailable []string
	CodecsMissing   []string
	Status          string
	Remediation     string
}

// Locator discovers the ffmpeg binary and caches the resolved handle.
// Resolution order: configured override, bundled directory, a copy next to
// the running executable, then the system PATH.
type Locator struct {
	override     string
	bundledDir   string
	probeTimeout time.Duration
	logger       *slog.Logger

	mu       sync.Mutex
	handle   Handle
	resolved bool
}

// probeCommand runs the encoder with the given args and returns combined
// output. Package-level so tests can substitute a fake.
var probeCommand = func(ctx context.Context, path string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, path, args...)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// SetProbeForTests overrides the probe runner during tests.
func SetProbeForTests(fn func(context.Context, string, ...string) (string, error)) func() {
	previous := probeCommand
	probeCommand = fn
	return func() {
		probeCommand = previous
	}
}

// NewLocator constructs an encoder locator from application configuration.
func NewLocator(cfg *config.Config, logger *slog.Logger) *Locator {
	loc := &Locator{
		probeTimeout: 5 * time.Second,
		logger:       logging.NewComponentLogger(logger, "deps"),
	}
	if cfg != nil {
		loc.override = cfg.FFmpeg.Binary
		loc.bundledDir = cfg.FFmpeg.BundledDir
		if timeout := cfg.ProbeTimeout(); timeout > 0 {
			loc.probeTimeout = timeout
		}
	}
	return loc
}

// Resolve discovers the encoder binary, caching the result. A failed
// resolution returns an unresolved handle with Source=none and no error;
// callers decide how to surface the absence.
func (l *Locator) Resolve(ctx context.Context) Handle {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.resolved && l.handle.Source != SourceNone {
		return l.handle
	}

	l.handle = l.resolveLocked(ctx)
	l.resolved = true
	return l.handle
}

func (l *Locator) resolveLocked(ctx context.Context) Handle {
	for _, candidate := range l.candidates() {
		version, err := l.probeVersion(ctx, candidate.path)
		if err != nil {
			l.logger.Debug("encoder candidate rejected",
				logging.String("path", candidate.path),
				logging.Error(err),
			)
			continue
		}
		l.logger.Info("encoder resolved",
			logging.String("path", candidate.path),
			logging.String(logging.FieldSource, candidate.source),
			logging.String("version", version),
		)
		return Handle{Path: candidate.path, Version: version, Source: candidate.source}
	}
	l.logger.Warn("encoder unavailable", logging.String("remediation", InstallHint))
	return Handle{Source: SourceNone}
}

type candidate struct {
	path   string
	source string
}

func (l *Locator) candidates() []candidate {
	var out []candidate
	if l.override != "" {
		out = append(out, candidate{path: l.override, source: SourceBundled})
	}
	name := executableName("ffmpeg")
	if l.bundledDir != "" {
		out = append(out, candidate{path: filepath.Join(l.bundledDir, name), source: SourceBundled})
	}
	if self, err := os.Executable(); err == nil {
		sidecar := filepath.Join(filepath.Dir(self), name)
		if info, statErr := os.Stat(sidecar); statErr == nil && isExecutable(info) {
			out = append(out, candidate{path: sidecar, source: SourceBundled})
		}
	}
	if systemPath, err := exec.LookPath("ffmpeg"); err == nil {
		out = append(out, candidate{path: systemPath, source: SourceSystem})
	}
	return out
}

func (l *Locator) probeVersion(ctx context.Context, path string) (string, error) {
	probeCtx, cancel := context.WithTimeout(ctx, l.probeTimeout)
	defer cancel()
	out, err := probeCommand(probeCtx, path, "-version")
	if err != nil {
		return "", fmt.Errorf("version probe: %w", err)
	}
	return parseVersion(out), nil
}

// Ensure returns the resolved handle or a configuration error carrying the
// install instruction. Strategies call this before every invocation.
func (l *Locator) Ensure(ctx context.Context) (Handle, error) {
	handle := l.Resolve(ctx)
	if handle.Source == SourceNone {
		return handle, services.Wrap(services.ErrConfiguration, "deps", "resolve", InstallHint, nil)
	}
	return handle, nil
}

// HealthCheck probes the resolved encoder for the required codec set.
func (l *Locator) HealthCheck(ctx context.Context) Health {
	handle := l.Resolve(ctx)
	if handle.Source == SourceNone {
		return Health{
			Source:        SourceNone,
			CodecsMissing: append([]string(nil), RequiredCodecs...),
			Status:        HealthCritical,
			Remediation:   InstallHint,
		}
	}

	health := Health{
		Installed: true,
		Source:    handle.Source,
		Version:   handle.Version,
		Path:      handle.Path,
		Status:    HealthHealthy,
	}

	probeCtx, cancel := context.WithTimeout(ctx, l.probeTimeout)
	defer cancel()
	out, err := probeCommand(probeCtx, handle.Path, "-codecs")
	if err != nil {
		health.CodecsMissing = append([]string(nil), RequiredCodecs...)
		health.Status = HealthDegraded
		health.Remediation = fmt.Sprintf("codec listing failed: %v", err)
		return health
	}

	for _, codec := range RequiredCodecs {
		if strings.Contains(out, codec) {
			health.CodecsAvailable = append(health.CodecsAvailable, codec)
		} else {
			health.CodecsMissing = append(health.CodecsMissing, codec)
		}
	}
	if len(health.CodecsMissing) > 0 {
		health.Status = HealthDegraded
		health.Remediation = fmt.Sprintf("reinstall ffmpeg with %s support", strings.Join(health.CodecsMissing, ", "))
	}
	return health
}

// Invalidate clears the cached handle so the next Resolve re-discovers.
func (l *Locator) Invalidate() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.resolved = false
	l.handle = Handle{}
}

func parseVersion(output string) string {
	line := output
	if idx := strings.IndexByte(line, '\n'); idx >= 0 {
		line = line[:idx]
	}
	const marker = "version"
	idx := strings.Index(line, marker)
	if idx < 0 {
		return "unknown"
	}
	fields := strings.Fields(line[idx+len(marker):])
	if len(fields) == 0 {
		return "unknown"
	}
	return fields[0]
}

func executableName(base string) string {
	if runtime.GOOS == "windows" {
		return base + ".exe"
	}
	return base
}

func isExecutable(info os.FileInfo) bool {
	if info == nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
