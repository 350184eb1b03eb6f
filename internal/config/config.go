package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	StagingDir string `toml:"staging_dir"`
	ExportDir  string `toml:"export_dir"`
	LogDir     string `toml:"log_dir"`
	APIBind    string `toml:"api_bind"`
}

// FFmpeg contains configuration for locating and invoking the encoder binary.
type FFmpeg struct {
	// Binary overrides discovery entirely when set.
	Binary string `toml:"binary"`
	// BundledDir is searched for a bundled ffmpeg copy before the system PATH.
	BundledDir string `toml:"bundled_dir"`
	// ProbeTimeout bounds version/codec probes, in seconds.
	ProbeTimeout int `toml:"probe_timeout"`
	// MP4Timeout bounds a single-pass MP4 encode, in seconds.
	MP4Timeout int `toml:"mp4_timeout"`
	// GIFPaletteTimeout bounds the palette analysis pass, in seconds.
	GIFPaletteTimeout int `toml:"gif_palette_timeout"`
	// GIFEncodeTimeout bounds the palette-driven encode pass, in seconds.
	GIFEncodeTimeout int `toml:"gif_encode_timeout"`
	// WebMTimeout bounds a VP9 alpha encode, in seconds.
	WebMTimeout int `toml:"webm_timeout"`
}

// Workers contains configuration for background export execution.
type Workers struct {
	// MaxConcurrentExports caps simultaneous ffmpeg invocations.
	MaxConcurrentExports int `toml:"max_concurrent_exports"`
}

// Server contains configuration for the HTTP API surface.
type Server struct {
	AllowedOrigins []string `toml:"allowed_origins"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for holoexport.
//
// Configuration sections by subsystem:
//   - Paths: staging/export/log directories and API bind address
//   - FFmpeg: encoder discovery overrides and per-format timeouts
//   - Workers: concurrency cap for background exports
//   - Server: HTTP API settings
//   - Logging: log format and level
type Config struct {
	Paths   Paths   `toml:"paths"`
	FFmpeg  FFmpeg  `toml:"ffmpeg"`
	Workers Workers `toml:"workers"`
	Server  Server  `toml:"server"`
	Logging Logging `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/holoexport/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("holoexport.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StagingDir, c.Paths.ExportDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// ProbeTimeout returns the encoder probe timeout as a duration.
func (c *Config) ProbeTimeout() time.Duration {
	return time.Duration(c.FFmpeg.ProbeTimeout) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
