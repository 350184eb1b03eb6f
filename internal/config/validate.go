package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateFFmpeg(); err != nil {
		return err
	}
	if err := c.validateWorkers(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if c.Paths.StagingDir == "" {
		return errors.New("paths.staging_dir must be set")
	}
	if c.Paths.ExportDir == "" {
		return errors.New("paths.export_dir must be set")
	}
	if c.Paths.StagingDir == c.Paths.ExportDir {
		return errors.New("paths.staging_dir and paths.export_dir must differ")
	}
	return nil
}

func (c *Config) validateFFmpeg() error {
	return ensurePositiveMap(map[string]int{
		"ffmpeg.probe_timeout":       c.FFmpeg.ProbeTimeout,
		"ffmpeg.mp4_timeout":         c.FFmpeg.MP4Timeout,
		"ffmpeg.gif_palette_timeout": c.FFmpeg.GIFPaletteTimeout,
		"ffmpeg.gif_encode_timeout":  c.FFmpeg.GIFEncodeTimeout,
		"ffmpeg.webm_timeout":        c.FFmpeg.WebMTimeout,
	})
}

func (c *Config) validateWorkers() error {
	if c.Workers.MaxConcurrentExports <= 0 {
		return errors.New("workers.max_concurrent_exports must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
