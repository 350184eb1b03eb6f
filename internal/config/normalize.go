package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeFFmpeg(); err != nil {
		return err
	}
	c.normalizeWorkers()
	c.normalizeServer()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StagingDir) == "" {
		c.Paths.StagingDir = defaultStagingDir
	}
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ExportDir) == "" {
		c.Paths.ExportDir = defaultExportDir
	}
	if c.Paths.ExportDir, err = expandPath(c.Paths.ExportDir); err != nil {
		return fmt.Errorf("paths.export_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeFFmpeg() error {
	var err error
	c.FFmpeg.Binary = strings.TrimSpace(c.FFmpeg.Binary)
	if c.FFmpeg.Binary != "" {
		if c.FFmpeg.Binary, err = expandPath(c.FFmpeg.Binary); err != nil {
			return fmt.Errorf("ffmpeg.binary: %w", err)
		}
	}
	c.FFmpeg.BundledDir = strings.TrimSpace(c.FFmpeg.BundledDir)
	if c.FFmpeg.BundledDir != "" {
		if c.FFmpeg.BundledDir, err = expandPath(c.FFmpeg.BundledDir); err != nil {
			return fmt.Errorf("ffmpeg.bundled_dir: %w", err)
		}
	}
	if c.FFmpeg.ProbeTimeout <= 0 {
		c.FFmpeg.ProbeTimeout = defaultProbeTimeout
	}
	if c.FFmpeg.MP4Timeout <= 0 {
		c.FFmpeg.MP4Timeout = defaultMP4Timeout
	}
	if c.FFmpeg.GIFPaletteTimeout <= 0 {
		c.FFmpeg.GIFPaletteTimeout = defaultGIFPaletteTimeout
	}
	if c.FFmpeg.GIFEncodeTimeout <= 0 {
		c.FFmpeg.GIFEncodeTimeout = defaultGIFEncodeTimeout
	}
	if c.FFmpeg.WebMTimeout <= 0 {
		c.FFmpeg.WebMTimeout = defaultWebMTimeout
	}
	return nil
}

func (c *Config) normalizeWorkers() {
	if c.Workers.MaxConcurrentExports <= 0 {
		c.Workers.MaxConcurrentExports = defaultMaxConcurrent
	}
}

func (c *Config) normalizeServer() {
	origins := make([]string, 0, len(c.Server.AllowedOrigins))
	for _, origin := range c.Server.AllowedOrigins {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c.Server.AllowedOrigins = origins
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
