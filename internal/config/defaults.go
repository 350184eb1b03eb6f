package config

const (
	defaultStagingDir        = "~/.local/share/holoexport/staging"
	defaultExportDir         = "~/.local/share/holoexport/exports"
	defaultLogDir            = "~/.local/share/holoexport/logs"
	defaultAPIBind           = "127.0.0.1:8190"
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
	defaultProbeTimeout      = 5
	defaultMP4Timeout        = 300
	defaultGIFPaletteTimeout = 60
	defaultGIFEncodeTimeout  = 120
	defaultWebMTimeout       = 600
	defaultMaxConcurrent     = 2
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StagingDir: defaultStagingDir,
			ExportDir:  defaultExportDir,
			LogDir:     defaultLogDir,
			APIBind:    defaultAPIBind,
		},
		FFmpeg: FFmpeg{
			ProbeTimeout:      defaultProbeTimeout,
			MP4Timeout:        defaultMP4Timeout,
			GIFPaletteTimeout: defaultGIFPaletteTimeout,
			GIFEncodeTimeout:  defaultGIFEncodeTimeout,
			WebMTimeout:       defaultWebMTimeout,
		},
		Workers: Workers{
			MaxConcurrentExports: defaultMaxConcurrent,
		},
		Server: Server{
			AllowedOrigins: []string{"*"},
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
