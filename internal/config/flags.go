package config

import "flag"

var (
	flagConfig     = flag.String("config", "", "Path to config file")
	flagDebug      = flag.Bool("debug", false, "Enable debug logging")
	flagTY1        = flag.String("ty1", "", "Path to the TY1 archive")
	flagTY2        = flag.String("ty2", "", "Path to the TY2 archive")
	flagModel      = flag.String("model", "", "Model to show on startup")
	flagSlot       = flag.String("slot", "", "Archive slot to start in (ty1 or ty2)")
	flagWindowed   = flag.Bool("windowed", false, "Run in windowed mode")
	flagFullscreen = flag.Bool("fullscreen", false, "Run in fullscreen mode")
	flagWidth      = flag.Int("width", 0, "Window width")
	flagHeight     = flag.Int("height", 0, "Window height")
	flagExportDir  = flag.String("export-dir", "", "Directory for exported models")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagTY1 != "" {
		cfg.Data.TY1Archive = *flagTY1
	}
	if *flagTY2 != "" {
		cfg.Data.TY2Archive = *flagTY2
	}
	if *flagModel != "" {
		cfg.Viewer.Model = *flagModel
	}
	if *flagSlot != "" {
		cfg.Viewer.Slot = *flagSlot
	}
	if *flagWindowed {
		cfg.Viewer.Fullscreen = false
	}
	if *flagFullscreen {
		cfg.Viewer.Fullscreen = true
	}
	if *flagWidth > 0 {
		cfg.Viewer.Width = *flagWidth
	}
	if *flagHeight > 0 {
		cfg.Viewer.Height = *flagHeight
	}
	if *flagExportDir != "" {
		cfg.Export.Directory = *flagExportDir
	}
}
