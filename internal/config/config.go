// Package config handles viewer configuration loading and saving.
package config

import (
	"fmt"
	"strings"
)

// Config holds all viewer settings.
type Config struct {
	Data    DataConfig    `yaml:"data"`
	Viewer  ViewerConfig  `yaml:"viewer"`
	Export  ExportConfig  `yaml:"export"`
	Logging LoggingConfig `yaml:"logging"`
}

// DataConfig holds game archive paths.
type DataConfig struct {
	TY1Archive string `yaml:"ty1_archive"` // Data_PC.rkv of the first game
	TY2Archive string `yaml:"ty2_archive"`
}

// ViewerConfig holds window and scene settings.
type ViewerConfig struct {
	Width      int        `yaml:"width"`
	Height     int        `yaml:"height"`
	Fullscreen bool       `yaml:"fullscreen"`
	VSync      bool       `yaml:"vsync"`
	FOV        float32    `yaml:"fov"`
	Background [3]float32 `yaml:"background"`

	// Last model shown and the archive slot it came from.
	Model string `yaml:"model"`
	Slot  string `yaml:"slot"`
}

// ExportConfig holds model export settings.
type ExportConfig struct {
	Directory string `yaml:"directory"`
	Format    string `yaml:"format"` // obj or gltf
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Viewer: ViewerConfig{
			Width:      1280,
			Height:     720,
			VSync:      true,
			FOV:        60,
			Background: [3]float32{0.25, 0.35, 0.45},
			Slot:       "ty1",
		},
		Export: ExportConfig{
			Directory: "export",
			Format:    "obj",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Validate reports the first setting that cannot be used.
func (c *Config) Validate() error {
	if c.Viewer.Width <= 0 || c.Viewer.Height <= 0 {
		return fmt.Errorf("invalid window size %dx%d", c.Viewer.Width, c.Viewer.Height)
	}
	if c.Viewer.FOV <= 0 || c.Viewer.FOV >= 180 {
		return fmt.Errorf("invalid field of view %v", c.Viewer.FOV)
	}
	switch strings.ToLower(c.Viewer.Slot) {
	case "ty1", "ty2":
	default:
		return fmt.Errorf("invalid archive slot %q", c.Viewer.Slot)
	}
	switch strings.ToLower(c.Export.Format) {
	case "obj", "gltf":
	default:
		return fmt.Errorf("invalid export format %q", c.Export.Format)
	}
	for i, v := range c.Viewer.Background {
		if v < 0 || v > 1 {
			return fmt.Errorf("background channel %d out of range: %v", i, v)
		}
	}
	return nil
}

// Archive returns the configured archive path for a slot name.
func (c *Config) Archive(slot string) string {
	if strings.EqualFold(slot, "ty2") {
		return c.Data.TY2Archive
	}
	return c.Data.TY1Archive
}
