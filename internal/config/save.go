package config

import (
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Save writes the config back to the YAML file given with --config, or to
// the user's config directory. A legacy config.cfg is never overwritten.
func (c *Config) Save() error {
	if p := ConfigPath(); p != "" && !strings.EqualFold(filepath.Ext(p), ".cfg") {
		return c.SaveTo(p)
	}
	return c.SaveTo(filepath.Join(ConfigDir(), "config.yaml"))
}

// SaveTo writes the config to a specific path.
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Remember records the model on screen so the next start shows it again.
func (c *Config) Remember(slot, model string) {
	c.Viewer.Slot = slot
	c.Viewer.Model = model
}
