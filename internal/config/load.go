package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// legacyName is the key=value file the original Windows viewer kept next to
// its executable. It is read when no YAML config exists.
const legacyName = "config.cfg"

// Load builds the configuration from defaults, then the first config file
// found, then command-line flags.
func Load() (*Config, error) {
	cfg := Default()

	path := ConfigPath()
	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", path, err)
		}
	}

	applyFlags(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// findConfigFile returns the first existing candidate, or "".
func findConfigFile() string {
	for _, p := range []string{
		"config.yaml",
		filepath.Join(ConfigDir(), "config.yaml"),
		legacyName,
	} {
		if st, err := os.Stat(p); err == nil && !st.IsDir() {
			return p
		}
	}
	return ""
}

// ConfigDir returns the per-user directory the viewer saves its config in.
func ConfigDir() string {
	home, _ := os.UserHomeDir()
	switch runtime.GOOS {
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "TYViewer")
		}
		return filepath.Join(home, "AppData", "Roaming", "TYViewer")
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "TYViewer")
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "tyviewer")
	}
	return filepath.Join(home, ".config", "tyviewer")
}

// loadFromFile merges the file at path into cfg. Files ending in .cfg use
// the legacy key=value syntax, everything else is YAML.
func loadFromFile(cfg *Config, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".cfg") {
		return decodeLegacy(cfg, f)
	}

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parsing yaml: %w", err)
	}
	return nil
}

// decodeLegacy reads key=value lines. Blank lines and lines starting with
// '#' or ';' are skipped, unknown keys are ignored.
func decodeLegacy(cfg *Config, r io.Reader) error {
	sc := bufio.NewScanner(r)
	for line := 1; sc.Scan(); line++ {
		text := strings.TrimSpace(sc.Text())
		if text == "" || text[0] == '#' || text[0] == ';' {
			continue
		}
		key, value, ok := strings.Cut(text, "=")
		if !ok {
			return fmt.Errorf("line %d: missing '='", line)
		}
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)

		var err error
		switch strings.ToLower(key) {
		case "ty1_archive":
			cfg.Data.TY1Archive = value
		case "ty2_archive":
			cfg.Data.TY2Archive = value
		case "model":
			cfg.Viewer.Model = value
		case "windowresolutionx", "width":
			cfg.Viewer.Width, err = strconv.Atoi(value)
		case "windowresolutiony", "height":
			cfg.Viewer.Height, err = strconv.Atoi(value)
		case "fullscreen":
			cfg.Viewer.Fullscreen, err = strconv.ParseBool(value)
		}
		if err != nil {
			return fmt.Errorf("line %d: %s: %w", line, key, err)
		}
	}
	return sc.Err()
}
