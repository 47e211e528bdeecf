// Package config loads the editor configuration: a TOML file in the XDG
// config directory, overridden by ARBOR_* environment variables, overridden
// again by CLI flags at the call site. A missing or unreadable file means
// defaults, never an error.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
)

// Config holds every tunable of the editor and CLI.
type Config struct {
	Window WindowConfig `toml:"window"`
	Store  StoreConfig  `toml:"store"`
	Theme  ThemeConfig  `toml:"theme"`
	Rules  RulesConfig  `toml:"rules"`
	Debug  DebugConfig  `toml:"debug"`
}

// WindowConfig controls the editor window.
type WindowConfig struct {
	Title  string `toml:"title" env:"ARBOR_WINDOW_TITLE"`
	Width  int    `toml:"width" env:"ARBOR_WINDOW_WIDTH"`
	Height int    `toml:"height" env:"ARBOR_WINDOW_HEIGHT"`
}

// StoreConfig controls persistence.
type StoreConfig struct {
	// Dir is the Badger database directory.
	Dir string `toml:"dir" env:"ARBOR_STORE_DIR"`
}

// ThemeConfig points at optional art assets. Every path is optional; an
// empty path selects the builtin procedural look.
type ThemeConfig struct {
	Background string `toml:"background" env:"ARBOR_THEME_BACKGROUND"` // background artwork image
	PanelFrame string `toml:"panel_frame" env:"ARBOR_THEME_PANEL"`     // nine-slice dialog frame image
	IconAtlas  string `toml:"icon_atlas" env:"ARBOR_THEME_ATLAS"`      // TexturePacker JSON for level icons
	IconPage   string `toml:"icon_page" env:"ARBOR_THEME_ATLAS_PAGE"`  // atlas page image
	Font       string `toml:"font" env:"ARBOR_THEME_FONT"`             // BMFont .fnt file; empty uses the builtin TTF
}

// RulesConfig controls the Lua unlock-rule evaluator.
type RulesConfig struct {
	Enabled bool `toml:"enabled" env:"ARBOR_RULES"`
}

// DebugConfig controls diagnostics.
type DebugConfig struct {
	Stats bool   `toml:"stats" env:"ARBOR_DEBUG_STATS"` // per-frame render stats on stderr
	Log   string `toml:"log" env:"ARBOR_LOG"`           // slog level: debug, info, warn, error
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Window: WindowConfig{Title: "Arbor", Width: 1280, Height: 800},
		Store:  StoreConfig{Dir: defaultStoreDir()},
		Rules:  RulesConfig{Enabled: true},
		Debug:  DebugConfig{Log: "info"},
	}
}

// Dir returns the arbor config directory.
func Dir() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "arbor")
}

func defaultStoreDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dir, "arbor")
}

// Load reads the config file at the default path and applies environment
// overrides. Defaults are returned when the file is missing; a file that
// fails to parse falls back to defaults with a warning on stderr.
func Load() Config {
	return LoadFrom(filepath.Join(Dir(), "config.toml"))
}

// LoadFrom is Load with an explicit file path.
func LoadFrom(path string) Config {
	cfg := Default()

	if data, err := os.ReadFile(path); err == nil {
		if err := toml.Unmarshal(data, &cfg); err != nil {
			fmt.Fprintf(os.Stderr, "arbor: %s: %v (using defaults)\n", path, err)
			cfg = Default()
		}
	}

	if err := env.Parse(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "arbor: environment overrides: %v\n", err)
	}
	return cfg
}
