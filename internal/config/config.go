// Package config loads process configuration: a .env file, then an optional
// YAML file, then CHAPTERHOOK_* environment variables. Command line flags are
// applied on top by the caller.
//
// This is the configuration of the tool itself. Run settings such as the
// backend URL and chapter counter live in the settings store.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const envPrefix = "CHAPTERHOOK_"

// Config holds the process configuration
type Config struct {
	// StorePath is the sqlite settings database. ":memory:" keeps settings
	// for the lifetime of the process only.
	StorePath string `yaml:"store_path"`
	LogLevel  string `yaml:"log_level"`
	LogFile   string `yaml:"log_file"`

	Browser BrowserConfig `yaml:"browser"`

	// Hotkey triggers a run in the watch UI
	Hotkey string `yaml:"hotkey"`
	// Listen is the address remote page agents connect to; empty disables it
	Listen string `yaml:"listen"`
	// ReplyTimeout bounds agent replies; zero waits indefinitely
	ReplyTimeout time.Duration `yaml:"reply_timeout"`
	// BackendTimeout bounds each backend call; zero waits indefinitely
	BackendTimeout time.Duration `yaml:"backend_timeout"`
	// ArchiveDir keeps a JSON copy of every capture when set
	ArchiveDir string `yaml:"archive_dir"`
	// ExclusiveRuns ignores the hotkey while a run is in flight
	ExclusiveRuns bool `yaml:"exclusive_runs"`
}

// BrowserConfig configures the Chrome instance used for live tabs
type BrowserConfig struct {
	Headless    bool          `yaml:"headless"`
	Width       int           `yaml:"width"`
	Height      int           `yaml:"height"`
	UserAgent   string        `yaml:"user_agent"`
	LoadTimeout time.Duration `yaml:"load_timeout"`
}

// Default returns the configuration used when nothing is set
func Default() Config {
	return Config{
		StorePath: "chapterhook.db",
		LogLevel:  "info",
		Browser: BrowserConfig{
			Headless:    false,
			Width:       1280,
			Height:      900,
			LoadTimeout: 30 * time.Second,
		},
		Hotkey: "ctrl+t",
	}
}

// Load builds the configuration. path may be empty; a missing file at path
// is only an error when explicit is set.
func Load(path string, explicit bool) (Config, error) {
	cfg := Default()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist) && !explicit:
		default:
			return cfg, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Validate checks values that would otherwise fail much later
func (c Config) Validate() error {
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q", c.LogLevel)
	}
	if c.ReplyTimeout < 0 {
		return fmt.Errorf("reply timeout must not be negative")
	}
	if c.BackendTimeout < 0 {
		return fmt.Errorf("backend timeout must not be negative")
	}
	if c.StorePath == "" {
		return fmt.Errorf("store path is required")
	}
	return nil
}

func applyEnv(c *Config) error {
	var errs []error
	str := func(name string, dst *string) {
		if v, ok := lookup(name); ok {
			*dst = v
		}
	}
	boolean := func(name string, dst *bool) {
		if v, ok := lookup(name); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
				return
			}
			*dst = b
		}
	}
	integer := func(name string, dst *int) {
		if v, ok := lookup(name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
				return
			}
			*dst = n
		}
	}
	duration := func(name string, dst *time.Duration) {
		if v, ok := lookup(name); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
				return
			}
			*dst = d
		}
	}

	str("STORE", &c.StorePath)
	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_FILE", &c.LogFile)
	str("HOTKEY", &c.Hotkey)
	str("LISTEN", &c.Listen)
	str("ARCHIVE_DIR", &c.ArchiveDir)
	duration("REPLY_TIMEOUT", &c.ReplyTimeout)
	duration("BACKEND_TIMEOUT", &c.BackendTimeout)
	boolean("EXCLUSIVE_RUNS", &c.ExclusiveRuns)
	boolean("HEADLESS", &c.Browser.Headless)
	integer("WINDOW_WIDTH", &c.Browser.Width)
	integer("WINDOW_HEIGHT", &c.Browser.Height)
	str("USER_AGENT", &c.Browser.UserAgent)
	duration("LOAD_TIMEOUT", &c.Browser.LoadTimeout)

	return errors.Join(errs...)
}

func lookup(name string) (string, bool) {
	v, ok := os.LookupEnv(envPrefix + name)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}
