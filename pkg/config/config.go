// Package config loads scaf settings from YAML files and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/ormasoftchile/scaf/pkg/execrunner"
)

// Dir is the per-project scaf directory.
const Dir = ".scaf"

// FileName is the config file name in both the user and project locations.
const FileName = "config.yaml"

// Environment variables that override file settings.
const (
	EnvShell       = "SCAF_SHELL"
	EnvExecTimeout = "SCAF_EXEC_TIMEOUT"
	EnvLogLevel    = "SCAF_LOG_LEVEL"
	EnvEngine      = "SCAF_ENGINE"
)

// Config holds the merged settings.
type Config struct {
	// Shell runs exec commands. Empty selects bash; "builtin" selects the
	// embedded interpreter.
	Shell       string   `yaml:"shell,omitempty"`
	ExecTimeout Duration `yaml:"exec-timeout,omitempty"`
	LogLevel    string   `yaml:"log-level,omitempty"`
	// Engine is the template engine for action files that do not name one.
	Engine     string   `yaml:"engine,omitempty"`
	Ignore     []string `yaml:"ignore,omitempty"`
	Populators []string `yaml:"populators,omitempty"`
}

// Duration is a time.Duration read from strings like "90s" or bare seconds.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	v, err := parseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if v, err := time.ParseDuration(s); err == nil {
		return v, nil
	}
	if secs, err := strconv.Atoi(s); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return 0, fmt.Errorf("invalid duration %q", s)
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		ExecTimeout: Duration(execrunner.DefaultTimeout),
		LogLevel:    "warn",
		Engine:      "mustache",
	}
}

// Timeout returns the exec timeout as a time.Duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.ExecTimeout)
}

// Load merges, in increasing priority: defaults, the user config, the
// project config under workingDir, then environment variables. A .env file
// in workingDir is loaded first; it never overrides variables already set.
func Load(fsys afero.Fs, workingDir string) (*Config, error) {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	loadDotEnv(fsys, workingDir)

	cfg := Default()
	for _, path := range []string{UserPath(), ProjectPath(workingDir)} {
		if path == "" {
			continue
		}
		if err := loadFile(fsys, path, cfg); err != nil {
			return nil, err
		}
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// UserPath is $XDG_CONFIG_HOME/scaf/config.yaml.
func UserPath() string {
	home := os.Getenv("XDG_CONFIG_HOME")
	if home == "" {
		if runtime.GOOS == "windows" {
			home = os.Getenv("APPDATA")
		} else if h := os.Getenv("HOME"); h != "" {
			home = filepath.Join(h, ".config")
		}
	}
	if home == "" {
		return ""
	}
	return filepath.Join(home, "scaf", FileName)
}

// ProjectPath is <dir>/.scaf/config.yaml.
func ProjectPath(dir string) string {
	return filepath.Join(dir, Dir, FileName)
}

func loadDotEnv(fsys afero.Fs, dir string) {
	data, err := afero.ReadFile(fsys, filepath.Join(dir, ".env"))
	if err != nil {
		return
	}
	vars, err := godotenv.UnmarshalBytes(data)
	if err != nil {
		return
	}
	for k, v := range vars {
		if _, set := os.LookupEnv(k); !set {
			os.Setenv(k, v)
		}
	}
}

func loadFile(fsys afero.Fs, path string, cfg *Config) error {
	data, err := afero.ReadFile(fsys, path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	var file Config
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.merge(&file)
	return nil
}

// merge copies every field set in o onto c.
func (c *Config) merge(o *Config) {
	if o.Shell != "" {
		c.Shell = o.Shell
	}
	if o.ExecTimeout != 0 {
		c.ExecTimeout = o.ExecTimeout
	}
	if o.LogLevel != "" {
		c.LogLevel = o.LogLevel
	}
	if o.Engine != "" {
		c.Engine = o.Engine
	}
	if len(o.Ignore) > 0 {
		c.Ignore = append(c.Ignore, o.Ignore...)
	}
	if o.Populators != nil {
		c.Populators = o.Populators
	}
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv(EnvShell); v != "" {
		cfg.Shell = v
	}
	if v := os.Getenv(EnvExecTimeout); v != "" {
		d, err := parseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvExecTimeout, err)
		}
		cfg.ExecTimeout = Duration(d)
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv(EnvEngine); v != "" {
		cfg.Engine = v
	}
	return nil
}
