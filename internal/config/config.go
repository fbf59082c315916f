package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	Dir        = ".katarunner"
	ConfigFile = "config.yaml"
)

// Environment overrides, applied after the file is read.
const (
	EnvDocker   = "KATARUNNER_DOCKER"
	EnvLogLevel = "KATARUNNER_LOG_LEVEL"
)

type Config struct {
	Version    string     `yaml:"version"`
	Docker     Docker     `yaml:"docker"`
	Output     Output     `yaml:"output"`
	Staging    Staging    `yaml:"staging"`
	Classifier Classifier `yaml:"classifier"`
	Log        Log        `yaml:"log"`
	Metrics    Metrics    `yaml:"metrics"`
}

type Docker struct {
	Binary    string `yaml:"binary"`
	KeepAlive string `yaml:"keep_alive"`
}

type Output struct {
	MaxBytes int `yaml:"max_bytes"`
}

type Staging struct {
	Dir string `yaml:"dir,omitempty"`
}

type Classifier struct {
	Timeout time.Duration `yaml:"timeout"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// JSON returns true if log lines should be JSON rather than text.
func (l Log) JSON() bool { return l.Format == "json" }

type Metrics struct {
	Textfile string `yaml:"textfile,omitempty"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Version:    "1",
		Docker:     Docker{Binary: "docker", KeepAlive: "3h"},
		Output:     Output{MaxBytes: 10 * 1024},
		Classifier: Classifier{Timeout: 10 * time.Second},
		Log:        Log{Level: "info", Format: "text"},
	}
}

// Load reads config from .katarunner/config.yaml relative to baseDir.
// Missing fields keep their defaults.
func Load(baseDir string) (*Config, error) {
	path := filepath.Join(baseDir, Dir, ConfigFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// LoadOrDefault is Load, falling back to Default when no file exists.
// Environment overrides are applied either way.
func LoadOrDefault(baseDir string) (*Config, error) {
	cfg := Default()
	if Exists(baseDir) {
		var err error
		if cfg, err = Load(baseDir); err != nil {
			return nil, err
		}
	}
	cfg.ApplyEnv()
	return cfg, nil
}

// ApplyEnv overrides fields from the environment.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvDocker); v != "" {
		c.Docker.Binary = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
}

// Save writes config to .katarunner/config.yaml relative to baseDir.
func Save(baseDir string, cfg *Config) error {
	dir := filepath.Join(baseDir, Dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	path := filepath.Join(dir, ConfigFile)
	return os.WriteFile(path, data, 0o644)
}

// ConfigPath returns the path to the config directory.
func ConfigPath(baseDir string) string {
	return filepath.Join(baseDir, Dir)
}

// Exists returns true if .katarunner/config.yaml exists.
func Exists(baseDir string) bool {
	path := filepath.Join(baseDir, Dir, ConfigFile)
	_, err := os.Stat(path)
	return err == nil
}
