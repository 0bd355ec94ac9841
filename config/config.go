package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"keytap/keyboard"
)

type Config struct {
	Capture  CaptureConfig  `toml:"capture"`
	Web      WebConfig      `toml:"web"`
	Storage  StorageConfig  `toml:"storage"`
	Feedback FeedbackConfig `toml:"feedback"`
}

type CaptureConfig struct {
	Mode string `toml:"mode"`
}

type WebConfig struct {
	Enabled bool   `toml:"enabled"`
	Listen  string `toml:"listen"`
}

type StorageConfig struct {
	Path         string `toml:"path"`
	FlushSeconds int    `toml:"flush_seconds"`
}

type FeedbackConfig struct {
	Enabled bool    `toml:"enabled"`
	Volume  float64 `toml:"volume"`
}

// Default returns the configuration used when no file exists yet.
func Default() *Config {
	return &Config{
		Capture: CaptureConfig{
			Mode: "default",
		},
		Web: WebConfig{
			Enabled: true,
			Listen:  "127.0.0.1:8287",
		},
		Storage: StorageConfig{
			Path:         "",
			FlushSeconds: 10,
		},
		Feedback: FeedbackConfig{
			Enabled: false,
			Volume:  0.3,
		},
	}
}

// ConfigPath returns the path to the configuration file, creating the
// directory it lives in.
func ConfigPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate config directory: %w", err)
	}

	dir := filepath.Join(base, "keytap")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return filepath.Join(dir, "config.toml"), nil
}

// Load reads the configuration from the TOML file at path.
// If the file doesn't exist, it creates it with default values.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := Default()
		if err := Save(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		return cfg, nil
	}

	// Decode over the defaults so missing keys keep their default values.
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the configuration to the TOML file at path.
func Save(path string, cfg *Config) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := toml.NewEncoder(f)
	return enc.Encode(cfg)
}

func (c *Config) validate() error {
	if c.Feedback.Volume < 0 {
		c.Feedback.Volume = 0
	}
	if c.Feedback.Volume > 1 {
		c.Feedback.Volume = 1
	}
	if c.Storage.FlushSeconds <= 0 {
		c.Storage.FlushSeconds = 10
	}

	if c.Web.Enabled && strings.TrimSpace(c.Web.Listen) == "" {
		return fmt.Errorf("web is enabled but no listen address is set")
	}

	return nil
}

// Mode translates the configured capture mode string. Unknown values fall
// back to the default mode.
func (c *Config) Mode() keyboard.Mode {
	if strings.EqualFold(strings.TrimSpace(c.Capture.Mode), "raw") {
		return keyboard.ModeRaw
	}
	return keyboard.ModeDefault
}

// StoragePath resolves the activity database location, defaulting to a file
// next to the configuration.
func (c *Config) StoragePath() (string, error) {
	if c.Storage.Path != "" {
		return c.Storage.Path, nil
	}

	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate config directory: %w", err)
	}
	return filepath.Join(base, "keytap", "activity.db"), nil
}
