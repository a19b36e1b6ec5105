// Package config handles CLI configuration loading and credential lookup.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/petal-labs/qwen-edit/cli/keystore"
	"github.com/petal-labs/qwen-edit/core"
)

// APIKeyEnvVar is consulted when no --api-key flag is given.
const APIKeyEnvVar = "DASHSCOPE_API_KEY"

// DefaultKeyName is the keystore entry used when api_key_ref is unset.
const DefaultKeyName = "dashscope"

// DefaultEnvFile is loaded from the working directory at startup.
const DefaultEnvFile = ".env"

// Config represents the CLI configuration.
type Config struct {
	Provider        string        `yaml:"provider,omitempty"`
	BaseURL         string        `yaml:"base_url,omitempty"`
	Model           string        `yaml:"model,omitempty"`
	Output          string        `yaml:"output,omitempty"`
	NegativePrompt  string        `yaml:"negative_prompt,omitempty"`
	Watermark       *bool         `yaml:"watermark,omitempty"`
	APIKeyRef       string        `yaml:"api_key_ref,omitempty"`
	RequestTimeout  time.Duration `yaml:"request_timeout,omitempty"`
	DownloadTimeout time.Duration `yaml:"download_timeout,omitempty"`
	Studio          StudioConfig  `yaml:"studio,omitempty"`
}

// StudioConfig holds settings for the interactive studio.
type StudioConfig struct {
	PreviewSize int   `yaml:"preview_size,omitempty"`
	OutputSize  int   `yaml:"output_size,omitempty"`
	Watermark   *bool `yaml:"watermark,omitempty"`
}

// DefaultConfigPath returns the default configuration file path for the current platform.
// - macOS/Linux: ~/.qwen-edit/config.yaml
// - Windows: %USERPROFILE%\.qwen-edit\config.yaml
func DefaultConfigPath() string {
	var homeDir string

	if runtime.GOOS == "windows" {
		homeDir = os.Getenv("USERPROFILE")
	} else {
		homeDir = os.Getenv("HOME")
	}

	if homeDir == "" {
		return "config.yaml"
	}

	return filepath.Join(homeDir, ".qwen-edit", "config.yaml")
}

// LoadConfig loads configuration from the specified path.
// If the file doesn't exist, returns an empty config without error.
// Returns an error only if the file exists but cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	return cfg, nil
}

// ProviderID returns the configured provider, defaulting to dashscope.
func (c *Config) ProviderID() string {
	if c == nil || c.Provider == "" {
		return "dashscope"
	}
	return c.Provider
}

// KeyName returns the keystore entry holding the API key.
func (c *Config) KeyName() string {
	if c == nil || c.APIKeyRef == "" {
		return DefaultKeyName
	}
	return c.APIKeyRef
}

// WatermarkEnabled reports the CLI watermark default. Unset means on.
func (c *Config) WatermarkEnabled() bool {
	if c == nil || c.Watermark == nil {
		return true
	}
	return *c.Watermark
}

// StudioWatermarkEnabled reports the studio watermark default, falling back
// to the top-level setting.
func (c *Config) StudioWatermarkEnabled() bool {
	if c != nil && c.Studio.Watermark != nil {
		return *c.Studio.Watermark
	}
	return c.WatermarkEnabled()
}

// LoadEnvFile loads KEY=VALUE pairs from path into the process environment.
// Variables that are already set win. A missing file is not an error.
func LoadEnvFile(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return godotenv.Load(path)
}

// Key sources reported by ResolveAPIKey.
const (
	SourceFlag     = "flag"
	SourceEnv      = "env"
	SourceKeystore = "keystore"
)

// ResolveAPIKey picks the API key from, in order: the flag value, the
// APIKeyEnvVar variable via getenv, and the keystore entry name. It returns
// the key and where it came from. No key found is not an error; the caller
// decides whether that is fatal.
func ResolveAPIKey(flag string, getenv func(string) string, ks keystore.Keystore, name string) (core.Secret, string, error) {
	if v := strings.TrimSpace(flag); v != "" {
		return core.NewSecret(v), SourceFlag, nil
	}
	if getenv != nil {
		if v := strings.TrimSpace(getenv(APIKeyEnvVar)); v != "" {
			return core.NewSecret(v), SourceEnv, nil
		}
	}
	if ks != nil {
		v, err := ks.Get(name)
		if err == nil && strings.TrimSpace(v) != "" {
			return core.NewSecret(strings.TrimSpace(v)), SourceKeystore, nil
		}
		var notFound *keystore.ErrKeyNotFound
		if err != nil && !errors.As(err, &notFound) {
			return core.Secret{}, "", fmt.Errorf("reading keystore: %w", err)
		}
	}
	return core.Secret{}, "", nil
}
