package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/petal-labs/qwen-edit/cli/keystore"
)

func TestDefaultConfigPath(t *testing.T) {
	path := DefaultConfigPath()

	if filepath.Base(path) != "config.yaml" {
		t.Errorf("DefaultConfigPath() = %q, should end with config.yaml", path)
	}

	t.Setenv("HOME", "/home/tester")
	t.Setenv("USERPROFILE", "/home/tester")
	if got := filepath.Base(filepath.Dir(DefaultConfigPath())); got != ".qwen-edit" {
		t.Errorf("DefaultConfigPath() dir = %q, want .qwen-edit", got)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig("/nonexistent/path/config.yaml")
	if err != nil {
		t.Errorf("LoadConfig() error = %v, want nil for missing file", err)
	}
	if cfg == nil {
		t.Fatal("LoadConfig() returned nil config")
	}
	if cfg.ProviderID() != "dashscope" {
		t.Errorf("ProviderID() = %q, want dashscope", cfg.ProviderID())
	}
	if cfg.KeyName() != DefaultKeyName {
		t.Errorf("KeyName() = %q", cfg.KeyName())
	}
	if !cfg.WatermarkEnabled() || !cfg.StudioWatermarkEnabled() {
		t.Error("watermark should default to on")
	}
}

func TestLoadConfigValid(t *testing.T) {
	content := `
base_url: https://dashscope.aliyuncs.com/api/v1
model: qwen-image-edit-plus
output: edited.png
negative_prompt: blurry
watermark: false
api_key_ref: work
request_timeout: 2m
download_timeout: 45s
studio:
  preview_size: 160
  output_size: 512
  watermark: true
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.BaseURL != "https://dashscope.aliyuncs.com/api/v1" {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
	if cfg.Model != "qwen-image-edit-plus" || cfg.Output != "edited.png" || cfg.NegativePrompt != "blurry" {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.WatermarkEnabled() {
		t.Error("WatermarkEnabled() = true, want false")
	}
	if !cfg.StudioWatermarkEnabled() {
		t.Error("StudioWatermarkEnabled() = false, want studio override")
	}
	if cfg.KeyName() != "work" {
		t.Errorf("KeyName() = %q, want work", cfg.KeyName())
	}
	if cfg.RequestTimeout != 2*time.Minute || cfg.DownloadTimeout != 45*time.Second {
		t.Errorf("timeouts = %v / %v", cfg.RequestTimeout, cfg.DownloadTimeout)
	}
	if cfg.Studio.PreviewSize != 160 || cfg.Studio.OutputSize != 512 {
		t.Errorf("Studio = %+v", cfg.Studio)
	}
}

func TestStudioWatermarkFallsBack(t *testing.T) {
	off := false
	cfg := &Config{Watermark: &off}
	if cfg.StudioWatermarkEnabled() {
		t.Error("studio watermark should follow the top-level setting")
	}
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("model: [not, a, string]\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadConfig(path); err == nil {
		t.Error("LoadConfig() should fail for invalid YAML")
	}
}

func TestLoadConfigEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Model != "" {
		t.Errorf("Model = %q, want empty", cfg.Model)
	}
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "QWEN_EDIT_TEST_A=from-file\nQWEN_EDIT_TEST_B=from-file\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("QWEN_EDIT_TEST_A", "")
	os.Unsetenv("QWEN_EDIT_TEST_A")
	t.Setenv("QWEN_EDIT_TEST_B", "already-set")

	if err := LoadEnvFile(path); err != nil {
		t.Fatalf("LoadEnvFile() error = %v", err)
	}
	if got := os.Getenv("QWEN_EDIT_TEST_A"); got != "from-file" {
		t.Errorf("A = %q, want from-file", got)
	}
	if got := os.Getenv("QWEN_EDIT_TEST_B"); got != "already-set" {
		t.Errorf("B = %q, existing variables must win", got)
	}

	if err := LoadEnvFile(filepath.Join(dir, "missing.env")); err != nil {
		t.Errorf("LoadEnvFile() on missing file error = %v", err)
	}
}

// memKeystore is an in-memory keystore.Keystore.
type memKeystore struct {
	data map[string]string
	err  error
}

func (m *memKeystore) Set(name, value string) error { m.data[name] = value; return nil }
func (m *memKeystore) Delete(name string) error     { delete(m.data, name); return nil }
func (m *memKeystore) List() ([]string, error)      { return nil, nil }
func (m *memKeystore) Get(name string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	v, ok := m.data[name]
	if !ok {
		return "", &keystore.ErrKeyNotFound{Name: name}
	}
	return v, nil
}

func TestResolveAPIKey(t *testing.T) {
	env := func(v string) func(string) string {
		return func(name string) string {
			if name == APIKeyEnvVar {
				return v
			}
			return ""
		}
	}
	ks := &memKeystore{data: map[string]string{"dashscope": "from-keystore"}}

	tests := []struct {
		name       string
		flag       string
		getenv     func(string) string
		ks         keystore.Keystore
		keyName    string
		want       string
		wantSource string
	}{
		{"flag wins", "from-flag", env("from-env"), ks, "dashscope", "from-flag", SourceFlag},
		{"env next", "", env("from-env"), ks, "dashscope", "from-env", SourceEnv},
		{"blank flag ignored", "   ", env("from-env"), ks, "dashscope", "from-env", SourceEnv},
		{"keystore last", "", env(""), ks, "dashscope", "from-keystore", SourceKeystore},
		{"keystore entry missing", "", env(""), ks, "other", "", ""},
		{"nothing configured", "", nil, nil, "dashscope", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, source, err := ResolveAPIKey(tt.flag, tt.getenv, tt.ks, tt.keyName)
			if err != nil {
				t.Fatalf("ResolveAPIKey() error = %v", err)
			}
			if got.Expose() != tt.want {
				t.Errorf("key = %q, want %q", got.Expose(), tt.want)
			}
			if source != tt.wantSource {
				t.Errorf("source = %q, want %q", source, tt.wantSource)
			}
		})
	}
}

func TestResolveAPIKeyKeystoreError(t *testing.T) {
	ks := &memKeystore{err: keystore.ErrCorrupt}
	_, _, err := ResolveAPIKey("", nil, ks, "dashscope")
	if !errors.Is(err, keystore.ErrCorrupt) {
		t.Errorf("error = %v, want ErrCorrupt", err)
	}
}
