// Package keystore stores provider API keys encrypted on disk.
package keystore

import (
	"os"
	"path/filepath"
	"runtime"
)

// Keystore defines the interface for secure key storage.
type Keystore interface {
	// Set stores a key-value pair.
	Set(name, value string) error
	// Get retrieves a value by name. Returns error if not found.
	Get(name string) (string, error)
	// Delete removes a key by name.
	Delete(name string) error
	// List returns all stored key names.
	List() ([]string, error)
}

// ErrKeyNotFound is returned when a requested key does not exist.
type ErrKeyNotFound struct {
	Name string
}

func (e *ErrKeyNotFound) Error() string {
	return "key not found: " + e.Name
}

func homeDir() string {
	if runtime.GOOS == "windows" {
		return os.Getenv("USERPROFILE")
	}
	return os.Getenv("HOME")
}

// DefaultKeystorePath returns the default keystore file path.
// - macOS/Linux: ~/.qwen-edit/keys.enc
// - Windows: %USERPROFILE%\.qwen-edit\keys.enc
func DefaultKeystorePath() string {
	home := homeDir()
	if home == "" {
		return "keys.enc"
	}
	return filepath.Join(home, ".qwen-edit", "keys.enc")
}

// NewKeystore opens the default keystore. The master key comes from
// MasterKeyEnvVar when set, otherwise from machine identity.
func NewKeystore() (Keystore, error) {
	return NewFileKeystoreWithSource(DefaultKeystorePath(), DefaultMasterKeySource())
}
