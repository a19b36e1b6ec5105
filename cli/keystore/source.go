package keystore

import (
	"crypto/sha256"
	"errors"
	"os"
)

// MasterKeyEnvVar names the environment variable holding a user-chosen
// master key.
const MasterKeyEnvVar = "QWEN_EDIT_MASTER_KEY"

// MasterKeySource supplies the secret the file encryption key is derived from.
type MasterKeySource interface {
	GetMasterKey() ([]byte, error)
}

// EnvSource reads the master key from an environment variable.
type EnvSource struct {
	Var    string
	Getenv func(string) string // defaults to os.Getenv
}

// GetMasterKey implements MasterKeySource.
func (s EnvSource) GetMasterKey() ([]byte, error) {
	getenv := s.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	v := getenv(s.Var)
	if v == "" {
		return nil, errors.New("keystore: " + s.Var + " is not set")
	}
	return []byte(v), nil
}

// MachineSource derives the master key from host name and user name. It
// keeps keys out of plain text but anyone on the same account can recompute
// it; set MasterKeyEnvVar for stronger protection.
type MachineSource struct{}

// GetMasterKey implements MasterKeySource.
func (MachineSource) GetMasterKey() ([]byte, error) {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	username := os.Getenv("USER")
	if username == "" {
		username = os.Getenv("USERNAME")
	}
	sum := sha256.Sum256([]byte(hostname + ":" + username + ":qwen-edit-keystore"))
	return sum[:], nil
}

// StaticSource returns a fixed master key.
type StaticSource []byte

// GetMasterKey implements MasterKeySource.
func (s StaticSource) GetMasterKey() ([]byte, error) {
	if len(s) == 0 {
		return nil, errors.New("keystore: empty master key")
	}
	return []byte(s), nil
}

// DefaultMasterKeySource prefers MasterKeyEnvVar and falls back to the
// machine-derived key.
func DefaultMasterKeySource() MasterKeySource {
	if os.Getenv(MasterKeyEnvVar) != "" {
		return EnvSource{Var: MasterKeyEnvVar}
	}
	return MachineSource{}
}
