package keystore

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func newTestKeystore(t *testing.T, path string) *FileKeystore {
	t.Helper()
	ks, err := NewFileKeystoreWithSource(path, StaticSource("test-master-key"))
	if err != nil {
		t.Fatalf("NewFileKeystoreWithSource() error = %v", err)
	}
	return ks
}

func TestFileKeystoreSetAndGet(t *testing.T) {
	ks := newTestKeystore(t, filepath.Join(t.TempDir(), "keys.enc"))

	if err := ks.Set("dashscope", "sk-test-key-12345"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	value, err := ks.Get("dashscope")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if value != "sk-test-key-12345" {
		t.Errorf("Get() = %q, want sk-test-key-12345", value)
	}
}

func TestFileKeystoreGetNotFound(t *testing.T) {
	ks := newTestKeystore(t, filepath.Join(t.TempDir(), "keys.enc"))

	_, err := ks.Get("nonexistent")
	if _, ok := err.(*ErrKeyNotFound); !ok {
		t.Errorf("Get() error type = %T, want *ErrKeyNotFound", err)
	}
}

func TestFileKeystoreDelete(t *testing.T) {
	ks := newTestKeystore(t, filepath.Join(t.TempDir(), "keys.enc"))

	if err := ks.Set("dashscope", "k"); err != nil {
		t.Fatal(err)
	}
	if err := ks.Delete("dashscope"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := ks.Get("dashscope"); err == nil {
		t.Error("Get() after Delete() should fail")
	}

	err := ks.Delete("dashscope")
	if _, ok := err.(*ErrKeyNotFound); !ok {
		t.Errorf("second Delete() error type = %T, want *ErrKeyNotFound", err)
	}
}

func TestFileKeystoreList(t *testing.T) {
	ks := newTestKeystore(t, filepath.Join(t.TempDir(), "keys.enc"))

	names, err := ks.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(names) != 0 {
		t.Errorf("List() on empty keystore = %v", names)
	}

	for _, n := range []string{"dashscope-cn", "dashscope", "backup"} {
		if err := ks.Set(n, "v"); err != nil {
			t.Fatal(err)
		}
	}

	names, err = ks.List()
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"backup", "dashscope", "dashscope-cn"}
	if len(names) != len(want) {
		t.Fatalf("List() = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("List()[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestFileKeystorePersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.enc")

	if err := newTestKeystore(t, path).Set("dashscope", "persistent-key"); err != nil {
		t.Fatal(err)
	}

	value, err := newTestKeystore(t, path).Get("dashscope")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if value != "persistent-key" {
		t.Errorf("Get() = %q, want persistent-key", value)
	}
}

func TestFileKeystoreWrongMasterKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.enc")
	if err := newTestKeystore(t, path).Set("dashscope", "k"); err != nil {
		t.Fatal(err)
	}

	other, err := NewFileKeystoreWithSource(path, StaticSource("another-key"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := other.Get("dashscope"); !errors.Is(err, ErrCorrupt) {
		t.Errorf("Get() with wrong master key error = %v, want ErrCorrupt", err)
	}
}

func TestFileKeystoreTamperedHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.enc")
	ks := newTestKeystore(t, path)
	if err := ks.Set("dashscope", "k"); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	data[len(magicHeader)+2] ^= 0xFF // flip a salt byte
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := ks.Get("dashscope"); !errors.Is(err, ErrCorrupt) {
		t.Errorf("Get() on tampered file error = %v, want ErrCorrupt", err)
	}
}

func TestFileKeystoreRejectsForeignFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.enc")
	if err := os.WriteFile(path, []byte(`{"dashscope":"plain"}`), 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := newTestKeystore(t, path).List(); !errors.Is(err, ErrCorrupt) {
		t.Errorf("List() error = %v, want ErrCorrupt", err)
	}
}

func TestFileKeystoreFilePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("file permissions not supported on Windows")
	}

	path := filepath.Join(t.TempDir(), "keys.enc")
	if err := newTestKeystore(t, path).Set("test", "value"); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		t.Errorf("File permissions = %o, want 0600", mode)
	}
}

func TestFileKeystoreEncrypted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.enc")

	secretKey := "sk-this-should-be-encrypted"
	if err := newTestKeystore(t, path).Set("dashscope", secretKey); err != nil {
		t.Fatal(err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Contains(contents, []byte(secretKey)) {
		t.Error("file contains the plaintext key")
	}
	if !bytes.HasPrefix(contents, []byte(magicHeader)) {
		t.Error("file is missing the magic header")
	}
}

func TestFileKeystoreCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subdir", "deep", "keys.enc")

	if err := newTestKeystore(t, path).Set("test", "value"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("File not created: %v", err)
	}
}

func TestDefaultKeystorePath(t *testing.T) {
	path := DefaultKeystorePath()

	if filepath.Base(path) != "keys.enc" {
		t.Errorf("DefaultKeystorePath() = %q, should end with keys.enc", path)
	}
	if homeDir() != "" && filepath.Base(filepath.Dir(path)) != ".qwen-edit" {
		t.Errorf("DefaultKeystorePath() = %q, should be in .qwen-edit directory", path)
	}
}

func TestMasterKeySources(t *testing.T) {
	env := EnvSource{Var: "X", Getenv: func(string) string { return "from-env" }}
	key, err := env.GetMasterKey()
	if err != nil || string(key) != "from-env" {
		t.Errorf("EnvSource = %q, %v", key, err)
	}

	empty := EnvSource{Var: "X", Getenv: func(string) string { return "" }}
	if _, err := empty.GetMasterKey(); err == nil {
		t.Error("EnvSource with unset variable should fail")
	}

	if _, err := StaticSource(nil).GetMasterKey(); err == nil {
		t.Error("empty StaticSource should fail")
	}

	a, _ := MachineSource{}.GetMasterKey()
	b, _ := MachineSource{}.GetMasterKey()
	if len(a) != 32 || !bytes.Equal(a, b) {
		t.Error("MachineSource should be a stable 32-byte key")
	}
}

func TestDefaultMasterKeySource(t *testing.T) {
	t.Setenv(MasterKeyEnvVar, "")
	if _, ok := DefaultMasterKeySource().(MachineSource); !ok {
		t.Error("expected MachineSource without env override")
	}

	t.Setenv(MasterKeyEnvVar, "mine")
	if _, ok := DefaultMasterKeySource().(EnvSource); !ok {
		t.Error("expected EnvSource with env override")
	}
}

func TestErrKeyNotFoundError(t *testing.T) {
	err := &ErrKeyNotFound{Name: "dashscope"}
	if err.Error() != "key not found: dashscope" {
		t.Errorf("Error() = %q", err.Error())
	}
}
