package core

const redacted = "[REDACTED]"

// Secret holds a credential such as a DashScope API key. Every formatting and
// serialization path prints a placeholder; only Expose returns the value.
//
//	key := NewSecret("sk-abc123")
//	fmt.Println(key)       // [REDACTED]
//	slog.Info("x", "k", key) // k=[REDACTED]
//	key.Expose()           // "sk-abc123"
type Secret struct {
	value string
}

// NewSecret wraps value.
func NewSecret(value string) Secret {
	return Secret{value: value}
}

// String implements fmt.Stringer.
func (s Secret) String() string {
	return redacted
}

// GoString implements fmt.GoStringer for %#v.
func (s Secret) GoString() string {
	return "core.Secret{" + redacted + "}"
}

// MarshalJSON always emits the placeholder.
func (s Secret) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redacted + `"`), nil
}

// MarshalText implements encoding.TextMarshaler (YAML and slog use it).
func (s Secret) MarshalText() ([]byte, error) {
	return []byte(redacted), nil
}

// Expose returns the raw value. Call it only where the credential is sent,
// e.g. when building the Authorization header.
func (s Secret) Expose() string {
	return s.value
}

// IsEmpty reports whether no value is set.
func (s Secret) IsEmpty() bool {
	return s.value == ""
}
