// Package providers holds the remote backends behind qwen-edit.
//
// Each backend lives in its own subpackage and implements core.Provider.
// Backends register a factory from init so the CLI can construct them by
// name:
//
//	import _ "github.com/petal-labs/qwen-edit/providers/dashscope"
//
//	p, err := providers.Create("dashscope", providers.Settings{APIKey: key})
//
// # Concurrency
//
// Providers SHOULD be safe for concurrent calls. If a provider cannot be
// concurrent-safe, it MUST document this limitation.
package providers

import "github.com/petal-labs/qwen-edit/core"

// Re-export core types for convenience.
type (
	// Provider is the interface remote backends implement.
	Provider = core.Provider

	// ModelInfo describes a model available from a provider.
	ModelInfo = core.ModelInfo

	// ProviderError represents an error returned by a provider.
	ProviderError = core.ProviderError
)
