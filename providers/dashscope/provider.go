package dashscope

import (
	"net/http"
	"strings"

	"github.com/petal-labs/qwen-edit/core"
)

// APIKeyEnvVar is the environment variable conventionally holding the key.
// The provider never reads it; the CLI resolves it and passes the value in.
const APIKeyEnvVar = "DASHSCOPE_API_KEY"

// DashScope is a core.Provider for the DashScope generation API.
// DashScope is safe for concurrent use.
type DashScope struct {
	config Config
}

// New creates a provider. apiKey may be empty when every request carries its
// own key.
func New(apiKey string, opts ...Option) *DashScope {
	cfg := Config{
		APIKey:     core.NewSecret(apiKey),
		BaseURL:    DefaultBaseURL,
		HTTPClient: http.DefaultClient,
	}

	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &DashScope{config: cfg}
}

// ID returns the provider identifier.
func (p *DashScope) ID() string {
	return "dashscope"
}

// BaseURL returns the configured base URL without a trailing slash.
func (p *DashScope) BaseURL() string {
	return p.config.BaseURL
}

// Models returns the list of available models.
func (p *DashScope) Models() []core.ModelInfo {
	result := make([]core.ModelInfo, len(models))
	copy(result, models)
	return result
}

// apiKey picks the per-request key over the configured one.
func (p *DashScope) apiKey(req *core.GenerationRequest) (core.Secret, error) {
	if !req.APIKey.IsEmpty() {
		return req.APIKey, nil
	}
	if !p.config.APIKey.IsEmpty() {
		return p.config.APIKey, nil
	}
	return core.Secret{}, core.ErrAPIKeyRequired
}

// buildHeaders constructs the HTTP headers for an API request.
func (p *DashScope) buildHeaders(key core.Secret) http.Header {
	headers := make(http.Header)

	headers.Set("Authorization", "Bearer "+key.Expose())
	headers.Set("Content-Type", "application/json")
	// Synchronous reply; the endpoint streams when this is "enable".
	headers.Set("X-DashScope-SSE", "disable")

	for name, values := range p.config.Headers {
		for _, v := range values {
			headers.Add(name, v)
		}
	}

	return headers
}

var _ core.Provider = (*DashScope)(nil)
