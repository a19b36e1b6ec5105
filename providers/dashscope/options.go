// Package dashscope calls the Alibaba Cloud DashScope multimodal-generation
// endpoint that serves the Qwen image editing models.
package dashscope

import (
	"net/http"
	"time"

	"github.com/petal-labs/qwen-edit/core"
)

// DefaultBaseURL is the international DashScope endpoint.
const DefaultBaseURL = "https://dashscope-intl.aliyuncs.com/api/v1"

// Config holds the configuration for the DashScope provider.
type Config struct {
	// APIKey is used when a request carries no key of its own.
	APIKey core.Secret

	// BaseURL is the base URL for the API. Defaults to DefaultBaseURL.
	BaseURL string

	// HTTPClient is the HTTP client to use for requests.
	HTTPClient *http.Client

	// Headers are additional headers to include in requests.
	Headers http.Header

	// Timeout bounds a single generation call. Zero means no timeout.
	Timeout time.Duration
}

// Option is a functional option for configuring the provider.
type Option func(*Config)

// WithBaseURL sets the base URL for the API. Trailing slashes are ignored;
// an empty value keeps the default.
func WithBaseURL(url string) Option {
	return func(c *Config) {
		if url != "" {
			c.BaseURL = url
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Config) {
		if client != nil {
			c.HTTPClient = client
		}
	}
}

// WithHeaders sets additional headers to include in requests.
func WithHeaders(headers http.Header) Option {
	return func(c *Config) {
		c.Headers = headers
	}
}

// WithTimeout sets the request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.Timeout = timeout
	}
}
