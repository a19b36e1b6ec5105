// Package download fetches generated images from the short-lived URLs the
// generation service hands back.
package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/petal-labs/qwen-edit/core"
	"github.com/petal-labs/qwen-edit/providers/internal/normalize"
)

// DefaultTimeout bounds one download.
const DefaultTimeout = 60 * time.Second

// DefaultMaxBytes caps the size of a downloaded image.
const DefaultMaxBytes int64 = 64 << 20

const providerID = "download"

// Fetcher performs single GET requests. It is safe for concurrent use.
type Fetcher struct {
	client   *http.Client
	timeout  time.Duration
	maxBytes int64
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(f *Fetcher) {
		if client != nil {
			f.client = client
		}
	}
}

// WithTimeout sets the per-download timeout. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		f.timeout = d
	}
}

// WithMaxBytes sets the largest body accepted.
func WithMaxBytes(n int64) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxBytes = n
		}
	}
}

// New creates a Fetcher with a 60 second timeout.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		client:   http.DefaultClient,
		timeout:  DefaultTimeout,
		maxBytes: DefaultMaxBytes,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FetchBytes downloads url. Only http and https URLs are accepted; anything
// else is treated as a malformed response from the generation service.
func (f *Fetcher) FetchBytes(ctx context.Context, url string) ([]byte, error) {
	if !core.IsURL(url) {
		return nil, &core.ResponseError{Kind: core.ErrMalformedResponse, Reason: "image reference is not an http(s) URL"}
	}

	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, normalize.NetworkError(providerID, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, normalize.NetworkError(providerID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Drain a little so the connection can be reused.
		_, _ = io.CopyN(io.Discard, resp.Body, 4<<10)
		return nil, normalize.StatusError(providerID, resp.StatusCode, resp.Header.Get("X-Oss-Request-Id"))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, normalize.NetworkError(providerID, err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, normalize.DecodeError(providerID, fmt.Errorf("image larger than %d bytes", f.maxBytes))
	}
	return data, nil
}

var _ core.Fetcher = (*Fetcher)(nil)
