package dashscope

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/petal-labs/qwen-edit/core"
	"github.com/petal-labs/qwen-edit/providers/internal/normalize"
)

const providerID = "dashscope"

// Generate sends one synchronous generation request and returns the decoded
// reply. The reply is not interpreted beyond being a JSON object; extracting
// the image is up to the caller.
func (p *DashScope) Generate(ctx context.Context, req *core.GenerationRequest) (*core.GenerationResponse, error) {
	key, err := p.apiKey(req)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(buildRequest(req))
	if err != nil {
		return nil, normalize.DecodeError(providerID, err)
	}

	if p.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.Timeout)
		defer cancel()
	}

	url := p.config.BaseURL + generationPath
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, normalize.NetworkError(providerID, err)
	}
	httpReq.Header = p.buildHeaders(key)

	resp, err := p.config.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, normalize.NetworkError(providerID, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, normalize.NetworkError(providerID, err)
	}

	requestID := resp.Header.Get("X-Request-Id")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, normalize.DashScopeProviderError(providerID, resp.StatusCode, respBody, requestID)
	}

	var decoded map[string]any
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return nil, normalize.DecodeError(providerID, err)
	}
	if id, ok := decoded["request_id"].(string); ok && id != "" {
		requestID = id
	}

	return &core.GenerationResponse{
		Raw:       json.RawMessage(respBody),
		Body:      decoded,
		RequestID: requestID,
		Status:    resp.StatusCode,
	}, nil
}
