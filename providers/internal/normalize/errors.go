// Package normalize turns HTTP failures into core.ProviderError values so
// every provider reports errors the same way.
package normalize

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/petal-labs/qwen-edit/core"
)

// dashScopeErrorResponse is the envelope DashScope returns on failure:
// {"request_id":"...","code":"InvalidApiKey","message":"..."}
type dashScopeErrorResponse struct {
	RequestID string `json:"request_id"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

// DashScopeProviderError normalizes a DashScope error body. The request ID
// from the body wins over the header value when both are present.
func DashScopeProviderError(provider string, status int, body []byte, requestID string) error {
	var errResp dashScopeErrorResponse
	_ = json.Unmarshal(body, &errResp)

	if errResp.RequestID != "" {
		requestID = errResp.RequestID
	}

	return ProviderError(provider, status, requestID, errResp.Code, errResp.Message, SentinelForCode(errResp.Code, status))
}

// StatusError builds an error for endpoints that return no structured body,
// such as the object storage that serves result images.
func StatusError(provider string, status int, requestID string) error {
	return ProviderError(provider, status, requestID, "", "", nil)
}

// NetworkError wraps transport failures as provider-specific network errors.
func NetworkError(provider string, err error) error {
	return &core.ProviderError{
		Provider: provider,
		Message:  err.Error(),
		Err:      core.ErrNetwork,
	}
}

// DecodeError wraps decode/parsing failures as provider-specific decode errors.
func DecodeError(provider string, err error) error {
	return &core.ProviderError{
		Provider: provider,
		Message:  err.Error(),
		Err:      core.ErrDecode,
	}
}

// ProviderError constructs a normalized ProviderError.
// If message is empty, HTTP status text is used.
// If sentinel is nil, default status-based mapping is applied.
func ProviderError(provider string, status int, requestID, code, message string, sentinel error) error {
	if message == "" {
		message = http.StatusText(status)
	}
	if sentinel == nil {
		sentinel = SentinelForStatus(status)
	}
	return &core.ProviderError{
		Provider:  provider,
		Status:    status,
		RequestID: requestID,
		Code:      code,
		Message:   message,
		Err:       sentinel,
	}
}

// SentinelForCode maps a DashScope error code to a sentinel, falling back to
// the HTTP status when the code is unknown.
func SentinelForCode(code string, status int) error {
	switch {
	case code == "InvalidApiKey" || code == "AccessDenied" || strings.HasPrefix(code, "AccessDenied."):
		return core.ErrUnauthorized
	case strings.HasPrefix(code, "Throttling"):
		return core.ErrRateLimited
	case code == "InvalidParameter" || code == "DataInspectionFailed" || code == "BadRequest.TooLarge":
		return core.ErrBadRequest
	case code == "ModelNotFound":
		return core.ErrNotFound
	}
	return SentinelForStatus(status)
}

// SentinelForStatus maps an HTTP status code to a core sentinel error.
func SentinelForStatus(status int) error {
	return SentinelForStatusWithOverrides(status, nil)
}

// SentinelForStatusWithOverrides maps an HTTP status code to a core sentinel error,
// then applies any exact status overrides from the provided map.
func SentinelForStatusWithOverrides(status int, overrides map[int]error) error {
	if override, ok := overrides[status]; ok && override != nil {
		return override
	}

	switch {
	case status == http.StatusBadRequest:
		return core.ErrBadRequest
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return core.ErrUnauthorized
	case status == http.StatusNotFound:
		return core.ErrNotFound
	case status == http.StatusTooManyRequests:
		return core.ErrRateLimited
	default:
		return core.ErrServer
	}
}
