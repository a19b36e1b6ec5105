package core

import "encoding/json"

// ModelID identifies a remote model.
type ModelID string

// ModelQwenImageEdit is the default image-editing model.
const ModelQwenImageEdit ModelID = "qwen-image-edit"

// ModelInfo describes a model offered by a provider.
type ModelInfo struct {
	ID          ModelID
	DisplayName string
	MaxImages   int // maximum number of input images, 0 = unknown
}

// Role is the author of a message.
type Role string

// RoleUser is the only role the edit endpoint accepts input from.
const RoleUser Role = "user"

// ContentItem is one fragment of a message: an image reference or a prompt.
// Exactly one field is set.
type ContentItem struct {
	Image string `json:"image,omitempty"` // http(s) URL or data URI
	Text  string `json:"text,omitempty"`
}

// IsImage reports whether the item carries an image.
func (c ContentItem) IsImage() bool {
	return c.Image != ""
}

// MarshalJSON emits {"image": ...} for image items and {"text": ...} otherwise,
// so an empty prompt still serializes as a text item.
func (c ContentItem) MarshalJSON() ([]byte, error) {
	if c.IsImage() {
		return json.Marshal(map[string]string{"image": c.Image})
	}
	return json.Marshal(map[string]string{"text": c.Text})
}

// Message is an ordered sequence of content items sent under one role.
type Message struct {
	Role    Role          `json:"role"`
	Content []ContentItem `json:"content"`
}

// GenerationRequest is what a Provider sends to the remote service.
// It is built fresh for each run.
type GenerationRequest struct {
	APIKey         Secret
	Model          ModelID
	Messages       []Message
	NegativePrompt string
	Watermark      bool
}

// GenerationResponse is the undecoded service reply. Only the image URL is
// consumed by the pipeline; Raw is kept for diagnostics.
type GenerationResponse struct {
	Raw       json.RawMessage
	Body      map[string]any
	RequestID string
	Status    int
}
