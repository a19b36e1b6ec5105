package dashscope

import "github.com/petal-labs/qwen-edit/core"

// generationPath is the multimodal-generation endpoint, relative to the base URL.
const generationPath = "/services/aigc/multimodal-generation/generation"

// generationRequest is the wire body.
type generationRequest struct {
	Model      string     `json:"model"`
	Input      input      `json:"input"`
	Parameters parameters `json:"parameters"`
}

type input struct {
	Messages []core.Message `json:"messages"`
}

type parameters struct {
	ResultFormat   string `json:"result_format"`
	NegativePrompt string `json:"negative_prompt,omitempty"`
	Watermark      bool   `json:"watermark"`
}

func buildRequest(req *core.GenerationRequest) *generationRequest {
	model := req.Model
	if model == "" {
		model = core.ModelQwenImageEdit
	}
	return &generationRequest{
		Model: string(model),
		Input: input{Messages: req.Messages},
		Parameters: parameters{
			ResultFormat:   "message",
			NegativePrompt: req.NegativePrompt,
			Watermark:      req.Watermark,
		},
	}
}
