package dashscope

import "github.com/petal-labs/qwen-edit/core"

// Model constants for the image editing family.
const (
	ModelQwenImageEdit                  = core.ModelQwenImageEdit
	ModelQwenImageEditPlus core.ModelID = "qwen-image-edit-plus"
)

var models = []core.ModelInfo{
	{ID: ModelQwenImageEdit, DisplayName: "Qwen Image Edit", MaxImages: 3},
	{ID: ModelQwenImageEditPlus, DisplayName: "Qwen Image Edit Plus", MaxImages: 3},
}

// GetModelInfo returns the ModelInfo for a given model ID, or nil if not found.
func GetModelInfo(id core.ModelID) *core.ModelInfo {
	for i := range models {
		if models[i].ID == id {
			m := models[i]
			return &m
		}
	}
	return nil
}
