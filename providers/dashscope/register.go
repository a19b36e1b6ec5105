package dashscope

import (
	"github.com/petal-labs/qwen-edit/core"
	"github.com/petal-labs/qwen-edit/providers"
)

func init() {
	providers.Register("dashscope", func(s providers.Settings) core.Provider {
		return New(s.APIKey, WithBaseURL(s.BaseURL), WithTimeout(s.Timeout))
	})
}
