package providers

import (
	"strings"

	"github.com/andrewrchen05/bounding-box-agent/kernel/model"
)

const deepSeekDefaultBaseURL = "https://api.deepseek.com/v1"

// DeepSeek speaks the chat-completions dialect; only the endpoint default
// differs from a generic OpenAI-compatible provider.
func newDeepSeek(cfg Config, token string) model.LLM {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = deepSeekDefaultBaseURL
	}
	return newOpenAICompat(cfg, token)
}
