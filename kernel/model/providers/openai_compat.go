package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/andrewrchen05/bounding-box-agent/kernel/model"
)

type openAICompatLLM struct {
	name                string
	provider            string
	baseURL             string
	token               string
	headers             map[string]string
	client              *http.Client
	maxOutputTok        int
	contextWindowTokens int
}

func newOpenAICompat(cfg Config, token string) *openAICompatLLM {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &openAICompatLLM{
		name:                cfg.Model,
		provider:            cfg.Provider,
		baseURL:             strings.TrimRight(cfg.BaseURL, "/"),
		token:               token,
		headers:             cfg.Headers,
		client:              &http.Client{Timeout: timeout},
		maxOutputTok:        cfg.MaxOutputTok,
		contextWindowTokens: cfg.ContextWindowTokens,
	}
}

func (l *openAICompatLLM) Name() string {
	return l.name
}

func (l *openAICompatLLM) ContextWindowTokens() int {
	return l.contextWindowTokens
}

func (l *openAICompatLLM) Generate(ctx context.Context, req *model.Request) (*model.Response, error) {
	if req == nil {
		return nil, fmt.Errorf("model: request is nil")
	}
	messages, err := l.fromKernelMessages(req)
	if err != nil {
		return nil, err
	}
	payload := openAICompatRequest{
		Model:    l.name,
		Messages: messages,
	}
	if l.maxOutputTok > 0 {
		payload.MaxTokens = l.maxOutputTok
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+"/chat/completions", bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+l.token)
	for key, value := range l.headers {
		httpReq.Header.Set(key, value)
	}

	resp, err := l.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, statusError(resp)
	}

	var out openAICompatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	if len(out.Choices) == 0 {
		return nil, fmt.Errorf("model: empty choices")
	}
	modelName := strings.TrimSpace(out.Model)
	if modelName == "" {
		modelName = l.name
	}
	return &model.Response{
		Text:     contentText(out.Choices[0].Message.Content),
		Model:    modelName,
		Provider: l.provider,
		Usage: model.Usage{
			PromptTokens:     out.Usage.PromptTokens,
			CompletionTokens: out.Usage.CompletionTokens,
			TotalTokens:      out.Usage.TotalTokens,
		},
	}, nil
}

type openAICompatRequest struct {
	Model     string            `json:"model"`
	Messages  []openAICompatMsg `json:"messages"`
	MaxTokens int               `json:"max_tokens,omitempty"`
	Stream    bool              `json:"stream"`
}

type openAICompatMsg struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type openAICompatContentPart struct {
	Type     string              `json:"type"`
	Text     string              `json:"text,omitempty"`
	ImageURL *openAICompatImgURL `json:"image_url,omitempty"`
}

type openAICompatImgURL struct {
	URL string `json:"url"`
}

type openAICompatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content any    `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// fromKernelMessages maps conversation history onto the chat-completions
// wire shape. The system slot carries prompt plus tool guide; tool feedback
// travels as user text because decisions are plain model output, not
// vendor tool-call frames.
func (l *openAICompatLLM) fromKernelMessages(req *model.Request) ([]openAICompatMsg, error) {
	out := make([]openAICompatMsg, 0, len(req.Messages)+1)
	if system := req.SystemText(); system != "" {
		out = append(out, openAICompatMsg{Role: "system", Content: system})
	}
	for _, m := range req.Messages {
		switch m.Role {
		case model.RoleSystem:
			out = append(out, openAICompatMsg{Role: "system", Content: m.Text})
		case model.RoleUser:
			if strings.TrimSpace(m.ImagePath) == "" {
				out = append(out, openAICompatMsg{Role: "user", Content: m.Text})
				continue
			}
			raw, mime, err := inlineImage(m.ImagePath)
			if err != nil {
				return nil, err
			}
			parts := make([]openAICompatContentPart, 0, 2)
			if m.Text != "" {
				parts = append(parts, openAICompatContentPart{Type: "text", Text: m.Text})
			}
			parts = append(parts, openAICompatContentPart{
				Type:     "image_url",
				ImageURL: &openAICompatImgURL{URL: imageDataURL(raw, mime)},
			})
			out = append(out, openAICompatMsg{Role: "user", Content: parts})
		case model.RoleAssistant:
			out = append(out, openAICompatMsg{Role: "assistant", Content: m.Text})
		case model.RoleTool:
			out = append(out, openAICompatMsg{Role: "user", Content: m.Text})
		}
	}
	return out, nil
}

func contentText(content any) string {
	switch value := content.(type) {
	case string:
		return value
	case []any:
		parts := make([]string, 0, len(value))
		for _, one := range value {
			part, ok := one.(map[string]any)
			if !ok {
				continue
			}
			if text, ok := part["text"].(string); ok && text != "" {
				parts = append(parts, text)
			}
		}
		return strings.Join(parts, "\n")
	default:
		return ""
	}
}
