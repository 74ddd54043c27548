package providers

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/andrewrchen05/bounding-box-agent/kernel/model"
)

type anthropicLLM struct {
	name                string
	provider            string
	client              anthropic.Client
	maxOutputTok        int
	contextWindowTokens int
}

func newAnthropic(cfg Config, token string) model.LLM {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	maxTok := cfg.MaxOutputTok
	if maxTok <= 0 {
		maxTok = 1024
	}
	opts := []option.RequestOption{
		option.WithAPIKey(token),
		option.WithHTTPClient(&http.Client{Timeout: timeout}),
		// The run loop treats a transport fault as fatal; the SDK must not
		// paper over it with its own retries.
		option.WithMaxRetries(0),
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, option.WithBaseURL(base))
	}
	return &anthropicLLM{
		name:                cfg.Model,
		provider:            cfg.Provider,
		client:              anthropic.NewClient(opts...),
		maxOutputTok:        maxTok,
		contextWindowTokens: cfg.ContextWindowTokens,
	}
}

func (l *anthropicLLM) Name() string {
	return l.name
}

func (l *anthropicLLM) ContextWindowTokens() int {
	return l.contextWindowTokens
}

func (l *anthropicLLM) Generate(ctx context.Context, req *model.Request) (*model.Response, error) {
	if req == nil {
		return nil, fmt.Errorf("model: request is nil")
	}
	messages, err := toAnthropicMessages(req.Messages)
	if err != nil {
		return nil, err
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(l.name),
		MaxTokens: int64(l.maxOutputTok),
		Messages:  messages,
	}
	if system := req.SystemText(); system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	out, err := l.client.Messages.New(ctx, params)
	if err != nil {
		return nil, err
	}
	texts := make([]string, 0, len(out.Content))
	for _, block := range out.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			if strings.TrimSpace(b.Text) != "" {
				texts = append(texts, b.Text)
			}
		}
	}
	return &model.Response{
		Text:     strings.TrimSpace(strings.Join(texts, "\n")),
		Model:    string(out.Model),
		Provider: l.provider,
		Usage: model.Usage{
			PromptTokens:     int(out.Usage.InputTokens),
			CompletionTokens: int(out.Usage.OutputTokens),
			TotalTokens:      int(out.Usage.InputTokens + out.Usage.OutputTokens),
		},
	}, nil
}

// toAnthropicMessages maps conversation history onto Messages API params.
// Tool feedback is already rendered into message text upstream, so it rides
// as user turns rather than tool_result blocks.
func toAnthropicMessages(messages []model.Message) ([]anthropic.MessageParam, error) {
	out := make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case model.RoleUser:
			blocks := make([]anthropic.ContentBlockParamUnion, 0, 2)
			if m.Text != "" {
				blocks = append(blocks, anthropic.NewTextBlock(m.Text))
			}
			if strings.TrimSpace(m.ImagePath) != "" {
				raw, mime, err := inlineImage(m.ImagePath)
				if err != nil {
					return nil, err
				}
				blocks = append(blocks, anthropic.NewImageBlockBase64(mime, base64.StdEncoding.EncodeToString(raw)))
			}
			if len(blocks) == 0 {
				continue
			}
			out = append(out, anthropic.NewUserMessage(blocks...))
		case model.RoleAssistant:
			if strings.TrimSpace(m.Text) == "" {
				continue
			}
			out = append(out, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Text)))
		case model.RoleTool, model.RoleSystem:
			if strings.TrimSpace(m.Text) == "" {
				continue
			}
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Text)))
		}
	}
	return out, nil
}
