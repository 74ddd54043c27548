package providers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"

	"github.com/andrewrchen05/bounding-box-agent/kernel/model"
)

type geminiLLM struct {
	name                string
	provider            string
	apiKey              string
	baseURL             string
	timeout             time.Duration
	maxOutputTok        int
	contextWindowTokens int

	clientOnce sync.Once
	client     *genai.Client
	clientErr  error
}

func newGemini(cfg Config, token string) model.LLM {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &geminiLLM{
		name:                cfg.Model,
		provider:            cfg.Provider,
		apiKey:              token,
		baseURL:             strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		timeout:             timeout,
		maxOutputTok:        cfg.MaxOutputTok,
		contextWindowTokens: cfg.ContextWindowTokens,
	}
}

func (l *geminiLLM) Name() string {
	return l.name
}

func (l *geminiLLM) ContextWindowTokens() int {
	return l.contextWindowTokens
}

// ensureClient builds the SDK client on first use; client construction needs
// a context, which Generate has.
func (l *geminiLLM) ensureClient(ctx context.Context) (*genai.Client, error) {
	l.clientOnce.Do(func() {
		cc := &genai.ClientConfig{
			APIKey:     l.apiKey,
			Backend:    genai.BackendGeminiAPI,
			HTTPClient: &http.Client{Timeout: l.timeout},
		}
		if l.baseURL != "" {
			cc.HTTPOptions.BaseURL = l.baseURL
		}
		l.client, l.clientErr = genai.NewClient(ctx, cc)
	})
	return l.client, l.clientErr
}

func (l *geminiLLM) Generate(ctx context.Context, req *model.Request) (*model.Response, error) {
	if req == nil {
		return nil, fmt.Errorf("model: request is nil")
	}
	client, err := l.ensureClient(ctx)
	if err != nil {
		return nil, err
	}
	contents, err := toGeminiContents(req.Messages)
	if err != nil {
		return nil, err
	}

	config := &genai.GenerateContentConfig{}
	if system := req.SystemText(); system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if l.maxOutputTok > 0 {
		config.MaxOutputTokens = int32(l.maxOutputTok)
	}

	out, err := client.Models.GenerateContent(ctx, l.name, contents, config)
	if err != nil {
		return nil, err
	}
	usage := model.Usage{}
	if um := out.UsageMetadata; um != nil {
		usage = model.Usage{
			PromptTokens:     int(um.PromptTokenCount),
			CompletionTokens: int(um.CandidatesTokenCount),
			TotalTokens:      int(um.TotalTokenCount),
		}
	}
	modelName := strings.TrimSpace(out.ModelVersion)
	if modelName == "" {
		modelName = l.name
	}
	return &model.Response{
		Text:     out.Text(),
		Model:    modelName,
		Provider: l.provider,
		Usage:    usage,
	}, nil
}

// toGeminiContents maps conversation history onto genai contents. Assistant
// turns become model role; tool feedback is already plain text and rides as
// user turns.
func toGeminiContents(messages []model.Message) ([]*genai.Content, error) {
	out := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case model.RoleUser:
			parts := make([]*genai.Part, 0, 2)
			if m.Text != "" {
				parts = append(parts, genai.NewPartFromText(m.Text))
			}
			if strings.TrimSpace(m.ImagePath) != "" {
				raw, mime, err := inlineImage(m.ImagePath)
				if err != nil {
					return nil, err
				}
				parts = append(parts, genai.NewPartFromBytes(raw, mime))
			}
			if len(parts) == 0 {
				continue
			}
			out = append(out, genai.NewContentFromParts(parts, genai.RoleUser))
		case model.RoleAssistant:
			if strings.TrimSpace(m.Text) == "" {
				continue
			}
			out = append(out, genai.NewContentFromText(m.Text, genai.RoleModel))
		case model.RoleTool, model.RoleSystem:
			if strings.TrimSpace(m.Text) == "" {
				continue
			}
			out = append(out, genai.NewContentFromText(m.Text, genai.RoleUser))
		}
	}
	return out, nil
}
