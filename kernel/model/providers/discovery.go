package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

// RemoteModel describes one model discovered from provider list APIs.
type RemoteModel struct {
	Name                string
	ContextWindowTokens int
	MaxOutputTokens     int
}

// DiscoverModels queries provider list-model APIs using one provider config.
// It returns an error when the provider does not expose a list API or auth
// is invalid.
func DiscoverModels(ctx context.Context, cfg Config) ([]RemoteModel, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	token, err := resolveToken(cfg.Auth)
	if err != nil {
		return nil, err
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	client := &http.Client{Timeout: timeout}
	switch cfg.API {
	case APIOpenAI, APIOpenAICompatible, APIDeepSeek:
		return discoverOpenAIModels(ctx, client, cfg, token)
	case APIGemini:
		return discoverGeminiModels(ctx, client, cfg, token)
	case APIAnthropic:
		return discoverAnthropicModels(ctx, client, cfg, token)
	default:
		return nil, fmt.Errorf("providers: unsupported api type %q for list_models", cfg.API)
	}
}

func discoverOpenAIModels(ctx context.Context, client *http.Client, cfg Config, token string) ([]RemoteModel, error) {
	endpoint := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/") + "/models"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, statusError(resp)
	}
	var payload struct {
		Data []struct {
			ID               string `json:"id"`
			ContextWindow    int    `json:"context_window"`
			MaxOutputTokens  int    `json:"max_output_tokens"`
			InputTokenLimit  int    `json:"input_token_limit"`
			OutputTokenLimit int    `json:"output_token_limit"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	models := make([]RemoteModel, 0, len(payload.Data))
	for _, item := range payload.Data {
		name := strings.TrimSpace(item.ID)
		if name == "" {
			continue
		}
		models = append(models, RemoteModel{
			Name:                name,
			ContextWindowTokens: firstPositiveInt(item.ContextWindow, item.InputTokenLimit),
			MaxOutputTokens:     firstPositiveInt(item.MaxOutputTokens, item.OutputTokenLimit),
		})
	}
	return normalizeRemoteModels(models), nil
}

func discoverGeminiModels(ctx context.Context, client *http.Client, cfg Config, token string) ([]RemoteModel, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/") + "/models"
	all := make([]RemoteModel, 0, 16)
	pageToken := ""
	for i := 0; i < 5; i++ {
		query := url.Values{}
		query.Set("key", token)
		if pageToken != "" {
			query.Set("pageToken", pageToken)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"?"+query.Encode(), nil)
		if err != nil {
			return nil, err
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 300 {
			err := statusError(resp)
			resp.Body.Close()
			return nil, err
		}
		var payload struct {
			Models []struct {
				Name             string `json:"name"`
				InputTokenLimit  int    `json:"inputTokenLimit"`
				OutputTokenLimit int    `json:"outputTokenLimit"`
			} `json:"models"`
			NextPageToken string `json:"nextPageToken"`
		}
		err = json.NewDecoder(resp.Body).Decode(&payload)
		resp.Body.Close()
		if err != nil {
			return nil, err
		}
		for _, item := range payload.Models {
			name := strings.TrimSpace(strings.TrimPrefix(item.Name, "models/"))
			if name == "" {
				continue
			}
			all = append(all, RemoteModel{
				Name:                name,
				ContextWindowTokens: item.InputTokenLimit,
				MaxOutputTokens:     item.OutputTokenLimit,
			})
		}
		pageToken = strings.TrimSpace(payload.NextPageToken)
		if pageToken == "" {
			break
		}
	}
	return normalizeRemoteModels(all), nil
}

func discoverAnthropicModels(ctx context.Context, client *http.Client, cfg Config, token string) ([]RemoteModel, error) {
	endpoint := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/") + "/models"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if cfg.Auth.Type == AuthBearerToken {
		req.Header.Set("Authorization", "Bearer "+token)
	} else {
		req.Header.Set("x-api-key", token)
	}
	req.Header.Set("anthropic-version", "2023-06-01")
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, statusError(resp)
	}
	var payload struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	models := make([]RemoteModel, 0, len(payload.Data))
	for _, item := range payload.Data {
		name := strings.TrimSpace(item.ID)
		if name == "" {
			continue
		}
		models = append(models, RemoteModel{Name: name})
	}
	return normalizeRemoteModels(models), nil
}

func normalizeRemoteModels(in []RemoteModel) []RemoteModel {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]RemoteModel, len(in))
	for _, item := range in {
		name := strings.TrimSpace(item.Name)
		if name == "" {
			continue
		}
		item.Name = name
		existing, ok := seen[name]
		if !ok {
			seen[name] = item
			continue
		}
		if existing.ContextWindowTokens <= 0 && item.ContextWindowTokens > 0 {
			existing.ContextWindowTokens = item.ContextWindowTokens
		}
		if existing.MaxOutputTokens <= 0 && item.MaxOutputTokens > 0 {
			existing.MaxOutputTokens = item.MaxOutputTokens
		}
		seen[name] = existing
	}
	out := make([]RemoteModel, 0, len(seen))
	for _, item := range seen {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Name < out[j].Name
	})
	return out
}

func firstPositiveInt(values ...int) int {
	for _, value := range values {
		if value > 0 {
			return value
		}
	}
	return 0
}
