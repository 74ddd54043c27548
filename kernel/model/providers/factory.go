package providers

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/andrewrchen05/bounding-box-agent/kernel/model"
)

// Factory builds model providers from alias configs.
type Factory struct {
	configs map[string]Config
}

// NewFactory returns an empty provider factory.
func NewFactory() *Factory {
	return &Factory{configs: map[string]Config{}}
}

// Register adds or overwrites one alias config.
func (f *Factory) Register(cfg Config) error {
	if f == nil {
		return fmt.Errorf("providers: factory is nil")
	}
	alias := strings.ToLower(strings.TrimSpace(cfg.Alias))
	if alias == "" {
		return fmt.Errorf("providers: alias is required")
	}
	switch cfg.API {
	case APIOpenAI, APIOpenAICompatible, APIGemini, APIAnthropic, APIDeepSeek:
	default:
		return fmt.Errorf("providers: unsupported api type %q", cfg.API)
	}
	authType := strings.TrimSpace(string(cfg.Auth.Type))
	if authType != "" && cfg.Auth.Type != AuthAPIKey && cfg.Auth.Type != AuthBearerToken {
		return fmt.Errorf("providers: unsupported auth type %q", cfg.Auth.Type)
	}
	if cfg.Auth.Type == "" {
		cfg.Auth.Type = AuthAPIKey
	}
	cfg.Alias = alias
	f.configs[alias] = cfg
	return nil
}

// NewByAlias creates a model provider by alias.
func (f *Factory) NewByAlias(alias string) (model.LLM, error) {
	if f == nil {
		return nil, fmt.Errorf("providers: factory is nil")
	}
	alias = strings.ToLower(strings.TrimSpace(alias))
	if alias == "" {
		return nil, fmt.Errorf("providers: model alias is required")
	}
	cfg, ok := f.configs[alias]
	if !ok {
		return nil, fmt.Errorf("providers: unknown model alias %q", alias)
	}
	token, err := resolveToken(cfg.Auth)
	if err != nil {
		return nil, err
	}

	switch cfg.API {
	case APIDeepSeek:
		return newDeepSeek(cfg, token), nil
	case APIOpenAI, APIOpenAICompatible:
		return newOpenAICompat(cfg, token), nil
	case APIAnthropic:
		return newAnthropic(cfg, token), nil
	case APIGemini:
		return newGemini(cfg, token), nil
	default:
		return nil, fmt.Errorf("providers: unsupported api type %q", cfg.API)
	}
}

// ListModels returns available aliases from current factory.
func (f *Factory) ListModels() []string {
	if f == nil {
		return nil
	}
	out := make([]string, 0, len(f.configs))
	for k := range f.configs {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// resolveToken prefers an inline token; TokenEnv is read lazily here so a
// .env loaded after Register still counts.
func resolveToken(cfg AuthConfig) (string, error) {
	if token := strings.TrimSpace(cfg.Token); token != "" {
		return token, nil
	}
	if key := strings.TrimSpace(cfg.TokenEnv); key != "" {
		if token := strings.TrimSpace(os.Getenv(key)); token != "" {
			return token, nil
		}
		return "", fmt.Errorf("providers: auth env %s is not set", key)
	}
	return "", fmt.Errorf("providers: auth token is empty")
}
