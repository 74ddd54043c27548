package providers

import (
	"fmt"
	"sort"
	"strings"

	"github.com/andrewrchen05/bounding-box-agent/kernel/model"
	modelproviders "github.com/andrewrchen05/bounding-box-agent/kernel/model/providers"
)

// NewByAlias builds a live model binding. Tokens come from each provider's
// conventional env var (GEMINI_API_KEY, ANTHROPIC_API_KEY) at build time,
// so listing aliases never requires credentials.
func NewByAlias(alias string) (model.LLM, error) {
	factory, err := defaultFactory()
	if err != nil {
		return nil, err
	}
	return factory.NewByAlias(NormalizeModelAlias(alias))
}

func ListModels() []string {
	factory, err := defaultFactory()
	if err != nil {
		return nil
	}
	return factory.ListModels()
}

func defaultFactory() (*modelproviders.Factory, error) {
	factory := modelproviders.NewFactory()
	for _, cfg := range aliasConfigs() {
		if err := factory.Register(cfg); err != nil {
			return nil, fmt.Errorf("eval providers: register %q: %w", cfg.Alias, err)
		}
	}
	return factory, nil
}

func aliasConfigs() []modelproviders.Config {
	gemini := modelproviders.Config{
		Provider:            "gemini",
		API:                 modelproviders.APIGemini,
		Model:               "gemini-2.5-flash",
		ContextWindowTokens: 1048576,
		Auth: modelproviders.AuthConfig{
			Type:     modelproviders.AuthAPIKey,
			TokenEnv: "GEMINI_API_KEY",
		},
	}
	claude := modelproviders.Config{
		Provider:            "anthropic",
		API:                 modelproviders.APIAnthropic,
		Model:               "claude-sonnet-4-5",
		ContextWindowTokens: 200000,
		Auth: modelproviders.AuthConfig{
			Type:     modelproviders.AuthAPIKey,
			TokenEnv: "ANTHROPIC_API_KEY",
		},
	}

	out := make([]modelproviders.Config, 0, 4)
	for _, pair := range []struct {
		alias string
		cfg   modelproviders.Config
	}{
		{"gemini-2.5-flash", gemini},
		{"gemini/gemini-2.5-flash", gemini},
		{"claude-sonnet-4-5", claude},
		{"anthropic/claude-sonnet-4-5", claude},
	} {
		cfg := pair.cfg
		cfg.Alias = pair.alias
		out = append(out, cfg)
	}
	return out
}

func NormalizeModelAlias(alias string) string {
	return strings.ToLower(strings.TrimSpace(alias))
}

func DefaultModelAliases() []string {
	values := []string{"gemini-2.5-flash", "claude-sonnet-4-5"}
	sort.Strings(values)
	return values
}
