package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/lk2023060901/websearch-gateway/internal/websearch/types"
)

// Environment variables shared by every provider. A provider-specific
// variable (SERPAPI_TIMEOUT, TAVILY_SAFE_SEARCH, ...) takes precedence
// over the shared one.
const (
	envSharedTimeout    = "SEARCH_TIMEOUT"
	envSharedSafeSearch = "SAFE_SEARCH"
	envSharedRegion     = "SEARCH_REGION"
	envSharedLanguage   = "SEARCH_LANGUAGE"
)

// apiKeyEnv maps each provider to its credential variable. DuckDuckGo has
// no entry because it serves requests without a credential.
var apiKeyEnv = map[types.ProviderID]string{
	types.ProviderSerpAPI:    "SERPAPI_API_KEY",
	types.ProviderPerplexity: "PERPLEXITY_API_KEY",
	types.ProviderTavily:     "TAVILY_API_KEY",
	types.ProviderClaude:     "ANTHROPIC_API_KEY",
}

// Resolve builds the configuration for a single provider by layering
// environment overrides on top of built-in defaults. Empty environment
// values are treated as unset, so an empty API key means no credential.
func Resolve(id types.ProviderID) (*types.ProviderConfig, error) {
	v := viper.New()
	prefix := strings.ToUpper(string(id))

	v.SetDefault("max_results", types.DefaultMaxResults)
	v.SetDefault("safe_search", true)
	v.SetDefault("timeout", types.DefaultTimeout)

	if key, ok := apiKeyEnv[id]; ok {
		v.BindEnv("api_key", key)
	}
	v.BindEnv("max_results", prefix+"_MAX_RESULTS")
	v.BindEnv("timeout", prefix+"_TIMEOUT", envSharedTimeout)
	v.BindEnv("safe_search", prefix+"_SAFE_SEARCH", envSharedSafeSearch)
	v.BindEnv("region", prefix+"_REGION", envSharedRegion)
	v.BindEnv("language", prefix+"_LANGUAGE", envSharedLanguage)

	switch id {
	case types.ProviderSerpAPI:
		v.SetDefault("engine", "google")
		v.BindEnv("engine", "SERPAPI_ENGINE")
	case types.ProviderPerplexity:
		v.SetDefault("model", "sonar-pro")
		v.BindEnv("model", "PERPLEXITY_MODEL")
	case types.ProviderClaude:
		v.SetDefault("model", "claude-3-5-sonnet-20241022")
		v.BindEnv("model", "CLAUDE_MODEL")
	case types.ProviderDuckDuckGo:
		v.SetDefault("safesearch_level", "moderate")
		v.BindEnv("safesearch_level", "DUCKDUCKGO_SAFESEARCH")
	}

	cfg := &types.ProviderConfig{
		Provider:        id,
		APIKey:          v.GetString("api_key"),
		Region:          v.GetString("region"),
		Language:        v.GetString("language"),
		Engine:          v.GetString("engine"),
		Model:           v.GetString("model"),
		SafeSearchLevel: v.GetString("safesearch_level"),
	}

	var err error
	if cfg.MaxResults, err = intValue(v, id, "max_results"); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = intValue(v, id, "timeout"); err != nil {
		return nil, err
	}
	if cfg.SafeSearch, err = boolValue(v, id, "safe_search"); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ResolveAll resolves configurations for the given providers, or for every
// supported provider when none are named. Configurations are keyed by
// value so callers copy on use.
func ResolveAll(ids ...types.ProviderID) (map[types.ProviderID]types.ProviderConfig, error) {
	if len(ids) == 0 {
		ids = types.AllProviders()
	}

	configs := make(map[types.ProviderID]types.ProviderConfig, len(ids))
	for _, id := range ids {
		cfg, err := Resolve(id)
		if err != nil {
			return nil, fmt.Errorf("resolve %s config: %w", id, err)
		}
		configs[id] = *cfg
	}
	return configs, nil
}

func intValue(v *viper.Viper, id types.ProviderID, key string) (int, error) {
	raw := v.GetString(key)
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, &types.ConfigValidationError{
			Provider:   id,
			Field:      key,
			Value:      raw,
			Constraint: "must be an integer",
		}
	}
	return n, nil
}

func boolValue(v *viper.Viper, id types.ProviderID, key string) (bool, error) {
	raw := v.GetString(key)
	b, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return false, &types.ConfigValidationError{
			Provider:   id,
			Field:      key,
			Value:      raw,
			Constraint: "must be a boolean",
		}
	}
	return b, nil
}
