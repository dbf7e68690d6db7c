package types

import (
	"fmt"
	"strings"
)

// ProviderID identifies a search provider
type ProviderID string

const (
	ProviderSerpAPI    ProviderID = "serpapi"
	ProviderPerplexity ProviderID = "perplexity"
	ProviderDuckDuckGo ProviderID = "duckduckgo"
	ProviderTavily     ProviderID = "tavily"
	ProviderClaude     ProviderID = "claude"
)

// DefaultProvider is used when a request does not name a provider.
const DefaultProvider = ProviderDuckDuckGo

// Defaults applied when neither the environment nor the caller supplies a value.
const (
	DefaultMaxResults = 10
	DefaultTimeout    = 30 // seconds
)

// AllProviders returns every supported provider in registration order.
func AllProviders() []ProviderID {
	return []ProviderID{
		ProviderSerpAPI,
		ProviderPerplexity,
		ProviderDuckDuckGo,
		ProviderTavily,
		ProviderClaude,
	}
}

// AllProviderNames returns the supported provider identifiers as strings.
func AllProviderNames() []string {
	ids := AllProviders()
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = string(id)
	}
	return names
}

// ParseProviderID resolves a provider name case-insensitively. The returned
// error lists the valid names so it can be surfaced to callers directly.
func ParseProviderID(name string) (ProviderID, error) {
	id := ProviderID(strings.ToLower(strings.TrimSpace(name)))
	switch id {
	case ProviderSerpAPI, ProviderPerplexity, ProviderDuckDuckGo, ProviderTavily, ProviderClaude:
		return id, nil
	}
	return "", fmt.Errorf("%w '%s'. Available: %s",
		ErrInvalidProviderID, name, strings.Join(AllProviderNames(), ", "))
}

// RequiresAPIKey reports whether the provider needs a credential to serve
// requests. DuckDuckGo is the only keyless provider.
func (id ProviderID) RequiresAPIKey() bool {
	return id != ProviderDuckDuckGo
}

// ProviderConfig represents search provider configuration
type ProviderConfig struct {
	Provider ProviderID `json:"provider"`

	// Credential settings
	APIKey string `json:"api_key,omitempty"`

	// Search settings
	MaxResults int    `json:"max_results"`
	SafeSearch bool   `json:"safe_search"`
	Timeout    int    `json:"timeout"` // seconds
	Region     string `json:"region,omitempty"`
	Language   string `json:"language,omitempty"`

	// Provider-specific settings
	Engine          string `json:"engine,omitempty"`           // serpapi
	Model           string `json:"model,omitempty"`            // perplexity, claude
	SafeSearchLevel string `json:"safesearch_level,omitempty"` // duckduckgo
}

// Validate checks the configuration bounds. Out-of-range values are
// rejected, never clamped.
func (c *ProviderConfig) Validate() error {
	if c.Provider == "" {
		return ErrInvalidProviderID
	}
	if c.MaxResults < 1 || c.MaxResults > 100 {
		return &ConfigValidationError{
			Provider:   c.Provider,
			Field:      "max_results",
			Value:      c.MaxResults,
			Constraint: "must be between 1 and 100",
		}
	}
	if c.Timeout < 1 || c.Timeout > 300 {
		return &ConfigValidationError{
			Provider:   c.Provider,
			Field:      "timeout",
			Value:      c.Timeout,
			Constraint: "must be between 1 and 300",
		}
	}
	return nil
}

// HasAPIKey reports whether a credential is configured. An empty string
// counts as absent.
func (c *ProviderConfig) HasAPIKey() bool {
	return c.APIKey != ""
}
