package manager

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/lk2023060901/websearch-gateway/internal/websearch/config"
	"github.com/lk2023060901/websearch-gateway/internal/websearch/provider"
	"github.com/lk2023060901/websearch-gateway/internal/websearch/types"
)

// fallbackOrder is the fixed priority for SearchWithFallback: the keyless
// provider first, then the paid providers.
var fallbackOrder = []types.ProviderID{
	types.ProviderDuckDuckGo,
	types.ProviderSerpAPI,
	types.ProviderPerplexity,
	types.ProviderTavily,
	types.ProviderClaude,
}

// Manager routes search requests across the configured providers
type Manager struct {
	defaultProvider types.ProviderID
	configs         map[types.ProviderID]types.ProviderConfig
	factory         *provider.Factory
	log             *zap.Logger
}

// Option configures a Manager
type Option func(*Manager)

// WithDefaultProvider sets the provider used when a search names none
func WithDefaultProvider(id types.ProviderID) Option {
	return func(m *Manager) { m.defaultProvider = id }
}

// WithConfigs supplies resolved provider configurations, bypassing
// environment resolution
func WithConfigs(configs map[types.ProviderID]types.ProviderConfig) Option {
	return func(m *Manager) { m.configs = configs }
}

// WithFactory replaces the provider factory
func WithFactory(f *provider.Factory) Option {
	return func(m *Manager) { m.factory = f }
}

// WithLogger sets the manager's logger
func WithLogger(log *zap.Logger) Option {
	return func(m *Manager) { m.log = log }
}

// New creates a manager. Provider configurations are resolved from the
// environment unless WithConfigs supplied them.
func New(opts ...Option) (*Manager, error) {
	m := &Manager{
		defaultProvider: types.DefaultProvider,
		log:             zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.factory == nil {
		m.factory = provider.NewFactory()
	}
	if m.configs == nil {
		configs, err := config.ResolveAll()
		if err != nil {
			return nil, err
		}
		m.configs = configs
	}

	return m, nil
}

// DefaultProvider returns the provider used when a search names none
func (m *Manager) DefaultProvider() types.ProviderID {
	return m.defaultProvider
}

// Search queries a single provider. An empty id selects the default
// provider, and maxResults > 0 overrides the configured limit for this
// call only. Provider errors propagate to the caller unchanged.
func (m *Manager) Search(ctx context.Context, query string, id types.ProviderID, maxResults int) (*types.SearchResponse, error) {
	if id == "" {
		id = m.defaultProvider
	}

	cfg, ok := m.configs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrProviderNotFound, id)
	}
	if maxResults > 0 {
		cfg.MaxResults = maxResults
	}

	p, err := m.factory.Create(&cfg)
	if err != nil {
		return nil, err
	}
	defer p.Close()

	m.log.Debug("dispatching search",
		zap.String("provider", string(id)),
		zap.String("query", query),
		zap.Int("max_results", cfg.MaxResults))

	return p.Search(ctx, query)
}

// AvailableProviders reports which configured providers can serve
// requests. Keyless providers are always available; the rest need a
// credential.
func (m *Manager) AvailableProviders() map[string]bool {
	status := make(map[string]bool, len(m.configs))
	for id, cfg := range m.configs {
		if id.RequiresAPIKey() {
			status[string(id)] = cfg.HasAPIKey()
		} else {
			status[string(id)] = true
		}
	}
	return status
}

// FallbackChain returns the available providers in fixed priority order
func (m *Manager) FallbackChain() []types.ProviderID {
	available := m.AvailableProviders()

	chain := make([]types.ProviderID, 0, len(fallbackOrder))
	for _, id := range fallbackOrder {
		if available[string(id)] {
			chain = append(chain, id)
		}
	}
	return chain
}

// SearchWithFallback tries the fallback chain in order and returns the
// first successful response without contacting the remaining providers.
// Exhaustion is reported as a degraded response, never as an error.
func (m *Manager) SearchWithFallback(ctx context.Context, query string, maxResults int) *types.SearchResponse {
	chain := m.FallbackChain()

	attempted := make([]string, 0, len(chain))
	var lastErr error = types.ErrNoProvidersAvailable

	for _, id := range chain {
		attempted = append(attempted, string(id))

		resp, err := m.Search(ctx, query, id, maxResults)
		if err == nil {
			return resp
		}
		lastErr = err

		m.log.Warn("provider failed, trying next in chain",
			zap.String("provider", string(id)),
			zap.String("query", query),
			zap.Error(err))
	}

	return &types.SearchResponse{
		Query:    query,
		Provider: m.defaultProvider,
		Results:  []*types.SearchResult{},
		Metadata: map[string]interface{}{
			"error":               fmt.Sprintf("All providers failed. Last error: %v", lastErr),
			"attempted_providers": attempted,
		},
	}
}

// MultiProviderSearch fans the query out to all requested providers
// concurrently and waits for every one. Each provider gets exactly one
// entry in the result map; a failed provider's entry is an empty response
// carrying the error in its metadata.
func (m *Manager) MultiProviderSearch(ctx context.Context, query string, ids []types.ProviderID, maxResultsPerProvider int) map[string]*types.SearchResponse {
	type entry struct {
		id   types.ProviderID
		resp *types.SearchResponse
	}

	ch := make(chan entry, len(ids))
	for _, id := range ids {
		go func(id types.ProviderID) {
			resp, err := m.Search(ctx, query, id, maxResultsPerProvider)
			if err != nil {
				resp = &types.SearchResponse{
					Query:    query,
					Provider: id,
					Results:  []*types.SearchResult{},
					Metadata: map[string]interface{}{"error": err.Error()},
				}
			}
			ch <- entry{id: id, resp: resp}
		}(id)
	}

	results := make(map[string]*types.SearchResponse, len(ids))
	for range ids {
		e := <-ch
		results[string(e.id)] = e.resp
	}
	return results
}
