package service

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lk2023060901/websearch-gateway/internal/websearch/manager"
	"github.com/lk2023060901/websearch-gateway/internal/websearch/provider"
	"github.com/lk2023060901/websearch-gateway/internal/websearch/types"
)

type stubProvider struct {
	config *types.ProviderConfig
	search func(ctx context.Context, query string) (*types.SearchResponse, error)
}

func (s *stubProvider) Search(ctx context.Context, query string) (*types.SearchResponse, error) {
	return s.search(ctx, query)
}

func (s *stubProvider) GetID() types.ProviderID { return s.config.Provider }
func (s *stubProvider) GetName() string         { return string(s.config.Provider) }
func (s *stubProvider) Validate() error         { return nil }
func (s *stubProvider) Close()                  {}

func testConfigs() map[types.ProviderID]types.ProviderConfig {
	configs := make(map[types.ProviderID]types.ProviderConfig)
	for _, id := range types.AllProviders() {
		cfg := types.ProviderConfig{
			Provider:   id,
			MaxResults: 10,
			SafeSearch: true,
			Timeout:    30,
		}
		if id.RequiresAPIKey() {
			cfg.APIKey = "test-key"
		}
		configs[id] = cfg
	}
	return configs
}

// okFactory registers a succeeding stub for every provider
func okFactory() *provider.Factory {
	f := provider.NewFactory()
	for _, id := range types.AllProviders() {
		id := id
		f.Register(id, func(config *types.ProviderConfig) (provider.Provider, error) {
			return &stubProvider{config: config, search: func(ctx context.Context, query string) (*types.SearchResponse, error) {
				return &types.SearchResponse{
					Query:    query,
					Provider: id,
					Results: []*types.SearchResult{
						{Title: "result", URL: "https://example.com", Snippet: "snippet"},
					},
					TotalResults: 1,
					SearchTime:   0.01,
				}, nil
			}}, nil
		})
	}
	return f
}

func newTestRouter(t *testing.T, factory *provider.Factory) *gin.Engine {
	t.Helper()

	m, err := manager.New(manager.WithConfigs(testConfigs()), manager.WithFactory(factory))
	require.NoError(t, err)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	svc := NewSearchService(m, zap.NewNop())
	svc.RegisterRoutes(router.Group("/api/v1"))
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestSearchService_Search(t *testing.T) {
	router := newTestRouter(t, okFactory())

	w := doJSON(t, router, http.MethodPost, "/api/v1/search", gin.H{"query": "golang"})
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, "golang", body["query"])
	assert.Equal(t, "duckduckgo", body["provider"])
	assert.Len(t, body["results"], 1)
}

func TestSearchService_Search_ExplicitProvider(t *testing.T) {
	router := newTestRouter(t, okFactory())

	w := doJSON(t, router, http.MethodPost, "/api/v1/search", gin.H{
		"query":    "golang",
		"provider": "TAVILY",
	})
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, "tavily", body["provider"])
}

func TestSearchService_Search_InvalidProvider(t *testing.T) {
	router := newTestRouter(t, okFactory())

	w := doJSON(t, router, http.MethodPost, "/api/v1/search", gin.H{
		"query":    "golang",
		"provider": "google",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t,
		"Invalid provider 'google'. Available: serpapi, perplexity, duckduckgo, tavily, claude",
		body["error"])
}

func TestSearchService_Search_MissingQuery(t *testing.T) {
	router := newTestRouter(t, okFactory())

	w := doJSON(t, router, http.MethodPost, "/api/v1/search", gin.H{"provider": "tavily"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	body := decodeBody(t, w)
	assert.Contains(t, body["error"], "Query")
}

func TestSearchService_Search_ProviderFailure(t *testing.T) {
	factory := provider.NewFactory()
	factory.Register(types.ProviderTavily, func(config *types.ProviderConfig) (provider.Provider, error) {
		return &stubProvider{config: config, search: func(ctx context.Context, query string) (*types.SearchResponse, error) {
			return nil, &types.ProviderError{Provider: types.ProviderTavily, Code: "HTTP_500", Message: "boom"}
		}}, nil
	})
	router := newTestRouter(t, factory)

	w := doJSON(t, router, http.MethodPost, "/api/v1/search", gin.H{
		"query":    "golang",
		"provider": "tavily",
	})
	require.Equal(t, http.StatusBadGateway, w.Code)

	body := decodeBody(t, w)
	assert.Contains(t, body["error"], "Search failed:")
	assert.Contains(t, body["error"], "HTTP_500")
	assert.Equal(t, "golang", body["query"])
	assert.Equal(t, "tavily", body["provider"])
}

func TestSearchService_Search_MaxResultsClamped(t *testing.T) {
	tests := []struct {
		name      string
		requested int
		want      int
	}{
		{"zero uses default", 0, 10},
		{"negative floors at one", -5, 1},
		{"over cap tops out", 200, 50},
		{"in range passes through", 25, 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var captured int
			factory := provider.NewFactory()
			factory.Register(types.ProviderDuckDuckGo, func(config *types.ProviderConfig) (provider.Provider, error) {
				captured = config.MaxResults
				return &stubProvider{config: config, search: func(ctx context.Context, query string) (*types.SearchResponse, error) {
					return &types.SearchResponse{Query: query, Provider: config.Provider, Results: []*types.SearchResult{}}, nil
				}}, nil
			})
			router := newTestRouter(t, factory)

			w := doJSON(t, router, http.MethodPost, "/api/v1/search", gin.H{
				"query":       "golang",
				"max_results": tt.requested,
			})
			require.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.want, captured)
		})
	}
}

func TestSearchService_Fallback(t *testing.T) {
	router := newTestRouter(t, okFactory())

	w := doJSON(t, router, http.MethodPost, "/api/v1/search/fallback", gin.H{"query": "golang"})
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, "duckduckgo", body["provider"])
	assert.Len(t, body["results"], 1)
}

func TestSearchService_Fallback_AllProvidersDown(t *testing.T) {
	factory := provider.NewFactory()
	for _, id := range types.AllProviders() {
		id := id
		factory.Register(id, func(config *types.ProviderConfig) (provider.Provider, error) {
			return &stubProvider{config: config, search: func(ctx context.Context, query string) (*types.SearchResponse, error) {
				return nil, &types.ProviderError{Provider: id, Code: "HTTP_503", Message: "down"}
			}}, nil
		})
	}
	router := newTestRouter(t, factory)

	w := doJSON(t, router, http.MethodPost, "/api/v1/search/fallback", gin.H{"query": "golang"})
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Empty(t, body["results"])

	metadata, ok := body["metadata"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, metadata["error"], "All providers failed.")
	assert.Len(t, metadata["attempted_providers"], 5)
}

func TestSearchService_Multi(t *testing.T) {
	router := newTestRouter(t, okFactory())

	w := doJSON(t, router, http.MethodPost, "/api/v1/search/multi", gin.H{
		"query":     "golang",
		"providers": []string{"duckduckgo", "tavily"},
	})
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, "golang", body["query"])

	providers, ok := body["providers"].(map[string]interface{})
	require.True(t, ok)
	require.Len(t, providers, 2)

	ddg, ok := providers["duckduckgo"].(map[string]interface{})
	require.True(t, ok)
	assert.EqualValues(t, 1, ddg["total_results"])
	assert.Len(t, ddg["results"], 1)
	assert.Contains(t, ddg, "search_time")
	assert.Contains(t, ddg, "metadata")
}

func TestSearchService_Multi_DefaultsToAllProviders(t *testing.T) {
	router := newTestRouter(t, okFactory())

	w := doJSON(t, router, http.MethodPost, "/api/v1/search/multi", gin.H{"query": "golang"})
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	providers, ok := body["providers"].(map[string]interface{})
	require.True(t, ok)
	assert.Len(t, providers, 5)
}

func TestSearchService_Multi_DropsUnknownNames(t *testing.T) {
	router := newTestRouter(t, okFactory())

	w := doJSON(t, router, http.MethodPost, "/api/v1/search/multi", gin.H{
		"query":     "golang",
		"providers": []string{"duckduckgo", "altavista"},
	})
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	providers, ok := body["providers"].(map[string]interface{})
	require.True(t, ok)
	require.Len(t, providers, 1)
	assert.Contains(t, providers, "duckduckgo")
}

func TestSearchService_Multi_NoValidProviders(t *testing.T) {
	router := newTestRouter(t, okFactory())

	w := doJSON(t, router, http.MethodPost, "/api/v1/search/multi", gin.H{
		"query":     "golang",
		"providers": []string{"altavista", "lycos"},
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t,
		"No valid providers specified. Available: serpapi, perplexity, duckduckgo, tavily, claude",
		body["error"])
}

func TestSearchService_Multi_FailedProviderStillListed(t *testing.T) {
	factory := okFactory()
	factory.Register(types.ProviderSerpAPI, func(config *types.ProviderConfig) (provider.Provider, error) {
		return &stubProvider{config: config, search: func(ctx context.Context, query string) (*types.SearchResponse, error) {
			return nil, &types.ProviderError{Provider: types.ProviderSerpAPI, Code: "HTTP_429", Message: "rate limited"}
		}}, nil
	})
	router := newTestRouter(t, factory)

	w := doJSON(t, router, http.MethodPost, "/api/v1/search/multi", gin.H{
		"query":     "golang",
		"providers": []string{"duckduckgo", "serpapi"},
	})
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	providers := body["providers"].(map[string]interface{})
	require.Len(t, providers, 2)

	failed, ok := providers["serpapi"].(map[string]interface{})
	require.True(t, ok)
	assert.Empty(t, failed["results"])

	metadata, ok := failed["metadata"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, metadata["error"], "HTTP_429")
}

func TestSearchService_Multi_ClampsPerProviderResults(t *testing.T) {
	var captured int
	factory := provider.NewFactory()
	factory.Register(types.ProviderDuckDuckGo, func(config *types.ProviderConfig) (provider.Provider, error) {
		captured = config.MaxResults
		return &stubProvider{config: config, search: func(ctx context.Context, query string) (*types.SearchResponse, error) {
			return &types.SearchResponse{Query: query, Provider: config.Provider, Results: []*types.SearchResult{}}, nil
		}}, nil
	})
	router := newTestRouter(t, factory)

	w := doJSON(t, router, http.MethodPost, "/api/v1/search/multi", gin.H{
		"query":                    "golang",
		"providers":                []string{"duckduckgo"},
		"max_results_per_provider": 100,
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 20, captured)
}

func TestSearchService_GetProviders(t *testing.T) {
	router := newTestRouter(t, okFactory())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/providers", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, "duckduckgo", body["default_provider"])
	assert.EqualValues(t, 5, body["total_available"])

	providers, ok := body["providers"].(map[string]interface{})
	require.True(t, ok)
	assert.Len(t, providers, 5)
	assert.Equal(t, true, providers["duckduckgo"])

	chain, ok := body["fallback_chain"].([]interface{})
	require.True(t, ok)
	require.Len(t, chain, 5)
	assert.Equal(t, "duckduckgo", chain[0])
}
