package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/websearch-gateway/internal/websearch/types"
)

func newClaudeTestProvider(t *testing.T, config *types.ProviderConfig, handler http.HandlerFunc) *ClaudeProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return &ClaudeProvider{
		BaseProvider: NewBaseProvider(config, "Claude"),
		baseURL:      server.URL,
	}
}

func claudeConfig(apiKey string) *types.ProviderConfig {
	config := testConfig(types.ProviderClaude, apiKey)
	config.Model = "claude-3-5-sonnet-20241022"
	return config
}

func TestClaudeProvider_Search_TextBlock(t *testing.T) {
	longText := strings.Repeat("z", 400)

	p := newClaudeTestProvider(t, claudeConfig("test-key"), func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))
		assert.Equal(t, "computer-use-2024-10-22", r.Header.Get("anthropic-beta"))

		var req claudeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "claude-3-5-sonnet-20241022", req.Model)
		assert.Equal(t, 2000, req.MaxTokens)
		require.Len(t, req.Tools, 1)
		assert.Equal(t, "computer_use", req.Tools[0].Type)
		assert.Equal(t, "computer", req.Tools[0].Name)
		assert.Equal(t, 1024, req.Tools[0].DisplayWidthPx)
		require.Len(t, req.Messages, 1)
		assert.Contains(t, req.Messages[0].Content, "Search the web for information about: golang")
		assert.Contains(t, req.Messages[0].Content, "Return up to 10 relevant results")

		resp := map[string]interface{}{
			"content": []map[string]interface{}{
				{"type": "text", "text": longText},
			},
			"usage": map[string]interface{}{"input_tokens": 50, "output_tokens": 200},
		}
		json.NewEncoder(w).Encode(resp)
	})

	resp, err := p.Search(context.Background(), "golang")
	require.NoError(t, err)

	assert.Equal(t, types.ProviderClaude, resp.Provider)
	require.Len(t, resp.Results, 1)

	result := resp.Results[0]
	assert.Equal(t, "Claude Search Results: golang", result.Title)
	assert.Equal(t, "", result.URL)
	assert.Equal(t, longText[:300]+"...", result.Snippet)
	assert.Equal(t, "Claude AI", result.Source)
	assert.Equal(t, "claude_response", result.Metadata["type"])
	assert.Equal(t, longText, result.Metadata["full_content"])
	assert.NotNil(t, result.Metadata["usage"])

	assert.Equal(t, "claude-3-5-sonnet-20241022", resp.Metadata["model"])
}

func TestClaudeProvider_Search_ToolUseBlock(t *testing.T) {
	p := newClaudeTestProvider(t, claudeConfig("test-key"), func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]interface{}{
			"content": []map[string]interface{}{
				{"type": "tool_use", "name": "computer", "input": map[string]interface{}{"action": "screenshot"}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	})

	resp, err := p.Search(context.Background(), "golang")
	require.NoError(t, err)

	require.Len(t, resp.Results, 1)
	result := resp.Results[0]
	assert.Equal(t, "Web Search via Claude: golang", result.Title)
	assert.Equal(t, "Claude performed web search using tools: computer", result.Snippet)
	assert.Equal(t, "Claude AI Tools", result.Source)
	assert.Equal(t, "tool_use", result.Metadata["type"])
	assert.Equal(t, "computer", result.Metadata["tool_name"])
}

func TestClaudeProvider_Search_EmptyContent(t *testing.T) {
	p := newClaudeTestProvider(t, claudeConfig("test-key"), func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"content": []}`))
	})

	resp, err := p.Search(context.Background(), "golang")
	require.NoError(t, err)

	require.Len(t, resp.Results, 1)
	result := resp.Results[0]
	assert.Equal(t, "Search: golang", result.Title)
	assert.Equal(t, "default", result.Metadata["type"])
	assert.Equal(t, "claude-3-5-sonnet-20241022", result.Metadata["model"])
}

func TestClaudeProvider_Search_UpstreamFailureDegrades(t *testing.T) {
	p := newClaudeTestProvider(t, claudeConfig("test-key"), func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error": {"message": "beta access required"}}`))
	})

	resp, err := p.Search(context.Background(), "golang")
	require.NoError(t, err)

	assert.Equal(t, "fallback", resp.Metadata["status"])
	assert.Contains(t, resp.Metadata["error"], "HTTP_403")

	require.Len(t, resp.Results, 1)
	result := resp.Results[0]
	assert.Equal(t, "Claude Search: golang", result.Title)
	assert.Contains(t, result.Snippet, "Query: golang")
	assert.Equal(t, "fallback", result.Metadata["type"])
}

func TestClaudeProvider_Search_MissingAPIKey(t *testing.T) {
	p, err := NewClaudeProvider(claudeConfig(""))
	require.NoError(t, err)

	_, err = p.Search(context.Background(), "golang")
	assert.ErrorIs(t, err, types.ErrMissingAPIKey)
}
