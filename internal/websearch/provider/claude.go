package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tidwall/gjson"

	"github.com/lk2023060901/websearch-gateway/internal/websearch/types"
)

const (
	claudeBaseURL    = "https://api.anthropic.com/v1/messages"
	claudeAPIVersion = "2023-06-01"
	claudeBetaFlag   = "computer-use-2024-10-22"
)

// ClaudeProvider implements search via the Anthropic messages API with
// computer use tools
type ClaudeProvider struct {
	*BaseProvider
	baseURL string
}

// NewClaudeProvider creates a new Claude provider
func NewClaudeProvider(config *types.ProviderConfig) (Provider, error) {
	return &ClaudeProvider{
		BaseProvider: NewBaseProvider(config, "Claude"),
		baseURL:      claudeBaseURL,
	}, nil
}

// claudeRequest represents an Anthropic messages API request
type claudeRequest struct {
	Model     string          `json:"model"`
	MaxTokens int             `json:"max_tokens"`
	Tools     []claudeTool    `json:"tools"`
	Messages  []claudeMessage `json:"messages"`
}

type claudeTool struct {
	Type            string `json:"type"`
	Name            string `json:"name"`
	DisplayWidthPx  int    `json:"display_width_px"`
	DisplayHeightPx int    `json:"display_height_px"`
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Search executes a search via the messages API. A missing API key is an
// error; once the credential check passes, upstream failures degrade to a
// placeholder response instead of an error.
func (p *ClaudeProvider) Search(ctx context.Context, query string) (*types.SearchResponse, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	startTime := time.Now()
	cfg := p.GetConfig()

	reqBody, err := json.Marshal(claudeRequest{
		Model:     cfg.Model,
		MaxTokens: 2000,
		Tools: []claudeTool{{
			Type:            "computer_use",
			Name:            "computer",
			DisplayWidthPx:  1024,
			DisplayHeightPx: 768,
		}},
		Messages: []claudeMessage{{
			Role: "user",
			Content: fmt.Sprintf(
				"Search the web for information about: %s. Provide detailed search results with titles, URLs, and descriptions. Return up to %d relevant results.",
				query, cfg.MaxResults,
			),
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	headers := map[string]string{
		"x-api-key":         cfg.APIKey,
		"anthropic-version": claudeAPIVersion,
		"anthropic-beta":    claudeBetaFlag,
	}

	body, err := p.doPOST(ctx, p.baseURL, headers, reqBody)
	if err != nil {
		return p.fallbackResponse(query, startTime, err), nil
	}

	data := gjson.ParseBytes(body)

	metadata := map[string]interface{}{
		"model":    cfg.Model,
		"usage":    data.Get("usage").Value(),
		"tool_use": data.Get("tool_use").Value(),
	}

	return p.newResponse(
		query,
		p.parseResults(data, query),
		0,
		time.Since(startTime).Seconds(),
		metadata,
	), nil
}

// parseResults maps the response content blocks into results. Text blocks
// become summaries, tool_use blocks report the tool invocation, and an
// empty content list yields a single placeholder result.
func (p *ClaudeProvider) parseResults(data gjson.Result, query string) []*types.SearchResult {
	var results []*types.SearchResult

	for _, block := range data.Get("content").Array() {
		switch block.Get("type").String() {
		case "text":
			content := block.Get("text").String()
			snippet := content
			if len(snippet) > 300 {
				snippet = snippet[:300] + "..."
			}
			results = append(results, &types.SearchResult{
				Title:   "Claude Search Results: " + query,
				Snippet: snippet,
				Source:  "Claude AI",
				Metadata: map[string]interface{}{
					"type":         "claude_response",
					"full_content": content,
					"usage":        data.Get("usage").Value(),
				},
			})
		case "tool_use":
			name := block.Get("name").String()
			if name == "" {
				name = "unknown"
			}
			results = append(results, &types.SearchResult{
				Title:   "Web Search via Claude: " + query,
				Snippet: "Claude performed web search using tools: " + name,
				Source:  "Claude AI Tools",
				Metadata: map[string]interface{}{
					"type":       "tool_use",
					"tool_name":  block.Get("name").Value(),
					"tool_input": block.Get("input").Value(),
				},
			})
		}
	}

	if len(results) == 0 {
		results = append(results, &types.SearchResult{
			Title:   "Search: " + query,
			Snippet: "Claude search is processing your query. Results may vary based on API access and configuration.",
			Source:  "Claude AI",
			Metadata: map[string]interface{}{
				"type":  "default",
				"model": p.GetConfig().Model,
			},
		})
	}

	return truncateResults(results, p.GetConfig().MaxResults)
}

// fallbackResponse reports a failed upstream call as a degraded response
// carrying the error in its metadata
func (p *ClaudeProvider) fallbackResponse(query string, startTime time.Time, err error) *types.SearchResponse {
	results := []*types.SearchResult{{
		Title:   "Claude Search: " + query,
		Snippet: fmt.Sprintf("Claude search capability is available but may require specific API access. Query: %s", query),
		Source:  "Claude AI",
		Metadata: map[string]interface{}{
			"type":  "fallback",
			"error": err.Error(),
		},
	}}

	return p.newResponse(query, results, 0, time.Since(startTime).Seconds(), map[string]interface{}{
		"status": "fallback",
		"error":  err.Error(),
	})
}
