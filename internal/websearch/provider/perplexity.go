package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lk2023060901/websearch-gateway/internal/websearch/types"
)

const perplexityBaseURL = "https://api.perplexity.ai/chat/completions"

// PerplexityProvider implements the Perplexity AI search provider
type PerplexityProvider struct {
	*BaseProvider
	baseURL string
}

// NewPerplexityProvider creates a new Perplexity provider
func NewPerplexityProvider(config *types.ProviderConfig) (Provider, error) {
	return &PerplexityProvider{
		BaseProvider: NewBaseProvider(config, "Perplexity"),
		baseURL:      perplexityBaseURL,
	}, nil
}

// perplexityRequest represents a Perplexity chat completion request
type perplexityRequest struct {
	Model           string              `json:"model"`
	Messages        []perplexityMessage `json:"messages"`
	MaxTokens       int                 `json:"max_tokens"`
	Temperature     float64             `json:"temperature"`
	ReturnCitations bool                `json:"return_citations"`
	ReturnImages    bool                `json:"return_images"`
}

type perplexityMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// perplexityResponse represents a Perplexity chat completion response
type perplexityResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Citations []perplexityCitation   `json:"citations"`
	Usage     map[string]interface{} `json:"usage"`
}

type perplexityCitation struct {
	Title  string  `json:"title"`
	URL    string  `json:"url"`
	Text   string  `json:"text"`
	Source string  `json:"source"`
	Score  float64 `json:"score"`
}

// Search executes a search via the Perplexity chat completions API
func (p *PerplexityProvider) Search(ctx context.Context, query string) (*types.SearchResponse, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	startTime := time.Now()
	cfg := p.GetConfig()

	reqBody, err := json.Marshal(perplexityRequest{
		Model: cfg.Model,
		Messages: []perplexityMessage{
			{
				Role: "system",
				Content: fmt.Sprintf(
					"You are a helpful search assistant. Provide comprehensive search results for the given query. Return up to %d relevant results with titles, URLs, and descriptions.",
					cfg.MaxResults,
				),
			},
			{Role: "user", Content: "Search for: " + query},
		},
		MaxTokens:       2000,
		Temperature:     0.1,
		ReturnCitations: true,
		ReturnImages:    false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	headers := map[string]string{
		"Authorization": "Bearer " + cfg.APIKey,
	}

	body, err := p.doPOST(ctx, p.baseURL, headers, reqBody)
	if err != nil {
		return nil, err
	}

	var apiResp perplexityResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, &types.ProviderError{
			Provider: cfg.Provider,
			Code:     "INVALID_RESPONSE",
			Message:  "failed to decode response",
			Err:      err,
		}
	}

	metadata := map[string]interface{}{
		"model":     cfg.Model,
		"usage":     apiResp.Usage,
		"citations": apiResp.Citations,
	}

	return p.newResponse(
		query,
		p.parseResults(&apiResp, query),
		0,
		time.Since(startTime).Seconds(),
		metadata,
	), nil
}

// parseResults maps citations into results, falling back to a single AI
// summary result when the response carries no citations.
func (p *PerplexityProvider) parseResults(resp *perplexityResponse, query string) []*types.SearchResult {
	if len(resp.Choices) == 0 {
		return nil
	}
	content := resp.Choices[0].Message.Content

	if len(resp.Citations) > 0 {
		citations := resp.Citations
		if max := p.GetConfig().MaxResults; len(citations) > max {
			citations = citations[:max]
		}

		results := make([]*types.SearchResult, 0, len(citations))
		for i, citation := range citations {
			title := citation.Title
			if title == "" {
				title = fmt.Sprintf("Result %d", i+1)
			}
			snippet := citation.Text
			if len(snippet) > 200 {
				snippet = snippet[:200]
			}
			results = append(results, &types.SearchResult{
				Title:   title,
				URL:     citation.URL,
				Snippet: snippet + "...",
				Source:  citation.Source,
				Metadata: map[string]interface{}{
					"citation_index":  i,
					"relevance_score": citation.Score,
					"type":            "citation",
				},
			})
		}
		return results
	}

	snippet := content
	if len(snippet) > 300 {
		snippet = snippet[:300] + "..."
	}
	return []*types.SearchResult{{
		Title:   "AI Summary for: " + query,
		Snippet: snippet,
		Source:  "Perplexity AI",
		Metadata: map[string]interface{}{
			"type":         "ai_summary",
			"full_content": content,
		},
	}}
}
